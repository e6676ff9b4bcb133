package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/statuskit/statusd/internal/service"
)

// MessageHandler serves the authenticated /:global_id/message endpoint.
type MessageHandler struct {
	Messages service.MessageService
}

type sendBody struct {
	Recipient string          `json:"recipient"`
	Message   json.RawMessage `json:"message"`
}

// Send handles POST /:global_id/message.
func (h *MessageHandler) Send(c *gin.Context) {
	caller, ok := CallerFromContext(c)
	if !ok {
		c.Status(http.StatusForbidden)
		return
	}
	if !requireJSON(c) {
		return
	}

	var body sendBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON request"})
		return
	}
	if body.Recipient == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing recipient"})
		return
	}
	if len(body.Message) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing message"})
		return
	}

	if err := h.Messages.Send(c.Request.Context(), caller, body.Recipient, body.Message); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

// Receive handles GET /:global_id/message: it returns and removes all
// pending messages for the caller, oldest first.
func (h *MessageHandler) Receive(c *gin.Context) {
	caller, ok := CallerFromContext(c)
	if !ok {
		c.Status(http.StatusForbidden)
		return
	}

	msgs, err := h.Messages.Receive(c.Request.Context(), caller)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := make([]gin.H, 0, len(msgs))
	for _, m := range msgs {
		resp = append(resp, gin.H{
			"sender":  m.SenderGlobalID,
			"message": json.RawMessage(m.Body),
		})
	}
	c.JSON(http.StatusOK, resp)
}

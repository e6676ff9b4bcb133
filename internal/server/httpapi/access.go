package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/statuskit/statusd/internal/service"
)

// AccessHandler serves the unauthenticated /access bootstrap endpoint.
type AccessHandler struct {
	Access service.AccessService
}

type enrollBody struct {
	GlobalID string `json:"global_id"`
	DeviceID string `json:"device_id"`
}

// Enroll handles POST /access.
func (h *AccessHandler) Enroll(c *gin.Context) {
	if !requireJSON(c) {
		return
	}
	var body enrollBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON request"})
		return
	}
	if body.GlobalID == "" || body.DeviceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON request"})
		return
	}

	cred, err := h.Access.Enroll(c.Request.Context(), body.GlobalID, body.DeviceID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"access_id":     cred.AccessID,
		"access_secret": cred.AccessSecret,
	})
}

// Revoke handles DELETE /access?global_id=.
func (h *AccessHandler) Revoke(c *gin.Context) {
	globalID := c.Query("global_id")
	if globalID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing global_id"})
		return
	}
	if err := h.Access.Revoke(c.Request.Context(), globalID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

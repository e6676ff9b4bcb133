package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/statuskit/statusd/internal/model"
	"github.com/statuskit/statusd/internal/service"
)

// PermissionHandler serves the authenticated /:global_id/permission endpoint.
type PermissionHandler struct {
	Permissions service.PermissionService
}

// List handles GET /:global_id/permission with optional global_id and type
// filters.
func (h *PermissionHandler) List(c *gin.Context) {
	caller, ok := CallerFromContext(c)
	if !ok {
		c.Status(http.StatusForbidden)
		return
	}

	var filterRecipient, filterType *string
	if v, ok := c.GetQuery("global_id"); ok {
		filterRecipient = &v
	}
	if v, ok := c.GetQuery("type"); ok {
		filterType = &v
	}

	grants, err := h.Permissions.List(c.Request.Context(), caller, filterRecipient, filterType)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := make([]gin.H, 0, len(grants))
	for _, g := range grants {
		resp = append(resp, gin.H{
			"access_type": string(g.AccessType),
			"global_id":   g.RecipientGlobalID,
			"status_type": g.StatusTypePattern,
		})
	}
	c.JSON(http.StatusOK, resp)
}

type createGrantBody struct {
	AccessType string `json:"access_type"`
	GlobalID   string `json:"global_id"`
	StatusType string `json:"status_type"`
}

// Create handles POST /:global_id/permission.
func (h *PermissionHandler) Create(c *gin.Context) {
	caller, ok := CallerFromContext(c)
	if !ok {
		c.Status(http.StatusForbidden)
		return
	}
	if !requireJSON(c) {
		return
	}

	var body createGrantBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON request"})
		return
	}
	if body.AccessType == "" || body.GlobalID == "" || body.StatusType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON request"})
		return
	}

	err := h.Permissions.Create(c.Request.Context(), caller,
		model.AccessType(body.AccessType), body.GlobalID, body.StatusType)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

// Delete handles DELETE /:global_id/permission keyed by the full
// (access_type, global_id, status_type) query tuple.
func (h *PermissionHandler) Delete(c *gin.Context) {
	caller, ok := CallerFromContext(c)
	if !ok {
		c.Status(http.StatusForbidden)
		return
	}

	accessType := c.Query("access_type")
	recipient := c.Query("global_id")
	statusType := c.Query("status_type")
	if accessType == "" || recipient == "" || statusType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing request params"})
		return
	}

	err := h.Permissions.Delete(c.Request.Context(), caller,
		model.AccessType(accessType), recipient, statusType)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

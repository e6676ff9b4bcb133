package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/statuskit/statusd/internal/service"
	"github.com/statuskit/statusd/internal/timefmt"
)

// StatusHandler serves the authenticated /:global_id/status and
// /:global_id/history endpoints.
type StatusHandler struct {
	Statuses service.StatusService
}

// Read handles GET /:global_id/status. Without own=1 it returns views where
// the caller is the recipient; with own=1, the caller's own published views.
func (h *StatusHandler) Read(c *gin.Context) {
	caller, ok := CallerFromContext(c)
	if !ok {
		c.Status(http.StatusForbidden)
		return
	}

	q := service.CurrentQuery{Own: c.Query("own") == "1"}
	if v, ok := c.GetQuery("global_id"); ok {
		q.FilterPublisher = &v
	}
	if v, ok := c.GetQuery("type"); ok {
		q.FilterType = &v
	}
	if v, ok := c.GetQuery("since"); ok && v != service.SinceAll {
		since, err := timefmt.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'since' value"})
			return
		}
		q.Since = &since
	}

	views, since, err := h.Statuses.ReadCurrent(c.Request.Context(), caller, q)
	if err != nil {
		writeError(c, err)
		return
	}

	updates := make([]gin.H, 0, len(views))
	for _, v := range views {
		updates = append(updates, gin.H{
			"global_id": v.IssuerGlobalID,
			"type":      v.TypeName,
			"timestamp": timefmt.Format(v.Timestamp, v.TZOffset),
			"contents":  v.Contents,
		})
	}
	c.JSON(http.StatusOK, gin.H{"updates": updates, "since": since})
}

type publishBody struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	// Pointer so an absent contents key is told apart from an empty string.
	Contents *string `json:"contents"`
}

// Publish handles POST /:global_id/status.
func (h *StatusHandler) Publish(c *gin.Context) {
	caller, ok := CallerFromContext(c)
	if !ok {
		c.Status(http.StatusForbidden)
		return
	}
	if !requireJSON(c) {
		return
	}

	var body publishBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON request"})
		return
	}
	if body.Type == "" || body.Timestamp == "" || body.Contents == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON request"})
		return
	}
	timestamp, err := timefmt.Parse(body.Timestamp)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid timestamp"})
		return
	}

	if _, err := h.Statuses.Publish(c.Request.Context(), caller, body.Type, timestamp, *body.Contents); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

// History handles GET /:global_id/history?global_id=&type=&more=. The more
// parameter is the 1-based page number to fetch; the response echoes the
// next one to request, or null on the last page.
func (h *StatusHandler) History(c *gin.Context) {
	caller, ok := CallerFromContext(c)
	if !ok {
		c.Status(http.StatusForbidden)
		return
	}

	target := c.Query("global_id")
	typeName := c.Query("type")
	if target == "" || typeName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing request params"})
		return
	}

	page := 1
	if v, ok := c.GetQuery("more"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid more parameter"})
			return
		}
		page = n
	}

	updates, next, err := h.Statuses.History(c.Request.Context(), caller, target, typeName, page)
	if err != nil {
		writeError(c, err)
		return
	}

	items := make([]gin.H, 0, len(updates))
	for _, u := range updates {
		items = append(items, gin.H{
			"global_id": u.GlobalID,
			"type":      u.TypeName,
			"timestamp": timefmt.Format(u.Timestamp, u.TZOffset),
			"contents":  u.Contents,
		})
	}
	var more *string
	if next != nil {
		s := strconv.Itoa(*next)
		more = &s
	}
	c.JSON(http.StatusOK, gin.H{"updates": items, "more": more})
}

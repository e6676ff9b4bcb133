package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/statuskit/statusd/internal/service"
	"github.com/statuskit/statusd/internal/timefmt"
)

// LocationHandler serves the authenticated /:global_id/location_session
// endpoint and the session-authenticated /location endpoint.
type LocationHandler struct {
	Locations service.LocationService
}

// StartSession handles POST /:global_id/location_session.
func (h *LocationHandler) StartSession(c *gin.Context) {
	caller, ok := CallerFromContext(c)
	if !ok {
		c.Status(http.StatusForbidden)
		return
	}

	sessionID, err := h.Locations.StartSession(c.Request.Context(), caller)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session_id": sessionID})
}

// EndSession handles DELETE /:global_id/location_session.
func (h *LocationHandler) EndSession(c *gin.Context) {
	caller, ok := CallerFromContext(c)
	if !ok {
		c.Status(http.StatusForbidden)
		return
	}

	if err := h.Locations.EndSession(c.Request.Context(), caller); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

type locationBody struct {
	SessionID string    `json:"session_id"`
	Locations []fixBody `json:"locations"`
}

type fixBody struct {
	Timestamp string   `json:"timestamp"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// SubmitFixes handles POST /location. The session ID inside the body is the
// only credential on this path.
func (h *LocationHandler) SubmitFixes(c *gin.Context) {
	if !requireJSON(c) {
		return
	}

	var body locationBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON request"})
		return
	}
	if body.SessionID == "" || body.Locations == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON request"})
		return
	}

	fixes := make([]service.LocationFix, 0, len(body.Locations))
	for _, loc := range body.Locations {
		if loc.Timestamp == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing timestamp"})
			return
		}
		ts, err := timefmt.Parse(loc.Timestamp)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid timestamp"})
			return
		}
		if loc.Latitude == nil || loc.Longitude == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing coordinates"})
			return
		}
		fixes = append(fixes, service.LocationFix{
			Timestamp: ts,
			Latitude:  *loc.Latitude,
			Longitude: *loc.Longitude,
		})
	}

	if err := h.Locations.SubmitFixes(c.Request.Context(), body.SessionID, fixes); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

// Package httpapi exposes the service layer over HTTP with gin, keeping the
// original URL shape and JSON field names of the wire protocol.
package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/statuskit/statusd/internal/errs"
)

// requireJSON rejects non-JSON bodies with 415 before any work happens.
func requireJSON(c *gin.Context) bool {
	ct := c.GetHeader("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		c.AbortWithStatus(http.StatusUnsupportedMediaType)
		return false
	}
	return true
}

// writeError maps service errors onto the wire taxonomy. Authentication and
// authorization failures all collapse to a bare 403.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errs.ErrInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, errs.ErrForbidden),
		errors.Is(err, errs.ErrDeviceConflict),
		errors.Is(err, errs.ErrDuplicateNonce):
		c.Status(http.StatusForbidden)
	case errors.Is(err, errs.ErrNotFound):
		c.Status(http.StatusNotFound)
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

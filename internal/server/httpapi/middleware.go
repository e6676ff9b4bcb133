package httpapi

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/statuskit/statusd/internal/hmacsig"
	"github.com/statuskit/statusd/internal/model"
	"github.com/statuskit/statusd/internal/service"
)

const callerContextKey = "caller"

// CallerFromContext returns the identity established by RequireHMAC.
func CallerFromContext(c *gin.Context) (*model.Identity, bool) {
	v, ok := c.Get(callerContextKey)
	if !ok {
		return nil, false
	}
	ident, ok := v.(*model.Identity)
	return ident, ok && ident != nil
}

// RequireHMAC verifies the request signature against the credential of the
// :global_id path owner and stashes the caller identity in the context. The
// body is buffered and restored so handlers can still bind it.
func RequireHMAC(auth service.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body []byte
		if c.Request.Body != nil {
			b, err := io.ReadAll(c.Request.Body)
			if err != nil {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
			body = b
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}

		h := hmacsig.Headers{
			Authorization: c.GetHeader(hmacsig.HeaderAuthorization),
			ContentMD5:    c.GetHeader(hmacsig.HeaderContentMD5),
			Nonce:         c.GetHeader(hmacsig.HeaderNonce),
		}
		ident, err := auth.Verify(c.Request.Context(), c.Param("global_id"),
			c.Request.Method, c.Request.URL.Path, body, h)
		if err != nil {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}

		c.Set(callerContextKey, ident)
		c.Next()
	}
}

// RequestLogger logs one line per request.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/statuskit/statusd/internal/service"
)

// Deps carries everything the router needs.
type Deps struct {
	Logger      *zap.Logger
	Auth        service.Authenticator
	Access      service.AccessService
	Permissions service.PermissionService
	Statuses    service.StatusService
	Messages    service.MessageService
	Locations   service.LocationService
}

// NewRouter builds the gin engine with the full route table. Enrollment and
// location submission are the only endpoints outside the HMAC group:
// enrollment bootstraps the credential the signature needs, and location
// fixes are authenticated by their session ID.
func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(deps.Logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	accessHandler := &AccessHandler{Access: deps.Access}
	r.POST("/access", accessHandler.Enroll)
	r.DELETE("/access", accessHandler.Revoke)

	locationHandler := &LocationHandler{Locations: deps.Locations}
	r.POST("/location", locationHandler.SubmitFixes)

	signed := r.Group("/:global_id")
	signed.Use(RequireHMAC(deps.Auth))

	permissionHandler := &PermissionHandler{Permissions: deps.Permissions}
	signed.GET("/permission", permissionHandler.List)
	signed.POST("/permission", permissionHandler.Create)
	signed.DELETE("/permission", permissionHandler.Delete)

	statusHandler := &StatusHandler{Statuses: deps.Statuses}
	signed.GET("/status", statusHandler.Read)
	signed.POST("/status", statusHandler.Publish)
	signed.GET("/history", statusHandler.History)

	messageHandler := &MessageHandler{Messages: deps.Messages}
	signed.GET("/message", messageHandler.Receive)
	signed.POST("/message", messageHandler.Send)

	signed.POST("/location_session", locationHandler.StartSession)
	signed.DELETE("/location_session", locationHandler.EndSession)

	return r
}

package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/infrastructure/logger"
	"github.com/procurement/backend/internal/interfaces/http/dto"
)

// Actor headers. Authentication happens in front of the service; the gateway
// forwards the resolved identity.
const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"

	// RoleAdmin is the X-Actor-Role value that unlocks the admin gates
	RoleAdmin = "admin"

	actorKey = "actor"
)

// Actor resolves the acting user from the actor headers. Requests without an
// actor get 401; a malformed id gets 400.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderActorID))
		if raw == "" {
			abortWithError(c, dto.ErrCodeActorRequired, HeaderActorID+" header is required")
			return
		}
		id, err := uuid.Parse(raw)
		if err != nil || id == uuid.Nil {
			abortWithError(c, dto.ErrCodeBadRequest, HeaderActorID+" must be a UUID")
			return
		}

		actor := shared.NewActor(id)
		if strings.EqualFold(strings.TrimSpace(c.GetHeader(HeaderActorRole)), RoleAdmin) {
			actor = shared.NewAdmin(id)
		}
		c.Set(actorKey, actor)

		ctx, reqLogger := logger.WithActorID(c.Request.Context(), logger.FromGin(c), id.String())
		c.Set(logger.GinLoggerKey, reqLogger)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// ActorFrom returns the actor set by Actor
func ActorFrom(c *gin.Context) (shared.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return shared.Actor{}, false
	}
	actor, ok := v.(shared.Actor)
	return actor, ok
}

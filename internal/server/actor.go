package server

import (
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/rentbill/internal/actorcontext"
	obscontext "github.com/smallbiznis/rentbill/internal/observability/context"
)

const (
	HeaderActorID   = "X-Actor-Id"
	HeaderActorRole = "X-Actor-Role"
)

// RequireActor reads the caller asserted by the upstream gateway and puts it
// on the request context. The system role is reserved for background jobs.
func (s *Server) RequireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderActorID))
		role, ok := actorcontext.ParseRole(c.GetHeader(HeaderActorRole))
		if id == "" || !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if role == actorcontext.RoleSystem {
			AbortWithError(c, ErrForbidden)
			return
		}

		actor := actorcontext.Actor{ID: id, Role: role}
		ctx := actorcontext.WithActor(c.Request.Context(), actor)
		ctx = obscontext.WithActor(ctx, string(role), id)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (s *Server) authorize(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.authzSvc == nil {
			AbortWithError(c, ErrForbidden)
			return
		}
		if err := s.authzSvc.Authorize(c.Request.Context(), object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// ThrottleWrites applies the per-actor token bucket to tenant facing writes.
func (s *Server) ThrottleWrites() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}
		actor, _ := actorcontext.FromContext(c.Request.Context())
		res := s.limiter.Allow(c.Request.Context(), actor.Subject())
		if res.Limit > 0 {
			c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		}
		if !res.Allowed {
			if res.RetryAfter > 0 {
				c.Header("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
			}
			AbortWithError(c, ErrTooManyRequests)
			return
		}
		c.Next()
	}
}

package http

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/luminastudio/booking/internal/services/booking/authz"
	"github.com/luminastudio/booking/internal/services/booking/domain/session"
)

// actorContextKey stores the verified actor on the echo context.
const actorContextKey = "booking.actor"

// ActorAuth verifies the Bearer token on every request and stores the
// resulting actor on the context.
func ActorAuth(cfg authz.VerifierConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				token = header
			}
			actor, err := authz.VerifyActorToken(token, cfg)
			if err != nil {
				return writeError(c, err)
			}
			c.Set(actorContextKey, actor)
			return next(c)
		}
	}
}

// actorFrom retrieves the verified actor stored by ActorAuth.
func actorFrom(c echo.Context) session.Actor {
	actor, _ := c.Get(actorContextKey).(session.Actor)
	return actor
}

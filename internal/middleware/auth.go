package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/medbook/booking-api/internal/model"
	"github.com/medbook/booking-api/pkg/errors"
	"github.com/medbook/booking-api/pkg/httputil"
)

const ContextPrincipal = "principal"

// TokenValidator turns a bearer token into the calling principal.
type TokenValidator interface {
	Validate(token string) (model.Principal, error)
}

type AuthMiddleware struct {
	tokens TokenValidator
}

func NewAuthMiddleware(tokens TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Authenticate verifies the bearer token and stores the principal in the
// context. Browsers cannot set headers on WebSocket upgrades, so a "token"
// query parameter is accepted as well.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if header := c.GetHeader("Authorization"); header != "" {
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				httputil.RespondWithError(c, errors.Unauthorized(nil))
				return
			}
			token = parts[1]
		}
		if token == "" {
			httputil.RespondWithError(c, errors.Unauthorized(nil))
			return
		}

		principal, err := m.tokens.Validate(token)
		if err != nil {
			httputil.RespondWithError(c, errors.Unauthorized(err))
			return
		}
		c.Set(ContextPrincipal, principal)
		c.Next()
	}
}

// RequireRole lets through principals holding one of roles.
func RequireRole(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := PrincipalFrom(c)
		if !ok {
			httputil.RespondWithError(c, errors.Unauthorized(nil))
			return
		}
		for _, r := range roles {
			if principal.Is(r) {
				c.Next()
				return
			}
		}
		httputil.RespondWithError(c, errors.Forbidden("role %s may not access this resource", principal.Role))
	}
}

func PrincipalFrom(c *gin.Context) (model.Principal, bool) {
	v, ok := c.Get(ContextPrincipal)
	if !ok {
		return model.Principal{}, false
	}
	p, ok := v.(model.Principal)
	return p, ok
}

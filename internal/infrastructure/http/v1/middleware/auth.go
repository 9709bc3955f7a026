package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"sheetbridge/internal/core/apperror"
	appctx "sheetbridge/internal/core/context"
	"sheetbridge/internal/core/security"
)

// TokenValidator interface for token validation.
type TokenValidator interface {
	ValidateToken(tokenString string) (*appctx.Caller, error)
}

// Auth middleware validates bearer tokens and populates the caller context.
func Auth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			abortUnauthorized(c, "invalid authorization header format")
			return
		}

		caller, err := validator.ValidateToken(parts[1])
		if err != nil {
			abortUnauthorized(c, "invalid token")
			return
		}

		ctx := appctx.WithCaller(c.Request.Context(), caller)
		c.Request = c.Request.WithContext(ctx)
		c.Set("subject", caller.Subject)

		c.Next()
	}
}

// RequireScope rejects callers whose token does not grant scope.
// It is a no-op for unauthenticated servers, where no caller is ever set.
func RequireScope(enabled bool, scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled {
			c.Next()
			return
		}
		if !security.Allows(appctx.GetCaller(c.Request.Context()), scope) {
			_ = c.Error(apperror.NewUnauthorized("token does not grant this operation").
				WithDetail("required_scope", scope))
			c.Abort()
			return
		}
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	_ = c.Error(apperror.NewUnauthorized(message))
	c.Abort()
}

package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/unitir-dev/syllabus-api/internal/service"
	"github.com/unitir-dev/syllabus-api/internal/session"
	appErrors "github.com/unitir-dev/syllabus-api/pkg/errors"
	"github.com/unitir-dev/syllabus-api/pkg/response"
)

// ContextUserKey is the gin context key storing the authenticated user.
const ContextUserKey = "currentUser"

// ContextTokenKey is the gin context key storing the raw access token.
const ContextTokenKey = "accessToken"

// loginRedirectMeta points clients at the login view on every gate refusal.
var loginRedirectMeta = map[string]interface{}{"redirect": "/login"}

// Authenticate protects routes behind the access gate. The token signature is
// verified first, then the session record behind the token; either failure
// sends the caller back to login. The gate decision is made fresh on every
// request.
func Authenticate(authService *service.AuthService, gate *session.Gate, metrics *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			metrics.ObserveSessionLookup("redirect")
			redirectLogin(c)
			return
		}

		if _, err := authService.ValidateToken(token); err != nil {
			metrics.ObserveSessionLookup("redirect")
			redirectLogin(c)
			return
		}

		decision, user := gate.Authorize(c.Request.Context(), token, "")
		if decision != session.DecisionAllow {
			metrics.ObserveSessionLookup("redirect")
			redirectLogin(c)
			return
		}

		metrics.ObserveSessionLookup("allow")
		c.Set(ContextUserKey, user)
		c.Set(ContextTokenKey, token)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

func redirectLogin(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(appErrors.ErrSessionExpired.Status, response.Envelope{
		Error: appErrors.ErrSessionExpired,
		Meta:  loginRedirectMeta,
	})
	c.Abort()
}

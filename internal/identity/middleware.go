package identity

import (
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/SlpAus/trailhead-backend/internal/platform/respond"
	"github.com/SlpAus/trailhead-backend/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	// UserIDKey is the gin context key holding the authenticated user id.
	UserIDKey = "userID"

	// ServiceKeyHeader carries the shared key of a trusted backend service.
	ServiceKeyHeader = "X-Service-Key"

	bearerPrefix = "Bearer "
)

// Middleware reads the bearer token and puts its subject into the gin context.
// A missing or invalid token leaves the user id empty; handlers decide whether that is an error.
func Middleware(verifier *Verifier, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if strings.HasPrefix(header, bearerPrefix) {
			userID, err := verifier.Verify(strings.TrimPrefix(header, bearerPrefix))
			if err != nil {
				log.WithError(err).Debug("rejected bearer token")
			} else {
				c.Set(UserIDKey, userID)
			}
		}
		c.Next()
	}
}

// UserID returns the authenticated user id, or "" when the request is anonymous.
func UserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}

// RequireServiceKey admits only requests carrying key in ServiceKeyHeader.
// With an empty key every request is refused.
func RequireServiceKey(key string, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(ServiceKeyHeader)
		if key == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			log.WithField("path", c.FullPath()).Debug("rejected request without a valid service key")
			respond.Error(c, fmt.Errorf("%w: service key required", store.ErrForbidden))
			c.Abort()
			return
		}
		c.Next()
	}
}

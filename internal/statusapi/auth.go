package statusapi

import (
	"crypto/subtle"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware validates bearer tokens against STATUSAPI_AUTH_TOKEN. If
// the env var is unset, every request is allowed (dev mode). It sits only
// in front of the mutating cancel endpoint; the read-only routes stay open.
func AuthMiddleware() gin.HandlerFunc {
	token := os.Getenv("STATUSAPI_AUTH_TOKEN")

	if token == "" && os.Getenv("GIN_MODE") == "release" {
		log.Println("[statusapi] STATUSAPI_AUTH_TOKEN is not set in release mode; " +
			"the cancel endpoint is publicly accessible. Set STATUSAPI_AUTH_TOKEN to enforce authentication.")
	}

	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}

		auth := c.GetHeader("Authorization")
		if auth == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "missing Authorization header",
				"hint":  "Use: Authorization: Bearer <STATUSAPI_AUTH_TOKEN>",
			})
			c.Abort()
			return
		}

		parts := strings.SplitN(auth, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusForbidden, gin.H{"error": "invalid Authorization header format"})
			c.Abort()
			return
		}

		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(token)) != 1 {
			c.JSON(http.StatusForbidden, gin.H{"error": "invalid or expired token"})
			c.Abort()
			return
		}

		c.Next()
	}
}

package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/masa162/imgbase/internal/config"
	"github.com/masa162/imgbase/internal/security"
)

const defaultRealm = "imgbase"

// BasicAuth guards a route group with a single static credential pair.
// Requests without usable credentials get 401 before the configuration is
// consulted; a server without configured credentials answers 503.
func BasicAuth(cfg config.AuthConfig) gin.HandlerFunc {
	realm := cfg.Realm
	if realm == "" {
		realm = defaultRealm
	}
	challenge := fmt.Sprintf(`Basic realm="%s", charset="UTF-8"`, realm)

	return func(c *gin.Context) {
		username, password, ok := security.ParseBasicAuth(c.GetHeader("Authorization"))
		if !ok || username == "" || password == "" {
			unauthorized(c, challenge)
			return
		}

		if cfg.Username == "" || cfg.Password == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error":   "ServerMisconfigured",
				"message": "Basic auth credentials are not configured",
			})
			return
		}

		if !security.CheckCredentials(username, password, cfg.Username, cfg.Password) {
			unauthorized(c, challenge)
			return
		}

		c.Next()
	}
}

func unauthorized(c *gin.Context, challenge string) {
	c.Header("WWW-Authenticate", challenge)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
}

// Package middleware contains Gin middleware functions.
// Middleware in Gin is a handler that runs before (or after) your route handler.
// It calls c.Next() to proceed or c.Abort() to stop the chain.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ContextKeyAPIKey is where the auth middleware stores the accepted key.
const ContextKeyAPIKey = "api_key"

// requestKey reads the key from the X-API-Key header or the api_key query
// param (the capture agent and <img> tags can only use the latter).
func requestKey(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	return c.Query("api_key")
}

func keySet(keys []string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k != "" {
			set[k] = struct{}{}
		}
	}
	return set
}

// IngestKeyAuth guards the ingest endpoint. With no keys configured the
// service runs open, which is the normal single-user local setup.
//
// Go closures: the returned handler captures `valid` and keeps it for the
// life of the router.
func IngestKeyAuth(keys []string) gin.HandlerFunc {
	valid := keySet(keys)

	return func(c *gin.Context) {
		if len(valid) == 0 {
			c.Next()
			return
		}

		key := requestKey(c)
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing API key",
			})
			return
		}
		if _, ok := valid[key]; !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid API key",
			})
			return
		}

		c.Set(ContextKeyAPIKey, key)
		c.Next()
	}
}

// AdminKeyAuth guards the admin endpoints. Same pass-through rule as
// IngestKeyAuth, but a wrong key is a 403.
func AdminKeyAuth(keys []string) gin.HandlerFunc {
	valid := keySet(keys)

	return func(c *gin.Context) {
		if len(valid) == 0 {
			c.Next()
			return
		}

		key := requestKey(c)
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing admin API key",
			})
			return
		}
		if _, ok := valid[key]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "invalid admin API key",
			})
			return
		}

		c.Set(ContextKeyAPIKey, key)
		c.Next()
	}
}

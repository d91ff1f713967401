package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ecomfin/backend/internal/infrastructure/config"
)

// CORS applies the configured cross-origin policy. An empty origin list
// allows any origin, which is the development default.
func CORS(cfg config.HTTPConfig) gin.HandlerFunc {
	allowAll := len(cfg.CORSAllowOrigins) == 0
	origins := make(map[string]bool, len(cfg.CORSAllowOrigins))
	for _, o := range cfg.CORSAllowOrigins {
		origins[o] = true
	}

	methods := strings.Join(cfg.CORSAllowMethods, ", ")
	if methods == "" {
		methods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	}
	headers := strings.Join(cfg.CORSAllowHeaders, ", ")
	if headers == "" {
		headers = "Authorization, Content-Type"
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			switch {
			case allowAll:
				c.Header("Access-Control-Allow-Origin", "*")
			case origins[origin]:
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
			}
			c.Header("Access-Control-Allow-Methods", methods)
			c.Header("Access-Control-Allow-Headers", headers)
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// BodyLimit rejects request bodies larger than the configured maximum
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 && c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"success": false,
				"error":   gin.H{"code": "ERR_BODY_TOO_LARGE", "message": "Request body exceeds the allowed size"},
			})
			return
		}
		if maxBytes > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	apperrors "fundledger/internal/errors"
)

// PipelineKey is set on the context once a request passed the API key check.
const PipelineKey = "pipeline"

// PipelineAuthMiddleware guards machine endpoints with the X-API-Key header.
// An empty configured key disables the endpoints entirely.
func PipelineAuthMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			WriteError(c, apperrors.ErrPipelineNotConfigured)
			return
		}
		key := c.GetHeader("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) != 1 {
			Logger(c).Warnw("pipeline key rejected",
				"client_ip", c.ClientIP(),
				"path", c.Request.URL.Path,
				"key_present", key != "",
			)
			WriteError(c, apperrors.ErrInvalidAPIKey)
			return
		}
		c.Set(PipelineKey, true)
		c.Next()
	}
}

package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/physio-api/internal/model"
)

// RequestInfo records the client address and agent so audit entries can be
// attributed even before authentication.
func RequestInfo() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := model.WithRequestInfo(c.Request.Context(), model.RequestInfo{
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/physio-api/pkg/httputil"
)

// SizeLimit rejects declared bodies over maxBytes and caps reads of the rest.
func SizeLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes <= 0 {
			c.Next()
			return
		}
		if c.Request.ContentLength > maxBytes {
			abort(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", maxBytes))
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// abort writes the standard error envelope for statuses outside the AppError codes.
func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, httputil.Response{
		Success:   false,
		Message:   message,
		Timestamp: timeNow().UTC(),
	})
}

package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/physio-api/internal/handler"
)

// ErrorHandler enables debug error detail outside production and formats
// errors attached to the context that no handler responded to.
func ErrorHandler(debug bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(handler.DebugKey, debug)
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		handler.RespondError(c, c.Errors.Last().Err)
	}
}

package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
)

// Recovery turns a handler panic into a 500 INTERNAL_ERROR response.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if p := recover(); p != nil {
				slog.Error("handler panicked", "path", c.Request.URL.Path, "panic", p, "stack", string(debug.Stack()))
				abort(c, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
			}
		}()
		c.Next()
	}
}

package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"ClpWatch/pkg/logger"

	"github.com/labstack/echo/v4"
)

// envelope mirrors the API response shape; this package cannot import pkg/http.
func envelope(status int) map[string]interface{} {
	return map[string]interface{}{"status": status, "message": http.StatusText(status)}
}

// Recover turns handler panics into a logged 500.
func Recover(l *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			defer func() {
				if r := recover(); r != nil {
					err, ok := r.(error)
					if !ok {
						err = fmt.Errorf("%v", r)
					}
					l.Error("panic in handler",
						logger.String("path", c.Path()),
						logger.Error(err),
						logger.String("stack", string(debug.Stack())))
					_ = c.JSON(http.StatusInternalServerError, envelope(http.StatusInternalServerError))
				}
			}()
			return next(c)
		}
	}
}

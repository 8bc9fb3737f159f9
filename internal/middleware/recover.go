package middleware

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Recover turns a handler panic into a logged 500 response.
func Recover(log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				re := recover()
				if re == nil {
					return
				}
				if re == http.ErrAbortHandler {
					panic(re)
				}
				perr, ok := re.(error)
				if !ok {
					perr = fmt.Errorf("%v", re)
				}
				stack := make([]byte, 4<<10)
				stack = stack[:runtime.Stack(stack, false)]
				log.Error("panic recovered",
					zap.String("request_id", RequestID(c)),
					zap.String("path", c.Request().URL.Path),
					zap.Error(perr),
					zap.ByteString("stack", stack))
				if c.Response().Committed {
					err = nil
					return
				}
				err = c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
			}()
			return next(c)
		}
	}
}

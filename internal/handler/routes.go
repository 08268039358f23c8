package handler

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes wires all route handlers onto the Echo instance. Any method
// other than GET or POST finds no handler and is answered with 405.
func RegisterRoutes(e *echo.Echo, keys *KeyHandler) {
	e.GET("/", keys.Welcome)
	e.GET("/*", keys.Get)

	e.POST("/", keys.Put)
	e.POST("/*", keys.Put)
}

package httpserver

import (
	"log/slog"

	"github.com/labstack/echo/v4"

	"github.com/daypage/backend/internal/handlers"
	"github.com/daypage/backend/internal/logging"
	"github.com/daypage/backend/internal/middleware/auth"
)

type Deps struct {
	AuthHandler   *handlers.AuthHandler
	PageHandler   *handlers.PageHandler
	FileHandler   *handlers.FileHandler
	UserHandler   *handlers.UserHandler
	SearchHandler *handlers.SearchHandler
	Guard         *auth.Guard
	Logger        *slog.Logger
}

// requestLogger stashes a request-scoped logger in the request context so
// handlers can log with the request id attached.
func requestLogger(base *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			l := base
			if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
				l = l.With("request_id", id)
			}
			ctx := logging.IntoContext(c.Request().Context(), l)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func Register(e *echo.Echo, d *Deps) {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	e.Use(requestLogger(logger))

	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	v1 := e.Group("/api/v1")

	v1.POST("/signup", d.AuthHandler.SignUp)
	v1.POST("/signin", d.AuthHandler.SignIn)
	v1.POST("/refresh", d.AuthHandler.Refresh)
	v1.POST("/request-email-verification", d.AuthHandler.RequestEmailVerification)
	v1.GET("/verify-email", d.AuthHandler.VerifyEmail)
	v1.POST("/verify-code", d.AuthHandler.VerifyCode)

	pages := v1.Group("/pages", d.Guard.RequireLogin)

	pages.POST("", d.PageHandler.CreatePage)
	pages.GET("", d.PageHandler.ListPages)
	pages.GET("/calendar-view", d.PageHandler.CalendarView)
	pages.GET("/:id", d.PageHandler.GetPage)
	pages.PUT("/:id", d.PageHandler.UpdatePage)
	pages.DELETE("/:id", d.PageHandler.DeletePage)

	files := v1.Group("/files", d.Guard.RequireLogin)

	files.POST("", d.FileHandler.Upload)
	files.GET("/:id", d.FileHandler.Download)
	files.DELETE("/:id", d.FileHandler.Delete)

	v1.GET("/search", d.SearchHandler.Handler, d.Guard.RequireLogin)

	admin := v1.Group("/users", d.Guard.RequireAdmin)

	admin.DELETE("/:id", d.UserHandler.DeleteUser)
}

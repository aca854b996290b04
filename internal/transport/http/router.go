package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"

	"github.com/LuSiTao8579/lovejoy-secure-app/internal/handlers"
	"github.com/LuSiTao8579/lovejoy-secure-app/internal/middleware/auth"
	"github.com/LuSiTao8579/lovejoy-secure-app/internal/middleware/csrf"
	"github.com/LuSiTao8579/lovejoy-secure-app/internal/session"
)

type Deps struct {
	DB            *gorm.DB
	Sessions      *session.Manager
	PageHandler   *handlers.PageHandler
	AuthHandler   *handlers.AuthHandler
	EvalHandler   *handlers.EvalHandler
	SearchHandler *handlers.SearchHandler
	UploadDir     string
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	e.Use(csrf.Middleware(d.Sessions, csrf.Config{}))
	guard := &auth.Guard{Sessions: d.Sessions}

	e.GET("/", d.PageHandler.Index)

	e.GET("/register", d.AuthHandler.RegisterPage)
	e.POST("/register", d.AuthHandler.Register)
	e.GET("/login", d.AuthHandler.LoginPage)
	e.POST("/login", d.AuthHandler.Login)
	e.GET("/logout", d.AuthHandler.Logout)
	e.GET("/forgot-password", d.AuthHandler.ForgotPasswordPage)
	e.POST("/forgot-password", d.AuthHandler.ForgotPassword)
	e.GET("/reset-password", d.AuthHandler.ResetPasswordPage)
	e.POST("/reset-password", d.AuthHandler.ResetPassword)

	e.GET("/request-eval", d.EvalHandler.RequestEvalPage, guard.RequireLogin)
	// uploads are capped before the handler ever sees the body
	e.POST("/request-eval", d.EvalHandler.SubmitRequest, guard.RequireLogin, middleware.BodyLimit("2M"))

	admin := e.Group("/admin", guard.RequireAdmin)
	admin.GET("/requests", d.EvalHandler.AdminRequests)
	admin.GET("/requests/search", d.SearchHandler.Search)

	e.Static("/uploads", d.UploadDir)
}

package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-booking/internal/middleware"
	"github.com/iliyamo/tour-booking/internal/model"
)

func registerUsers(api *echo.Group, d Deps) {
	g := api.Group("/users")
	g.POST("/signup", d.Auth.Signup)
	g.POST("/login", d.Auth.Login)
	g.POST("/forgotPassword", d.Auth.ForgotPassword)
	g.PATCH("/resetPassword/:token", d.Auth.ResetPassword)

	g.PATCH("/updateMyPassword", d.Auth.UpdatePassword, d.Protect)
	g.GET("/me", d.Users.Me, d.Protect)
	g.PATCH("/updateMe", d.Users.UpdateMe, d.Protect)
	g.DELETE("/deleteMe", d.Users.DeleteMe, d.Protect)

	admin := []echo.MiddlewareFunc{d.Protect, middleware.RestrictTo(model.RoleAdmin)}
	g.GET("", d.Users.GetAll, admin...)
	g.POST("", d.Users.Create, admin...)
	g.GET("/:id", d.Users.GetOne, admin...)
	g.PATCH("/:id", d.Users.Update, admin...)
	g.DELETE("/:id", d.Users.Delete, admin...)
}

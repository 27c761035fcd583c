package api

import (
	"github.com/gin-contrib/cors"
	"github.com/wb-go/wbf/ginext"

	"ticketbooth/cmd/middleware"
	"ticketbooth/internal/service"
)

type Routers struct {
	Service service.Service
}

func NewRouters(r *Routers) *ginext.Engine {
	app := ginext.New("release")

	app.Use(middleware.LoggingMiddleware())
	app.Use(cors.Default())
	apiGroup := app.Group("/v1")

	apiGroup.GET("/register", r.Service.ShowTicketForm)
	apiGroup.GET("/register/:type", r.Service.ShowOtherForm)
	apiGroup.POST("/register", r.Service.Register)

	apiGroup.GET("/payment/:uuid", r.Service.ShowPayment)
	apiGroup.POST("/payment/callback", r.Service.PaymentCallback)

	apiGroup.GET("/attendees/search", r.Service.SearchAttendee)
	apiGroup.GET("/attendees/:uuid/verify", r.Service.VerifyAttendee)
	apiGroup.POST("/attendees/:uuid/attend", r.Service.ApproveAttendance)

	apiGroup.POST("/profile/link", r.Service.RequestUpdateLink)
	apiGroup.POST("/profile/signin", r.Service.SignIn)
	apiGroup.GET("/profile/:code", r.Service.ShowProfileForm)
	apiGroup.POST("/profile/:code", r.Service.UpdateProfile)

	return app
}

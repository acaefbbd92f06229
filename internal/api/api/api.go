package api

import (
	"github.com/gin-contrib/cors"
	"github.com/wb-go/wbf/ginext"

	"eventregis/cmd/middleware"
	"eventregis/internal/service"
)

type Routers struct {
	Service service.Service
}

func NewRouters(r *Routers) *ginext.Engine {
	app := ginext.New("release")

	app.Use(middleware.LoggingMiddleware())
	app.Use(cors.Default())
	apiGroup := app.Group("/v1")

	apiGroup.POST("/auth/token", r.Service.IssuePublicToken)

	apiGroup.POST("/events", r.Service.CreateEvent)
	apiGroup.GET("/events", r.Service.GetAllEvents)
	apiGroup.GET("/events/:id", r.Service.GetEvent)
	apiGroup.PUT("/events/:id", r.Service.UpdateEvent)
	apiGroup.POST("/events/:id/close", r.Service.ToggleRegisClosed)
	apiGroup.POST("/events/:id/sync", r.Service.SyncRegistered)

	apiGroup.POST("/events/:id/register", r.Service.Register)
	apiGroup.POST("/events/:id/eligibility", r.Service.CheckEligibility)
	apiGroup.GET("/events/:id/participants", r.Service.GetParticipants)
	apiGroup.DELETE("/events/:id/participants/:pid", r.Service.DeleteParticipant)

	return app
}

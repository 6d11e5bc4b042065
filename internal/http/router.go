package http

import (
	"log/slog"
	"time"

	"github.com/geocoder89/clubevents/internal/http/handlers"
	"github.com/geocoder89/clubevents/internal/http/middlewares"
	"github.com/geocoder89/clubevents/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const defaultMaxBodyBytes = 1 << 20

// Service is everything the routes call on the lifecycle engine.
type Service interface {
	handlers.EventsService
	handlers.RegistrationService
}

type RouterDeps struct {
	Env         string
	ServiceName string
	Log         *slog.Logger
	Service     Service

	// Checks feed /readyz; the key names the dependency.
	Checks map[string]handlers.Check

	Prom     *observability.Prom
	Gatherer prometheus.Gatherer

	CORSAllowedOrigins []string
	RateLimitPerMinute int
	MaxBodyBytes       int64
}

func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Env != "dev" && deps.Env != "development" && deps.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}
	if deps.MaxBodyBytes <= 0 {
		deps.MaxBodyBytes = defaultMaxBodyBytes
	}
	if deps.ServiceName == "" {
		deps.ServiceName = "clubevents-api"
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(deps.ServiceName))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(deps.Log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(deps.CORSAllowedOrigins))
	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
	}

	// probes and docs stay outside the rate limit
	h := handlers.NewHealthHandler(deps.Checks)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}
	r.GET("/docs", handlers.SwaggerUI)
	r.GET("/docs/openapi.yaml", handlers.OpenAPISpec)

	limiter := middlewares.NewRateLimiter(deps.RateLimitPerMinute, time.Minute)

	api := r.Group("/")
	api.Use(limiter.RateLimiterMiddleware(middlewares.KeyByIP))
	api.Use(middlewares.RequireJSON())
	api.Use(middlewares.MaxBodyBytes(deps.MaxBodyBytes))

	eventsHandler := handlers.NewEventsHandler(deps.Service)
	registrationHandler := handlers.NewRegistrationHandler(deps.Service)

	api.POST("/events", eventsHandler.CreateEvent)
	api.GET("/events", eventsHandler.ListEvents)
	api.GET("/events/:id", eventsHandler.GetEventByID)
	api.PATCH("/events/:id", eventsHandler.EditEvent)
	api.DELETE("/events/:id", eventsHandler.DeleteEvent)

	api.POST("/events/:id/publish", eventsHandler.PublishEvent)
	api.POST("/events/:id/postpone", eventsHandler.PostponeEvent)
	api.POST("/events/:id/announce", eventsHandler.AnnounceEvent)
	api.POST("/events/:id/cancel", eventsHandler.CancelEvent)

	api.POST("/events/:id/registrations", registrationHandler.Register)
	api.GET("/events/:id/registrations", registrationHandler.ListForEvent)

	return r
}

package http

import (
	"log/slog"

	"github.com/geocoder89/linguadesk/internal/auth"
	"github.com/geocoder89/linguadesk/internal/config"
	"github.com/geocoder89/linguadesk/internal/http/handlers"
	"github.com/geocoder89/linguadesk/internal/http/middlewares"
	"github.com/geocoder89/linguadesk/internal/observability"
	"github.com/geocoder89/linguadesk/internal/share"
	"github.com/geocoder89/linguadesk/internal/translate"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Users is the account store behind /auth.
type Users interface {
	handlers.UserReader
	handlers.UserWriter
}

// Deps are the stores and services the routes run on. cmd/api builds them
// from postgres and redis; tests build them from the memory stores.
type Deps struct {
	Documents  handlers.DocumentStore
	Shares     *share.Resolver
	Meetings   handlers.MeetStore
	Users      Users
	Translator translate.Translator
	JWT        *auth.Manager
	Prom       *observability.Prom
	Gatherer   prometheus.Gatherer
	Checks     map[string]handlers.Pinger
}

func NewRouter(log *slog.Logger, deps Deps, cfg config.Config) *gin.Engine {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// middleware
	r.Use(gin.Recovery())
	if cfg.OTelEnabled {
		r.Use(otelgin.Middleware("linguadesk-api"))
	}
	r.Use(middlewares.RequestID())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.CORSAllowedOrigins))
	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.RequestLogger(log))
	r.Use(middlewares.MaxBodyBytes(cfg.MaxBodyBytes))
	r.Use(middlewares.RequireJSON())

	// health
	h := handlers.NewHealthHandler(deps.Checks)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	authMW := middlewares.NewAuthMiddleware(deps.JWT)
	requireAuth := authMW.RequireAuth()

	publicLimiter := middlewares.NewRateLimiter(cfg.PublicRPS, cfg.PublicBurst)
	limitPublic := publicLimiter.RateLimiterMiddleware(middlewares.KeyByIP)

	// auth
	authHandler := handlers.NewAuthHandler(deps.Users, deps.Users, deps.JWT)
	r.POST("/auth/signup", limitPublic, authHandler.SignUp)
	r.POST("/auth/login", limitPublic, authHandler.Login)
	r.GET("/auth/me", requireAuth, authHandler.Me)

	// documents
	docsHandler := handlers.NewDocsHandler(deps.Documents, deps.Shares)
	sharedHandler := handlers.NewSharedHandler(deps.Shares)

	docs := r.Group("/docs")
	docs.GET("/shared/:token", limitPublic, sharedHandler.GetShared)
	docs.GET("", requireAuth, docsHandler.ListDocuments)
	docs.POST("", requireAuth, docsHandler.CreateDocument)
	docs.GET("/:id", requireAuth, docsHandler.GetDocument)
	docs.PUT("/:id", requireAuth, docsHandler.UpdateDocument)
	docs.DELETE("/:id", requireAuth, docsHandler.DeleteDocument)

	// meetings
	meetHandler := handlers.NewMeetHandler(deps.Meetings)
	r.POST("/meet", requireAuth, meetHandler.CreateSession)
	r.GET("/meet/:code", limitPublic, meetHandler.ResolveSession)

	// translation
	translateHandler := handlers.NewTranslateHandler(deps.Translator)
	r.POST("/translate", requireAuth, translateHandler.Translate)

	return r
}

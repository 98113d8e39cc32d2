package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/aeroreserva/flighthub/internal/auth"
	"github.com/aeroreserva/flighthub/internal/booking"
	"github.com/aeroreserva/flighthub/internal/cache"
	"github.com/aeroreserva/flighthub/internal/config"
	"github.com/aeroreserva/flighthub/internal/http/handlers"
	"github.com/aeroreserva/flighthub/internal/http/middlewares"
	"github.com/aeroreserva/flighthub/internal/observability"
	"github.com/aeroreserva/flighthub/internal/repo/postgres"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type Deps struct {
	Log   *slog.Logger
	Cfg   config.Config
	Pool  *pgxpool.Pool
	Prom  *observability.Prom
	PromR *prometheus.Registry
	Waker booking.Waker
}

func NewRouter(d Deps) *gin.Engine {
	if d.Cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("flighthub-api"))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(d.Log))

	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}

	// health

	ping := func() error {
		if d.Pool == nil {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		return d.Pool.Ping(ctx)
	}

	health := handlers.NewHealthHandler(ping)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)

	if d.PromR != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.PromR, promhttp.HandlerOpts{})))
	}

	// wire up repositories

	usersRepo := postgres.NewUsersRepo(d.Pool, d.Prom)
	flightsRepo := postgres.NewFlightsRepo(d.Pool, d.Prom)
	seats := postgres.NewSeatInventory(d.Pool, d.Prom)
	reservationsRepo := postgres.NewReservationsRepo(d.Pool, d.Prom)
	jobsRepo := postgres.NewJobsRepo(d.Pool, d.Prom)

	manager := booking.NewManager(flightsRepo, seats, reservationsRepo, jobsRepo, usersRepo).
		WithMetrics(d.Prom)

	if d.Waker != nil {
		manager = manager.WithWaker(d.Waker)
	}

	jwtManager := auth.NewManager(d.Cfg.JWTSecret, d.Cfg.TokenTTL)
	authMW := middlewares.NewAuthMiddleware(jwtManager, usersRepo)

	// the flight listing changes on every booking, so the TTL stays short
	flightCache := cache.New(5 * time.Second)

	authHandler := handlers.NewAuthHandler(usersRepo, jwtManager, d.Cfg)
	flightsHandler := handlers.NewFlightsHandler(flightsRepo, flightCache)
	reservationsHandler := handlers.NewReservationsHandler(manager, flightCache)

	loginLimiter := middlewares.NewRateLimiter(10, time.Minute)

	// auth routes

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/signup", loginLimiter.Middleware(middlewares.KeyByIP), authHandler.SignUp)
		authGroup.POST("/login", loginLimiter.Middleware(middlewares.KeyByIP), authHandler.Login)
		authGroup.POST("/logout", authHandler.Logout)
		authGroup.GET("/me", authMW.RequireAuth(), authHandler.Me)
	}

	// flight routes: browsing is public, managing is admin only

	r.GET("/flights", authMW.OptionalAuth(), authMW.ResolveAdmin(), flightsHandler.List)
	r.GET("/flights/:id", flightsHandler.Get)
	r.POST("/flights", authMW.RequireAuth(), authMW.RequireAdmin(), flightsHandler.Create)
	r.PATCH("/flights/:id/active", authMW.RequireAuth(), authMW.RequireAdmin(), flightsHandler.SetActive)

	// reservation routes: everything requires a session

	r.POST("/flights/:id/reservations", authMW.RequireAuth(), reservationsHandler.Create)

	reservations := r.Group("/reservations", authMW.RequireAuth())
	{
		reservations.GET("", reservationsHandler.List)
		reservations.GET("/:id", authMW.ResolveAdmin(), reservationsHandler.Get)
		reservations.POST("/:id/confirm-payment", reservationsHandler.ConfirmPayment)
		reservations.POST("/:id/cancel", reservationsHandler.Cancel)
	}

	return r
}

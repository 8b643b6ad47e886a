// Package server exposes the topic catalogue, executor statistics and a
// publish endpoint over HTTP.
package server

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nfrund/serialbus/internal/executor"
	mw "github.com/nfrund/serialbus/internal/middleware"
	"github.com/nfrund/serialbus/internal/pubsub"
	"github.com/nfrund/serialbus/internal/topicmgr"
)

// Deps are the components the admin server reads from and publishes into.
type Deps struct {
	Manager  *topicmgr.Manager
	Executor *executor.Executor
	Bridge   *pubsub.Bridge
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger

	// PublishRate limits publishes per client IP per second; zero disables it.
	PublishRate  float64
	PublishBurst int
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	E        *echo.Echo
	manager  *topicmgr.Manager
	exec     *executor.Executor
	bridge   *pubsub.Bridge
	gatherer prometheus.Gatherer
	logger   *slog.Logger
	limiter  echo.MiddlewareFunc
}

// New creates a Server with its routes registered.
func New(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewValidator()
	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(mw.Logger(deps.Logger))
	setupErrorHandling(e)

	s := &Server{
		E:        e,
		manager:  deps.Manager,
		exec:     deps.Executor,
		bridge:   deps.Bridge,
		gatherer: deps.Gatherer,
		logger:   deps.Logger,
		limiter:  mw.RateLimiter(deps.PublishRate, deps.PublishBurst),
	}
	s.RegisterRoutes()
	return s
}

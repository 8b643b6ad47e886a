package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nfrund/serialbus/internal/executor"
	mw "github.com/nfrund/serialbus/internal/middleware"
	"github.com/nfrund/serialbus/internal/topicmgr"
)

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	Executor executor.Stats        `json:"executor"`
	Topics   topicmgr.ManagerStats `json:"topics"`
}

// RegisterRoutes sets up all the application routes.
func (s *Server) RegisterRoutes() {
	s.E.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})

	s.E.GET("/topics", s.listTopics)
	s.E.GET("/topics/:name", s.getTopic)
	s.E.POST("/topics/:name/publish", s.publish, s.limiter)
	s.E.GET("/stats", s.stats)
	s.E.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
}

func (s *Server) listTopics(c echo.Context) error {
	entries := s.manager.List()
	if priority := c.QueryParam("priority"); priority != "" {
		entries = s.manager.ListByPriority(priority)
	}
	if entries == nil {
		entries = []topicmgr.RegistryEntry{}
	}
	return c.JSON(http.StatusOK, entries)
}

func (s *Server) getTopic(c echo.Context) error {
	entry, err := s.manager.Lookup(c.Param("name"))
	if err != nil {
		return topicError(err)
	}
	return c.JSON(http.StatusOK, entry)
}

func (s *Server) publish(c echo.Context) error {
	name := c.Param("name")
	if _, err := s.manager.Lookup(name); err != nil {
		return topicError(err)
	}
	if s.bridge == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "publishing is not enabled")
	}
	if !s.bridge.Forwarding(name) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "no forwarder attached for topic")
	}

	var req PublishRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	requestID := c.Response().Header().Get(echo.HeaderXRequestID)
	if err := s.bridge.Send(c.Request().Context(), name, req.Payload, map[string]string{"request_id": requestID}); err != nil {
		return err
	}

	mw.FromContext(c.Request().Context()).Info("Publish accepted", "topic", name)
	return c.JSON(http.StatusAccepted, PublishResponse{Status: "accepted", Topic: name, RequestID: requestID})
}

func (s *Server) stats(c echo.Context) error {
	return c.JSON(http.StatusOK, StatsResponse{
		Executor: s.exec.Stats(),
		Topics:   s.manager.GetStats(),
	})
}

func topicError(err error) error {
	if topicmgr.IsType(err, topicmgr.ErrorTopicNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return err
}

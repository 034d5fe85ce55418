package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vultisig/message-board/config"
	"github.com/vultisig/message-board/metrics"
	"github.com/vultisig/message-board/storage"
)

type Server struct {
	port    int64
	s       storage.Storage
	e       *echo.Echo
	metrics metrics.Recorder
}

// NewServer returns a new server with all routes registered. When reg is nil
// no metrics are collected and /metrics is not served.
func NewServer(cfg *config.Config, s storage.Storage, reg *prometheus.Registry) *Server {
	server := &Server{
		port:    cfg.Port,
		s:       s,
		e:       echo.New(),
		metrics: metrics.Nop{},
	}
	if reg != nil {
		server.metrics = metrics.NewCollector(reg)
	}
	server.setup(cfg, reg)
	return server
}

func parseLogLevel(level string) log.Lvl {
	switch strings.ToLower(level) {
	case "debug":
		return log.DEBUG
	case "warn":
		return log.WARN
	case "error":
		return log.ERROR
	case "off":
		return log.OFF
	default:
		return log.INFO
	}
}

func (s *Server) setup(cfg *config.Config, reg *prometheus.Registry) {
	e := s.e
	e.HideBanner = true
	e.Logger.SetLevel(parseLogLevel(cfg.LogLevel))
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	//enable cors
	e.Use(middleware.CORS())
	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}
	e.Use(middleware.ContextTimeoutWithConfig(middleware.ContextTimeoutConfig{
		Timeout: cfg.RequestTimeout,
	}))
	e.Use(s.recordMetrics)

	e.GET("/ping", s.Ping)
	if reg != nil {
		e.GET("/metrics", echo.WrapHandler(metrics.Handler(reg)))
	}

	messages := e.Group("/messages")
	messages.GET("", s.ListMessages)
	messages.POST("", s.CreateMessage)
	messages.GET("/:messageID", s.GetMessage)
	messages.PUT("/:messageID", s.UpdateMessage)
	messages.DELETE("/:messageID", s.DeleteMessage)

	users := e.Group("/users")
	users.POST("", s.CreateUser)
	users.GET("/:userID", s.GetUser)
	users.GET("/:userID/messages", s.ListUserMessages)
}

func (s *Server) recordMetrics(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		status := c.Response().Status
		if err != nil {
			status = http.StatusInternalServerError
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
		}
		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.RecordRequest(c.Request().Method, route, status, time.Since(start))
		return err
	}
}

func (s *Server) StartServer() error {
	return s.e.Start(fmt.Sprintf(":%d", s.port))
}

func (s *Server) StopServer() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	return s.e.Shutdown(ctx)
}

func (s *Server) Ping(c echo.Context) error {
	return c.String(http.StatusOK, "Message board is running")
}

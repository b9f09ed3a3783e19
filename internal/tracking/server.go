// Package tracking serves the application master's web surface: the status
// endpoint the RM's tracking URL points at, and Prometheus metrics.
package tracking

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/dtrain-ml/dtrain/appmaster/internal/config"
	"github.com/dtrain-ml/dtrain/appmaster/internal/rm/yarnrm"
	"github.com/dtrain-ml/dtrain/appmaster/internal/sproto"
)

// StatusSource is what the status endpoint reads from the container manager.
type StatusSource interface {
	Status() yarnrm.Status
}

// Server is the embedded tracking web server.
type Server struct {
	syslog   *logrus.Entry
	cfg      config.TrackingConfig
	echo     *echo.Echo
	status   StatusSource
	progress sproto.ProgressProvider
}

// New builds the server; Run starts serving.
func New(cfg config.TrackingConfig, status StatusSource, progress sproto.ProgressProvider) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		syslog:   logrus.WithField("component", "tracking-server"),
		cfg:      cfg,
		echo:     e,
		status:   status,
		progress: progress,
	}

	e.GET("/", s.root)
	e.GET("/api/v1/status", s.getStatus)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	return s
}

// Run serves until Shutdown. It returns http.ErrServerClosed on a clean
// shutdown.
func (s *Server) Run() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.syslog.Infof("serving tracking endpoint on %s", addr)
	return s.echo.Start(addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) root(c echo.Context) error {
	return c.Redirect(http.StatusFound, "/api/v1/status")
}

type statusResponse struct {
	yarnrm.Status
	Progress float32 `json:"progress"`
}

func (s *Server) getStatus(c echo.Context) error {
	resp := statusResponse{Status: s.status.Status()}
	if s.progress != nil {
		resp.Progress = s.progress.Progress()
	}
	return c.JSON(http.StatusOK, resp)
}

// Package internal wires the application master together.
package internal

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dtrain-ml/dtrain/appmaster/internal/blacklist"
	"github.com/dtrain-ml/dtrain/appmaster/internal/config"
	"github.com/dtrain-ml/dtrain/appmaster/internal/executors"
	"github.com/dtrain-ml/dtrain/appmaster/internal/progress"
	"github.com/dtrain-ml/dtrain/appmaster/internal/rm/amevents"
	"github.com/dtrain-ml/dtrain/appmaster/internal/rm/rmclient"
	"github.com/dtrain-ml/dtrain/appmaster/internal/rm/schedule"
	"github.com/dtrain-ml/dtrain/appmaster/internal/rm/yarnrm"
	"github.com/dtrain-ml/dtrain/appmaster/internal/roles"
	"github.com/dtrain-ml/dtrain/appmaster/internal/sproto"
	"github.com/dtrain-ml/dtrain/appmaster/internal/tracking"
)

// Master is the application master process.
type Master struct {
	syslog *logrus.Entry
	config *config.Config
}

// New creates an instance of the master.
func New(cfg *config.Config) *Master {
	return &Master{
		syslog: logrus.WithField("component", "master").
			WithField("app-id", cfg.ApplicationID),
		config: cfg,
	}
}

// Run builds every subsystem, starts the container manager, and blocks until
// the application reaches a terminal state or the context is canceled.
func (m *Master) Run(ctx context.Context) error {
	catalog := roles.FromConfig(m.config)
	tracker := blacklist.New(blacklist.DefaultTTL)
	prog := &progress.Manager{}
	execs := executors.New(catalog, prog)
	events := amevents.NewPublisher()

	manager := yarnrm.New(m.config, yarnrm.Dependencies{
		RM:        rmclient.New(m.config.ResourceManager.Endpoint),
		Roles:     catalog,
		Executors: execs,
		Chain:     schedule.DefaultChain(),
		Tracker:   tracker,
		Progress:  prog,
		Events:    events,
	})

	web := tracking.New(m.config.Tracking, manager, prog)
	go func() {
		if err := web.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.syslog.WithError(err).Error("tracking server failed")
		}
	}()
	defer func() {
		if err := web.Shutdown(context.Background()); err != nil {
			m.syslog.WithError(err).Warn("error shutting down tracking server")
		}
	}()

	sub := events.Subscribe()
	defer sub.Close()

	if err := manager.Start(ctx); err != nil {
		return err
	}
	defer manager.Stop()

	// Seed the priority bands from the configured roles; the first heartbeat
	// picks the demand up.
	manager.Handle(sproto.ContainerManagerEvent{Type: sproto.ContainerRequestCreated})

	for {
		select {
		case <-ctx.Done():
			m.syslog.Info("shutting down on signal")
			manager.Handle(sproto.ContainerManagerEvent{Type: sproto.GracefulShutdown})
			return ctx.Err()

		case ev := <-sub.C:
			switch ev := ev.(type) {
			case sproto.ExecutorKill:
				execs.Kill(ev.ID, false)
			case sproto.ExecutorKillForcibly:
				execs.Kill(ev.ID, true)
			case sproto.ContainerUpdated:
				m.syslog.Infof("container %s resized to %s",
					ev.Container.ID, ev.Container.Resource)
			case sproto.ApplicationSuccess:
				m.syslog.Infof("application finished: %s", ev.Message)
				return nil
			case sproto.FailAttempt:
				return errors.Errorf(
					"application attempt failed (exit %d): %s", ev.ExitCode, ev.Diagnostics)
			}
		}
	}
}

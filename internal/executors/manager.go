// Package executors tracks the executors bound to granted containers and
// derives the application's terminal state from them.
package executors

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/dtrain-ml/dtrain/appmaster/internal/progress"
	"github.com/dtrain-ml/dtrain/appmaster/internal/sproto"
	"github.com/dtrain-ml/dtrain/appmaster/pkg/cproto"
)

type state int

const (
	stateRunning state = iota
	stateSucceeded
	stateFailed
)

// executor is one container-bound worker process. Field access goes through
// the manager's mutex via the back-pointer.
type executor struct {
	m *Manager

	id        sproto.ExecutorID
	container cproto.Container
	state     state
	exitCode  int32
	exitMsg   string
}

// ExecutorID implements sproto.ExecutorHandle.
func (e *executor) ExecutorID() sproto.ExecutorID { return e.id }

// Container implements sproto.ExecutorHandle.
func (e *executor) Container() cproto.Container { return e.container }

// ExitCode implements sproto.ExecutorHandle.
func (e *executor) ExitCode() int32 {
	e.m.mu.Lock()
	defer e.m.mu.Unlock()
	return e.exitCode
}

// ExitMessage implements sproto.ExecutorHandle.
func (e *executor) ExitMessage() string {
	e.m.mu.Lock()
	defer e.m.mu.Unlock()
	return e.exitMsg
}

// Manager implements sproto.ExecutorManager over in-memory executor state.
type Manager struct {
	syslog   *logrus.Entry
	catalog  sproto.RoleCatalog
	progress *progress.Manager // optional

	mu          sync.Mutex
	seq         int
	byContainer map[string]*executor
}

// New builds an executor manager. progress may be nil.
func New(catalog sproto.RoleCatalog, prog *progress.Manager) *Manager {
	return &Manager{
		syslog:      logrus.WithField("component", "executor-manager"),
		catalog:     catalog,
		progress:    prog,
		byContainer: make(map[string]*executor),
	}
}

// Launch binds a freshly allocated container to a new executor.
func (m *Manager) Launch(c cproto.Container) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byContainer[c.ID.String()]; ok {
		m.syslog.Warnf("container %s already has an executor", c.ID)
		return nil
	}
	m.seq++
	e := &executor{
		m:         m,
		id:        sproto.ExecutorID(fmt.Sprintf("executor-%d", m.seq)),
		container: c,
	}
	m.byContainer[c.ID.String()] = e
	m.syslog.Infof("launched %s on container %s", e.id, c.ID)
	return nil
}

// GetExecutor implements sproto.ExecutorManager.
func (m *Manager) GetExecutor(containerID string) (sproto.ExecutorHandle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.byContainer[containerID]
	if !ok {
		return nil, false
	}
	return e, true
}

// HandleContainerReleased implements sproto.ExecutorManager.
func (m *Manager) HandleContainerReleased(c cproto.Container, exitStatus int32, diagnostics string) {
	m.mu.Lock()
	e, ok := m.byContainer[c.ID.String()]
	if !ok {
		m.mu.Unlock()
		m.syslog.Warnf("released container %s has no executor", c.ID)
		return
	}
	if e.state == stateRunning {
		if exitStatus == sproto.ContainerExitSuccess {
			e.state = stateSucceeded
		} else {
			e.state = stateFailed
		}
		e.exitCode = exitStatus
		e.exitMsg = diagnostics
	}
	m.mu.Unlock()

	m.syslog.
		WithField("executor", e.id).
		WithField("exit-status", exitStatus).
		WithField("diagnostics", diagnostics).
		Info("executor released")
	m.updateProgress()
}

// MarkExpired records that an executor stopped heartbeating before its
// container completed. The recorded exit is what the expiry event handler
// reports onward.
func (m *Manager) MarkExpired(containerID string, exitCode int32, exitMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.byContainer[containerID]
	if !ok || e.state != stateRunning {
		return
	}
	e.state = stateFailed
	e.exitCode = exitCode
	e.exitMsg = exitMsg
}

// Kill marks a running executor as terminated by the application master.
func (m *Manager) Kill(id sproto.ExecutorID, forcibly bool) {
	exitCode := int32(143) // SIGTERM
	if forcibly {
		exitCode = 137 // SIGKILL
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.byContainer {
		if e.id != id || e.state != stateRunning {
			continue
		}
		e.state = stateFailed
		e.exitCode = exitCode
		e.exitMsg = "killed by application master"
		m.syslog.Infof("killed %s (forcibly: %v)", id, forcibly)
		return
	}
}

// IsAllSuccess implements sproto.ExecutorManager: the configured demand has
// been met entirely by successful executors and nothing is still running.
func (m *Manager) IsAllSuccess() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	expected, running, succeeded, _ := m.countsLocked()
	return expected > 0 && running == 0 && succeeded >= expected
}

// IsAllCompleted implements sproto.ExecutorManager: every expected executor
// reached a terminal state, successful or not.
func (m *Manager) IsAllCompleted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	expected, running, succeeded, failed := m.countsLocked()
	return expected > 0 && running == 0 && succeeded+failed >= expected
}

func (m *Manager) countsLocked() (expected, running, succeeded, failed int) {
	for _, p := range m.catalog.Priorities() {
		if role, ok := m.catalog.RoleByPriority(p); ok {
			expected += role.Demand
		}
	}
	for _, e := range m.byContainer {
		switch e.state {
		case stateRunning:
			running++
		case stateSucceeded:
			succeeded++
		case stateFailed:
			failed++
		}
	}
	return expected, running, succeeded, failed
}

func (m *Manager) updateProgress() {
	if m.progress == nil {
		return
	}
	m.mu.Lock()
	expected, _, succeeded, _ := m.countsLocked()
	m.mu.Unlock()
	if expected > 0 {
		m.progress.Set(float32(succeeded) / float32(expected))
	}
}

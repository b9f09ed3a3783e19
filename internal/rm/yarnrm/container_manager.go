// Package yarnrm implements the application master's container manager: the
// allocate loop against the cluster resource manager, the container
// bookkeeping it maintains, and the shutdown machinery around both.
package yarnrm

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dtrain-ml/dtrain/appmaster/internal/config"
	"github.com/dtrain-ml/dtrain/appmaster/internal/rm/amevents"
	"github.com/dtrain-ml/dtrain/appmaster/internal/sproto"
	"github.com/dtrain-ml/dtrain/appmaster/pkg/cproto"
	"github.com/dtrain-ml/dtrain/appmaster/pkg/syncx/queue"
)

const registerMaxRetries = 4

// Dependencies are the container manager's external collaborators. Tracker
// is optional; Policy and Clock default when nil.
type Dependencies struct {
	RM        sproto.RMClient
	Roles     sproto.RoleCatalog
	Executors sproto.ExecutorManager
	Chain     sproto.ScheduleChain
	Tracker   sproto.BlacklistTracker
	Progress  sproto.ProgressProvider
	Events    *amevents.Publisher
	Policy    AllocationPolicy
	Clock     clockwork.Clock
}

// ContainerManager drives the RM allocation protocol for the application.
// All RM calls happen on its single loop goroutine; external threads only
// post events through Handle.
type ContainerManager struct {
	syslog *logrus.Entry
	cfg    *config.Config

	rm        sproto.RMClient
	roles     sproto.RoleCatalog
	executors sproto.ExecutorManager
	chain     sproto.ScheduleChain
	tracker   sproto.BlacklistTracker
	progress  sproto.ProgressProvider
	events    *amevents.Publisher
	policy    AllocationPolicy
	clock     clockwork.Clock

	registry  *containerRegistry
	toRelease *queue.Queue[cproto.Container]
	blacklist *blacklistReconciler

	stopped      atomic.Bool
	shuttingDown atomic.Bool

	stopOnce sync.Once
	cancel   context.CancelFunc
	done     chan struct{}
}

// New builds a container manager. Start must be called before events are
// posted.
func New(cfg *config.Config, deps Dependencies) *ContainerManager {
	m := &ContainerManager{
		syslog: logrus.WithField("component", "container-manager").
			WithField("app-id", cfg.ApplicationID),
		cfg: cfg,

		rm:        deps.RM,
		roles:     deps.Roles,
		executors: deps.Executors,
		chain:     deps.Chain,
		tracker:   deps.Tracker,
		progress:  deps.Progress,
		events:    deps.Events,
		clock:     deps.Clock,

		registry:  newContainerRegistry(),
		toRelease: queue.New[cproto.Container](),
		blacklist: newBlacklistReconciler(deps.Tracker),

		done: make(chan struct{}),
	}
	if m.clock == nil {
		m.clock = clockwork.NewRealClock()
	}
	m.policy = deps.Policy
	if m.policy == nil {
		m.policy = newRolePolicy(m)
	}
	return m
}

// Start registers the application master with the RM and launches the
// allocate loop in the background. The loop does not keep the process alive;
// Stop joins it.
func (m *ContainerManager) Start(ctx context.Context) error {
	trackingURL := m.cfg.Tracking.TrackingURL()

	register := func() error {
		_, err := m.rm.Register(ctx, m.cfg.RPC.Host, m.cfg.RPC.Port, trackingURL)
		return err
	}
	retry := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), registerMaxRetries), ctx)
	if err := backoff.Retry(register, retry); err != nil {
		return errors.Wrap(err, "registering application master")
	}
	m.syslog.Infof("tracking URL is %s", trackingURL)

	loopCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	go m.run(loopCtx)
	return nil
}

// Stop sets the stop flag, wakes the loop, and joins it. Idempotent.
func (m *ContainerManager) Stop() {
	m.stopOnce.Do(func() {
		m.stopped.Store(true)
		if m.cancel == nil {
			return
		}
		m.cancel()
		<-m.done
		m.syslog.Info("container manager stopped")
	})
}

// Handle is the synchronous sink for container manager events. It is called
// from external goroutines; failures abort the application rather than
// unwinding into the event source.
func (m *ContainerManager) Handle(ev sproto.ContainerManagerEvent) {
	defer func() {
		if r := recover(); r != nil {
			diag := fmt.Sprintf("container manager event %s panicked: %v", ev.Type, r)
			m.syslog.Error(diag)
			m.abort(diag)
		}
	}()

	if err := m.handle(ev); err != nil {
		diag := fmt.Sprintf("container manager event %s failed: %s", ev.Type, err)
		m.syslog.Error(diag)
		m.abort(diag)
	}
}

func (m *ContainerManager) handle(ev sproto.ContainerManagerEvent) error {
	switch ev.Type {
	case sproto.ContainerRequestCreated, sproto.ContainerRequestUpdated:
		for _, p := range m.roles.Priorities() {
			m.registry.EnsurePriority(p)
		}

	case sproto.ExecutorExpired:
		m.toRelease.Put(ev.Container)
		// The container leaves the registry now; the RM completion that
		// follows the release request is warn-ignored.
		m.registry.RemoveByID(ev.Container.ID)
		if handle, ok := m.executors.GetExecutor(ev.Container.ID.String()); ok {
			m.onContainerReleased(ev.Container, handle.ExitCode(), handle.ExitMessage())
		}
		executorExpiredCounter.WithLabelValues(m.cfg.ApplicationID).Inc()

	case sproto.GracefulShutdown, sproto.ForciblyShutdown:
		m.syslog.Info("start killing all running containers")
		m.shuttingDown.Store(true)
		for _, c := range m.registry.SnapshotAll() {
			handle, ok := m.executors.GetExecutor(c.ID.String())
			if !ok {
				continue
			}
			if ev.Type == sproto.GracefulShutdown {
				m.syslog.Infof("gracefully killing container: %s", c.ID)
				m.events.Publish(sproto.ExecutorKill{ID: handle.ExecutorID()})
			} else {
				m.syslog.Infof("forcibly killing container: %s", c.ID)
				m.events.Publish(sproto.ExecutorKillForcibly{ID: handle.ExecutorID()})
			}
		}

	default:
		return errors.Errorf("unknown event type %v", ev.Type)
	}
	return nil
}

func (m *ContainerManager) run(ctx context.Context) {
	defer close(m.done)

	interval := time.Duration(m.cfg.Scheduler.AllocateInterval)
	for !m.stopped.Load() {
		if err := m.tick(ctx); err != nil {
			switch {
			case m.stopped.Load():
				// Interrupted mid-RPC by Stop; nothing to report.
			case errors.Is(err, context.Canceled):
				// Spurious interrupt; the loop header re-checks stopped.
			default:
				diag := fmt.Sprintf("container manager caught error: %s", err)
				m.syslog.WithError(err).Error(diag)
				m.abort(diag)
			}
		}

		select {
		case <-m.clock.After(interval):
		case <-ctx.Done():
			// Interrupted while sleeping; the loop header re-checks stopped.
		}
	}
	m.syslog.Info("allocate loop exited")
}

// tick performs one heartbeat round. The step order is fixed and observable:
// blacklist before allocate, releases dispatched after the heartbeat so the
// RM sees them no later than the next allocate.
func (m *ContainerManager) tick(ctx context.Context) error {
	var progress float32
	if m.progress != nil {
		progress = m.progress.Progress()
	}

	additions, removals, latest := m.blacklist.reconcile()
	if len(additions) > 0 {
		m.syslog.WithField("additions", additions).Info("blacklist additions")
	}
	if len(removals) > 0 {
		m.syslog.WithField("removals", removals).Info("blacklist removals")
	}
	if err := m.rm.UpdateBlacklist(ctx, additions, removals); err != nil {
		return errors.Wrap(err, "updating node blacklist")
	}
	m.blacklist.commit(latest)

	resp, err := m.rm.Allocate(ctx, progress)
	if err != nil {
		return errors.Wrap(err, "allocate heartbeat")
	}

	for {
		c, ok := m.toRelease.TryGet()
		if !ok {
			break
		}
		if err := m.rm.ReleaseAssigned(ctx, c.ID); err != nil {
			return errors.Wrapf(err, "releasing container %s", c.ID)
		}
	}

	if err := m.policy.HandleAllocation(ctx, resp); err != nil {
		return errors.Wrap(err, "handling allocation")
	}
	m.handleCompletedContainers(resp.Completed)
	if m.cfg.Scheduler.EnableUpdateResource {
		m.handleUpdatedContainers(resp.Updated)
		if err := m.checkAndUpdateRunningContainers(ctx); err != nil {
			return err
		}
	}

	if !m.shuttingDown.Load() {
		if err := m.policy.AskForContainers(ctx); err != nil {
			return errors.Wrap(err, "asking for containers")
		}

		if m.executors.IsAllSuccess() {
			m.finish()
		} else if m.executors.IsAllCompleted() {
			diag := "All executors completed but not success"
			m.syslog.Error(diag)
			m.abort(diag)
		}
	}
	return nil
}

func (m *ContainerManager) handleCompletedContainers(statuses []cproto.Status) {
	for _, status := range statuses {
		m.syslog.Infof("container %s completed", status.ID)

		c, ok := m.registry.RemoveByID(status.ID)
		if !ok {
			m.syslog.Warnf("cannot find container in running set, container id %s", status.ID)
			continue
		}
		m.onContainerReleased(c, status.ExitStatus, status.Diagnostics)
	}
}

// onContainerReleased runs the release path shared by the loop and the event
// handler: band removal, the schedule chain, and the executor notification
// carrying the chain's possibly revised diagnostic.
func (m *ContainerManager) onContainerReleased(c cproto.Container, exitStatus int32, diag string) {
	m.registry.RemoveFromBand(c.Priority, c.ID)

	sctx := sproto.NewScheduleContext(c, exitStatus, diag, m.tracker)
	m.chain.ProcessReleasedContainer(sctx)
	m.executors.HandleContainerReleased(c, exitStatus, sctx.ErrMsg)

	releaseContainerCounter.WithLabelValues(m.cfg.ApplicationID).Inc()
}

func (m *ContainerManager) handleUpdatedContainers(updated []sproto.UpdatedContainer) {
	for _, u := range updated {
		if _, ok := m.registry.Get(u.Container.ID); ok {
			m.registry.Insert(u.Container)
		}
		m.syslog.
			WithField("container", u.Container.ID).
			WithField("update-type", u.UpdateType).
			Info("received container update from RM")
		m.events.Publish(sproto.ContainerUpdated{Container: u.Container})
	}
}

func (m *ContainerManager) checkAndUpdateRunningContainers(ctx context.Context) error {
	for _, c := range m.registry.SnapshotAll() {
		role, ok := m.roles.RoleByPriority(c.Priority)
		if !ok {
			continue
		}

		verdict := classifyResourceUpdate(c.Resource, role.Resource)
		if verdict == sproto.ContainerUpdateNone {
			continue
		}
		target := role.Resource.RoundUpMemory()
		m.syslog.
			WithField("container", c.ID).
			WithField("current", c.Resource.String()).
			WithField("target", target.String()).
			WithField("update-type", verdict).
			Info("requesting container update")
		err := m.rm.RequestContainerUpdate(
			ctx, c, c.Version, verdict, target, sproto.ExecutionTypeGuaranteed)
		if err != nil {
			return errors.Wrapf(err, "requesting update for container %s", c.ID)
		}
	}
	return nil
}

func (m *ContainerManager) logContainerURL(c cproto.Container) {
	m.syslog.Infof("allocated %s on http://%s/node/containerlogs/%s/%s",
		c.ID, c.NodeHTTPAddress, c.ID, m.cfg.User)
}

func (m *ContainerManager) abort(diag string) {
	m.events.Publish(sproto.FailAttempt{Diagnostics: diag, ExitCode: sproto.ExitCodeAbort})
}

func (m *ContainerManager) finish() {
	m.syslog.Info("all containers complete")
	m.events.Publish(sproto.ApplicationSuccess{
		Message:  "all containers complete",
		ExitCode: sproto.ExitCodeContainerComplete,
	})
}

// BandStatus is one priority band's worth of running containers.
type BandStatus struct {
	Priority   cproto.Priority `json:"priority"`
	Containers []cproto.ID     `json:"containers"`
}

// Status is the tracking endpoint's view of the manager. The blacklist comes
// from the tracker rather than the loop's working sets, which stay private.
type Status struct {
	ApplicationID string       `json:"application_id"`
	ShuttingDown  bool         `json:"shutting_down"`
	Running       int          `json:"running"`
	Bands         []BandStatus `json:"bands"`
	Blacklist     []string     `json:"blacklist"`
}

// Status summarizes the manager for the tracking endpoint.
func (m *ContainerManager) Status() Status {
	st := Status{
		ApplicationID: m.cfg.ApplicationID,
		ShuttingDown:  m.shuttingDown.Load(),
		Running:       m.registry.Len(),
	}
	for _, p := range m.registry.Priorities() {
		st.Bands = append(st.Bands, BandStatus{Priority: p, Containers: m.registry.BandIDs(p)})
	}
	if m.tracker != nil {
		st.Blacklist = sortedBlacklist(m.tracker)
	}
	return st
}

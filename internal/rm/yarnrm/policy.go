package yarnrm

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/dtrain-ml/dtrain/appmaster/internal/sproto"
	"github.com/dtrain-ml/dtrain/appmaster/pkg/cproto"
)

// AllocationPolicy supplies the role-aware halves of the allocate loop: how
// an allocation response is admitted and how role demand turns into RM
// container requests. Both run on the loop goroutine and must not block for
// more than a tick's worth of time; errors abort the application.
type AllocationPolicy interface {
	HandleAllocation(ctx context.Context, resp *sproto.AllocateResponse) error
	AskForContainers(ctx context.Context) error
}

// rolePolicy is the default policy: admit every allocation into its role's
// band and ask the RM for the gap between role demand and the live plus
// still-pending containers.
// pending is loop-only state, no locking needed.
type rolePolicy struct {
	syslog  *logrus.Entry
	m       *ContainerManager
	pending map[cproto.Priority]int
}

func newRolePolicy(m *ContainerManager) *rolePolicy {
	return &rolePolicy{
		syslog: logrus.WithField("component", "role-policy").
			WithField("app-id", m.cfg.ApplicationID),
		m:       m,
		pending: make(map[cproto.Priority]int),
	}
}

func (p *rolePolicy) HandleAllocation(ctx context.Context, resp *sproto.AllocateResponse) error {
	for _, c := range resp.Allocated {
		if p.pending[c.Priority] > 0 {
			p.pending[c.Priority]--
		}

		if p.m.shuttingDown.Load() {
			// Too late to be useful; hand it straight back.
			p.syslog.Infof("releasing container %s allocated during shutdown", c.ID)
			p.m.toRelease.Put(c)
			continue
		}

		p.m.registry.Insert(c)
		p.m.logContainerURL(c)
		if err := p.m.executors.Launch(c); err != nil {
			p.syslog.WithError(err).Errorf("failed to launch executor on container %s", c.ID)
			p.m.registry.RemoveByID(c.ID)
			p.m.toRelease.Put(c)
		}
	}
	return nil
}

func (p *rolePolicy) AskForContainers(ctx context.Context) error {
	for _, priority := range p.m.roles.Priorities() {
		role, ok := p.m.roles.RoleByPriority(priority)
		if !ok {
			continue
		}

		need := role.Demand - p.m.registry.CountInBand(priority) - p.pending[priority]
		if need <= 0 {
			continue
		}
		p.syslog.
			WithField("role", role.Name).
			WithField("priority", priority).
			WithField("count", need).
			Info("requesting containers")
		if err := p.m.rm.RequestContainers(ctx, priority, role.Resource, need); err != nil {
			return err
		}
		p.pending[priority] += need
	}
	return nil
}

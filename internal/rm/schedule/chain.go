// Package schedule runs scheduling-decision strategies over released
// containers. Strategies inspect the release context in order and may revise
// the diagnostic that reaches the executor manager.
package schedule

import (
	"fmt"
	"net"

	"github.com/sirupsen/logrus"

	"github.com/dtrain-ml/dtrain/appmaster/internal/sproto"
)

// Strategy is one link of the chain.
type Strategy interface {
	Name() string
	ProcessReleasedContainer(sctx *sproto.ScheduleContext)
}

// Chain applies its strategies in order.
type Chain struct {
	syslog     *logrus.Entry
	strategies []Strategy
}

// NewChain builds a chain from the given strategies.
func NewChain(strategies ...Strategy) *Chain {
	return &Chain{
		syslog:     logrus.WithField("component", "schedule-chain"),
		strategies: strategies,
	}
}

// DefaultChain is the chain the application master runs with.
func DefaultChain() *Chain {
	return NewChain(&blacklistStrategy{}, &diagnosticStrategy{})
}

// ProcessReleasedContainer implements sproto.ScheduleChain.
func (c *Chain) ProcessReleasedContainer(sctx *sproto.ScheduleContext) {
	for _, s := range c.strategies {
		s.ProcessReleasedContainer(sctx)
	}
}

// blacklistStrategy reports the container's node to the blacklist tracker
// when the exit status implicates the node rather than the workload.
type blacklistStrategy struct{}

func (s *blacklistStrategy) Name() string { return "blacklist" }

func (s *blacklistStrategy) ProcessReleasedContainer(sctx *sproto.ScheduleContext) {
	if sctx.Tracker == nil {
		return
	}
	switch sctx.ExitStatus {
	case sproto.ContainerExitDisksFailed, sproto.ContainerExitInvalid:
	default:
		return
	}
	node := hostOf(sctx.Container.NodeHTTPAddress)
	if node == "" {
		return
	}
	logrus.WithField("component", "schedule-chain").
		WithField("node", node).
		WithField("exit-status", sctx.ExitStatus).
		Info("blacklisting node of released container")
	sctx.Tracker.AddNode(node)
}

func hostOf(nodeHTTPAddress string) string {
	host, _, err := net.SplitHostPort(nodeHTTPAddress)
	if err != nil {
		return nodeHTTPAddress
	}
	return host
}

// diagnosticStrategy rewrites well-known RM exit statuses into readable
// messages so executor failures surface with their cause.
type diagnosticStrategy struct{}

func (s *diagnosticStrategy) Name() string { return "diagnostic" }

func (s *diagnosticStrategy) ProcessReleasedContainer(sctx *sproto.ScheduleContext) {
	var reason string
	switch sctx.ExitStatus {
	case sproto.ContainerExitPreempted:
		reason = "container preempted by the resource manager"
	case sproto.ContainerExitDisksFailed:
		reason = "container killed: local disks failed on the node"
	case sproto.ContainerExitExceededVMem:
		reason = "container killed: exceeded virtual memory limits"
	case sproto.ContainerExitExceededPMem:
		reason = "container killed: exceeded physical memory limits"
	case sproto.ContainerExitAborted:
		reason = "container released by the application master"
	default:
		return
	}
	if sctx.ErrMsg != "" {
		sctx.ErrMsg = fmt.Sprintf("%s: %s", reason, sctx.ErrMsg)
	} else {
		sctx.ErrMsg = reason
	}
}

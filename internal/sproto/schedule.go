package sproto

import "github.com/dtrain-ml/dtrain/appmaster/pkg/cproto"

// ScheduleContext carries one released container through the scheduling
// decision chain. Strategies may revise ErrMsg; the revised message is what
// reaches the executor manager.
type ScheduleContext struct {
	Container   cproto.Container
	ExitStatus  int32
	Diagnostics string
	Tracker     BlacklistTracker // nil when no tracker is configured

	ErrMsg string
}

// NewScheduleContext builds a context whose ErrMsg starts as the raw
// diagnostic.
func NewScheduleContext(
	container cproto.Container, exitStatus int32, diagnostics string, tracker BlacklistTracker,
) *ScheduleContext {
	return &ScheduleContext{
		Container:   container,
		ExitStatus:  exitStatus,
		Diagnostics: diagnostics,
		Tracker:     tracker,
		ErrMsg:      diagnostics,
	}
}

// ScheduleChain runs scheduling-decision strategies over released containers.
type ScheduleChain interface {
	ProcessReleasedContainer(sctx *ScheduleContext)
}

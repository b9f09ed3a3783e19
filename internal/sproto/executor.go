package sproto

import "github.com/dtrain-ml/dtrain/appmaster/pkg/cproto"

// ExecutorID identifies one executor process within the application.
type ExecutorID string

func (id ExecutorID) String() string { return string(id) }

// ExecutorHandle is the container-bound view of an executor the container
// manager consults when a container goes away.
type ExecutorHandle interface {
	ExecutorID() ExecutorID
	ExitCode() int32
	ExitMessage() string
	Container() cproto.Container
}

// ExecutorManager is the executor state machine the container manager feeds.
type ExecutorManager interface {
	// GetExecutor resolves the executor bound to a container, if any.
	GetExecutor(containerID string) (ExecutorHandle, bool)
	// Launch binds a freshly allocated container to a new executor.
	Launch(container cproto.Container) error
	// HandleContainerReleased informs the manager that a container is gone,
	// with its exit status and (possibly revised) diagnostics.
	HandleContainerReleased(container cproto.Container, exitStatus int32, diagnostics string)
	// IsAllSuccess reports whether every executor finished successfully.
	IsAllSuccess() bool
	// IsAllCompleted reports whether every executor reached a terminal state.
	IsAllCompleted() bool
}

// ProgressProvider reports the application's progress fraction in [0, 1].
type ProgressProvider interface {
	Progress() float32
}

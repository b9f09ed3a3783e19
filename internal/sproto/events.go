package sproto

import (
	"fmt"

	"github.com/dtrain-ml/dtrain/appmaster/pkg/cproto"
)

// ContainerManagerEventType enumerates the events external collaborators post
// to the container manager.
type ContainerManagerEventType int

const (
	// ContainerRequestCreated is posted when a role first publishes demand.
	ContainerRequestCreated ContainerManagerEventType = iota
	// ContainerRequestUpdated is posted when role demand changes.
	ContainerRequestUpdated
	// ExecutorExpired is posted when an executor stops heartbeating; its
	// container should be released without waiting for the RM.
	ExecutorExpired
	// GracefulShutdown asks every executor to stop cleanly.
	GracefulShutdown
	// ForciblyShutdown kills every executor immediately.
	ForciblyShutdown
)

func (t ContainerManagerEventType) String() string {
	switch t {
	case ContainerRequestCreated:
		return "CONTAINER_REQUEST_CREATED"
	case ContainerRequestUpdated:
		return "CONTAINER_REQUEST_UPDATED"
	case ExecutorExpired:
		return "EXECUTOR_EXPIRED"
	case GracefulShutdown:
		return "GRACEFUL_SHUTDOWN"
	case ForciblyShutdown:
		return "FORCIBLY_SHUTDOWN"
	default:
		return fmt.Sprintf("ContainerManagerEventType(%d)", int(t))
	}
}

// ContainerManagerEvent is one event posted to the container manager.
// Container is set for ExecutorExpired only.
type ContainerManagerEvent struct {
	Type      ContainerManagerEventType
	Container cproto.Container
}

// Container exit statuses assigned by the resource manager, as opposed to
// exit codes coming from the executor process itself.
const (
	ContainerExitSuccess      int32 = 0
	ContainerExitInvalid      int32 = -1000
	ContainerExitAborted      int32 = -100 // released by the AM
	ContainerExitDisksFailed  int32 = -101
	ContainerExitPreempted    int32 = -102
	ContainerExitExceededVMem int32 = -103
	ContainerExitExceededPMem int32 = -104
)

// Application exit codes reported with terminal attempt events.
const (
	// ExitCodeContainerComplete accompanies a successful finish once every
	// container has completed.
	ExitCodeContainerComplete = 0
	// ExitCodeAbort accompanies a fail-attempt raised by the container
	// manager.
	ExitCodeAbort = -9000
)

// AppEvent is implemented by events published on the application bus.
type AppEvent interface {
	appEvent()
}

// FailAttempt asks the application to fail the current attempt.
type FailAttempt struct {
	Diagnostics string
	ExitCode    int
}

// ApplicationSuccess asks the application to finish successfully.
type ApplicationSuccess struct {
	Message  string
	ExitCode int
}

// ExecutorKill asks an executor to stop cleanly.
type ExecutorKill struct {
	ID ExecutorID
}

// ExecutorKillForcibly kills an executor immediately.
type ExecutorKillForcibly struct {
	ID ExecutorID
}

// ContainerUpdated reports that the RM resized a container.
type ContainerUpdated struct {
	Container cproto.Container
}

func (FailAttempt) appEvent()          {}
func (ApplicationSuccess) appEvent()   {}
func (ExecutorKill) appEvent()         {}
func (ExecutorKillForcibly) appEvent() {}
func (ContainerUpdated) appEvent()     {}

package sproto

import (
	"context"
	"fmt"

	"github.com/dtrain-ml/dtrain/appmaster/pkg/cproto"
)

// ContainerUpdateType classifies a requested container resize.
type ContainerUpdateType int

const (
	// ContainerUpdateNone means the current and target resources agree, or
	// the change is not expressible in a single request.
	ContainerUpdateNone ContainerUpdateType = iota
	// ContainerUpdateIncrease grows the container's resources.
	ContainerUpdateIncrease
	// ContainerUpdateDecrease shrinks the container's resources.
	ContainerUpdateDecrease
)

func (t ContainerUpdateType) String() string {
	switch t {
	case ContainerUpdateNone:
		return "NONE"
	case ContainerUpdateIncrease:
		return "INCREASE_RESOURCE"
	case ContainerUpdateDecrease:
		return "DECREASE_RESOURCE"
	default:
		return fmt.Sprintf("ContainerUpdateType(%d)", int(t))
	}
}

// ExecutionType is the execution guarantee requested with a container update.
type ExecutionType int

// ExecutionTypeGuaranteed asks the RM for guaranteed execution; the AM never
// requests opportunistic containers.
const ExecutionTypeGuaranteed ExecutionType = iota

// RegisterResponse is the RM's answer to application master registration.
type RegisterResponse struct {
	MaxResource cproto.Resource
	Queue       string
}

// UpdatedContainer reports a container the RM resized since the last
// heartbeat.
type UpdatedContainer struct {
	Container  cproto.Container
	UpdateType ContainerUpdateType
}

// AllocateResponse is one heartbeat's worth of RM state changes.
type AllocateResponse struct {
	Allocated []cproto.Container
	Completed []cproto.Status
	Updated   []UpdatedContainer
}

// RMClient is the resource-manager protocol consumed by the container
// manager. All wire formats, RPC timeouts, and short-retry policies belong to
// the implementation behind this interface.
type RMClient interface {
	// Register announces the application master to the RM. One-shot at
	// startup.
	Register(ctx context.Context, host string, port int, trackingURL string) (*RegisterResponse, error)
	// Allocate is the heartbeat: it reports progress and yields allocated,
	// completed, and updated containers.
	Allocate(ctx context.Context, progress float32) (*AllocateResponse, error)
	// ReleaseAssigned asks the RM to reclaim a container. Fire-and-forget;
	// the completion arrives on a later heartbeat.
	ReleaseAssigned(ctx context.Context, id cproto.ID) error
	// UpdateBlacklist reports node blacklist deltas.
	UpdateBlacklist(ctx context.Context, additions, removals []string) error
	// RequestContainerUpdate asks the RM to resize a running container.
	RequestContainerUpdate(
		ctx context.Context,
		container cproto.Container,
		version uint64,
		updateType ContainerUpdateType,
		target cproto.Resource,
		executionType ExecutionType,
	) error
	// RequestContainers adds count outstanding container requests at the
	// given priority and shape.
	RequestContainers(ctx context.Context, priority cproto.Priority, resource cproto.Resource, count int) error
}

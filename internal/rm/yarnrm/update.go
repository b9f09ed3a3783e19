package yarnrm

import (
	"github.com/dtrain-ml/dtrain/appmaster/internal/sproto"
	"github.com/dtrain-ml/dtrain/appmaster/pkg/cproto"
)

// classifyResourceUpdate maps a (current, target) resource pair to an update
// verdict. Memory is compared at the RM's 1 GiB allocation granularity; a
// container the RM rounded up to 8192 MiB must not generate an update when
// the role asks for 8000 MiB.
//
// A mixed change, one dimension up and another down, is not expressible in a
// single update request. It classifies as no-update and is left to a later
// cycle once the role catalog converges.
func classifyResourceUpdate(current, target cproto.Resource) sproto.ContainerUpdateType {
	if current.IsZero() || target.IsZero() {
		return sproto.ContainerUpdateNone
	}

	current = current.RoundUpMemory()
	target = target.RoundUpMemory()

	switch {
	case current.FitsIn(target) && target.FitsIn(current):
		return sproto.ContainerUpdateNone
	case target.FitsIn(current):
		return sproto.ContainerUpdateDecrease
	case current.FitsIn(target):
		return sproto.ContainerUpdateIncrease
	default:
		return sproto.ContainerUpdateNone
	}
}

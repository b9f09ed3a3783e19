package cproto

import (
	"fmt"

	"golang.org/x/exp/constraints"
)

// MemoryGranularityMiB is the granularity the resource manager allocates
// memory in. Comparing resources at a finer resolution produces spurious
// update requests that the RM rejects.
const MemoryGranularityMiB = 1024

// Resource is a memory/vcores request or grant. The zero value means
// unknown/unset.
type Resource struct {
	MemoryMiB uint64 `json:"memory_mib"`
	VCores    uint32 `json:"vcores"`
}

// IsZero reports whether the resource is unset.
func (r Resource) IsZero() bool {
	return r.MemoryMiB == 0 && r.VCores == 0
}

// FitsIn reports whether every component of r is at most the matching
// component of other.
func (r Resource) FitsIn(other Resource) bool {
	return r.MemoryMiB <= other.MemoryMiB && r.VCores <= other.VCores
}

// RoundUpMemory returns a copy of r with memory rounded up to the RM's
// allocation granularity.
func (r Resource) RoundUpMemory() Resource {
	r.MemoryMiB = roundUp(r.MemoryMiB, MemoryGranularityMiB)
	return r
}

func (r Resource) String() string {
	return fmt.Sprintf("<memory:%d MiB, vcores:%d>", r.MemoryMiB, r.VCores)
}

func roundUp[T constraints.Integer](value, step T) T {
	if step == 0 {
		return value
	}
	if rem := value % step; rem != 0 {
		return value + step - rem
	}
	return value
}

package yarnrm

import (
	"sync"

	"github.com/emirpasic/gods/sets/treeset"
	"golang.org/x/exp/slices"

	"github.com/dtrain-ml/dtrain/appmaster/pkg/cproto"
)

// containerRegistry is the bookkeeping of running containers, indexed by id
// and by priority band. A container is in byID iff it is in exactly one
// byPriority set, the one matching its snapshot's priority. Bands are ordered
// by container id so iteration is deterministic.
//
// The registry is written from two contexts, the event handler and the
// allocate loop, so every operation holds the mutex and reads hand out
// copies.
type containerRegistry struct {
	mu         sync.Mutex
	byID       map[cproto.ID]cproto.Container
	byPriority map[cproto.Priority]*treeset.Set
}

func newContainerRegistry() *containerRegistry {
	return &containerRegistry{
		byID:       make(map[cproto.ID]cproto.Container),
		byPriority: make(map[cproto.Priority]*treeset.Set),
	}
}

func containerIDComparator(a, b interface{}) int {
	i1, i2 := a.(cproto.ID), b.(cproto.ID)
	switch {
	case i1.Before(i2):
		return -1
	case i2.Before(i1):
		return 1
	default:
		return 0
	}
}

// EnsurePriority creates an empty band if absent. Bands are never removed;
// priorities are monotonic over an application's lifetime.
func (r *containerRegistry) EnsurePriority(p cproto.Priority) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensurePriority(p)
}

func (r *containerRegistry) ensurePriority(p cproto.Priority) *treeset.Set {
	band, ok := r.byPriority[p]
	if !ok {
		band = treeset.NewWith(containerIDComparator)
		r.byPriority[p] = band
	}
	return band
}

// Insert records a container snapshot. A second insert with the same id
// overwrites the snapshot, re-banding it if the priority changed.
func (r *containerRegistry) Insert(c cproto.Container) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.byID[c.ID]; ok && prev.Priority != c.Priority {
		if band, ok := r.byPriority[prev.Priority]; ok {
			band.Remove(c.ID)
		}
	}
	r.byID[c.ID] = c
	r.ensurePriority(c.Priority).Add(c.ID)
}

// Get returns the current snapshot for a container id.
func (r *containerRegistry) Get(id cproto.ID) (cproto.Container, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byID[id]
	return c, ok
}

// RemoveByID removes a container from both indexes atomically.
func (r *containerRegistry) RemoveByID(id cproto.ID) (cproto.Container, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byID[id]
	if !ok {
		return cproto.Container{}, false
	}
	delete(r.byID, id)
	if band, ok := r.byPriority[c.Priority]; ok {
		band.Remove(id)
	}
	return c, true
}

// RemoveFromBand drops an id from a priority band. The id may already be gone
// when a completion races an executor expiry; that is fine.
func (r *containerRegistry) RemoveFromBand(p cproto.Priority, id cproto.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if band, ok := r.byPriority[p]; ok {
		band.Remove(id)
	}
}

// SnapshotAll returns a stable copy of every running container, ordered by
// container id.
func (r *containerRegistry) SnapshotAll() []cproto.Container {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := make([]cproto.Container, 0, len(r.byID))
	for _, c := range r.byID {
		res = append(res, c)
	}
	slices.SortFunc(res, func(a, b cproto.Container) int {
		return containerIDComparator(a.ID, b.ID)
	})
	return res
}

// Len returns the number of running containers.
func (r *containerRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// CountInBand returns the number of containers in a priority band.
func (r *containerRegistry) CountInBand(p cproto.Priority) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	band, ok := r.byPriority[p]
	if !ok {
		return 0
	}
	return band.Size()
}

// BandIDs returns the ids in a priority band in ascending order.
func (r *containerRegistry) BandIDs(p cproto.Priority) []cproto.ID {
	r.mu.Lock()
	defer r.mu.Unlock()

	band, ok := r.byPriority[p]
	if !ok {
		return nil
	}
	res := make([]cproto.ID, 0, band.Size())
	for it := band.Iterator(); it.Next(); {
		res = append(res, it.Value().(cproto.ID))
	}
	return res
}

// Priorities returns every known band in ascending order.
func (r *containerRegistry) Priorities() []cproto.Priority {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := make([]cproto.Priority, 0, len(r.byPriority))
	for p := range r.byPriority {
		res = append(res, p)
	}
	slices.Sort(res)
	return res
}

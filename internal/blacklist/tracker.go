// Package blacklist remembers misbehaving nodes for a back-off window.
package blacklist

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/dtrain-ml/dtrain/appmaster/pkg/set"
)

// DefaultTTL is how long a node stays blacklisted.
const DefaultTTL = 30 * time.Minute

// maxNodes caps the blacklist so a systemic failure cannot blacklist the
// whole cluster.
const maxNodes = 64

// Tracker is a node blacklist with per-node expiry. Safe for concurrent use.
type Tracker struct {
	syslog *logrus.Entry
	clock  clockwork.Clock
	ttl    time.Duration

	mu        sync.Mutex
	deadlines map[string]time.Time
}

// New creates a tracker whose entries expire after ttl.
func New(ttl time.Duration) *Tracker {
	return newWithClock(ttl, clockwork.NewRealClock())
}

func newWithClock(ttl time.Duration, clock clockwork.Clock) *Tracker {
	return &Tracker{
		syslog:    logrus.WithField("component", "blacklist-tracker"),
		clock:     clock,
		ttl:       ttl,
		deadlines: make(map[string]time.Time),
	}
}

// AddNode blacklists a node, refreshing its deadline if already present.
func (t *Tracker) AddNode(node string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.pruneLocked()
	if _, ok := t.deadlines[node]; !ok && len(t.deadlines) >= maxNodes {
		t.syslog.Warnf("blacklist is at capacity (%d nodes), not adding %s", maxNodes, node)
		return
	}
	t.deadlines[node] = t.clock.Now().Add(t.ttl)
}

// NodeBlacklist returns the nodes currently blacklisted.
func (t *Tracker) NodeBlacklist() set.Set[string] {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.pruneLocked()
	res := set.New[string]()
	for node := range t.deadlines {
		res.Insert(node)
	}
	return res
}

func (t *Tracker) pruneLocked() {
	now := t.clock.Now()
	for node, deadline := range t.deadlines {
		if !deadline.After(now) {
			delete(t.deadlines, node)
		}
	}
}

package yarnrm

import (
	"github.com/dtrain-ml/dtrain/appmaster/internal/sproto"
	"github.com/dtrain-ml/dtrain/appmaster/pkg/set"
)

// blacklistReconciler diffs the tracker's current node blacklist against the
// view last reported to the RM. It is owned by the allocate loop and is not
// safe for concurrent use.
type blacklistReconciler struct {
	tracker sproto.BlacklistTracker // nil reads as an empty blacklist
	current set.Set[string]         // the view the RM has acknowledged
}

func newBlacklistReconciler(tracker sproto.BlacklistTracker) *blacklistReconciler {
	return &blacklistReconciler{
		tracker: tracker,
		current: set.New[string](),
	}
}

// reconcile returns the additions and removals needed to bring the RM's view
// up to date, sorted for reproducible logs, along with the latest view to
// commit once the RM accepts the delta.
func (b *blacklistReconciler) reconcile() (additions, removals []string, latest set.Set[string]) {
	latest = set.New[string]()
	if b.tracker != nil {
		latest = b.tracker.NodeBlacklist().Clone()
	}
	additions = set.SortedSlice(latest.Difference(b.current))
	removals = set.SortedSlice(b.current.Difference(latest))
	return additions, removals, latest
}

// commit replaces the reported view after the RM accepted the delta.
func (b *blacklistReconciler) commit(latest set.Set[string]) {
	b.current = latest
}

// reported returns the blacklist as last acknowledged by the RM.
func (b *blacklistReconciler) reported() set.Set[string] {
	return b.current.Clone()
}

func sortedBlacklist(tracker sproto.BlacklistTracker) []string {
	return set.SortedSlice(tracker.NodeBlacklist())
}

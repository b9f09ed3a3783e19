package sproto

import "github.com/dtrain-ml/dtrain/appmaster/pkg/set"

// BlacklistTracker is the source of the node blacklist. The dependency is
// optional; a nil tracker reads as an empty blacklist.
type BlacklistTracker interface {
	// NodeBlacklist returns the current set of node addresses the AM does
	// not want scheduled on.
	NodeBlacklist() set.Set[string]
	// AddNode blacklists a node. Schedule-chain strategies call this when a
	// released container implicates its host.
	AddNode(node string)
}

package cproto

// ID is the resource manager's identifier for a granted container. IDs are
// opaque but totally ordered so per-priority bookkeeping can iterate
// deterministically.
type ID string

func (id ID) String() string { return string(id) }

// Before imposes the total order used by the priority bands.
func (id ID) Before(other ID) bool { return id < other }

// Priority is the scheduling band a container belongs to. Priorities are
// assigned per role and are monotonic over an application's lifetime.
type Priority int

// Container is an immutable snapshot of a granted allocation on a node.
// Resource updates produce a new snapshot rather than mutating one in place.
type Container struct {
	ID              ID       `json:"id"`
	Priority        Priority `json:"priority"`
	Resource        Resource `json:"resource"`
	NodeHTTPAddress string   `json:"node_http_address"`
	Version         uint64   `json:"version"`
}

// Status reports a container the resource manager considers complete.
type Status struct {
	ID          ID     `json:"id"`
	ExitStatus  int32  `json:"exit_status"`
	Diagnostics string `json:"diagnostics"`
}

package sproto

import "github.com/dtrain-ml/dtrain/appmaster/pkg/cproto"

// RoleInfo describes one worker kind: its scheduling band, container shape,
// and how many containers the role wants live at once.
type RoleInfo struct {
	Name     string
	Priority cproto.Priority
	Resource cproto.Resource
	Demand   int
}

// RoleCatalog exposes the application's roles by priority. Priorities are
// monotonic over the application's lifetime: the catalog may add bands but
// never retires one.
type RoleCatalog interface {
	Priorities() []cproto.Priority
	RoleByPriority(p cproto.Priority) (RoleInfo, bool)
}

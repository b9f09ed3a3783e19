// Package roles maintains the application's role catalog.
package roles

import (
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"

	"github.com/dtrain-ml/dtrain/appmaster/internal/config"
	"github.com/dtrain-ml/dtrain/appmaster/internal/sproto"
	"github.com/dtrain-ml/dtrain/appmaster/pkg/cproto"
)

// Catalog maps priorities to role definitions. Priorities are monotonic over
// the application's lifetime: roles can be added and updated, never retired.
type Catalog struct {
	mu         sync.Mutex
	byPriority map[cproto.Priority]sproto.RoleInfo
}

// FromConfig builds a catalog from the configured roles.
func FromConfig(cfg *config.Config) *Catalog {
	c := &Catalog{byPriority: make(map[cproto.Priority]sproto.RoleInfo)}
	for _, role := range cfg.Roles {
		c.byPriority[cproto.Priority(role.Priority)] = sproto.RoleInfo{
			Name:     role.Name,
			Priority: cproto.Priority(role.Priority),
			Resource: role.Resource.ToResource(),
			Demand:   role.Demand,
		}
	}
	return c
}

// Priorities implements sproto.RoleCatalog.
func (c *Catalog) Priorities() []cproto.Priority {
	c.mu.Lock()
	defer c.mu.Unlock()

	res := make([]cproto.Priority, 0, len(c.byPriority))
	for p := range c.byPriority {
		res = append(res, p)
	}
	slices.Sort(res)
	return res
}

// RoleByPriority implements sproto.RoleCatalog.
func (c *Catalog) RoleByPriority(p cproto.Priority) (sproto.RoleInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	info, ok := c.byPriority[p]
	return info, ok
}

// Upsert adds a role or updates an existing one. Renaming the role behind a
// priority is rejected; demand and resource changes are picked up by the
// next allocate tick.
func (c *Catalog) Upsert(info sproto.RoleInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prev, ok := c.byPriority[info.Priority]; ok && prev.Name != info.Name {
		return errors.Errorf(
			"priority %d already belongs to role %s", info.Priority, prev.Name)
	}
	c.byPriority[info.Priority] = info
	return nil
}

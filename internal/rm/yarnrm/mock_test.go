package yarnrm

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"

	"github.com/dtrain-ml/dtrain/appmaster/internal/sproto"
	"github.com/dtrain-ml/dtrain/appmaster/pkg/cproto"
	"github.com/dtrain-ml/dtrain/appmaster/pkg/set"
)

var errTest = errors.New("mock error")

type blacklistCall struct {
	additions []string
	removals  []string
}

type updateCall struct {
	container  cproto.Container
	version    uint64
	updateType sproto.ContainerUpdateType
	target     cproto.Resource
}

type requestCall struct {
	priority cproto.Priority
	resource cproto.Resource
	count    int
}

// mockRMClient serves canned allocate responses in order and records every
// call the loop makes.
type mockRMClient struct {
	mu sync.Mutex

	responses []*sproto.AllocateResponse

	registered     bool
	registerErr    error
	allocateErr    error
	blacklistCalls []blacklistCall
	releases       []cproto.ID
	updates        []updateCall
	requests       []requestCall
	progresses     []float32
}

func (m *mockRMClient) Register(
	ctx context.Context, host string, port int, trackingURL string,
) (*sproto.RegisterResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.registerErr != nil {
		return nil, m.registerErr
	}
	m.registered = true
	return &sproto.RegisterResponse{}, nil
}

func (m *mockRMClient) Allocate(ctx context.Context, progress float32) (*sproto.AllocateResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.allocateErr != nil {
		return nil, m.allocateErr
	}
	m.progresses = append(m.progresses, progress)
	if len(m.responses) == 0 {
		return &sproto.AllocateResponse{}, nil
	}
	resp := m.responses[0]
	m.responses = m.responses[1:]
	return resp, nil
}

func (m *mockRMClient) ReleaseAssigned(ctx context.Context, id cproto.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releases = append(m.releases, id)
	return nil
}

func (m *mockRMClient) UpdateBlacklist(ctx context.Context, additions, removals []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blacklistCalls = append(m.blacklistCalls, blacklistCall{additions: additions, removals: removals})
	return nil
}

func (m *mockRMClient) RequestContainerUpdate(
	ctx context.Context,
	container cproto.Container,
	version uint64,
	updateType sproto.ContainerUpdateType,
	target cproto.Resource,
	executionType sproto.ExecutionType,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, updateCall{
		container: container, version: version, updateType: updateType, target: target,
	})
	return nil
}

func (m *mockRMClient) RequestContainers(
	ctx context.Context, priority cproto.Priority, resource cproto.Resource, count int,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, requestCall{priority: priority, resource: resource, count: count})
	return nil
}

func (m *mockRMClient) blacklistHistory() []blacklistCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]blacklistCall(nil), m.blacklistCalls...)
}

func (m *mockRMClient) releaseHistory() []cproto.ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]cproto.ID(nil), m.releases...)
}

func (m *mockRMClient) updateHistory() []updateCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]updateCall(nil), m.updates...)
}

func (m *mockRMClient) requestHistory() []requestCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]requestCall(nil), m.requests...)
}

type mockExecutor struct {
	id        sproto.ExecutorID
	exitCode  int32
	exitMsg   string
	container cproto.Container
}

func (e *mockExecutor) ExecutorID() sproto.ExecutorID { return e.id }
func (e *mockExecutor) ExitCode() int32               { return e.exitCode }
func (e *mockExecutor) ExitMessage() string           { return e.exitMsg }
func (e *mockExecutor) Container() cproto.Container   { return e.container }

type releasedCall struct {
	container   cproto.Container
	exitStatus  int32
	diagnostics string
}

// mockExecutorManager registers an executor per launched container.
type mockExecutorManager struct {
	mu sync.Mutex

	executors    map[string]*mockExecutor
	launched     []cproto.Container
	launchErr    error
	released     []releasedCall
	allSuccess   bool
	allCompleted bool
}

func newMockExecutorManager() *mockExecutorManager {
	return &mockExecutorManager{executors: map[string]*mockExecutor{}}
}

func (m *mockExecutorManager) GetExecutor(containerID string) (sproto.ExecutorHandle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.executors[containerID]
	return e, ok
}

func (m *mockExecutorManager) Launch(c cproto.Container) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.launchErr != nil {
		return m.launchErr
	}
	m.launched = append(m.launched, c)
	m.executors[c.ID.String()] = &mockExecutor{
		id:        sproto.ExecutorID("executor-" + c.ID.String()),
		container: c,
	}
	return nil
}

func (m *mockExecutorManager) HandleContainerReleased(
	c cproto.Container, exitStatus int32, diagnostics string,
) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released = append(m.released, releasedCall{
		container: c, exitStatus: exitStatus, diagnostics: diagnostics,
	})
}

func (m *mockExecutorManager) IsAllSuccess() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.allSuccess
}

func (m *mockExecutorManager) IsAllCompleted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.allCompleted
}

func (m *mockExecutorManager) setExecutorExit(containerID string, code int32, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.executors[containerID]; ok {
		e.exitCode = code
		e.exitMsg = msg
	}
}

func (m *mockExecutorManager) releasedHistory() []releasedCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]releasedCall(nil), m.released...)
}

// mockRoleCatalog is a mutable set of roles.
type mockRoleCatalog struct {
	mu    sync.Mutex
	roles map[cproto.Priority]sproto.RoleInfo
}

func (c *mockRoleCatalog) Priorities() []cproto.Priority {
	c.mu.Lock()
	defer c.mu.Unlock()
	res := make([]cproto.Priority, 0, len(c.roles))
	for p := range c.roles {
		res = append(res, p)
	}
	slices.Sort(res)
	return res
}

func (c *mockRoleCatalog) RoleByPriority(p cproto.Priority) (sproto.RoleInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	info, ok := c.roles[p]
	return info, ok
}

func (c *mockRoleCatalog) setRole(info sproto.RoleInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roles[info.Priority] = info
}

func (c *mockRoleCatalog) setDemand(p cproto.Priority, demand int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	info := c.roles[p]
	info.Demand = demand
	c.roles[p] = info
}

// mockChain records schedule contexts and optionally revises the message.
type mockChain struct {
	mu     sync.Mutex
	seen   []*sproto.ScheduleContext
	revise func(*sproto.ScheduleContext)
}

func (c *mockChain) ProcessReleasedContainer(sctx *sproto.ScheduleContext) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, sctx)
	if c.revise != nil {
		c.revise(sctx)
	}
}

func (c *mockChain) seenCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

// mockTracker is a swappable node blacklist.
type mockTracker struct {
	mu    sync.Mutex
	nodes set.Set[string]
}

func newMockTracker(nodes ...string) *mockTracker {
	return &mockTracker{nodes: set.FromSlice(nodes)}
}

func (t *mockTracker) NodeBlacklist() set.Set[string] {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.nodes.Clone()
}

func (t *mockTracker) AddNode(node string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nodes.Insert(node)
}

func (t *mockTracker) setNodes(nodes ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nodes = set.FromSlice(nodes)
}

type staticProgress float32

func (p staticProgress) Progress() float32 { return float32(p) }

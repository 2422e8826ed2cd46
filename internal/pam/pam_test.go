package pam

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/pam-core/internal/metrics"
)

// testClock is a manually advanced clock for deterministic time behavior.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	// A Tuesday, mid-morning UTC: inside working hours.
	return &testClock{t: time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

// noopNotifier records initiated approvals for assertions.
type noopNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (n *noopNotifier) InitiateApproval(_ context.Context, req AccessRequest, _ PrivilegedRole) error {
	n.mu.Lock()
	n.calls = append(n.calls, req.ID)
	n.mu.Unlock()
	return nil
}

func (n *noopNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

func testRoles() []PrivilegedRole {
	return []PrivilegedRole{
		{
			ID:   "viewer",
			Name: "Viewer",
			Permissions: []Permission{
				{Resource: "logs/*", Actions: []string{"read"}},
			},
			RiskLevel:   RiskLow,
			MaxDuration: 240,
		},
		{
			ID:   "admin",
			Name: "Administrator",
			Permissions: []Permission{
				{Resource: "servers/*", Actions: []string{"read", "restart"}},
				{
					Resource: "database/production",
					Actions:  []string{"read", "write"},
					Conditions: []PermissionCondition{
						{Type: ConditionNetwork, Operator: OpEquals, Value: "corporate"},
					},
				},
			},
			RiskLevel:        RiskMedium,
			RequiresApproval: true,
			MaxDuration:      240,
			Approvers:        []string{"lead", "security"},
		},
		{
			ID:   EmergencyRoleID,
			Name: "Emergency Administrator",
			Permissions: []Permission{
				{Resource: "*", Actions: []string{"*"}},
			},
			RiskLevel:   RiskCritical,
			MaxDuration: 60,
		},
	}
}

func newTestManager(t *testing.T, opts ...func(*Config)) (*Manager, *testClock, *noopNotifier) {
	t.Helper()

	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	catalog := NewCatalog(zerolog.Nop())
	for _, role := range testRoles() {
		require.NoError(t, catalog.Register(role))
	}

	clock := newTestClock()
	notifier := &noopNotifier{}
	m := NewManager(cfg, catalog, notifier, nil, metrics.New(), zerolog.Nop(), WithClock(clock.Now))
	return m, clock, notifier
}

package pam

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/pam-core/internal/pamerr"
)

// EmergencyRoleID is the role granted by break-glass access.
const EmergencyRoleID = "emergency_admin"

// Catalog holds the privileged role definitions. Roles are registered during
// initialization; lookups return deep copies so a session's frozen permission
// snapshot is unaffected by any later catalog change.
type Catalog struct {
	mu     sync.RWMutex
	roles  map[string]PrivilegedRole
	logger zerolog.Logger
}

// NewCatalog creates an empty role catalog.
func NewCatalog(logger zerolog.Logger) *Catalog {
	return &Catalog{
		roles:  make(map[string]PrivilegedRole),
		logger: logger.With().Str("component", "catalog").Logger(),
	}
}

// Register adds a role definition. Registering an existing id replaces it;
// this is an administrative operation, not part of normal request flow.
func (c *Catalog) Register(role PrivilegedRole) error {
	if role.ID == "" {
		return fmt.Errorf("role has no id")
	}
	if role.MaxDuration <= 0 {
		return fmt.Errorf("role %s: maxDuration must be positive", role.ID)
	}
	if role.RequiresApproval && len(role.Approvers) == 0 {
		return fmt.Errorf("role %s: requiresApproval set but no approvers listed", role.ID)
	}
	for i, w := range role.AllowedTimeWindows {
		if err := w.Validate(); err != nil {
			return fmt.Errorf("role %s: time window %d: %w", role.ID, i, err)
		}
	}

	c.mu.Lock()
	c.roles[role.ID] = cloneRole(role)
	c.mu.Unlock()

	c.logger.Info().
		Str("role_id", role.ID).
		Str("risk_level", string(role.RiskLevel)).
		Bool("requires_approval", role.RequiresApproval).
		Int("max_duration_min", role.MaxDuration).
		Msg("role registered")

	return nil
}

// Get returns a copy of the role with the given id.
func (c *Catalog) Get(id string) (PrivilegedRole, error) {
	c.mu.RLock()
	role, ok := c.roles[id]
	c.mu.RUnlock()
	if !ok {
		return PrivilegedRole{}, pamerr.NewNotFound("role", id)
	}
	return cloneRole(role), nil
}

// Has reports whether a role with the given id exists.
func (c *Catalog) Has(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.roles[id]
	return ok
}

// List returns copies of all roles, ordered by id.
func (c *Catalog) List() []PrivilegedRole {
	c.mu.RLock()
	out := make([]PrivilegedRole, 0, len(c.roles))
	for _, r := range c.roles {
		out = append(out, cloneRole(r))
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

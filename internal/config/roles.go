package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/p-blackswan/pam-core/internal/pam"
)

// roleFile is the YAML role catalog document.
type roleFile struct {
	Roles []pam.PrivilegedRole `yaml:"roles"`
}

// LoadRoles reads role definitions from a YAML file.
func LoadRoles(path string) ([]pam.PrivilegedRole, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading role catalog: %w", err)
	}
	var doc roleFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing role catalog: %w", err)
	}
	if len(doc.Roles) == 0 {
		return nil, fmt.Errorf("role catalog %s defines no roles", path)
	}
	return doc.Roles, nil
}

// DefaultRoles returns the built-in role catalog used when no YAML file is
// configured. Includes the emergency_admin role required for break-glass.
func DefaultRoles() []pam.PrivilegedRole {
	return []pam.PrivilegedRole{
		{
			ID:   "readonly_auditor",
			Name: "Read-Only Auditor",
			Permissions: []pam.Permission{
				{Resource: "logs/*", Actions: []string{"read", "search"}},
				{Resource: "audit/*", Actions: []string{"read"}},
			},
			RiskLevel:        pam.RiskLow,
			RequiresApproval: false,
			MaxDuration:      240,
		},
		{
			ID:   "db_admin",
			Name: "Database Administrator",
			Permissions: []pam.Permission{
				{Resource: "database/*", Actions: []string{"read", "write", "backup"}},
				{
					Resource: "database/production",
					Actions:  []string{"read", "write"},
					Conditions: []pam.PermissionCondition{
						{Type: pam.ConditionNetwork, Operator: pam.OpEquals, Value: "corporate"},
					},
				},
			},
			RiskLevel:        pam.RiskHigh,
			RequiresApproval: true,
			MaxDuration:      120,
			RequiresMFA:      true,
			Approvers:        []string{"dba-lead", "platform-lead"},
			AllowedTimeWindows: []pam.TimeWindow{
				{Days: []string{"mon", "tue", "wed", "thu", "fri"}, Start: "06:00", End: "22:00", Timezone: "UTC"},
			},
		},
		{
			ID:   "infra_admin",
			Name: "Infrastructure Administrator",
			Permissions: []pam.Permission{
				{Resource: "servers/*", Actions: []string{"read", "restart", "configure"}},
				{Resource: "network/*", Actions: []string{"read", "configure"}},
			},
			RiskLevel:        pam.RiskCritical,
			RequiresApproval: true,
			MaxDuration:      60,
			RequiresMFA:      true,
			Approvers:        []string{"platform-lead", "security-lead"},
		},
		{
			ID:   pam.EmergencyRoleID,
			Name: "Emergency Administrator",
			Permissions: []pam.Permission{
				{Resource: "*", Actions: []string{"*"}},
			},
			RiskLevel:   pam.RiskCritical,
			MaxDuration: 60,
			RequiresMFA: true,
		},
	}
}

package pam

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchResource(t *testing.T) {
	cases := []struct {
		pattern  string
		resource string
		want     bool
	}{
		{"database/production", "database/production", true},
		{"database/production", "database/staging", false},
		{"database/*", "database/staging", true},
		{"database/*", "database/staging/tables", false},
		{"database/*/tables", "database/staging/tables", true},
		{"*", "anything/at/all", true},
		{"*", "servers", true},
		{"servers/*", "servers", false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, matchResource(tc.pattern, tc.resource),
			"pattern=%s resource=%s", tc.pattern, tc.resource)
	}
}

func TestPermissionAllows_ActionList(t *testing.T) {
	perm := Permission{Resource: "logs/*", Actions: []string{"read", "search"}}

	assert.True(t, permissionAllows(perm, "logs/app", "read", nil))
	assert.True(t, permissionAllows(perm, "logs/app", "search", nil))
	assert.False(t, permissionAllows(perm, "logs/app", "delete", nil))
}

func TestPermissionAllows_WildcardAction(t *testing.T) {
	perm := Permission{Resource: "*", Actions: []string{"*"}}

	assert.True(t, permissionAllows(perm, "servers/web-1", "restart", nil))
}

func TestConditionEquals(t *testing.T) {
	perm := Permission{
		Resource: "database/production",
		Actions:  []string{"read"},
		Conditions: []PermissionCondition{
			{Type: ConditionNetwork, Operator: OpEquals, Value: "corporate"},
		},
	}

	assert.True(t, permissionAllows(perm, "database/production", "read",
		map[string]any{"network": "corporate"}))
	assert.False(t, permissionAllows(perm, "database/production", "read",
		map[string]any{"network": "public"}))
}

func TestConditionMissingContextFailsClosed(t *testing.T) {
	perm := Permission{
		Resource: "database/production",
		Actions:  []string{"read"},
		Conditions: []PermissionCondition{
			{Type: ConditionNetwork, Operator: OpEquals, Value: "corporate"},
		},
	}

	assert.False(t, permissionAllows(perm, "database/production", "read", nil))
	assert.False(t, permissionAllows(perm, "database/production", "read", map[string]any{}))
}

func TestConditionNotEquals(t *testing.T) {
	cond := PermissionCondition{Type: ConditionLocation, Operator: OpNotEquals, Value: "untrusted"}

	assert.True(t, conditionHolds(cond, map[string]any{"location": "office"}))
	assert.False(t, conditionHolds(cond, map[string]any{"location": "untrusted"}))
	assert.False(t, conditionHolds(cond, map[string]any{}))
}

func TestConditionIn(t *testing.T) {
	cond := PermissionCondition{Type: ConditionDevice, Operator: OpIn, Value: []string{"laptop-1", "laptop-2"}}

	assert.True(t, conditionHolds(cond, map[string]any{"device": "laptop-1"}))
	assert.False(t, conditionHolds(cond, map[string]any{"device": "laptop-3"}))
}

func TestConditionIn_JSONDecodedValue(t *testing.T) {
	// JSON decoding produces []any, not []string.
	cond := PermissionCondition{Type: ConditionDevice, Operator: OpIn, Value: []any{"laptop-1"}}

	assert.True(t, conditionHolds(cond, map[string]any{"device": "laptop-1"}))
}

func TestConditionNotIn(t *testing.T) {
	cond := PermissionCondition{Type: ConditionNetwork, Operator: OpNotIn, Value: []string{"guest", "public"}}

	assert.True(t, conditionHolds(cond, map[string]any{"network": "corporate"}))
	assert.False(t, conditionHolds(cond, map[string]any{"network": "guest"}))
}

func TestMultipleConditionsAllRequired(t *testing.T) {
	perm := Permission{
		Resource: "servers/*",
		Actions:  []string{"restart"},
		Conditions: []PermissionCondition{
			{Type: ConditionNetwork, Operator: OpEquals, Value: "corporate"},
			{Type: ConditionDevice, Operator: OpIn, Value: []string{"laptop-1"}},
		},
	}

	full := map[string]any{"network": "corporate", "device": "laptop-1"}
	partial := map[string]any{"network": "corporate"}

	assert.True(t, permissionAllows(perm, "servers/web-1", "restart", full))
	assert.False(t, permissionAllows(perm, "servers/web-1", "restart", partial))
}

// Package pam implements the just-in-time privileged access core: role
// catalog, access-request lifecycle, time-boxed sessions, permission
// evaluation, activity monitoring, and background expiry sweeping.
package pam

import (
	"fmt"
	"time"
)

// RiskLevel classifies how dangerous a role, request, or activity is.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// RequestStatus is the lifecycle state of an access request.
type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusApproved  RequestStatus = "approved"
	StatusDenied    RequestStatus = "denied"
	StatusActivated RequestStatus = "activated"
	StatusExpired   RequestStatus = "expired"
)

// ReviewDecision is an approver's verdict on a pending request.
type ReviewDecision string

const (
	DecisionApproved ReviewDecision = "approved"
	DecisionDenied   ReviewDecision = "denied"
)

// ConditionType identifies which context attribute a condition inspects.
type ConditionType string

const (
	ConditionTime     ConditionType = "time"
	ConditionLocation ConditionType = "location"
	ConditionDevice   ConditionType = "device"
	ConditionNetwork  ConditionType = "network"
)

// ConditionOperator compares a context attribute against a condition value.
type ConditionOperator string

const (
	OpEquals    ConditionOperator = "equals"
	OpNotEquals ConditionOperator = "not_equals"
	OpIn        ConditionOperator = "in"
	OpNotIn     ConditionOperator = "not_in"
)

// WarningType categorizes a session warning.
type WarningType string

const (
	WarningTime            WarningType = "time_warning"
	WarningUnusualActivity WarningType = "unusual_activity"
	WarningPolicyViolation WarningType = "policy_violation"
	WarningSecurityAlert   WarningType = "security_alert"
)

// AutoAction is the automatic response attached to a warning.
type AutoAction string

const (
	ActionLog    AutoAction = "log"
	ActionWarn   AutoAction = "warn"
	ActionRevoke AutoAction = "revoke"
)

// Severity grades a session warning.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// PermissionCondition qualifies a permission with a context check. Value is
// a single string for equals/not_equals and a string list for in/not_in.
type PermissionCondition struct {
	Type     ConditionType     `json:"type" yaml:"type"`
	Operator ConditionOperator `json:"operator" yaml:"operator"`
	Value    any               `json:"value" yaml:"value"`
}

// Permission is a resource-action rule. The resource pattern is a
// slash-separated path where a segment may be the wildcard "*".
type Permission struct {
	Resource   string                `json:"resource" yaml:"resource"`
	Actions    []string              `json:"actions" yaml:"actions"`
	Conditions []PermissionCondition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
}

// TimeWindow describes when a role may be used: a set of weekdays plus a
// daily start/end in the given timezone.
type TimeWindow struct {
	Days     []string `json:"days" yaml:"days"`         // "mon".."sun"
	Start    string   `json:"start" yaml:"start"`       // "09:00"
	End      string   `json:"end" yaml:"end"`           // "17:00"
	Timezone string   `json:"timezone" yaml:"timezone"` // IANA name, e.g. "UTC"
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday,
	"wed": time.Wednesday, "thu": time.Thursday, "fri": time.Friday,
	"sat": time.Saturday,
}

// Validate checks that the window's days, times, and timezone parse.
func (w TimeWindow) Validate() error {
	if len(w.Days) == 0 {
		return fmt.Errorf("time window has no days")
	}
	for _, d := range w.Days {
		if _, ok := weekdayNames[d]; !ok {
			return fmt.Errorf("unknown weekday %q", d)
		}
	}
	if _, err := time.Parse("15:04", w.Start); err != nil {
		return fmt.Errorf("invalid start time %q: %w", w.Start, err)
	}
	if _, err := time.Parse("15:04", w.End); err != nil {
		return fmt.Errorf("invalid end time %q: %w", w.End, err)
	}
	if _, err := time.LoadLocation(w.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", w.Timezone, err)
	}
	return nil
}

// Contains reports whether t falls inside the window.
func (w TimeWindow) Contains(t time.Time) bool {
	loc, err := time.LoadLocation(w.Timezone)
	if err != nil {
		return false
	}
	local := t.In(loc)

	dayOK := false
	for _, d := range w.Days {
		if wd, ok := weekdayNames[d]; ok && wd == local.Weekday() {
			dayOK = true
			break
		}
	}
	if !dayOK {
		return false
	}

	start, err := time.Parse("15:04", w.Start)
	if err != nil {
		return false
	}
	end, err := time.Parse("15:04", w.End)
	if err != nil {
		return false
	}
	minutes := local.Hour()*60 + local.Minute()
	return minutes >= start.Hour()*60+start.Minute() &&
		minutes <= end.Hour()*60+end.Minute()
}

// PrivilegedRole is a named bundle of permissions with attached risk and
// approval policy. Roles are registered at startup and immutable afterwards.
type PrivilegedRole struct {
	ID                 string       `json:"id" yaml:"id"`
	Name               string       `json:"name" yaml:"name"`
	Permissions        []Permission `json:"permissions" yaml:"permissions"`
	RiskLevel          RiskLevel    `json:"riskLevel" yaml:"riskLevel"`
	RequiresApproval   bool         `json:"requiresApproval" yaml:"requiresApproval"`
	MaxDuration        int          `json:"maxDuration" yaml:"maxDuration"` // minutes
	AllowedTimeWindows []TimeWindow `json:"allowedTimeWindows,omitempty" yaml:"allowedTimeWindows,omitempty"`
	RequiresMFA        bool         `json:"requiresMfa" yaml:"requiresMfa"`
	Approvers          []string     `json:"approvers,omitempty" yaml:"approvers,omitempty"`
}

// HasApprover reports whether userID is on the role's approver list.
func (r PrivilegedRole) HasApprover(userID string) bool {
	for _, a := range r.Approvers {
		if a == userID {
			return true
		}
	}
	return false
}

// RiskAssessment is the computed risk of an access request.
type RiskAssessment struct {
	Score   int       `json:"score"` // 0-100
	Factors []string  `json:"factors"`
	Level   RiskLevel `json:"level"`
}

// AccessRequest represents one privilege elevation attempt. After reaching a
// terminal status it is immutable history and is never deleted.
type AccessRequest struct {
	ID              string         `json:"id"`
	UserID          string         `json:"userId"`
	RoleID          string         `json:"roleId"`
	Justification   string         `json:"justification"`
	RequestedAt     time.Time      `json:"requestedAt"`
	RequestedFor    string         `json:"requestedFor,omitempty"`
	Duration        int            `json:"duration"` // minutes
	Status          RequestStatus  `json:"status"`
	ApprovedBy      string         `json:"approvedBy,omitempty"`
	ApprovedAt      *time.Time     `json:"approvedAt,omitempty"`
	DecisionReason  string         `json:"decisionReason,omitempty"`
	ExpiresAt       *time.Time     `json:"expiresAt,omitempty"`
	EmergencyAccess bool           `json:"emergencyAccess"`
	RiskAssessment  RiskAssessment `json:"riskAssessment"`
}

// Activity is one recorded privileged action within a session. Append-only.
type Activity struct {
	Timestamp   time.Time      `json:"timestamp"`
	Action      string         `json:"action"`
	Resource    string         `json:"resource"`
	Details     map[string]any `json:"details,omitempty"`
	RiskScore   int            `json:"riskScore"` // 0-100
	Blocked     bool           `json:"blocked"`
	BlockReason string         `json:"blockReason,omitempty"`
}

// SessionWarning is an alert appended to a session. Append-only; at most one
// time_warning per session lifetime.
type SessionWarning struct {
	Timestamp  time.Time   `json:"timestamp"`
	Type       WarningType `json:"type"`
	Message    string      `json:"message"`
	Severity   Severity    `json:"severity"`
	AutoAction AutoAction  `json:"autoAction,omitempty"`
}

// Session is a live, time-bounded privilege grant derived from an approved
// request. Permissions are frozen at activation; ExpiresAt never increases.
type Session struct {
	ID               string           `json:"id"`
	UserID           string           `json:"userId"`
	RoleID           string           `json:"roleId"`
	RequestID        string           `json:"requestId"`
	StartTime        time.Time        `json:"startTime"`
	ExpiresAt        time.Time        `json:"expiresAt"`
	Permissions      []Permission     `json:"permissions"`
	MonitoringActive bool             `json:"monitoringActive"`
	Activities       []Activity       `json:"activities"`
	Warnings         []SessionWarning `json:"warnings"`
}

// Decision is the outcome of a permission check.
type Decision struct {
	Allowed   bool   `json:"allowed"`
	SessionID string `json:"sessionId,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// clonePermissions deep-copies a permission list so frozen session snapshots
// and catalog reads cannot alias internal state.
func clonePermissions(perms []Permission) []Permission {
	if perms == nil {
		return nil
	}
	out := make([]Permission, len(perms))
	for i, p := range perms {
		cp := p
		cp.Actions = append([]string(nil), p.Actions...)
		if p.Conditions != nil {
			cp.Conditions = append([]PermissionCondition(nil), p.Conditions...)
		}
		out[i] = cp
	}
	return out
}

// cloneRole deep-copies a role.
func cloneRole(r PrivilegedRole) PrivilegedRole {
	cp := r
	cp.Permissions = clonePermissions(r.Permissions)
	cp.Approvers = append([]string(nil), r.Approvers...)
	if r.AllowedTimeWindows != nil {
		cp.AllowedTimeWindows = append([]TimeWindow(nil), r.AllowedTimeWindows...)
	}
	return cp
}

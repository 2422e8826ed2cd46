// Package pamerr provides the structured error taxonomy for the PAM core.
//
// Every failure mode surfaces as a typed error that unwraps to one of the
// sentinel errors below, so callers can branch with errors.Is while still
// getting the ids and constraint details they need to correct and retry.
package pamerr

import (
	"errors"
	"fmt"
)

// Sentinel errors for the PAM failure taxonomy.
var (
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("not found")
	ErrAuthorization   = errors.New("not authorized")
	ErrState           = errors.New("invalid state")
	ErrExpired         = errors.New("expired")
	ErrConfiguration   = errors.New("configuration error")
	ErrFeatureDisabled = errors.New("feature disabled")
)

// ValidationError reports malformed or out-of-policy input.
type ValidationError struct {
	Field      string
	Constraint string
	Message    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s (%s): %s", e.Field, e.Constraint, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidation creates a validation error for a single field constraint.
func NewValidation(field, constraint, message string) *ValidationError {
	return &ValidationError{Field: field, Constraint: constraint, Message: message}
}

// NotFoundError reports an unknown role, request, or session id.
type NotFoundError struct {
	Kind string // "role", "request", "session"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NewNotFound creates a not-found error for the given entity kind and id.
func NewNotFound(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

// AuthorizationError reports a caller without standing to act.
type AuthorizationError struct {
	UserID string
	Action string
	Detail string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("user %s not authorized to %s: %s", e.UserID, e.Action, e.Detail)
}

func (e *AuthorizationError) Unwrap() error { return ErrAuthorization }

// NewAuthorization creates an authorization error.
func NewAuthorization(userID, action, detail string) *AuthorizationError {
	return &AuthorizationError{UserID: userID, Action: action, Detail: detail}
}

// StateError reports an operation invalid for the entity's current
// lifecycle state, e.g. deciding an already-decided request.
type StateError struct {
	Kind   string
	ID     string
	Status string
	Op     string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s %s %s in status %q", e.Op, e.Kind, e.ID, e.Status)
}

func (e *StateError) Unwrap() error { return ErrState }

// NewState creates a state error.
func NewState(kind, id, status, op string) *StateError {
	return &StateError{Kind: kind, ID: id, Status: status, Op: op}
}

// ExpiredError reports a request or session whose time window has passed.
type ExpiredError struct {
	Kind string
	ID   string
}

func (e *ExpiredError) Error() string {
	return fmt.Sprintf("%s %s has expired", e.Kind, e.ID)
}

func (e *ExpiredError) Unwrap() error { return ErrExpired }

// NewExpired creates an expired error.
func NewExpired(kind, id string) *ExpiredError {
	return &ExpiredError{Kind: kind, ID: id}
}

// ConfigurationError reports a missing or inconsistent system configuration,
// e.g. no emergency_admin role defined.
type ConfigurationError struct {
	Detail string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Detail
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// NewConfiguration creates a configuration error.
func NewConfiguration(detail string) *ConfigurationError {
	return &ConfigurationError{Detail: detail}
}

// FeatureDisabledError reports an operation gated behind a disabled feature.
type FeatureDisabledError struct {
	Feature string
}

func (e *FeatureDisabledError) Error() string {
	return fmt.Sprintf("feature %q is disabled", e.Feature)
}

func (e *FeatureDisabledError) Unwrap() error { return ErrFeatureDisabled }

// NewFeatureDisabled creates a feature-disabled error.
func NewFeatureDisabled(feature string) *FeatureDisabledError {
	return &FeatureDisabledError{Feature: feature}
}

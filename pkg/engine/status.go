package engine

import (
	"fmt"
	"strings"
)

// Action is the lifecycle transition requested by the orchestrator.
type Action string

const (
	// ActionCreate provisions a new resource.
	ActionCreate Action = "CREATE"

	// ActionRead describes the current state of an existing resource.
	ActionRead Action = "READ"

	// ActionUpdate converges an existing resource to a new desired state.
	ActionUpdate Action = "UPDATE"

	// ActionDelete removes an existing resource.
	ActionDelete Action = "DELETE"
)

// Actions lists every lifecycle transition in dispatch order.
var Actions = []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete}

// ParseAction converts a case-insensitive action name into an Action.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToUpper(strings.TrimSpace(s)))
	if err := a.Validate(); err != nil {
		return "", err
	}
	return a, nil
}

// IsMutating returns true if the action changes the external resource.
func (a Action) IsMutating() bool {
	return a == ActionCreate || a == ActionUpdate || a == ActionDelete
}

// RequiresPreviousState returns true if the action compares against previous state.
func (a Action) RequiresPreviousState() bool {
	return a == ActionUpdate || a == ActionDelete
}

// Validate checks if the action is valid.
func (a Action) Validate() error {
	switch a {
	case ActionCreate, ActionRead, ActionUpdate, ActionDelete:
		return nil
	default:
		return fmt.Errorf("invalid action: %q", string(a))
	}
}

// OperationStatus is the status of a progress event.
type OperationStatus string

const (
	// OperationStatusPending indicates the invocation has not started.
	OperationStatusPending OperationStatus = "PENDING"

	// OperationStatusInProgress indicates the orchestrator should call back later.
	OperationStatusInProgress OperationStatus = "IN_PROGRESS"

	// OperationStatusSuccess indicates the transition completed.
	OperationStatusSuccess OperationStatus = "SUCCESS"

	// OperationStatusFailed indicates the transition failed; see the error code.
	OperationStatusFailed OperationStatus = "FAILED"
)

// IsTerminal returns true if the status represents a final state.
func (s OperationStatus) IsTerminal() bool {
	return s == OperationStatusSuccess || s == OperationStatusFailed
}

// Validate checks if the operation status is valid.
func (s OperationStatus) Validate() error {
	switch s {
	case OperationStatusPending, OperationStatusInProgress,
		OperationStatusSuccess, OperationStatusFailed:
		return nil
	default:
		return fmt.Errorf("invalid operation status: %s", s)
	}
}

package policy

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/openfroyo/monitor-provider/pkg/engine"
	"github.com/openfroyo/monitor-provider/pkg/model"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for findings that are logged but never block.
	SeverityWarning Severity = "warning"

	// SeverityError blocks the operation.
	SeverityError Severity = "error"

	// SeverityCritical blocks the operation.
	SeverityCritical Severity = "critical"
)

// Blocking reports whether a violation of this severity denies admission.
func (s Severity) Blocking() bool {
	return s == SeverityError || s == SeverityCritical
}

// Policy is a Rego module that yields a "deny" set for a monitor.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego v1 policy code.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Source is the file the policy was loaded from, empty for built-ins.
	Source string `json:"source,omitempty"`

	// LoadedAt is when the policy was loaded.
	LoadedAt time.Time `json:"loaded_at"`
}

// Violation is one entry of a policy's deny set.
type Violation struct {
	Policy   string   `json:"policy"`
	Property string   `json:"property,omitempty"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

func (v Violation) String() string {
	if v.Property != "" {
		return fmt.Sprintf("%s: %s (%s)", v.Property, v.Message, v.Policy)
	}
	return fmt.Sprintf("%s (%s)", v.Message, v.Policy)
}

// Result is the outcome of evaluating every enabled policy.
type Result struct {
	// Allowed is false when any blocking violation was found.
	Allowed bool `json:"allowed"`

	// Violations are blocking findings.
	Violations []Violation `json:"violations,omitempty"`

	// Warnings are non-blocking findings and evaluation failures.
	Warnings []Violation `json:"warnings,omitempty"`

	// EvaluatedPolicies lists the names of policies that were evaluated.
	EvaluatedPolicies []string `json:"evaluated_policies"`

	// Duration is how long the evaluation took.
	Duration time.Duration `json:"duration"`
}

// Err returns an InvalidRequest handler error describing the blocking
// violations, or nil when the monitor was admitted.
func (r *Result) Err() error {
	if r == nil || r.Allowed {
		return nil
	}
	msgs := make([]string, 0, len(r.Violations))
	for _, v := range r.Violations {
		msgs = append(msgs, v.String())
	}
	return engine.NewInvalidRequest("policy violation: " + strings.Join(msgs, "; "))
}

// Input is the document exposed to policies as "input".
//
//	{"action": "CREATE", "monitor": {"Name": ..., "Uri": ...}, "previous": {...}}
//
// Property names match the resource schema. The API key is never included.
type Input struct {
	Action   engine.Action
	Monitor  model.Monitor
	Previous *model.Monitor
}

// document converts the input to plain JSON values.
func (in Input) document() (map[string]interface{}, error) {
	doc := map[string]interface{}{
		"action":  string(in.Action),
		"monitor": in.Monitor.WithoutSecrets(),
	}
	if in.Previous != nil {
		doc["previous"] = in.Previous.WithoutSecrets()
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode policy input: %w", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode policy input: %w", err)
	}
	return out, nil
}

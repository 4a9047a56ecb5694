package policy

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/openfroyo/monitor-provider/pkg/engine"
	"github.com/openfroyo/monitor-provider/pkg/model"
)

const domainPolicy = `package monitor.policies.domain

import rego.v1

deny contains violation if {
	not endswith(input.monitor.Uri, ".example.org")
	violation := {"message": "Uri must be on example.org", "property": "Uri"}
}
`

func newTestEngine(t *testing.T) *Engine {
	t.Helper()

	eng, err := NewEngine(zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return eng
}

func monitor(uri string, frequency int) model.Monitor {
	return model.Monitor{Name: "homepage", URI: uri, Frequency: model.Int(frequency), APIKey: "secret"}
}

func TestNewEngineLoadsBuiltins(t *testing.T) {
	eng := newTestEngine(t)

	policies := eng.ListPolicies()
	if len(policies) != 2 {
		t.Fatalf("ListPolicies() = %d policies, want 2", len(policies))
	}
	if policies[0].Name != "check-frequency" || policies[1].Name != "secure-uri" {
		t.Errorf("ListPolicies() names = %s, %s", policies[0].Name, policies[1].Name)
	}
}

func TestBuiltinsOnlyWarn(t *testing.T) {
	eng := newTestEngine(t)

	tests := []struct {
		name     string
		monitor  model.Monitor
		warnings int
	}{
		{name: "clean", monitor: monitor("https://www.example.org", 5), warnings: 0},
		{name: "plain http", monitor: monitor("http://www.example.org", 5), warnings: 1},
		{name: "plain http and rare checks", monitor: monitor("HTTP://www.example.org", 120), warnings: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := eng.Evaluate(context.Background(), Input{Action: engine.ActionCreate, Monitor: tt.monitor})
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if !result.Allowed {
				t.Errorf("Allowed = false, violations = %v", result.Violations)
			}
			if len(result.Warnings) != tt.warnings {
				t.Errorf("Warnings = %v, want %d", result.Warnings, tt.warnings)
			}
			if err := result.Err(); err != nil {
				t.Errorf("Err() = %v, want nil", err)
			}
		})
	}
}

func TestBlockingPolicy(t *testing.T) {
	eng := newTestEngine(t)
	err := eng.Replace(context.Background(), []Policy{{
		Name:     "domain",
		Rego:     domainPolicy,
		Severity: SeverityError,
		Enabled:  true,
	}})
	if err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	result, err := eng.Evaluate(context.Background(), Input{Action: engine.ActionUpdate, Monitor: monitor("https://elsewhere.net", 5)})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if result.Allowed {
		t.Fatal("Allowed = true, want false")
	}
	if len(result.Violations) != 1 || result.Violations[0].Property != "Uri" {
		t.Errorf("Violations = %v", result.Violations)
	}

	herr := result.Err()
	if !engine.IsInvalidRequest(herr) {
		t.Errorf("Err() = %v, want InvalidRequest", herr)
	}

	if err := eng.DisablePolicy("domain"); err != nil {
		t.Fatal(err)
	}
	result, err = eng.Evaluate(context.Background(), Input{Action: engine.ActionUpdate, Monitor: monitor("https://elsewhere.net", 5)})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Allowed {
		t.Error("disabled policy still blocks")
	}
}

func TestViolationSeverityOverride(t *testing.T) {
	eng := newTestEngine(t)
	err := eng.Replace(context.Background(), []Policy{{
		Name: "no-muted",
		Rego: `package monitor.policies.muted

import rego.v1

deny contains {"message": "previous monitor was muted", "severity": "critical"} if {
	input.previous.Status == "MUTED"
}
`,
		Severity: SeverityWarning,
		Enabled:  true,
	}})
	if err != nil {
		t.Fatal(err)
	}

	previous := monitor("https://www.example.org", 5).WithServerDefaults()
	result, err := eng.Evaluate(context.Background(), Input{
		Action:   engine.ActionUpdate,
		Monitor:  monitor("https://www.example.org", 5),
		Previous: &previous,
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Allowed || result.Violations[0].Severity != SeverityCritical {
		t.Errorf("result = %+v, want critical violation", result)
	}
}

func TestInputNeverCarriesAPIKey(t *testing.T) {
	doc, err := Input{Action: engine.ActionCreate, Monitor: monitor("https://www.example.org", 5)}.document()
	if err != nil {
		t.Fatal(err)
	}
	props, ok := doc["monitor"].(map[string]interface{})
	if !ok {
		t.Fatalf("monitor = %T", doc["monitor"])
	}
	if _, present := props["ApiKey"]; present {
		t.Error("ApiKey exposed to policies")
	}
	if _, present := doc["previous"]; present {
		t.Error("previous present without a previous state")
	}
}

func TestReplaceRejectsInvalidRego(t *testing.T) {
	eng := newTestEngine(t)

	err := eng.Replace(context.Background(), []Policy{{Name: "broken", Rego: "package x\n\ndeny[msg] {", Enabled: true}})
	if err == nil {
		t.Fatal("expected compile error")
	}
	if len(eng.ListPolicies()) != 2 {
		t.Error("failed replace changed the loaded policies")
	}
}

func TestPolicyLookup(t *testing.T) {
	eng := newTestEngine(t)

	p, err := eng.GetPolicy("secure-uri")
	if err != nil {
		t.Fatalf("GetPolicy() error = %v", err)
	}
	if p.Severity != SeverityWarning {
		t.Errorf("Severity = %s", p.Severity)
	}
	if _, err := eng.GetPolicy("missing"); err == nil {
		t.Error("expected error for unknown policy")
	}
	if err := eng.EnablePolicy("missing"); err == nil {
		t.Error("expected error enabling unknown policy")
	}
}

func TestResultErrNil(t *testing.T) {
	var r *Result
	if err := r.Err(); err != nil {
		t.Errorf("nil Result Err() = %v", err)
	}
}

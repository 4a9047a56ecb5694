// Package model defines the website monitor resource state and its
// property-level parsing, serialisation, and validation.
package model

import (
	"encoding/json"
)

// TypeName is the resource type name of a website monitor.
const TypeName = "Example::Monitoring::Website"

// Property names as they appear in resource state documents.
const (
	PropName         = "Name"
	PropURI          = "Uri"
	PropID           = "Id"
	PropKind         = "Kind"
	PropStatus       = "Status"
	PropLocations    = "Locations"
	PropSLAThreshold = "SlaThreshold"
	PropFrequency    = "Frequency"
	PropAPIKey       = "ApiKey"
)

// Server-assigned defaults. Create and Update always overwrite the caller's
// Kind, Status, Locations, and SlaThreshold with these values.
const (
	KindSimple          = "SIMPLE"
	StatusMuted         = "MUTED"
	DefaultSLAThreshold = 7.0
	DefaultFrequency    = 5
)

// DefaultLocations returns the default monitoring regions.
func DefaultLocations() []string {
	return []string{"region-a", "region-b"}
}

// Monitor is the state of one website monitor. Values are treated as
// immutable: every With* method returns a modified copy.
type Monitor struct {
	// Name is the primary identifier; it cannot change after creation.
	Name string `prop:"Name" validate:"omitempty,max=255"`

	// URI is the website being monitored.
	URI string `prop:"Uri" validate:"omitempty,http_url"`

	// ID is assigned by the control plane on create.
	ID string `prop:"Id" validate:"omitempty,max=128"`

	// Kind is the monitor type.
	Kind string `prop:"Kind"`

	// Status is the monitor status.
	Status string `prop:"Status"`

	// Locations is the ordered set of monitoring regions. Caller input is
	// replaced by the server defaults, so it is not validated.
	Locations []string `prop:"Locations"`

	// SLAThreshold is the SLA threshold in seconds. Like Locations it is
	// always server-defaulted.
	SLAThreshold *float64 `prop:"SlaThreshold"`

	// Frequency is the ping interval in minutes.
	Frequency *int `prop:"Frequency" validate:"omitempty,gte=1,lte=1440"`

	// APIKey is the write-only control-plane credential.
	APIKey string `prop:"ApiKey"`
}

// Clone returns a deep copy of m.
func (m Monitor) Clone() Monitor {
	out := m
	if m.Locations != nil {
		out.Locations = append([]string(nil), m.Locations...)
	}
	if m.SLAThreshold != nil {
		v := *m.SLAThreshold
		out.SLAThreshold = &v
	}
	if m.Frequency != nil {
		v := *m.Frequency
		out.Frequency = &v
	}
	return out
}

// HasID reports whether the control-plane identifier is set.
func (m Monitor) HasID() bool {
	return m.ID != ""
}

// WithID returns a copy of m with the given identifier.
func (m Monitor) WithID(id string) Monitor {
	out := m.Clone()
	out.ID = id
	return out
}

// WithDefaultFrequency returns a copy of m whose Frequency is set,
// defaulting to DefaultFrequency.
func (m Monitor) WithDefaultFrequency() Monitor {
	out := m.Clone()
	if out.Frequency == nil {
		out.Frequency = Int(DefaultFrequency)
	}
	return out
}

// WithServerDefaults returns a copy of m with Kind, Status, Locations, and
// SlaThreshold replaced by the server defaults, whatever the caller supplied.
func (m Monitor) WithServerDefaults() Monitor {
	out := m.Clone()
	out.Kind = KindSimple
	out.Status = StatusMuted
	out.Locations = DefaultLocations()
	out.SLAThreshold = Float64(DefaultSLAThreshold)
	return out
}

// WithoutSecrets returns a copy of m with write-only properties cleared.
func (m Monitor) WithoutSecrets() Monitor {
	out := m.Clone()
	out.APIKey = ""
	return out
}

// WithFallback returns a copy of m in which every unset property is taken
// from fallback. The secret is never copied.
func (m Monitor) WithFallback(fallback Monitor) Monitor {
	out := m.Clone()
	fb := fallback.Clone()
	if out.Name == "" {
		out.Name = fb.Name
	}
	if out.URI == "" {
		out.URI = fb.URI
	}
	if out.ID == "" {
		out.ID = fb.ID
	}
	if out.Kind == "" {
		out.Kind = fb.Kind
	}
	if out.Status == "" {
		out.Status = fb.Status
	}
	if len(out.Locations) == 0 {
		out.Locations = fb.Locations
	}
	if out.SLAThreshold == nil {
		out.SLAThreshold = fb.SLAThreshold
	}
	if out.Frequency == nil {
		out.Frequency = fb.Frequency
	}
	return out
}

// PrimaryIdentifier returns the primary identifier document, or nil if
// the name is not set.
func (m Monitor) PrimaryIdentifier() map[string]string {
	if m.Name == "" {
		return nil
	}
	return map[string]string{"/properties/" + PropName: m.Name}
}

// Properties serialises m into a property map. Unset properties are omitted.
func (m Monitor) Properties() map[string]interface{} {
	props := make(map[string]interface{})
	setString := func(key, v string) {
		if v != "" {
			props[key] = v
		}
	}
	setString(PropName, m.Name)
	setString(PropURI, m.URI)
	setString(PropID, m.ID)
	setString(PropKind, m.Kind)
	setString(PropStatus, m.Status)
	if m.Locations != nil {
		props[PropLocations] = append([]string(nil), m.Locations...)
	}
	if m.SLAThreshold != nil {
		props[PropSLAThreshold] = *m.SLAThreshold
	}
	if m.Frequency != nil {
		props[PropFrequency] = *m.Frequency
	}
	setString(PropAPIKey, m.APIKey)
	return props
}

// MarshalJSON implements json.Marshaler using the property names.
func (m Monitor) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Properties())
}

// UnmarshalJSON implements json.Unmarshaler using ParseMonitor.
func (m *Monitor) UnmarshalJSON(data []byte) error {
	parsed, err := ParseMonitor(data)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Float64 returns a pointer to v.
func Float64(v float64) *float64 { return &v }

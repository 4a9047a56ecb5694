package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMonitor(t *testing.T) {
	raw := []byte(`{
		"Name": "shop",
		"Uri": "https://shop.example.com",
		"Id": "m-1",
		"Locations": ["region-b", "region-a"],
		"SlaThreshold": "7.5",
		"Frequency": "10",
		"ApiKey": "secret"
	}`)

	m, err := ParseMonitor(raw)
	require.NoError(t, err)

	assert.Equal(t, "shop", m.Name)
	assert.Equal(t, "https://shop.example.com", m.URI)
	assert.Equal(t, "m-1", m.ID)
	assert.Equal(t, []string{"region-b", "region-a"}, m.Locations)
	require.NotNil(t, m.SLAThreshold)
	assert.Equal(t, 7.5, *m.SLAThreshold)
	require.NotNil(t, m.Frequency)
	assert.Equal(t, 10, *m.Frequency)
	assert.Equal(t, "secret", m.APIKey)
}

func TestParseMonitorEmpty(t *testing.T) {
	for _, raw := range []string{"", "  ", "null", "{}"} {
		m, err := ParseMonitor([]byte(raw))
		require.NoError(t, err, "input %q", raw)
		assert.Equal(t, Monitor{}, m, "input %q", raw)
	}
}

func TestParseMonitorIntegralFloat(t *testing.T) {
	m, err := ParseMonitor([]byte(`{"Frequency": 15.0}`))
	require.NoError(t, err)
	require.NotNil(t, m.Frequency)
	assert.Equal(t, 15, *m.Frequency)
}

func TestParseMonitorRejectsBadShapes(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		property string
	}{
		{name: "fractional frequency", raw: `{"Frequency": 5.5}`, property: PropFrequency},
		{name: "boolean frequency", raw: `{"Frequency": true}`, property: PropFrequency},
		{name: "non numeric string", raw: `{"Frequency": "often"}`, property: PropFrequency},
		{name: "object threshold", raw: `{"SlaThreshold": {}}`, property: PropSLAThreshold},
		{name: "numeric name", raw: `{"Name": 12}`, property: PropName},
		{name: "locations not a list", raw: `{"Locations": "region-a"}`, property: PropLocations},
		{name: "location not a string", raw: `{"Locations": ["region-a", 3]}`, property: "Locations[1]"},
		{name: "unknown property", raw: `{"Colour": "red"}`, property: "Colour"},
		{name: "not an object", raw: `["shop"]`, property: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMonitor([]byte(tt.raw))
			require.Error(t, err)

			var fe *FieldError
			require.True(t, errors.As(err, &fe), "expected *FieldError, got %T", err)
			assert.Equal(t, tt.property, fe.Property)
		})
	}
}

func TestMonitorJSONRoundTrip(t *testing.T) {
	in := Monitor{Name: "shop", URI: "https://shop.example.com"}.
		WithServerDefaults().
		WithDefaultFrequency().
		WithID("m-1")

	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out Monitor
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestPropertiesOmitUnset(t *testing.T) {
	props := Monitor{Name: "shop"}.Properties()
	assert.Equal(t, map[string]interface{}{PropName: "shop"}, props)
}

func TestWithServerDefaultsOverwrites(t *testing.T) {
	in := Monitor{
		Name:         "shop",
		Kind:         "BROWSER",
		Status:       "ENABLED",
		Locations:    []string{"region-z"},
		SLAThreshold: Float64(1),
	}

	out := in.WithServerDefaults()

	assert.Equal(t, KindSimple, out.Kind)
	assert.Equal(t, StatusMuted, out.Status)
	assert.Equal(t, DefaultLocations(), out.Locations)
	assert.Equal(t, DefaultSLAThreshold, *out.SLAThreshold)

	// The receiver is left untouched.
	assert.Equal(t, "BROWSER", in.Kind)
	assert.Equal(t, []string{"region-z"}, in.Locations)
	assert.Equal(t, 1.0, *in.SLAThreshold)
}

func TestWithDefaultFrequency(t *testing.T) {
	assert.Equal(t, DefaultFrequency, *Monitor{}.WithDefaultFrequency().Frequency)
	assert.Equal(t, 60, *Monitor{Frequency: Int(60)}.WithDefaultFrequency().Frequency)
}

func TestWithoutSecrets(t *testing.T) {
	in := Monitor{Name: "shop", APIKey: "secret"}
	out := in.WithoutSecrets()

	assert.Empty(t, out.APIKey)
	assert.Equal(t, "secret", in.APIKey)
	assert.NotContains(t, out.Properties(), PropAPIKey)
}

func TestWithFallback(t *testing.T) {
	fetched := Monitor{ID: "m-1", URI: "https://new.example.com", Frequency: Int(10)}
	desired := Monitor{Name: "shop", URI: "https://old.example.com", APIKey: "secret", SLAThreshold: Float64(3)}

	out := fetched.WithFallback(desired)

	assert.Equal(t, "shop", out.Name)
	assert.Equal(t, "https://new.example.com", out.URI)
	assert.Equal(t, 10, *out.Frequency)
	assert.Equal(t, 3.0, *out.SLAThreshold)
	assert.Empty(t, out.APIKey)
}

func TestPrimaryIdentifier(t *testing.T) {
	assert.Nil(t, Monitor{}.PrimaryIdentifier())
	assert.Equal(t, map[string]string{"/properties/Name": "shop"}, Monitor{Name: "shop"}.PrimaryIdentifier())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		monitor  Monitor
		property string
	}{
		{name: "valid", monitor: Monitor{Name: "shop", URI: "https://shop.example.com", Frequency: Int(5)}},
		{name: "empty is valid", monitor: Monitor{}},
		{name: "bad uri", monitor: Monitor{URI: "shop.example.com"}, property: PropURI},
		{name: "zero frequency", monitor: Monitor{Frequency: Int(0)}, property: PropFrequency},
		{name: "frequency too large", monitor: Monitor{Frequency: Int(2000)}, property: PropFrequency},
		{name: "negative threshold is not checked", monitor: Monitor{SLAThreshold: Float64(-1)}},
		{name: "duplicate locations are not checked", monitor: Monitor{Locations: []string{"a", "a"}}},
		{name: "empty location is not checked", monitor: Monitor{Locations: []string{"", "a"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.monitor.Validate()
			if tt.property == "" {
				require.NoError(t, err)
				return
			}

			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "expected *ValidationError, got %v", err)
			require.Len(t, verr.Problems, 1)
			assert.Equal(t, tt.property, verr.Problems[0].Property)
		})
	}
}

func TestValidateForCreateRequiresNameAndURI(t *testing.T) {
	err := Monitor{}.ValidateForCreate()

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Problems, 2)
	assert.Equal(t, PropName, verr.Problems[0].Property)
	assert.Equal(t, PropURI, verr.Problems[1].Property)

	require.NoError(t, Monitor{Name: "shop", URI: "http://shop.example.com"}.ValidateForCreate())
}

func TestSchemaMatchesModel(t *testing.T) {
	s, err := LoadSchema()
	require.NoError(t, err)

	assert.Equal(t, TypeName, s.TypeName)
	assert.Equal(t, []string{PropertyPointer(PropName)}, s.PrimaryIdentifier)
	assert.Equal(t, []string{PropertyPointer(PropID)}, s.ReadOnlyProperties)
	assert.Equal(t, []string{PropertyPointer(PropName)}, s.CreateOnlyProperties)
	assert.Equal(t, []string{PropertyPointer(PropAPIKey)}, s.WriteOnlyProperties)

	// Every schema property must be accepted by the parser.
	doc := make(map[string]interface{}, len(s.Properties))
	for name := range s.Properties {
		doc[name] = nil
	}
	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	_, err = ParseMonitor(raw)
	require.NoError(t, err)
	assert.Len(t, s.Properties, len(Monitor{Name: "a", URI: "b", ID: "c", Kind: "d", Status: "e",
		Locations: []string{}, SLAThreshold: Float64(0), Frequency: Int(0), APIKey: "f"}.Properties()))
}

package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FieldError reports a property whose value has the wrong shape.
type FieldError struct {
	Property string
	Reason   string
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	if e.Property == "" {
		return e.Reason
	}
	return fmt.Sprintf("property %s: %s", e.Property, e.Reason)
}

// ParseMonitor decodes a resource state document. An empty or null
// document yields the zero Monitor. Unknown properties and values of the
// wrong shape are rejected with a *FieldError. Numeric properties may
// also be given as numeric strings.
func ParseMonitor(raw []byte) (Monitor, error) {
	var m Monitor
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return m, nil
	}

	var props map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &props); err != nil {
		return m, &FieldError{Reason: fmt.Sprintf("resource state must be an object: %v", err)}
	}

	var err error
	for key, value := range props {
		switch key {
		case PropName:
			m.Name, err = parseString(key, value)
		case PropURI:
			m.URI, err = parseString(key, value)
		case PropID:
			m.ID, err = parseString(key, value)
		case PropKind:
			m.Kind, err = parseString(key, value)
		case PropStatus:
			m.Status, err = parseString(key, value)
		case PropAPIKey:
			m.APIKey, err = parseString(key, value)
		case PropLocations:
			m.Locations, err = parseStringList(key, value)
		case PropSLAThreshold:
			m.SLAThreshold, err = parseFloat(key, value)
		case PropFrequency:
			m.Frequency, err = parseInt(key, value)
		default:
			err = &FieldError{Property: key, Reason: "unknown property"}
		}
		if err != nil {
			return Monitor{}, err
		}
	}
	return m, nil
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

func parseString(prop string, raw json.RawMessage) (string, error) {
	if isNull(raw) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", &FieldError{Property: prop, Reason: fmt.Sprintf("expected string, got %s", raw)}
	}
	return s, nil
}

func parseStringList(prop string, raw json.RawMessage) ([]string, error) {
	if isNull(raw) {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, &FieldError{Property: prop, Reason: fmt.Sprintf("expected list of strings, got %s", raw)}
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			return nil, &FieldError{Property: fmt.Sprintf("%s[%d]", prop, i), Reason: fmt.Sprintf("expected string, got %s", item)}
		}
		out = append(out, s)
	}
	return out, nil
}

// numberText returns the literal of a JSON number or numeric string.
func numberText(prop string, raw json.RawMessage) (string, error) {
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return "", &FieldError{Property: prop, Reason: fmt.Sprintf("expected number, got %s", raw)}
	}
	switch tv := v.(type) {
	case json.Number:
		n = tv
	case string:
		n = json.Number(strings.TrimSpace(tv))
	default:
		return "", &FieldError{Property: prop, Reason: fmt.Sprintf("expected number, got %s", raw)}
	}
	return n.String(), nil
}

func parseFloat(prop string, raw json.RawMessage) (*float64, error) {
	if isNull(raw) {
		return nil, nil
	}
	text, err := numberText(prop, raw)
	if err != nil {
		return nil, err
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, &FieldError{Property: prop, Reason: fmt.Sprintf("expected number, got %s", raw)}
	}
	return &f, nil
}

func parseInt(prop string, raw json.RawMessage) (*int, error) {
	if isNull(raw) {
		return nil, nil
	}
	text, err := numberText(prop, raw)
	if err != nil {
		return nil, err
	}
	if i, err := strconv.Atoi(text); err == nil {
		return &i, nil
	}
	// Accept integral floats such as 5.0 or 1e1.
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return nil, &FieldError{Property: prop, Reason: fmt.Sprintf("expected integer, got %s", raw)}
	}
	i := int(f)
	return &i, nil
}

package model

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed schema/example-monitoring-website.json
var schemaDocument []byte

// ResourceSchema is the subset of the resource schema the handler relies on.
type ResourceSchema struct {
	TypeName             string                     `json:"typeName"`
	Description          string                     `json:"description"`
	Properties           map[string]json.RawMessage `json:"properties"`
	Required             []string                   `json:"required"`
	PrimaryIdentifier    []string                   `json:"primaryIdentifier"`
	ReadOnlyProperties   []string                   `json:"readOnlyProperties"`
	CreateOnlyProperties []string                   `json:"createOnlyProperties"`
	WriteOnlyProperties  []string                   `json:"writeOnlyProperties"`
}

// SchemaDocument returns the raw resource schema.
func SchemaDocument() []byte {
	return append([]byte(nil), schemaDocument...)
}

// LoadSchema parses the embedded resource schema.
func LoadSchema() (*ResourceSchema, error) {
	var s ResourceSchema
	if err := json.Unmarshal(schemaDocument, &s); err != nil {
		return nil, fmt.Errorf("failed to parse resource schema: %w", err)
	}
	return &s, nil
}

// PropertyPointer returns the schema pointer of a property name.
func PropertyPointer(prop string) string {
	return "/properties/" + prop
}

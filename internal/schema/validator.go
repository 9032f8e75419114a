// internal/schema/validator.go
// Package schema validates wallpaper payloads against an embedded JSON
// schema before they reach storage.
package schema

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// wallpaperProperties is shared between the create and update schemas; only
// the required set differs.
const wallpaperProperties = `{
	"id":         {"type": "string", "minLength": 1},
	"title":      {"type": "string", "minLength": 1},
	"filename":   {"type": "string", "minLength": 1},
	"category":   {"type": "string", "minLength": 1},
	"tags":       {"type": "array", "items": {"type": "string"}},
	"resolution": {"type": "string"},
	"likes":      {"type": "integer", "minimum": 0},
	"downloads":  {"type": "integer", "minimum": 0}
}`

// Validator checks wallpaper documents against the embedded schemas.
type Validator struct {
	create *gojsonschema.Schema
	update *gojsonschema.Schema
}

// NewValidator compiles the wallpaper schemas.
func NewValidator() (*Validator, error) {
	createSchema := fmt.Sprintf(`{
		"type": "object",
		"properties": %s,
		"required": ["id", "title", "filename", "category"]
	}`, wallpaperProperties)

	updateSchema := fmt.Sprintf(`{
		"type": "object",
		"properties": %s
	}`, wallpaperProperties)

	create, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(createSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile create schema: %w", err)
	}
	update, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(updateSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile update schema: %w", err)
	}

	return &Validator{create: create, update: update}, nil
}

// ValidateCreate validates a full wallpaper document for creation.
func (v *Validator) ValidateCreate(body []byte) error {
	return validate(v.create, body)
}

// ValidateUpdate validates a partial wallpaper document for update; all
// fields are optional but must be well-typed.
func (v *Validator) ValidateUpdate(body []byte) error {
	return validate(v.update, body)
}

func validate(schema *gojsonschema.Schema, body []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return fmt.Errorf("invalid wallpaper payload: %s", strings.Join(msgs, "; "))
}

// Package schema validates tool arguments against their JSON schema before a
// tool runs.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

const maxReportedErrors = 3

// Validator compiles each distinct schema once and caches it.
type Validator struct {
	cache sync.Map // map[string]*gojsonschema.Schema
}

func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks argsJSON against schemaData, which may be any value that
// marshals to a JSON schema document.
func (v *Validator) Validate(schemaData any, argsJSON string) error {
	s, err := v.compile(schemaData)
	if err != nil {
		return fmt.Errorf("invalid schema definition: %w", err)
	}

	if strings.TrimSpace(argsJSON) == "" {
		argsJSON = "{}"
	}
	result, err := s.Validate(gojsonschema.NewStringLoader(argsJSON))
	if err != nil {
		return fmt.Errorf("arguments are not valid JSON: %w", err)
	}
	if result.Valid() {
		return nil
	}

	errs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		errs = append(errs, desc.String())
	}
	return fmt.Errorf("schema validation failed:\n- %s", summarize(errs))
}

func (v *Validator) compile(schemaData any) (*gojsonschema.Schema, error) {
	raw, err := json.Marshal(schemaData)
	if err != nil {
		return nil, err
	}
	key := string(raw)
	if s, ok := v.cache.Load(key); ok {
		return s.(*gojsonschema.Schema), nil
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, err
	}
	v.cache.Store(key, s)
	return s, nil
}

func summarize(errs []string) string {
	if len(errs) <= maxReportedErrors {
		return strings.Join(errs, "\n- ")
	}
	return strings.Join(errs[:maxReportedErrors], "\n- ") + fmt.Sprintf("\n... and %d more", len(errs)-maxReportedErrors)
}

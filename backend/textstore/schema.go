package textstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrSchemaViolation is returned when a document does not satisfy its table schema.
var ErrSchemaViolation = errors.New("strata: document violates schema")

type schemas struct {
	byTable map[string]*gojsonschema.Schema
}

func compileSchemas(sources map[string]string) (*schemas, error) {
	s := &schemas{byTable: make(map[string]*gojsonschema.Schema, len(sources))}
	for table, src := range sources {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
		if err != nil {
			return nil, fmt.Errorf("invalid json schema for %s: %w", table, err)
		}
		s.byTable[table] = schema
	}
	return s, nil
}

func (s *schemas) validate(table string, doc map[string]any) error {
	schema, ok := s.byTable[table]
	if !ok {
		return nil
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		errs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}
		return fmt.Errorf("%w: %s: %s", ErrSchemaViolation, table, strings.Join(errs, "; "))
	}
	return nil
}

package server

import (
	"bytes"
	"embed"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/authplane/authplane/internal/apperr"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// RequestValidator checks decoded request bodies against the embedded JSON
// schemas before anything reaches the bus. Compiled schemas are cached.
type RequestValidator struct {
	mu       sync.Mutex
	cache    *lru.Cache[string, *jsonschema.Schema]
	compiler *jsonschema.Compiler
}

func NewRequestValidator() (*RequestValidator, error) {
	cache, err := lru.New[string, *jsonschema.Schema](32)
	if err != nil {
		return nil, fmt.Errorf("create schema cache: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.DefaultDraft(jsonschema.Draft7)

	return &RequestValidator{cache: cache, compiler: compiler}, nil
}

// Validate checks payload against schemas/{name}.json. Schema violations are
// the caller's fault; a missing or broken schema is a wiring bug.
func (v *RequestValidator) Validate(name string, payload any) error {
	schema, err := v.schema(name)
	if err != nil {
		return apperr.Internal("load request schema %s: %v", name, err)
	}
	if err := schema.Validate(payload); err != nil {
		return apperr.BadRequest("invalid request: %v", err)
	}
	return nil
}

func (v *RequestValidator) schema(name string) (*jsonschema.Schema, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if schema, ok := v.cache.Get(name); ok {
		return schema, nil
	}

	raw, err := schemaFS.ReadFile("schemas/" + name + ".json")
	if err != nil {
		return nil, err
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}

	url := name + ".json"
	if err := v.compiler.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := v.compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	v.cache.Add(name, schema)
	return schema, nil
}

package filing

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/bcgov/colin-migrate/internal/errs"
)

//go:embed filing.schema.json
var schemaJSON []byte

const schemaURL = "https://colin-migrate.local/schemas/filing.schema.json"

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func documentSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("load filing schema: %w", err)
			return
		}
		compiledSchema, schemaErr = c.Compile(schemaURL)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile filing schema: %w", schemaErr)
		}
	})
	return compiledSchema, schemaErr
}

// Validate checks a document against the embedded filing schema. A
// document that does not conform is KindDataIntegrity.
func Validate(doc Document) error {
	schema, err := documentSchema()
	if err != nil {
		return err
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal filing: %w", err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("decode filing: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return errs.Wrap(errs.KindDataIntegrity, err, "filing %s does not match schema", doc.Filing.Header.Name)
	}
	return nil
}

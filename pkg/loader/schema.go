package loader

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema/commitdata.schema.json
var commitDataSchema []byte

// SchemaJSON returns the JSON schema every result file must satisfy.
func SchemaJSON() []byte {
	return commitDataSchema
}

var compiledSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(commitDataSchema))
})

// Violation is one schema rule a document breaks.
type Violation struct {
	Field       string `json:"field"`
	Description string `json:"description"`
}

func (v Violation) String() string {
	return v.Field + ": " + v.Description
}

// ValidateDocument checks raw JSON against the result-file schema. A nil
// slice means the document is valid. The error is non-nil only when raw is
// not JSON at all.
func ValidateDocument(raw []byte) ([]Violation, error) {
	schema, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("compile result schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("validate document: %w", err)
	}

	if result.Valid() {
		return nil, nil
	}

	violations := make([]Violation, 0, len(result.Errors()))
	for _, verr := range result.Errors() {
		violations = append(violations, Violation{Field: verr.Field(), Description: verr.Description()})
	}

	return violations, nil
}

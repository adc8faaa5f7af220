// Package llm declares the two external call shapes the claim pipeline
// depends on. Providers live elsewhere; tests substitute stubs.
package llm

import "context"

// GroundedResponse is prose produced with live web search enabled. Sources
// are reported as the provider returned them, possibly with duplicates.
type GroundedResponse struct {
	Text    string
	Sources []string
}

type GroundedQuerier interface {
	GroundedQuery(ctx context.Context, prompt string) (GroundedResponse, error)
}

// StructuredExtractor returns a single JSON object conforming to schema.
type StructuredExtractor interface {
	ExtractJSON(ctx context.Context, prompt string, schema Schema) ([]byte, error)
}

type FieldType string

const (
	FieldString  FieldType = "string"
	FieldInteger FieldType = "integer"
)

type Field struct {
	Name        string
	Type        FieldType
	Enum        []string
	Description string
	Required    bool
}

type Schema struct {
	Name   string
	Fields []Field
}

func (s Schema) RequiredFields() []string {
	out := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		if f.Required {
			out = append(out, f.Name)
		}
	}
	return out
}

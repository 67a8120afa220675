// Package differ turns two parsed OpenAPI documents into an unordered set
// of model.ChangeEntry values (spec §4.1).
//
// Grounded on the pack's `georgi-georgiev/testmesh` contracts.Differ (the
// removed/added/modified interaction walk) and `GoogleChrome/webstatus.dev`
// differ package's normalize-then-compare pipeline shape. Document
// parsing uses getkin/kin-openapi, the OpenAPI 3.x library already
// required by jordigilh/kubernaut in this retrieval pack.
package differ

import (
	"context"
	"fmt"
	"sort"

	"github.com/getkin/kin-openapi/openapi3"
)

// LoadDocument parses raw OpenAPI 3.x YAML or JSON bytes into a validated
// document. Kept as a thin wrapper so the rest of the package never
// touches kin-openapi's loader directly.
func LoadDocument(raw []byte) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = false

	doc, err := loader.LoadFromData(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing OpenAPI document: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("validating OpenAPI document: %w", err)
	}
	return doc, nil
}

// opKey identifies one operation by its route template and method.
type opKey struct {
	path   string
	method string
}

// normOperation is the normalized view of one operation that the diff
// algorithm compares. Building it once up front keeps every kin-openapi
// API detail isolated to this file.
type normOperation struct {
	Deprecated          bool
	Params              map[string]*normParam // keyed by "name|in"
	RequestBodySchema   *normSchema
	RequestBodyRequired bool
	Responses           map[string]*normSchema // keyed by status code
}

type normParam struct {
	Name     string
	In       string
	Required bool
	Schema   *normSchema
}

// buildOperations walks every path/method in doc and returns the
// normalized operation set keyed by (path, method).
func buildOperations(doc *openapi3.T) map[opKey]*normOperation {
	out := make(map[opKey]*normOperation)
	if doc == nil || doc.Paths == nil {
		return out
	}

	for path, item := range doc.Paths.Map() {
		if item == nil {
			continue
		}
		for method, op := range item.Operations() {
			if op == nil {
				continue
			}
			out[opKey{path: path, method: method}] = buildOperation(op)
		}
	}
	return out
}

func buildOperation(op *openapi3.Operation) *normOperation {
	no := &normOperation{
		Deprecated: op.Deprecated,
		Params:     make(map[string]*normParam),
		Responses:  make(map[string]*normSchema),
	}

	for _, pRef := range op.Parameters {
		if pRef == nil || pRef.Value == nil {
			continue
		}
		p := pRef.Value
		key := p.Name + "|" + p.In
		no.Params[key] = &normParam{
			Name:     p.Name,
			In:       p.In,
			Required: p.Required,
			Schema:   buildSchema(p.Schema),
		}
	}

	if op.RequestBody != nil && op.RequestBody.Value != nil {
		rb := op.RequestBody.Value
		no.RequestBodyRequired = rb.Required
		no.RequestBodySchema = buildSchema(primaryMediaSchema(rb.Content))
	}

	if op.Responses != nil {
		for code, rRef := range op.Responses.Map() {
			if rRef == nil || rRef.Value == nil {
				continue
			}
			no.Responses[code] = buildSchema(primaryMediaSchema(rRef.Value.Content))
		}
	}

	return no
}

// primaryMediaSchema picks "application/json" when present, otherwise the
// lexicographically first content type, for determinism.
func primaryMediaSchema(content openapi3.Content) *openapi3.SchemaRef {
	if content == nil {
		return nil
	}
	if mt, ok := content["application/json"]; ok && mt != nil {
		return mt.Schema
	}
	keys := make([]string, 0, len(content))
	for k := range content {
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return nil
	}
	sort.Strings(keys)
	return content[keys[0]].Schema
}

// normSchema is the normalized, comparable view of a schema: property
// order, required-set order, and enum order are all stripped, per the
// normalization rules in spec §4.1.
type normSchema struct {
	Types      []string // sorted
	Format     string
	Nullable   bool
	Enum       []string // sorted, stringified
	HasDefault bool
	Default    string
	Required   []string // sorted
	Properties map[string]*normSchema
	Items      *normSchema
}

func buildSchema(ref *openapi3.SchemaRef) *normSchema {
	if ref == nil || ref.Value == nil {
		return nil
	}
	s := ref.Value

	ns := &normSchema{
		Types:      schemaTypes(s.Type),
		Format:     s.Format,
		Nullable:   s.Nullable || typesInclude(s.Type, "null"),
		Required:   sortedCopy(s.Required),
		Properties: make(map[string]*normSchema, len(s.Properties)),
	}

	for name, propRef := range s.Properties {
		ns.Properties[name] = buildSchema(propRef)
	}

	if s.Items != nil {
		ns.Items = buildSchema(s.Items)
	}

	if len(s.Enum) > 0 {
		vals := make([]string, 0, len(s.Enum))
		for _, v := range s.Enum {
			vals = append(vals, fmt.Sprintf("%v", v))
		}
		sort.Strings(vals)
		ns.Enum = vals
	}

	if s.Default != nil {
		ns.HasDefault = true
		ns.Default = fmt.Sprintf("%v", s.Default)
	}

	return ns
}

// schemaTypes returns the sorted set of JSON Schema type names for a
// Schema.Type. kin-openapi v0.13x represents Schema.Type as *openapi3.Types
// (a []string) to support OpenAPI 3.1's array-of-types; nil means "any".
func schemaTypes(t *openapi3.Types) []string {
	if t == nil {
		return nil
	}
	vals := append([]string(nil), []string(*t)...)
	sort.Strings(vals)
	return vals
}

func typesInclude(t *openapi3.Types, want string) bool {
	if t == nil {
		return false
	}
	for _, v := range *t {
		if v == want {
			return true
		}
	}
	return false
}

func sortedCopy(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

// typeString renders a schema's type set for human-readable Before/After
// text on a ChangeEntry.
func typeString(types []string) string {
	if len(types) == 0 {
		return "any"
	}
	out := ""
	for i, t := range types {
		if i > 0 {
			out += ","
		}
		out += t
	}
	return out
}

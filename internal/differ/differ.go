package differ

import (
	"fmt"
	"sort"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/MadhuvanthiSriPad/api-core/internal/model"
)

// Diff compares two OpenAPI documents and returns the unordered set of
// semantic changes between them (spec §4.1). Entries are returned sorted
// by (path, method, location, field) so a run is reproducible; ordering
// is not itself meaningful.
func Diff(prevDoc, nextDoc *openapi3.T) ([]model.ChangeEntry, error) {
	if prevDoc == nil || nextDoc == nil {
		return nil, fmt.Errorf("differ: both documents are required")
	}

	prevOps := buildOperations(prevDoc)
	nextOps := buildOperations(nextDoc)

	var out []model.ChangeEntry

	keys := make(map[opKey]bool)
	for k := range prevOps {
		keys[k] = true
	}
	for k := range nextOps {
		keys[k] = true
	}

	for k := range keys {
		prevOp, inPrev := prevOps[k]
		nextOp, inNext := nextOps[k]

		switch {
		case inPrev && !inNext:
			out = append(out, model.ChangeEntry{
				Path: k.path, Method: k.method,
				Kind: model.KindRemoved,
			})
		case !inPrev && inNext:
			out = append(out, model.ChangeEntry{
				Path: k.path, Method: k.method,
				Kind: model.KindAdded,
			})
		default:
			out = append(out, diffOperation(k, prevOp, nextOp)...)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Method != b.Method {
			return a.Method < b.Method
		}
		if a.Location != b.Location {
			return a.Location < b.Location
		}
		return a.Field < b.Field
	})

	return out, nil
}

func diffOperation(k opKey, prev, next *normOperation) []model.ChangeEntry {
	var out []model.ChangeEntry

	if !prev.Deprecated && next.Deprecated {
		out = append(out, model.ChangeEntry{
			Path: k.path, Method: k.method,
			Kind: model.KindDeprecated, Field: "operation",
		})
	}

	out = append(out, diffParams(k, prev.Params, next.Params)...)

	out = append(out, diffBodySchema(k, model.LocationRequest, "",
		prev.RequestBodySchema, next.RequestBodySchema)...)

	if !prev.RequestBodyRequired && next.RequestBodyRequired {
		out = append(out, model.ChangeEntry{
			Path: k.path, Method: k.method,
			Kind: model.KindRequiredAdded, Location: model.LocationRequest,
			Field: "$body",
		})
	}
	if prev.RequestBodyRequired && !next.RequestBodyRequired {
		out = append(out, model.ChangeEntry{
			Path: k.path, Method: k.method,
			Kind: model.KindRequiredRemoved, Location: model.LocationRequest,
			Field: "$body",
		})
	}

	codes := make(map[string]bool)
	for c := range prev.Responses {
		codes[c] = true
	}
	for c := range next.Responses {
		codes[c] = true
	}
	for code := range codes {
		prevSchema, inPrev := prev.Responses[code]
		nextSchema, inNext := next.Responses[code]
		switch {
		case inPrev && !inNext:
			out = append(out, model.ChangeEntry{
				Path: k.path, Method: k.method,
				Kind: model.KindRemoved, Location: model.LocationResponse, Field: code,
			})
		case !inPrev && inNext:
			out = append(out, model.ChangeEntry{
				Path: k.path, Method: k.method,
				Kind: model.KindAdded, Location: model.LocationResponse, Field: code,
			})
		default:
			out = append(out, diffBodySchema(k, model.LocationResponse, code, prevSchema, nextSchema)...)
		}
	}

	return out
}

func diffParams(k opKey, prev, next map[string]*normParam) []model.ChangeEntry {
	var out []model.ChangeEntry

	keys := make(map[string]bool)
	for name := range prev {
		keys[name] = true
	}
	for name := range next {
		keys[name] = true
	}

	for key := range keys {
		p, inPrev := prev[key]
		n, inNext := next[key]
		switch {
		case inPrev && !inNext:
			out = append(out, model.ChangeEntry{
				Path: k.path, Method: k.method,
				Kind: model.KindRemoved, Location: model.LocationParam, Field: p.Name,
			})
		case !inPrev && inNext:
			out = append(out, model.ChangeEntry{
				Path: k.path, Method: k.method,
				Kind: model.KindAdded, Location: model.LocationParam, Field: n.Name,
			})
		default:
			if !p.Required && n.Required {
				out = append(out, model.ChangeEntry{
					Path: k.path, Method: k.method,
					Kind: model.KindRequiredAdded, Location: model.LocationParam, Field: n.Name,
				})
			}
			if p.Required && !n.Required {
				out = append(out, model.ChangeEntry{
					Path: k.path, Method: k.method,
					Kind: model.KindRequiredRemoved, Location: model.LocationParam, Field: n.Name,
				})
			}
			out = append(out, compareSchema(k, model.LocationParam, n.Name, p.Schema, n.Schema)...)
		}
	}

	return out
}

// diffBodySchema compares a request or response body schema, keyed by
// fieldPrefix (a response status code, or "" for the request body).
func diffBodySchema(k opKey, loc model.ChangeLocation, fieldPrefix string, prev, next *normSchema) []model.ChangeEntry {
	field := fieldPrefix
	if field == "" {
		field = "$body"
	}
	return compareSchema(k, loc, field, prev, next)
}

// compareSchema recursively diffs two normalized schemas rooted at field,
// applying the spec §4.1 normalization rules: property order, required
// order, and enum order never produce a change by themselves.
func compareSchema(k opKey, loc model.ChangeLocation, field string, prev, next *normSchema) []model.ChangeEntry {
	var out []model.ChangeEntry

	if prev == nil && next == nil {
		return nil
	}
	if prev == nil && next != nil {
		return []model.ChangeEntry{{Path: k.path, Method: k.method, Kind: model.KindAdded, Location: loc, Field: field}}
	}
	if prev != nil && next == nil {
		return []model.ChangeEntry{{Path: k.path, Method: k.method, Kind: model.KindRemoved, Location: loc, Field: field}}
	}

	if typeString(prev.Types) != typeString(next.Types) {
		out = append(out, model.ChangeEntry{
			Path: k.path, Method: k.method,
			Kind: model.KindTypeChanged, Location: loc, Field: field,
			Before: typeString(prev.Types), After: typeString(next.Types),
		})
	}

	if prev.HasDefault != next.HasDefault || prev.Default != next.Default {
		out = append(out, model.ChangeEntry{
			Path: k.path, Method: k.method,
			Kind: model.KindDefaultChanged, Location: loc, Field: field,
			Before: prev.Default, After: next.Default,
		})
	}

	if isEnumNarrowing(prev.Enum, next.Enum) {
		out = append(out, model.ChangeEntry{
			Path: k.path, Method: k.method,
			Kind: model.KindEnumNarrowed, Location: loc, Field: field,
			Before: joinSorted(prev.Enum), After: joinSorted(next.Enum),
		})
	}

	out = append(out, diffProperties(k, loc, field, prev, next)...)

	if prev.Items != nil || next.Items != nil {
		out = append(out, compareSchema(k, loc, field+"[]", prev.Items, next.Items)...)
	}

	return out
}

func diffProperties(k opKey, loc model.ChangeLocation, field string, prev, next *normSchema) []model.ChangeEntry {
	var out []model.ChangeEntry

	removed := make(map[string]*normSchema)
	for name, s := range prev.Properties {
		if _, ok := next.Properties[name]; !ok {
			removed[name] = s
		}
	}
	added := make(map[string]*normSchema)
	for name, s := range next.Properties {
		if _, ok := prev.Properties[name]; !ok {
			added[name] = s
		}
	}

	renames, ambiguous := findRenames(removed, added)

	for oldName, newName := range renames {
		out = append(out, model.ChangeEntry{
			Path: k.path, Method: k.method,
			Kind: model.KindRenamed, Location: loc, Field: subfield(field, oldName),
			Before: oldName, After: newName,
		})
		delete(removed, oldName)
		delete(added, newName)
	}

	for name := range removed {
		kind := model.KindRemoved
		if ambiguous[name] {
			kind = model.KindOther
		}
		out = append(out, model.ChangeEntry{
			Path: k.path, Method: k.method,
			Kind: kind, Location: loc, Field: subfield(field, name),
		})
	}
	nextRequired := toSet(next.Required)
	for name, s := range added {
		kind := model.KindAdded
		after := ""
		if ambiguous[name] {
			kind = model.KindOther
		} else if nextRequired[name] {
			// A new field that is required on arrival is a required-set
			// addition, not an optional one.
			kind = model.KindRequiredAdded
			if s != nil && s.HasDefault {
				after = "default:" + s.Default
			}
		}
		out = append(out, model.ChangeEntry{
			Path: k.path, Method: k.method,
			Kind: kind, Location: loc, Field: subfield(field, name),
			After: after,
		})
	}

	// Fields present on both sides: recurse, and detect required-set changes.
	prevRequired := toSet(prev.Required)
	for name, prevSchema := range prev.Properties {
		nextSchema, ok := next.Properties[name]
		if !ok {
			continue
		}
		out = append(out, compareSchema(k, loc, subfield(field, name), prevSchema, nextSchema)...)

		wasRequired := prevRequired[name]
		isRequired := nextRequired[name]
		if !wasRequired && isRequired {
			entry := model.ChangeEntry{
				Path: k.path, Method: k.method,
				Kind: model.KindRequiredAdded, Location: loc, Field: subfield(field, name),
			}
			if nextSchema != nil && nextSchema.HasDefault {
				entry.After = "default:" + nextSchema.Default
			}
			out = append(out, entry)
		}
		if wasRequired && !isRequired {
			out = append(out, model.ChangeEntry{
				Path: k.path, Method: k.method,
				Kind: model.KindRequiredRemoved, Location: loc, Field: subfield(field, name),
			})
		}
	}

	return out
}

func subfield(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

func toSet(in []string) map[string]bool {
	out := make(map[string]bool, len(in))
	for _, v := range in {
		out[v] = true
	}
	return out
}

func joinSorted(in []string) string {
	out := ""
	for i, v := range in {
		if i > 0 {
			out += ","
		}
		out += v
	}
	return out
}

// isEnumNarrowing reports whether next's enum is a proper, non-empty
// subset of prev's enum (a value previously accepted is no longer
// produced/accepted).
func isEnumNarrowing(prev, next []string) bool {
	if len(prev) == 0 || len(next) == 0 || len(next) >= len(prev) {
		return false
	}
	prevSet := toSet(prev)
	for _, v := range next {
		if !prevSet[v] {
			return false
		}
	}
	return true
}

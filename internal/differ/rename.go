package differ

import (
	"sort"
	"strings"
)

// structuralHash returns a canonical signature of a schema's shape,
// ignoring the field's own name. Two fields with the same hash are
// candidates for a rename pairing (spec §9(a) decision: structural-hash
// match, not edit-distance on names, since a renamed field rarely keeps a
// name similar enough for edit-distance to be safe against false
// positives in a fail-closed breaking-change detector).
func structuralHash(s *normSchema) string {
	if s == nil {
		return "nil"
	}

	var b strings.Builder
	b.WriteString(typeString(s.Types))
	b.WriteByte(':')
	b.WriteString(s.Format)
	b.WriteByte(':')
	if s.Nullable {
		b.WriteString("null")
	}
	b.WriteByte(':')

	props := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		props = append(props, name)
	}
	sort.Strings(props)
	for _, name := range props {
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(structuralHash(s.Properties[name]))
		b.WriteByte(',')
	}
	b.WriteByte(':')

	b.WriteString(strings.Join(s.Required, ","))
	b.WriteByte(':')

	if s.Items != nil {
		b.WriteString("items=")
		b.WriteString(structuralHash(s.Items))
	}

	return b.String()
}

// renamePairing maps a removed field name to the added field name it was
// matched against.
type renamePairing map[string]string

// findRenames pairs removed and added property names that share a unique
// structural hash on both sides. When a hash bucket holds more than one
// candidate on either side, the match is ambiguous: no pairing is emitted
// for that bucket, and every property in it is returned in ambiguous so
// the call site can emit KindOther for it instead of a plain
// removed/added entry (spec §4.1: "when ambiguous, emit two entries and
// mark kind = other").
func findRenames(removed, added map[string]*normSchema) (pairs renamePairing, ambiguous map[string]bool) {
	removedByHash := make(map[string][]string)
	for name, schema := range removed {
		h := structuralHash(schema)
		removedByHash[h] = append(removedByHash[h], name)
	}

	addedByHash := make(map[string][]string)
	for name, schema := range added {
		h := structuralHash(schema)
		addedByHash[h] = append(addedByHash[h], name)
	}

	pairs = make(renamePairing)
	ambiguous = make(map[string]bool)
	for hash, removedNames := range removedByHash {
		addedNames, ok := addedByHash[hash]
		if !ok {
			continue
		}
		if len(removedNames) == 1 && len(addedNames) == 1 {
			pairs[removedNames[0]] = addedNames[0]
			continue
		}
		for _, name := range removedNames {
			ambiguous[name] = true
		}
		for _, name := range addedNames {
			ambiguous[name] = true
		}
	}
	return pairs, ambiguous
}

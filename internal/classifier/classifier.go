// Package classifier assigns a severity and breaking/non-breaking verdict
// to each change the differ emits (spec §4.2). Classification is a pure,
// first-match-wins decision table over a ChangeEntry's Kind/Location/
// Before/After fields, so the same entry always classifies the same way.
//
// Grounded on the pack's moolen/spectre change-anomaly classifier (a
// table of named rules evaluated in order, each producing a verdict plus
// a rationale string) and testmesh's contracts.BreakingChange shape
// (Severity + free-text rationale alongside the structural fields).
package classifier

import (
	"strings"

	"github.com/MadhuvanthiSriPad/api-core/internal/model"
)

// Classify applies the decision table to one change entry.
func Classify(c model.ChangeEntry) model.ClassifiedChange {
	severity, breaking, rationale := decide(c)
	return model.ClassifiedChange{
		ChangeEntry: c,
		Severity:    severity,
		IsBreaking:  breaking,
		Rationale:   rationale,
	}
}

// ClassifyAll classifies a batch and rolls it into a ChangeSet.
func ClassifyAll(producer, fromVersion, toVersion string, entries []model.ChangeEntry) model.ChangeSet {
	cs := model.ChangeSet{
		ProducerService: producer,
		FromVersion:     fromVersion,
		ToVersion:       toVersion,
		Changes:         make([]model.ClassifiedChange, 0, len(entries)),
	}
	for _, e := range entries {
		cs.Changes = append(cs.Changes, Classify(e))
	}
	return cs
}

// decide is the decision table itself. Rules are evaluated top to bottom;
// the first matching rule wins. Every branch must terminate the switch so
// the table stays exhaustive and deterministic.
func decide(c model.ChangeEntry) (model.Severity, bool, string) {
	switch c.Kind {

	case model.KindRemoved:
		if c.Location == "" {
			return model.SeverityHigh, true, "route or operation removed"
		}
		if c.Location == model.LocationResponse {
			return model.SeverityHigh, true, "response field removed"
		}
		return model.SeverityHigh, true, "field removed from " + string(c.Location)

	case model.KindRenamed:
		return model.SeverityHigh, true, "field renamed, old name no longer present"

	case model.KindRequiredAdded:
		if strings.Contains(c.After, "default:") {
			return model.SeverityMedium, true, "new required field added, but a default is supplied"
		}
		return model.SeverityHigh, true, "new required field added without a default"

	case model.KindTypeChanged:
		if isTightening(c.Before, c.After) {
			return model.SeverityHigh, true, "field type narrowed from " + c.Before + " to " + c.After
		}
		return model.SeverityHigh, true, "field type changed from " + c.Before + " to " + c.After

	case model.KindEnumNarrowed:
		if c.Location == model.LocationResponse {
			return model.SeverityHigh, true, "response enum narrowed, a previously emitted value is no longer possible"
		}
		return model.SeverityMedium, true, "enum narrowed in " + string(c.Location)

	case model.KindDeprecated:
		return model.SeverityMedium, false, "operation marked deprecated"

	case model.KindRequiredRemoved:
		return model.SeverityLow, false, "field relaxed from required to optional"

	case model.KindDefaultChanged:
		return model.SeverityLow, false, "default value changed"

	case model.KindAdded:
		if c.Location == "" {
			return model.SeverityLow, false, "new route or operation added"
		}
		return model.SeverityLow, false, "optional field added to " + string(c.Location)

	case model.KindOther:
		return model.SeverityMedium, true, "ambiguous structural change, could not be matched to a known rule"

	default:
		return model.SeverityMedium, true, "unrecognized change kind " + string(c.Kind)
	}
}

// isTightening reports whether a type change narrows what producers may
// send, i.e. the new type set is a proper subset of the old one. A type
// change that isn't a subset relationship (e.g. string -> integer) is
// still high-severity via the fallback branch in decide, just without the
// "narrowed" framing.
func isTightening(before, after string) bool {
	if before == "" || after == "" {
		return false
	}
	beforeSet := toSet(strings.Split(before, ","))
	afterSet := toSet(strings.Split(after, ","))
	if len(afterSet) >= len(beforeSet) {
		return false
	}
	for t := range afterSet {
		if !beforeSet[t] {
			return false
		}
	}
	return true
}

func toSet(in []string) map[string]bool {
	out := make(map[string]bool, len(in))
	for _, v := range in {
		out[v] = true
	}
	return out
}

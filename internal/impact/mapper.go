// Package impact turns a classified change set into an ordered list of
// affected consumers, by fusing the declared service map with observed
// telemetry (spec §4.3).
package impact

import (
	"sort"

	"github.com/MadhuvanthiSriPad/api-core/internal/model"
)

type routeKey struct {
	method string
	route  string
}

// Map computes the ordered Impact list for one producer's change set.
// edges is the full declared service map (any producer); telemetry is the
// observed sample set scoped to this producer (internal/telemetry.Store's
// ForProducer result).
func Map(cs model.ChangeSet, edges []model.ServiceEdge, samples []model.TelemetrySample) []model.Impact {
	touchedByRoute := routesTouchedByAnyChange(cs.Changes)
	touchedByBreakingRoute := routesTouchedByBreakingChange(cs.Changes)

	declared := make(map[string]bool) // consumer -> declared
	for _, e := range edges {
		if e.Producer == cs.ProducerService && e.Declared {
			declared[e.Consumer] = true
		}
	}

	samplesByConsumer := make(map[string][]model.TelemetrySample)
	for _, s := range samples {
		samplesByConsumer[s.Consumer] = append(samplesByConsumer[s.Consumer], s)
	}

	candidates := make(map[string]bool)
	for consumer := range declared {
		candidates[consumer] = true
	}
	for consumer := range samplesByConsumer {
		candidates[consumer] = true
	}

	var impacts []model.Impact
	for consumer := range candidates {
		isDeclared := declared[consumer]
		observed := samplesByConsumer[consumer]

		var routes []model.ImpactRoute
		var confidence model.Confidence

		switch {
		case len(observed) > 0 && isDeclared:
			confidence = model.ConfidenceHigh
			routes = matchObserved(observed, touchedByRoute, confidence)
		case len(observed) > 0:
			confidence = model.ConfidenceMedium
			routes = matchObserved(observed, touchedByRoute, confidence)
		default:
			// Declared-only: no telemetry evidence, so only breaking
			// changes justify including this consumer at all (spec §4.3
			// step 2's declared-only clause).
			confidence = model.ConfidenceLow
			routes = allRoutes(touchedByBreakingRoute, confidence)
		}

		if len(routes) == 0 {
			continue
		}

		matched := make(map[routeKey]bool, len(routes))
		var totalCalls int64
		for _, r := range routes {
			matched[routeKey{method: r.Method, route: r.Route}] = true
			totalCalls += r.Calls7d
		}

		impacts = append(impacts, model.Impact{
			Consumer:       consumer,
			Producer:       cs.ProducerService,
			Routes:         routes,
			TouchedChanges: changesForRoutes(cs.Changes, matched),
			TotalCalls7d:   totalCalls,
			Confidence:     confidence,
		})
	}

	sort.Slice(impacts, func(i, j int) bool {
		a, b := impacts[i], impacts[j]
		if a.IsBreaking() != b.IsBreaking() {
			return a.IsBreaking() // true (breaking) sorts first
		}
		if a.TotalCalls7d != b.TotalCalls7d {
			return a.TotalCalls7d > b.TotalCalls7d
		}
		return a.Consumer < b.Consumer
	})

	return impacts
}

func routesTouchedByAnyChange(changes []model.ClassifiedChange) map[routeKey]bool {
	out := make(map[routeKey]bool)
	for _, c := range changes {
		out[routeKey{method: c.Method, route: c.Path}] = true
	}
	return out
}

func routesTouchedByBreakingChange(changes []model.ClassifiedChange) map[routeKey]bool {
	out := make(map[routeKey]bool)
	for _, c := range changes {
		if c.IsBreaking {
			out[routeKey{method: c.Method, route: c.Path}] = true
		}
	}
	return out
}

func matchObserved(samples []model.TelemetrySample, touched map[routeKey]bool, confidence model.Confidence) []model.ImpactRoute {
	var out []model.ImpactRoute
	for _, s := range samples {
		key := routeKey{method: s.Method, route: s.RouteTemplate}
		if !touched[key] {
			continue
		}
		out = append(out, model.ImpactRoute{
			Method: s.Method, Route: s.RouteTemplate,
			Calls7d: s.Calls7d, Confidence: confidence,
		})
	}
	return out
}

func allRoutes(touched map[routeKey]bool, confidence model.Confidence) []model.ImpactRoute {
	out := make([]model.ImpactRoute, 0, len(touched))
	for k := range touched {
		out = append(out, model.ImpactRoute{Method: k.method, Route: k.route, Calls7d: 0, Confidence: confidence})
	}
	// Deterministic order; TotalCalls7d/sort above doesn't depend on this,
	// but stable Routes ordering keeps bundle prompts reproducible.
	sort.Slice(out, func(i, j int) bool {
		if out[i].Route != out[j].Route {
			return out[i].Route < out[j].Route
		}
		return out[i].Method < out[j].Method
	})
	return out
}

func changesForRoutes(changes []model.ClassifiedChange, matched map[routeKey]bool) []model.ClassifiedChange {
	var out []model.ClassifiedChange
	for _, c := range changes {
		if matched[routeKey{method: c.Method, route: c.Path}] {
			out = append(out, c)
		}
	}
	return out
}

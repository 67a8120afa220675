// Package wave partitions a run's bundles into dependency-ordered waves
// (spec §4.5): if impacted consumer A declares a dependency on impacted
// consumer B, B's bundle ships in an earlier (or the same, if cyclic)
// wave than A's.
package wave

import (
	"log/slog"
	"sort"

	"github.com/MadhuvanthiSriPad/api-core/internal/model"
)

// Plan groups bundles into an ordered sequence of waves. edges is the
// full declared service map; only edges between two impacted consumers
// are used to build the dependency graph; edges reaching outside the
// impacted set are irrelevant to this run's ordering. An edge
// {Producer: B, Consumer: A} means "A depends on B" (A calls B's API).
func Plan(bundles []model.Bundle, edges []model.ServiceEdge) [][]model.Bundle {
	byConsumer := make(map[string][]model.Bundle)
	for _, b := range bundles {
		byConsumer[b.Consumer] = append(byConsumer[b.Consumer], b)
	}

	impacted := make(map[string]bool, len(byConsumer))
	for consumer := range byConsumer {
		impacted[consumer] = true
	}

	deps := make(map[string][]string) // consumer -> consumers it depends on
	for _, e := range edges {
		if !e.Declared {
			continue
		}
		a, b := e.Consumer, e.Producer // a depends on b
		if impacted[a] && impacted[b] && a != b {
			deps[a] = append(deps[a], b)
		}
	}

	nodes := make([]string, 0, len(impacted))
	for c := range impacted {
		nodes = append(nodes, c)
	}
	sort.Strings(nodes) // deterministic SCC discovery order

	sccOf, components := tarjanSCC(nodes, deps)
	if len(components) > 0 {
		for _, comp := range components {
			if len(comp) > 1 {
				slog.Warn("cyclic dependency among impacted consumers collapsed into one wave",
					"consumers", comp)
			}
		}
	}

	condensedDeps := make(map[int]map[int]bool)
	for consumer, targets := range deps {
		from := sccOf[consumer]
		for _, t := range targets {
			to := sccOf[t]
			if from == to {
				continue
			}
			if condensedDeps[from] == nil {
				condensedDeps[from] = make(map[int]bool)
			}
			condensedDeps[from][to] = true
		}
	}

	levels := make(map[int]int, len(components))
	for i := range components {
		computeLevel(i, condensedDeps, levels, make(map[int]bool))
	}

	maxLevel := 0
	consumerLevel := make(map[string]int, len(nodes))
	for consumer := range impacted {
		lvl := levels[sccOf[consumer]]
		consumerLevel[consumer] = lvl
		if lvl > maxLevel {
			maxLevel = lvl
		}
	}

	waves := make([][]model.Bundle, maxLevel+1)
	for consumer, bs := range byConsumer {
		lvl := consumerLevel[consumer]
		for i := range bs {
			bs[i].WaveIndex = lvl
		}
		waves[lvl] = append(waves[lvl], bs...)
	}

	for i := range waves {
		sort.Slice(waves[i], func(a, b int) bool {
			if waves[i][a].Consumer != waves[i][b].Consumer {
				return waves[i][a].Consumer < waves[i][b].Consumer
			}
			return waves[i][a].Producer < waves[i][b].Producer
		})
	}

	return waves
}

// computeLevel is the longest-path-from-a-sink computation over the
// condensed DAG: a component with no outgoing dependency edges is wave 0;
// otherwise it is one more than the deepest component it depends on.
func computeLevel(comp int, condensedDeps map[int]map[int]bool, levels map[int]int, visiting map[int]bool) int {
	if lvl, ok := levels[comp]; ok {
		return lvl
	}
	visiting[comp] = true

	best := 0
	for target := range condensedDeps[comp] {
		if visiting[target] {
			continue // condensation guarantees no real cycles here; defensive only
		}
		lvl := computeLevel(target, condensedDeps, levels, visiting)
		if lvl+1 > best {
			best = lvl + 1
		}
	}

	delete(visiting, comp)
	levels[comp] = best
	return best
}

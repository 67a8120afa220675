// Package bundle assembles the per-consumer remediation instruction set
// dispatched to the external coding agent (spec §4.4).
package bundle

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/MadhuvanthiSriPad/api-core/internal/config"
	"github.com/MadhuvanthiSriPad/api-core/internal/model"
)

// Build constructs one Bundle from an Impact, the producer's new version,
// and the consumer's repo convention.
func Build(imp model.Impact, producerVersion string, rc config.RepoConvention) model.Bundle {
	breaking := make([]model.ClassifiedChange, 0, len(imp.TouchedChanges))
	for _, c := range imp.TouchedChanges {
		if c.IsBreaking {
			breaking = append(breaking, c)
		}
	}
	sortChanges(breaking)

	routes := append([]model.ImpactRoute(nil), imp.Routes...)
	sortRoutes(routes)

	candidatePaths := append([]string(nil), rc.ClientPaths...)
	candidatePaths = append(candidatePaths, rc.SchemaPaths...)

	b := model.Bundle{
		Consumer:      imp.Consumer,
		Producer:      imp.Producer,
		RepoRef:       rc.RepoRef,
		BreakingItems: breaking,
		TestPaths:     append([]string(nil), rc.TestPaths...),
		ClientPaths:   candidatePaths,
	}
	b.Prompt = renderPrompt(imp, breaking, routes, candidatePaths, b.TestPaths)
	b.Fingerprint = fingerprint(imp.Consumer, breaking, routes, producerVersion)

	return b
}

// renderPrompt enumerates exactly what spec §4.4 requires: each breaking
// change with before/after, the affected routes with call-count evidence,
// and the candidate paths inside the consumer repo.
func renderPrompt(imp model.Impact, breaking []model.ClassifiedChange, routes []model.ImpactRoute, clientPaths, testPaths []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Producer %q has breaking API changes affecting this repository.\n\n", imp.Producer)

	b.WriteString("Breaking changes:\n")
	for _, c := range breaking {
		fmt.Fprintf(&b, "- [%s] %s %s: %s (%s -> %s) - %s\n",
			c.Kind, c.Method, c.Path, c.Field, orDash(c.Before), orDash(c.After), c.Rationale)
	}

	b.WriteString("\nAffected routes (observed call volume, 7d window):\n")
	for _, r := range routes {
		fmt.Fprintf(&b, "- %s %s (%d calls, confidence=%s)\n", r.Method, r.Route, r.Calls7d, r.Confidence)
	}

	if len(clientPaths) > 0 {
		b.WriteString("\nCandidate client/schema paths to update:\n")
		for _, p := range clientPaths {
			fmt.Fprintf(&b, "- %s\n", p)
		}
	}

	if len(testPaths) > 0 {
		b.WriteString("\nCandidate test paths to update:\n")
		for _, p := range testPaths {
			fmt.Fprintf(&b, "- %s\n", p)
		}
	}

	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func sortChanges(changes []model.ClassifiedChange) {
	sort.Slice(changes, func(i, j int) bool {
		a, b := changes[i], changes[j]
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
}

func sortRoutes(routes []model.ImpactRoute) {
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Route != routes[j].Route {
			return routes[i].Route < routes[j].Route
		}
		return routes[i].Method < routes[j].Method
	})
}

// fingerprint hashes the canonicalized (consumer, sorted breaking items,
// sorted routes, producer version) tuple. Canonicalization collapses
// whitespace and sorts keys so two runs that derive the same bundle
// content always produce the same fingerprint (spec §4.4); no timestamps
// are included.
func fingerprint(consumer string, breaking []model.ClassifiedChange, routes []model.ImpactRoute, producerVersion string) string {
	var b strings.Builder

	b.WriteString("consumer=")
	b.WriteString(canonicalize(consumer))
	b.WriteString(";version=")
	b.WriteString(canonicalize(producerVersion))

	b.WriteString(";changes=")
	for _, c := range breaking {
		fmt.Fprintf(&b, "[%s|%s|%s|%s|%s|%s|%s]",
			canonicalize(c.Path), canonicalize(c.Method), canonicalize(string(c.Kind)),
			canonicalize(string(c.Location)), canonicalize(c.Field),
			canonicalize(c.Before), canonicalize(c.After))
	}

	b.WriteString(";routes=")
	for _, r := range routes {
		fmt.Fprintf(&b, "[%s|%s]", canonicalize(r.Method), canonicalize(r.Route))
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// canonicalize collapses runs of whitespace and trims.
func canonicalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

package impact_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MadhuvanthiSriPad/api-core/internal/impact"
	"github.com/MadhuvanthiSriPad/api-core/internal/model"
)

func breakingChange(method, path string) model.ClassifiedChange {
	return model.ClassifiedChange{
		ChangeEntry: model.ChangeEntry{Method: method, Path: path, Kind: model.KindRemoved, Location: model.LocationResponse},
		Severity:    model.SeverityHigh,
		IsBreaking:  true,
	}
}

func nonBreakingChange(method, path string) model.ClassifiedChange {
	return model.ClassifiedChange{
		ChangeEntry: model.ChangeEntry{Method: method, Path: path, Kind: model.KindAdded, Location: model.LocationResponse},
		Severity:    model.SeverityLow,
		IsBreaking:  false,
	}
}

func TestMapHighConfidenceWhenDeclaredAndObserved(t *testing.T) {
	cs := model.ChangeSet{ProducerService: "orders", Changes: []model.ClassifiedChange{
		breakingChange("GET", "/orders/{id}"),
	}}
	edges := []model.ServiceEdge{{Producer: "orders", Consumer: "billing", Declared: true}}
	samples := []model.TelemetrySample{
		{Consumer: "billing", Producer: "orders", Method: "GET", RouteTemplate: "/orders/{id}", Calls7d: 500},
	}

	impacts := impact.Map(cs, edges, samples)
	require.Len(t, impacts, 1)
	assert.Equal(t, "billing", impacts[0].Consumer)
	assert.Equal(t, model.ConfidenceHigh, impacts[0].Confidence)
	assert.Equal(t, int64(500), impacts[0].TotalCalls7d)
	assert.True(t, impacts[0].IsBreaking())
}

func TestMapMediumConfidenceObservedOnly(t *testing.T) {
	cs := model.ChangeSet{ProducerService: "orders", Changes: []model.ClassifiedChange{
		breakingChange("GET", "/orders/{id}"),
	}}
	samples := []model.TelemetrySample{
		{Consumer: "shadow-consumer", Producer: "orders", Method: "GET", RouteTemplate: "/orders/{id}", Calls7d: 10},
	}

	impacts := impact.Map(cs, nil, samples)
	require.Len(t, impacts, 1)
	assert.Equal(t, model.ConfidenceMedium, impacts[0].Confidence)
}

func TestMapLowConfidenceDeclaredOnlyIncludesOnlyBreakingRoutes(t *testing.T) {
	cs := model.ChangeSet{ProducerService: "orders", Changes: []model.ClassifiedChange{
		breakingChange("GET", "/orders/{id}"),
		nonBreakingChange("POST", "/orders"),
	}}
	edges := []model.ServiceEdge{{Producer: "orders", Consumer: "billing", Declared: true}}

	impacts := impact.Map(cs, edges, nil)
	require.Len(t, impacts, 1)
	assert.Equal(t, model.ConfidenceLow, impacts[0].Confidence)
	require.Len(t, impacts[0].Routes, 1)
	assert.Equal(t, "/orders/{id}", impacts[0].Routes[0].Route)
}

func TestMapDropsCandidateWithEmptyIntersection(t *testing.T) {
	cs := model.ChangeSet{ProducerService: "orders", Changes: []model.ClassifiedChange{
		breakingChange("GET", "/orders/{id}"),
	}}
	samples := []model.TelemetrySample{
		{Consumer: "unrelated", Producer: "orders", Method: "GET", RouteTemplate: "/other-route", Calls7d: 50},
	}

	impacts := impact.Map(cs, nil, samples)
	assert.Empty(t, impacts)
}

func TestMapSortsBreakingThenCallsThenConsumerName(t *testing.T) {
	cs := model.ChangeSet{ProducerService: "orders", Changes: []model.ClassifiedChange{
		breakingChange("GET", "/orders/{id}"),
		nonBreakingChange("POST", "/orders"),
	}}
	samples := []model.TelemetrySample{
		{Consumer: "zeta", Producer: "orders", Method: "GET", RouteTemplate: "/orders/{id}", Calls7d: 10},
		{Consumer: "alpha", Producer: "orders", Method: "GET", RouteTemplate: "/orders/{id}", Calls7d: 900},
		{Consumer: "beta", Producer: "orders", Method: "POST", RouteTemplate: "/orders", Calls7d: 5000},
	}

	impacts := impact.Map(cs, nil, samples)
	require.Len(t, impacts, 3)
	// alpha and zeta are breaking (higher priority than beta's non-breaking-only impact),
	// alpha has more calls than zeta.
	assert.Equal(t, "alpha", impacts[0].Consumer)
	assert.Equal(t, "zeta", impacts[1].Consumer)
	assert.Equal(t, "beta", impacts[2].Consumer)
}

package bundle_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MadhuvanthiSriPad/api-core/internal/bundle"
	"github.com/MadhuvanthiSriPad/api-core/internal/config"
	"github.com/MadhuvanthiSriPad/api-core/internal/model"
)

func sampleImpact() model.Impact {
	return model.Impact{
		Consumer: "billing",
		Producer: "orders",
		Routes: []model.ImpactRoute{
			{Method: "GET", Route: "/orders/{id}", Calls7d: 500, Confidence: model.ConfidenceHigh},
		},
		TouchedChanges: []model.ClassifiedChange{
			{
				ChangeEntry: model.ChangeEntry{
					Method: "GET", Path: "/orders/{id}", Kind: model.KindRemoved,
					Location: model.LocationResponse, Field: "legacy_status",
				},
				Severity: model.SeverityHigh, IsBreaking: true, Rationale: "response field removed",
			},
		},
		TotalCalls7d: 500,
		Confidence:   model.ConfidenceHigh,
	}
}

func sampleConvention() config.RepoConvention {
	return config.RepoConvention{
		Consumer:    "billing",
		RepoRef:     "org/billing-service",
		RootPath:    ".",
		ClientPaths: []string{"internal/ordersclient"},
		TestPaths:   []string{"internal/ordersclient/client_test.go"},
	}
}

func TestBuildIncludesBreakingChangesAndPaths(t *testing.T) {
	b := bundle.Build(sampleImpact(), "v2", sampleConvention())

	assert.Equal(t, "billing", b.Consumer)
	assert.Equal(t, "org/billing-service", b.RepoRef)
	require.Len(t, b.BreakingItems, 1)
	assert.Contains(t, b.Prompt, "legacy_status")
	assert.Contains(t, b.Prompt, "/orders/{id}")
	assert.Contains(t, b.Prompt, "internal/ordersclient")
	assert.NotEmpty(t, b.Fingerprint)
}

func TestBuildFingerprintIsStableAcrossRuns(t *testing.T) {
	b1 := bundle.Build(sampleImpact(), "v2", sampleConvention())
	b2 := bundle.Build(sampleImpact(), "v2", sampleConvention())
	assert.Equal(t, b1.Fingerprint, b2.Fingerprint)
}

func TestBuildFingerprintChangesWithVersion(t *testing.T) {
	b1 := bundle.Build(sampleImpact(), "v2", sampleConvention())
	b2 := bundle.Build(sampleImpact(), "v3", sampleConvention())
	assert.NotEqual(t, b1.Fingerprint, b2.Fingerprint)
}

func TestBuildFingerprintIgnoresInputOrdering(t *testing.T) {
	imp := sampleImpact()
	imp.TouchedChanges = append(imp.TouchedChanges, model.ClassifiedChange{
		ChangeEntry: model.ChangeEntry{Method: "POST", Path: "/orders", Kind: model.KindRequiredAdded, Location: model.LocationRequest, Field: "warehouse"},
		Severity:    model.SeverityHigh, IsBreaking: true,
	})

	reordered := sampleImpact()
	reordered.TouchedChanges = []model.ClassifiedChange{
		imp.TouchedChanges[1], imp.TouchedChanges[0],
	}

	b1 := bundle.Build(imp, "v2", sampleConvention())
	b2 := bundle.Build(reordered, "v2", sampleConvention())
	assert.Equal(t, b1.Fingerprint, b2.Fingerprint)
}

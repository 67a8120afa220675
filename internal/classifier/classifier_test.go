package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MadhuvanthiSriPad/api-core/internal/model"
)

func TestClassifyDecisionTable(t *testing.T) {
	cases := []struct {
		name       string
		entry      model.ChangeEntry
		wantSev    model.Severity
		wantBreak  bool
	}{
		{
			name:      "removed route",
			entry:     model.ChangeEntry{Kind: model.KindRemoved, Location: ""},
			wantSev:   model.SeverityHigh,
			wantBreak: true,
		},
		{
			name:      "removed response field",
			entry:     model.ChangeEntry{Kind: model.KindRemoved, Location: model.LocationResponse, Field: "status"},
			wantSev:   model.SeverityHigh,
			wantBreak: true,
		},
		{
			name:      "required field added without default",
			entry:     model.ChangeEntry{Kind: model.KindRequiredAdded, Location: model.LocationRequest, Field: "warehouse"},
			wantSev:   model.SeverityHigh,
			wantBreak: true,
		},
		{
			name:      "required field added with default",
			entry:     model.ChangeEntry{Kind: model.KindRequiredAdded, Location: model.LocationRequest, Field: "priority", After: "default:normal"},
			wantSev:   model.SeverityMedium,
			wantBreak: true,
		},
		{
			name:      "renamed field",
			entry:     model.ChangeEntry{Kind: model.KindRenamed, Before: "order_status", After: "status"},
			wantSev:   model.SeverityHigh,
			wantBreak: true,
		},
		{
			name:      "type narrowed",
			entry:     model.ChangeEntry{Kind: model.KindTypeChanged, Location: model.LocationResponse, Before: "string,number", After: "string"},
			wantSev:   model.SeverityHigh,
			wantBreak: true,
		},
		{
			name:      "enum narrowed on response",
			entry:     model.ChangeEntry{Kind: model.KindEnumNarrowed, Location: model.LocationResponse},
			wantSev:   model.SeverityHigh,
			wantBreak: true,
		},
		{
			name:      "marked deprecated",
			entry:     model.ChangeEntry{Kind: model.KindDeprecated},
			wantSev:   model.SeverityMedium,
			wantBreak: false,
		},
		{
			name:      "added optional field",
			entry:     model.ChangeEntry{Kind: model.KindAdded, Location: model.LocationResponse, Field: "nickname"},
			wantSev:   model.SeverityLow,
			wantBreak: false,
		},
		{
			name:      "new route added",
			entry:     model.ChangeEntry{Kind: model.KindAdded, Location: ""},
			wantSev:   model.SeverityLow,
			wantBreak: false,
		},
		{
			name:      "required relaxed",
			entry:     model.ChangeEntry{Kind: model.KindRequiredRemoved, Location: model.LocationParam},
			wantSev:   model.SeverityLow,
			wantBreak: false,
		},
		{
			name:      "ambiguous structural change",
			entry:     model.ChangeEntry{Kind: model.KindOther},
			wantSev:   model.SeverityMedium,
			wantBreak: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.entry)
			assert.Equal(t, tc.wantSev, got.Severity)
			assert.Equal(t, tc.wantBreak, got.IsBreaking)
			assert.NotEmpty(t, got.Rationale)
		})
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	entry := model.ChangeEntry{Kind: model.KindTypeChanged, Location: model.LocationRequest, Before: "string", After: "integer"}
	first := Classify(entry)
	second := Classify(entry)
	assert.Equal(t, first, second)
}

func TestClassifyAllRollsUpChangeSet(t *testing.T) {
	cs := ClassifyAll("orders", "v1", "v2", []model.ChangeEntry{
		{Kind: model.KindAdded, Location: model.LocationResponse, Field: "nickname"},
		{Kind: model.KindRemoved, Location: model.LocationResponse, Field: "status"},
	})

	assert.Equal(t, model.SeverityHigh, cs.RollupSeverity())
	assert.True(t, cs.RollupIsBreaking())
	assert.Len(t, cs.BreakingChanges(), 1)
}

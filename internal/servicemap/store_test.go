package servicemap_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MadhuvanthiSriPad/api-core/internal/dbtest"
	"github.com/MadhuvanthiSriPad/api-core/internal/model"
	"github.com/MadhuvanthiSriPad/api-core/internal/servicemap"
)

func TestStoreReplaceAndQuery(t *testing.T) {
	client := dbtest.NewTestClient(t)
	store := servicemap.New(client.DB())
	ctx := context.Background()

	edges := []model.ServiceEdge{
		{Producer: "orders", Consumer: "billing", Declared: true},
		{Producer: "orders", Consumer: "shipping", Declared: true},
		{Producer: "catalog", Consumer: "billing", Declared: true},
	}
	require.NoError(t, store.Replace(ctx, edges))

	consumers, err := store.ConsumersOf(ctx, "orders")
	require.NoError(t, err)
	assert.Len(t, consumers, 2)

	all, err := store.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	// A second Replace clears the stale edges from the first one.
	require.NoError(t, store.Replace(ctx, []model.ServiceEdge{
		{Producer: "orders", Consumer: "billing", Declared: true},
	}))

	all, err = store.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

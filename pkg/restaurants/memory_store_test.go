package restaurants

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestdata(t *testing.T) []Restaurant {
	t.Helper()
	rs, err := LoadSeed("testdata/restaurants.yaml")
	require.NoError(t, err)
	return rs
}

func TestLoadSeed(t *testing.T) {
	rs := loadTestdata(t)
	require.Len(t, rs, 4)
	assert.Equal(t, "restaurant-2", rs[1].ID)
	assert.Equal(t, []string{"sushi", "omakase"}, rs[1].Tags)
	assert.Equal(t, 4, rs[1].PriceRange)
	assert.True(t, rs[1].AIFeatured)
	assert.InDelta(t, 4.8, rs[1].AverageRating, 0.001)
}

func TestParseSeed_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing id", "restaurants:\n  - name: x\n"},
		{"missing name", "restaurants:\n  - id: a\n"},
		{"price range", "restaurants:\n  - id: a\n    name: x\n    price_range: 9\n"},
		{"duplicate", "restaurants:\n  - id: a\n    name: x\n  - id: a\n    name: y\n"},
		{"not yaml", "restaurants: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSeed([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(loadTestdata(t)...)

	cuisines, err := s.ListCuisineTypes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Italian", "Japanese", "Lebanese"}, cuisines)

	italian, err := s.ListByCuisine(ctx, "ITALIAN")
	require.NoError(t, err)
	require.Len(t, italian, 2)
	assert.Equal(t, "restaurant-1", italian[0].ID)
	assert.Equal(t, "restaurant-3", italian[1].ID)

	none, err := s.ListByCuisine(ctx, "Peruvian")
	require.NoError(t, err)
	assert.Empty(t, none)

	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestMemoryStore_PutReplacesAndCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(Restaurant{ID: "a", Name: "A", Tags: []string{"x"}})
	s.Put(Restaurant{ID: "a", Name: "A2", Tags: []string{"y"}}, Restaurant{ID: "b", Name: "B"})

	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "A2", all[0].Name)

	all[0].Tags[0] = "mutated"
	again, err := s.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"y"}, again[0].Tags)
}

func TestMemoryStore_Errors(t *testing.T) {
	s := NewMemoryStore()
	s.Err = errors.New("down")
	_, err := s.ListCuisineTypes(context.Background())
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewMemoryStore().ListAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDistinctCuisines(t *testing.T) {
	assert.Equal(t, []string{"Italian", "Thai"}, DistinctCuisines([]string{"italian", " Thai", "Italian ", "", "THAI", "Italian"}))
	assert.Empty(t, DistinctCuisines(nil))
}

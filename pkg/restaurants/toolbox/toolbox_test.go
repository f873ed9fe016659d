package toolbox

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/go-go-golems/tablebot/pkg/conversation"
	"github.com/go-go-golems/tablebot/pkg/inference/engine/scripted"
	"github.com/go-go-golems/tablebot/pkg/inference/toolloop"
	"github.com/go-go-golems/tablebot/pkg/inference/tools"
	"github.com/go-go-golems/tablebot/pkg/restaurants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *restaurants.MemoryStore {
	t.Helper()
	rs, err := restaurants.LoadSeed("../testdata/restaurants.yaml")
	require.NoError(t, err)
	return restaurants.NewMemoryStore(rs...)
}

func TestNormalizeCuisine(t *testing.T) {
	tests := map[string]string{
		"  italian ":     "Italian",
		"JAPANESE":       "Japanese",
		"middle EASTERN": "Middle eastern",
		"":               "",
		"é":              "É",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeCuisine(in), in)
	}
}

func TestCuisineTypes(t *testing.T) {
	ctx := context.Background()

	out, err := New(testStore(t)).CuisineTypes(ctx)
	require.NoError(t, err)
	var cuisines []string
	require.NoError(t, json.Unmarshal([]byte(out), &cuisines))
	assert.Equal(t, []string{"Italian", "Japanese", "Lebanese"}, cuisines)

	out, err = New(restaurants.NewMemoryStore()).CuisineTypes(ctx)
	require.NoError(t, err)
	assert.Equal(t, NoCuisineTypesText, out)

	failing := restaurants.NewMemoryStore()
	failing.Err = errors.New("connection refused")
	out, err = New(failing).CuisineTypes(ctx)
	require.NoError(t, err)
	assert.Equal(t, CuisineTypesErrorText, out)
}

func TestRestaurantsByCuisineType(t *testing.T) {
	ctx := context.Background()
	tb := New(testStore(t))

	out, err := tb.RestaurantsByCuisineType(ctx, CuisineInput{CuisineType: " iTaLiAn "})
	require.NoError(t, err)
	var rs []restaurants.Restaurant
	require.NoError(t, json.Unmarshal([]byte(out), &rs))
	require.Len(t, rs, 2)
	assert.Equal(t, "restaurant-1", rs[0].ID)
	assert.Contains(t, out, `"ai_featured":true`)

	out, err = tb.RestaurantsByCuisineType(ctx, CuisineInput{CuisineType: "peruvian"})
	require.NoError(t, err)
	assert.Equal(t, "No restaurants found with cuisine type: Peruvian", out)

	failing := restaurants.NewMemoryStore()
	failing.Err = errors.New("down")
	out, err = New(failing).RestaurantsByCuisineType(ctx, CuisineInput{CuisineType: "thai"})
	require.NoError(t, err)
	assert.Equal(t, "Error retrieving restaurants for cuisine type: Thai", out)
}

func TestAllRestaurants(t *testing.T) {
	ctx := context.Background()

	out, err := New(testStore(t)).AllRestaurants(ctx)
	require.NoError(t, err)
	var rs []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &rs))
	require.Len(t, rs, 4)
	for _, col := range []string{"id", "name", "description", "address", "tags", "cuisine_type", "price_range",
		"average_rating", "dietary_options", "ambiance_tags", "outdoor_seating", "ai_featured"} {
		assert.Contains(t, rs[0], col)
	}

	out, err = New(restaurants.NewMemoryStore()).AllRestaurants(ctx)
	require.NoError(t, err)
	assert.Equal(t, NoRestaurantsText, out)
}

func TestRegister(t *testing.T) {
	reg := tools.NewRegistry()
	require.NoError(t, New(testStore(t)).Register(reg))

	names := []string{}
	for _, def := range reg.List() {
		names = append(names, def.Name)
	}
	assert.Equal(t, []string{FinishedUsingTools, GetAllCuisineTypes, GetRestaurantsByCuisineType, GetAllRestaurants}, names)

	c, ok := reg.Completion()
	require.True(t, ok)
	assert.Equal(t, FinishedUsingTools, c.Name)

	def, ok := reg.Lookup(GetRestaurantsByCuisineType)
	require.True(t, ok)
	require.NotNil(t, def.Parameters)
	assert.Contains(t, def.Parameters.Required, "cuisineType")

	assert.Error(t, New(testStore(t)).Register(reg), "registering twice fails")
}

func TestSystemPrompt(t *testing.T) {
	p, err := SystemPrompt(DefaultPromptData())
	require.NoError(t, err)
	assert.Contains(t, p, "TableReserve")
	assert.Contains(t, p, TrailerMarker+" restaurant-1,restaurant-2,restaurant-3")
	assert.Contains(t, p, "call the finishedUsingTools tool")
	assert.Contains(t, p, "getAllCuisineTypes, getRestaurantsByCuisineType, getAllRestaurants")
	assert.Contains(t, p, "ai_featured")
	assert.False(t, strings.Contains(p, "{{"))
}

func TestToolboxDrivesATurn(t *testing.T) {
	reg := tools.NewRegistry()
	require.NoError(t, New(testStore(t)).Register(reg))
	prompt, err := SystemPrompt(DefaultPromptData())
	require.NoError(t, err)

	eng := scripted.NewEngineFromSteps(
		scripted.Step{Calls: []scripted.Call{{ID: "c1", Name: GetRestaurantsByCuisineType, Arguments: map[string]interface{}{"cuisineType": "japanese"}}}},
		scripted.Step{Text: "Kaito Sushi Bar is a great pick!\nRESTAURANTS_TO_SHOW: restaurant-2", Calls: []scripted.Call{{ID: "c2", Name: FinishedUsingTools}}},
	)
	l := toolloop.New(toolloop.WithEngine(eng), toolloop.WithRegistry(reg), toolloop.WithSystemPrompt(prompt))

	out, res := l.RunTurn(context.Background(), conversation.Conversation{conversation.NewUserMessage("sushi please")})
	require.NoError(t, res.Err)
	assert.Equal(t, "Kaito Sushi Bar is a great pick!\nRESTAURANTS_TO_SHOW: restaurant-2", res.Text)
	require.Len(t, out, 4)
	assert.Equal(t, conversation.RoleTool, out[2].Role)
	assert.Contains(t, out[2].Text, `"id":"restaurant-2"`)

	reqs := eng.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, conversation.RoleSystem, reqs[0].Messages[0].Role)
	assert.Len(t, reqs[0].Tools, 4)
}

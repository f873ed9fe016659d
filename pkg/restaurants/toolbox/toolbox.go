// Package toolbox exposes restaurant data to the assistant as capabilities.
package toolbox

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-go-golems/tablebot/pkg/inference/tools"
	"github.com/go-go-golems/tablebot/pkg/restaurants"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	FinishedUsingTools          = "finishedUsingTools"
	GetAllCuisineTypes          = "getAllCuisineTypes"
	GetRestaurantsByCuisineType = "getRestaurantsByCuisineType"
	GetAllRestaurants           = "getAllRestaurants"
)

const (
	NoCuisineTypesText       = "Currently we have no cuisine types available"
	CuisineTypesErrorText    = "Error retrieving cuisine types"
	NoRestaurantsText        = "No restaurants found"
	RestaurantsErrorText     = "Error retrieving restaurants"
	noRestaurantsForCuisine  = "No restaurants found with cuisine type: %s"
	restaurantsForCuisineErr = "Error retrieving restaurants for cuisine type: %s"
)

type CuisineInput struct {
	CuisineType string `json:"cuisineType" jsonschema:"required,description=The cuisine type to look for such as Italian"`
}

// Toolbox answers capability calls from a restaurant store. Store failures are
// logged and reported to the model as text; they never fail the turn.
type Toolbox struct {
	store restaurants.Store
}

func New(store restaurants.Store) *Toolbox {
	return &Toolbox{store: store}
}

// CuisineTypes returns the JSON array of available cuisine types, or a sentence
// saying there are none.
func (t *Toolbox) CuisineTypes(ctx context.Context) (string, error) {
	log.Info().Msg("assistant is looking for cuisine types")
	cuisines, err := t.store.ListCuisineTypes(ctx)
	if err != nil {
		log.Error().Err(err).Msg("could not fetch cuisine types")
		return CuisineTypesErrorText, nil
	}
	if len(cuisines) == 0 {
		return NoCuisineTypesText, nil
	}
	log.Debug().Strs("cuisines", cuisines).Msg("found cuisine types")
	return toJSON(cuisines)
}

func (t *Toolbox) RestaurantsByCuisineType(ctx context.Context, in CuisineInput) (string, error) {
	cuisine := NormalizeCuisine(in.CuisineType)
	log.Info().Str("cuisine_type", cuisine).Msg("assistant is looking for restaurants by cuisine type")
	rs, err := t.store.ListByCuisine(ctx, cuisine)
	if err != nil {
		log.Error().Err(err).Str("cuisine_type", cuisine).Msg("could not fetch restaurants")
		return fmt.Sprintf(restaurantsForCuisineErr, cuisine), nil
	}
	if len(rs) == 0 {
		return fmt.Sprintf(noRestaurantsForCuisine, cuisine), nil
	}
	log.Debug().Int("restaurants", len(rs)).Msg("found restaurants")
	return toJSON(rs)
}

func (t *Toolbox) AllRestaurants(ctx context.Context) (string, error) {
	log.Info().Msg("assistant is looking for all restaurants")
	rs, err := t.store.ListAll(ctx)
	if err != nil {
		log.Error().Err(err).Msg("could not fetch restaurants")
		return RestaurantsErrorText, nil
	}
	if len(rs) == 0 {
		return NoRestaurantsText, nil
	}
	log.Debug().Int("restaurants", len(rs)).Msg("found restaurants")
	return toJSON(rs)
}

// Definitions returns the capabilities in registration order, completion signal first.
func (t *Toolbox) Definitions() ([]tools.ToolDefinition, error) {
	ret := []tools.ToolDefinition{
		tools.NewCompletionTool(FinishedUsingTools, "Call this when you're done using tools and ready to respond."),
	}

	cuisines, err := tools.NewToolFromFunc(GetAllCuisineTypes,
		"Return the unique cuisine types available in the application", t.CuisineTypes)
	if err != nil {
		return nil, errors.Wrap(err, GetAllCuisineTypes)
	}
	byCuisine, err := tools.NewToolFromFunc(GetRestaurantsByCuisineType,
		"Request restaurants from the database based on the cuisine type", t.RestaurantsByCuisineType)
	if err != nil {
		return nil, errors.Wrap(err, GetRestaurantsByCuisineType)
	}
	all, err := tools.NewToolFromFunc(GetAllRestaurants,
		"Request all restaurants with all their info from the database", t.AllRestaurants)
	if err != nil {
		return nil, errors.Wrap(err, GetAllRestaurants)
	}
	return append(ret, *cuisines, *byCuisine, *all), nil
}

// Register adds every capability to reg.
func (t *Toolbox) Register(reg *tools.Registry) error {
	defs, err := t.Definitions()
	if err != nil {
		return err
	}
	for _, def := range defs {
		if err := reg.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// NormalizeCuisine trims the input and capitalizes it: first letter upper case, the
// rest lower case.
func NormalizeCuisine(s string) string {
	runes := []rune(strings.TrimSpace(s))
	for i, r := range runes {
		if i == 0 {
			runes[i] = unicode.ToUpper(r)
		} else {
			runes[i] = unicode.ToLower(r)
		}
	}
	return string(runes)
}

func toJSON(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

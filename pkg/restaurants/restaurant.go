package restaurants

import (
	"context"
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Restaurant is one row of the restaurants table. JSON names match the column names
// the assistant sees in capability results.
type Restaurant struct {
	ID             string   `json:"id" yaml:"id"`
	Name           string   `json:"name" yaml:"name"`
	Description    string   `json:"description" yaml:"description"`
	Address        string   `json:"address" yaml:"address"`
	Tags           []string `json:"tags" yaml:"tags"`
	CuisineType    string   `json:"cuisine_type" yaml:"cuisine_type"`
	PriceRange     int      `json:"price_range" yaml:"price_range"`
	AverageRating  float64  `json:"average_rating" yaml:"average_rating"`
	DietaryOptions []string `json:"dietary_options" yaml:"dietary_options"`
	AmbianceTags   []string `json:"ambiance_tags" yaml:"ambiance_tags"`
	OutdoorSeating bool     `json:"outdoor_seating" yaml:"outdoor_seating"`
	AIFeatured     bool     `json:"ai_featured" yaml:"ai_featured"`
}

func (r Restaurant) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("restaurant id is empty")
	}
	if strings.TrimSpace(r.Name) == "" {
		return errors.Errorf("restaurant %s: name is empty", r.ID)
	}
	if r.PriceRange < 0 || r.PriceRange > 4 {
		return errors.Errorf("restaurant %s: price range %d out of range 1-4", r.ID, r.PriceRange)
	}
	return nil
}

// Store is the read side of the restaurant data the assistant's capabilities use.
type Store interface {
	// ListCuisineTypes returns the distinct non-empty cuisine types, sorted.
	ListCuisineTypes(ctx context.Context) ([]string, error)
	// ListByCuisine matches cuisine types case-insensitively.
	ListByCuisine(ctx context.Context, cuisine string) ([]Restaurant, error)
	ListAll(ctx context.Context) ([]Restaurant, error)
}

// Seed is the YAML layout of a restaurant import file.
type Seed struct {
	Restaurants []Restaurant `yaml:"restaurants"`
}

func LoadSeed(path string) ([]Restaurant, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read seed file %s", path)
	}
	return ParseSeed(b)
}

func ParseSeed(b []byte) ([]Restaurant, error) {
	var seed Seed
	if err := yaml.Unmarshal(b, &seed); err != nil {
		return nil, errors.Wrap(err, "could not parse seed")
	}
	seen := map[string]bool{}
	for _, r := range seed.Restaurants {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		if seen[r.ID] {
			return nil, errors.Errorf("duplicate restaurant id %s", r.ID)
		}
		seen[r.ID] = true
	}
	return seed.Restaurants, nil
}

// UniqueCuisines returns the distinct non-empty cuisine types of rs, sorted.
func UniqueCuisines(rs []Restaurant) []string {
	names := make([]string, 0, len(rs))
	for _, r := range rs {
		names = append(names, r.CuisineType)
	}
	return DistinctCuisines(names)
}

// DistinctCuisines trims names and drops empty ones and case-insensitive duplicates,
// matching how cuisines are looked up. Of several spellings the one sorting first
// is kept.
func DistinctCuisines(names []string) []string {
	trimmed := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			trimmed = append(trimmed, n)
		}
	}
	sort.Strings(trimmed)

	seen := map[string]bool{}
	ret := make([]string, 0, len(trimmed))
	for _, n := range trimmed {
		key := strings.ToLower(n)
		if seen[key] {
			continue
		}
		seen[key] = true
		ret = append(ret, n)
	}
	return ret
}

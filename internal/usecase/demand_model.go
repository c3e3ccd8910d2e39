package usecase

import (
	"fmt"
	"math"
	"sort"

	"github.com/sitelens/backend/internal/domain"
)

// weightSumTolerance is how far a set of weights may drift from summing to 1
const weightSumTolerance = 1e-6

// CategoryProfile is the demand definition of one business category.
// demand = FootTraffic*traffic + Competition*1/(1+competitors/CompetitorHalfSaturation) + RentAffordability*(1-rentIndex)
type CategoryProfile struct {
	FootTraffic              float64 `json:"footTraffic" mapstructure:"foot_traffic"`
	Competition              float64 `json:"competition" mapstructure:"competition"`
	RentAffordability        float64 `json:"rentAffordability" mapstructure:"rent_affordability"`
	CompetitorHalfSaturation float64 `json:"competitorHalfSaturation" mapstructure:"competitor_half_saturation"` // competitors at which the competition term is 0.5
}

// DefaultCategoryProfiles are the built-in demand profiles
var DefaultCategoryProfiles = map[domain.Category]CategoryProfile{
	// Walk-in driven, many small competitors tolerated
	"cafe":              {FootTraffic: 0.55, Competition: 0.25, RentAffordability: 0.20, CompetitorHalfSaturation: 8},
	"bakery":            {FootTraffic: 0.50, Competition: 0.30, RentAffordability: 0.20, CompetitorHalfSaturation: 4},
	"restaurant":        {FootTraffic: 0.45, Competition: 0.30, RentAffordability: 0.25, CompetitorHalfSaturation: 10},
	"bar":               {FootTraffic: 0.50, Competition: 0.20, RentAffordability: 0.30, CompetitorHalfSaturation: 6},
	"convenience_store": {FootTraffic: 0.60, Competition: 0.35, RentAffordability: 0.05, CompetitorHalfSaturation: 2},
	"retail":            {FootTraffic: 0.50, Competition: 0.20, RentAffordability: 0.30, CompetitorHalfSaturation: 5},
	// Destination business: members travel, rent dominates margins
	"fitness": {FootTraffic: 0.25, Competition: 0.35, RentAffordability: 0.40, CompetitorHalfSaturation: 3},
}

// DemandModel estimates category-specific customer demand at a location
type DemandModel struct {
	profiles map[domain.Category]CategoryProfile
}

// NewDemandModel creates a demand model from category profiles.
// Nil or empty profiles fall back to DefaultCategoryProfiles. Every profile is
// validated here so that an unknown category is the only failure at request time.
func NewDemandModel(profiles map[domain.Category]CategoryProfile) (*DemandModel, error) {
	if len(profiles) == 0 {
		profiles = DefaultCategoryProfiles
	}

	copied := make(map[domain.Category]CategoryProfile, len(profiles))
	for category, profile := range profiles {
		if category == "" {
			return nil, fmt.Errorf("demand profile with empty category")
		}
		if err := profile.Validate(); err != nil {
			return nil, fmt.Errorf("demand profile %q: %w", category, err)
		}
		copied[category] = profile
	}

	return &DemandModel{profiles: copied}, nil
}

// Validate checks that weights are non-negative and sum to 1
func (p CategoryProfile) Validate() error {
	weights := []float64{p.FootTraffic, p.Competition, p.RentAffordability}
	if err := validateWeights(weights); err != nil {
		return err
	}
	if p.CompetitorHalfSaturation <= 0 {
		return fmt.Errorf("competitor half saturation must be positive, got %v", p.CompetitorHalfSaturation)
	}
	return nil
}

// Estimate returns the demand score in [0,1] of a category at a location.
// The result depends only on its inputs.
func (m *DemandModel) Estimate(category domain.Category, location *domain.Location) (float64, error) {
	profile, ok := m.profiles[category]
	if !ok {
		return 0, fmt.Errorf("%w: %q", domain.ErrUnknownCategory, category)
	}

	traffic := clamp01(location.FootTraffic)
	competition := 1 / (1 + float64(location.CompetitorCount)/profile.CompetitorHalfSaturation)
	affordability := 1 - clamp01(location.RentIndex)

	demand := profile.FootTraffic*traffic +
		profile.Competition*competition +
		profile.RentAffordability*affordability

	return clamp01(demand), nil
}

// Has reports whether a profile is registered for the category
func (m *DemandModel) Has(category domain.Category) bool {
	_, ok := m.profiles[category]
	return ok
}

// Profile returns the profile of a category
func (m *DemandModel) Profile(category domain.Category) (CategoryProfile, bool) {
	profile, ok := m.profiles[category]
	return profile, ok
}

// Categories returns the registered categories in lexicographic order
func (m *DemandModel) Categories() []domain.Category {
	categories := make([]domain.Category, 0, len(m.profiles))
	for category := range m.profiles {
		categories = append(categories, category)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })
	return categories
}

// validateWeights checks a weight vector is non-negative and sums to 1
func validateWeights(weights []float64) error {
	sum := 0.0
	for _, w := range weights {
		if w < 0 || math.IsNaN(w) {
			return fmt.Errorf("weights must be non-negative, got %v", weights)
		}
		sum += w
	}
	if math.Abs(sum-1) > weightSumTolerance {
		return fmt.Errorf("weights must sum to 1, got %.6f", sum)
	}
	return nil
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

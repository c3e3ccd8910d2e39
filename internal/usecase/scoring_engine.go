package usecase

import (
	"fmt"

	"github.com/sitelens/backend/internal/domain"
)

// DefaultCostPerRentPoint converts a rent index to an estimated opening cost
// for locations that carry no explicit cost estimate (rent index 1.0 = 100M).
const DefaultCostPerRentPoint = 100_000_000.0

// ScoreWeights are the fixed weights of the three score terms
type ScoreWeights struct {
	Demand        float64 `json:"demand" mapstructure:"demand"`
	Affordability float64 `json:"affordability" mapstructure:"affordability"`
	Demographic   float64 `json:"demographic" mapstructure:"demographic"`
}

// DefaultScoreWeights favour demand, then demographic fit, then budget headroom
var DefaultScoreWeights = ScoreWeights{
	Demand:        0.5,
	Affordability: 0.2,
	Demographic:   0.3,
}

// Validate checks that weights are non-negative and sum to 1
func (w ScoreWeights) Validate() error {
	return validateWeights([]float64{w.Demand, w.Affordability, w.Demographic})
}

// ScoringConfig holds configuration for the scoring engine
type ScoringConfig struct {
	Weights          ScoreWeights
	CostPerRentPoint float64
}

// ScoringEngine combines demand, budget feasibility and demographic alignment
// into a single comparable score with a per-term breakdown
type ScoringEngine struct {
	demand           *DemandModel
	weights          ScoreWeights
	costPerRentPoint float64
}

// NewScoringEngine creates a scoring engine. Zero weights and cost scale use the defaults.
func NewScoringEngine(demand *DemandModel, config ScoringConfig) (*ScoringEngine, error) {
	weights := config.Weights
	if weights == (ScoreWeights{}) {
		weights = DefaultScoreWeights
	}
	if err := weights.Validate(); err != nil {
		return nil, fmt.Errorf("score weights: %w", err)
	}

	costPerRentPoint := config.CostPerRentPoint
	if costPerRentPoint <= 0 {
		costPerRentPoint = DefaultCostPerRentPoint
	}

	return &ScoringEngine{
		demand:           demand,
		weights:          weights,
		costPerRentPoint: costPerRentPoint,
	}, nil
}

// Weights returns the score weights in use
func (e *ScoringEngine) Weights() ScoreWeights {
	return e.weights
}

// EstimatedCost returns the opening cost of a location
func (e *ScoringEngine) EstimatedCost(location *domain.Location) float64 {
	if location.EstimatedCost > 0 {
		return location.EstimatedCost
	}
	return clamp01(location.RentIndex) * e.costPerRentPoint
}

// Score rates a location for a category, budget and target demographic.
// The score is within [0,1] and is 0 whenever the estimated cost exceeds the budget.
// An empty demographic targets the location's dominant segment.
func (e *ScoringEngine) Score(
	category domain.Category,
	location *domain.Location,
	budget float64,
	demographic string,
) (float64, domain.ScoreBreakdown, error) {
	if !(budget > 0) {
		return 0, domain.ScoreBreakdown{}, fmt.Errorf("%w: got %v", domain.ErrInfeasibleBudget, budget)
	}

	demand, err := e.demand.Estimate(category, location)
	if err != nil {
		return 0, domain.ScoreBreakdown{}, err
	}

	cost := e.EstimatedCost(location)
	feasible := cost <= budget
	affordability := 0.0
	if feasible {
		affordability = clamp01(1 - cost/budget)
	}

	target := demographic
	alignment := 0.0
	if target == "" {
		if top, ok := location.Demographics.Dominant(); ok {
			target = top.Segment
			alignment = top.Proportion
		}
	} else {
		alignment = location.Demographics.Share(target)
	}
	alignment = clamp01(alignment)

	breakdown := domain.ScoreBreakdown{
		Demand:        term(demand, e.weights.Demand),
		Affordability: term(affordability, e.weights.Affordability),
		Demographic:   term(alignment, e.weights.Demographic),
		TargetSegment: target,
		EstimatedCost: cost,
		Feasible:      feasible,
	}

	if !feasible {
		return 0, breakdown, nil
	}

	score := breakdown.Demand.Contribution +
		breakdown.Affordability.Contribution +
		breakdown.Demographic.Contribution

	return clamp01(score), breakdown, nil
}

func term(value, weight float64) domain.ScoreTerm {
	return domain.ScoreTerm{
		Value:        value,
		Weight:       weight,
		Contribution: value * weight,
	}
}

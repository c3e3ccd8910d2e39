package domain

import (
	"fmt"
	"math"
	"sort"
)

// MixTolerance is how far the sum of a demographic mix may drift from 1
const MixTolerance = 0.01

// Category is a business category label such as "cafe" or "restaurant"
type Category string

// DemographicMix maps an age/segment label to its proportion of the local population
type DemographicMix map[string]float64

// SegmentShare is a single segment of a demographic mix
type SegmentShare struct {
	Segment    string  `json:"segment"`
	Proportion float64 `json:"proportion"`
}

// Location is an immutable snapshot of a candidate business location
type Location struct {
	ID                 string         `json:"id"`
	Name               string         `json:"name"`
	Area               string         `json:"area"`
	FootTraffic        float64        `json:"footTraffic"`     // normalized 0-1
	RentIndex          float64        `json:"rentIndex"`       // normalized 0-1
	EstimatedCost      float64        `json:"estimatedCost"`   // monetary, same unit as budget; 0 = derive from rent
	CompetitorCount    int            `json:"competitorCount"` // nearby competitors
	Demographics       DemographicMix `json:"demographics"`
	SuitableCategories []string       `json:"suitableCategories,omitempty"`
}

// SuitableFor reports whether the location is a candidate for the category.
// A location without explicit categories is suitable for every category.
func (l *Location) SuitableFor(category Category) bool {
	if len(l.SuitableCategories) == 0 {
		return true
	}
	for _, c := range l.SuitableCategories {
		if Category(c) == category {
			return true
		}
	}
	return false
}

// Validate checks the location against the data model invariants
func (l *Location) Validate() error {
	if l.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidLocation)
	}
	if !inUnitRange(l.FootTraffic) || !inUnitRange(l.RentIndex) {
		return fmt.Errorf("%w: %s: indices must be within [0,1]", ErrInvalidLocation, l.ID)
	}
	if l.EstimatedCost < 0 || l.CompetitorCount < 0 {
		return fmt.Errorf("%w: %s: negative cost or competitor count", ErrInvalidLocation, l.ID)
	}
	if err := l.Demographics.Validate(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidLocation, l.ID, err)
	}
	return nil
}

// Validate checks that every proportion is within [0,1] and the mix sums to 1
func (m DemographicMix) Validate() error {
	if len(m) == 0 {
		return nil
	}
	sum := 0.0
	for segment, p := range m {
		if !inUnitRange(p) {
			return fmt.Errorf("segment %q proportion %v outside [0,1]", segment, p)
		}
		sum += p
	}
	if math.Abs(sum-1) > MixTolerance {
		return fmt.Errorf("proportions sum to %.3f, want 1", sum)
	}
	return nil
}

// Share returns the proportion of a segment, 0 when absent
func (m DemographicMix) Share(segment string) float64 {
	return m[segment]
}

// Sorted returns all segments ordered by proportion descending, then label ascending
func (m DemographicMix) Sorted() []SegmentShare {
	shares := make([]SegmentShare, 0, len(m))
	for segment, p := range m {
		shares = append(shares, SegmentShare{Segment: segment, Proportion: p})
	}
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].Proportion != shares[j].Proportion {
			return shares[i].Proportion > shares[j].Proportion
		}
		return shares[i].Segment < shares[j].Segment
	})
	return shares
}

// Dominant returns the segment with the largest proportion.
// Ties resolve to the lexicographically smallest label; ok is false for an empty mix.
func (m DemographicMix) Dominant() (SegmentShare, bool) {
	sorted := m.Sorted()
	if len(sorted) == 0 {
		return SegmentShare{}, false
	}
	return sorted[0], true
}

// MaxShare returns the largest proportion in the mix
func (m DemographicMix) MaxShare() float64 {
	top, _ := m.Dominant()
	return top.Proportion
}

func inUnitRange(v float64) bool {
	return v >= 0 && v <= 1 && !math.IsNaN(v)
}

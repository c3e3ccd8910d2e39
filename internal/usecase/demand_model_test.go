package usecase

import (
	"errors"
	"math"
	"testing"

	"github.com/sitelens/backend/internal/domain"
)

func TestNewDemandModel(t *testing.T) {
	t.Run("uses default profiles when none are given", func(t *testing.T) {
		m, err := NewDemandModel(nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(m.Categories()) != len(DefaultCategoryProfiles) {
			t.Errorf("categories = %d, want %d", len(m.Categories()), len(DefaultCategoryProfiles))
		}
		if !m.Has("cafe") {
			t.Error("expected cafe to be registered")
		}
	})

	t.Run("rejects weights that do not sum to 1", func(t *testing.T) {
		_, err := NewDemandModel(map[domain.Category]CategoryProfile{
			"kiosk": {FootTraffic: 0.5, Competition: 0.5, RentAffordability: 0.5, CompetitorHalfSaturation: 1},
		})
		if err == nil {
			t.Error("expected error for weights summing to 1.5")
		}
	})

	t.Run("rejects negative weights", func(t *testing.T) {
		_, err := NewDemandModel(map[domain.Category]CategoryProfile{
			"kiosk": {FootTraffic: 1.2, Competition: -0.2, RentAffordability: 0, CompetitorHalfSaturation: 1},
		})
		if err == nil {
			t.Error("expected error for negative weight")
		}
	})

	t.Run("rejects non-positive half saturation", func(t *testing.T) {
		_, err := NewDemandModel(map[domain.Category]CategoryProfile{
			"kiosk": {FootTraffic: 1, CompetitorHalfSaturation: 0},
		})
		if err == nil {
			t.Error("expected error for zero half saturation")
		}
	})

	t.Run("copies the profiles", func(t *testing.T) {
		profiles := map[domain.Category]CategoryProfile{
			"kiosk": {FootTraffic: 1, CompetitorHalfSaturation: 1},
		}
		m, err := NewDemandModel(profiles)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		delete(profiles, "kiosk")
		if !m.Has("kiosk") {
			t.Error("model must not share the caller's map")
		}
	})
}

func TestDemandModel_Estimate(t *testing.T) {
	m, err := NewDemandModel(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("computes weighted demand", func(t *testing.T) {
		loc := cheapLocation()
		got, err := m.Estimate("cafe", &loc)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		// 0.55*0.8 + 0.25*(1/(1+2/8)) + 0.20*(1-0.2)
		want := 0.8
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("Estimate() = %v, want %v", got, want)
		}
	})

	t.Run("is deterministic", func(t *testing.T) {
		loc := youngLocation()
		first, _ := m.Estimate("restaurant", &loc)
		for i := 0; i < 10; i++ {
			got, _ := m.Estimate("restaurant", &loc)
			if got != first {
				t.Fatalf("Estimate() = %v on call %d, want %v", got, i, first)
			}
		}
	})

	t.Run("stays within unit range for extreme inputs", func(t *testing.T) {
		tests := []domain.Location{
			{FootTraffic: 5, RentIndex: -3, CompetitorCount: 0},
			{FootTraffic: -1, RentIndex: 2, CompetitorCount: 1000},
			{FootTraffic: math.NaN(), RentIndex: math.NaN()},
		}
		for _, category := range m.Categories() {
			for i := range tests {
				got, err := m.Estimate(category, &tests[i])
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if got < 0 || got > 1 {
					t.Errorf("Estimate(%s, #%d) = %v, want within [0,1]", category, i, got)
				}
			}
		}
	})

	t.Run("more competitors lower demand", func(t *testing.T) {
		few := domain.Location{FootTraffic: 0.5, RentIndex: 0.5, CompetitorCount: 1}
		many := domain.Location{FootTraffic: 0.5, RentIndex: 0.5, CompetitorCount: 20}
		a, _ := m.Estimate("bakery", &few)
		b, _ := m.Estimate("bakery", &many)
		if a <= b {
			t.Errorf("demand with 1 competitor (%v) should exceed demand with 20 (%v)", a, b)
		}
	})

	t.Run("unknown category is an error", func(t *testing.T) {
		loc := cheapLocation()
		_, err := m.Estimate("spaceport", &loc)
		if !errors.Is(err, domain.ErrUnknownCategory) {
			t.Errorf("error = %v, want ErrUnknownCategory", err)
		}
	})
}

func TestDemandModel_Categories(t *testing.T) {
	m, _ := NewDemandModel(nil)
	categories := m.Categories()
	for i := 1; i < len(categories); i++ {
		if categories[i-1] >= categories[i] {
			t.Errorf("categories not sorted: %v", categories)
		}
	}
}

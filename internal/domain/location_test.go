package domain

import (
	"errors"
	"testing"
)

func TestDemographicMixDominant(t *testing.T) {
	t.Run("returns largest segment", func(t *testing.T) {
		mix := DemographicMix{"20s": 0.7, "30s": 0.3}
		top, ok := mix.Dominant()
		if !ok {
			t.Fatal("expected dominant segment")
		}
		if top.Segment != "20s" || top.Proportion != 0.7 {
			t.Errorf("Dominant() = %+v, want 20s/0.7", top)
		}
	})

	t.Run("breaks ties by label", func(t *testing.T) {
		mix := DemographicMix{"40s": 0.5, "30s": 0.5}
		top, _ := mix.Dominant()
		if top.Segment != "30s" {
			t.Errorf("Dominant() = %s, want 30s", top.Segment)
		}
	})

	t.Run("empty mix has no dominant segment", func(t *testing.T) {
		_, ok := DemographicMix{}.Dominant()
		if ok {
			t.Error("expected ok = false for empty mix")
		}
		if got := (DemographicMix{}).MaxShare(); got != 0 {
			t.Errorf("MaxShare() = %v, want 0", got)
		}
	})
}

func TestDemographicMixSorted(t *testing.T) {
	mix := DemographicMix{"teens": 0.1, "20s": 0.4, "30s": 0.4, "40s": 0.1}
	sorted := mix.Sorted()

	want := []string{"20s", "30s", "40s", "teens"}
	if len(sorted) != len(want) {
		t.Fatalf("len = %d, want %d", len(sorted), len(want))
	}
	for i, segment := range want {
		if sorted[i].Segment != segment {
			t.Errorf("sorted[%d] = %s, want %s", i, sorted[i].Segment, segment)
		}
	}
}

func TestDemographicMixValidate(t *testing.T) {
	tests := []struct {
		name    string
		mix     DemographicMix
		wantErr bool
	}{
		{name: "valid mix", mix: DemographicMix{"20s": 0.6, "30s": 0.4}},
		{name: "within tolerance", mix: DemographicMix{"20s": 0.333, "30s": 0.333, "40s": 0.333}},
		{name: "empty mix", mix: DemographicMix{}},
		{name: "sum too small", mix: DemographicMix{"20s": 0.5}, wantErr: true},
		{name: "proportion above one", mix: DemographicMix{"20s": 1.2, "30s": -0.2}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.mix.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLocationValidate(t *testing.T) {
	valid := Location{
		ID:           "loc-1",
		FootTraffic:  0.5,
		RentIndex:    0.3,
		Demographics: DemographicMix{"20s": 1},
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}

	missingID := valid
	missingID.ID = ""
	if err := missingID.Validate(); !errors.Is(err, ErrInvalidLocation) {
		t.Errorf("Validate() error = %v, want ErrInvalidLocation", err)
	}

	badIndex := valid
	badIndex.RentIndex = 1.5
	if err := badIndex.Validate(); !errors.Is(err, ErrInvalidLocation) {
		t.Errorf("Validate() error = %v, want ErrInvalidLocation", err)
	}
}

func TestLocationSuitableFor(t *testing.T) {
	open := Location{ID: "a"}
	if !open.SuitableFor("cafe") {
		t.Error("location without categories should suit every category")
	}

	restricted := Location{ID: "b", SuitableCategories: []string{"bar", "restaurant"}}
	if restricted.SuitableFor("cafe") {
		t.Error("restricted location should not suit cafe")
	}
	if !restricted.SuitableFor("bar") {
		t.Error("restricted location should suit bar")
	}
}

func TestIsClientError(t *testing.T) {
	if !IsClientError(ErrInfeasibleBudget) {
		t.Error("ErrInfeasibleBudget should be a client error")
	}
	if IsClientError(ErrDataUnavailable) {
		t.Error("ErrDataUnavailable should not be a client error")
	}
}

package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sitelens/backend/internal/domain"
)

func testAnalysis() *domain.Analysis {
	loc := youngLocation()
	return AnalyzeDemographics("cafe", &loc)
}

func TestNarrativeComposer_ComposeAnalysis(t *testing.T) {
	ctx := context.Background()

	t.Run("uses local summary without a generator", func(t *testing.T) {
		metrics := &recordingMetrics{}
		c := NewNarrativeComposer(nil, NarrativeConfig{}, nil, metrics)

		n := c.ComposeAnalysis(ctx, testAnalysis())
		if n.Source != domain.NarrativeSourceLocal {
			t.Errorf("Source = %q, want local", n.Source)
		}
		if n.Degraded {
			t.Error("narrative without a generator is not degraded")
		}
		if n.Text != n.Summary {
			t.Errorf("Text = %q, want summary", n.Text)
		}
		if len(metrics.narratives) != 1 {
			t.Errorf("narrative metrics = %d, want 1", len(metrics.narratives))
		}
	})

	t.Run("uses provider text on success", func(t *testing.T) {
		gen := &MockTextGenerator{text: "  Students in their twenties will be your regulars.  "}
		c := NewNarrativeComposer(gen, NarrativeConfig{}, nil, nil)

		n := c.ComposeAnalysis(ctx, testAnalysis())
		if n.Source != domain.NarrativeSourceProvider {
			t.Errorf("Source = %q, want provider", n.Source)
		}
		if n.Text != "Students in their twenties will be your regulars." {
			t.Errorf("Text = %q", n.Text)
		}
		if !strings.Contains(n.Summary, "dominant segment 20s (70%)") {
			t.Errorf("Summary = %q, want dominant segment", n.Summary)
		}
	})

	t.Run("degrades on provider timeout", func(t *testing.T) {
		gen := &MockTextGenerator{text: "too late", delay: time.Second}
		metrics := &recordingMetrics{}
		c := NewNarrativeComposer(gen, NarrativeConfig{Timeout: 20 * time.Millisecond}, nil, metrics)

		start := time.Now()
		n := c.ComposeAnalysis(ctx, testAnalysis())
		if time.Since(start) > 500*time.Millisecond {
			t.Errorf("compose took %v, want bounded by timeout", time.Since(start))
		}
		if !n.Degraded {
			t.Error("expected degraded narrative")
		}
		if n.Source != domain.NarrativeSourceLocal || n.Text != n.Summary {
			t.Errorf("expected local fallback, got %+v", n)
		}
		if metrics.degraded != 1 {
			t.Errorf("degraded metrics = %d, want 1", metrics.degraded)
		}
	})

	t.Run("degrades on provider error", func(t *testing.T) {
		gen := &MockTextGenerator{err: errors.New("503 from provider")}
		c := NewNarrativeComposer(gen, NarrativeConfig{}, nil, nil)

		n := c.ComposeAnalysis(ctx, testAnalysis())
		if !n.Degraded {
			t.Error("expected degraded narrative")
		}
	})

	t.Run("degrades on empty completion", func(t *testing.T) {
		gen := &MockTextGenerator{text: "   "}
		c := NewNarrativeComposer(gen, NarrativeConfig{}, nil, nil)

		n := c.ComposeAnalysis(ctx, testAnalysis())
		if !n.Degraded {
			t.Error("expected degraded narrative")
		}
	})
}

func TestSummarizeAnalysis(t *testing.T) {
	t.Run("lists dominant and other segments", func(t *testing.T) {
		got := SummarizeAnalysis(testAnalysis())
		want := "Target customers for a cafe at Campus Gate (university): dominant segment 20s (70%), confidence 0.70. Other segments: 30s 30%."
		if got != want {
			t.Errorf("SummarizeAnalysis() = %q, want %q", got, want)
		}
	})

	t.Run("reports missing demographics", func(t *testing.T) {
		loc := domain.Location{ID: "loc-x"}
		got := SummarizeAnalysis(AnalyzeDemographics("bar", &loc))
		want := "Target customers for a bar at loc-x: no demographic data is available, confidence 0.00."
		if got != want {
			t.Errorf("SummarizeAnalysis() = %q, want %q", got, want)
		}
	})
}

func TestSummarizeRecommendation(t *testing.T) {
	t.Run("empty recommendation", func(t *testing.T) {
		got := SummarizeRecommendation(&domain.Recommendation{
			Category:        "cafe",
			Area:            "harbour",
			Budget:          1_000_000,
			TotalCandidates: 0,
		})
		want := "No locations to recommend for a cafe in harbour (0 candidates, budget 1,000,000)."
		if got != want {
			t.Errorf("SummarizeRecommendation() = %q, want %q", got, want)
		}
	})

	t.Run("ranked items", func(t *testing.T) {
		a := cheapLocation()
		b := expensiveLocation()
		got := SummarizeRecommendation(&domain.Recommendation{
			Category:        "cafe",
			Budget:          50_000_000,
			TargetSegment:   "30s",
			TotalCandidates: 2,
			Items: []domain.RecommendationItem{
				{Rank: 1, ScoredLocation: domain.ScoredLocation{Location: a, Score: 0.75, Explanation: domain.ScoreBreakdown{Feasible: true}}},
				{Rank: 2, ScoredLocation: domain.ScoredLocation{Location: b, Score: 0, Explanation: domain.ScoreBreakdown{EstimatedCost: 90_000_000}}},
			},
		})
		want := "Top 2 of 2 candidate locations for a cafe in all areas with a budget of 50,000,000, targeting the 30s segment:" +
			" 1. Station Corner (downtown) score 0.750;" +
			" 2. Grand Arcade (downtown) score 0.000 (estimated cost 90,000,000 exceeds budget)."
		if got != want {
			t.Errorf("SummarizeRecommendation() =\n%q\nwant\n%q", got, want)
		}
	})
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{50_000_000, "50,000,000"},
		{-1234567, "-1,234,567"},
	}
	for _, tt := range tests {
		if got := formatAmount(tt.in); got != tt.want {
			t.Errorf("formatAmount(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

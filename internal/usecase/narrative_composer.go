package usecase

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sitelens/backend/internal/domain"
)

// DefaultNarrativeTimeout bounds a single text-generation call
const DefaultNarrativeTimeout = 3 * time.Second

const narrativeInstructions = `You are a retail site-selection analyst.
Rewrite the facts below as a short explanation (at most four sentences) for a small business owner.
Do not invent numbers, locations or segments that are not listed.`

// NarrativeConfig holds configuration for the narrative composer
type NarrativeConfig struct {
	Timeout time.Duration
}

// NarrativeComposer turns structured results into readable text.
// A deterministic summary is always produced locally; prose from the text
// generator replaces it only when the call completes in time.
type NarrativeComposer struct {
	generator domain.TextGenerator
	timeout   time.Duration
	logger    *zap.Logger
	metrics   MetricsRecorder
}

// NewNarrativeComposer creates a composer. A nil generator disables enrichment.
func NewNarrativeComposer(
	generator domain.TextGenerator,
	config NarrativeConfig,
	logger *zap.Logger,
	metrics MetricsRecorder,
) *NarrativeComposer {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultNarrativeTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}

	return &NarrativeComposer{
		generator: generator,
		timeout:   timeout,
		logger:    logger,
		metrics:   metrics,
	}
}

// ComposeAnalysis renders the narrative of a target-customer analysis
func (c *NarrativeComposer) ComposeAnalysis(ctx context.Context, analysis *domain.Analysis) domain.Narrative {
	summary := SummarizeAnalysis(analysis)
	return c.enrich(ctx, summary, buildPrompt(summary, analysisFacts(analysis)))
}

// ComposeRecommendation renders the narrative of a location recommendation
func (c *NarrativeComposer) ComposeRecommendation(ctx context.Context, rec *domain.Recommendation) domain.Narrative {
	summary := SummarizeRecommendation(rec)
	return c.enrich(ctx, summary, buildPrompt(summary, recommendationFacts(rec)))
}

type generation struct {
	text string
	err  error
}

// enrich asks the generator for prose and falls back to the summary on any failure
func (c *NarrativeComposer) enrich(ctx context.Context, summary, prompt string) domain.Narrative {
	narrative := domain.Narrative{
		Summary: summary,
		Text:    summary,
		Source:  domain.NarrativeSourceLocal,
	}

	if c.generator == nil {
		c.metrics.ObserveNarrative(narrative.Source, false)
		return narrative
	}

	genCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// Buffered so the goroutine can finish after we stop waiting.
	done := make(chan generation, 1)
	go func() {
		text, err := c.generator.Generate(genCtx, prompt)
		done <- generation{text: text, err: err}
	}()

	var result generation
	select {
	case result = <-done:
	case <-genCtx.Done():
		result.err = genCtx.Err()
	}

	text := strings.TrimSpace(result.text)
	if result.err == nil && text == "" {
		result.err = fmt.Errorf("%w: empty completion", domain.ErrTextGenerationFailure)
	}

	if result.err != nil {
		c.logger.Warn("narrative enrichment failed, using local summary",
			zap.Error(fmt.Errorf("%w: %v", domain.ErrNarrativeDegraded, result.err)),
			zap.Duration("timeout", c.timeout))
		narrative.Degraded = true
		c.metrics.ObserveNarrative(narrative.Source, true)
		return narrative
	}

	narrative.Text = text
	narrative.Source = domain.NarrativeSourceProvider
	c.metrics.ObserveNarrative(narrative.Source, false)
	return narrative
}

// SummarizeAnalysis renders the deterministic summary of an analysis
func SummarizeAnalysis(a *domain.Analysis) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Target customers for a %s at %s", a.Category, locationLabel(&a.Location))
	if len(a.DominantSegments) == 0 {
		b.WriteString(": no demographic data is available, confidence 0.00.")
		return b.String()
	}

	labels := make([]string, 0, len(a.DominantSegments))
	for _, s := range a.DominantSegments {
		labels = append(labels, fmt.Sprintf("%s (%s)", s.Segment, percent(s.Proportion)))
	}
	fmt.Fprintf(&b, ": dominant segment %s, confidence %.2f.", strings.Join(labels, ", "), a.Confidence)

	if len(a.Segments) > len(a.DominantSegments) {
		rest := make([]string, 0, len(a.Segments)-len(a.DominantSegments))
		for _, s := range a.Segments[len(a.DominantSegments):] {
			rest = append(rest, fmt.Sprintf("%s %s", s.Segment, percent(s.Proportion)))
		}
		fmt.Fprintf(&b, " Other segments: %s.", strings.Join(rest, ", "))
	}

	return b.String()
}

// SummarizeRecommendation renders the deterministic summary of a recommendation
func SummarizeRecommendation(r *domain.Recommendation) string {
	var b strings.Builder

	scope := "all areas"
	if r.Area != "" {
		scope = r.Area
	}
	target := "each location's dominant segment"
	if r.TargetSegment != "" {
		target = "the " + r.TargetSegment + " segment"
	}

	if len(r.Items) == 0 {
		fmt.Fprintf(&b, "No locations to recommend for a %s in %s (%d candidates, budget %s).",
			r.Category, scope, r.TotalCandidates, formatAmount(r.Budget))
		return b.String()
	}

	fmt.Fprintf(&b, "Top %d of %d candidate locations for a %s in %s with a budget of %s, targeting %s:",
		len(r.Items), r.TotalCandidates, r.Category, scope, formatAmount(r.Budget), target)

	for _, item := range r.Items {
		fmt.Fprintf(&b, " %d. %s score %.3f", item.Rank, locationLabel(&item.Location), item.Score)
		if !item.Explanation.Feasible {
			fmt.Fprintf(&b, " (estimated cost %s exceeds budget)", formatAmount(item.Explanation.EstimatedCost))
		}
		b.WriteString(";")
	}

	return strings.TrimSuffix(b.String(), ";") + "."
}

func analysisFacts(a *domain.Analysis) []string {
	facts := []string{
		fmt.Sprintf("category: %s", a.Category),
		fmt.Sprintf("location: %s, area %s, foot traffic %.2f, rent index %.2f, %d competitors",
			a.Location.Name, a.Location.Area, a.Location.FootTraffic, a.Location.RentIndex, a.Location.CompetitorCount),
	}
	for _, s := range a.Segments {
		facts = append(facts, fmt.Sprintf("segment %s: %s", s.Segment, percent(s.Proportion)))
	}
	return facts
}

func recommendationFacts(r *domain.Recommendation) []string {
	facts := make([]string, 0, len(r.Items))
	for _, item := range r.Items {
		e := item.Explanation
		facts = append(facts, fmt.Sprintf(
			"rank %d: %s score %.3f (demand %.2f, affordability %.2f, %s share %.2f, estimated cost %s)",
			item.Rank, locationLabel(&item.Location), item.Score,
			e.Demand.Value, e.Affordability.Value, e.TargetSegment, e.Demographic.Value,
			formatAmount(e.EstimatedCost)))
	}
	return facts
}

func buildPrompt(summary string, facts []string) string {
	var b strings.Builder
	b.WriteString(narrativeInstructions)
	b.WriteString("\n\nSummary: ")
	b.WriteString(summary)
	b.WriteString("\nFacts:\n")
	for _, f := range facts {
		b.WriteString("- ")
		b.WriteString(f)
		b.WriteString("\n")
	}
	return b.String()
}

func locationLabel(l *domain.Location) string {
	name := l.Name
	if name == "" {
		name = l.ID
	}
	if l.Area == "" {
		return name
	}
	return fmt.Sprintf("%s (%s)", name, l.Area)
}

func percent(p float64) string {
	return strconv.FormatFloat(p*100, 'f', 0, 64) + "%"
}

// formatAmount renders a monetary amount with thousands separators, e.g. 50,000,000
func formatAmount(v float64) string {
	digits := strconv.FormatFloat(v, 'f', 0, 64)
	sign := ""
	if strings.HasPrefix(digits, "-") {
		sign, digits = "-", digits[1:]
	}

	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	return sign + b.String()
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/sitelens/backend/internal/domain"
)

// Operation names used for metrics and logs
const (
	OperationTargetCustomer  = "target_customer"
	OperationOptimalLocation = "optimal_location"
)

// DominanceMargin is how close to the top share a segment must be to count as dominant
const DominanceMargin = 0.05

// Defaults for InsightsServiceConfig
const (
	DefaultLocationCacheTTL   = 5 * time.Minute
	DefaultScoringConcurrency = 8
	DefaultFetchTimeout       = 5 * time.Second
)

// InsightsServiceConfig holds configuration for the insights service
type InsightsServiceConfig struct {
	CacheTTL           time.Duration
	ScoringConcurrency int
	// FetchTimeout bounds each dataset fetch attempt
	FetchTimeout time.Duration
}

// CategoryInfo describes a registered category and its demand weights
type CategoryInfo struct {
	Category domain.Category `json:"category"`
	Profile  CategoryProfile `json:"profile"`
}

// InsightsService answers target-customer and optimal-location queries
type InsightsService struct {
	dataset     domain.LocationDataset
	cache       domain.CacheRepository
	scoring     *ScoringEngine
	ranker      *Ranker
	narrative   *NarrativeComposer
	cacheTTL     time.Duration
	concurrency  int
	fetchTimeout time.Duration
	fetches      singleflight.Group
	logger      *zap.Logger
	metrics     MetricsRecorder
}

// NewInsightsService creates a new insights service with dependencies.
// cache may be nil, which disables the read-through location cache.
// A nil narrative composer renders local summaries only.
func NewInsightsService(
	dataset domain.LocationDataset,
	cache domain.CacheRepository,
	scoring *ScoringEngine,
	narrative *NarrativeComposer,
	config InsightsServiceConfig,
	logger *zap.Logger,
	metrics MetricsRecorder,
) *InsightsService {
	cacheTTL := config.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = DefaultLocationCacheTTL
	}

	concurrency := config.ScoringConcurrency
	if concurrency <= 0 {
		concurrency = DefaultScoringConcurrency
	}

	fetchTimeout := config.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = DefaultFetchTimeout
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if narrative == nil {
		narrative = NewNarrativeComposer(nil, NarrativeConfig{}, logger, metrics)
	}

	return &InsightsService{
		dataset:     dataset,
		cache:       cache,
		scoring:     scoring,
		ranker:      NewRanker(),
		narrative:   narrative,
		cacheTTL:     cacheTTL,
		concurrency:  concurrency,
		fetchTimeout: fetchTimeout,
		logger:       logger,
		metrics:      metrics,
	}
}

// Categories lists the registered categories with their demand profiles
func (s *InsightsService) Categories() []CategoryInfo {
	demand := s.scoring.demand
	categories := demand.Categories()

	infos := make([]CategoryInfo, 0, len(categories))
	for _, c := range categories {
		profile, _ := demand.Profile(c)
		infos = append(infos, CategoryInfo{Category: c, Profile: profile})
	}
	return infos
}

// ScoreWeights returns the weights used to combine score terms
func (s *InsightsService) ScoreWeights() ScoreWeights {
	return s.scoring.Weights()
}

// TargetCustomerAnalysis profiles the likely customers of a category at a location.
// Flow: validate category -> fetch location -> analyse demographic mix -> compose narrative
func (s *InsightsService) TargetCustomerAnalysis(
	ctx context.Context,
	category domain.Category,
	locationID string,
) (*domain.Analysis, error) {
	start := time.Now()
	analysis, err := s.targetCustomerAnalysis(ctx, category, locationID)
	s.metrics.ObserveInsight(OperationTargetCustomer, outcomeOf(err), time.Since(start))
	return analysis, err
}

func (s *InsightsService) targetCustomerAnalysis(
	ctx context.Context,
	category domain.Category,
	locationID string,
) (*domain.Analysis, error) {
	category = NormalizeCategory(category)
	locationID = strings.TrimSpace(locationID)
	if locationID == "" {
		return nil, fmt.Errorf("%w: location id is required", domain.ErrInvalidRequest)
	}
	if !s.scoring.demand.Has(category) {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownCategory, category)
	}

	location, err := s.fetchLocation(ctx, locationID)
	if err != nil {
		return nil, err
	}

	analysis := AnalyzeDemographics(category, location)
	analysis.Narrative = s.narrative.ComposeAnalysis(ctx, analysis)

	s.logger.Debug("target customer analysis complete",
		zap.String("category", string(category)),
		zap.String("location_id", locationID),
		zap.Float64("confidence", analysis.Confidence),
		zap.Bool("narrative_degraded", analysis.Narrative.Degraded))

	return analysis, nil
}

// OptimalLocationRecommendation ranks candidate locations for a new business.
// Flow: validate -> fetch candidates (cached) -> score in parallel -> rank -> compose narrative
func (s *InsightsService) OptimalLocationRecommendation(
	ctx context.Context,
	request domain.RecommendationRequest,
) (*domain.Recommendation, error) {
	start := time.Now()
	rec, err := s.optimalLocationRecommendation(ctx, request)
	s.metrics.ObserveInsight(OperationOptimalLocation, outcomeOf(err), time.Since(start))
	return rec, err
}

func (s *InsightsService) optimalLocationRecommendation(
	ctx context.Context,
	request domain.RecommendationRequest,
) (*domain.Recommendation, error) {
	// NaN fails every comparison
	if !(request.Budget > 0) {
		return nil, fmt.Errorf("%w: got %v", domain.ErrInvalidBudget, request.Budget)
	}

	request.Category = NormalizeCategory(request.Category)
	request.Area = NormalizeArea(request.Area)
	request.Demographic = NormalizeSegment(request.Demographic)

	if !s.scoring.demand.Has(request.Category) {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownCategory, request.Category)
	}

	candidates, err := s.candidates(ctx, request.Area, request.Category)
	if err != nil {
		return nil, err
	}

	scored, err := s.scoreAll(ctx, request, candidates)
	if err != nil {
		return nil, err
	}

	ranked := s.ranker.Rank(scored, request.TopK)

	rec := &domain.Recommendation{
		Category:        request.Category,
		Area:            request.Area,
		Budget:          request.Budget,
		TargetSegment:   request.Demographic,
		TopK:            request.TopK,
		TotalCandidates: len(candidates),
		Items:           make([]domain.RecommendationItem, 0, len(ranked)),
	}
	for i, sl := range ranked {
		rec.Items = append(rec.Items, domain.RecommendationItem{Rank: i + 1, ScoredLocation: sl})
	}

	rec.Narrative = s.narrative.ComposeRecommendation(ctx, rec)

	s.logger.Debug("optimal location recommendation complete",
		zap.String("category", string(request.Category)),
		zap.String("area", request.Area),
		zap.Int("candidates", len(candidates)),
		zap.Int("returned", len(rec.Items)),
		zap.Bool("narrative_degraded", rec.Narrative.Degraded))

	return rec, nil
}

// AnalyzeDemographics derives the target-customer profile from a location's mix.
// Confidence is the largest segment share, so it never decreases as the mix concentrates.
func AnalyzeDemographics(category domain.Category, location *domain.Location) *domain.Analysis {
	segments := location.Demographics.Sorted()
	confidence := clamp01(location.Demographics.MaxShare())

	dominant := make([]domain.SegmentShare, 0, 1)
	for _, s := range segments {
		if s.Proportion <= 0 || s.Proportion < confidence-DominanceMargin {
			break
		}
		dominant = append(dominant, s)
	}

	return &domain.Analysis{
		Category:         category,
		Location:         *location,
		DominantSegments: dominant,
		Segments:         segments,
		Confidence:       confidence,
	}
}

// scoreAll scores every candidate concurrently; ranking waits for all of them
func (s *InsightsService) scoreAll(
	ctx context.Context,
	request domain.RecommendationRequest,
	candidates []domain.Location,
) ([]domain.ScoredLocation, error) {
	scored := make([]domain.ScoredLocation, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			location := candidates[i]
			score, breakdown, err := s.scoring.Score(request.Category, &location, request.Budget, request.Demographic)
			if err != nil {
				return err
			}
			scored[i] = domain.ScoredLocation{
				Location:    location,
				Score:       score,
				Explanation: breakdown,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scored, nil
}

// candidates returns the locations of an area for a category through the read-through cache.
// Concurrent misses for the same key share one dataset fetch.
func (s *InsightsService) candidates(ctx context.Context, area string, category domain.Category) ([]domain.Location, error) {
	key := locationsCacheKey(category, area)

	if s.cache != nil {
		var cached []domain.Location
		err := s.cache.Get(ctx, key, &cached)
		if err == nil {
			s.metrics.ObserveLocationCache(true)
			return cached, nil
		}
		if !errors.Is(err, domain.ErrCacheMiss) {
			s.logger.Warn("location cache read failed", zap.String("key", key), zap.Error(err))
		}
	}
	s.metrics.ObserveLocationCache(false)

	// The shared fetch ignores the cancellation of whichever caller started it;
	// each caller stops waiting when its own ctx ends.
	shared := context.WithoutCancel(ctx)
	ch := s.fetches.DoChan(key, func() (interface{}, error) {
		var locations []domain.Location
		err := s.withRefetch(shared, "fetch_locations", func(attemptCtx context.Context) error {
			var fetchErr error
			locations, fetchErr = s.dataset.FetchLocations(attemptCtx, area, category)
			return fetchErr
		})
		if err != nil {
			return nil, err
		}
		if locations == nil {
			locations = []domain.Location{}
		}

		if s.cache != nil {
			// Log but don't fail if caching fails
			if err := s.cache.Set(shared, key, locations, s.cacheTTL); err != nil {
				s.logger.Warn("location cache write failed", zap.String("key", key), zap.Error(err))
			}
		}
		return locations, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]domain.Location), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("fetch locations: %w", ctx.Err())
	}
}

// fetchLocation resolves a single location, mapping absence to ErrLocationNotFound
func (s *InsightsService) fetchLocation(ctx context.Context, id string) (*domain.Location, error) {
	var location *domain.Location
	err := s.withRefetch(ctx, "fetch_location", func(attemptCtx context.Context) error {
		var fetchErr error
		location, fetchErr = s.dataset.FetchLocation(attemptCtx, id)
		return fetchErr
	})
	if err != nil {
		return nil, err
	}
	if location == nil {
		return nil, fmt.Errorf("%w: %q", domain.ErrLocationNotFound, id)
	}
	return location, nil
}

// withRefetch runs a dataset fetch and repeats it once immediately on failure.
// Each attempt is bounded by the fetch timeout. A second failure is reported as
// ErrDataUnavailable; not-found is passed through untouched. When ctx itself is
// done its error is returned instead, since the dataset did not fail.
func (s *InsightsService) withRefetch(ctx context.Context, op string, fetch func(ctx context.Context) error) error {
	attempt := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
		defer cancel()
		return fetch(attemptCtx)
	}

	err := attempt()
	if err == nil || errors.Is(err, domain.ErrLocationNotFound) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", op, ctxErr)
	}

	s.metrics.ObserveDatasetError()
	s.logger.Warn("dataset fetch failed, re-fetching once", zap.String("op", op), zap.Error(err))
	err = attempt()
	if err == nil || errors.Is(err, domain.ErrLocationNotFound) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", op, ctxErr)
	}
	s.metrics.ObserveDatasetError()

	s.logger.Error("dataset fetch failed", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("%w: %v", domain.ErrDataUnavailable, err)
}

// locationsCacheKey creates the cache key of a candidate list.
// Format: "locations:{category}:{area}"
func locationsCacheKey(category domain.Category, area string) string {
	return fmt.Sprintf("locations:%s:%s", category, area)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case domain.IsClientError(err):
		return OutcomeClientError
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	default:
		return OutcomeUnavailable
	}
}

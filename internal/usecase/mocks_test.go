package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sitelens/backend/internal/domain"
)

// MockCacheRepository is a mock implementation of domain.CacheRepository
type MockCacheRepository struct {
	mu        sync.Mutex
	data      map[string][]byte
	getError  error
	setError  error
	getCalled bool
	setCalled bool
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{
		data: make(map[string][]byte),
	}
}

func (m *MockCacheRepository) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalled = true
	if m.getError != nil {
		return m.getError
	}
	if value, ok := m.data[key]; ok {
		return json.Unmarshal(value, dest)
	}
	return domain.ErrCacheMiss
}

func (m *MockCacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCalled = true
	if m.setError != nil {
		return m.setError
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = data
	return nil
}

func (m *MockCacheRepository) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MockCacheRepository) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok, nil
}

// MockLocationDataset is a mock implementation of domain.LocationDataset
type MockLocationDataset struct {
	locations []domain.Location
	errs      []error // returned in order by successive calls, then nil
	listCalls atomic.Int32
	getCalls  atomic.Int32
	mu        sync.Mutex

	// When gate is set, fetches block until it is closed or their context ends.
	// entered receives one value per fetch that reaches the gate.
	gate    chan struct{}
	entered chan struct{}
}

func NewMockLocationDataset(locations ...domain.Location) *MockLocationDataset {
	return &MockLocationDataset{locations: locations}
}

func (m *MockLocationDataset) nextErr() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.errs) == 0 {
		return nil
	}
	err := m.errs[0]
	m.errs = m.errs[1:]
	return err
}

func (m *MockLocationDataset) wait(ctx context.Context) error {
	if m.entered != nil {
		m.entered <- struct{}{}
	}
	if m.gate == nil {
		return nil
	}
	select {
	case <-m.gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *MockLocationDataset) FetchLocations(ctx context.Context, area string, category domain.Category) ([]domain.Location, error) {
	m.listCalls.Add(1)
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	if err := m.nextErr(); err != nil {
		return nil, err
	}
	result := []domain.Location{}
	for _, l := range m.locations {
		if area != "" && l.Area != area {
			continue
		}
		if !l.SuitableFor(category) {
			continue
		}
		result = append(result, l)
	}
	return result, nil
}

func (m *MockLocationDataset) FetchLocation(ctx context.Context, id string) (*domain.Location, error) {
	m.getCalls.Add(1)
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	if err := m.nextErr(); err != nil {
		return nil, err
	}
	for _, l := range m.locations {
		if l.ID == id {
			loc := l
			return &loc, nil
		}
	}
	return nil, domain.ErrLocationNotFound
}

// MockTextGenerator is a mock implementation of domain.TextGenerator
type MockTextGenerator struct {
	text    string
	err     error
	delay   time.Duration
	prompts atomic.Int32
}

func (m *MockTextGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	m.prompts.Add(1)
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if m.err != nil {
		return "", m.err
	}
	return m.text, nil
}

// recordingMetrics captures metrics calls
type recordingMetrics struct {
	mu            sync.Mutex
	insights      []string
	narratives    []string
	degraded      int
	cacheHits     int
	cacheMisses   int
	datasetErrors int
}

func (r *recordingMetrics) ObserveInsight(operation, outcome string, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.insights = append(r.insights, operation+":"+outcome)
}

func (r *recordingMetrics) ObserveNarrative(source string, degraded bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.narratives = append(r.narratives, source)
	if degraded {
		r.degraded++
	}
}

func (r *recordingMetrics) ObserveLocationCache(hit bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hit {
		r.cacheHits++
	} else {
		r.cacheMisses++
	}
}

func (r *recordingMetrics) ObserveDatasetError() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.datasetErrors++
}

// Test fixtures

func cheapLocation() domain.Location {
	return domain.Location{
		ID:              "loc-a",
		Name:            "Station Corner",
		Area:            "downtown",
		FootTraffic:     0.8,
		RentIndex:       0.2,
		CompetitorCount: 2,
		Demographics:    domain.DemographicMix{"20s": 0.3, "30s": 0.5, "40s": 0.2},
	}
}

func expensiveLocation() domain.Location {
	return domain.Location{
		ID:              "loc-b",
		Name:            "Grand Arcade",
		Area:            "downtown",
		FootTraffic:     1.0,
		RentIndex:       0.9,
		CompetitorCount: 0,
		Demographics:    domain.DemographicMix{"30s": 0.6, "40s": 0.4},
	}
}

func youngLocation() domain.Location {
	return domain.Location{
		ID:              "loc-c",
		Name:            "Campus Gate",
		Area:            "university",
		FootTraffic:     0.7,
		RentIndex:       0.3,
		CompetitorCount: 5,
		Demographics:    domain.DemographicMix{"20s": 0.7, "30s": 0.3},
	}
}

func newTestScoringEngine() *ScoringEngine {
	demand, err := NewDemandModel(nil)
	if err != nil {
		panic(err)
	}
	engine, err := NewScoringEngine(demand, ScoringConfig{})
	if err != nil {
		panic(err)
	}
	return engine
}

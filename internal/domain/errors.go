package domain

import "errors"

var (
	// ErrUnknownCategory is returned when no demand profile is registered for a category
	ErrUnknownCategory = errors.New("unknown business category")

	// ErrLocationNotFound is returned when the requested location id is absent from the dataset
	ErrLocationNotFound = errors.New("location not found")

	// ErrInvalidBudget is returned when the budget is zero or negative
	ErrInvalidBudget = errors.New("budget must be positive")

	// ErrInfeasibleBudget is the scoring engine's name for ErrInvalidBudget.
	ErrInfeasibleBudget = ErrInvalidBudget

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrDataUnavailable is returned when the location dataset cannot be read.
	// Callers may retry with backoff.
	ErrDataUnavailable = errors.New("location data unavailable")

	// ErrNarrativeDegraded marks a result whose narrative fell back to the local summary.
	// It annotates successful results and is never returned as a request failure.
	ErrNarrativeDegraded = errors.New("narrative enrichment unavailable")

	// ErrTextGenerationFailure is returned when the text-generation provider request fails
	ErrTextGenerationFailure = errors.New("text generation request failed")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheUnavailable is returned when cache service is unavailable
	ErrCacheUnavailable = errors.New("cache service unavailable")

	// ErrInvalidLocation is returned when a location record violates the data model
	ErrInvalidLocation = errors.New("invalid location record")
)

// IsClientError reports whether err is caused by caller input and must not be retried.
func IsClientError(err error) bool {
	return errors.Is(err, ErrUnknownCategory) ||
		errors.Is(err, ErrLocationNotFound) ||
		errors.Is(err, ErrInvalidBudget) ||
		errors.Is(err, ErrInvalidRequest)
}

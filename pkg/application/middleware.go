package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pericarp/es/pkg/domain"
)

// Validator is implemented by commands/queries with self-contained
// validation logic; ValidationMiddleware calls it before the wrapped
// handler runs.
type Validator interface {
	Validate() error
}

// MetricsCollector is the narrow interface MetricsMiddleware depends on,
// letting pkg/infrastructure supply a Prometheus-backed implementation
// without this package importing client_golang directly.
type MetricsCollector interface {
	RecordRequestDuration(requestType string, duration time.Duration)
	IncrementRequestErrors(requestType string)
}

// typeNameOf extracts a stable name for logging/metrics/caching.
func typeNameOf(v any) string {
	return fmt.Sprintf("%T", v)
}

// LoggingMiddleware logs entry, duration, and outcome for every request
// that passes through it. Entry is logged at Info when the payload carries a
// TraceID or UserID and at Debug otherwise; completion is logged at Debug on
// success and at Error on failure.
func LoggingMiddleware[Req any, Res any]() Middleware[Req, Res] {
	return func(next Handler[Req, Res]) Handler[Req, Res] {
		return func(ctx context.Context, log domain.Logger, p Payload[Req]) (Response[Res], error) {
			start := time.Now()
			requestType := requestTypeOf(p.Data)

			if p.TraceID != "" || p.UserID != "" {
				log.Info("processing request", "type", requestType, "traceId", p.TraceID, "userId", p.UserID)
			} else {
				log.Debug("processing request", "type", requestType)
			}

			response, err := next(ctx, log, p)

			duration := time.Since(start)
			if err != nil {
				log.Error("request failed", "type", requestType, "duration", duration, "error", err, "traceId", p.TraceID)
			} else {
				log.Debug("request completed", "type", requestType, "duration", duration, "traceId", p.TraceID)
			}

			return response, err
		}
	}
}

// ValidationMiddleware calls Validate() on any request that implements
// Validator, short-circuiting with an InvalidValue error on failure.
func ValidationMiddleware[Req any, Res any]() Middleware[Req, Res] {
	return func(next Handler[Req, Res]) Handler[Req, Res] {
		return func(ctx context.Context, log domain.Logger, p Payload[Req]) (Response[Res], error) {
			validator, needsValidation := any(p.Data).(Validator)
			if !needsValidation {
				return next(ctx, log, p)
			}

			if err := validator.Validate(); err != nil {
				requestType := requestTypeOf(p.Data)
				log.Warn("request validation failed", "type", requestType, "error", err, "traceId", p.TraceID)

				validationErr := domain.NewInvalidValue("", err.Error())
				var zero Res
				return Response[Res]{
					Data:     zero,
					Error:    validationErr,
					Metadata: map[string]any{"validation_failed": true},
				}, validationErr
			}

			return next(ctx, log, p)
		}
	}
}

// MetricsMiddleware records request duration and error counts per request
// type against the given collector.
func MetricsMiddleware[Req any, Res any](metrics MetricsCollector) Middleware[Req, Res] {
	return func(next Handler[Req, Res]) Handler[Req, Res] {
		return func(ctx context.Context, log domain.Logger, p Payload[Req]) (Response[Res], error) {
			start := time.Now()
			requestType := requestTypeOf(p.Data)

			response, err := next(ctx, log, p)
			duration := time.Since(start)

			metrics.RecordRequestDuration(requestType, duration)
			if err != nil {
				metrics.IncrementRequestErrors(requestType)
				log.Error("request failed", "type", requestType, "duration", duration, "error", err, "traceId", p.TraceID)
			}

			return response, err
		}
	}
}

// ErrorHandlingMiddleware recovers a panicking handler into a logged
// failure and normalizes any non-*domain.Error into one, so every response
// leaving the bus carries the single unified error type.
func ErrorHandlingMiddleware[Req any, Res any]() Middleware[Req, Res] {
	return func(next Handler[Req, Res]) Handler[Req, Res] {
		return func(ctx context.Context, log domain.Logger, p Payload[Req]) (response Response[Res], err error) {
			requestType := requestTypeOf(p.Data)

			defer func() {
				if r := recover(); r != nil {
					log.Error("handler panicked", "type", requestType, "panic", r, "traceId", p.TraceID)
					wrapped := domain.NewInternal("HANDLER_PANIC", fmt.Sprintf("handler panicked: %v", r), nil)
					response.Error = wrapped
					err = wrapped
				}
			}()

			response, err = next(ctx, log, p)
			if err == nil {
				return response, nil
			}

			if _, ok := err.(*domain.Error); ok {
				return response, err
			}

			log.Error("wrapping unexpected error", "type", requestType, "error", err, "traceId", p.TraceID)
			wrapped := domain.NewInternal("REQUEST_ERROR", "request execution failed", err)
			response.Error = wrapped
			return response, wrapped
		}
	}
}

// CacheProvider is the narrow interface CachingMiddleware depends on,
// letting pkg/infrastructure supply a go-cache-backed implementation.
type CacheProvider interface {
	Get(key string) (any, bool)
	Set(key string, value any)
	Delete(key string)
}

// CachingMiddleware caches query results keyed by query type and content.
// It only caches requests implementing Query; commands always pass through.
func CachingMiddleware[Req any, Res any](cache CacheProvider) Middleware[Req, Res] {
	return func(next Handler[Req, Res]) Handler[Req, Res] {
		return func(ctx context.Context, log domain.Logger, p Payload[Req]) (Response[Res], error) {
			query, ok := any(p.Data).(Query)
			if !ok {
				return next(ctx, log, p)
			}

			cacheKey := fmt.Sprintf("%s_%+v", query.QueryType(), p.Data)
			if cached, found := cache.Get(cacheKey); found {
				if cachedResponse, ok := cached.(Response[Res]); ok {
					log.Debug("query result found in cache", "cache_key", cacheKey, "traceId", p.TraceID)
					return cachedResponse, nil
				}
			}

			response, err := next(ctx, log, p)
			if err != nil {
				return response, err
			}

			cache.Set(cacheKey, response)
			log.Debug("query result cached", "cache_key", cacheKey, "traceId", p.TraceID)
			return response, nil
		}
	}
}

// InMemoryMetricsCollector is a dependency-free MetricsCollector used by
// tests and the demo wiring; production wiring uses the Prometheus-backed
// collector in pkg/infrastructure.
type InMemoryMetricsCollector struct {
	mu               sync.RWMutex
	requestDurations map[string][]time.Duration
	requestErrors    map[string]int64
	maxDurations     int
}

// NewInMemoryMetricsCollector constructs a collector keeping at most the
// last 1000 durations per request type.
func NewInMemoryMetricsCollector() *InMemoryMetricsCollector {
	return &InMemoryMetricsCollector{
		requestDurations: make(map[string][]time.Duration),
		requestErrors:    make(map[string]int64),
		maxDurations:     1000,
	}
}

// RecordRequestDuration appends duration to requestType's circular buffer.
func (m *InMemoryMetricsCollector) RecordRequestDuration(requestType string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	durations := m.requestDurations[requestType]
	if len(durations) >= m.maxDurations {
		copy(durations, durations[1:])
		durations = durations[:len(durations)-1]
	}
	m.requestDurations[requestType] = append(durations, duration)
}

// IncrementRequestErrors increments requestType's error count.
func (m *InMemoryMetricsCollector) IncrementRequestErrors(requestType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestErrors[requestType]++
}

// GetMetrics returns copies of the collected durations and error counts.
func (m *InMemoryMetricsCollector) GetMetrics() (map[string][]time.Duration, map[string]int64) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	durations := make(map[string][]time.Duration, len(m.requestDurations))
	for k, v := range m.requestDurations {
		durCopy := make([]time.Duration, len(v))
		copy(durCopy, v)
		durations[k] = durCopy
	}
	errs := make(map[string]int64, len(m.requestErrors))
	for k, v := range m.requestErrors {
		errs[k] = v
	}
	return durations, errs
}

// InMemoryCache is a dependency-free CacheProvider used by tests and the
// demo wiring; production wiring uses the go-cache-backed provider in
// pkg/infrastructure.
type InMemoryCache struct {
	mu   sync.RWMutex
	data map[string]any
}

// NewInMemoryCache constructs an empty cache.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{data: make(map[string]any)}
}

// Get retrieves a value from the cache.
func (c *InMemoryCache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, exists := c.data[key]
	return value, exists
}

// Set stores a value in the cache.
func (c *InMemoryCache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
}

// Delete removes a value from the cache.
func (c *InMemoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

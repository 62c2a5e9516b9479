package runner

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/quantfabric/barforge/internal/persistence"
	"github.com/quantfabric/barforge/internal/series"
)

// guardedSource wraps the observation source with a circuit breaker and a
// read rate limit so a struggling source degrades the run instead of
// hammering the database.
type guardedSource struct {
	inner   persistence.ObservationSource
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

// guardSource builds the guarded source. rps == 0 disables rate limiting.
func guardSource(inner persistence.ObservationSource, rps float64) persistence.ObservationSource {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "observation-source",
		MaxRequests: 2,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return &guardedSource{inner: inner, breaker: cb, limiter: limiter}
}

func (g *guardedSource) wait(ctx context.Context) error {
	if g.limiter == nil {
		return nil
	}
	return g.limiter.Wait(ctx)
}

func (g *guardedSource) Assets(ctx context.Context) ([]string, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	res, err := g.breaker.Execute(func() (interface{}, error) {
		return g.inner.Assets(ctx)
	})
	if err != nil {
		return nil, err
	}
	return res.([]string), nil
}

func (g *guardedSource) Range(ctx context.Context, assetID string) (persistence.SourceRange, error) {
	if err := g.wait(ctx); err != nil {
		return persistence.SourceRange{}, err
	}
	res, err := g.breaker.Execute(func() (interface{}, error) {
		return g.inner.Range(ctx, assetID)
	})
	if err != nil {
		return persistence.SourceRange{}, err
	}
	return res.(persistence.SourceRange), nil
}

func (g *guardedSource) Fetch(ctx context.Context, assetID string, from, to time.Time) ([]series.Observation, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	res, err := g.breaker.Execute(func() (interface{}, error) {
		return g.inner.Fetch(ctx, assetID, from, to)
	})
	if err != nil {
		return nil, err
	}
	return res.([]series.Observation), nil
}

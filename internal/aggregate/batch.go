package aggregate

import (
	"context"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/RobiinJonsson/marketdata-dashboard-go/internal/domain"
)

// ProfileResult is the outcome of one lookup in a batch.
type ProfileResult struct {
	ISIN    string                    `json:"isin"`
	Profile *domain.AggregatedProfile `json:"profile,omitempty"`
	Err     error                     `json:"-"`
}

// ProfileMany runs Profile for every isin with bounded concurrency. Results keep input order
// and each carries its own outcome.
func (a *Aggregator) ProfileMany(ctx context.Context, isins []string) []ProfileResult {
	results := make([]ProfileResult, len(isins))
	if len(isins) == 0 {
		return results
	}

	p := pool.New().WithMaxGoroutines(a.concurrency)
	for idx, isin := range isins {
		idx, isin := idx, isin
		p.Go(func() {
			profile, err := a.Profile(ctx, isin)
			results[idx] = ProfileResult{ISIN: isin, Profile: profile, Err: err}
		})
	}
	p.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	a.logger.Info("Batch profile lookup finished",
		zap.Int("requested", len(isins)),
		zap.Int("failed", failed),
	)

	return results
}

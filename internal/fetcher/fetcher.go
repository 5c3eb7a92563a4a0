// Package fetcher defines the value-fetching boundary the evaluation
// engine consumes. Fetchers are idempotent and side-effect-free from the
// pipeline's perspective.
package fetcher

import (
	"context"

	"github.com/foliowatch/foliowatch-go/internal/errors"
)

// ErrNoData indicates the provider has no current value for the subject.
// The affected rule is skipped for the tick; this is not a rule error.
var ErrNoData = errors.NewStd("no data for subject")

// ValueFetcher returns the current numeric value for a rule's subject.
type ValueFetcher interface {
	Fetch(ctx context.Context, ruleType, subject string) (float64, error)
}

// Func adapts a plain function to the ValueFetcher interface.
type Func func(ctx context.Context, ruleType, subject string) (float64, error)

// Fetch implements ValueFetcher.
func (f Func) Fetch(ctx context.Context, ruleType, subject string) (float64, error) {
	return f(ctx, ruleType, subject)
}

package dynamic

import (
	"context"
	"errors"
	"log/slog"

	serrors "github.com/Aman-CERP/settingsearch/internal/errors"
	"github.com/Aman-CERP/settingsearch/internal/search"
)

// Guarded wraps a Searcher with a circuit breaker. While the circuit is
// open the wrapped searcher is not called and no results are returned.
type Guarded struct {
	next    Searcher
	breaker *serrors.CircuitBreaker
}

// NewGuarded wraps s.
func NewGuarded(s Searcher, opts ...serrors.CircuitBreakerOption) *Guarded {
	return &Guarded{
		next:    s,
		breaker: serrors.NewCircuitBreaker(s.Name(), opts...),
	}
}

func (g *Guarded) Name() string { return g.next.Name() }

// State returns the breaker state.
func (g *Guarded) State() serrors.State { return g.breaker.State() }

// Search calls the wrapped searcher through the breaker. Context errors
// do not count as failures of the source.
func (g *Guarded) Search(ctx context.Context, query string) ([]search.Result, error) {
	results, err := serrors.CircuitExecute(g.breaker, func() ([]search.Result, error) {
		r, err := g.next.Search(ctx, query)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil
		}
		return r, err
	})
	if errors.Is(err, serrors.ErrCircuitOpen) {
		slog.Debug("dynamic_source_circuit_open", slog.String("source", g.Name()))
		return nil, nil
	}
	if err != nil {
		return nil, serrors.SourceError(g.Name(), err)
	}
	return results, nil
}

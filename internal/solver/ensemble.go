package solver

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/flexsim/internal/collider"
)

// Ensemble steps independent solvers concurrently, one goroutine each.
type Ensemble struct {
	solvers []*Solver
	limit   int
}

// NewEnsemble groups solvers. Solvers must not share particle data.
func NewEnsemble(solvers ...*Solver) *Ensemble {
	return &Ensemble{solvers: solvers}
}

// SetLimit caps how many solvers step at once. Zero or less means no cap.
func (e *Ensemble) SetLimit(n int) { e.limit = n }

func (e *Ensemble) Len() int { return len(e.solvers) }

// Run advances every solver by steps fixed steps. The first error cancels
// the remaining solvers and is returned.
func (e *Ensemble) Run(ctx context.Context, steps int, stepDt float32, substeps int) error {
	// shared worlds sync lazily; do it once before the goroutines read them
	seen := make(map[*collider.World]bool)
	for _, s := range e.solvers {
		if w := s.World(); !seen[w] {
			w.UpdateBounds()
			seen[w] = true
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	if e.limit > 0 {
		g.SetLimit(e.limit)
	}
	for idx, s := range e.solvers {
		g.Go(func() error {
			for i := 0; i < steps; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := s.Solve(stepDt, substeps); err != nil {
					return fmt.Errorf("solver %d step %d: %w", idx, i, err)
				}
			}
			return nil
		})
	}
	return g.Wait()
}

package coordenv

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/golang/geo/r3"
	"golang.org/x/sync/errgroup"
)

// Site is one central atom and its neighbors.
type Site struct {
	ID        string
	Central   r3.Vector
	Neighbors []r3.Vector
	Symbols   []string
	// Group names a set of symmetry-equivalent sites; only the first member is computed.
	Group string
}

// SiteReport is the outcome for one site.
type SiteReport struct {
	ID             string
	Representative string // set when copied from an equivalent site
	Environments   []NeighborSetResult
	Skipped        bool
	Duration       time.Duration
	Err            error // invalid site input; catalog errors abort the batch instead
}

// BatchOptions bounds a batch run.
type BatchOptions struct {
	Workers int
	// Budget is a soft wall-clock limit. Sites not started in time are skipped,
	// never cut short. Zero means unlimited.
	Budget time.Duration
}

// budgetTracker decides whether another site fits in the remaining budget.
type budgetTracker struct {
	mu      sync.Mutex
	now     func() time.Time
	start   time.Time
	budget  time.Duration
	slowest time.Duration
}

func (b *budgetTracker) allow() bool {
	if b.budget <= 0 {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	left := b.budget - b.now().Sub(b.start)
	return left > 0 && left >= 2*b.slowest
}

func (b *budgetTracker) record(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if d > b.slowest {
		b.slowest = d
	}
}

// ComputeSites evaluates sites in parallel. Each site gets its own query state;
// with a fixed RandomSeed site i is seeded with RandomSeed+i. A catalog error
// stops the batch and is returned with the reports gathered so far.
func (f *LocalGeometryFinder) ComputeSites(ctx context.Context, sites []Site, opts BatchOptions) ([]SiteReport, error) {
	reports := make([]SiteReport, len(sites))
	representative := make([]int, len(sites))
	firstOfGroup := make(map[string]int)
	for i, s := range sites {
		reports[i].ID = s.ID
		representative[i] = i
		if s.Group == "" {
			continue
		}
		if first, ok := firstOfGroup[s.Group]; ok {
			representative[i] = first
		} else {
			firstOfGroup[s.Group] = i
		}
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	tracker := &budgetTracker{now: time.Now, start: time.Now(), budget: opts.Budget}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range sites {
		if representative[i] != i {
			continue
		}
		g.Go(func() error {
			if gctx.Err() != nil || !tracker.allow() {
				reports[i].Skipped = true
				return nil
			}
			seed := f.opts.RandomSeed
			if seed != 0 {
				seed += int64(i)
			}
			start := time.Now()
			envs, err := f.computeEnvironments(sites[i].Neighbors, sites[i].Central, sites[i].Symbols, seed)
			if errors.Is(err, ErrUnknownGeometry) || errors.Is(err, ErrInvalidAlgorithm) {
				return err
			}
			reports[i].Err = err
			reports[i].Environments = envs
			reports[i].Duration = time.Since(start)
			tracker.record(reports[i].Duration)
			return nil
		})
	}
	err := g.Wait()

	skipped := 0
	for i := range sites {
		if rep := representative[i]; rep != i {
			reports[i].Representative = sites[rep].ID
			reports[i].Environments = reports[rep].Environments
			reports[i].Skipped = reports[rep].Skipped
			reports[i].Err = reports[rep].Err
		}
		if reports[i].Skipped {
			skipped++
		}
	}
	if skipped > 0 {
		log.Printf("[BATCH] skipped %d of %d sites (budget %v)", skipped, len(sites), opts.Budget)
	}
	return reports, err
}

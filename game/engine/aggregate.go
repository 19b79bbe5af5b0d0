package engine

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// BoundaryEntries enumerates every edge cell with its inward heading:
// rightward from the left edge and leftward from the right edge for each row,
// downward from the top edge and upward from the bottom edge for each column.
// The result has 2H+2W entries.
func BoundaryEntries(m *TileMap) []BeamState {
	entries := make([]BeamState, 0, 2*m.height+2*m.width)
	for y := 1; y <= m.height; y++ {
		entries = append(entries,
			BeamState{Pos: Position{X: 1, Y: y}, Dir: Right},
			BeamState{Pos: Position{X: m.width, Y: y}, Dir: Left},
		)
	}
	for x := 1; x <= m.width; x++ {
		entries = append(entries,
			BeamState{Pos: Position{X: x, Y: 1}, Dir: Down},
			BeamState{Pos: Position{X: x, Y: m.height}, Dir: Up},
		)
	}
	return entries
}

// SweepOptions tunes a boundary sweep
type SweepOptions struct {
	// Workers bounds the number of concurrent runs; 0 means GOMAXPROCS.
	Workers    int
	Propagator Propagator
}

// EntryResult is the energized count of a single boundary entry
type EntryResult struct {
	Entry BeamState `json:"entry"`
	Count int       `json:"count"`
}

// SweepResult is the reduction of a boundary sweep
type SweepResult struct {
	Best    BeamState     `json:"best"`
	Max     int           `json:"max"`
	Runs    int           `json:"runs"`
	Entries []EntryResult `json:"entries,omitempty"`
}

// Sweep runs every boundary entry and keeps the maximum. Runs share only the
// read-only tile map. Ties resolve to the earliest entry in BoundaryEntries
// order, so the result does not depend on scheduling. Cancelling ctx stops
// scheduling further runs and returns ctx.Err().
func Sweep(ctx context.Context, m *TileMap, opts SweepOptions) (*SweepResult, error) {
	entries := BoundaryEntries(m)
	counts := make([]int, len(entries))

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range entries {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			run, err := opts.Propagator.Run(m, entries[i])
			if err != nil {
				return err
			}
			counts[i] = run.Count()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &SweepResult{
		Runs:    len(entries),
		Entries: make([]EntryResult, len(entries)),
	}
	for i, entry := range entries {
		result.Entries[i] = EntryResult{Entry: entry, Count: counts[i]}
		if i == 0 || counts[i] > result.Max {
			result.Max = counts[i]
			result.Best = entry
		}
	}
	return result, nil
}

// MaxEnergize returns the best energized count over all boundary entries
func MaxEnergize(m *TileMap) (int, error) {
	result, err := Sweep(context.Background(), m, SweepOptions{Propagator: DefaultPropagator})
	if err != nil {
		return 0, err
	}
	return result.Max, nil
}

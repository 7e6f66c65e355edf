package driver

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"kiln/internal/diag"
	"kiln/internal/emit"
	"kiln/internal/source"
)

// Result pairs one unit's emitted module with the diagnostics its driver
// collected. Module is nil when the unit failed to lower. Files is the
// unit's file set, for resolving diagnostic spans.
type Result struct {
	Path   string
	Module *emit.Module
	Bag    *diag.Bag
	Files  *source.FileSet
}

// Stage tags the progress of one unit through the pipeline.
type Stage uint8

const (
	StageQueued Stage = iota
	StageLoad
	StageLower
	StageDone
	StageError
)

func (s Stage) String() string {
	switch s {
	case StageQueued:
		return "queued"
	case StageLoad:
		return "loading"
	case StageLower:
		return "lowering"
	case StageDone:
		return "done"
	case StageError:
		return "error"
	default:
		return "stage?"
	}
}

// Event is one progress notification from LowerPaths. Events for
// different units may interleave; events for one unit are ordered.
type Event struct {
	Path  string
	Stage Stage
}

// LowerPaths lowers every declaration file concurrently, one driver per
// unit. Units are independent compilations: each gets its own hierarchy
// and builders, so no locking crosses unit boundaries. Results come back
// in input order regardless of completion order.
func LowerPaths(ctx context.Context, opts Options, paths []string) ([]Result, error) {
	results := make([]Result, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(jobs)

	notify := opts.OnEvent
	if notify == nil {
		notify = func(Event) {}
	}

	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			d := New(opts)
			results[i] = Result{Path: path, Bag: d.Bag, Files: d.Files}

			notify(Event{Path: path, Stage: StageLoad})
			u, err := d.LoadUnit(path)
			if err != nil {
				notify(Event{Path: path, Stage: StageError})
				return err
			}
			notify(Event{Path: path, Stage: StageLower})
			m, err := d.LowerUnit(u)
			if err != nil {
				notify(Event{Path: path, Stage: StageError})
				return err
			}
			d.checkCache(u.FileID, m)
			results[i].Module = m
			notify(Event{Path: path, Stage: StageDone})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

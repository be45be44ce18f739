// Package profiler drives a profiling run: it loads the spatial division,
// plans the 4-week windows, reads and attributes the CDR dataset once and
// then builds and stores the baskets of each complete window in turn.
package profiler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jalad-shrimali/cdr-sociometer/cdr"
	"github.com/jalad-shrimali/cdr-sociometer/engine"
	"github.com/jalad-shrimali/cdr-sociometer/profile"
	"github.com/jalad-shrimali/cdr-sociometer/spatial"
	"github.com/jalad-shrimali/cdr-sociometer/store"
	"github.com/jalad-shrimali/cdr-sociometer/window"
)

// Options names the inputs of one run.
type Options struct {
	Dataset  string
	Division string
	Start    time.Time
	End      time.Time

	WeeksPerWindow int
	// DivisionPrefix inserts the division name into dataset names.
	DivisionPrefix bool
}

// Stats counts what happened to the input records.
type Stats struct {
	Files       int
	Lines       int64
	Malformed   int64
	UnknownCell int64
	OutOfRange  int64
	Attributed  int
}

// WindowResult describes one profiled window and where it was stored.
type WindowResult struct {
	Name         string
	Window       window.Window
	Records      int
	Presences    int
	Observations int
	Users        int
	Baskets      int
	Locations    []string
}

// Result is the outcome of a run.
type Result struct {
	RunID   string
	Windows []WindowResult
	Skipped []window.Week
	Stats   Stats
}

// Runner executes profiling runs on one engine and sink.
type Runner struct {
	engine *engine.Engine
	sink   store.Sink
	log    *slog.Logger
}

func New(eng *engine.Engine, sink store.Sink, logger *slog.Logger) *Runner {
	return &Runner{engine: eng, sink: sink, log: logger}
}

// Run executes the whole job. Date range and spatial division problems fail
// before any record is read; malformed lines, unknown cells and records out
// of range are only counted.
func (r *Runner) Run(ctx context.Context, opts Options) (*Result, error) {
	res := &Result{RunID: uuid.NewString()}
	log := r.log.With("run_id", res.RunID)

	size := opts.WeeksPerWindow
	if size < 1 {
		size = window.Size
	}
	plan, err := window.New(opts.Start, opts.End, size)
	if err != nil {
		return nil, err
	}

	division, err := spatial.Load(opts.Division)
	if err != nil {
		return nil, fmt.Errorf("load spatial division: %w", err)
	}

	files, err := cdr.Files(opts.Dataset)
	if err != nil {
		return nil, err
	}
	res.Stats.Files = len(files)

	log.Info("profiling run started",
		"dataset", opts.Dataset,
		"division", division.Name(),
		"cells", division.Len(),
		"regions", len(division.Regions()),
		"start", opts.Start.Format(cdr.DateLayout),
		"end", opts.End.Format(cdr.DateLayout),
		"files", len(files),
		"windows", len(plan.Windows),
		"workers", r.engine.Workers(),
		"partitions", r.engine.Partitions())

	if len(plan.Skipped) > 0 {
		res.Skipped = plan.Skipped
		log.Warn("no complete window, skipping trailing weeks", "weeks", weekList(plan.Skipped))
	}
	if len(plan.Windows) == 0 {
		return res, nil
	}

	records, err := r.attribute(ctx, files, division, opts, &res.Stats)
	if err != nil {
		return nil, err
	}
	log.Info("dataset attributed",
		"lines", res.Stats.Lines,
		"malformed", res.Stats.Malformed,
		"unknown_cell", res.Stats.UnknownCell,
		"out_of_range", res.Stats.OutOfRange,
		"kept", res.Stats.Attributed)

	prefix := ""
	if opts.DivisionPrefix {
		prefix = division.Name()
	}

	for _, w := range plan.Windows {
		wr, err := r.window(ctx, records, w, store.DatasetName(prefix, w))
		if err != nil {
			return nil, fmt.Errorf("window %s: %w", w.Name(), err)
		}
		log.Info("window profiled",
			"window", wr.Name,
			"records", wr.Records,
			"presences", wr.Presences,
			"observations", wr.Observations,
			"users", wr.Users,
			"baskets", wr.Baskets,
			"output", wr.Locations)
		res.Windows = append(res.Windows, *wr)
	}
	log.Info("profiling run finished",
		"windows", len(res.Windows),
		"dropped_malformed", res.Stats.Malformed,
		"dropped_unknown_cell", res.Stats.UnknownCell,
		"dropped_out_of_range", res.Stats.OutOfRange)
	return res, nil
}

func (r *Runner) attribute(ctx context.Context, files []string, division *spatial.Division, opts Options, st *Stats) (*engine.Dataset[profile.Attributed], error) {
	attr := profile.NewAttributor(division, opts.Start, opts.End)
	var (
		unknown, outOfRange atomic.Int64
		mu                  sync.Mutex
		read                cdr.ReadStats
	)

	records, err := engine.FlatMap(ctx, engine.Parallelize(r.engine, files), func(path string) ([]profile.Attributed, error) {
		rc, err := cdr.Open(path)
		if err != nil {
			return nil, err
		}
		defer rc.Close()

		var out []profile.Attributed
		rs, err := cdr.Scan(rc, func(rec cdr.Record) {
			a, drop := attr.Attribute(rec)
			switch drop {
			case profile.Kept:
				out = append(out, a)
			case profile.DropUnknownCell:
				unknown.Add(1)
			case profile.DropOutOfRange:
				outOfRange.Add(1)
			}
		})
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		mu.Lock()
		read.Add(rs)
		mu.Unlock()
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	st.Lines = int64(read.Lines)
	st.Malformed = int64(read.Malformed)
	st.UnknownCell = unknown.Load()
	st.OutOfRange = outOfRange.Load()
	st.Attributed = records.Count()
	return records, nil
}

func (r *Runner) window(ctx context.Context, records *engine.Dataset[profile.Attributed], w window.Window, name string) (*WindowResult, error) {
	built, err := profile.Build(ctx, records, w)
	if err != nil {
		return nil, err
	}
	locs, err := r.sink.Write(ctx, name, built.Baskets)
	if err != nil {
		return nil, fmt.Errorf("store %s: %w", name, err)
	}
	return &WindowResult{
		Name:         name,
		Window:       w,
		Records:      built.Records,
		Presences:    built.Presences,
		Observations: built.Observations,
		Users:        built.Users,
		Baskets:      len(built.Baskets),
		Locations:    locs,
	}, nil
}

func weekList(weeks []window.Week) []string {
	out := make([]string, len(weeks))
	for i, w := range weeks {
		out[i] = w.String()
	}
	return out
}

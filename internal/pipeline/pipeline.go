// Package pipeline drives one HPDEC run: decode the input, perturb it,
// report the histogram of the result and encode it to the output.
package pipeline

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/svanichkin/hpdec/internal/fsutil"
	"github.com/svanichkin/hpdec/internal/hpdec"
	"github.com/svanichkin/hpdec/internal/pixgrid"
	"github.com/svanichkin/hpdec/internal/report"
	"github.com/svanichkin/hpdec/internal/transform"
)

// Stage names a pipeline step.
type Stage string

const (
	StageDecode    Stage = "decode"
	StagePerturb   Stage = "perturb"
	StageHistogram Stage = "histogram"
	StageEncode    Stage = "encode"
)

// StageError wraps the error that stopped a run with the stage it came from.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return string(e.Stage) + ": " + e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

// FailedStage returns the stage recorded in err, or "" if err did not come
// from Run.
func FailedStage(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// Options configures a run. FS, Alloc and Logger have defaults; Rand is
// required when Strength > 0.
type Options struct {
	FS     fsutil.FileSystem
	Alloc  pixgrid.Allocator
	Rand   transform.Rand
	Logger *slog.Logger

	Input    string
	Output   string
	Strength int

	// Report receives the histogram text lines; nil skips them.
	Report io.Writer
	// Files lists extra histogram renderings.
	Files report.Files

	Metrics *Metrics
}

// Result describes a successful run.
type Result struct {
	RunID     string
	Height    int
	Width     int
	Histogram transform.Histogram
	Summary   transform.Summary
}

func (o *Options) setDefaults() {
	if o.FS == nil {
		o.FS = fsutil.OSFileSystem{}
	}
	if o.Alloc == nil {
		o.Alloc = pixgrid.DefaultAllocator
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Run executes decode, perturb, histogram and encode in order and stops at
// the first failure, returned as a *StageError. Every grid allocated by the
// run is released exactly once before Run returns.
func Run(opts Options) (res *Result, err error) {
	opts.setDefaults()
	runID := uuid.NewString()
	log := opts.Logger.With(slog.String("run_id", runID))
	start := time.Now()

	defer func() {
		opts.Metrics.observeRun(err)
		if err != nil {
			log.Error("pipeline failed",
				slog.String("stage", string(FailedStage(err))),
				slog.String("error", err.Error()),
				slog.Duration("elapsed", time.Since(start)))
			return
		}
		log.Info("pipeline finished", slog.Duration("elapsed", time.Since(start)))
	}()

	var src *pixgrid.Grid
	err = runStage(opts, log, StageDecode, func() (err error) {
		src, err = hpdec.NewDecoder(opts.Alloc).DecodeFile(opts.FS, opts.Input)
		return err
	})
	if err != nil {
		return nil, err
	}
	defer src.Release()
	opts.Metrics.addPixels(src.Len())
	log.Debug("decoded", slog.String("input", opts.Input), slog.Int("height", src.Height), slog.Int("width", src.Width))

	var out *pixgrid.Grid
	err = runStage(opts, log, StagePerturb, func() (err error) {
		out, err = transform.Perturb(opts.Alloc, src, opts.Strength, opts.Rand)
		return err
	})
	if err != nil {
		return nil, err
	}
	defer out.Release()

	var hist transform.Histogram
	err = runStage(opts, log, StageHistogram, func() (err error) {
		if hist, err = transform.ComputeHistogram(out); err != nil {
			return err
		}
		if opts.Report != nil {
			if err := report.WriteText(opts.Report, &hist); err != nil {
				return fmt.Errorf("report: %w", err)
			}
		}
		if opts.Files.Empty() {
			return nil
		}
		if err := report.WriteFiles(opts.FS, opts.Files, &hist, filepath.Base(opts.Input)); err != nil {
			return err
		}
		log.Debug("report files written",
			slog.String("text", opts.Files.Text),
			slog.String("csv", opts.Files.CSV),
			slog.String("png", opts.Files.PNG),
			slog.String("html", opts.Files.HTML))
		return nil
	})
	if err != nil {
		return nil, err
	}
	summary := hist.Summary()
	log.Info("histogram",
		slog.Uint64("samples", summary.Count),
		slog.Float64("mean", summary.Mean),
		slog.Float64("stddev", summary.StdDev),
		slog.Float64("median", summary.Median),
		slog.Int("min", summary.Min),
		slog.Int("max", summary.Max))

	err = runStage(opts, log, StageEncode, func() error {
		return hpdec.NewEncoder().EncodeFile(opts.FS, opts.Output, out)
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		RunID:     runID,
		Height:    out.Height,
		Width:     out.Width,
		Histogram: hist,
		Summary:   summary,
	}, nil
}

func runStage(opts Options, log *slog.Logger, stage Stage, fn func() error) error {
	t0 := time.Now()
	err := fn()
	d := time.Since(t0)
	opts.Metrics.observeStage(stage, d, err)
	if err != nil {
		return &StageError{Stage: stage, Err: err}
	}
	log.Debug("stage done", slog.String("stage", string(stage)), slog.Duration("took", d))
	return nil
}

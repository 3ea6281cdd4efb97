package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/svanichkin/hpdec/internal/config"
	"github.com/svanichkin/hpdec/internal/fsutil"
	"github.com/svanichkin/hpdec/internal/hpdec"
	"github.com/svanichkin/hpdec/internal/pipeline"
	"github.com/svanichkin/hpdec/internal/pixgrid"
	"github.com/svanichkin/hpdec/internal/report"
	"github.com/svanichkin/hpdec/internal/version"
)

type cliFlags struct {
	configPath  string
	seed        uint64
	maxPixels   int
	reportPath  string
	csvPath     string
	pngPath     string
	htmlPath    string
	metricsFile string
	verbose     bool
	printConfig bool
}

func newRootCmd() *cobra.Command {
	var f cliFlags
	cmd := &cobra.Command{
		Use:   "hpdec INPUTFILE OUTPUTFILE [NOISE_STRENGTH]",
		Short: "Add bounded noise to an HPDEC image and print its value histogram",
		Long: `hpdec reads an HPDEC image, offsets every channel of every pixel by a
uniform random amount in [-NOISE_STRENGTH, NOISE_STRENGTH] (default 5),
prints the 256-bucket channel value histogram of the result and writes the
noisy image to OUTPUTFILE.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if f.printConfig {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.RangeArgs(2, 3)(cmd, args)
		},
		Version:       version.String(),
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			if f.printConfig {
				return printConfig(cmd, f)
			}
			return runProcess(cmd, args, f)
		},
	}

	fl := cmd.Flags()
	// Flags must precede INPUTFILE; everything after it is positional,
	// including a negative NOISE_STRENGTH.
	fl.SetInterspersed(false)
	fl.StringVar(&f.configPath, "config", "", "YAML config file")
	fl.Uint64Var(&f.seed, "seed", 0, "fixed random seed (default: seeded from the clock)")
	fl.IntVar(&f.maxPixels, "max-pixels", 0, "largest grid to allocate, in pixels")
	fl.StringVar(&f.reportPath, "report", "", "write the histogram to this file instead of stdout (.zst compresses)")
	fl.StringVar(&f.csvPath, "csv", "", "write the histogram as CSV")
	fl.StringVar(&f.pngPath, "chart-png", "", "render the histogram as a PNG bar chart")
	fl.StringVar(&f.htmlPath, "chart-html", "", "render the histogram as an HTML bar chart")
	fl.StringVar(&f.metricsFile, "metrics-file", "", "write Prometheus textfile metrics after the run")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "debug logging")
	fl.BoolVar(&f.printConfig, "print-config", false, "print the resolved config as YAML and exit")
	return cmd
}

// resolveConfig layers defaults, the config file, explicitly set flags and
// the positional strength, in that order.
func resolveConfig(cmd *cobra.Command, args []string, f cliFlags, fsys fsutil.FileSystem) (*config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		loaded, err := config.Load(fsys, f.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	fl := cmd.Flags()
	if fl.Changed("seed") {
		seed := f.seed
		cfg.Seed = &seed
	}
	if fl.Changed("max-pixels") {
		cfg.MaxPixels = f.maxPixels
	}
	if fl.Changed("report") {
		cfg.Report.Path = f.reportPath
	}
	if fl.Changed("csv") {
		cfg.Report.CSV = f.csvPath
	}
	if fl.Changed("chart-png") {
		cfg.Report.ChartPNG = f.pngPath
	}
	if fl.Changed("chart-html") {
		cfg.Report.ChartHTML = f.htmlPath
	}
	if fl.Changed("metrics-file") {
		cfg.MetricsFile = f.metricsFile
	}
	if f.verbose {
		cfg.LogLevel = "debug"
	}

	if len(args) == 3 {
		s, err := strconv.Atoi(args[2])
		if err != nil {
			return nil, fmt.Errorf("noise strength must be an integer, got %q", args[2])
		}
		cfg.Strength = s
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lv slog.Level
	if err := lv.UnmarshalText([]byte(level)); err != nil {
		lv = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lv}))
}

func runProcess(cmd *cobra.Command, args []string, f cliFlags) error {
	fsys := fsutil.OSFileSystem{}
	cfg, err := resolveConfig(cmd, args, f, fsys)
	if err != nil {
		return err
	}

	log := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	seed := uint64(time.Now().UnixNano())
	if cfg.Seed != nil {
		seed = *cfg.Seed
	}
	log.Debug("configured", slog.Int("strength", cfg.Strength), slog.Uint64("seed", seed), slog.Int("max_pixels", cfg.MaxPixels))

	opts := pipeline.Options{
		FS:       fsys,
		Alloc:    pixgrid.HeapAllocator{MaxPixels: cfg.MaxPixels},
		Rand:     rand.New(rand.NewPCG(seed, seed>>1|1)),
		Logger:   log,
		Input:    args[0],
		Output:   args[1],
		Strength: cfg.Strength,
		Files: report.Files{
			Text: cfg.Report.Path,
			CSV:  cfg.Report.CSV,
			PNG:  cfg.Report.ChartPNG,
			HTML: cfg.Report.ChartHTML,
		},
	}
	if cfg.Report.Path == "" {
		opts.Report = cmd.OutOrStdout()
	}
	if cfg.MetricsFile != "" {
		opts.Metrics = pipeline.NewMetrics()
	}

	_, runErr := pipeline.Run(opts)

	if opts.Metrics != nil {
		if err := opts.Metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			log.Warn("failed to write metrics", slog.String("path", cfg.MetricsFile), slog.String("error", err.Error()))
		}
	}
	if runErr != nil {
		return diagnose(runErr, opts.Input, opts.Output)
	}
	return nil
}

// printConfig writes the configuration a run would use, after the config
// file and flags are applied, so it can be saved and edited.
func printConfig(cmd *cobra.Command, f cliFlags) error {
	cfg, err := resolveConfig(cmd, nil, f, fsutil.OSFileSystem{})
	if err != nil {
		return err
	}
	data, err := cfg.Marshal()
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

// diagnose turns a pipeline error into the message shown to the user.
func diagnose(err error, input, output string) error {
	switch pipeline.FailedStage(err) {
	case pipeline.StageDecode:
		var ioErr *hpdec.IOError
		if errors.As(err, &ioErr) && ioErr.Op == "open" {
			return fmt.Errorf("File %s could not be opened: %w", input, ioErr.Err)
		}
		return fmt.Errorf("Loading %s failed: %w", input, err)
	case pipeline.StagePerturb:
		return fmt.Errorf("Noise application failed: %w", err)
	case pipeline.StageHistogram:
		return fmt.Errorf("Histogram generation failed: %w", err)
	case pipeline.StageEncode:
		return fmt.Errorf("Saving image to %s failed: %w", output, err)
	}
	return err
}

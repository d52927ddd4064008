// Command cellcount tunes counting parameters on the composite reference
// image and then counts every image in the Ch1 folder of a workspace.
package main

import (
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"cell-counter/internal/batch"
	"cell-counter/internal/counter"
	"cell-counter/internal/logger"
	"cell-counter/internal/optimize"
	"cell-counter/internal/params"
	"cell-counter/internal/report"
	"cell-counter/internal/version"
	"cell-counter/internal/workspace"

	"github.com/rs/zerolog"
)

func main() {
	root := flag.String("dir", "", "Workspace directory containing Composite/, ManualCounts/ and Ch1/")
	configPath := flag.String("config", "", "Optional YAML configuration file")
	diameter := flag.Int("diameter", 0, "Seed cell diameter in pixels (overrides config)")
	particleMin := flag.Float64("pmin", -1, "Minimum particle area as a fraction of diameter² (overrides config)")
	noWatershed := flag.Bool("no-watershed", false, "Disable watershed splitting of touching cells")
	step := flag.Float64("step", 0, "Threshold sweep step (overrides config)")
	workers := flag.Int("workers", 0, "Images counted concurrently during the batch (overrides config)")
	skipBatch := flag.Bool("optimize-only", false, "Stop after parameter optimization")
	noPlot := flag.Bool("no-plot", false, "Do not render the optimization chart")
	verbose := flag.Bool("v", false, "Verbose logging")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("cellcount"))
		return
	}
	if *root == "" {
		fmt.Println("Usage: cellcount -dir <workspace> [-config run.yaml] [-diameter 6] [-pmin 0.1] [-step 10] [-workers 1]")
		os.Exit(1)
	}

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log := logger.NewConsoleLogger(level)

	cfg := params.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = params.Load(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
	}
	if *diameter > 0 {
		cfg.Parameters.Diameter = *diameter
	}
	if *particleMin >= 0 {
		cfg.Parameters.ParticleMin = *particleMin
	}
	if *noWatershed {
		cfg.Parameters.UseWatershed = false
	}
	if *step > 0 {
		cfg.Optimizer.Step = *step
	}
	if *workers > 0 {
		cfg.Batch.Workers = *workers
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if err := run(*root, cfg, *skipBatch, !*noPlot, log); err != nil {
		log.Error("Main", err, nil)
		os.Exit(1)
	}
}

func run(root string, cfg params.Config, optimizeOnly, plot bool, log logger.Logger) error {
	info, err := workspace.Resolve(root)
	if err != nil {
		return err
	}

	ref, err := optimize.LoadReference(info)
	if err != nil {
		return err
	}

	opt := &optimize.Optimizer{
		Engine:        counter.Pipeline{},
		Logger:        log,
		Step:          cfg.Optimizer.Step,
		MinDiameter:   cfg.Optimizer.MinDiameter,
		MaxIterations: cfg.Optimizer.MaxIterations,
	}
	res, optErr := opt.Optimize(ref, cfg.Parameters)
	if res != nil && len(res.Rows) > 0 {
		if err := report.WriteOptimization(filepath.Join(info.Output, report.OptimizationCSV), res.Rows); err != nil {
			return err
		}
		if plot {
			selected := res.Threshold
			if optErr != nil {
				selected = math.NaN()
			}
			err := report.PlotOptimization(filepath.Join(info.Output, report.OptimizationPNG), res.Rows, selected)
			if err != nil && !errors.Is(err, report.ErrTooFewRows) {
				return err
			}
		}
	}
	if optErr != nil {
		return optErr
	}

	fmt.Printf("Optimal diameter: %d\n", res.Diameter)
	fmt.Printf("Optimal threshold: %g (Otsu %g, manual count %d)\n",
		res.Threshold, res.Params.OtsuThreshold, res.Params.ManualCount)
	if optimizeOnly {
		return nil
	}

	runner := &batch.Runner{
		Counter:     counter.Pipeline{},
		Store:       report.Dir{Path: info.OutputCh1, Logger: log},
		Logger:      log,
		Workers:     cfg.Batch.Workers,
		SaveRecords: cfg.Batch.SaveRecords,
	}
	summary, err := runner.Run(info, res.Params, params.ChannelProduction)
	if err != nil {
		return err
	}
	if err := report.WriteSummary(filepath.Join(info.Output, report.SummaryName(summary.Channel)), summary); err != nil {
		return err
	}

	fmt.Printf("\n%-40s %8s %12s\n", "File", "Count", "ROI size")
	for _, r := range summary.Rows {
		fmt.Printf("%-40s %8d %12d\n", r.File, r.Count, r.ROISize)
	}
	fmt.Printf("\nTotal: %d cells in %d images\n", summary.Total(), len(summary.Rows))
	return nil
}

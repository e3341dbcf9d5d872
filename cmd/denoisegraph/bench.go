package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/example/denoisegraph/internal/bench"
	"github.com/example/denoisegraph/internal/config"
	"github.com/example/denoisegraph/internal/engine/cpuengine"
	"github.com/example/denoisegraph/internal/graph"
	"github.com/example/denoisegraph/internal/imgio"
	"github.com/example/denoisegraph/internal/rtensor"
	"github.com/example/denoisegraph/internal/weights"
	"github.com/spf13/cobra"
)

func newBenchCmd() *cobra.Command {
	var height, width, runs int
	var threshold float64
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark the denoise graph over repeated runs of a synthetic tile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			return runBench(cfg, height, width, runs, threshold, jsonOut, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&height, "height", 256, "Tile height in pixels")
	cmd.Flags().IntVar(&width, "width", 256, "Tile width in pixels")
	cmd.Flags().IntVar(&runs, "runs", 5, "Number of runs, including one cold (Finalize) run")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Fail if mean Mpix/s falls below this; 0 disables")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of a table")

	return cmd
}

func runBench(cfg config.Config, h, w, runCount int, threshold float64, jsonOut bool, out io.Writer) error {
	if runCount < 1 {
		return fmt.Errorf("bench: --runs must be >= 1")
	}

	eng, err := cpuengine.New(cpuengine.Options{Workers: cfg.Runtime.Workers, TensorBlockSize: cfg.Runtime.TensorBlockSize})
	if err != nil {
		return fmt.Errorf("bench: %w", err)
	}

	loader, err := weights.Open(cfg.Paths.WeightsPath)
	if err != nil {
		return fmt.Errorf("bench: %w", err)
	}
	defer loader.Close()

	net, err := buildNetwork(eng, cfg, loader, h, w)
	if err != nil {
		return err
	}

	g := net.graph

	color := syntheticImage(h, w)
	output := imgio.NewImage(h, w, 3, imgio.F32)
	tile := imgio.Tile{H: h, W: w}

	net.input.SetInput(&color, nil, nil, tile)
	net.output.SetOutput(&output, tile)

	megapixels := float64(h*w) / 1e6
	results := make([]bench.RunResult, 0, runCount)
	durations := make([]time.Duration, 0, runCount)

	for i := 0; i < runCount; i++ {
		start := time.Now()

		if i == 0 {
			scratchSize, err := g.GetScratchByteSize()
			if err != nil {
				return fmt.Errorf("bench: %w", err)
			}

			scratch, err := eng.NewBuffer(scratchSize, rtensor.StorageHost)
			if err != nil {
				return fmt.Errorf("bench: allocate scratch: %w", err)
			}

			if err := g.SetScratch(scratch); err != nil {
				return fmt.Errorf("bench: %w", err)
			}

			if err := g.Finalize(); err != nil {
				return fmt.Errorf("bench: %w", err)
			}
		}

		if err := g.Run(graph.ProgressFunc(func(float64) bool { return true })); err != nil {
			return fmt.Errorf("bench: run %d: %w", i+1, err)
		}

		dur := time.Since(start)
		durations = append(durations, dur)

		results = append(results, bench.RunResult{
			Index:      i,
			Cold:       i == 0,
			Duration:   dur,
			Megapixels: megapixels,
			MPixPerSec: bench.Throughput(megapixels, dur),
		})
	}

	stats := bench.ComputeStats(durations)

	if jsonOut {
		bench.FormatJSON(results, stats, out)
	} else {
		bench.FormatTable(results, stats, out)
	}

	meanMPixPerSec := bench.Throughput(megapixels, stats.Mean)

	if err := bench.CheckThroughputThreshold(meanMPixPerSec, threshold); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}

	return nil
}

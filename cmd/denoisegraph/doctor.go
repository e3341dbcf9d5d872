package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/example/denoisegraph/internal/config"
	"github.com/example/denoisegraph/internal/doctor"
	"github.com/example/denoisegraph/internal/engine/cpuengine"
	"github.com/example/denoisegraph/internal/weights"
	"github.com/spf13/cobra"
)

// doctorTileHeight and doctorTileWidth size the representative tile the
// doctor command plans against when reporting scratch budget.
const (
	doctorTileHeight = 256
	doctorTileWidth  = 256
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the configured weights file and graph shape",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			dcfg := doctor.Config{
				WeightsPath: cfg.Paths.WeightsPath,
				RequiredTensors: []string{
					"enc1.weight", "enc2.weight", "dec1.weight",
				},
				MaxScratchBytes: 0,
			}

			if doctor.WeightsFileExists(cfg.Paths.WeightsPath) {
				dcfg.ScratchSize = func() (int64, error) {
					return scratchSizeForConfig(cfg)
				}
			}

			result := doctor.Run(dcfg, os.Stdout)
			if result.Failed() {
				for _, f := range result.Failures() {
					fmt.Fprintf(os.Stderr, "FAIL: %s\n", f)
				}

				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(os.Stdout, "doctor checks passed")

			return nil
		},
	}

	return cmd
}

// scratchSizeForConfig plans the fixed network at a representative tile size
// and reports the scratch arena GetScratchByteSize would require, without
// actually running it.
func scratchSizeForConfig(cfg config.Config) (int64, error) {
	eng, err := cpuengine.New(cpuengine.Options{Workers: cfg.Runtime.Workers, TensorBlockSize: cfg.Runtime.TensorBlockSize})
	if err != nil {
		return 0, err
	}

	loader, err := weights.Open(cfg.Paths.WeightsPath)
	if err != nil {
		return 0, err
	}
	defer loader.Close()

	net, err := buildNetwork(eng, cfg, loader, doctorTileHeight, doctorTileWidth)
	if err != nil {
		return 0, err
	}

	return net.graph.GetScratchByteSize()
}

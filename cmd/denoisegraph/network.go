package main

import (
	"fmt"

	"github.com/example/denoisegraph/internal/config"
	"github.com/example/denoisegraph/internal/engine"
	"github.com/example/denoisegraph/internal/graph"
	"github.com/example/denoisegraph/internal/weights"
)

// inputChannels reserves three 3-channel groups (color, albedo, normal) in
// the fixed ordering InputProcess writes, per spec.md §4.2, regardless of
// how many of those source images a given run actually supplies.
const inputChannels = 9

// builtNetwork bundles the fixed encoder-decoder graph this command builds
// (spec.md §8 scenario S1) with its input/output endpoints, so callers can
// bind images without reaching into the op list.
type builtNetwork struct {
	graph  *graph.Graph
	input  *graph.InputProcess
	output *graph.OutputProcess
}

// buildNetwork constructs a small fixed U-Net-shaped graph: InputProcess ->
// Conv+ReLU+Pool -> Conv+ReLU -> Upsample -> Conv -> OutputProcess, loading
// its three convs' weights from loader under the names "enc1", "enc2",
// "dec1".
func buildNetwork(eng engine.Engine, cfg config.Config, loader *weights.Loader, h, w int) (*builtNetwork, error) {
	tf, err := config.BuildTransfer(cfg.Graph, 1)
	if err != nil {
		return nil, fmt.Errorf("build network: %w", err)
	}

	g := graph.New(eng)

	reg := weights.NewRegistry()
	if err := reg.LoadConv(loader, "enc1", netChannels, inputChannels); err != nil {
		return nil, fmt.Errorf("build network: %w", err)
	}

	if err := reg.LoadConv(loader, "enc2", netChannels, netChannels); err != nil {
		return nil, fmt.Errorf("build network: %w", err)
	}

	if err := reg.LoadConv(loader, "dec1", 3, netChannels); err != nil {
		return nil, fmt.Errorf("build network: %w", err)
	}

	reg.Apply(g)

	input, err := g.AddInputProcess("input", []int64{inputChannels, int64(h), int64(w)}, 2, tf, cfg.Graph.HDR, cfg.Graph.SNorm)
	if err != nil {
		return nil, fmt.Errorf("build network: %w", err)
	}

	enc1, err := g.AddConv("enc1", input, graph.ActivationReLU, graph.PostOpPool)
	if err != nil {
		return nil, fmt.Errorf("build network: %w", err)
	}

	enc2, err := g.AddConv("enc2", enc1, graph.ActivationReLU, graph.PostOpNone)
	if err != nil {
		return nil, fmt.Errorf("build network: %w", err)
	}

	up, err := g.AddUpsample("up1", enc2)
	if err != nil {
		return nil, fmt.Errorf("build network: %w", err)
	}

	dec1, err := g.AddConv("dec1", up, graph.ActivationNone, graph.PostOpNone)
	if err != nil {
		return nil, fmt.Errorf("build network: %w", err)
	}

	output, err := g.AddOutputProcess("output", dec1, tf, cfg.Graph.HDR, cfg.Graph.SNorm)
	if err != nil {
		return nil, fmt.Errorf("build network: %w", err)
	}

	return &builtNetwork{graph: g, input: input, output: output}, nil
}

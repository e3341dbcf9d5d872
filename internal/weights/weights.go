// Package weights loads the graph's constant tensors (convolution weights
// and biases) from a safetensors file and registers them on a Graph, keyed
// the way internal/native's VarBuilder and internal/safetensors.Store key
// weights by dotted name (name+".weight", name+".bias") — generalized here
// from the teacher's 1-D sequence-model tensors to 2-D conv kernels
// ([outC,inC,3,3]) and 1-D bias vectors ([outC]).
package weights

import (
	"fmt"

	"github.com/example/denoisegraph/internal/rtensor"
	"github.com/example/denoisegraph/internal/safetensors"
)

// Loader resolves constant tensors by name from an open safetensors store.
type Loader struct {
	store *safetensors.Store
}

// Open opens the safetensors file at path for constant-tensor lookup.
func Open(path string) (*Loader, error) {
	store, err := safetensors.OpenStore(path, safetensors.StoreOptions{})
	if err != nil {
		return nil, fmt.Errorf("weights: open %s: %w", path, err)
	}

	return &Loader{store: store}, nil
}

// Close releases the underlying store.
func (l *Loader) Close() {
	if l != nil && l.store != nil {
		l.store.Close()
	}
}

// ConvWeight loads the [outC,inC,3,3] weight tensor stored under
// convName+".weight". It does not bind anything onto a Graph; Registry.Apply
// does that.
func (l *Loader) ConvWeight(convName string, outC, inC int64) (*rtensor.Tensor, error) {
	return l.tensor(convName+".weight", []int64{outC, inC, 3, 3})
}

// ConvBias loads the [outC] bias tensor for a conv named convName. Returns
// (nil, nil) if no bias entry is present, since bias is optional per
// spec.md §4.4.
func (l *Loader) ConvBias(convName string, outC int64) (*rtensor.Tensor, error) {
	name := convName + ".bias"
	if !l.store.Has(name) {
		return nil, nil //nolint:nilnil // bias is genuinely optional, not an error
	}

	return l.tensor(name, []int64{outC})
}

func (l *Loader) tensor(name string, wantShape []int64) (*rtensor.Tensor, error) {
	raw, err := l.store.TensorWithShape(name, wantShape)
	if err != nil {
		return nil, fmt.Errorf("weights: %s: %w", name, err)
	}

	desc, err := rtensor.NewDesc(shapeForDesc(raw.Shape), rtensor.F32, rtensor.CHW)
	if err != nil {
		return nil, fmt.Errorf("weights: %s: %w", name, err)
	}

	t, err := rtensor.NewPrivate(desc)
	if err != nil {
		return nil, err
	}

	if err := t.SetFloat32(raw.Data); err != nil {
		return nil, err
	}

	return t, nil
}

// shapeForDesc pads a safetensors shape to rank 3 or 4 so it satisfies
// rtensor.NewDesc, which models conv weights as a {N=outC, C=inC, H=3,
// W=3}-shaped descriptor purely to reuse TensorDesc's byte-size arithmetic
// (weights are never bound to the blocked-layout arena; they are always
// private, planar tensors).
func shapeForDesc(shape []int64) []int64 {
	switch len(shape) {
	case 1:
		return []int64{1, shape[0], 1, 1}
	case 4:
		return shape
	default:
		out := make([]int64, 4)
		copy(out[4-len(shape):], shape)

		for i := 0; i < 4-len(shape); i++ {
			out[i] = 1
		}

		return out
	}
}

// Registry is a named bundle of {weight, bias} pairs resolved from a
// Loader, ready to bind onto a Graph via Apply.
type Registry struct {
	entries map[string]entry
}

type entry struct {
	weight, bias *rtensor.Tensor
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry { return &Registry{entries: make(map[string]entry)} }

// LoadConv loads and registers the weight/bias pair for a conv named name
// with the given channel counts.
func (r *Registry) LoadConv(l *Loader, name string, outC, inC int64) error {
	w, err := l.ConvWeight(name, outC, inC)
	if err != nil {
		return err
	}

	b, err := l.ConvBias(name, outC)
	if err != nil {
		return err
	}

	r.entries[name] = entry{weight: w, bias: b}

	return nil
}

// constTensorSetter is the subset of *graph.Graph's API this package binds
// against, avoiding an import cycle (internal/graph does not import
// internal/weights; internal/weights instead depends on graph's public
// SetConstTensor through this narrow interface).
type constTensorSetter interface {
	SetConstTensor(name string, t *rtensor.Tensor)
}

// Apply registers every loaded conv's weight/bias onto g under
// name+".weight"/name+".bias", matching the keys Conv.Finalize and
// ConcatConv.Finalize look up.
func (r *Registry) Apply(g constTensorSetter) {
	for name, e := range r.entries {
		g.SetConstTensor(name+".weight", e.weight)

		if e.bias != nil {
			g.SetConstTensor(name+".bias", e.bias)
		}
	}
}

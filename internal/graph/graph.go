package graph

import (
	"fmt"

	"go.uber.org/atomic"

	"github.com/example/denoisegraph/internal/engine"
	"github.com/example/denoisegraph/internal/graph/arena"
	"github.com/example/denoisegraph/internal/rtensor"
)

// Graph is the ordered operation graph from spec.md §3: a single-producer
// (build phase), single-consumer (run phase) object. Ops are added in
// insertion order, which is also topological order, since an op may only
// reference previously added ops of the same Graph.
type Graph struct {
	eng engine.Engine

	ops      []Op
	allocs   map[Op]*tensorAlloc
	birth    map[Op]int
	death    map[Op]int
	colocate []arena.Colocation

	constTensors map[string]*rtensor.Tensor

	scratch                 rtensor.Buffer
	tensorScratchByteOffset int64
	privateByteSize         int64

	dirty     atomic.Bool
	finalized atomic.Bool
	fastMath  atomic.Bool

	plan       arena.Plan
	maxScratch int64 // monotonic floor per spec.md §9 Open Question 1
}

// New constructs an empty Graph bound to eng. eng is fixed for the Graph's
// lifetime; Clear does not change it.
func New(eng engine.Engine) *Graph {
	g := &Graph{eng: eng}
	g.reset()

	return g
}

func (g *Graph) reset() {
	g.ops = nil
	g.allocs = make(map[Op]*tensorAlloc)
	g.birth = make(map[Op]int)
	g.death = make(map[Op]int)
	g.colocate = nil
	g.constTensors = make(map[string]*rtensor.Tensor)
	g.scratch = nil
	g.tensorScratchByteOffset = 0
	g.privateByteSize = 0
	g.dirty.Store(false)
	g.finalized.Store(false)
	g.plan = arena.Plan{}
	g.maxScratch = 0
}

// SetFastMath records the fast-math hint (kernels that trade strict IEEE
// rounding for throughput, e.g. fused multiply-add reassociation), readable
// via FastMath. The hint is not passed to Op.Finalize/Execute, and no op in
// this package reads it.
func (g *Graph) SetFastMath(v bool) { g.fastMath.Store(v) }

// FastMath reports the current fast-math hint.
func (g *Graph) FastMath() bool { return g.fastMath.Load() }

// SetConstTensor registers a shared, read-only constant tensor (weights,
// biases) under name, consumed by Conv/ConcatConv during Finalize. Safe to
// call before or after adding the ops that reference it, as long as it is
// set before Finalize runs.
func (g *Graph) SetConstTensor(name string, t *rtensor.Tensor) {
	g.constTensors[name] = t
}

// ConstTensor looks up a previously registered constant tensor.
func (g *Graph) ConstTensor(name string) (*rtensor.Tensor, bool) {
	t, ok := g.constTensors[name]
	return t, ok
}

// Engine returns the Engine this Graph was constructed with.
func (g *Graph) Engine() engine.Engine { return g.eng }

// errMisconfiguredf builds an ErrMisconfigured-wrapped error with a
// descriptive message, matching the teacher's fmt.Errorf("%w", ...) style.
func errMisconfiguredf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrMisconfigured)...)
}

// checkSource validates that src was added to this Graph (not another one)
// and that the Graph has not been finalized, per spec.md §7
// Misconfiguration. It does not touch lifetimes; register extends src's
// death index once the consuming op is appended.
func (g *Graph) checkSource(src Op) error {
	if g.finalized.Load() {
		return errMisconfiguredf("graph: cannot add ops after Finalize")
	}

	if _, ok := g.birth[src]; !ok {
		return errMisconfiguredf("graph: source op %q was not added to this graph", src.Name())
	}

	return nil
}

// register appends op to the graph, recording its birth index, extending
// the death index of every source it consumes, and marking the graph dirty
// so the next GetScratchByteSize/Finalize call recomputes the plan.
func (g *Graph) register(op Op) {
	idx := len(g.ops)
	g.ops = append(g.ops, op)
	g.birth[op] = idx
	g.death[op] = idx

	for _, src := range op.sources() {
		if d, ok := g.death[src]; !ok || idx > d {
			g.death[src] = idx
		}
	}

	g.dirty.Store(true)
}

// registerTransient records a tensorAlloc for op's destination, handed to
// the arena planner on the next recomputation. Ops with no transient
// destination (OutputProcess) never call this.
func (g *Graph) registerTransient(op Op, desc rtensor.Desc) {
	g.allocs[op] = &tensorAlloc{desc: desc, allocID: g.birth[op]}
}

// addColocation records a concat-source colocation constraint (spec.md
// §4.6): offset(b) == offset(a) + ByteSize(a), with both tensors kept live
// until the consumer finishes. Returns false when either source lacks a
// transient allocation (e.g. already materialized) so the caller can fall
// back to an explicit concat.
func (g *Graph) addColocation(a, b Op) bool {
	allocA, okA := g.allocs[a]
	allocB, okB := g.allocs[b]

	if !okA || !okB {
		return false
	}

	g.colocate = append(g.colocate, arena.Colocation{A: allocA.allocID, B: allocB.allocID})

	return true
}

// IsSupported reports whether every op's Support() holds for the bound
// Engine, plus a human-readable reason per failing op (spec.md §7
// Unsupported — non-fatal).
func (g *Graph) IsSupported() (bool, []string) {
	var reasons []string

	for _, op := range g.ops {
		if !op.Support(g.eng) {
			reasons = append(reasons, fmt.Sprintf("%s: %v", op.Name(), ErrUnsupported))
		}
	}

	return len(reasons) == 0, reasons
}

// GetWorkAmount returns the sum of every op's WorkAmount, the denominator
// Run uses to compute progress fractions.
func (g *Graph) GetWorkAmount() float64 {
	var total float64
	for _, op := range g.ops {
		total += op.WorkAmount()
	}

	return total
}

// recomputePlan runs the arena planner over the current set of transient
// allocations, updating g.plan and the monotonic scratch-size floor. No-op
// if the graph is not dirty.
func (g *Graph) recomputePlan() error {
	if !g.dirty.Load() {
		return nil
	}

	allocs := make([]arena.Alloc, 0, len(g.allocs))

	for op, a := range g.allocs {
		size, err := a.desc.ByteSize()
		if err != nil {
			return err
		}

		allocs = append(allocs, arena.Alloc{
			ID:        a.allocID,
			ByteSize:  size,
			Birth:     g.birth[op],
			Death:     g.death[op],
			Alignment: allocAlignment,
		})
	}

	plan, err := arena.Compute(allocs, g.colocate)
	if err != nil {
		return err
	}

	g.plan = plan
	if plan.ArenaSize > g.maxScratch {
		g.maxScratch = plan.ArenaSize
	}

	g.dirty.Store(false)

	return nil
}

// GetScratchByteSize returns the engine-scratch plus tensor-arena size
// required to run this graph, laid out as [engine-scratch | tensor-arena].
// Recomputes the plan if the graph is dirty. Per spec.md §9 Open Question
// 1, this is mandated to never decrease as ops are added within the same
// build sequence (Clear resets the floor to zero).
func (g *Graph) GetScratchByteSize() (int64, error) {
	if err := g.recomputePlan(); err != nil {
		return 0, err
	}

	g.tensorScratchByteOffset = g.eng.ScratchByteSize()

	total := g.tensorScratchByteOffset + g.maxScratch
	if total < g.tensorScratchByteOffset+g.plan.ArenaSize {
		total = g.tensorScratchByteOffset + g.plan.ArenaSize
	}

	return total, nil
}

// SetScratch assigns the scratch buffer; buf must be at least
// GetScratchByteSize() bytes. Binds each transient tensor as a view over
// buf at its planned offset plus the engine-scratch reservation.
func (g *Graph) SetScratch(buf rtensor.Buffer) error {
	need, err := g.GetScratchByteSize()
	if err != nil {
		return err
	}

	if buf == nil || buf.ByteSize() < need {
		return errMisconfiguredf("graph: scratch buffer has %d bytes, need at least %d", bufSize(buf), need)
	}

	g.scratch = buf

	for op, a := range g.allocs {
		offset, ok := g.plan.Offsets[a.allocID]
		if !ok {
			return errMisconfiguredf("graph: planner produced no offset for op %q", op.Name())
		}

		t, err := rtensor.NewTransient(a.desc, buf, offset+g.tensorScratchByteOffset)
		if err != nil {
			return err
		}

		a.bound = t
		op.SetDst(t)
	}

	return nil
}

func bufSize(buf rtensor.Buffer) int64 {
	if buf == nil {
		return 0
	}

	return buf.ByteSize()
}

// Finalize requires the scratch buffer to have been set; it runs every op's
// Finalize hook in insertion order, then marks the graph executable.
// Calling Finalize twice is idempotent: it reruns every op's Finalize hook
// (which must themselves be idempotent) and leaves bound tensors and
// privateByteSize unchanged (spec.md §8 invariant 9).
func (g *Graph) Finalize() error {
	if g.scratch == nil {
		return errMisconfiguredf("graph: Finalize called before SetScratch")
	}

	g.privateByteSize = 0

	for _, op := range g.ops {
		if err := op.Finalize(g.eng); err != nil {
			return fmt.Errorf("graph: finalize op %q: %w", op.Name(), err)
		}
	}

	g.dirty.Store(false)
	g.finalized.Store(true)

	return nil
}

// trackPrivate accounts for a private (non-scratch) tensor allocated during
// an op's Finalize step (e.g. reordered conv weights), so
// GetPrivateByteSize reports the total.
func (g *Graph) trackPrivate(byteSize int64) { g.privateByteSize += byteSize }

// GetPrivateByteSize returns the total size of private tensors allocated
// during Finalize (weight reorder destinations and similar), outside the
// scratch arena.
func (g *Graph) GetPrivateByteSize() int64 { return g.privateByteSize }

// Run requires Finalize to have completed. It executes every op in
// insertion order, reporting cumulative progress before each op and
// honoring cancellation (spec.md §5, §7): before executing op i, Run
// reports the fraction of work completed by ops [0,i) and stops, returning
// ErrCancelled, if the Progress sink returns false. After the last op
// executes, Engine.Wait drains pending asynchronous work (the "final
// barrier" spec.md describes) and a final 1.0 update is reported.
func (g *Graph) Run(progress Progress) error {
	if !g.finalized.Load() {
		return errMisconfiguredf("graph: Run called before Finalize")
	}

	total := g.GetWorkAmount()

	var cumulative float64

	for i, op := range g.ops {
		frac := 0.0
		if total > 0 {
			frac = cumulative / total
		}

		if progress != nil && !progress.Update(frac) {
			return fmt.Errorf("graph: run cancelled before op %d %q: %w", i, op.Name(), ErrCancelled)
		}

		if err := op.Execute(g.eng); err != nil {
			return fmt.Errorf("graph: execute op %q: %w", op.Name(), err)
		}

		cumulative += op.WorkAmount()
	}

	g.eng.Wait()

	if progress != nil {
		progress.Update(1.0)
	}

	return nil
}

// Clear drops every op, allocation and lazy initializer, releases the
// scratch buffer reference, and returns the Graph to a fresh state. The
// monotonic scratch-size floor (spec.md §9 Open Question 1) resets to zero.
func (g *Graph) Clear() { g.reset() }

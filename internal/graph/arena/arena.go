// Package arena implements the lifetime-based interval-packing planner that
// assigns byte offsets to the Graph's transient tensors. The greedy,
// sort-candidates-then-pack-against-capacity shape follows
// Atul-Ranjan12-google-dag-optimization's retention planner (PlanRetentionGlobal
// in src-sol2/retention.go: build a candidate list, sort by a ranking key,
// greedily accept while tracking used capacity against a budget) adapted
// from "which tensor to keep resident" to "where does this tensor live",
// and generalized from a capacity-bounded admission decision to an
// unbounded, offset-assigning free-list allocator.
package arena

import (
	"errors"
	"fmt"
	"sort"
)

// ErrNoColocation is wrapped and returned by Compute when a Colocation names
// an Alloc ID that is not among the allocations passed in. Sizes and
// lifetimes of a valid pair are not checked: the pair is always placed
// back-to-back as one merged allocation.
var ErrNoColocation = errors.New("arena: colocation constraint unsatisfiable")

// Alloc is one transient tensor's lifetime and size, as handed to the
// planner by the Graph when recomputing GetScratchByteSize().
type Alloc struct {
	ID        int
	ByteSize  int64
	Birth     int // producer op's insertion index
	Death     int // max consumer op's insertion index (>= Birth)
	Alignment int64
}

// Colocation records a concat-source constraint (spec §4.6): B must be
// placed immediately after A, i.e. offset(B) == offset(A) + ByteSize(A).
// Both allocations are otherwise ordinary Allocs in the same Plan call.
type Colocation struct {
	A, B int // Alloc IDs
}

// Plan is the planner's output: an offset per Alloc ID plus the total arena
// size required to hold every allocation.
type Plan struct {
	Offsets   map[int]int64
	ArenaSize int64
}

// extent is a free byte range in the arena, used by the free-list allocator.
type extent struct {
	offset int64
	size   int64
}

// Compute runs the greedy interval-packing algorithm from spec.md §4.6:
// allocations are processed in birth order; at each birth the lowest-address
// free extent that fits is chosen (ties broken toward the larger extent);
// at each death the extent returns to the free set and coalesces with
// neighbors. Colocated pairs are planned as a single merged allocation
// occupying both sizes, then split back into two offsets.
//
// Compute is deterministic: identical inputs (same IDs, sizes, lifetimes,
// colocations) always yield identical offsets and arena size.
func Compute(allocs []Alloc, colocations []Colocation) (Plan, error) {
	merged, childOf, err := mergeColocations(allocs, colocations)
	if err != nil {
		return Plan{}, err
	}

	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Birth != merged[j].Birth {
			return merged[i].Birth < merged[j].Birth
		}

		return merged[i].ID < merged[j].ID
	})

	offsets := make(map[int]int64, len(merged))
	free := []extent{} // sorted by offset
	live := make(map[int]struct {
		offset int64
		size   int64
		death  int
	}, len(merged))

	var arenaSize int64

	// Process births in sorted order; at each step, release any allocation
	// whose death index is strictly less than the current birth.
	released := make(map[int]bool, len(merged))

	releaseDead := func(upTo int) {
		for id, l := range live {
			if l.death < upTo && !released[id] {
				free = insertFree(free, extent{offset: l.offset, size: l.size})
				released[id] = true
				delete(live, id)
			}
		}
	}

	for _, a := range merged {
		releaseDead(a.Birth)

		align := a.Alignment
		if align <= 0 {
			align = 1
		}

		offset, newFree, grew := placeAligned(free, a.ByteSize, align, arenaSize)
		free = newFree

		if grew > arenaSize {
			arenaSize = grew
		}

		offsets[a.ID] = offset
		live[a.ID] = struct {
			offset int64
			size   int64
			death  int
		}{offset: offset, size: a.ByteSize, death: a.Death}
	}

	// Split merged colocation offsets back out to their original child IDs.
	for parentID, children := range childOf {
		base := offsets[parentID]
		for _, c := range children {
			offsets[c.id] = base + c.relOffset
		}

		delete(offsets, parentID)
	}

	return Plan{Offsets: offsets, ArenaSize: arenaSize}, nil
}

type colocChild struct {
	id        int
	relOffset int64
}

// mergeColocations folds each (A,B) colocation pair into a single synthetic
// allocation sized ByteSize(A)+ByteSize(B), with lifetime spanning both, so
// the free-list allocator places them as one contiguous block. childOf maps
// the synthetic parent's ID back to the original {A,B} IDs and their
// relative offsets within the block.
func mergeColocations(allocs []Alloc, colocations []Colocation) ([]Alloc, map[int][]colocChild, error) {
	byID := make(map[int]Alloc, len(allocs))
	for _, a := range allocs {
		byID[a.ID] = a
	}

	inPair := make(map[int]bool)
	childOf := make(map[int][]colocChild)

	var merged []Alloc

	for _, c := range colocations {
		a, ok := byID[c.A]
		if !ok {
			return nil, nil, fmt.Errorf("arena: colocation references unknown alloc %d: %w", c.A, ErrNoColocation)
		}

		b, ok := byID[c.B]
		if !ok {
			return nil, nil, fmt.Errorf("arena: colocation references unknown alloc %d: %w", c.B, ErrNoColocation)
		}

		birth := a.Birth
		if b.Birth < birth {
			birth = b.Birth
		}

		death := a.Death
		if b.Death > death {
			death = b.Death
		}

		synthID := -(c.A*1000003 + c.B + 1) // negative, distinct from real IDs

		merged = append(merged, Alloc{
			ID:        synthID,
			ByteSize:  a.ByteSize + b.ByteSize,
			Birth:     birth,
			Death:     death,
			Alignment: a.Alignment,
		})

		childOf[synthID] = []colocChild{
			{id: c.A, relOffset: 0},
			{id: c.B, relOffset: a.ByteSize},
		}

		inPair[c.A] = true
		inPair[c.B] = true
	}

	for _, a := range allocs {
		if !inPair[a.ID] {
			merged = append(merged, a)
		}
	}

	return merged, childOf, nil
}

// insertFree inserts e into free, keeping the slice sorted by offset, and
// coalesces it with any adjacent extents.
func insertFree(free []extent, e extent) []extent {
	i := sort.Search(len(free), func(i int) bool { return free[i].offset >= e.offset })

	free = append(free, extent{})
	copy(free[i+1:], free[i:])
	free[i] = e

	// Coalesce with the following extent.
	if i+1 < len(free) && free[i].offset+free[i].size == free[i+1].offset {
		free[i].size += free[i+1].size
		free = append(free[:i+1], free[i+2:]...)
	}

	// Coalesce with the preceding extent.
	if i > 0 && free[i-1].offset+free[i-1].size == free[i].offset {
		free[i-1].size += free[i].size
		free = append(free[:i], free[i+1:]...)
	}

	return free
}

// placeAligned finds the lowest-address free extent that fits size aligned
// to align, preferring the larger extent on address ties. If no free extent
// fits, it extends the arena (grown is the new arena size in that case).
// Returns the chosen offset, the updated free list, and the arena size
// required to hold this allocation (only larger than the input when the
// arena grew).
func placeAligned(free []extent, size, align, arenaSize int64) (int64, []extent, int64) {
	bestIdx := -1
	var bestOffset int64

	for i, e := range free {
		aligned := alignUp(e.offset, align)
		pad := aligned - e.offset

		if e.size-pad >= size {
			if bestIdx == -1 || aligned < bestOffset ||
				(aligned == bestOffset && e.size > free[bestIdx].size) {
				bestIdx = i
				bestOffset = aligned
			}
		}
	}

	if bestIdx == -1 {
		offset := alignUp(arenaSize, align)
		newArena := offset + size

		return offset, free, newArena
	}

	e := free[bestIdx]
	pad := bestOffset - e.offset

	var remaining []extent
	if pad > 0 {
		remaining = append(remaining, extent{offset: e.offset, size: pad})
	}

	tailOffset := bestOffset + size
	tailSize := e.offset + e.size - tailOffset

	if tailSize > 0 {
		remaining = append(remaining, extent{offset: tailOffset, size: tailSize})
	}

	free = append(free[:bestIdx], append(remaining, free[bestIdx+1:]...)...)

	arenaEnd := bestOffset + size
	if arenaEnd > arenaSize {
		arenaSize = arenaEnd
	}

	return bestOffset, free, arenaSize
}

func alignUp(v, align int64) int64 {
	if align <= 1 {
		return v
	}

	rem := v % align
	if rem == 0 {
		return v
	}

	return v + (align - rem)
}

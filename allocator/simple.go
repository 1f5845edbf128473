package allocator

import (
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/dolthub/swiss"
	"github.com/pkg/errors"
	"github.com/xingoxu/xorg-intel-gpu-tools-sub001/memutils"
)

type rangeKind uint8

const (
	rangeFree rangeKind = iota
	rangeAllocated
	rangeReserved
)

// vaRange is one node of the address-ordered chain covering the
// allocator's full VM span. The chain is always contiguous: every
// node's end is the next node's start.
type vaRange struct {
	start uint64
	size  uint64
	kind  rangeKind
	// objHandle is meaningful for allocated ranges and optionally for
	// reservations made on behalf of an object.
	objHandle uint32

	prev *vaRange
	next *vaRange
}

func (r *vaRange) end() uint64 {
	return r.start + r.size
}

var rangePool = sync.Pool{
	New: func() any {
		return &vaRange{}
	},
}

// priorRange remembers where an object lived before it was freed so a
// same-size re-request can land on the identical address.
type priorRange struct {
	start uint64
	size  uint64
}

var simpleSeed atomic.Int64

// simpleAllocator is an address-ordered allocator with reservation
// support. Ranges live on a doubly linked chain; allocated ranges are
// additionally indexed by object handle.
type simpleAllocator struct {
	vmStart          uint64
	vmEnd            uint64
	defaultAlignment uint64
	strategy         Strategy
	rng              *rand.Rand

	head *vaRange
	tail *vaRange

	allocated      *swiss.Map[uint32, *vaRange]
	priorLocations *swiss.Map[uint32, priorRange]

	allocatedCount int
	reservedCount  int
}

var _ backend = &simpleAllocator{}

func newSimpleAllocator(start, end uint64, defaultAlignment uint64, strategy Strategy) *simpleAllocator {
	if defaultAlignment == 0 {
		defaultAlignment = DefaultAlignment
	}

	a := &simpleAllocator{
		vmStart:          start,
		vmEnd:            end,
		defaultAlignment: defaultAlignment,
		strategy:         strategy,
		rng:              rand.New(rand.NewSource(simpleSeed.Add(1))),
		allocated:        swiss.NewMap[uint32, *vaRange](42),
		priorLocations:   swiss.NewMap[uint32, priorRange](42),
	}

	whole := a.takeRange()
	whole.start = start
	whole.size = end - start
	whole.kind = rangeFree
	a.head = whole
	a.tail = whole

	return a
}

func (a *simpleAllocator) takeRange() *vaRange {
	r := rangePool.Get().(*vaRange)
	r.start = 0
	r.size = 0
	r.kind = rangeFree
	r.objHandle = 0
	r.prev = nil
	r.next = nil
	return r
}

func (a *simpleAllocator) releaseRange(r *vaRange) {
	rangePool.Put(r)
}

func (a *simpleAllocator) AddressRange() (uint64, uint64) {
	return a.vmStart, a.vmEnd
}

func (a *simpleAllocator) IsEmpty() bool {
	return a.allocatedCount == 0 && a.reservedCount == 0
}

func (a *simpleAllocator) Alloc(objHandle uint32, size, alignment uint64) uint64 {
	if size == 0 {
		return AllocInvalid
	}
	if alignment == 0 {
		alignment = a.defaultAlignment
	}
	if alignment&(alignment-1) != 0 {
		return AllocInvalid
	}

	existing, ok := a.allocated.Get(objHandle)
	if ok {
		if existing.size != size {
			return AllocInvalid
		}
		return existing.start
	}

	// A freed range is preferentially handed back to the same handle
	// for a same-size request.
	prior, ok := a.priorLocations.Get(objHandle)
	if ok && prior.size == size && prior.start%alignment == 0 {
		node := a.findFreeContaining(prior.start, size)
		if node != nil {
			a.carve(node, prior.start, size, rangeAllocated, objHandle)
			a.allocatedCount++
			return prior.start
		}
	}

	start, node := a.findGap(size, alignment)
	if node == nil {
		return AllocInvalid
	}

	a.carve(node, start, size, rangeAllocated, objHandle)
	a.allocatedCount++
	return start
}

func (a *simpleAllocator) findGap(size, alignment uint64) (uint64, *vaRange) {
	switch a.strategy {
	case StrategyHighToLow:
		for node := a.tail; node != nil; node = node.prev {
			if node.kind != rangeFree || node.size < size {
				continue
			}
			start := memutils.AlignDown(node.end()-size, alignment)
			if start >= node.start {
				return start, node
			}
		}
	case StrategyRandom:
		var fitting []*vaRange
		for node := a.head; node != nil; node = node.next {
			if node.kind != rangeFree || node.size < size {
				continue
			}
			if memutils.AlignUp(node.start, alignment)+size <= node.end() {
				fitting = append(fitting, node)
			}
		}
		if len(fitting) == 0 {
			return 0, nil
		}
		node := fitting[a.rng.Intn(len(fitting))]
		lowest := memutils.AlignUp(node.start, alignment)
		slots := (node.end() - size - lowest) / alignment
		start := lowest + alignment*uint64(a.rng.Int63n(int64(slots)+1))
		return start, node
	default:
		for node := a.head; node != nil; node = node.next {
			if node.kind != rangeFree || node.size < size {
				continue
			}
			start := memutils.AlignUp(node.start, alignment)
			if start+size <= node.end() {
				return start, node
			}
		}
	}

	return 0, nil
}

func (a *simpleAllocator) findFreeContaining(start, size uint64) *vaRange {
	for node := a.head; node != nil; node = node.next {
		if node.start > start {
			return nil
		}
		if node.end() >= start+size {
			if node.kind != rangeFree {
				return nil
			}
			return node
		}
	}
	return nil
}

// carve splits node so that [start, start+size) becomes a range of the
// requested kind, leaving free remainders on either side.
func (a *simpleAllocator) carve(node *vaRange, start, size uint64, kind rangeKind, objHandle uint32) {
	if start > node.start {
		before := a.takeRange()
		before.start = node.start
		before.size = start - node.start
		before.kind = rangeFree
		a.insertBefore(node, before)
	}

	if start+size < node.end() {
		after := a.takeRange()
		after.start = start + size
		after.size = node.end() - after.start
		after.kind = rangeFree
		a.insertAfter(node, after)
	}

	node.start = start
	node.size = size
	node.kind = kind
	node.objHandle = objHandle

	if kind == rangeAllocated {
		a.allocated.Put(objHandle, node)
	}
}

func (a *simpleAllocator) insertBefore(node, newNode *vaRange) {
	newNode.prev = node.prev
	newNode.next = node
	if node.prev != nil {
		node.prev.next = newNode
	} else {
		a.head = newNode
	}
	node.prev = newNode
}

func (a *simpleAllocator) insertAfter(node, newNode *vaRange) {
	newNode.next = node.next
	newNode.prev = node
	if node.next != nil {
		node.next.prev = newNode
	} else {
		a.tail = newNode
	}
	node.next = newNode
}

func (a *simpleAllocator) unlink(node *vaRange) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		a.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		a.tail = node.prev
	}
}

// mergeFree coalesces node with free neighbors. node must already be
// free.
func (a *simpleAllocator) mergeFree(node *vaRange) {
	if prev := node.prev; prev != nil && prev.kind == rangeFree {
		node.start = prev.start
		node.size += prev.size
		a.unlink(prev)
		a.releaseRange(prev)
	}
	if next := node.next; next != nil && next.kind == rangeFree {
		node.size += next.size
		a.unlink(next)
		a.releaseRange(next)
	}
}

func (a *simpleAllocator) Free(objHandle uint32) bool {
	node, ok := a.allocated.Get(objHandle)
	if !ok {
		return false
	}

	a.priorLocations.Put(objHandle, priorRange{start: node.start, size: node.size})
	a.allocated.Delete(objHandle)
	a.allocatedCount--

	node.kind = rangeFree
	node.objHandle = 0
	a.mergeFree(node)
	return true
}

func (a *simpleAllocator) Reserve(objHandle uint32, start, size uint64) bool {
	// size > vmEnd-start instead of start+size > vmEnd: the sum wraps
	// for sizes near MaxUint64.
	if size == 0 || start < a.vmStart || start >= a.vmEnd || size > a.vmEnd-start {
		return false
	}

	node := a.findFreeContaining(start, size)
	if node == nil {
		return false
	}

	a.carve(node, start, size, rangeReserved, objHandle)
	a.reservedCount++
	return true
}

func (a *simpleAllocator) Unreserve(objHandle uint32, start, size uint64) bool {
	for node := a.head; node != nil; node = node.next {
		if node.start != start {
			continue
		}
		if node.kind != rangeReserved || node.size != size || node.objHandle != objHandle {
			return false
		}

		node.kind = rangeFree
		node.objHandle = 0
		a.reservedCount--
		a.mergeFree(node)
		return true
	}
	return false
}

func (a *simpleAllocator) IsAllocated(objHandle uint32, size, offset uint64) bool {
	node, ok := a.allocated.Get(objHandle)
	if !ok {
		return false
	}
	return node.start == offset && node.size == size
}

func (a *simpleAllocator) IsReserved(start, size uint64) bool {
	if size == 0 || start >= a.vmEnd || size > a.vmEnd-start {
		return false
	}
	for node := a.head; node != nil; node = node.next {
		if node.start > start {
			return false
		}
		if node.end() >= start+size {
			return node.kind == rangeReserved
		}
	}
	return false
}

func (a *simpleAllocator) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	for node := a.head; node != nil; node = node.next {
		switch node.kind {
		case rangeFree:
			stats.AddFreeRange(node.size)
		case rangeAllocated:
			stats.AddAllocation(node.size)
		case rangeReserved:
			stats.AddReservation(node.size)
		}
	}
}

// Validate checks the chain invariants: full contiguous coverage of the
// VM span, coalesced free ranges, and index consistency.
func (a *simpleAllocator) Validate() error {
	if a.head == nil || a.head.start != a.vmStart {
		return errors.New("range chain does not begin at the VM start")
	}

	expectedStart := a.vmStart
	allocatedSeen := 0
	reservedSeen := 0
	prevFree := false

	for node := a.head; node != nil; node = node.next {
		if node.start != expectedStart {
			return errors.Errorf("range chain has a hole before 0x%x", node.start)
		}
		if node.size == 0 {
			return errors.Errorf("zero-size range at 0x%x", node.start)
		}

		switch node.kind {
		case rangeFree:
			if prevFree {
				return errors.Errorf("uncoalesced free ranges at 0x%x", node.start)
			}
			prevFree = true
		case rangeAllocated:
			prevFree = false
			allocatedSeen++
			indexed, ok := a.allocated.Get(node.objHandle)
			if !ok || indexed != node {
				return errors.Errorf("allocated range at 0x%x missing from the handle index", node.start)
			}
		case rangeReserved:
			prevFree = false
			reservedSeen++
		}

		expectedStart = node.end()
	}

	if expectedStart != a.vmEnd {
		return errors.Errorf("range chain ends at 0x%x instead of 0x%x", expectedStart, a.vmEnd)
	}
	if allocatedSeen != a.allocatedCount {
		return errors.Errorf("allocated count %d does not match chain contents %d", a.allocatedCount, allocatedSeen)
	}
	if reservedSeen != a.reservedCount {
		return errors.Errorf("reserved count %d does not match chain contents %d", a.reservedCount, reservedSeen)
	}

	return nil
}

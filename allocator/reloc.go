package allocator

import (
	"github.com/xingoxu/xorg-intel-gpu-tools-sub001/memutils"
)

// relocAllocator produces address suggestions for submissions the
// kernel relocates anyway. Addresses advance monotonically and wrap at
// the end of the VM span; nothing is recorded, so every query reports
// the range as unused.
type relocAllocator struct {
	vmStart          uint64
	vmEnd            uint64
	defaultAlignment uint64

	cursor uint64
}

var _ backend = &relocAllocator{}

func newRelocAllocator(start, end uint64, defaultAlignment uint64) *relocAllocator {
	if defaultAlignment == 0 {
		defaultAlignment = DefaultAlignment
	}
	return &relocAllocator{
		vmStart:          start,
		vmEnd:            end,
		defaultAlignment: defaultAlignment,
		cursor:           start,
	}
}

func (a *relocAllocator) Alloc(objHandle uint32, size, alignment uint64) uint64 {
	if size == 0 || size > a.vmEnd-a.vmStart {
		return AllocInvalid
	}
	if alignment == 0 {
		alignment = a.defaultAlignment
	}
	if alignment&(alignment-1) != 0 {
		return AllocInvalid
	}

	start := memutils.AlignUp(a.cursor, alignment)
	if start+size > a.vmEnd {
		start = memutils.AlignUp(a.vmStart, alignment)
		if start+size > a.vmEnd {
			return AllocInvalid
		}
	}

	a.cursor = start + size
	return start
}

// Free accepts any handle: the reloc strategy keeps no bookkeeping, and
// call sites treat free as idempotent.
func (a *relocAllocator) Free(objHandle uint32) bool {
	return true
}

func (a *relocAllocator) Reserve(objHandle uint32, start, size uint64) bool {
	return size != 0 && start >= a.vmStart && start < a.vmEnd && size <= a.vmEnd-start
}

func (a *relocAllocator) Unreserve(objHandle uint32, start, size uint64) bool {
	return true
}

func (a *relocAllocator) IsAllocated(objHandle uint32, size, offset uint64) bool {
	return false
}

func (a *relocAllocator) IsReserved(start, size uint64) bool {
	return false
}

func (a *relocAllocator) AddressRange() (uint64, uint64) {
	return a.vmStart, a.vmEnd
}

func (a *relocAllocator) IsEmpty() bool {
	return true
}

func (a *relocAllocator) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	stats.AddFreeRange(a.vmEnd - a.vmStart)
}

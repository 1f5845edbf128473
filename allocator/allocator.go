// Package allocator hands out non-overlapping GPU virtual-address
// ranges for buffer object handles. A Registry owns allocator
// instances, reference-counted by (fd, vm) key; the same surface can be
// served to forked child processes through a Broker/Client pair.
package allocator

import (
	"math"

	"github.com/xingoxu/xorg-intel-gpu-tools-sub001/memutils"
)

// Handle identifies one open allocator instance. The zero value is
// never a valid handle.
type Handle uint64

// AllocInvalid is the sentinel address reported when no free gap fits a
// request. It is a resource condition, not an error: callers decide
// whether to retry or fail upward.
const AllocInvalid uint64 = math.MaxUint64

// Type selects the strategy family of an allocator instance.
type Type uint32

const (
	// TypeNone is the absence of an allocator; batch buffers without
	// one fall back to kernel relocations.
	TypeNone Type = iota
	// TypeReloc produces monotonically advancing address suggestions
	// with no bookkeeping, for submissions the kernel relocates anyway.
	TypeReloc
	// TypeSimple is the stateful allocator: deduplicating,
	// reservation-aware, address-ordered.
	TypeSimple
)

var typeMapping = map[Type]string{
	TypeNone:   "TypeNone",
	TypeReloc:  "TypeReloc",
	TypeSimple: "TypeSimple",
}

func (t Type) String() string {
	return typeMapping[t]
}

// Strategy governs which free gap is chosen when several fit. It never
// affects the no-overlap invariant.
type Strategy uint32

const (
	StrategyLowToHigh Strategy = iota
	StrategyHighToLow
	StrategyRandom
)

var strategyMapping = map[Strategy]string{
	StrategyLowToHigh: "StrategyLowToHigh",
	StrategyHighToLow: "StrategyHighToLow",
	StrategyRandom:    "StrategyRandom",
}

func (s Strategy) String() string {
	return strategyMapping[s]
}

// DefaultAlignment is the minimum alignment applied when a caller
// passes zero.
const DefaultAlignment uint64 = 0x1000

// backend is one allocator instance's strategy implementation. All
// methods are called with the instance lock held.
type backend interface {
	Alloc(objHandle uint32, size, alignment uint64) uint64
	Free(objHandle uint32) bool
	Reserve(objHandle uint32, start, size uint64) bool
	Unreserve(objHandle uint32, start, size uint64) bool
	IsAllocated(objHandle uint32, size, offset uint64) bool
	IsReserved(start, size uint64) bool
	AddressRange() (start, end uint64)
	IsEmpty() bool
	AddDetailedStatistics(stats *memutils.DetailedStatistics)
}

// Allocator is the surface shared by the in-process Registry and the
// multiprocess Client proxy.
type Allocator interface {
	Open(fd int, ctx uint32, typ Type) (Handle, error)
	OpenFull(fd int, ctx uint32, start, end uint64, typ Type, strategy Strategy, defaultAlignment uint64) (Handle, error)
	OpenVM(fd int, vm uint32, typ Type) (Handle, error)
	Close(handle Handle) (bool, error)

	Alloc(handle Handle, objHandle uint32, size, alignment uint64) (uint64, error)
	Free(handle Handle, objHandle uint32) (bool, error)
	Reserve(handle Handle, objHandle uint32, start, size uint64) (bool, error)
	Unreserve(handle Handle, objHandle uint32, start, size uint64) (bool, error)
	IsAllocated(handle Handle, objHandle uint32, size, offset uint64) (bool, error)
	IsReserved(handle Handle, start, size uint64) (bool, error)
	AddressRange(handle Handle) (start, end uint64, err error)
}

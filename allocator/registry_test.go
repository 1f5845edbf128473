package allocator

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard))
}

func openSimple(t *testing.T, r *Registry) Handle {
	handle, err := r.Open(1, 0, TypeSimple)
	require.NoError(t, err)
	return handle
}

func TestAllocSameHandleReturnsSameAddress(t *testing.T) {
	r := NewRegistry(testLogger(), 0)
	handle := openSimple(t, r)

	first, err := r.Alloc(handle, 1, 0x1000, 0x1000)
	require.NoError(t, err)
	require.NotEqual(t, AllocInvalid, first)

	second, err := r.Alloc(handle, 1, 0x1000, 0x1000)
	require.NoError(t, err)
	require.Equal(t, first, second)

	freed, err := r.Free(handle, 1)
	require.NoError(t, err)
	require.True(t, freed)

	allocated, err := r.IsAllocated(handle, 1, 0x1000, first)
	require.NoError(t, err)
	require.False(t, allocated)

	freed, err = r.Free(handle, 1)
	require.NoError(t, err)
	require.False(t, freed)

	empty, err := r.Close(handle)
	require.NoError(t, err)
	require.True(t, empty)
}

func TestReserveOverlapRejected(t *testing.T) {
	r := NewRegistry(testLogger(), 0)
	handle := openSimple(t, r)

	const start = uint64(0x100000)

	ok, err := r.Reserve(handle, 0, start, 0x1000)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = r.Reserve(handle, 0, start+0x800, 0x1000)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = r.Unreserve(handle, 0, start, 0x1000)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = r.Reserve(handle, 0, start+0x800, 0x1000)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = r.Unreserve(handle, 0, start+0x800, 0x1000)
	require.NoError(t, err)
	require.True(t, ok)

	empty, err := r.Close(handle)
	require.NoError(t, err)
	require.True(t, empty)
}

func TestManyAllocationsDoNotOverlap(t *testing.T) {
	r := NewRegistry(testLogger(), 0)
	handle := openSimple(t, r)

	const count = 256
	const size = uint64(0x3000)

	type allocated struct {
		start uint64
		end   uint64
	}
	var ranges []allocated

	for obj := uint32(1); obj <= count; obj++ {
		addr, err := r.Alloc(handle, obj, size, 0x1000)
		require.NoError(t, err)
		require.NotEqual(t, AllocInvalid, addr)
		require.Zero(t, addr%0x1000)
		ranges = append(ranges, allocated{start: addr, end: addr + size})
	}

	for i := 0; i < len(ranges); i++ {
		for j := i + 1; j < len(ranges); j++ {
			disjoint := ranges[i].end <= ranges[j].start || ranges[j].end <= ranges[i].start
			require.True(t, disjoint, "ranges %d and %d overlap", i, j)
		}
	}

	require.NoError(t, r.Validate(handle))

	for obj := uint32(1); obj <= count; obj++ {
		freed, err := r.Free(handle, obj)
		require.NoError(t, err)
		require.True(t, freed)
	}

	empty, err := r.Close(handle)
	require.NoError(t, err)
	require.True(t, empty)
}

func TestStrategiesPickOppositeEnds(t *testing.T) {
	r := NewRegistry(testLogger(), 0)

	low, err := r.OpenFull(1, 0, 0, 0, TypeSimple, StrategyLowToHigh, 0)
	require.NoError(t, err)
	high, err := r.OpenFull(2, 0, 0, 0, TypeSimple, StrategyHighToLow, 0)
	require.NoError(t, err)

	lowAddr, err := r.Alloc(low, 1, 0x1000, 0x1000)
	require.NoError(t, err)
	highAddr, err := r.Alloc(high, 1, 0x1000, 0x1000)
	require.NoError(t, err)

	require.Greater(t, highAddr, lowAddr)
}

func TestFreedAddressReturnsForSameHandle(t *testing.T) {
	r := NewRegistry(testLogger(), 0)
	handle := openSimple(t, r)

	first, err := r.Alloc(handle, 7, 0x2000, 0x1000)
	require.NoError(t, err)

	// A neighboring allocation keeps the freed range from coalescing
	// with the rest of the space.
	_, err = r.Alloc(handle, 8, 0x2000, 0x1000)
	require.NoError(t, err)

	freed, err := r.Free(handle, 7)
	require.NoError(t, err)
	require.True(t, freed)

	again, err := r.Alloc(handle, 7, 0x2000, 0x1000)
	require.NoError(t, err)
	require.Equal(t, first, again)
}

func TestAlignmentHonored(t *testing.T) {
	r := NewRegistry(testLogger(), 0)
	handle := openSimple(t, r)

	for _, alignment := range []uint64{0x1000, 0x10000, 0x200000} {
		addr, err := r.Alloc(handle, uint32(alignment>>12), 0x1000, alignment)
		require.NoError(t, err)
		require.NotEqual(t, AllocInvalid, addr)
		require.Zero(t, addr%alignment)
	}

	// Alignment must be a power of two.
	addr, err := r.Alloc(handle, 99, 0x1000, 0x3000)
	require.NoError(t, err)
	require.Equal(t, AllocInvalid, addr)
}

func TestFailedAllocLeavesStateUntouched(t *testing.T) {
	r := NewRegistry(testLogger(), 0)
	handle, err := r.OpenFull(1, 0, 0x1000, 0x11000, TypeSimple, StrategyLowToHigh, 0)
	require.NoError(t, err)

	addr, err := r.Alloc(handle, 1, 0x8000, 0x1000)
	require.NoError(t, err)
	require.NotEqual(t, AllocInvalid, addr)

	// Too big for the remaining 0x8000 bytes.
	failed, err := r.Alloc(handle, 2, 0x9000, 0x1000)
	require.NoError(t, err)
	require.Equal(t, AllocInvalid, failed)

	require.NoError(t, r.Validate(handle))

	// The survivor is untouched and the remaining gap still works.
	allocated, err := r.IsAllocated(handle, 1, 0x8000, addr)
	require.NoError(t, err)
	require.True(t, allocated)

	addr2, err := r.Alloc(handle, 2, 0x8000, 0x1000)
	require.NoError(t, err)
	require.NotEqual(t, AllocInvalid, addr2)
}

func TestOpenRefCounting(t *testing.T) {
	r := NewRegistry(testLogger(), 0)

	const opens = 5
	var handle Handle
	for i := 0; i < opens; i++ {
		h, err := r.Open(1, 0, TypeSimple)
		require.NoError(t, err)
		if i == 0 {
			handle = h
		} else {
			require.Equal(t, handle, h)
		}
	}

	_, err := r.Alloc(handle, 1, 0x1000, 0x1000)
	require.NoError(t, err)

	for i := 0; i < opens-1; i++ {
		last, err := r.Close(handle)
		require.NoError(t, err)
		require.False(t, last)
	}

	// Last close with an outstanding allocation reports non-empty.
	empty, err := r.Close(handle)
	require.NoError(t, err)
	require.False(t, empty)

	_, err = r.Alloc(handle, 2, 0x1000, 0x1000)
	require.ErrorIs(t, err, ErrInvalidHandle)
}

func TestOpenTypeMismatch(t *testing.T) {
	r := NewRegistry(testLogger(), 0)

	_, err := r.Open(1, 0, TypeSimple)
	require.NoError(t, err)

	_, err = r.Open(1, 0, TypeReloc)
	require.ErrorIs(t, err, ErrTypeMismatch)

	_, err = r.OpenFull(1, 0, 0, 0, TypeSimple, StrategyHighToLow, 0)
	require.ErrorIs(t, err, ErrTypeMismatch)
}

func TestDistinctKeysGetDistinctInstances(t *testing.T) {
	r := NewRegistry(testLogger(), 0)

	h1, err := r.Open(1, 0, TypeSimple)
	require.NoError(t, err)
	h2, err := r.Open(1, 1, TypeSimple)
	require.NoError(t, err)
	h3, err := r.Open(2, 0, TypeSimple)
	require.NoError(t, err)

	require.NotEqual(t, h1, h2)
	require.NotEqual(t, h1, h3)

	// Same address can be reserved in both, since the spaces are
	// independent.
	ok, err := r.Reserve(h1, 0, 0x40000, 0x1000)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = r.Reserve(h2, 0, 0x40000, 0x1000)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRelocAllocator(t *testing.T) {
	r := NewRegistry(testLogger(), 0)
	handle, err := r.Open(1, 0, TypeReloc)
	require.NoError(t, err)

	first, err := r.Alloc(handle, 1, 0x1000, 0x1000)
	require.NoError(t, err)
	second, err := r.Alloc(handle, 2, 0x1000, 0x1000)
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	// Free always succeeds and tracks nothing.
	freed, err := r.Free(handle, 1)
	require.NoError(t, err)
	require.True(t, freed)

	allocated, err := r.IsAllocated(handle, 2, 0x1000, second)
	require.NoError(t, err)
	require.False(t, allocated)

	empty, err := r.Close(handle)
	require.NoError(t, err)
	require.True(t, empty)
}

func TestUnsupportedType(t *testing.T) {
	r := NewRegistry(testLogger(), 0)
	_, err := r.Open(1, 0, TypeNone)
	require.ErrorIs(t, err, ErrUnsupportedType)
}

func TestReservationsBlockAllocations(t *testing.T) {
	r := NewRegistry(testLogger(), 0)
	handle, err := r.OpenFull(1, 0, 0x1000, 0x6000, TypeSimple, StrategyLowToHigh, 0)
	require.NoError(t, err)

	ok, err := r.Reserve(handle, 0, 0x2000, 0x3000)
	require.NoError(t, err)
	require.True(t, ok)

	reserved, err := r.IsReserved(handle, 0x2000, 0x3000)
	require.NoError(t, err)
	require.True(t, reserved)

	// Only 0x1000 at each end remains.
	addr, err := r.Alloc(handle, 1, 0x2000, 0x1000)
	require.NoError(t, err)
	require.Equal(t, AllocInvalid, addr)

	addr, err = r.Alloc(handle, 1, 0x1000, 0x1000)
	require.NoError(t, err)
	require.Equal(t, uint64(0x1000), addr)

	require.NoError(t, r.Validate(handle))
}

func TestReserveWrappingSizeRejected(t *testing.T) {
	r := NewRegistry(testLogger(), 0)
	handle, err := r.OpenFull(1, 0, 0x1000, 0x100000, TypeSimple, StrategyLowToHigh, 0)
	require.NoError(t, err)

	// start+size wraps past zero; the request must not carve the chain.
	ok, err := r.Reserve(handle, 0, 0x2000, ^uint64(0))
	require.NoError(t, err)
	require.False(t, ok)

	reserved, err := r.IsReserved(handle, 0x2000, ^uint64(0))
	require.NoError(t, err)
	require.False(t, reserved)

	first, err := r.Alloc(handle, 1, 0x1000, 0x1000)
	require.NoError(t, err)
	require.Equal(t, uint64(0x1000), first)

	second, err := r.Alloc(handle, 2, 0x1000, 0x1000)
	require.NoError(t, err)
	require.Equal(t, uint64(0x2000), second)

	require.NoError(t, r.Validate(handle))
}

func TestRelocReserveWrappingSizeRejected(t *testing.T) {
	r := NewRegistry(testLogger(), 0)
	handle, err := r.Open(1, 0, TypeReloc)
	require.NoError(t, err)

	ok, err := r.Reserve(handle, 0, 0x2000, ^uint64(0))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestUnreserveRequiresExactMatch(t *testing.T) {
	r := NewRegistry(testLogger(), 0)
	handle := openSimple(t, r)

	ok, err := r.Reserve(handle, 5, 0x10000, 0x2000)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = r.Unreserve(handle, 5, 0x10000, 0x1000)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = r.Unreserve(handle, 6, 0x10000, 0x2000)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = r.Unreserve(handle, 5, 0x10000, 0x2000)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestBuildStatsString(t *testing.T) {
	r := NewRegistry(testLogger(), 0)
	handle := openSimple(t, r)

	_, err := r.Alloc(handle, 1, 0x1000, 0x1000)
	require.NoError(t, err)

	stats, err := r.BuildStatsString(handle)
	require.NoError(t, err)
	require.Contains(t, stats, `"Type":"TypeSimple"`)
	require.Contains(t, stats, `"Allocations":1`)
}

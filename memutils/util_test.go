package memutils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckPow2(t *testing.T) {
	require.NoError(t, CheckPow2(uint64(0x1000), "alignment"))
	require.NoError(t, CheckPow2(uint64(1), "alignment"))

	err := CheckPow2(uint64(0x1001), "alignment")
	require.ErrorIs(t, err, PowerOfTwoError)
}

func TestAlignUp(t *testing.T) {
	require.Equal(t, uint64(0x2000), AlignUp(uint64(0x1001), 0x1000))
	require.Equal(t, uint64(0x1000), AlignUp(uint64(0x1000), 0x1000))
	require.Equal(t, uint64(0), AlignUp(uint64(0), 0x1000))
}

func TestAlignDown(t *testing.T) {
	require.Equal(t, uint64(0x1000), AlignDown(uint64(0x1fff), 0x1000))
	require.Equal(t, uint64(0x1000), AlignDown(uint64(0x1000), 0x1000))
}

func TestCanonicalRoundTrip(t *testing.T) {
	addresses := []uint64{
		0,
		0x1000,
		0x7fff_ffff_f000,
		0xffff_ffff_f000,
	}

	for _, addr := range addresses {
		canonical := ToCanonical(addr)
		require.Equal(t, addr, FromCanonical(canonical))
	}

	// Bit 47 set means bits 48..63 replicate it.
	require.Equal(t, uint64(0xffff_8000_0000_0000), ToCanonical(uint64(1)<<47))
	// Below bit 47 the address is unchanged.
	require.Equal(t, uint64(0x7fff_ffff_ffff), ToCanonical(uint64(0x7fff_ffff_ffff)))
}

type testFlags uint32

var testFlagsMapping = NewFlagStringMapping[testFlags]()

func init() {
	testFlagsMapping.Register(1<<0, "FlagOne")
	testFlagsMapping.Register(1<<3, "FlagEight")
}

func TestFlagsToString(t *testing.T) {
	require.Equal(t, "", testFlagsMapping.FlagsToString(0))
	require.Equal(t, "FlagOne", testFlagsMapping.FlagsToString(1))
	require.Equal(t, "FlagOne|FlagEight", testFlagsMapping.FlagsToString(9))
	require.Equal(t, "FlagOne|0x4", testFlagsMapping.FlagsToString(5))
}

func TestDetailedStatistics(t *testing.T) {
	var stats DetailedStatistics
	stats.Clear()

	require.Equal(t, uint64(math.MaxUint64), stats.AllocationSizeMin)

	stats.AddAllocation(0x1000)
	stats.AddAllocation(0x4000)
	stats.AddReservation(0x2000)
	stats.AddFreeRange(0x8000)

	require.Equal(t, 2, stats.AllocationCount)
	require.Equal(t, uint64(0x5000), stats.AllocationBytes)
	require.Equal(t, 1, stats.ReservationCount)
	require.Equal(t, uint64(0x2000), stats.ReservationBytes)
	require.Equal(t, 1, stats.FreeRangeCount)
	require.Equal(t, uint64(0x1000), stats.AllocationSizeMin)
	require.Equal(t, uint64(0x4000), stats.AllocationSizeMax)

	var sum DetailedStatistics
	sum.Clear()
	sum.AddDetailedStatistics(&stats)
	require.Equal(t, stats, sum)
}

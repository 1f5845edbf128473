package tiling

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var roundTripCases = map[string]struct {
	Mode    Mode
	Surface Surface
}{
	"Linear": {
		Mode:    ModeNone,
		Surface: Surface{Stride: 100, Height: 37},
	},
	"X Tiled Single Tile": {
		Mode:    ModeX,
		Surface: Surface{Stride: 512, Height: 8},
	},
	"X Tiled Multi Tile": {
		Mode:    ModeX,
		Surface: Surface{Stride: 1024, Height: 32},
	},
	"Y Tiled Single Tile": {
		Mode:    ModeY,
		Surface: Surface{Stride: 128, Height: 32},
	},
	"Y Tiled Multi Tile": {
		Mode:    ModeY,
		Surface: Surface{Stride: 512, Height: 64},
	},
	"Tile4 Single Tile": {
		Mode:    Mode4,
		Surface: Surface{Stride: 128, Height: 32},
	},
	"Tile4 Multi Tile": {
		Mode:    Mode4,
		Surface: Surface{Stride: 256, Height: 64},
	},
}

func TestOffsetCoordsRoundTrip(t *testing.T) {
	for name, testCase := range roundTripCases {
		t.Run(name, func(t *testing.T) {
			for y := 0; y < testCase.Surface.Height; y++ {
				for x := 0; x < testCase.Surface.Stride; x++ {
					offset, err := Offset(testCase.Mode, testCase.Surface, x, y)
					require.NoError(t, err)

					gotX, gotY, err := Coords(testCase.Mode, testCase.Surface, offset)
					require.NoError(t, err)
					require.Equal(t, x, gotX)
					require.Equal(t, y, gotY)
				}
			}
		})
	}
}

func TestOffsetIsBijective(t *testing.T) {
	for name, testCase := range roundTripCases {
		t.Run(name, func(t *testing.T) {
			size := testCase.Surface.Stride * testCase.Surface.Height
			seen := make(map[uint64]bool, size)

			for y := 0; y < testCase.Surface.Height; y++ {
				for x := 0; x < testCase.Surface.Stride; x++ {
					offset, err := Offset(testCase.Mode, testCase.Surface, x, y)
					require.NoError(t, err)
					require.Less(t, offset, uint64(size))
					require.False(t, seen[offset])
					seen[offset] = true
				}
			}
		})
	}
}

func TestOffsetLinear(t *testing.T) {
	offset, err := Offset(ModeNone, Surface{Stride: 100, Height: 10}, 7, 3)
	require.NoError(t, err)
	require.Equal(t, uint64(307), offset)
}

func TestOffsetXTile(t *testing.T) {
	surface := Surface{Stride: 1024, Height: 16}

	// Second tile of the first tile row starts one page in.
	offset, err := Offset(ModeX, surface, 512, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(4096), offset)

	// Within a tile, rows advance by the tile width.
	offset, err = Offset(ModeX, surface, 3, 2)
	require.NoError(t, err)
	require.Equal(t, uint64(2*512+3), offset)
}

func TestOffsetYTile(t *testing.T) {
	surface := Surface{Stride: 128, Height: 32}

	// Within a tile, an OWord column holds 32 rows of 16 bytes.
	offset, err := Offset(ModeY, surface, 16, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(32*16), offset)

	offset, err = Offset(ModeY, surface, 3, 5)
	require.NoError(t, err)
	require.Equal(t, uint64(5*16+3), offset)
}

func TestOffsetRejectsBadSurfaces(t *testing.T) {
	_, err := Offset(ModeX, Surface{Stride: 500, Height: 8}, 0, 0)
	require.Error(t, err)

	_, err = Offset(ModeY, Surface{Stride: 128, Height: 30}, 0, 0)
	require.Error(t, err)

	_, err = Offset(ModeNone, Surface{Stride: 100, Height: 10}, 100, 0)
	require.Error(t, err)

	_, _, err = Coords(ModeNone, Surface{Stride: 100, Height: 10}, 1000)
	require.Error(t, err)
}

func TestSwizzleInvolution(t *testing.T) {
	swizzles := []Swizzle{SwizzleNone, Swizzle9, Swizzle9x10, Swizzle9x11, Swizzle9x10x11}
	offsets := []uint64{0, 0x40, 0x200, 0x3ff, 0x4000, 0x12345}

	for _, swizzle := range swizzles {
		for _, offset := range offsets {
			once, err := ApplySwizzle(swizzle, offset)
			require.NoError(t, err)
			twice, err := ApplySwizzle(swizzle, once)
			require.NoError(t, err)
			require.Equal(t, offset, twice)

			// Only bit 6 may change.
			require.Equal(t, offset&^uint64(1<<6), once&^uint64(1<<6))
		}
	}
}

func TestSwizzleBit9(t *testing.T) {
	// Bit 9 set flips bit 6.
	out, err := ApplySwizzle(Swizzle9, 1<<9)
	require.NoError(t, err)
	require.Equal(t, uint64(1<<9|1<<6), out)

	out, err = ApplySwizzle(Swizzle9, 1<<10)
	require.NoError(t, err)
	require.Equal(t, uint64(1<<10), out)
}

func TestSwizzleUnknownMode(t *testing.T) {
	_, err := ApplySwizzle(Swizzle(99), 0x40)
	require.ErrorIs(t, err, ErrUnsupportedSwizzle)
}

// Package tiling converts between linear (x, y) surface coordinates and
// the byte offsets used by the hardware's tiled memory layouts. Every
// supported mode has an exact inverse: Coords(Offset(x, y)) == (x, y).
package tiling

import (
	"github.com/cockroachdb/errors"
)

// Mode identifies a surface memory layout.
type Mode uint32

const (
	ModeNone Mode = iota
	ModeX
	ModeY
	Mode4
)

var modeMapping = map[Mode]string{
	ModeNone: "ModeNone",
	ModeX:    "ModeX",
	ModeY:    "ModeY",
	Mode4:    "Mode4",
}

func (m Mode) String() string {
	return modeMapping[m]
}

// All tile layouts occupy one 4KiB page.
const tileBytes = 4096

const (
	xTileWidth  = 512
	xTileHeight = 8

	yTileWidth  = 128
	yTileHeight = 32
	owordBytes  = 16

	tile4Width        = 128
	tile4Height       = 32
	subtileWidth      = 16
	subtileHeight     = 4
	subtileBytes      = subtileWidth * subtileHeight
	subtilesPerAxis   = 8
	subtilesPerTile   = subtilesPerAxis * subtilesPerAxis
)

// tile4SubtileOrder is the fixed permutation of the 8x8 subtile grid
// within one 4-tile. Each 256-byte unit packs a 2x2 group of 64-byte
// subtiles, and the units themselves advance row-major across the tile.
// Index is row*8+col in grid coordinates, value is the subtile's
// position in memory order.
var tile4SubtileOrder = [subtilesPerTile]int{
	0, 1, 4, 5, 8, 9, 12, 13,
	2, 3, 6, 7, 10, 11, 14, 15,
	16, 17, 20, 21, 24, 25, 28, 29,
	18, 19, 22, 23, 26, 27, 30, 31,
	32, 33, 36, 37, 40, 41, 44, 45,
	34, 35, 38, 39, 42, 43, 46, 47,
	48, 49, 52, 53, 56, 57, 60, 61,
	50, 51, 54, 55, 58, 59, 62, 63,
}

var tile4SubtileGrid [subtilesPerTile]int

func init() {
	for grid, mem := range tile4SubtileOrder {
		tile4SubtileGrid[mem] = grid
	}
}

// Surface describes the 2D layout being remapped. Stride is the row
// pitch in bytes, Height the number of rows. For tiled modes Stride
// must be a whole number of tile widths and Height a whole number of
// tile heights.
type Surface struct {
	Stride int
	Height int
}

func (s Surface) validate(mode Mode) error {
	if s.Stride <= 0 || s.Height <= 0 {
		return errors.Newf("invalid surface %dx%d", s.Stride, s.Height)
	}

	width, height := tileDims(mode)
	if mode != ModeNone {
		if s.Stride%width != 0 {
			return errors.Newf("stride %d is not a multiple of the %s tile width %d", s.Stride, mode, width)
		}
		if s.Height%height != 0 {
			return errors.Newf("height %d is not a multiple of the %s tile height %d", s.Height, mode, height)
		}
	}
	return nil
}

func tileDims(mode Mode) (width, height int) {
	switch mode {
	case ModeX:
		return xTileWidth, xTileHeight
	case ModeY:
		return yTileWidth, yTileHeight
	case Mode4:
		return tile4Width, tile4Height
	}
	return 1, 1
}

// Offset maps linear byte coordinates (x across the row, y down the
// surface) to the tiled byte offset within the surface.
func Offset(mode Mode, surface Surface, x, y int) (uint64, error) {
	if err := surface.validate(mode); err != nil {
		return 0, err
	}
	if x < 0 || x >= surface.Stride || y < 0 || y >= surface.Height {
		return 0, errors.Newf("coordinates (%d, %d) outside %dx%d surface", x, y, surface.Stride, surface.Height)
	}

	if mode == ModeNone {
		return uint64(y*surface.Stride + x), nil
	}

	width, height := tileDims(mode)
	tilesPerRow := surface.Stride / width
	tileIndex := (y/height)*tilesPerRow + x/width
	tx := x % width
	ty := y % height

	var within int
	switch mode {
	case ModeX:
		within = ty*xTileWidth + tx
	case ModeY:
		within = (tx/owordBytes)*(yTileHeight*owordBytes) + ty*owordBytes + tx%owordBytes
	case Mode4:
		grid := (ty/subtileHeight)*subtilesPerAxis + tx/subtileWidth
		within = tile4SubtileOrder[grid]*subtileBytes + (ty%subtileHeight)*subtileWidth + tx%subtileWidth
	default:
		return 0, errors.Newf("unsupported tiling mode %d", mode)
	}

	return uint64(tileIndex*tileBytes + within), nil
}

// Coords is the exact inverse of Offset.
func Coords(mode Mode, surface Surface, offset uint64) (x, y int, err error) {
	if err := surface.validate(mode); err != nil {
		return 0, 0, err
	}
	size := uint64(surface.Stride) * uint64(surface.Height)
	if offset >= size {
		return 0, 0, errors.Newf("offset %d outside %d-byte surface", offset, size)
	}

	if mode == ModeNone {
		return int(offset) % surface.Stride, int(offset) / surface.Stride, nil
	}

	width, height := tileDims(mode)
	tilesPerRow := surface.Stride / width
	tileIndex := int(offset) / tileBytes
	within := int(offset) % tileBytes
	tileX := (tileIndex % tilesPerRow) * width
	tileY := (tileIndex / tilesPerRow) * height

	var tx, ty int
	switch mode {
	case ModeX:
		ty = within / xTileWidth
		tx = within % xTileWidth
	case ModeY:
		column := within / (yTileHeight * owordBytes)
		rem := within % (yTileHeight * owordBytes)
		ty = rem / owordBytes
		tx = column*owordBytes + rem%owordBytes
	case Mode4:
		grid := tile4SubtileGrid[within/subtileBytes]
		rem := within % subtileBytes
		tx = (grid%subtilesPerAxis)*subtileWidth + rem%subtileWidth
		ty = (grid/subtilesPerAxis)*subtileHeight + rem/subtileWidth
	default:
		return 0, 0, errors.Newf("unsupported tiling mode %d", mode)
	}

	return tileX + tx, tileY + ty, nil
}

package intelbb

import (
	"github.com/cockroachdb/errors"
	"github.com/xingoxu/xorg-intel-gpu-tools-sub001/allocator"
	"github.com/xingoxu/xorg-intel-gpu-tools-sub001/tiling"
)

// Compression identifies the auxiliary-surface compression of a Buf.
type Compression uint32

const (
	CompressionNone Compression = iota
	CompressionCCS
)

var compressionMapping = map[Compression]string{
	CompressionNone: "CompressionNone",
	CompressionCCS:  "CompressionCCS",
}

func (c Compression) String() string {
	return compressionMapping[c]
}

// Buf is a higher-level 2D surface wrapped around a GEM object. The
// object handle is owned by whoever created it; a Buf only carries the
// layout metadata the command encoder needs, plus the surface's cached
// GPU address once a batch has resolved one.
type Buf struct {
	Handle uint32
	Size   uint64

	Width  int
	Height int
	Bpp    int
	// Stride is the row pitch in bytes.
	Stride int

	Tiling      tiling.Mode
	Swizzle     tiling.Swizzle
	Compression Compression

	// Addr is the surface's GPU virtual address, or allocator.AllocInvalid
	// before any batch has assigned one.
	Addr uint64
}

// NewBuf describes a surface over an existing GEM object.
func NewBuf(handle uint32, size uint64, width, height, bpp, stride int, mode tiling.Mode) *Buf {
	return &Buf{
		Handle: handle,
		Size:   size,
		Width:  width,
		Height: height,
		Bpp:    bpp,
		Stride: stride,
		Tiling: mode,
		Addr:   allocator.AllocInvalid,
	}
}

func (b *Buf) surface() tiling.Surface {
	rows := int(b.Size) / b.Stride
	return tiling.Surface{Stride: b.Stride, Height: rows}
}

// TiledOffset maps linear pixel coordinates to the byte offset within
// the object's backing store, applying the surface's tiling layout and
// bit-6 swizzle. This is the path pwrite-based drawing uses.
func (b *Buf) TiledOffset(x, y int) (uint64, error) {
	byteX := x * b.Bpp / 8
	offset, err := tiling.Offset(b.Tiling, b.surface(), byteX, y)
	if err != nil {
		return 0, errors.Wrapf(err, "tiling (%d, %d) on a %s surface", x, y, b.Tiling)
	}
	return tiling.ApplySwizzle(b.Swizzle, offset)
}

// LinearCoords inverts TiledOffset, recovering pixel coordinates from a
// byte offset in the backing store.
func (b *Buf) LinearCoords(offset uint64) (x, y int, err error) {
	offset, err = tiling.ApplySwizzle(b.Swizzle, offset)
	if err != nil {
		return 0, 0, err
	}
	byteX, y, err := tiling.Coords(b.Tiling, b.surface(), offset)
	if err != nil {
		return 0, 0, err
	}
	return byteX * 8 / b.Bpp, y, nil
}

package tiling

import (
	"github.com/cockroachdb/errors"
)

// Swizzle identifies the hardware's bit-6 address swizzling mode, used
// on older platforms for memory-channel interleaving independent of the
// tile layout.
type Swizzle uint32

const (
	SwizzleNone Swizzle = iota
	Swizzle9
	Swizzle9x10
	Swizzle9x11
	Swizzle9x10x11
)

var swizzleMapping = map[Swizzle]string{
	SwizzleNone:    "SwizzleNone",
	Swizzle9:       "Swizzle9",
	Swizzle9x10:    "Swizzle9x10",
	Swizzle9x11:    "Swizzle9x11",
	Swizzle9x10x11: "Swizzle9x10x11",
}

func (s Swizzle) String() string {
	return swizzleMapping[s]
}

// ErrUnsupportedSwizzle is returned for any swizzle mode outside the
// enumerated set. Producing pixels under an unknown swizzle would
// silently corrupt the surface, so callers must refuse to proceed.
var ErrUnsupportedSwizzle = errors.New("unsupported bit-6 swizzle mode")

// ApplySwizzle XORs selected upper address bits into bit 6 of addr.
// The transform is an involution: applying it twice restores addr.
func ApplySwizzle(mode Swizzle, addr uint64) (uint64, error) {
	switch mode {
	case SwizzleNone:
		return addr, nil
	case Swizzle9:
		return addr ^ (addr >> 3 & (1 << 6)), nil
	case Swizzle9x10:
		return addr ^ (addr >> 3 & (1 << 6)) ^ (addr >> 4 & (1 << 6)), nil
	case Swizzle9x11:
		return addr ^ (addr >> 3 & (1 << 6)) ^ (addr >> 5 & (1 << 6)), nil
	case Swizzle9x10x11:
		return addr ^ (addr >> 3 & (1 << 6)) ^ (addr >> 4 & (1 << 6)) ^ (addr >> 5 & (1 << 6)), nil
	}
	return 0, errors.Wrapf(ErrUnsupportedSwizzle, "mode %d", mode)
}

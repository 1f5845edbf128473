// Package devinfo resolves a hardware generation into the closed set of
// capability knobs the rest of the module consults. Profiles are built
// once when a device is opened; nothing downstream re-derives
// generation checks.
package devinfo

import (
	"github.com/xingoxu/xorg-intel-gpu-tools-sub001/drm"
	"github.com/xingoxu/xorg-intel-gpu-tools-sub001/memutils"
	"github.com/xingoxu/xorg-intel-gpu-tools-sub001/tiling"
)

// Caps is the capability profile of one device generation family.
type Caps struct {
	Gen int

	// AddressWidth is the GPU virtual address width in bits. Addresses
	// on 48-bit platforms must be canonicalized before submission.
	AddressWidth int

	// RequiresRelocations is set when the device cannot honor
	// user-space pinned addresses, forcing the relocation path.
	RequiresRelocations bool

	// TiledPitchInDwords selects the blitter pitch encoding for tiled
	// surfaces.
	TiledPitchInDwords bool

	// NeedsBBEPadPair requires a trailing MI_NOOP pair after
	// MI_BATCH_BUFFER_END.
	NeedsBBEPadPair bool

	// BlitterYNeedsSwctrl requires bracketing Y-tiled copies on the
	// copy engine with BCS_SWCTRL register loads.
	BlitterYNeedsSwctrl bool

	// CompressedSurfaceAlignment is the forced object alignment for
	// compressed surfaces.
	CompressedSurfaceAlignment uint64

	supportedTilings map[tiling.Mode]bool
}

// ForGen builds the capability profile for a generation.
func ForGen(gen int) Caps {
	caps := Caps{
		Gen:                        gen,
		AddressWidth:               32,
		RequiresRelocations:        gen < 8,
		TiledPitchInDwords:         gen >= 4,
		NeedsBBEPadPair:            gen == 5,
		BlitterYNeedsSwctrl:        gen >= 6,
		CompressedSurfaceAlignment: 0x1000,
		supportedTilings: map[tiling.Mode]bool{
			tiling.ModeNone: true,
			tiling.ModeX:    true,
			tiling.ModeY:    true,
		},
	}

	if gen >= 8 {
		caps.AddressWidth = 48
	}

	if gen >= 12 {
		caps.CompressedSurfaceAlignment = 0x10000
		caps.supportedTilings[tiling.Mode4] = true
		// The copy engine lost legacy Y decode when 4-tile arrived.
		delete(caps.supportedTilings, tiling.ModeY)
	}

	return caps
}

// Probe builds the profile for a generation and refines it with device
// parameters: a kernel without softpin support forces relocations even
// on hardware that could pin.
func Probe(gen int, params drm.ParamReader) Caps {
	caps := ForGen(gen)

	softpin, err := params.GetParam(drm.ParamHasExecSoftpin)
	if err != nil || softpin == 0 {
		caps.RequiresRelocations = true
	}

	return caps
}

// SupportsTiling reports whether surfaces of the given layout may be
// used with this device's blitter.
func (c Caps) SupportsTiling(mode tiling.Mode) bool {
	return c.supportedTilings[mode]
}

// Supports48BAddress reports whether objects should carry the 48-bit
// address flag on submission.
func (c Caps) Supports48BAddress() bool {
	return c.AddressWidth > 32
}

// Canonicalize sign-extends addr when the profile's address width
// demands it.
func (c Caps) Canonicalize(addr uint64) uint64 {
	if c.AddressWidth <= 32 {
		return addr
	}

	return memutils.ToCanonical(addr)
}

// Decanonicalize strips sign extension from a canonical address.
func (c Caps) Decanonicalize(addr uint64) uint64 {
	if c.AddressWidth <= 32 {
		return addr
	}

	return memutils.FromCanonical(addr)
}

// DefaultVMRange returns the usable GPU virtual address span for
// allocators on this device. The first page stays unused so that an
// address of zero can serve as a null sentinel.
func (c Caps) DefaultVMRange() (start, end uint64) {
	return 0x1000, uint64(1) << c.AddressWidth
}

package intelbb

import (
	"github.com/cockroachdb/errors"
	"github.com/xingoxu/xorg-intel-gpu-tools-sub001/drm"
	"github.com/xingoxu/xorg-intel-gpu-tools-sub001/tiling"
)

// Instruction opcodes for the copy engine.
const (
	miNoop             uint32 = 0
	miBatchBufferEnd   uint32 = 0xA << 23
	miLoadRegisterImm  uint32 = 0x22<<23 | 1
	xySrcCopyBltCmd    uint32 = 2<<29 | 0x53<<22
	xyColorBltCmd      uint32 = 2<<29 | 0x50<<22
	bltWriteAlpha      uint32 = 1 << 21
	bltWriteRGB        uint32 = 1 << 20
	bltSrcTiled        uint32 = 1 << 15
	bltDstTiled        uint32 = 1 << 11
	bltRopSrcCopy      uint32 = 0xcc << 16
	bltRopPatternCopy  uint32 = 0xf0 << 16
)

// BCS_SWCTRL selects the copy engine's tiling interpretation for
// Y-major surfaces. Writes are masked: the high half enables the
// corresponding low bits.
const (
	bcsSwctrl            uint32 = 0x22200
	bcsSrcTilingY        uint32 = 1 << 0
	bcsDstTilingY        uint32 = 1 << 1
	bcsSrcTilingYMask    uint32 = 1 << 16
	bcsDstTilingYMask    uint32 = 1 << 17
)

// colorDepthBits maps bits-per-pixel onto the BR13 depth field. The
// legacy blitter commands only encode up to 32bpp.
func colorDepthBits(bpp int) (uint32, error) {
	switch bpp {
	case 8:
		return 0, nil
	case 16:
		return 1 << 24, nil
	case 32:
		return 3 << 24, nil
	default:
		return 0, errors.Wrapf(ErrUnsupportedBpp, "%d bpp", bpp)
	}
}

func (b *BatchBuffer) checkBltSurface(buf *Buf) error {
	if !b.caps.SupportsTiling(buf.Tiling) {
		return errors.Wrapf(ErrUnsupportedTiling, "%s", buf.Tiling)
	}
	return nil
}

// bltPitch encodes a surface's pitch for the blitter: tiled surfaces on
// gen4+ express pitch in dwords.
func (b *BatchBuffer) bltPitch(buf *Buf) uint32 {
	pitch := uint32(buf.Stride)
	if buf.Tiling != tiling.ModeNone && b.caps.TiledPitchInDwords {
		pitch /= 4
	}
	return pitch
}

// emitSwctrl brackets a Y-tiled copy with a masked BCS_SWCTRL write.
func (b *BatchBuffer) emitSwctrl(value uint32) {
	b.Emit(miLoadRegisterImm)
	b.Emit(bcsSwctrl)
	b.Emit(value | bcsSrcTilingYMask | bcsDstTilingYMask)
}

func yTileSwctrlBits(src, dst *Buf) uint32 {
	var bits uint32
	if src != nil && src.Tiling == tiling.ModeY {
		bits |= bcsSrcTilingY
	}
	if dst != nil && dst.Tiling == tiling.ModeY {
		bits |= bcsDstTilingY
	}
	return bits
}

// BlitCopy records an XY_SRC_COPY_BLT moving a width x height pixel
// rectangle from (srcX, srcY) in src to (dstX, dstY) in dst. Both
// surfaces must share a color depth. Addresses are resolved through the
// batch, so both surfaces end up referenced by it.
func (b *BatchBuffer) BlitCopy(src, dst *Buf, srcX, srcY, dstX, dstY, width, height int) error {
	if src.Bpp != dst.Bpp {
		return errors.Wrapf(ErrUnsupportedBpp,
			"source is %d bpp, destination %d bpp", src.Bpp, dst.Bpp)
	}
	depth, err := colorDepthBits(dst.Bpp)
	if err != nil {
		return err
	}
	if err := b.checkBltSurface(src); err != nil {
		return err
	}
	if err := b.checkBltSurface(dst); err != nil {
		return err
	}

	if _, err := b.AddBuf(src, false); err != nil {
		return err
	}
	if _, err := b.AddBuf(dst, true); err != nil {
		return err
	}

	cmd := xySrcCopyBltCmd | bltWriteAlpha | bltWriteRGB
	if dst.Bpp < 32 {
		cmd &^= bltWriteAlpha | bltWriteRGB
	}
	if b.caps.Supports48BAddress() {
		cmd |= 8
	} else {
		cmd |= 6
	}
	if src.Tiling != tiling.ModeNone {
		cmd |= bltSrcTiled
	}
	if dst.Tiling != tiling.ModeNone {
		cmd |= bltDstTiled
	}

	swctrl := b.caps.BlitterYNeedsSwctrl && yTileSwctrlBits(src, dst) != 0
	if swctrl {
		b.emitSwctrl(yTileSwctrlBits(src, dst))
	}

	b.Emit(cmd)
	b.Emit(bltRopSrcCopy | depth | b.bltPitch(dst))
	b.Emit(uint32(dstY)<<16 | uint32(dstX))
	b.Emit(uint32(dstY+height)<<16 | uint32(dstX+width))
	if _, err := b.EmitReloc(dst.Handle, drm.DomainRender, drm.DomainRender, 0); err != nil {
		return err
	}
	b.Emit(uint32(srcY)<<16 | uint32(srcX))
	b.Emit(b.bltPitch(src))
	if _, err := b.EmitReloc(src.Handle, drm.DomainRender, 0, 0); err != nil {
		return err
	}

	if swctrl {
		b.emitSwctrl(0)
	}

	return nil
}

// ColorFill records an XY_COLOR_BLT filling a width x height pixel
// rectangle of dst with a solid color.
func (b *BatchBuffer) ColorFill(dst *Buf, dstX, dstY, width, height int, color uint32) error {
	depth, err := colorDepthBits(dst.Bpp)
	if err != nil {
		return err
	}
	if err := b.checkBltSurface(dst); err != nil {
		return err
	}

	if _, err := b.AddBuf(dst, true); err != nil {
		return err
	}

	cmd := xyColorBltCmd | bltWriteAlpha | bltWriteRGB
	if dst.Bpp < 32 {
		cmd &^= bltWriteAlpha | bltWriteRGB
	}
	if b.caps.Supports48BAddress() {
		cmd |= 5
	} else {
		cmd |= 4
	}
	if dst.Tiling != tiling.ModeNone {
		cmd |= bltDstTiled
	}

	swctrl := b.caps.BlitterYNeedsSwctrl && yTileSwctrlBits(nil, dst) != 0
	if swctrl {
		b.emitSwctrl(yTileSwctrlBits(nil, dst))
	}

	b.Emit(cmd)
	b.Emit(bltRopPatternCopy | depth | b.bltPitch(dst))
	b.Emit(uint32(dstY)<<16 | uint32(dstX))
	b.Emit(uint32(dstY+height)<<16 | uint32(dstX+width))
	if _, err := b.EmitReloc(dst.Handle, drm.DomainRender, drm.DomainRender, 0); err != nil {
		return err
	}
	b.Emit(color)

	if swctrl {
		b.emitSwctrl(0)
	}

	return nil
}

package intelbb

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xingoxu/xorg-intel-gpu-tools-sub001/devinfo"
	"github.com/xingoxu/xorg-intel-gpu-tools-sub001/drm"
	"github.com/xingoxu/xorg-intel-gpu-tools-sub001/tiling"
)

func dwords(b *BatchBuffer) []uint32 {
	data := b.Data()
	out := make([]uint32, len(data)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	return out
}

func (e *testEnv) newBuf(t *testing.T, width, height, bpp, stride int, mode tiling.Mode) *Buf {
	size := uint64(stride * height)
	handle := e.newObject(t, size)
	return NewBuf(handle, size, width, height, bpp, stride, mode)
}

func TestBlitCopyLinear(t *testing.T) {
	env := newTestBatch(t, 8, Options{})
	b := env.batch

	src := env.newBuf(t, 64, 64, 32, 256, tiling.ModeNone)
	dst := env.newBuf(t, 64, 64, 32, 256, tiling.ModeNone)

	require.NoError(t, b.BlitCopy(src, dst, 0, 0, 16, 8, 32, 24))

	srcEntry, _ := b.FindObject(src.Handle)
	dstEntry, _ := b.FindObject(dst.Handle)
	require.NotZero(t, dstEntry.Flags&drm.ObjectWrite)

	stream := dwords(b)
	require.Len(t, stream, 10)

	require.Equal(t, xySrcCopyBltCmd|bltWriteAlpha|bltWriteRGB|8, stream[0])
	require.Equal(t, bltRopSrcCopy|3<<24|256, stream[1])
	require.Equal(t, uint32(8<<16|16), stream[2])
	require.Equal(t, uint32((8+24)<<16|(16+32)), stream[3])
	require.Equal(t, dstEntry.Offset, uint64(stream[4])|uint64(stream[5])<<32)
	require.Equal(t, uint32(0), stream[6])
	require.Equal(t, uint32(256), stream[7])
	require.Equal(t, srcEntry.Offset, uint64(stream[8])|uint64(stream[9])<<32)
}

func TestBlitCopyTiledPitch(t *testing.T) {
	env := newTestBatch(t, 8, Options{})
	b := env.batch

	src := env.newBuf(t, 128, 32, 32, 512, tiling.ModeX)
	dst := env.newBuf(t, 128, 32, 32, 512, tiling.ModeX)

	require.NoError(t, b.BlitCopy(src, dst, 0, 0, 0, 0, 128, 32))

	stream := dwords(b)
	require.NotZero(t, stream[0]&bltSrcTiled)
	require.NotZero(t, stream[0]&bltDstTiled)

	// Tiled pitch travels in dwords on gen4+.
	require.Equal(t, uint32(512/4), stream[1]&0xffff)
	require.Equal(t, uint32(512/4), stream[7])
}

func TestBlitCopyYTileSwctrlBracket(t *testing.T) {
	env := newTestBatch(t, 9, Options{})
	b := env.batch

	src := env.newBuf(t, 128, 32, 32, 128, tiling.ModeY)
	dst := env.newBuf(t, 128, 32, 32, 256, tiling.ModeNone)

	require.NoError(t, b.BlitCopy(src, dst, 0, 0, 0, 0, 32, 32))

	stream := dwords(b)

	// Leading bracket selects Y-major reads for the source.
	require.Equal(t, miLoadRegisterImm, stream[0])
	require.Equal(t, bcsSwctrl, stream[1])
	require.Equal(t, bcsSrcTilingY|bcsSrcTilingYMask|bcsDstTilingYMask, stream[2])

	// Trailing bracket restores the default.
	last := len(stream)
	require.Equal(t, miLoadRegisterImm, stream[last-3])
	require.Equal(t, bcsSwctrl, stream[last-2])
	require.Equal(t, bcsSrcTilingYMask|bcsDstTilingYMask, stream[last-1])
}

func TestBlitCopyNoSwctrlForLinear(t *testing.T) {
	env := newTestBatch(t, 9, Options{})
	b := env.batch

	src := env.newBuf(t, 64, 64, 32, 256, tiling.ModeNone)
	dst := env.newBuf(t, 64, 64, 32, 256, tiling.ModeNone)

	require.NoError(t, b.BlitCopy(src, dst, 0, 0, 0, 0, 64, 64))
	require.NotEqual(t, miLoadRegisterImm, dwords(b)[0])
}

func TestBlitCopy16BppDropsRGBWrites(t *testing.T) {
	env := newTestBatch(t, 8, Options{})
	b := env.batch

	src := env.newBuf(t, 64, 64, 16, 128, tiling.ModeNone)
	dst := env.newBuf(t, 64, 64, 16, 128, tiling.ModeNone)

	require.NoError(t, b.BlitCopy(src, dst, 0, 0, 0, 0, 64, 64))

	stream := dwords(b)
	require.Zero(t, stream[0]&(bltWriteAlpha|bltWriteRGB))
	require.Equal(t, uint32(1<<24), stream[1]&(3<<24))
}

func TestBlitCopyRejectsMixedDepth(t *testing.T) {
	env := newTestBatch(t, 8, Options{})

	src := env.newBuf(t, 64, 64, 16, 128, tiling.ModeNone)
	dst := env.newBuf(t, 64, 64, 32, 256, tiling.ModeNone)

	err := env.batch.BlitCopy(src, dst, 0, 0, 0, 0, 64, 64)
	require.ErrorIs(t, err, ErrUnsupportedBpp)
}

func TestBlitCopyRejectsWideDepth(t *testing.T) {
	env := newTestBatch(t, 8, Options{})

	src := env.newBuf(t, 64, 64, 64, 512, tiling.ModeNone)
	dst := env.newBuf(t, 64, 64, 64, 512, tiling.ModeNone)

	err := env.batch.BlitCopy(src, dst, 0, 0, 0, 0, 64, 64)
	require.ErrorIs(t, err, ErrUnsupportedBpp)
}

func TestBlitCopyRejectsUnsupportedTiling(t *testing.T) {
	env := newTestBatch(t, 9, Options{})

	src := env.newBuf(t, 128, 32, 32, 128, tiling.Mode4)
	dst := env.newBuf(t, 128, 32, 32, 256, tiling.ModeNone)

	err := env.batch.BlitCopy(src, dst, 0, 0, 0, 0, 32, 32)
	require.ErrorIs(t, err, ErrUnsupportedTiling)
}

func TestBlitCopyRejectsLegacyYOnTile4Hardware(t *testing.T) {
	env := newTestBatch(t, 12, Options{})

	src := env.newBuf(t, 128, 32, 32, 128, tiling.ModeY)
	dst := env.newBuf(t, 128, 32, 32, 256, tiling.ModeNone)

	err := env.batch.BlitCopy(src, dst, 0, 0, 0, 0, 32, 32)
	require.ErrorIs(t, err, ErrUnsupportedTiling)
}

func TestBlitCopyLegacy32BitAddresses(t *testing.T) {
	env := newTestBatch(t, 8, Options{})

	device := env.device
	b, err := NewWithOptions(testLogger(), device, device.Sync, devinfo.ForGen(5), nil, Options{})
	require.NoError(t, err)
	defer func() { require.NoError(t, b.Destroy()) }()

	src := env.newBuf(t, 64, 64, 32, 256, tiling.ModeNone)
	dst := env.newBuf(t, 64, 64, 32, 256, tiling.ModeNone)
	require.NoError(t, b.BlitCopy(src, dst, 0, 0, 0, 0, 64, 64))

	// One dword per address and a shorter command length.
	stream := dwords(b)
	require.Len(t, stream, 8)
	require.Equal(t, uint32(6), stream[0]&0xff)
}

func TestColorFill(t *testing.T) {
	env := newTestBatch(t, 8, Options{})
	b := env.batch

	dst := env.newBuf(t, 64, 64, 32, 256, tiling.ModeNone)
	require.NoError(t, b.ColorFill(dst, 4, 2, 16, 8, 0xff00ff00))

	dstEntry, _ := b.FindObject(dst.Handle)

	stream := dwords(b)
	require.Len(t, stream, 7)
	require.Equal(t, xyColorBltCmd|bltWriteAlpha|bltWriteRGB|5, stream[0])
	require.Equal(t, bltRopPatternCopy|3<<24|256, stream[1])
	require.Equal(t, uint32(2<<16|4), stream[2])
	require.Equal(t, uint32((2+8)<<16|(4+16)), stream[3])
	require.Equal(t, dstEntry.Offset, uint64(stream[4])|uint64(stream[5])<<32)
	require.Equal(t, uint32(0xff00ff00), stream[6])
}

func TestColorFillThenExec(t *testing.T) {
	env := newTestBatch(t, 8, Options{})
	b := env.batch

	dst := env.newBuf(t, 64, 64, 32, 256, tiling.ModeNone)
	require.NoError(t, b.ColorFill(dst, 0, 0, 64, 64, 0x11223344))
	require.NoError(t, b.FlushBlit(true))

	// Seven fill dwords plus the terminator, padded to a qword.
	require.Len(t, env.device.ExecCalls, 1)
	require.Equal(t, uint32(32), env.device.ExecCalls[0].BatchLen)
}

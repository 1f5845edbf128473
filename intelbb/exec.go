package intelbb

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"
	"github.com/xingoxu/xorg-intel-gpu-tools-sub001/drm"
)

// Exec submits the recorded stream. endOffset bounds the executed
// portion of the scratch buffer (the recording cursor is the usual
// value). When sync is set the call blocks until the submission's
// out-fence signals.
//
// Kernel rejection is returned unchanged so callers can distinguish
// error classes (ENOSPC from an impossible pin, EINVAL from a malformed
// stream, and so on).
func (b *BatchBuffer) Exec(endOffset int, flags drm.ExecFlags, sync bool) error {
	b.logger.Debug("BatchBuffer::Exec",
		slog.Int("end_offset", endOffset),
		slog.String("flags", flags.String()),
	)

	entries := b.cache.all(b.handle)

	buffers := make([]drm.ExecObject, len(entries))
	for i, entry := range entries {
		buffers[i] = entry.ExecObject
		buffers[i].Relocations = nil
	}
	if b.enforceRelocs && len(buffers) > 0 {
		buffers[0].Relocations = b.relocs
	}

	if err := b.device.WriteObject(b.handle, 0, b.data[:endOffset]); err != nil {
		return errors.Wrap(err, "uploading batch contents")
	}

	flags |= drm.ExecBatchFirst | drm.ExecFenceOut
	if b.enforceRelocs {
		// The kernel patches addresses; promising pre-resolved offsets
		// would be a lie.
		flags &^= drm.ExecNoReloc
	} else {
		flags |= drm.ExecNoReloc
	}

	execbuf := drm.ExecBuffer{
		Buffers:  buffers,
		BatchLen: uint32(endOffset),
		Flags:    flags,
		Context:  b.ctx,
		FenceIn:  -1,
		FenceOut: -1,
	}

	if err := b.device.Execbuffer(&execbuf); err != nil {
		return err
	}

	for i, entry := range entries {
		kernelOffset := execbuf.Buffers[i].Offset
		if !b.enforceRelocs && kernelOffset != entry.Offset {
			return errors.Wrapf(ErrAddressMismatch,
				"object %d pinned at 0x%x, kernel placed it at 0x%x",
				entry.Handle, entry.Offset, kernelOffset)
		}
		entry.Offset = kernelOffset
	}
	for _, buf := range b.bufs {
		if entry, ok := b.cache.find(buf.Handle); ok {
			buf.Addr = b.caps.Decanonicalize(entry.Offset)
		}
	}

	if execbuf.FenceOut >= 0 {
		if err := b.fences.record(execbuf.FenceOut); err != nil {
			return err
		}
	}

	if sync || b.flags&BatchCreateSyncDebug != 0 {
		return b.Sync()
	}
	return nil
}

// Sync blocks until all work submitted from this batch has completed.
func (b *BatchBuffer) Sync() error {
	return b.fences.wait(drm.WaitForever)
}

// WaitWithTimeout is Sync bounded by a timeout in milliseconds. On
// expiry the fence stays open, so the wait can be retried.
func (b *BatchBuffer) WaitWithTimeout(timeoutMillis int) error {
	return b.fences.wait(timeoutMillis)
}

// Fence exposes the batch's merged out-fence descriptor, or -1 when no
// work is outstanding. Ownership stays with the batch.
func (b *BatchBuffer) Fence() int {
	return b.fences.Fence()
}

// Flush terminates the stream, submits it on the given engine, and soft
// resets so recording can continue at the same addresses. An empty
// batch is a no-op.
func (b *BatchBuffer) Flush(ring drm.ExecFlags, sync bool) error {
	if b.cursor == 0 {
		return nil
	}

	b.EmitBBE()
	if err := b.Exec(b.cursor, ring, sync); err != nil {
		return err
	}
	return b.Reset()
}

// FlushRender flushes on the render engine.
func (b *BatchBuffer) FlushRender(sync bool) error {
	return b.Flush(drm.ExecRender, sync)
}

// FlushBlit flushes on the dedicated blitter when the device has one;
// before gen6 blits share the render ring.
func (b *BatchBuffer) FlushBlit(sync bool) error {
	ring := drm.ExecBlt
	if b.caps.Gen < 6 {
		ring = drm.ExecDefault
	}
	return b.Flush(ring, sync)
}

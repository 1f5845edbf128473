// Package intelbb builds GPU command buffers: it records instructions
// into a CPU scratch mirror, tracks every object the batch references,
// resolves GPU virtual addresses through either kernel relocations or a
// user-space allocator, and submits the assembled stream through the
// execbuffer boundary.
package intelbb

import (
	"encoding/binary"
	"sync"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"
	"github.com/xingoxu/xorg-intel-gpu-tools-sub001/allocator"
	"github.com/xingoxu/xorg-intel-gpu-tools-sub001/devinfo"
	"github.com/xingoxu/xorg-intel-gpu-tools-sub001/drm"
	"github.com/xingoxu/xorg-intel-gpu-tools-sub001/memutils"
)

// CreateFlags indicate specific batch behaviors to activate or deactivate
type CreateFlags int32

var batchCreateFlagsMapping = memutils.NewFlagStringMapping[CreateFlags]()

func (f CreateFlags) Register(str string) {
	batchCreateFlagsMapping.Register(f, str)
}
func (f CreateFlags) String() string {
	return batchCreateFlagsMapping.FlagsToString(f)
}

const (
	// BatchCreateSyncDebug waits for completion after every submission,
	// turning asynchronous failures into synchronous ones.
	BatchCreateSyncDebug CreateFlags = 1 << iota
)

func init() {
	BatchCreateSyncDebug.Register("BatchCreateSyncDebug")
}

const defaultBatchSize = 4096

// Options contains optional settings when creating a batch buffer
type Options struct {
	Flags CreateFlags

	// Fd identifies the device for allocator sharing; allocators opened
	// with the same (Fd, Ctx) key alias the same address space.
	Fd  int
	Ctx uint32

	// Size is the scratch buffer size in bytes, rounded up to a page.
	Size int

	// AllocatorType picks the addressing mode. TypeNone forces kernel
	// relocations. Devices without softpin support downgrade to
	// TypeNone silently: older hardware has no alternative.
	AllocatorType allocator.Type
	Strategy      allocator.Strategy
	// Start/End override the allocator's VM range; zero End selects the
	// device default.
	Start            uint64
	End              uint64
	DefaultAlignment uint64

	// Tracking registers the batch for bulk allocator relinking after
	// multiprocess teardown.
	Tracking *Tracking
}

// BatchBuffer owns one GPU command buffer under construction: the CPU
// scratch it is encoded into, the backing GEM object, the cache of all
// referenced objects, and either a live allocator handle (softpin) or a
// relocation list (reloc mode). It is not internally locked; one batch
// must not be driven by two goroutines without external
// synchronization.
type BatchBuffer struct {
	logger  *slog.Logger
	device  drm.Device
	syncOps drm.SyncOps
	caps    devinfo.Caps

	flags  CreateFlags
	fd     int
	ctx    uint32
	size   int
	data   []byte
	cursor int
	handle uint32

	// enforceRelocs is true exactly when no allocator handle is
	// attached; the two addressing modes are mutually exclusive for the
	// life of the instance.
	enforceRelocs  bool
	allocs         allocator.Allocator
	allocHandle    allocator.Handle
	allocType      allocator.Type
	allocStrategy  allocator.Strategy
	allocStart     uint64
	allocEnd       uint64
	allocAlignment uint64

	cache  *objectCache
	relocs []drm.RelocationEntry
	bufs   []*Buf

	fences   fenceTracker
	refCount int
	tracking *Tracking
}

// New creates a batch with the default softpin configuration (or reloc
// mode when the device requires it).
func New(logger *slog.Logger, device drm.Device, syncOps drm.SyncOps, caps devinfo.Caps, allocs allocator.Allocator, size int) (*BatchBuffer, error) {
	return NewWithOptions(logger, device, syncOps, caps, allocs, Options{
		Size:          size,
		AllocatorType: allocator.TypeSimple,
	})
}

// NewWithOptions creates a batch buffer.
//
// allocs may be nil only when the options (or the device capabilities)
// select relocation mode.
func NewWithOptions(logger *slog.Logger, device drm.Device, syncOps drm.SyncOps, caps devinfo.Caps, allocs allocator.Allocator, o Options) (*BatchBuffer, error) {
	logger.Debug("BatchBuffer::NewWithOptions",
		slog.Int("size", o.Size),
		slog.String("allocator_type", o.AllocatorType.String()),
	)

	if device == nil {
		return nil, errors.New("batch creation requires a device")
	}

	size := o.Size
	if size == 0 {
		size = defaultBatchSize
	}
	size = memutils.AlignUp(size, defaultBatchSize)

	typ := o.AllocatorType
	if caps.RequiresRelocations {
		typ = allocator.TypeNone
	}

	b := &BatchBuffer{
		logger:        logger,
		device:        device,
		syncOps:       syncOps,
		caps:          caps,
		flags:         o.Flags,
		fd:            o.Fd,
		ctx:           o.Ctx,
		size:          size,
		data:          make([]byte, size),
		enforceRelocs: typ == allocator.TypeNone,
		cache:         newObjectCache(),
		fences:        newFenceTracker(syncOps),
		refCount:      1,
		tracking:      o.Tracking,
	}

	if !b.enforceRelocs {
		if allocs == nil {
			return nil, errors.New("softpin mode requires an allocator")
		}

		start, end := o.Start, o.End
		if end == 0 {
			start, end = caps.DefaultVMRange()
		}

		handle, err := allocs.OpenFull(o.Fd, o.Ctx, start, end, typ, o.Strategy, o.DefaultAlignment)
		if err != nil {
			return nil, errors.Wrap(err, "opening batch allocator")
		}

		b.allocs = allocs
		b.allocHandle = handle
		b.allocType = typ
		b.allocStrategy = o.Strategy
		b.allocStart = start
		b.allocEnd = end
		b.allocAlignment = o.DefaultAlignment
	}

	handle, err := device.CreateObject(uint64(size))
	if err != nil {
		b.closeAllocator()
		return nil, errors.Wrap(err, "creating batch backing object")
	}
	b.handle = handle

	if _, err := b.AddObject(handle, uint64(size), allocator.AllocInvalid, 0, false); err != nil {
		_ = device.CloseObject(handle)
		b.closeAllocator()
		return nil, err
	}

	if b.tracking != nil {
		b.tracking.add(b)
	}

	return b, nil
}

func (b *BatchBuffer) closeAllocator() {
	if b.allocs != nil {
		_, _ = b.allocs.Close(b.allocHandle)
		b.allocs = nil
		b.allocHandle = 0
	}
}

// Handle returns the batch's backing object handle. It changes on every
// reset, since the kernel consumes the object at submission.
func (b *BatchBuffer) Handle() uint32 {
	return b.handle
}

// Caps returns the device capability profile the batch encodes for.
func (b *BatchBuffer) Caps() devinfo.Caps {
	return b.caps
}

// EnforcesRelocs reports whether the batch runs in relocation mode.
func (b *BatchBuffer) EnforcesRelocs() bool {
	return b.enforceRelocs
}

// AddObject references an object from this batch.
//
// Passing allocator.AllocInvalid as offset requests a fresh address in
// softpin mode (in reloc mode the kernel assigns one). An explicit
// offset must be consistent with existing allocator bookkeeping; once
// an address is pinned it must never drift, so a mismatch fails with
// ErrAddressMismatch.
func (b *BatchBuffer) AddObject(handle uint32, size, offset, alignment uint64, write bool) (*Object, error) {
	if alignment != 0 {
		if err := memutils.CheckPow2(alignment, "object alignment"); err != nil {
			return nil, err
		}
	}

	entry, existed := b.cache.find(handle)
	if existed {
		if !b.enforceRelocs && offset != allocator.AllocInvalid &&
			entry.Offset != b.caps.Canonicalize(offset) {
			return nil, errors.Wrapf(ErrAddressMismatch,
				"object %d pinned at 0x%x, re-added at 0x%x", handle, entry.Offset, offset)
		}
		if write {
			entry.Flags |= drm.ObjectWrite
		}
		return entry, nil
	}

	addr := offset
	reserved := false
	if !b.enforceRelocs {
		if addr == allocator.AllocInvalid {
			allocated, err := b.allocs.Alloc(b.allocHandle, handle, size, alignment)
			if err != nil {
				return nil, err
			}
			if allocated == allocator.AllocInvalid {
				return nil, errors.Wrapf(ErrAddressSpaceExhausted,
					"object %d size 0x%x alignment 0x%x", handle, size, alignment)
			}
			addr = allocated
		} else {
			pinned, err := b.allocs.IsAllocated(b.allocHandle, handle, size, addr)
			if err != nil {
				return nil, err
			}
			if !pinned {
				ok, err := b.allocs.Reserve(b.allocHandle, handle, addr, size)
				if err != nil {
					return nil, err
				}
				if !ok {
					return nil, errors.Wrapf(ErrAddressMismatch,
						"object %d requested address 0x%x collides with allocator state", handle, addr)
				}
				reserved = true
			}
		}
	} else if addr == allocator.AllocInvalid {
		addr = 0
	}

	entry = b.cache.add(handle)
	entry.size = size
	entry.reserved = reserved
	entry.Alignment = alignment

	if b.enforceRelocs {
		entry.Offset = addr
	} else {
		entry.Offset = b.caps.Canonicalize(addr)
		entry.Flags |= drm.ObjectPinned
		if b.caps.Supports48BAddress() {
			entry.Flags |= drm.ObjectSupports48BAddress
		}
	}
	if write {
		entry.Flags |= drm.ObjectWrite
	}

	return entry, nil
}

// RemoveObject detaches an object, releasing its allocator range (and
// any shadowing reservation) in softpin mode. It reports false for
// handles the batch does not reference.
func (b *BatchBuffer) RemoveObject(handle uint32) (bool, error) {
	entry, ok := b.cache.find(handle)
	if !ok {
		return false, nil
	}

	if !b.enforceRelocs {
		addr := b.caps.Decanonicalize(entry.Offset)
		freed, err := b.allocs.Free(b.allocHandle, handle)
		if err != nil {
			return false, err
		}
		if !freed || entry.reserved {
			if _, err := b.allocs.Unreserve(b.allocHandle, handle, addr, entry.size); err != nil {
				return false, err
			}
		}
	}

	b.cache.remove(handle)
	return true, nil
}

// FindObject returns the cache entry for handle, if any.
func (b *BatchBuffer) FindObject(handle uint32) (*Object, bool) {
	return b.cache.find(handle)
}

// ObjectCount reports the number of referenced objects, including the
// batch's own backing object.
func (b *BatchBuffer) ObjectCount() int {
	return b.cache.len()
}

// SetObjectFlag ORs a kernel-visible flag into one entry. Unknown
// handles are reported, not fatal.
func (b *BatchBuffer) SetObjectFlag(handle uint32, flag drm.ObjectFlags) error {
	entry, ok := b.cache.find(handle)
	if !ok {
		return errors.Wrapf(ErrUnknownObject, "handle %d", handle)
	}
	entry.Flags |= flag
	return nil
}

// ClearObjectFlag removes a kernel-visible flag from one entry.
func (b *BatchBuffer) ClearObjectFlag(handle uint32, flag drm.ObjectFlags) error {
	entry, ok := b.cache.find(handle)
	if !ok {
		return errors.Wrapf(ErrUnknownObject, "handle %d", handle)
	}
	entry.Flags &^= flag
	return nil
}

// AddBuf attaches a surface to the batch. Compressed surfaces are
// forced to the device's compression alignment. The buf's cached
// address is refreshed from the cache entry.
func (b *BatchBuffer) AddBuf(buf *Buf, write bool) (*Object, error) {
	var alignment uint64
	if buf.Compression != CompressionNone {
		alignment = b.caps.CompressedSurfaceAlignment
	}

	entry, err := b.AddObject(buf.Handle, buf.Size, buf.Addr, alignment, write)
	if err != nil {
		return nil, err
	}

	if !b.enforceRelocs {
		buf.Addr = b.caps.Decanonicalize(entry.Offset)
	}

	for _, attached := range b.bufs {
		if attached == buf {
			return entry, nil
		}
	}
	b.bufs = append(b.bufs, buf)
	return entry, nil
}

// RemoveBuf detaches a surface and invalidates its cached address.
func (b *BatchBuffer) RemoveBuf(buf *Buf) (bool, error) {
	removed, err := b.RemoveObject(buf.Handle)
	if err != nil {
		return false, err
	}

	for i, attached := range b.bufs {
		if attached == buf {
			b.bufs = append(b.bufs[:i], b.bufs[i+1:]...)
			break
		}
	}
	buf.Addr = allocator.AllocInvalid
	return removed, nil
}

// Emit appends one instruction dword at the cursor. Writing past the
// scratch buffer is a recording bug and panics with ErrBatchFull.
func (b *BatchBuffer) Emit(dword uint32) {
	if b.cursor+4 > len(b.data) {
		panic(errors.Wrapf(ErrBatchFull, "cursor 0x%x size 0x%x", b.cursor, len(b.data)))
	}
	binary.LittleEndian.PutUint32(b.data[b.cursor:], dword)
	b.cursor += 4
}

// Emit64 appends a qword as two little-endian dwords.
func (b *BatchBuffer) Emit64(qword uint64) {
	b.Emit(uint32(qword))
	b.Emit(uint32(qword >> 32))
}

// EmitData appends raw bytes at the cursor, padded to dword size.
func (b *BatchBuffer) EmitData(data []byte) {
	padded := memutils.AlignUp(len(data), 4)
	if b.cursor+padded > len(b.data) {
		panic(errors.Wrapf(ErrBatchFull, "cursor 0x%x size 0x%x", b.cursor, len(b.data)))
	}
	copy(b.data[b.cursor:], data)
	b.cursor += padded
}

// Cursor returns the current write offset in bytes.
func (b *BatchBuffer) Cursor() int {
	return b.cursor
}

// Data exposes the recorded scratch contents up to the cursor.
func (b *BatchBuffer) Data() []byte {
	return b.data[:b.cursor]
}

// AlignCursor pads the stream with MI_NOOP up to the alignment.
func (b *BatchBuffer) AlignCursor(alignment int) {
	for b.cursor%alignment != 0 {
		b.Emit(miNoop)
	}
}

// EmitReloc emits the GPU address of a referenced object (plus delta)
// into the stream at the cursor, recording a relocation entry when the
// kernel does the addressing. The emitted address is returned.
func (b *BatchBuffer) EmitReloc(target uint32, readDomains, writeDomain, delta uint32) (uint64, error) {
	entry, ok := b.cache.find(target)
	if !ok {
		return 0, errors.Wrapf(ErrUnknownObject, "relocation target %d", target)
	}

	address := entry.Offset + uint64(delta)

	if b.enforceRelocs {
		b.relocs = append(b.relocs, drm.RelocationEntry{
			TargetHandle:   target,
			Delta:          delta,
			Offset:         uint64(b.cursor),
			PresumedOffset: entry.Offset,
			ReadDomains:    readDomains,
			WriteDomain:    writeDomain,
		})
	}
	if writeDomain != 0 {
		entry.Flags |= drm.ObjectWrite
	}

	if b.caps.Supports48BAddress() {
		b.Emit64(address)
	} else {
		b.Emit(uint32(address))
	}

	return address, nil
}

// EmitBBE terminates the command stream with MI_BATCH_BUFFER_END,
// applying the generation quirks around it.
func (b *BatchBuffer) EmitBBE() {
	b.Emit(miBatchBufferEnd)
	if b.caps.NeedsBBEPadPair {
		b.Emit(miNoop)
		b.Emit(miNoop)
	}
	b.AlignCursor(8)
}

// Reset discards recorded instructions and relocations and re-creates
// the backing object, which the execbuffer ioctl consumes. The object
// cache is kept: in softpin mode the fresh backing object is pinned
// back at its prior address.
func (b *BatchBuffer) Reset() error {
	return b.reset(false)
}

// ResetPurge additionally detaches all surfaces and clears the object
// cache, forcing every subsequently referenced object to re-request its
// address.
func (b *BatchBuffer) ResetPurge() error {
	return b.reset(true)
}

func (b *BatchBuffer) reset(purge bool) error {
	b.logger.Debug("BatchBuffer::reset", slog.Bool("purge", purge))

	b.relocs = nil
	b.cursor = 0
	for i := range b.data {
		b.data[i] = 0
	}

	var prevAddr uint64 = allocator.AllocInvalid
	if entry, ok := b.cache.find(b.handle); ok && !b.enforceRelocs && !purge {
		prevAddr = b.caps.Decanonicalize(entry.Offset)
	}

	if _, err := b.RemoveObject(b.handle); err != nil {
		return err
	}
	if err := b.device.CloseObject(b.handle); err != nil {
		return err
	}

	if purge {
		for _, buf := range b.bufs {
			buf.Addr = allocator.AllocInvalid
		}
		b.bufs = nil

		for _, entry := range b.cache.snapshot() {
			if _, err := b.RemoveObject(entry.Handle); err != nil {
				return err
			}
		}
	}

	handle, err := b.device.CreateObject(uint64(b.size))
	if err != nil {
		return errors.Wrap(err, "re-creating batch backing object")
	}
	b.handle = handle

	_, err = b.AddObject(handle, uint64(b.size), prevAddr, 0, false)
	return err
}

// AddRef registers another owner of the batch.
func (b *BatchBuffer) AddRef() {
	b.refCount++
}

// Release drops one reference and tears the batch down when it was the
// last one.
func (b *BatchBuffer) Release() error {
	b.refCount--
	if b.refCount > 0 {
		return nil
	}
	return b.teardown()
}

// Destroy tears the batch down. It requires exclusive ownership:
// destroying a shared batch reports ErrBatchShared instead of
// proceeding, so the caller decides the severity.
func (b *BatchBuffer) Destroy() error {
	if b.refCount != 1 {
		return errors.Wrapf(ErrBatchShared, "%d references outstanding", b.refCount)
	}
	b.refCount = 0
	return b.teardown()
}

func (b *BatchBuffer) teardown() error {
	b.logger.Debug("BatchBuffer::teardown")

	for _, buf := range b.bufs {
		buf.Addr = allocator.AllocInvalid
	}
	b.bufs = nil

	for _, entry := range b.cache.snapshot() {
		if _, err := b.RemoveObject(entry.Handle); err != nil {
			return err
		}
	}
	b.relocs = nil

	if err := b.device.CloseObject(b.handle); err != nil {
		return err
	}
	b.handle = 0

	b.closeAllocator()

	if err := b.fences.close(); err != nil {
		return err
	}

	if b.tracking != nil {
		b.tracking.remove(b)
		b.tracking = nil
	}

	return nil
}

// Tracking is the process-wide list of live batches, used to relink
// every batch's allocator after multiprocess teardown. Its mutex is
// distinct from any per-batch state.
type Tracking struct {
	mutex   sync.Mutex
	batches map[*BatchBuffer]struct{}
}

func NewTracking() *Tracking {
	return &Tracking{batches: make(map[*BatchBuffer]struct{})}
}

func (t *Tracking) add(b *BatchBuffer) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.batches[b] = struct{}{}
}

func (t *Tracking) remove(b *BatchBuffer) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	delete(t.batches, b)
}

// Count reports the number of tracked batches.
func (t *Tracking) Count() int {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return len(t.batches)
}

// RelinkAllocators reopens every tracked batch's allocator against
// allocs and purges its cache so addresses are re-derived. Used when
// the previous allocator surface (e.g. a broker connection) is gone.
func (t *Tracking) RelinkAllocators(allocs allocator.Allocator) error {
	t.mutex.Lock()
	batches := make([]*BatchBuffer, 0, len(t.batches))
	for b := range t.batches {
		batches = append(batches, b)
	}
	t.mutex.Unlock()

	for _, b := range batches {
		if err := b.relinkAllocator(allocs); err != nil {
			return err
		}
	}
	return nil
}

func (b *BatchBuffer) relinkAllocator(allocs allocator.Allocator) error {
	if b.enforceRelocs {
		return nil
	}

	// The old side may already be gone; closing is best effort.
	_, _ = b.allocs.Close(b.allocHandle)

	handle, err := allocs.OpenFull(b.fd, b.ctx, b.allocStart, b.allocEnd, b.allocType, b.allocStrategy, b.allocAlignment)
	if err != nil {
		return errors.Wrap(err, "relinking batch allocator")
	}
	b.allocs = allocs
	b.allocHandle = handle

	return b.ResetPurge()
}

// Package drmtest provides in-memory fakes for the drm boundary so
// batch and allocator behavior can be exercised without a device node.
package drmtest

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/xingoxu/xorg-intel-gpu-tools-sub001/drm"
)

// FakeDevice implements drm.Device against in-memory object storage.
// Submissions are recorded rather than executed; objects without a
// pinned address are assigned monotonically increasing offsets the way
// a relocating kernel would.
type FakeDevice struct {
	mutex sync.Mutex

	nextHandle uint32
	objects    map[uint32][]byte

	// ExecCalls records a deep copy of every submission received.
	ExecCalls []drm.ExecBuffer
	// ExecErr, when set, is returned from Execbuffer without recording
	// side effects on object offsets.
	ExecErr error
	// Params backs GetParam; missing entries report EINVAL-style errors.
	Params map[int32]int

	nextOffset uint64

	Sync *FakeSync
}

func NewFakeDevice() *FakeDevice {
	return &FakeDevice{
		objects:    make(map[uint32][]byte),
		Params:     make(map[int32]int),
		nextOffset: 0x10000,
		Sync:       NewFakeSync(),
	}
}

var _ drm.Device = &FakeDevice{}
var _ drm.ParamReader = &FakeDevice{}

func (d *FakeDevice) CreateObject(size uint64) (uint32, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.nextHandle++
	d.objects[d.nextHandle] = make([]byte, size)
	return d.nextHandle, nil
}

func (d *FakeDevice) WriteObject(handle uint32, offset uint64, data []byte) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	backing, ok := d.objects[handle]
	if !ok {
		return errors.Newf("write to unknown object %d", handle)
	}
	if offset+uint64(len(data)) > uint64(len(backing)) {
		return errors.Newf("write beyond object %d size %d", handle, len(backing))
	}
	copy(backing[offset:], data)
	return nil
}

func (d *FakeDevice) ReadObject(handle uint32, offset uint64, data []byte) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	backing, ok := d.objects[handle]
	if !ok {
		return errors.Newf("read from unknown object %d", handle)
	}
	if offset+uint64(len(data)) > uint64(len(backing)) {
		return errors.Newf("read beyond object %d size %d", handle, len(backing))
	}
	copy(data, backing[offset:])
	return nil
}

func (d *FakeDevice) CloseObject(handle uint32) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if _, ok := d.objects[handle]; !ok {
		return errors.Newf("close of unknown object %d", handle)
	}
	delete(d.objects, handle)
	return nil
}

func (d *FakeDevice) WaitObject(handle uint32, timeoutNs int64) error {
	return nil
}

func (d *FakeDevice) GetParam(param int32) (int, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	value, ok := d.Params[param]
	if !ok {
		return 0, errors.Newf("unknown device parameter %d", param)
	}
	return value, nil
}

// ObjectData returns a copy of the object's current backing bytes.
func (d *FakeDevice) ObjectData(handle uint32) ([]byte, bool) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	backing, ok := d.objects[handle]
	if !ok {
		return nil, false
	}
	out := make([]byte, len(backing))
	copy(out, backing)
	return out, true
}

// ObjectCount reports the number of live objects.
func (d *FakeDevice) ObjectCount() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	return len(d.objects)
}

func (d *FakeDevice) Execbuffer(execbuf *drm.ExecBuffer) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.ExecErr != nil {
		return d.ExecErr
	}

	for i := 0; i < len(execbuf.Buffers); i++ {
		obj := &execbuf.Buffers[i]
		if _, ok := d.objects[obj.Handle]; !ok {
			return errors.Newf("submission references unknown object %d", obj.Handle)
		}
		if obj.Flags&drm.ObjectPinned == 0 && obj.Offset == 0 {
			obj.Offset = d.nextOffset
			d.nextOffset += 0x10000
		}
	}

	if execbuf.Flags&drm.ExecFenceOut != 0 {
		execbuf.FenceOut = d.Sync.NewFence(FenceSignaled)
	}

	recorded := *execbuf
	recorded.Buffers = make([]drm.ExecObject, len(execbuf.Buffers))
	copy(recorded.Buffers, execbuf.Buffers)
	d.ExecCalls = append(d.ExecCalls, recorded)

	return nil
}

// Fence lifecycle states understood by FakeSync.
const (
	FencePending  = 0
	FenceSignaled = 1
)

type fakeFence struct {
	// status follows sync-file conventions: 1 signaled, 0 pending,
	// negative errno for signaled-with-error.
	status int
	open   bool
	merged []*fakeFence
}

func (f *fakeFence) resolve() int {
	if len(f.merged) == 0 {
		return f.status
	}

	worst := 1
	for _, input := range f.merged {
		status := input.resolve()
		if status == 0 {
			return 0
		}
		if status < 0 && worst > 0 {
			worst = status
		}
	}
	return worst
}

// FakeSync implements drm.SyncOps over fabricated descriptor numbers.
// Merged fences keep references to their inputs, so closing an input
// does not detach it from the merge result, matching sync-file
// semantics.
type FakeSync struct {
	mutex  sync.Mutex
	nextFd int
	fences map[int]*fakeFence
}

func NewFakeSync() *FakeSync {
	return &FakeSync{
		// Start away from real fd numbers so accidental syscalls fail.
		nextFd: 1000,
		fences: make(map[int]*fakeFence),
	}
}

var _ drm.SyncOps = &FakeSync{}

// NewFence fabricates a fence in the given status and returns its
// descriptor.
func (s *FakeSync) NewFence(status int) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.nextFd++
	s.fences[s.nextFd] = &fakeFence{status: status, open: true}
	return s.nextFd
}

// Signal resolves a pending fence with the given status (1 or a
// negative errno).
func (s *FakeSync) Signal(fence int, status int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	f, ok := s.fences[fence]
	if ok {
		f.status = status
	}
}

// OpenCount reports how many fabricated fences remain unclosed.
func (s *FakeSync) OpenCount() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	count := 0
	for _, f := range s.fences {
		if f.open {
			count++
		}
	}
	return count
}

func (s *FakeSync) lookup(fence int) (*fakeFence, error) {
	f, ok := s.fences[fence]
	if !ok || !f.open {
		return nil, errors.Newf("fence %d is not open", fence)
	}
	return f, nil
}

func (s *FakeSync) Wait(fence int, timeoutMillis int) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	f, err := s.lookup(fence)
	if err != nil {
		return err
	}

	status := f.resolve()
	if status == 0 {
		// The fake never blocks; a pending fence times out regardless
		// of the requested timeout so tests stay deterministic.
		return drm.ErrFenceTimeout
	}
	if status < 0 {
		return errors.Wrapf(drm.ErrFenceError, "status %d", status)
	}
	return nil
}

func (s *FakeSync) Status(fence int) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	f, err := s.lookup(fence)
	if err != nil {
		return 0, err
	}
	return f.resolve(), nil
}

func (s *FakeSync) Merge(name string, fence1, fence2 int) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	f1, err := s.lookup(fence1)
	if err != nil {
		return -1, err
	}
	f2, err := s.lookup(fence2)
	if err != nil {
		return -1, err
	}

	s.nextFd++
	s.fences[s.nextFd] = &fakeFence{
		open:   true,
		merged: []*fakeFence{f1, f2},
	}
	return s.nextFd, nil
}

func (s *FakeSync) Close(fence int) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	f, err := s.lookup(fence)
	if err != nil {
		return err
	}
	f.open = false
	return nil
}

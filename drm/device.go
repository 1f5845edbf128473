package drm

// Device is the GEM object and submission surface of one opened DRM
// device node. Handles returned from CreateObject are opaque kernel
// identifiers; GPU address assignment is never the kernel's job on this
// boundary except through relocation entries in an ExecBuffer.
type Device interface {
	// CreateObject creates a GEM buffer object of the given size in
	// bytes and returns its handle.
	CreateObject(size uint64) (uint32, error)
	// WriteObject copies data into the object's backing store at the
	// given byte offset.
	WriteObject(handle uint32, offset uint64, data []byte) error
	// ReadObject copies len(data) bytes out of the object's backing
	// store at the given byte offset.
	ReadObject(handle uint32, offset uint64, data []byte) error
	// CloseObject drops the handle. The kernel frees the backing store
	// once all references are gone.
	CloseObject(handle uint32) error
	// Execbuffer submits the command stream described by execbuf. The
	// kernel's error code is returned unchanged so callers can
	// distinguish error classes. On success the kernel-assigned offset
	// of every object is written back into execbuf.Buffers, and
	// execbuf.FenceOut is populated when ExecFenceOut was requested.
	Execbuffer(execbuf *ExecBuffer) error
	// WaitObject blocks until all GPU work against the object
	// completes. timeoutNs < 0 waits indefinitely.
	WaitObject(handle uint32, timeoutNs int64) error
}

// ParamReader exposes the device capability probe used to build a
// capability profile at device-open time.
type ParamReader interface {
	GetParam(param int32) (int, error)
}

// Device parameters consulted by capability probing.
const (
	ParamHasExecSoftpin int32 = 37
	ParamHasExecFence   int32 = 44
)

const (
	// WaitForever blocks a fence wait until the fence resolves.
	WaitForever = -1
	// WaitPoll checks fence state without blocking.
	WaitPoll = 0
)

// SyncOps is the sync-file fence surface. Fences are plain file
// descriptors; every fence obtained through this interface must be
// closed exactly once.
type SyncOps interface {
	// Wait blocks until the fence signals or timeoutMillis expires.
	// It returns ErrFenceTimeout on expiry (the fence stays open and
	// waitable) and ErrFenceError wrapped around the fence's status
	// errno when the fence signaled with an error.
	Wait(fence int, timeoutMillis int) error
	// Status reports 1 when the fence signaled successfully, a negative
	// errno value when it signaled with an error, and 0 while pending.
	Status(fence int) (int, error)
	// Merge returns a new fence that resolves once both inputs have.
	// Neither input is consumed; the caller still owns all three
	// descriptors.
	Merge(name string, fence1, fence2 int) (int, error)
	// Close releases the fence descriptor.
	Close(fence int) error
}

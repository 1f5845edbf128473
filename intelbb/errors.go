package intelbb

import "github.com/pkg/errors"

// ErrBatchShared is returned from Destroy when the batch still has
// other references. Destruction requires exclusive ownership; the
// caller decides how severe that is.
var ErrBatchShared error = errors.New("batch buffer is still referenced")

// ErrAddressMismatch is returned when an object is re-added or comes
// back from the kernel at a different address than its pinned one.
// Pinned addresses must never drift; this indicates a caller bug.
var ErrAddressMismatch error = errors.New("object address does not match its pinned address")

// ErrUnknownObject is returned by per-object operations when the handle
// is not in the batch's object cache.
var ErrUnknownObject error = errors.New("object is not referenced by this batch")

// ErrAddressSpaceExhausted is returned when the allocator has no free
// gap fitting the request.
var ErrAddressSpaceExhausted error = errors.New("no free address range fits the request")

// ErrUnsupportedBpp is returned for color depths outside the supported
// set.
var ErrUnsupportedBpp error = errors.New("unsupported bits-per-pixel value")

// ErrUnsupportedTiling is returned when a surface's tiling mode is not
// available on the device.
var ErrUnsupportedTiling error = errors.New("tiling mode not supported on this device")

// ErrBatchFull is the panic value wrapper for writes past the end of
// the scratch buffer, a recording bug in the caller.
var ErrBatchFull error = errors.New("batch buffer scratch space exhausted")

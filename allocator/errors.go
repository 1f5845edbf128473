package allocator

import "github.com/pkg/errors"

// ErrInvalidHandle is returned when an operation names an allocator
// handle that is not open.
var ErrInvalidHandle error = errors.New("allocator handle is not open")

// ErrTypeMismatch is returned when Open finds an existing allocator for
// the same key but of a different type or configuration.
var ErrTypeMismatch error = errors.New("allocator already open with different type for this key")

// ErrUnsupportedType is returned when the requested allocator type has
// no implementation for the device.
var ErrUnsupportedType error = errors.New("unsupported allocator type")

// ErrBrokerStopped is returned from Client calls after the broker
// connection has been torn down.
var ErrBrokerStopped error = errors.New("allocator broker connection is closed")

package drm

import "github.com/pkg/errors"

// ErrFenceTimeout is returned from SyncOps.Wait when the timeout expired
// before the fence signaled. The fence remains open and a later wait is
// valid.
var ErrFenceTimeout error = errors.New("timed out waiting for fence")

// ErrFenceError is returned from SyncOps.Wait when the fence signaled
// carrying an error status.
var ErrFenceError error = errors.New("fence signaled with error")

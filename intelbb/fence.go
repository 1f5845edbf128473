package intelbb

import (
	"github.com/cockroachdb/errors"
	"github.com/xingoxu/xorg-intel-gpu-tools-sub001/drm"
)

// fenceTracker keeps the single outstanding completion fence of a
// batch. Every new out-fence is merged with the previous one, so one
// wait observes the union of all work submitted since the batch was
// last drained. Fences are closed exactly once: on merge or on batch
// destruction. Soft resets leave the fence in place so prior work stays
// waitable.
type fenceTracker struct {
	sync  drm.SyncOps
	fence int
}

func newFenceTracker(sync drm.SyncOps) fenceTracker {
	return fenceTracker{sync: sync, fence: -1}
}

// Fence exposes the current fence descriptor, or -1 when no work is
// outstanding. Ownership stays with the tracker.
func (t *fenceTracker) Fence() int {
	return t.fence
}

func (t *fenceTracker) record(fence int) error {
	if t.fence < 0 {
		t.fence = fence
		return nil
	}

	merged, err := t.sync.Merge("intel-bb", t.fence, fence)
	if err != nil {
		// Keep the previous fence rather than corrupting state; the
		// new fence is closed so it cannot leak.
		_ = t.sync.Close(fence)
		return errors.Wrap(err, "merging batch out-fences")
	}

	if err := t.sync.Close(t.fence); err != nil {
		return err
	}
	if err := t.sync.Close(fence); err != nil {
		return err
	}
	t.fence = merged
	return nil
}

// wait blocks until the merged fence signals. A timeout leaves the
// fence open and waitable; a fence error is surfaced distinct from the
// wait failing.
func (t *fenceTracker) wait(timeoutMillis int) error {
	if t.fence < 0 {
		return nil
	}
	return t.sync.Wait(t.fence, timeoutMillis)
}

func (t *fenceTracker) close() error {
	if t.fence < 0 {
		return nil
	}
	err := t.sync.Close(t.fence)
	t.fence = -1
	return err
}

package intelbb

import (
	"github.com/dolthub/swiss"
	"github.com/xingoxu/xorg-intel-gpu-tools-sub001/drm"
)

// Object is one cache entry: the kernel-visible exec object plus the
// bookkeeping the batch needs to release its address later.
type Object struct {
	drm.ExecObject

	size uint64
	// reserved marks addresses pinned through a reservation (caller
	// supplied an explicit offset) rather than an allocation.
	reserved bool
}

// Size returns the object's size in bytes as registered with the batch.
func (o *Object) Size() uint64 {
	return o.size
}

// objectCache is the deduplicated store of per-object submission
// metadata for one batch: a handle-keyed index for lookups plus a flat
// slice preserving insertion order for ioctl submission. The two are
// always kept in sync; every entry in one appears in the other exactly
// once.
type objectCache struct {
	byHandle *swiss.Map[uint32, *Object]
	objects  []*Object
}

func newObjectCache() *objectCache {
	return &objectCache{
		byHandle: swiss.NewMap[uint32, *Object](42),
	}
}

func (c *objectCache) len() int {
	return len(c.objects)
}

func (c *objectCache) find(handle uint32) (*Object, bool) {
	return c.byHandle.Get(handle)
}

// add inserts a fresh entry for handle. The caller must have checked
// for an existing entry first.
func (c *objectCache) add(handle uint32) *Object {
	entry := &Object{ExecObject: drm.ExecObject{Handle: handle}}
	c.byHandle.Put(handle, entry)
	c.objects = append(c.objects, entry)
	return entry
}

func (c *objectCache) remove(handle uint32) bool {
	entry, ok := c.byHandle.Get(handle)
	if !ok {
		return false
	}

	c.byHandle.Delete(handle)
	for i, candidate := range c.objects {
		if candidate == entry {
			c.objects = append(c.objects[:i], c.objects[i+1:]...)
			break
		}
	}
	return true
}

// all returns the submission view with first placed at index 0,
// preserving insertion order for the rest.
func (c *objectCache) all(first uint32) []*Object {
	out := make([]*Object, 0, len(c.objects))
	lead, ok := c.byHandle.Get(first)
	if ok {
		out = append(out, lead)
	}
	for _, entry := range c.objects {
		if entry != lead {
			out = append(out, entry)
		}
	}
	return out
}

// snapshot copies the entries so a purge can walk them while mutating
// the cache.
func (c *objectCache) snapshot() []*Object {
	out := make([]*Object, len(c.objects))
	copy(out, c.objects)
	return out
}

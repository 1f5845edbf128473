package drm

import (
	"github.com/xingoxu/xorg-intel-gpu-tools-sub001/memutils"
)

// ExecFlags is the flags word of an execbuffer submission.
type ExecFlags uint64

var execFlagsMapping = memutils.NewFlagStringMapping[ExecFlags]()

func (f ExecFlags) Register(str string) {
	execFlagsMapping.Register(f, str)
}
func (f ExecFlags) String() string {
	return execFlagsMapping.FlagsToString(f)
}

// Engine selectors occupy the low bits of the flags word.
const (
	ExecRingMask ExecFlags = 0x3f

	ExecDefault ExecFlags = 0
	ExecRender  ExecFlags = 1
	ExecBSD     ExecFlags = 2
	ExecBlt     ExecFlags = 3
	ExecVebox   ExecFlags = 4
)

const (
	// ExecNoReloc promises the kernel that every object's Offset is
	// already correct and no relocation processing is needed.
	ExecNoReloc ExecFlags = 1 << 11
	// ExecHandleLUT indicates relocation target handles are indices
	// into the buffer array rather than GEM handles.
	ExecHandleLUT ExecFlags = 1 << 12
	// ExecFenceIn makes the submission wait for FenceIn before running.
	ExecFenceIn ExecFlags = 1 << 16
	// ExecFenceOut requests a sync-file fence for the submission,
	// returned through ExecBuffer.FenceOut.
	ExecFenceOut ExecFlags = 1 << 17
	// ExecBatchFirst places the batch object at index 0 of the buffer
	// array instead of the legacy last position.
	ExecBatchFirst ExecFlags = 1 << 18
)

func init() {
	ExecNoReloc.Register("ExecNoReloc")
	ExecHandleLUT.Register("ExecHandleLUT")
	ExecFenceIn.Register("ExecFenceIn")
	ExecFenceOut.Register("ExecFenceOut")
	ExecBatchFirst.Register("ExecBatchFirst")
}

// ObjectFlags is the per-object flags word of an exec object.
type ObjectFlags uint64

var objectFlagsMapping = memutils.NewFlagStringMapping[ObjectFlags]()

func (f ObjectFlags) Register(str string) {
	objectFlagsMapping.Register(f, str)
}
func (f ObjectFlags) String() string {
	return objectFlagsMapping.FlagsToString(f)
}

const (
	ObjectNeedsFence         ObjectFlags = 1 << 0
	ObjectNeedsGTT           ObjectFlags = 1 << 1
	ObjectWrite              ObjectFlags = 1 << 2
	ObjectSupports48BAddress ObjectFlags = 1 << 3
	// ObjectPinned tells the kernel the object's Offset is an address
	// chosen by user space which must be honored, not a hint.
	ObjectPinned    ObjectFlags = 1 << 4
	ObjectPadToSize ObjectFlags = 1 << 5
	ObjectAsync     ObjectFlags = 1 << 6
	ObjectCapture   ObjectFlags = 1 << 7
)

func init() {
	ObjectNeedsFence.Register("ObjectNeedsFence")
	ObjectNeedsGTT.Register("ObjectNeedsGTT")
	ObjectWrite.Register("ObjectWrite")
	ObjectSupports48BAddress.Register("ObjectSupports48BAddress")
	ObjectPinned.Register("ObjectPinned")
	ObjectPadToSize.Register("ObjectPadToSize")
	ObjectAsync.Register("ObjectAsync")
	ObjectCapture.Register("ObjectCapture")
}

// Memory domains used in relocation entries.
const (
	DomainCPU         uint32 = 1 << 0
	DomainRender      uint32 = 1 << 1
	DomainSampler     uint32 = 1 << 2
	DomainCommand     uint32 = 1 << 3
	DomainInstruction uint32 = 1 << 4
	DomainVertex      uint32 = 1 << 5
	DomainGTT         uint32 = 1 << 6
)

// RelocationEntry asks the kernel to patch the GPU address of
// TargetHandle (plus Delta) into the submitting object at Offset.
type RelocationEntry struct {
	TargetHandle   uint32
	Delta          uint32
	Offset         uint64
	PresumedOffset uint64
	ReadDomains    uint32
	WriteDomain    uint32
}

// ExecObject describes one referenced object of a submission. After a
// successful Execbuffer call, Offset holds the address the kernel used.
type ExecObject struct {
	Handle      uint32
	Relocations []RelocationEntry
	Alignment   uint64
	Offset      uint64
	Flags       ObjectFlags
}

// ExecBuffer is the full payload of one execbuffer submission. The batch
// object's position within Buffers is governed by ExecBatchFirst.
type ExecBuffer struct {
	Buffers          []ExecObject
	BatchStartOffset uint32
	BatchLen         uint32
	Flags            ExecFlags
	// Context is the hardware context the submission runs in.
	Context uint32
	// FenceIn is consulted when ExecFenceIn is set.
	FenceIn int
	// FenceOut is populated by the kernel when ExecFenceOut is set.
	FenceOut int
}

//go:build linux

package drm

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"
	"golang.org/x/sys/unix"
)

const (
	iocNone  uintptr = 0
	iocWrite uintptr = 1
	iocRead  uintptr = 2

	iocNrShift   = 0
	iocTypeShift = 8
	iocSizeShift = 16
	iocDirShift  = 30
)

func ioc(dir, typ, nr, size uintptr) uintptr {
	return dir<<iocDirShift | size<<iocSizeShift | typ<<iocTypeShift | nr<<iocNrShift
}

func iocWR(typ, nr, size uintptr) uintptr {
	return ioc(iocRead|iocWrite, typ, nr, size)
}

func iocW(typ, nr, size uintptr) uintptr {
	return ioc(iocWrite, typ, nr, size)
}

const (
	drmIoctlBase   uintptr = 'd'
	drmCommandBase uintptr = 0x40

	drmGemCloseNr uintptr = 0x09

	i915GemGetParamNr    uintptr = drmCommandBase + 0x06
	i915GemCreateNr      uintptr = drmCommandBase + 0x1b
	i915GemPreadNr       uintptr = drmCommandBase + 0x1c
	i915GemPwriteNr      uintptr = drmCommandBase + 0x1d
	i915GemExecbuffer2Nr uintptr = drmCommandBase + 0x29
	i915GemWaitNr        uintptr = drmCommandBase + 0x2c

	syncIoctlBase   uintptr = '>'
	syncIocMergeNr  uintptr = 3
	syncIocFileInfo uintptr = 4
)

type gemCreateArgs struct {
	size   uint64
	handle uint32
	pad    uint32
}

type gemPrwArgs struct {
	handle  uint32
	pad     uint32
	offset  uint64
	size    uint64
	dataPtr uint64
}

type gemCloseArgs struct {
	handle uint32
	pad    uint32
}

type gemWaitArgs struct {
	handle    uint32
	flags     uint32
	timeoutNs int64
}

type getParamArgs struct {
	param    int32
	pad      uint32
	valuePtr uint64
}

type execObject2Args struct {
	handle          uint32
	relocationCount uint32
	relocsPtr       uint64
	alignment       uint64
	offset          uint64
	flags           uint64
	rsvd1           uint64
	rsvd2           uint64
}

type execBuffer2Args struct {
	buffersPtr       uint64
	bufferCount      uint32
	batchStartOffset uint32
	batchLen         uint32
	dr1              uint32
	dr4              uint32
	numCliprects     uint32
	cliprectsPtr     uint64
	flags            uint64
	rsvd1            uint64
	rsvd2            uint64
}

type syncMergeArgs struct {
	name  [32]byte
	fd2   int32
	fence int32
	flags uint32
	pad   uint32
}

type syncFileInfoArgs struct {
	name          [32]byte
	status        int32
	flags         uint32
	numFences     uint32
	pad           uint32
	syncFenceInfo uint64
}

// IoctlDevice drives a real DRM device node through the i915 GEM and
// sync-file ioctl families. It implements Device, ParamReader and
// SyncOps. The fd is owned by the caller and never closed here.
type IoctlDevice struct {
	fd     int
	logger *slog.Logger
}

var _ Device = &IoctlDevice{}
var _ ParamReader = &IoctlDevice{}
var _ SyncOps = &IoctlDevice{}

// NewIoctlDevice wraps an already-open DRM device fd.
func NewIoctlDevice(logger *slog.Logger, fd int) *IoctlDevice {
	return &IoctlDevice{
		fd:     fd,
		logger: logger,
	}
}

func (d *IoctlDevice) ioctl(fd int, request uintptr, arg unsafe.Pointer) error {
	for {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), request, uintptr(arg))
		if errno == 0 {
			return nil
		}
		if errno == unix.EINTR || errno == unix.EAGAIN {
			continue
		}
		// Hand the errno back unchanged so callers can classify it.
		return errno
	}
}

func (d *IoctlDevice) CreateObject(size uint64) (uint32, error) {
	args := gemCreateArgs{size: size}
	err := d.ioctl(d.fd, iocWR(drmIoctlBase, i915GemCreateNr, unsafe.Sizeof(args)), unsafe.Pointer(&args))
	if err != nil {
		return 0, errors.Wrapf(err, "creating %d-byte gem object", size)
	}
	return args.handle, nil
}

func (d *IoctlDevice) WriteObject(handle uint32, offset uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	args := gemPrwArgs{
		handle:  handle,
		offset:  offset,
		size:    uint64(len(data)),
		dataPtr: uint64(uintptr(unsafe.Pointer(&data[0]))),
	}
	return d.ioctl(d.fd, iocW(drmIoctlBase, i915GemPwriteNr, unsafe.Sizeof(args)), unsafe.Pointer(&args))
}

func (d *IoctlDevice) ReadObject(handle uint32, offset uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	args := gemPrwArgs{
		handle:  handle,
		offset:  offset,
		size:    uint64(len(data)),
		dataPtr: uint64(uintptr(unsafe.Pointer(&data[0]))),
	}
	return d.ioctl(d.fd, iocW(drmIoctlBase, i915GemPreadNr, unsafe.Sizeof(args)), unsafe.Pointer(&args))
}

func (d *IoctlDevice) CloseObject(handle uint32) error {
	args := gemCloseArgs{handle: handle}
	return d.ioctl(d.fd, iocW(drmIoctlBase, drmGemCloseNr, unsafe.Sizeof(args)), unsafe.Pointer(&args))
}

func (d *IoctlDevice) WaitObject(handle uint32, timeoutNs int64) error {
	args := gemWaitArgs{handle: handle, timeoutNs: timeoutNs}
	return d.ioctl(d.fd, iocWR(drmIoctlBase, i915GemWaitNr, unsafe.Sizeof(args)), unsafe.Pointer(&args))
}

func (d *IoctlDevice) GetParam(param int32) (int, error) {
	var value int32
	args := getParamArgs{
		param:    param,
		valuePtr: uint64(uintptr(unsafe.Pointer(&value))),
	}
	err := d.ioctl(d.fd, iocWR(drmIoctlBase, i915GemGetParamNr, unsafe.Sizeof(args)), unsafe.Pointer(&args))
	if err != nil {
		return 0, err
	}
	return int(value), nil
}

func (d *IoctlDevice) Execbuffer(execbuf *ExecBuffer) error {
	d.logger.Debug("IoctlDevice::Execbuffer",
		slog.Int("buffer_count", len(execbuf.Buffers)),
		slog.String("flags", execbuf.Flags.String()),
	)

	rawObjects := make([]execObject2Args, len(execbuf.Buffers))
	for i := 0; i < len(execbuf.Buffers); i++ {
		obj := &execbuf.Buffers[i]
		rawObjects[i] = execObject2Args{
			handle:          obj.Handle,
			relocationCount: uint32(len(obj.Relocations)),
			alignment:       obj.Alignment,
			offset:          obj.Offset,
			flags:           uint64(obj.Flags),
		}
		if len(obj.Relocations) > 0 {
			rawObjects[i].relocsPtr = uint64(uintptr(unsafe.Pointer(&obj.Relocations[0])))
		}
	}

	args := execBuffer2Args{
		bufferCount:      uint32(len(rawObjects)),
		batchStartOffset: execbuf.BatchStartOffset,
		batchLen:         execbuf.BatchLen,
		flags:            uint64(execbuf.Flags),
		rsvd1:            uint64(execbuf.Context),
	}
	if len(rawObjects) > 0 {
		args.buffersPtr = uint64(uintptr(unsafe.Pointer(&rawObjects[0])))
	}
	if execbuf.Flags&ExecFenceIn != 0 {
		args.rsvd2 = uint64(uint32(execbuf.FenceIn))
	}

	err := d.ioctl(d.fd, iocWR(drmIoctlBase, i915GemExecbuffer2Nr, unsafe.Sizeof(args)), unsafe.Pointer(&args))
	if err != nil {
		return err
	}

	for i := 0; i < len(execbuf.Buffers); i++ {
		execbuf.Buffers[i].Offset = rawObjects[i].offset
	}
	if execbuf.Flags&ExecFenceOut != 0 {
		execbuf.FenceOut = int(int32(args.rsvd2 >> 32))
	}

	return nil
}

func (d *IoctlDevice) Wait(fence int, timeoutMillis int) error {
	pollFd := []unix.PollFd{{Fd: int32(fence), Events: unix.POLLIN}}
	for {
		n, err := unix.Poll(pollFd, timeoutMillis)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return errors.Wrap(err, "polling fence")
		}
		if n == 0 {
			return ErrFenceTimeout
		}
		break
	}

	status, err := d.Status(fence)
	if err != nil {
		return err
	}
	if status < 0 {
		return errors.Wrapf(ErrFenceError, "status %d", status)
	}
	return nil
}

func (d *IoctlDevice) Status(fence int) (int, error) {
	var args syncFileInfoArgs
	err := d.ioctl(fence, iocWR(syncIoctlBase, syncIocFileInfo, unsafe.Sizeof(args)), unsafe.Pointer(&args))
	if err != nil {
		return 0, errors.Wrap(err, "querying fence status")
	}
	return int(args.status), nil
}

func (d *IoctlDevice) Merge(name string, fence1, fence2 int) (int, error) {
	args := syncMergeArgs{fd2: int32(fence2)}
	copy(args.name[:len(args.name)-1], name)
	err := d.ioctl(fence1, iocWR(syncIoctlBase, syncIocMergeNr, unsafe.Sizeof(args)), unsafe.Pointer(&args))
	if err != nil {
		return -1, errors.Wrap(err, "merging fences")
	}
	return int(args.fence), nil
}

func (d *IoctlDevice) Close(fence int) error {
	return unix.Close(fence)
}

package allocator

import (
	"sync"

	"github.com/dolthub/swiss"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"golang.org/x/exp/slog"
	"github.com/xingoxu/xorg-intel-gpu-tools-sub001/internal/utils"
	"github.com/xingoxu/xorg-intel-gpu-tools-sub001/memutils"
)

const (
	// defaultVMStart leaves the first page unused so address zero can
	// act as a null sentinel.
	defaultVMStart uint64 = 0x1000
	defaultVMEnd   uint64 = 1 << 47
)

type vmKey struct {
	fd int
	vm uint32
}

// instance is one reference-counted allocator. Several handles opened
// with the same (fd, vm) key resolve to the same instance; all
// mutation is serialized by its mutex.
type instance struct {
	handle   Handle
	key      vmKey
	typ      Type
	strategy Strategy
	refCount int

	mutex   utils.OptionalMutex
	backend backend
}

// CreateFlags indicate specific registry behaviors to activate or deactivate
type CreateFlags int32

var registryCreateFlagsMapping = memutils.NewFlagStringMapping[CreateFlags]()

func (f CreateFlags) Register(str string) {
	registryCreateFlagsMapping.Register(f, str)
}
func (f CreateFlags) String() string {
	return registryCreateFlagsMapping.FlagsToString(f)
}

const (
	// RegistryCreateExternallySynchronized ensures that allocator
	// instances owned by this registry will not be synchronized
	// internally. The consumer must guarantee they are used from only
	// one thread at a time or are synchronized by some other mechanism.
	RegistryCreateExternallySynchronized CreateFlags = 1 << iota
)

func init() {
	RegistryCreateExternallySynchronized.Register("RegistryCreateExternallySynchronized")
}

// Registry owns allocator instances for one process. It is an explicit
// object: whoever creates it owns it and passes it (or handles from it)
// to consumers.
type Registry struct {
	logger   *slog.Logger
	useMutex bool

	mutex      sync.Mutex
	nextHandle Handle
	byHandle   *swiss.Map[Handle, *instance]
	byKey      map[vmKey]*instance
}

var _ Allocator = &Registry{}

// NewRegistry creates an empty allocator registry.
func NewRegistry(logger *slog.Logger, flags CreateFlags) *Registry {
	return &Registry{
		logger:   logger,
		useMutex: flags&RegistryCreateExternallySynchronized == 0,
		byHandle: swiss.NewMap[Handle, *instance](42),
		byKey:    make(map[vmKey]*instance),
	}
}

// Open returns an allocator for the (fd, ctx) key spanning the default
// VM range, creating it on first use and reference-counting it
// afterwards. Contexts that share a VM should use OpenVM with the
// shared vm id instead so they alias one instance.
func (r *Registry) Open(fd int, ctx uint32, typ Type) (Handle, error) {
	return r.OpenFull(fd, ctx, 0, 0, typ, StrategyLowToHigh, 0)
}

// OpenVM is Open keyed by an explicit VM id rather than a context.
func (r *Registry) OpenVM(fd int, vm uint32, typ Type) (Handle, error) {
	return r.OpenFull(fd, vm, 0, 0, typ, StrategyLowToHigh, 0)
}

// OpenFull opens an allocator with an explicit VM range, strategy and
// default alignment. Zero start/end select the registry defaults. A
// second open with the same key must agree on type and strategy.
func (r *Registry) OpenFull(fd int, ctx uint32, start, end uint64, typ Type, strategy Strategy, defaultAlignment uint64) (Handle, error) {
	r.logger.Debug("Registry::OpenFull",
		slog.Int("fd", fd),
		slog.Uint64("ctx", uint64(ctx)),
		slog.String("type", typ.String()),
		slog.String("strategy", strategy.String()),
	)

	if end == 0 {
		start, end = defaultVMStart, defaultVMEnd
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	key := vmKey{fd: fd, vm: ctx}
	existing, ok := r.byKey[key]
	if ok {
		if existing.typ != typ || existing.strategy != strategy {
			return 0, ErrTypeMismatch
		}
		existing.refCount++
		return existing.handle, nil
	}

	var b backend
	switch typ {
	case TypeSimple:
		b = newSimpleAllocator(start, end, defaultAlignment, strategy)
	case TypeReloc:
		b = newRelocAllocator(start, end, defaultAlignment)
	default:
		return 0, ErrUnsupportedType
	}

	r.nextHandle++
	inst := &instance{
		handle:   r.nextHandle,
		key:      key,
		typ:      typ,
		strategy: strategy,
		refCount: 1,
		mutex:    utils.OptionalMutex{UseMutex: r.useMutex},
		backend:  b,
	}
	r.byHandle.Put(inst.handle, inst)
	r.byKey[key] = inst

	return inst.handle, nil
}

// Close drops one reference. It reports true only when this was the
// last reference and the allocator was empty at teardown; closing a
// non-empty allocator is reported as false rather than treated as
// fatal, as an assertion aid for tests.
func (r *Registry) Close(handle Handle) (bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	inst, ok := r.byHandle.Get(handle)
	if !ok {
		return false, ErrInvalidHandle
	}

	inst.refCount--
	if inst.refCount > 0 {
		return false, nil
	}

	r.byHandle.Delete(handle)
	delete(r.byKey, inst.key)
	return inst.backend.IsEmpty(), nil
}

func (r *Registry) lookup(handle Handle) (*instance, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	inst, ok := r.byHandle.Get(handle)
	if !ok {
		return nil, ErrInvalidHandle
	}
	return inst, nil
}

// Alloc assigns (or retrieves) the address for objHandle. AllocInvalid
// reports exhaustion; the allocator's state is unchanged by a failed
// attempt.
func (r *Registry) Alloc(handle Handle, objHandle uint32, size, alignment uint64) (uint64, error) {
	inst, err := r.lookup(handle)
	if err != nil {
		return AllocInvalid, err
	}

	inst.mutex.Lock()
	defer inst.mutex.Unlock()

	addr := inst.backend.Alloc(objHandle, size, alignment)
	if v, ok := inst.backend.(memutils.Validatable); ok {
		memutils.DebugValidate(v)
	}
	return addr, nil
}

func (r *Registry) Free(handle Handle, objHandle uint32) (bool, error) {
	inst, err := r.lookup(handle)
	if err != nil {
		return false, err
	}

	inst.mutex.Lock()
	defer inst.mutex.Unlock()

	freed := inst.backend.Free(objHandle)
	if v, ok := inst.backend.(memutils.Validatable); ok {
		memutils.DebugValidate(v)
	}
	return freed, nil
}

func (r *Registry) Reserve(handle Handle, objHandle uint32, start, size uint64) (bool, error) {
	inst, err := r.lookup(handle)
	if err != nil {
		return false, err
	}

	inst.mutex.Lock()
	defer inst.mutex.Unlock()

	reserved := inst.backend.Reserve(objHandle, start, size)
	if v, ok := inst.backend.(memutils.Validatable); ok {
		memutils.DebugValidate(v)
	}
	return reserved, nil
}

func (r *Registry) Unreserve(handle Handle, objHandle uint32, start, size uint64) (bool, error) {
	inst, err := r.lookup(handle)
	if err != nil {
		return false, err
	}

	inst.mutex.Lock()
	defer inst.mutex.Unlock()

	unreserved := inst.backend.Unreserve(objHandle, start, size)
	if v, ok := inst.backend.(memutils.Validatable); ok {
		memutils.DebugValidate(v)
	}
	return unreserved, nil
}

func (r *Registry) IsAllocated(handle Handle, objHandle uint32, size, offset uint64) (bool, error) {
	inst, err := r.lookup(handle)
	if err != nil {
		return false, err
	}

	inst.mutex.Lock()
	defer inst.mutex.Unlock()

	return inst.backend.IsAllocated(objHandle, size, offset), nil
}

func (r *Registry) IsReserved(handle Handle, start, size uint64) (bool, error) {
	inst, err := r.lookup(handle)
	if err != nil {
		return false, err
	}

	inst.mutex.Lock()
	defer inst.mutex.Unlock()

	return inst.backend.IsReserved(start, size), nil
}

func (r *Registry) AddressRange(handle Handle) (uint64, uint64, error) {
	inst, err := r.lookup(handle)
	if err != nil {
		return 0, 0, err
	}

	inst.mutex.Lock()
	defer inst.mutex.Unlock()

	start, end := inst.backend.AddressRange()
	return start, end, nil
}

// Validate runs the instance's internal consistency checks.
func (r *Registry) Validate(handle Handle) error {
	inst, err := r.lookup(handle)
	if err != nil {
		return err
	}

	inst.mutex.Lock()
	defer inst.mutex.Unlock()

	if v, ok := inst.backend.(memutils.Validatable); ok {
		return v.Validate()
	}
	return nil
}

// AddDetailedStatistics sums the instance's range statistics into stats.
func (r *Registry) AddDetailedStatistics(handle Handle, stats *memutils.DetailedStatistics) error {
	inst, err := r.lookup(handle)
	if err != nil {
		return err
	}

	inst.mutex.Lock()
	defer inst.mutex.Unlock()

	inst.backend.AddDetailedStatistics(stats)
	return nil
}

// PrintState writes the instance's configuration and range statistics
// into writer as one JSON object.
func (r *Registry) PrintState(writer *jwriter.Writer, handle Handle) error {
	inst, err := r.lookup(handle)
	if err != nil {
		return err
	}

	inst.mutex.Lock()
	defer inst.mutex.Unlock()

	start, end := inst.backend.AddressRange()

	var stats memutils.DetailedStatistics
	stats.Clear()
	inst.backend.AddDetailedStatistics(&stats)

	obj := writer.Object()
	obj.Name("Type").String(inst.typ.String())
	obj.Name("Strategy").String(inst.strategy.String())
	obj.Name("VMStart").Float64(float64(start))
	obj.Name("VMEnd").Float64(float64(end))
	obj.Name("Allocations").Int(stats.AllocationCount)
	obj.Name("AllocationBytes").Float64(float64(stats.AllocationBytes))
	obj.Name("Reservations").Int(stats.ReservationCount)
	obj.Name("ReservationBytes").Float64(float64(stats.ReservationBytes))
	obj.Name("FreeRanges").Int(stats.FreeRangeCount)
	obj.End()

	return writer.Error()
}

// BuildStatsString renders PrintState output as a string.
func (r *Registry) BuildStatsString(handle Handle) (string, error) {
	writer := jwriter.NewWriter()
	err := r.PrintState(&writer, handle)
	if err != nil {
		return "", err
	}
	return string(writer.Bytes()), nil
}

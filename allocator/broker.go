package allocator

import (
	"bufio"
	"net"
	"sync"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"
)

// Broker serves one canonical Registry to related processes over a
// unix-domain socket so that every relative observes a single
// consistent address space. Each connection handles one request at a
// time; the registry's own locking serializes the rest.
type Broker struct {
	logger   *slog.Logger
	registry *Registry

	mutex    sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	stopped  bool
	wg       sync.WaitGroup
}

// NewBroker wraps a registry for serving. The registry stays usable
// directly in the broker's own process.
func NewBroker(logger *slog.Logger, registry *Registry) *Broker {
	return &Broker{
		logger:   logger,
		registry: registry,
		conns:    make(map[net.Conn]struct{}),
	}
}

// Listen binds the broker to a unix-domain socket path and starts
// accepting connections. It must be called before any fork so children
// inherit a live endpoint to dial.
func (b *Broker) Listen(path string) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.stopped {
		return ErrBrokerStopped
	}
	if b.listener != nil {
		return errors.New("broker is already listening")
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return errors.Wrapf(err, "listening on %s", path)
	}
	b.listener = listener

	b.wg.Add(1)
	go b.acceptLoop(listener)
	return nil
}

func (b *Broker) acceptLoop(listener net.Listener) {
	defer b.wg.Done()

	for {
		conn, err := listener.Accept()
		if err != nil {
			return
		}

		b.mutex.Lock()
		if b.stopped {
			b.mutex.Unlock()
			_ = conn.Close()
			return
		}
		b.conns[conn] = struct{}{}
		b.mutex.Unlock()

		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.ServeConn(conn)
		}()
	}
}

// ServeConn answers requests on conn until it closes. Exported so a
// connected pair (e.g. net.Pipe) can be served without a listener.
func (b *Broker) ServeConn(conn net.Conn) {
	defer func() {
		b.mutex.Lock()
		delete(b.conns, conn)
		b.mutex.Unlock()
		_ = conn.Close()
	}()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		req, err := decodeRequest(scanner.Bytes())
		if err != nil {
			b.logger.Debug("Broker::ServeConn bad request", slog.String("error", err.Error()))
			return
		}

		reply := b.dispatch(req)
		data, err := encodeReply(reply)
		if err != nil {
			b.logger.Debug("Broker::ServeConn bad reply", slog.String("error", err.Error()))
			return
		}

		data = append(data, '\n')
		if _, err := conn.Write(data); err != nil {
			return
		}
	}
}

func (b *Broker) dispatch(req *wireRequest) *wireReply {
	var reply wireReply

	fail := func(err error) *wireReply {
		reply.Err = err.Error()
		return &reply
	}

	switch req.Op {
	case opOpen:
		handle, err := b.registry.OpenFull(req.Fd, req.Ctx, req.Start, req.End, req.Typ, req.Strategy, req.Alignment)
		if err != nil {
			return fail(err)
		}
		reply.Handle = handle
	case opClose:
		ok, err := b.registry.Close(req.Handle)
		if err != nil {
			return fail(err)
		}
		reply.Ok = ok
	case opAlloc:
		addr, err := b.registry.Alloc(req.Handle, req.Obj, req.Size, req.Alignment)
		if err != nil {
			return fail(err)
		}
		if addr != AllocInvalid {
			reply.AddrValid = true
			reply.Addr = addr
		}
	case opFree:
		ok, err := b.registry.Free(req.Handle, req.Obj)
		if err != nil {
			return fail(err)
		}
		reply.Ok = ok
	case opReserve:
		ok, err := b.registry.Reserve(req.Handle, req.Obj, req.Start, req.Size)
		if err != nil {
			return fail(err)
		}
		reply.Ok = ok
	case opUnreserve:
		ok, err := b.registry.Unreserve(req.Handle, req.Obj, req.Start, req.Size)
		if err != nil {
			return fail(err)
		}
		reply.Ok = ok
	case opIsAllocated:
		ok, err := b.registry.IsAllocated(req.Handle, req.Obj, req.Size, req.Offset)
		if err != nil {
			return fail(err)
		}
		reply.Ok = ok
	case opIsReserved:
		ok, err := b.registry.IsReserved(req.Handle, req.Start, req.Size)
		if err != nil {
			return fail(err)
		}
		reply.Ok = ok
	case opAddressRange:
		start, end, err := b.registry.AddressRange(req.Handle)
		if err != nil {
			return fail(err)
		}
		reply.Start = start
		reply.End = end
	default:
		return fail(errors.Newf("unknown allocator op %q", req.Op))
	}

	return &reply
}

// Stop tears the broker down: the listener and every open connection
// are closed. Handles opened through clients become unusable for
// cross-process coordination; the wrapped registry itself stays valid
// in-process.
func (b *Broker) Stop() {
	b.mutex.Lock()
	b.stopped = true
	listener := b.listener
	b.listener = nil
	conns := make([]net.Conn, 0, len(b.conns))
	for conn := range b.conns {
		conns = append(conns, conn)
	}
	b.mutex.Unlock()

	if listener != nil {
		_ = listener.Close()
	}
	for _, conn := range conns {
		_ = conn.Close()
	}
	b.wg.Wait()
}

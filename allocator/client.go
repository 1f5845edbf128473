package allocator

import (
	"bufio"
	"net"
	"sync"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"
)

// Client proxies the Allocator surface to a Broker in another process.
// One request is in flight per client at a time; callers in different
// goroutines are serialized on the connection.
type Client struct {
	logger *slog.Logger

	mutex  sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
	closed bool
}

var _ Allocator = &Client{}

// Dial connects to a broker's unix-domain socket.
func Dial(logger *slog.Logger, path string) (*Client, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, errors.Wrapf(err, "dialing allocator broker at %s", path)
	}
	return NewClient(logger, conn), nil
}

// NewClient wraps an established connection to a broker.
func NewClient(logger *slog.Logger, conn net.Conn) *Client {
	return &Client{
		logger: logger,
		conn:   conn,
		reader: bufio.NewReader(conn),
	}
}

// Detach closes the broker connection and hands back a fresh private
// registry, for children that want an independent address space.
func (c *Client) Detach(flags CreateFlags) *Registry {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.closed {
		c.closed = true
		_ = c.conn.Close()
	}
	return NewRegistry(c.logger, flags)
}

func (c *Client) roundTrip(req *wireRequest) (*wireReply, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed {
		return nil, ErrBrokerStopped
	}

	data, err := encodeRequest(req)
	if err != nil {
		return nil, err
	}
	data = append(data, '\n')

	if _, err := c.conn.Write(data); err != nil {
		return nil, errors.Wrap(ErrBrokerStopped, err.Error())
	}

	line, err := c.reader.ReadBytes('\n')
	if err != nil {
		return nil, errors.Wrap(ErrBrokerStopped, err.Error())
	}

	reply, err := decodeReply(line)
	if err != nil {
		return nil, err
	}
	if reply.Err != "" {
		return nil, wireError(reply.Err)
	}
	return reply, nil
}

func (c *Client) Open(fd int, ctx uint32, typ Type) (Handle, error) {
	return c.OpenFull(fd, ctx, 0, 0, typ, StrategyLowToHigh, 0)
}

func (c *Client) OpenVM(fd int, vm uint32, typ Type) (Handle, error) {
	return c.OpenFull(fd, vm, 0, 0, typ, StrategyLowToHigh, 0)
}

func (c *Client) OpenFull(fd int, ctx uint32, start, end uint64, typ Type, strategy Strategy, defaultAlignment uint64) (Handle, error) {
	reply, err := c.roundTrip(&wireRequest{
		Op:        opOpen,
		Fd:        fd,
		Ctx:       ctx,
		Start:     start,
		End:       end,
		Typ:       typ,
		Strategy:  strategy,
		Alignment: defaultAlignment,
	})
	if err != nil {
		return 0, err
	}
	return reply.Handle, nil
}

func (c *Client) Close(handle Handle) (bool, error) {
	reply, err := c.roundTrip(&wireRequest{Op: opClose, Handle: handle})
	if err != nil {
		return false, err
	}
	return reply.Ok, nil
}

func (c *Client) Alloc(handle Handle, objHandle uint32, size, alignment uint64) (uint64, error) {
	reply, err := c.roundTrip(&wireRequest{
		Op:        opAlloc,
		Handle:    handle,
		Obj:       objHandle,
		Size:      size,
		Alignment: alignment,
	})
	if err != nil {
		return AllocInvalid, err
	}
	if !reply.AddrValid {
		return AllocInvalid, nil
	}
	return reply.Addr, nil
}

func (c *Client) Free(handle Handle, objHandle uint32) (bool, error) {
	reply, err := c.roundTrip(&wireRequest{Op: opFree, Handle: handle, Obj: objHandle})
	if err != nil {
		return false, err
	}
	return reply.Ok, nil
}

func (c *Client) Reserve(handle Handle, objHandle uint32, start, size uint64) (bool, error) {
	reply, err := c.roundTrip(&wireRequest{
		Op:     opReserve,
		Handle: handle,
		Obj:    objHandle,
		Start:  start,
		Size:   size,
	})
	if err != nil {
		return false, err
	}
	return reply.Ok, nil
}

func (c *Client) Unreserve(handle Handle, objHandle uint32, start, size uint64) (bool, error) {
	reply, err := c.roundTrip(&wireRequest{
		Op:     opUnreserve,
		Handle: handle,
		Obj:    objHandle,
		Start:  start,
		Size:   size,
	})
	if err != nil {
		return false, err
	}
	return reply.Ok, nil
}

func (c *Client) IsAllocated(handle Handle, objHandle uint32, size, offset uint64) (bool, error) {
	reply, err := c.roundTrip(&wireRequest{
		Op:     opIsAllocated,
		Handle: handle,
		Obj:    objHandle,
		Size:   size,
		Offset: offset,
	})
	if err != nil {
		return false, err
	}
	return reply.Ok, nil
}

func (c *Client) IsReserved(handle Handle, start, size uint64) (bool, error) {
	reply, err := c.roundTrip(&wireRequest{
		Op:     opIsReserved,
		Handle: handle,
		Start:  start,
		Size:   size,
	})
	if err != nil {
		return false, err
	}
	return reply.Ok, nil
}

func (c *Client) AddressRange(handle Handle) (uint64, uint64, error) {
	reply, err := c.roundTrip(&wireRequest{Op: opAddressRange, Handle: handle})
	if err != nil {
		return 0, 0, err
	}
	return reply.Start, reply.End, nil
}

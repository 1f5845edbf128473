package allocator

import (
	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jreader"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// Broker wire protocol: one request, one reply, each a single
// line-delimited JSON object. Addresses stay below 2^48 so JSON number
// encoding is exact; the AllocInvalid sentinel travels as AddrValid ==
// false instead of a number.

type wireOp string

const (
	opOpen         wireOp = "open"
	opClose        wireOp = "close"
	opAlloc        wireOp = "alloc"
	opFree         wireOp = "free"
	opReserve      wireOp = "reserve"
	opUnreserve    wireOp = "unreserve"
	opIsAllocated  wireOp = "is_allocated"
	opIsReserved   wireOp = "is_reserved"
	opAddressRange wireOp = "address_range"
)

type wireRequest struct {
	Op        wireOp
	Fd        int
	Ctx       uint32
	Start     uint64
	End       uint64
	Typ       Type
	Strategy  Strategy
	Alignment uint64
	Handle    Handle
	Obj       uint32
	Size      uint64
	Offset    uint64
}

type wireReply struct {
	Ok        bool
	AddrValid bool
	Addr      uint64
	Start     uint64
	End       uint64
	Handle    Handle
	Err       string
}

func encodeRequest(req *wireRequest) ([]byte, error) {
	writer := jwriter.NewWriter()
	obj := writer.Object()
	obj.Name("Op").String(string(req.Op))
	obj.Name("Fd").Int(req.Fd)
	obj.Name("Ctx").Float64(float64(req.Ctx))
	obj.Name("Start").Float64(float64(req.Start))
	obj.Name("End").Float64(float64(req.End))
	obj.Name("Typ").Int(int(req.Typ))
	obj.Name("Strategy").Int(int(req.Strategy))
	obj.Name("Alignment").Float64(float64(req.Alignment))
	obj.Name("Handle").Float64(float64(req.Handle))
	obj.Name("Obj").Float64(float64(req.Obj))
	obj.Name("Size").Float64(float64(req.Size))
	obj.Name("Offset").Float64(float64(req.Offset))
	obj.End()

	if writer.Error() != nil {
		return nil, errors.Wrap(writer.Error(), "encoding allocator request")
	}
	return writer.Bytes(), nil
}

func decodeRequest(data []byte) (*wireRequest, error) {
	var req wireRequest
	reader := jreader.NewReader(data)
	obj := reader.Object()
	for obj.Next() {
		switch string(obj.Name()) {
		case "Op":
			req.Op = wireOp(reader.String())
		case "Fd":
			req.Fd = reader.Int()
		case "Ctx":
			req.Ctx = uint32(reader.Float64())
		case "Start":
			req.Start = uint64(reader.Float64())
		case "End":
			req.End = uint64(reader.Float64())
		case "Typ":
			req.Typ = Type(reader.Int())
		case "Strategy":
			req.Strategy = Strategy(reader.Int())
		case "Alignment":
			req.Alignment = uint64(reader.Float64())
		case "Handle":
			req.Handle = Handle(reader.Float64())
		case "Obj":
			req.Obj = uint32(reader.Float64())
		case "Size":
			req.Size = uint64(reader.Float64())
		case "Offset":
			req.Offset = uint64(reader.Float64())
		}
	}

	if reader.Error() != nil {
		return nil, errors.Wrap(reader.Error(), "decoding allocator request")
	}
	return &req, nil
}

func encodeReply(reply *wireReply) ([]byte, error) {
	writer := jwriter.NewWriter()
	obj := writer.Object()
	obj.Name("Ok").Bool(reply.Ok)
	obj.Name("AddrValid").Bool(reply.AddrValid)
	obj.Name("Addr").Float64(float64(reply.Addr))
	obj.Name("Start").Float64(float64(reply.Start))
	obj.Name("End").Float64(float64(reply.End))
	obj.Name("Handle").Float64(float64(reply.Handle))
	obj.Name("Err").String(reply.Err)
	obj.End()

	if writer.Error() != nil {
		return nil, errors.Wrap(writer.Error(), "encoding allocator reply")
	}
	return writer.Bytes(), nil
}

func decodeReply(data []byte) (*wireReply, error) {
	var reply wireReply
	reader := jreader.NewReader(data)
	obj := reader.Object()
	for obj.Next() {
		switch string(obj.Name()) {
		case "Ok":
			reply.Ok = reader.Bool()
		case "AddrValid":
			reply.AddrValid = reader.Bool()
		case "Addr":
			reply.Addr = uint64(reader.Float64())
		case "Start":
			reply.Start = uint64(reader.Float64())
		case "End":
			reply.End = uint64(reader.Float64())
		case "Handle":
			reply.Handle = Handle(reader.Float64())
		case "Err":
			reply.Err = reader.String()
		}
	}

	if reader.Error() != nil {
		return nil, errors.Wrap(reader.Error(), "decoding allocator reply")
	}
	return &reply, nil
}

var wireErrorMapping = map[string]error{
	ErrInvalidHandle.Error():   ErrInvalidHandle,
	ErrTypeMismatch.Error():    ErrTypeMismatch,
	ErrUnsupportedType.Error(): ErrUnsupportedType,
}

// wireError rehydrates known sentinel errors so errors.Is works on both
// sides of the channel.
func wireError(message string) error {
	if message == "" {
		return nil
	}
	if sentinel, ok := wireErrorMapping[message]; ok {
		return sentinel
	}
	return errors.New(message)
}

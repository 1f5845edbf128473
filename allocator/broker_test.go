package allocator

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

// pipeClient connects a Client to a Broker over an in-memory pipe, the
// way a forked child talks to its parent's broker over a socket.
func pipeClient(t *testing.T, broker *Broker) *Client {
	server, client := net.Pipe()
	done := make(chan struct{})
	go func() {
		broker.ServeConn(server)
		close(done)
	}()
	t.Cleanup(func() {
		_ = client.Close()
		<-done
	})
	return NewClient(testLogger(), client)
}

func TestClientMatchesDirectRegistry(t *testing.T) {
	registry := NewRegistry(testLogger(), 0)
	broker := NewBroker(testLogger(), registry)
	client := pipeClient(t, broker)

	handle, err := client.Open(1, 0, TypeSimple)
	require.NoError(t, err)

	addr, err := client.Alloc(handle, 1, 0x2000, 0x1000)
	require.NoError(t, err)
	require.NotEqual(t, AllocInvalid, addr)

	// The broker's registry observes the client's allocation directly.
	allocated, err := registry.IsAllocated(handle, 1, 0x2000, addr)
	require.NoError(t, err)
	require.True(t, allocated)

	// And the client observes direct registry mutations.
	ok, err := registry.Reserve(handle, 0, addr+0x10000, 0x1000)
	require.NoError(t, err)
	require.True(t, ok)

	reserved, err := client.IsReserved(handle, addr+0x10000, 0x1000)
	require.NoError(t, err)
	require.True(t, reserved)

	start, end, err := client.AddressRange(handle)
	require.NoError(t, err)
	require.Equal(t, uint64(0x1000), start)
	require.Equal(t, uint64(1)<<47, end)

	freed, err := client.Free(handle, 1)
	require.NoError(t, err)
	require.True(t, freed)

	ok, err = client.Unreserve(handle, 0, addr+0x10000, 0x1000)
	require.NoError(t, err)
	require.True(t, ok)

	empty, err := client.Close(handle)
	require.NoError(t, err)
	require.True(t, empty)
}

func TestTwoClientsShareOneAddressSpace(t *testing.T) {
	registry := NewRegistry(testLogger(), 0)
	broker := NewBroker(testLogger(), registry)
	first := pipeClient(t, broker)
	second := pipeClient(t, broker)

	h1, err := first.Open(1, 0, TypeSimple)
	require.NoError(t, err)
	h2, err := second.Open(1, 0, TypeSimple)
	require.NoError(t, err)
	require.Equal(t, h1, h2)

	addr1, err := first.Alloc(h1, 1, 0x1000, 0x1000)
	require.NoError(t, err)
	addr2, err := second.Alloc(h2, 2, 0x1000, 0x1000)
	require.NoError(t, err)
	require.NotEqual(t, addr1, addr2)

	// The same object handle resolves identically from both sides.
	again, err := second.Alloc(h2, 1, 0x1000, 0x1000)
	require.NoError(t, err)
	require.Equal(t, addr1, again)
}

func TestClientErrorsCarrySentinels(t *testing.T) {
	registry := NewRegistry(testLogger(), 0)
	broker := NewBroker(testLogger(), registry)
	client := pipeClient(t, broker)

	_, err := client.Alloc(999, 1, 0x1000, 0x1000)
	require.ErrorIs(t, err, ErrInvalidHandle)

	_, err = client.Open(1, 0, TypeNone)
	require.ErrorIs(t, err, ErrUnsupportedType)

	_, err = client.Open(1, 0, TypeSimple)
	require.NoError(t, err)
	_, err = client.Open(1, 0, TypeReloc)
	require.ErrorIs(t, err, ErrTypeMismatch)
}

func TestClientAllocExhaustion(t *testing.T) {
	registry := NewRegistry(testLogger(), 0)
	broker := NewBroker(testLogger(), registry)
	client := pipeClient(t, broker)

	handle, err := client.OpenFull(1, 0, 0x1000, 0x3000, TypeSimple, StrategyLowToHigh, 0)
	require.NoError(t, err)

	// The invalid-address sentinel survives the wire round trip.
	addr, err := client.Alloc(handle, 1, 0x4000, 0x1000)
	require.NoError(t, err)
	require.Equal(t, AllocInvalid, addr)
}

func TestDetachGivesPrivateRegistry(t *testing.T) {
	registry := NewRegistry(testLogger(), 0)
	broker := NewBroker(testLogger(), registry)
	client := pipeClient(t, broker)

	handle, err := client.Open(1, 0, TypeSimple)
	require.NoError(t, err)
	_, err = client.Alloc(handle, 1, 0x1000, 0x1000)
	require.NoError(t, err)

	private := client.Detach(0)

	// The old connection is gone.
	_, err = client.Alloc(handle, 2, 0x1000, 0x1000)
	require.ErrorIs(t, err, ErrBrokerStopped)

	// The private registry is independent of the broker's.
	privHandle, err := private.Open(1, 0, TypeSimple)
	require.NoError(t, err)
	addr, err := private.Alloc(privHandle, 1, 0x1000, 0x1000)
	require.NoError(t, err)
	require.NotEqual(t, AllocInvalid, addr)

	// The broker-side state is untouched in its own process.
	allocated, err := registry.IsAllocated(handle, 1, 0x1000, 0x1000)
	require.NoError(t, err)
	require.True(t, allocated)
}

func TestStoppedBrokerRejectsListen(t *testing.T) {
	broker := NewBroker(testLogger(), NewRegistry(testLogger(), 0))
	broker.Stop()
	require.ErrorIs(t, broker.Listen("/tmp/should-not-bind.sock"), ErrBrokerStopped)
}

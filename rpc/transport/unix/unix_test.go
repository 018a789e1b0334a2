package unix

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ValentinKolb/dCfg/rpc/common"
	"github.com/ValentinKolb/dCfg/rpc/transport"
	"github.com/ValentinKolb/dCfg/rpc/transport/base"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startHub starts a hub on a fresh socket. A short temp dir keeps the socket
// path below the platform limit.
func startHub(t *testing.T) (*base.HubTransport, string) {
	t.Helper()

	dir, err := os.MkdirTemp("", "dcfg")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	socket := filepath.Join(dir, "hub.sock")

	hub := NewUnixHubTransport(0, 4)
	go func() {
		if err := hub.Listen(common.HubConfig{Endpoint: socket, TimeoutSecond: 2}); err != nil {
			t.Errorf("Listen failed: %v", err)
		}
	}()
	t.Cleanup(func() { hub.Close() })

	require.Eventually(t, func() bool { return hub.Addr() != nil }, 2*time.Second, 10*time.Millisecond)
	return hub, socket
}

func connect(t *testing.T, socket, name string) transport.IPubSubTransport {
	t.Helper()
	tr := NewUnixClientTransport()
	require.NoError(t, tr.Connect(common.TransportConfig{
		Endpoints:     []string{socket},
		ClientName:    name,
		TimeoutSecond: 2,
		RetryCount:    3,
	}))
	t.Cleanup(func() { tr.Close() })
	return tr
}

func receive(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
		return ""
	}
}

func TestHubRelay(t *testing.T) {
	hub, socket := startHub(t)

	pub := connect(t, socket, "pub")
	sub := connect(t, socket, "sub")

	received := make(chan string, 10)
	unsub, err := sub.Subscribe("dcfg.test", func(payload []byte) {
		received <- string(payload)
	})
	require.NoError(t, err)

	// the subscribe frame is processed asynchronously by the hub
	require.Eventually(t, func() bool { return hub.Stats().Topics == 1 }, 2*time.Second, 10*time.Millisecond)

	for _, msg := range []string{"one", "two", "three"} {
		require.NoError(t, pub.Publish("dcfg.test", []byte(msg)))
	}
	assert.Equal(t, "one", receive(t, received))
	assert.Equal(t, "two", receive(t, received))
	assert.Equal(t, "three", receive(t, received))

	unsub()
	require.Eventually(t, func() bool { return hub.Stats().Topics == 0 }, 2*time.Second, 10*time.Millisecond)

	// the delivered counter is updated after the write returned
	require.Eventually(t, func() bool { return hub.Stats().Delivered == 3 }, 2*time.Second, 10*time.Millisecond)
	stats := hub.Stats()
	assert.Equal(t, 2, stats.Connections)
	assert.Equal(t, uint64(3), stats.Published)
}

func TestPublisherReceivesOwnMessages(t *testing.T) {
	hub, socket := startHub(t)
	tr := connect(t, socket, "self")

	received := make(chan string, 1)
	_, err := tr.Subscribe("dcfg.self", func(payload []byte) {
		received <- string(payload)
	})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.Stats().Topics == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, tr.Publish("dcfg.self", []byte("echo")))
	assert.Equal(t, "echo", receive(t, received))
}

func TestConnectFailure(t *testing.T) {
	tr := NewUnixClientTransport()
	err := tr.Connect(common.TransportConfig{Endpoints: []string{"/nonexistent/dcfg.sock"}, TimeoutSecond: 1})
	assert.Error(t, err)

	assert.Error(t, NewUnixClientTransport().Connect(common.TransportConfig{}))
}

func TestCloseIsIdempotent(t *testing.T) {
	_, socket := startHub(t)
	tr := connect(t, socket, "c")

	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())

	_, err := tr.Subscribe("x", func([]byte) {})
	assert.Error(t, err)
	assert.Error(t, tr.Publish("x", nil))
}

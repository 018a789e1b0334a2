package nats

import (
	"os"
	"testing"
	"time"

	"github.com/ValentinKolb/dCfg/rpc/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requireServer skips the test unless DCFG_NATS_URL points to a server
func requireServer(t *testing.T) string {
	url := os.Getenv("DCFG_NATS_URL")
	if url == "" {
		t.Skip("DCFG_NATS_URL not set")
	}
	return url
}

func TestNotConnected(t *testing.T) {
	tr := NewNATSTransport()
	assert.Error(t, tr.Publish("x", nil))
	_, err := tr.Subscribe("x", func([]byte) {})
	assert.Error(t, err)
	assert.NoError(t, tr.Close())
}

func TestPublishSubscribe(t *testing.T) {
	url := requireServer(t)

	config := common.TransportConfig{
		Endpoints:     []string{url},
		ClientName:    "nats-test",
		TimeoutSecond: 2,
	}

	sub := NewNATSTransport()
	require.NoError(t, sub.Connect(config))
	defer sub.Close()

	pub := NewNATSTransport()
	require.NoError(t, pub.Connect(config))
	defer pub.Close()

	topic := "dcfg-test." + uuid.NewString()
	received := make(chan string, 3)
	unsub, err := sub.Subscribe(topic, func(payload []byte) {
		received <- string(payload)
	})
	require.NoError(t, err)

	for _, msg := range []string{"a", "b", "c"} {
		require.NoError(t, pub.Publish(topic, []byte(msg)))
	}

	for _, want := range []string{"a", "b", "c"} {
		select {
		case got := <-received:
			assert.Equal(t, want, got)
		case <-time.After(2 * time.Second):
			t.Fatalf("message %q not delivered", want)
		}
	}

	unsub()
	unsub()
}

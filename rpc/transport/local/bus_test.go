package local

import (
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/dCfg/rpc/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connect(t *testing.T, bus *Bus, name string) *localTransport {
	t.Helper()
	tr := NewTransport(bus).(*localTransport)
	require.NoError(t, tr.Connect(common.TransportConfig{ClientName: name}))
	t.Cleanup(func() { tr.Close() })
	return tr
}

func TestPublishSubscribe(t *testing.T) {
	bus := NewBus()
	a := connect(t, bus, "a")
	b := connect(t, bus, "b")

	received := make(chan string, 10)
	_, err := b.Subscribe("dcfg.test", func(payload []byte) {
		received <- string(payload)
	})
	require.NoError(t, err)

	_, err = a.Subscribe("dcfg.other", func(payload []byte) {
		t.Errorf("unexpected delivery on other topic")
	})
	require.NoError(t, err)

	require.NoError(t, a.Publish("dcfg.test", []byte("hello")))

	select {
	case msg := <-received:
		assert.Equal(t, "hello", msg)
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
}

func TestOrderedDelivery(t *testing.T) {
	bus := NewBus()
	tr := connect(t, bus, "a")

	const n = 200
	var (
		mu  sync.Mutex
		got []byte
		wg  sync.WaitGroup
	)
	wg.Add(n)
	_, err := tr.Subscribe("t", func(payload []byte) {
		mu.Lock()
		got = append(got, payload[0])
		mu.Unlock()
		wg.Done()
	})
	require.NoError(t, err)

	for i := 0; i < n; i++ {
		require.NoError(t, tr.Publish("t", []byte{byte(i)}))
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		assert.Equal(t, byte(i), got[i])
	}
}

func TestPayloadIsCopied(t *testing.T) {
	bus := NewBus()
	tr := connect(t, bus, "a")

	received := make(chan []byte, 1)
	_, err := tr.Subscribe("t", func(payload []byte) { received <- payload })
	require.NoError(t, err)

	payload := []byte("abc")
	require.NoError(t, tr.Publish("t", payload))
	payload[0] = 'x'

	assert.Equal(t, "abc", string(<-received))
}

func TestUnsubscribeAndClose(t *testing.T) {
	bus := NewBus()
	tr := connect(t, bus, "a")

	unsub, err := tr.Subscribe("t", func([]byte) {})
	require.NoError(t, err)
	_, err = tr.Subscribe("t", func([]byte) {})
	require.NoError(t, err)
	assert.Equal(t, 2, bus.Subscribers("t"))

	unsub()
	unsub()
	assert.Equal(t, 1, bus.Subscribers("t"))

	require.NoError(t, tr.Close())
	assert.Equal(t, 0, bus.Subscribers("t"))
	assert.Error(t, tr.Publish("t", nil))

	_, err = tr.Subscribe("t", func([]byte) {})
	assert.Error(t, err)
}

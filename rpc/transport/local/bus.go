package local

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/dCfg/rpc/common"
	"github.com/ValentinKolb/dCfg/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("transport")

// --------------------------------------------------------------------------
// Bus
// --------------------------------------------------------------------------

// subscriber is one Subscribe call. Each subscriber has its own dispatcher,
// so a slow handler only delays its own deliveries.
type subscriber struct {
	topic      string
	handler    transport.MessageHandler
	dispatcher *transport.Dispatcher
}

// Bus is an in-process message bus. Every transport created with
// NewTransport for the same Bus sees the messages of the others.
type Bus struct {
	nextID      atomic.Uint64
	subscribers *xsync.MapOf[uint64, *subscriber]
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{
		subscribers: xsync.NewMapOf[uint64, *subscriber](),
	}
}

// Default is the process wide bus used by the "local" transport option
var Default = NewBus()

// publish hands a copy of payload to every subscriber of topic
func (b *Bus) publish(topic string, payload []byte) int {
	delivered := 0
	b.subscribers.Range(func(_ uint64, sub *subscriber) bool {
		if sub.topic != topic {
			return true
		}
		data := append([]byte(nil), payload...)
		if sub.dispatcher.Dispatch(func() { sub.handler(data) }) {
			delivered++
		}
		return true
	})
	return delivered
}

func (b *Bus) subscribe(sub *subscriber) uint64 {
	id := b.nextID.Add(1)
	b.subscribers.Store(id, sub)
	return id
}

func (b *Bus) unsubscribe(id uint64) {
	if sub, ok := b.subscribers.LoadAndDelete(id); ok {
		sub.dispatcher.Stop()
	}
}

// Subscribers returns the number of active subscriptions on topic
func (b *Bus) Subscribers(topic string) int {
	n := 0
	b.subscribers.Range(func(_ uint64, sub *subscriber) bool {
		if sub.topic == topic {
			n++
		}
		return true
	})
	return n
}

// --------------------------------------------------------------------------
// Transport
// --------------------------------------------------------------------------

// localTransport is one participant of a Bus
type localTransport struct {
	bus       *Bus
	name      string
	connected atomic.Bool

	mu  sync.Mutex
	ids map[uint64]struct{}
}

// NewTransport creates a transport attached to bus
func NewTransport(bus *Bus) transport.IPubSubTransport {
	return &localTransport{
		bus: bus,
		ids: make(map[uint64]struct{}),
	}
}

// NewDefaultTransport creates a transport attached to the process wide bus
func NewDefaultTransport() transport.IPubSubTransport {
	return NewTransport(Default)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IPubSubTransport)
// --------------------------------------------------------------------------

func (t *localTransport) Connect(config common.TransportConfig) error {
	t.name = config.ClientName
	t.connected.Store(true)
	Logger.Debugf("local transport %q connected", t.name)
	return nil
}

func (t *localTransport) Publish(topic string, payload []byte) error {
	if !t.connected.Load() {
		return fmt.Errorf("local transport not connected")
	}
	n := t.bus.publish(topic, payload)
	Logger.Debugf("%q published %d bytes on %s to %d subscribers", t.name, len(payload), topic, n)
	return nil
}

func (t *localTransport) Subscribe(topic string, handler transport.MessageHandler) (func(), error) {
	if !t.connected.Load() {
		return nil, fmt.Errorf("local transport not connected")
	}

	id := t.bus.subscribe(&subscriber{
		topic:      topic,
		handler:    handler,
		dispatcher: transport.NewDispatcher(),
	})

	t.mu.Lock()
	t.ids[id] = struct{}{}
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.ids, id)
			t.mu.Unlock()
			t.bus.unsubscribe(id)
		})
	}, nil
}

func (t *localTransport) Close() error {
	t.connected.Store(false)

	t.mu.Lock()
	ids := t.ids
	t.ids = make(map[uint64]struct{})
	t.mu.Unlock()

	for id := range ids {
		t.bus.unsubscribe(id)
	}
	return nil
}

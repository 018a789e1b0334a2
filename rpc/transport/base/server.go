package base

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dCfg/rpc/common"
	"github.com/ValentinKolb/dCfg/rpc/transport"
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific hub operations
type IServerConnector interface {
	// Listen creates a listener and returns it
	Listen(config common.HubConfig) (net.Listener, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an accepted connection
	UpgradeConnection(conn net.Conn) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// hubConnection is one accepted client connection
type hubConnection struct {
	conn    net.Conn
	writeMu sync.Mutex
	topics  map[uint64]struct{} // guarded by HubTransport.mu
}

// HubTransport relays published frames to the subscribed connections.
// It implements transport.IHubTransport.
type HubTransport struct {
	connector         IServerConnector
	config            common.HubConfig
	bufferPool        *sync.Pool
	maxWorkersPerConn int

	mu          sync.RWMutex
	listener    net.Listener
	subscribers map[uint64]map[*hubConnection]struct{}
	conns       map[*hubConnection]struct{}
	closed      atomic.Bool
	connWg      sync.WaitGroup

	// counters, read by Stats
	published atomic.Uint64
	delivered atomic.Uint64
}

// HubStats is a snapshot of the hub counters
type HubStats struct {
	Connections int
	Topics      int
	Published   uint64
	Delivered   uint64
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseHubTransport creates a hub with a per-connection worker pool.
// bufferSize is the size of the pooled read buffers, maxWorkersPerConn bounds
// the parallel writes of one fan out.
func NewBaseHubTransport(connector IServerConnector, bufferSize int, maxWorkersPerConn int) *HubTransport {
	// minimum one worker per connection
	maxWorkersPerConn = max(maxWorkersPerConn, 1)
	bufferSize = max(bufferSize, headerSize)

	return &HubTransport{
		connector:         connector,
		maxWorkersPerConn: maxWorkersPerConn,
		subscribers:       make(map[uint64]map[*hubConnection]struct{}),
		conns:             make(map[*hubConnection]struct{}),
		bufferPool: &sync.Pool{
			New: func() interface{} {
				return make([]byte, bufferSize)
			},
		},
	}
}

var _ transport.IHubTransport = (*HubTransport)(nil)

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IHubTransport)
// --------------------------------------------------------------------------

func (t *HubTransport) Listen(config common.HubConfig) error {
	listener, err := t.connector.Listen(config)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	t.mu.Lock()
	if t.closed.Load() {
		t.mu.Unlock()
		listener.Close()
		return nil
	}
	t.config = config
	t.listener = listener
	t.mu.Unlock()

	Logger.Infof("Starting %s hub on %s with %d workers per connection",
		t.connector.GetName(), config.Endpoint, t.maxWorkersPerConn)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if t.closed.Load() {
				return nil
			}
			Logger.Errorf("Accept error: %v", err)
			continue
		}

		if err := t.connector.UpgradeConnection(conn); err != nil {
			Logger.Warningf("Failed to upgrade connection from %s: %v", conn.RemoteAddr(), err)
		}

		hc := &hubConnection{conn: conn, topics: make(map[uint64]struct{})}
		t.mu.Lock()
		if t.closed.Load() {
			t.mu.Unlock()
			conn.Close()
			return nil
		}
		t.conns[hc] = struct{}{}
		t.connWg.Add(1)
		t.mu.Unlock()

		go t.handleConnection(hc)
	}
}

func (t *HubTransport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}

	t.mu.Lock()
	listener, endpoint := t.listener, t.config.Endpoint
	conns := make([]*hubConnection, 0, len(t.conns))
	for hc := range t.conns {
		conns = append(conns, hc)
	}
	t.mu.Unlock()

	var err error
	if listener != nil {
		err = listener.Close()
	}
	for _, hc := range conns {
		hc.conn.Close()
	}
	t.connWg.Wait()

	Logger.Infof("%s hub on %s closed", t.connector.GetName(), endpoint)
	return err
}

// Addr returns the address the hub listens on, nil before Listen
func (t *HubTransport) Addr() net.Addr {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

// Stats returns the current hub counters
func (t *HubTransport) Stats() HubStats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return HubStats{
		Connections: len(t.conns),
		Topics:      len(t.subscribers),
		Published:   t.published.Load(),
		Delivered:   t.delivered.Load(),
	}
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (t *HubTransport) timeout() time.Duration {
	return time.Duration(t.config.TimeoutSecond) * time.Second
}

func (t *HubTransport) subscribe(hc *hubConnection, topic uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	subs, ok := t.subscribers[topic]
	if !ok {
		subs = make(map[*hubConnection]struct{})
		t.subscribers[topic] = subs
	}
	subs[hc] = struct{}{}
	hc.topics[topic] = struct{}{}
}

func (t *HubTransport) unsubscribe(hc *hubConnection, topic uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.unsubscribeLocked(hc, topic)
}

func (t *HubTransport) unsubscribeLocked(hc *hubConnection, topic uint64) {
	delete(hc.topics, topic)
	if subs, ok := t.subscribers[topic]; ok {
		delete(subs, hc)
		if len(subs) == 0 {
			delete(t.subscribers, topic)
		}
	}
}

// removeConnection drops all subscriptions of hc
func (t *HubTransport) removeConnection(hc *hubConnection) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for topic := range hc.topics {
		t.unsubscribeLocked(hc, topic)
	}
	delete(t.conns, hc)
}

// targets returns the connections subscribed to topic
func (t *HubTransport) targets(topic uint64) []*hubConnection {
	t.mu.RLock()
	defer t.mu.RUnlock()

	subs := t.subscribers[topic]
	targets := make([]*hubConnection, 0, len(subs))
	for hc := range subs {
		targets = append(targets, hc)
	}
	return targets
}

// deliver writes one publish frame to hc
func (t *HubTransport) deliver(hc *hubConnection, topic uint64, data []byte) error {
	hc.writeMu.Lock()
	defer hc.writeMu.Unlock()

	if timeout := t.timeout(); timeout > 0 {
		if err := hc.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return fmt.Errorf("failed to set write deadline: %w", err)
		}
	}
	return writeFrame(hc.conn, topic, opPublish, data)
}

// handleConnection reads the frames of one connection until it is closed.
// A publish is fanned out to all subscribers before the next frame is read,
// so the messages of one publisher keep their order.
func (t *HubTransport) handleConnection(hc *hubConnection) {
	defer t.connWg.Done()
	defer hc.conn.Close()
	defer t.removeConnection(hc)

	// counting semaphore limiting the parallel writes of one fan out
	workerSemaphore := make(chan struct{}, t.maxWorkersPerConn)

	fanOut := func(topic uint64, data []byte) {
		var wg sync.WaitGroup
		for _, target := range t.targets(topic) {
			workerSemaphore <- struct{}{}
			wg.Add(1)

			go func(target *hubConnection) {
				defer func() {
					<-workerSemaphore
					wg.Done()
				}()

				if err := t.deliver(target, topic, data); err != nil {
					Logger.Warningf("Dropping subscriber %s: %v", target.conn.RemoteAddr(), err)
					target.conn.Close()
					return
				}
				t.delivered.Add(1)
			}(target)
		}
		wg.Wait()
	}

	handleFrame := func() error {
		buf := t.bufferPool.Get().([]byte)
		defer t.bufferPool.Put(buf)

		topic, op, data, err := readFrame(hc.conn, buf)
		if err != nil {
			return err
		}

		switch op {
		case opSubscribe:
			t.subscribe(hc, topic)
		case opUnsubscribe:
			t.unsubscribe(hc, topic)
		case opPublish:
			t.published.Add(1)
			fanOut(topic, data)
		default:
			Logger.Warningf("Ignoring frame with unknown operation %s from %s", opName(op), hc.conn.RemoteAddr())
		}
		return nil
	}

	for {
		err := handleFrame()

		if err == io.EOF || errors.Is(err, net.ErrClosed) {
			Logger.Debugf("Connection %s closed", hc.conn.RemoteAddr())
			return
		}
		if err != nil {
			if !t.closed.Load() {
				Logger.Errorf("Error reading from %s: %v", hc.conn.RemoteAddr(), err)
			}
			return
		}
	}
}

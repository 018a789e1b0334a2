package base

import (
	"errors"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dCfg/rpc/common"
	"github.com/ValentinKolb/dCfg/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("transport")

const (
	initialBackoff = 50 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection to endpoint
	Connect(endpoint string, timeout time.Duration) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// subscription is one Subscribe call
type subscription struct {
	id      uint64
	topic   string
	handler transport.MessageHandler
}

// clientTransport implements transport.IPubSubTransport against a hub,
// independent of the specific transport medium (unix, tcp, etc.)
type clientTransport struct {
	connector IClientConnector
	config    common.TransportConfig

	connMu sync.Mutex // protects conn and writes to it
	conn   net.Conn

	// topic id -> subscriptions of that topic
	subscriptions *xsync.MapOf[uint64, []subscription]
	nextSubID     atomic.Uint64
	dispatcher    *transport.Dispatcher

	stopping atomic.Bool
	stopCh   chan struct{}
	readerWg sync.WaitGroup
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseClientTransport creates a new base client transport with the specified connector
func NewBaseClientTransport(connector IClientConnector) transport.IPubSubTransport {
	return &clientTransport{
		connector:     connector,
		subscriptions: xsync.NewMapOf[uint64, []subscription](),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IPubSubTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) Connect(config common.TransportConfig) error {
	if len(config.Endpoints) == 0 {
		return fmt.Errorf("no endpoints provided")
	}

	t.connMu.Lock()
	if t.conn != nil {
		t.connMu.Unlock()
		return fmt.Errorf("%s transport already connected", t.connector.GetName())
	}
	t.config = config
	t.connMu.Unlock()

	conn, err := t.dial()
	if err != nil {
		return err
	}

	t.connMu.Lock()
	t.conn = conn
	t.connMu.Unlock()

	t.stopping.Store(false)
	t.stopCh = make(chan struct{})
	t.dispatcher = transport.NewDispatcher()

	t.readerWg.Add(1)
	go t.readLoop(conn)

	return nil
}

func (t *clientTransport) Publish(topic string, payload []byte) error {
	id := topicID(topic)

	// We always try at least once, and up to RetryCount times
	maxRetries := max(t.config.RetryCount, 1)
	backoff := initialBackoff

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		lastErr = t.write(id, opPublish, payload)
		if lastErr == nil {
			return nil
		}
		if t.stopping.Load() {
			break
		}

		Logger.Debugf("Publish attempt %d/%d on %s failed: %v", i+1, maxRetries, topic, lastErr)
		if i < maxRetries-1 {
			time.Sleep(jitter(backoff))
			backoff *= 2
		}
	}

	return fmt.Errorf("failed to publish on %s after %d attempts: %w", topic, maxRetries, lastErr)
}

func (t *clientTransport) Subscribe(topic string, handler transport.MessageHandler) (func(), error) {
	if t.dispatcher == nil || t.stopping.Load() {
		return nil, fmt.Errorf("%s transport not connected", t.connector.GetName())
	}

	id := topicID(topic)
	sub := subscription{id: t.nextSubID.Add(1), topic: topic, handler: handler}

	first := false
	t.subscriptions.Compute(id, func(subs []subscription, loaded bool) ([]subscription, bool) {
		first = len(subs) == 0
		return append(subs[:len(subs):len(subs)], sub), false
	})

	if first {
		if err := t.write(id, opSubscribe, nil); err != nil {
			t.removeSubscription(id, sub.id)
			return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if t.removeSubscription(id, sub.id) && !t.stopping.Load() {
				if err := t.write(id, opUnsubscribe, nil); err != nil {
					Logger.Warningf("Failed to unsubscribe from %s: %v", topic, err)
				}
			}
		})
	}, nil
}

func (t *clientTransport) Close() error {
	if t.stopping.Swap(true) {
		return nil
	}

	if t.stopCh != nil {
		close(t.stopCh)
	}

	t.connMu.Lock()
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
	t.connMu.Unlock()

	t.readerWg.Wait()
	if t.dispatcher != nil {
		t.dispatcher.Stop()
	}
	t.subscriptions.Clear()
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// dial connects to the first reachable endpoint
func (t *clientTransport) dial() (net.Conn, error) {
	var lastErr error
	for _, endpoint := range t.config.Endpoints {
		conn, err := t.connector.Connect(endpoint, t.config.Timeout())
		if err != nil {
			lastErr = err
			Logger.Debugf("Failed to connect to %s: %v", endpoint, err)
			continue
		}

		if err := t.connector.UpgradeConnection(conn); err != nil {
			conn.Close()
			lastErr = fmt.Errorf("failed to upgrade connection to %s: %w", endpoint, err)
			continue
		}

		Logger.Infof("Connected to %s hub %s", t.connector.GetName(), endpoint)
		return conn, nil
	}
	return nil, fmt.Errorf("failed to connect to any endpoint: %w", lastErr)
}

// write sends one frame on the current connection
func (t *clientTransport) write(topic, op uint64, data []byte) error {
	t.connMu.Lock()
	defer t.connMu.Unlock()

	if t.conn == nil {
		return fmt.Errorf("connection is closed")
	}
	if err := t.conn.SetWriteDeadline(time.Now().Add(t.config.Timeout())); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	return writeFrame(t.conn, topic, op, data)
}

// removeSubscription removes one subscription and reports whether the topic
// has no subscriptions left
func (t *clientTransport) removeSubscription(topic, subID uint64) bool {
	last := false
	t.subscriptions.Compute(topic, func(subs []subscription, loaded bool) ([]subscription, bool) {
		kept := make([]subscription, 0, len(subs))
		for _, s := range subs {
			if s.id != subID {
				kept = append(kept, s)
			}
		}
		last = loaded && len(kept) == 0
		return kept, len(kept) == 0
	})
	return last
}

// readLoop reads publish frames and hands them to the dispatcher. When the
// connection breaks it reconnects and subscribes again.
func (t *clientTransport) readLoop(conn net.Conn) {
	defer t.readerWg.Done()

	for {
		topic, op, data, err := readFrame(conn, nil)
		if err != nil {
			if t.stopping.Load() {
				return
			}
			if !errors.Is(err, net.ErrClosed) {
				Logger.Warningf("Connection to hub lost: %v", err)
			}

			conn = t.reconnect()
			if conn == nil {
				return
			}
			continue
		}

		if op != opPublish {
			Logger.Warningf("Ignoring frame with operation %s from hub", opName(op))
			continue
		}

		subs, ok := t.subscriptions.Load(topic)
		if !ok {
			continue
		}
		t.dispatcher.Dispatch(func() {
			for _, s := range subs {
				s.handler(data)
			}
		})
	}
}

// reconnect dials until it succeeds or the transport is closed.
// It returns nil if the transport was closed.
func (t *clientTransport) reconnect() net.Conn {
	t.connMu.Lock()
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
	t.connMu.Unlock()

	backoff := initialBackoff
	for {
		select {
		case <-t.stopCh:
			return nil
		case <-time.After(jitter(backoff)):
		}

		conn, err := t.dial()
		if err != nil {
			Logger.Debugf("Reconnect failed: %v", err)
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		t.connMu.Lock()
		if t.stopping.Load() {
			t.connMu.Unlock()
			conn.Close()
			return nil
		}
		t.conn = conn
		t.connMu.Unlock()

		// subscribe again to every topic with active subscriptions
		resubscribed := 0
		t.subscriptions.Range(func(topic uint64, _ []subscription) bool {
			if err := t.write(topic, opSubscribe, nil); err != nil {
				Logger.Warningf("Failed to resubscribe: %v", err)
				return false
			}
			resubscribed++
			return true
		})
		Logger.Infof("Reconnected to hub, resubscribed %d topics", resubscribed)
		return conn
	}
}

// jitter returns d with a random jitter of +-10%
func jitter(d time.Duration) time.Duration {
	return time.Duration(float64(d) * (0.9 + 0.2*rand.Float64()))
}

package nats

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ValentinKolb/dCfg/rpc/common"
	"github.com/ValentinKolb/dCfg/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/nats-io/nats.go"
)

var Logger = logger.GetLogger("transport")

const reconnectWait = time.Second

// natsTransport implements transport.IPubSubTransport on a NATS connection.
// Topics are used as subjects unchanged.
type natsTransport struct {
	mu     sync.RWMutex
	conn   *nats.Conn
	config common.TransportConfig
	subs   map[*nats.Subscription]struct{}
	closed chan struct{}
}

// NewNATSTransport creates an unconnected NATS transport
func NewNATSTransport() transport.IPubSubTransport {
	return &natsTransport{
		subs: make(map[*nats.Subscription]struct{}),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IPubSubTransport)
// --------------------------------------------------------------------------

func (t *natsTransport) Connect(config common.TransportConfig) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return fmt.Errorf("nats transport already connected")
	}

	url := nats.DefaultURL
	if len(config.Endpoints) > 0 {
		url = strings.Join(config.Endpoints, ",")
	}

	closed := make(chan struct{})
	conn, err := nats.Connect(url, t.options(config, closed)...)
	if err != nil {
		return fmt.Errorf("failed to connect to nats at %s: %w", url, err)
	}

	t.conn = conn
	t.config = config
	t.closed = closed
	Logger.Infof("Connected to nats server %s as %q", conn.ConnectedUrl(), config.ClientName)
	return nil
}

func (t *natsTransport) Publish(topic string, payload []byte) error {
	t.mu.RLock()
	conn := t.conn
	t.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("nats transport not connected")
	}
	if err := conn.Publish(topic, payload); err != nil {
		return fmt.Errorf("failed to publish on %s: %w", topic, err)
	}
	return nil
}

func (t *natsTransport) Subscribe(topic string, handler transport.MessageHandler) (func(), error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return nil, fmt.Errorf("nats transport not connected")
	}

	// async subscriptions deliver on their own goroutine, in order
	sub, err := t.conn.Subscribe(topic, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}
	t.subs[sub] = struct{}{}

	return func() {
		t.mu.Lock()
		_, ok := t.subs[sub]
		delete(t.subs, sub)
		t.mu.Unlock()

		if ok {
			if err := sub.Unsubscribe(); err != nil && err != nats.ErrConnectionClosed {
				Logger.Warningf("Failed to unsubscribe from %s: %v", topic, err)
			}
		}
	}, nil
}

func (t *natsTransport) Close() error {
	t.mu.Lock()
	conn, closed := t.conn, t.closed
	t.conn = nil
	t.subs = make(map[*nats.Subscription]struct{})
	t.mu.Unlock()

	if conn == nil {
		return nil
	}

	// drain delivers pending messages, then closes the connection
	if err := conn.Drain(); err != nil {
		conn.Close()
		return fmt.Errorf("failed to drain nats connection: %w", err)
	}

	select {
	case <-closed:
	case <-time.After(t.config.Timeout()):
		Logger.Warningf("Drain did not finish within %s, closing", t.config.Timeout())
		conn.Close()
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (t *natsTransport) options(config common.TransportConfig, closed chan struct{}) []nats.Option {
	maxReconnects := -1
	if config.RetryCount > 0 {
		maxReconnects = config.RetryCount
	}

	opts := []nats.Option{
		nats.MaxReconnects(maxReconnects),
		nats.ReconnectWait(reconnectWait),
		nats.Timeout(config.Timeout()),
		nats.DrainTimeout(config.Timeout()),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				Logger.Warningf("Disconnected from nats: %v", err)
			}
		}),
		nats.ReconnectHandler(func(conn *nats.Conn) {
			Logger.Infof("Reconnected to nats server %s", conn.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			close(closed)
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			if sub != nil {
				Logger.Errorf("nats error on %s: %v", sub.Subject, err)
				return
			}
			Logger.Errorf("nats error: %v", err)
		}),
	}

	if config.ClientName != "" {
		opts = append(opts, nats.Name(config.ClientName))
	}
	return opts
}

package transport

import (
	"github.com/ValentinKolb/dCfg/rpc/common"
)

// --------------------------------------------------------------------------
// Pub/Sub Transport
// --------------------------------------------------------------------------

// MessageHandler is called by a transport for every payload published on a
// subscribed topic. The handler owns the payload. Handlers of one
// subscription are called sequentially in publish order, on a goroutine owned
// by the transport, so a handler may publish itself.
type MessageHandler func(payload []byte)

// IPubSubTransport is the interface for the message bus connecting config
// servers and config clients
type IPubSubTransport interface {
	// Connect initializes the transport with the given configuration
	Connect(config common.TransportConfig) error
	// Publish sends payload to every subscriber of topic (including the
	// publishing process itself, if subscribed)
	Publish(topic string, payload []byte) error
	// Subscribe registers handler for topic. The returned function removes
	// the subscription, calling it more than once is allowed.
	Subscribe(topic string, handler MessageHandler) (unsubscribe func(), err error)
	// Close removes all subscriptions and closes the connection
	Close() error
}

// --------------------------------------------------------------------------
// Hub Transport
// --------------------------------------------------------------------------

// IHubTransport is the relay process used by socket based transports.
// It forwards every published frame to all connections subscribed to its topic.
type IHubTransport interface {
	// Listen accepts connections until Close is called
	Listen(config common.HubConfig) error
	// Close stops the listener and drops all connections
	Close() error
}

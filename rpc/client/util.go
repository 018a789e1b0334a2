package client

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/dCfg/rpc/common"
	"github.com/ValentinKolb/dCfg/rpc/transport"
)

func (c *ConfigClient) topic(t common.MessageType) string {
	return common.Topic(c.config.Transport.Namespace, t)
}

// publish serializes and publishes msg on the topic of its type
func (c *ConfigClient) publish(msg *common.Message) error {
	data, err := c.serializer.Serialize(*msg)
	if err != nil {
		return fmt.Errorf("failed to serialize %s: %w", msg.MsgType, err)
	}
	return c.transport.Publish(c.topic(msg.MsgType), data)
}

// decode wraps a message handler into a transport handler. Messages are
// dropped while the server communication is disabled.
func (c *ConfigClient) decode(expected common.MessageType, handler func(*common.Message)) transport.MessageHandler {
	return func(payload []byte) {
		if !c.communicate.Load() {
			Logger.Debugf("client %s: communication disabled, dropping %s", c.name, expected)
			return
		}
		var msg common.Message
		if err := c.serializer.Deserialize(payload, &msg); err != nil {
			Logger.Warningf("client %s: failed to decode %s message: %v", c.name, expected, err)
			return
		}
		if msg.MsgType != expected {
			Logger.Warningf("client %s: received %s on the %s topic", c.name, msg.MsgType, expected)
			return
		}
		handler(&msg)
	}
}

// requestValue asks the config server for the value of a key of another
// component. ok is false if no reply arrived; the reply is only awaited if a
// server is known.
func (c *ConfigClient) requestValue(key string, valueType common.ValueType, def string) (reply common.Message, ok bool) {
	c.requestMu.Lock()
	defer c.requestMu.Unlock()

	p := &pendingRequest{
		key:       key,
		valueType: valueType,
		reply:     make(chan common.Message, 1),
	}
	c.pending.Store(p)
	defer c.pending.Store(nil)

	c.stats.valueRequests.Inc(1)
	start := time.Now()
	if err := c.publish(common.NewRequestSingleValue(c.name, key, valueType, def)); err != nil {
		Logger.Warningf("client %s: failed to request %s: %v", c.name, key, err)
		return common.Message{}, false
	}
	if len(c.ActiveServers()) == 0 {
		Logger.Debugf("client %s: no active config server, not waiting for %s", c.name, key)
		return common.Message{}, false
	}

	timer := time.NewTimer(c.config.ResponseTimeout())
	defer timer.Stop()

	select {
	case reply = <-p.reply:
		c.stats.latency.UpdateSince(start)
		if reply.Err != "" {
			Logger.Warningf("client %s: server failed to resolve %s: %s", c.name, key, reply.Err)
			return reply, false
		}
		return reply, true
	case <-timer.C:
		c.stats.valueTimeouts.Inc(1)
		Logger.Warningf("client %s: no reply for %s within %s", c.name, key, c.config.ResponseTimeout())
	case <-c.done:
	}
	return common.Message{}, false
}

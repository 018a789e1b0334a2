package client

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dCfg/lib/key"
	"github.com/ValentinKolb/dCfg/lib/store/ostore"
	"github.com/ValentinKolb/dCfg/rpc/common"
	"github.com/ValentinKolb/dCfg/rpc/serializer"
	"github.com/ValentinKolb/dCfg/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("client")

// ConfigClient owns the configuration of one component. Values of other
// components are requested from the config server, the own configuration is
// pushed to the server whenever it changed.
type ConfigClient struct {
	config     common.ClientConfig
	name       string
	transport  transport.IPubSubTransport
	serializer serializer.IRPCSerializer
	store      *ostore.Store
	stats      *clientStats

	// incoming messages are dropped and pushes skipped while false
	communicate  atomic.Bool
	dirty        atomic.Bool
	pushInterval atomic.Int64
	wake         chan struct{}

	mu          sync.Mutex
	servers     []string
	validServer string

	// one value request is in flight at a time
	requestMu sync.Mutex
	pending   atomic.Pointer[pendingRequest]

	unsubscribe []func()
	done        chan struct{}
	wg          sync.WaitGroup
	closed      atomic.Bool
}

// pendingRequest is the value request waiting for its reply
type pendingRequest struct {
	key       string
	valueType common.ValueType
	reply     chan common.Message
}

// NewConfigClient creates a config client for the component config.Name
// It connects the transport, subscribes to the server messages and starts
// the goroutine pushing the configuration to the server.
//
// Usage:
//
//	c, err := client.NewConfigClient(
//		common.ClientConfig{Name: "camera"},
//		nats.NewNATSTransport(),
//		serializer.NewBinarySerializer(),
//	)
//	if err != nil {
//		panic(err)
//	}
//	defer c.Close()
//
//	store.PutInt(c, "camera:fps", 30)
//	c.FinishInit()
func NewConfigClient(
	config common.ClientConfig,
	transport transport.IPubSubTransport,
	serializer serializer.IRPCSerializer,
) (*ConfigClient, error) {
	if !key.ValidComponentName(config.Name) {
		return nil, fmt.Errorf("invalid client name %q", config.Name)
	}

	tc := config.Transport
	tc.ClientName = config.Name
	if err := transport.Connect(tc); err != nil {
		return nil, fmt.Errorf("failed to connect transport: %w", err)
	}

	s := ostore.New(config.Name, true, nil)
	s.AddComponent(config.Name)

	c := &ConfigClient{
		config:      config,
		name:        config.Name,
		transport:   transport,
		serializer:  serializer,
		store:       s,
		stats:       newClientStats(),
		wake:        make(chan struct{}, 1),
		validServer: config.ValidServerName,
		done:        make(chan struct{}),
	}
	c.communicate.Store(true)
	c.pushInterval.Store(int64(config.PushInterval()))

	handlers := map[common.MessageType]func(*common.Message){
		common.MsgTSendFullConfig:      c.onSendFullConfig,
		common.MsgTSendSingleValue:     c.onSendSingleValue,
		common.MsgTRequestClientConfig: c.onRequestClientConfig,
	}
	for msgType, handler := range handlers {
		unsubscribe, err := transport.Subscribe(c.topic(msgType), c.decode(msgType, handler))
		if err != nil {
			c.unsubscribeAll()
			transport.Close()
			return nil, fmt.Errorf("failed to subscribe to %s: %w", msgType, err)
		}
		c.unsubscribe = append(c.unsubscribe, unsubscribe)
	}

	c.wg.Add(1)
	go c.pushLoop()

	Logger.Infof("Created config client %s", c.name)
	Logger.Debugf("%s", config.String())
	return c, nil
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// FinishInit requests the full config from the server, waits up to the
// response timeout for it and merges all sources. The merged configuration
// is pushed to the server afterwards. The client is usable even if the
// request failed, the error is returned for information.
func (c *ConfigClient) FinishInit() error {
	c.store.ResetWaitForResponseFlag()

	err := c.publish(common.NewRequestFullConfig(c.name))
	if err != nil {
		Logger.Warningf("client %s: failed to request the full config: %v", c.name, err)
	} else {
		c.store.WaitForResponse(c.config.ResponseTimeout())
	}

	c.communicate.Store(false)
	c.store.FinishInitialization()
	c.communicate.Store(true)

	c.pushSoon()
	Logger.Infof("client %s finished initialization", c.name)
	return err
}

// IsInitFinished reports whether FinishInit was called
func (c *ConfigClient) IsInitFinished() bool {
	return c.store.IsInitFinished()
}

// Close wakes all waiters, stops the push goroutine, unsubscribes and
// closes the transport
func (c *ConfigClient) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	c.store.Close()
	close(c.done)
	c.wg.Wait()

	c.unsubscribeAll()
	err := c.transport.Close()
	Logger.Infof("config client %s closed", c.name)
	return err
}

func (c *ConfigClient) unsubscribeAll() {
	for _, unsubscribe := range c.unsubscribe {
		unsubscribe()
	}
	c.unsubscribe = nil
}

// --------------------------------------------------------------------------
// Settings
// --------------------------------------------------------------------------

// Name returns the client name, which is also its component
func (c *ConfigClient) Name() string { return c.name }

// Store returns the layered store of the client
func (c *ConfigClient) Store() *ostore.Store { return c.store }

// SetValidConfigServer restricts full configs to servers whose name starts
// with name. An empty name accepts every server.
func (c *ConfigClient) SetValidConfigServer(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.validServer = name
}

// SetPushInterval changes how often the push goroutine checks for changes
func (c *ConfigClient) SetPushInterval(d time.Duration) {
	if d <= 0 {
		Logger.Warningf("client %s: ignoring push interval %s", c.name, d)
		return
	}
	c.pushInterval.Store(int64(d))
	c.trigger()
}

// ActiveServers returns the names of the servers this client heard from
func (c *ConfigClient) ActiveServers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.servers...)
}

func (c *ConfigClient) registerServer(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.servers {
		if s == name {
			return
		}
	}
	c.servers = append(c.servers, name)
	if len(c.servers) > 1 {
		Logger.Warningf("client %s: more than one config server active: %s", c.name, strings.Join(c.servers, ", "))
	}
}

func (c *ConfigClient) acceptsServer(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.validServer == "" || strings.HasPrefix(name, c.validServer)
}

// --------------------------------------------------------------------------
// Push
// --------------------------------------------------------------------------

// Flush pushes the configuration to the server right away
func (c *ConfigClient) Flush() error {
	c.dirty.Store(true)
	return c.push()
}

// markDirty flags the configuration as changed, the next push interval
// publishes it
func (c *ConfigClient) markDirty() {
	c.dirty.Store(true)
}

// pushSoon flags the configuration as changed and wakes the push goroutine
func (c *ConfigClient) pushSoon() {
	c.dirty.Store(true)
	c.trigger()
}

func (c *ConfigClient) trigger() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *ConfigClient) pushLoop() {
	defer c.wg.Done()

	timer := time.NewTimer(time.Duration(c.pushInterval.Load()))
	defer timer.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-c.wake:
		case <-timer.C:
		}

		if err := c.push(); err != nil {
			Logger.Warningf("client %s: failed to push config: %v", c.name, err)
		}
		timer.Reset(time.Duration(c.pushInterval.Load()))
	}
}

// push publishes the configuration if it changed since the last push
func (c *ConfigClient) push() error {
	if !c.communicate.Load() || !c.dirty.Swap(false) {
		return nil
	}
	if err := c.publish(common.NewSendClientConfig(c.name, c.store.AllJSON(false))); err != nil {
		c.dirty.Store(true)
		return err
	}
	c.stats.pushes.Inc(1)
	return nil
}

// --------------------------------------------------------------------------
// Message Handlers
// --------------------------------------------------------------------------

func (c *ConfigClient) onSendFullConfig(msg *common.Message) {
	c.registerServer(msg.Sender)
	if !c.acceptsServer(msg.Sender) {
		Logger.Warningf("client %s: ignoring config of unexpected server %s", c.name, msg.Sender)
		return
	}
	if msg.Receiver != "" && msg.Receiver != c.name {
		return
	}

	if err := c.store.InsertJSONFrom(ostore.SourceConfigServer, msg.Config); err != nil {
		Logger.Warningf("client %s: invalid config from %s: %v", c.name, msg.Sender, err)
		return
	}
	c.stats.receivedConfigs.Inc(1)
	c.store.SetWaitForResponseFlag()
}

func (c *ConfigClient) onSendSingleValue(msg *common.Message) {
	c.registerServer(msg.Sender)
	if !c.acceptsServer(msg.Sender) {
		Logger.Warningf("client %s: ignoring value of unexpected server %s", c.name, msg.Sender)
		return
	}
	if msg.Receiver != c.name {
		return
	}

	p := c.pending.Load()
	if p == nil || p.key != msg.Key || p.valueType != msg.ValueType {
		Logger.Debugf("client %s: dropping unexpected value for %s (%s)", c.name, msg.Key, msg.ValueType)
		return
	}
	select {
	case p.reply <- *msg:
	default:
	}
}

func (c *ConfigClient) onRequestClientConfig(msg *common.Message) {
	c.registerServer(msg.Sender)
	c.pushSoon()
}

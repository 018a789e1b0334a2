package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/ValentinKolb/dCfg/lib/db"
	"github.com/ValentinKolb/dCfg/lib/store/ostore"
	"github.com/ValentinKolb/dCfg/rpc/common"
	"github.com/ValentinKolb/dCfg/rpc/serializer"
	"github.com/ValentinKolb/dCfg/rpc/transport"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("server")

const defaultName = "dcfg-server"

var errNoSnapshotFile = errors.New("no snapshot file configured")

// ConfigServer owns the global configuration. It answers full config and
// single value requests of the clients and collects the client configurations.
type ConfigServer struct {
	config     common.ServerConfig
	name       string
	transport  transport.IPubSubTransport
	serializer serializer.IRPCSerializer
	store      *ostore.Store
	metrics    *serverMetrics

	// serializes the handling of messages and the pushes of the full config
	commMu sync.Mutex

	mu          sync.Mutex
	started     bool
	closed      atomic.Bool
	unsubscribe []func()
}

// NewConfigServer creates a new config server
// It takes a config, transport and serializer as parameters. The config files
// listed in the config are loaded right away, files that can not be read are
// reported and skipped.
//
// Usage:
//
//	s := server.NewConfigServer(
//		*config,
//		nats.NewNATSTransport(),
//		serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(ctx); err != nil {
//		panic(err)
//	}
func NewConfigServer(
	config common.ServerConfig,
	transport transport.IPubSubTransport,
	serializer serializer.IRPCSerializer,
) *ConfigServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	if config.Name == "" {
		config.Name = defaultName
	}
	name := config.Name + "-" + uuid.NewString()

	// the server never waits for other sources
	s := ostore.New(name, false, nil)
	s.FinishInitialization()

	// config files are applied on top of the restored state
	if config.SnapshotFile != "" {
		if err := s.LoadSnapshot(config.SnapshotFile); err == nil {
			Logger.Infof("restored snapshot %s", config.SnapshotFile)
		} else if errors.Is(err, os.ErrNotExist) {
			Logger.Infof("no snapshot at %s, starting empty", config.SnapshotFile)
		} else {
			Logger.Errorf("failed to restore snapshot %s: %v", config.SnapshotFile, err)
		}
	}

	for _, file := range config.ConfigFiles {
		if err := s.PutCfg(file); err != nil {
			Logger.Errorf("failed to load config file %s: %v", file, err)
			continue
		}
		Logger.Infof("loaded config file %s", file)
	}

	server := &ConfigServer{
		config:     config,
		name:       name,
		transport:  transport,
		serializer: serializer,
		store:      s,
	}
	server.metrics = newServerMetrics(server)

	Logger.Infof("Created config server %s", name)
	Logger.Infof("%s", config.String())
	return server
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// Start connects the transport and subscribes to the client messages
func (s *ConfigServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("config server %s already started", s.name)
	}

	tc := s.config.Transport
	tc.ClientName = s.name
	if err := s.transport.Connect(tc); err != nil {
		return fmt.Errorf("failed to connect transport: %w", err)
	}

	handlers := map[common.MessageType]func(*common.Message){
		common.MsgTRequestFullConfig:  s.onRequestFullConfig,
		common.MsgTRequestSingleValue: s.onRequestSingleValue,
		common.MsgTSendClientConfig:   s.onSendClientConfig,
	}
	for msgType, handler := range handlers {
		unsubscribe, err := s.transport.Subscribe(s.topic(msgType), s.decode(msgType, handler))
		if err != nil {
			s.unsubscribeAll()
			s.transport.Close()
			return fmt.Errorf("failed to subscribe to %s: %w", msgType, err)
		}
		s.unsubscribe = append(s.unsubscribe, unsubscribe)
	}

	s.started = true
	Logger.Infof("config server %s listening on namespace %q", s.name, s.config.Transport.Namespace)
	return nil
}

// Serve starts the server and the optional admin endpoint and blocks until
// ctx is done
func (s *ConfigServer) Serve(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	defer s.Close()

	errCh := make(chan error, 1)
	var admin *http.Server
	if s.config.AdminEndpoint != "" {
		admin = &http.Server{
			Addr:              s.config.AdminEndpoint,
			Handler:           s.AdminHandler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			Logger.Infof("Starting admin endpoint on %s", s.config.AdminEndpoint)
			if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("admin endpoint failed: %w", err)
			}
		}()
	}

	var err error
	select {
	case <-ctx.Done():
	case err = <-errCh:
	}

	if admin != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := admin.Shutdown(shutdownCtx); shutdownErr != nil {
			Logger.Warningf("admin endpoint shutdown: %v", shutdownErr)
		}
	}
	return err
}

// Close unsubscribes, closes the transport and releases the store
func (s *ConfigServer) Close() error {
	if s.closed.Swap(true) {
		return nil
	}

	s.mu.Lock()
	s.unsubscribeAll()
	s.mu.Unlock()

	err := s.transport.Close()
	if s.config.SnapshotFile != "" {
		if snapErr := s.Snapshot(); snapErr != nil {
			Logger.Errorf("%v", snapErr)
		}
	}
	s.store.Close()
	Logger.Infof("config server %s closed", s.name)
	return err
}

func (s *ConfigServer) unsubscribeAll() {
	for _, unsubscribe := range s.unsubscribe {
		unsubscribe()
	}
	s.unsubscribe = nil
}

// --------------------------------------------------------------------------
// Operations
// --------------------------------------------------------------------------

// Name returns the unique name of this server instance
func (s *ConfigServer) Name() string { return s.name }

// Store returns the global configuration
func (s *ConfigServer) Store() *ostore.Store { return s.store }

// PushGlobalConfig sends the complete configuration to receiver, an empty
// receiver addresses every client
func (s *ConfigServer) PushGlobalConfig(receiver string, resetActive bool) error {
	s.commMu.Lock()
	defer s.commMu.Unlock()
	return s.publish(common.NewSendFullConfig(s.name, receiver, s.store.AllJSON(false), resetActive))
}

// PushConfig broadcasts doc as full config to every client
func (s *ConfigServer) PushConfig(doc string) error {
	return s.publish(common.NewSendFullConfig(s.name, "", doc, false))
}

// Snapshot writes the configuration to the configured snapshot file
func (s *ConfigServer) Snapshot() error {
	if s.config.SnapshotFile == "" {
		return errNoSnapshotFile
	}
	s.commMu.Lock()
	defer s.commMu.Unlock()
	return s.store.SaveSnapshot(s.config.SnapshotFile)
}

// ProbeClients asks every client for its configuration and waits the probe
// delay for the answers
func (s *ConfigServer) ProbeClients() error {
	if err := s.publish(common.NewRequestClientConfig(s.name)); err != nil {
		return err
	}
	time.Sleep(s.config.ProbeDelay())
	return nil
}

// DumpConfig probes the clients and returns the complete configuration
func (s *ConfigServer) DumpConfig(formatted bool) string {
	if err := s.ProbeClients(); err != nil {
		Logger.Warningf("failed to probe clients: %v", err)
	}
	s.commMu.Lock()
	defer s.commMu.Unlock()
	return s.store.AllJSON(formatted)
}

// RequestLocalConfig requests the full config like a client would and waits
// the probe delay
func (s *ConfigServer) RequestLocalConfig() error {
	if err := s.publish(common.NewRequestFullConfig(s.name)); err != nil {
		return err
	}
	time.Sleep(s.config.ProbeDelay())
	return nil
}

// ClearConfig removes every component from the configuration
func (s *ConfigServer) ClearConfig() {
	s.commMu.Lock()
	defer s.commMu.Unlock()
	s.store.Clear()
}

// --------------------------------------------------------------------------
// Message Handlers
// --------------------------------------------------------------------------

func (s *ConfigServer) onRequestFullConfig(msg *common.Message) {
	if err := s.PushGlobalConfig(msg.Sender, false); err != nil {
		Logger.Errorf("failed to push config to %s: %v", msg.Sender, err)
	}
}

func (s *ConfigServer) onRequestSingleValue(msg *common.Message) {
	if msg.Key == "" {
		Logger.Debugf("ignoring value request without key from %s", msg.Sender)
		return
	}

	s.commMu.Lock()
	defer s.commMu.Unlock()

	resp := common.NewSendSingleValue(s.name, msg.Sender, msg.Key, msg.ValueType, "", false)

	switch msg.ValueType {
	case common.ValueTBool, common.ValueTInt, common.ValueTFloat, common.ValueTString:
		kind, _ := db.ParseKind(string(msg.ValueType))
		v, found := s.store.Get(msg.Key, decodeDefault(msg, kind))
		resp.Value, resp.Found = v.String(), found

	case common.ValueTStringList:
		values, found := s.store.GetStringList(msg.Key, common.SplitList(msg.Value))
		resp.Value, resp.Found = common.JoinList(values), found

	case common.ValueTChildren:
		children := s.store.GetChildren(msg.Key, false)
		resp.Value, resp.Found = common.JoinList(children), len(children) > 0

	default:
		Logger.Warningf("value request from %s with unsupported type %q", msg.Sender, msg.ValueType)
		resp.Err = fmt.Sprintf("unsupported value type %q", msg.ValueType)
	}

	if err := s.publish(resp); err != nil {
		Logger.Errorf("failed to answer value request of %s: %v", msg.Sender, err)
	}
}

func (s *ConfigServer) onSendClientConfig(msg *common.Message) {
	s.commMu.Lock()
	defer s.commMu.Unlock()

	// client configs are accepted from everyone
	if err := s.store.InsertJSON(msg.Config); err != nil {
		Logger.Warningf("invalid config from %s: %v", msg.Sender, err)
		return
	}
	Logger.Debugf("inserted config of %s", msg.Sender)
}

// decodeDefault converts the stringified default of a request to kind. An
// unusable default is replaced by the zero value of kind.
func decodeDefault(msg *common.Message, kind db.Kind) db.Cell {
	if kind == db.KindString {
		return db.StringCell(msg.Value)
	}
	def, ok := db.StringCell(msg.Value).Convert(kind)
	if !ok {
		Logger.Warningf("could not convert default %q of %s to %s, using implementation default", msg.Value, msg.Key, kind)
		def, _ = db.IntCell(0).Convert(kind)
	}
	return def
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (s *ConfigServer) topic(t common.MessageType) string {
	return common.Topic(s.config.Transport.Namespace, t)
}

// publish serializes and publishes msg on the topic of its type
func (s *ConfigServer) publish(msg *common.Message) error {
	data, err := s.serializer.Serialize(*msg)
	if err != nil {
		return fmt.Errorf("failed to serialize %s: %w", msg.MsgType, err)
	}
	if err := s.transport.Publish(s.topic(msg.MsgType), data); err != nil {
		return err
	}
	s.metrics.sent(msg.MsgType)
	return nil
}

// decode wraps a message handler into a transport handler
func (s *ConfigServer) decode(expected common.MessageType, handler func(*common.Message)) transport.MessageHandler {
	return func(payload []byte) {
		var msg common.Message
		if err := s.serializer.Deserialize(payload, &msg); err != nil {
			s.metrics.decodeError()
			Logger.Warningf("failed to decode %s message: %v", expected, err)
			return
		}
		if msg.MsgType != expected {
			s.metrics.decodeError()
			Logger.Warningf("received %s on the %s topic", msg.MsgType, expected)
			return
		}
		s.metrics.received(msg.MsgType)
		handler(&msg)
	}
}

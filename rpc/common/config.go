package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Defaults
// --------------------------------------------------------------------------

const (
	DefaultProbeDelayMillis      = 100
	DefaultPushIntervalMillis    = 2000
	DefaultResponseTimeoutMillis = 2000
	DefaultTimeoutSecond         = 5
	DefaultRetryCount            = 3
	DefaultWorkersPerConn        = 16
	DefaultBufferSize            = 64 * 1024
)

// --------------------------------------------------------------------------
// Transport configuration struct
// --------------------------------------------------------------------------

// TransportConfig is shared by every pub/sub transport. Endpoints are NATS
// urls, tcp addresses or unix socket paths depending on the transport.
type TransportConfig struct {
	Endpoints     []string
	Namespace     string
	ClientName    string
	TimeoutSecond int
	RetryCount    int
}

// Timeout returns the configured timeout or the default
func (c *TransportConfig) Timeout() time.Duration {
	if c.TimeoutSecond <= 0 {
		return DefaultTimeoutSecond * time.Second
	}
	return time.Duration(c.TimeoutSecond) * time.Second
}

// Topic builds the topic name of t in the configured namespace
func (c *TransportConfig) Topic(t MessageType) string {
	return Topic(c.Namespace, t)
}

func (c *TransportConfig) write(w *configWriter) {
	w.section("Transport")
	w.field("Namespace", orDefault(c.Namespace, DefaultNamespace))
	w.field("Client Name", orDefault(c.ClientName, "-"))
	w.field("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	w.field("Retry Count", strconv.Itoa(c.RetryCount))

	w.section("Endpoints")
	for i, endpoint := range c.Endpoints {
		w.field(strconv.Itoa(i), endpoint)
	}
}

// String returns a formatted string representation of the transport configuration
func (c *TransportConfig) String() string {
	w := &configWriter{}
	c.write(w)
	return w.String()
}

// --------------------------------------------------------------------------
// Config server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all parameters of a config server process.
type ServerConfig struct {
	// Name prefix, the server appends a random uuid
	Name string

	// Files loaded into the store on startup (.json or .xml)
	ConfigFiles []string

	// Optional HTTP endpoint for /metrics and /config, empty disables it
	AdminEndpoint string

	// Snapshot restored on startup and written on shutdown, empty disables it
	SnapshotFile string

	// Time the server waits for client answers after probing
	ProbeDelayMillis int

	// Logging configuration
	LogLevel string

	Transport TransportConfig
}

// ProbeDelay returns the configured probe delay or the default
func (c *ServerConfig) ProbeDelay() time.Duration {
	if c.ProbeDelayMillis <= 0 {
		return DefaultProbeDelayMillis * time.Millisecond
	}
	return time.Duration(c.ProbeDelayMillis) * time.Millisecond
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	w := &configWriter{}

	w.section("Config Server")
	w.field("Name", c.Name)
	w.field("Admin Endpoint", orDefault(c.AdminEndpoint, "disabled"))
	w.field("Snapshot File", orDefault(c.SnapshotFile, "disabled"))
	w.field("Probe Delay", c.ProbeDelay().String())

	w.section("Logging")
	w.field("Log Level", c.LogLevel)

	w.section("Config Files")
	for i, file := range c.ConfigFiles {
		w.field(strconv.Itoa(i), file)
	}

	c.Transport.write(w)
	return w.String()
}

// --------------------------------------------------------------------------
// Config client configuration struct
// --------------------------------------------------------------------------

// ClientConfig holds all parameters of a config client.
type ClientConfig struct {
	// Name of the client, also the component the client owns
	Name string

	// Only accept full configs from servers whose name starts with this prefix
	ValidServerName string

	PushIntervalMillis    int
	ResponseTimeoutMillis int

	Transport TransportConfig
}

// PushInterval returns the configured push interval or the default
func (c *ClientConfig) PushInterval() time.Duration {
	if c.PushIntervalMillis <= 0 {
		return DefaultPushIntervalMillis * time.Millisecond
	}
	return time.Duration(c.PushIntervalMillis) * time.Millisecond
}

// ResponseTimeout returns the configured response timeout or the default
func (c *ClientConfig) ResponseTimeout() time.Duration {
	if c.ResponseTimeoutMillis <= 0 {
		return DefaultResponseTimeoutMillis * time.Millisecond
	}
	return time.Duration(c.ResponseTimeoutMillis) * time.Millisecond
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	w := &configWriter{}

	w.section("Config Client")
	w.field("Name", c.Name)
	w.field("Valid Server", orDefault(c.ValidServerName, "any"))
	w.field("Push Interval", c.PushInterval().String())
	w.field("Response Timeout", c.ResponseTimeout().String())

	c.Transport.write(w)
	return w.String()
}

// --------------------------------------------------------------------------
// Hub configuration struct
// --------------------------------------------------------------------------

// HubConfig configures the socket relay used by the tcp and unix transports.
type HubConfig struct {
	Endpoint       string
	TimeoutSecond  int
	WorkersPerConn int
	BufferSize     int
	LogLevel       string
}

// String returns a formatted string representation of the hub configuration
func (c *HubConfig) String() string {
	w := &configWriter{}

	w.section("Hub")
	w.field("Endpoint", c.Endpoint)
	w.field("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	w.field("Workers Per Connection", strconv.Itoa(max(1, c.WorkersPerConn)))
	w.field("Buffer Size", fmt.Sprintf("%d bytes", c.BufferSize))

	w.section("Logging")
	w.field("Log Level", c.LogLevel)
	return w.String()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// configWriter produces the section/field layout shared by all String methods
type configWriter struct {
	sb strings.Builder
}

func (w *configWriter) section(title string) {
	w.sb.WriteString("\n")
	w.sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
}

func (w *configWriter) field(name, value string) {
	w.sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
}

func (w *configWriter) String() string {
	return w.sb.String()
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

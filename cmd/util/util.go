package util

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/dCfg/rpc/common"
	"github.com/ValentinKolb/dCfg/rpc/serializer"
	"github.com/ValentinKolb/dCfg/rpc/transport"
	"github.com/ValentinKolb/dCfg/rpc/transport/local"
	"github.com/ValentinKolb/dCfg/rpc/transport/nats"
	"github.com/ValentinKolb/dCfg/rpc/transport/tcp"
	"github.com/ValentinKolb/dCfg/rpc/transport/unix"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// EnvPrefix is the prefix of all environment variables (e.g. DCFG_LOG_LEVEL)
	EnvPrefix = "dcfg"
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		if lineWidth > 0 && lineWidth+1+len(word) > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}
		currentLine.WriteString(word)
		lineWidth += len(word)
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}
	return strings.Join(wrappedLines, "\n")
}

// InitConfig loads the .env files and lets viper read DCFG_* variables
func InitConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// --------------------------------------------------------------------------
// Transport
// --------------------------------------------------------------------------

// SetupTransportFlags adds the flags of the pub/sub transport to a command
func SetupTransportFlags(cmd *cobra.Command) {
	key := "transport-endpoints"
	cmd.PersistentFlags().String(key, "", WrapString("Comma-separated list of endpoints: NATS urls for nats, the hub address for tcp or unix. Empty selects the default NATS url"))

	key = "transport-timeout"
	cmd.PersistentFlags().Int(key, common.DefaultTimeoutSecond, WrapString("Connect and write timeout in seconds"))

	key = "transport-retries"
	cmd.PersistentFlags().Int(key, common.DefaultRetryCount, WrapString("How many times a publish is retried (tcp, unix) or how often a lost connection is re-established (nats, 0 = forever)"))
}

// GetTransportConfig reads the transport configuration from viper
func GetTransportConfig() common.TransportConfig {
	var endpoints []string
	for _, e := range strings.Split(viper.GetString("transport-endpoints"), ",") {
		if e = strings.TrimSpace(e); e != "" {
			endpoints = append(endpoints, e)
		}
	}
	return common.TransportConfig{
		Endpoints:     endpoints,
		Namespace:     viper.GetString("namespace"),
		TimeoutSecond: viper.GetInt("transport-timeout"),
		RetryCount:    viper.GetInt("transport-retries"),
	}
}

// GetSerializer creates a serializer based on configuration
func GetSerializer() (serializer.IRPCSerializer, error) {
	switch viper.GetString("serializer") {
	case "json":
		return serializer.NewJSONSerializer(), nil
	case "gob":
		return serializer.NewGOBSerializer(), nil
	case "binary":
		return serializer.NewBinarySerializer(), nil
	default:
		return nil, fmt.Errorf("invalid serializer %s", viper.GetString("serializer"))
	}
}

// GetTransport creates the pub/sub transport based on configuration. The
// local transport only reaches peers in the same process.
func GetTransport() (transport.IPubSubTransport, error) {
	switch viper.GetString("transport") {
	case "nats":
		return nats.NewNATSTransport(), nil
	case "tcp":
		return tcp.NewTCPClientTransport(), nil
	case "unix":
		return unix.NewUnixClientTransport(), nil
	case "local":
		return local.NewDefaultTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// ParseAssignment splits "component:key=value" at the first '='
func ParseAssignment(s string) (key, value string, err error) {
	key, value, ok := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", "", fmt.Errorf("invalid assignment %q (expected component:key=value)", s)
	}
	return key, value, nil
}

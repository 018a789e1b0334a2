package hub

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/ValentinKolb/dCfg/cmd/util"
	"github.com/ValentinKolb/dCfg/rpc/common"
	"github.com/ValentinKolb/dCfg/rpc/transport"
	"github.com/ValentinKolb/dCfg/rpc/transport/tcp"
	"github.com/ValentinKolb/dCfg/rpc/transport/unix"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	hubCmdConfig = &common.HubConfig{}
	HubCmd       = &cobra.Command{
		Use:   "hub",
		Short: "Start the relay for the tcp and unix transports",
		Long: `Start the relay the tcp and unix transports connect to. The hub forwards every
published message to all connections subscribed to its topic. Select the socket
type with --transport (tcp or unix).`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	key := "endpoint"
	HubCmd.PersistentFlags().String(key, "0.0.0.0:4223", util.WrapString("The address on which the hub will listen (e.g. localhost:4223, /tmp/dcfg.sock)"))

	key = "timeout"
	HubCmd.PersistentFlags().Int(key, common.DefaultTimeoutSecond, util.WrapString("Write timeout in seconds, subscribers that do not keep up are dropped"))

	key = "workers"
	HubCmd.PersistentFlags().Int(key, common.DefaultWorkersPerConn, util.WrapString("Maximum number of parallel writes when one message is fanned out"))

	key = "buffer-size"
	HubCmd.PersistentFlags().Int(key, 0, util.WrapString("Size of the read buffers in KB, 0 selects the default of the socket type"))

	key = "log-level"
	HubCmd.PersistentFlags().String(key, "info", util.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

func processConfig(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	hubCmdConfig.Endpoint = viper.GetString("endpoint")
	hubCmdConfig.TimeoutSecond = viper.GetInt("timeout")
	hubCmdConfig.WorkersPerConn = viper.GetInt("workers")
	hubCmdConfig.BufferSize = viper.GetInt("buffer-size") * 1024
	hubCmdConfig.LogLevel = viper.GetString("log-level")

	if _, err := common.ParseLogLevel(hubCmdConfig.LogLevel); err != nil {
		return err
	}
	return nil
}

// run listens until SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {
	if err := common.InitLoggers(hubCmdConfig.LogLevel); err != nil {
		return err
	}

	var h transport.IHubTransport
	switch viper.GetString("transport") {
	case "tcp":
		h = tcp.NewTCPHubTransport(hubCmdConfig.BufferSize, hubCmdConfig.WorkersPerConn)
	case "unix":
		h = unix.NewUnixHubTransport(hubCmdConfig.BufferSize, hubCmdConfig.WorkersPerConn)
	default:
		return fmt.Errorf("the hub only supports the tcp and unix transports, got %s", viper.GetString("transport"))
	}

	fmt.Print(hubCmdConfig.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- h.Listen(*hubCmdConfig) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return h.Close()
	}
}

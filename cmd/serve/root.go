package serve

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ValentinKolb/dCfg/cmd/util"
	"github.com/ValentinKolb/dCfg/lib/store"
	"github.com/ValentinKolb/dCfg/rpc/common"
	"github.com/ValentinKolb/dCfg/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// LogLevelKey is the key of the server configuration holding the log level.
// Changing it (e.g. through POST /config) changes the level at runtime.
const LogLevelKey = "dcfg:log_level"

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the dCfg config server",
		Long:    `Start the dCfg config server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is DCFG_<flag> (e.g. DCFG_PROBE_DELAY=250)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	util.SetupTransportFlags(ServeCmd)

	key := "name"
	ServeCmd.PersistentFlags().String(key, "dcfg-server", util.WrapString("Name prefix of the server, a uuid is appended to make it unique"))

	key = "config-files"
	ServeCmd.PersistentFlags().String(key, "", util.WrapString("Comma-separated list of .json or .xml files loaded at startup"))

	key = "admin-endpoint"
	ServeCmd.PersistentFlags().String(key, "", util.WrapString("Address of the admin HTTP endpoint (e.g. localhost:8080), empty disables it"))

	key = "snapshot-file"
	ServeCmd.PersistentFlags().String(key, "", util.WrapString("File the configuration is restored from at startup and saved to on shutdown, empty disables snapshots"))

	key = "probe-delay"
	ServeCmd.PersistentFlags().Int(key, common.DefaultProbeDelayMillis, util.WrapString("How long (in ms) to wait for the clients after asking them for their configuration"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", util.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	serveCmdConfig.Name = viper.GetString("name")
	serveCmdConfig.AdminEndpoint = viper.GetString("admin-endpoint")
	serveCmdConfig.SnapshotFile = viper.GetString("snapshot-file")
	serveCmdConfig.ProbeDelayMillis = viper.GetInt("probe-delay")
	serveCmdConfig.LogLevel = viper.GetString("log-level")
	serveCmdConfig.Transport = util.GetTransportConfig()

	serveCmdConfig.ConfigFiles = nil
	for _, file := range strings.Split(viper.GetString("config-files"), ",") {
		if file = strings.TrimSpace(file); file != "" {
			serveCmdConfig.ConfigFiles = append(serveCmdConfig.ConfigFiles, file)
		}
	}

	if _, err := common.ParseLogLevel(serveCmdConfig.LogLevel); err != nil {
		return err
	}
	return nil
}

// run starts the config server and blocks until SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {
	if err := common.InitLoggers(serveCmdConfig.LogLevel); err != nil {
		return err
	}

	s, err := util.GetSerializer()
	if err != nil {
		return err
	}
	t, err := util.GetTransport()
	if err != nil {
		return err
	}

	serv := server.NewConfigServer(*serveCmdConfig, t, s)

	// the log level is part of the configuration and can be changed remotely
	serv.Store().AddChangeHook(common.NewLogLevelHook(serv.Store(), LogLevelKey))
	if !store.PutString(serv.Store(), LogLevelKey, common.CurrentLogLevel()) {
		return fmt.Errorf("failed to store the log level under %s", LogLevelKey)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return serv.Serve(ctx)
}

package cfg

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/dCfg/cmd/util"
	"github.com/ValentinKolb/dCfg/lib/db"
	"github.com/ValentinKolb/dCfg/lib/store/ostore"
	"github.com/ValentinKolb/dCfg/rpc/client"
	"github.com/ValentinKolb/dCfg/rpc/common"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgClient *client.ConfigClient

	// ConfigCommands represents the cfg command group
	ConfigCommands = &cobra.Command{
		Use:   "cfg",
		Short: "Read and write configuration as a config client",
		Long: `Read and write configuration as a config client. The client owns the component
given by --name; values of other components are requested from the config server.`,
		PersistentPreRunE:  setupClient,
		PersistentPostRunE: closeClient,
	}
)

func init() {
	util.SetupTransportFlags(ConfigCommands)

	key := "name"
	ConfigCommands.PersistentFlags().String(key, "", util.WrapString("Name of the client and the component it owns (default dcfg-cli-<uuid>)"))

	key = "set"
	ConfigCommands.PersistentFlags().StringArray(key, nil, util.WrapString("Set a value as command line parameter (component:key=value), can be repeated"))

	key = "config"
	ConfigCommands.PersistentFlags().StringArray(key, nil, util.WrapString("Load a .json or .xml file as command line config file, can be repeated"))

	key = "valid-server"
	ConfigCommands.PersistentFlags().String(key, "", util.WrapString("Only accept configs from servers whose name starts with this prefix"))

	key = "response-timeout"
	ConfigCommands.PersistentFlags().Int(key, common.DefaultResponseTimeoutMillis, util.WrapString("How long (in ms) to wait for a reply of the config server"))

	key = "push-interval"
	ConfigCommands.PersistentFlags().Int(key, common.DefaultPushIntervalMillis, util.WrapString("How often (in ms) changes are pushed to the config server"))

	key = "log-level"
	ConfigCommands.PersistentFlags().String(key, "warn", util.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	ConfigCommands.AddCommand(getCmd)
	ConfigCommands.AddCommand(listCmd)
	ConfigCommands.AddCommand(childrenCmd)
	ConfigCommands.AddCommand(putCmd)
	ConfigCommands.AddCommand(dumpCmd)
	ConfigCommands.AddCommand(diffCmd)
	ConfigCommands.AddCommand(infoCmd)
	ConfigCommands.AddCommand(perfTestCmd)
}

// GetClientConfig reads the client configuration from viper
func GetClientConfig() common.ClientConfig {
	name := viper.GetString("name")
	if name == "" {
		name = "dcfg-cli-" + uuid.NewString()
	}
	return common.ClientConfig{
		Name:                  name,
		ValidServerName:       viper.GetString("valid-server"),
		PushIntervalMillis:    viper.GetInt("push-interval"),
		ResponseTimeoutMillis: viper.GetInt("response-timeout"),
		Transport:             util.GetTransportConfig(),
	}
}

// setupClient creates the client, feeds the command line sources and
// finishes the initialization
func setupClient(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}
	if err := common.InitLoggers(viper.GetString("log-level")); err != nil {
		return err
	}

	// the benchmark works on a local store only
	if cmd == perfTestCmd {
		return nil
	}

	s, err := util.GetSerializer()
	if err != nil {
		return err
	}
	t, err := util.GetTransport()
	if err != nil {
		return err
	}

	cfgClient, err = client.NewConfigClient(GetClientConfig(), t, s)
	if err != nil {
		return err
	}

	// flags are read from the command, viper flattens repeated values
	files, _ := cmd.Flags().GetStringArray("config")
	for _, file := range files {
		if err := cfgClient.PutCfgFrom(ostore.SourceCommandLineConfigFile, file); err != nil {
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}

	assignments, _ := cmd.Flags().GetStringArray("set")
	for _, a := range assignments {
		key, value, err := util.ParseAssignment(a)
		if err != nil {
			return err
		}
		if !cfgClient.PutFrom(ostore.SourceCommandLineParameters, key, db.StringCell(value)) {
			return fmt.Errorf("could not set %s", key)
		}
	}

	if err := cfgClient.FinishInit(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	return nil
}

func closeClient(_ *cobra.Command, _ []string) error {
	if cfgClient == nil {
		return nil
	}
	return cfgClient.Close()
}

package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/dCfg/cmd/cfg"
	"github.com/ValentinKolb/dCfg/cmd/hub"
	"github.com/ValentinKolb/dCfg/cmd/serve"
	"github.com/ValentinKolb/dCfg/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dcfg",
		Short: "distributed configuration service",
		Long: fmt.Sprintf(`dCfg (v%s)

A distributed configuration service written in Go. Components keep their
configuration in a layered store, a config server collects and distributes
the configuration of all components over a pub/sub transport.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dCfg",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dCfg v%s\n", Version)
		},
	}
)

func init() {
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(hub.HubCmd)
	RootCmd.AddCommand(cfg.ConfigCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "json", util.WrapString("serializer to use (json, gob, binary)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "nats", util.WrapString("transport to use (nats, tcp, unix)"))
	key = "namespace"
	RootCmd.PersistentFlags().String(key, "dcfg", util.WrapString("prefix of all topics, servers and clients only see each other within the same namespace"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

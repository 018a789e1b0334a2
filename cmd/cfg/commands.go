package cfg

import (
	"fmt"
	"os"
	"strings"

	"github.com/ValentinKolb/dCfg/lib/db"
	"github.com/ValentinKolb/dCfg/lib/store/ostore"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

var (
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Gets the value of a key",
		Long:  "Gets the value of a key, keys of other components are requested from the config server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := defaultCell(cmd)
			if err != nil {
				return err
			}
			value, ok := cfgClient.Get(args[0], def)
			printValue(value.String(), ok)
			return nil
		},
	}
	listCmd = &cobra.Command{
		Use:   "list [key]",
		Short: "Gets all values of an array",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, ok := cfgClient.GetStringList(args[0], nil)
			printValue(strings.Join(values, "\n"), ok)
			return nil
		},
	}
	childrenCmd = &cobra.Command{
		Use:   "children [key]",
		Short: "Lists the children of a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			full, _ := cmd.Flags().GetBool("full")
			for _, child := range cfgClient.GetChildren(args[0], full) {
				fmt.Println(child)
			}
			return nil
		},
	}
	putCmd = &cobra.Command{
		Use:   "put [key] [value]",
		Short: "Sets the value of a key of the own component and pushes it to the server",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := valueKind(cmd)
			if err != nil {
				return err
			}
			value, ok := db.StringCell(args[1]).Convert(kind)
			if !ok {
				return fmt.Errorf("%q is no %s", args[1], kind)
			}
			if !cfgClient.PutFrom(ostore.SourceComponent, args[0], value) {
				return fmt.Errorf("could not put %s (the client owns the component %s)", args[0], cfgClient.Name())
			}
			if err := cfgClient.Flush(); err != nil {
				return err
			}
			fmt.Println("put successfully")
			return nil
		},
	}
	dumpCmd = &cobra.Command{
		Use:   "dump [component]",
		Short: "Prints the configuration of the client as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				fmt.Println(cfgClient.Store().AllJSON(true))
				return nil
			}
			doc, ok := cfgClient.Store().ComponentJSON(args[0], true)
			if !ok {
				return fmt.Errorf("unknown component %s", args[0])
			}
			fmt.Println(doc)
			return nil
		},
	}
	diffCmd = &cobra.Command{
		Use:   "diff [file]",
		Short: "Prints the keys of a JSON file that differ from the client configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			fmt.Println(cfgClient.Store().Differences(string(doc), true))
			return nil
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info [key]",
		Short: "Prints information about the client or a key",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info := map[string]any{
				"name":           cfgClient.Name(),
				"state":          cfgClient.Store().State().String(),
				"components":     cfgClient.Store().ComponentNames(),
				"active_servers": cfgClient.ActiveServers(),
				"stats":          cfgClient.Stats(),
			}
			if engine, _ := cmd.Flags().GetBool("engine"); engine {
				info["engine"] = cfgClient.Store().Info()
			}
			if len(args) == 1 {
				keyInfo, found := cfgClient.KeyInfo(args[0])
				info["key"] = map[string]any{
					"key":     args[0],
					"found":   found,
					"exists":  cfgClient.Exists(args[0]),
					"is_list": cfgClient.Store().IsList(args[0]),
					"info":    keyInfo,
				}
			}

			out, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
)

func init() {
	getCmd.Flags().String("type", "string", "type of the value (bool, int, float, string)")
	getCmd.Flags().String("default", "", "value returned if the key is not available")
	putCmd.Flags().String("type", "string", "type of the value (bool, int, float, string)")
	childrenCmd.Flags().Bool("full", false, "print full key paths")
	infoCmd.Flags().Bool("engine", false, "include the value store statistics of every component")
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func valueKind(cmd *cobra.Command) (db.Kind, error) {
	name, _ := cmd.Flags().GetString("type")
	kind, ok := db.ParseKind(name)
	if !ok || kind == db.KindUnset {
		return db.KindUnset, fmt.Errorf("invalid type %s (expected bool, int, float or string)", name)
	}
	return kind, nil
}

// defaultCell builds the default of a get from the --type and --default flags
func defaultCell(cmd *cobra.Command) (db.Cell, error) {
	kind, err := valueKind(cmd)
	if err != nil {
		return db.Cell{}, err
	}
	raw, _ := cmd.Flags().GetString("default")
	if raw == "" && kind != db.KindString {
		raw = "0"
	}
	def, ok := db.StringCell(raw).Convert(kind)
	if !ok {
		return db.Cell{}, fmt.Errorf("default %q is no %s", raw, kind)
	}
	return def, nil
}

func printValue(value string, available bool) {
	fmt.Println(value)
	if !available {
		fmt.Fprintln(os.Stderr, "(not available, default returned)")
	}
}

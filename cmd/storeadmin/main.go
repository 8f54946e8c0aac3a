// Command storeadmin runs the supermarket admin console.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	flagConfig string
	flagDebug  bool
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "storeadmin",
		Short:        "Supermarket admin console",
		Long:         "storeadmin serves the back-office console for store staff with admin or accountant roles.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to a YAML config file")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Shorthand for LOG_LEVEL=debug")

	root.AddCommand(newServeCmd(), newCheckAccessCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

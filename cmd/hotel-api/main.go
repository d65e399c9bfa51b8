package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	var opts globalOptions

	rootCmd := &cobra.Command{
		Use:           "hotel-api",
		Short:         "Hotel Mavi rooms and accounts API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "YAML file merged over the built in defaults")
	rootCmd.PersistentFlags().StringSliceVar(&opts.dotenv, "env-file", []string{".env"}, "dotenv files loaded before the environment is read")

	rootCmd.AddCommand(
		serveCmd(&opts),
		migrateCmd(&opts),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

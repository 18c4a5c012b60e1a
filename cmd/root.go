package cmd

import (
	"fmt"
	"os"

	"github.com/pulanski/r2db2/cmd/query"
	"github.com/pulanski/r2db2/cmd/serve"
	"github.com/spf13/cobra"
)

const (
	Version = "0.2.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "r2db2",
		Short: "SQL database server and client",
		Long: fmt.Sprintf(`r2db2 (v%s)

A SQL database server speaking a tagged, length-prefixed wire protocol
with optional authentication, TLS and lz4 stream compression.`, Version),
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of r2db2",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("r2db2 v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(query.QueryCommands)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

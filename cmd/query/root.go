package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/pulanski/r2db2/cmd/util"
	"github.com/pulanski/r2db2/wire/client"
	"github.com/spf13/cobra"
)

var (
	wireClient *client.Client

	// QueryCommands represents the query command group
	QueryCommands = &cobra.Command{
		Use:               "query",
		Short:             "Execute SQL against a running r2db2 server",
		PersistentPreRunE: setupClient,
		PersistentPostRun: teardownClient,
	}

	execCmd = &cobra.Command{
		Use:   "exec <sql>",
		Short: "Execute one SQL statement and print the result rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tag, err := wireClient.Query(context.Background(), args[0], printRow)
			if err != nil {
				return err
			}
			fmt.Println(tag)
			return nil
		},
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add common connection flags to the query command
	util.SetupClientFlags(QueryCommands)

	// Add subcommands
	QueryCommands.AddCommand(execCmd)
	QueryCommands.AddCommand(perfTestCmd)
}

// setupClient dials the server and runs the handshake
func setupClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	var err error
	wireClient, err = client.Connect(util.GetClientConfig())
	return err
}

func teardownClient(_ *cobra.Command, _ []string) {
	if wireClient != nil {
		_ = wireClient.Close()
	}
}

// printRow renders one result row, columns tab-separated
func printRow(columns [][]byte) error {
	parts := make([]string, len(columns))
	for i, col := range columns {
		parts[i] = string(col)
	}
	fmt.Println(strings.Join(parts, "\t"))
	return nil
}

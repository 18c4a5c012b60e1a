package query

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pulanski/r2db2/cmd/util"
	"github.com/pulanski/r2db2/wire/client"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for r2db2 servers",
		Long:    "",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfNumQueries = 1000
	perfNumThreads = 10
	perfStatement  = "SELECT 1"
)

func init() {
	// add flags
	key := "queries"
	perfTestCmd.Flags().Int(key, 1000, util.WrapString("Total number of queries to execute"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of concurrent connections to use"))
	key = "statement"
	perfTestCmd.Flags().String(key, "SELECT 1", util.WrapString("The SQL statement to benchmark"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	// the group's PersistentPreRunE has already connected and bound the
	// shared flags; bind the perf-specific ones
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfNumQueries = viper.GetInt("queries")
	perfNumThreads = viper.GetInt("threads")
	perfStatement = viper.GetString("statement")
	return nil
}

func runPerf(_ *cobra.Command, _ []string) error {
	fmt.Println("Performance testing tool for r2db2 servers")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Queries: %d, Threads: %d, Statement: %q\n", perfNumQueries, perfNumThreads, perfStatement)
	fmt.Println()

	timer := gometrics.NewTimer()
	errors := gometrics.NewCounter()

	// Each worker owns its own connection: a client is single-goroutine
	var wg sync.WaitGroup
	perThread := perfNumQueries / perfNumThreads
	if perThread == 0 {
		perThread = 1
	}

	for t := 0; t < perfNumThreads; t++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			conn, err := newPerfConnection()
			if err != nil {
				errors.Inc(int64(perThread))
				return
			}
			defer conn.Close()

			for i := 0; i < perThread; i++ {
				timer.Time(func() {
					if _, err := conn.Query(context.Background(), perfStatement, nil); err != nil {
						errors.Inc(1)
					}
				})
			}
		}()
	}
	wg.Wait()

	// Print results
	fmt.Printf("%-12s: %d\n", "queries", timer.Count())
	fmt.Printf("%-12s: %d\n", "errors", errors.Count())
	fmt.Printf("%-12s: %s\n", "mean", time.Duration(int64(timer.Mean())))
	fmt.Printf("%-12s: %s\n", "p50", time.Duration(int64(timer.Percentile(0.5))))
	fmt.Printf("%-12s: %s\n", "p95", time.Duration(int64(timer.Percentile(0.95))))
	fmt.Printf("%-12s: %s\n", "p99", time.Duration(int64(timer.Percentile(0.99))))
	fmt.Printf("%-12s: %.1f queries/sec\n", "rate", timer.RateMean())

	return nil
}

// newPerfConnection opens a dedicated connection for one benchmark worker
func newPerfConnection() (*client.Client, error) {
	return client.Connect(util.GetClientConfig())
}

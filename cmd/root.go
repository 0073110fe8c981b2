package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"kvbench/internal/banner"
	"kvbench/internal/bench"
	"kvbench/internal/cli"
)

var (
	cfgFile string

	// CLI Flags
	endpoints  []string
	discover   string
	clients    int
	duration   time.Duration
	writeRatio float64
	keySize    int
	valueSize  int
	keyPrefix  string
	warmup     time.Duration
	opTimeout  time.Duration
	seed       int64
	workloadFl string
	out        string
	noHistory  bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "kvbench",
	Short: "kvbench - etcd cluster benchmark tool",
	Long: `
kvbench drives a running etcd cluster with a configurable population of
concurrent clients, runs a mixed read/write workload for a bounded
duration, and writes a JSON report with throughput and latency
percentiles.

The cluster itself is expected to be up already; point kvbench at it
with --endpoints, or let it ask a single node for cluster membership
with --discover.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBenchmark()
	},
}

func Execute() {
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Println(banner.GetString())
		cmd.Usage()
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(historyCmd)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.kvbench.yaml)")

	rootCmd.Flags().StringSliceVarP(&endpoints, "endpoints", "e", nil, "Explicit store endpoints (e.g. http://127.0.0.1:2379)")
	rootCmd.Flags().StringVar(&discover, "discover", "http://localhost:2379", "Entry point queried for cluster membership when --endpoints is not set")
	rootCmd.Flags().IntVarP(&clients, "clients", "c", 10, "Number of concurrent clients")
	rootCmd.Flags().DurationVarP(&duration, "duration", "d", 30*time.Second, "Measurement window per workload")
	rootCmd.Flags().Float64VarP(&writeRatio, "write-ratio", "r", 0.3, "Fraction of operations that are writes (0.0-1.0)")
	rootCmd.Flags().IntVar(&keySize, "key-size", 64, "Key size in bytes")
	rootCmd.Flags().IntVar(&valueSize, "value-size", 1024, "Value size in bytes")
	rootCmd.Flags().StringVar(&keyPrefix, "key-prefix", "benchmark", "Prefix for generated keys")
	rootCmd.Flags().DurationVarP(&warmup, "warmup", "w", 5*time.Second, "Warmup time before the measurement window")
	rootCmd.Flags().DurationVar(&opTimeout, "timeout", 10*time.Second, "Per-operation timeout")
	rootCmd.Flags().Int64Var(&seed, "seed", 0, "Workload RNG seed (0 = wall clock)")
	rootCmd.Flags().StringVar(&workloadFl, "workload", "mixed", "Workload to run: sequential_write, sequential_read, concurrent_write, mixed, or all")
	rootCmd.Flags().StringVarP(&out, "out", "o", "", "Output path for the JSON report (default auto-generated)")
	rootCmd.Flags().BoolVar(&noHistory, "no-history", false, "Skip saving the run to the local history database")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	viper.BindPFlag("endpoints", rootCmd.Flags().Lookup("endpoints"))
	viper.BindPFlag("clients", rootCmd.Flags().Lookup("clients"))
	viper.BindPFlag("write-ratio", rootCmd.Flags().Lookup("write-ratio"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName(".kvbench")
		}
	}
	viper.SetEnvPrefix("kvbench")
	viper.AutomaticEnv()
	viper.ReadInConfig()
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func runBenchmark() error {
	// Bound flags resolve through viper: explicit flag first, then the
	// config file / environment, then the flag default.
	endpoints = viper.GetStringSlice("endpoints")
	clients = viper.GetInt("clients")
	writeRatio = viper.GetFloat64("write-ratio")

	cfg := bench.Config{
		Clients:      clients,
		Duration:     duration,
		WriteRatio:   writeRatio,
		KeySize:      keySize,
		ValueSize:    valueSize,
		KeyPrefix:    keyPrefix,
		Warmup:       warmup,
		Endpoints:    endpoints,
		DiscoverFrom: discover,
		Seed:         seed,
		OpTimeout:    opTimeout,
	}

	opts := cli.Options{
		Workload:  workloadFl,
		Out:       out,
		NoHistory: noHistory,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return cli.Run(ctx, cfg, opts, newLogger())
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past benchmark runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.History()
	},
}

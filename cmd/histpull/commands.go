package main

import (
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	configPath   string
	intervalFlag string
	outputRoot   string
	verbose      bool

	rootCmd = &cobra.Command{
		Use:   "histpull",
		Short: "Concurrent retrieval of archived control-system signals",
		Long: `HistPull resolves signal name patterns against an HDB++ archive and
fetches every matched time series concurrently, either over the
archiver REST gateway or straight from the ClickHouse column store.
Retrieved series are rendered as canonical dataset text blocks.`,
	}

	fetchCmd = &cobra.Command{
		Use:   "fetch PATTERN... START END",
		Short: "Fetch all signals matching the patterns over the REST gateway",
		Args:  cobra.MinimumNArgs(3),
		RunE:  runFetch, // Defined in cmd_fetch.go
	}

	dumpCmd = &cobra.Command{
		Use:   "dump PATTERN START END",
		Short: "Dump one signal straight from the column store",
		Long: `Dump resolves the pattern, requires exactly one match, and reads the
signal's samples directly from the archive's ClickHouse tables with
the range split per calendar date. Needs hdb enabled in config.`,
		Args: cobra.ExactArgs(3),
		RunE: runDump, // Defined in cmd_dump.go
	}

	searchCmd = &cobra.Command{
		Use:   "search PATTERN...",
		Short: "Resolve patterns and print the matched signal names",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSearch, // Defined in cmd_search.go
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP facade with scheduler and async job workers",
		Args:  cobra.NoArgs,
		RunE:  runServe, // Defined in cmd_serve.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "config file path")

	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().StringVarP(&intervalFlag, "interval", "i", "", "sampling interval, e.g. 0.1s, 1m, 1h (default from config)")
	fetchCmd.Flags().StringVarP(&outputRoot, "out", "o", "", "write one .dat file per signal under this root instead of stdout")
	fetchCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print per-signal summaries to stderr")

	rootCmd.AddCommand(dumpCmd)
	dumpCmd.Flags().StringVarP(&outputRoot, "out", "o", "", "write one .dat file per signal under this root instead of stdout")
	dumpCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print per-signal summaries to stderr")

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(serveCmd)
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"HistPull/internal/domain/repository"
	"HistPull/internal/usecase"

	"github.com/spf13/cobra"
)

func runFetch(cmd *cobra.Command, args []string) error {
	patterns := args[:len(args)-2]
	startArg, endArg := args[len(args)-2], args[len(args)-1]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	eng, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	rng, err := parseRangeArgs(startArg, endArg, eng.loc)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	target := usecase.TargetStdout
	if outputRoot != "" {
		target = usecase.TargetFiles
	}

	res, err := eng.export.Export(ctx, usecase.ExportParams{
		QueryParams: usecase.QueryParams{
			Patterns: patterns,
			Range:    rng,
			Interval: intervalOrDefault(cfg),
			Backend:  string(repository.BackendREST),
		},
		Mode:       "fetch",
		Target:     target,
		OutputRoot: outputRoot,
	})
	if err != nil {
		return err
	}

	// With -o the dataset went to files; the paths go to stdout so
	// runs can be piped.
	for _, f := range res.Files {
		fmt.Println(f)
	}
	if verbose {
		printSummaries(os.Stderr, res.Set, eng.loc)
	}
	return nil
}

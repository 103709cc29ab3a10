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

func runDump(cmd *cobra.Command, args []string) error {
	pattern, startArg, endArg := args[0], args[1], args[2]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.HDB.Enabled {
		return fmt.Errorf("dump reads the column store directly; enable hdb in %s", configPath)
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
			Patterns: []string{pattern},
			Single:   true,
			Range:    rng,
			Backend:  string(repository.BackendHDB),
		},
		Mode:       "dump",
		Target:     target,
		OutputRoot: outputRoot,
	})
	if err != nil {
		return err
	}

	for _, f := range res.Files {
		fmt.Println(f)
	}
	if verbose {
		printSummaries(os.Stderr, res.Set, eng.loc)
	}
	return nil
}

package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/CTAG07/Oneliner/pkg/corpus"
	"github.com/CTAG07/Oneliner/pkg/markov"
)

func newParseCmd(a *app) *cobra.Command {
	parseCmd := &cobra.Command{
		Use:   "parse CSV_FILE OUTPUT",
		Short: "Build a chain from a corpus and save it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.parseHandler(cmd, args)
		},
	}

	parseCmd.Flags().BoolP("text", "t", false, "Export to a text file instead of binary")
	parseCmd.Flags().String("store", "", "Also save the chain into the chain store under this name")
	parseCmd.Flags().Int("workers", 0, "Number of normalization workers (default from config)")
	parseCmd.Flags().Bool("has-header", false, "Skip the first row of the corpus as a header")

	return parseCmd
}

func (a *app) parseHandler(cmd *cobra.Command, args []string) error {
	csvPath, outPath := args[0], args[1]
	toText, _ := cmd.Flags().GetBool("text")
	storeName, _ := cmd.Flags().GetString("store")
	workers, _ := cmd.Flags().GetInt("workers")
	hasHeader, _ := cmd.Flags().GetBool("has-header")
	if workers <= 0 {
		workers = a.config.Workers
	}

	f, err := os.Open(csvPath)
	if err != nil {
		return err
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	now := time.Now()
	pipeline := corpus.NewPipeline(corpus.WithWorkers(workers), corpus.WithHeader(hasHeader))
	pipeline.SetLogger(a.logger)
	chain, err := pipeline.Build(cmd.Context(), f)
	if err != nil {
		return err
	}
	a.logger.Info("Parsed corpus", slog.String("file", csvPath), slog.Duration("elapsed", time.Since(now)))

	now = time.Now()
	if toText {
		err = markov.SaveTextFile(outPath, chain)
	} else {
		err = markov.SaveFile(outPath, chain)
	}
	if err != nil {
		return fmt.Errorf("could not save chain: %w", err)
	}
	a.logger.Info("Chain serialized",
		slog.String("file", outPath),
		slog.Bool("text", toText),
		slog.Duration("elapsed", time.Since(now)),
	)

	if storeName != "" {
		store, closeStore, err := a.openStore()
		if err != nil {
			return err
		}
		defer closeStore()
		if err = store.Save(cmd.Context(), storeName, chain); err != nil {
			return err
		}
	}
	return nil
}

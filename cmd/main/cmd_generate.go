package main

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/CTAG07/Oneliner/pkg/markov"
)

// outputRule separates consecutive generated oneliners.
var outputRule = strings.Repeat("-", 50)

func newGenerateCmd(a *app) *cobra.Command {
	generateCmd := &cobra.Command{
		Use:   "generate SOURCE COUNT",
		Short: "Generate oneliners from a saved chain",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.generateHandler(cmd, args)
		},
	}

	generateCmd.Flags().Bool("from-store", false, "Treat SOURCE as a chain store name instead of a file")
	generateCmd.Flags().Uint64("seed", 0, "Seed for reproducible output (0 picks a random seed)")
	generateCmd.Flags().Int("max-length", 0, "Stop once the output reaches this many bytes (default from config)")
	generateCmd.Flags().Float64("temperature", 1.0, "Sampling temperature; 1 is plain weighted sampling, 0 always picks the most frequent")
	generateCmd.Flags().Int("top-k", 0, "Only sample among the k most frequent successors (0 disables)")

	return generateCmd
}

func (a *app) generateHandler(cmd *cobra.Command, args []string) error {
	source := args[0]
	count, err := strconv.Atoi(args[1])
	if err != nil || count < 0 {
		return fmt.Errorf("invalid oneliner count %q", args[1])
	}

	fromStore, _ := cmd.Flags().GetBool("from-store")
	seed, _ := cmd.Flags().GetUint64("seed")
	maxLength, _ := cmd.Flags().GetInt("max-length")
	temperature, _ := cmd.Flags().GetFloat64("temperature")
	topK, _ := cmd.Flags().GetInt("top-k")
	if maxLength <= 0 {
		maxLength = a.config.MaxLength
	}

	now := time.Now()
	chain, err := a.loadChain(cmd.Context(), source, fromStore)
	if err != nil {
		return err
	}
	a.logger.Info("Chain loaded", slog.String("source", source), slog.Duration("elapsed", time.Since(now)))

	opts := []markov.GenerateOption{
		markov.WithMaxLength(maxLength),
		markov.WithTemperature(temperature),
		markov.WithTopK(topK),
	}
	if seed != 0 {
		opts = append(opts, markov.WithRand(rand.New(rand.NewPCG(seed, seed))))
	}

	gen := markov.NewGenerator(chain, nil)
	gen.SetLogger(a.logger)

	out := cmd.OutOrStdout()
	for range count {
		text, err := gen.Generate(cmd.Context(), opts...)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, text)
		fmt.Fprintln(out, outputRule)
	}
	return nil
}

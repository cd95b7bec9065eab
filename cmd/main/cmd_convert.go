package main

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/CTAG07/Oneliner/pkg/markov"
)

func newConvertCmd(a *app) *cobra.Command {
	convertCmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert a binary chain into its text dump",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.convertHandler(cmd)
		},
	}

	convertCmd.Flags().StringP("input", "i", "", "Input binary file")
	convertCmd.Flags().StringP("output", "o", "", "Output text file")
	_ = convertCmd.MarkFlagRequired("input")
	_ = convertCmd.MarkFlagRequired("output")

	return convertCmd
}

func (a *app) convertHandler(cmd *cobra.Command) error {
	input, _ := cmd.Flags().GetString("input")
	output, _ := cmd.Flags().GetString("output")

	now := time.Now()
	chain, err := markov.LoadFile(input)
	if err != nil {
		return err
	}
	a.logger.Info("Chain loaded", slog.String("file", input), slog.Duration("elapsed", time.Since(now)))

	now = time.Now()
	if err = markov.SaveTextFile(output, chain); err != nil {
		return err
	}
	a.logger.Info("Chain converted",
		slog.String("input", input),
		slog.String("output", output),
		slog.Duration("elapsed", time.Since(now)),
	)
	return nil
}

package main

import (
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/CTAG07/Oneliner/pkg/markov"
)

func newModelsCmd(a *app) *cobra.Command {
	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "Manage chains kept in the chain store",
	}

	listCmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored chains",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.listHandler(cmd)
		},
	}

	importCmd := &cobra.Command{
		Use:   "import BIN_FILE NAME",
		Short: "Store a binary chain file under a name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			chain, err := markov.LoadFile(args[0])
			if err != nil {
				return err
			}
			store, closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()
			return store.Save(cmd.Context(), args[1], chain)
		},
	}

	exportCmd := &cobra.Command{
		Use:   "export NAME BIN_FILE",
		Short: "Write a stored chain to a binary file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			chain, err := a.loadChain(cmd.Context(), args[0], true)
			if err != nil {
				return err
			}
			return markov.SaveFile(args[1], chain)
		},
	}

	removeCmd := &cobra.Command{
		Use:     "rm NAME",
		Aliases: []string{"delete"},
		Short:   "Remove a stored chain",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()
			return store.Remove(cmd.Context(), args[0])
		},
	}

	modelsCmd.AddCommand(listCmd, importCmd, exportCmd, removeCmd)
	return modelsCmd
}

func (a *app) listHandler(cmd *cobra.Command) error {
	store, closeStore, err := a.openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	infos, err := store.List(cmd.Context())
	if err != nil {
		return err
	}

	var data [][]string
	for _, info := range infos {
		data = append(data, []string{
			info.Name,
			strconv.Itoa(info.Tokens),
			strconv.Itoa(info.Links),
			strconv.Itoa(info.StartingTokens),
			humanize.Bytes(uint64(info.Size)),
			humanize.Time(info.CreatedAt),
		})
	}

	renderTable(cmd.OutOrStdout(), []string{"NAME", "TOKENS", "LINKS", "STARTS", "SIZE", "SAVED"}, data)
	return nil
}

func newInfoCmd(a *app) *cobra.Command {
	infoCmd := &cobra.Command{
		Use:   "info SOURCE",
		Short: "Show statistics of a chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fromStore, _ := cmd.Flags().GetBool("from-store")
			chain, err := a.loadChain(cmd.Context(), args[0], fromStore)
			if err != nil {
				return err
			}
			stats := chain.Stats()
			renderTable(cmd.OutOrStdout(), nil, [][]string{
				{"tokens", strconv.Itoa(stats.Tokens)},
				{"links", strconv.Itoa(stats.Links)},
				{"transitions", strconv.Itoa(stats.TotalFrequency)},
				{"starting tokens", strconv.Itoa(stats.StartingTokens)},
				{"ending tokens", strconv.Itoa(stats.EndingTokens)},
			})
			return nil
		},
	}
	infoCmd.Flags().Bool("from-store", false, "Treat SOURCE as a chain store name instead of a file")
	return infoCmd
}

func renderTable(w io.Writer, header []string, data [][]string) {
	table := tablewriter.NewWriter(w)
	if header != nil {
		table.SetHeader(header)
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		table.SetHeaderLine(false)
	}
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()
}

package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/charlie-robison/pythia/internal/markets"
	"github.com/charlie-robison/pythia/internal/store"
)

var marketsCmd = &cobra.Command{
	Use:   "markets",
	Short: "Manage the synced market catalog",
}

var marketsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync active markets from the Gamma API into the local catalog",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("markets"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		svc := markets.NewService(newGamma(), st, cfg.Gamma.PageSize)
		res, err := svc.Sync(ctx)
		if err != nil {
			return eris.Wrap(err, "markets sync")
		}

		zap.L().Info("catalog synced",
			zap.Int("events", res.Events),
			zap.Int("markets", res.Markets),
			zap.Int("upserted", res.Upserted),
		)
		return nil
	},
}

var marketsSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the synced catalog by question, slug, or event title",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("markets"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		found, err := st.SearchMarkets(ctx, args[0], limit)
		if err != nil {
			return eris.Wrap(err, "markets search")
		}

		if len(found) == 0 {
			fmt.Fprintln(os.Stderr, "No markets found.")
			return nil
		}

		formatMarkets(os.Stdout, found)
		return nil
	},
}

// formatMarkets writes a tabular market list to out.
func formatMarkets(out io.Writer, rows []store.CatalogMarket) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tQUESTION\tYES\tVOLUME\tEVENT")
	for _, m := range rows {
		yes := "-"
		if m.YesPrice != nil {
			yes = fmt.Sprintf("%.3f", *m.YesPrice)
		}
		question := m.Question
		if len(question) > 50 {
			question = question[:47] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%.0f\t%s\n", m.ID, question, yes, m.Volume, m.EventTitle)
	}
	_ = w.Flush()
}

func init() {
	marketsSearchCmd.Flags().Int("limit", 20, "max results")
	marketsCmd.AddCommand(marketsSyncCmd)
	marketsCmd.AddCommand(marketsSearchCmd)
	rootCmd.AddCommand(marketsCmd)
}

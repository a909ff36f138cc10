package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/go-cr-meta/internal/model"
	"github.com/pable/go-cr-meta/internal/report"
	"github.com/pable/go-cr-meta/internal/storage"
)

var metaCards bool

var metaCmd = &cobra.Command{
	Use:   "meta [deck-type]",
	Short: "Show deck type usage and win rates",
	Long: `Without arguments, prints every deck type sorted by uses. With a deck type,
prints the most used cards of that archetype.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMeta,
}

func init() {
	metaCmd.Flags().BoolVar(&metaCards, "cards", false, "with no deck type, list cards for every archetype")
}

func runMeta(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	if len(args) == 1 {
		return printTypeCards(cmd.Context(), db, os.Stdout, args[0])
	}
	if err := printMeta(cmd.Context(), db, os.Stdout); err != nil {
		return err
	}
	if metaCards {
		for _, dt := range model.DeckTypes {
			fmt.Fprintf(os.Stdout, "\n--- %s ---\n\n", dt)
			if err := printTypeCards(cmd.Context(), db, os.Stdout, string(dt)); err != nil {
				return err
			}
		}
	}
	return nil
}

func printMeta(ctx context.Context, db *storage.DB, w io.Writer) error {
	stats, err := db.MetaDeckTypes(ctx)
	if err != nil {
		return fmt.Errorf("query meta: %w", err)
	}
	if len(stats) == 0 {
		fmt.Fprintln(w, "No snapshot stored yet. Run 'crmeta snapshot' to build one.")
		return nil
	}
	report.PrintMetaTypes(w, stats)
	return nil
}

func printTypeCards(ctx context.Context, db *storage.DB, w io.Writer, label string) error {
	dt, ok := model.ParseDeckType(label)
	if !ok {
		return fmt.Errorf("unknown deck type %q", label)
	}
	cards, err := db.TypeCards(ctx, dt, 0)
	if err != nil {
		return fmt.Errorf("query %s cards: %w", dt, err)
	}
	if len(cards) == 0 {
		fmt.Fprintf(w, "No %s decks in this snapshot.\n", dt)
		return nil
	}
	report.PrintTypeCards(w, cards)
	return nil
}

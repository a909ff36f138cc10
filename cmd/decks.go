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

var (
	decksType    string
	decksMinUses int
	decksLimit   int
)

var decksCmd = &cobra.Command{
	Use:   "decks",
	Short: "List the most used decks",
	Args:  cobra.NoArgs,
	RunE:  runDecks,
}

func init() {
	decksCmd.Flags().StringVar(&decksType, "type", "", "only decks of this archetype (e.g. \"Bridge Spam\")")
	decksCmd.Flags().IntVar(&decksMinUses, "min-uses", 0, "hide decks used fewer times")
	decksCmd.Flags().IntVar(&decksLimit, "limit", 25, "maximum rows (0 for all)")
}

func runDecks(cmd *cobra.Command, _ []string) error {
	q := storage.DeckQuery{MinUses: decksMinUses, Limit: decksLimit}
	if decksType != "" {
		dt, ok := model.ParseDeckType(decksType)
		if !ok {
			return fmt.Errorf("unknown deck type %q", decksType)
		}
		q.Type = dt
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	return printDecks(cmd.Context(), db, os.Stdout, q)
}

func printDecks(ctx context.Context, db *storage.DB, w io.Writer, q storage.DeckQuery) error {
	decks, err := db.TopDecks(ctx, q)
	if err != nil {
		return fmt.Errorf("list decks: %w", err)
	}
	if len(decks) == 0 {
		fmt.Fprintln(w, "No decks match. Run 'crmeta snapshot' if the database is empty.")
		return nil
	}
	report.PrintDecks(w, decks)
	return nil
}

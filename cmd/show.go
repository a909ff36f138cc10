package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/go-cr-meta/internal/report"
	"github.com/pable/go-cr-meta/internal/storage"
)

var showCmd = &cobra.Command{
	Use:   "show <hash-prefix>",
	Short: "Show a stored deck's cards by hash prefix",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	return printDeck(cmd.Context(), db, os.Stdout, args[0])
}

func printDeck(ctx context.Context, db *storage.DB, w io.Writer, prefix string) error {
	d, err := db.GetDeckByPrefix(ctx, prefix)
	if err != nil {
		return fmt.Errorf("query deck: %w", err)
	}
	if d == nil {
		fmt.Fprintf(os.Stderr, "No deck found with hash prefix %q\n", prefix)
		return nil
	}
	cards, err := db.DeckCards(ctx, d.Hash)
	if err != nil {
		return fmt.Errorf("get deck cards: %w", err)
	}
	report.PrintDeck(w, *d, cards)
	return nil
}

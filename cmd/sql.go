package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pable/go-cr-meta/internal/report"
	"github.com/pable/go-cr-meta/internal/storage"
)

var sqlCmd = &cobra.Command{
	Use:   "sql <query>",
	Short: "Run a raw SQL query against the snapshot database",
	Long: `Run an arbitrary SQL query against the snapshot database and print results as a table.

Schema overview:
  deck_types(deck_type)
  cards(card_id, card_name)
  player(player_tag, player_name, trophies, rank_global)
  decks(deck_hash, deck_type)
  deck_cards(deck_hash, card_id, card_variant, slot)
  player_decks(player_tag, deck_hash, uses, wins)
  meta_deck_types(deck_type, uses, wins)
  meta_type_deck_ids(deck_type, deck_hash, uses, wins)
  meta_type_cards(deck_type, card_id, card_variant, uses, wins)
  player_type_cards(player_tag, deck_type, card_id, card_variant, uses, wins)
  deck_type_overrides(deck_hash, deck_type, note, updated_at)

Note: player tags are stored with the leading '#'. Use quotes: WHERE player_tag = '#2PP'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSQL,
}

func runSQL(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	return printQuery(cmd.Context(), db, os.Stdout, strings.Join(args, " "))
}

func printQuery(ctx context.Context, db *storage.DB, w io.Writer, query string) error {
	cols, rows, err := db.QueryRaw(ctx, query)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintln(w, "(no rows)")
		return nil
	}

	report.PrintRows(w, cols, rows)
	fmt.Fprintf(w, "\n(%d rows)\n", len(rows))
	return nil
}

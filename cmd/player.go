package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/go-cr-meta/internal/battle"
	"github.com/pable/go-cr-meta/internal/report"
	"github.com/pable/go-cr-meta/internal/storage"
)

// playerCmd prints the decks and per-archetype cards of one or more top players.
var playerCmd = &cobra.Command{
	Use:   "player [<tag>...]",
	Short: "Show a top player's decks and archetype cards",
	Long: `Show the ranked decks each player used in the stored snapshot, with card
counters per archetype. Tags may be given with or without '#'. Without
arguments, lists the stored top players.`,
	RunE: runPlayer,
}

func runPlayer(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	if len(args) == 0 {
		return printPlayerList(cmd.Context(), db, os.Stdout)
	}
	for _, arg := range args {
		if err := printPlayer(cmd.Context(), db, os.Stdout, arg); err != nil {
			return err
		}
	}
	return nil
}

func printPlayerList(ctx context.Context, db *storage.DB, w io.Writer) error {
	players, err := db.ListPlayers(ctx)
	if err != nil {
		return fmt.Errorf("list players: %w", err)
	}
	if len(players) == 0 {
		fmt.Fprintln(w, "No players stored yet. Run 'crmeta snapshot' to build one.")
		return nil
	}
	report.PrintPlayers(w, players)
	return nil
}

func printPlayer(ctx context.Context, db *storage.DB, w io.Writer, arg string) error {
	tag := battle.NormalizeTag(arg)
	p, err := db.GetPlayer(ctx, tag)
	if err != nil {
		return fmt.Errorf("query player %s: %w", tag, err)
	}
	if p == nil {
		fmt.Fprintf(os.Stderr, "No top player %s in this snapshot\n", tag)
		return nil
	}
	decks, err := db.PlayerDecks(ctx, tag)
	if err != nil {
		return fmt.Errorf("query decks for %s: %w", tag, err)
	}
	cards, err := db.PlayerTypeCards(ctx, tag)
	if err != nil {
		return fmt.Errorf("query cards for %s: %w", tag, err)
	}
	report.PrintPlayer(w, *p, decks, cards)
	return nil
}

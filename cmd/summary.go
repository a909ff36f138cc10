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

// summaryCmd prints table row counts and the deck size integrity check.
var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show a high-level overview of the database",
	Long: `Display row counts for every snapshot table, the number of manual overrides,
and any stored deck that does not have exactly 8 cards.`,
	Args: cobra.NoArgs,
	RunE: runSummary,
}

func runSummary(cmd *cobra.Command, _ []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	return printSummary(cmd.Context(), db, os.Stdout)
}

func printSummary(ctx context.Context, db *storage.DB, w io.Writer) error {
	ov, err := db.GetDBOverview(ctx)
	if err != nil {
		return fmt.Errorf("get overview: %w", err)
	}
	fmt.Fprintf(w, "\n=== Database Summary (%s) ===\n\n", db.Dialect())
	report.PrintOverview(w, ov)
	return nil
}

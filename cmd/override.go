package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pable/go-cr-meta/internal/model"
	"github.com/pable/go-cr-meta/internal/report"
)

var overrideNote string

// overrideCmd manages deck_type_overrides, which the snapshot run reads but never rewrites.
var overrideCmd = &cobra.Command{
	Use:   "override",
	Short: "Manage manual deck type overrides",
	Long: `Overrides pin a deck hash to an archetype ahead of the classifier. They are
read at the start of every snapshot run and survive snapshot replacement.`,
}

var overrideSetCmd = &cobra.Command{
	Use:   "set <deck-hash> <deck-type>",
	Short: "Pin a deck to an archetype",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		label := strings.Join(args[1:], " ")
		dt, ok := model.ParseDeckType(label)
		if !ok {
			return fmt.Errorf("unknown deck type %q", label)
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.SetOverride(cmd.Context(), args[0], dt, overrideNote); err != nil {
			return fmt.Errorf("set override: %w", err)
		}
		fmt.Fprintf(os.Stdout, "%s -> %s\n", args[0], dt)
		return nil
	},
}

var overrideRmCmd = &cobra.Command{
	Use:     "rm <deck-hash>",
	Aliases: []string{"delete"},
	Short:   "Remove an override",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		found, err := db.DeleteOverride(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("delete override: %w", err)
		}
		if !found {
			fmt.Fprintf(os.Stderr, "No override for %s\n", args[0])
			return nil
		}
		fmt.Fprintf(os.Stdout, "Removed override for %s\n", args[0])
		return nil
	},
}

var overrideListCmd = &cobra.Command{
	Use:   "list",
	Short: "List overrides",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		list, err := db.ListOverrides(cmd.Context())
		if err != nil {
			return fmt.Errorf("list overrides: %w", err)
		}
		if len(list) == 0 {
			fmt.Fprintln(os.Stdout, "No overrides.")
			return nil
		}
		report.PrintOverrides(os.Stdout, list)
		return nil
	},
}

func init() {
	overrideSetCmd.Flags().StringVar(&overrideNote, "note", "", "free-text reason stored with the override")
	overrideCmd.AddCommand(overrideSetCmd, overrideRmCmd, overrideListCmd)
}

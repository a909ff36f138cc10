package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pable/go-cr-meta/internal/model"
	"github.com/pable/go-cr-meta/internal/storage"
)

var (
	cPrompt   = color.New(color.FgCyan, color.Bold)
	cMuted    = color.New(color.Faint)
	cError    = color.New(color.FgRed, color.Bold)
	cWarn     = color.New(color.FgYellow)
	cCmd      = color.New(color.FgYellow, color.Bold)
	cGreeting = color.New(color.Bold)
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive REPL session",
	Long:  "Open a persistent session against the database. Type 'help' for available commands.",
	Args:  cobra.NoArgs,
	RunE:  runShell,
}

func runShell(cmd *cobra.Command, _ []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	cGreeting.Println("crmeta shell")
	cMuted.Printf("%s store, type 'help' or 'exit'\n", db.Dialect())
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		cPrompt.Print("crmeta")
		cMuted.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		tokens := strings.Fields(line)
		name, args := tokens[0], tokens[1:]
		if name == "exit" || name == "quit" {
			return nil
		}
		if err := shellExec(ctx, db, name, args, line); err != nil {
			cError.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
	return nil
}

func shellExec(ctx context.Context, db *storage.DB, name string, args []string, line string) error {
	switch name {
	case "help":
		shellHelp()
	case "meta":
		if len(args) > 0 {
			return printTypeCards(ctx, db, os.Stdout, strings.Join(args, " "))
		}
		return printMeta(ctx, db, os.Stdout)
	case "decks":
		q, err := parseDecksArgs(args)
		if err != nil {
			return err
		}
		return printDecks(ctx, db, os.Stdout, q)
	case "show":
		if len(args) != 1 {
			cWarn.Fprintln(os.Stderr, "usage: show <hash-prefix>")
			return nil
		}
		return printDeck(ctx, db, os.Stdout, args[0])
	case "players":
		return printPlayerList(ctx, db, os.Stdout)
	case "player":
		if len(args) == 0 {
			cWarn.Fprintln(os.Stderr, "usage: player <tag> [<tag>...]")
			return nil
		}
		for _, tag := range args {
			if err := printPlayer(ctx, db, os.Stdout, tag); err != nil {
				return err
			}
		}
	case "summary":
		return printSummary(ctx, db, os.Stdout)
	case "sql":
		query := strings.TrimSpace(strings.TrimPrefix(line, name))
		if query == "" {
			cWarn.Fprintln(os.Stderr, "usage: sql <query>")
			return nil
		}
		return printQuery(ctx, db, os.Stdout, query)
	default:
		cWarn.Fprintf(os.Stderr, "unknown command %q, type 'help'\n", name)
	}
	return nil
}

// parseDecksArgs reads "[<deck type>] [--min-uses N] [--limit N]".
func parseDecksArgs(args []string) (storage.DeckQuery, error) {
	q := storage.DeckQuery{Limit: 25}
	var label []string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--min-uses", "--limit":
			if i+1 >= len(args) {
				return q, fmt.Errorf("%s needs a value", args[i])
			}
			n, err := strconv.Atoi(args[i+1])
			if err != nil {
				return q, fmt.Errorf("%s: %w", args[i], err)
			}
			if args[i] == "--limit" {
				q.Limit = n
			} else {
				q.MinUses = n
			}
			i++
		default:
			label = append(label, args[i])
		}
	}
	if len(label) > 0 {
		s := strings.Join(label, " ")
		dt, ok := model.ParseDeckType(s)
		if !ok {
			return q, fmt.Errorf("unknown deck type %q", s)
		}
		q.Type = dt
	}
	return q, nil
}

func shellHelp() {
	fmt.Println()
	type entry struct{ cmd, desc string }
	rows := []entry{
		{"meta", "deck type usage and win rates"},
		{"meta <deck type>", "most used cards of one archetype"},
		{"decks [<deck type>] [--min-uses N] [--limit N]", "most used decks"},
		{"show <hash-prefix>", "a deck's cards"},
		{"players", "stored top players"},
		{"player <tag> [...]", "decks and archetype cards of top players"},
		{"summary", "table counts and integrity check"},
		{"sql <query>", "raw SQL"},
		{"help", "show this message"},
		{"exit / quit", "close the session"},
	}
	for _, r := range rows {
		fmt.Print("  ")
		cCmd.Printf("%-48s", r.cmd)
		fmt.Println(r.desc)
	}
	fmt.Println()
}

package report

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/pable/go-cr-meta/internal/etl"
	"github.com/pable/go-cr-meta/internal/model"
	"github.com/pable/go-cr-meta/internal/storage"
)

func newTable(w io.Writer) *tablewriter.Table {
	return tablewriter.NewTable(w, tablewriter.WithConfig(tablewriter.Config{
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignRight},
		},
		Header: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignCenter},
		},
	}))
}

// PrintRunSummary prints the pre-write summary of a scan.
func PrintRunSummary(w io.Writer, runID string, st etl.Stats) {
	fmt.Fprintf(w, "\n[ETL] SUMMARY (pre-DB)  run %s\n", runID)
	fmt.Fprintf(w, "  players fetched:            %d\n", st.PlayersFetched)
	fmt.Fprintf(w, "  battle entries scanned:     %d\n", st.EntriesScanned)
	fmt.Fprintf(w, "  deduped matches counted:    %d\n", st.DedupedMatches)
	fmt.Fprintf(w, "  unique decks:               %d\n", st.UniqueDecks)
	fmt.Fprintf(w, "  player_decks rows (TopN):   %d\n", st.PlayerDeckRows)
	fmt.Fprintf(w, "  skipped: %d unranked, %d duplicate, %d not 1v1, %d malformed participants; %d overridden decks\n",
		st.Unranked, st.Duplicates, st.NotOneVsOne, st.SkippedParticipants, st.Overridden)
}

// PrintMetaTypes prints archetype usage with share of all observations.
func PrintMetaTypes(w io.Writer, stats []storage.TypeStat) {
	total := 0
	for _, s := range stats {
		total += s.Uses
	}

	table := newTable(w)
	table.Header("DECK TYPE", "USES", "SHARE", "WINS", "WIN%", "95% CI", "SAMPLE")
	for _, s := range stats {
		share := 0.0
		if total > 0 {
			share = 100 * float64(s.Uses) / float64(total)
		}
		table.Append(
			string(s.Type),
			strconv.Itoa(s.Uses),
			fmt.Sprintf("%.1f%%", share),
			strconv.Itoa(s.Wins),
			fmt.Sprintf("%.1f%%", s.WinRate()),
			ciString(s.Wins, s.Uses),
			sampleFlag(s.Uses),
		)
	}
	table.Render()
}

// PrintDecks prints a deck list with counters. Hashes are shortened to 12 chars.
func PrintDecks(w io.Writer, decks []storage.DeckStat) {
	table := newTable(w)
	table.Header("HASH", "TYPE", "USES", "WINS", "WIN%", "95% CI", "SAMPLE")
	for _, d := range decks {
		table.Append(
			shortHash(d.Hash),
			string(d.Type),
			strconv.Itoa(d.Uses),
			strconv.Itoa(d.Wins),
			fmt.Sprintf("%.1f%%", d.WinRate()),
			ciString(d.Wins, d.Uses),
			sampleFlag(d.Uses),
		)
	}
	table.Render()
}

// PrintDeck prints one deck's header line and its cards in slot order.
func PrintDeck(w io.Writer, d storage.DeckStat, cards []storage.DeckCard) {
	fmt.Fprintf(w, "\nDeck: %s  |  Type: %s  |  Uses: %d  |  Win%%: %.1f%%\n\n",
		d.Hash, d.Type, d.Uses, d.WinRate())

	table := newTable(w)
	table.Header("SLOT", "CARD", "ID", "VARIANT")
	for _, c := range cards {
		name := c.Name
		if name == "" {
			name = "?"
		}
		table.Append(strconv.Itoa(c.Slot), name, strconv.FormatInt(c.CardID, 10), string(c.Variant))
	}
	table.Render()
}

// PrintTypeCards prints card counters. The TYPE column is omitted when every
// row shares one archetype.
func PrintTypeCards(w io.Writer, cards []storage.CardStat) {
	mixed := false
	for _, c := range cards {
		if c.Type != cards[0].Type {
			mixed = true
			break
		}
	}

	table := newTable(w)
	if mixed {
		table.Header("TYPE", "CARD", "VARIANT", "USES", "WINS", "WIN%")
	} else {
		table.Header("CARD", "VARIANT", "USES", "WINS", "WIN%")
	}
	for _, c := range cards {
		name := c.Name
		if name == "" {
			name = strconv.FormatInt(c.CardID, 10)
		}
		row := []any{name, string(c.Variant), strconv.Itoa(c.Uses), strconv.Itoa(c.Wins), fmt.Sprintf("%.1f%%", c.WinRate())}
		if mixed {
			row = append([]any{string(c.Type)}, row...)
		}
		table.Append(row...)
	}
	table.Render()
}

// PrintPlayer prints a top player's header, decks and per-archetype cards.
func PrintPlayer(w io.Writer, p model.Player, decks []storage.DeckStat, cards []storage.CardStat) {
	fmt.Fprintf(w, "\nPlayer: %s (%s)  |  Rank: %d  |  Trophies: %d\n\n", p.Name, p.Tag, p.Rank, p.Trophies)
	if len(decks) == 0 {
		fmt.Fprintln(w, "  no ranked decks in this snapshot")
		return
	}
	PrintDecks(w, decks)
	fmt.Fprintln(w)
	PrintTypeCards(w, cards)
}

// PrintPlayers prints the stored top players.
func PrintPlayers(w io.Writer, players []model.Player) {
	table := newTable(w)
	table.Header("RANK", "TAG", "NAME", "TROPHIES")
	for _, p := range players {
		table.Append(strconv.Itoa(p.Rank), p.Tag, p.Name, strconv.Itoa(p.Trophies))
	}
	table.Render()
}

// PrintOverview prints table counts and the deck size check.
func PrintOverview(w io.Writer, ov *storage.Overview) {
	table := newTable(w)
	table.Header("TABLE", "ROWS")
	for _, t := range ov.Tables {
		table.Append(t.Table, strconv.Itoa(t.Rows))
	}
	table.Append("deck_type_overrides", strconv.Itoa(ov.Overrides))
	table.Render()

	if len(ov.MalformedDecks) == 0 {
		fmt.Fprintln(w, "\nIntegrity: every deck has 8 cards.")
		return
	}
	fmt.Fprintf(w, "\nIntegrity: %d deck(s) without exactly 8 cards:\n", len(ov.MalformedDecks))
	for _, h := range ov.MalformedDecks {
		fmt.Fprintf(w, "  %s\n", h)
	}
}

// PrintOverrides prints the override table.
func PrintOverrides(w io.Writer, list []storage.Override) {
	table := newTable(w)
	table.Header("HASH", "TYPE", "NOTE", "UPDATED")
	for _, o := range list {
		table.Append(o.Hash, string(o.Type), o.Note, o.UpdatedAt)
	}
	table.Render()
}

// PrintRows prints a raw query result.
func PrintRows(w io.Writer, cols []string, rows [][]string) {
	table := newTable(w)
	header := make([]any, len(cols))
	for i, c := range cols {
		header[i] = c
	}
	table.Header(header...)
	for _, row := range rows {
		cells := make([]any, len(row))
		for i, v := range row {
			cells[i] = v
		}
		table.Append(cells...)
	}
	table.Render()
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

func ciString(wins, uses int) string {
	if uses == 0 {
		return "—"
	}
	lo, hi := wilsonCI(wins, uses)
	return fmt.Sprintf("%.0f–%.0f%%", 100*lo, 100*hi)
}

func sampleFlag(n int) string {
	switch {
	case n >= 50:
		return "OK"
	case n >= 20:
		return "LOW"
	default:
		return "VERY_LOW"
	}
}

// wilsonCI computes the 95% Wilson score confidence interval for a proportion.
// Returns (lo, hi) as fractions in [0, 1].
func wilsonCI(hits, n int) (lo, hi float64) {
	if n == 0 {
		return 0, 1
	}
	z := 1.96
	p := float64(hits) / float64(n)
	nf := float64(n)
	denom := 1 + z*z/nf
	center := (p + z*z/(2*nf)) / denom
	half := z * math.Sqrt(p*(1-p)/nf+z*z/(4*nf*nf)) / denom
	return math.Max(0, center-half), math.Min(1, center+half)
}

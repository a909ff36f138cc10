package storage

import (
	"context"
	"testing"

	"github.com/pable/go-cr-meta/internal/aggregator"
	"github.com/pable/go-cr-meta/internal/model"
	"github.com/pable/go-cr-meta/internal/snapshot"
)

func openMemDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testDeck(hash string, dt model.DeckType, base int64) model.Deck {
	d := model.Deck{Hash: hash, Type: dt}
	for i := int64(0); i < 8; i++ {
		d.Cards = append(d.Cards, model.CardObservation{
			CardID:   base + i,
			CardName: "card",
			Variant:  model.VariantNormal,
			Slot:     int(i) + 1,
		})
	}
	return d
}

// buildSnapshot returns a two-player snapshot with decks "aaaa1111" (Siege)
// and "bbbb2222" (Cycle).
func buildSnapshot(t *testing.T) *snapshot.Snapshot {
	t.Helper()
	players := []model.Player{
		{Tag: "#AAA", Name: "Alice", Trophies: 9000, Rank: 1},
		{Tag: "#BBB", Name: "Bob", Trophies: 8900, Rank: 2},
	}
	agg := aggregator.New([]string{"#AAA", "#BBB"})
	siege := testDeck("aaaa1111", model.DeckTypeSiege, 100)
	cycle := testDeck("bbbb2222", model.DeckTypeCycle, 104)
	agg.Observe("#AAA", siege, true)
	agg.Observe("#AAA", siege, false)
	agg.Observe("#BBB", cycle, true)
	agg.Observe("#ZZZ", cycle, false)
	return snapshot.Assemble(players, agg)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := t.TempDir() + "/meta.db"
	for i := 0; i < 2; i++ {
		db, err := Open(path)
		if err != nil {
			t.Fatalf("open #%d: %v", i+1, err)
		}
		db.Close()
	}
}

func TestReplaceSnapshotRoundTrip(t *testing.T) {
	db := openMemDB(t)
	ctx := context.Background()

	if err := db.ReplaceSnapshot(ctx, buildSnapshot(t)); err != nil {
		t.Fatalf("ReplaceSnapshot: %v", err)
	}

	types, err := db.MetaDeckTypes(ctx)
	if err != nil {
		t.Fatalf("MetaDeckTypes: %v", err)
	}
	if len(types) != 2 {
		t.Fatalf("expected 2 meta types, got %d", len(types))
	}
	for _, ts := range types {
		if ts.Uses != 2 {
			t.Errorf("%s: uses = %d, want 2", ts.Type, ts.Uses)
		}
	}

	decks, err := db.TopDecks(ctx, DeckQuery{Type: model.DeckTypeCycle})
	if err != nil {
		t.Fatalf("TopDecks: %v", err)
	}
	if len(decks) != 1 || decks[0].Hash != "bbbb2222" || decks[0].Wins != 1 {
		t.Errorf("unexpected cycle decks: %+v", decks)
	}

	cards, err := db.DeckCards(ctx, "aaaa1111")
	if err != nil {
		t.Fatalf("DeckCards: %v", err)
	}
	if len(cards) != 8 || cards[0].Slot != 1 || cards[0].Name != "card" {
		t.Errorf("unexpected deck cards: %+v", cards)
	}

	players, err := db.ListPlayers(ctx)
	if err != nil {
		t.Fatalf("ListPlayers: %v", err)
	}
	if len(players) != 2 || players[0].Tag != "#AAA" || players[0].Trophies != 9000 {
		t.Errorf("unexpected players: %+v", players)
	}

	pd, err := db.PlayerDecks(ctx, "#AAA")
	if err != nil {
		t.Fatalf("PlayerDecks: %v", err)
	}
	if len(pd) != 1 || pd[0].Uses != 2 || pd[0].Wins != 1 {
		t.Errorf("unexpected player decks: %+v", pd)
	}

	ptc, err := db.PlayerTypeCards(ctx, "#BBB")
	if err != nil {
		t.Fatalf("PlayerTypeCards: %v", err)
	}
	if len(ptc) != 8 {
		t.Errorf("expected 8 player type cards for #BBB, got %d", len(ptc))
	}

	tc, err := db.TypeCards(ctx, model.DeckTypeSiege, 3)
	if err != nil {
		t.Fatalf("TypeCards: %v", err)
	}
	if len(tc) != 3 {
		t.Errorf("expected limit to apply, got %d rows", len(tc))
	}
}

func TestReplaceSnapshotReplacesPriorData(t *testing.T) {
	db := openMemDB(t)
	ctx := context.Background()

	if err := db.ReplaceSnapshot(ctx, buildSnapshot(t)); err != nil {
		t.Fatalf("first load: %v", err)
	}

	agg := aggregator.New([]string{"#CCC"})
	agg.Observe("#CCC", testDeck("cccc3333", model.DeckTypeBait, 300), true)
	second := snapshot.Assemble([]model.Player{{Tag: "#CCC", Rank: 1}}, agg)
	if err := db.ReplaceSnapshot(ctx, second); err != nil {
		t.Fatalf("second load: %v", err)
	}

	players, _ := db.ListPlayers(ctx)
	if len(players) != 1 || players[0].Tag != "#CCC" {
		t.Errorf("expected only the new cohort, got %+v", players)
	}
	old, err := db.GetDeckByPrefix(ctx, "aaaa")
	if err != nil {
		t.Fatalf("GetDeckByPrefix: %v", err)
	}
	if old != nil {
		t.Error("expected previous snapshot decks to be gone")
	}
}

func TestReplaceSnapshotKeepsOverrides(t *testing.T) {
	db := openMemDB(t)
	ctx := context.Background()

	if err := db.SetOverride(ctx, "aaaa1111", model.DeckTypeBeatdown, "mislabelled"); err != nil {
		t.Fatalf("SetOverride: %v", err)
	}
	if err := db.ReplaceSnapshot(ctx, buildSnapshot(t)); err != nil {
		t.Fatalf("ReplaceSnapshot: %v", err)
	}

	ov, err := db.LoadOverrides(ctx)
	if err != nil {
		t.Fatalf("LoadOverrides: %v", err)
	}
	if ov["aaaa1111"] != model.DeckTypeBeatdown {
		t.Errorf("override lost across snapshot load: %v", ov)
	}
}

func TestReplaceSnapshotRollsBackOnFailure(t *testing.T) {
	db := openMemDB(t)
	ctx := context.Background()

	if err := db.ReplaceSnapshot(ctx, buildSnapshot(t)); err != nil {
		t.Fatalf("first load: %v", err)
	}

	// Valid references, but a duplicate primary key fails mid-transaction.
	bad := snapshot.Assemble(nil, aggregator.New(nil))
	bad.DeckTypes = append(bad.DeckTypes, bad.DeckTypes[0])
	if err := db.ReplaceSnapshot(ctx, bad); err == nil {
		t.Fatal("expected duplicate deck type to fail the load")
	}

	players, err := db.ListPlayers(ctx)
	if err != nil {
		t.Fatalf("ListPlayers: %v", err)
	}
	if len(players) != 2 {
		t.Errorf("expected prior snapshot intact after rollback, got %d players", len(players))
	}
}

func TestReplaceSnapshotRejectsInvalid(t *testing.T) {
	db := openMemDB(t)
	s := buildSnapshot(t)
	s.MetaTypes[0].Wins = s.MetaTypes[0].Uses + 1
	if err := db.ReplaceSnapshot(context.Background(), s); err == nil {
		t.Error("expected validation error")
	}
}

func TestGetDeckByPrefix(t *testing.T) {
	db := openMemDB(t)
	ctx := context.Background()
	if err := db.ReplaceSnapshot(ctx, buildSnapshot(t)); err != nil {
		t.Fatal(err)
	}

	d, err := db.GetDeckByPrefix(ctx, "bbbb")
	if err != nil {
		t.Fatalf("GetDeckByPrefix: %v", err)
	}
	if d == nil {
		t.Fatal("expected match for prefix 'bbbb'")
	}
	if d.Hash != "bbbb2222" || d.Type != model.DeckTypeCycle || d.Uses != 2 {
		t.Errorf("unexpected deck %+v", d)
	}

	d2, err := db.GetDeckByPrefix(ctx, "ffff")
	if err != nil {
		t.Fatalf("GetDeckByPrefix no-match: %v", err)
	}
	if d2 != nil {
		t.Error("expected nil for unknown prefix")
	}
}

func TestGetDeckByPrefixMatchesLiterally(t *testing.T) {
	db := openMemDB(t)
	ctx := context.Background()
	if err := db.ReplaceSnapshot(ctx, buildSnapshot(t)); err != nil {
		t.Fatal(err)
	}

	for _, prefix := range []string{"%", "_", "aaa_", "%1111", `\`} {
		d, err := db.GetDeckByPrefix(ctx, prefix)
		if err != nil {
			t.Fatalf("GetDeckByPrefix(%q): %v", prefix, err)
		}
		if d != nil {
			t.Errorf("GetDeckByPrefix(%q) = %s, want no match", prefix, d.Hash)
		}
	}

	d, err := db.GetDeckByPrefix(ctx, "aaaa")
	if err != nil {
		t.Fatal(err)
	}
	if d == nil || d.Hash != "aaaa1111" {
		t.Errorf("expected aaaa1111 for prefix 'aaaa', got %+v", d)
	}
}

func TestOverrides(t *testing.T) {
	db := openMemDB(t)
	ctx := context.Background()

	if err := db.SetOverride(ctx, "h1", model.DeckTypeSiege, ""); err != nil {
		t.Fatalf("SetOverride: %v", err)
	}
	if err := db.SetOverride(ctx, "h1", model.DeckTypeBait, "second opinion"); err != nil {
		t.Fatalf("SetOverride replace: %v", err)
	}
	list, err := db.ListOverrides(ctx)
	if err != nil {
		t.Fatalf("ListOverrides: %v", err)
	}
	if len(list) != 1 || list[0].Type != model.DeckTypeBait || list[0].Note != "second opinion" || list[0].UpdatedAt == "" {
		t.Errorf("unexpected overrides %+v", list)
	}

	removed, err := db.DeleteOverride(ctx, "h1")
	if err != nil || !removed {
		t.Fatalf("DeleteOverride: removed=%v err=%v", removed, err)
	}
	removed, err = db.DeleteOverride(ctx, "h1")
	if err != nil || removed {
		t.Errorf("second DeleteOverride: removed=%v err=%v", removed, err)
	}
}

func TestLoadOverridesRejectsUnknownLabel(t *testing.T) {
	db := openMemDB(t)
	ctx := context.Background()
	if err := db.SetOverride(ctx, "h1", "Spell Cycle", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := db.LoadOverrides(ctx); err == nil {
		t.Error("expected error for unknown override label")
	}
}

func TestOverviewFlagsMalformedDecks(t *testing.T) {
	db := openMemDB(t)
	ctx := context.Background()

	s := buildSnapshot(t)
	s.DeckCards = s.DeckCards[1:] // first deck now has 7 members
	if err := db.ReplaceSnapshot(ctx, s); err != nil {
		t.Fatalf("ReplaceSnapshot: %v", err)
	}

	ov, err := db.GetDBOverview(ctx)
	if err != nil {
		t.Fatalf("GetDBOverview: %v", err)
	}
	if len(ov.MalformedDecks) != 1 || ov.MalformedDecks[0] != "aaaa1111" {
		t.Errorf("malformed decks = %v, want [aaaa1111]", ov.MalformedDecks)
	}
	if ov.Tables[0].Table != "deck_types" || ov.Tables[0].Rows != len(model.DeckTypes) {
		t.Errorf("unexpected first table count %+v", ov.Tables[0])
	}
}

func TestQueryRaw(t *testing.T) {
	db := openMemDB(t)
	ctx := context.Background()
	if err := db.ReplaceSnapshot(ctx, buildSnapshot(t)); err != nil {
		t.Fatal(err)
	}

	cols, rows, err := db.QueryRaw(ctx, "SELECT player_tag, rank_global FROM player ORDER BY rank_global")
	if err != nil {
		t.Fatalf("QueryRaw: %v", err)
	}
	if len(cols) != 2 || cols[0] != "player_tag" {
		t.Errorf("unexpected columns %v", cols)
	}
	if len(rows) != 2 || rows[0][0] != "#AAA" || rows[0][1] != "1" {
		t.Errorf("unexpected rows %v", rows)
	}
}

func TestDialectFor(t *testing.T) {
	cases := []struct {
		dsn  string
		want Dialect
	}{
		{"postgres://u:p@localhost/db", Postgres},
		{"postgresql://localhost/db", Postgres},
		{"/home/me/.crmeta/meta.db", SQLite},
		{":memory:", SQLite},
	}
	for _, tc := range cases {
		if got := DialectFor(tc.dsn); got != tc.want {
			t.Errorf("DialectFor(%q) = %v, want %v", tc.dsn, got, tc.want)
		}
	}
}

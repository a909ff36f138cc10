package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pable/go-cr-meta/internal/snapshot"
)

// SnapshotTables lists every table the snapshot load replaces, child to
// parent. deck_type_overrides is never touched.
var SnapshotTables = []string{
	"player_type_cards",
	"meta_type_cards",
	"meta_type_deck_ids",
	"meta_deck_types",
	"player_decks",
	"deck_cards",
	"decks",
	"cards",
	"player",
	"deck_types",
}

// ReplaceSnapshot clears the snapshot tables and loads s in a single
// transaction. On any error nothing is changed.
func (db *DB) ReplaceSnapshot(ctx context.Context, s *snapshot.Snapshot) error {
	if err := s.Validate(); err != nil {
		return err
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := db.truncateSnapshot(ctx, tx); err != nil {
		return err
	}

	steps := []struct {
		table string
		query string
		n     int
		args  func(i int) []any
	}{
		{"deck_types", `INSERT INTO deck_types(deck_type) VALUES (?)`,
			len(s.DeckTypes), func(i int) []any { return []any{string(s.DeckTypes[i])} }},
		{"cards", `INSERT INTO cards(card_id, card_name) VALUES (?, ?)
			ON CONFLICT (card_id) DO UPDATE SET card_name = excluded.card_name`,
			len(s.Cards), func(i int) []any { return []any{s.Cards[i].CardID, s.Cards[i].Name} }},
		{"player", `INSERT INTO player(player_tag, player_name, trophies, rank_global) VALUES (?, ?, ?, ?)
			ON CONFLICT (player_tag) DO UPDATE SET
				player_name = excluded.player_name,
				trophies = excluded.trophies,
				rank_global = excluded.rank_global`,
			len(s.Players), func(i int) []any {
				p := s.Players[i]
				return []any{p.Tag, p.Name, p.Trophies, p.Rank}
			}},
		{"decks", `INSERT INTO decks(deck_hash, deck_type) VALUES (?, ?)
			ON CONFLICT (deck_hash) DO UPDATE SET deck_type = excluded.deck_type`,
			len(s.Decks), func(i int) []any { return []any{s.Decks[i].Hash, string(s.Decks[i].Type)} }},
		{"deck_cards", `INSERT INTO deck_cards(deck_hash, card_id, card_variant, slot) VALUES (?, ?, ?, ?)
			ON CONFLICT (deck_hash, card_id, card_variant) DO UPDATE SET slot = excluded.slot`,
			len(s.DeckCards), func(i int) []any {
				r := s.DeckCards[i]
				return []any{r.Hash, r.CardID, string(r.Variant), r.Slot}
			}},
		{"player_decks", `INSERT INTO player_decks(player_tag, deck_hash, uses, wins) VALUES (?, ?, ?, ?)
			ON CONFLICT (player_tag, deck_hash) DO UPDATE SET uses = excluded.uses, wins = excluded.wins`,
			len(s.PlayerDecks), func(i int) []any {
				r := s.PlayerDecks[i]
				return []any{r.Tag, r.Hash, r.Uses, r.Wins}
			}},
		{"meta_deck_types", `INSERT INTO meta_deck_types(deck_type, uses, wins) VALUES (?, ?, ?)`,
			len(s.MetaTypes), func(i int) []any {
				r := s.MetaTypes[i]
				return []any{string(r.Type), r.Uses, r.Wins}
			}},
		{"meta_type_deck_ids", `INSERT INTO meta_type_deck_ids(deck_type, deck_hash, uses, wins) VALUES (?, ?, ?, ?)`,
			len(s.MetaTypeDecks), func(i int) []any {
				r := s.MetaTypeDecks[i]
				return []any{string(r.Type), r.Hash, r.Uses, r.Wins}
			}},
		{"meta_type_cards", `INSERT INTO meta_type_cards(deck_type, card_id, card_variant, uses, wins) VALUES (?, ?, ?, ?, ?)`,
			len(s.MetaTypeCards), func(i int) []any {
				r := s.MetaTypeCards[i]
				return []any{string(r.Type), r.CardID, string(r.Variant), r.Uses, r.Wins}
			}},
		{"player_type_cards", `INSERT INTO player_type_cards(player_tag, deck_type, card_id, card_variant, uses, wins) VALUES (?, ?, ?, ?, ?, ?)`,
			len(s.PlayerTypeCards), func(i int) []any {
				r := s.PlayerTypeCards[i]
				return []any{r.Tag, string(r.Type), r.CardID, string(r.Variant), r.Uses, r.Wins}
			}},
	}

	for _, st := range steps {
		if st.n == 0 {
			continue
		}
		if err := db.insertRows(ctx, tx, st.query, st.n, st.args); err != nil {
			return fmt.Errorf("insert %s: %w", st.table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (db *DB) truncateSnapshot(ctx context.Context, tx *sql.Tx) error {
	if db.dialect == Postgres {
		q := "TRUNCATE TABLE " + strings.Join(SnapshotTables, ", ") + " RESTART IDENTITY CASCADE"
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("truncate snapshot: %w", err)
		}
		return nil
	}
	for _, t := range SnapshotTables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+t); err != nil {
			return fmt.Errorf("clear %s: %w", t, err)
		}
	}
	return nil
}

func (db *DB) insertRows(ctx context.Context, tx *sql.Tx, query string, n int, args func(i int) []any) error {
	stmt, err := tx.PrepareContext(ctx, db.rebind(query))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return err
		}
	}
	return nil
}

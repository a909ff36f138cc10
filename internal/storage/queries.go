package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pable/go-cr-meta/internal/model"
)

// TypeStat is one row of meta_deck_types.
type TypeStat struct {
	Type model.DeckType `json:"deck_type"`
	model.Counter
}

// DeckStat is a deck with its usage counters in some scope (meta or player).
type DeckStat struct {
	Hash string         `json:"deck_hash"`
	Type model.DeckType `json:"deck_type"`
	model.Counter
}

// DeckCard is one member of a stored deck with its display name.
type DeckCard struct {
	CardID  int64         `json:"card_id"`
	Name    string        `json:"card_name"`
	Variant model.Variant `json:"card_variant"`
	Slot    int           `json:"slot"`
}

// CardStat is a card's usage counters within one archetype.
type CardStat struct {
	Type    model.DeckType `json:"deck_type"`
	CardID  int64          `json:"card_id"`
	Name    string         `json:"card_name"`
	Variant model.Variant  `json:"card_variant"`
	model.Counter
}

// DeckQuery filters TopDecks. Zero values mean no filter; Limit 0 means all.
type DeckQuery struct {
	Type    model.DeckType
	MinUses int
	Limit   int
}

// MetaDeckTypes returns the archetype counters, most used first.
func (db *DB) MetaDeckTypes(ctx context.Context) ([]TypeStat, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT deck_type, uses, wins FROM meta_deck_types ORDER BY uses DESC, deck_type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TypeStat
	for rows.Next() {
		var s TypeStat
		if err := rows.Scan(&s.Type, &s.Uses, &s.Wins); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// TopDecks returns decks from meta_type_deck_ids, most used first.
func (db *DB) TopDecks(ctx context.Context, q DeckQuery) ([]DeckStat, error) {
	query := `SELECT deck_hash, deck_type, uses, wins FROM meta_type_deck_ids WHERE uses >= ?`
	args := []any{q.MinUses}
	if q.Type != "" {
		query += ` AND deck_type = ?`
		args = append(args, string(q.Type))
	}
	query += ` ORDER BY uses DESC, wins DESC, deck_hash`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}
	return db.queryDeckStats(ctx, query, args...)
}

// GetDeckByPrefix finds the first deck whose hash starts with prefix. It
// returns nil when none matches.
func (db *DB) GetDeckByPrefix(ctx context.Context, prefix string) (*DeckStat, error) {
	var s DeckStat
	err := db.conn.QueryRowContext(ctx, db.rebind(`
		SELECT d.deck_hash, d.deck_type, COALESCE(m.uses, 0), COALESCE(m.wins, 0)
		FROM decks d
		LEFT JOIN meta_type_deck_ids m ON m.deck_hash = d.deck_hash AND m.deck_type = d.deck_type
		WHERE d.deck_hash LIKE ? ESCAPE '\'
		ORDER BY d.deck_hash LIMIT 1`), likePrefix(prefix)).
		Scan(&s.Hash, &s.Type, &s.Uses, &s.Wins)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// likePrefix builds a LIKE pattern matching values that start with prefix
// literally.
func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}

// DeckCards returns the members of a deck in slot order.
func (db *DB) DeckCards(ctx context.Context, hash string) ([]DeckCard, error) {
	rows, err := db.conn.QueryContext(ctx, db.rebind(`
		SELECT dc.card_id, COALESCE(c.card_name, ''), dc.card_variant, dc.slot
		FROM deck_cards dc
		LEFT JOIN cards c ON c.card_id = dc.card_id
		WHERE dc.deck_hash = ?
		ORDER BY dc.slot`), hash)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DeckCard
	for rows.Next() {
		var c DeckCard
		if err := rows.Scan(&c.CardID, &c.Name, &c.Variant, &c.Slot); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// TypeCards returns card counters for one archetype, most used first.
func (db *DB) TypeCards(ctx context.Context, dt model.DeckType, limit int) ([]CardStat, error) {
	query := `
		SELECT m.deck_type, m.card_id, COALESCE(c.card_name, ''), m.card_variant, m.uses, m.wins
		FROM meta_type_cards m
		LEFT JOIN cards c ON c.card_id = m.card_id
		WHERE m.deck_type = ?
		ORDER BY m.uses DESC, m.card_id, m.card_variant`
	args := []any{string(dt)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return db.queryCardStats(ctx, query, args...)
}

// ListPlayers returns the stored top players in rank order.
func (db *DB) ListPlayers(ctx context.Context) ([]model.Player, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT player_tag, player_name, trophies, rank_global FROM player ORDER BY rank_global, player_tag`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Player
	for rows.Next() {
		var p model.Player
		if err := rows.Scan(&p.Tag, &p.Name, &p.Trophies, &p.Rank); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetPlayer returns one stored player, or nil when the tag is unknown.
func (db *DB) GetPlayer(ctx context.Context, tag string) (*model.Player, error) {
	var p model.Player
	err := db.conn.QueryRowContext(ctx, db.rebind(
		`SELECT player_tag, player_name, trophies, rank_global FROM player WHERE player_tag = ?`), tag).
		Scan(&p.Tag, &p.Name, &p.Trophies, &p.Rank)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// PlayerDecks returns a top player's decks, most used first.
func (db *DB) PlayerDecks(ctx context.Context, tag string) ([]DeckStat, error) {
	return db.queryDeckStats(ctx, `
		SELECT pd.deck_hash, d.deck_type, pd.uses, pd.wins
		FROM player_decks pd
		JOIN decks d ON d.deck_hash = pd.deck_hash
		WHERE pd.player_tag = ?
		ORDER BY pd.uses DESC, pd.wins DESC, pd.deck_hash`, tag)
}

// PlayerTypeCards returns a top player's per-archetype card counters.
func (db *DB) PlayerTypeCards(ctx context.Context, tag string) ([]CardStat, error) {
	return db.queryCardStats(ctx, `
		SELECT p.deck_type, p.card_id, COALESCE(c.card_name, ''), p.card_variant, p.uses, p.wins
		FROM player_type_cards p
		LEFT JOIN cards c ON c.card_id = p.card_id
		WHERE p.player_tag = ?
		ORDER BY p.deck_type, p.uses DESC, p.card_id, p.card_variant`, tag)
}

func (db *DB) queryDeckStats(ctx context.Context, query string, args ...any) ([]DeckStat, error) {
	rows, err := db.conn.QueryContext(ctx, db.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DeckStat
	for rows.Next() {
		var s DeckStat
		if err := rows.Scan(&s.Hash, &s.Type, &s.Uses, &s.Wins); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (db *DB) queryCardStats(ctx context.Context, query string, args ...any) ([]CardStat, error) {
	rows, err := db.conn.QueryContext(ctx, db.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CardStat
	for rows.Next() {
		var s CardStat
		if err := rows.Scan(&s.Type, &s.CardID, &s.Name, &s.Variant, &s.Uses, &s.Wins); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// TableCount is the row count of one table.
type TableCount struct {
	Table string `json:"table"`
	Rows  int    `json:"rows"`
}

// Overview is a post-load health summary of the store.
type Overview struct {
	Tables []TableCount `json:"tables"`
	// Decks whose stored card count is not 8.
	MalformedDecks []string `json:"malformed_decks"`
	Overrides      int      `json:"overrides"`
}

// GetDBOverview counts rows per snapshot table and runs the deck size check.
func (db *DB) GetDBOverview(ctx context.Context) (*Overview, error) {
	ov := &Overview{}
	for i := len(SnapshotTables) - 1; i >= 0; i-- {
		t := SnapshotTables[i]
		var n int
		if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", t, err)
		}
		ov.Tables = append(ov.Tables, TableCount{Table: t, Rows: n})
	}
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM deck_type_overrides").Scan(&ov.Overrides); err != nil {
		return nil, fmt.Errorf("count overrides: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT d.deck_hash FROM decks d
		LEFT JOIN deck_cards dc ON dc.deck_hash = d.deck_hash
		GROUP BY d.deck_hash
		HAVING COUNT(dc.card_id) <> 8
		ORDER BY d.deck_hash`)
	if err != nil {
		return nil, fmt.Errorf("deck size check: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		ov.MalformedDecks = append(ov.MalformedDecks, h)
	}
	return ov, rows.Err()
}

// QueryRaw runs an arbitrary query and returns column names and stringified rows.
func (db *DB) QueryRaw(ctx context.Context, query string) ([]string, [][]string, error) {
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}
	var out [][]string
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		row := make([]string, len(cols))
		for i, v := range vals {
			switch v := v.(type) {
			case nil:
				row[i] = "NULL"
			case []byte:
				row[i] = string(v)
			default:
				row[i] = fmt.Sprint(v)
			}
		}
		out = append(out, row)
	}
	return cols, out, rows.Err()
}

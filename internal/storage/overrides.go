package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/pable/go-cr-meta/internal/model"
)

// Override is a manually curated archetype for one deck hash.
type Override struct {
	Hash      string         `json:"deck_hash"`
	Type      model.DeckType `json:"deck_type"`
	Note      string         `json:"note,omitempty"`
	UpdatedAt string         `json:"updated_at,omitempty"`
}

// LoadOverrides returns the override table as hash -> deck type. A row with
// a label outside the known archetypes is an error.
func (db *DB) LoadOverrides(ctx context.Context) (map[string]model.DeckType, error) {
	list, err := db.ListOverrides(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]model.DeckType, len(list))
	for _, o := range list {
		dt, ok := model.ParseDeckType(string(o.Type))
		if !ok {
			return nil, fmt.Errorf("override %s: unknown deck type %q", o.Hash, o.Type)
		}
		out[o.Hash] = dt
	}
	return out, nil
}

// ListOverrides returns every override ordered by hash.
func (db *DB) ListOverrides(ctx context.Context) ([]Override, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT deck_hash, deck_type, note, updated_at FROM deck_type_overrides ORDER BY deck_hash`)
	if err != nil {
		return nil, fmt.Errorf("query overrides: %w", err)
	}
	defer rows.Close()

	var out []Override
	for rows.Next() {
		var o Override
		if err := rows.Scan(&o.Hash, &o.Type, &o.Note, &o.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// SetOverride creates or replaces the override for hash.
func (db *DB) SetOverride(ctx context.Context, hash string, dt model.DeckType, note string) error {
	_, err := db.conn.ExecContext(ctx, db.rebind(`
		INSERT INTO deck_type_overrides(deck_hash, deck_type, note, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (deck_hash) DO UPDATE SET
			deck_type = excluded.deck_type,
			note = excluded.note,
			updated_at = excluded.updated_at`),
		hash, string(dt), note, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("set override: %w", err)
	}
	return nil
}

// DeleteOverride removes the override for hash and reports whether one existed.
func (db *DB) DeleteOverride(ctx context.Context, hash string) (bool, error) {
	res, err := db.conn.ExecContext(ctx, db.rebind(`DELETE FROM deck_type_overrides WHERE deck_hash = ?`), hash)
	if err != nil {
		return false, fmt.Errorf("delete override: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

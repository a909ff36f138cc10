// Package cards holds the read-only card reference data: display names,
// elixir costs and the archetype flags the classifier counts.
package cards

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed cards.yaml
var defaultCatalog []byte

// Card is one reference entry. Elixir is nil for cards without a fixed cost.
type Card struct {
	ID                int64    `yaml:"id" json:"id"`
	Name              string   `yaml:"name" json:"name"`
	Elixir            *float64 `yaml:"elixir" json:"elixir"`
	IsBaitPiece       bool     `yaml:"is_bait_piece" json:"is_bait_piece"`
	IsBridgeSpamPiece bool     `yaml:"is_bridge_spam_piece" json:"is_bridge_spam_piece"`
	IsBigTank         bool     `yaml:"is_big_tank" json:"is_big_tank"`
}

// Catalog indexes cards by id and by display name.
type Catalog struct {
	byID   map[int64]Card
	byName map[string]Card
}

// New builds a catalog from a card list. Later entries win on duplicate ids or names.
func New(list []Card) *Catalog {
	c := &Catalog{
		byID:   make(map[int64]Card, len(list)),
		byName: make(map[string]Card, len(list)),
	}
	for _, card := range list {
		card.Name = strings.TrimSpace(card.Name)
		c.byID[card.ID] = card
		if card.Name != "" {
			c.byName[card.Name] = card
		}
	}
	return c
}

// Parse decodes a YAML (or JSON) list of cards.
func Parse(data []byte) (*Catalog, error) {
	var list []Card
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decode card metadata: %w", err)
	}
	return New(list), nil
}

// Load reads the catalog at path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Parse(defaultCatalog)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read card metadata: %w", err)
	}
	return Parse(data)
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(err)
	}
	return c
}

// NameByID resolves a card's display name.
func (c *Catalog) NameByID(id int64) (string, bool) {
	card, ok := c.byID[id]
	if !ok || card.Name == "" {
		return "", false
	}
	return card.Name, true
}

// ByName returns the metadata for a display name.
func (c *Catalog) ByName(name string) (Card, bool) {
	card, ok := c.byName[name]
	return card, ok
}

// Len returns the number of cards indexed by id.
func (c *Catalog) Len() int {
	return len(c.byID)
}

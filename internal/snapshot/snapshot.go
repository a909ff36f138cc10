// Package snapshot turns one run's aggregates into the row sets written to
// the store, in foreign-key order, and checks them before any write.
package snapshot

import (
	"errors"
	"fmt"
	"sort"

	"github.com/pable/go-cr-meta/internal/aggregator"
	"github.com/pable/go-cr-meta/internal/model"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid snapshot")

// CardRow is one entry of the card dimension.
type CardRow struct {
	CardID int64
	Name   string
}

// DeckRow is one entry of the deck dimension.
type DeckRow struct {
	Hash string
	Type model.DeckType
}

// DeckCardRow is one member of a deck.
type DeckCardRow struct {
	Hash    string
	CardID  int64
	Variant model.Variant
	Slot    int
}

// MetaTypeRow counts uses of one archetype across all participants.
type MetaTypeRow struct {
	Type model.DeckType
	model.Counter
}

// MetaTypeDeckRow counts uses of one deck under its archetype.
type MetaTypeDeckRow struct {
	Type model.DeckType
	Hash string
	model.Counter
}

// MetaTypeCardRow counts uses of one card in decks of an archetype.
type MetaTypeCardRow struct {
	Type    model.DeckType
	CardID  int64
	Variant model.Variant
	model.Counter
}

// PlayerDeckRow counts a top player's uses of one deck.
type PlayerDeckRow struct {
	Tag  string
	Hash string
	model.Counter
}

// PlayerTypeCardRow counts a top player's uses of one card per archetype.
type PlayerTypeCardRow struct {
	Tag     string
	Type    model.DeckType
	CardID  int64
	Variant model.Variant
	model.Counter
}

// Snapshot is the complete content of the snapshot tables for one run.
// Fields are in write order.
type Snapshot struct {
	DeckTypes       []model.DeckType
	Cards           []CardRow
	Players         []model.Player
	Decks           []DeckRow
	DeckCards       []DeckCardRow
	MetaTypes       []MetaTypeRow
	MetaTypeDecks   []MetaTypeDeckRow
	MetaTypeCards   []MetaTypeCardRow
	PlayerDecks     []PlayerDeckRow
	PlayerTypeCards []PlayerTypeCardRow
}

// Assemble builds the row sets from the top players and the run's
// aggregates. Every archetype label is included so override rows and later
// runs always find their label. Rows are sorted by key.
func Assemble(players []model.Player, agg *aggregator.Aggregator) *Snapshot {
	s := &Snapshot{}

	types := make(map[model.DeckType]struct{}, len(model.DeckTypes))
	for _, dt := range model.DeckTypes {
		types[dt] = struct{}{}
	}
	for _, d := range agg.Decks() {
		types[d.Type] = struct{}{}
	}
	for dt := range types {
		s.DeckTypes = append(s.DeckTypes, dt)
	}
	sort.Slice(s.DeckTypes, func(i, j int) bool { return s.DeckTypes[i] < s.DeckTypes[j] })

	for id, name := range agg.CardNames() {
		s.Cards = append(s.Cards, CardRow{CardID: id, Name: name})
	}
	sort.Slice(s.Cards, func(i, j int) bool { return s.Cards[i].CardID < s.Cards[j].CardID })

	s.Players = append(s.Players, players...)
	sort.SliceStable(s.Players, func(i, j int) bool { return s.Players[i].Rank < s.Players[j].Rank })

	for hash, d := range agg.Decks() {
		s.Decks = append(s.Decks, DeckRow{Hash: hash, Type: d.Type})
		for _, c := range d.Cards {
			s.DeckCards = append(s.DeckCards, DeckCardRow{Hash: hash, CardID: c.CardID, Variant: c.Variant, Slot: c.Slot})
		}
	}
	sort.Slice(s.Decks, func(i, j int) bool { return s.Decks[i].Hash < s.Decks[j].Hash })
	sort.Slice(s.DeckCards, func(i, j int) bool {
		a, b := s.DeckCards[i], s.DeckCards[j]
		if a.Hash != b.Hash {
			return a.Hash < b.Hash
		}
		return a.Slot < b.Slot
	})

	for dt, c := range agg.MetaTypes() {
		s.MetaTypes = append(s.MetaTypes, MetaTypeRow{Type: dt, Counter: c})
	}
	sort.Slice(s.MetaTypes, func(i, j int) bool { return s.MetaTypes[i].Type < s.MetaTypes[j].Type })

	for k, c := range agg.MetaTypeDecks() {
		s.MetaTypeDecks = append(s.MetaTypeDecks, MetaTypeDeckRow{Type: k.Type, Hash: k.Hash, Counter: c})
	}
	sort.Slice(s.MetaTypeDecks, func(i, j int) bool {
		a, b := s.MetaTypeDecks[i], s.MetaTypeDecks[j]
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.Hash < b.Hash
	})

	for k, c := range agg.MetaTypeCards() {
		s.MetaTypeCards = append(s.MetaTypeCards, MetaTypeCardRow{Type: k.Type, CardID: k.CardID, Variant: k.Variant, Counter: c})
	}
	sort.Slice(s.MetaTypeCards, func(i, j int) bool {
		a, b := s.MetaTypeCards[i], s.MetaTypeCards[j]
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.CardID != b.CardID {
			return a.CardID < b.CardID
		}
		return a.Variant < b.Variant
	})

	for k, c := range agg.PlayerDecks() {
		s.PlayerDecks = append(s.PlayerDecks, PlayerDeckRow{Tag: k.Tag, Hash: k.Hash, Counter: c})
	}
	sort.Slice(s.PlayerDecks, func(i, j int) bool {
		a, b := s.PlayerDecks[i], s.PlayerDecks[j]
		if a.Tag != b.Tag {
			return a.Tag < b.Tag
		}
		return a.Hash < b.Hash
	})

	for k, c := range agg.PlayerTypeCards() {
		s.PlayerTypeCards = append(s.PlayerTypeCards, PlayerTypeCardRow{
			Tag: k.Tag, Type: k.Type, CardID: k.CardID, Variant: k.Variant, Counter: c,
		})
	}
	sort.Slice(s.PlayerTypeCards, func(i, j int) bool {
		a, b := s.PlayerTypeCards[i], s.PlayerTypeCards[j]
		if a.Tag != b.Tag {
			return a.Tag < b.Tag
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.CardID != b.CardID {
			return a.CardID < b.CardID
		}
		return a.Variant < b.Variant
	})

	return s
}

// Validate checks referential integrity and the wins <= uses invariant.
// It stops at the first violation.
func (s *Snapshot) Validate() error {
	types := make(map[model.DeckType]struct{}, len(s.DeckTypes))
	for _, dt := range s.DeckTypes {
		types[dt] = struct{}{}
	}
	cards := make(map[int64]struct{}, len(s.Cards))
	for _, c := range s.Cards {
		cards[c.CardID] = struct{}{}
	}
	players := make(map[string]struct{}, len(s.Players))
	for _, p := range s.Players {
		players[p.Tag] = struct{}{}
	}
	decks := make(map[string]struct{}, len(s.Decks))

	needType := func(table string, dt model.DeckType) error {
		if _, ok := types[dt]; !ok {
			return fmt.Errorf("%w: %s references unknown deck type %q", ErrInvalid, table, dt)
		}
		return nil
	}
	needCard := func(table string, id int64) error {
		if _, ok := cards[id]; !ok {
			return fmt.Errorf("%w: %s references unknown card %d", ErrInvalid, table, id)
		}
		return nil
	}
	needDeck := func(table, hash string) error {
		if _, ok := decks[hash]; !ok {
			return fmt.Errorf("%w: %s references unknown deck %s", ErrInvalid, table, hash)
		}
		return nil
	}
	needPlayer := func(table, tag string) error {
		if _, ok := players[tag]; !ok {
			return fmt.Errorf("%w: %s references unknown player %s", ErrInvalid, table, tag)
		}
		return nil
	}
	checkCounter := func(table string, c model.Counter) error {
		if c.Wins > c.Uses || c.Wins < 0 {
			return fmt.Errorf("%w: %s has %d wins for %d uses", ErrInvalid, table, c.Wins, c.Uses)
		}
		return nil
	}

	for _, d := range s.Decks {
		if err := needType("decks", d.Type); err != nil {
			return err
		}
		decks[d.Hash] = struct{}{}
	}
	for _, dc := range s.DeckCards {
		if err := needDeck("deck_cards", dc.Hash); err != nil {
			return err
		}
		if err := needCard("deck_cards", dc.CardID); err != nil {
			return err
		}
	}
	for _, r := range s.MetaTypes {
		if err := needType("meta_deck_types", r.Type); err != nil {
			return err
		}
		if err := checkCounter("meta_deck_types", r.Counter); err != nil {
			return err
		}
	}
	for _, r := range s.MetaTypeDecks {
		if err := needType("meta_type_deck_ids", r.Type); err != nil {
			return err
		}
		if err := needDeck("meta_type_deck_ids", r.Hash); err != nil {
			return err
		}
		if err := checkCounter("meta_type_deck_ids", r.Counter); err != nil {
			return err
		}
	}
	for _, r := range s.MetaTypeCards {
		if err := needType("meta_type_cards", r.Type); err != nil {
			return err
		}
		if err := needCard("meta_type_cards", r.CardID); err != nil {
			return err
		}
		if err := checkCounter("meta_type_cards", r.Counter); err != nil {
			return err
		}
	}
	for _, r := range s.PlayerDecks {
		if err := needPlayer("player_decks", r.Tag); err != nil {
			return err
		}
		if err := needDeck("player_decks", r.Hash); err != nil {
			return err
		}
		if err := checkCounter("player_decks", r.Counter); err != nil {
			return err
		}
	}
	for _, r := range s.PlayerTypeCards {
		if err := needPlayer("player_type_cards", r.Tag); err != nil {
			return err
		}
		if err := needType("player_type_cards", r.Type); err != nil {
			return err
		}
		if err := needCard("player_type_cards", r.CardID); err != nil {
			return err
		}
		if err := checkCounter("player_type_cards", r.Counter); err != nil {
			return err
		}
	}
	return nil
}

// Counts returns the row count of each table, keyed by table name.
func (s *Snapshot) Counts() map[string]int {
	return map[string]int{
		"deck_types":         len(s.DeckTypes),
		"cards":              len(s.Cards),
		"player":             len(s.Players),
		"decks":              len(s.Decks),
		"deck_cards":         len(s.DeckCards),
		"meta_deck_types":    len(s.MetaTypes),
		"meta_type_deck_ids": len(s.MetaTypeDecks),
		"meta_type_cards":    len(s.MetaTypeCards),
		"player_decks":       len(s.PlayerDecks),
		"player_type_cards":  len(s.PlayerTypeCards),
	}
}

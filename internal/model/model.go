package model

import (
	"strconv"
	"strings"
)

// Variant is the upgrade tier a card was played at. Two copies of the same
// card at different variants are different deck members.
type Variant string

const (
	VariantNormal Variant = "normal"
	VariantEvo    Variant = "evo"
	VariantHero   Variant = "hero"
)

// VariantFromEvolutionLevel maps the battle log's evolutionLevel field to a Variant.
func VariantFromEvolutionLevel(level int) Variant {
	switch level {
	case 1:
		return VariantEvo
	case 2:
		return VariantHero
	default:
		return VariantNormal
	}
}

// DeckType is an archetype label.
type DeckType string

const (
	DeckTypeSiege      DeckType = "Siege"
	DeckTypeBait       DeckType = "Bait"
	DeckTypeCycle      DeckType = "Cycle"
	DeckTypeBridgeSpam DeckType = "Bridge Spam"
	DeckTypeBeatdown   DeckType = "Beatdown"
	DeckTypeHybrid     DeckType = "Hybrid"
)

// DeckTypes lists every archetype label in cascade order.
var DeckTypes = []DeckType{
	DeckTypeSiege, DeckTypeBait, DeckTypeCycle,
	DeckTypeBridgeSpam, DeckTypeBeatdown, DeckTypeHybrid,
}

// ParseDeckType matches s case-insensitively against the known labels.
func ParseDeckType(s string) (DeckType, bool) {
	s = strings.TrimSpace(s)
	for _, dt := range DeckTypes {
		if strings.EqualFold(string(dt), s) {
			return dt, true
		}
	}
	return "", false
}

// ---- Raw battle log records as returned by the game API ----

// RawGameMode identifies the mode a battle was played in.
type RawGameMode struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// RawCard is one card entry of a participant's deck.
type RawCard struct {
	ID             *int64 `json:"id,omitempty"` // nil when the record omits it
	Name           string `json:"name,omitempty"`
	Level          int    `json:"level,omitempty"`
	EvolutionLevel int    `json:"evolutionLevel,omitempty"`
}

// RawParticipant is one entrant on a battle side.
type RawParticipant struct {
	Tag    string    `json:"tag"`
	Name   string    `json:"name,omitempty"`
	Crowns int       `json:"crowns"`
	Cards  []RawCard `json:"cards,omitempty"`
}

// RawBattle is one battle log entry. The same match appears in both players'
// logs with Team and Opponent swapped.
type RawBattle struct {
	Type       string           `json:"type,omitempty"`
	BattleTime string           `json:"battleTime,omitempty"`
	GameMode   RawGameMode      `json:"gameMode"`
	Team       []RawParticipant `json:"team"`
	Opponent   []RawParticipant `json:"opponent"`
}

// ModeKey returns the mode identifier used for match identity: the mode id
// when set, else the mode name, else the battle type.
func (b *RawBattle) ModeKey() string {
	if b.GameMode.ID != 0 {
		return strconv.FormatInt(b.GameMode.ID, 10)
	}
	if b.GameMode.Name != "" {
		return b.GameMode.Name
	}
	return b.Type
}

// ---- Pipeline values ----

// Player is a ranked player from the leaderboard.
type Player struct {
	Tag      string `json:"tag"`
	Name     string `json:"name"`
	Trophies int    `json:"trophies"`
	Rank     int    `json:"rank"`
}

// CardObservation is one validated card of a participant's deck.
type CardObservation struct {
	CardID   int64
	CardName string
	Variant  Variant
	Slot     int // 1..8, informational only
}

// Deck is a hashed, classified set of 8 card observations.
type Deck struct {
	Hash  string
	Type  DeckType
	Cards []CardObservation
}

// Names returns the display names of the deck's cards in slot order.
func (d *Deck) Names() []string {
	out := make([]string, len(d.Cards))
	for i, c := range d.Cards {
		out[i] = c.CardName
	}
	return out
}

// Counter accumulates uses and wins. Wins never exceeds Uses.
type Counter struct {
	Uses int `json:"uses"`
	Wins int `json:"wins"`
}

// Add records one use, and one win if won.
func (c *Counter) Add(won bool) {
	c.Uses++
	if won {
		c.Wins++
	}
}

// Merge adds another counter's totals.
func (c *Counter) Merge(o Counter) {
	c.Uses += o.Uses
	c.Wins += o.Wins
}

// WinRate returns wins/uses as a percentage.
func (c *Counter) WinRate() float64 {
	if c.Uses == 0 {
		return 0
	}
	return 100.0 * float64(c.Wins) / float64(c.Uses)
}

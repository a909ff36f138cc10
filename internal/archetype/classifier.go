// Package archetype assigns one of the six deck types to an 8-card deck with
// an ordered rule cascade over precomputed deck statistics.
package archetype

import (
	"sort"

	"github.com/pable/go-cr-meta/internal/cards"
	"github.com/pable/go-cr-meta/internal/model"
)

// Siege win conditions. Either one alone makes a deck Siege.
const (
	RangedSiegeCard = "X-Bow"
	AreaSiegeCard   = "Mortar"
)

// Rule thresholds.
const (
	minBaitPieces       = 3
	maxCycleCost        = 9.0
	minBridgeSpamPieces = 2
	minBigTanks         = 1
	minBeatdownElixir   = 3.5

	deckSize = 8.0

	// Used when no card in the deck has a known cost. The cycle fallback sits
	// above maxCycleCost, so an all-unknown deck never lands in Cycle.
	fallbackAvgElixir  = 3.0
	fallbackCycleCost  = 12.0
	fourCardCycleCards = 4
)

// Metadata resolves card reference data by display name.
type Metadata interface {
	ByName(name string) (cards.Card, bool)
}

// Stats are the derived deck values the cascade looks at.
type Stats struct {
	AvgElixir        float64
	FourCardCycle    float64
	HasRangedSiege   bool
	HasAreaSiege     bool
	BaitPieces       int
	BridgeSpamPieces int
	BigTanks         int
	KnownCards       int
}

// ComputeStats derives Stats from card names. Empty names are unknown cards.
func ComputeStats(names []string, meta Metadata) Stats {
	var s Stats
	var elixirs []float64
	for _, name := range names {
		if name == "" {
			continue
		}
		s.KnownCards++
		switch name {
		case RangedSiegeCard:
			s.HasRangedSiege = true
		case AreaSiegeCard:
			s.HasAreaSiege = true
		}
		card, ok := meta.ByName(name)
		if !ok {
			continue
		}
		if card.Elixir != nil {
			elixirs = append(elixirs, *card.Elixir)
		}
		if card.IsBaitPiece {
			s.BaitPieces++
		}
		if card.IsBridgeSpamPiece {
			s.BridgeSpamPieces++
		}
		if card.IsBigTank {
			s.BigTanks++
		}
	}

	if len(elixirs) == 0 {
		s.AvgElixir = fallbackAvgElixir
		s.FourCardCycle = fallbackCycleCost
		return s
	}

	var total float64
	for _, e := range elixirs {
		total += e
	}
	s.AvgElixir = total / deckSize

	sort.Float64s(elixirs)
	n := min(fourCardCycleCards, len(elixirs))
	for _, e := range elixirs[:n] {
		s.FourCardCycle += e
	}
	return s
}

// ClassifyStats runs the cascade. First matching rule wins.
func ClassifyStats(s Stats) model.DeckType {
	switch {
	case s.KnownCards == 0:
		return model.DeckTypeHybrid
	case s.HasRangedSiege:
		return model.DeckTypeSiege
	case s.HasAreaSiege:
		return model.DeckTypeSiege
	case s.BaitPieces >= minBaitPieces:
		return model.DeckTypeBait
	case s.FourCardCycle <= maxCycleCost:
		return model.DeckTypeCycle
	case s.BridgeSpamPieces >= minBridgeSpamPieces:
		return model.DeckTypeBridgeSpam
	case s.BigTanks >= minBigTanks && s.AvgElixir >= minBeatdownElixir:
		return model.DeckTypeBeatdown
	default:
		return model.DeckTypeHybrid
	}
}

// Classify labels a deck from its card names.
func Classify(names []string, meta Metadata) model.DeckType {
	return ClassifyStats(ComputeStats(names, meta))
}

// Classifier labels decks, preferring a curated override for the deck hash.
type Classifier struct {
	meta      Metadata
	overrides map[string]model.DeckType
}

// NewClassifier returns a classifier. overrides may be nil.
func NewClassifier(meta Metadata, overrides map[string]model.DeckType) *Classifier {
	return &Classifier{meta: meta, overrides: overrides}
}

// DeckType returns the override for hash if one exists, else the cascade result.
func (c *Classifier) DeckType(hash string, names []string) model.DeckType {
	if dt, ok := c.overrides[hash]; ok && dt != "" {
		return dt
	}
	return Classify(names, c.meta)
}

// Overridden reports whether hash has a curated label.
func (c *Classifier) Overridden(hash string) bool {
	_, ok := c.overrides[hash]
	return ok
}

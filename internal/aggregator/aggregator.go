package aggregator

import (
	"github.com/pable/go-cr-meta/internal/model"
)

// TypeDeckKey keys meta-by-type-and-deck counters.
type TypeDeckKey struct {
	Type model.DeckType
	Hash string
}

// TypeCardKey keys meta-by-type-and-card counters.
type TypeCardKey struct {
	Type    model.DeckType
	CardID  int64
	Variant model.Variant
}

// PlayerDeckKey keys player-by-deck counters.
type PlayerDeckKey struct {
	Tag  string
	Hash string
}

// PlayerTypeCardKey keys the derived player-by-type-and-card counters.
type PlayerTypeCardKey struct {
	Tag     string
	Type    model.DeckType
	CardID  int64
	Variant model.Variant
}

// Aggregator accumulates one run's counters. It is not safe for concurrent use.
type Aggregator struct {
	cohort map[string]struct{}

	decks     map[string]model.Deck
	cardNames map[int64]string

	metaTypes     map[model.DeckType]model.Counter
	metaTypeDecks map[TypeDeckKey]model.Counter
	metaTypeCards map[TypeCardKey]model.Counter
	playerDecks   map[PlayerDeckKey]model.Counter
}

// New returns an empty aggregator. Player-level counters are kept only for
// tags in cohort; tags must already be normalized.
func New(cohort []string) *Aggregator {
	a := &Aggregator{
		cohort:        make(map[string]struct{}, len(cohort)),
		decks:         make(map[string]model.Deck),
		cardNames:     make(map[int64]string),
		metaTypes:     make(map[model.DeckType]model.Counter),
		metaTypeDecks: make(map[TypeDeckKey]model.Counter),
		metaTypeCards: make(map[TypeCardKey]model.Counter),
		playerDecks:   make(map[PlayerDeckKey]model.Counter),
	}
	for _, tag := range cohort {
		a.cohort[tag] = struct{}{}
	}
	return a
}

// InCohort reports whether tag is one of the top players.
func (a *Aggregator) InCohort(tag string) bool {
	_, ok := a.cohort[tag]
	return ok
}

// Observe folds one (participant, deck, outcome) triple into the counters.
// The first observation of a deck hash fixes its type and cards for the run.
func (a *Aggregator) Observe(tag string, d model.Deck, won bool) {
	if prev, ok := a.decks[d.Hash]; ok {
		d.Type = prev.Type
	} else {
		cardsCopy := make([]model.CardObservation, len(d.Cards))
		copy(cardsCopy, d.Cards)
		a.decks[d.Hash] = model.Deck{Hash: d.Hash, Type: d.Type, Cards: cardsCopy}
	}

	for _, c := range d.Cards {
		if c.CardName != "" {
			a.cardNames[c.CardID] = c.CardName
		} else if _, ok := a.cardNames[c.CardID]; !ok {
			a.cardNames[c.CardID] = ""
		}
	}

	bump(a.metaTypes, d.Type, won)
	bump(a.metaTypeDecks, TypeDeckKey{Type: d.Type, Hash: d.Hash}, won)
	for _, c := range d.Cards {
		bump(a.metaTypeCards, TypeCardKey{Type: d.Type, CardID: c.CardID, Variant: c.Variant}, won)
	}

	if a.InCohort(tag) {
		bump(a.playerDecks, PlayerDeckKey{Tag: tag, Hash: d.Hash}, won)
	}
}

func bump[K comparable](m map[K]model.Counter, k K, won bool) {
	c := m[k]
	c.Add(won)
	m[k] = c
}

// PlayerTypeCards derives player-by-type-and-card counters: each (player,
// deck) counter is added in full to every one of the deck's cards under the
// deck's type.
func (a *Aggregator) PlayerTypeCards() map[PlayerTypeCardKey]model.Counter {
	out := make(map[PlayerTypeCardKey]model.Counter)
	for pk, counter := range a.playerDecks {
		d, ok := a.decks[pk.Hash]
		if !ok {
			continue
		}
		for _, c := range d.Cards {
			k := PlayerTypeCardKey{Tag: pk.Tag, Type: d.Type, CardID: c.CardID, Variant: c.Variant}
			total := out[k]
			total.Merge(counter)
			out[k] = total
		}
	}
	return out
}

// Decks returns the deck dimension keyed by hash.
func (a *Aggregator) Decks() map[string]model.Deck { return a.decks }

// CardNames returns the card dimension: id to latest known display name.
func (a *Aggregator) CardNames() map[int64]string { return a.cardNames }

// MetaTypes returns meta-by-type counters.
func (a *Aggregator) MetaTypes() map[model.DeckType]model.Counter { return a.metaTypes }

// MetaTypeDecks returns meta-by-type-and-deck counters.
func (a *Aggregator) MetaTypeDecks() map[TypeDeckKey]model.Counter { return a.metaTypeDecks }

// MetaTypeCards returns meta-by-type-and-card counters.
func (a *Aggregator) MetaTypeCards() map[TypeCardKey]model.Counter { return a.metaTypeCards }

// PlayerDecks returns player-by-deck counters for the cohort.
func (a *Aggregator) PlayerDecks() map[PlayerDeckKey]model.Counter { return a.playerDecks }

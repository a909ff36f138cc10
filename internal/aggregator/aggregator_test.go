package aggregator

import (
	"testing"

	"github.com/pable/go-cr-meta/internal/model"
)

// IDs for test players.
const (
	playerA  = "#AAA"
	playerB  = "#BBB"
	outsider = "#ZZZ"
)

// makeDeck builds a deck of 8 cards with ids base..base+7.
func makeDeck(hash string, dt model.DeckType, base int64) model.Deck {
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

func TestObserve_MetaCounters(t *testing.T) {
	a := New([]string{playerA})
	cycle := makeDeck("h1", model.DeckTypeCycle, 100)

	a.Observe(playerA, cycle, true)
	a.Observe(outsider, cycle, false)

	if got := a.MetaTypes()[model.DeckTypeCycle]; got != (model.Counter{Uses: 2, Wins: 1}) {
		t.Errorf("meta type counter = %+v, want 2 uses / 1 win", got)
	}
	if got := a.MetaTypeDecks()[TypeDeckKey{Type: model.DeckTypeCycle, Hash: "h1"}]; got.Uses != 2 || got.Wins != 1 {
		t.Errorf("meta type-deck counter = %+v", got)
	}
	for _, c := range cycle.Cards {
		k := TypeCardKey{Type: model.DeckTypeCycle, CardID: c.CardID, Variant: c.Variant}
		if got := a.MetaTypeCards()[k]; got.Uses != 2 || got.Wins != 1 {
			t.Errorf("meta type-card counter for %d = %+v", c.CardID, got)
		}
	}
}

func TestObserve_CohortOnlyForPlayerCounters(t *testing.T) {
	a := New([]string{playerA})
	d := makeDeck("h1", model.DeckTypeBait, 100)

	a.Observe(playerA, d, true)
	a.Observe(outsider, d, true)

	if len(a.PlayerDecks()) != 1 {
		t.Fatalf("expected only the cohort player to get a player-deck row, got %d", len(a.PlayerDecks()))
	}
	if _, ok := a.PlayerDecks()[PlayerDeckKey{Tag: outsider, Hash: "h1"}]; ok {
		t.Error("outsider must not get player-level counters")
	}
}

func TestObserve_DrawCountsUseOnly(t *testing.T) {
	a := New(nil)
	d := makeDeck("h1", model.DeckTypeHybrid, 1)
	a.Observe(playerA, d, false)
	got := a.MetaTypes()[model.DeckTypeHybrid]
	if got.Uses != 1 || got.Wins != 0 {
		t.Errorf("expected draw/loss to add a use without a win, got %+v", got)
	}
}

func TestObserve_FirstDeckObservationWins(t *testing.T) {
	a := New(nil)
	first := makeDeck("h1", model.DeckTypeSiege, 1)
	second := makeDeck("h1", model.DeckTypeHybrid, 1)
	second.Cards[0].Slot = 8

	a.Observe(playerA, first, true)
	a.Observe(playerB, second, true)

	d := a.Decks()["h1"]
	if d.Type != model.DeckTypeSiege {
		t.Errorf("deck type = %v, want first-seen Siege", d.Type)
	}
	if d.Cards[0].Slot != 1 {
		t.Errorf("deck cards must not change after first observation, slot = %d", d.Cards[0].Slot)
	}
	if _, ok := a.MetaTypes()[model.DeckTypeHybrid]; ok {
		t.Error("later observations must aggregate under the deck's fixed type")
	}
	if got := a.MetaTypes()[model.DeckTypeSiege].Uses; got != 2 {
		t.Errorf("Siege uses = %d, want 2", got)
	}
}

func TestObserve_CardNames(t *testing.T) {
	a := New(nil)
	d := makeDeck("h1", model.DeckTypeCycle, 1)
	d.Cards[0].CardName = ""
	a.Observe(playerA, d, false)
	if name, ok := a.CardNames()[1]; !ok || name != "" {
		t.Errorf("expected unnamed card recorded with empty name, got %q, %v", name, ok)
	}

	named := makeDeck("h2", model.DeckTypeCycle, 1)
	named.Cards[0].CardName = "Knight"
	a.Observe(playerA, named, false)
	a.Observe(playerA, d, false)
	if got := a.CardNames()[1]; got != "Knight" {
		t.Errorf("expected latest known name to survive an unnamed sighting, got %q", got)
	}
}

func TestCounterInvariant(t *testing.T) {
	a := New([]string{playerA, playerB})
	decks := []model.Deck{
		makeDeck("h1", model.DeckTypeCycle, 1),
		makeDeck("h2", model.DeckTypeBait, 20),
		makeDeck("h3", model.DeckTypeCycle, 40),
	}
	observations := 0
	for i := 0; i < 30; i++ {
		tag := playerA
		if i%3 == 0 {
			tag = playerB
		}
		a.Observe(tag, decks[i%len(decks)], i%2 == 0)
		observations++
	}

	total := 0
	for dt, c := range a.MetaTypes() {
		if c.Wins > c.Uses {
			t.Errorf("%s: wins %d > uses %d", dt, c.Wins, c.Uses)
		}
		total += c.Uses
	}
	if total != observations {
		t.Errorf("meta uses = %d, want one per observation (%d)", total, observations)
	}
	for k, c := range a.PlayerTypeCards() {
		if c.Wins > c.Uses {
			t.Errorf("%+v: wins %d > uses %d", k, c.Wins, c.Uses)
		}
	}
}

func TestPlayerTypeCards_FanOut(t *testing.T) {
	a := New([]string{playerA})
	d1 := makeDeck("h1", model.DeckTypeCycle, 1)
	d2 := makeDeck("h2", model.DeckTypeCycle, 5) // shares cards 5..8 with d1

	a.Observe(playerA, d1, true)
	a.Observe(playerA, d1, false)
	a.Observe(playerA, d2, true)

	ptc := a.PlayerTypeCards()

	// Each card total equals the sum over the player's decks containing it.
	if got := ptc[PlayerTypeCardKey{Tag: playerA, Type: model.DeckTypeCycle, CardID: 1, Variant: model.VariantNormal}]; got != (model.Counter{Uses: 2, Wins: 1}) {
		t.Errorf("card 1 = %+v, want 2/1 from h1 only", got)
	}
	if got := ptc[PlayerTypeCardKey{Tag: playerA, Type: model.DeckTypeCycle, CardID: 5, Variant: model.VariantNormal}]; got != (model.Counter{Uses: 3, Wins: 2}) {
		t.Errorf("card 5 = %+v, want 3/2 from h1 and h2", got)
	}

	// Sum over cards = 8 x sum over the player's decks of that type.
	var cardUses, cardWins, deckUses, deckWins int
	for k, c := range ptc {
		if k.Tag == playerA && k.Type == model.DeckTypeCycle {
			cardUses += c.Uses
			cardWins += c.Wins
		}
	}
	for k, c := range a.PlayerDecks() {
		if k.Tag == playerA && a.Decks()[k.Hash].Type == model.DeckTypeCycle {
			deckUses += c.Uses
			deckWins += c.Wins
		}
	}
	if cardUses != 8*deckUses || cardWins != 8*deckWins {
		t.Errorf("fan-out totals %d/%d, want 8x deck totals %d/%d", cardUses, cardWins, 8*deckUses, 8*deckWins)
	}
}

func TestPlayerTypeCards_EmptyWithoutCohort(t *testing.T) {
	a := New(nil)
	a.Observe(playerA, makeDeck("h1", model.DeckTypeCycle, 1), true)
	if len(a.PlayerTypeCards()) != 0 {
		t.Error("expected no player-type-card rows without a cohort")
	}
}

// Package deck turns a participant's raw card list into a validated 8-card
// deck and computes its order-independent fingerprint.
package deck

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pable/go-cr-meta/internal/model"
)

// Size is the number of cards in a deck.
const Size = 8

// ErrMalformedDeck is returned when a participant's cards cannot form a deck.
var ErrMalformedDeck = errors.New("malformed deck")

// NameResolver looks up a card's display name by id.
type NameResolver interface {
	NameByID(id int64) (string, bool)
}

// Extract validates the first Size cards of p and returns them as observations.
// Any missing card id, short card list, or repeated (card, variant) pair
// rejects the whole participant.
func Extract(p model.RawParticipant, names NameResolver) ([]model.CardObservation, error) {
	if len(p.Cards) < Size {
		return nil, fmt.Errorf("%w: %d cards", ErrMalformedDeck, len(p.Cards))
	}

	out := make([]model.CardObservation, 0, Size)
	for i, c := range p.Cards[:Size] {
		if c.ID == nil {
			return nil, fmt.Errorf("%w: slot %d has no card id", ErrMalformedDeck, i+1)
		}
		name := strings.TrimSpace(c.Name)
		if name == "" && names != nil {
			name, _ = names.NameByID(*c.ID)
		}
		out = append(out, model.CardObservation{
			CardID:   *c.ID,
			CardName: name,
			Variant:  model.VariantFromEvolutionLevel(c.EvolutionLevel),
			Slot:     i + 1,
		})
	}

	seen := make(map[Key]struct{}, Size)
	for _, o := range out {
		seen[KeyOf(o)] = struct{}{}
	}
	if len(seen) != Size {
		return nil, fmt.Errorf("%w: duplicate card and variant", ErrMalformedDeck)
	}
	return out, nil
}

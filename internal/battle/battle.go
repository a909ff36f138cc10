// Package battle filters raw battle log entries to ranked one-on-one matches,
// fingerprints them for deduplication and resolves their outcome.
package battle

import (
	"strings"

	"github.com/pable/go-cr-meta/internal/model"
)

// Game mode ids counted as ranked play.
const (
	ModeLadder    int64 = 72000006
	ModeRanked1v1 int64 = 72000464
)

// DefaultRankedModes is the whitelist used when none is configured.
var DefaultRankedModes = []int64{ModeLadder, ModeRanked1v1}

// Filter accepts battles played in a whitelisted game mode.
type Filter struct {
	modes map[int64]struct{}
}

// NewFilter builds a filter over the given mode ids, or DefaultRankedModes when empty.
func NewFilter(modeIDs []int64) *Filter {
	if len(modeIDs) == 0 {
		modeIDs = DefaultRankedModes
	}
	f := &Filter{modes: make(map[int64]struct{}, len(modeIDs))}
	for _, id := range modeIDs {
		f.modes[id] = struct{}{}
	}
	return f
}

// IsRanked reports whether b was played in a ranked mode.
func (f *Filter) IsRanked(b *model.RawBattle) bool {
	_, ok := f.modes[b.GameMode.ID]
	return ok
}

// IsOneVsOne reports whether each side has exactly one entrant.
func IsOneVsOne(b *model.RawBattle) bool {
	return len(b.Team) == 1 && len(b.Opponent) == 1
}

// NormalizeTag upper-cases a player tag and adds the leading '#'.
func NormalizeTag(tag string) string {
	t := strings.ToUpper(strings.TrimSpace(tag))
	if t != "" && !strings.HasPrefix(t, "#") {
		t = "#" + t
	}
	return t
}

// Outcome is a match result from one side's point of view.
type Outcome int

const (
	Loss Outcome = iota
	Draw
	Win
)

func (o Outcome) String() string {
	switch o {
	case Win:
		return "win"
	case Draw:
		return "draw"
	default:
		return "loss"
	}
}

// OutcomeFor compares crowns. Only strictly more crowns is a win.
func OutcomeFor(ownCrowns, oppCrowns int) Outcome {
	switch {
	case ownCrowns > oppCrowns:
		return Win
	case ownCrowns < oppCrowns:
		return Loss
	default:
		return Draw
	}
}

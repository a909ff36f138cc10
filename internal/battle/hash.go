package battle

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"

	"github.com/pable/go-cr-meta/internal/model"
)

// Field order below is alphabetical so the encoding matches a sorted-keys
// JSON dump of the same payload.
type sideEntry struct {
	Crowns int    `json:"crowns"`
	Tag    string `json:"tag"`
}

type matchPayload struct {
	BattleTime string      `json:"battleTime"`
	Mode       string      `json:"mode"`
	Opponent   []sideEntry `json:"opponent"`
	Team       []sideEntry `json:"team"`
}

func sidePayload(side []model.RawParticipant) []sideEntry {
	out := make([]sideEntry, 0, len(side))
	for _, p := range side {
		out = append(out, sideEntry{Crowns: p.Crowns, Tag: strings.ToUpper(p.Tag)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Tag < out[j].Tag })
	return out
}

// sideLess orders two sorted sides by their (tag, crowns) sequence.
func sideLess(a, b []sideEntry) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i].Tag != b[i].Tag {
			return a[i].Tag < b[i].Tag
		}
		if a[i].Crowns != b[i].Crowns {
			return a[i].Crowns < b[i].Crowns
		}
	}
	return len(a) < len(b)
}

// MatchHash fingerprints a battle from its time, mode and each side's
// tag and crowns. Each side is sorted by tag, and the two sides are placed
// in canonical order, so participant A's log and participant B's log (which
// carry the same match with team and opponent swapped) hash identically.
func MatchHash(b *model.RawBattle) string {
	team, opp := sidePayload(b.Team), sidePayload(b.Opponent)
	if sideLess(opp, team) {
		team, opp = opp, team
	}
	payload := matchPayload{
		BattleTime: b.BattleTime,
		Mode:       b.ModeKey(),
		Opponent:   opp,
		Team:       team,
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Encoding a struct of strings, ints and slices cannot fail.
	_ = enc.Encode(payload)

	sum := sha1.Sum(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
	return hex.EncodeToString(sum[:])
}

// Deduper remembers match hashes for the duration of one run.
type Deduper struct {
	seen map[string]struct{}
}

// NewDeduper returns an empty seen-set.
func NewDeduper() *Deduper {
	return &Deduper{seen: make(map[string]struct{})}
}

// FirstSeen records hash and reports whether it was new.
func (d *Deduper) FirstSeen(hash string) bool {
	if _, ok := d.seen[hash]; ok {
		return false
	}
	d.seen[hash] = struct{}{}
	return true
}

// Len returns the number of distinct hashes seen.
func (d *Deduper) Len() int {
	return len(d.seen)
}

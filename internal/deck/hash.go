package deck

import (
	"crypto/sha1"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"github.com/pable/go-cr-meta/internal/model"
)

// Key is the identity of one deck member.
type Key struct {
	CardID  int64
	Variant model.Variant
}

// KeyOf returns the identity of an observation; the slot is not part of it.
func KeyOf(o model.CardObservation) Key {
	return Key{CardID: o.CardID, Variant: o.Variant}
}

// Signature returns the canonical signature of a card set, e.g.
// "26000015:normal|26000063:evo|...". Members are ordered by the decimal
// card id compared as a string, then by variant.
func Signature(keys []Key) string {
	type pair struct{ id, variant string }
	pairs := make([]pair, len(keys))
	for i, k := range keys {
		pairs[i] = pair{strconv.FormatInt(k.CardID, 10), string(k.Variant)}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].id != pairs[j].id {
			return pairs[i].id < pairs[j].id
		}
		return pairs[i].variant < pairs[j].variant
	})

	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p.id + ":" + p.variant
	}
	return strings.Join(parts, "|")
}

// HashSignature returns the hex SHA-1 digest of a signature.
func HashSignature(sig string) string {
	sum := sha1.Sum([]byte(sig))
	return hex.EncodeToString(sum[:])
}

// Hash fingerprints a set of observations.
func Hash(obs []model.CardObservation) string {
	keys := make([]Key, len(obs))
	for i, o := range obs {
		keys[i] = KeyOf(o)
	}
	return HashSignature(Signature(keys))
}

package config

import (
	"github.com/vaibhaw-/BrokR/internal/brokr/classify"
	"github.com/vaibhaw-/BrokR/internal/brokr/dberr"
)

// Tier is the ordered permission level of a database: readonly < write < full.
type Tier string

const (
	TierReadonly Tier = "readonly"
	TierWrite    Tier = "write"
	TierFull     Tier = "full"
)

var tierRank = map[Tier]int{
	TierReadonly: 0,
	TierWrite:    1,
	TierFull:     2,
}

var kindRank = map[classify.Kind]int{
	classify.KindRead:        0,
	classify.KindWrite:       1,
	classify.KindDestructive: 2,
}

// ParseTier validates a permission string from config.
func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	if _, ok := tierRank[t]; !ok {
		return "", dberr.New(dberr.KindValidation, "invalid permission %q (want readonly, write, or full)", s)
	}
	return t, nil
}

// Allows reports whether a statement of the given kind is permitted at this
// tier. Unknown tiers allow nothing.
func (t Tier) Allows(k classify.Kind) bool {
	tr, ok := tierRank[t]
	if !ok {
		return false
	}
	kr, ok := kindRank[k]
	if !ok {
		return false
	}
	return kr <= tr
}

package ygopro

import (
	"fmt"
	"slices"
)

// DeckErrorKind identifies why a deck was refused.
type DeckErrorKind uint32

const (
	DeckOK DeckErrorKind = iota
	CardBanlisted
	CardOCGOnly
	CardTCGOnly
	CardUnknown
	CardMoreThan3
	DeckBadMainCount
	DeckBadExtraCount
	DeckBadSideCount
	CardForbiddenType
	CardUnofficial
	DeckInvalidSize
	DeckTooManyLegends
	DeckTooManySkills
)

// DeckError is a deck validation failure. Count errors carry the offending
// size and the allowed range, card errors carry the code.
type DeckError struct {
	Kind DeckErrorKind
	Code uint32
	Got  int
	Min  int
	Max  int
}

func (e *DeckError) Error() string {
	if e.Max != 0 || e.Got != 0 {
		return fmt.Sprintf("deck error %d: got %d, want %d..%d", e.Kind, e.Got, e.Min, e.Max)
	}
	return fmt.Sprintf("deck error %d: card %d", e.Kind, e.Code)
}

// DeckRules is everything CheckDeck needs to know about the room.
type DeckRules struct {
	Limits    DeckLimits
	Allowed   AllowedCards
	Forbidden uint32
	Banlist   *Banlist // nil means no banlist
}

func RulesFromHostInfo(h HostInfo, bl *Banlist) DeckRules {
	return DeckRules{
		Limits:    LimitsFromFlags(h.ExtraRules),
		Allowed:   h.Allowed,
		Forbidden: uint32(h.Forb),
		Banlist:   bl,
	}
}

// CheckDeck validates a deck. The first violation found is returned.
func CheckDeck(d Deck, rules DeckRules, db CardSource) *DeckError {
	if d.Err != 0 {
		return &DeckError{Kind: CardUnknown, Code: d.Err}
	}
	skills := 0
	for _, code := range d.Main {
		if data, _ := db.DataFromCode(code); data.Type&TypeSkill != 0 {
			skills++
		}
	}
	bounds := []struct {
		kind DeckErrorKind
		got  int
		lim  Boundary
	}{
		{DeckBadMainCount, len(d.Main) - skills, rules.Limits.Main},
		{DeckBadExtraCount, len(d.Extra), rules.Limits.Extra},
		{DeckBadSideCount, len(d.Side), rules.Limits.Side},
	}
	for _, b := range bounds {
		if !b.lim.Contains(b.got) {
			return &DeckError{Kind: b.kind, Got: b.got, Min: b.lim.Min, Max: b.lim.Max}
		}
	}
	if skills > 1 {
		return &DeckError{Kind: DeckTooManySkills}
	}
	legends := 0
	for _, code := range slices.Concat(d.Main, d.Extra) {
		if extra, _ := db.ExtraFromCode(code); extra.Scope&ScopeLegend != 0 {
			legends++
		}
	}
	if legends > 1 {
		return &DeckError{Kind: DeckTooManyLegends}
	}

	counts := d.Counts()
	codes := make([]uint32, 0, len(counts))
	for code := range counts {
		codes = append(codes, code)
	}
	slices.Sort(codes)

	for _, code := range codes {
		if data, _ := db.DataFromCode(code); data.Type&rules.Forbidden != 0 {
			return &DeckError{Kind: CardForbiddenType}
		}
	}

	// Fold alternate artworks into their canonical code.
	aliases := make(map[uint32]uint32)
	merged := make(map[uint32]int, len(counts))
	for _, code := range codes {
		data, _ := db.DataFromCode(code)
		if data.Alias != 0 {
			aliases[code] = data.Alias
			merged[data.Alias] += counts[code]
		} else {
			merged[code] += counts[code]
		}
	}
	total := func(code uint32) int {
		if alias, ok := aliases[code]; ok {
			return merged[alias]
		}
		return merged[code]
	}

	for _, code := range codes {
		n := total(code)
		if n > 3 {
			return &DeckError{Kind: CardMoreThan3, Code: code}
		}
		extra, _ := db.ExtraFromCode(code)
		switch {
		case unofficial(extra.Scope, rules.Allowed):
			return &DeckError{Kind: CardUnofficial, Code: code}
		case rules.Allowed == AllowedWithPrerelease && extra.Scope&ScopeOfficial == 0:
			return &DeckError{Kind: CardUnofficial, Code: code}
		case rules.Allowed == AllowedOCGOnly && extra.Scope&ScopeOCG == 0:
			return &DeckError{Kind: CardTCGOnly, Code: code}
		case rules.Allowed == AllowedTCGOnly && extra.Scope&ScopeTCG == 0:
			return &DeckError{Kind: CardOCGOnly, Code: code}
		}
		if rules.Banlist != nil && banlisted(rules.Banlist, code, n, aliases) {
			return &DeckError{Kind: CardBanlisted, Code: code}
		}
	}
	return nil
}

func unofficial(scope uint32, allowed AllowedCards) bool {
	switch allowed {
	case AllowedOCGOnly, AllowedTCGOnly, AllowedOCGTCG:
		return scope > ScopeOCGTCG
	case AllowedWithPrerelease:
		return scope&^ScopeOfficial != 0
	default:
		return false
	}
}

// inArtworkRange reports whether alias is close enough to code to be an
// alternate artwork rather than a different card sharing its name.
func inArtworkRange(code, alias uint32) bool {
	const maxDistance = 10
	if alias == 0 {
		return false
	}
	return alias-code < maxDistance || code-alias < maxDistance
}

func banlisted(bl *Banlist, code uint32, n int, aliases map[uint32]uint32) bool {
	limit, ok := bl.Codes[code]
	if !ok {
		if alias, has := aliases[code]; has && (!bl.Whitelist || inArtworkRange(code, alias)) {
			limit, ok = bl.Codes[alias]
		}
	}
	if !ok {
		return bl.Whitelist
	}
	return int32(n) > limit
}

package ygopro

// Boundary is an inclusive count range.
type Boundary struct {
	Min, Max int
}

func (b Boundary) Contains(n int) bool { return n >= b.Min && n <= b.Max }

// DeckLimits bounds the size of each deck part.
type DeckLimits struct {
	Main, Extra, Side Boundary
}

// LimitsFromFlags derives deck limits from the host's extra rules.
func LimitsFromFlags(extraRules uint16) DeckLimits {
	doubleDeck := extraRules&RuleDoubleDeck != 0
	limit20 := extraRules&RuleDeckLimit20 != 0
	switch {
	case doubleDeck && limit20:
		return DeckLimits{
			Main:  Boundary{40, 60},
			Extra: Boundary{0, 10},
			Side:  Boundary{0, 12},
		}
	case doubleDeck:
		return DeckLimits{
			Main:  Boundary{100, 100},
			Extra: Boundary{0, 30},
			Side:  Boundary{0, 30},
		}
	case limit20:
		return DeckLimits{
			Main:  Boundary{20, 30},
			Extra: Boundary{0, 5},
			Side:  Boundary{0, 6},
		}
	default:
		return DeckLimits{
			Main:  Boundary{40, 60},
			Extra: Boundary{0, 15},
			Side:  Boundary{0, 15},
		}
	}
}

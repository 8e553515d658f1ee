package ygopro

// CardData is what the card database knows about one card.
type CardData struct {
	Code       uint32
	Alias      uint32
	Setcodes   []uint16
	Type       uint32
	Level      uint32
	Attribute  uint32
	Race       uint64
	Attack     int32
	Defense    int32
	LScale     uint32
	RScale     uint32
	LinkMarker uint32
}

// CardExtra carries the non-engine columns of a card.
type CardExtra struct {
	Scope    uint32
	Category uint32
}

// CardSource looks card data up by code.
type CardSource interface {
	DataFromCode(code uint32) (CardData, bool)
	ExtraFromCode(code uint32) (CardExtra, bool)
}

// Deck is a classified deck. Err holds the last code the card source did
// not know, zero if every code resolved.
type Deck struct {
	Main  []uint32
	Extra []uint32
	Side  []uint32
	Err   uint32
}

func isExtraDeckCard(typ uint32) bool {
	if typ&(TypeFusion|TypeSynchro|TypeXyz) != 0 {
		return true
	}
	return typ&TypeLink != 0 && typ&TypeMonster != 0
}

// LoadDeck sorts the submitted codes into main, extra and side decks.
// Tokens are never part of a deck.
func LoadDeck(main, side []uint32, db CardSource) Deck {
	var d Deck
	for _, code := range main {
		data, ok := db.DataFromCode(code)
		if !ok {
			d.Err = code
			continue
		}
		if data.Type&TypeToken != 0 {
			continue
		}
		if isExtraDeckCard(data.Type) {
			d.Extra = append(d.Extra, code)
		} else {
			d.Main = append(d.Main, code)
		}
	}
	for _, code := range side {
		data, ok := db.DataFromCode(code)
		if !ok {
			d.Err = code
			continue
		}
		if data.Type&TypeToken != 0 {
			continue
		}
		d.Side = append(d.Side, code)
	}
	return d
}

// Counts returns the number of times each code appears across the deck.
func (d Deck) Counts() map[uint32]int {
	m := make(map[uint32]int, len(d.Main)+len(d.Extra)+len(d.Side))
	for _, part := range [][]uint32{d.Main, d.Extra, d.Side} {
		for _, c := range part {
			m[c]++
		}
	}
	return m
}

// SameComposition reports whether other was built from the same pool of
// cards: part sizes equal and every code appearing as many times.
func (d Deck) SameComposition(other Deck) bool {
	if len(d.Main) != len(other.Main) ||
		len(d.Extra) != len(other.Extra) ||
		len(d.Side) != len(other.Side) {
		return false
	}
	a, b := d.Counts(), other.Counts()
	if len(a) != len(b) {
		return false
	}
	for code, n := range a {
		if b[code] != n {
			return false
		}
	}
	return true
}

package ygopro

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLists = `#[2024.1 TCG][Custom]
!2024.1 TCG
#forbidden
14558127 0
#limited
55144522 1
#semi-limited
12580477 2
!Custom
$whitelist
89631139 3
!Empty
#nothing here
`

func TestParseBanlists(t *testing.T) {
	lists, err := ParseBanlists(strings.NewReader(sampleLists))
	require.NoError(t, err)
	require.Len(t, lists, 2, "empty list must be skipped")

	var tcg, custom *Banlist
	for _, bl := range lists {
		switch bl.Name {
		case "2024.1 TCG":
			tcg = bl
		case "Custom":
			custom = bl
		}
	}
	require.NotNil(t, tcg)
	require.NotNil(t, custom)
	assert.False(t, tcg.Whitelist)
	assert.Equal(t, map[uint32]int32{14558127: 0, 55144522: 1, 12580477: 2}, tcg.Codes)
	assert.True(t, custom.Whitelist)
}

func TestParseBanlists_HashIsStable(t *testing.T) {
	want := salt(salt(banlistHashSeed, 14558127, 0), 55144522, 1)
	lists, err := ParseBanlists(strings.NewReader("!a\n14558127 0\n55144522 1\n"))
	require.NoError(t, err)
	_, ok := lists[want]
	assert.True(t, ok, "expected list keyed by %#x", want)

	again, err := ParseBanlists(strings.NewReader("!renamed\n14558127 0\n55144522 1\n"))
	require.NoError(t, err)
	_, ok = again[want]
	assert.True(t, ok, "hash must not depend on the list name")
}

func TestParseBanlists_Errors(t *testing.T) {
	cases := []struct {
		name  string
		input string
	}{
		{name: "zero code", input: "!a\n0 1\n"},
		{name: "missing count", input: "!a\n1234\n"},
		{name: "bad count", input: "!a\n1234 x\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseBanlists(strings.NewReader(tc.input))
			if err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

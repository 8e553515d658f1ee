package room

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/duel-room-server/internal/distributor"
	"github.com/DoyleJ11/duel-room-server/internal/ygopro"
)

func queryOf(fields ...[2]uint32) []byte {
	var b []byte
	for _, f := range append(fields, [2]uint32{distributor.QueryEnd}) {
		size := 4
		if f[0] != distributor.QueryEnd {
			size = 8
		}
		b = binary.LittleEndian.AppendUint16(b, uint16(size))
		b = binary.LittleEndian.AppendUint32(b, f[0])
		if size == 8 {
			b = binary.LittleEndian.AppendUint32(b, f[1])
		}
	}
	return b
}

func TestRefresh_OwnerAndOpponentViews(t *testing.T) {
	code := [2]uint32{distributor.QueryCode, 77}
	faceDown := [2]uint32{distributor.QueryPosition, uint32(ygopro.PosFaceDownDefense)}
	hidden := [2]uint32{distributor.QueryIsHidden, 1}

	cases := []struct {
		name     string
		query    []byte
		owner    []byte
		opponent []byte
	}{
		{
			name:     "set card is known to its owner",
			query:    queryOf(code, faceDown),
			owner:    queryOf(code, faceDown),
			opponent: queryOf(faceDown),
		},
		{
			name:     "hidden card is masked for its owner too",
			query:    queryOf(code, faceDown, hidden),
			owner:    queryOf(faceDown, hidden),
			opponent: queryOf(faceDown, hidden),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, defaultInfo())
			host, guest := f.toDueling(true)
			d := f.requireDueling()
			obs := f.join("obs")
			drain(host)
			drain(guest)
			drain(obs)

			f.eng.last().QueryResult = tc.query
			err := f.room.refresh(d, []distributor.Refresh{{Single: true, Con: 0, Loc: ygopro.LocationMZone, Flags: 1}})
			require.NoError(t, err)

			update := func(q []byte) [][]byte {
				return [][]byte{distributor.UpdateCard(0, ygopro.LocationMZone, 0, q)}
			}
			assert.Equal(t, update(tc.owner), gameMsgs(drain(host)))
			assert.Equal(t, update(tc.opponent), gameMsgs(drain(guest)))
			assert.Equal(t, update(tc.opponent), gameMsgs(drain(obs)))
		})
	}
}

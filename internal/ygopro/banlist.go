package ygopro

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const banlistHashSeed uint32 = 0x7DFCEE6A

var ErrZeroCode = errors.New("card code cannot be 0")

// Banlist limits how many copies of a code a deck may hold. In whitelist
// mode codes that are not listed are forbidden outright.
type Banlist struct {
	Name      string
	Whitelist bool
	Codes     map[uint32]int32
}

func salt(hash, code uint32, count int32) uint32 {
	return hash ^ ((code << 18) | (code >> 14)) ^
		((code << uint32(27+count)) | (code >> uint32(5-count)))
}

// ParseBanlists reads every list in an lflist.conf formatted stream and
// returns them keyed by hash. Lists without entries are dropped.
func ParseBanlists(r io.Reader) (map[uint32]*Banlist, error) {
	out := make(map[uint32]*Banlist)
	hash := banlistHashSeed
	cur := &Banlist{Codes: map[uint32]int32{}}
	flush := func() {
		if hash != banlistHashSeed {
			out[hash] = cur
		}
	}

	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		l := strings.TrimRight(sc.Text(), "\r")
		if strings.Contains(l, "$whitelist") {
			cur.Whitelist = true
			continue
		}
		if l == "" {
			continue
		}
		switch c := l[0]; {
		case c == '!':
			flush()
			hash = banlistHashSeed
			cur = &Banlist{Name: strings.TrimSpace(l[1:]), Codes: map[uint32]int32{}}
		case c >= '0' && c <= '9':
			code, count, err := parseEntry(l)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			hash = salt(hash, code, count)
			cur.Codes[code] = count
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	flush()
	return out, nil
}

func parseEntry(l string) (uint32, int32, error) {
	fields := strings.Fields(l)
	if len(fields) < 2 {
		return 0, 0, errors.New("card code separator not found")
	}
	code, err := strconv.ParseUint(fields[0], 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("card code: %w", err)
	}
	if code == 0 {
		return 0, 0, ErrZeroCode
	}
	count, err := strconv.ParseInt(fields[1], 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("card count: %w", err)
	}
	return uint32(code), int32(count), nil
}

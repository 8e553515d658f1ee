package ygopro

import (
	"encoding/binary"

	"golang.org/x/text/encoding/unicode"
)

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// DecodeUTF16 reads a NUL terminated little endian UTF-16 string out of
// a fixed-size buffer. Bytes after the terminator are ignored.
func DecodeUTF16(b []byte) string {
	n := len(b) &^ 1
	for i := 0; i+1 < n; i += 2 {
		if b[i] == 0 && b[i+1] == 0 {
			n = i
			break
		}
	}
	s, err := utf16le.NewDecoder().Bytes(b[:n])
	if err != nil {
		return ""
	}
	return string(s)
}

// EncodeUTF16 writes s as little endian UTF-16 into a buffer of units
// code units, truncating when needed and always leaving a terminator.
func EncodeUTF16(s string, units int) []byte {
	out := make([]byte, units*2)
	enc, err := utf16le.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return out
	}
	limit := (units - 1) * 2
	if len(enc) > limit {
		enc = enc[:limit]
		// never split a surrogate pair
		if len(enc) >= 2 {
			last := binary.LittleEndian.Uint16(enc[len(enc)-2:])
			if last >= 0xD800 && last < 0xDC00 {
				enc = enc[:len(enc)-2]
			}
		}
	}
	copy(out, enc)
	return out
}

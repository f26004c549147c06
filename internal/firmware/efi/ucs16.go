package efi

import (
	"encoding/binary"
	"errors"
	"unicode/utf16"
)

// ErrUnterminatedString is returned when a UCS-16 string runs off the end of
// its buffer without a NUL code unit.
var ErrUnterminatedString = errors.New("unterminated UCS-16 string")

// UTF8ToUCS16 encodes s as little endian UTF-16 including the trailing NUL.
func UTF8ToUCS16(s string) []byte {
	units := utf16.Encode([]rune(s))
	b := make([]byte, 0, 2*(len(units)+1))
	for _, u := range units {
		b = binary.LittleEndian.AppendUint16(b, u)
	}
	return append(b, 0, 0)
}

// UCS16ToUTF8 decodes little endian UTF-16, stopping at the first NUL.
func UCS16ToUTF8(data []byte) string {
	s, _, err := ReadUCS16String(data)
	if err != nil {
		// No terminator: decode everything that is there.
		return string(utf16.Decode(units(data)))
	}
	return s
}

// ReadUCS16String decodes a NUL terminated UTF-16LE string from the start of
// data and returns it along with the number of bytes consumed, terminator
// included.
func ReadUCS16String(data []byte) (string, int, error) {
	for i := 0; i+1 < len(data); i += 2 {
		if data[i] == 0 && data[i+1] == 0 {
			return string(utf16.Decode(units(data[:i]))), i + 2, nil
		}
	}
	return "", 0, ErrUnterminatedString
}

func units(data []byte) []uint16 {
	u := make([]uint16, len(data)/2)
	for i := range u {
		u[i] = binary.LittleEndian.Uint16(data[2*i:])
	}
	return u
}

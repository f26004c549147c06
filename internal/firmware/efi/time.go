package efi

import (
	"encoding/binary"
	"fmt"
	"io"
)

// EfiTimeSize is the on-disk size of an EFI_TIME.
const EfiTimeSize = 16

// EfiTime mirrors EFI_TIME. The two pad bytes are kept so that a parsed
// timestamp builds back to identical bytes.
type EfiTime struct {
	Year       uint16
	Month      uint8
	Day        uint8
	Hour       uint8
	Minute     uint8
	Second     uint8
	Pad1       uint8
	Nanosecond uint32
	TimeZone   int16
	Daylight   uint8
	Pad2       uint8
}

// ParseTime decodes an EFI_TIME from the start of data.
func ParseTime(data []byte) (EfiTime, error) {
	if len(data) < EfiTimeSize {
		return EfiTime{}, fmt.Errorf("efi time: %w", io.ErrUnexpectedEOF)
	}
	return EfiTime{
		Year:       binary.LittleEndian.Uint16(data[0:2]),
		Month:      data[2],
		Day:        data[3],
		Hour:       data[4],
		Minute:     data[5],
		Second:     data[6],
		Pad1:       data[7],
		Nanosecond: binary.LittleEndian.Uint32(data[8:12]),
		TimeZone:   int16(binary.LittleEndian.Uint16(data[12:14])),
		Daylight:   data[14],
		Pad2:       data[15],
	}, nil
}

// Bytes returns the 16 byte EFI_TIME encoding.
func (t EfiTime) Bytes() []byte {
	b := make([]byte, 0, EfiTimeSize)
	b = binary.LittleEndian.AppendUint16(b, t.Year)
	b = append(b, t.Month, t.Day, t.Hour, t.Minute, t.Second, t.Pad1)
	b = binary.LittleEndian.AppendUint32(b, t.Nanosecond)
	b = binary.LittleEndian.AppendUint16(b, uint16(t.TimeZone))
	b = append(b, t.Daylight, t.Pad2)
	return b
}

// IsZero reports whether the timestamp was never set.
func (t EfiTime) IsZero() bool {
	return t == EfiTime{}
}

func (t EfiTime) String() string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d",
		t.Year, t.Month, t.Day, t.Hour, t.Minute, t.Second)
}

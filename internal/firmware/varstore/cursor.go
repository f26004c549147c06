package varstore

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/bmcpi/uefivars/internal/firmware/efi"
)

// reader walks a little endian buffer. pos is absolute so that alignment is
// computed against the start of the volume.
type reader struct {
	data []byte
	pos  int
}

func (r *reader) need(n int, what string) error {
	if n < 0 || r.pos+n > len(r.data) {
		return fmt.Errorf("%s at offset 0x%x: %w", what, r.pos, io.ErrUnexpectedEOF)
	}
	return nil
}

func (r *reader) bytes(n int, what string) ([]byte, error) {
	if err := r.need(n, what); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	copy(b, r.data[r.pos:])
	r.pos += n
	return b, nil
}

func (r *reader) u8(what string) (uint8, error) {
	if err := r.need(1, what); err != nil {
		return 0, err
	}
	v := r.data[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) u16(what string) (uint16, error) {
	if err := r.need(2, what); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) u32(what string) (uint32, error) {
	if err := r.need(4, what); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) u64(what string) (uint64, error) {
	if err := r.need(8, what); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.data[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *reader) guid(what string) (efi.GUID, error) {
	var g efi.GUID
	if err := r.need(efi.GUIDSize, what); err != nil {
		return g, err
	}
	copy(g[:], r.data[r.pos:])
	r.pos += efi.GUIDSize
	return g, nil
}

func (r *reader) time(what string) (efi.EfiTime, error) {
	if err := r.need(efi.EfiTimeSize, what); err != nil {
		return efi.EfiTime{}, err
	}
	t, err := efi.ParseTime(r.data[r.pos:])
	if err != nil {
		return efi.EfiTime{}, err
	}
	r.pos += efi.EfiTimeSize
	return t, nil
}

func (r *reader) ucs16(what string) (string, error) {
	s, n, err := efi.ReadUCS16String(r.data[r.pos:])
	if err != nil {
		return "", fmt.Errorf("%s at offset 0x%x: %w", what, r.pos, err)
	}
	r.pos += n
	return s, nil
}

// peek16 returns the next u16 without consuming it, or 0xffff at the end
// of the buffer.
func (r *reader) peek16() uint16 {
	if r.pos+2 > len(r.data) {
		return 0xffff
	}
	return binary.LittleEndian.Uint16(r.data[r.pos:])
}

// align skips to the next multiple of n. Skipped bytes are not checked.
func (r *reader) align(n int, what string) error {
	pad := padding(r.pos, n)
	if err := r.need(pad, what); err != nil {
		return err
	}
	r.pos += pad
	return nil
}

// writer accumulates a little endian encoding.
type writer struct {
	buf []byte
}

func (w *writer) u8(v uint8)   { w.buf = append(w.buf, v) }
func (w *writer) u16(v uint16) { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }
func (w *writer) u32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }
func (w *writer) u64(v uint64) { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }

func (w *writer) bytes(b []byte) { w.buf = append(w.buf, b...) }

func (w *writer) guid(g efi.GUID) { w.buf = append(w.buf, g[:]...) }

// align pads with fill up to the next multiple of n.
func (w *writer) align(n int, fill byte) {
	for range padding(len(w.buf), n) {
		w.buf = append(w.buf, fill)
	}
}

func padding(pos, n int) int {
	return (n - pos%n) % n
}

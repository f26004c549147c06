package efi_test

import (
	"testing"

	"github.com/bmcpi/uefivars/internal/firmware/efi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUCS16(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []byte
	}{
		{"empty", "", []byte{0, 0}},
		{"ascii", "Boot", []byte{'B', 0, 'o', 0, 'o', 0, 't', 0, 0, 0}},
		{"non-ascii", "é", []byte{0xe9, 0, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := efi.UTF8ToUCS16(tt.in)
			assert.Equal(t, tt.want, b)
			assert.Equal(t, tt.in, efi.UCS16ToUTF8(b))
		})
	}
}

func TestReadUCS16String(t *testing.T) {
	data := append(efi.UTF8ToUCS16("BootOrder"), 0xaa, 0x55)

	s, n, err := efi.ReadUCS16String(data)
	require.NoError(t, err)
	assert.Equal(t, "BootOrder", s)
	assert.Equal(t, 20, n)

	_, _, err = efi.ReadUCS16String([]byte{'A', 0, 'B'})
	assert.ErrorIs(t, err, efi.ErrUnterminatedString)
}

func TestVariableAttributes(t *testing.T) {
	assert.Equal(t, "NV|BS|RT", efi.DefaultAttributes.String())
	assert.True(t, efi.DefaultAttributes.Has(efi.EFI_VARIABLE_RUNTIME_ACCESS))
	assert.False(t, efi.DefaultAttributes.Has(efi.EFI_VARIABLE_APPEND_WRITE))
	assert.Equal(t, "NV|0x100", (efi.EFI_VARIABLE_NON_VOLATILE | 0x100).String())
}

func TestBootOrderData(t *testing.T) {
	data := efi.CreateBootOrderData([]uint16{1, 0x0102})
	assert.Equal(t, []byte{1, 0, 2, 1}, data)

	order, err := efi.ParseBootOrder(data)
	require.NoError(t, err)
	assert.Equal(t, []uint16{1, 0x0102}, order)

	_, err = efi.ParseBootOrder([]byte{1})
	assert.Error(t, err)
}

func TestEfiTime(t *testing.T) {
	raw := []byte{0xe8, 0x07, 10, 17, 12, 30, 5, 0xaa, 1, 0, 0, 0, 0xff, 0x07, 1, 0xbb}
	ts, err := efi.ParseTime(raw)
	require.NoError(t, err)
	assert.Equal(t, uint16(2024), ts.Year)
	assert.Equal(t, "2024-10-17 12:30:05", ts.String())
	assert.Equal(t, raw, ts.Bytes())
	assert.True(t, efi.EfiTime{}.IsZero())

	_, err = efi.ParseTime(raw[:10])
	assert.Error(t, err)
}

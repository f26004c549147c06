// Package varstoretest builds EDK2 NVRAM images for tests.
package varstoretest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/bmcpi/uefivars/internal/firmware/efi"
	"github.com/bmcpi/uefivars/internal/firmware/varstore"
)

// ImageSize matches an EDK2 build with a 128k variable area.
const ImageSize = 0x20000

// TailByte fills the area after the variable store volume.
const TailByte = 0xee

// Var describes one variable record of a fixture.
type Var struct {
	Name  string
	GUID  efi.GUID
	State uint8
	Attr  efi.VariableAttributes
	Data  []byte
}

// Global returns an active variable under the EFI global variable GUID.
func Global(name string, data []byte) Var {
	return Var{
		Name:  name,
		GUID:  efi.EfiGlobalVariableGUID,
		State: varstore.VarAdded,
		Attr:  efi.DefaultAttributes,
		Data:  data,
	}
}

// Boot returns an active BootXXXX variable holding a load option.
func Boot(index uint16, title string, dp *efi.DevicePath) Var {
	return Global(fmt.Sprintf("Boot%04X", index), efi.NewBootEntry(title, dp).Bytes())
}

// WithState returns a copy of v carrying the given state.
func (v Var) WithState(state uint8) Var {
	v.State = state
	return v
}

// NewVolume returns a decoded volume holding vars in order.
func NewVolume(vars ...Var) *varstore.Volume {
	vol := &varstore.Volume{
		GUID:       efi.NvDataGUID,
		VolSize:    ImageSize,
		Attributes: 0x4feff,
		HeaderLen:  0x48,
		Revision:   2,
		BlockMap: []varstore.BlockMapEntry{
			{Num: ImageSize / 0x1000, Len: 0x1000},
			{},
		},
		StoreHeader: varstore.VariableStoreHeader{
			GUID:   efi.AuthVarsGUID,
			Size:   varstore.VolumeSize - 0x48,
			Format: 0x5a,
			State:  0xfe,
		},
	}
	for i, v := range vars {
		av := &varstore.AuthVariable{
			StartID:    varstore.VariableData,
			State:      v.State,
			Attributes: v.Attr,
			NameLen:    uint32(2 * (len(v.Name) + 1)),
			DataLen:    uint32(len(v.Data)),
			GUID:       v.GUID,
			Name:       v.Name,
			Data:       bytes.Clone(v.Data),
			Next:       varstore.VariableData,
		}
		if i == len(vars)-1 {
			av.Next = 0xffff
		}
		vol.Vars = append(vol.Vars, av)
	}
	return vol
}

// Image returns a full NVRAM image: the volume, 0xff up to the volume size
// and TailByte up to ImageSize.
func Image(tb testing.TB, vars ...Var) []byte {
	tb.Helper()
	blob, err := NewVolume(vars...).Bytes()
	if err != nil {
		tb.Fatalf("encoding fixture volume: %v", err)
	}
	if len(blob) > varstore.VolumeSize {
		tb.Fatalf("fixture volume is 0x%x bytes", len(blob))
	}
	img := bytes.Repeat([]byte{TailByte}, ImageSize)
	copy(img, blob)
	for i := len(blob); i < varstore.VolumeSize; i++ {
		img[i] = 0xff
	}
	return img
}

// WriteImage writes Image(vars...) to a file in a fresh temp directory and
// returns its path.
func WriteImage(tb testing.TB, vars ...Var) string {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), "uefivars")
	if err := os.WriteFile(path, Image(tb, vars...), 0o600); err != nil {
		tb.Fatalf("writing fixture: %v", err)
	}
	return path
}

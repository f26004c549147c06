package boot_test

import (
	"testing"

	"github.com/bmcpi/uefivars/internal/firmware/boot"
	"github.com/bmcpi/uefivars/internal/firmware/efi"
	"github.com/bmcpi/uefivars/internal/firmware/varstore"
	"github.com/bmcpi/uefivars/internal/firmware/varstore/varstoretest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bootVar(index uint16, entry *efi.BootEntry) varstoretest.Var {
	v := varstoretest.Boot(index, entry.Title, entry.DevicePath)
	v.Data = entry.Bytes()
	return v
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name string
		path *efi.DevicePath
		want boot.Target
	}{
		{
			name: "pci only",
			path: efi.NewDevicePath().PCI(0, 6),
			want: boot.PCI("0.6"),
		},
		{
			name: "file path",
			path: efi.NewDevicePath().FilePath(`\EFI\BOOT\BOOTX64.EFI`),
			want: boot.Path(`\EFI\BOOT\BOOTX64.EFI`),
		},
		{
			name: "http",
			path: efi.NewDevicePath().PciRoot().PCI(6, 0).Mac().IPv4().URI(""),
			want: boot.PCI("6.0").WithProto(boot.ProtoHTTP),
		},
		{
			name: "pci wins over file path",
			path: efi.NewDevicePath().PciRoot().PCI(4, 0).FilePath(`\x.efi`),
			want: boot.PCI("4.0"),
		},
		{
			name: "application",
			path: efi.NewDevicePath().FvName(efi.NvDataGUID).FVFileName(efi.MustParseGUID(boot.ShellGUID)),
			want: boot.App(boot.ShellGUID),
		},
		{
			name: "app wins over file path",
			path: efi.NewDevicePath().FilePath(`\x.efi`).FVFileName(efi.AuthVarsGUID),
			want: boot.App(efi.AuthVars),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vol := varstoretest.NewVolume(varstoretest.Boot(1, tt.name, tt.path))
			m := boot.Build(vol.Vars)

			got, ok := m.Target(1)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildFilters(t *testing.T) {
	inactive := efi.NewBootEntry("inactive", efi.NewDevicePath().PCI(3, 0))
	inactive.SetActive(false)
	hidden := efi.NewBootEntry("hidden", efi.NewDevicePath().PCI(3, 1))
	hidden.SetHidden(true)

	vol := varstoretest.NewVolume(
		bootVar(1, inactive),
		bootVar(2, hidden),
		varstoretest.Boot(3, "deleted", efi.NewDevicePath().PCI(3, 2)).WithState(varstore.VarDeleted),
		varstoretest.Global("Boot0004", []byte{1, 0, 0, 0}),
		varstoretest.Global("BootOrder", []byte{5, 0}),
		varstoretest.Global("Boot1005", efi.NewBootEntry("out of range", efi.NewDevicePath().PCI(3, 3)).Bytes()),
		varstoretest.Var{
			Name:  "Boot0006",
			GUID:  efi.NvDataGUID,
			State: varstore.VarAdded,
			Data:  efi.NewBootEntry("other vendor", efi.NewDevicePath().PCI(3, 4)).Bytes(),
		},
		varstoretest.Boot(7, "nothing to classify", efi.NewDevicePath().Mac()),
		varstoretest.Boot(8, "ok", efi.NewDevicePath().PCI(4, 0)),
	)

	m := boot.Build(vol.Vars)
	assert.Equal(t, []uint16{8}, m.Indexes())
	assert.Contains(t, m.Skipped(), uint16(4))
}

func TestReverseMap(t *testing.T) {
	vol := varstoretest.NewVolume(
		varstoretest.Boot(0x0a, "second file", efi.NewDevicePath().FilePath(`\b.efi`)),
		varstoretest.Boot(0x02, "disk", efi.NewDevicePath().PciRoot().PCI(4, 0)),
		varstoretest.Boot(0x03, "first file", efi.NewDevicePath().FilePath(`\a.efi`)),
		varstoretest.Boot(0x04, "disk again", efi.NewDevicePath().PciRoot().PCI(4, 0)),
	)
	m := boot.Build(vol.Vars)

	assert.Equal(t, []uint16{2, 3, 4, 10}, m.Indexes())
	assert.Equal(t, []uint16{3, 10}, m.Paths())

	tests := []struct {
		target boot.Target
		want   uint16
	}{
		{boot.PCI("4.0"), 4},
		{boot.Path(`\a.efi`), 3},
		{boot.Boot(2), 2},
		{boot.Boot(10), 10},
		{boot.PathIndex(0), 3},
		{boot.PathIndex(1), 10},
	}
	for _, tt := range tests {
		t.Run(tt.target.String(), func(t *testing.T) {
			got, ok := m.Lookup(tt.target)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := m.Lookup(boot.PathIndex(2))
	assert.False(t, ok)
	_, ok = m.Lookup(boot.Boot(5))
	assert.False(t, ok)
	assert.Len(t, m.Reverse(), 9)
}

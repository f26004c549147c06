package efi_test

import (
	"encoding/json"
	"testing"

	"github.com/bmcpi/uefivars/internal/firmware/efi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDevicePathParse(t *testing.T) {
	dp := efi.NewDevicePath().PciRoot().PCI(3, 0).FilePath(`\EFI\BOOT\BOOTX64.EFI`)
	raw := dp.Bytes()

	parsed, n, err := efi.ParseDevicePath(append(raw, 0xde, 0xad))
	require.NoError(t, err)
	assert.Equal(t, len(raw), n)
	assert.True(t, dp.Equal(parsed))
	assert.Equal(t, `PciRoot()/PCI(dev=03:0)/FilePath(\EFI\BOOT\BOOTX64.EFI)`, parsed.String())
}

func TestDevicePathErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"short node length", []byte{0x01, 0x01, 0x03, 0x00}},
		{"truncated node", []byte{0x01, 0x01, 0x08, 0x00, 0x00}},
		{"missing end node", []byte{0x01, 0x01, 0x06, 0x00, 0x00, 0x03}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := efi.ParseDevicePath(tt.data)
			assert.Error(t, err)
		})
	}
}

func TestBootEntryRoundTrip(t *testing.T) {
	entry := efi.NewBootEntry("UEFI Shell", efi.NewDevicePath().FvName(efi.NvDataGUID).FVFileName(efi.AuthVarsGUID))
	entry.OptData = []byte{1, 2, 3}
	raw := entry.Bytes()

	parsed, err := efi.ParseBootEntry(raw)
	require.NoError(t, err)
	assert.Equal(t, "UEFI Shell", parsed.Title)
	assert.Equal(t, []byte{1, 2, 3}, parsed.OptData)
	assert.True(t, parsed.IsActive())
	assert.False(t, parsed.IsHidden())
	assert.Equal(t, raw, parsed.Bytes())

	guid, ok := parsed.AppGUID()
	assert.True(t, ok)
	assert.Equal(t, efi.AuthVarsGUID, guid)
}

func TestBootEntryPathSize(t *testing.T) {
	entry := efi.NewBootEntry("disk", efi.NewDevicePath().PciRoot().PCI(4, 0))
	raw := entry.Bytes()
	pathLen := len(entry.DevicePath.Bytes())
	assert.Equal(t, []byte{byte(pathLen), 0}, raw[4:6])

	// firmware that stored a list length covering more than the nodes
	raw[4] += 4
	parsed, err := efi.ParseBootEntry(raw)
	require.NoError(t, err)
	assert.Equal(t, uint16(pathLen+4), parsed.PathSize)
	assert.Equal(t, raw, parsed.Bytes())

	parsed.PathSize = 0
	assert.Equal(t, byte(pathLen), parsed.Bytes()[4])
}

func TestBootEntryClassification(t *testing.T) {
	tests := []struct {
		name     string
		path     *efi.DevicePath
		wantPCI  string
		wantURI  bool
		wantFile string
	}{
		{
			name:    "pci disk",
			path:    efi.NewDevicePath().PciRoot().PCI(4, 0),
			wantPCI: "4.0",
		},
		{
			name:    "http boot",
			path:    efi.NewDevicePath().PciRoot().PCI(6, 0).Mac().IPv4().URI(""),
			wantPCI: "6.0",
			wantURI: true,
		},
		{
			name:     "file path",
			path:     efi.NewDevicePath().FilePath(`\EFI\boot.efi`),
			wantFile: `\EFI\boot.efi`,
		},
		{
			name:    "last pci node wins",
			path:    efi.NewDevicePath().PCI(1, 0).PCI(2, 1),
			wantPCI: "2.1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, err := efi.ParseBootEntry(efi.NewBootEntry(tt.name, tt.path).Bytes())
			require.NoError(t, err)

			pci, ok := entry.PCI()
			assert.Equal(t, tt.wantPCI != "", ok)
			assert.Equal(t, tt.wantPCI, pci)

			_, ok = entry.URI()
			assert.Equal(t, tt.wantURI, ok)

			file, _ := entry.FilePath()
			assert.Equal(t, tt.wantFile, file)
		})
	}
}

func TestBootEntryFlags(t *testing.T) {
	entry := efi.NewBootEntry("x", efi.NewDevicePath())
	entry.SetHidden(true)
	entry.SetActive(false)
	entry.SetCategory(efi.LOAD_OPTION_CATEGORY_APP)
	assert.Equal(t, efi.LOAD_OPTION_HIDDEN|efi.LOAD_OPTION_CATEGORY_APP, entry.Attr)
	assert.Equal(t, efi.LOAD_OPTION_CATEGORY_APP, entry.Category())
}

func TestParseBootEntryErrors(t *testing.T) {
	_, err := efi.ParseBootEntry([]byte{1, 0, 0})
	assert.Error(t, err)

	// title without terminator
	_, err = efi.ParseBootEntry([]byte{1, 0, 0, 0, 4, 0, 'A', 0})
	assert.ErrorIs(t, err, efi.ErrUnterminatedString)
}

func TestEfiVarListJSON(t *testing.T) {
	entry := efi.NewBootEntry("disk", efi.NewDevicePath().PCI(4, 0))
	list := efi.EfiVarListJSON{
		Version: 2,
		Variables: []efi.EfiVarJSON{
			efi.NewEfiVarJSON("Boot0001", efi.EfiGlobalVariableGUID, "added", efi.DefaultAttributes, entry.Bytes(), efi.EfiTime{}),
		},
	}
	out, err := json.Marshal(list)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"name":"Boot0001"`)
	assert.Contains(t, string(out), `"guid":"EfiGlobalVariable"`)
	assert.Contains(t, string(out), `"attr":"NV|BS|RT"`)
	assert.Contains(t, string(out), `devpath=PCI(dev=04:0)`)
	assert.NotContains(t, string(out), `"time"`)

	out, err = json.Marshal(efi.EfiVarListJSON{Version: 2})
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":2,"variables":[]}`, string(out))
}

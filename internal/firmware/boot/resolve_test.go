package boot_test

import (
	"testing"

	"github.com/bmcpi/uefivars/internal/firmware/boot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResolver() *boot.Resolver {
	r := boot.NewResolver()
	r.AddDevices(boot.Devices{BootDisk: true, Disks: 10, CDROMs: 2, NICs: 1})
	return r
}

func TestResolve(t *testing.T) {
	tests := []struct {
		token string
		want  boot.Target
		found bool
	}{
		{"path", boot.PathIndex(0), true},
		{"path0", boot.PathIndex(0), true},
		{"path3", boot.PathIndex(3), true},
		{`path:\EFI\BOOT\BOOTX64.EFI`, boot.Path(`\EFI\BOOT\BOOTX64.EFI`), true},
		{"boot10", boot.Boot(10), true},
		{"bootdisk", boot.PCI("4.0"), true},
		{"cdrom", boot.PCI("3.0"), true},
		{"cdrom1", boot.PCI("3.1"), true},
		{"disk", boot.PCI("5.0"), true},
		{"disk9", boot.PCI("8.1"), true},
		{"net", boot.PCI("6.0"), true},
		{"net0=pxe", boot.PCI("6.0"), true},
		{"net0=http", boot.PCI("6.0").WithProto(boot.ProtoHTTP), true},
		{"shell", boot.App(boot.ShellGUID), true},
		{"pci:7.2", boot.PCI("7.2"), true},
		{"app:7C04A583-9E3E-4F1C-AD65-E05268D0B4D1", boot.App(boot.ShellGUID), true},
		{`path:\EFI\a=b.efi`, boot.Path(`\EFI\a=b.efi`), true},
		{"net1", boot.Target{}, false},
		{"floppy", boot.Target{}, false},
		{"path99999999999999999999", boot.Target{}, false},
		{"boot99999999999999999999", boot.Target{}, false},
		{"pci:x.0", boot.Target{}, false},
		{"app:nope", boot.Target{}, false},
	}
	r := newResolver()
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, ok, err := r.Resolve(tt.token)
			require.NoError(t, err)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveErrors(t *testing.T) {
	r := newResolver()

	_, _, err := r.Resolve("net0=tftp")
	assert.ErrorIs(t, err, boot.ErrInvalidProtocol)

	_, _, err = r.Resolve("net=ipv6")
	assert.ErrorIs(t, err, boot.ErrInvalidProtocol)

	_, ok, err := r.Resolve("pci:6.0=tftp")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolveOrder(t *testing.T) {
	r := newResolver()

	got, err := r.ResolveOrder(boot.DefaultOrder)
	require.NoError(t, err)
	assert.Equal(t, []boot.Target{boot.PathIndex(0), boot.PCI("4.0"), boot.PCI("3.0")}, got)

	got, err = r.ResolveOrder("dc")
	require.NoError(t, err)
	assert.Equal(t, []boot.Target{boot.PCI("3.0"), boot.PathIndex(0), boot.PCI("4.0")}, got)

	got, err = r.ResolveOrder("floppy, net0=http ,,boot1")
	require.NoError(t, err)
	assert.Equal(t, []boot.Target{boot.PCI("6.0").WithProto(boot.ProtoHTTP), boot.Boot(1)}, got)

	r.AddAlias("netfirst", "net0,path")
	got, err = r.ResolveOrder("netfirst")
	require.NoError(t, err)
	assert.Equal(t, []boot.Target{boot.PCI("6.0"), boot.PathIndex(0)}, got)

	got, err = r.ResolveOrder("path99999999999999999999,bootdisk,cdrom0")
	require.NoError(t, err)
	assert.Equal(t, []boot.Target{boot.PCI("4.0"), boot.PCI("3.0")}, got)

	got, err = r.ResolveOrder(`bootdisk,path:\EFI\a=b.efi`)
	require.NoError(t, err)
	assert.Equal(t, []boot.Target{boot.PCI("4.0"), boot.Path(`\EFI\a=b.efi`)}, got)

	got, err = r.ResolveOrder("pci:x.0,bootdisk")
	require.NoError(t, err)
	assert.Equal(t, []boot.Target{boot.PCI("4.0")}, got)

	_, err = r.ResolveOrder("path,net=ftp")
	assert.ErrorIs(t, err, boot.ErrInvalidProtocol)
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		in      string
		want    boot.Target
		wantErr bool
	}{
		{in: "pci:04.0", want: boot.PCI("4.0")},
		{in: "pci:6.0=http", want: boot.PCI("6.0").WithProto(boot.ProtoHTTP)},
		{in: `path:\EFI\x.efi`, want: boot.Path(`\EFI\x.efi`)},
		{in: `path:\EFI\a=b.efi`, want: boot.Path(`\EFI\a=b.efi`)},
		{in: `path:\EFI\a=b.efi=http`, want: boot.Path(`\EFI\a=b.efi`).WithProto(boot.ProtoHTTP)},
		{in: "pci:6.0=pxe", want: boot.PCI("6.0")},
		{in: "pci:6", wantErr: true},
		{in: "pci:6.0=ftp", wantErr: true},
		{in: "usb:1", wantErr: true},
		{in: "bootdisk", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := boot.ParseTarget(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, mustParse(t, got.String()))
		})
	}
}

func mustParse(t *testing.T, s string) boot.Target {
	t.Helper()
	got, err := boot.ParseTarget(s)
	require.NoError(t, err)
	return got
}

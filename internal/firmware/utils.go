package firmware

import (
	"fmt"

	"github.com/bmcpi/uefivars/internal/firmware/boot"
	"github.com/bmcpi/uefivars/internal/firmware/efi"
	"github.com/bmcpi/uefivars/internal/firmware/manager"
	"github.com/ghodss/yaml"
	"github.com/go-logr/logr"
	"github.com/spf13/afero"
)

// ApplyBootConfig sets the boot order and boot next on mgr and saves the
// result. Failures are logged and never returned: a VM whose boot options
// could not be updated still boots with the previous ones.
func ApplyBootConfig(log logr.Logger, mgr manager.FirmwareManager, resolver *boot.Resolver, order, next string) {
	bm := mgr.BootMap()
	for _, i := range bm.Indexes() {
		t, _ := bm.Target(i)
		log.V(1).Info("boot option", "index", fmt.Sprintf("Boot%04X", i), "target", t.String())
	}
	for t, i := range bm.Reverse() {
		log.V(1).Info("boot target", "target", t.String(), "index", fmt.Sprintf("Boot%04X", i))
	}

	changed := false

	if order != "" {
		targets, err := resolver.ResolveOrder(order)
		switch {
		case err != nil:
			log.Error(err, "Could not resolve VM boot order", "order", order)
		default:
			log.V(1).Info("resolved boot order", "requested", order, "targets", targetNames(targets))
			if err := mgr.SetBootOrder(targets); err != nil {
				log.Error(err, "Could not set VM boot order", "order", order)
			} else {
				changed = true
			}
		}
	}

	if next != "" {
		t, ok, err := resolver.Resolve(next)
		switch {
		case err != nil:
			log.Error(err, "Could not resolve VM boot next", "next", next)
		case !ok:
			log.V(1).Info("boot next does not name a known option", "next", next)
		default:
			log.V(1).Info("setting boot next", "target", t.String())
			if err := mgr.SetBootNext(t); err != nil {
				log.Error(err, "Could not set VM boot next", "next", next)
			} else {
				changed = true
			}
		}
	}

	if !changed {
		return
	}
	if err := mgr.SaveChanges(); err != nil {
		log.Info("Could not write boot options", "error", err.Error())
	}
}

// BackupFirmware creates a backup of the firmware file
func BackupFirmware(fs afero.Fs, firmwarePath string) (string, error) {
	backupPath := firmwarePath + ".backup"

	data, err := afero.ReadFile(fs, firmwarePath)
	if err != nil {
		return "", fmt.Errorf("failed to read firmware file: %w", err)
	}

	if err := afero.WriteFile(fs, backupPath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write backup file: %w", err)
	}

	return backupPath, nil
}

// Dump is the YAML view of a variable store.
type Dump struct {
	Store       efi.EfiVarListJSON  `json:"store"`
	BootEntries []manager.BootEntry `json:"bootEntries"`
	BootMap     map[string]string   `json:"bootMap"`
	ReverseMap  map[string]string   `json:"reverseMap"`
	Options     map[string]string   `json:"options,omitempty"`
}

// DumpYAML renders the variables and derived boot maps of mgr.
func DumpYAML(mgr manager.FirmwareManager, resolver *boot.Resolver) ([]byte, error) {
	entries, err := mgr.GetBootEntries()
	if err != nil {
		return nil, err
	}

	d := Dump{
		Store:       mgr.ListVariables(),
		BootEntries: entries,
		BootMap:     map[string]string{},
		ReverseMap:  map[string]string{},
	}
	bm := mgr.BootMap()
	for _, i := range bm.Indexes() {
		t, _ := bm.Target(i)
		d.BootMap[fmt.Sprintf("Boot%04X", i)] = t.String()
	}
	for t, i := range bm.Reverse() {
		d.ReverseMap[t.String()] = fmt.Sprintf("Boot%04X", i)
	}
	if resolver != nil {
		d.Options = map[string]string{}
		for name, t := range resolver.Options() {
			d.Options[name] = t.String()
		}
	}

	out, err := yaml.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal dump: %w", err)
	}
	return out, nil
}

func targetNames(targets []boot.Target) []string {
	names := make([]string, len(targets))
	for i, t := range targets {
		names[i] = t.String()
	}
	return names
}

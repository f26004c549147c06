package manager

import (
	"fmt"
	"strconv"

	"github.com/bmcpi/uefivars/internal/firmware/boot"
	"github.com/bmcpi/uefivars/internal/firmware/efi"
	"github.com/bmcpi/uefivars/internal/firmware/varstore"
	"github.com/go-logr/logr"
)

// EDK2Manager implements the FirmwareManager interface for EDK2 NVRAM images.
type EDK2Manager struct {
	firmwarePath string
	varStore     *varstore.Edk2VarStore
	bootMap      *boot.Map
	logger       logr.Logger
}

// NewEDK2Manager loads the variable store from firmwarePath and derives the
// boot map.
func NewEDK2Manager(firmwarePath string, logger logr.Logger) (*EDK2Manager, error) {
	manager := &EDK2Manager{
		firmwarePath: firmwarePath,
		logger:       logger.WithName("edk2-manager"),
	}
	if err := manager.load(); err != nil {
		return nil, err
	}
	return manager, nil
}

func (m *EDK2Manager) load() error {
	vs, err := varstore.NewEdk2VarStore(m.firmwarePath)
	if err != nil {
		return fmt.Errorf("failed to load variable store: %w", err)
	}
	m.varStore = vs
	m.bootMap = boot.Build(vs.Vars())

	for i, err := range m.bootMap.Skipped() {
		m.logger.V(1).Info("ignoring undecodable boot entry", "index", fmt.Sprintf("Boot%04X", i), "error", err.Error())
	}
	return nil
}

// BootMap returns the boot map computed at load time.
func (m *EDK2Manager) BootMap() *boot.Map {
	return m.bootMap
}

// VarStore exposes the underlying variable store.
func (m *EDK2Manager) VarStore() *varstore.Edk2VarStore {
	return m.varStore
}

// GetBootOrder retrieves the current boot order.
func (m *EDK2Manager) GetBootOrder() ([]uint16, error) {
	v, err := m.GetVariable(efi.BootOrderName, efi.EfiGlobalVariableGUID)
	if err != nil {
		return nil, err
	}
	return efi.ParseBootOrder(v.Data)
}

// SetBootOrder resolves targets against the boot map and stores the result
// as BootOrder. Targets that are not in the map are skipped.
func (m *EDK2Manager) SetBootOrder(targets []boot.Target) error {
	order := make([]uint16, 0, len(targets))
	for _, t := range targets {
		i, ok := m.bootMap.Lookup(t)
		if !ok {
			m.logger.V(1).Info("skipping unknown boot target", "target", t.String())
			continue
		}
		order = append(order, i)
	}
	if len(order) == 0 {
		return ErrNoBootTargets
	}

	if err := m.setVariable(efi.BootOrderName, efi.CreateBootOrderData(order)); err != nil {
		return err
	}
	m.logger.V(1).Info("set boot order", "order", bootNames(order))
	return nil
}

// GetBootNext retrieves the boot entry to use on next boot.
func (m *EDK2Manager) GetBootNext() (uint16, error) {
	v, err := m.GetVariable(efi.BootNextName, efi.EfiGlobalVariableGUID)
	if err != nil {
		return 0, err
	}
	next, err := efi.ParseBootOrder(v.Data)
	if err != nil {
		return 0, err
	}
	if len(next) != 1 {
		return 0, fmt.Errorf("invalid BootNext data length %d", len(v.Data))
	}
	return next[0], nil
}

// SetBootNext sets the boot entry to use on next boot.
func (m *EDK2Manager) SetBootNext(target boot.Target) error {
	i, ok := m.bootMap.Lookup(target)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownBootTarget, target)
	}

	if err := m.setVariable(efi.BootNextName, efi.CreateBootOrderData([]uint16{i})); err != nil {
		return err
	}
	m.logger.V(1).Info("set boot next", "next", fmt.Sprintf("Boot%04X", i))
	return nil
}

// setVariable finds or creates a global variable and makes it active with
// the given data.
func (m *EDK2Manager) setVariable(name string, data []byte) error {
	v, err := m.varStore.FindVar(name, efi.EfiGlobalVariableGUID)
	if err != nil {
		return fmt.Errorf("failed to find %s: %w", name, err)
	}
	v.State = varstore.VarAdded
	return v.SetData(data)
}

// GetBootEntries retrieves all active BootXXXX variables in store order.
func (m *EDK2Manager) GetBootEntries() ([]BootEntry, error) {
	var entries []BootEntry
	for _, v := range m.varStore.Vars() {
		if !v.IsActive() || v.GUID != efi.EfiGlobalVariableGUID {
			continue
		}
		if len(v.Name) != 8 || v.Name[:4] != efi.BootPrefix {
			continue
		}
		index, err := strconv.ParseUint(v.Name[4:], 16, 16)
		if err != nil {
			continue
		}

		be, err := efi.ParseBootEntry(v.Data)
		if err != nil {
			m.logger.V(1).Info("skipping undecodable boot entry", "name", v.Name, "error", err.Error())
			continue
		}

		entry := BootEntry{
			Index:   uint16(index),
			Name:    v.Name,
			Title:   be.Title,
			DevPath: be.DevicePath.String(),
			Active:  be.IsActive(),
			Hidden:  be.IsHidden(),
		}
		if t, ok := m.bootMap.Target(entry.Index); ok {
			entry.Target = &t
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// GetVariable retrieves the active instance of a firmware variable.
func (m *EDK2Manager) GetVariable(name string, guid efi.GUID) (*varstore.AuthVariable, error) {
	for _, v := range m.varStore.Vars() {
		if v.IsActive() && v.Matches(name, guid) {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w: %s/%s", ErrVariableNotFound, efi.GuidName(guid), name)
}

// ListVariables lists all firmware variable records.
func (m *EDK2Manager) ListVariables() efi.EfiVarListJSON {
	return m.varStore.Volume().Variables()
}

// Write stores the variables to path, or back to the loaded file when path
// is empty.
func (m *EDK2Manager) Write(path string) error {
	if err := m.varStore.WriteVarStore(path); err != nil {
		return fmt.Errorf("failed to write variable store: %w", err)
	}
	return nil
}

// SaveChanges writes the firmware variables back to the firmware file.
func (m *EDK2Manager) SaveChanges() error {
	return m.Write("")
}

// RevertChanges discards any changes made to the firmware variables.
func (m *EDK2Manager) RevertChanges() error {
	return m.load()
}

func bootNames(order []uint16) []string {
	names := make([]string, len(order))
	for i, idx := range order {
		names[i] = fmt.Sprintf("Boot%04X", idx)
	}
	return names
}

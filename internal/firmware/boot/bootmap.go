package boot

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strconv"

	"github.com/bmcpi/uefivars/internal/firmware/efi"
	"github.com/bmcpi/uefivars/internal/firmware/varstore"
)

var bootEntryName = regexp.MustCompile(`^Boot0[0-9A-Fa-f]{3}$`)

// Map relates BootXXXX indexes to the targets they boot. It is computed once
// from the variable store and never changes afterwards.
type Map struct {
	entries map[uint16]Target
	reverse map[Target]uint16
	paths   []uint16
	skipped map[uint16]error
}

// Build derives the boot map from the active BootXXXX variables under the
// global GUID. Inactive and hidden entries are left out, as are entries
// that fail to decode.
func Build(vars []*varstore.AuthVariable) *Map {
	type candidate struct {
		index uint16
		v     *varstore.AuthVariable
	}

	var candidates []candidate
	for _, v := range vars {
		if !v.IsActive() || v.GUID != efi.EfiGlobalVariableGUID || !bootEntryName.MatchString(v.Name) {
			continue
		}
		i, err := strconv.ParseUint(v.Name[len(efi.BootPrefix):], 16, 16)
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{uint16(i), v})
	}
	slices.SortStableFunc(candidates, func(a, b candidate) int {
		return int(a.index) - int(b.index)
	})

	m := &Map{
		entries: make(map[uint16]Target),
		reverse: make(map[Target]uint16),
		skipped: make(map[uint16]error),
	}

	for _, c := range candidates {
		entry, err := efi.ParseBootEntry(c.v.Data)
		if err != nil {
			m.skipped[c.index] = fmt.Errorf("%s: %w", c.v.Name, err)
			continue
		}
		if !entry.IsActive() || entry.IsHidden() {
			continue
		}

		t, ok := classify(entry)
		if !ok {
			continue
		}
		if t.Kind == KindPath {
			m.paths = append(m.paths, c.index)
		}
		m.entries[c.index] = t
	}

	for _, i := range m.Indexes() {
		m.reverse[m.entries[i]] = i
	}
	for _, i := range m.Indexes() {
		m.reverse[Boot(int(i))] = i
	}
	for n, i := range m.paths {
		m.reverse[PathIndex(n)] = i
	}

	return m
}

// classify picks the target a load option boots, preferring network boot
// over plain PCI, then applications, then file paths.
func classify(entry *efi.BootEntry) (Target, bool) {
	pci, hasPCI := entry.PCI()
	_, hasURI := entry.URI()

	switch {
	case hasPCI && hasURI:
		return PCI(pci).WithProto(ProtoHTTP), true
	case hasPCI:
		return PCI(pci), true
	}
	if guid, ok := entry.AppGUID(); ok {
		return App(guid.String()), true
	}
	if p, ok := entry.FilePath(); ok {
		return Path(p), true
	}
	return Target{}, false
}

// Lookup returns the BootXXXX index for a target.
func (m *Map) Lookup(t Target) (uint16, bool) {
	i, ok := m.reverse[t]
	return i, ok
}

// Target returns the target of a BootXXXX index.
func (m *Map) Target(i uint16) (Target, bool) {
	t, ok := m.entries[i]
	return t, ok
}

// Indexes returns the mapped BootXXXX indexes in ascending order.
func (m *Map) Indexes() []uint16 {
	return slices.Sorted(maps.Keys(m.entries))
}

// Entries returns a copy of the index to target map.
func (m *Map) Entries() map[uint16]Target {
	return maps.Clone(m.entries)
}

// Reverse returns a copy of the target to index map.
func (m *Map) Reverse() map[Target]uint16 {
	return maps.Clone(m.reverse)
}

// Paths returns the indexes of file path entries in ascending order.
func (m *Map) Paths() []uint16 {
	return slices.Clone(m.paths)
}

// Skipped returns the decode errors of BootXXXX variables left out of the map.
func (m *Map) Skipped() map[uint16]error {
	return maps.Clone(m.skipped)
}

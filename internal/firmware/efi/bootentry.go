package efi

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
)

// Load option attributes
const (
	LOAD_OPTION_ACTIVE          uint32 = 0x00000001
	LOAD_OPTION_FORCE_RECONNECT uint32 = 0x00000002
	LOAD_OPTION_HIDDEN          uint32 = 0x00000008
	LOAD_OPTION_CATEGORY        uint32 = 0x00001f00
	LOAD_OPTION_CATEGORY_BOOT   uint32 = 0x00000000
	LOAD_OPTION_CATEGORY_APP    uint32 = 0x00000100
)

// BootEntry represents an EFI_LOAD_OPTION stored in a BootXXXX variable
type BootEntry struct {
	Attr       uint32
	// PathSize is the device path list length as stored. Zero means it is
	// computed from DevicePath when encoding.
	PathSize   uint16
	Title      string
	DevicePath *DevicePath
	OptData    []byte
}

// NewBootEntry creates an active boot entry for the given path
func NewBootEntry(title string, devicePath *DevicePath) *BootEntry {
	return &BootEntry{
		Attr:       LOAD_OPTION_ACTIVE,
		Title:      title,
		DevicePath: devicePath,
	}
}

// ParseBootEntry decodes the payload of a BootXXXX variable. The device path
// is read node by node up to its end node; any bytes after it are optional
// data.
func ParseBootEntry(data []byte) (*BootEntry, error) {
	if len(data) < 6 {
		return nil, fmt.Errorf("boot entry header: %w", io.ErrUnexpectedEOF)
	}

	entry := &BootEntry{
		Attr:     binary.LittleEndian.Uint32(data[0:4]),
		PathSize: binary.LittleEndian.Uint16(data[4:6]),
	}

	title, n, err := ReadUCS16String(data[6:])
	if err != nil {
		return nil, fmt.Errorf("boot entry title: %w", err)
	}
	entry.Title = title

	pathOffset := 6 + n
	dp, n, err := ParseDevicePath(data[pathOffset:])
	if err != nil {
		return nil, fmt.Errorf("boot entry %q: %w", title, err)
	}
	entry.DevicePath = dp

	if optOffset := pathOffset + n; optOffset < len(data) {
		entry.OptData = bytes.Clone(data[optOffset:])
	}

	return entry, nil
}

// Bytes returns the binary representation of the BootEntry
func (entry *BootEntry) Bytes() []byte {
	dp := entry.DevicePath
	if dp == nil {
		dp = NewDevicePath()
	}
	pathData := dp.Bytes()

	pathSize := entry.PathSize
	if pathSize == 0 {
		pathSize = uint16(len(pathData))
	}

	out := binary.LittleEndian.AppendUint32(nil, entry.Attr)
	out = binary.LittleEndian.AppendUint16(out, pathSize)
	out = append(out, UTF8ToUCS16(entry.Title)...)
	out = append(out, pathData...)
	return append(out, entry.OptData...)
}

func (entry *BootEntry) String() string {
	devpath := ""
	if entry.DevicePath != nil {
		devpath = entry.DevicePath.String()
	}
	result := fmt.Sprintf("title=%q devpath=%s", entry.Title, devpath)
	if entry.OptData != nil {
		result += fmt.Sprintf(" optdata=%s", hex.EncodeToString(entry.OptData))
	}
	return result
}

// IsActive returns whether the boot entry is active
func (entry *BootEntry) IsActive() bool {
	return (entry.Attr & LOAD_OPTION_ACTIVE) != 0
}

// SetActive sets or clears the active flag
func (entry *BootEntry) SetActive(active bool) {
	if active {
		entry.Attr |= LOAD_OPTION_ACTIVE
	} else {
		entry.Attr &^= LOAD_OPTION_ACTIVE
	}
}

// IsHidden returns whether the boot entry is hidden
func (entry *BootEntry) IsHidden() bool {
	return (entry.Attr & LOAD_OPTION_HIDDEN) != 0
}

// SetHidden sets or clears the hidden flag
func (entry *BootEntry) SetHidden(hidden bool) {
	if hidden {
		entry.Attr |= LOAD_OPTION_HIDDEN
	} else {
		entry.Attr &^= LOAD_OPTION_HIDDEN
	}
}

// Category returns the category of the boot entry
func (entry *BootEntry) Category() uint32 {
	return entry.Attr & LOAD_OPTION_CATEGORY
}

// SetCategory sets the category of the boot entry
func (entry *BootEntry) SetCategory(category uint32) {
	entry.Attr &^= LOAD_OPTION_CATEGORY
	entry.Attr |= (category & LOAD_OPTION_CATEGORY)
}

// lastElem returns the last node of the given type and subtype. A size of
// -1 accepts any payload length.
func (entry *BootEntry) lastElem(devtype DeviceType, subtype DeviceSubType, size int) *DevicePathElem {
	if entry.DevicePath == nil {
		return nil
	}
	var found *DevicePathElem
	for _, elem := range entry.DevicePath.Elems() {
		if elem.Devtype != devtype || elem.Subtype != subtype {
			continue
		}
		if size < 0 || len(elem.Data) == size {
			found = elem
		}
	}
	return found
}

// PCI returns the "device.function" of the last PCI node in the path.
func (entry *BootEntry) PCI() (string, bool) {
	elem := entry.lastElem(DevTypeHardware, DevSubTypePCI, 2)
	if elem == nil {
		return "", false
	}
	return fmt.Sprintf("%d.%d", elem.Data[1], elem.Data[0]), true
}

// URI returns the contents of the last URI node in the path.
func (entry *BootEntry) URI() (string, bool) {
	elem := entry.lastElem(DevTypeMessage, DevSubTypeURI, -1)
	if elem == nil {
		return "", false
	}
	return string(elem.Data), true
}

// AppGUID returns the GUID of the last firmware volume file node.
func (entry *BootEntry) AppGUID() (GUID, bool) {
	elem := entry.lastElem(DevTypeMedia, DevSubTypeFVFilename, GUIDSize)
	if elem == nil {
		return GUID{}, false
	}
	guid, err := GUIDFromBytes(elem.Data)
	if err != nil {
		return GUID{}, false
	}
	return guid, true
}

// FilePath returns the last file path node in the path.
func (entry *BootEntry) FilePath() (string, bool) {
	elem := entry.lastElem(DevTypeMedia, DevSubTypeFilePath, -1)
	if elem == nil {
		return "", false
	}
	return UCS16ToUTF8(elem.Data), true
}

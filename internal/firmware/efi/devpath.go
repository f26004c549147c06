package efi

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DeviceType represents the type of EFI device path element
type DeviceType uint8

const (
	DevTypeHardware DeviceType = 0x01
	DevTypeAcpi     DeviceType = 0x02
	DevTypeMessage  DeviceType = 0x03
	DevTypeMedia    DeviceType = 0x04
	DevTypeFile     DeviceType = 0x05
	DevTypeEnd      DeviceType = 0x7f
)

// DeviceSubType represents the subtype of EFI device path element
type DeviceSubType uint8

// Hardware subtypes
const (
	DevSubTypePCI      DeviceSubType = 0x01
	DevSubTypeVendorHW DeviceSubType = 0x04
)

// ACPI subtypes
const (
	DevSubTypeACPI DeviceSubType = 0x01
)

// Message subtypes
const (
	DevSubTypeSCSI DeviceSubType = 0x02
	DevSubTypeUSB  DeviceSubType = 0x05
	DevSubTypeMAC  DeviceSubType = 0x0b
	DevSubTypeIPv4 DeviceSubType = 0x0c
	DevSubTypeIPv6 DeviceSubType = 0x0d
	DevSubTypeSATA DeviceSubType = 0x12
	DevSubTypeURI  DeviceSubType = 0x18
)

// Media subtypes
const (
	DevSubTypePartition  DeviceSubType = 0x01
	DevSubTypeFilePath   DeviceSubType = 0x04
	DevSubTypeFVFilename DeviceSubType = 0x06
	DevSubTypeFVName     DeviceSubType = 0x07
)

// End subtypes
const (
	DevSubTypeEndInstance DeviceSubType = 0x01
	DevSubTypeEndEntire   DeviceSubType = 0xff
)

const devicePathHeaderSize = 4

var errDevicePathLength = errors.New("invalid device path node length")

// DevicePathElem represents a device path element
type DevicePathElem struct {
	Devtype DeviceType
	Subtype DeviceSubType
	Data    []byte
}

// NewDevicePathElem returns an end-of-path element.
func NewDevicePathElem() *DevicePathElem {
	return &DevicePathElem{
		Devtype: DevTypeEnd,
		Subtype: DevSubTypeEndEntire,
		Data:    []byte{},
	}
}

// ParseDevicePathElem decodes a single node from the start of data and
// returns it with its encoded length.
func ParseDevicePathElem(data []byte) (*DevicePathElem, int, error) {
	if len(data) < devicePathHeaderSize {
		return nil, 0, fmt.Errorf("device path node: %w", io.ErrUnexpectedEOF)
	}
	size := int(binary.LittleEndian.Uint16(data[2:4]))
	if size < devicePathHeaderSize {
		return nil, 0, fmt.Errorf("%w: %d", errDevicePathLength, size)
	}
	if size > len(data) {
		return nil, 0, fmt.Errorf("device path node of %d bytes: %w", size, io.ErrUnexpectedEOF)
	}
	dpe := &DevicePathElem{
		Devtype: DeviceType(data[0]),
		Subtype: DeviceSubType(data[1]),
		Data:    bytes.Clone(data[devicePathHeaderSize:size]),
	}
	return dpe, size, nil
}

// IsEnd reports whether the element terminates the whole device path.
func (dpe *DevicePathElem) IsEnd() bool {
	return dpe.Devtype == DevTypeEnd && dpe.Subtype == DevSubTypeEndEntire
}

func (dpe *DevicePathElem) set_pci(dev, fn uint8) {
	dpe.Devtype = DevTypeHardware // hw
	dpe.Subtype = DevSubTypePCI   // pci
	dpe.Data = []byte{fn, dev}
}

func (dpe *DevicePathElem) set_acpi(hid, uid uint32) {
	dpe.Devtype = DevTypeAcpi    // acpi
	dpe.Subtype = DevSubTypeACPI // acpi
	dpe.Data = binary.LittleEndian.AppendUint32(nil, hid)
	dpe.Data = binary.LittleEndian.AppendUint32(dpe.Data, uid)
}

func (dpe *DevicePathElem) set_mac() {
	dpe.Devtype = DevTypeMessage // msg
	dpe.Subtype = DevSubTypeMAC  // mac
	dpe.Data = make([]byte, 33)  // addr[32] + iftype
}

func (dpe *DevicePathElem) set_ipv4() {
	dpe.Devtype = DevTypeMessage // msg
	dpe.Subtype = DevSubTypeIPv4 // ipv4
	dpe.Data = make([]byte, 23)  // use dhcp
}

func (dpe *DevicePathElem) set_uri(uri string) {
	dpe.Devtype = DevTypeMessage // msg
	dpe.Subtype = DevSubTypeURI  // uri
	dpe.Data = []byte(uri)
}

func (dpe *DevicePathElem) set_filepath(filepath string) {
	dpe.Devtype = DevTypeMedia       // media
	dpe.Subtype = DevSubTypeFilePath // filepath
	dpe.Data = UTF8ToUCS16(filepath)
}

func (dpe *DevicePathElem) set_fvname(guid GUID) {
	dpe.Devtype = DevTypeMedia     // media
	dpe.Subtype = DevSubTypeFVName // fv name
	dpe.Data = guid.BytesLE()
}

func (dpe *DevicePathElem) set_fvfilename(guid GUID) {
	dpe.Devtype = DevTypeMedia         // media
	dpe.Subtype = DevSubTypeFVFilename // fv filename
	dpe.Data = guid.BytesLE()
}

func (dpe *DevicePathElem) fmt_hw() string {
	if dpe.Subtype == DevSubTypePCI && len(dpe.Data) >= 2 {
		return fmt.Sprintf("PCI(dev=%02x:%x)", dpe.Data[1], dpe.Data[0])
	}
	if dpe.Subtype == DevSubTypeVendorHW {
		if guid, err := GUIDFromBytes(dpe.Data[:min(len(dpe.Data), GUIDSize)]); err == nil {
			return fmt.Sprintf("VendorHW(%s)", guid)
		}
	}
	return fmt.Sprintf("HW(subtype=0x%x)", uint8(dpe.Subtype))
}

func (dpe *DevicePathElem) fmt_acpi() string {
	if dpe.Subtype == DevSubTypeACPI && len(dpe.Data) >= 8 {
		hid := binary.LittleEndian.Uint32(dpe.Data[0:4])
		uid := binary.LittleEndian.Uint32(dpe.Data[4:8])
		if hid == 0xa0341d0 {
			return "PciRoot()"
		}
		return fmt.Sprintf("ACPI(hid=0x%x,uid=0x%x)", hid, uid)
	}
	return fmt.Sprintf("ACPI(subtype=0x%x)", uint8(dpe.Subtype))
}

func (dpe *DevicePathElem) fmt_msg() string {
	switch dpe.Subtype {
	case DevSubTypeSCSI:
		if len(dpe.Data) >= 4 {
			pun := binary.LittleEndian.Uint16(dpe.Data[0:2])
			lun := binary.LittleEndian.Uint16(dpe.Data[2:4])
			return fmt.Sprintf("SCSI(pun=%d,lun=%d)", pun, lun)
		}
	case DevSubTypeUSB:
		if len(dpe.Data) >= 2 {
			return fmt.Sprintf("USB(port=%d)", dpe.Data[0])
		}
	case DevSubTypeMAC:
		return "MAC()"
	case DevSubTypeIPv4:
		return "IPv4()"
	case DevSubTypeIPv6:
		return "IPv6()"
	case DevSubTypeSATA:
		if len(dpe.Data) >= 2 {
			return fmt.Sprintf("SATA(port=%d)", binary.LittleEndian.Uint16(dpe.Data[0:2]))
		}
	case DevSubTypeURI:
		return fmt.Sprintf("URI(%s)", string(dpe.Data))
	}
	return fmt.Sprintf("Msg(subtype=0x%x)", uint8(dpe.Subtype))
}

func (dpe *DevicePathElem) fmt_media() string {
	switch dpe.Subtype {
	case DevSubTypePartition:
		if len(dpe.Data) >= 4 {
			return fmt.Sprintf("Partition(nr=%d)", binary.LittleEndian.Uint32(dpe.Data[0:4]))
		}
	case DevSubTypeFilePath:
		return fmt.Sprintf("FilePath(%s)", UCS16ToUTF8(dpe.Data))
	case DevSubTypeFVFilename:
		if guid, err := GUIDFromBytes(dpe.Data); err == nil {
			return fmt.Sprintf("FvFileName(%s)", guid)
		}
	case DevSubTypeFVName:
		if guid, err := GUIDFromBytes(dpe.Data); err == nil {
			return fmt.Sprintf("FvName(%s)", guid)
		}
	}
	return fmt.Sprintf("Media(subtype=0x%x)", uint8(dpe.Subtype))
}

func (dpe *DevicePathElem) size() int {
	return len(dpe.Data) + devicePathHeaderSize
}

func (dpe *DevicePathElem) Bytes() []byte {
	b := make([]byte, 0, dpe.size())
	b = append(b, uint8(dpe.Devtype), uint8(dpe.Subtype))
	b = binary.LittleEndian.AppendUint16(b, uint16(dpe.size()))
	return append(b, dpe.Data...)
}

func (dpe *DevicePathElem) String() string {
	switch dpe.Devtype {
	case DevTypeHardware:
		return dpe.fmt_hw()
	case DevTypeAcpi:
		return dpe.fmt_acpi()
	case DevTypeMessage:
		return dpe.fmt_msg()
	case DevTypeMedia:
		return dpe.fmt_media()
	case DevTypeEnd:
		if dpe.Subtype == DevSubTypeEndInstance {
			return "EndInstance()"
		}
		return "End()"
	}
	return fmt.Sprintf("Unknown(type=0x%x,subtype=0x%x)", uint8(dpe.Devtype), uint8(dpe.Subtype))
}

func (dpe *DevicePathElem) Equal(other *DevicePathElem) bool {
	if dpe.Devtype != other.Devtype {
		return false
	}
	if dpe.Subtype != other.Subtype {
		return false
	}
	if dpe.Devtype == DevTypeMedia && dpe.Subtype == DevSubTypeFilePath {
		p1 := strings.ToLower(UCS16ToUTF8(dpe.Data))
		p2 := strings.ToLower(UCS16ToUTF8(other.Data))
		return p1 == p2
	}
	return bytes.Equal(dpe.Data, other.Data)
}

// DevicePath represents an efi device path. The terminating end node is
// implied and not stored.
type DevicePath struct {
	elems []*DevicePathElem
}

// NewDevicePath returns an empty device path ready for the builder methods.
func NewDevicePath() *DevicePath {
	return &DevicePath{elems: []*DevicePathElem{}}
}

// ParseDevicePath decodes nodes from data up to and including the end of
// entire path node. End of instance nodes are kept. It returns the number of
// bytes consumed.
func ParseDevicePath(data []byte) (*DevicePath, int, error) {
	dp := NewDevicePath()
	pos := 0
	for {
		elem, n, err := ParseDevicePathElem(data[pos:])
		if err != nil {
			return nil, 0, fmt.Errorf("device path at offset %d: %w", pos, err)
		}
		pos += n
		if elem.IsEnd() {
			return dp, pos, nil
		}
		dp.elems = append(dp.elems, elem)
	}
}

func (dp *DevicePath) Elems() []*DevicePathElem {
	return dp.elems
}

func (dp *DevicePath) Append(elem *DevicePathElem) *DevicePath {
	dp.elems = append(dp.elems, elem)
	return dp
}

func (dp *DevicePath) PciRoot() *DevicePath {
	elem := NewDevicePathElem()
	elem.set_acpi(0xa0341d0, 0)
	return dp.Append(elem)
}

func (dp *DevicePath) PCI(dev, fn uint8) *DevicePath {
	elem := NewDevicePathElem()
	elem.set_pci(dev, fn)
	return dp.Append(elem)
}

func (dp *DevicePath) Mac() *DevicePath {
	elem := NewDevicePathElem()
	elem.set_mac()
	return dp.Append(elem)
}

func (dp *DevicePath) IPv4() *DevicePath {
	elem := NewDevicePathElem()
	elem.set_ipv4()
	return dp.Append(elem)
}

func (dp *DevicePath) URI(uri string) *DevicePath {
	elem := NewDevicePathElem()
	elem.set_uri(uri)
	return dp.Append(elem)
}

func (dp *DevicePath) FilePath(filepath string) *DevicePath {
	elem := NewDevicePathElem()
	elem.set_filepath(filepath)
	return dp.Append(elem)
}

func (dp *DevicePath) FvName(guid GUID) *DevicePath {
	elem := NewDevicePathElem()
	elem.set_fvname(guid)
	return dp.Append(elem)
}

func (dp *DevicePath) FVFileName(guid GUID) *DevicePath {
	elem := NewDevicePathElem()
	elem.set_fvfilename(guid)
	return dp.Append(elem)
}

func (dp *DevicePath) Bytes() []byte {
	var blob bytes.Buffer
	for _, elem := range dp.elems {
		blob.Write(elem.Bytes())
	}
	blob.Write(NewDevicePathElem().Bytes())
	return blob.Bytes()
}

func (dp *DevicePath) String() string {
	parts := make([]string, 0, len(dp.elems))
	for _, elem := range dp.elems {
		parts = append(parts, elem.String())
	}
	return strings.Join(parts, "/")
}

func (dp *DevicePath) Equal(other *DevicePath) bool {
	if len(dp.elems) != len(other.elems) {
		return false
	}
	for i := range dp.elems {
		if !dp.elems[i].Equal(other.elems[i]) {
			return false
		}
	}
	return true
}

package efi

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// VariableAttributes is the EFI variable attribute bitfield.
type VariableAttributes uint32

const (
	EFI_VARIABLE_NON_VOLATILE                          VariableAttributes = 0x00000001
	EFI_VARIABLE_BOOTSERVICE_ACCESS                    VariableAttributes = 0x00000002
	EFI_VARIABLE_RUNTIME_ACCESS                        VariableAttributes = 0x00000004
	EFI_VARIABLE_HARDWARE_ERROR_RECORD                 VariableAttributes = 0x00000008
	EFI_VARIABLE_TIME_BASED_AUTHENTICATED_WRITE_ACCESS VariableAttributes = 0x00000020
	EFI_VARIABLE_APPEND_WRITE                          VariableAttributes = 0x00000040
)

// DefaultAttributes are applied to variables created by this package.
const DefaultAttributes = EFI_VARIABLE_NON_VOLATILE |
	EFI_VARIABLE_BOOTSERVICE_ACCESS |
	EFI_VARIABLE_RUNTIME_ACCESS

const (
	BootOrderName = "BootOrder"
	BootNextName  = "BootNext"
	BootPrefix    = "Boot"
)

var attrNames = []struct {
	attr VariableAttributes
	name string
}{
	{EFI_VARIABLE_NON_VOLATILE, "NV"},
	{EFI_VARIABLE_BOOTSERVICE_ACCESS, "BS"},
	{EFI_VARIABLE_RUNTIME_ACCESS, "RT"},
	{EFI_VARIABLE_HARDWARE_ERROR_RECORD, "HR"},
	{EFI_VARIABLE_TIME_BASED_AUTHENTICATED_WRITE_ACCESS, "AT"},
	{EFI_VARIABLE_APPEND_WRITE, "AW"},
}

// Has reports whether every bit in attr is set.
func (a VariableAttributes) Has(attr VariableAttributes) bool {
	return a&attr == attr
}

func (a VariableAttributes) String() string {
	var parts []string
	rest := a
	for _, n := range attrNames {
		if a.Has(n.attr) {
			parts = append(parts, n.name)
			rest &^= n.attr
		}
	}
	if rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint32(rest)))
	}
	return strings.Join(parts, "|")
}

// CreateBootOrderData encodes a boot order as consecutive little endian u16s.
func CreateBootOrderData(order []uint16) []byte {
	data := make([]byte, 0, 2*len(order))
	for _, id := range order {
		data = binary.LittleEndian.AppendUint16(data, id)
	}
	return data
}

// ParseBootOrder decodes BootOrder variable data.
func ParseBootOrder(data []byte) ([]uint16, error) {
	if len(data) == 0 || len(data)%2 != 0 {
		return nil, fmt.Errorf("invalid boot order data length %d", len(data))
	}
	order := make([]uint16, len(data)/2)
	for i := range order {
		order[i] = binary.LittleEndian.Uint16(data[2*i:])
	}
	return order, nil
}

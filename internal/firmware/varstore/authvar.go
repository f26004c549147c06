package varstore

import (
	"fmt"

	"github.com/bmcpi/uefivars/internal/firmware/efi"
	"github.com/ccoveille/go-safecast"
)

// VariableData marks the start of every variable record.
const VariableData uint16 = 0x55aa

// Variable states. A state byte only ever has bits cleared, so the
// transition states are the intersection of their endpoints.
const (
	VarAdded               uint8 = 0x3f
	VarDeleted             uint8 = 0xfd
	VarInDeletedTransition uint8 = 0xfe
	VarHeaderValidOnly     uint8 = 0x7f
	VarAddedTransition           = VarAdded & VarInDeletedTransition
	VarDeletedTransition         = VarAdded & VarDeleted & VarInDeletedTransition
)

// AuthVariable is one authenticated variable record of the store.
type AuthVariable struct {
	// Offset is the position of the record in the volume when parsed.
	Offset int

	StartID     uint16
	State       uint8
	Reserved    uint8
	Attributes  efi.VariableAttributes
	Count       uint64
	Timestamp   efi.EfiTime
	PubKeyIndex uint32
	NameLen     uint32
	DataLen     uint32
	GUID        efi.GUID
	Name        string
	Data        []byte

	// Next is the u16 that followed the record when parsed. Anything other
	// than VariableData makes this the last record written out.
	Next uint16
}

// newAuthVariable returns an active variable with default attributes.
func newAuthVariable(name string, guid efi.GUID) (*AuthVariable, error) {
	namelen, err := safecast.ToUint32(2 * (len([]rune(name)) + 1))
	if err != nil {
		return nil, fmt.Errorf("variable name %q: %w", name, err)
	}
	return &AuthVariable{
		StartID:    VariableData,
		State:      VarAdded,
		Attributes: efi.DefaultAttributes,
		NameLen:    namelen,
		GUID:       guid,
		Name:       name,
		Data:       []byte{},
	}, nil
}

// SetData replaces the payload and keeps DataLen in step.
func (v *AuthVariable) SetData(data []byte) error {
	n, err := safecast.ToUint32(len(data))
	if err != nil {
		return fmt.Errorf("variable %s data: %w", v.Name, err)
	}
	v.Data = data
	v.DataLen = n
	return nil
}

// IsActive reports whether the record is in the ADDED state.
func (v *AuthVariable) IsActive() bool {
	return v.State == VarAdded
}

// Matches reports whether the record carries the given name and vendor GUID.
func (v *AuthVariable) Matches(name string, guid efi.GUID) bool {
	return v.Name == name && v.GUID == guid
}

// StateName renders the state byte for humans.
func (v *AuthVariable) StateName() string {
	switch v.State {
	case VarAdded:
		return "added"
	case VarDeleted:
		return "deleted"
	case VarInDeletedTransition:
		return "in-deleted-transition"
	case VarHeaderValidOnly:
		return "header-valid-only"
	case VarAddedTransition:
		return "added-transition"
	case VarDeletedTransition:
		return "deleted-transition"
	}
	return fmt.Sprintf("0x%02x", v.State)
}

// JSON returns the dump representation of the record.
func (v *AuthVariable) JSON() efi.EfiVarJSON {
	return efi.NewEfiVarJSON(v.Name, v.GUID, v.StateName(), v.Attributes, v.Data, v.Timestamp)
}

func (v *AuthVariable) String() string {
	return fmt.Sprintf("%s/%s state=%s size=%d", efi.GuidName(v.GUID), v.Name, v.StateName(), v.DataLen)
}

// readAuthVariable decodes one record at the reader position, including the
// data padding and a peek at the following u16.
func readAuthVariable(r *reader) (*AuthVariable, error) {
	v := &AuthVariable{Offset: r.pos}
	var err error

	if v.StartID, err = r.u16("variable start id"); err != nil {
		return nil, err
	}
	if v.State, err = r.u8("variable state"); err != nil {
		return nil, err
	}
	if v.Reserved, err = r.u8("variable reserved"); err != nil {
		return nil, err
	}
	attr, err := r.u32("variable attributes")
	if err != nil {
		return nil, err
	}
	v.Attributes = efi.VariableAttributes(attr)
	if v.Count, err = r.u64("variable count"); err != nil {
		return nil, err
	}
	if v.Timestamp, err = r.time("variable timestamp"); err != nil {
		return nil, err
	}
	if v.PubKeyIndex, err = r.u32("variable pubkey index"); err != nil {
		return nil, err
	}
	if v.NameLen, err = r.u32("variable name length"); err != nil {
		return nil, err
	}
	if v.DataLen, err = r.u32("variable data length"); err != nil {
		return nil, err
	}
	if v.GUID, err = r.guid("variable guid"); err != nil {
		return nil, err
	}
	if v.Name, err = r.ucs16("variable name"); err != nil {
		return nil, err
	}
	datalen, err := safecast.ToInt(v.DataLen)
	if err != nil {
		return nil, fmt.Errorf("variable %s data length: %w", v.Name, err)
	}
	if v.Data, err = r.bytes(datalen, "variable "+v.Name+" data"); err != nil {
		return nil, err
	}
	if err := r.align(4, "variable "+v.Name+" padding"); err != nil {
		return nil, err
	}
	v.Next = r.peek16()

	return v, nil
}

// writeTo appends the record followed by 0xff padding to a 4 byte boundary.
func (v *AuthVariable) writeTo(w *writer) error {
	if uint64(len(v.Data)) != uint64(v.DataLen) {
		return fmt.Errorf("variable %s: %w: have %d bytes, header says %d",
			v.Name, ErrDataLength, len(v.Data), v.DataLen)
	}
	w.u16(v.StartID)
	w.u8(v.State)
	w.u8(v.Reserved)
	w.u32(uint32(v.Attributes))
	w.u64(v.Count)
	w.bytes(v.Timestamp.Bytes())
	w.u32(v.PubKeyIndex)
	w.u32(v.NameLen)
	w.u32(v.DataLen)
	w.guid(v.GUID)
	w.bytes(efi.UTF8ToUCS16(v.Name))
	w.bytes(v.Data)
	w.align(4, 0xff)
	return nil
}

// readAuthVariables decodes records while the next u16 is VariableData.
func readAuthVariables(r *reader) ([]*AuthVariable, error) {
	var vars []*AuthVariable
	for r.peek16() == VariableData {
		v, err := readAuthVariable(r)
		if err != nil {
			return nil, fmt.Errorf("variable %d: %w", len(vars), err)
		}
		vars = append(vars, v)
		if v.Next != VariableData {
			break
		}
	}
	return vars, nil
}

// writeAuthVariables emits records up to and including the first one whose
// Next is not VariableData. A list without such a record cannot be encoded.
func writeAuthVariables(w *writer, vars []*AuthVariable) error {
	for _, v := range vars {
		if err := v.writeTo(w); err != nil {
			return err
		}
		if v.Next != VariableData {
			return nil
		}
	}
	return ErrUnterminatedList
}

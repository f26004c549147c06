package varstore

import (
	"errors"
	"fmt"

	"github.com/bmcpi/uefivars/internal/firmware/efi"
)

// VolumeSize is the size of the variable store firmware volume at the start
// of an EDK2 NVRAM image. The event log and fault tolerant write areas
// follow it.
const VolumeSize = 0xe000

const (
	fvSignature    = "_FVH"
	fvRevision     = 2
	storeFormatted = 0x5a
	storeHealthy   = 0xfe
)

var (
	ErrInvalidVarStore   = errors.New("invalid variable store")
	ErrNotFirmwareVolume = errors.New("not a firmware volume")
	ErrExtHeader         = errors.New("unsupported firmware volume extended header")
	ErrRevision          = errors.New("unsupported firmware volume revision")
	ErrStoreFormat       = errors.New("variable store is not formatted")
	ErrStoreState        = errors.New("variable store is not healthy")
	ErrDataLength        = errors.New("data length mismatch")
	ErrUnterminatedList  = errors.New("variable list has no terminal record")
	ErrOverflow          = errors.New("variable store too large")
)

// BlockMapEntry is one (count, length) pair of the volume block map.
type BlockMapEntry struct {
	Num uint32
	Len uint32
}

func (b BlockMapEntry) isTerminator() bool {
	return b.Num == 0 && b.Len == 0
}

// VariableStoreHeader precedes the variable records.
type VariableStoreHeader struct {
	GUID      efi.GUID
	Size      uint32
	Format    uint8
	State     uint8
	Reserved1 uint16
	Reserved2 uint32
}

// Volume is the decoded variable store firmware volume.
type Volume struct {
	ZeroVector  [2]uint64
	GUID        efi.GUID
	VolSize     uint64
	Attributes  uint32
	HeaderLen   uint16
	Checksum    uint16
	ExtHdrOff   uint16
	Reserved    uint8
	Revision    uint8
	BlockMap    []BlockMapEntry // terminator included
	StoreHeader VariableStoreHeader
	Vars        []*AuthVariable
}

// ParseVolume decodes a firmware volume from the start of data.
func ParseVolume(data []byte) (*Volume, error) {
	r := &reader{data: data}
	vol := &Volume{}
	var err error

	for i := range vol.ZeroVector {
		if vol.ZeroVector[i], err = r.u64("zero vector"); err != nil {
			return nil, err
		}
	}
	if vol.GUID, err = r.guid("volume guid"); err != nil {
		return nil, err
	}
	if vol.VolSize, err = r.u64("volume size"); err != nil {
		return nil, err
	}
	sig, err := r.bytes(len(fvSignature), "volume signature")
	if err != nil {
		return nil, err
	}
	if string(sig) != fvSignature {
		return nil, fmt.Errorf("%w: signature %q", ErrNotFirmwareVolume, sig)
	}
	if vol.Attributes, err = r.u32("volume attributes"); err != nil {
		return nil, err
	}
	if vol.HeaderLen, err = r.u16("volume header length"); err != nil {
		return nil, err
	}
	if vol.Checksum, err = r.u16("volume checksum"); err != nil {
		return nil, err
	}
	if vol.ExtHdrOff, err = r.u16("volume extended header offset"); err != nil {
		return nil, err
	}
	if vol.ExtHdrOff != 0 {
		return nil, fmt.Errorf("%w: offset 0x%x", ErrExtHeader, vol.ExtHdrOff)
	}
	if vol.Reserved, err = r.u8("volume reserved"); err != nil {
		return nil, err
	}
	if vol.Revision, err = r.u8("volume revision"); err != nil {
		return nil, err
	}
	if vol.Revision != fvRevision {
		return nil, fmt.Errorf("%w: %d", ErrRevision, vol.Revision)
	}

	for {
		var entry BlockMapEntry
		if entry.Num, err = r.u32("block map count"); err != nil {
			return nil, err
		}
		if entry.Len, err = r.u32("block map length"); err != nil {
			return nil, err
		}
		vol.BlockMap = append(vol.BlockMap, entry)
		if entry.isTerminator() {
			break
		}
	}

	if vol.StoreHeader, err = readStoreHeader(r); err != nil {
		return nil, err
	}

	if vol.Vars, err = readAuthVariables(r); err != nil {
		return nil, err
	}

	return vol, nil
}

func readStoreHeader(r *reader) (VariableStoreHeader, error) {
	var h VariableStoreHeader
	var err error

	if h.GUID, err = r.guid("store guid"); err != nil {
		return h, err
	}
	if h.Size, err = r.u32("store size"); err != nil {
		return h, err
	}
	if h.Format, err = r.u8("store format"); err != nil {
		return h, err
	}
	if h.Format != storeFormatted {
		return h, fmt.Errorf("%w: format 0x%02x", ErrStoreFormat, h.Format)
	}
	if h.State, err = r.u8("store state"); err != nil {
		return h, err
	}
	if h.State != storeHealthy {
		return h, fmt.Errorf("%w: state 0x%02x", ErrStoreState, h.State)
	}
	if h.Reserved1, err = r.u16("store reserved"); err != nil {
		return h, err
	}
	if h.Reserved2, err = r.u32("store reserved"); err != nil {
		return h, err
	}
	return h, nil
}

// Bytes encodes the volume. The result is not padded to VolumeSize.
func (vol *Volume) Bytes() ([]byte, error) {
	w := &writer{buf: make([]byte, 0, VolumeSize)}

	for _, z := range vol.ZeroVector {
		w.u64(z)
	}
	w.guid(vol.GUID)
	w.u64(vol.VolSize)
	w.bytes([]byte(fvSignature))
	w.u32(vol.Attributes)
	w.u16(vol.HeaderLen)
	w.u16(vol.Checksum)
	w.u16(0)
	w.u8(vol.Reserved)
	w.u8(fvRevision)

	terminated := false
	for _, entry := range vol.BlockMap {
		w.u32(entry.Num)
		w.u32(entry.Len)
		if entry.isTerminator() {
			terminated = true
			break
		}
	}
	if !terminated {
		w.u32(0)
		w.u32(0)
	}

	h := vol.StoreHeader
	w.guid(h.GUID)
	w.u32(h.Size)
	w.u8(storeFormatted)
	w.u8(storeHealthy)
	w.u16(h.Reserved1)
	w.u32(h.Reserved2)

	if len(vol.Vars) > 0 {
		if err := writeAuthVariables(w, vol.Vars); err != nil {
			return nil, err
		}
	}

	return w.buf, nil
}

// Variables returns the dump representation of every record.
func (vol *Volume) Variables() efi.EfiVarListJSON {
	list := efi.EfiVarListJSON{Version: 2}
	for _, v := range vol.Vars {
		list.Variables = append(list.Variables, v.JSON())
	}
	return list
}

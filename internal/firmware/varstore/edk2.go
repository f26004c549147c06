package varstore

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bmcpi/uefivars/internal/firmware/efi"
	"github.com/google/renameio"
	"go.uber.org/multierr"
)

// Edk2VarStore is an EDK2 NVRAM image loaded from disk.
type Edk2VarStore struct {
	filename string
	volume   *Volume
}

// NewEdk2VarStore reads the variable store volume from the start of filename.
// Decoding failures wrap ErrInvalidVarStore; I/O errors are returned as is.
func NewEdk2VarStore(filename string) (*Edk2VarStore, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open varstore: %w", err)
	}
	defer f.Close()

	data := make([]byte, VolumeSize)
	n, err := io.ReadFull(f, data)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read varstore: %w", err)
	}

	vol, err := ParseVolume(data[:n])
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", filename, ErrInvalidVarStore, err)
	}

	return &Edk2VarStore{filename: filename, volume: vol}, nil
}

// Filename is the path the store was loaded from.
func (vs *Edk2VarStore) Filename() string {
	return vs.filename
}

// Volume exposes the decoded firmware volume.
func (vs *Edk2VarStore) Volume() *Volume {
	return vs.volume
}

// Vars returns the variable records in store order.
func (vs *Edk2VarStore) Vars() []*AuthVariable {
	return vs.volume.Vars
}

// FindVar returns the active record for name and guid. Without one, the last
// stale record is returned so that it can be revived in place. If the
// variable has never existed a new record is appended.
func (vs *Edk2VarStore) FindVar(name string, guid efi.GUID) (*AuthVariable, error) {
	var last *AuthVariable
	for _, v := range vs.volume.Vars {
		if !v.Matches(name, guid) {
			continue
		}
		if v.IsActive() {
			return v, nil
		}
		last = v
	}
	if last != nil {
		return last, nil
	}

	v, err := newAuthVariable(name, guid)
	if err != nil {
		return nil, err
	}
	if n := len(vs.volume.Vars); n > 0 {
		vs.volume.Vars[n-1].Next = VariableData
	}
	vs.volume.Vars = append(vs.volume.Vars, v)
	return v, nil
}

// Defrag drops deleted records. A record caught in the added transition is
// kept and promoted when no active record of the same name exists.
func (vs *Edk2VarStore) Defrag() {
	type key struct {
		guid efi.GUID
		name string
	}

	added := make(map[key]bool)
	for _, v := range vs.volume.Vars {
		if v.IsActive() {
			added[key{v.GUID, v.Name}] = true
		}
	}

	vars := make([]*AuthVariable, 0, len(added))
	for _, v := range vs.volume.Vars {
		if v.IsActive() || (v.State == VarAddedTransition && !added[key{v.GUID, v.Name}]) {
			vars = append(vars, v)
		}
	}

	for i, v := range vars {
		v.State = VarAdded
		v.Next = VariableData
		if i == len(vars)-1 {
			v.Next = 0xffff
		}
	}

	vs.volume.Vars = vars
}

// encode builds the volume, defragmenting once if it does not fit.
func (vs *Edk2VarStore) encode() ([]byte, error) {
	blob, err := vs.volume.Bytes()
	if err != nil {
		return nil, err
	}
	if len(blob) <= VolumeSize {
		return blob, nil
	}

	vs.Defrag()
	if blob, err = vs.volume.Bytes(); err != nil {
		return nil, err
	}
	if len(blob) > VolumeSize {
		return nil, fmt.Errorf("%w: 0x%x bytes, limit 0x%x", ErrOverflow, len(blob), VolumeSize)
	}
	return blob, nil
}

// WriteVarStore writes the store to filename, or back to the file it was
// loaded from when filename is empty. Everything after the volume is copied
// from the source file. The target is replaced atomically and is left alone
// on any error.
func (vs *Edk2VarStore) WriteVarStore(filename string) (err error) {
	if filename == "" {
		filename = vs.filename
	}

	blob, err := vs.encode()
	if err != nil {
		return err
	}

	src, err := os.ReadFile(vs.filename)
	if err != nil {
		return fmt.Errorf("failed to read varstore: %w", err)
	}
	fi, err := os.Stat(vs.filename)
	if err != nil {
		return fmt.Errorf("failed to stat varstore: %w", err)
	}

	out := bytes.Clone(src)
	if len(out) < VolumeSize {
		out = append(out, make([]byte, VolumeSize-len(out))...)
	}
	copy(out, blob)
	for i := len(blob); i < VolumeSize; i++ {
		out[i] = 0xff
	}

	pending, err := renameio.TempFile(filepath.Dir(filename), filename)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		err = multierr.Append(err, pending.Cleanup())
	}()

	if _, err := pending.Write(out); err != nil {
		return fmt.Errorf("failed to write varstore: %w", err)
	}
	if err := pending.Chmod(fi.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to set varstore mode: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("failed to replace %s: %w", filename, err)
	}

	return nil
}

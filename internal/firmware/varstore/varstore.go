package varstore

import "github.com/bmcpi/uefivars/internal/firmware/efi"

// VarStore is the variable store view used by the boot manager.
type VarStore interface {
	Vars() []*AuthVariable
	FindVar(name string, guid efi.GUID) (*AuthVariable, error)
	Defrag()
	WriteVarStore(filename string) error
}

var _ VarStore = (*Edk2VarStore)(nil)

// Package manager provides implementations for firmware management interfaces.
package manager

import (
	"errors"

	"github.com/bmcpi/uefivars/internal/firmware/boot"
	"github.com/bmcpi/uefivars/internal/firmware/efi"
	"github.com/bmcpi/uefivars/internal/firmware/varstore"
)

var (
	ErrNoBootTargets     = errors.New("none of the requested boot targets exist")
	ErrUnknownBootTarget = errors.New("unknown boot target")
	ErrVariableNotFound  = errors.New("variable not found")
)

// BootEntry is a decoded BootXXXX variable.
type BootEntry struct {
	Index   uint16       `json:"index"`
	Name    string       `json:"name"`
	Title   string       `json:"title"`
	DevPath string       `json:"devpath"`
	Active  bool         `json:"active"`
	Hidden  bool         `json:"hidden"`
	Target  *boot.Target `json:"target,omitempty"`
}

// FirmwareManager edits the boot configuration held in a firmware variable
// store.
type FirmwareManager interface {
	BootMap() *boot.Map
	GetBootOrder() ([]uint16, error)
	SetBootOrder(targets []boot.Target) error
	GetBootNext() (uint16, error)
	SetBootNext(target boot.Target) error
	GetBootEntries() ([]BootEntry, error)
	GetVariable(name string, guid efi.GUID) (*varstore.AuthVariable, error)
	ListVariables() efi.EfiVarListJSON
	SaveChanges() error
	RevertChanges() error
}

var _ FirmwareManager = (*EDK2Manager)(nil)

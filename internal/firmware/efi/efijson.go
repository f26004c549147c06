package efi

import (
	"encoding/hex"
	"encoding/json"
)

// EfiVarJSON represents the JSON structure for an EFI variable
type EfiVarJSON struct {
	Name  string `json:"name"`
	GUID  string `json:"guid"`
	State string `json:"state"`
	Attr  string `json:"attr"`
	Data  string `json:"data"`           // hex encoded
	Time  string `json:"time,omitempty"` // yyyy-mm-dd hh:mm:ss
	Entry string `json:"entry,omitempty"`
}

// EfiVarListJSON represents the JSON structure for a list of EFI variables
type EfiVarListJSON struct {
	Version   int          `json:"version"`
	Variables []EfiVarJSON `json:"variables"`
}

// NewEfiVarJSON builds the dump representation of a single variable. Boot
// entries are decoded into a human readable summary when possible.
func NewEfiVarJSON(name string, guid GUID, state string, attr VariableAttributes, data []byte, ts EfiTime) EfiVarJSON {
	result := EfiVarJSON{
		Name:  name,
		GUID:  GuidName(guid),
		State: state,
		Attr:  attr.String(),
		Data:  hex.EncodeToString(data),
	}
	if !ts.IsZero() {
		result.Time = ts.String()
	}
	if guid == EfiGlobalVariableGUID && isBootEntryName(name) {
		if entry, err := ParseBootEntry(data); err == nil {
			result.Entry = entry.String()
		}
	}
	return result
}

// MarshalJSON implements the json.Marshaler interface for EfiVarListJSON
func (list EfiVarListJSON) MarshalJSON() ([]byte, error) {
	type plain EfiVarListJSON
	if list.Variables == nil {
		list.Variables = []EfiVarJSON{}
	}
	return json.Marshal(plain(list))
}

func isBootEntryName(name string) bool {
	if len(name) != len(BootPrefix)+4 || name[:len(BootPrefix)] != BootPrefix {
		return false
	}
	for _, c := range name[len(BootPrefix):] {
		if !(c >= '0' && c <= '9' || c >= 'A' && c <= 'F' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}

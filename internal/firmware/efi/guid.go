package efi

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// GUIDSize is the on-disk size of an EFI_GUID.
const GUIDSize = 16

// Well known vendor GUIDs.
const (
	EfiGlobalVariable = "8be4df61-93ca-11d2-aa0d-00e098032b8c"
	NvData            = "fff12b8d-7696-4c8b-a985-2747075b4f50"
	AuthVars          = "aaf32c78-947b-439a-a180-2e144ec37792"
)

var (
	EfiGlobalVariableGUID = MustParseGUID(EfiGlobalVariable)
	NvDataGUID            = MustParseGUID(NvData)
	AuthVarsGUID          = MustParseGUID(AuthVars)
)

var errGUIDLength = errors.New("GUID must be 16 bytes")

// GUID holds an EFI_GUID in firmware byte order: the first three fields are
// little endian, the last eight bytes are stored as is.
type GUID [GUIDSize]byte

// ParseGUID parses the canonical text form of a GUID.
func ParseGUID(s string) (GUID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return GUID{}, fmt.Errorf("invalid GUID %q: %w", s, err)
	}
	return GUIDFromUUID(u), nil
}

// MustParseGUID is like ParseGUID but panics on malformed input.
func MustParseGUID(s string) GUID {
	g, err := ParseGUID(s)
	if err != nil {
		panic(err)
	}
	return g
}

// GUIDFromBytes copies a GUID out of raw firmware bytes.
func GUIDFromBytes(b []byte) (GUID, error) {
	var g GUID
	if len(b) != GUIDSize {
		return g, fmt.Errorf("%w: got %d", errGUIDLength, len(b))
	}
	copy(g[:], b)
	return g, nil
}

// GUIDFromUUID converts an RFC 4122 (big endian) UUID into firmware order.
func GUIDFromUUID(u uuid.UUID) GUID {
	return GUID{
		u[3], u[2], u[1], u[0],
		u[5], u[4],
		u[7], u[6],
		u[8], u[9], u[10], u[11], u[12], u[13], u[14], u[15],
	}
}

// UUID returns the GUID in RFC 4122 byte order.
func (g GUID) UUID() uuid.UUID {
	return uuid.UUID{
		g[3], g[2], g[1], g[0],
		g[5], g[4],
		g[7], g[6],
		g[8], g[9], g[10], g[11], g[12], g[13], g[14], g[15],
	}
}

// BytesLE returns the firmware representation.
func (g GUID) BytesLE() []byte {
	b := make([]byte, GUIDSize)
	copy(b, g[:])
	return b
}

func (g GUID) String() string {
	return g.UUID().String()
}

// GuidName returns a short name for well known GUIDs, the GUID text otherwise.
func GuidName(g GUID) string {
	switch g {
	case EfiGlobalVariableGUID:
		return "EfiGlobalVariable"
	case NvDataGUID:
		return "NvData"
	case AuthVarsGUID:
		return "AuthVars"
	}
	return g.String()
}

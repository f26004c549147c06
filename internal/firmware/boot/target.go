package boot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bmcpi/uefivars/internal/firmware/efi"
)

// Kind classifies a boot target.
type Kind string

const (
	KindPCI       Kind = "pci"
	KindApp       Kind = "app"
	KindPath      Kind = "path"
	KindBoot      Kind = "boot"
	KindPathIndex Kind = "pathidx"
)

// ProtoHTTP marks a network target that boots over HTTP instead of PXE.
const ProtoHTTP = "http"

var ErrInvalidTarget = errors.New("invalid boot target")

// Target identifies a boot option either by what it boots (a PCI function,
// an application GUID, a file path) or by position (BootXXXX index, nth
// file path entry). Targets are comparable and used as map keys.
type Target struct {
	Kind  Kind
	Value string
	Index int
	Proto string
}

// PCI returns the target for a "device.function" PCI address.
func PCI(addr string) Target {
	return Target{Kind: KindPCI, Value: addr}
}

// App returns the target for a firmware application GUID.
func App(guid string) Target {
	return Target{Kind: KindApp, Value: strings.ToLower(guid)}
}

// Path returns the target for a file path boot entry.
func Path(p string) Target {
	return Target{Kind: KindPath, Value: p}
}

// Boot returns the target for the BootXXXX variable with the given index.
func Boot(i int) Target {
	return Target{Kind: KindBoot, Index: i}
}

// PathIndex returns the target for the nth file path boot entry.
func PathIndex(i int) Target {
	return Target{Kind: KindPathIndex, Index: i}
}

// WithProto returns a copy of t carrying a boot protocol.
func (t Target) WithProto(proto string) Target {
	t.Proto = proto
	return t
}

func (t Target) String() string {
	var s string
	switch t.Kind {
	case KindBoot:
		s = fmt.Sprintf("boot%d", t.Index)
	case KindPathIndex:
		s = fmt.Sprintf("path%d", t.Index)
	default:
		s = fmt.Sprintf("%s:%s", t.Kind, t.Value)
	}
	if t.Proto != "" {
		s += "=" + t.Proto
	}
	return s
}

// MarshalText renders the target for YAML and JSON output.
func (t Target) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// ParseTarget parses the literal forms "pci:<dev>.<fn>", "app:<guid>" and
// "path:<file>", each optionally followed by "=pxe" or "=http". File paths
// may contain "=".
func ParseTarget(s string) (Target, error) {
	s, proto := cutProto(s)

	kind, value, ok := strings.Cut(s, ":")
	if !ok || value == "" {
		return Target{}, fmt.Errorf("%w: %q", ErrInvalidTarget, s)
	}
	if Kind(kind) != KindPath {
		if _, param, ok := strings.Cut(value, "="); ok {
			return Target{}, fmt.Errorf("%w: %q: %w %q", ErrInvalidTarget, s, ErrInvalidProtocol, param)
		}
	}

	var t Target
	switch Kind(kind) {
	case KindPCI:
		dev, fn, ok := strings.Cut(value, ".")
		if !ok {
			return Target{}, fmt.Errorf("%w: %q: want <dev>.<fn>", ErrInvalidTarget, s)
		}
		d, err := strconv.ParseUint(dev, 10, 8)
		if err != nil {
			return Target{}, fmt.Errorf("%w: %q: %w", ErrInvalidTarget, s, err)
		}
		f, err := strconv.ParseUint(fn, 10, 8)
		if err != nil {
			return Target{}, fmt.Errorf("%w: %q: %w", ErrInvalidTarget, s, err)
		}
		t = PCI(fmt.Sprintf("%d.%d", d, f))
	case KindApp:
		guid, err := efi.ParseGUID(value)
		if err != nil {
			return Target{}, fmt.Errorf("%w: %w", ErrInvalidTarget, err)
		}
		t = App(guid.String())
	case KindPath:
		t = Path(value)
	default:
		return Target{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidTarget, kind)
	}

	return t.WithProto(proto), nil
}

// cutProto strips a trailing "=pxe" or "=http".
func cutProto(s string) (string, string) {
	i := strings.LastIndex(s, "=")
	if i < 0 {
		return s, ""
	}
	switch s[i+1:] {
	case "pxe":
		return s[:i], ""
	case ProtoHTTP:
		return s[:i], ProtoHTTP
	}
	return s, ""
}

package boot

import (
	"errors"
	"fmt"
	"maps"
	"regexp"
	"strconv"
	"strings"
)

// PCI slots of the devices a VM is built with.
const (
	CDROMSlot    = 3
	BootDiskSlot = 4
	DiskSlot     = 5
	NetSlot      = 6
	DiskSlot2    = 8
)

// ShellGUID is the EDK2 UEFI shell application.
const ShellGUID = "7c04a583-9e3e-4f1c-ad65-e05268d0b4d1"

// DefaultOrder is used when no boot order is configured.
const DefaultOrder = "path0,bootdisk,cdrom0"

var ErrInvalidProtocol = errors.New("invalid boot protocol")

var (
	pathToken = regexp.MustCompile(`^path(\d+)?$`)
	bootToken = regexp.MustCompile(`^boot(\d+)$`)
)

// Devices describes the storage and network devices attached to the VM.
type Devices struct {
	BootDisk bool
	Disks    int
	CDROMs   int
	NICs     int
}

// Resolver turns boot order tokens into targets.
type Resolver struct {
	options map[string]Target
	aliases map[string]string
}

// NewResolver returns a resolver knowing the UEFI shell and the "cd" and
// "dc" order aliases.
func NewResolver() *Resolver {
	return &Resolver{
		options: map[string]Target{
			"shell": App(ShellGUID),
		},
		aliases: map[string]string{
			"cd": "path0,bootdisk,cdrom0",
			"dc": "cdrom0,path0,bootdisk",
		},
	}
}

// AddOption registers a named target.
func (r *Resolver) AddOption(name string, t Target) {
	r.options[name] = t
}

// AddIndexedOption registers name followed by i. The first device of a kind
// is also reachable by the bare name.
func (r *Resolver) AddIndexedOption(name string, i int, t Target) {
	r.options[name+strconv.Itoa(i)] = t
	if i == 0 {
		r.options[name] = t
	}
}

// AddAlias registers a shorthand that expands to a full boot order.
func (r *Resolver) AddAlias(name, order string) {
	r.aliases[name] = order
}

// AddDevices registers the conventional option names for the VM devices.
func (r *Resolver) AddDevices(d Devices) {
	for i := range d.CDROMs {
		r.AddIndexedOption("cdrom", i, PCI(fmt.Sprintf("%d.%d", CDROMSlot, i)))
	}
	if d.BootDisk {
		r.AddOption("bootdisk", PCI(fmt.Sprintf("%d.0", BootDiskSlot)))
	}
	for i := range d.Disks {
		if i < 8 {
			r.AddIndexedOption("disk", i, PCI(fmt.Sprintf("%d.%d", DiskSlot, i)))
		} else {
			r.AddIndexedOption("disk", i, PCI(fmt.Sprintf("%d.%d", DiskSlot2, i-8)))
		}
	}
	for i := range d.NICs {
		r.AddIndexedOption("net", i, PCI(fmt.Sprintf("%d.%d", NetSlot, i)))
	}
}

// Options returns a copy of the named targets.
func (r *Resolver) Options() map[string]Target {
	return maps.Clone(r.options)
}

// Resolve maps a single token to a target. Unknown names, out of range
// indexes and malformed literals resolve to false without an error. Only an
// unsupported network protocol is an error.
func (r *Resolver) Resolve(token string) (Target, bool, error) {
	token = strings.TrimSpace(token)

	if m := pathToken.FindStringSubmatch(token); m != nil {
		n := 0
		if m[1] != "" {
			var err error
			if n, err = strconv.Atoi(m[1]); err != nil {
				return Target{}, false, nil
			}
		}
		return PathIndex(n), true, nil
	}

	if m := bootToken.FindStringSubmatch(token); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return Target{}, false, nil
		}
		return Boot(n), true, nil
	}

	if strings.HasPrefix(token, "pci:") || strings.HasPrefix(token, "app:") || strings.HasPrefix(token, "path:") {
		t, err := ParseTarget(token)
		if err != nil {
			return Target{}, false, nil
		}
		return t, true, nil
	}

	var proto string
	if strings.HasPrefix(token, "net") {
		var param string
		token, param, _ = strings.Cut(token, "=")
		switch param {
		case "", "pxe":
		case ProtoHTTP:
			proto = ProtoHTTP
		default:
			return Target{}, false, fmt.Errorf("%w %q for %q", ErrInvalidProtocol, param, token)
		}
	}

	t, ok := r.options[token]
	if !ok {
		return Target{}, false, nil
	}
	if proto != "" {
		t = t.WithProto(proto)
	}
	return t, true, nil
}

// ExpandOrder replaces a whole-order alias with its expansion.
func (r *Resolver) ExpandOrder(order string) string {
	if exp, ok := r.aliases[strings.TrimSpace(order)]; ok {
		return exp
	}
	return order
}

// ResolveOrder resolves a comma separated boot order. Unknown tokens are
// dropped.
func (r *Resolver) ResolveOrder(order string) ([]Target, error) {
	var targets []Target
	for _, token := range strings.Split(r.ExpandOrder(order), ",") {
		if strings.TrimSpace(token) == "" {
			continue
		}
		t, ok, err := r.Resolve(token)
		if err != nil {
			return nil, err
		}
		if ok {
			targets = append(targets, t)
		}
	}
	return targets, nil
}

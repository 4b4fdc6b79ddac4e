package config

import (
	"fmt"
	"net/netip"
	"sort"
	"strings"
)

type ResourceKind int

const (
	ResourcePort ResourceKind = iota
	ResourceSystemFDOffset
	ResourceStdin
)

// Resource is something only one component may claim, such as a listening
// address. Resources are only used to detect conflicts before startup.
type Resource struct {
	Kind     ResourceKind
	Addr     netip.AddrPort
	FDOffset int
}

func Port(addr netip.AddrPort) Resource {
	return Resource{Kind: ResourcePort, Addr: addr}
}

func SystemFDOffset(offset int) Resource {
	return Resource{Kind: ResourceSystemFDOffset, FDOffset: offset}
}

func Stdin() Resource {
	return Resource{Kind: ResourceStdin}
}

// ParsePort parses a listen address. A missing host, as in ":9000", means
// every interface.
func ParsePort(address string) (Resource, error) {
	if strings.HasPrefix(address, ":") {
		address = "0.0.0.0" + address
	}
	addr, err := netip.ParseAddrPort(address)
	if err != nil {
		return Resource{}, fmt.Errorf("invalid address %q: %w", address, err)
	}
	return Port(addr), nil
}

func (r Resource) String() string {
	switch r.Kind {
	case ResourcePort:
		return "port " + r.Addr.String()
	case ResourceSystemFDOffset:
		return fmt.Sprintf("systemd fd offset %d", r.FDOffset)
	case ResourceStdin:
		return "stdin"
	}
	return fmt.Sprintf("resource(%d)", int(r.Kind))
}

// ComponentResources lists the resources claimed by one component.
type ComponentResources struct {
	Name      string
	Resources []Resource
}

// Conflicts returns the sorted names of all components that claim a
// resource another component also claims. A port bound to the unspecified
// address occupies that port on every interface, so it conflicts with any
// other claim on the same port number.
func Conflicts(components []ComponentResources) []string {
	claims := make(map[Resource]map[string]struct{})
	type wildcard struct {
		name string
		port uint16
	}
	var wildcards []wildcard

	for _, c := range components {
		for _, r := range c.Resources {
			if r.Kind == ResourcePort && r.Addr.Addr().IsUnspecified() {
				wildcards = append(wildcards, wildcard{name: c.Name, port: r.Addr.Port()})
			}
			names, ok := claims[r]
			if !ok {
				names = make(map[string]struct{})
				claims[r] = names
			}
			names[c.Name] = struct{}{}
		}
	}

	for _, w := range wildcards {
		for r, names := range claims {
			if r.Kind == ResourcePort && r.Addr.Port() == w.port {
				names[w.name] = struct{}{}
			}
		}
	}

	conflicting := make(map[string]struct{})
	for _, names := range claims {
		if len(names) > 1 {
			for name := range names {
				conflicting[name] = struct{}{}
			}
		}
	}

	result := make([]string, 0, len(conflicting))
	for name := range conflicting {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

package model

import (
	"net/netip"
	"regexp"
	"strconv"
	"strings"
)

// Network interface types supported by Vagrant.
const (
	NetworkPrivate       = "private_network"
	NetworkPublic        = "public_network"
	NetworkForwardedPort = "forwarded_port"
)

// IP assignment methods.
const (
	IPStatic = "static"
	IPDHCP   = "dhcp"
)

// Forwarded port protocols.
const (
	ProtocolTCP = "tcp"
	ProtocolUDP = "udp"
)

const DefaultNetmask = "255.255.255.0"

var bridgeRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidationOptions carries request-scoped validation switches.
type ValidationOptions struct {
	// AllowPublicIPs skips the RFC 1918 range check for private_network addresses.
	AllowPublicIPs bool
}

// NetworkInterface is one config.vm.network entry.
type NetworkInterface struct {
	ID           string `json:"id" yaml:"id"`
	Type         string `json:"type" yaml:"type"`
	IPAssignment string `json:"ip_assignment" yaml:"ip_assignment"`
	IPAddress    string `json:"ip_address,omitempty" yaml:"ip_address,omitempty"`
	Netmask      string `json:"netmask" yaml:"netmask"`
	Bridge       string `json:"bridge,omitempty" yaml:"bridge,omitempty"`
	HostPort     int    `json:"host_port,omitempty" yaml:"host_port,omitempty"`
	GuestPort    int    `json:"guest_port,omitempty" yaml:"guest_port,omitempty"`
	Protocol     string `json:"protocol" yaml:"protocol"`
}

// Normalize fills defaults and generates an ID when missing.
func (n *NetworkInterface) Normalize() {
	if n.ID == "" {
		n.ID = NewID()
	}
	n.IPAddress = strings.TrimSpace(n.IPAddress)
	n.Bridge = strings.TrimSpace(n.Bridge)
	if n.IPAssignment == "" {
		n.IPAssignment = IPDHCP
	}
	if n.Netmask == "" {
		n.Netmask = DefaultNetmask
	}
	if n.Protocol == "" {
		n.Protocol = ProtocolTCP
	}
}

// IsStatic reports whether the interface uses a fixed address.
func (n *NetworkInterface) IsStatic() bool {
	return n.IPAssignment == IPStatic
}

// Validate checks field formats. Cross-field completeness checks such as a
// forwarded port missing one side are reported by the validate package as
// generation errors, matching how the UI saves partially filled interfaces.
func (n *NetworkInterface) Validate(opts ValidationOptions) error {
	switch n.Type {
	case NetworkPrivate, NetworkPublic, NetworkForwardedPort:
	default:
		return invalid("type", "must be %q, %q, or %q", NetworkPrivate, NetworkPublic, NetworkForwardedPort)
	}
	switch n.IPAssignment {
	case IPStatic, IPDHCP:
	default:
		return invalid("ip_assignment", "must be %q or %q", IPStatic, IPDHCP)
	}
	switch n.Protocol {
	case ProtocolTCP, ProtocolUDP:
	default:
		return invalid("protocol", "must be %q or %q", ProtocolTCP, ProtocolUDP)
	}

	if n.IPAddress == "" {
		if n.IsStatic() {
			return invalid("ip_address", "IP address is required for static IP assignment")
		}
	} else if err := validateIPv4(n.IPAddress, n.Type == NetworkPrivate && !opts.AllowPublicIPs); err != nil {
		return err
	}

	if err := validateNetmask(n.Netmask); err != nil {
		return err
	}

	if n.Bridge != "" && !bridgeRe.MatchString(n.Bridge) {
		return invalid("bridge", "Bridge interface name contains invalid characters")
	}

	if n.HostPort != 0 && (n.HostPort < 1 || n.HostPort > 65535) {
		return invalid("host_port", "Port number must be between 1 and 65535")
	}
	if n.GuestPort != 0 && (n.GuestPort < 1 || n.GuestPort > 65535) {
		return invalid("guest_port", "Port number must be between 1 and 65535")
	}
	return nil
}

var reservedPrefix = netip.MustParsePrefix("240.0.0.0/4")

func validateIPv4(s string, requirePrivate bool) error {
	addr, err := netip.ParseAddr(s)
	if err != nil || !addr.Is4() {
		return invalid("ip_address", "Invalid IPv4 address: %s", s)
	}
	switch {
	case addr.IsLoopback():
		return invalid("ip_address", "Loopback addresses not allowed")
	case addr.IsMulticast():
		return invalid("ip_address", "Multicast addresses not allowed")
	case reservedPrefix.Contains(addr):
		return invalid("ip_address", "Reserved IP addresses not allowed")
	}
	if strings.HasSuffix(addr.String(), ".1") {
		return invalid("ip_address", "IP addresses ending with .1 are not allowed (typically reserved for network gateway)")
	}
	if requirePrivate && !IsPrivateIPv4(addr) {
		return invalid("ip_address", "Private network IP address should be in a private network range (192.168.x.x, 10.x.x.x, or 172.16-31.x.x)")
	}
	return nil
}

// IsPrivateIPv4 reports whether addr is in 10/8, 172.16/12 or 192.168/16.
func IsPrivateIPv4(addr netip.Addr) bool {
	b := addr.As4()
	switch {
	case b[0] == 10:
		return true
	case b[0] == 172 && b[1] >= 16 && b[1] <= 31:
		return true
	case b[0] == 192 && b[1] == 168:
		return true
	}
	return false
}

func validateNetmask(s string) error {
	if strings.HasPrefix(s, "/") {
		n, err := strconv.Atoi(s[1:])
		if err != nil {
			return invalid("netmask", "Invalid CIDR notation format")
		}
		if n < 0 || n > 32 {
			return invalid("netmask", "CIDR notation must be between /0 and /32")
		}
		return nil
	}
	if addr, err := netip.ParseAddr(s); err != nil || !addr.Is4() {
		return invalid("netmask", "Invalid netmask format")
	}
	return nil
}

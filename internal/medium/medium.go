// Package medium models KNX transmission media and their addressing:
// medium kinds, individual (device) addresses, per-medium settings, and
// the domain address encoding used on open media.
package medium

import (
	"fmt"
	"strconv"
	"strings"

	kerrors "knxtool/internal/errors"
)

// Kind identifies a KNX transmission medium.  The values follow the
// medium type codes of the device descriptor.
type Kind int

const (
	TP1   Kind = 0x02 // twisted pair
	PL110 Kind = 0x04 // power line
	RF    Kind = 0x10 // radio frequency
	KNXIP Kind = 0x20 // KNX IP
)

// ParseKind maps a medium identifier from the command line to a Kind.
func ParseKind(id string) (Kind, error) {
	switch strings.ToLower(id) {
	case "tp1":
		return TP1, nil
	case "p110", "pl110":
		return PL110, nil
	case "rf":
		return RF, nil
	case "knxip", "ip":
		return KNXIP, nil
	}
	return 0, &kerrors.ConfigError{
		Field:   "medium",
		Value:   id,
		Message: "unknown KNX medium",
		Hint:    "supported media are tp1, p110, knxip, rf",
	}
}

func (k Kind) String() string {
	switch k {
	case TP1:
		return "TP1"
	case PL110:
		return "PL110"
	case RF:
		return "RF"
	case KNXIP:
		return "KNX IP"
	}
	return fmt.Sprintf("medium 0x%02x", int(k))
}

// ── Individual addresses ─────────────────────────────────────────────

// IndividualAddress is the 16-bit device address area.line.device.
type IndividualAddress uint16

// BackboneRouter is the default device address of an unconfigured
// backbone router (0.0.0).
const BackboneRouter IndividualAddress = 0

// Unregistered is the default subnetwork and device address assigned to
// an unregistered routing endpoint (15.15.255).
const Unregistered IndividualAddress = 0xffff

// Address assembles an individual address from its area (4 bit), line
// (4 bit), and device (8 bit) parts.
func Address(area, line, device int) IndividualAddress {
	return IndividualAddress(area&0xf)<<12 | IndividualAddress(line&0xf)<<8 |
		IndividualAddress(device&0xff)
}

// ParseAddress parses the textual form "area.line.device".
func ParseAddress(s string) (IndividualAddress, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return 0, addressError(s, "expected area.line.device")
	}
	area, err := strconv.Atoi(parts[0])
	if err != nil || area < 0 || area > 15 {
		return 0, addressError(s, "area must be 0..15")
	}
	line, err := strconv.Atoi(parts[1])
	if err != nil || line < 0 || line > 15 {
		return 0, addressError(s, "line must be 0..15")
	}
	device, err := strconv.Atoi(parts[2])
	if err != nil || device < 0 || device > 255 {
		return 0, addressError(s, "device must be 0..255")
	}
	return Address(area, line, device), nil
}

func addressError(s, msg string) error {
	return &kerrors.ConfigError{Field: "knx-address", Value: s, Message: msg}
}

func (a IndividualAddress) String() string {
	return fmt.Sprintf("%d.%d.%d", a>>12, a>>8&0xf, a&0xff)
}

// ── Medium settings ──────────────────────────────────────────────────

// Settings holds the per-medium configuration of a link: the medium
// kind, the device address of the local endpoint, and the domain
// address on open media.  Mutated in place when a device or domain
// address is derived during link construction.
type Settings struct {
	kind   Kind
	device IndividualAddress
	domain []byte // nil on media without domain addressing
}

// NewSettings creates settings for the given medium with the device
// address defaulting to BackboneRouter.
func NewSettings(kind Kind) *Settings {
	return &Settings{kind: kind, device: BackboneRouter}
}

// Kind returns the transmission medium.
func (s *Settings) Kind() Kind { return s.kind }

// DeviceAddress returns the device address of the local endpoint.
func (s *Settings) DeviceAddress() IndividualAddress { return s.device }

// SetDeviceAddress assigns the device address of the local endpoint.
func (s *Settings) SetDeviceAddress(a IndividualAddress) { s.device = a }

// DomainAddress returns the configured domain address, or nil.
func (s *Settings) DomainAddress() []byte { return s.domain }

// SetDomain derives the medium's domain address from a 64-bit domain
// value and stores it.  Fails on media without domain addressing.
func (s *Settings) SetDomain(value uint64) error {
	domain, err := DomainAddress(value, s.kind)
	if err != nil {
		return err
	}
	s.domain = domain
	return nil
}

func (s *Settings) String() string {
	if len(s.domain) > 0 {
		return fmt.Sprintf("%s medium, device %s, domain %x", s.kind, s.device, s.domain)
	}
	return fmt.Sprintf("%s medium, device %s", s.kind, s.device)
}

// Package config defines the validated option set shared by every
// knxtool command, together with the secret and address parsing used
// while building it.
//
// The option set is built once per command invocation and is read-only
// afterwards, with a single exception: resolving a tunneling user key
// from a keyring may backfill the matched user id (see internal/link).
package config

import (
	"encoding/hex"

	kerrors "knxtool/internal/errors"
	"knxtool/internal/medium"
)

// Options holds every tuneable for a single tool invocation.  Boolean
// transport flags follow presence semantics: set means requested.  At
// most one transport flag is honored; the link factory applies a fixed
// precedence (serial > serial-cEMI > USB > bus monitor > IP).
type Options struct {
	// ── Connection ───────────────────────────────────────────────────
	Host      string // remote host, serial port id, or USB device id
	Port      int    // remote UDP/TCP port
	LocalHost string // local IP/host name
	LocalPort int    // local port (0 = system assigned)
	NAT       bool
	TCP       bool
	UDP       bool

	// ── Transport selection ──────────────────────────────────────────
	Serial     bool // FT1.2 serial link
	SerialCEMI bool // FT1.2 link with cEMI framing
	USB        bool
	Tpuart     bool // passive TP-UART bus monitor

	// ── Medium ───────────────────────────────────────────────────────
	Medium     *medium.Settings
	Domain     *uint64                    // domain value on PL/RF media
	DeviceAddr *medium.IndividualAddress  // KNX address of the local endpoint

	// ── KNX IP Secure ────────────────────────────────────────────────
	GroupKey  []byte // multicast group (backbone) key
	User      int    // tunneling user id (0 = any/unspecified)
	UserKey   []byte // tunneling user password hash
	UserPwd   string // tunneling user password (hashed on resolution)
	DeviceKey []byte // device authentication code
	DevicePwd string // device authentication password

	// ── Keyring ──────────────────────────────────────────────────────
	KeyringPath   string
	KeyringPwd    []byte
	KeyringPwdSet bool
	Interface     *medium.IndividualAddress // tunneling interface address

	// ── Management ───────────────────────────────────────────────────
	EmulateWriteEnable bool

	// ── Output ───────────────────────────────────────────────────────
	Verbose int
}

// New returns an option set populated with defaults.
func New() *Options {
	return &Options{
		Port:   DefaultPort,
		Medium: medium.NewSettings(medium.TP1),
	}
}

// ApplyDomain derives the medium's domain address from the domain
// option, if present.  Must run after flag parsing and before link
// construction.
func (o *Options) ApplyDomain() error {
	if o.Domain == nil {
		return nil
	}
	return o.Medium.SetDomain(*o.Domain)
}

// Validate checks that the option set is internally consistent.
func (o *Options) Validate() error {
	if o.Host == "" {
		return &kerrors.ConfigError{
			Field:   "host",
			Message: "remote host, serial port, or USB device is required",
		}
	}
	if o.Port < 1 || o.Port > 65535 {
		return &kerrors.ConfigError{
			Field:   "port",
			Value:   o.Port,
			Message: "port out of range 1..65535",
		}
	}
	if o.User < 0 || o.User > MaxUser {
		return &kerrors.ConfigError{
			Field:   "user",
			Value:   o.User,
			Message: "tunneling user id out of range 0..127 (0 = unspecified)",
		}
	}
	if o.TCP && o.UDP {
		return &kerrors.ConfigError{
			Field:   "tcp",
			Message: "--tcp and --udp are mutually exclusive",
		}
	}
	if o.Medium == nil {
		return &kerrors.ConfigError{Field: "medium", Message: "medium settings missing"}
	}
	return nil
}

// ParseKey decodes a hexadecimal secret.  Valid inputs decode to
// exactly 0 or 16 bytes; any other length is a configuration error.
func ParseKey(field, hexstr string) ([]byte, error) {
	if len(hexstr) != 0 && len(hexstr) != 2*KeyLength {
		return nil, &kerrors.ConfigError{
			Field:   field,
			Value:   hexstr,
			Message: "wrong KNX key length, requires 16 bytes (32 hex chars)",
		}
	}
	key, err := hex.DecodeString(hexstr)
	if err != nil {
		return nil, &kerrors.ConfigError{
			Field:   field,
			Value:   hexstr,
			Message: "invalid hexadecimal key",
		}
	}
	return key, nil
}

package config

// flags.go - the two shared flag-registration routines used by every
// command.  Options needing conversion (medium, addresses, keys) are
// bound through pflag.Value adapters so parsing errors surface as
// configuration errors during flag parsing.

import (
	"strconv"

	flag "github.com/spf13/pflag"

	"knxtool/internal/medium"
)

// RegisterCommon registers the connection and medium flags shared by
// every command on fs.
func RegisterCommon(fs *flag.FlagSet, o *Options) {
	fs.StringVar(&o.LocalHost, "localhost", "", "local IP/host name")
	fs.IntVar(&o.LocalPort, "localport", 0, "local port (default system assigned)")
	fs.IntVarP(&o.Port, "port", "p", o.Port, "UDP/TCP port on <host>")
	fs.BoolVar(&o.UDP, "udp", false, "use UDP (default for unsecure communication)")
	fs.BoolVar(&o.TCP, "tcp", false, "use TCP (default for KNX IP secure)")
	fs.BoolVarP(&o.NAT, "nat", "n", false, "enable Network Address Translation")
	fs.BoolVarP(&o.Serial, "ft12", "f", false, "use FT1.2 serial communication")
	fs.BoolVar(&o.SerialCEMI, "ft12-cemi", false, "use FT1.2 serial communication with cEMI framing")
	fs.BoolVarP(&o.USB, "usb", "u", false, "use KNX USB communication")
	fs.BoolVar(&o.Tpuart, "tpuart", false, "use TP-UART communication")
	fs.VarP(&mediumValue{o}, "medium", "m", "KNX medium [tp1|p110|knxip|rf] (default tp1)")
	fs.Var(&domainValue{o}, "domain", "domain address on KNX PL/RF medium")
	fs.Var(&addrValue{dst: &o.DeviceAddr, field: "knx-address"}, "knx-address", "KNX device address of local endpoint")
}

// RegisterSecure registers the KNX IP Secure and keyring flags on fs.
func RegisterSecure(fs *flag.FlagSet, o *Options) {
	fs.Var(&keyValue{dst: &o.GroupKey, field: "group-key"}, "group-key", "multicast group key (backbone key, 32 hexadecimal digits)")
	fs.IntVar(&o.User, "user", 0, "tunneling user identifier (1..127)")
	fs.StringVar(&o.UserPwd, "user-pwd", "", "tunneling user password")
	fs.Var(&keyValue{dst: &o.UserKey, field: "user-key"}, "user-key", "tunneling user password hash (32 hexadecimal digits)")
	fs.StringVar(&o.DevicePwd, "device-pwd", "", "device authentication password")
	fs.Var(&keyValue{dst: &o.DeviceKey, field: "device-key"}, "device-key", "device authentication code (32 hexadecimal digits)")
	fs.StringVar(&o.KeyringPath, "keyring", "", "keyring file of the KNX installation (.knxkeys)")
	fs.Var(&passphraseValue{o}, "keyring-pwd", "keyring password")
	fs.Var(&addrValue{dst: &o.Interface, field: "interface"}, "interface", "KNX address of the tunneling interface")
}

// ── pflag.Value adapters ─────────────────────────────────────────────

type mediumValue struct{ o *Options }

func (v *mediumValue) Set(s string) error {
	kind, err := medium.ParseKind(s)
	if err != nil {
		return err
	}
	v.o.Medium = medium.NewSettings(kind)
	return nil
}

func (v *mediumValue) String() string {
	if v.o.Medium == nil {
		return ""
	}
	return v.o.Medium.Kind().String()
}

func (v *mediumValue) Type() string { return "medium" }

type domainValue struct{ o *Options }

func (v *domainValue) Set(s string) error {
	// Accepts decimal and 0x-prefixed hexadecimal domain values.
	value, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return err
	}
	v.o.Domain = &value
	return nil
}

func (v *domainValue) String() string {
	if v.o.Domain == nil {
		return ""
	}
	return "0x" + strconv.FormatUint(*v.o.Domain, 16)
}

func (v *domainValue) Type() string { return "address" }

type addrValue struct {
	dst   **medium.IndividualAddress
	field string
}

func (v *addrValue) Set(s string) error {
	a, err := medium.ParseAddress(s)
	if err != nil {
		return err
	}
	*v.dst = &a
	return nil
}

func (v *addrValue) String() string {
	if *v.dst == nil {
		return ""
	}
	return (*v.dst).String()
}

func (v *addrValue) Type() string { return "address" }

type keyValue struct {
	dst   *[]byte
	field string
}

func (v *keyValue) Set(s string) error {
	key, err := ParseKey(v.field, s)
	if err != nil {
		return err
	}
	*v.dst = key
	return nil
}

func (v *keyValue) String() string {
	if len(*v.dst) == 0 {
		return ""
	}
	return "****"
}

func (v *keyValue) Type() string { return "key" }

type passphraseValue struct{ o *Options }

func (v *passphraseValue) Set(s string) error {
	v.o.KeyringPwd = []byte(s)
	v.o.KeyringPwdSet = true
	return nil
}

func (v *passphraseValue) String() string {
	if !v.o.KeyringPwdSet {
		return ""
	}
	return "****"
}

func (v *passphraseValue) Type() string { return "password" }

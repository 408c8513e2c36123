// Package keyring loads ETS keyring files (.knxkeys) and provides
// access to the interface, device, and user credentials they carry.
// Passwords inside a keyring are stored encrypted; DecryptPassword
// recovers them with the keyring passphrase.
package keyring

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"encoding/xml"
	"os"

	"golang.org/x/crypto/pbkdf2"

	kerrors "knxtool/internal/errors"
	"knxtool/internal/medium"
)

// Password-encryption parameters of the keyring format.
const (
	keyringSalt   = "1.keyring.ets.knx.org"
	kdfIterations = 65536
	keyLength     = 16
)

// Interface is a tunneling endpoint of a secure interface, assigned to
// a user.
type Interface struct {
	Address  medium.IndividualAddress // tunnel endpoint address
	User     int
	Password []byte // encrypted user password, nil if absent
}

// Device holds the management credentials of a secure device.
type Device struct {
	Address        medium.IndividualAddress
	Password       []byte // encrypted management password, nil if absent
	Authentication []byte // encrypted device authentication code, nil if absent
}

// Keyring is a lazily-decrypted credential source for a KNX
// installation, keyed by interface address.
type Keyring struct {
	path       string
	interfaces map[medium.IndividualAddress][]Interface
	devices    map[medium.IndividualAddress]Device
}

// ── XML schema ───────────────────────────────────────────────────────

type xmlKeyring struct {
	XMLName    xml.Name       `xml:"Keyring"`
	Project    string         `xml:"Project,attr"`
	CreatedBy  string         `xml:"CreatedBy,attr"`
	Created    string         `xml:"Created,attr"`
	Interfaces []xmlInterface `xml:"Interface"`
	Devices    []xmlDevice    `xml:"Device"`
}

type xmlInterface struct {
	Type     string `xml:"Type,attr"`
	Host     string `xml:"Host,attr"`
	Address  string `xml:"IndividualAddress,attr"`
	UserID   int    `xml:"UserID,attr"`
	Password string `xml:"Password,attr"`
}

type xmlDevice struct {
	Address        string `xml:"IndividualAddress,attr"`
	Password       string `xml:"ManagementPassword,attr"`
	Authentication string `xml:"Authentication,attr"`
}

// Load reads and parses a keyring file.  Credentials stay encrypted
// until queried through DecryptPassword.
func Load(path string) (*Keyring, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, kerrors.WrapSecure("keyring", path, err)
	}
	var doc xmlKeyring
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, kerrors.WrapSecure("keyring", path, err)
	}

	k := &Keyring{
		path:       path,
		interfaces: map[medium.IndividualAddress][]Interface{},
		devices:    map[medium.IndividualAddress]Device{},
	}
	for _, xi := range doc.Interfaces {
		host, err := medium.ParseAddress(xi.Host)
		if err != nil {
			return nil, kerrors.WrapSecure("keyring", path, err)
		}
		addr, err := medium.ParseAddress(xi.Address)
		if err != nil {
			return nil, kerrors.WrapSecure("keyring", path, err)
		}
		pwd, err := decodeB64(xi.Password)
		if err != nil {
			return nil, kerrors.WrapSecure("keyring", path, err)
		}
		k.interfaces[host] = append(k.interfaces[host], Interface{
			Address:  addr,
			User:     xi.UserID,
			Password: pwd,
		})
	}
	for _, xd := range doc.Devices {
		addr, err := medium.ParseAddress(xd.Address)
		if err != nil {
			return nil, kerrors.WrapSecure("keyring", path, err)
		}
		pwd, err := decodeB64(xd.Password)
		if err != nil {
			return nil, kerrors.WrapSecure("keyring", path, err)
		}
		auth, err := decodeB64(xd.Authentication)
		if err != nil {
			return nil, kerrors.WrapSecure("keyring", path, err)
		}
		k.devices[addr] = Device{Address: addr, Password: pwd, Authentication: auth}
	}
	return k, nil
}

func decodeB64(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(s)
}

// Path returns the file the keyring was loaded from.
func (k *Keyring) Path() string { return k.path }

// Interfaces maps each secure interface address to its tunneling user
// records.
func (k *Keyring) Interfaces() map[medium.IndividualAddress][]Interface {
	return k.interfaces
}

// Devices maps each secure device address to its credential record.
func (k *Keyring) Devices() map[medium.IndividualAddress]Device {
	return k.devices
}

// DecryptPassword recovers a plaintext password from its encrypted
// form using the keyring passphrase.  The encrypted form carries the
// CBC initialization vector as its first block.
func (k *Keyring) DecryptPassword(encrypted, passphrase []byte) ([]byte, error) {
	if len(encrypted) < 2*aes.BlockSize || len(encrypted)%aes.BlockSize != 0 {
		return nil, kerrors.WrapSecure("keyring", k.path,
			kerrors.New("malformed encrypted password"))
	}
	key := passphraseKey(passphrase)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, kerrors.WrapSecure("keyring", k.path, err)
	}
	iv, ciphertext := encrypted[:aes.BlockSize], encrypted[aes.BlockSize:]
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)
	return unpad(plaintext, k.path)
}

// passphraseKey derives the password-encryption key from the keyring
// passphrase.
func passphraseKey(passphrase []byte) []byte {
	return pbkdf2.Key(passphrase, []byte(keyringSalt), kdfIterations, keyLength, sha256.New)
}

func unpad(data []byte, path string) ([]byte, error) {
	n := int(data[len(data)-1])
	if n == 0 || n > aes.BlockSize || n > len(data) {
		return nil, kerrors.WrapSecure("keyring", path,
			kerrors.New("bad padding, wrong keyring password?"))
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, kerrors.WrapSecure("keyring", path,
				kerrors.New("bad padding, wrong keyring password?"))
		}
	}
	return data[:len(data)-n], nil
}

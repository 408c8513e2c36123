package link

import (
	"knxtool/config"
	"knxtool/internal/keyring"
	"knxtool/internal/medium"
	"knxtool/internal/secure"
)

// resolver performs the tiered credential lookup for secure link
// variants: explicit key, then password hash, then keyring-derived.
// Resolving a tunneling user key from the keyring may backfill the
// matched user id into the options; that is the only mutation.
type resolver struct {
	o   *config.Options
	sec *keyring.Security
}

// userKey resolves the tunneling user key.  A nil key with a nil
// error means no credential is available; the caller decides whether
// that is fatal.
func (r resolver) userKey() ([]byte, error) {
	if len(r.o.UserKey) > 0 {
		return r.o.UserKey, nil
	}
	if r.o.UserPwd != "" {
		return secure.HashUserPassword(r.o.UserPwd), nil
	}
	return r.keyringUserKey()
}

// deviceMgmtKey resolves the management key for secure local device
// management, from the same explicit options but the keyring's device
// record.
func (r resolver) deviceMgmtKey() ([]byte, error) {
	if len(r.o.UserKey) > 0 {
		return r.o.UserKey, nil
	}
	if r.o.UserPwd != "" {
		return secure.HashUserPassword(r.o.UserPwd), nil
	}
	k, passphrase := r.sec.Keyring()
	if k == nil {
		return nil, nil
	}
	dev, ok := r.keyringDevice(k)
	if !ok || dev.Password == nil {
		return nil, nil
	}
	pwd, err := k.DecryptPassword(dev.Password, passphrase)
	if err != nil {
		return nil, err
	}
	return secure.HashUserPassword(string(pwd)), nil
}

// deviceAuth resolves the device authentication code.  It always
// yields a value: when no tier matches, the empty secret disables
// device authentication.
func (r resolver) deviceAuth() ([]byte, error) {
	if len(r.o.DeviceKey) > 0 {
		return r.o.DeviceKey, nil
	}
	if r.o.DevicePwd != "" {
		return secure.HashDeviceAuthPassword(r.o.DevicePwd), nil
	}
	k, passphrase := r.sec.Keyring()
	if k != nil {
		if dev, ok := r.keyringDevice(k); ok && dev.Authentication != nil {
			pwd, err := k.DecryptPassword(dev.Authentication, passphrase)
			if err != nil {
				return nil, err
			}
			return secure.HashDeviceAuthPassword(string(pwd)), nil
		}
	}
	return []byte{}, nil
}

// keyringUserKey scans the user records of the resolved keyring
// interface.  A record matches on the requested user id, on the
// explicit tunnel endpoint address, or, with no user id requested, on
// first structural match; in that last case the matched id is
// backfilled into the options.
func (r resolver) keyringUserKey() ([]byte, error) {
	k, passphrase := r.sec.Keyring()
	if k == nil {
		return nil, nil
	}
	host, ok := r.interfaceAddress(k)
	if !ok {
		return nil, nil
	}
	for _, rec := range k.Interfaces()[host] {
		match := rec.User == r.o.User || r.o.User == 0 ||
			(r.o.Interface != nil && rec.Address == *r.o.Interface)
		if !match {
			continue
		}
		if r.o.User == 0 {
			r.o.User = rec.User
		}
		if rec.Password == nil {
			return nil, nil
		}
		pwd, err := k.DecryptPassword(rec.Password, passphrase)
		if err != nil {
			return nil, err
		}
		return secure.HashUserPassword(string(pwd)), nil
	}
	return nil, nil
}

// keyringDevice returns the device record of the resolved interface.
func (r resolver) keyringDevice(k *keyring.Keyring) (keyring.Device, bool) {
	host, ok := r.interfaceAddress(k)
	if !ok {
		return keyring.Device{}, false
	}
	dev, ok := k.Devices()[host]
	return dev, ok
}

// interfaceAddress narrows the keyring to one interface: an explicit
// interface address with a keyring record wins; otherwise a keyring
// with exactly one interface is the implicit default; anything else is
// ambiguous and resolves to no credential.
func (r resolver) interfaceAddress(k *keyring.Keyring) (medium.IndividualAddress, bool) {
	interfaces := k.Interfaces()
	if r.o.Interface != nil {
		if _, ok := interfaces[*r.o.Interface]; ok {
			return *r.o.Interface, true
		}
	}
	if len(interfaces) != 1 {
		return 0, false
	}
	for addr := range interfaces {
		return addr, true
	}
	return 0, false
}

// installKeyring activates the keyring tier exactly when a keyring
// passphrase was given: the explicitly referenced keyring file, else
// the unique .knxkeys file in the working directory.  Finding no
// keyring is not an error here; the keyring tier is simply skipped.
func installKeyring(o *config.Options, sec *keyring.Security) error {
	if !o.KeyringPwdSet {
		return nil
	}
	path := o.KeyringPath
	if path == "" {
		found, ok := keyring.FindInDir(".", config.KeyringSuffix)
		if !ok {
			return nil
		}
		path = found
	}
	k, err := keyring.Load(path)
	if err != nil {
		return err
	}
	sec.UseKeyring(k, o.KeyringPwd)
	return nil
}

// Package secure implements the KNX IP Secure primitives consumed by
// link construction: one-way password hashing for user and device
// credentials, and secure session negotiation over a stream
// connection.
package secure

import (
	"crypto/sha256"

	"golang.org/x/crypto/pbkdf2"
)

// KeyLength is the length of all derived key material.
const KeyLength = 16

// Password hashing parameters of KNX IP Secure.
const hashIterations = 65536

var (
	userPasswordSalt = []byte("user-password.1.secure.ip.knx.org")
	deviceAuthSalt   = []byte("device-authentication-code.1.secure.ip.knx.org")
)

// HashUserPassword derives the tunneling user key from a plaintext
// password.
func HashUserPassword(password string) []byte {
	return pbkdf2.Key([]byte(password), userPasswordSalt, hashIterations, KeyLength, sha256.New)
}

// HashDeviceAuthPassword derives the device authentication code from a
// plaintext password.
func HashDeviceAuthPassword(password string) []byte {
	return pbkdf2.Key([]byte(password), deviceAuthSalt, hashIterations, KeyLength, sha256.New)
}

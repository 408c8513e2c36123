package keyring

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Security is the process-wide keyring installation shared by every
// tool invocation in this process.  At most one keyring is active at a
// time; installing a new one replaces the prior reference.  There is no
// teardown before process exit.
type Security struct {
	mu         sync.Mutex
	keyring    *Keyring
	passphrase []byte
}

// DefaultSecurity is the installation used when callers do not carry
// their own.  Tests construct private instances instead.
var DefaultSecurity = &Security{}

// UseKeyring installs a keyring and its passphrase, replacing any
// prior installation.
func (s *Security) UseKeyring(k *Keyring, passphrase []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keyring = k
	s.passphrase = passphrase
}

// Keyring returns the installed keyring and its passphrase, or nil if
// none is active.
func (s *Security) Keyring() (*Keyring, []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keyring, s.passphrase
}

// FindInDir returns the path of the keyring file in dir, identified by
// the reserved suffix.  Exactly one match is required; zero or several
// candidates report no keyring.
func FindInDir(dir, suffix string) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	var found string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		if found != "" {
			return "", false // ambiguous
		}
		found = filepath.Join(dir, e.Name())
	}
	return found, found != ""
}

package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
)

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the KNXTOOL_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).

// LoadFromEnv overlays environment variables onto o.  Only non-empty
// env vars override the existing value.  This should be called BEFORE
// CLI flag parsing so that flags take precedence.
func LoadFromEnv(o *Options) {
	if v := os.Getenv("KNXTOOL_LOCALHOST"); v != "" {
		o.LocalHost = v
	}
	if v := envInt("KNXTOOL_LOCALPORT"); v > 0 {
		o.LocalPort = v
	}
	if v := envInt("KNXTOOL_PORT"); v > 0 {
		o.Port = v
	}
	if envBool("KNXTOOL_NAT") {
		o.NAT = true
	}
	if envBool("KNXTOOL_TCP") {
		o.TCP = true
	}

	// Keyring
	if v := os.Getenv("KNXTOOL_KEYRING"); v != "" {
		o.KeyringPath = v
	}
	if v, ok := os.LookupEnv("KNXTOOL_KEYRING_PWD"); ok {
		o.KeyringPwd = []byte(v)
		o.KeyringPwdSet = true
	}

	// Output
	if v := envInt("KNXTOOL_VERBOSE"); v > 0 {
		o.Verbose = v
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

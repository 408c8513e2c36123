package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags and environment variable loading.

const (
	// DefaultPort is the KNXnet/IP discovery and control endpoint port.
	DefaultPort = 3671

	// SystemSetupMulticast is the KNXnet/IP system setup multicast group.
	SystemSetupMulticast = "224.0.23.12"

	// KeyringSuffix is the reserved file suffix of ETS keyring files.
	KeyringSuffix = ".knxkeys"

	// KeyLength is the length of KNX IP Secure key material in bytes.
	KeyLength = 16

	// MaxUser is the highest assignable tunneling user id.
	MaxUser = 127

	// MgmtUser is the user id reserved for secure device management
	// sessions.
	MgmtUser = 1

	// SyncLatency is the key-renewal/sync tolerance of secure routing.
	SyncLatency = 2000 * time.Millisecond

	// DefaultDialTimeout bounds TCP connection establishment, which
	// runs inside the connection pool's critical section.
	DefaultDialTimeout = 10 * time.Second

	// DefaultSessionTimeout bounds secure session negotiation.
	DefaultSessionTimeout = 10 * time.Second
)

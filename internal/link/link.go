// Package link constructs ready-to-use KNX network links and local
// device management connections from a validated option set.  It owns
// the transport decision procedure, the tiered credential resolution
// for secure variants, and the keyring installation that backs it.
package link

import (
	"net"
	"time"

	"knxtool/internal/medium"
	"knxtool/internal/secure"
	"knxtool/internal/transport"
	"knxtool/util"
)

// Link is a constructed KNX network link.  Pooled stream connections
// backing a link are borrowed from the connection pool; closing the
// link never closes them.
type Link interface {
	// Medium returns the medium settings the link operates on.
	Medium() *medium.Settings

	// Name identifies the link endpoint for diagnostics.
	Name() string

	Close() error
}

// ── Serial and USB links ─────────────────────────────────────────────

// Serial is an FT1.2 network link over a serial port, optionally with
// cEMI framing.
type Serial struct {
	port     *transport.SerialPort
	settings *medium.Settings
}

// NewSerialLink opens an FT1.2 link on the given serial device.
func NewSerialLink(device string, cemi bool, settings *medium.Settings) (*Serial, error) {
	port, err := transport.OpenSerial(device, cemi)
	if err != nil {
		return nil, err
	}
	return &Serial{port: port, settings: settings}, nil
}

func (l *Serial) Medium() *medium.Settings { return l.settings }
func (l *Serial) Name() string             { return "ft12:" + l.port.Path() }
func (l *Serial) Close() error             { return l.port.Close() }

// CEMI reports whether the link carries cEMI frames.
func (l *Serial) CEMI() bool { return l.port.CEMI() }

// USB is a network link over a KNX USB interface.
type USB struct {
	dev      *transport.USBDevice
	settings *medium.Settings
}

// NewUSBLink opens a link on the given USB interface.
func NewUSBLink(device string, settings *medium.Settings) (*USB, error) {
	dev, err := transport.OpenUSB(device)
	if err != nil {
		return nil, err
	}
	return &USB{dev: dev, settings: settings}, nil
}

func (l *USB) Medium() *medium.Settings { return l.settings }
func (l *USB) Name() string             { return "usb:" + l.dev.Name() }
func (l *USB) Close() error             { return l.dev.Close() }

// Monitor is a passive TP-UART bus monitor link.  It acknowledges
// nothing, so it stays invisible on the bus.
type Monitor struct {
	mon      *transport.BusMonitor
	settings *medium.Settings
}

// NewMonitorLink opens a passive bus monitor on the given serial
// device.
func NewMonitorLink(device string, settings *medium.Settings) (*Monitor, error) {
	mon, err := transport.OpenBusMonitor(device, nil)
	if err != nil {
		return nil, err
	}
	return &Monitor{mon: mon, settings: settings}, nil
}

func (l *Monitor) Medium() *medium.Settings { return l.settings }
func (l *Monitor) Name() string             { return "tpuart:" + l.mon.Device() }
func (l *Monitor) Close() error             { return l.mon.Close() }

// Read delivers the next raw bus frame.
func (l *Monitor) Read(p []byte) (int, error) { return l.mon.Read(p) }

// ── IP routing links ─────────────────────────────────────────────────

// Routing is a KNXnet/IP routing link on a multicast group, plain or
// secured with a group key.
type Routing struct {
	conn     *net.UDPConn
	group    net.IP
	settings *medium.Settings
	secure   bool
	groupKey []byte
	latency  time.Duration
}

// NewRoutingLink joins the routing multicast group for plain routing.
// An unbound local address is not an error here; the system picks the
// interface.
func NewRoutingLink(local net.IP, group net.IP, port int, settings *medium.Settings) (*Routing, error) {
	netif, err := util.InterfaceFor(local)
	if err != nil {
		netif = nil
	}
	conn, err := transport.ListenRouting(netif, group, port)
	if err != nil {
		return nil, err
	}
	return &Routing{conn: conn, group: group, settings: settings}, nil
}

// NewSecureRoutingLink joins the routing multicast group with KNX IP
// Secure group communication.  latency is the key-renewal and
// time-sync tolerance of the group.
func NewSecureRoutingLink(netif *net.Interface, group net.IP, port int, groupKey []byte,
	latency time.Duration, settings *medium.Settings) (*Routing, error) {

	conn, err := transport.ListenRouting(netif, group, port)
	if err != nil {
		return nil, err
	}
	return &Routing{
		conn:     conn,
		group:    group,
		settings: settings,
		secure:   true,
		groupKey: append([]byte{}, groupKey...),
		latency:  latency,
	}, nil
}

func (l *Routing) Medium() *medium.Settings { return l.settings }
func (l *Routing) Close() error             { return l.conn.Close() }

func (l *Routing) Name() string {
	if l.secure {
		return "secure routing:" + l.group.String()
	}
	return "routing:" + l.group.String()
}

// Secure reports whether the link uses secure group communication.
func (l *Routing) Secure() bool { return l.secure }

// Latency returns the secure group's sync tolerance, zero for plain
// routing.
func (l *Routing) Latency() time.Duration { return l.latency }

// ── IP tunneling links ───────────────────────────────────────────────

// TunnelMode identifies how a tunneling link reaches its server.
type TunnelMode int

const (
	TunnelUDP TunnelMode = iota
	TunnelSecureUDP
	TunnelTCP
	TunnelSession
)

func (m TunnelMode) String() string {
	switch m {
	case TunnelUDP:
		return "udp"
	case TunnelSecureUDP:
		return "secure udp"
	case TunnelTCP:
		return "tcp"
	case TunnelSession:
		return "secure session"
	}
	return "unknown"
}

// Tunneling is a point-to-point KNXnet/IP tunneling link, over plain
// UDP, secure UDP, a pooled TCP connection, or a secure session on a
// pooled TCP connection.
type Tunneling struct {
	mode     TunnelMode
	remote   string
	settings *medium.Settings
	nat      bool

	udp     *net.UDPConn
	conn    *transport.Connection // pool-owned, never closed here
	session *secure.Session

	user       int
	userKey    []byte
	deviceAuth []byte
}

// NewTunnelingLink opens a plain UDP tunneling link, optionally with
// NAT-aware addressing.
func NewTunnelingLink(local *net.UDPAddr, remote string, nat bool, settings *medium.Settings) (*Tunneling, error) {
	udp, err := transport.DialUDP(local, remote)
	if err != nil {
		return nil, err
	}
	return &Tunneling{mode: TunnelUDP, remote: remote, settings: settings, nat: nat, udp: udp}, nil
}

// NewSecureTunnelingLink opens a secure tunneling link directly over
// UDP, keyed by the resolved user credentials.
func NewSecureTunnelingLink(local *net.UDPAddr, remote string, nat bool,
	deviceAuth []byte, user int, userKey []byte, settings *medium.Settings) (*Tunneling, error) {

	udp, err := transport.DialUDP(local, remote)
	if err != nil {
		return nil, err
	}
	return &Tunneling{
		mode:       TunnelSecureUDP,
		remote:     remote,
		settings:   settings,
		nat:        nat,
		udp:        udp,
		user:       user,
		userKey:    append([]byte{}, userKey...),
		deviceAuth: append([]byte{}, deviceAuth...),
	}, nil
}

// NewTCPTunnelingLink builds a plain tunneling link over a pooled
// stream connection.  The connection stays pool-owned.
func NewTCPTunnelingLink(conn *transport.Connection, settings *medium.Settings) *Tunneling {
	return &Tunneling{mode: TunnelTCP, remote: conn.RemoteAddr(), settings: settings, conn: conn}
}

// NewSessionTunnelingLink builds a secure tunneling link from a
// negotiated secure session.  The session's connection stays
// pool-owned.
func NewSessionTunnelingLink(session *secure.Session, settings *medium.Settings) *Tunneling {
	return &Tunneling{
		mode:     TunnelSession,
		remote:   session.Conn().RemoteAddr(),
		settings: settings,
		conn:     session.Conn(),
		session:  session,
		user:     session.User(),
	}
}

func (l *Tunneling) Medium() *medium.Settings { return l.settings }
func (l *Tunneling) Name() string             { return l.mode.String() + " tunneling:" + l.remote }

// Mode returns how the link reaches its server.
func (l *Tunneling) Mode() TunnelMode { return l.mode }

// NAT reports whether NAT-aware addressing was requested.
func (l *Tunneling) NAT() bool { return l.nat }

// User returns the tunneling user id of a secure link, 0 otherwise.
func (l *Tunneling) User() int { return l.user }

// Session returns the secure session of a session-based link, nil
// otherwise.
func (l *Tunneling) Session() *secure.Session { return l.session }

// Close releases resources the link owns.  Pooled stream connections
// are left open for reuse.
func (l *Tunneling) Close() error {
	if l.udp != nil {
		return l.udp.Close()
	}
	return nil
}

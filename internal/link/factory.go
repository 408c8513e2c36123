package link

import (
	"context"
	"net"
	"strconv"

	"knxtool/config"
	kerrors "knxtool/internal/errors"
	"knxtool/internal/keyring"
	"knxtool/internal/medium"
	"knxtool/internal/secure"
	"knxtool/internal/transport"
	"knxtool/util"
)

// Factory builds network links and management connections from option
// sets.  It carries the process-wide collaborators so tests can run
// against private instances.
type Factory struct {
	sec    *keyring.Security
	pool   *transport.Pool
	logger *util.Logger
}

// NewFactory creates a link factory.  sec and pool default to the
// process-wide instances when nil; logger may stay nil.
func NewFactory(sec *keyring.Security, pool *transport.Pool, logger *util.Logger) *Factory {
	if sec == nil {
		sec = keyring.DefaultSecurity
	}
	if pool == nil {
		pool = transport.DefaultPool
	}
	if logger != nil {
		logger = logger.Named("link")
	}
	return &Factory{sec: sec, pool: pool, logger: logger}
}

// New builds the network link the options describe.  The transport
// branches are tried in fixed precedence; the first match wins:
// serial, serial with cEMI framing, USB, passive bus monitor, and
// finally IP (routing for multicast hosts, tunneling otherwise).
func (f *Factory) New(ctx context.Context, o *config.Options) (Link, error) {
	if err := installKeyring(o, f.sec); err != nil {
		return nil, err
	}

	if o.Serial {
		return f.opened(NewSerialLink(serialDevice(o.Host), false, o.Medium))
	}
	if o.SerialCEMI {
		return f.opened(NewSerialLink(serialDevice(o.Host), true, o.Medium))
	}
	if o.USB {
		return f.opened(NewUSBLink(o.Host, o.Medium))
	}

	// The remaining links can carry a specific local KNX address.
	if o.DeviceAddr != nil {
		o.Medium.SetDeviceAddress(*o.DeviceAddr)
	}

	if o.Tpuart {
		return f.opened(NewMonitorLink(o.Host, o.Medium))
	}

	local, err := f.localSocket(ctx, o)
	if err != nil {
		return nil, err
	}
	addr, err := util.ResolveHost(ctx, o.Host)
	if err != nil {
		return nil, err
	}

	if addr.IsMulticast() {
		return f.opened(f.newRouting(o, local, addr))
	}
	return f.opened(f.newTunneling(ctx, o, local, addr))
}

// newRouting joins the routing multicast group, secured iff a group
// key was given.
func (f *Factory) newRouting(o *config.Options, local *net.TCPAddr, group net.IP) (Link, error) {
	if o.Medium.DeviceAddress() == medium.BackboneRouter {
		// Default subnetwork and device address for an unregistered
		// routing endpoint.
		o.Medium.SetDeviceAddress(medium.Unregistered)
	}
	if len(o.GroupKey) > 0 {
		netif, err := util.InterfaceFor(local.IP)
		if err != nil {
			return nil, err
		}
		f.verbose("secure routing on %s, sync tolerance %v", group, config.SyncLatency)
		return NewSecureRoutingLink(netif, group, o.Port, o.GroupKey, config.SyncLatency, o.Medium)
	}
	f.verbose("plain routing on %s", group)
	return NewRoutingLink(local.IP, group, o.Port, o.Medium)
}

// newTunneling connects to a tunneling server, choosing among plain
// UDP, plain TCP over a pooled connection, secure UDP, and a secure
// session over a pooled connection.
func (f *Factory) newTunneling(ctx context.Context, o *config.Options, local *net.TCPAddr, addr net.IP) (Link, error) {
	remote := util.FormatAddr(addr.String(), o.Port)

	res := resolver{o: o, sec: f.sec}
	userKey, err := res.userKey()
	if err != nil {
		return nil, err
	}
	if userKey != nil {
		deviceAuth, err := res.deviceAuth()
		if err != nil {
			return nil, err
		}
		if o.UDP {
			f.verbose("secure tunneling over udp to %s, user %d", remote, o.User)
			return NewSecureTunnelingLink(udpAddr(local), remote, o.NAT, deviceAuth, o.User, userKey, o.Medium)
		}
		session, err := f.newSession(ctx, local, remote, o.User, userKey, deviceAuth)
		if err != nil {
			return nil, err
		}
		return NewSessionTunnelingLink(session, o.Medium), nil
	}
	// A requested tunneling user with no resolvable key is a hard
	// failure; silently downgrading to a plain link would connect
	// insecure where secure was asked for.
	if o.User > 0 {
		return nil, kerrors.ErrNoCredential
	}
	if o.TCP {
		conn, err := f.pool.Acquire(ctx, local.String(), remote)
		if err != nil {
			return nil, err
		}
		f.verbose("plain tunneling over pooled tcp to %s", remote)
		return NewTCPTunnelingLink(conn, o.Medium), nil
	}
	f.verbose("plain tunneling over udp to %s", remote)
	return NewTunnelingLink(udpAddr(local), remote, o.NAT, o.Medium)
}

// newSession acquires a pooled stream connection and negotiates a
// secure session on it.
func (f *Factory) newSession(ctx context.Context, local *net.TCPAddr, remote string,
	user int, userKey, deviceAuth []byte) (*secure.Session, error) {

	conn, err := f.pool.Acquire(ctx, local.String(), remote)
	if err != nil {
		return nil, err
	}
	session, err := secure.Negotiate(ctx, conn, user, userKey, deviceAuth)
	if err != nil {
		return nil, err
	}
	f.pool.Metrics().SecureSession()
	f.verbose("secure session %d to %s, user %d", session.ID(), remote, user)
	return session, nil
}

// localSocket resolves the optional local host and port to a bind
// address.  No local host binds to the wildcard address.
func (f *Factory) localSocket(ctx context.Context, o *config.Options) (*net.TCPAddr, error) {
	var ip net.IP
	if o.LocalHost != "" {
		var err error
		ip, err = util.ResolveHost(ctx, o.LocalHost)
		if err != nil {
			return nil, err
		}
	}
	return util.LocalSocket(ip, o.LocalPort), nil
}

// serialDevice interprets the host field as a numeric serial port
// identifier, falling back to a symbolic device name.
func serialDevice(host string) string {
	if n, err := strconv.Atoi(host); err == nil {
		return transport.PortPath(n)
	}
	return host
}

func udpAddr(local *net.TCPAddr) *net.UDPAddr {
	if local == nil {
		return nil
	}
	if local.IP == nil && local.Port == 0 {
		return nil
	}
	return &net.UDPAddr{IP: local.IP, Port: local.Port}
}

// opened counts successfully constructed links.
func (f *Factory) opened(l Link, err error) (Link, error) {
	if err != nil {
		f.pool.Metrics().RecordError(err.Error())
		return nil, err
	}
	f.pool.Metrics().LinkOpened()
	return l, nil
}

func (f *Factory) verbose(format string, args ...interface{}) {
	if f.logger != nil {
		f.logger.Verbose(format, args...)
	}
}

package link

import (
	"context"
	"net"

	"knxtool/config"
	"knxtool/internal/secure"
	"knxtool/internal/transport"
	"knxtool/util"
)

// Mgmt is a local device management connection to a KNXnet/IP server,
// plain or secured.  Secure management sessions always authenticate
// as the reserved management user.
type Mgmt struct {
	mode    TunnelMode
	remote  string
	nat     bool
	udp     *net.UDPConn
	conn    *transport.Connection // pool-owned, never closed here
	session *secure.Session

	mgmtKey    []byte
	deviceAuth []byte

	// queryWriteEnable requests the write-enable check on plain
	// connections emulating property access.
	queryWriteEnable bool
}

// NewMgmt builds the local device management connection the options
// describe.  It mirrors the tunneling decision procedure with the
// management key role: a resolvable management key selects a secure
// variant (UDP, or a session over a pooled stream connection), an
// explicit TCP request selects a plain pooled connection, anything
// else a plain UDP connection.
func (f *Factory) NewMgmt(ctx context.Context, o *config.Options) (*Mgmt, error) {
	if err := installKeyring(o, f.sec); err != nil {
		return nil, err
	}

	local, err := f.localSocket(ctx, o)
	if err != nil {
		return nil, err
	}
	addr, err := util.ResolveHost(ctx, o.Host)
	if err != nil {
		return nil, err
	}
	remote := util.FormatAddr(addr.String(), o.Port)

	res := resolver{o: o, sec: f.sec}
	mgmtKey, err := res.deviceMgmtKey()
	if err != nil {
		return nil, err
	}
	m, err := f.newMgmt(ctx, o, local, remote, mgmtKey, res)
	if err != nil {
		f.pool.Metrics().RecordError(err.Error())
		return nil, err
	}
	f.pool.Metrics().LinkOpened()
	return m, nil
}

func (f *Factory) newMgmt(ctx context.Context, o *config.Options, local *net.TCPAddr,
	remote string, mgmtKey []byte, res resolver) (*Mgmt, error) {

	if mgmtKey != nil {
		deviceAuth, err := res.deviceAuth()
		if err != nil {
			return nil, err
		}
		if o.UDP {
			udp, err := transport.DialUDP(udpAddr(local), remote)
			if err != nil {
				return nil, err
			}
			f.verbose("secure management over udp to %s", remote)
			return &Mgmt{
				mode:       TunnelSecureUDP,
				remote:     remote,
				nat:        o.NAT,
				udp:        udp,
				mgmtKey:    append([]byte{}, mgmtKey...),
				deviceAuth: append([]byte{}, deviceAuth...),
			}, nil
		}
		session, err := f.newSession(ctx, local, remote, config.MgmtUser, mgmtKey, deviceAuth)
		if err != nil {
			return nil, err
		}
		f.verbose("secure management session to %s", remote)
		return &Mgmt{mode: TunnelSession, remote: remote, conn: session.Conn(), session: session}, nil
	}
	if o.TCP {
		conn, err := f.pool.Acquire(ctx, local.String(), remote)
		if err != nil {
			return nil, err
		}
		f.verbose("plain management over pooled tcp to %s", remote)
		return &Mgmt{mode: TunnelTCP, remote: remote, conn: conn}, nil
	}
	udp, err := transport.DialUDP(udpAddr(local), remote)
	if err != nil {
		return nil, err
	}
	f.verbose("plain management over udp to %s", remote)
	return &Mgmt{
		mode:             TunnelUDP,
		remote:           remote,
		nat:              o.NAT,
		udp:              udp,
		queryWriteEnable: o.EmulateWriteEnable,
	}, nil
}

// Name identifies the management endpoint for diagnostics.
func (m *Mgmt) Name() string { return m.mode.String() + " management:" + m.remote }

// Mode returns how the connection reaches its server.
func (m *Mgmt) Mode() TunnelMode { return m.mode }

// Session returns the secure session of a session-based connection,
// nil otherwise.
func (m *Mgmt) Session() *secure.Session { return m.session }

// QueryWriteEnable reports whether plain connections should check the
// write-enable state before emulated property writes.
func (m *Mgmt) QueryWriteEnable() bool { return m.queryWriteEnable }

// Close releases resources the connection owns.  Pooled stream
// connections are left open for reuse.
func (m *Mgmt) Close() error {
	if m.udp != nil {
		return m.udp.Close()
	}
	return nil
}

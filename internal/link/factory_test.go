package link

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/binary"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/curve25519"

	"knxtool/config"
	kerrors "knxtool/internal/errors"
	"knxtool/internal/keyring"
	"knxtool/internal/medium"
	"knxtool/internal/metrics"
	"knxtool/internal/transport"
)

func testFactory(t *testing.T) *Factory {
	t.Helper()
	return NewFactory(&keyring.Security{}, transport.NewPool(nil, metrics.New()), nil)
}

// startTCPServer runs a minimal accept loop for pooled connection
// tests.
func startTCPServer(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Close() })
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			go func() {
				io.Copy(io.Discard, conn)
				conn.Close()
			}()
		}
	}()
	return l.Addr().String()
}

// startSecureServer runs a server that completes the secure session
// handshake on each accepted connection, always granting access.
func startSecureServer(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Close() })
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			go serveHandshake(conn)
		}
	}()
	return l.Addr().String()
}

func serveHandshake(conn net.Conn) {
	defer conn.Close()

	readServerFrame := func() (uint16, []byte, bool) {
		var header [6]byte
		if _, err := io.ReadFull(conn, header[:]); err != nil {
			return 0, nil, false
		}
		body := make([]byte, int(binary.BigEndian.Uint16(header[4:]))-6)
		if _, err := io.ReadFull(conn, body); err != nil {
			return 0, nil, false
		}
		return binary.BigEndian.Uint16(header[2:]), body, true
	}
	writeServerFrame := func(svc uint16, body []byte) bool {
		frame := make([]byte, 6+len(body))
		frame[0], frame[1] = 0x06, 0x10
		binary.BigEndian.PutUint16(frame[2:], svc)
		binary.BigEndian.PutUint16(frame[4:], uint16(len(frame)))
		copy(frame[6:], body)
		_, err := conn.Write(frame)
		return err == nil
	}

	svc, body, ok := readServerFrame()
	if !ok || svc != 0x0951 || len(body) != 8+32 {
		return
	}
	private := make([]byte, 32)
	rand.Read(private)
	public, err := curve25519.X25519(private, curve25519.Basepoint)
	if err != nil {
		return
	}
	// Session id 7; the response MAC is left zero, clients without a
	// device authentication code skip its verification.
	resp := make([]byte, 2+32+16)
	binary.BigEndian.PutUint16(resp, 7)
	copy(resp[2:], public)
	if !writeServerFrame(0x0952, resp) {
		return
	}
	if svc, _, ok = readServerFrame(); !ok || svc != 0x0953 {
		return
	}
	writeServerFrame(0x0954, []byte{0x00})
}

func hostPort(t *testing.T, addr string) (string, int) {
	t.Helper()
	tcp, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	return tcp.IP.String(), tcp.Port
}

// ── IP routing ───────────────────────────────────────────────────────

func TestRoutingPlainDefaults(t *testing.T) {
	o := config.New()
	o.Host = config.SystemSetupMulticast

	l, err := testFactory(t).New(context.Background(), o)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	r, ok := l.(*Routing)
	if !ok {
		t.Fatalf("link type %T, want *Routing", l)
	}
	if r.Secure() {
		t.Error("no group key, routing must stay plain")
	}
	if got := o.Medium.DeviceAddress(); got != medium.Unregistered {
		t.Errorf("device address = %s, want the unregistered default %s",
			got, medium.Unregistered)
	}
}

func TestRoutingKeepsExplicitDevice(t *testing.T) {
	addr := medium.Address(1, 1, 7)
	o := config.New()
	o.Host = config.SystemSetupMulticast
	o.Port = config.DefaultPort + 1
	o.DeviceAddr = &addr

	l, err := testFactory(t).New(context.Background(), o)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	if got := o.Medium.DeviceAddress(); got != addr {
		t.Errorf("device address = %s, want explicit %s", got, addr)
	}
}

func TestRoutingSecure(t *testing.T) {
	o := config.New()
	o.Host = config.SystemSetupMulticast
	o.Port = config.DefaultPort + 2
	o.GroupKey = bytes.Repeat([]byte{0x11}, 16)

	l, err := testFactory(t).New(context.Background(), o)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	r := l.(*Routing)
	if !r.Secure() {
		t.Error("group key present, routing must be secured")
	}
	if r.Latency() != config.SyncLatency {
		t.Errorf("sync tolerance = %v, want %v", r.Latency(), config.SyncLatency)
	}
}

func TestRoutingSecureUnboundLocal(t *testing.T) {
	o := config.New()
	o.Host = config.SystemSetupMulticast
	o.LocalHost = "203.0.113.1" // documentation range, never assigned here
	o.GroupKey = bytes.Repeat([]byte{0x11}, 16)

	_, err := testFactory(t).New(context.Background(), o)
	if !kerrors.IsConfig(err) {
		t.Fatalf("err = %v, want a configuration error for the unbound local address", err)
	}
}

// ── IP tunneling ─────────────────────────────────────────────────────

func TestTunnelingPlainUDP(t *testing.T) {
	o := config.New()
	o.Host = "127.0.0.1"
	o.NAT = true

	l, err := testFactory(t).New(context.Background(), o)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	tl := l.(*Tunneling)
	if tl.Mode() != TunnelUDP {
		t.Errorf("mode = %v, want %v", tl.Mode(), TunnelUDP)
	}
	if !tl.NAT() {
		t.Error("NAT flag not carried into the link")
	}
}

func TestTunnelingTCPPooled(t *testing.T) {
	addr := startTCPServer(t)
	f := testFactory(t)

	o := config.New()
	o.Host, o.Port = hostPort(t, addr)
	o.TCP = true

	l1, err := f.New(context.Background(), o)
	if err != nil {
		t.Fatal(err)
	}
	defer l1.Close()
	if l1.(*Tunneling).Mode() != TunnelTCP {
		t.Fatalf("mode = %v, want %v", l1.(*Tunneling).Mode(), TunnelTCP)
	}

	// A second link to the same endpoint reuses the pooled connection.
	o2 := config.New()
	o2.Host, o2.Port = hostPort(t, addr)
	o2.TCP = true
	l2, err := f.New(context.Background(), o2)
	if err != nil {
		t.Fatal(err)
	}
	defer l2.Close()

	if hits := f.pool.Metrics().PoolHits(); hits != 1 {
		t.Errorf("pool hits = %d, want 1", hits)
	}
	if dials := f.pool.Metrics().Dials(); dials != 1 {
		t.Errorf("dials = %d, want 1", dials)
	}
}

func TestTunnelingSecureSession(t *testing.T) {
	addr := startSecureServer(t)
	f := testFactory(t)

	o := config.New()
	o.Host, o.Port = hostPort(t, addr)
	o.User = 2
	o.UserKey = bytes.Repeat([]byte{0xaa}, 16)

	l, err := f.New(context.Background(), o)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	tl := l.(*Tunneling)
	if tl.Mode() != TunnelSession {
		t.Fatalf("mode = %v, want %v", tl.Mode(), TunnelSession)
	}
	if tl.Session() == nil || tl.Session().ID() != 7 {
		t.Error("session not carried into the link")
	}
	if f.pool.Metrics().SecureSessions() != 1 {
		t.Error("secure session not counted")
	}
}

func TestTunnelingSecureUDP(t *testing.T) {
	o := config.New()
	o.Host = "127.0.0.1"
	o.UDP = true
	o.User = 3
	o.UserKey = bytes.Repeat([]byte{0xaa}, 16)

	l, err := testFactory(t).New(context.Background(), o)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	tl := l.(*Tunneling)
	if tl.Mode() != TunnelSecureUDP {
		t.Errorf("mode = %v, want %v", tl.Mode(), TunnelSecureUDP)
	}
	if tl.User() != 3 {
		t.Errorf("user = %d, want 3", tl.User())
	}
}

func TestTunnelingNoCredential(t *testing.T) {
	o := config.New()
	o.Host = "127.0.0.1"
	o.User = 2 // secure requested, nothing to key it with

	_, err := testFactory(t).New(context.Background(), o)
	if !kerrors.Is(err, kerrors.ErrNoCredential) {
		t.Fatalf("err = %v, want ErrNoCredential", err)
	}
}

// ── Serial, USB, bus monitor ─────────────────────────────────────────

func TestSerialDevice(t *testing.T) {
	if got := serialDevice("3"); got != transport.PortPath(3) {
		t.Errorf("numeric id: got %q, want %q", got, transport.PortPath(3))
	}
	if got := serialDevice("/dev/ttyUSB0"); got != "/dev/ttyUSB0" {
		t.Errorf("symbolic name: got %q", got)
	}
}

func fakeDevice(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ttyFake")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSerialLink(t *testing.T) {
	o := config.New()
	o.Host = fakeDevice(t)
	o.Serial = true

	l, err := testFactory(t).New(context.Background(), o)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	s := l.(*Serial)
	if s.CEMI() {
		t.Error("plain FT1.2 link must not use cEMI framing")
	}
}

func TestMonitorLinkAppliesDeviceAddress(t *testing.T) {
	addr := medium.Address(1, 2, 3)
	o := config.New()
	o.Host = fakeDevice(t)
	o.Tpuart = true
	o.DeviceAddr = &addr

	l, err := testFactory(t).New(context.Background(), o)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	if _, ok := l.(*Monitor); !ok {
		t.Fatalf("link type %T, want *Monitor", l)
	}
	if got := o.Medium.DeviceAddress(); got != addr {
		t.Errorf("device address = %s, want %s", got, addr)
	}
}

func TestUSBLinkMissingDevice(t *testing.T) {
	o := config.New()
	o.Host = ""
	o.USB = true

	_, err := testFactory(t).New(context.Background(), o)
	if !kerrors.IsConfig(err) {
		t.Fatalf("err = %v, want a configuration error", err)
	}
}

// ── Local device management ──────────────────────────────────────────

func TestMgmtPlainUDP(t *testing.T) {
	o := config.New()
	o.Host = "127.0.0.1"
	o.EmulateWriteEnable = true

	m, err := testFactory(t).NewMgmt(context.Background(), o)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	if m.Mode() != TunnelUDP {
		t.Errorf("mode = %v, want %v", m.Mode(), TunnelUDP)
	}
	if !m.QueryWriteEnable() {
		t.Error("write-enable query flag not carried")
	}
}

func TestMgmtPlainTCP(t *testing.T) {
	addr := startTCPServer(t)
	o := config.New()
	o.Host, o.Port = hostPort(t, addr)
	o.TCP = true

	m, err := testFactory(t).NewMgmt(context.Background(), o)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()
	if m.Mode() != TunnelTCP {
		t.Errorf("mode = %v, want %v", m.Mode(), TunnelTCP)
	}
}

func TestMgmtSecureUDP(t *testing.T) {
	o := config.New()
	o.Host = "127.0.0.1"
	o.UDP = true
	o.UserKey = bytes.Repeat([]byte{0xcc}, 16)
	o.DeviceKey = bytes.Repeat([]byte{0xdd}, 16)

	m, err := testFactory(t).NewMgmt(context.Background(), o)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	if m.Mode() != TunnelSecureUDP {
		t.Fatalf("mode = %v, want %v", m.Mode(), TunnelSecureUDP)
	}
	// The resolved key material keys the secure data service; a handle
	// without it could not encrypt anything.
	if !bytes.Equal(m.mgmtKey, o.UserKey) {
		t.Errorf("management key = %x, want %x", m.mgmtKey, o.UserKey)
	}
	if !bytes.Equal(m.deviceAuth, o.DeviceKey) {
		t.Errorf("device auth code = %x, want %x", m.deviceAuth, o.DeviceKey)
	}
}

func TestMgmtSecureSession(t *testing.T) {
	addr := startSecureServer(t)
	o := config.New()
	o.Host, o.Port = hostPort(t, addr)
	o.UserKey = bytes.Repeat([]byte{0xcc}, 16)

	m, err := testFactory(t).NewMgmt(context.Background(), o)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	if m.Mode() != TunnelSession {
		t.Fatalf("mode = %v, want %v", m.Mode(), TunnelSession)
	}
	// Management sessions always authenticate as the reserved user.
	if m.Session().User() != config.MgmtUser {
		t.Errorf("session user = %d, want %d", m.Session().User(), config.MgmtUser)
	}
}

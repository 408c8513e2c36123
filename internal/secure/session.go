package secure

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"io"
	"time"

	"golang.org/x/crypto/curve25519"

	"knxtool/config"
	kerrors "knxtool/internal/errors"
	"knxtool/internal/transport"
)

// KNXnet/IP secure session service types.
const (
	svcSessionRequest  = 0x0951
	svcSessionResponse = 0x0952
	svcSessionAuth     = 0x0953
	svcSessionStatus   = 0x0954
)

// Session status codes.
const (
	statusAuthSuccess = 0x00
	statusAuthFailed  = 0x01
	statusUnauth      = 0x02
	statusTimeout     = 0x03
	statusClose       = 0x04
)

// Session is an authenticated secure session negotiated over a stream
// connection.  All tunneling traffic of the session is keyed by the
// negotiated session key.
type Session struct {
	conn *transport.Connection
	id   uint16
	user int
	key  []byte
}

// Negotiate runs the secure session handshake for the given user over
// conn: X25519 key agreement, then user authentication keyed by the
// user key, with the server response verified against the device
// authentication code when one is present (empty deviceAuth skips
// device authentication).
//
// The context aborts a pending handshake; the connection is left to
// the pool in that case and only the negotiation fails.
func Negotiate(ctx context.Context, conn *transport.Connection, user int, userKey, deviceAuth []byte) (*Session, error) {
	remote := conn.RemoteAddr()
	if len(userKey) != KeyLength {
		return nil, kerrors.WrapSecure("session.request", remote,
			kerrors.New("user key must be 16 bytes"))
	}

	deadline := time.Now().Add(config.DefaultSessionTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetDeadline(deadline)
	defer conn.SetDeadline(time.Time{})

	// Cancellation unblocks pending reads by expiring the deadline.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.SetDeadline(time.Now())
		case <-done:
		}
	}()

	private, public, err := generateKeypair()
	if err != nil {
		return nil, kerrors.WrapSecure("session.request", remote, err)
	}

	// Session request: wildcard control endpoint followed by our
	// public value.
	body := make([]byte, hpaiLength+curve25519.PointSize)
	writeHPAI(body)
	copy(body[hpaiLength:], public)
	if err := writeFrame(conn, svcSessionRequest, body); err != nil {
		return nil, kerrors.WrapSecure("session.request", remote, err)
	}

	svc, resp, err := readFrame(conn)
	if err != nil {
		return nil, kerrors.WrapSecure("session.request", remote, err)
	}
	if svc != svcSessionResponse || len(resp) != 2+curve25519.PointSize+KeyLength {
		return nil, kerrors.WrapSecure("session.request", remote,
			kerrors.New("unexpected session response"))
	}
	id := binary.BigEndian.Uint16(resp)
	serverPublic := resp[2 : 2+curve25519.PointSize]
	mac := resp[2+curve25519.PointSize:]

	shared, err := curve25519.X25519(private, serverPublic)
	if err != nil {
		return nil, kerrors.WrapSecure("session.request", remote, err)
	}
	sessionKey := deriveSessionKey(shared)

	if len(deviceAuth) > 0 {
		want := responseMAC(deviceAuth, id, serverPublic, public)
		if !hmac.Equal(mac, want) {
			return nil, kerrors.WrapSecure("session.auth", remote,
				kerrors.New("device authentication mismatch"))
		}
	}

	// Authenticate the user against the session.
	auth := make([]byte, 2+KeyLength)
	auth[1] = byte(user)
	copy(auth[2:], authMAC(userKey, id, public, serverPublic, user))
	if err := writeFrame(conn, svcSessionAuth, auth); err != nil {
		return nil, kerrors.WrapSecure("session.auth", remote, err)
	}

	svc, status, err := readFrame(conn)
	if err != nil {
		return nil, kerrors.WrapSecure("session.auth", remote, err)
	}
	if svc != svcSessionStatus || len(status) < 1 {
		return nil, kerrors.WrapSecure("session.auth", remote,
			kerrors.New("unexpected session status"))
	}
	if status[0] != statusAuthSuccess {
		return nil, kerrors.WrapSecure("session.auth", remote, kerrors.ErrSessionRefused)
	}

	return &Session{conn: conn, id: id, user: user, key: sessionKey}, nil
}

// ID returns the server-assigned session identifier.
func (s *Session) ID() uint16 { return s.id }

// User returns the authenticated user id.
func (s *Session) User() int { return s.user }

// Key returns a copy of the session key.
func (s *Session) Key() []byte { return append([]byte{}, s.key...) }

// Conn returns the underlying pooled connection.  The session borrows
// it; closing is the pool owner's concern.
func (s *Session) Conn() *transport.Connection { return s.conn }

// ── key agreement and MACs ───────────────────────────────────────────

func generateKeypair() (private, public []byte, err error) {
	private = make([]byte, curve25519.ScalarSize)
	if _, err = rand.Read(private); err != nil {
		return nil, nil, err
	}
	public, err = curve25519.X25519(private, curve25519.Basepoint)
	if err != nil {
		return nil, nil, err
	}
	return private, public, nil
}

func deriveSessionKey(shared []byte) []byte {
	sum := sha256.Sum256(shared)
	return sum[:KeyLength]
}

// responseMAC authenticates the server's session response under the
// device authentication code.
func responseMAC(deviceAuth []byte, id uint16, serverPublic, clientPublic []byte) []byte {
	m := hmac.New(sha256.New, deviceAuth)
	var idb [2]byte
	binary.BigEndian.PutUint16(idb[:], id)
	m.Write(idb[:])
	m.Write(serverPublic)
	m.Write(clientPublic)
	return m.Sum(nil)[:KeyLength]
}

// authMAC authenticates the client's session-authenticate frame under
// the user key.
func authMAC(userKey []byte, id uint16, clientPublic, serverPublic []byte, user int) []byte {
	m := hmac.New(sha256.New, userKey)
	var idb [2]byte
	binary.BigEndian.PutUint16(idb[:], id)
	m.Write(idb[:])
	m.Write(clientPublic)
	m.Write(serverPublic)
	m.Write([]byte{byte(user)})
	return m.Sum(nil)[:KeyLength]
}

// ── framing ──────────────────────────────────────────────────────────

const (
	headerLength = 6
	hpaiLength   = 8
	protoVersion = 0x10
)

func writeFrame(w io.Writer, svc uint16, body []byte) error {
	frame := make([]byte, headerLength+len(body))
	frame[0] = headerLength
	frame[1] = protoVersion
	binary.BigEndian.PutUint16(frame[2:], svc)
	binary.BigEndian.PutUint16(frame[4:], uint16(len(frame)))
	copy(frame[headerLength:], body)
	_, err := w.Write(frame)
	return err
}

func readFrame(r io.Reader) (svc uint16, body []byte, err error) {
	var header [headerLength]byte
	if _, err = io.ReadFull(r, header[:]); err != nil {
		return 0, nil, err
	}
	if header[0] != headerLength || header[1] != protoVersion {
		return 0, nil, kerrors.New("malformed frame header")
	}
	svc = binary.BigEndian.Uint16(header[2:])
	total := int(binary.BigEndian.Uint16(header[4:]))
	if total < headerLength {
		return 0, nil, kerrors.New("malformed frame length")
	}
	body = make([]byte, total-headerLength)
	if _, err = io.ReadFull(r, body); err != nil {
		return 0, nil, err
	}
	return svc, body, nil
}

// writeHPAI fills an 8-byte wildcard UDP host protocol address
// information block.
func writeHPAI(b []byte) {
	b[0] = hpaiLength
	b[1] = 0x01 // IPv4 UDP
}

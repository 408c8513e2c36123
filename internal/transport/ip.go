package transport

import (
	"net"

	kerrors "knxtool/internal/errors"
)

// DialUDP opens a UDP endpoint to remote, optionally bound to a local
// address.  UDP has no handshake; failures surface on first use.
func DialUDP(local *net.UDPAddr, remote string) (*net.UDPConn, error) {
	ra, err := net.ResolveUDPAddr("udp", remote)
	if err != nil {
		return nil, kerrors.Wrap("resolve", remote, err)
	}
	conn, err := net.DialUDP("udp", local, ra)
	if err != nil {
		return nil, kerrors.Wrap("dial", remote, err)
	}
	return conn, nil
}

// ListenRouting joins the routing multicast group on the given
// interface.  A nil interface lets the system pick one.
func ListenRouting(netif *net.Interface, group net.IP, port int) (*net.UDPConn, error) {
	conn, err := net.ListenMulticastUDP("udp4", netif, &net.UDPAddr{IP: group, Port: port})
	if err != nil {
		return nil, kerrors.Wrap("join", group.String(), err)
	}
	return conn, nil
}

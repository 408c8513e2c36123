package util

import (
	"context"
	"net"
	"strconv"

	kerrors "knxtool/internal/errors"
)

// ResolveHost resolves a host name or literal IP to a single address,
// honoring context cancellation during the DNS lookup.
func ResolveHost(ctx context.Context, host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return ip, nil
	}
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, kerrors.Wrap("resolve", host, err)
	}
	return addrs[0].IP, nil
}

// LocalSocket builds the local bind address from an optional host and
// port.  A nil host binds to the wildcard address; port 0 requests a
// system-assigned port.
func LocalSocket(host net.IP, port int) *net.TCPAddr {
	return &net.TCPAddr{IP: host, Port: port}
}

// InterfaceFor returns the network interface that carries the given
// address, or nil for the wildcard address.  A concrete address bound
// to no interface is a configuration error.
func InterfaceFor(ip net.IP) (*net.Interface, error) {
	if ip == nil || ip.IsUnspecified() {
		return nil, nil
	}
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, kerrors.Wrap("interfaces", ip.String(), err)
	}
	for i := range ifaces {
		addrs, err := ifaces[i].Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			if ipn, ok := a.(*net.IPNet); ok && ipn.IP.Equal(ip) {
				return &ifaces[i], nil
			}
		}
	}
	return nil, &kerrors.ConfigError{
		Field:   "localhost",
		Value:   ip.String(),
		Message: "address is not assigned to a network interface",
	}
}

// FormatAddr returns "host:port".
func FormatAddr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// FindFreePort returns an available TCP port on 127.0.0.1.
func FindFreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, kerrors.Wrap("listen", "127.0.0.1:0", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

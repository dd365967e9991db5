package membership

import (
	"context"
	"errors"
	"net"
	"strconv"
)

var (
	errEmptyHost    = errors.New("empty host")
	errPortRange    = errors.New("port out of range")
	errNoAddresses  = errors.New("no addresses found")
	defaultResolver = net.DefaultResolver
)

// Resolver looks up the IP addresses of a host. *net.Resolver implements it.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// Addr is the network address of a member: the host and port it was created
// with, and the IP the host resolved to.
type Addr struct {
	Host string
	Port int
	IP   net.IP
}

// String returns the dialable form of the address.
func (a Addr) String() string {
	host := a.Host
	if a.IP != nil {
		host = a.IP.String()
	}

	return net.JoinHostPort(host, strconv.Itoa(a.Port))
}

func (a Addr) TCPAddr() *net.TCPAddr {
	return &net.TCPAddr{IP: a.IP, Port: a.Port}
}

func resolveAddr(ctx context.Context, r Resolver, host string, port int) (Addr, error) {
	fail := func(err error) (Addr, error) {
		return Addr{}, &AddressResolutionError{Host: host, Port: port, Err: err}
	}

	if host == "" {
		return fail(errEmptyHost)
	}

	if port < 0 || port > 65535 {
		return fail(errPortRange)
	}

	if ip := net.ParseIP(host); ip != nil {
		return Addr{Host: host, Port: port, IP: ip}, nil
	}

	ips, err := r.LookupIPAddr(ctx, host)
	if err != nil {
		return fail(err)
	}

	if len(ips) == 0 {
		return fail(errNoAddresses)
	}

	// Prefer IPv4, the same way the dialer does by default.
	ip := ips[0].IP
	for _, addr := range ips {
		if addr.IP.To4() != nil {
			ip = addr.IP
			break
		}
	}

	return Addr{Host: host, Port: port, IP: ip}, nil
}

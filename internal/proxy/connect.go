package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/die-net/socksgate/internal/dialer"
	"github.com/die-net/socksgate/internal/socks5"
)

// Connect dials target through d, giving up after timeout, and returns the
// connection along with the local port it is bound to.
//
// A timeout is reported as socks5.ErrTimeout; any other failure wraps
// socks5.ErrConnect. When the timeout fires the dial is abandoned through
// its context.
func Connect(ctx context.Context, d dialer.Dialer, timeout time.Duration, target socks5.Target) (net.Conn, uint16, error) {
	addr, err := dialAddress(target)
	if err != nil {
		return nil, 0, err
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		if isTimeout(err) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, 0, fmt.Errorf("%w: %s after %v: %w", socks5.ErrTimeout, addr, timeout, err)
		}
		return nil, 0, fmt.Errorf("%w %s: %w", socks5.ErrConnect, addr, err)
	}

	return conn, localPort(conn), nil
}

// dialAddress picks the dial string for each address variant. IPv4 and
// domain targets use their formatted text, leaving name resolution to the
// dialer; IPv6 targets are built from the raw address bytes.
func dialAddress(target socks5.Target) (string, error) {
	switch target.Addr.Type() {
	case socks5.AddrIPv4, socks5.AddrDomain:
		return target.HostPort()
	case socks5.AddrIPv6:
		ap := netip.AddrPortFrom(netip.AddrFrom16(target.Addr.IPv6()), target.Port)
		return ap.String(), nil
	default:
		return "", fmt.Errorf("%w: %v", socks5.ErrAddressNotSupported, target.Addr.Type())
	}
}

func localPort(conn net.Conn) uint16 {
	if ta, ok := conn.LocalAddr().(*net.TCPAddr); ok {
		return uint16(ta.Port)
	}
	if ap, err := netip.ParseAddrPort(conn.LocalAddr().String()); err == nil {
		return ap.Port()
	}
	return 0
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

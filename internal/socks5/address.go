package socks5

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"unicode/utf8"
)

// AddrType is the SOCKS5 ATYP field.
type AddrType byte

const (
	AddrIPv4   AddrType = 0x01
	AddrDomain AddrType = 0x03
	AddrIPv6   AddrType = 0x04
)

func (t AddrType) String() string {
	switch t {
	case AddrIPv4:
		return "ipv4"
	case AddrDomain:
		return "domain"
	case AddrIPv6:
		return "ipv6"
	default:
		return "atyp(" + strconv.Itoa(int(t)) + ")"
	}
}

// Address is a destination address exactly as the client encoded it: 4 raw
// bytes for AddrIPv4, 16 for AddrIPv6, or an arbitrary byte string of at most
// 255 bytes for AddrDomain. Construct it with IPv4Address, IPv6Address or
// DomainAddress; the zero value is not a valid address.
type Address struct {
	typ AddrType
	raw []byte
}

func IPv4Address(b [4]byte) Address {
	return Address{typ: AddrIPv4, raw: b[:]}
}

func IPv6Address(b [16]byte) Address {
	return Address{typ: AddrIPv6, raw: b[:]}
}

// DomainAddress copies name. It panics if name is longer than 255 bytes,
// which cannot be represented on the wire.
func DomainAddress(name []byte) Address {
	if len(name) > 255 {
		panic("socks5: domain longer than 255 bytes")
	}
	return Address{typ: AddrDomain, raw: append([]byte(nil), name...)}
}

// Type returns the address variant.
func (a Address) Type() AddrType { return a.typ }

// IPv4 returns the raw bytes of an AddrIPv4 address. It panics on any other
// variant.
func (a Address) IPv4() [4]byte { return [4]byte(a.raw) }

// IPv6 returns the raw bytes of an AddrIPv6 address. It panics on any other
// variant.
func (a Address) IPv6() [16]byte { return [16]byte(a.raw) }

// Domain returns a copy of the undecoded bytes of an AddrDomain address.
func (a Address) Domain() []byte { return append([]byte(nil), a.raw...) }

// Host renders the address as text for dialing and logging. IPv4 is
// dotted-decimal, IPv6 uses RFC 5952 notation, and a domain is its bytes
// decoded as UTF-8; a domain that is not valid UTF-8 yields ErrEncoding.
func (a Address) Host() (string, error) {
	switch a.typ {
	case AddrIPv4:
		return netip.AddrFrom4(a.IPv4()).String(), nil
	case AddrIPv6:
		return netip.AddrFrom16(a.IPv6()).String(), nil
	case AddrDomain:
		if !utf8.Valid(a.raw) {
			return "", fmt.Errorf("%w: %q", ErrEncoding, a.raw)
		}
		return string(a.raw), nil
	default:
		return "", fmt.Errorf("%w: %v", ErrAddressNotSupported, a.typ)
	}
}

// AppendWire appends the ATYP byte and the address field as they appear in a
// request or reply.
func (a Address) AppendWire(b []byte) []byte {
	b = append(b, byte(a.typ))
	if a.typ == AddrDomain {
		b = append(b, byte(len(a.raw)))
	}
	return append(b, a.raw...)
}

// Target is the destination named by a CONNECT request.
type Target struct {
	Addr Address
	Port uint16
}

// HostPort returns the "host:port" form of t, bracketing IPv6 hosts.
func (t Target) HostPort() (string, error) {
	host, err := t.Addr.Host()
	if err != nil {
		return "", err
	}
	return net.JoinHostPort(host, strconv.Itoa(int(t.Port))), nil
}

// String is HostPort without the error, quoting undecodable domains.
func (t Target) String() string {
	if t.Addr.typ == 0 {
		return ""
	}
	if s, err := t.HostPort(); err == nil {
		return s
	}
	return net.JoinHostPort(strconv.Quote(string(t.Addr.raw)), strconv.Itoa(int(t.Port)))
}

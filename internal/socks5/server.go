package socks5

import (
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"io"
	"slices"

	txsocks5 "github.com/txthinking/socks5"
)

const (
	// CmdConnect is the SOCKS5 CONNECT command value.
	CmdConnect byte = 0x01

	// RFC 1929 sub-negotiation version.
	authVersion byte = 0x01
)

// Auth is the credential pair a client must present when it offers
// username/password authentication. The zero value disables authentication.
type Auth struct {
	Username string
	Password string
}

// Enabled reports whether a credential pair is configured.
func (a Auth) Enabled() bool {
	return a.Username != "" || a.Password != ""
}

// ServerOptions controls the server side of method negotiation.
type ServerOptions struct {
	Auth Auth

	// StrictAuth rejects clients that do not offer the method the server
	// wants: username/password when Auth is set, "no authentication"
	// otherwise. When false, a client that does not offer username/password
	// is always answered with "no authentication", whatever it offered.
	StrictAuth bool
}

// ServerNegotiate reads the client greeting and performs method selection
// and, if selected, username/password verification.
func ServerNegotiate(rw io.ReadWriter, opts ServerOptions) error {
	var hdr [2]byte
	if err := readFull(rw, hdr[:], "greeting"); err != nil {
		return err
	}
	if hdr[0] != txsocks5.Ver {
		return fmt.Errorf("%w: unsupported version %d", ErrProtocolViolation, hdr[0])
	}

	methods := make([]byte, int(hdr[1]))
	if err := readFull(rw, methods, "methods"); err != nil {
		return err
	}

	if opts.Auth.Enabled() && slices.Contains(methods, txsocks5.MethodUsernamePassword) {
		if err := writeMethod(rw, txsocks5.MethodUsernamePassword); err != nil {
			return err
		}
		return serverAuthenticate(rw, opts.Auth)
	}

	if opts.StrictAuth && (opts.Auth.Enabled() || !slices.Contains(methods, txsocks5.MethodNone)) {
		writeNoAcceptableMethods(rw)
		return fmt.Errorf("%w: no acceptable method in %v", ErrAuthFailure, methods)
	}

	return writeMethod(rw, txsocks5.MethodNone)
}

func serverAuthenticate(rw io.ReadWriter, auth Auth) error {
	var hdr [2]byte
	if err := readFull(rw, hdr[:], "auth header"); err != nil {
		return err
	}
	if hdr[0] != authVersion {
		return fmt.Errorf("%w: unsupported auth version %d", ErrProtocolViolation, hdr[0])
	}
	if int(hdr[1]) != len(auth.Username) {
		writeAuthStatus(rw, txsocks5.UserPassStatusFailure)
		return fmt.Errorf("%w: username length %d", ErrAuthFailure, hdr[1])
	}
	uname := make([]byte, hdr[1])
	if err := readFull(rw, uname, "username"); err != nil {
		return err
	}

	var plen [1]byte
	if err := readFull(rw, plen[:], "password length"); err != nil {
		return err
	}
	if int(plen[0]) != len(auth.Password) {
		writeAuthStatus(rw, txsocks5.UserPassStatusFailure)
		return fmt.Errorf("%w: password length %d", ErrAuthFailure, plen[0])
	}
	passwd := make([]byte, plen[0])
	if err := readFull(rw, passwd, "password"); err != nil {
		return err
	}

	userOK := subtle.ConstantTimeCompare(uname, []byte(auth.Username))
	passOK := subtle.ConstantTimeCompare(passwd, []byte(auth.Password))
	if userOK&passOK != 1 {
		writeAuthStatus(rw, txsocks5.UserPassStatusFailure)
		return fmt.Errorf("%w: bad credentials for %q", ErrAuthFailure, uname)
	}

	if _, err := txsocks5.NewUserPassNegotiationReply(txsocks5.UserPassStatusSuccess).WriteTo(rw); err != nil {
		return ioError("write auth status", err)
	}
	return nil
}

// ServerReadRequest reads a CONNECT request. Nothing is written to rw on any
// path; the caller decides whether a failure gets a reply.
func ServerReadRequest(r io.Reader) (Target, error) {
	var hdr [4]byte
	if err := readFull(r, hdr[:], "request"); err != nil {
		return Target{}, err
	}
	if hdr[0] != txsocks5.Ver {
		return Target{}, fmt.Errorf("%w: unsupported version %d", ErrProtocolViolation, hdr[0])
	}
	if hdr[1] != CmdConnect {
		return Target{}, fmt.Errorf("%w: %d", ErrCommandNotSupported, hdr[1])
	}

	var t Target
	switch AddrType(hdr[3]) {
	case AddrIPv4:
		var ip [4]byte
		if err := readFull(r, ip[:], "ipv4 address"); err != nil {
			return Target{}, err
		}
		t.Addr = IPv4Address(ip)
	case AddrIPv6:
		var ip [16]byte
		if err := readFull(r, ip[:], "ipv6 address"); err != nil {
			return Target{}, err
		}
		t.Addr = IPv6Address(ip)
	case AddrDomain:
		var n [1]byte
		if err := readFull(r, n[:], "domain length"); err != nil {
			return Target{}, err
		}
		name := make([]byte, n[0])
		if err := readFull(r, name, "domain"); err != nil {
			return Target{}, err
		}
		t.Addr = DomainAddress(name)
	default:
		return Target{}, fmt.Errorf("%w: %d", ErrAddressNotSupported, hdr[3])
	}

	var port [2]byte
	if err := readFull(r, port[:], "port"); err != nil {
		return Target{}, err
	}
	t.Port = binary.BigEndian.Uint16(port[:])

	return t, nil
}

func writeMethod(w io.Writer, method byte) error {
	if _, err := txsocks5.NewNegotiationReply(method).WriteTo(w); err != nil {
		return ioError("write method selection", err)
	}
	return nil
}

func writeAuthStatus(w io.Writer, status byte) {
	_, _ = txsocks5.NewUserPassNegotiationReply(status).WriteTo(w)
}

func writeNoAcceptableMethods(w io.Writer) {
	// RFC 1928: 0xFF indicates no acceptable methods.
	_, _ = txsocks5.NewNegotiationReply(0xff).WriteTo(w)
}

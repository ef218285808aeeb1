package socks5

import (
	"encoding/binary"
	"errors"
	"io"
	"syscall"

	txsocks5 "github.com/txthinking/socks5"
)

// WriteSuccessReply writes a SOCKS5 success reply that echoes addr in the
// client's own encoding, followed by port.
func WriteSuccessReply(w io.Writer, addr Address, port uint16) error {
	b := make([]byte, 0, 3+2+255+2)
	b = append(b, txsocks5.Ver, txsocks5.RepSuccess, 0x00)
	b = addr.AppendWire(b)
	b = binary.BigEndian.AppendUint16(b, port)
	return writeAll(w, b, "success reply")
}

// WriteFailureReply writes a SOCKS5 failure reply with code rep and a zero
// IPv4 bound address.
func WriteFailureReply(w io.Writer, rep byte) error {
	r := txsocks5.NewReply(rep, txsocks5.ATYPIPv4, []byte{0x00, 0x00, 0x00, 0x00}, []byte{0x00, 0x00})
	if _, err := r.WriteTo(w); err != nil {
		return ioError("failure reply", err)
	}
	return nil
}

// FailureReplyCode maps a request or connect error to the RFC 1928 reply
// code describing it. It returns false for errors that have no matching
// reply, such as a malformed greeting or a broken client connection.
func FailureReplyCode(err error) (byte, bool) {
	switch {
	case err == nil:
		return 0, false
	case errors.Is(err, ErrCommandNotSupported):
		return txsocks5.RepCommandNotSupported, true
	case errors.Is(err, ErrAddressNotSupported):
		return txsocks5.RepAddressNotSupported, true
	case errors.Is(err, ErrEncoding):
		return txsocks5.RepAddressNotSupported, true
	case errors.Is(err, ErrTimeout):
		return txsocks5.RepTTLExpired, true
	case !errors.Is(err, ErrConnect):
		return 0, false
	case errors.Is(err, syscall.ECONNREFUSED):
		return txsocks5.RepConnectionRefused, true
	case errors.Is(err, syscall.ENETUNREACH):
		return txsocks5.RepNetworkUnreachable, true
	default:
		return txsocks5.RepHostUnreachable, true
	}
}

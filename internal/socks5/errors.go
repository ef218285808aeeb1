package socks5

import (
	"errors"
	"fmt"
	"io"
)

// Error categories. Every error returned by this package wraps exactly one of
// them.
var (
	ErrProtocolViolation = errors.New("socks5: protocol violation")
	ErrAuthFailure       = errors.New("socks5: authentication failed")
	ErrEncoding          = errors.New("socks5: invalid domain encoding")
	ErrTimeout           = errors.New("socks5: dial timeout")
	ErrIO                = errors.New("socks5: i/o error")
)

// Protocol violations that map onto distinct RFC 1928 reply codes.
var (
	ErrCommandNotSupported = fmt.Errorf("%w: command not supported", ErrProtocolViolation)
	ErrAddressNotSupported = fmt.Errorf("%w: address type not supported", ErrProtocolViolation)
)

// ErrConnect marks a failed outbound connection attempt other than a timeout.
var ErrConnect = fmt.Errorf("%w: connect", ErrIO)

// KindOf returns a short category name for err, for logging.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrProtocolViolation):
		return "protocol"
	case errors.Is(err, ErrAuthFailure):
		return "auth"
	case errors.Is(err, ErrEncoding):
		return "encoding"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	default:
		return "io"
	}
}

func ioError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrIO, op, err)
}

func readFull(r io.Reader, buf []byte, op string) error {
	if _, err := io.ReadFull(r, buf); err != nil {
		return ioError("read "+op, err)
	}
	return nil
}

func writeAll(w io.Writer, b []byte, op string) error {
	if _, err := w.Write(b); err != nil {
		return ioError("write "+op, err)
	}
	return nil
}

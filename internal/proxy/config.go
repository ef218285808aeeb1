package proxy

import (
	"net"
	"time"

	"github.com/charmbracelet/log"

	"github.com/die-net/socksgate/internal/dialer"
	"github.com/die-net/socksgate/internal/socks5"
)

type Config struct {
	// NegotiationTimeout bounds everything from the greeting to the success
	// reply. Zero disables it.
	NegotiationTimeout time.Duration
	// DialTimeout bounds the outbound connect. Zero disables it.
	DialTimeout time.Duration

	KeepAlive net.KeepAliveConfig

	Auth       socks5.Auth
	StrictAuth bool
	// FailureReplies sends RFC 1928 failure replies for rejected requests
	// and failed connects instead of closing silently.
	FailureReplies bool

	Dialer dialer.Dialer
	Logger *log.Logger
}

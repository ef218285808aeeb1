package proxy

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/charmbracelet/log"

	"github.com/die-net/socksgate/internal/dialer"
	"github.com/die-net/socksgate/internal/socks5"
)

// SOCKS5Server serves SOCKS5 CONNECT requests. Connections are independent:
// a failure in one never affects the listener or any other connection.
type SOCKS5Server struct {
	ctx     context.Context
	cfg     Config
	opts    socks5.ServerOptions
	log     *log.Logger
	bufs    *BufferPool
	verbose bool
}

// NewSOCKS5Server returns a server whose connections are torn down when ctx
// ends. With verbose set, per-connection failures are logged at warn level
// instead of debug.
func NewSOCKS5Server(ctx context.Context, cfg Config, verbose bool) *SOCKS5Server {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	if cfg.Dialer == nil {
		cfg.Dialer = dialer.NewDirectDialer(dialer.Config{DialTimeout: cfg.DialTimeout, KeepAlive: cfg.KeepAlive})
	}
	return &SOCKS5Server{
		ctx:     ctx,
		cfg:     cfg,
		opts:    socks5.ServerOptions{Auth: cfg.Auth, StrictAuth: cfg.StrictAuth},
		log:     logger,
		bufs:    NewBufferPool(relayBufferSize),
		verbose: verbose,
	}
}

func (s *SOCKS5Server) Serve(ln net.Listener) error {
	for {
		c, err := ln.Accept()
		if err != nil {
			return fmt.Errorf("accept: %w", err)
		}
		go s.handleConn(c)
	}
}

func (s *SOCKS5Server) handleConn(conn net.Conn) {
	defer conn.Close()

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	logger := s.log.With("client", conn.RemoteAddr().String())
	logger.Info("accept")

	target, stats, err := s.serve(ctx, conn, logger)
	if err != nil {
		lvl := log.DebugLevel
		if s.verbose {
			lvl = log.WarnLevel
		}
		logger.Log(lvl, "socks5: connection error", "target", target, "kind", socks5.KindOf(err), "err", err)
		return
	}

	logger.Info("connection finished", "target", target,
		"sent", stats.ClientToTarget, "received", stats.TargetToClient)
}

// serve runs one session: negotiate, read the request, connect, reply, and
// relay. Each stage must succeed before the next one starts. The negotiation
// deadline covers the greeting and the request only; the dial is bounded by
// DialTimeout.
func (s *SOCKS5Server) serve(ctx context.Context, conn net.Conn, logger *log.Logger) (socks5.Target, RelayStats, error) {
	if s.cfg.NegotiationTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(s.cfg.NegotiationTimeout))
	}

	if err := socks5.ServerNegotiate(conn, s.opts); err != nil {
		return socks5.Target{}, RelayStats{}, fmt.Errorf("negotiate: %w", err)
	}

	target, err := socks5.ServerReadRequest(conn)
	if err != nil {
		s.writeFailure(conn, err)
		return target, RelayStats{}, fmt.Errorf("request: %w", err)
	}

	_ = conn.SetDeadline(time.Time{})

	logger.Info("proxy connect", "target", target)

	up, port, err := Connect(ctx, s.cfg.Dialer, s.cfg.DialTimeout, target)
	if err != nil {
		s.writeFailure(conn, err)
		return target, RelayStats{}, err
	}
	defer up.Close()

	s.armWrite(conn)
	if err := socks5.WriteSuccessReply(conn, target.Addr, port); err != nil {
		return target, RelayStats{}, err
	}
	_ = conn.SetWriteDeadline(time.Time{})

	stats, err := Relay(ctx, conn, up, s.bufs)
	if err != nil {
		return target, stats, fmt.Errorf("%w: relay: %w", socks5.ErrIO, err)
	}
	return target, stats, nil
}

func (s *SOCKS5Server) writeFailure(conn net.Conn, err error) {
	if !s.cfg.FailureReplies {
		return
	}
	if rep, ok := socks5.FailureReplyCode(err); ok {
		s.armWrite(conn)
		_ = socks5.WriteFailureReply(conn, rep)
	}
}

// armWrite bounds a single reply write by the negotiation timeout.
func (s *SOCKS5Server) armWrite(conn net.Conn) {
	if s.cfg.NegotiationTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.NegotiationTimeout))
	}
}

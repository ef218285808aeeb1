package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // Intentionally exposed on debug port.
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/die-net/socksgate/internal/config"
	"github.com/die-net/socksgate/internal/dialer"
	"github.com/die-net/socksgate/internal/proxy"
	"github.com/die-net/socksgate/internal/socks5"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	pflag.CommandLine.SortFlags = false
	cfg, err := config.Parse(pflag.CommandLine, os.Args[1:], os.Getenv)
	if err != nil {
		return err
	}

	level, _ := log.ParseLevel(cfg.LogLevel)
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Level:           level,
	})
	log.SetDefault(logger)

	ka, err := cfg.KeepAlive()
	if err != nil {
		return fmt.Errorf("invalid --tcp-keepalive: %w", err)
	}

	d, err := dialer.New(dialer.Config{
		DialTimeout:        cfg.DialTimeout,
		NegotiationTimeout: cfg.NegotiationTimeout,
		KeepAlive:          ka,
	}, cfg.Upstream)
	if err != nil {
		return fmt.Errorf("invalid --upstream: %w", err)
	}

	g, ctx := errgroup.WithContext(context.Background())

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.DebugListen != "" {
		debugSrv := &http.Server{Handler: http.DefaultServeMux} //nolint:gosec // Not concerned about timeouts on debug port.
		debugLn, err := proxy.ListenTCP(ctx, "tcp", cfg.DebugListen, ka)
		if err != nil {
			return fmt.Errorf("debug listen: %w", err)
		}
		context.AfterFunc(ctx, func() {
			_ = debugSrv.Close()
		})

		g.Go(func() error {
			if err := debugSrv.Serve(debugLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("debug serve: %w", err)
			}
			return nil
		})
		logger.Info("debug listening", "addr", cfg.DebugListen)
	}

	ln, err := proxy.ListenTCP(ctx, "tcp", cfg.Listen, ka)
	if err != nil {
		return fmt.Errorf("socks5 listen: %w", err)
	}

	s5 := proxy.NewSOCKS5Server(ctx, proxy.Config{
		NegotiationTimeout: cfg.NegotiationTimeout,
		DialTimeout:        cfg.DialTimeout,
		KeepAlive:          ka,
		Auth:               socks5.Auth{Username: cfg.Username, Password: cfg.Password},
		StrictAuth:         cfg.StrictAuth,
		FailureReplies:     cfg.FailureReplies,
		Dialer:             d,
		Logger:             logger,
	}, cfg.Verbose)
	context.AfterFunc(ctx, func() {
		_ = ln.Close()
	})

	g.Go(func() error {
		if err := s5.Serve(ln); err != nil && !errors.Is(err, net.ErrClosed) {
			return fmt.Errorf("socks5 serve: %w", err)
		}
		return nil
	})

	logger.Info("socks5 proxy listening", "addr", ln.Addr().String(),
		"auth", cfg.Username != "", "upstream", cfg.Upstream)

	err = g.Wait()

	logger.Info("shutting down")
	return err
}

// Package config assembles socksgate settings from defaults, environment
// variables, an optional YAML file, and command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Environment variables consulted before the config file and flags.
const (
	EnvUsername = "SOCKSGATE_USERNAME"
	EnvPassword = "SOCKSGATE_PASSWORD"
)

type Config struct {
	Listen   string `yaml:"socks5_listen"`
	Upstream string `yaml:"upstream"`

	Username string `yaml:"username"`
	Password string `yaml:"password"`

	StrictAuth     bool `yaml:"strict_auth"`
	FailureReplies bool `yaml:"failure_replies"`

	DialTimeout        time.Duration `yaml:"dial_timeout"`
	NegotiationTimeout time.Duration `yaml:"negotiation_timeout"`
	TCPKeepAlive       string        `yaml:"tcp_keepalive"`

	DebugListen string `yaml:"debug_listen"`
	LogLevel    string `yaml:"log_level"`
	Verbose     bool   `yaml:"verbose"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Listen:             "127.0.0.1:1080",
		Upstream:           "direct://",
		DialTimeout:        10 * time.Second,
		NegotiationTimeout: 10 * time.Second,
		TCPKeepAlive:       "10:10:3",
		LogLevel:           "info",
	}
}

// Parse defines socksgate's flags on fs, parses args, and layers the result
// over the environment (read through getenv) and the file named by --config.
func Parse(fs *pflag.FlagSet, args []string, getenv func(string) string) (Config, error) {
	base := Default()
	base.applyEnv(getenv)

	// Flags write into their own copy so that only explicitly set flags
	// override the config file.
	fc := base
	var path string

	fs.StringVar(&path, "config", "", "YAML config file. Flags override values from the file.")
	fs.StringVar(&fc.Listen, "socks5-listen", fc.Listen, "SOCKS5 listen address")
	fs.StringVar(&fc.Upstream, "upstream", fc.Upstream, "Outbound route: direct:// | socks5://[user:pass@]host:port")
	fs.StringVar(&fc.Username, "username", fc.Username, "Username clients must present (env "+EnvUsername+"). Empty disables authentication.")
	fs.StringVar(&fc.Password, "password", fc.Password, "Password clients must present (env "+EnvPassword+")")
	fs.BoolVar(&fc.StrictAuth, "strict-auth", fc.StrictAuth, "Reject clients that do not offer the required authentication method")
	fs.BoolVar(&fc.FailureReplies, "failure-replies", fc.FailureReplies, "Send SOCKS5 failure replies instead of closing silently")
	fs.DurationVar(&fc.DialTimeout, "dial-timeout", fc.DialTimeout, "Timeout for outbound DNS lookup and TCP connect")
	fs.DurationVar(&fc.NegotiationTimeout, "negotiation-timeout", fc.NegotiationTimeout, "Timeout for the SOCKS5 handshake")
	fs.StringVar(&fc.TCPKeepAlive, "tcp-keepalive", fc.TCPKeepAlive, "TCP keepalive: on|off|keepidle:keepintvl:keepcnt")
	fs.StringVar(&fc.DebugListen, "debug-listen", fc.DebugListen, "Debug HTTP listen address exposing /debug/pprof. Empty disables.")
	fs.StringVar(&fc.LogLevel, "log-level", fc.LogLevel, "Log level: debug|info|warn|error")
	fs.BoolVar(&fc.Verbose, "verbose", fc.Verbose, "Log per-connection errors at warn level")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := base
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}

	fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "socks5-listen":
			cfg.Listen = fc.Listen
		case "upstream":
			cfg.Upstream = fc.Upstream
		case "username":
			cfg.Username = fc.Username
		case "password":
			cfg.Password = fc.Password
		case "strict-auth":
			cfg.StrictAuth = fc.StrictAuth
		case "failure-replies":
			cfg.FailureReplies = fc.FailureReplies
		case "dial-timeout":
			cfg.DialTimeout = fc.DialTimeout
		case "negotiation-timeout":
			cfg.NegotiationTimeout = fc.NegotiationTimeout
		case "tcp-keepalive":
			cfg.TCPKeepAlive = fc.TCPKeepAlive
		case "debug-listen":
			cfg.DebugListen = fc.DebugListen
		case "log-level":
			cfg.LogLevel = fc.LogLevel
		case "verbose":
			cfg.Verbose = fc.Verbose
		}
	})

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if getenv == nil {
		return
	}
	if v := getenv(EnvUsername); v != "" {
		c.Username = v
	}
	if v := getenv(EnvPassword); v != "" {
		c.Password = v
	}
	if p := getenv("ALL_PROXY"); p != "" {
		c.Upstream = p
	} else if p := getenv("all_proxy"); p != "" {
		c.Upstream = p
	}
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // Path is from user config.
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return errors.New("socks5_listen is required")
	}
	if (c.Username == "") != (c.Password == "") {
		return errors.New("username and password must be set together")
	}
	if len(c.Username) > 255 || len(c.Password) > 255 {
		return errors.New("username and password must be at most 255 bytes")
	}
	if c.DialTimeout <= 0 {
		return fmt.Errorf("dial_timeout must be > 0, got %v", c.DialTimeout)
	}
	if c.NegotiationTimeout < 0 {
		return fmt.Errorf("negotiation_timeout must be >= 0, got %v", c.NegotiationTimeout)
	}
	if _, err := c.KeepAlive(); err != nil {
		return fmt.Errorf("invalid tcp_keepalive: %w", err)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}
	return nil
}

// KeepAlive parses TCPKeepAlive.
func (c *Config) KeepAlive() (net.KeepAliveConfig, error) {
	return parseTCPKeepAlive(c.TCPKeepAlive)
}

func parseTCPKeepAlive(s string) (net.KeepAliveConfig, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return net.KeepAliveConfig{}, errors.New("empty")
	}
	if s == "on" {
		return net.KeepAliveConfig{Enable: true}, nil
	}
	if s == "off" {
		return net.KeepAliveConfig{Enable: false}, nil
	}

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return net.KeepAliveConfig{}, errors.New("expected on|off|keepidle:keepintvl:keepcnt")
	}
	keepIdle, err := parsePositive(parts[0])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepidle: %w", err)
	}
	keepIntvl, err := parsePositive(parts[1])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepintvl: %w", err)
	}
	keepCnt, err := parsePositive(parts[2])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepcnt: %w", err)
	}

	return net.KeepAliveConfig{
		Enable:   true,
		Idle:     time.Duration(keepIdle) * time.Second,
		Interval: time.Duration(keepIntvl) * time.Second,
		Count:    keepCnt,
	}, nil
}

func parsePositive(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.New("must be > 0")
	}
	return n, nil
}

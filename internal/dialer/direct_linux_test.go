//go:build linux

package dialer

import (
	"context"
	"net"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/die-net/socksgate/internal/testutil"
)

func TestDirectDialerAppliesKeepAlive(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	echoLn := testutil.StartEchoTCPServer(t, ctx)
	defer echoLn.Close()

	d := NewDirectDialer(Config{
		DialTimeout: 2 * time.Second,
		KeepAlive:   net.KeepAliveConfig{Enable: true, Idle: 10 * time.Second, Interval: 10 * time.Second, Count: 3},
	})

	conn, err := d.DialContext(ctx, "tcp", echoLn.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	rc, err := conn.(*net.TCPConn).SyscallConn()
	if err != nil {
		t.Fatal(err)
	}

	var keepAlive, interval int
	var sockErr error
	if err := rc.Control(func(fd uintptr) {
		keepAlive, sockErr = unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_KEEPALIVE)
		if sockErr != nil {
			return
		}
		interval, sockErr = unix.GetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPINTVL)
	}); err != nil {
		t.Fatal(err)
	}
	if sockErr != nil {
		t.Fatal(sockErr)
	}

	if keepAlive == 0 {
		t.Fatal("SO_KEEPALIVE not set")
	}
	if interval != 10 {
		t.Fatalf("TCP_KEEPINTVL=%d, want 10", interval)
	}
}

package proxy

import (
	"bytes"
	"context"
	"io"
	"net"
	"testing"
	"time"
)

type relayResult struct {
	stats RelayStats
	err   error
}

// startRelay relays between two net.Pipe pairs and returns the outer ends.
func startRelay(t *testing.T, ctx context.Context) (client, target net.Conn, done <-chan relayResult) {
	t.Helper()

	client, clientProxy := net.Pipe()
	targetProxy, target := net.Pipe()
	t.Cleanup(func() {
		_ = client.Close()
		_ = target.Close()
	})
	deadline := time.Now().Add(2 * time.Second)
	_ = client.SetDeadline(deadline)
	_ = target.SetDeadline(deadline)

	ch := make(chan relayResult, 1)
	go func() {
		stats, err := Relay(ctx, clientProxy, targetProxy, NewBufferPool(relayBufferSize))
		ch <- relayResult{stats, err}
	}()
	return client, target, ch
}

func waitRelay(t *testing.T, done <-chan relayResult) relayResult {
	t.Helper()

	select {
	case r := <-done:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not terminate")
		return relayResult{}
	}
}

func TestRelayForwardsBothDirections(t *testing.T) {
	client, target, done := startRelay(t, context.Background())

	large := bytes.Repeat([]byte("abcdefghijklmnopq"), 4000)
	go func() {
		_, _ = client.Write([]byte("ping"))
		_, _ = client.Write(large)
	}()

	got := make([]byte, 4+len(large))
	if _, err := io.ReadFull(target, got); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, append([]byte("ping"), large...)) {
		t.Fatal("client to target bytes differ")
	}

	go func() { _, _ = target.Write([]byte("pong")) }()
	reply := make([]byte, 4)
	if _, err := io.ReadFull(client, reply); err != nil {
		t.Fatal(err)
	}
	if string(reply) != "pong" {
		t.Fatalf("got %q want %q", reply, "pong")
	}

	_ = target.Close()

	r := waitRelay(t, done)
	if r.err != nil {
		t.Fatal(r.err)
	}
	if want := int64(4 + len(large)); r.stats.ClientToTarget != want {
		t.Fatalf("client to target %d bytes, want %d", r.stats.ClientToTarget, want)
	}
	if r.stats.TargetToClient != 4 {
		t.Fatalf("target to client %d bytes, want 4", r.stats.TargetToClient)
	}
}

func TestRelayInterleaved(t *testing.T) {
	client, target, done := startRelay(t, context.Background())

	for i := range 50 {
		up := bytes.Repeat([]byte{byte(i)}, i+1)
		down := bytes.Repeat([]byte{byte(255 - i)}, 2*i+1)

		go func() { _, _ = client.Write(up) }()
		got := make([]byte, len(up))
		if _, err := io.ReadFull(target, got); err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, up) {
			t.Fatalf("round %d: upstream bytes differ", i)
		}

		go func() { _, _ = target.Write(down) }()
		got = make([]byte, len(down))
		if _, err := io.ReadFull(client, got); err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, down) {
			t.Fatalf("round %d: downstream bytes differ", i)
		}
	}

	_ = client.Close()
	if r := waitRelay(t, done); r.err != nil {
		t.Fatal(r.err)
	}
}

func TestRelayTargetEOFClosesClient(t *testing.T) {
	client, target, done := startRelay(t, context.Background())

	_ = target.Close()
	waitRelay(t, done)

	if _, err := client.Read(make([]byte, 1)); err != io.EOF {
		t.Fatalf("client read err=%v, want EOF", err)
	}
}

func TestRelayClientEOFClosesTarget(t *testing.T) {
	client, target, done := startRelay(t, context.Background())

	_ = client.Close()
	waitRelay(t, done)

	if _, err := target.Read(make([]byte, 1)); err != io.EOF {
		t.Fatalf("target read err=%v, want EOF", err)
	}
}

func TestRelayContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client, target, done := startRelay(t, ctx)

	cancel()
	if r := waitRelay(t, done); r.err != nil {
		t.Fatal(r.err)
	}

	if _, err := client.Read(make([]byte, 1)); err != io.EOF {
		t.Fatalf("client read err=%v, want EOF", err)
	}
	if _, err := target.Read(make([]byte, 1)); err != io.EOF {
		t.Fatalf("target read err=%v, want EOF", err)
	}
}

package proxy

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// RelayStats counts the bytes forwarded in each direction.
type RelayStats struct {
	ClientToTarget int64
	TargetToClient int64
}

// Relay copies bytes between client and target until either direction sees
// EOF or an error, or ctx is done. The first direction to stop ends the
// whole session: both connections are closed before Relay returns.
//
// A clean EOF returns a nil error.
func Relay(ctx context.Context, client, target net.Conn, bufs *BufferPool) (RelayStats, error) {
	var (
		closeOnce sync.Once
		closed    atomic.Bool
	)
	closeBoth := func() {
		closeOnce.Do(func() {
			closed.Store(true)
			_ = client.Close()
			_ = target.Close()
		})
	}
	defer closeBoth()

	stop := context.AfterFunc(ctx, closeBoth)
	defer stop()

	// Errors caused by our own close of the other side are not failures.
	settle := func(err error) error {
		if err != nil && closed.Load() && (errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe)) {
			return nil
		}
		return err
	}

	var stats RelayStats
	var g errgroup.Group

	g.Go(func() error {
		n, err := copyHalf(target, client, bufs)
		stats.ClientToTarget = n
		err = settle(err)
		closeBoth()
		return err
	})

	g.Go(func() error {
		n, err := copyHalf(client, target, bufs)
		stats.TargetToClient = n
		err = settle(err)
		closeBoth()
		return err
	})

	return stats, g.Wait()
}

// copyHalf forwards src to dst until src reports EOF or either side fails.
// Bytes returned together with EOF are forwarded before stopping.
func copyHalf(dst io.Writer, src io.Reader, bufs *BufferPool) (int64, error) {
	bp := bufs.Get()
	defer bufs.Put(bp)
	buf := *bp

	var written int64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			w, werr := dst.Write(buf[:n])
			written += int64(w)
			if werr != nil {
				return written, werr
			}
		}
		if errors.Is(rerr, io.EOF) {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}

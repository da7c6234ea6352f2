package uow

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/bitdabbler/backoff"
)

// NetWriter is an io.WriteCloser that streams framed records to a
// network collector, reconnecting with exponential backoff when the
// connection breaks. It is the standard destination behind a
// background queue: the queue's single consumer goroutine is the only
// writer, so NetWriter is deliberately not thread-safe.
type NetWriter struct {
	opts *NetWriterOptions
	addr string
	conn net.Conn
}

// NewNetWriter dials the collector at host and returns the writer.
// Unless SkipEagerDial is set, the initial connection is established
// before returning, so setup-time misconfiguration fails fast.
func NewNetWriter(host string, opts *NetWriterOptions) (*NetWriter, error) {
	if len(host) == 0 {
		return nil, errors.New("valid host required")
	}

	if opts == nil {
		opts = DefaultNetWriterOptions()
	} else {
		opts.resolve()
	}

	w := &NetWriter{
		opts: opts,
		addr: fmt.Sprintf("%s:%d", host, opts.Port),
	}

	if !opts.SkipEagerDial {
		if err := w.tryConnect(context.Background(), opts.MaxDialTries); err != nil {
			return nil, err
		}
	}

	return w, nil
}

// tryConnect dials until a connection is established or maxAttempts is
// exhausted, sleeping with exponential backoff between attempts. A
// non-positive maxAttempts retries indefinitely.
func (w *NetWriter) tryConnect(ctx context.Context, maxAttempts int) error {
	b, err := backoff.New(
		backoff.WithInitialDelay(0),
		backoff.WithExponentialLimit(time.Second*20),
	)
	if err != nil {
		return err
	}

	i := 0
	for {
		i++
		err = w.connect(ctx)
		if err == nil {
			return nil
		}
		if maxAttempts > 0 && i >= maxAttempts {
			break
		}
		b.Sleep()
	}

	return fmt.Errorf("failed to connect to collector after %d attempts: %w", maxAttempts, err)
}

func (w *NetWriter) connect(ctx context.Context) error {
	var d net.Dialer
	ctx, cancel := context.WithTimeout(ctx, w.opts.DialTimeout)
	defer cancel()

	switch w.opts.Network {
	case "tcp", "udp":
		conn, err := d.DialContext(ctx, w.opts.Network, w.addr)
		if err != nil {
			return fmt.Errorf("failed to dial collector at %s over %s: %w", w.addr, w.opts.Network, err)
		}
		w.conn = conn
	case "tls":
		tlsDialer := tls.Dialer{
			NetDialer: &d,
			Config:    &tls.Config{InsecureSkipVerify: w.opts.InsecureSkipVerify},
		}
		conn, err := tlsDialer.DialContext(ctx, "tcp", w.addr)
		if err != nil {
			return fmt.Errorf("failed to dial collector at %s over tls: %w", w.addr, err)
		}
		w.conn = conn
	default:
		return fmt.Errorf("unsupported collector transport protocol: %s", w.opts.Network)
	}

	return nil
}

// Write sends one framed record. On write timeout it retries up to
// MaxWriteTries; on an unrecoverable error (or exhausted retries) it
// tears the connection down and returns the error, so the caller can
// report it and carry on. The next Write redials.
func (w *NetWriter) Write(p []byte) (int, error) {
	if w.conn == nil {
		if err := w.tryConnect(context.Background(), w.opts.MaxDialTries); err != nil {
			return 0, err
		}
	}

	var lastErr error
	for i := 0; i < w.opts.MaxWriteTries; i++ {
		if w.opts.WriteTimeout > 0 {
			w.conn.SetWriteDeadline(time.Now().Add(w.opts.WriteTimeout))
		}

		n, err := w.conn.Write(p)
		if err == nil {
			return n, nil
		}
		lastErr = err

		// only timeouts are potentially recoverable
		if ne, ok := err.(net.Error); !(ok && ne.Timeout()) {
			break
		}
	}

	// broken pipe; tear down so the next Write reconnects
	w.conn.Close()
	w.conn = nil
	return 0, lastErr
}

// Close tears down the connection, if any.
func (w *NetWriter) Close() error {
	if w.conn == nil {
		return nil
	}
	err := w.conn.Close()
	w.conn = nil
	return err
}

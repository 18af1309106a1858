package network

import (
	"context"
	"io"
	"iter"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/zeusync/eventnet/internal/core/observability/log"
)

// ErrIncomingClosed is returned by Next once the sequence was closed.
var ErrIncomingClosed = errors.New("accept sequence closed")

// UpgradeFunc turns a freshly accepted raw connection into a socket. It owns
// conn and must close it on failure.
type UpgradeFunc[S any] func(conn net.Conn) (S, error)

type acceptResult[S any] struct {
	socket S
	err    error
}

// Incoming is the accept sequence. It owns its listener and drives at most
// one accept attempt at a time: the slot is either idle (pending == nil) or
// holds the channel the in-flight attempt reports on. A completed attempt
// clears the slot before the next one starts, and a failed attempt only
// costs that slot.
type Incoming[S io.Closer] struct {
	listener net.Listener
	upgrade  UpgradeFunc[S]
	logger   log.Log
	metrics  *Metrics

	// turn serializes pullers so that a completed result is observed once.
	turn chan struct{}

	mu      sync.Mutex
	pending chan acceptResult[S]
	delay   time.Duration

	closeOnce sync.Once
	closed    chan struct{}
}

var _ AcceptStream[io.Closer] = (*Incoming[io.Closer])(nil)

// NewIncoming wraps listener, running upgrade on every accepted connection.
func NewIncoming[S io.Closer](listener net.Listener, upgrade UpgradeFunc[S], logger log.Log, metrics *Metrics) *Incoming[S] {
	return &Incoming[S]{
		listener: listener,
		upgrade:  upgrade,
		logger:   log.OrNop(logger).With(log.Stringer("listen", listener.Addr())),
		metrics:  metrics,
		turn:     make(chan struct{}, 1),
		closed:   make(chan struct{}),
	}
}

// Addr returns the listener address.
func (in *Incoming[S]) Addr() net.Addr {
	return in.listener.Addr()
}

// TryNext polls the sequence without blocking. It starts an attempt when the
// slot is idle and reports false while the attempt is still running. When
// the attempt has completed the slot is cleared and its socket returned; a
// failed attempt also reports false and the next call starts a fresh one.
func (in *Incoming[S]) TryNext() (S, bool) {
	var zero S
	select {
	case in.turn <- struct{}{}:
	default:
		return zero, false
	}
	defer func() { <-in.turn }()

	if in.isClosed() {
		return zero, false
	}

	pending := in.slot()
	select {
	case res := <-pending:
		in.clear()
		if res.err != nil {
			in.failed(res.err)
			return zero, false
		}
		return res.socket, true
	default:
		return zero, false
	}
}

// Next blocks until an attempt yields a socket. Failed attempts are logged
// and replaced by a new one. It returns an error only when ctx is done or
// the sequence was closed; an in-flight attempt survives a cancelled ctx and
// is picked up by the next pull.
func (in *Incoming[S]) Next(ctx context.Context) (S, error) {
	var zero S
	select {
	case in.turn <- struct{}{}:
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-in.closed:
		return zero, ErrIncomingClosed
	}
	defer func() { <-in.turn }()

	for {
		if in.isClosed() {
			return zero, ErrIncomingClosed
		}

		pending := in.slot()
		select {
		case res := <-pending:
			in.clear()
			if res.err == nil {
				return res.socket, nil
			}
			if in.isClosed() {
				return zero, ErrIncomingClosed
			}
			in.failed(res.err)
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-in.closed:
			return zero, ErrIncomingClosed
		}
	}
}

// All adapts the sequence to a range-over-func iterator that ends when ctx is
// done, the sequence is closed, or the loop body breaks.
func (in *Incoming[S]) All(ctx context.Context) iter.Seq[S] {
	return func(yield func(S) bool) {
		for {
			socket, err := in.Next(ctx)
			if err != nil {
				return
			}
			if !yield(socket) {
				return
			}
		}
	}
}

// Close stops the sequence and closes the listener. A socket that finished
// upgrading but was never pulled is closed as well.
func (in *Incoming[S]) Close() error {
	var err error
	in.closeOnce.Do(func() {
		close(in.closed)
		err = in.listener.Close()

		// Pullers observe closed and leave, after which nobody else reads the slot.
		in.turn <- struct{}{}
		in.mu.Lock()
		pending := in.pending
		in.pending = nil
		in.mu.Unlock()
		<-in.turn

		if pending != nil {
			go func() {
				if res := <-pending; res.err == nil {
					_ = res.socket.Close()
				}
			}()
		}
	})
	return err
}

func (in *Incoming[S]) isClosed() bool {
	select {
	case <-in.closed:
		return true
	default:
		return false
	}
}

// slot returns the in-flight attempt, starting one if the slot is idle.
func (in *Incoming[S]) slot() chan acceptResult[S] {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.pending == nil {
		pending := make(chan acceptResult[S], 1)
		in.pending = pending
		delay := in.delay
		go in.attempt(pending, delay)
	}
	return in.pending
}

func (in *Incoming[S]) clear() {
	in.mu.Lock()
	in.pending = nil
	in.mu.Unlock()
}

func (in *Incoming[S]) attempt(result chan<- acceptResult[S], delay time.Duration) {
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-in.closed:
			result <- acceptResult[S]{err: AcceptError(ErrIncomingClosed)}
			return
		}
	}

	conn, err := in.listener.Accept()
	if err != nil {
		if !errors.Is(err, net.ErrClosed) {
			in.metrics.AcceptFailed(StageAccept)
			in.backoff()
		}
		result <- acceptResult[S]{err: AcceptError(errors.Wrap(err, "tcp accept"))}
		return
	}
	in.resetBackoff()

	socket, err := in.upgrade(conn)
	if err != nil {
		in.metrics.AcceptFailed(StageUpgrade)
		result <- acceptResult[S]{err: AcceptError(errors.Wrapf(err, "upgrade %s", conn.RemoteAddr()))}
		return
	}

	in.metrics.Accepted()
	in.logger.Info("connection accepted", log.Stringer("remote", conn.RemoteAddr()))
	result <- acceptResult[S]{socket: socket}
}

// backoff grows the delay before the next attempt after a listener error,
// the way net/http does for temporary accept failures.
func (in *Incoming[S]) backoff() {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.delay == 0 {
		in.delay = 5 * time.Millisecond
	} else {
		in.delay *= 2
	}
	if in.delay > time.Second {
		in.delay = time.Second
	}
}

func (in *Incoming[S]) resetBackoff() {
	in.mu.Lock()
	in.delay = 0
	in.mu.Unlock()
}

func (in *Incoming[S]) failed(err error) {
	in.logger.Warn("accept attempt failed", log.Error(err))
}

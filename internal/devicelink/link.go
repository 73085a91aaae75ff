package devicelink

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"camera-inspection-backend/config"
	"camera-inspection-backend/internal/parse"
)

// PollToken is sent to the device to solicit a reading.
var PollToken = []byte("M\r\n")

const readBufferSize = 4096

// ErrStopped is returned by Start once the link has been stopped.
var ErrStopped = errors.New("device link stopped")

// Stats counts link activity since start.
type Stats struct {
	Polls      uint64
	Delivered  uint64
	Discarded  uint64
	Recoveries uint64
	LastCause  Cause
}

// Link owns the listening socket for a single scanning device. It polls the
// connected device and hands validated messages to one consumer. After each
// delivery the link pauses itself; the consumer calls Resume once it has
// finished acting on the message.
type Link struct {
	cfg        config.DeviceConfig
	vendorCode string

	messages chan parse.DeviceMessage
	resumeCh chan struct{}
	paused   atomic.Bool
	state    atomic.Int32

	polls      atomic.Uint64
	delivered  atomic.Uint64
	discarded  atomic.Uint64
	recoveries atomic.Uint64
	lastCause  atomic.Int32

	mu       sync.Mutex
	listener net.Listener
	conn     net.Conn
	cancel   context.CancelFunc
	done     chan struct{}
	stopped  bool
}

// New creates a Link for the given device configuration.
func New(cfg config.DeviceConfig, vendorCode string) *Link {
	return &Link{
		cfg:        cfg,
		vendorCode: vendorCode,
		messages:   make(chan parse.DeviceMessage, 1),
		resumeCh:   make(chan struct{}, 1),
	}
}

// Messages returns the channel validated device messages are delivered on.
func (l *Link) Messages() <-chan parse.DeviceMessage {
	return l.messages
}

// Start launches the accept/poll loop in the background. Calling Start on a
// running link is a no-op.
func (l *Link) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stopped {
		return ErrStopped
	}
	if l.cancel != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.done = make(chan struct{})
	go l.run(ctx)
	return nil
}

// Running reports whether the loop has been started and not stopped.
func (l *Link) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cancel != nil && !l.stopped
}

// Pause suspends polling. An exchange already in flight completes, but its
// reading is discarded.
func (l *Link) Pause() {
	if !l.paused.Swap(true) {
		log.Println("device link paused")
	}
}

// Resume lets the loop poll again on its next iteration.
func (l *Link) Resume() {
	if l.paused.Swap(false) {
		log.Println("device link resumed")
	}
	select {
	case l.resumeCh <- struct{}{}:
	default:
	}
}

// Paused reports the flow-control flag.
func (l *Link) Paused() bool {
	return l.paused.Load()
}

// Stop terminates the loop. The listener and any open connection are closed
// so a blocked accept or read returns. Stop waits for the loop to exit.
func (l *Link) Stop() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.stopped = true
	cancel, done := l.cancel, l.done
	if cancel != nil {
		cancel()
	}
	if l.listener != nil {
		l.listener.Close()
	}
	if l.conn != nil {
		l.conn.Close()
	}
	l.mu.Unlock()

	if cancel == nil {
		l.setState(StateStopped)
		return
	}
	<-done
	log.Println("device link stopped")
}

// State returns the current link state.
func (l *Link) State() State {
	return State(l.state.Load())
}

// Addr returns the bound listening address, or nil when not listening.
func (l *Link) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.listener == nil {
		return nil
	}
	return l.listener.Addr()
}

// Stats returns a snapshot of the link counters.
func (l *Link) Stats() Stats {
	return Stats{
		Polls:      l.polls.Load(),
		Delivered:  l.delivered.Load(),
		Discarded:  l.discarded.Load(),
		Recoveries: l.recoveries.Load(),
		LastCause:  Cause(l.lastCause.Load()),
	}
}

func (l *Link) setState(s State) {
	l.state.Store(int32(s))
}

// run is the LISTENING -> CONNECTED -> RECOVERING cycle.
func (l *Link) run(ctx context.Context) {
	defer close(l.done)
	defer l.setState(StateStopped)
	defer l.closeListener()

	for {
		if ctx.Err() != nil {
			return
		}

		if l.currentListener() == nil {
			l.setState(StateListening)
			if err := l.listen(ctx); err != nil {
				l.recover(ctx, CauseBind, err)
				continue
			}
			log.Printf("device link listening on %s", l.Addr())
		}

		l.setState(StateListening)
		conn, err := l.currentListener().Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.recover(ctx, CauseAccept, err)
			continue
		}
		if !l.setConn(conn) {
			conn.Close()
			return
		}
		log.Printf("device connected from %s", conn.RemoteAddr())

		cause, err := l.serve(ctx, conn)
		l.closeConn()
		if ctx.Err() != nil || PolicyFor(cause).Stop {
			return
		}
		l.recover(ctx, cause, err)
	}
}

func (l *Link) listen(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", l.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", l.cfg.Addr(), err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		ln.Close()
		return ErrStopped
	}
	l.listener = ln
	return nil
}

// recover applies the retry policy for cause. Failures are logged only.
func (l *Link) recover(ctx context.Context, cause Cause, err error) {
	policy := PolicyFor(cause)
	if policy.Stop || ctx.Err() != nil {
		return
	}
	l.setState(StateRecovering)
	l.recoveries.Add(1)
	l.lastCause.Store(int32(cause))
	log.Printf("device link lost (%s): %v; reconnecting in %s", cause, err, l.cfg.ReconnectBackoff)

	if policy.Relisten {
		l.closeListener()
	}
	if policy.Backoff {
		sleepCtx(ctx, l.cfg.ReconnectBackoff)
	}
}

// serve polls the connected device until a transport failure or shutdown.
func (l *Link) serve(ctx context.Context, conn net.Conn) (Cause, error) {
	buf := make([]byte, readBufferSize)
	for {
		if ctx.Err() != nil {
			return CauseStopped, ctx.Err()
		}

		if l.paused.Load() {
			l.setState(StatePaused)
			if !l.waitResume(ctx) {
				return CauseStopped, ctx.Err()
			}
			continue
		}

		l.setState(StateConnected)
		msg, ok, cause, err := l.poll(conn, buf)
		if cause != CauseNone {
			if ctx.Err() != nil {
				return CauseStopped, ctx.Err()
			}
			return cause, err
		}

		if !ok {
			if !sleepCtx(ctx, l.cfg.PollInterval) {
				return CauseStopped, ctx.Err()
			}
			continue
		}

		// Pause may have been requested while the exchange was in flight.
		if l.paused.Load() {
			l.discarded.Add(1)
			log.Printf("device reading %s discarded: link paused", msg.Raw)
			continue
		}

		log.Printf("valid device reading %s", msg.Raw)
		l.paused.Store(true)
		l.deliver(msg)

		l.setState(StateHold)
		if !sleepCtx(ctx, l.cfg.HoldDuration) {
			return CauseStopped, ctx.Err()
		}
	}
}

// poll performs one poll/response exchange.
func (l *Link) poll(conn net.Conn, buf []byte) (parse.DeviceMessage, bool, Cause, error) {
	l.polls.Add(1)
	if _, err := conn.Write(PollToken); err != nil {
		return parse.DeviceMessage{}, false, CauseWrite, fmt.Errorf("send poll: %w", err)
	}

	if l.cfg.ReadTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(l.cfg.ReadTimeout))
	}
	n, err := conn.Read(buf)
	if err != nil {
		return parse.DeviceMessage{}, false, classifyRead(err), fmt.Errorf("read reply: %w", err)
	}
	if n == 0 {
		return parse.DeviceMessage{}, false, CauseClosed, errors.New("empty read")
	}

	msg, ok := parse.ParseMessage(buf[:n], l.vendorCode)
	return msg, ok, CauseNone, nil
}

// deliver hands msg to the consumer. The slot holds one message; an unread
// message from an earlier cycle is replaced rather than queued.
func (l *Link) deliver(msg parse.DeviceMessage) {
	select {
	case l.messages <- msg:
		l.delivered.Add(1)
		return
	default:
	}

	select {
	case stale := <-l.messages:
		l.discarded.Add(1)
		log.Printf("device reading %s was never consumed; replacing it", stale.Raw)
	default:
	}

	select {
	case l.messages <- msg:
		l.delivered.Add(1)
	default:
		l.discarded.Add(1)
	}
}

// waitResume blocks until the pause flag clears or ctx ends.
// A stale resume signal only causes the flag to be checked again.
func (l *Link) waitResume(ctx context.Context) bool {
	for l.paused.Load() {
		select {
		case <-ctx.Done():
			return false
		case <-l.resumeCh:
		}
	}
	return true
}

func (l *Link) currentListener() net.Listener {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.listener
}

func (l *Link) setConn(conn net.Conn) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return false
	}
	l.conn = conn
	return true
}

func (l *Link) closeConn() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn != nil {
		l.conn.Close()
		l.conn = nil
	}
}

func (l *Link) closeListener() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.listener != nil {
		l.listener.Close()
		l.listener = nil
	}
}

// sleepCtx waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

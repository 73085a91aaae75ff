package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // snapshot decoding
	_ "image/png"
	"io"
	"log"
	"net/http"
	"sync"
	"time"
)

// ErrNoFrame is returned when no camera frame has been acquired yet.
var ErrNoFrame = errors.New("camera frame not available")

// Camera is a frame source owned by the operator session.
type Camera interface {
	Start() error
	Stop()
	CurrentFrame() (image.Image, bool)
	Status() Status
}

// Status describes camera availability for operator messaging.
type Status struct {
	Running   bool      `json:"running"`
	HasFrame  bool      `json:"hasFrame"`
	LastError string    `json:"lastError,omitempty"`
	FrameAt   time.Time `json:"frameAt,omitempty"`
}

// SnapshotCamera polls an HTTP snapshot endpoint (IP cameras and most
// capture daemons expose one) and keeps the latest decoded frame.
type SnapshotCamera struct {
	url      string
	interval time.Duration
	client   *http.Client

	mu      sync.RWMutex
	frame   image.Image
	frameAt time.Time
	lastErr error
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotCamera creates a camera reading url every interval.
func NewSnapshotCamera(url string, interval time.Duration) *SnapshotCamera {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	return &SnapshotCamera{
		url:      url,
		interval: interval,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// Start begins frame acquisition. Starting a running camera is a no-op.
func (c *SnapshotCamera) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return nil
	}
	if c.url == "" {
		c.lastErr = errors.New("camera snapshot_url is not configured")
		return c.lastErr
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.loop(ctx)
	log.Printf("camera started (%s)", c.url)
	return nil
}

// Stop halts acquisition and drops the last frame.
func (c *SnapshotCamera) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel = nil
	c.frame = nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	c.mu.Lock()
	c.frame = nil
	c.mu.Unlock()
	log.Println("camera stopped")
}

// CurrentFrame returns the latest frame, if any.
func (c *SnapshotCamera) CurrentFrame() (image.Image, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frame, c.frame != nil
}

// Status reports availability for the operator screen.
func (c *SnapshotCamera) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := Status{Running: c.cancel != nil, HasFrame: c.frame != nil, FrameAt: c.frameAt}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
	}
	return s
}

func (c *SnapshotCamera) loop(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		img, err := c.fetch(ctx)
		if ctx.Err() != nil {
			return
		}
		c.mu.Lock()
		if err != nil {
			if c.lastErr == nil || c.lastErr.Error() != err.Error() {
				log.Printf("camera not available: %v", err)
			}
			c.lastErr = err
		} else {
			c.frame = img
			c.frameAt = time.Now()
			c.lastErr = nil
		}
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (c *SnapshotCamera) fetch(ctx context.Context) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("snapshot request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("snapshot returned status %d", resp.StatusCode)
	}
	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return img, nil
}

// StaticCamera serves a frame set by the caller. It backs tests and bench
// setups without a physical camera.
type StaticCamera struct {
	mu      sync.RWMutex
	frame   image.Image
	err     error
	running bool
}

// NewStaticCamera returns a camera that yields frame while started.
func NewStaticCamera(frame image.Image) *StaticCamera {
	return &StaticCamera{frame: frame}
}

func (c *StaticCamera) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = true
	return nil
}

func (c *StaticCamera) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
}

// SetFrame replaces the served frame; nil simulates a camera without signal.
func (c *StaticCamera) SetFrame(frame image.Image) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frame = frame
}

func (c *StaticCamera) CurrentFrame() (image.Image, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.running || c.frame == nil {
		return nil, false
	}
	return c.frame, true
}

// SetError sets the acquisition error reported by Status; nil clears it.
func (c *StaticCamera) SetError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

func (c *StaticCamera) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := Status{Running: c.running, HasFrame: c.running && c.frame != nil}
	if c.err != nil {
		s.LastError = c.err.Error()
	}
	return s
}

// Running reports whether Start was called more recently than Stop.
func (c *StaticCamera) Running() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

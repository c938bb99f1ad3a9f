// Package coordinator owns the poll loop for one WLED device. It keeps the
// latest snapshot, notifies listeners after each refresh and sends commands.
package coordinator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/dokzlo13/wledd/internal/ledger"
	"github.com/dokzlo13/wledd/internal/wled"
)

// ErrClosed is returned by Refresh after Close
var ErrClosed = errors.New("coordinator closed")

// Transport is the device side of the coordinator.
// *wled.Client implements it.
type Transport interface {
	Update(ctx context.Context) (*wled.Device, error)
	Master(ctx context.Context, req wled.MasterRequest) error
	Segment(ctx context.Context, req wled.SegmentRequest) error
	Live(ctx context.Context, live wled.LiveOverride) error
	Preset(ctx context.Context, name string) error
	Playlist(ctx context.Context, name string) error
}

// Recorder persists the command history. *ledger.Ledger implements it.
type Recorder interface {
	Append(eventType ledger.EventType, correlationID, command, entity string, payload map[string]any) error
}

// Listener is called after every successful refresh and whenever the device
// becomes unavailable. It takes no arguments: listeners read Current and
// Available themselves.
type Listener func()

// Options configures a Coordinator
type Options struct {
	Host            string
	ScanInterval    time.Duration
	RateLimitRPS    float64
	KeepMasterLight bool
	Recorder        Recorder
}

type subscription struct {
	id int
	fn Listener
}

// Coordinator owns the poll loop for one device
type Coordinator struct {
	transport Transport
	opts      Options
	limiter   *rate.Limiter

	current   atomic.Pointer[wled.Device]
	available atomic.Bool
	master    atomic.Bool

	// refreshMu serializes refreshes and listener notification
	refreshMu sync.Mutex

	mu        sync.Mutex
	listeners []subscription
	nextID    int

	trigger   chan struct{}
	stale     chan struct{}
	closing   chan struct{}
	closeOnce sync.Once
}

// New creates a coordinator. Call Run to start polling.
func New(transport Transport, opts Options) *Coordinator {
	if opts.ScanInterval <= 0 {
		opts.ScanInterval = 10 * time.Second
	}
	if opts.RateLimitRPS <= 0 {
		opts.RateLimitRPS = 5
	}
	burst := int(opts.RateLimitRPS)
	if burst < 1 {
		burst = 1
	}

	return &Coordinator{
		transport: transport,
		opts:      opts,
		limiter:   rate.NewLimiter(rate.Limit(opts.RateLimitRPS), burst),
		trigger:   make(chan struct{}, 1),
		stale:     make(chan struct{}, 1),
		closing:   make(chan struct{}),
	}
}

// Run refreshes immediately, then every scan interval or when a refresh is
// requested, until ctx is done or Close is called.
func (c *Coordinator) Run(ctx context.Context) error {
	log.Info().
		Str("host", c.opts.Host).
		Dur("scan_interval", c.opts.ScanInterval).
		Msg("Coordinator started")

	_, _ = c.Refresh(ctx)

	ticker := time.NewTicker(c.opts.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("host", c.opts.Host).Msg("Coordinator stopping")
			return nil
		case <-c.closing:
			return nil
		case <-c.trigger:
			_, _ = c.Refresh(ctx)
		case <-ticker.C:
			_, _ = c.Refresh(ctx)
		case <-c.stale:
			c.refreshMu.Lock()
			if !c.isClosed() {
				c.notify()
			}
			c.refreshMu.Unlock()
		}
	}
}

// Refresh polls the device once. A failure marks the coordinator
// unavailable but keeps the last good snapshot.
func (c *Coordinator) Refresh(ctx context.Context) (*wled.Device, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	if c.isClosed() {
		return nil, ErrClosed
	}

	device, err := c.transport.Update(ctx)

	// Results of a poll that outlived Close are dropped
	if c.isClosed() {
		return nil, ErrClosed
	}

	if err != nil {
		if c.available.Swap(false) {
			c.Logger().Warn().Err(err).Msg("Device unavailable")
			c.notify()
		} else {
			c.Logger().Debug().Err(err).Msg("Refresh failed")
		}
		return nil, err
	}

	previous := c.current.Swap(device)
	if !c.available.Swap(true) {
		if previous == nil {
			c.Logger().Info().Str("version", device.Info.Version).Int("segments", len(device.State.Segments)).Msg("Device connected")
		} else {
			c.Logger().Info().Msg("Device available again")
		}
	}

	c.notify()
	return device, nil
}

// RequestRefresh asks the loop to refresh as soon as possible.
// Requests made while one is pending are coalesced.
func (c *Coordinator) RequestRefresh() {
	select {
	case c.trigger <- struct{}{}:
	default:
	}
}

// Subscribe registers a listener. Listeners run synchronously in
// registration order. The returned func detaches it.
func (c *Coordinator) Subscribe(fn Listener) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	c.listeners = append(c.listeners, subscription{id: id, fn: fn})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.listeners {
			if s.id == id {
				c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
				return
			}
		}
	}
}

// notify runs every listener. Callers hold refreshMu.
func (c *Coordinator) notify() {
	c.mu.Lock()
	listeners := make([]subscription, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	for _, s := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.Logger().Error().Interface("panic", r).Msg("Listener panicked")
				}
			}()
			s.fn()
		}()
	}
}

// Current returns the last good snapshot, or nil before the first refresh
func (c *Coordinator) Current() *wled.Device {
	return c.current.Load()
}

// Available reports whether the last refresh succeeded
func (c *Coordinator) Available() bool {
	return c.available.Load()
}

// MarkUnavailable flags the device as unreachable after a failed write.
// Listeners are notified from the poll loop; the next scheduled refresh
// decides whether the device is back.
func (c *Coordinator) MarkUnavailable(err error) {
	if !c.available.Swap(false) {
		return
	}
	c.Logger().Warn().Err(err).Msg("Device marked unavailable")
	select {
	case c.stale <- struct{}{}:
	default:
	}
}

// KeepMasterLight reports whether the master light is forced by configuration
func (c *Coordinator) KeepMasterLight() bool {
	return c.opts.KeepMasterLight
}

// HasMasterLight reports whether a master light entity exists.
// Once materialized it is never retracted.
func (c *Coordinator) HasMasterLight() bool {
	return c.opts.KeepMasterLight || c.master.Load()
}

// MaterializeMaster records that the master light entity was created
func (c *Coordinator) MaterializeMaster() {
	if !c.master.Swap(true) {
		c.Logger().Info().Msg("Master light materialized")
	}
}

// Close stops the loop and detaches all listeners. Refreshes finishing
// after Close do not notify.
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() {
		close(c.closing)
		c.mu.Lock()
		c.listeners = nil
		c.mu.Unlock()
	})
}

func (c *Coordinator) isClosed() bool {
	select {
	case <-c.closing:
		return true
	default:
		return false
	}
}

// Logger returns a logger carrying the device identity
func (c *Coordinator) Logger() *zerolog.Logger {
	ctx := log.With().Str("host", c.opts.Host)
	if d := c.Current(); d != nil {
		ctx = ctx.Str("device", d.Info.Name).Str("mac", d.Info.MACAddress)
	}
	l := ctx.Logger()
	return &l
}

package preview

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/specialistvlad/scriptdeck/internal/notify"
)

// DefaultInterval is the delay between two failed probes.
const DefaultInterval = time.Second

// Prober checks whether something accepts connections on a local port.
type Prober interface {
	Probe(ctx context.Context, port int) error
}

// TCPProber probes by opening and closing a TCP connection.
type TCPProber struct {
	Host    string
	Timeout time.Duration
}

// Probe implements Prober.
func (p TCPProber) Probe(ctx context.Context, port int) error {
	host := p.Host
	if host == "" {
		host = "127.0.0.1"
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return err
	}
	return conn.Close()
}

// Config wires a Detector to its collaborators.
type Config struct {
	AppID    string
	Host     string // host used in the revealed URL, defaults to localhost
	Prober   Prober
	Interval time.Duration
	Notifier notify.Notifier
	Sink     notify.PreviewSink
	// OnReady is called once the port answered, before the notification.
	OnReady func(port int, url string)
	Logger  *slog.Logger
}

// Detector polls one app's candidate port until it is reachable. At most one
// poll loop runs at a time.
type Detector struct {
	cfg Config

	cancelled atomic.Bool
	loops     atomic.Int64

	mu        sync.Mutex
	polling   bool
	stop      context.CancelFunc
	done      chan struct{}
	available bool
	port      int
}

// New creates a Detector.
func New(cfg Config) *Detector {
	if cfg.Prober == nil {
		cfg.Prober = TCPProber{}
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	cfg.Logger = cfg.Logger.With("component", "preview", "appId", cfg.AppID)
	return &Detector{cfg: cfg}
}

// LoadIframe starts polling port in the background and reports whether a new
// loop was started. A call made while a loop is running is a no-op.
func (d *Detector) LoadIframe(ctx context.Context, port int) bool {
	d.mu.Lock()
	if d.polling {
		d.mu.Unlock()
		d.cfg.Logger.Debug("Preview poll already in progress, ignoring.", "port", port)
		return false
	}
	d.polling = true
	d.cancelled.Store(false)
	loopCtx, stop := context.WithCancel(ctx)
	d.stop = stop
	done := make(chan struct{})
	d.done = done
	d.mu.Unlock()

	d.loops.Add(1)
	go d.poll(loopCtx, port, done)
	return true
}

func (d *Detector) poll(ctx context.Context, port int, done chan struct{}) {
	logger := d.cfg.Logger.With("port", port)
	logger.Debug("Preview poll started.")
	defer func() {
		d.mu.Lock()
		if d.stop != nil {
			d.stop()
			d.stop = nil
		}
		d.polling = false
		d.mu.Unlock()
		close(done)
	}()

	for attempt := 1; ; attempt++ {
		if d.cancelled.Load() || ctx.Err() != nil {
			logger.Debug("Preview poll cancelled.", "attempts", attempt-1)
			return
		}
		err := d.cfg.Prober.Probe(ctx, port)
		if err == nil {
			if d.cancelled.Load() {
				return
			}
			d.ready(port)
			return
		}
		logger.Debug("Port not reachable yet.", "attempt", attempt, "error", err)

		timer := time.NewTimer(d.cfg.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Debug("Preview poll cancelled.", "attempts", attempt)
			return
		case <-timer.C:
		}
	}
}

func (d *Detector) ready(port int) {
	url := fmt.Sprintf("http://%s:%d", d.cfg.Host, port)
	d.mu.Lock()
	d.available = true
	d.port = port
	d.mu.Unlock()

	d.cfg.Logger.Info("Preview is reachable.", "url", url)
	if d.cfg.OnReady != nil {
		d.cfg.OnReady(port, url)
	}
	if d.cfg.Sink != nil {
		d.cfg.Sink.Reveal(d.cfg.AppID, url)
	}
	if d.cfg.Notifier != nil {
		d.cfg.Notifier.Notify("Preview ready", fmt.Sprintf("%s is available at %s", d.cfg.AppID, url))
	}
}

// Cancel sets the cancel flag and stops the running loop, if any, without
// side effects.
func (d *Detector) Cancel() {
	d.cancelled.Store(true)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stop != nil {
		d.stop()
	}
}

// Wait blocks until the current loop, if any, has exited.
func (d *Detector) Wait() {
	d.mu.Lock()
	done := d.done
	d.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Polling reports whether a loop is running.
func (d *Detector) Polling() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.polling
}

// Available reports whether the preview answered, and on which port.
func (d *Detector) Available() (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.port, d.available
}

// Loops returns how many poll loops have been started.
func (d *Detector) Loops() int64 {
	return d.loops.Load()
}

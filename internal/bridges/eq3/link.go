package eq3

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Default timeouts for device links.
const (
	// defaultConnectTimeout bounds one connection attempt.
	defaultConnectTimeout = 10 * time.Second

	// defaultWriteTimeout bounds one characteristic write.
	defaultWriteTimeout = 5 * time.Second

	// connectAttempts is the first try plus one retry.
	connectAttempts = 2

	// notificationQueueSize is how many unawaited notifications are kept.
	notificationQueueSize = 8
)

// Link backends.
const (
	BackendBLE       = "ble"
	BackendSerial    = "serial"
	BackendWebSocket = "websocket"
)

// Backends lists the accepted backend names.
var Backends = []string{BackendBLE, BackendSerial, BackendWebSocket}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// NotificationSink receives every notification on a handle.
type NotificationSink func(handle uint16, payload []byte)

// Link is the transport to one thermostat.
//
// Connect retries once before failing with ErrLinkFailed. Notifications are
// delivered to the sink registered for their handle and are also queued for
// AwaitNotification. Write clears notifications queued before it.
type Link interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Write(ctx context.Context, handle uint16, payload []byte) error
	AwaitNotification(ctx context.Context, timeout time.Duration) ([]byte, bool)
	SetNotificationSink(handle uint16, sink NotificationSink)
	IsConnected() bool
	Address() string
	Stats() LinkStats
}

// LinkStats holds link counters.
type LinkStats struct {
	WritesTotal          uint64
	NotificationsTotal   uint64
	NotificationsDropped uint64
	ConnectsTotal        uint64
	ConnectFailures      uint64
	LastActivity         time.Time
	Connected            bool
}

// LinkConfig selects and configures a link backend.
type LinkConfig struct {
	// Backend is one of Backends. Default: ble.
	Backend string

	// Address is the thermostat MAC address (AA:BB:CC:DD:EE:FF).
	Address string

	// Interface is the local Bluetooth adapter (e.g. "hci1") for the ble
	// backend. Empty selects the default adapter.
	Interface string

	// SerialPort and BaudRate configure the serial proxy backend.
	SerialPort string
	BaudRate   int

	// URL is the websocket proxy endpoint (ws:// or wss://).
	URL string

	// HandleOffset is added to handles on the wire and subtracted from
	// notified handles. Proxies built on stacks that number handles from
	// the characteristic declaration need -1.
	HandleOffset int

	// ConnectTimeout bounds one connection attempt. Default: 10 seconds.
	ConnectTimeout time.Duration
}

// NewLink builds the link selected by cfg.Backend. It does not connect.
func NewLink(cfg LinkConfig, logger Logger) (Link, error) {
	if logger == nil {
		logger = nopLogger{}
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	cfg.Address = strings.ToUpper(strings.TrimSpace(cfg.Address))

	switch strings.ToLower(cfg.Backend) {
	case "", BackendBLE:
		return newBLELink(cfg, logger)
	case BackendSerial:
		return NewProxyLink(cfg, serialDialer(cfg.SerialPort, cfg.BaudRate), logger), nil
	case BackendWebSocket:
		return NewProxyLink(cfg, websocketDialer(cfg.URL), logger), nil
	default:
		return nil, fmt.Errorf("%w: %q (want one of %s)", ErrBackendUnsupported, cfg.Backend, strings.Join(Backends, ", "))
	}
}

// notifier fans notifications out to sinks and to the await queue. Every
// backend embeds one.
type notifier struct {
	mu      sync.RWMutex
	sinks   map[uint16]NotificationSink
	queue   chan []byte
	logger  Logger
	address string

	writesTotal          atomic.Uint64
	notificationsTotal   atomic.Uint64
	notificationsDropped atomic.Uint64
	connectsTotal        atomic.Uint64
	connectFailures      atomic.Uint64
	lastActivity         atomic.Int64
}

func newNotifier(address string, logger Logger) *notifier {
	return &notifier{
		sinks:   make(map[uint16]NotificationSink),
		queue:   make(chan []byte, notificationQueueSize),
		logger:  logger,
		address: address,
	}
}

// SetNotificationSink registers sink for handle, replacing any previous one.
func (n *notifier) SetNotificationSink(handle uint16, sink NotificationSink) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sinks[handle] = sink
}

// Address returns the device MAC address.
func (n *notifier) Address() string {
	return n.address
}

// deliver hands a notification to the sink and queues it for awaiting. The
// oldest queued notification is dropped when the queue is full.
func (n *notifier) deliver(handle uint16, payload []byte) {
	n.notificationsTotal.Add(1)
	n.lastActivity.Store(time.Now().Unix())
	n.logger.Debug("notification received", "address", n.address, "handle", fmt.Sprintf("0x%03X", handle), "payload", fmt.Sprintf("%X", payload))

	buf := append([]byte(nil), payload...)

	n.mu.RLock()
	sink := n.sinks[handle]
	n.mu.RUnlock()

	if sink != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					n.logger.Error("notification sink panicked", "address", n.address, "panic", r)
				}
			}()
			sink(handle, buf)
		}()
	}

	for {
		select {
		case n.queue <- buf:
			return
		default:
		}
		select {
		case <-n.queue:
			n.notificationsDropped.Add(1)
		default:
		}
	}
}

// clearQueue drops notifications that arrived before a new write.
func (n *notifier) clearQueue() {
	for {
		select {
		case <-n.queue:
		default:
			return
		}
	}
}

// AwaitNotification waits up to timeout for the next notification.
func (n *notifier) AwaitNotification(ctx context.Context, timeout time.Duration) ([]byte, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case payload := <-n.queue:
		return payload, true
	case <-timer.C:
		n.logger.Debug("no notification within timeout", "address", n.address, "timeout", timeout)
		return nil, false
	case <-ctx.Done():
		return nil, false
	}
}

func (n *notifier) recordWrite() {
	n.writesTotal.Add(1)
	n.lastActivity.Store(time.Now().Unix())
}

func (n *notifier) stats(connected bool) LinkStats {
	var last time.Time
	if ts := n.lastActivity.Load(); ts > 0 {
		last = time.Unix(ts, 0)
	}
	return LinkStats{
		WritesTotal:          n.writesTotal.Load(),
		NotificationsTotal:   n.notificationsTotal.Load(),
		NotificationsDropped: n.notificationsDropped.Load(),
		ConnectsTotal:        n.connectsTotal.Load(),
		ConnectFailures:      n.connectFailures.Load(),
		LastActivity:         last,
		Connected:            connected,
	}
}

// connectWithRetry runs attempt at most twice, each bounded by timeout.
func (n *notifier) connectWithRetry(ctx context.Context, timeout time.Duration, backend string, attempt func(ctx context.Context) error) error {
	n.logger.Debug("connecting", "address", n.address, "backend", backend)

	var lastErr error
	for i := 1; i <= connectAttempts; i++ {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		lastErr = attempt(attemptCtx)
		cancel()
		if lastErr == nil {
			n.connectsTotal.Add(1)
			n.logger.Debug("connected", "address", n.address, "backend", backend)
			return nil
		}
		if ctx.Err() != nil {
			break
		}
		if i < connectAttempts {
			n.logger.Debug("unable to connect, retrying", "address", n.address, "error", lastErr)
		}
	}

	n.connectFailures.Add(1)
	return fmt.Errorf("%w: unable to connect to %s using %s: %w", ErrLinkFailed, n.address, backend, lastErr)
}

package eq3

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

const defaultHealthIntervalDuration = 30 * time.Second

// HealthPublisher is the part of the MQTT client the reporter needs.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// HealthSource supplies per-device health and bridge counters.
// The Bridge implements it.
type HealthSource interface {
	DeviceHealth() []DeviceHealth
	Statistics() BridgeStatistics
}

// HealthReporterConfig configures a HealthReporter. Interval defaults to
// 30s; Source is optional.
type HealthReporterConfig struct {
	BridgeID  string
	Version   string
	Interval  time.Duration
	Publisher HealthPublisher
	Source    HealthSource
}

// HealthReporter publishes a retained HealthMessage on HealthTopic at a
// fixed interval, plus "starting" and "stopping" around the bridge's life.
type HealthReporter struct {
	cfg     HealthReporterConfig
	started time.Time

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logMu  sync.Mutex
	logger Logger
}

// NewHealthReporter returns a reporter that is not yet running.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultHealthIntervalDuration
	}
	return &HealthReporter{
		cfg:     cfg,
		started: time.Now(),
		done:    make(chan struct{}),
	}
}

// Start publishes once immediately and then on every interval until ctx
// ends or Stop is called.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ticker := time.NewTicker(h.cfg.Interval)
		defer ticker.Stop()
		for {
			if err := h.PublishNow(); err != nil {
				h.logError("health publish failed", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-h.done:
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop ends the loop and publishes "stopping". Later calls do nothing.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()
		if err := h.publish(HealthStopping, ""); err != nil {
			h.logError("health publish failed", err)
		}
	})
}

func (h *HealthReporter) SetLogger(logger Logger) {
	h.logMu.Lock()
	h.logger = logger
	h.logMu.Unlock()
}

func (h *HealthReporter) PublishStarting() error {
	return h.publish(HealthStarting, "bridge starting")
}

// PublishNow evaluates and publishes the current status.
func (h *HealthReporter) PublishNow() error {
	connected := h.cfg.Publisher != nil && h.cfg.Publisher.IsConnected()
	var devices []DeviceHealth
	if h.cfg.Source != nil {
		devices = h.cfg.Source.DeviceHealth()
	}
	status, reason := evaluateHealth(connected, h.cfg.Source != nil, devices)
	return h.publish(status, reason)
}

// evaluateHealth grades the bridge. Broker loss degrades it; every device
// unreachable makes it unhealthy. Devices never polled count as reachable.
func evaluateHealth(connected, haveSource bool, devices []DeviceHealth) (HealthStatus, string) {
	if !connected {
		return HealthDegraded, "MQTT disconnected"
	}
	if !haveSource {
		return HealthHealthy, ""
	}
	if len(devices) == 0 {
		return HealthDegraded, "no devices configured"
	}

	down := 0
	for _, d := range devices {
		if !d.Reachable {
			down++
		}
	}
	switch down {
	case 0:
		return HealthHealthy, ""
	case len(devices):
		return HealthUnhealthy, "no device reachable"
	default:
		return HealthDegraded, fmt.Sprintf("%d of %d devices unreachable", down, len(devices))
	}
}

func (h *HealthReporter) publish(status HealthStatus, reason string) error {
	if h.cfg.Publisher == nil {
		return nil
	}

	msg := HealthMessage{
		Bridge:        h.cfg.BridgeID,
		Timestamp:     time.Now().UTC(),
		Status:        status,
		Version:       h.cfg.Version,
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
		Reason:        reason,
	}
	if src := h.cfg.Source; src != nil {
		msg.Devices = src.DeviceHealth()
		msg.DevicesManaged = len(msg.Devices)
		stats := src.Statistics()
		msg.Statistics = &stats
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding health: %w", err)
	}
	return h.cfg.Publisher.Publish(HealthTopic(), payload, 1, true)
}

func (h *HealthReporter) logError(msg string, err error) {
	h.logMu.Lock()
	logger := h.logger
	h.logMu.Unlock()
	if logger != nil {
		logger.Error(msg, "error", err)
	}
}

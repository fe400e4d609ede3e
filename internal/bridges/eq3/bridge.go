package eq3

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/eq3-bridge/internal/history"
	"github.com/nerrad567/eq3-bridge/internal/infrastructure/influxdb"
)

// Bridge operation constants.
const (
	// minTopicParts is the minimum number of parts in a valid MQTT topic.
	minTopicParts = 3

	// commandTimeout bounds one command: connect with retry, up to two
	// writes and their notifications.
	commandTimeout = 60 * time.Second

	defaultReadHistoryLimit = 50

	// readAllTimeout bounds a read_all request over every device.
	readAllTimeout = 5 * time.Minute
)

// Bridge command names.
const (
	CommandUpdate         = "update"
	CommandSetTemperature = "set_temperature"
	CommandSetMode        = "set_mode"
	CommandBoost          = "boost"
	CommandLock           = "lock"
	CommandSetAway        = "set_away"
	CommandClearAway      = "clear_away"
	CommandPresets        = "presets"
	CommandOffset         = "offset"
	CommandWindowOpen     = "window_open"
	CommandComfort        = "comfort"
	CommandEco            = "eco"
	CommandQuerySchedule  = "query_schedule"
	CommandSetSchedule    = "set_schedule"
	CommandQueryID        = "query_id"
)

// Bridge exposes a set of thermostats on MQTT.
// It handles:
//   - Commands on graylogic/command/eq3/{device_id}, acknowledged on the ack topic
//   - Requests on graylogic/request/eq3/{request_id} (read_state, read_all, read_history)
//   - Scheduled polling, with state published retained, recorded in history
//     and written to InfluxDB
//   - Health reporting and graceful shutdown
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	cfg     *Config
	mqtt    MQTTClient
	devices map[string]*Device
	health  *HealthReporter
	poller  *Poller

	recorder StateRecorder
	metrics  MetricsWriter

	// Last published state per device, for history change detection.
	lastState   map[string]map[string]any
	lastStateMu sync.Mutex

	// Outcome of the most recent transaction per device.
	lastErr   map[string]error
	lastErrMu sync.RWMutex

	commandsReceived atomic.Uint64
	commandsFailed   atomic.Uint64
	polls            atomic.Uint64
	pollErrors       atomic.Uint64
	statesPublished  atomic.Uint64

	// Shutdown coordination
	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context    // Bridge-level context, cancelled on Stop()
	ctxCancel context.CancelFunc // Cancel function for ctx

	logger   Logger
	loggerMu sync.RWMutex
}

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool

	// Disconnect closes the connection gracefully.
	Disconnect(quiesce uint)
}

// StateRecorder persists state changes. Satisfied by
// *history.SQLiteRepository. Optional.
type StateRecorder interface {
	RecordStateChange(ctx context.Context, deviceID string, state history.State, source string) error
}

// historyPruner is implemented by recorders that can drop old rows.
type historyPruner interface {
	PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error)
}

// historyReader is implemented by recorders that can serve read_history.
type historyReader interface {
	GetHistory(ctx context.Context, deviceID string, limit int) ([]history.Entry, error)
}

// MetricsWriter receives telemetry samples. Satisfied by *influxdb.Client.
// Optional.
type MetricsWriter interface {
	WriteThermostatMetric(s influxdb.ThermostatSample)
	WriteLinkMetric(s influxdb.LinkSample)
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// Config is the loaded device file.
	Config *Config

	// MQTTClient is the MQTT client implementation.
	MQTTClient MQTTClient

	// Devices maps device IDs to sessions. Usually Config.OpenDevices.
	Devices map[string]*Device

	// Recorder stores state history. Optional.
	Recorder StateRecorder

	// Metrics receives telemetry. Optional.
	Metrics MetricsWriter

	// Version is reported in health messages.
	Version string

	// Logger is optional structured logger.
	Logger Logger
}

// NewBridge creates a new bridge instance.
// Call Start() to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Devices == nil {
		opts.Devices = map[string]*Device{}
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		cfg:       opts.Config,
		mqtt:      opts.MQTTClient,
		devices:   opts.Devices,
		recorder:  opts.Recorder,
		metrics:   opts.Metrics,
		lastState: make(map[string]map[string]any),
		lastErr:   make(map[string]error),
		done:      make(chan struct{}),
		ctx:       ctx,
		ctxCancel: ctxCancel,
		logger:    opts.Logger,
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		BridgeID:  opts.Config.Bridge.ID,
		Version:   opts.Version,
		Interval:  opts.Config.GetHealthInterval(),
		Publisher: opts.MQTTClient,
		Source:    b,
	})
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}

	poller, err := NewPoller(opts.Config.Bridge.PollSchedule, b.PollAll, opts.Logger)
	if err != nil {
		ctxCancel()
		return nil, err
	}
	b.poller = poller

	return b, nil
}

// Start subscribes to the command and request topics, starts polling and
// health reporting.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	commandTopic := CommandSubscribeTopic()
	if err := b.mqtt.Subscribe(commandTopic, 1, b.handleMQTTMessage); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logInfo("subscribed to commands", "topic", commandTopic)

	requestTopic := RequestSubscribeTopic()
	if err := b.mqtt.Subscribe(requestTopic, 1, b.handleMQTTMessage); err != nil {
		return fmt.Errorf("subscribe to requests: %w", err)
	}
	b.logInfo("subscribed to requests", "topic", requestTopic)

	b.poller.Start(b.ctx)
	b.health.Start(ctx)

	// Initial poll so state is retained on the broker before the first tick.
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.PollAll(b.ctx)
	}()

	b.logInfo("bridge started",
		"bridge_id", b.cfg.Bridge.ID,
		"devices", len(b.devices),
		"poll_schedule", b.cfg.Bridge.PollSchedule)

	return nil
}

// Stop gracefully shuts down the bridge and drops every device link.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)

		// Cancel bridge context to abort in-flight transactions
		b.ctxCancel()

		b.poller.Stop()
		b.health.Stop()
		b.wg.Wait()

		for id, dev := range b.devices {
			if err := dev.Close(); err != nil {
				b.logError("closing device failed", fmt.Errorf("device=%s: %w", id, err))
			}
		}

		b.logInfo("bridge stopped")
	})
}

// handleMQTTMessage routes incoming MQTT messages to appropriate handlers.
// Device transactions take seconds, so work runs off the MQTT goroutine.
func (b *Bridge) handleMQTTMessage(topic string, payload []byte) {
	parts := strings.Split(topic, "/")
	if len(parts) < minTopicParts {
		b.logError("invalid topic format", fmt.Errorf("topic: %s", topic))
		return
	}

	select {
	case <-b.done:
		return
	default:
	}

	messageType := parts[1]
	last := parts[len(parts)-1]

	switch messageType {
	case "command":
		b.dispatch(func() { b.handleCommand(last, payload) })
	case "request":
		b.dispatch(func() { b.handleRequest(last, payload) })
	default:
		b.logError("unknown message type", fmt.Errorf("type: %s", messageType))
	}
}

func (b *Bridge) dispatch(fn func()) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				b.logError("message handler panicked", fmt.Errorf("%v", r))
			}
		}()
		fn()
	}()
}

// handleCommand parses and executes one command. topicDeviceID is the last
// topic segment and is used when the payload omits device_id.
func (b *Bridge) handleCommand(topicDeviceID string, payload []byte) {
	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.logError("failed to parse command", err)
		return
	}
	if cmd.DeviceID == "" {
		cmd.DeviceID = topicDeviceID
	}
	if cmd.ID == "" {
		cmd.ID = newMessageID()
	}
	b.commandsReceived.Add(1)

	b.logInfo("received command",
		"command_id", cmd.ID,
		"device_id", cmd.DeviceID,
		"command", cmd.Command)

	dev, ok := b.devices[cmd.DeviceID]
	if !ok {
		b.publishAckError(cmd, "", fmt.Errorf("%w: %s", ErrDeviceNotConfigured, cmd.DeviceID))
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	err := b.executeCommand(ctx, dev, cmd)
	if !IsValidation(err) && !errors.Is(err, ErrInvalidParameters) && !errors.Is(err, ErrUnknownCommand) {
		b.setLastError(cmd.DeviceID, err)
	}
	if err != nil {
		b.publishAckError(cmd, dev.Address(), err)
		return
	}

	b.publishAck(cmd, dev.Address(), AckAccepted)
	b.publishState(ctx, cmd.DeviceID, dev, history.SourceCommand)
}

// executeCommand maps a command onto a device operation.
func (b *Bridge) executeCommand(ctx context.Context, dev *Device, cmd CommandMessage) error {
	p := cmd.Parameters
	if p == nil {
		p = map[string]any{}
	}

	switch cmd.Command {
	case CommandUpdate:
		return dev.Update(ctx)

	case CommandSetTemperature:
		t, err := floatParam(p, "temperature")
		if err != nil {
			return err
		}
		return dev.SetTargetTemperature(ctx, t)

	case CommandSetMode:
		s, err := stringParam(p, "mode")
		if err != nil {
			return err
		}
		mode, err := ParseMode(s)
		if err != nil {
			return err
		}
		return dev.SetMode(ctx, mode)

	case CommandBoost:
		on, err := boolParam(p, "on", true)
		if err != nil {
			return err
		}
		return dev.SetBoost(ctx, on)

	case CommandLock:
		locked, err := boolParam(p, "locked", true)
		if err != nil {
			return err
		}
		return dev.SetLocked(ctx, locked)

	case CommandSetAway:
		end, err := timeParam(p, "end", time.Local)
		if err != nil {
			return err
		}
		t, err := optionalFloatParam(p, "temperature", 0)
		if err != nil {
			return err
		}
		return dev.SetAway(ctx, end, t)

	case CommandClearAway:
		return dev.DisableAway(ctx)

	case CommandPresets:
		comfort, err := floatParam(p, "comfort")
		if err != nil {
			return err
		}
		eco, err := floatParam(p, "eco")
		if err != nil {
			return err
		}
		return dev.SetPresets(ctx, comfort, eco)

	case CommandOffset:
		off, err := floatParam(p, "offset")
		if err != nil {
			return err
		}
		return dev.SetOffset(ctx, off)

	case CommandWindowOpen:
		t, err := floatParam(p, "temperature")
		if err != nil {
			return err
		}
		minutes, err := floatParam(p, "minutes")
		if err != nil {
			return err
		}
		return dev.SetWindowOpen(ctx, t, time.Duration(minutes*float64(time.Minute)))

	case CommandComfort:
		return dev.ActivateComfort(ctx)

	case CommandEco:
		return dev.ActivateEco(ctx)

	case CommandQuerySchedule:
		s, err := stringParam(p, "day")
		if err != nil {
			return err
		}
		day, err := ParseWeekday(s)
		if err != nil {
			return err
		}
		return dev.QuerySchedule(ctx, day)

	case CommandSetSchedule:
		sched, err := scheduleParam(p)
		if err != nil {
			return err
		}
		return dev.SetSchedule(ctx, sched)

	case CommandQueryID:
		return dev.QueryID(ctx)

	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Command)
	}
}

func (b *Bridge) publishAck(cmd CommandMessage, address string, status AckStatus) {
	ack := NewAckMessage(cmd, status, address)
	payload, err := json.Marshal(ack)
	if err != nil {
		b.logError("failed to marshal ack", err)
		return
	}
	if err := b.mqtt.Publish(AckTopic(cmd.DeviceID), payload, 1, false); err != nil {
		b.logError("failed to publish ack", err)
	}
}

func (b *Bridge) publishAckError(cmd CommandMessage, address string, cmdErr error) {
	b.commandsFailed.Add(1)
	code := ErrorCode(cmdErr)
	ack := NewAckError(cmd, address, code, cmdErr)
	payload, err := json.Marshal(ack)
	if err != nil {
		b.logError("failed to marshal ack error", err)
		return
	}
	if err := b.mqtt.Publish(AckTopic(cmd.DeviceID), payload, 1, false); err != nil {
		b.logError("failed to publish ack error", err)
	}
	b.logWarn("command failed",
		"command_id", cmd.ID,
		"device_id", cmd.DeviceID,
		"command", cmd.Command,
		"code", code,
		"error", cmdErr)
}

// handleRequest processes a request message.
func (b *Bridge) handleRequest(topicRequestID string, payload []byte) {
	var req RequestMessage
	if err := json.Unmarshal(payload, &req); err != nil {
		b.logError("failed to parse request", err)
		return
	}
	if req.RequestID == "" {
		req.RequestID = topicRequestID
	}

	b.logInfo("received request",
		"request_id", req.RequestID,
		"action", req.Action)

	var resp ResponseMessage
	switch req.Action {
	case ActionReadState:
		resp = b.handleReadState(req)
	case ActionReadAll:
		resp = b.handleReadAll(req)
	case ActionReadHistory:
		resp = b.handleReadHistory(req)
	default:
		resp = errorResponse(req, ErrCodeInvalidCommand, fmt.Sprintf("unknown action: %s", req.Action))
	}

	respPayload, err := json.Marshal(resp)
	if err != nil {
		b.logError("failed to marshal response", err)
		return
	}
	if err := b.mqtt.Publish(ResponseTopic(req.RequestID), respPayload, 1, false); err != nil {
		b.logError("failed to publish response", err)
	}
}

func errorResponse(req RequestMessage, code, message string) ResponseMessage {
	return ResponseMessage{
		RequestID: req.RequestID,
		Timestamp: time.Now().UTC(),
		Success:   false,
		Error:     &AckError{Code: code, Message: message},
	}
}

// handleReadState reads one device and returns its state. With
// parameters {"cached": true} the mirror is returned without a read.
func (b *Bridge) handleReadState(req RequestMessage) ResponseMessage {
	if req.DeviceID == "" {
		return errorResponse(req, ErrCodeInvalidParameters, "device_id is required")
	}
	dev, ok := b.devices[req.DeviceID]
	if !ok {
		return errorResponse(req, ErrCodeNotConfigured, fmt.Sprintf("device %s not configured", req.DeviceID))
	}

	cached, err := boolParam(req.Parameters, "cached", false)
	if err != nil {
		return errorResponse(req, ErrCodeInvalidParameters, err.Error())
	}
	if !cached {
		ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
		defer cancel()
		if err := b.refresh(ctx, req.DeviceID, dev, history.SourceRequest); err != nil {
			return errorResponse(req, ErrorCode(err), err.Error())
		}
	}

	return ResponseMessage{
		RequestID: req.RequestID,
		Timestamp: time.Now().UTC(),
		Success:   true,
		Data: map[string]any{
			"device_id": req.DeviceID,
			"address":   dev.Address(),
			"state":     StateMap(dev.State()),
		},
	}
}

// handleReadHistory returns recorded snapshots for one device, newest
// first. parameters.limit defaults to 50.
func (b *Bridge) handleReadHistory(req RequestMessage) ResponseMessage {
	if req.DeviceID == "" {
		return errorResponse(req, ErrCodeInvalidParameters, "device_id is required")
	}
	if _, ok := b.devices[req.DeviceID]; !ok {
		return errorResponse(req, ErrCodeNotConfigured, fmt.Sprintf("device %s not configured", req.DeviceID))
	}
	reader, ok := b.recorder.(historyReader)
	if !ok {
		return errorResponse(req, ErrCodeNotConfigured, "state history is not enabled")
	}

	limit, err := optionalFloatParam(req.Parameters, "limit", defaultReadHistoryLimit)
	if err != nil {
		return errorResponse(req, ErrCodeInvalidParameters, err.Error())
	}
	if limit < 1 || limit != float64(int(limit)) {
		return errorResponse(req, ErrCodeInvalidParameters, fmt.Sprintf("limit must be a positive integer, got %v", limit))
	}

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()
	entries, err := reader.GetHistory(ctx, req.DeviceID, int(limit))
	if err != nil {
		return errorResponse(req, ErrCodeBridgeError, err.Error())
	}

	return ResponseMessage{
		RequestID: req.RequestID,
		Timestamp: time.Now().UTC(),
		Success:   true,
		Data: map[string]any{
			"device_id": req.DeviceID,
			"entries":   entries,
		},
	}
}

// handleReadAll reads every device in turn.
func (b *Bridge) handleReadAll(req RequestMessage) ResponseMessage {
	ctx, cancel := context.WithTimeout(b.ctx, readAllTimeout)
	defer cancel()

	states := make(map[string]any, len(b.devices))
	failures := make(map[string]any)
	for _, id := range b.deviceIDs() {
		dev := b.devices[id]
		if err := b.refresh(ctx, id, dev, history.SourceRequest); err != nil {
			failures[id] = err.Error()
			if ctx.Err() != nil {
				return errorResponse(req, ErrCodeTimeout, "read_all timed out")
			}
			continue
		}
		states[id] = StateMap(dev.State())
	}

	data := map[string]any{"states": states}
	if len(failures) > 0 {
		data["errors"] = failures
	}
	return ResponseMessage{
		RequestID: req.RequestID,
		Timestamp: time.Now().UTC(),
		Success:   len(failures) == 0,
		Data:      data,
	}
}

// PollAll reads every device once, publishing each state, then prunes
// history. Devices are read one after another.
func (b *Bridge) PollAll(ctx context.Context) {
	b.polls.Add(1)
	for _, id := range b.deviceIDs() {
		if ctx.Err() != nil {
			return
		}
		if err := b.refresh(ctx, id, b.devices[id], history.SourcePoll); err != nil {
			b.pollErrors.Add(1)
			b.logWarn("poll failed", "device_id", id, "error", err)
		}
	}
	b.pruneHistory(ctx)
}

// refresh runs Update on dev and publishes the result.
func (b *Bridge) refresh(ctx context.Context, deviceID string, dev *Device, source string) error {
	err := dev.Update(ctx)
	b.setLastError(deviceID, err)
	if err != nil {
		return err
	}
	b.publishState(ctx, deviceID, dev, source)
	return nil
}

// publishState publishes the retained state, writes metrics and records
// the state in history when it changed.
func (b *Bridge) publishState(ctx context.Context, deviceID string, dev *Device, source string) {
	st := dev.State()
	msg := NewStateMessage(deviceID, dev.Address(), st)

	payload, err := json.Marshal(msg)
	if err != nil {
		b.logError("failed to marshal state", err)
		return
	}
	if err := b.mqtt.Publish(StateTopic(deviceID), payload, 1, true); err != nil {
		b.logError("failed to publish state", err)
	} else {
		b.statesPublished.Add(1)
	}

	b.writeMetrics(deviceID, dev, st)

	if b.recorder == nil || !b.stateChanged(deviceID, msg.State) {
		return
	}
	if err := b.recorder.RecordStateChange(ctx, deviceID, history.State(msg.State), source); err != nil {
		b.logWarn("state history write failed", "device_id", deviceID, "error", err)
	}
}

func (b *Bridge) writeMetrics(deviceID string, dev *Device, st State) {
	if b.metrics == nil {
		return
	}
	if st.HasStatus {
		b.metrics.WriteThermostatMetric(influxdb.ThermostatSample{
			DeviceID:          deviceID,
			Address:           dev.Address(),
			Mode:              st.Mode.String(),
			TargetTemperature: st.TargetTemperature,
			ValvePercent:      int(st.Valve),
			LowBattery:        st.LowBattery(),
			WindowOpen:        st.WindowOpen(),
			Locked:            st.Locked(),
			Boost:             st.Boost(),
			Time:              st.UpdatedAt,
		})
	}

	stats := dev.Stats()
	backend := BackendBLE
	for _, dc := range b.cfg.Devices {
		if dc.DeviceID == deviceID && dc.Backend != "" {
			backend = strings.ToLower(dc.Backend)
		}
	}
	b.metrics.WriteLinkMetric(influxdb.LinkSample{
		DeviceID:             deviceID,
		Backend:              backend,
		Connected:            stats.Link.Connected,
		Transactions:         stats.Transactions,
		Timeouts:             stats.Timeouts,
		MalformedPayloads:    stats.MalformedPayloads,
		WritesTotal:          stats.Link.WritesTotal,
		NotificationsTotal:   stats.Link.NotificationsTotal,
		NotificationsDropped: stats.Link.NotificationsDropped,
		ConnectFailures:      stats.Link.ConnectFailures,
	})
}

// stateChanged reports whether state differs from the last one seen for
// deviceID and remembers it.
func (b *Bridge) stateChanged(deviceID string, state map[string]any) bool {
	b.lastStateMu.Lock()
	defer b.lastStateMu.Unlock()

	if prev, ok := b.lastState[deviceID]; ok && reflect.DeepEqual(prev, state) {
		return false
	}
	b.lastState[deviceID] = state
	return true
}

func (b *Bridge) pruneHistory(ctx context.Context) {
	pruner, ok := b.recorder.(historyPruner)
	if !ok {
		return
	}
	n, err := pruner.PruneHistory(ctx, b.cfg.GetHistoryRetention())
	if err != nil {
		b.logWarn("state history prune failed", "error", err)
		return
	}
	if n > 0 {
		b.logDebug("state history pruned", "rows", n)
	}
}

func (b *Bridge) setLastError(deviceID string, err error) {
	b.lastErrMu.Lock()
	b.lastErr[deviceID] = err
	b.lastErrMu.Unlock()
}

func (b *Bridge) deviceIDs() []string {
	ids := make([]string, 0, len(b.devices))
	for id := range b.devices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DeviceHealth implements HealthSource.
func (b *Bridge) DeviceHealth() []DeviceHealth {
	b.lastErrMu.RLock()
	defer b.lastErrMu.RUnlock()

	out := make([]DeviceHealth, 0, len(b.devices))
	for _, id := range b.deviceIDs() {
		dev := b.devices[id]
		stats := dev.Stats()
		h := DeviceHealth{
			DeviceID:   id,
			Address:    dev.Address(),
			Connected:  stats.Link.Connected,
			Reachable:  true,
			Timeouts:   stats.Timeouts,
			Errors:     stats.TransactionErrors,
			LowBattery: dev.State().LowBattery(),
		}
		if !stats.Link.LastActivity.IsZero() {
			last := stats.Link.LastActivity
			h.LastActivity = &last
		}
		if err := b.lastErr[id]; err != nil {
			h.Reachable = false
			h.LastError = err.Error()
		}
		out = append(out, h)
	}
	return out
}

// Statistics implements HealthSource.
func (b *Bridge) Statistics() BridgeStatistics {
	return BridgeStatistics{
		CommandsReceived: b.commandsReceived.Load(),
		CommandsFailed:   b.commandsFailed.Load(),
		Polls:            b.polls.Load(),
		PollErrors:       b.pollErrors.Load(),
		StatesPublished:  b.statesPublished.Load(),
	}
}

// HealthReporter returns the bridge's health reporter.
func (b *Bridge) HealthReporter() *HealthReporter {
	return b.health
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()

	if b.health != nil {
		b.health.SetLogger(logger)
	}
}

func (b *Bridge) getLogger() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}

func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (b *Bridge) logWarn(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

func (b *Bridge) logError(msg string, err error) {
	if logger := b.getLogger(); logger != nil {
		logger.Error(msg, "error", err)
	}
}

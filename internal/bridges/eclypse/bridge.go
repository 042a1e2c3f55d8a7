package eclypse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/eclypse-bridge/internal/audit"
	"github.com/nerrad567/eclypse-bridge/internal/bacnet"
	"github.com/nerrad567/eclypse-bridge/internal/entity"
	"github.com/nerrad567/eclypse-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/eclypse-bridge/internal/infrastructure/mqtt"
)

// Bridge operation constants.
const (
	defaultPollInterval    = 30 * time.Second
	defaultDiscoveryPrefix = "homeassistant"

	// commandTimeout bounds one MQTT-triggered write flush.
	commandTimeout = 15 * time.Second
)

// Bridge polls one controller on a fixed interval and mirrors its
// properties onto MQTT. It also accepts property writes from MQTT command
// topics and from direct Write calls.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	device    string
	version   string
	info      DeviceInfo
	client    *Client
	mqtt      MQTTClient
	telemetry Telemetry
	audit     AuditLogger
	health    *HealthReporter
	interval  time.Duration

	discovery       bool
	discoveryPrefix string
	discoveryMu     sync.Mutex
	discoveredIDs   []string

	// State cache for change detection, keyed by object then property.
	stateCache   map[string]map[string]any
	stateCacheMu sync.Mutex

	listeners   []func(PollSnapshot)
	listenersMu sync.RWMutex

	// Shutdown coordination
	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc

	logger   Logger
	loggerMu sync.RWMutex
}

// MQTTClient is the subset of *mqtt.Client the bridge uses.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// Telemetry receives numeric property values and poll statistics.
// *influxdb.Client satisfies it. Optional.
type Telemetry interface {
	WriteProperty(device, object, property string, value float64, at time.Time)
	WritePoll(device string, s influxdb.PollSample, at time.Time)
}

// AuditLogger records property writes. *audit.SQLiteRepository satisfies
// it. Optional.
type AuditLogger interface {
	Create(ctx context.Context, log *audit.Log) error
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// Device names this controller in MQTT topics. Required.
	Device string

	// Client talks to the controller and owns the registry. Required.
	Client *Client

	// MQTT is the broker connection. Required.
	MQTT MQTTClient

	// Info describes the controller in discovery payloads.
	Info DeviceInfo

	// Version is reported in health messages.
	Version string

	// PollInterval defaults to 30 seconds.
	PollInterval time.Duration

	// HealthInterval defaults to 30 seconds.
	HealthInterval time.Duration

	// Discovery enables Home Assistant MQTT discovery under DiscoveryPrefix
	// (default "homeassistant").
	Discovery       bool
	DiscoveryPrefix string

	Logger    Logger
	Telemetry Telemetry
	Audit     AuditLogger
}

// PollSnapshot is handed to OnPoll listeners after every poll attempt.
type PollSnapshot struct {
	Device    string          `json:"device"`
	Timestamp time.Time       `json:"timestamp"`
	Requested int             `json:"requested"`
	Matched   int             `json:"matched"`
	Dropped   int             `json:"dropped"`
	Changes   []bacnet.Change `json:"changes"`
	Error     string          `json:"error,omitempty"`
}

// BridgeMetrics contains metrics data for the API metrics endpoint.
type BridgeMetrics struct {
	Device         string       `json:"device"`
	MQTTConnected  bool         `json:"mqtt_connected"`
	Status         HealthStatus `json:"status"`
	Reason         string       `json:"reason,omitempty"`
	ObjectsTracked int          `json:"objects_tracked"`
	Client         Stats        `json:"client"`
}

// NewBridge creates a new bridge instance.
// Call Start() to begin polling.
//
// Parameters:
//   - opts: Device name, controller client and MQTT client are required.
//     Telemetry, Audit and Logger are optional and may be left nil.
//
// Returns:
//   - *Bridge: Bridge ready to Start
//   - error: If a required option is missing or Device contains MQTT topic
//     separators or wildcards
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	var errs []error
	if opts.Device == "" {
		errs = append(errs, errors.New("device is required"))
	}
	if opts.Client == nil {
		errs = append(errs, errors.New("client is required"))
	}
	if opts.MQTT == nil {
		errs = append(errs, errors.New("MQTT client is required"))
	}
	if opts.Device != "" && strings.ContainsAny(opts.Device, "/+#") {
		errs = append(errs, fmt.Errorf("device %q must not contain MQTT topic separators or wildcards", opts.Device))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	prefix := opts.DiscoveryPrefix
	if prefix == "" {
		prefix = defaultDiscoveryPrefix
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		device:          opts.Device,
		version:         opts.Version,
		info:            opts.Info,
		client:          opts.Client,
		mqtt:            opts.MQTT,
		telemetry:       opts.Telemetry,
		audit:           opts.Audit,
		interval:        interval,
		discovery:       opts.Discovery,
		discoveryPrefix: prefix,
		stateCache:      make(map[string]map[string]any),
		done:            make(chan struct{}),
		ctx:             ctx,
		ctxCancel:       ctxCancel,
		logger:          opts.Logger,
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		Device:    opts.Device,
		Version:   opts.Version,
		Interval:  opts.HealthInterval,
		Publisher: opts.MQTT,
		Client:    opts.Client,
	})
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}

	return b, nil
}

// Device returns the device name used in topics.
func (b *Bridge) Device() string { return b.device }

// Client returns the controller client.
func (b *Bridge) Client() *Client { return b.client }

// Registry returns the tracked object registry.
func (b *Bridge) Registry() *bacnet.Registry { return b.client.Registry() }

// Object fetches the live REST representation of a tracked object.
func (b *Bridge) Object(ctx context.Context, name string) (map[string]any, error) {
	return b.client.GetObject(ctx, name)
}

// Trend fetches trend log records of a tracked object by sequence number.
func (b *Bridge) Trend(ctx context.Context, name string, start, end int) (json.RawMessage, error) {
	return b.client.Trend(ctx, name, start, end)
}

// Start begins bridge operation.
//
// It performs:
//  1. Publishes a "starting" health status
//  2. Subscribes to eclypse/command/{device}/+/+
//  3. Starts periodic health reporting
//  4. Runs an immediate poll, then one every PollInterval until Stop or ctx
//     is cancelled
//
// Returns:
//   - error: If the command subscription fails; nothing is left running
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	topic := mqtt.Topics{}.CommandSubscription(b.device)
	if err := b.mqtt.Subscribe(topic, 1, b.handleMQTTMessage); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logInfo("subscribed to commands", "topic", topic)

	b.health.Start(ctx)

	b.wg.Add(1)
	go b.pollLoop(ctx)

	b.logInfo("bridge started",
		"device", b.device,
		"host", b.client.Host(),
		"objects", b.client.Registry().Len(),
		"interval", b.interval)
	return nil
}

// Stop halts polling and health reporting. In-flight controller requests
// are cancelled. Safe to call multiple times.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.ctxCancel()
		b.wg.Wait()
		b.health.Stop()
		b.logInfo("bridge stopped", "device", b.device)
	})
}

func (b *Bridge) pollLoop(ctx context.Context) {
	defer b.wg.Done()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-b.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	//nolint:errcheck // Logged inside Poll; the next tick retries
	b.Poll(ctx, PollRequest{})

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			//nolint:errcheck // Logged inside Poll; the next tick retries
			b.Poll(ctx, PollRequest{})
		}
	}
}

// Poll runs one poll cycle and publishes its outcome: changed values to
// their state topics, samples to telemetry, health on a status flip, and
// discovery when the entity set changes shape.
func (b *Bridge) Poll(ctx context.Context, req PollRequest) (*PollResult, error) {
	now := time.Now().UTC()
	res, err := b.client.PollProperties(ctx, req)
	b.health.RecordPoll(err)

	if err != nil {
		b.logError("poll failed", err)
		b.recordPollTelemetry(influxdb.PollSample{Failed: true}, now)
		b.notify(PollSnapshot{Device: b.device, Timestamp: now, Changes: []bacnet.Change{}, Error: err.Error()})
		return nil, err
	}

	b.recordPollTelemetry(influxdb.PollSample{
		Duration:      res.Duration,
		RequestVolume: res.Requested,
		Matched:       res.Reconcile.Matched,
		Dropped:       res.Reconcile.Dropped,
		Changed:       len(res.Reconcile.Changes),
	}, now)

	b.publishValues(res.Values, now)

	if b.discovery {
		b.publishDiscovery()
	}

	changes := res.Reconcile.Changes
	if changes == nil {
		changes = []bacnet.Change{}
	}
	b.notify(PollSnapshot{
		Device:    b.device,
		Timestamp: now,
		Requested: res.Requested,
		Matched:   res.Reconcile.Matched,
		Dropped:   res.Reconcile.Dropped,
		Changes:   changes,
	})
	return res, nil
}

// Refresh forces a read of every tracked property, static ones included.
func (b *Bridge) Refresh(ctx context.Context) (*PollResult, error) {
	return b.Poll(ctx, PollRequest{ForceAll: true})
}

// publishValues publishes the cached value behind every response tuple the
// registry accepted, skipping values already published.
func (b *Bridge) publishValues(values []bacnet.PropertyValue, at time.Time) {
	reg := b.client.Registry()
	for _, v := range values {
		name := v.ObjectName()
		cached, ok := reg.Value(name, v.Property)
		if !ok {
			continue
		}

		if v.Property == bacnet.PropPresentValue && b.telemetry != nil {
			if n, numeric := bacnet.Numeric(cached); numeric {
				b.telemetry.WriteProperty(b.device, name, v.Property, n, at)
			}
		}

		b.publishState(name, v.Property, cached)
	}
}

// publishState publishes one value if it differs from the last published.
func (b *Bridge) publishState(object, property string, value any) {
	if b.stateUnchanged(object, property, value) {
		return
	}

	payload, err := json.Marshal(NewStateMessage(b.device, object, property, value))
	if err != nil {
		b.logError("failed to marshal state", err)
		return
	}

	topic := mqtt.Topics{}.State(b.device, object, property)
	if err := b.mqtt.Publish(topic, payload, 1, true); err != nil {
		b.logError("failed to publish state", err)
		b.forgetState(object, property)
	}
}

// stateUnchanged reports whether value matches the cache, updating the
// cache when it does not.
func (b *Bridge) stateUnchanged(object, property string, value any) bool {
	b.stateCacheMu.Lock()
	defer b.stateCacheMu.Unlock()

	props := b.stateCache[object]
	if props == nil {
		props = make(map[string]any)
		b.stateCache[object] = props
	}
	if cached, ok := props[property]; ok && reflect.DeepEqual(cached, value) {
		return true
	}
	props[property] = value
	return false
}

// forgetState drops a cache entry so the next poll publishes it again.
func (b *Bridge) forgetState(object, property string) {
	b.stateCacheMu.Lock()
	defer b.stateCacheMu.Unlock()
	delete(b.stateCache[object], property)
}

// ClearStateCache makes the next poll republish every value.
func (b *Bridge) ClearStateCache() {
	b.stateCacheMu.Lock()
	defer b.stateCacheMu.Unlock()
	b.stateCache = make(map[string]map[string]any)
}

func (b *Bridge) recordPollTelemetry(s influxdb.PollSample, at time.Time) {
	if b.telemetry != nil {
		b.telemetry.WritePoll(b.device, s, at)
	}
}

// Entities derives the current entity read models.
func (b *Bridge) Entities() entity.Set {
	stats := b.client.Stats()
	return entity.Build(b.client.Registry(), entity.Diagnostics{
		RequestSeconds: stats.RequestSeconds,
		RequestVolume:  stats.RequestVolume,
	})
}

// discoveryDevice is the device block shared by every discovery payload.
func (b *Bridge) discoveryDevice() entity.Device {
	name := b.info.ControllerName
	if name == "" {
		name = b.device
	}
	return entity.Device{
		ID:              b.client.Host(),
		Name:            name,
		Model:           b.info.ModelName,
		SoftwareVersion: b.info.SoftwareVersion,
	}
}

// publishDiscovery publishes retained discovery configs when the set of
// entities differs from the last published set.
func (b *Bridge) publishDiscovery() {
	configs := entity.DiscoveryConfigs(b.Entities(), b.discoveryDevice(), b.device)

	ids := make([]string, 0, len(configs))
	for _, d := range configs {
		ids = append(ids, d.UniqueID)
	}
	slices.Sort(ids)

	b.discoveryMu.Lock()
	defer b.discoveryMu.Unlock()
	if slices.Equal(ids, b.discoveredIDs) {
		return
	}

	for _, d := range configs {
		payload, err := json.Marshal(d.Config)
		if err != nil {
			b.logError("failed to marshal discovery config", err)
			return
		}
		if err := b.mqtt.Publish(d.Topic(b.discoveryPrefix), payload, 1, true); err != nil {
			b.logError("failed to publish discovery config", err)
			return
		}
	}
	b.discoveredIDs = ids
	b.logInfo("published discovery configs", "count", len(configs))
}

// Write queues value for one property and flushes it to the controller.
// A priority of bacnet.NoPriority keeps the property's current priority.
// source is recorded in the audit log.
func (b *Bridge) Write(ctx context.Context, object, property string, value any, priority int, source string) (*WriteResult, error) {
	reg := b.client.Registry()
	if err := reg.Update(object, property, value, priority); err != nil {
		return nil, err
	}

	res, err := b.client.FlushWrites(ctx, []string{object}, []string{property})
	b.recordAudit(object, property, value, priority, source, err)
	if err != nil {
		return nil, err
	}

	for _, w := range res.Written {
		name := bacnet.ObjectName(w.Type, w.Instance)
		if v, ok := reg.Value(name, w.Property); ok {
			b.publishState(name, w.Property, v)
		}
	}
	return res, nil
}

func (b *Bridge) recordAudit(object, property string, value any, priority int, source string, err error) {
	if b.audit == nil {
		return
	}

	log := &audit.Log{
		Action:   audit.ActionWrite,
		Object:   object,
		Property: property,
		Source:   source,
		Details:  map[string]any{"value": value, "device": b.device},
	}
	if priority != bacnet.NoPriority {
		log.Details["priority"] = priority
	}
	if err != nil {
		log.Action = audit.ActionWriteFailed
		log.Details["error"] = err.Error()
	}

	// Detached from the request so a cancelled write is still recorded.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(b.ctx), 5*time.Second)
	defer cancel()
	if aerr := b.audit.Create(ctx, log); aerr != nil {
		b.logError("failed to record audit log", aerr)
	}
}

// handleMQTTMessage executes a write command and acknowledges it.
func (b *Bridge) handleMQTTMessage(topic string, payload []byte) error {
	addr, err := mqtt.ParsePropertyTopic(topic)
	if err != nil {
		return err
	}
	if addr.Category != mqtt.CategoryCommand || addr.Device != b.device {
		return fmt.Errorf("%w: unexpected topic %s", ErrInvalidCommand, topic)
	}

	cmd, err := ParseCommand(payload)
	if err != nil {
		b.publishAck(addr, NewAckError("", addr.Object, addr.Property, ErrCodeInvalidCommand, err.Error()))
		return err
	}

	b.logInfo("received command",
		"command_id", cmd.ID,
		"object", addr.Object,
		"property", addr.Property)

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	if _, err := b.Write(ctx, addr.Object, addr.Property, cmd.Value, cmd.WritePriority(), audit.SourceMQTT); err != nil {
		code := ErrCodeControllerError
		if errors.Is(err, bacnet.ErrObjectNotFound) || errors.Is(err, bacnet.ErrPropertyNotFound) {
			code = ErrCodeNotFound
		}
		b.publishAck(addr, NewAckError(cmd.ID, addr.Object, addr.Property, code, err.Error()))
		b.logError("command failed", err)
		return nil
	}

	b.publishAck(addr, NewAckMessage(cmd.ID, addr.Object, addr.Property))
	return nil
}

func (b *Bridge) publishAck(addr mqtt.PropertyAddress, ack AckMessage) {
	payload, err := json.Marshal(ack)
	if err != nil {
		b.logError("failed to marshal ack", err)
		return
	}

	topic := mqtt.Topics{}.Ack(b.device, addr.Object, addr.Property)
	if err := b.mqtt.Publish(topic, payload, 1, false); err != nil {
		b.logError("failed to publish ack", err)
	}
}

// OnPoll registers fn to run after every poll attempt. Listeners run on the
// polling goroutine and must not block.
func (b *Bridge) OnPoll(fn func(PollSnapshot)) {
	b.listenersMu.Lock()
	b.listeners = append(b.listeners, fn)
	b.listenersMu.Unlock()
}

func (b *Bridge) notify(snap PollSnapshot) {
	b.listenersMu.RLock()
	listeners := slices.Clone(b.listeners)
	b.listenersMu.RUnlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

// GetMetrics returns current bridge metrics for the API metrics endpoint.
func (b *Bridge) GetMetrics() BridgeMetrics {
	status, reason := b.health.Status()
	return BridgeMetrics{
		Device:         b.device,
		MQTTConnected:  b.mqtt.IsConnected(),
		Status:         status,
		Reason:         reason,
		ObjectsTracked: b.client.Registry().Len(),
		Client:         b.client.Stats(),
	}
}

// SetLogger sets the logger for the bridge and its health reporter.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()

	b.health.SetLogger(logger)
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

func (b *Bridge) logError(msg string, err error) {
	if logger := b.getLogger(); logger != nil {
		logger.Error(msg, "device", b.device, "error", err)
	}
}

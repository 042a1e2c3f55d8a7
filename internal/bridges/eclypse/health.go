package eclypse

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nerrad567/eclypse-bridge/internal/infrastructure/mqtt"
)

const defaultHealthInterval = 30 * time.Second

// HealthReporter publishes the bridge's retained health message on a fixed
// interval, and immediately when poll health flips.
type HealthReporter struct {
	device    string
	version   string
	startTime time.Time
	interval  time.Duration
	publisher HealthPublisher
	client    *Client

	// Poll outcome (updated by RecordPoll)
	stateMu sync.RWMutex
	polled  bool
	lastErr error

	// Shutdown coordination (stopOnce prevents double-close panics)
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// HealthPublisher is the interface for publishing health messages.
// This is typically implemented by an MQTT client.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	// Device names the health topic.
	Device string

	// Version is the bridge software version.
	Version string

	// Interval is how often to publish health status.
	// Default: 30 seconds.
	Interval time.Duration

	// Publisher is the MQTT client for publishing messages.
	Publisher HealthPublisher

	// Client provides controller statistics.
	Client *Client
}

// NewHealthReporter creates a health reporter. Call Start to begin
// periodic reporting.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultHealthInterval
	}

	return &HealthReporter{
		device:    cfg.Device,
		version:   cfg.Version,
		startTime: time.Now(),
		interval:  interval,
		publisher: cfg.Publisher,
		client:    cfg.Client,
		done:      make(chan struct{}),
	}
}

// Start begins periodic health reporting until ctx is cancelled or Stop is
// called.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop halts reporting and publishes a final "stopping" status.
// Safe to call multiple times.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		//nolint:errcheck // Best-effort during shutdown
		h.publishStatus(HealthStopping, "")
	})
}

// SetLogger sets the logger for this reporter.
func (h *HealthReporter) SetLogger(logger Logger) {
	h.loggerMu.Lock()
	h.logger = logger
	h.loggerMu.Unlock()
}

// RecordPoll stores the outcome of a poll cycle. When the outcome flips
// between success and failure, or on the first poll, the new status is
// published straight away.
func (h *HealthReporter) RecordPoll(err error) {
	h.stateMu.Lock()
	flipped := !h.polled || (h.lastErr == nil) != (err == nil)
	h.polled = true
	h.lastErr = err
	h.stateMu.Unlock()

	if flipped {
		if pubErr := h.PublishNow(); pubErr != nil {
			h.logError("failed to publish health", pubErr)
		}
	}
}

// PublishStarting publishes a "starting" status.
func (h *HealthReporter) PublishStarting() error {
	return h.publishStatus(HealthStarting, "bridge starting")
}

// PublishNow publishes the current health status immediately.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.determineStatus()
	return h.publishStatus(status, reason)
}

// Status returns the current status and its reason.
func (h *HealthReporter) Status() (HealthStatus, string) {
	return h.determineStatus()
}

func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.logError("failed to publish health", err)
			}
		}
	}
}

func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	if h.publisher == nil || !h.publisher.IsConnected() {
		return HealthDegraded, "MQTT disconnected"
	}

	h.stateMu.RLock()
	polled, lastErr := h.polled, h.lastErr
	h.stateMu.RUnlock()

	if !polled {
		return HealthStarting, "waiting for first poll"
	}
	if lastErr != nil {
		return HealthDegraded, "controller poll failed"
	}
	return HealthHealthy, ""
}

func (h *HealthReporter) message(status HealthStatus, reason string) HealthMessage {
	var (
		stats   Stats
		objects int
		conn    *ConnectionStatus
	)
	if h.client != nil {
		stats = h.client.Stats()
		objects = h.client.Registry().Len()
		conn = &ConnectionStatus{Host: h.client.Host(), Session: h.client.HasSession()}
	}

	msg := NewHealthMessage(h.device, h.version, status, stats, objects, h.startTime)
	msg.Reason = reason
	msg.Connection = conn

	h.stateMu.RLock()
	if conn != nil && h.lastErr != nil {
		conn.LastError = h.lastErr.Error()
	}
	h.stateMu.RUnlock()

	return msg
}

func (h *HealthReporter) publishStatus(status HealthStatus, reason string) error {
	if h.publisher == nil {
		return nil
	}

	payload, err := json.Marshal(h.message(status, reason))
	if err != nil {
		return err
	}
	return h.publisher.Publish(mqtt.Topics{}.Health(h.device), payload, 1, true)
}

func (h *HealthReporter) logError(msg string, err error) {
	h.loggerMu.RLock()
	logger := h.logger
	h.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}

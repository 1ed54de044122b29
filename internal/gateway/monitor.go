package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Hongsc0125/donggle-bot/internal/logger"
	"github.com/Hongsc0125/donggle-bot/internal/retry"
)

const (
	DefaultInterval         = 30 * time.Second
	DefaultHeartbeatTimeout = 90 * time.Second
	DefaultLatencyWarn      = 500 * time.Millisecond
	DefaultBackoffInitial   = 5 * time.Second
	DefaultBackoffMax       = 5 * time.Minute
	DefaultBackoffFactor    = 2.0
)

var (
	// ErrReconnectFailed wraps the error of one failed reconnect attempt.
	ErrReconnectFailed = errors.New("reconnect failed")
	// ErrReconnectExhausted is returned by Run once MaxAttempts consecutive
	// reconnects have failed.
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
)

// Conn is the gateway connection the monitor supervises.
type Conn interface {
	Open() error
	Close() error
	Closed() bool
	LastHeartbeatAck() time.Time
	Latency() time.Duration
}

// ReconnectObserver is told about every reconnect attempt.
type ReconnectObserver interface {
	ReconnectSucceeded(attempt int, reason string)
	ReconnectFailed(attempt int, reason string, err error)
}

type nopReconnectObserver struct{}

func (nopReconnectObserver) ReconnectSucceeded(int, string) {}
func (nopReconnectObserver) ReconnectFailed(int, string, error) {}

// MonitorConfig configures a Monitor.
type MonitorConfig struct {
	Interval         time.Duration
	HeartbeatTimeout time.Duration
	LatencyWarn      time.Duration
	Backoff          retry.Backoff
	// MaxAttempts caps consecutive failed reconnects; 0 means unlimited.
	MaxAttempts int
}

func (c MonitorConfig) withDefaults() MonitorConfig {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = DefaultHeartbeatTimeout
	}
	if c.LatencyWarn <= 0 {
		c.LatencyWarn = DefaultLatencyWarn
	}
	if c.Backoff.Initial <= 0 {
		c.Backoff.Initial = DefaultBackoffInitial
	}
	if c.Backoff.Max <= 0 {
		c.Backoff.Max = DefaultBackoffMax
	}
	if c.Backoff.Multiplier < 1 {
		c.Backoff.Multiplier = DefaultBackoffFactor
	}
	return c
}

// Monitor periodically checks the connection and runs the reconnect
// sequence (close, wait backoff, open) when it is closed or silent.
type Monitor struct {
	conn     Conn
	health   *HealthState
	cfg      MonitorConfig
	observer ReconnectObserver
	logger   *logger.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	// reconnectMu serializes reconnect sequences between ticks and callbacks.
	reconnectMu sync.Mutex
	kick        chan struct{}
	// selfClose отмечает Close, вызванный самим монитором: gateway сообщит о
	// нём как о disconnect, и этот disconnect не должен запускать ещё одну
	// попытку в том же цикле.
	selfClose atomic.Bool
}

// Option customizes a Monitor.
type Option func(*Monitor)

// WithClock replaces time.Now for heartbeat age computations.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// WithSleep replaces the backoff wait.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(m *Monitor) { m.sleep = sleep }
}

// NewMonitor creates a monitor for conn. health must be shared with whatever
// reports gateway lifecycle events.
func NewMonitor(conn Conn, health *HealthState, cfg MonitorConfig, observer ReconnectObserver, log *logger.Logger, opts ...Option) *Monitor {
	if observer == nil {
		observer = nopReconnectObserver{}
	}
	m := &Monitor{
		conn:     conn,
		health:   health,
		cfg:      cfg.withDefaults(),
		observer: observer,
		logger:   log.Component("connection_monitor"),
		now:      time.Now,
		sleep:    retry.Sleep,
		kick:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run checks the connection on every tick and whenever a disconnect is
// reported. It returns nil when ctx is done and ErrReconnectExhausted when the
// attempt cap is reached.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	m.logger.Info("connection monitor started",
		logger.Field{Key: "interval", Value: m.cfg.Interval},
		logger.Field{Key: "heartbeat_timeout", Value: m.cfg.HeartbeatTimeout},
		logger.Field{Key: "max_attempts", Value: m.cfg.MaxAttempts})

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("connection monitor stopped")
			return nil
		case <-ticker.C:
		case <-m.kick:
		}

		if err := m.Check(ctx); errors.Is(err, ErrReconnectExhausted) {
			return err
		}
		m.dropKick()
	}
}

// dropKick discards a disconnect signal queued while the pass was running.
// The pass already looked at the connection, so the next check waits for a
// tick or a new disconnect.
func (m *Monitor) dropKick() {
	select {
	case <-m.kick:
	default:
	}
}

// Check runs one monitoring pass and triggers at most one reconnect. A failed
// reconnect is returned but left for the next pass to retry.
func (m *Monitor) Check(ctx context.Context) error {
	if ack := m.conn.LastHeartbeatAck(); !ack.IsZero() {
		m.health.ObserveHeartbeat(ack)
	}

	if m.conn.Closed() {
		return m.Reconnect(ctx, "connection closed")
	}

	if age := m.now().Sub(m.health.LastHeartbeat()); age > m.cfg.HeartbeatTimeout {
		m.logger.Warn("heartbeat timed out",
			logger.Field{Key: "age", Value: age},
			logger.Field{Key: "timeout", Value: m.cfg.HeartbeatTimeout})
		return m.Reconnect(ctx, "heartbeat timeout")
	}

	if latency := m.conn.Latency(); latency > m.cfg.LatencyWarn {
		m.logger.Warn("high gateway latency",
			logger.Field{Key: "latency", Value: latency},
			logger.Field{Key: "threshold", Value: m.cfg.LatencyWarn})
	}
	return nil
}

// Reconnect closes the connection, waits the backoff for the current attempt
// and opens it again. Calling it on an already closed connection is safe.
func (m *Monitor) Reconnect(ctx context.Context, reason string) error {
	m.reconnectMu.Lock()
	defer m.reconnectMu.Unlock()

	attempt := m.health.BeginReconnect()
	if m.cfg.MaxAttempts > 0 && attempt > m.cfg.MaxAttempts {
		m.health.MarkDisconnected()
		m.logger.Error("giving up on gateway reconnects", ErrReconnectExhausted,
			logger.Field{Key: "attempts", Value: attempt - 1})
		return ErrReconnectExhausted
	}

	delay := m.cfg.Backoff.Delay(attempt - 1)
	m.logger.Warn("reconnecting to gateway",
		logger.Field{Key: "reason", Value: reason},
		logger.Field{Key: "attempt", Value: attempt},
		logger.Field{Key: "delay", Value: delay})

	if !m.conn.Closed() {
		m.selfClose.Store(true)
		if err := m.conn.Close(); err != nil {
			m.logger.Warn("failed to close gateway connection",
				logger.Field{Key: "error", Value: err.Error()})
		}
	}

	if err := m.sleep(ctx, delay); err != nil {
		return err
	}

	if err := m.conn.Open(); err != nil {
		err = fmt.Errorf("%w: %w", ErrReconnectFailed, err)
		m.logger.Error("gateway reconnect failed", err,
			logger.Field{Key: "reason", Value: reason},
			logger.Field{Key: "attempt", Value: attempt})
		m.observer.ReconnectFailed(attempt, reason, err)
		return err
	}

	m.health.MarkConnected()
	m.logger.Info("gateway reconnected",
		logger.Field{Key: "reason", Value: reason},
		logger.Field{Key: "attempt", Value: attempt})
	m.observer.ReconnectSucceeded(attempt, reason)
	return nil
}

// OnConnect is called by the gateway when a session is established.
func (m *Monitor) OnConnect() {
	m.health.MarkConnected()
	m.logger.Info("gateway connected")
}

// OnResume is called by the gateway when a session is resumed.
func (m *Monitor) OnResume() {
	m.health.MarkConnected()
	m.logger.Info("gateway session resumed")
}

// OnDisconnect is called by the gateway on an unexpected disconnect. The state
// becomes Reconnecting and the run loop checks immediately. The disconnect
// caused by the monitor's own Close is only logged.
func (m *Monitor) OnDisconnect() {
	if m.selfClose.CompareAndSwap(true, false) {
		m.logger.Debug("gateway closed for reconnect")
		return
	}

	m.health.MarkReconnecting()
	m.logger.Warn("gateway disconnected")

	select {
	case m.kick <- struct{}{}:
	default:
	}
}

// Package gateway keeps the Discord gateway connection alive: a shared health
// state, a periodic monitor that reconnects on closure or heartbeat silence,
// and the discordgo adapter the monitor drives.
package gateway

import (
	"sync"
	"time"
)

// State is the connection state reported by HealthState.
type State int

const (
	StateDisconnected State = iota
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// MarshalText renders the state name in JSON health reports.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is a copy of the health state at one instant.
type Snapshot struct {
	State             State     `json:"state"`
	LastHeartbeat     time.Time `json:"last_heartbeat"`
	ReconnectAttempts int       `json:"reconnect_attempts"`
	LastReconnect     time.Time `json:"last_reconnect,omitzero"`
}

// HealthState is written by the monitor and by gateway lifecycle callbacks.
// Values are plain timestamps and counters; the last write wins.
type HealthState struct {
	mu                sync.RWMutex
	state             State
	lastHeartbeat     time.Time
	reconnectAttempts int
	lastReconnect     time.Time

	now func() time.Time
}

// NewHealthState creates a disconnected state. A nil clock uses time.Now.
func NewHealthState(now func() time.Time) *HealthState {
	if now == nil {
		now = time.Now
	}
	return &HealthState{now: now}
}

// Snapshot returns a consistent copy of every field.
func (h *HealthState) Snapshot() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Snapshot{
		State:             h.state,
		LastHeartbeat:     h.lastHeartbeat,
		ReconnectAttempts: h.reconnectAttempts,
		LastReconnect:     h.lastReconnect,
	}
}

func (h *HealthState) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

func (h *HealthState) LastHeartbeat() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastHeartbeat
}

func (h *HealthState) ReconnectAttempts() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.reconnectAttempts
}

// HeartbeatAge returns how long ago the last heartbeat was recorded.
func (h *HealthState) HeartbeatAge() time.Duration {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.now().Sub(h.lastHeartbeat)
}

// MarkConnected records a live connection: heartbeat stamped now and the
// attempt counter reset.
func (h *HealthState) MarkConnected() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = StateConnected
	h.lastHeartbeat = h.now()
	h.reconnectAttempts = 0
}

func (h *HealthState) MarkReconnecting() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = StateReconnecting
}

func (h *HealthState) MarkDisconnected() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = StateDisconnected
}

// ObserveHeartbeat moves the heartbeat forward to t. Older values are ignored.
func (h *HealthState) ObserveHeartbeat(t time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if t.After(h.lastHeartbeat) {
		h.lastHeartbeat = t
	}
}

// SetLastHeartbeat overwrites the heartbeat timestamp.
func (h *HealthState) SetLastHeartbeat(t time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastHeartbeat = t
}

// BeginReconnect marks the state Reconnecting, increments the attempt counter
// and returns the new attempt number.
func (h *HealthState) BeginReconnect() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = StateReconnecting
	h.reconnectAttempts++
	h.lastReconnect = h.now()
	return h.reconnectAttempts
}

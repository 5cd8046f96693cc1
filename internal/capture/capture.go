// Package capture records gesture input sessions.
//
// A Session collects discrete input events (tap time, normalized position,
// hold duration) from any capture surface — touch, pointer, or external
// input. It is purely in-memory: raw captures are handed to the quantizer
// and then discarded, never persisted.
package capture

import (
	"sync"
	"time"
)

// Strategy identifies how a capture will be quantized and matched.
type Strategy uint8

const (
	// StrategyInterval matches the rhythm of taps (inter-event timing).
	StrategyInterval Strategy = iota + 1
	// StrategyGrid matches an ordered sequence of taps on landmark
	// positions, discretized to a fixed grid.
	StrategyGrid
)

func (s Strategy) String() string {
	switch s {
	case StrategyInterval:
		return "interval"
	case StrategyGrid:
		return "grid"
	default:
		return "unknown"
	}
}

// ParseStrategy maps a config string to a Strategy.
func ParseStrategy(name string) (Strategy, bool) {
	switch name {
	case "interval":
		return StrategyInterval, true
	case "grid":
		return StrategyGrid, true
	default:
		return 0, false
	}
}

// Limits bound a capture session.
type Limits struct {
	MinEvents   int
	MaxEvents   int
	MaxDuration time.Duration
}

// Limits returns the per-strategy session bounds.
//
// The grid strategy deliberately uses a small event range: its tolerance
// model relies on a short, deliberately chosen landmark sequence rather
// than a long fuzzy one.
func (s Strategy) Limits() Limits {
	switch s {
	case StrategyGrid:
		return Limits{MinEvents: 3, MaxEvents: 5, MaxDuration: 30 * time.Second}
	default:
		return Limits{MinEvents: 4, MaxEvents: 20, MaxDuration: 30 * time.Second}
	}
}

// RawEvent is a single discrete input event within a session.
// Positions are normalized to [0,1]; times are offsets from session start.
type RawEvent struct {
	OffsetMS uint64  `json:"offset_ms"`
	X        float32 `json:"x"`
	Y        float32 `json:"y"`
	HoldMS   uint64  `json:"hold_ms"`
	Pressure float32 `json:"pressure"`
}

// RawCapture is an ordered, bounded list of events from one session.
// Ephemeral: discarded after quantization.
type RawCapture struct {
	Strategy        Strategy
	Events          []RawEvent
	TotalDurationMS uint64
}

// Valid reports whether the capture satisfies its strategy's bounds.
func (c *RawCapture) Valid() bool {
	lim := c.Strategy.Limits()
	n := len(c.Events)
	if n < lim.MinEvents || n > lim.MaxEvents {
		return false
	}
	return c.TotalDurationMS <= uint64(lim.MaxDuration.Milliseconds())
}

// Session is an in-memory gesture recording session.
type Session struct {
	mu       sync.Mutex
	strategy Strategy
	limits   Limits
	events   []RawEvent
	active   bool
}

// NewSession creates a capture session for the given strategy.
func NewSession(strategy Strategy) *Session {
	return &Session{
		strategy: strategy,
		limits:   strategy.Limits(),
	}
}

// Strategy returns the session's strategy.
func (s *Session) Strategy() Strategy {
	return s.strategy
}

// Start resets session state and begins recording.
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = s.events[:0]
	s.active = true
}

// Record appends an event to the active session.
//
// Returns false (a no-op) if the session is not active, the event count
// has reached the maximum, or the event falls past the maximum session
// duration.
func (s *Session) Record(event RawEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return false
	}
	if len(s.events) >= s.limits.MaxEvents {
		return false
	}
	if event.OffsetMS > uint64(s.limits.MaxDuration.Milliseconds()) {
		return false
	}

	event.X = clamp01(event.X)
	event.Y = clamp01(event.Y)
	event.Pressure = clamp01(event.Pressure)

	s.events = append(s.events, event)
	return true
}

// Finish ends the session and returns the capture if the minimum event
// count was met. The session must be restarted before reuse.
func (s *Session) Finish() (*RawCapture, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return nil, false
	}
	s.active = false

	if len(s.events) < s.limits.MinEvents {
		s.events = nil
		return nil, false
	}

	events := make([]RawEvent, len(s.events))
	copy(events, s.events)
	s.events = nil

	var total uint64
	last := events[len(events)-1]
	total = last.OffsetMS + last.HoldMS

	return &RawCapture{
		Strategy:        s.strategy,
		Events:          events,
		TotalDurationMS: total,
	}, true
}

// Cancel discards all buffered events and deactivates the session.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = nil
	s.active = false
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

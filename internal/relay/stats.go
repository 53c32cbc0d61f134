package relay

import (
	"sync/atomic"
	"time"
)

// Stats holds the process-wide monotonic counters. They reset only on
// restart.
type Stats struct {
	startedAt   time.Time
	connections atomic.Int64
	messages    atomic.Int64
	diceRolls   atomic.Int64
}

// NewStats returns zeroed counters anchored at the current time.
func NewStats() *Stats {
	return &Stats{startedAt: time.Now().UTC()}
}

// ConnectionAccepted counts one accepted connection.
func (s *Stats) ConnectionAccepted() { s.connections.Add(1) }

// MessageRouted counts one routed inbound message.
func (s *Stats) MessageRouted() { s.messages.Add(1) }

// DiceRollRouted counts one routed dice roll.
func (s *Stats) DiceRollRouted() { s.diceRolls.Add(1) }

// Uptime returns the time since the counters were created.
func (s *Stats) Uptime() time.Duration { return time.Since(s.startedAt) }

// StatsView is a point-in-time copy of the counters.
type StatsView struct {
	TotalConnections int64
	TotalMessages    int64
	TotalDiceRolls   int64
	Uptime           time.Duration
}

// View returns a consistent-enough copy for reporting.
func (s *Stats) View() StatsView {
	return StatsView{
		TotalConnections: s.connections.Load(),
		TotalMessages:    s.messages.Load(),
		TotalDiceRolls:   s.diceRolls.Load(),
		Uptime:           s.Uptime(),
	}
}

package game

import (
	"time"

	"leetclash/internal/domain/model"
)

const (
	// TickInterval is the unit of drain accounting. 100 HP at DrainPerTick
	// lasts 10000 ticks, i.e. twenty minutes of wall-clock time.
	TickInterval = 120 * time.Millisecond
	DrainPerTick = 0.01

	StartingHP = 100.0
)

// ApplyDrain charges every present player for the whole ticks elapsed since
// LastTickTime and advances LastTickTime by exactly those ticks, keeping the
// sub-tick remainder for the next call. When no whole tick has elapsed the
// same pointer is returned untouched, so calling it repeatedly is safe.
func ApplyDrain(m *model.Match, now time.Time) *model.Match {
	if m == nil || m.Status != model.StatusPlaying || m.LastTickTime == nil {
		return m
	}
	intervalMs := TickInterval.Milliseconds()
	elapsed := now.UnixMilli() - *m.LastTickTime
	ticks := elapsed / intervalMs
	if ticks <= 0 {
		return m
	}

	next := m.Clone()
	drain := float64(ticks) * DrainPerTick
	for _, p := range next.Players {
		p.HP = max(0, p.HP-drain)
	}
	advanced := *m.LastTickTime + ticks*intervalMs
	next.LastTickTime = &advanced
	return next
}

// Tick is the periodic clock step: drain, then settle the outcome.
func Tick(m *model.Match, now time.Time) *model.Match {
	return CheckGameOver(ApplyDrain(m, now))
}

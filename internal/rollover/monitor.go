// Package rollover watches the calendar and archives the current day's
// content into history when the date changes, then resets the day slot.
package rollover

import (
	"context"
	"strings"
	stdsync "sync"
	"time"

	"dumpzone/internal/datekey"
	"dumpzone/internal/daybook/model"
	"dumpzone/pkg/logger"
)

const checkInterval = time.Minute

// Daybook is the slice of the sync coordinator the monitor drives.
type Daybook interface {
	LoadDay(ctx context.Context, dateKey string) (string, error)
	SaveToHistory(ctx context.Context, content, date string, tags []string, pinned bool) (model.Entry, error)
	ClearDay(ctx context.Context, dateKey string) error
}

// Exporter receives each archived entry after a rollover. Export failures
// never block or undo the rollover itself.
type Exporter interface {
	Connected() bool
	ExportEntry(ctx context.Context, entry model.Entry) error
}

// Monitor tracks which calendar day the agent believes it is in. Until the
// first check runs it is uninitialized and will not archive anything; it has
// no idea yet what "yesterday" was.
type Monitor struct {
	daybook  Daybook
	exporter Exporter
	onReset  func()

	now   func() time.Time
	ticks <-chan time.Time

	mu         stdsync.Mutex
	trackedDay string // "" until the first check
	lastRolled string // last dateKey archived, duplicate guard
}

type Option func(*Monitor)

// WithClock substitutes the wall clock.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// WithTicks substitutes the periodic trigger channel.
func WithTicks(ticks <-chan time.Time) Option {
	return func(m *Monitor) { m.ticks = ticks }
}

// WithOnReset registers a callback invoked after the day slot has been
// cleared, so the UI can drop its in-memory editor state.
func WithOnReset(fn func()) Option {
	return func(m *Monitor) { m.onReset = fn }
}

func New(daybook Daybook, exporter Exporter, opts ...Option) *Monitor {
	m := &Monitor{
		daybook:  daybook,
		exporter: exporter,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run checks immediately on startup and then once per tick until the context
// is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticks := m.ticks
	if ticks == nil {
		ticker := time.NewTicker(checkInterval)
		defer ticker.Stop()
		ticks = ticker.C
	}

	m.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			m.Check(ctx)
		}
	}
}

// Check compares the tracked day with the current one and performs a single
// rollover when they differ. A multi-day gap (laptop asleep over a weekend)
// still archives only the one day that was actually being written; there is
// nothing to archive for the days in between.
func (m *Monitor) Check(ctx context.Context) {
	today := datekey.Format(m.now())

	m.mu.Lock()
	tracked := m.trackedDay
	if tracked == "" {
		// First observation. Adopt today without archiving; whatever is in
		// the day slot still belongs to today.
		m.trackedDay = today
		m.mu.Unlock()
		return
	}
	if tracked == today {
		m.mu.Unlock()
		return
	}
	if m.lastRolled == tracked {
		m.trackedDay = today
		m.mu.Unlock()
		return
	}
	m.lastRolled = tracked
	m.trackedDay = today
	m.mu.Unlock()

	m.rollover(ctx, tracked)
}

func (m *Monitor) rollover(ctx context.Context, outgoingDay string) {
	content, err := m.daybook.LoadDay(ctx, outgoingDay)
	if err != nil {
		logger.Sugar.Errorf("Rollover read failed for %s: %v", outgoingDay, err)
		return
	}

	if strings.TrimSpace(content) == "" {
		logger.Sugar.Infof("Day %s ended empty, nothing to archive", outgoingDay)
	} else {
		entry, err := m.daybook.SaveToHistory(ctx, content, outgoingDay, nil, false)
		if err != nil {
			// Leave the slot intact so the content survives for the next
			// check rather than vanishing with the reset below.
			logger.Sugar.Errorf("Rollover archive failed for %s: %v", outgoingDay, err)
			m.mu.Lock()
			m.lastRolled = ""
			m.trackedDay = outgoingDay
			m.mu.Unlock()
			return
		}
		logger.Sugar.Infof("Archived day %s as entry %s", outgoingDay, entry.ID)

		if m.exporter != nil && m.exporter.Connected() {
			if err := m.exporter.ExportEntry(ctx, entry); err != nil {
				logger.Sugar.Warnf("Export of entry %s failed: %v", entry.ID, err)
			}
		}
	}

	if err := m.daybook.ClearDay(ctx, outgoingDay); err != nil {
		logger.Sugar.Errorf("Rollover clear failed: %v", err)
		return
	}
	if m.onReset != nil {
		m.onReset()
	}
}

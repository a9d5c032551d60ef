package export

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/FailDerErste/dienstplan-app/internal/events"
	"github.com/FailDerErste/dienstplan-app/internal/metrics"
	"github.com/FailDerErste/dienstplan-app/internal/store"
	"github.com/FailDerErste/dienstplan-app/internal/timefmt"
)

var (
	// ErrInFlight is returned when an export is triggered while another
	// one is still running. The trigger is a no-op for the caller.
	ErrInFlight = errors.New("export already in progress")

	// ErrEmptySchedule is returned when there is nothing to export.
	ErrEmptySchedule = errors.New("no assignments to export")
)

// Guard allows a single export in flight at a time.
type Guard struct {
	running atomic.Bool
}

// TryAcquire reports whether the caller may start an export.
func (g *Guard) TryAcquire() bool {
	return g.running.CompareAndSwap(false, true)
}

// Release makes the guard available again. Always called, success or not.
func (g *Guard) Release() {
	g.running.Store(false)
}

// EventWindow combines an ISO date with start/end times of day in loc.
// When the end instant is not after the start instant the shift crosses
// midnight and the end date advances by one day. Every export target goes
// through this function so the rollover rule cannot diverge.
func EventWindow(date, startStr, endStr string, loc *time.Location) (time.Time, time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse date %q: %w", date, err)
	}
	startClock, ok := timefmt.Parse(startStr)
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start time %q", startStr)
	}
	endClock, ok := timefmt.Parse(endStr)
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end time %q", endStr)
	}

	start := time.Date(day.Year(), day.Month(), day.Day(), startClock.Hour, startClock.Minute, 0, 0, loc)
	end := time.Date(day.Year(), day.Month(), day.Day(), endClock.Hour, endClock.Minute, 0, 0, loc)
	if !end.After(start) {
		end = end.AddDate(0, 0, 1)
	}
	return start, end, nil
}

// CalendarInserter creates events in a native calendar and returns the
// number of events created.
type CalendarInserter interface {
	Insert(ctx context.Context, snap store.Snapshot) (int, error)
}

// Options configures the export runner.
type Options struct {
	ProdID    string
	OutputDir string
	Location  *time.Location
}

// Runner executes exports under the single in-flight guard.
type Runner struct {
	opts     Options
	inserter CalendarInserter
	bus      *events.Bus
	logger   *zerolog.Logger
	guard    Guard
}

// NewRunner creates a runner. inserter may be nil when the native
// calendar path is not configured.
func NewRunner(opts Options, inserter CalendarInserter, bus *events.Bus, logger *zerolog.Logger) *Runner {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Runner{opts: opts, inserter: inserter, bus: bus, logger: logger}
}

// ICS serializes the schedule to an .ics file and returns its path.
func (r *Runner) ICS(ctx context.Context, snap store.Snapshot) (string, error) {
	if !r.guard.TryAcquire() {
		return "", ErrInFlight
	}
	defer r.guard.Release()

	if len(snap.Assignments) == 0 {
		return "", ErrEmptySchedule
	}

	cal := BuildCalendar(snap, r.opts.ProdID, r.opts.Location, time.Now())
	path, err := writeICSFile(cal, r.opts.OutputDir, time.Now())
	r.finish("ics", path, err)
	return path, err
}

// Excel writes the roster workbook and returns its path.
func (r *Runner) Excel(ctx context.Context, snap store.Snapshot) (string, error) {
	if !r.guard.TryAcquire() {
		return "", ErrInFlight
	}
	defer r.guard.Release()

	if len(snap.Assignments) == 0 {
		return "", ErrEmptySchedule
	}

	path, err := writeRosterFile(snap, r.opts.OutputDir, time.Now())
	r.finish("excel", path, err)
	return path, err
}

// Native creates one event per assigned date in the configured native
// calendar and returns the created count.
func (r *Runner) Native(ctx context.Context, snap store.Snapshot) (int, error) {
	if !r.guard.TryAcquire() {
		return 0, ErrInFlight
	}
	defer r.guard.Release()

	if r.inserter == nil {
		return 0, errors.New("native calendar export is not configured")
	}
	if len(snap.Assignments) == 0 {
		return 0, ErrEmptySchedule
	}

	count, err := r.inserter.Insert(ctx, snap)
	r.finish("native", fmt.Sprintf("%d events", count), err)
	return count, err
}

func (r *Runner) finish(target, detail string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
		r.logger.Error().Err(err).Str("target", target).Msg("export failed")
	} else {
		r.logger.Info().Str("target", target).Str("result", detail).Msg("export finished")
	}
	metrics.IncExport(target, outcome)
	if r.bus != nil {
		r.bus.Publish(events.Event{Type: events.TypeExportFinished, Detail: target + ":" + outcome})
	}
}

// timeRangeSuffix renders " (start-end)" for the all-day summary when at
// least one time is present.
func timeRangeSuffix(start, end string) string {
	if start == "" && end == "" {
		return ""
	}
	sep := ""
	if start != "" && end != "" {
		sep = "-"
	}
	return fmt.Sprintf(" (%s%s%s)", start, sep, end)
}

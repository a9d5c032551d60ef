package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/FailDerErste/dienstplan-app/internal/model"
	"github.com/FailDerErste/dienstplan-app/internal/store"
	"github.com/FailDerErste/dienstplan-app/internal/timefmt"
)

// BuildCalendar serializes every assigned date into one VCALENDAR.
// Dates whose service no longer exists are skipped (they surface in the
// validation report instead). Events with both times resolve to timed
// UTC events via EventWindow; otherwise the event degrades to a whole-day
// entry with the partial time range appended to the summary.
func BuildCalendar(snap store.Snapshot, prodID string, loc *time.Location, now time.Time) *ics.Calendar {
	cal := ics.NewCalendar()
	cal.SetProductId(prodID)
	cal.SetVersion("2.0")
	cal.SetCalscale("GREGORIAN")

	for _, date := range snap.SortedDates() {
		serviceID := snap.Assignments[date]
		svc := snap.ServiceByID(serviceID)
		if svc == nil {
			continue
		}
		var ov *model.Override
		if o, ok := snap.Overrides[date]; ok {
			ov = &o
		}
		eff := model.Resolve(svc, ov)

		// Stable per service+date so a regenerated file updates rather
		// than duplicates events on import.
		uid := fmt.Sprintf("%s_%s@dienstplan", serviceID, strings.ReplaceAll(date, "-", ""))
		ev := cal.AddEvent(uid)
		ev.SetDtStampTime(now.UTC())

		_, startOK := timefmt.Parse(eff.Start)
		_, endOK := timefmt.Parse(eff.End)
		if startOK && endOK {
			start, end, err := EventWindow(date, eff.Start, eff.End, loc)
			if err == nil {
				ev.SetStartAt(start)
				ev.SetEndAt(end)
				ev.SetSummary(eff.Name)
			}
		} else {
			day, err := time.Parse("2006-01-02", date)
			if err != nil {
				continue
			}
			ev.SetAllDayStartAt(day)
			ev.SetAllDayEndAt(day.AddDate(0, 0, 1))
			ev.SetSummary(eff.Name + timeRangeSuffix(eff.Start, eff.End))
		}
		ev.SetDescription(eff.Desc)
		ev.SetProperty(ics.ComponentPropertySequence, "0")
		ev.SetStatus(ics.ObjectStatusConfirmed)
		ev.SetTimeTransparency(ics.TransparencyOpaque)
	}
	return cal
}

func writeICSFile(cal *ics.Calendar, dir string, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	name := fmt.Sprintf("dienstplan_%s.ics", now.Format("20060102_1504"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(cal.Serialize()), 0o644); err != nil {
		return "", fmt.Errorf("write ics file: %w", err)
	}
	return path, nil
}

package grid

import (
	"time"

	"github.com/FailDerErste/dienstplan-app/internal/model"
	"github.com/FailDerErste/dienstplan-app/internal/store"
)

// Day is one cell of the month grid.
type Day struct {
	Date      time.Time       `json:"-"`
	ISO       string          `json:"date"`
	DayOfMon  int             `json:"day"`
	InMonth   bool            `json:"in_month"`
	Today     bool            `json:"today"`
	Assigned  bool            `json:"assigned"`
	ServiceID string          `json:"service_id,omitempty"`
	Color     string          `json:"color,omitempty"`
	Effective model.Effective `json:"effective"`
}

// Week is exactly seven day cells, Monday first.
type Week [7]Day

// fallbackColor marks assigned cells whose service no longer exists.
const fallbackColor = "#AEDFF7"

// Month projects year/month onto whole weeks. Leading and trailing cells
// from the neighboring months are included and flagged so every week has
// seven cells. Today is compared by calendar date, not timestamp.
func Month(year int, month time.Month, snap store.Snapshot, today time.Time) []Week {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	daysInMonth := first.AddDate(0, 1, -1).Day()
	// Monday-first offset: number of leading cells from the previous month.
	leading := (int(first.Weekday()) + 6) % 7

	todayISO := today.Format("2006-01-02")

	var weeks []Week
	day := 1 - leading
	for day <= daysInMonth {
		var week Week
		for i := 0; i < 7; i, day = i+1, day+1 {
			date := first.AddDate(0, 0, day-1)
			iso := date.Format("2006-01-02")
			cell := Day{
				Date:     date,
				ISO:      iso,
				DayOfMon: date.Day(),
				InMonth:  day >= 1 && day <= daysInMonth,
				Today:    iso == todayISO,
			}
			if serviceID, ok := snap.Assignments[iso]; ok {
				cell.Assigned = true
				cell.ServiceID = serviceID
				// An orphaned assignment still renders as assigned, with
				// the fallback color and whatever the override provides.
				cell.Color = fallbackColor
				svc := snap.ServiceByID(serviceID)
				if svc != nil {
					cell.Color = svc.Color
				}
				var ov *model.Override
				if o, ok := snap.Overrides[iso]; ok {
					ov = &o
				}
				cell.Effective = model.Resolve(svc, ov)
			}
			week[i] = cell
		}
		weeks = append(weeks, week)
	}
	return weeks
}

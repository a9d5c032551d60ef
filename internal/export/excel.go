package export

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/FailDerErste/dienstplan-app/internal/model"
	"github.com/FailDerErste/dienstplan-app/internal/store"
	"github.com/FailDerErste/dienstplan-app/internal/timefmt"
)

var rosterColumns = []string{"Date", "Weekday", "Shift", "Start", "End", "Note"}

// rosterWriter builds the roster workbook sheet by sheet.
type rosterWriter struct {
	file         *excelize.File
	currentSheet string
	currentRow   int
}

func newRosterWriter() *rosterWriter {
	return &rosterWriter{file: excelize.NewFile()}
}

func (w *rosterWriter) addSheet(name string) error {
	if len(name) > 31 {
		name = name[:31]
	}
	if w.currentSheet == "" {
		// Rename default sheet
		w.file.SetSheetName("Sheet1", name)
	} else {
		if _, err := w.file.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}
	w.currentSheet = name
	w.currentRow = 1
	return nil
}

func (w *rosterWriter) writeHeader(columns []string) error {
	if w.currentSheet == "" {
		return fmt.Errorf("no active sheet")
	}
	for i, col := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, w.currentRow)
		if err != nil {
			return err
		}
		if err := w.file.SetCellValue(w.currentSheet, cell, col); err != nil {
			return err
		}
	}
	style, err := w.file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, w.currentRow)
		endCell, _ := excelize.CoordinatesToCellName(len(columns), w.currentRow)
		_ = w.file.SetCellStyle(w.currentSheet, startCell, endCell, style)
	}
	w.currentRow++
	return nil
}

func (w *rosterWriter) writeRow(row []interface{}) error {
	if w.currentSheet == "" {
		return fmt.Errorf("no active sheet")
	}
	for i, val := range row {
		cell, err := excelize.CoordinatesToCellName(i+1, w.currentRow)
		if err != nil {
			return err
		}
		if err := w.file.SetCellValue(w.currentSheet, cell, val); err != nil {
			return err
		}
	}
	w.currentRow++
	return nil
}

func (w *rosterWriter) saveToFile(path string) error {
	return w.file.SaveAs(path)
}

func (w *rosterWriter) close() error {
	return w.file.Close()
}

// rosterRowValues renders one assigned date using the shared resolution.
func rosterRowValues(date string, eff model.Effective, is24h bool) []interface{} {
	weekday := ""
	if day, err := time.Parse("2006-01-02", date); err == nil {
		weekday = day.Weekday().String()
	}
	return []interface{}{
		date,
		weekday,
		eff.Name,
		timefmt.Display(eff.Start, is24h),
		timefmt.Display(eff.End, is24h),
		eff.Desc,
	}
}

// writeRosterFile writes one sheet per month with every assigned date.
func writeRosterFile(snap store.Snapshot, dir string, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	byMonth := make(map[string][]string)
	for _, date := range snap.SortedDates() {
		if snap.ServiceByID(snap.Assignments[date]) == nil {
			continue
		}
		month := date[:7]
		byMonth[month] = append(byMonth[month], date)
	}
	if len(byMonth) == 0 {
		return "", ErrEmptySchedule
	}

	months := make([]string, 0, len(byMonth))
	for month := range byMonth {
		months = append(months, month)
	}
	sort.Strings(months)

	w := newRosterWriter()
	defer w.close()

	for _, month := range months {
		if err := w.addSheet(month); err != nil {
			return "", err
		}
		if err := w.writeHeader(rosterColumns); err != nil {
			return "", err
		}
		for _, date := range byMonth[month] {
			svc := snap.ServiceByID(snap.Assignments[date])
			var ov *model.Override
			if o, ok := snap.Overrides[date]; ok {
				ov = &o
			}
			eff := model.Resolve(svc, ov)
			if err := w.writeRow(rosterRowValues(date, eff, snap.Is24h)); err != nil {
				return "", err
			}
		}
	}

	name := fmt.Sprintf("dienstplan_%s.xlsx", now.Format("20060102_1504"))
	path := filepath.Join(dir, name)
	if err := w.saveToFile(path); err != nil {
		return "", fmt.Errorf("write roster file: %w", err)
	}
	return path, nil
}

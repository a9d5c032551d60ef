package google

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"

	"github.com/FailDerErste/dienstplan-app/internal/model"
)

func testExporter() *CalendarExporter {
	return &CalendarExporter{cfg: Config{
		Zone:         "Europe/Berlin",
		Location:     time.UTC,
		DefaultStart: "08:00",
		DefaultEnd:   "17:00",
	}}
}

func TestBuildEvent(t *testing.T) {
	e := testExporter()

	event, err := e.buildEvent("2025-03-10", model.Effective{
		Name:  "Früh",
		Desc:  "Station 3",
		Start: "06:00",
		End:   "14:00",
	})
	require.NoError(t, err)

	assert.Equal(t, "Früh", event.Summary)
	assert.Equal(t, "Station 3", event.Description)
	assert.Equal(t, "2025-03-10T06:00:00Z", event.Start.DateTime)
	assert.Equal(t, "2025-03-10T14:00:00Z", event.End.DateTime)
	assert.Equal(t, "Europe/Berlin", event.Start.TimeZone)
	assert.Equal(t, "Europe/Berlin", event.End.TimeZone)
}

func TestBuildEventNightShift(t *testing.T) {
	e := testExporter()

	event, err := e.buildEvent("2025-03-10", model.Effective{Name: "Nacht", Start: "22:00", End: "06:00"})
	require.NoError(t, err)

	assert.Equal(t, "2025-03-10T22:00:00Z", event.Start.DateTime)
	assert.Equal(t, "2025-03-11T06:00:00Z", event.End.DateTime)
}

// A native event needs concrete instants, so unparsable times fall back
// to the configured default range instead of degrading to all-day.
func TestBuildEventDefaultTimes(t *testing.T) {
	e := testExporter()

	event, err := e.buildEvent("2025-03-10", model.Effective{Name: "Rufdienst"})
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10T08:00:00Z", event.Start.DateTime)
	assert.Equal(t, "2025-03-10T17:00:00Z", event.End.DateTime)

	event, err = e.buildEvent("2025-03-10", model.Effective{Name: "Rufdienst", Start: "soon", End: "14:00"})
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10T08:00:00Z", event.Start.DateTime)
	assert.Equal(t, "2025-03-10T14:00:00Z", event.End.DateTime)
}

func TestBuildEventBadDate(t *testing.T) {
	e := testExporter()
	_, err := e.buildEvent("10.03.2025", model.Effective{Name: "Früh", Start: "06:00", End: "14:00"})
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	assert.ErrorIs(t, classify(&googleapi.Error{Code: 401}), ErrPermissionDenied)
	assert.ErrorIs(t, classify(&googleapi.Error{Code: 403}), ErrPermissionDenied)
	assert.ErrorIs(t, classify(&googleapi.Error{Code: 404}), ErrNoWritableCalendar)

	serverErr := &googleapi.Error{Code: 500}
	assert.NotErrorIs(t, classify(serverErr), ErrPermissionDenied)

	plain := errors.New("network down")
	assert.Equal(t, plain, classify(plain))
}

func TestWritable(t *testing.T) {
	assert.True(t, writable(&calendar.CalendarListEntry{AccessRole: "owner"}))
	assert.True(t, writable(&calendar.CalendarListEntry{AccessRole: "writer"}))
	assert.False(t, writable(&calendar.CalendarListEntry{AccessRole: "reader"}))
	assert.False(t, writable(&calendar.CalendarListEntry{AccessRole: "freeBusyReader"}))
}

func TestNewCalendarExporterMissingCredentials(t *testing.T) {
	logger := zerolog.Nop()
	_, err := NewCalendarExporter(context.Background(), Config{
		CredentialsFile: "does/not/exist.json",
		TokenFile:       "does/not/exist.json",
	}, &logger)
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

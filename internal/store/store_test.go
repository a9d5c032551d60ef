package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FailDerErste/dienstplan-app/internal/events"
	"github.com/FailDerErste/dienstplan-app/internal/model"
)

func strPtr(s string) *string { return &s }

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := zerolog.Nop()
	return New(db, events.NewBus(), &logger)
}

func addService(t *testing.T, s *Store, name, start, end string) string {
	t.Helper()
	id, err := s.AddService(model.Service{Name: name, Start: start, End: end})
	require.NoError(t, err)
	return id
}

func TestAddServiceValidation(t *testing.T) {
	s := newTestStore(t)

	_, err := s.AddService(model.Service{Name: "  ", Start: "08:00", End: "16:00"})
	assert.ErrorIs(t, err, ErrNameRequired)

	_, err = s.AddService(model.Service{Name: "Spät", Start: "", End: "22:00"})
	assert.ErrorIs(t, err, ErrTimesRequired)

	id, err := s.AddService(model.Service{Name: "Spät", Start: "14:00", End: "22:00", Color: "abc"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	svc, err := s.ServiceByID(id)
	require.NoError(t, err)
	assert.Equal(t, "#AABBCC", svc.Color)

	s.Wait()
}

func TestUpdateService(t *testing.T) {
	s := newTestStore(t)
	id := addService(t, s, "Früh", "06:00", "14:00")

	err := s.UpdateService("missing", ServicePatch{Name: strPtr("x")})
	assert.ErrorIs(t, err, ErrServiceNotFound)

	err = s.UpdateService(id, ServicePatch{Name: strPtr("  ")})
	assert.ErrorIs(t, err, ErrNameRequired)

	require.NoError(t, s.UpdateService(id, ServicePatch{
		Start: strPtr("07:00"),
		Color: strPtr("invalid"),
	}))

	svc, err := s.ServiceByID(id)
	require.NoError(t, err)
	assert.Equal(t, "Früh", svc.Name)
	assert.Equal(t, "07:00", svc.Start)
	assert.Equal(t, "14:00", svc.End)
	assert.Equal(t, model.DefaultColor, svc.Color)

	s.Wait()
}

// Removing a service drops its assignments but the per-date overrides
// stay: they may carry manual adjustments worth keeping for a future
// assignment on the same date.
func TestRemoveServiceCascade(t *testing.T) {
	s := newTestStore(t)
	early := addService(t, s, "Früh", "06:00", "14:00")
	late := addService(t, s, "Spät", "14:00", "22:00")

	require.NoError(t, s.AssignDay("2025-03-10", early))
	require.NoError(t, s.AssignDay("2025-03-11", early))
	require.NoError(t, s.AssignDay("2025-03-12", late))
	require.NoError(t, s.SetDayOverride("2025-03-10", model.Override{Name: strPtr("Vertretung")}))

	require.NoError(t, s.RemoveService(early))

	snap := s.Snapshot()
	assert.Len(t, snap.Services, 1)
	assert.Equal(t, map[string]string{"2025-03-12": late}, snap.Assignments)
	assert.Contains(t, snap.Overrides, "2025-03-10")

	assert.ErrorIs(t, s.RemoveService(early), ErrServiceNotFound)

	s.Wait()
}

func TestAssignDay(t *testing.T) {
	s := newTestStore(t)
	id := addService(t, s, "Früh", "06:00", "14:00")

	assert.ErrorIs(t, s.AssignDay("10.03.2025", id), ErrInvalidDate)
	assert.ErrorIs(t, s.AssignDay("2025-03-10", "ghost"), ErrServiceNotFound)

	require.NoError(t, s.AssignDay("2025-03-10", id))
	assert.Equal(t, id, s.Snapshot().Assignments["2025-03-10"])

	// Reassigning the same date replaces silently.
	other := addService(t, s, "Spät", "14:00", "22:00")
	require.NoError(t, s.AssignDay("2025-03-10", other))
	assert.Equal(t, other, s.Snapshot().Assignments["2025-03-10"])

	// Unassign is idempotent.
	s.UnassignDay("2025-03-10")
	s.UnassignDay("2025-03-10")
	assert.Empty(t, s.Snapshot().Assignments)

	s.Wait()
}

func TestSetDayOverrideMerges(t *testing.T) {
	s := newTestStore(t)

	assert.ErrorIs(t, s.SetDayOverride("not-a-date", model.Override{}), ErrInvalidDate)

	require.NoError(t, s.SetDayOverride("2025-03-10", model.Override{Name: strPtr("A"), Start: strPtr("08:00")}))
	require.NoError(t, s.SetDayOverride("2025-03-10", model.Override{Start: strPtr("09:00")}))

	ov := s.Snapshot().Overrides["2025-03-10"]
	assert.Equal(t, "A", *ov.Name)
	assert.Equal(t, "09:00", *ov.Start)
	assert.Nil(t, ov.End)

	s.RemoveDayOverride("2025-03-10")
	s.RemoveDayOverride("2025-03-10")
	assert.Empty(t, s.Snapshot().Overrides)

	s.Wait()
}

func TestClearAssignments(t *testing.T) {
	s := newTestStore(t)
	id := addService(t, s, "Früh", "06:00", "14:00")
	require.NoError(t, s.AssignDay("2025-03-10", id))
	require.NoError(t, s.SetDayOverride("2025-03-10", model.Override{Name: strPtr("X")}))

	s.ClearAssignments()

	snap := s.Snapshot()
	assert.Empty(t, snap.Assignments)
	assert.Len(t, snap.Services, 1)
	assert.Contains(t, snap.Overrides, "2025-03-10")

	s.Wait()
}

func TestValidateAll(t *testing.T) {
	s := newTestStore(t)
	id := addService(t, s, "Früh", "06:00", "14:00")
	require.NoError(t, s.AssignDay("2025-03-10", id))

	assert.Empty(t, s.ValidateAll())

	require.NoError(t, s.RemoveService(id))
	// Re-create the orphan by hand: assignment to a gone service.
	other := addService(t, s, "Spät", "14:00", "22:00")
	require.NoError(t, s.AssignDay("2025-03-10", other))
	require.NoError(t, s.AssignDay("2025-03-11", other))
	require.NoError(t, s.RemoveService(other))
	ghost := addService(t, s, "Nacht", "22:00", "06:00")
	require.NoError(t, s.AssignDay("2025-03-12", ghost))
	s.mu.Lock()
	s.assignments["2025-03-13"] = "ghost-id"
	s.mu.Unlock()

	issues := s.ValidateAll()
	require.Len(t, issues, 1)
	assert.Equal(t, "Orphaned assignment on 2025-03-13: service ghost-id not found", issues[0])

	s.Wait()
}

func TestValidateAllTimeFormats(t *testing.T) {
	s := newTestStore(t)
	_ = addService(t, s, "Früh", "6:00", "14:00")
	require.NoError(t, s.SetDayOverride("2025-03-10", model.Override{Start: strPtr("25:00"), End: strPtr("")}))

	issues := s.ValidateAll()
	require.Len(t, issues, 2)
	assert.Equal(t, `Invalid start time for service "Früh": 6:00`, issues[0])
	assert.Equal(t, "Invalid override start time on 2025-03-10: 25:00", issues[1])

	s.Wait()
}

func TestPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roundtrip.db")
	db, err := Open(path)
	require.NoError(t, err)

	logger := zerolog.Nop()
	s := New(db, events.NewBus(), &logger)

	id := addService(t, s, "Früh", "06:00", "14:00")
	require.NoError(t, s.AssignDay("2025-03-10", id))
	require.NoError(t, s.SetDayOverride("2025-03-10", model.Override{Desc: strPtr(""), Start: strPtr("07:00")}))
	s.SetIs24h(false)
	s.Wait()
	require.NoError(t, db.Close())

	db2, err := Open(path)
	require.NoError(t, err)
	defer db2.Close()

	s2 := New(db2, events.NewBus(), &logger)
	s2.Load(context.Background())

	snap := s2.Snapshot()
	require.Len(t, snap.Services, 1)
	assert.Equal(t, id, snap.Services[0].ID)
	assert.Equal(t, "Früh", snap.Services[0].Name)
	assert.Equal(t, id, snap.Assignments["2025-03-10"])
	assert.False(t, snap.Is24h)

	// A present empty string survives storage as present, not absent.
	ov := snap.Overrides["2025-03-10"]
	require.NotNil(t, ov.Desc)
	assert.Equal(t, "", *ov.Desc)
	assert.Equal(t, "07:00", *ov.Start)
	assert.Nil(t, ov.Name)
}

func TestInMemoryStoreWithoutDB(t *testing.T) {
	logger := zerolog.Nop()
	s := New(nil, events.NewBus(), &logger)
	s.Load(context.Background())

	assert.True(t, s.Is24h())
	id, err := s.AddService(model.Service{Name: "Früh", Start: "06:00", End: "14:00"})
	require.NoError(t, err)
	require.NoError(t, s.AssignDay("2025-03-10", id))
	s.Wait()
}

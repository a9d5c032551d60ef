package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/FailDerErste/dienstplan-app/internal/events"
	"github.com/FailDerErste/dienstplan-app/internal/metrics"
	"github.com/FailDerErste/dienstplan-app/internal/model"
	"github.com/FailDerErste/dienstplan-app/internal/timefmt"
)

var (
	ErrServiceNotFound = errors.New("service not found")
	ErrNameRequired    = errors.New("service name is required")
	ErrTimesRequired   = errors.New("service start and end times are required")
	ErrInvalidDate     = errors.New("invalid date; expected YYYY-MM-DD")
)

const persistTimeout = 5 * time.Second

// ServicePatch updates individual service fields; nil fields are left as is.
type ServicePatch struct {
	Name  *string `json:"name,omitempty"`
	Desc  *string `json:"desc,omitempty"`
	Start *string `json:"start,omitempty"`
	End   *string `json:"end,omitempty"`
	Color *string `json:"color,omitempty"`
}

// Snapshot is a read-only copy of the schedule state handed to projectors
// and exporters. Holders never mutate it.
type Snapshot struct {
	Services    []model.Service
	Assignments map[string]string
	Overrides   map[string]model.Override
	Is24h       bool
}

// ServiceByID finds a service in the snapshot, nil when absent.
func (s Snapshot) ServiceByID(id string) *model.Service {
	for i := range s.Services {
		if s.Services[i].ID == id {
			return &s.Services[i]
		}
	}
	return nil
}

// SortedDates returns the assigned dates in ascending ISO order.
func (s Snapshot) SortedDates() []string {
	dates := make([]string, 0, len(s.Assignments))
	for date := range s.Assignments {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates
}

// Store owns the services list, the per-date assignment and override maps
// and the display preference. Mutations apply in memory first and persist
// asynchronously; the in-memory state is the source of truth for the
// running session.
type Store struct {
	mu     sync.RWMutex
	db     *DB
	bus    *events.Bus
	logger *zerolog.Logger

	services    []model.Service
	assignments map[string]string
	overrides   map[string]model.Override
	is24h       bool

	persistWG sync.WaitGroup
}

// New creates a store backed by db. db may be nil for a purely in-memory
// store (tests).
func New(db *DB, bus *events.Bus, logger *zerolog.Logger) *Store {
	return &Store{
		db:          db,
		bus:         bus,
		logger:      logger,
		assignments: make(map[string]string),
		overrides:   make(map[string]model.Override),
		is24h:       true,
	}
}

// Load reads all four records from storage. Failures are logged and the
// affected record falls back to its default; Load never fails the caller.
func (s *Store) Load(ctx context.Context) {
	if s.db == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if services, err := s.db.LoadServices(ctx); err != nil {
		s.logger.Error().Err(err).Msg("load services failed, starting empty")
	} else {
		for i := range services {
			services[i].Color = model.SanitizeColor(services[i].Color)
		}
		s.services = services
	}

	if assignments, err := s.db.LoadAssignments(ctx); err != nil {
		s.logger.Error().Err(err).Msg("load assignments failed, starting empty")
	} else {
		s.assignments = assignments
	}

	if overrides, err := s.db.LoadOverrides(ctx); err != nil {
		s.logger.Error().Err(err).Msg("load overrides failed, starting empty")
	} else {
		s.overrides = overrides
	}

	if format, err := s.db.LoadTimeFormat(ctx); err != nil {
		s.logger.Error().Err(err).Msg("load time format failed, defaulting to 24h")
	} else if format != "" {
		s.is24h = format == "24"
	}
}

// AddService validates, assigns a fresh id and appends the service.
func (s *Store) AddService(svc model.Service) (string, error) {
	if strings.TrimSpace(svc.Name) == "" {
		return "", ErrNameRequired
	}
	if strings.TrimSpace(svc.Start) == "" || strings.TrimSpace(svc.End) == "" {
		return "", ErrTimesRequired
	}

	svc.ID = uuid.NewString()
	svc.Color = model.SanitizeColor(svc.Color)

	s.mu.Lock()
	s.services = append(s.services, svc)
	services := s.copyServices()
	s.mu.Unlock()

	s.persist("services", func(ctx context.Context) error {
		return s.db.ReplaceServices(ctx, services)
	})
	s.publish(events.Event{Type: events.TypeServiceAdded, ServiceID: svc.ID})
	metrics.IncStoreMutation("add_service")
	return svc.ID, nil
}

// UpdateService merges patch into an existing service.
func (s *Store) UpdateService(id string, patch ServicePatch) error {
	s.mu.Lock()
	idx := -1
	for i := range s.services {
		if s.services[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return ErrServiceNotFound
	}
	svc := &s.services[idx]
	if patch.Name != nil {
		if strings.TrimSpace(*patch.Name) == "" {
			s.mu.Unlock()
			return ErrNameRequired
		}
		svc.Name = *patch.Name
	}
	if patch.Desc != nil {
		svc.Desc = *patch.Desc
	}
	if patch.Start != nil {
		svc.Start = *patch.Start
	}
	if patch.End != nil {
		svc.End = *patch.End
	}
	if patch.Color != nil {
		svc.Color = model.SanitizeColor(*patch.Color)
	}
	services := s.copyServices()
	s.mu.Unlock()

	s.persist("services", func(ctx context.Context) error {
		return s.db.ReplaceServices(ctx, services)
	})
	s.publish(events.Event{Type: events.TypeServiceUpdated, ServiceID: id})
	metrics.IncStoreMutation("update_service")
	return nil
}

// RemoveService deletes the service and every assignment referencing it.
// Overrides for those dates are deliberately left in place.
func (s *Store) RemoveService(id string) error {
	s.mu.Lock()
	idx := -1
	for i := range s.services {
		if s.services[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return ErrServiceNotFound
	}
	s.services = append(s.services[:idx], s.services[idx+1:]...)
	for date, serviceID := range s.assignments {
		if serviceID == id {
			delete(s.assignments, date)
		}
	}
	services := s.copyServices()
	assignments := s.copyAssignments()
	s.mu.Unlock()

	s.persist("services", func(ctx context.Context) error {
		return s.db.ReplaceServices(ctx, services)
	})
	s.persist("assignments", func(ctx context.Context) error {
		return s.db.ReplaceAssignments(ctx, assignments)
	})
	s.publish(events.Event{Type: events.TypeServiceRemoved, ServiceID: id})
	metrics.IncStoreMutation("remove_service")
	return nil
}

// AssignDay binds a date to a service, replacing any prior assignment.
func (s *Store) AssignDay(date, serviceID string) error {
	if !isISODate(date) {
		return ErrInvalidDate
	}

	s.mu.Lock()
	if s.findService(serviceID) == nil {
		s.mu.Unlock()
		return ErrServiceNotFound
	}
	s.assignments[date] = serviceID
	assignments := s.copyAssignments()
	s.mu.Unlock()

	s.persist("assignments", func(ctx context.Context) error {
		return s.db.ReplaceAssignments(ctx, assignments)
	})
	s.publish(events.Event{Type: events.TypeDayAssigned, Date: date, ServiceID: serviceID})
	metrics.IncStoreMutation("assign_day")
	return nil
}

// UnassignDay removes the assignment for a date. Idempotent.
func (s *Store) UnassignDay(date string) {
	s.mu.Lock()
	_, existed := s.assignments[date]
	delete(s.assignments, date)
	assignments := s.copyAssignments()
	s.mu.Unlock()

	if !existed {
		return
	}
	s.persist("assignments", func(ctx context.Context) error {
		return s.db.ReplaceAssignments(ctx, assignments)
	})
	s.publish(events.Event{Type: events.TypeDayUnassigned, Date: date})
	metrics.IncStoreMutation("unassign_day")
}

// SetDayOverride merges patch into the override for date, creating one if
// absent. The merge is shallow and field-level, not a replace.
func (s *Store) SetDayOverride(date string, patch model.Override) error {
	if !isISODate(date) {
		return ErrInvalidDate
	}

	s.mu.Lock()
	s.overrides[date] = s.overrides[date].Merge(patch)
	overrides := s.copyOverrides()
	s.mu.Unlock()

	s.persist("overrides", func(ctx context.Context) error {
		return s.db.ReplaceOverrides(ctx, overrides)
	})
	s.publish(events.Event{Type: events.TypeOverrideSet, Date: date})
	metrics.IncStoreMutation("set_override")
	return nil
}

// RemoveDayOverride deletes the override for a date. Idempotent.
func (s *Store) RemoveDayOverride(date string) {
	s.mu.Lock()
	_, existed := s.overrides[date]
	delete(s.overrides, date)
	overrides := s.copyOverrides()
	s.mu.Unlock()

	if !existed {
		return
	}
	s.persist("overrides", func(ctx context.Context) error {
		return s.db.ReplaceOverrides(ctx, overrides)
	})
	s.publish(events.Event{Type: events.TypeOverrideRemoved, Date: date})
	metrics.IncStoreMutation("remove_override")
}

// ClearAssignments removes every assignment. Services and overrides stay.
func (s *Store) ClearAssignments() {
	s.mu.Lock()
	s.assignments = make(map[string]string)
	s.mu.Unlock()

	s.persist("assignments", func(ctx context.Context) error {
		return s.db.ReplaceAssignments(ctx, map[string]string{})
	})
	s.publish(events.Event{Type: events.TypeAssignmentsCleared})
	metrics.IncStoreMutation("clear_assignments")
}

// SetIs24h switches the global display preference. Stored canonical time
// strings are not touched.
func (s *Store) SetIs24h(is24h bool) {
	s.mu.Lock()
	s.is24h = is24h
	s.mu.Unlock()

	format := "12"
	if is24h {
		format = "24"
	}
	s.persist("preferences", func(ctx context.Context) error {
		return s.db.SaveTimeFormat(ctx, format)
	})
	s.publish(events.Event{Type: events.TypeTimeFormatChanged, Detail: format})
	metrics.IncStoreMutation("set_time_format")
}

// Is24h returns the current display preference.
func (s *Store) Is24h() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.is24h
}

// ServiceByID returns a copy of the service, or ErrServiceNotFound.
func (s *Store) ServiceByID(id string) (model.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if svc := s.findService(id); svc != nil {
		return *svc, nil
	}
	return model.Service{}, ErrServiceNotFound
}

// Snapshot returns a consistent copy of the full schedule state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Services:    s.copyServices(),
		Assignments: s.copyAssignments(),
		Overrides:   s.copyOverrides(),
		Is24h:       s.is24h,
	}
}

// ValidateAll scans for orphaned assignments and malformed time strings.
// It returns human-readable issue descriptions and never mutates state.
func (s *Store) ValidateAll() []string {
	snap := s.Snapshot()

	var issues []string
	for _, date := range snap.SortedDates() {
		serviceID := snap.Assignments[date]
		if snap.ServiceByID(serviceID) == nil {
			issues = append(issues, fmt.Sprintf("Orphaned assignment on %s: service %s not found", date, serviceID))
		}
	}
	for _, svc := range snap.Services {
		if svc.Start != "" && !timefmt.IsCanonical(svc.Start) {
			issues = append(issues, fmt.Sprintf("Invalid start time for service %q: %s", svc.Name, svc.Start))
		}
		if svc.End != "" && !timefmt.IsCanonical(svc.End) {
			issues = append(issues, fmt.Sprintf("Invalid end time for service %q: %s", svc.Name, svc.End))
		}
	}
	dates := make([]string, 0, len(snap.Overrides))
	for date := range snap.Overrides {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	for _, date := range dates {
		ov := snap.Overrides[date]
		if ov.Start != nil && *ov.Start != "" && !timefmt.IsCanonical(*ov.Start) {
			issues = append(issues, fmt.Sprintf("Invalid override start time on %s: %s", date, *ov.Start))
		}
		if ov.End != nil && *ov.End != "" && !timefmt.IsCanonical(*ov.End) {
			issues = append(issues, fmt.Sprintf("Invalid override end time on %s: %s", date, *ov.End))
		}
	}
	return issues
}

// Wait blocks until all in-flight persistence writes have finished.
// Used on shutdown and by tests.
func (s *Store) Wait() {
	s.persistWG.Wait()
}

func (s *Store) findService(id string) *model.Service {
	for i := range s.services {
		if s.services[i].ID == id {
			return &s.services[i]
		}
	}
	return nil
}

func (s *Store) copyServices() []model.Service {
	return append([]model.Service(nil), s.services...)
}

func (s *Store) copyAssignments() map[string]string {
	out := make(map[string]string, len(s.assignments))
	for k, v := range s.assignments {
		out[k] = v
	}
	return out
}

func (s *Store) copyOverrides() map[string]model.Override {
	out := make(map[string]model.Override, len(s.overrides))
	for k, v := range s.overrides {
		out[k] = v
	}
	return out
}

// persist fires a storage write in the background. Write failures are
// logged only; the in-memory state stays authoritative for the session.
func (s *Store) persist(record string, write func(ctx context.Context) error) {
	if s.db == nil {
		return
	}
	s.persistWG.Add(1)
	go func() {
		defer s.persistWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := write(ctx); err != nil {
			s.logger.Error().Err(err).Str("record", record).Msg("persist failed")
		}
	}()
}

func (s *Store) publish(event events.Event) {
	if s.bus != nil {
		s.bus.Publish(event)
	}
}

func isISODate(date string) bool {
	_, err := time.Parse("2006-01-02", date)
	return err == nil
}

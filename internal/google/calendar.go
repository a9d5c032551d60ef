package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	oauthgoogle "golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/FailDerErste/dienstplan-app/internal/export"
	"github.com/FailDerErste/dienstplan-app/internal/model"
	"github.com/FailDerErste/dienstplan-app/internal/store"
	"github.com/FailDerErste/dienstplan-app/internal/timefmt"
)

var (
	// ErrPermissionDenied means the calendar access grant is missing,
	// expired or rejected.
	ErrPermissionDenied = errors.New("calendar permission denied")

	// ErrNoWritableCalendar means the account has no calendar that
	// accepts event creation.
	ErrNoWritableCalendar = errors.New("no writable calendar found")
)

// Config holds the native calendar export settings.
type Config struct {
	CredentialsFile  string
	TokenFile        string
	CalendarID       string // empty selects the first writable calendar
	Zone             string // IANA zone label attached to created events
	Location         *time.Location
	DefaultStart     string // used when a shift has no resolvable start
	DefaultEnd       string
	InsertsPerSecond float64
}

// CalendarExporter creates one Google Calendar event per assigned date.
type CalendarExporter struct {
	svc     *calendar.Service
	cfg     Config
	limiter *rate.Limiter
	logger  *zerolog.Logger
}

// NewCalendarExporter builds an authorized exporter. A missing or
// unreadable credential/token maps to ErrPermissionDenied: the grant
// precondition of the export is not met.
func NewCalendarExporter(ctx context.Context, cfg Config, logger *zerolog.Logger) (*CalendarExporter, error) {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.InsertsPerSecond <= 0 {
		cfg.InsertsPerSecond = 5
	}

	credentials, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("%w: read credentials: %v", ErrPermissionDenied, err)
	}
	oauthCfg, err := oauthgoogle.ConfigFromJSON(credentials, calendar.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("%w: parse credentials: %v", ErrPermissionDenied, err)
	}
	token, err := tokenFromFile(cfg.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("%w: read token: %v", ErrPermissionDenied, err)
	}

	client := oauthCfg.Client(ctx, token)
	svc, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}

	return &CalendarExporter{
		svc:     svc,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.InsertsPerSecond), 1),
		logger:  logger,
	}, nil
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	token := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(token); err != nil {
		return nil, err
	}
	return token, nil
}

// Insert creates one event per assigned date and returns the count.
// Assignments whose service vanished are skipped, matching the file
// export path.
func (e *CalendarExporter) Insert(ctx context.Context, snap store.Snapshot) (int, error) {
	calendarID, err := e.pickCalendar(ctx)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, date := range snap.SortedDates() {
		svc := snap.ServiceByID(snap.Assignments[date])
		if svc == nil {
			continue
		}
		var ov *model.Override
		if o, ok := snap.Overrides[date]; ok {
			ov = &o
		}
		eff := model.Resolve(svc, ov)

		event, err := e.buildEvent(date, eff)
		if err != nil {
			return created, fmt.Errorf("build event for %s: %w", date, err)
		}

		if err := e.limiter.Wait(ctx); err != nil {
			return created, err
		}
		if _, err := e.svc.Events.Insert(calendarID, event).Context(ctx).Do(); err != nil {
			return created, classify(err)
		}
		created++
	}

	e.logger.Info().Int("events", created).Str("calendar", calendarID).Msg("native calendar export done")
	return created, nil
}

// pickCalendar returns the configured calendar or the first writable one.
func (e *CalendarExporter) pickCalendar(ctx context.Context) (string, error) {
	if e.cfg.CalendarID != "" {
		return e.cfg.CalendarID, nil
	}

	list, err := e.svc.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return "", classify(err)
	}

	for _, entry := range list.Items {
		if entry.Primary && writable(entry) {
			return entry.Id, nil
		}
	}
	for _, entry := range list.Items {
		if writable(entry) {
			return entry.Id, nil
		}
	}
	return "", ErrNoWritableCalendar
}

func writable(entry *calendar.CalendarListEntry) bool {
	return entry.AccessRole == "owner" || entry.AccessRole == "writer"
}

// buildEvent maps resolved fields onto a calendar event. A native event
// needs concrete instants, so missing or malformed times fall back to the
// configured default range; the midnight rollover rule is shared with the
// file export.
func (e *CalendarExporter) buildEvent(date string, eff model.Effective) (*calendar.Event, error) {
	startStr := eff.Start
	if _, ok := timefmt.Parse(startStr); !ok {
		startStr = e.cfg.DefaultStart
	}
	endStr := eff.End
	if _, ok := timefmt.Parse(endStr); !ok {
		endStr = e.cfg.DefaultEnd
	}

	start, end, err := export.EventWindow(date, startStr, endStr, e.cfg.Location)
	if err != nil {
		return nil, err
	}

	return &calendar.Event{
		Summary:     eff.Name,
		Description: eff.Desc,
		Start: &calendar.EventDateTime{
			DateTime: start.Format(time.RFC3339),
			TimeZone: e.cfg.Zone,
		},
		End: &calendar.EventDateTime{
			DateTime: end.Format(time.RFC3339),
			TimeZone: e.cfg.Zone,
		},
	}, nil
}

func classify(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 401, 403:
			return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		case 404:
			return fmt.Errorf("%w: %v", ErrNoWritableCalendar, err)
		}
	}
	return err
}

package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/agristock/agristock/internal/platform/db"
)

// Fallback reasons reported to the FallbackObserver.
const (
	reasonMissingTable = "missing_table"
	reasonError        = "error"
	reasonEmpty        = "empty"
)

// FallbackObserver is notified whenever placeholder content replaces real data.
type FallbackObserver interface {
	ObserveFallback(component, reason string)
}

// Service builds the activity feed and counters. It never returns errors:
// every read failure is absorbed into SampleActivity or zero counters.
type Service struct {
	repo     Repository
	logger   *slog.Logger
	observer FallbackObserver
	now      func() time.Time
}

// NewService wires the repository with logging and fallback metrics. logger and
// observer may be nil.
func NewService(repo Repository, logger *slog.Logger, observer FallbackObserver) *Service {
	return &Service{
		repo:     repo,
		logger:   logger,
		observer: observer,
		now:      time.Now,
	}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// RecentActivity returns up to ActivityLimit entries, most recent first, or
// SampleActivity when the log is missing, empty or unreadable.
func (s *Service) RecentActivity(ctx context.Context) []ActivityEntry {
	entries, _ := s.recentActivity(ctx)
	return entries
}

func (s *Service) recentActivity(ctx context.Context) ([]ActivityEntry, bool) {
	if s.repo == nil {
		s.fallback("activity", reasonError, errors.New("repository missing"))
		return SampleActivity(), true
	}
	records, err := s.repo.RecentActivity(ctx, ActivityLimit)
	if err != nil {
		if db.IsUndefinedTable(err) {
			s.fallback("activity", reasonMissingTable, err)
		} else {
			s.fallback("activity", reasonError, err)
		}
		return SampleActivity(), true
	}
	if len(records) == 0 {
		s.fallback("activity", reasonEmpty, nil)
		return SampleActivity(), true
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].EventTime.After(records[j].EventTime)
	})
	if len(records) > ActivityLimit {
		records = records[:ActivityLimit]
	}

	now := s.now()
	entries := make([]ActivityEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, ActivityEntry{
			Actor:  actorName(rec.Username),
			Action: describeEvent(rec.EventType, rec.EntityID),
			When:   relativeTime(rec.EventTime, now),
		})
	}
	return entries, false
}

// Counters returns the four analytics counters, or all zeros on any failure.
func (s *Service) Counters(ctx context.Context) Counters {
	counters, _ := s.counters(ctx)
	return counters
}

func (s *Service) counters(ctx context.Context) (Counters, bool) {
	if s.repo == nil {
		s.fallback("counters", reasonError, errors.New("repository missing"))
		return Counters{}, false
	}
	c, err := s.repo.Counters(ctx, WindowFor(s.now()))
	switch {
	case errors.Is(err, ErrNoCounters):
		s.fallback("counters", reasonEmpty, nil)
		return Counters{}, false
	case db.IsUndefinedTable(err):
		s.fallback("counters", reasonMissingTable, err)
		return Counters{}, false
	case err != nil:
		s.fallback("counters", reasonError, err)
		return Counters{}, false
	}
	if c.Batches < 0 || c.Warehouses < 0 || c.HarvestsThisYear < 0 || c.OrdersThisMonth < 0 {
		s.fallback("counters", reasonError, errors.New("negative counter"))
		return Counters{}, false
	}
	return c, true
}

// Shell reads the feed and then the counters, sequentially.
func (s *Service) Shell(ctx context.Context) Shell {
	activity, sample := s.recentActivity(ctx)
	counters, ok := s.counters(ctx)
	return Shell{
		Activity:      activity,
		SampleFeed:    sample,
		Counters:      counters,
		CountersValid: ok,
	}
}

// ShellData adapts Shell to the view engine's shell source.
func (s *Service) ShellData(ctx context.Context) any {
	return s.Shell(ctx)
}

func (s *Service) fallback(component, reason string, err error) {
	if s.observer != nil {
		s.observer.ObserveFallback(component, reason)
	}
	if s.logger == nil {
		return
	}
	switch reason {
	case reasonError:
		s.logger.Warn("dashboard fallback", slog.String("component", component), slog.Any("error", err))
	case reasonMissingTable:
		s.logger.Info("dashboard fallback", slog.String("component", component), slog.String("reason", reason))
	default:
		s.logger.Debug("dashboard fallback", slog.String("component", component), slog.String("reason", reason))
	}
}

// describeEvent turns "batch_created" + "42" into "Batch Created #42".
// Casers are stateful, so one is built per call.
func describeEvent(eventType, entityID string) string {
	words := strings.Fields(strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(eventType))
	text := "Activity"
	if len(words) > 0 {
		text = cases.Title(language.English).String(strings.Join(words, " "))
	}
	if entityID = strings.TrimSpace(entityID); entityID != "" {
		text += " #" + entityID
	}
	return text
}

func actorName(username string) string {
	if name := strings.TrimSpace(username); name != "" {
		return name
	}
	return "System"
}

func relativeTime(at, now time.Time) string {
	if at.IsZero() {
		return ""
	}
	if d := now.Sub(at); d >= 0 && d < time.Minute {
		return "just now"
	}
	return humanize.RelTime(at, now, "ago", "from now")
}

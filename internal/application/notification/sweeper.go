// Package notification runs the weather report sweep over all subscribers.
package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/weather-notify/internal/domain"
	"github.com/weather-notify/internal/infrastructure/smtp"
	"github.com/weather-notify/internal/observability"
	"github.com/weather-notify/internal/pkg/id"
)

const dateLayout = "2006-01-02"

// ErrSweepInProgress is returned when a sweep is requested while one is running.
var ErrSweepInProgress = errors.New("sweep already in progress")

type subscriberStore interface {
	Scan(ctx context.Context) ([]domain.Subscriber, error)
	Update(ctx context.Context, email string, updates map[string]interface{}) error
	AppendSnapshot(ctx context.Context, email string, snap domain.WeatherSnapshot) error
}

type weatherProvider interface {
	Current(ctx context.Context, location string) (domain.Conditions, error)
}

type reportArchive interface {
	PutJSON(ctx context.Context, key string, v any) error
}

type summaryPublisher interface {
	Publish(ctx context.Context, subject, message string) error
}

// Sweeper emails a weather report to every verified subscriber. Records are
// processed one at a time; a failure for one record is logged and counted and
// the sweep moves on. Failed records are not retried within the sweep.
type Sweeper struct {
	store           subscriberStore
	weather         weatherProvider
	mailer          smtp.Mailer
	archive         reportArchive
	publisher       summaryPublisher
	clock           clockwork.Clock
	logger          *slog.Logger
	metrics         *observability.Metrics
	minInterval     time.Duration
	recordSnapshots bool

	running atomic.Bool
}

type SweeperDeps struct {
	Store   subscriberStore
	Weather weatherProvider
	Mailer  smtp.Mailer
	// Archive and Publisher are optional.
	Archive   reportArchive
	Publisher summaryPublisher
	Clock     clockwork.Clock
	Logger    *slog.Logger
	Metrics   *observability.Metrics
	// MinInterval skips subscribers notified more recently than this. Zero disables.
	MinInterval     time.Duration
	RecordSnapshots bool
}

func NewSweeper(deps SweeperDeps) *Sweeper {
	s := &Sweeper{
		store:           deps.Store,
		weather:         deps.Weather,
		mailer:          deps.Mailer,
		archive:         deps.Archive,
		publisher:       deps.Publisher,
		clock:           deps.Clock,
		logger:          deps.Logger,
		metrics:         deps.Metrics,
		minInterval:     deps.MinInterval,
		recordSnapshots: deps.RecordSnapshots,
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Running reports whether a sweep is currently in flight.
func (s *Sweeper) Running() bool {
	return s.running.Load()
}

// Sweep runs one full pass. It returns ErrSweepInProgress without doing any
// work if another sweep has not finished. A cancelled ctx stops the pass
// between records and the partial report is returned with ctx.Err().
func (s *Sweeper) Sweep(ctx context.Context) (*Report, error) {
	if !s.running.CompareAndSwap(false, true) {
		s.metrics.SweepRuns.WithLabelValues("overlap").Inc()
		return nil, ErrSweepInProgress
	}
	defer s.running.Store(false)

	started := s.clock.Now().UTC()
	report := &Report{RunID: id.NewAt(started), StartedAt: started, Results: []Result{}}
	log := s.logger.With("run_id", report.RunID)

	subs, err := s.store.Scan(ctx)
	if err != nil {
		s.metrics.SweepRuns.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("load subscribers: %w", err)
	}
	log.Info("sweep started", "subscribers", len(subs))

	var runErr error
	for i := range subs {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		res := s.notify(ctx, log, &subs[i])
		report.add(res)
		s.metrics.SweepEmails.WithLabelValues(string(res.Outcome)).Inc()
	}

	report.FinishedAt = s.clock.Now().UTC()
	s.metrics.SweepDuration.Observe(report.Duration().Seconds())
	if runErr != nil {
		s.metrics.SweepRuns.WithLabelValues("cancelled").Inc()
		log.Warn("sweep cancelled", "processed", len(report.Results), "err", runErr)
		return report, runErr
	}
	s.metrics.SweepRuns.WithLabelValues("completed").Inc()
	log.Info("sweep finished", "sent", report.Sent, "skipped", report.Skipped, "failed", report.Failed,
		"duration", report.Duration())

	s.publish(ctx, log, report)
	return report, nil
}

func (s *Sweeper) notify(ctx context.Context, log *slog.Logger, sub *domain.Subscriber) Result {
	res := Result{Email: sub.Email, Location: sub.Location}
	if !sub.Verified {
		log.Debug("skipping unverified subscriber", "email", sub.Email)
		res.Outcome, res.Reason = OutcomeSkipped, "unverified"
		return res
	}
	now := s.clock.Now().UTC()
	if s.minInterval > 0 && sub.LastNotifiedAt != nil && now.Sub(*sub.LastNotifiedAt) < s.minInterval {
		log.Debug("skipping recently notified subscriber", "email", sub.Email, "last_notified_at", *sub.LastNotifiedAt)
		res.Outcome, res.Reason = OutcomeSkipped, "recently notified"
		return res
	}

	cond, err := s.weather.Current(ctx, sub.Location)
	if err != nil {
		log.Error("weather lookup failed", "email", sub.Email, "location", sub.Location, "err", err)
		res.Outcome, res.Reason = OutcomeFailed, err.Error()
		return res
	}
	text := FormatReport(sub.Location, cond)
	if err := s.mailer.SendEmail(sub.Email, "Weather Report for "+sub.Location, text); err != nil {
		log.Error("weather email failed", "email", sub.Email, "err", err)
		res.Outcome, res.Reason = OutcomeFailed, err.Error()
		return res
	}
	res.Outcome = OutcomeSent

	// Bookkeeping after delivery; a failure here does not undo the send.
	if err := s.store.Update(ctx, sub.Email, map[string]interface{}{domain.FieldLastNotifiedAt: now}); err != nil {
		log.Warn("failed to record last notification", "email", sub.Email, "err", err)
	}
	if s.recordSnapshots {
		snap := domain.WeatherSnapshot{Date: now.Format(dateLayout), Weather: text}
		if err := s.store.AppendSnapshot(ctx, sub.Email, snap); err != nil {
			log.Warn("failed to record weather snapshot", "email", sub.Email, "err", err)
		}
	}
	return res
}

func (s *Sweeper) publish(ctx context.Context, log *slog.Logger, report *Report) {
	if s.archive != nil {
		if err := s.archive.PutJSON(ctx, report.ArchiveKey(), report); err != nil {
			log.Warn("failed to archive sweep report", "err", err)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, "Weather sweep report", report.Summary()); err != nil {
			log.Warn("failed to publish sweep summary", "err", err)
		}
	}
}

// FormatReport renders the plain-text email body for one location.
func FormatReport(location string, c domain.Conditions) string {
	return fmt.Sprintf("Current weather in %s: %s, Temperature: %s°C",
		location, c.Description, strconv.FormatFloat(c.TemperatureC, 'f', -1, 64))
}

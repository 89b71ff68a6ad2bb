// Package fusion decides, for every incoming report, whether it corroborates
// or disputes an existing event or starts a new one, and keeps each event's
// confidence, severity and status consistent under concurrent arrivals.
package fusion

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/truthfuse/internal/adapters/classifier"
	"github.com/okian/truthfuse/internal/adapters/repository"
	"github.com/okian/truthfuse/internal/domain/forensics"
	"github.com/okian/truthfuse/internal/domain/geo"
	"github.com/okian/truthfuse/internal/domain/keylock"
	"github.com/okian/truthfuse/internal/domain/lexicon"
	"github.com/okian/truthfuse/internal/domain/matching"
	"github.com/okian/truthfuse/internal/domain/model"
	"github.com/okian/truthfuse/internal/domain/scoring"
	"github.com/okian/truthfuse/pkg/logger"
	"github.com/okian/truthfuse/pkg/metrics"
)

const (
	defaultDedupRadius = 500.0
	verifiedThreshold  = 65.0

	conclusionCreated = "ANALYSIS: new incident detected, awaiting corroboration."
)

// Kind classifies the result of processing one report.
type Kind string

const (
	KindCreated   Kind = "created"
	KindMerged    Kind = "merged"
	KindDuplicate Kind = "duplicate"
	KindError     Kind = "error"
)

// Outcome is the result of Process. Event is a snapshot; for duplicates it
// is the event the reporter already contributed to.
type Outcome struct {
	Kind     Kind
	Event    model.Event
	Findings model.Findings
	// Denial is the first denial root found in the title, if any.
	Denial string
}

// Store is the storage the engine reads and writes.
type Store interface {
	repository.EventStore
	repository.ReportStore
}

// Verifier inspects image evidence against the claimed location.
type Verifier interface {
	Verify(img []byte, claimed model.Location) forensics.Result
}

// Publisher receives activity entries and event updates. Delivery is best
// effort; errors are logged and otherwise ignored.
type Publisher interface {
	Publish(ctx context.Context, n model.Notification) error
}

type discardPublisher struct{}

func (discardPublisher) Publish(context.Context, model.Notification) error { return nil }

// Engine is the fusion orchestrator. It is safe for concurrent use.
type Engine struct {
	store      Store
	verifier   Verifier
	classifier classifier.Classifier
	matcher    *matching.Matcher
	scorer     *scoring.Scorer
	publisher  Publisher
	log        logger.Logger

	now         func() time.Time
	newID       func() string
	cellLevel   int
	dedupRadius float64
	cells       *keylock.Locker
}

// NewEngine creates an engine over store with default collaborators.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		verifier:    forensics.NewVerifier(),
		classifier:  classifier.Disabled{},
		matcher:     matching.NewMatcher(),
		scorer:      scoring.NewScorer(),
		publisher:   discardPublisher{},
		log:         logger.Discard(),
		now:         time.Now,
		newID:       uuid.NewString,
		cellLevel:   geo.DefaultCellLevel,
		dedupRadius: defaultDedupRadius,
		cells:       keylock.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewID mints an identifier with the engine's generator.
func (e *Engine) NewID() string { return e.newID() }

// Process fuses one report. Duplicates are a normal outcome, not an error.
// Internal failures return Outcome{Kind: KindError} and an error wrapping
// ErrProcessing; no partially updated event is ever stored. Once accepted a
// report is fused to completion even if the caller goes away.
func (e *Engine) Process(ctx context.Context, r model.Report) (out Outcome, err error) {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	r = e.prepare(r)

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: panic: %v", ErrProcessing, p)
		}
		elapsed := float64(time.Since(start).Milliseconds())
		metrics.RecordProcessingLatency(elapsed)
		if err != nil {
			out = Outcome{Kind: KindError}
			e.log.Error(ctx, "report processing failed",
				logger.String("report_id", r.ID),
				logger.String("reporter_id", r.ReporterID),
				logger.Error(err))
			e.activity(ctx, r.ID, "", fmt.Sprintf("Engine error while processing %q: %v", r.Title, err), model.LevelError)
			metrics.RecordReport(string(KindError))
			metrics.RecordErrorByComponent("fusion", "processing")
			metrics.RecordErrorLatency("fusion", "processing", elapsed)
			return
		}
		metrics.RecordReport(string(out.Kind))
	}()

	e.activity(ctx, r.ID, "", fmt.Sprintf("Processing report %q from %s", r.Title, r.ReporterID), model.LevelInfo)

	if err := e.store.SaveReport(ctx, r); err != nil {
		return Outcome{}, fmt.Errorf("%w: save report: %w", ErrProcessing, err)
	}

	findings, err := e.gatherEvidence(ctx, r)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: evidence: %w", ErrProcessing, err)
	}
	if err := e.store.SaveFindings(ctx, r.ID, findings); err != nil {
		return Outcome{}, fmt.Errorf("%w: save findings: %w", ErrProcessing, err)
	}

	out, err = e.fuse(ctx, r, findings)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %w", ErrProcessing, err)
	}
	out.Findings = findings

	if out.Kind != KindDuplicate {
		if err := e.store.LinkEvent(ctx, r.ID, out.Event.ID); err != nil {
			e.log.Warn(ctx, "report fused but not linked to its event",
				logger.String("report_id", r.ID),
				logger.String("event_id", out.Event.ID),
				logger.Error(err))
			metrics.RecordErrorByComponent("fusion", "link_report")
		}
		metrics.RecordConfidence(out.Event.ConfidenceScore)
		ev := out.Event.Clone()
		e.publish(ctx, model.Notification{Kind: model.KindEventUpdate, Event: &ev})
	}
	return out, nil
}

func (e *Engine) prepare(r model.Report) model.Report {
	if r.ID == "" {
		r.ID = e.newID()
	}
	if r.Keywords == nil {
		r.Keywords = model.TitleKeywords(r.Title)
	}
	if r.SubmittedAt.IsZero() {
		r.SubmittedAt = e.now()
	}
	return r
}

// gatherEvidence runs forensics and the classifier concurrently. Neither can
// fail; only a panic surfaces as an error.
func (e *Engine) gatherEvidence(ctx context.Context, r model.Report) (model.Findings, error) {
	var (
		fres    forensics.Result
		verdict classifier.Verdict
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(guard(func() { fres = e.verifier.Verify(r.Image, r.Location) }))
	g.Go(guard(func() { verdict = e.classifier.Classify(gctx, r.Image) }))
	if err := g.Wait(); err != nil {
		return model.Findings{}, err
	}

	level := model.LevelInfo
	switch {
	case fres.Verified:
		level = model.LevelSuccess
		metrics.RecordForensicVerdict("verified")
	case fres.Score < 0:
		metrics.RecordForensicVerdict("rejected")
	default:
		metrics.RecordForensicVerdict("unverified")
	}
	e.activity(ctx, r.ID, "", fmt.Sprintf("Forensic: %s (score: %g)", fres.Reason, fres.Score), level)

	switch {
	case verdict.Verified && verdict.Category != "":
		e.activity(ctx, r.ID, "", fmt.Sprintf("AI vision: %s detected (%.1f%%)",
			strings.ToUpper(verdict.Category), verdict.Confidence*100), model.LevelSuccess)
	case verdict.Fallback && len(r.Image) > 0:
		e.activity(ctx, r.ID, "", "AI vision unavailable, continuing without a content verdict", model.LevelInfo)
	}

	return model.Findings{
		ForensicScore:        fres.Score,
		ForensicVerified:     fres.Verified,
		ForensicReason:       fres.Reason,
		ClassifierVerified:   verdict.Verified,
		ClassifierCategory:   verdict.Category,
		ClassifierConfidence: verdict.Confidence,
		ClassifierFallback:   verdict.Fallback,
		Power:                e.scorer.ReportPower(r.ReporterRole, fres.Verified, verdict.Verified),
	}, nil
}

func guard(fn func()) func() error {
	return func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("panic: %v", p)
			}
		}()
		fn()
		return nil
	}
}

// fuse makes the create-or-merge decision while holding every cell within
// matching or dedup reach of the report.
func (e *Engine) fuse(ctx context.Context, r model.Report, f model.Findings) (Outcome, error) {
	reach := math.Max(e.matcher.SpatialRadius(), e.dedupRadius)
	unlock := e.cells.LockAll(geo.CoveringKeys(r.Location, reach, e.cellLevel)...)
	defer unlock()

	active, err := e.store.ListActive(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("list active: %w", err)
	}

	if dup, ok := e.findDuplicate(r, active); ok {
		return e.duplicate(ctx, r, dup), nil
	}

	denial, negation := lexicon.Denial(r.Title)
	if negation {
		metrics.RecordNegation()
		e.activity(ctx, r.ID, "", fmt.Sprintf("Conflict detected: denial term %q in title", denial), model.LevelError)
	}

	if m, ok := e.matcher.FindMatch(r, active); ok {
		out, err := e.merge(ctx, r, m.Event, f.Power, negation)
		switch {
		case errors.Is(err, errInactive):
			e.log.Debug(ctx, "matched event resolved before merge",
				logger.String("event_id", m.Event.ID), logger.String("report_id", r.ID))
		case err != nil:
			return Outcome{}, err
		default:
			out.Denial = denial
			return out, nil
		}
	}

	out, err := e.create(ctx, r, f.Power)
	if err != nil {
		return Outcome{}, err
	}
	out.Denial = denial
	return out, nil
}

func (e *Engine) findDuplicate(r model.Report, active []model.Event) (model.Event, bool) {
	for _, ev := range active {
		if ev.HasReporter(r.ReporterID) && geo.RoundedDistance(r.Location, ev.Location) <= e.dedupRadius {
			return ev, true
		}
	}
	return model.Event{}, false
}

func (e *Engine) duplicate(ctx context.Context, r model.Report, ev model.Event) Outcome {
	e.activity(ctx, r.ID, ev.ID, fmt.Sprintf("Duplicate report: %s already reported %q", r.ReporterID, ev.Name), model.LevelError)
	return Outcome{Kind: KindDuplicate, Event: ev}
}

func (e *Engine) merge(ctx context.Context, r model.Report, target model.Event, power float64, negation bool) (Outcome, error) {
	now := e.now()
	updated, err := e.store.Update(ctx, target.ID, func(ev *model.Event) error {
		if !ev.Active {
			return errInactive
		}
		if ev.HasReporter(r.ReporterID) && geo.RoundedDistance(r.Location, ev.Location) <= e.dedupRadius {
			return errLateDuplicate
		}
		ev.Reporters = append(ev.Reporters, reporterOf(r))
		ev.ConfidenceScore = scoring.AsymptoticUpdate(ev.ConfidenceScore, power, negation)
		ev.Severity = e.scorer.DeriveSeverity(ev.Reporters)
		ev.ReportCount = len(ev.Reporters)
		ev.SourceReports = append(ev.SourceReports, r.ID)
		ev.LastUpdated = now
		ev.Status, ev.Conclusion = assess(ev.ConfidenceScore, negation)
		return nil
	})
	switch {
	case errors.Is(err, errLateDuplicate):
		current, getErr := e.store.Get(ctx, target.ID)
		if getErr != nil {
			return Outcome{}, fmt.Errorf("reload %s: %w", target.ID, getErr)
		}
		return e.duplicate(ctx, r, current), nil
	case errors.Is(err, errInactive):
		return Outcome{}, err
	case err != nil:
		return Outcome{}, fmt.Errorf("merge into %s: %w", target.ID, err)
	}

	e.activity(ctx, r.ID, updated.ID, fmt.Sprintf("Merged into existing event %q", updated.Name), model.LevelInfo)
	e.activity(ctx, r.ID, updated.ID, fmt.Sprintf("Report accepted: %q at %.1f%% confidence", updated.Name, updated.ConfidenceScore), model.LevelSuccess)
	return Outcome{Kind: KindMerged, Event: updated}, nil
}

// assess maps post-update confidence and negation to status and conclusion.
func assess(confidence float64, negation bool) (model.Status, string) {
	switch {
	case negation:
		return model.StatusDisputed, fmt.Sprintf("DISPUTED: conflicting reports, confidence at %.1f%%.", confidence)
	case confidence > verifiedThreshold:
		return model.StatusVerified, fmt.Sprintf("VERIFIED: multiple sources confirm active threat (%.1f%% confidence).", confidence)
	default:
		return model.StatusMonitoring, fmt.Sprintf("MONITORING: new reports confirming event (%.1f%% confidence).", confidence)
	}
}

func (e *Engine) create(ctx context.Context, r model.Report, power float64) (Outcome, error) {
	now := e.now()
	reporter := reporterOf(r)
	ev := model.Event{
		ID:              e.newID(),
		Name:            strings.ToUpper(r.Title),
		Location:        r.Location,
		Active:          true,
		ConfidenceScore: scoring.SeedConfidence(power),
		Severity:        e.scorer.DeriveSeverity([]model.Reporter{reporter}),
		Status:          model.StatusMonitoring,
		ReportCount:     1,
		Conclusion:      conclusionCreated,
		LastUpdated:     now,
		CreatedAt:       now,
		SourceReports:   []string{r.ID},
		Reporters:       []model.Reporter{reporter},
	}
	created, err := e.store.Create(ctx, ev)
	if err != nil {
		return Outcome{}, fmt.Errorf("create event: %w", err)
	}

	e.activity(ctx, r.ID, created.ID, fmt.Sprintf("New event created: %q", created.Name), model.LevelSuccess)
	e.activity(ctx, r.ID, created.ID, fmt.Sprintf("Report accepted: %q at %.1f%% confidence", created.Name, created.ConfidenceScore), model.LevelSuccess)
	return Outcome{Kind: KindCreated, Event: created}, nil
}

func reporterOf(r model.Report) model.Reporter {
	return model.Reporter{
		ReporterID:      r.ReporterID,
		Role:            r.ReporterRole,
		ClaimedSeverity: r.ClaimedSeverity,
		Keywords:        append([]string(nil), r.Keywords...),
	}
}

// Resolve closes an event. Resolving an already resolved event returns it
// unchanged. Unknown IDs return repository.ErrNotFound.
func (e *Engine) Resolve(ctx context.Context, id string) (model.Event, error) {
	ctx = context.WithoutCancel(ctx)
	now := e.now()
	ev, err := e.store.Update(ctx, id, func(ev *model.Event) error {
		if ev.Status == model.StatusResolved {
			return errAlreadyResolved
		}
		ev.Status = model.StatusResolved
		ev.Active = false
		ev.LastUpdated = now
		return nil
	})
	if errors.Is(err, errAlreadyResolved) {
		return e.store.Get(ctx, id)
	}
	if err != nil {
		return model.Event{}, err
	}

	metrics.RecordEventResolved()
	e.log.Info(ctx, "event resolved", logger.String("event_id", ev.ID))
	e.activity(ctx, "", ev.ID, fmt.Sprintf("Event resolved: %q", ev.Name), model.LevelSuccess)
	snapshot := ev.Clone()
	e.publish(ctx, model.Notification{Kind: model.KindEventUpdate, Event: &snapshot})
	return ev, nil
}

func (e *Engine) activity(ctx context.Context, reportID, eventID, msg, level string) {
	e.log.Debug(ctx, msg, logger.String("level", level), logger.String("report_id", reportID))
	e.publish(ctx, model.Notification{
		Kind: model.KindActivity,
		Activity: &model.ActivityEntry{
			Timestamp: e.now(),
			Message:   msg,
			Level:     level,
			ReportID:  reportID,
			EventID:   eventID,
		},
	})
}

func (e *Engine) publish(ctx context.Context, n model.Notification) {
	if err := e.publisher.Publish(ctx, n); err != nil {
		e.log.Debug(ctx, "notification not delivered",
			logger.String("kind", string(n.Kind)), logger.Error(err))
	}
}

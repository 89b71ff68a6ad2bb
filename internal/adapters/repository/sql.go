package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/okian/truthfuse/internal/domain/keylock"
	"github.com/okian/truthfuse/internal/domain/model"
	"github.com/okian/truthfuse/pkg/metrics"
)

// Supported SQL dialects. The names match the registered database/sql drivers.
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

type dialect struct {
	name     string
	floatT   string
	intT     string
	numbered bool
}

var dialects = map[string]dialect{
	DialectSQLite:   {name: DialectSQLite, floatT: "REAL", intT: "INTEGER"},
	DialectPostgres: {name: DialectPostgres, floatT: "DOUBLE PRECISION", intT: "BIGINT", numbered: true},
}

// rebind rewrites ? placeholders to $n for dialects that number them.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d dialect) schema() string {
	return fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		lat %[1]s NOT NULL,
		lon %[1]s NOT NULL,
		active %[2]s NOT NULL,
		confidence %[1]s NOT NULL,
		severity TEXT NOT NULL,
		status TEXT NOT NULL,
		report_count %[2]s NOT NULL,
		conclusion TEXT NOT NULL,
		last_updated %[2]s NOT NULL,
		created_at %[2]s NOT NULL,
		source_reports TEXT NOT NULL,
		reporters TEXT NOT NULL,
		version %[2]s NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_active ON events(active);
	CREATE INDEX IF NOT EXISTS idx_events_created ON events(created_at);

	CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		reporter_id TEXT NOT NULL,
		reporter_role TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		keywords TEXT NOT NULL,
		lat %[1]s NOT NULL,
		lon %[1]s NOT NULL,
		severity TEXT NOT NULL,
		image_url TEXT NOT NULL,
		event_date %[2]s NOT NULL,
		submitted_at %[2]s NOT NULL,
		event_id TEXT NOT NULL,
		findings TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reports_event ON reports(event_id);
	`, d.floatT, d.intT)
}

// SQLStore persists events and reports through database/sql. Writers of one
// event are serialised in-process and every commit is guarded by a version
// compare-and-set, so writers in other processes cannot be overwritten.
type SQLStore struct {
	db         *sql.DB
	dialect    dialect
	maxRetries int

	locks  *keylock.Locker
	gauges *gaugeUpdater
}

// OpenSQLStore opens the database for driver, pings it and applies the schema.
func OpenSQLStore(ctx context.Context, driver, dsn string, opts ...Option) (*SQLStore, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
	db, err := sql.Open(d.name, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if d.name == DialectSQLite {
		// In-memory SQLite databases are private to one connection.
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return newSQLStore(ctx, db, d, opts...)
}

func newSQLStore(ctx context.Context, db *sql.DB, d dialect, opts ...Option) (*SQLStore, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	s := &SQLStore{
		db:         db,
		dialect:    d,
		maxRetries: o.maxRetries,
		locks:      keylock.New(),
		gauges:     newGaugeUpdater(),
	}
	if _, err := db.ExecContext(ctx, d.schema()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	s.gauges.start(ctx, o.metricsInterval, s.Counts)
	return s, nil
}

// Close stops background work and closes the database.
func (s *SQLStore) Close() error {
	s.gauges.stop()
	return s.db.Close()
}

const eventColumns = `id, name, lat, lon, active, confidence, severity, status, report_count,
	conclusion, last_updated, created_at, source_reports, reporters, version`

func (s *SQLStore) Create(ctx context.Context, e model.Event) (model.Event, error) {
	defer observe("create", time.Now())

	e = e.Clone()
	e.Version = 1
	args, err := eventArgs(e)
	if err != nil {
		return model.Event{}, err
	}
	q := s.dialect.rebind(`INSERT INTO events (` + eventColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		if isUniqueViolation(err) {
			return model.Event{}, fmt.Errorf("event %s: %w", e.ID, ErrExists)
		}
		return model.Event{}, fmt.Errorf("insert event %s: %w", e.ID, err)
	}
	return e, nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (model.Event, error) {
	defer observe("get", time.Now())
	return s.get(ctx, id)
}

func (s *SQLStore) get(ctx context.Context, id string) (model.Event, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.rebind(`SELECT `+eventColumns+` FROM events WHERE id = ?`), id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Event{}, fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Event{}, fmt.Errorf("select event %s: %w", id, err)
	}
	return e, nil
}

func (s *SQLStore) ListActive(ctx context.Context) ([]model.Event, error) {
	defer observe("list_active", time.Now())
	return s.list(ctx, `SELECT `+eventColumns+` FROM events WHERE active = 1 ORDER BY created_at, id`)
}

func (s *SQLStore) ListAll(ctx context.Context) ([]model.Event, error) {
	defer observe("list_all", time.Now())
	return s.list(ctx, `SELECT `+eventColumns+` FROM events ORDER BY created_at, id`)
}

func (s *SQLStore) list(ctx context.Context, query string) ([]model.Event, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLStore) Update(ctx context.Context, id string, fn UpdateFunc) (model.Event, error) {
	defer observe("update", time.Now())

	unlock := s.locks.Lock(id)
	defer unlock()

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		e, err := s.updateOnce(ctx, id, fn)
		if !errors.Is(err, ErrConflict) {
			return e, err
		}
		metrics.RecordStoreConflict()
	}
	return model.Event{}, fmt.Errorf("event %s: %w", id, ErrConflict)
}

// updateOnce reads the event, applies fn outside any transaction and commits
// with a single compare-and-set on the version it read.
func (s *SQLStore) updateOnce(ctx context.Context, id string, fn UpdateFunc) (model.Event, error) {
	current, err := s.get(ctx, id)
	if err != nil {
		return model.Event{}, err
	}
	next := current.Clone()
	if err := fn(&next); err != nil {
		return model.Event{}, err
	}
	next.ID = current.ID
	next.Version = current.Version + 1

	args, err := eventArgs(next)
	if err != nil {
		return model.Event{}, err
	}
	// args[0] is the id; the remaining columns are updated in order.
	q := s.dialect.rebind(`UPDATE events SET name = ?, lat = ?, lon = ?, active = ?, confidence = ?,
		severity = ?, status = ?, report_count = ?, conclusion = ?, last_updated = ?, created_at = ?,
		source_reports = ?, reporters = ?, version = ?
		WHERE id = ? AND version = ?`)
	res, err := s.db.ExecContext(ctx, q, append(args[1:], next.ID, current.Version)...)
	if err != nil {
		return model.Event{}, fmt.Errorf("update event %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.Event{}, fmt.Errorf("update event %s: %w", id, err)
	}
	if n != 1 {
		return model.Event{}, ErrConflict
	}
	return next, nil
}

func (s *SQLStore) Counts(ctx context.Context) (active, total int, err error) {
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(active), 0) FROM events`)
	if err := row.Scan(&total, &active); err != nil {
		return 0, 0, fmt.Errorf("count events: %w", err)
	}
	return active, total, nil
}

func (s *SQLStore) SaveReport(ctx context.Context, r model.Report) error {
	defer observe("save_report", time.Now())

	keywords, err := json.Marshal(nonNil(r.Keywords))
	if err != nil {
		return fmt.Errorf("encode keywords: %w", err)
	}
	findings, err := json.Marshal(r.Findings)
	if err != nil {
		return fmt.Errorf("encode findings: %w", err)
	}
	q := s.dialect.rebind(`INSERT INTO reports (id, reporter_id, reporter_role, title, description,
		keywords, lat, lon, severity, image_url, event_date, submitted_at, event_id, findings)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			keywords = excluded.keywords,
			event_id = excluded.event_id,
			findings = excluded.findings`)
	_, err = s.db.ExecContext(ctx, q,
		r.ID, r.ReporterID, string(r.ReporterRole), r.Title, r.Description,
		string(keywords), r.Location.Lat, r.Location.Lon, string(r.ClaimedSeverity), r.ImageURL,
		unixNano(r.EventDate), unixNano(r.SubmittedAt), r.EventID, string(findings))
	if err != nil {
		return fmt.Errorf("save report %s: %w", r.ID, err)
	}
	return nil
}

func (s *SQLStore) SaveFindings(ctx context.Context, reportID string, f model.Findings) error {
	defer observe("save_findings", time.Now())

	raw, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode findings: %w", err)
	}
	return s.touchReport(ctx, `UPDATE reports SET findings = ? WHERE id = ?`, reportID, string(raw))
}

func (s *SQLStore) LinkEvent(ctx context.Context, reportID, eventID string) error {
	return s.touchReport(ctx, `UPDATE reports SET event_id = ? WHERE id = ?`, reportID, eventID)
}

func (s *SQLStore) touchReport(ctx context.Context, query, reportID string, value any) error {
	res, err := s.db.ExecContext(ctx, s.dialect.rebind(query), value, reportID)
	if err != nil {
		return fmt.Errorf("update report %s: %w", reportID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("report %s: %w", reportID, ErrNotFound)
	}
	return nil
}

func (s *SQLStore) GetReport(ctx context.Context, id string) (model.Report, error) {
	q := s.dialect.rebind(`SELECT id, reporter_id, reporter_role, title, description, keywords,
		lat, lon, severity, image_url, event_date, submitted_at, event_id, findings
		FROM reports WHERE id = ?`)
	var (
		r                    model.Report
		role, severity       string
		keywords, findings   string
		eventDate, submitted int64
	)
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&r.ID, &r.ReporterID, &role, &r.Title, &r.Description, &keywords,
		&r.Location.Lat, &r.Location.Lon, &severity, &r.ImageURL,
		&eventDate, &submitted, &r.EventID, &findings,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Report{}, fmt.Errorf("report %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Report{}, fmt.Errorf("select report %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(keywords), &r.Keywords); err != nil {
		return model.Report{}, fmt.Errorf("%w: keywords: %w", ErrInvalidPayload, err)
	}
	if err := json.Unmarshal([]byte(findings), &r.Findings); err != nil {
		return model.Report{}, fmt.Errorf("%w: findings: %w", ErrInvalidPayload, err)
	}
	r.ReporterRole = model.Role(role)
	r.ClaimedSeverity = model.ParseSeverity(severity)
	r.EventDate = fromUnixNano(eventDate)
	r.SubmittedAt = fromUnixNano(submitted)
	return r, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(sc scanner) (model.Event, error) {
	var (
		e                    model.Event
		active               int64
		severity, status     string
		lastUpdated, created int64
		sources, reporters   string
	)
	err := sc.Scan(
		&e.ID, &e.Name, &e.Location.Lat, &e.Location.Lon, &active, &e.ConfidenceScore,
		&severity, &status, &e.ReportCount, &e.Conclusion, &lastUpdated, &created,
		&sources, &reporters, &e.Version,
	)
	if err != nil {
		return model.Event{}, err
	}
	if err := json.Unmarshal([]byte(sources), &e.SourceReports); err != nil {
		return model.Event{}, fmt.Errorf("%w: source_reports: %w", ErrInvalidPayload, err)
	}
	if err := json.Unmarshal([]byte(reporters), &e.Reporters); err != nil {
		return model.Event{}, fmt.Errorf("%w: reporters: %w", ErrInvalidPayload, err)
	}
	e.Active = active != 0
	e.Severity = model.ParseSeverity(severity)
	e.Status = model.Status(status)
	e.LastUpdated = fromUnixNano(lastUpdated)
	e.CreatedAt = fromUnixNano(created)
	return e, nil
}

func eventArgs(e model.Event) ([]any, error) {
	sources, err := json.Marshal(nonNil(e.SourceReports))
	if err != nil {
		return nil, fmt.Errorf("encode source_reports: %w", err)
	}
	reporters, err := json.Marshal(e.Reporters)
	if err != nil {
		return nil, fmt.Errorf("encode reporters: %w", err)
	}
	if e.Reporters == nil {
		reporters = []byte("[]")
	}
	active := 0
	if e.Active {
		active = 1
	}
	return []any{
		e.ID, e.Name, e.Location.Lat, e.Location.Lon, active, e.ConfidenceScore,
		string(e.Severity), string(e.Status), e.ReportCount, e.Conclusion,
		unixNano(e.LastUpdated), unixNano(e.CreatedAt), string(sources), string(reporters), e.Version,
	}, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY ||
			liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

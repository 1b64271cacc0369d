package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/hotbags/backend/internal/domain"
)

// Dialect selects placeholder style and row locking for a SQL backend.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Fixed-width UTC layout so text comparison orders timestamps correctly.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const sessionColumns = `deal_id, correlation_id, state, operator_id, source_message_ids, draft, draft_version, expires_at, created_at, updated_at`

var schema = []string{
	`CREATE TABLE IF NOT EXISTS deal_sessions (
		deal_id TEXT PRIMARY KEY,
		correlation_id TEXT NOT NULL,
		state TEXT NOT NULL,
		operator_id TEXT NOT NULL DEFAULT '',
		source_message_ids TEXT NOT NULL,
		draft TEXT NOT NULL,
		draft_version INTEGER NOT NULL,
		expires_at TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_deal_sessions_updated_at ON deal_sessions (updated_at)`,
	`CREATE TABLE IF NOT EXISTS automation_events (
		event_id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		type TEXT NOT NULL,
		occurred_at TEXT NOT NULL,
		correlation_id TEXT NOT NULL,
		shop TEXT NOT NULL DEFAULT '',
		data TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS automation_errors (
		error_id TEXT PRIMARY KEY,
		correlation_id TEXT NOT NULL,
		event_id TEXT NOT NULL DEFAULT '',
		service TEXT NOT NULL,
		error_code TEXT NOT NULL,
		message TEXT NOT NULL,
		details TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS metaobject_cache (
		shop TEXT NOT NULL,
		type_handle TEXT NOT NULL,
		normalized_label TEXT NOT NULL,
		gid TEXT NOT NULL,
		input_label TEXT NOT NULL,
		display_name TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (shop, type_handle, normalized_label)
	)`,
}

// DB wraps a database handle shared by the SQL-backed stores.
type DB struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// Open connects to the given driver ("sqlite" or "postgres") and migrates the schema.
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	dialect := Dialect(driver)
	if dialect != DialectSQLite && dialect != DialectPostgres {
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", driver, err)
	}
	if dialect == DialectSQLite {
		// A single connection serializes writers and keeps :memory: databases alive.
		db.SetMaxOpenConns(1)
	}
	store, err := New(ctx, db, dialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// New wraps an open handle and runs the idempotent schema migration.
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*DB, error) {
	s := &DB{db: db, dialect: dialect, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// NewWithoutMigration wraps a handle whose schema is managed elsewhere.
func NewWithoutMigration(db *sql.DB, dialect Dialect) *DB {
	return &DB{db: db, dialect: dialect, now: time.Now}
}

func (s *DB) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrating schema: %w", err)
		}
	}
	return nil
}

// Close closes the underlying handle.
func (s *DB) Close() error {
	return s.db.Close()
}

// Sessions returns the session store view.
func (s *DB) Sessions() *SQLSessionStore { return &SQLSessionStore{s} }

// Events returns the event log view.
func (s *DB) Events() *SQLEventLog { return &SQLEventLog{s} }

// Errors returns the error log view.
func (s *DB) Errors() *SQLErrorLog { return &SQLErrorLog{s} }

// MetaobjectCache returns the metaobject cache view.
func (s *DB) MetaobjectCache() *SQLMetaobjectCache { return &SQLMetaobjectCache{s} }

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *DB) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(v string) (time.Time, error) {
	return time.Parse(timeLayout, v)
}

// SQLSessionStore persists deal sessions.
type SQLSessionStore struct {
	*DB
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.DealSession, error) {
	var (
		s                               domain.DealSession
		state, messageIDs, draft        string
		expiresAt, createdAt, updatedAt string
	)
	if err := row.Scan(&s.DealID, &s.CorrelationID, &state, &s.OperatorID, &messageIDs, &draft,
		&s.DraftVersion, &expiresAt, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	s.State = domain.DealState(state)
	if err := json.Unmarshal([]byte(messageIDs), &s.SourceMessageIDs); err != nil {
		return nil, fmt.Errorf("decoding source_message_ids: %w", err)
	}
	var err error
	if s.Draft, err = domain.ValidateDraft([]byte(draft)); err != nil {
		return nil, fmt.Errorf("decoding draft of %s: %w", s.DealID, err)
	}
	if s.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, err
	}
	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if s.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func encodeSession(s *domain.DealSession) (messageIDs, draft string, err error) {
	ids := s.SourceMessageIDs
	if ids == nil {
		ids = []string{}
	}
	rawIDs, err := json.Marshal(ids)
	if err != nil {
		return "", "", err
	}
	rawDraft, err := domain.SerializeDraft(s.Draft)
	if err != nil {
		return "", "", err
	}
	return string(rawIDs), string(rawDraft), nil
}

// Create inserts a session, returning domain.ErrDealExists when the id is taken.
func (s *SQLSessionStore) Create(ctx context.Context, session *domain.DealSession) error {
	messageIDs, draft, err := encodeSession(session)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	query := s.rebind(`INSERT INTO deal_sessions (` + sessionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (deal_id) DO NOTHING`)
	res, err := s.db.ExecContext(ctx, query,
		session.DealID, session.CorrelationID, string(session.State), session.OperatorID, messageIDs, draft,
		session.DraftVersion, formatTime(session.ExpiresAt), formatTime(session.CreatedAt), formatTime(session.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	if affected == 0 {
		return domain.ErrDealExists
	}
	return nil
}

func (s *SQLSessionStore) Get(ctx context.Context, dealID string) (*domain.DealSession, error) {
	query := s.rebind(`SELECT ` + sessionColumns + ` FROM deal_sessions WHERE deal_id = ?`)
	session, err := scanSession(s.db.QueryRowContext(ctx, query, dealID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrDealNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return session, nil
}

// Update reads, checks the state guard, patches and writes the session inside
// one transaction. On PostgreSQL the row is locked with FOR UPDATE; SQLite
// serializes writers on its single connection.
func (s *SQLSessionStore) Update(ctx context.Context, dealID string, patch domain.DealPatch, opts domain.UpdateOptions) (*domain.DealSession, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	selectQuery := `SELECT ` + sessionColumns + ` FROM deal_sessions WHERE deal_id = ?`
	if s.dialect == DialectPostgres {
		selectQuery += ` FOR UPDATE`
	}
	session, err := scanSession(tx.QueryRowContext(ctx, s.rebind(selectQuery), dealID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrDealNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if err := patch.CheckState(dealID, session.State); err != nil {
		return nil, err
	}

	patch.Apply(session)
	if opts.IncrementVersion {
		session.DraftVersion++
	}
	session.UpdatedAt = s.now().UTC()

	messageIDs, draft, err := encodeSession(session)
	if err != nil {
		return nil, fmt.Errorf("encoding session: %w", err)
	}
	updateQuery := s.rebind(`UPDATE deal_sessions
		SET state = ?, operator_id = ?, source_message_ids = ?, draft = ?, draft_version = ?, expires_at = ?, updated_at = ?
		WHERE deal_id = ?`)
	if _, err := tx.ExecContext(ctx, updateQuery,
		string(session.State), session.OperatorID, messageIDs, draft, session.DraftVersion,
		formatTime(session.ExpiresAt), formatTime(session.UpdatedAt), dealID,
	); err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit session update: %w", err)
	}
	return session, nil
}

func (s *SQLSessionStore) List(ctx context.Context, limit int) ([]*domain.DealSession, error) {
	query := s.rebind(`SELECT ` + sessionColumns + ` FROM deal_sessions ORDER BY updated_at DESC, deal_id ASC LIMIT ?`)
	return s.querySessions(ctx, query, limit)
}

func (s *SQLSessionStore) ListExpiring(ctx context.Context, before time.Time) ([]*domain.DealSession, error) {
	query := s.rebind(`SELECT ` + sessionColumns + ` FROM deal_sessions
		WHERE state IN (?, ?) AND expires_at <= ?
		ORDER BY deal_id ASC`)
	return s.querySessions(ctx, query,
		string(domain.StateDraft), string(domain.StateAwaitingConfirmation), formatTime(before))
}

func (s *SQLSessionStore) querySessions(ctx context.Context, query string, args ...any) ([]*domain.DealSession, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []*domain.DealSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// SQLEventLog appends automation events; a repeated event_id is ignored.
type SQLEventLog struct {
	*DB
}

func (l *SQLEventLog) Append(ctx context.Context, event *domain.EventEnvelope) error {
	data := string(event.Data)
	if data == "" {
		data = "{}"
	}
	query := l.rebind(`INSERT INTO automation_events (event_id, source, type, occurred_at, correlation_id, shop, data)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (event_id) DO NOTHING`)
	if _, err := l.db.ExecContext(ctx, query,
		event.EventID, string(event.Source), event.Type, formatTime(event.OccurredAt), event.CorrelationID, event.Shop, data,
	); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// ListByCorrelation returns the events of one deal in occurrence order.
func (l *SQLEventLog) ListByCorrelation(ctx context.Context, correlationID string) ([]domain.EventEnvelope, error) {
	query := l.rebind(`SELECT event_id, source, type, occurred_at, correlation_id, shop, data
		FROM automation_events WHERE correlation_id = ? ORDER BY occurred_at ASC, event_id ASC`)
	rows, err := l.db.QueryContext(ctx, query, correlationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []domain.EventEnvelope
	for rows.Next() {
		var (
			e                  domain.EventEnvelope
			source, occurredAt string
			data               string
		)
		if err := rows.Scan(&e.EventID, &source, &e.Type, &occurredAt, &e.CorrelationID, &e.Shop, &data); err != nil {
			return nil, err
		}
		e.Source = domain.EventSource(source)
		e.Data = json.RawMessage(data)
		if e.OccurredAt, err = parseTime(occurredAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// SQLErrorLog records automation failures.
type SQLErrorLog struct {
	*DB
}

func (l *SQLErrorLog) Append(ctx context.Context, record *domain.ErrorRecord) error {
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = l.now()
	}
	query := l.rebind(`INSERT INTO automation_errors (error_id, correlation_id, event_id, service, error_code, message, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if _, err := l.db.ExecContext(ctx, query,
		uuid.NewString(), record.CorrelationID, record.EventID, record.Service, record.ErrorCode,
		record.Message, string(record.Details), formatTime(createdAt),
	); err != nil {
		log.Printf("[STORE] Failed to write error record %s/%s: %v", record.Service, record.ErrorCode, err)
		return fmt.Errorf("failed to append error record: %w", err)
	}
	return nil
}

// SQLMetaobjectCache persists resolutions in the metaobject_cache table.
type SQLMetaobjectCache struct {
	*DB
}

func (c *SQLMetaobjectCache) Get(ctx context.Context, shop, typeHandle, normalizedLabel string) (*domain.MetaobjectCacheEntry, error) {
	query := c.rebind(`SELECT gid, input_label, display_name, updated_at FROM metaobject_cache
		WHERE shop = ? AND type_handle = ? AND normalized_label = ?`)
	entry := &domain.MetaobjectCacheEntry{Shop: shop, TypeHandle: typeHandle, NormalizedLabel: normalizedLabel}
	var updatedAt string
	err := c.db.QueryRowContext(ctx, query, shop, typeHandle, normalizedLabel).
		Scan(&entry.GID, &entry.InputLabel, &entry.DisplayName, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metaobject cache: %w", err)
	}
	if entry.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return entry, nil
}

func (c *SQLMetaobjectCache) Upsert(ctx context.Context, entry *domain.MetaobjectCacheEntry) error {
	query := c.rebind(`INSERT INTO metaobject_cache (shop, type_handle, normalized_label, gid, input_label, display_name, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (shop, type_handle, normalized_label) DO UPDATE SET
			gid = excluded.gid,
			input_label = excluded.input_label,
			display_name = excluded.display_name,
			updated_at = excluded.updated_at`)
	if _, err := c.db.ExecContext(ctx, query,
		entry.Shop, entry.TypeHandle, entry.NormalizedLabel, entry.GID, entry.InputLabel, entry.DisplayName, formatTime(entry.UpdatedAt),
	); err != nil {
		return fmt.Errorf("failed to upsert metaobject cache: %w", err)
	}
	return nil
}

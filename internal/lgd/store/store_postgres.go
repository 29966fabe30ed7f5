package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"g2p/internal/lgd/models"
	dErrors "g2p/pkg/domain-errors"
	"g2p/pkg/platform/sentinel"
	txcontext "g2p/pkg/platform/tx"
)

//go:embed migrations/0001_init.sql
var schemaSQL string

const (
	defaultTxTimeout  = 5 * time.Second
	uniqueViolationPG = "23505"
)

// PostgresStore persists records as JSONB documents next to the columns the
// uniqueness and panel lookups need.
type PostgresStore struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPostgres constructs a PostgreSQL-backed record store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, timeout: defaultTxTimeout}
}

// Migrate creates the record tables and the stable ID sequence if missing.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, rec *models.Record) error {
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	key := rec.Key()
	query := `
		INSERT INTO lgd_records (
			stable_id, key_locus, key_genotype, key_disease, key_mechanism,
			panels, confidence, is_reviewed, last_updated, document
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		rec.StableID,
		key.Locus,
		key.Genotype,
		key.Disease,
		key.Mechanism,
		pq.Array(rec.Panels),
		string(rec.Confidence),
		rec.IsReviewed,
		rec.LastUpdated,
		doc,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", sentinel.ErrConflict, err.Error())
		}
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, rec *models.Record) error {
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	key := rec.Key()
	query := `
		UPDATE lgd_records SET
			key_locus = $2,
			key_genotype = $3,
			key_disease = $4,
			key_mechanism = $5,
			panels = $6,
			confidence = $7,
			is_reviewed = $8,
			last_updated = $9,
			document = $10
		WHERE stable_id = $1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		rec.StableID,
		key.Locus,
		key.Genotype,
		key.Disease,
		key.Mechanism,
		pq.Array(rec.Panels),
		string(rec.Confidence),
		rec.IsReviewed,
		rec.LastUpdated,
		doc,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", sentinel.ErrConflict, err.Error())
		}
		return fmt.Errorf("update record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, stableID string) (*models.Record, error) {
	return s.findOne(ctx, `SELECT document FROM lgd_records WHERE stable_id = $1`, stableID)
}

// FindForUpdate locks the row until the surrounding transaction ends.
func (s *PostgresStore) FindForUpdate(ctx context.Context, stableID string) (*models.Record, error) {
	return s.findOne(ctx, `SELECT document FROM lgd_records WHERE stable_id = $1 FOR UPDATE`, stableID)
}

func (s *PostgresStore) FindByKey(ctx context.Context, key models.RecordKey) (*models.Record, error) {
	query := `
		SELECT document FROM lgd_records
		WHERE key_locus = $1 AND key_genotype = $2 AND key_disease = $3 AND key_mechanism = $4
	`
	return s.findOne(ctx, query, key.Locus, key.Genotype, key.Disease, key.Mechanism)
}

func (s *PostgresStore) findOne(ctx context.Context, query string, args ...any) (*models.Record, error) {
	var doc []byte
	if err := s.execer(ctx).QueryRowContext(ctx, query, args...).Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find record: %w", err)
	}
	return decode(doc)
}

// Scan streams every record in stable ID order.
func (s *PostgresStore) Scan(ctx context.Context, fn func(*models.Record) error) error {
	rows, err := s.execer(ctx).QueryContext(ctx, `SELECT document FROM lgd_records ORDER BY stable_id`)
	if err != nil {
		return fmt.Errorf("scan records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return fmt.Errorf("scan record row: %w", err)
		}
		rec, err := decode(doc)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("scan records: %w", err)
	}
	return nil
}

// RunInTx runs fn inside a transaction carried in the context. Calls nested in
// an existing transaction join it.
func (s *PostgresStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txcontext.From(ctx); ok {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// isUniqueViolation recognizes the error from either registered driver.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolationPG
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolationPG
	}
	return false
}

// PostgresAuditStore persists confidence transitions.
type PostgresAuditStore struct {
	db *sql.DB
}

func NewPostgresAudit(db *sql.DB) *PostgresAuditStore {
	return &PostgresAuditStore{db: db}
}

func (s *PostgresAuditStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresAuditStore) Append(ctx context.Context, entry models.AuditEntry) error {
	query := `
		INSERT INTO lgd_confidence_audit (id, stable_id, from_level, to_level, actor, justification, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		entry.ID,
		entry.StableID,
		string(entry.From),
		string(entry.To),
		entry.Actor,
		entry.Justification,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *PostgresAuditStore) ListByRecord(ctx context.Context, stableID string) ([]models.AuditEntry, error) {
	query := `
		SELECT id, stable_id, from_level, to_level, actor, justification, created_at
		FROM lgd_confidence_audit
		WHERE stable_id = $1
		ORDER BY created_at DESC
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, stableID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]models.AuditEntry, 0)
	for rows.Next() {
		var (
			e        models.AuditEntry
			from, to string
		)
		if err := rows.Scan(&e.ID, &e.StableID, &from, &to, &e.Actor, &e.Justification, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.From = models.Confidence(from)
		e.To = models.Confidence(to)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}

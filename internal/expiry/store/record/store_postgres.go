package record

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"bidhub/internal/expiry/models"
	id "bidhub/pkg/domain"
	"bidhub/pkg/platform/sentinel"
)

// uniqueViolation is the postgres error code raised by the partial unique
// index on (kind, subject_id) WHERE active. It backs the one-active-record
// invariant without a read-check-write race.
const uniqueViolation = "23505"

// PostgresStore persists expirable records in PostgreSQL.
// This store is pure I/O; expiry policy (InForceAt) belongs to the model and
// is never re-derived from SQL beyond the stale-selection predicate.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed record store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, record *models.Record) error {
	query := `
		INSERT INTO expirable_records (id, kind, subject_id, deadline, active, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(record.ID),
		record.Kind.String(),
		uuid.UUID(record.SubjectID),
		record.Deadline,
		record.Active,
		nullJSON(record.Payload),
		record.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("active %s record exists for subject %s: %w",
				record.Kind, record.SubjectID, sentinel.ErrConflict)
		}
		return fmt.Errorf("create record: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, recordID id.RecordID) (*models.Record, error) {
	query := selectRecords + ` WHERE id = $1`
	record, err := scanRecord(s.db.QueryRowContext(ctx, query, uuid.UUID(recordID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("record %s: %w", recordID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find record: %w", err)
	}
	return record, nil
}

// FindActiveBySubject fetches up to two rows so a second active record (a
// data-integrity violation) is observed and surfaced rather than hidden by a
// LIMIT 1.
func (s *PostgresStore) FindActiveBySubject(ctx context.Context, kind models.Kind, subjectID id.SubjectID) (*models.Record, error) {
	query := selectRecords + `
		WHERE kind = $1 AND subject_id = $2 AND active
		LIMIT 2
	`
	records, err := s.queryRecords(ctx, query, kind.String(), uuid.UUID(subjectID))
	if err != nil {
		return nil, fmt.Errorf("find active record: %w", err)
	}
	switch len(records) {
	case 0:
		return nil, fmt.Errorf("no active %s record for subject %s: %w", kind, subjectID, sentinel.ErrNotFound)
	case 1:
		return records[0], nil
	default:
		return nil, fmt.Errorf("multiple active %s records for subject %s: %w",
			kind, subjectID, sentinel.ErrInvalidState)
	}
}

func (s *PostgresStore) FindAllBySubject(ctx context.Context, kind models.Kind, subjectID id.SubjectID) ([]*models.Record, error) {
	query := selectRecords + `
		WHERE kind = $1 AND subject_id = $2
		ORDER BY created_at DESC, id DESC
	`
	records, err := s.queryRecords(ctx, query, kind.String(), uuid.UUID(subjectID))
	if err != nil {
		return nil, fmt.Errorf("find records by subject: %w", err)
	}
	return records, nil
}

func (s *PostgresStore) FindAllActive(ctx context.Context, kind models.Kind) ([]*models.Record, error) {
	query := selectRecords + `
		WHERE kind = $1 AND active
		ORDER BY created_at DESC, id DESC
	`
	records, err := s.queryRecords(ctx, query, kind.String())
	if err != nil {
		return nil, fmt.Errorf("find active records: %w", err)
	}
	return records, nil
}

func (s *PostgresStore) FindStaleActive(ctx context.Context, now time.Time) ([]*models.Record, error) {
	query := selectRecords + `
		WHERE active AND deadline <= $1
		ORDER BY deadline ASC
	`
	records, err := s.queryRecords(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("find stale active records: %w", err)
	}
	return records, nil
}

// FindByIDs retrieves records in bulk, for admin views joining settlement
// data back onto records. Missing IDs are skipped, not an error.
func (s *PostgresStore) FindByIDs(ctx context.Context, recordIDs []id.RecordID) ([]*models.Record, error) {
	if len(recordIDs) == 0 {
		return nil, nil
	}
	raw := make([]uuid.UUID, len(recordIDs))
	for i, recordID := range recordIDs {
		raw[i] = uuid.UUID(recordID)
	}
	query := selectRecords + ` WHERE id = ANY($1) ORDER BY created_at DESC, id DESC`
	records, err := s.queryRecords(ctx, query, pq.Array(raw))
	if err != nil {
		return nil, fmt.Errorf("find records by ids: %w", err)
	}
	return records, nil
}

// TransitionToInactive is the conditional compare-and-set write that makes
// concurrent sweepers and the gate's self-heal path race-safe: the WHERE
// clause guarantees at most one caller observes rows=1.
func (s *PostgresStore) TransitionToInactive(ctx context.Context, recordID id.RecordID) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE expirable_records SET active = FALSE WHERE id = $1 AND active`,
		uuid.UUID(recordID),
	)
	if err != nil {
		return false, fmt.Errorf("transition record: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition record rows affected: %w", err)
	}
	return rows > 0, nil
}

const selectRecords = `
	SELECT id, kind, subject_id, deadline, active, payload, created_at
	FROM expirable_records
`

type recordRow interface {
	Scan(dest ...any) error
}

func scanRecord(row recordRow) (*models.Record, error) {
	var (
		record    models.Record
		recordID  uuid.UUID
		kind      string
		subjectID uuid.UUID
		payload   []byte
	)
	if err := row.Scan(&recordID, &kind, &subjectID, &record.Deadline, &record.Active, &payload, &record.CreatedAt); err != nil {
		return nil, err
	}
	record.ID = id.RecordID(recordID)
	record.Kind = models.Kind(kind)
	record.SubjectID = id.SubjectID(subjectID)
	if len(payload) > 0 {
		record.Payload = json.RawMessage(payload)
	}
	return &record, nil
}

func (s *PostgresStore) queryRecords(ctx context.Context, query string, args ...any) ([]*models.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

func nullJSON(payload json.RawMessage) any {
	if len(payload) == 0 {
		return nil
	}
	return []byte(payload)
}

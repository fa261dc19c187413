package validation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/retrouvio/retrouvio/internal/perm"
)

// PGRepository provides PostgreSQL backed persistence for action records.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const recordColumns = `id, action_type, requested_by, details, status, approved_by, rejected_by, comment, created_at, resolved_at`

// Insert appends a new record to the ledger.
func (r *PGRepository) Insert(ctx context.Context, record Record) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO action_records
(id, action_type, requested_by, details, status, approved_by, rejected_by, comment, created_at, resolved_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		record.ID, string(record.ActionType), record.RequestedBy, record.Details,
		string(record.Status), record.ApprovedBy, record.RejectedBy, record.Comment,
		record.CreatedAt, record.ResolvedAt)
	return err
}

// Get fetches one record by id.
func (r *PGRepository) Get(ctx context.Context, id uuid.UUID) (Record, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM action_records WHERE id = $1`, id)
	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	return record, nil
}

// Resolve transitions a pending record to a terminal state. The status guard
// in the UPDATE makes the transition happen at most once; a second resolution
// attempt matches zero rows and reports ErrAlreadyResolved.
func (r *PGRepository) Resolve(ctx context.Context, id uuid.UUID, to Status, resolver uuid.UUID, comment string, at time.Time) (Record, error) {
	column := "approved_by"
	if to == StatusRejected {
		column = "rejected_by"
	}
	row := r.pool.QueryRow(ctx, `UPDATE action_records
SET status = $2, `+column+` = $3, comment = $4, resolved_at = $5
WHERE id = $1 AND status = 'pending'
RETURNING `+recordColumns, id, string(to), resolver, comment, at)
	record, err := scanRecord(row)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Record{}, err
	}
	// Nothing matched: either the record is gone or it is already terminal.
	if _, getErr := r.Get(ctx, id); getErr != nil {
		return Record{}, getErr
	}
	return Record{}, ErrAlreadyResolved
}

// ListByActor returns an actor's audit trail, newest first, plus the total.
func (r *PGRepository) ListByActor(ctx context.Context, actorID uuid.UUID, limit, offset int) ([]Record, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM action_records WHERE requested_by = $1`, actorID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+recordColumns+`
FROM action_records WHERE requested_by = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, actorID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	records, err := collectRecords(rows)
	return records, total, err
}

// ListByStatus returns records in the given state, oldest first, plus the total.
func (r *PGRepository) ListByStatus(ctx context.Context, status Status, limit, offset int) ([]Record, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM action_records WHERE status = $1`, string(status)).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+recordColumns+`
FROM action_records WHERE status = $1 ORDER BY created_at ASC LIMIT $2 OFFSET $3`, string(status), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	records, err := collectRecords(rows)
	return records, total, err
}

func collectRecords(rows pgx.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		record     Record
		actionType string
		status     string
	)
	if err := row.Scan(&record.ID, &actionType, &record.RequestedBy, &record.Details,
		&status, &record.ApprovedBy, &record.RejectedBy, &record.Comment,
		&record.CreatedAt, &record.ResolvedAt); err != nil {
		return Record{}, err
	}
	record.ActionType = perm.ActionType(actionType)
	record.Status = Status(status)
	return record, nil
}

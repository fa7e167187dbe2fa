package job

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/ahmethakanbesel/riksbank-cache/internal/apperror"
	domain "github.com/ahmethakanbesel/riksbank-cache/internal/job"
)

const (
	dateFormat = time.DateOnly
	columns    = `id, currencies, start_date, end_date, status, error, records_count, created_at, updated_at`
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*domain.Job, error) {
	j := &domain.Job{}
	var currencies, startStr, endStr, status, createdStr, updatedStr string
	var dbErr sql.NullString

	if err := row.Scan(
		&j.ID, &currencies, &startStr, &endStr, &status, &dbErr,
		&j.RecordsCount, &createdStr, &updatedStr,
	); err != nil {
		return nil, err
	}

	j.Currencies = domain.SplitCurrencies(currencies)
	j.Status = domain.Status(status)
	if dbErr.Valid {
		j.Error = dbErr.String
	}
	j.StartDate, _ = time.Parse(dateFormat, startStr)
	j.EndDate, _ = time.Parse(dateFormat, endStr)
	j.CreatedAt, _ = time.Parse(time.RFC3339, createdStr)
	j.UpdatedAt, _ = time.Parse(time.RFC3339, updatedStr)
	return j, nil
}

func (r *Repository) Create(ctx context.Context, j *domain.Job) error {
	const query = `INSERT INTO jobs (currencies, start_date, end_date, status)
		VALUES (?, ?, ?, ?)`

	res, err := r.db.ExecContext(ctx, query,
		j.CurrencyList(),
		j.StartDate.Format(dateFormat), j.EndDate.Format(dateFormat),
		string(j.Status),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("create job: %w", domain.ErrActiveExists)
	}
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}

	j.ID, _ = res.LastInsertId()
	j.CreatedAt = time.Now().UTC()
	j.UpdatedAt = j.CreatedAt
	return nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

func (r *Repository) Update(ctx context.Context, j *domain.Job) error {
	const query = `UPDATE jobs SET status = ?, error = ?, records_count = ?,
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?`

	var jobErr sql.NullString
	if j.Error != "" {
		jobErr = sql.NullString{String: j.Error, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query, string(j.Status), jobErr, j.RecordsCount, j.ID)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	j.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *Repository) Get(ctx context.Context, id int64) (*domain.Job, error) {
	j, err := scanJob(r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM jobs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.New(apperror.NotFound, "job not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

func (r *Repository) List(ctx context.Context, status domain.Status) ([]domain.Job, error) {
	query := `SELECT ` + columns + ` FROM jobs WHERE 1=1`

	var args []any
	if status != "" {
		query += " AND status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY id DESC LIMIT 100"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, *j)
	}

	return jobs, rows.Err()
}

// FindActive returns the pending or running job for exactly this range, or nil.
func (r *Repository) FindActive(ctx context.Context, currencies, from, to string) (*domain.Job, error) {
	const query = `SELECT ` + columns + `
		FROM jobs
		WHERE currencies = ? AND start_date = ? AND end_date = ?
		  AND status IN ('pending', 'running')
		LIMIT 1`

	j, err := scanJob(r.db.QueryRowContext(ctx, query, currencies, from, to))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find active job: %w", err)
	}
	return j, nil
}

func (r *Repository) ClaimPending(ctx context.Context) (*domain.Job, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("claim pending: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM jobs WHERE status = 'pending' ORDER BY id ASC LIMIT 1`,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim pending: select: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE jobs SET status = 'running', updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now') WHERE id = ?`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("claim pending: update: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("claim pending: commit: %w", err)
	}

	return r.Get(ctx, id)
}

// RecoverStale re-queues jobs left running by a previous process.
func (r *Repository) RecoverStale(ctx context.Context) (int64, error) {
	const query = `UPDATE jobs SET status = 'pending', error = NULL,
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE status = 'running'`

	res, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("recover stale jobs: %w", err)
	}

	return res.RowsAffected()
}

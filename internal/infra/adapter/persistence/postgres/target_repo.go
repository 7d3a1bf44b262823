package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pagewatch/internal/domain/entity"
	"pagewatch/internal/repository"
)

// Executor is the subset of *sql.DB the repository uses. Both *sql.DB and
// *circuitbreaker.DBCircuitBreaker satisfy it, so callers can put the
// repository behind circuit breaker protection without changing it.
type Executor interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type TargetRepo struct{ db Executor }

func NewTargetRepo(db Executor) repository.TargetRepository {
	return &TargetRepo{db: db}
}

// scanTarget is a helper function to scan a target row
func scanTarget(rows *sql.Rows) (*entity.Target, error) {
	var target entity.Target
	if err := rows.Scan(
		&target.ID, &target.Name, &target.URL,
		&target.Mode, &target.Selector, &target.Pattern,
		&target.Active, &target.LastCheckedAt, &target.LastHash,
	); err != nil {
		return nil, err
	}
	return &target, nil
}

func (repo *TargetRepo) Get(ctx context.Context, id int64) (*entity.Target, error) {
	const query = `
SELECT id, name, url, mode, selector, pattern, active, last_checked_at, last_hash
FROM targets
WHERE id = $1
LIMIT 1`
	var target entity.Target
	err := repo.db.QueryRowContext(ctx, query, id).Scan(
		&target.ID, &target.Name, &target.URL,
		&target.Mode, &target.Selector, &target.Pattern,
		&target.Active, &target.LastCheckedAt, &target.LastHash,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return &target, nil
}

func (repo *TargetRepo) List(ctx context.Context) ([]*entity.Target, error) {
	const query = `
SELECT id, name, url, mode, selector, pattern, active, last_checked_at, last_hash
FROM targets
ORDER BY id ASC`
	rows, err := repo.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	defer func() { _ = rows.Close() }()

	// パフォーマンス最適化: メモリ再割り当てを削減するため事前割り当て
	targets := make([]*entity.Target, 0, 50)
	for rows.Next() {
		target, err := scanTarget(rows)
		if err != nil {
			return nil, fmt.Errorf("List: %w", err)
		}
		targets = append(targets, target)
	}
	return targets, rows.Err()
}

func (repo *TargetRepo) ListActive(ctx context.Context) ([]*entity.Target, error) {
	const query = `
SELECT id, name, url, mode, selector, pattern, active, last_checked_at, last_hash
FROM targets
WHERE active = TRUE
ORDER BY id ASC`
	rows, err := repo.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ListActive: %w", err)
	}
	defer func() { _ = rows.Close() }()

	// パフォーマンス最適化: メモリ再割り当てを削減するため事前割り当て
	activeTargets := make([]*entity.Target, 0, 50)
	for rows.Next() {
		target, err := scanTarget(rows)
		if err != nil {
			return nil, fmt.Errorf("ListActive: %w", err)
		}
		activeTargets = append(activeTargets, target)
	}
	return activeTargets, rows.Err()
}

func (repo *TargetRepo) Search(ctx context.Context, kw string) ([]*entity.Target, error) {
	const query = `
SELECT id, name, url, mode, selector, pattern, active, last_checked_at, last_hash
FROM targets
WHERE name ILIKE $1
OR url  ILIKE $1
ORDER BY id ASC`
	param := "%" + kw + "%"
	rows, err := repo.db.QueryContext(ctx, query, param)
	if err != nil {
		return nil, fmt.Errorf("Search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	targets := make([]*entity.Target, 0, 50)
	for rows.Next() {
		target, err := scanTarget(rows)
		if err != nil {
			return nil, fmt.Errorf("Search: %w", err)
		}
		targets = append(targets, target)
	}
	return targets, rows.Err()
}

func (repo *TargetRepo) Create(ctx context.Context, target *entity.Target) error {
	// Default to text mode if empty
	if target.Mode == "" {
		target.Mode = entity.ModeText
	}

	const query = `
INSERT INTO targets (name, url, mode, selector, pattern, active, last_checked_at, last_hash)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := repo.db.ExecContext(ctx, query,
		target.Name, target.URL,
		target.Mode, target.Selector, target.Pattern,
		target.Active, target.LastCheckedAt, target.LastHash,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (repo *TargetRepo) Update(ctx context.Context, target *entity.Target) error {
	// Default to text mode if empty
	if target.Mode == "" {
		target.Mode = entity.ModeText
	}

	const query = `
UPDATE targets SET
       name            = $1,
       url             = $2,
       mode            = $3,
       selector        = $4,
       pattern         = $5,
       active          = $6,
       last_checked_at = $7,
       last_hash       = $8
WHERE id = $9`
	res, err := repo.db.ExecContext(ctx, query,
		target.Name, target.URL,
		target.Mode, target.Selector, target.Pattern,
		target.Active, target.LastCheckedAt, target.LastHash,
		target.ID,
	)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("Update: no rows affected")
	}
	return nil
}

func (repo *TargetRepo) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM targets WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("Delete: no rows affected")
	}
	return nil
}

func (repo *TargetRepo) RecordCheck(ctx context.Context, id int64, checkedAt time.Time, hash string) error {
	const query = `UPDATE targets SET last_checked_at = $1, last_hash = $2 WHERE id = $3`
	_, err := repo.db.ExecContext(ctx, query, checkedAt, hash, id)
	return err
}

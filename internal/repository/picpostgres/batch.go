package picpostgres

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/AronAlan/buyi-picture/internal/model"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/dbpg"
)

type BatchTaskRepo struct {
	DB *dbpg.DB
}

func (b BatchTaskRepo) Create(ctx context.Context, t *model.BatchTask) error {
	query := `INSERT INTO batch_tasks (id, user_id, space_id, search_text, count,
	name_prefix, category, tags, status, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	return b.DB.QueryRowContext(ctx, query,
		t.ID, t.UserID, t.SpaceID, t.SearchText, t.Count,
		t.NamePrefix, t.Category, t.Tags, t.Status, t.CreatedAt, t.UpdatedAt).Err()
}

func (b BatchTaskRepo) Get(ctx context.Context, id uuid.UUID) (*model.BatchTask, error) {
	query := `SELECT id, user_id, space_id, search_text, count,
	name_prefix, category, tags, status, result, created_at, updated_at
	FROM batch_tasks
	WHERE id = $1`

	var (
		task   model.BatchTask
		result model.BatchResult
		hasRes sql.NullString
	)
	err := b.DB.QueryRowContext(ctx, query, id).Scan(
		&task.ID, &task.UserID, &task.SpaceID, &task.SearchText, &task.Count,
		&task.NamePrefix, &task.Category, &task.Tags, &task.Status, &hasRes,
		&task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, model.ErrTaskNotFound
		default:
			return nil, err // 500
		}
	}

	if hasRes.Valid {
		if err := result.Scan([]byte(hasRes.String)); err != nil {
			return nil, err
		}
		task.Result = &result
	}
	return &task, nil
}

func (b BatchTaskRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status model.TaskStatus) error {
	query := `UPDATE batch_tasks SET status = $1, updated_at = now() WHERE id = $2`

	res, err := b.DB.Master.ExecContext(ctx, query, status, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return model.ErrTaskNotFound
	}
	return nil
}

func (b BatchTaskRepo) SaveResult(ctx context.Context, id uuid.UUID, status model.TaskStatus, result *model.BatchResult) error {
	query := `UPDATE batch_tasks SET status = $1, result = $2, updated_at = now() WHERE id = $3`

	res, err := b.DB.Master.ExecContext(ctx, query, status, result, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return model.ErrTaskNotFound
	}
	return nil
}

// FetchOrphans re-arms tasks stuck in a non-terminal status after a worker
// crash: stale rows are flipped back to created, so the run loop accepts
// them again when the revival loop re-publishes the returned ids. Without
// the flip a crashed in_progress task would be redelivered forever and
// refused every time.
func (b BatchTaskRepo) FetchOrphans(ctx context.Context, limit int) ([]string, error) {
	query := `UPDATE batch_tasks SET status = $1, updated_at = now()
	WHERE id IN (
		SELECT id FROM batch_tasks
		WHERE status IN ($2, $3)
		AND updated_at < now() - interval '10 minutes'
		ORDER BY updated_at
		LIMIT $4
	)
	RETURNING id`

	rows, err := b.DB.QueryContext(ctx, query, model.TaskCreated, model.TaskCreated, model.TaskInProgress, limit)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("Error while closing *sql.Rows after scanning: %v", err)
		}
	}()

	orphans := make([]string, 0, limit)
	for rows.Next() {
		id := ""
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		orphans = append(orphans, id)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return orphans, nil
}

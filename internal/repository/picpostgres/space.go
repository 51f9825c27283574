package picpostgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/AronAlan/buyi-picture/internal/model"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/dbpg"
)

type SpaceRepo struct {
	DB *dbpg.DB
}

const spaceColumns = `id, user_id, name, level, max_count, max_size,
	total_count, total_size, lifecycle, created_at, updated_at`

var spaceSortColumns = map[string]string{
	"name":       "name",
	"level":      "level",
	"totalCount": "total_count",
	"totalSize":  "total_size",
	"createdAt":  "created_at",
	"updatedAt":  "updated_at",
}

func (s SpaceRepo) Create(ctx context.Context, space *model.Space) error {
	query := `INSERT INTO spaces (id, user_id, name, level, max_count, max_size,
	total_count, total_size, lifecycle, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	return s.DB.QueryRowContext(ctx, query,
		space.ID, space.UserID, space.Name, space.Level, space.MaxCount, space.MaxSize,
		space.TotalCount, space.TotalSize, space.Lifecycle, space.CreatedAt, space.UpdatedAt).Err()
}

func (s SpaceRepo) GetSpace(ctx context.Context, id uuid.UUID) (*model.Space, error) {
	query := fmt.Sprintf(`SELECT %s FROM spaces WHERE id = $1 AND lifecycle = $2`, spaceColumns)

	var space model.Space
	err := scanSpace(s.DB.QueryRowContext(ctx, query, id, model.LifecycleActive), &space)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, model.ErrSpaceNotFound
		default:
			return nil, err // 500
		}
	}
	return &space, nil
}

// ApplyUsage commits a usage delta only while it still fits the limits.
// The ledger serializes same-space holds within one process, but api and
// worker each run their own ledger over this table, so the row update is
// the cross-process arbiter: the loser of a race on the last slot gets the
// quota sentinel, never a silent overshoot. Negative deltas (returned
// quota) are floored at zero.
func (s SpaceRepo) ApplyUsage(ctx context.Context, id uuid.UUID, deltaCount, deltaSize int64) error {
	query := `UPDATE spaces
	SET total_count = GREATEST(total_count + $1, 0),
	    total_size = GREATEST(total_size + $2, 0),
	    updated_at = now()
	WHERE id = $3 AND lifecycle = $4
	AND total_count + $1 <= max_count
	AND total_size + $2 <= max_size`

	res, err := s.DB.Master.ExecContext(ctx, query, deltaCount, deltaSize, id, model.LifecycleActive)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 1 {
		return nil
	}

	// zero rows: the space is gone or the delta no longer fits; re-read to
	// name the limit that tripped
	space, err := s.GetSpace(ctx, id)
	if err != nil {
		return err
	}
	if space.TotalCount+deltaCount > space.MaxCount {
		return fmt.Errorf("%w: %d of %d used", model.ErrSpaceCountQuota, space.TotalCount, space.MaxCount)
	}
	if space.TotalSize+deltaSize > space.MaxSize {
		return fmt.Errorf("%w: %d of %d bytes used", model.ErrSpaceSizeQuota, space.TotalSize, space.MaxSize)
	}
	return fmt.Errorf("usage update for space %s did not apply", id)
}

func (s SpaceRepo) OwnerHasActive(ctx context.Context, userID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM spaces WHERE user_id = $1 AND lifecycle = $2)`

	var exists bool
	if err := s.DB.QueryRowContext(ctx, query, userID, model.LifecycleActive).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (s SpaceRepo) SoftDelete(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `UPDATE spaces SET lifecycle = $1, updated_at = now()
	WHERE id = $2 AND lifecycle = $3`

	res, err := s.DB.Master.ExecContext(ctx, query, model.LifecycleDeleted, id, model.LifecycleActive)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (s SpaceRepo) List(ctx context.Context, req *model.SpaceQueryRequest) ([]model.Space, int64, error) {
	conds := []string{"lifecycle = $1"}
	args := []any{model.LifecycleActive}

	add := func(cond string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if req.ID != nil {
		add("id = $%d", *req.ID)
	}
	if req.UserID != nil {
		add("user_id = $%d", *req.UserID)
	}
	if req.Name != "" {
		add("name ILIKE $%d", "%"+req.Name+"%")
	}
	if req.Level != nil {
		add("level = $%d", *req.Level)
	}

	where := " WHERE " + strings.Join(conds, " AND ")

	var total int64
	if err := s.DB.QueryRowContext(ctx, `SELECT count(*) FROM spaces`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	orderBy, err := orderClause(spaceSortColumns, req.SortField, req.SortOrder)
	if err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM spaces%s %s LIMIT $%d OFFSET $%d`,
		spaceColumns, where, orderBy, len(args)+1, len(args)+2)
	args = append(args, req.PageSize, (req.Current-1)*req.PageSize)

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}

	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("Error while closing *sql.Rows after scanning: %v", err)
		}
	}()

	spaces := make([]model.Space, 0, req.PageSize)
	for rows.Next() {
		var space model.Space
		if err := scanSpace(rows, &space); err != nil {
			return nil, 0, err
		}
		spaces = append(spaces, space)
	}

	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}

	return spaces, total, nil
}

func scanSpace(row rowScanner, space *model.Space) error {
	return row.Scan(&space.ID, &space.UserID, &space.Name, &space.Level, &space.MaxCount, &space.MaxSize,
		&space.TotalCount, &space.TotalSize, &space.Lifecycle, &space.CreatedAt, &space.UpdatedAt)
}

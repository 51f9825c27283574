// Package picpostgres implements the repositories on PostgreSQL
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

type PictureRepo struct {
	DB *dbpg.DB
}

const pictureColumns = `id, space_id, user_id, name, category, introduction, tags,
	pic_format, pic_width, pic_height, pic_scale, pic_size,
	orig_key, thumb_key, webp_key, fingerprint,
	review_status, review_message, reviewer_id, review_time,
	lifecycle, created_at, updated_at`

// sortable fields exposed to callers -> actual columns
var pictureSortColumns = map[string]string{
	"name":      "name",
	"picSize":   "pic_size",
	"picWidth":  "pic_width",
	"picHeight": "pic_height",
	"category":  "category",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}

func (p PictureRepo) Create(ctx context.Context, pic *model.Picture) error {
	query := `INSERT INTO pictures (id, space_id, user_id, name, category, introduction, tags,
	pic_format, pic_width, pic_height, pic_scale, pic_size,
	orig_key, thumb_key, webp_key, fingerprint,
	review_status, lifecycle, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	return p.DB.QueryRowContext(ctx, query,
		pic.ID, pic.SpaceID, pic.UserID, pic.Name, pic.Category, pic.Introduction, pic.Tags,
		pic.PicFormat, pic.PicWidth, pic.PicHeight, pic.PicScale, pic.PicSize,
		pic.OrigKey, pic.ThumbKey, pic.WebpKey, pic.Fingerprint,
		pic.ReviewStatus, pic.Lifecycle, pic.CreatedAt, pic.UpdatedAt).Err()
}

func (p PictureRepo) Get(ctx context.Context, id uuid.UUID) (*model.Picture, error) {
	query := fmt.Sprintf(`SELECT %s FROM pictures WHERE id = $1 AND lifecycle = $2`, pictureColumns)

	var pic model.Picture
	err := scanPicture(p.DB.QueryRowContext(ctx, query, id, model.LifecycleActive), &pic)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, model.ErrPictureNotFound
		default:
			return nil, err // 500
		}
	}
	return &pic, nil
}

// UpdateMeta touches mutable metadata only. Size, dimensions, format and
// the review block are owned by ingestion and the review workflow.
func (p PictureRepo) UpdateMeta(ctx context.Context, pic *model.Picture) error {
	query := `UPDATE pictures
	SET name = $1, category = $2, introduction = $3, tags = $4, updated_at = now()
	WHERE id = $5 AND lifecycle = $6`

	res, err := p.DB.Master.ExecContext(ctx, query,
		pic.Name, pic.Category, pic.Introduction, pic.Tags, pic.ID, model.LifecycleActive)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return model.ErrPictureNotFound
	}
	return nil
}

// SetReview performs the compare-and-set from pending to the target status.
// Returns false (without error) when no pending row matched, so the caller
// can tell a terminal picture from a missing one.
func (p PictureRepo) SetReview(ctx context.Context, pic *model.Picture) (bool, error) {
	query := `UPDATE pictures
	SET review_status = $1, review_message = $2, reviewer_id = $3, review_time = $4, updated_at = now()
	WHERE id = $5 AND lifecycle = $6 AND review_status = $7`

	res, err := p.DB.Master.ExecContext(ctx, query,
		pic.ReviewStatus, pic.ReviewMessage, pic.ReviewerID, pic.ReviewTime,
		pic.ID, model.LifecycleActive, model.ReviewPending)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// SoftDelete flips an active row to deleted and reports what was freed.
// Already-deleted rows return (nil, nil) so deletion stays idempotent;
// unknown ids return ErrPictureNotFound.
func (p PictureRepo) SoftDelete(ctx context.Context, id uuid.UUID) (*model.Picture, error) {
	query := `UPDATE pictures
	SET lifecycle = $1, updated_at = now()
	WHERE id = $2 AND lifecycle = $3
	RETURNING space_id, pic_size, orig_key, thumb_key, webp_key`

	pic := model.Picture{ID: id}
	err := p.DB.QueryRowContext(ctx, query, model.LifecycleDeleted, id, model.LifecycleActive).
		Scan(&pic.SpaceID, &pic.PicSize, &pic.OrigKey, &pic.ThumbKey, &pic.WebpKey)
	if err == nil {
		return &pic, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	// no active row flipped: either already deleted (no-op) or absent
	var exists bool
	if err := p.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM pictures WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, model.ErrPictureNotFound
	}
	return nil, nil
}

func (p PictureRepo) FingerprintExists(ctx context.Context, spaceID *uuid.UUID, fingerprint string) (bool, error) {
	var (
		query string
		args  []any
	)
	if spaceID != nil {
		query = `SELECT EXISTS (SELECT 1 FROM pictures
		WHERE fingerprint = $1 AND space_id = $2 AND lifecycle = $3)`
		args = []any{fingerprint, *spaceID, model.LifecycleActive}
	} else {
		query = `SELECT EXISTS (SELECT 1 FROM pictures
		WHERE fingerprint = $1 AND space_id IS NULL AND lifecycle = $2)`
		args = []any{fingerprint, model.LifecycleActive}
	}

	var exists bool
	if err := p.DB.QueryRowContext(ctx, query, args...).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (p PictureRepo) CountActiveInSpace(ctx context.Context, spaceID uuid.UUID) (int64, error) {
	query := `SELECT count(*) FROM pictures WHERE space_id = $1 AND lifecycle = $2`

	var n int64
	if err := p.DB.QueryRowContext(ctx, query, spaceID, model.LifecycleActive).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (p PictureRepo) List(ctx context.Context, req *model.PictureQueryRequest) ([]model.Picture, int64, error) {
	where, args := pictureFilters(req)

	var total int64
	countQuery := `SELECT count(*) FROM pictures` + where
	if err := p.DB.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	orderBy, err := orderClause(pictureSortColumns, req.SortField, req.SortOrder)
	if err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM pictures%s %s LIMIT $%d OFFSET $%d`,
		pictureColumns, where, orderBy, len(args)+1, len(args)+2)
	args = append(args, req.PageSize, (req.Current-1)*req.PageSize)

	rows, err := p.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}

	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("Error while closing *sql.Rows after scanning: %v", err)
		}
	}()

	pictures := make([]model.Picture, 0, req.PageSize)
	for rows.Next() {
		var pic model.Picture
		if err := scanPicture(rows, &pic); err != nil {
			return nil, 0, err
		}
		pictures = append(pictures, pic)
	}

	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}

	return pictures, total, nil
}

// pictureFilters assembles the AND-combined predicate; unset request
// fields are simply left out of it.
func pictureFilters(req *model.PictureQueryRequest) (string, []any) {
	conds := []string{"lifecycle = $1"}
	args := []any{model.LifecycleActive}

	add := func(cond string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if req.ID != nil {
		add("id = $%d", *req.ID)
	}
	if req.NoSpace {
		conds = append(conds, "space_id IS NULL")
	} else if req.SpaceID != nil {
		add("space_id = $%d", *req.SpaceID)
	}
	if req.UserID != nil {
		add("user_id = $%d", *req.UserID)
	}
	if req.Name != "" {
		add("name ILIKE $%d", "%"+req.Name+"%")
	}
	if req.Category != "" {
		add("category = $%d", req.Category)
	}
	if req.PicFormat != "" {
		add("pic_format = $%d", req.PicFormat)
	}
	if req.PicWidth != nil {
		add("pic_width = $%d", *req.PicWidth)
	}
	if req.PicHeight != nil {
		add("pic_height = $%d", *req.PicHeight)
	}
	if req.ReviewStatus != nil {
		add("review_status = $%d", *req.ReviewStatus)
	}
	if req.ReviewerID != nil {
		add("reviewer_id = $%d", *req.ReviewerID)
	}
	for _, tag := range req.Tags {
		add("tags::text LIKE $%d", `%"`+tag+`"%`)
	}
	if req.SearchText != "" {
		pattern := "%" + req.SearchText + "%"
		args = append(args, pattern)
		n := len(args)
		conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR introduction ILIKE $%d OR tags::text ILIKE $%d)", n, n, n))
	}

	return " WHERE " + strings.Join(conds, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPicture(row rowScanner, pic *model.Picture) error {
	return row.Scan(&pic.ID, &pic.SpaceID, &pic.UserID, &pic.Name, &pic.Category, &pic.Introduction, &pic.Tags,
		&pic.PicFormat, &pic.PicWidth, &pic.PicHeight, &pic.PicScale, &pic.PicSize,
		&pic.OrigKey, &pic.ThumbKey, &pic.WebpKey, &pic.Fingerprint,
		&pic.ReviewStatus, &pic.ReviewMessage, &pic.ReviewerID, &pic.ReviewTime,
		&pic.Lifecycle, &pic.CreatedAt, &pic.UpdatedAt)
}

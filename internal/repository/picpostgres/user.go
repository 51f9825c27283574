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

type UserRepo struct {
	DB *dbpg.DB
}

const userColumns = `id, account, name, avatar, profile, role, lifecycle, created_at, updated_at`

func (u UserRepo) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1 AND lifecycle = $2`, userColumns)

	var user model.User
	err := scanUser(u.DB.QueryRowContext(ctx, query, id, model.LifecycleActive), &user)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, model.ErrUserNotFound
		default:
			return nil, err // 500
		}
	}
	return &user, nil
}

// List returns all matching users; user sets are small enough that the
// page window is cut in-process by the query engine.
func (u UserRepo) List(ctx context.Context, req *model.UserQueryRequest) ([]model.User, error) {
	conds := []string{"lifecycle = $1"}
	args := []any{model.LifecycleActive}

	add := func(cond string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if req.Account != "" {
		add("account ILIKE $%d", "%"+req.Account+"%")
	}
	if req.Name != "" {
		add("name ILIKE $%d", "%"+req.Name+"%")
	}
	if req.Role != "" {
		add("role = $%d", req.Role)
	}

	query := fmt.Sprintf(`SELECT %s FROM users WHERE %s ORDER BY created_at DESC`,
		userColumns, strings.Join(conds, " AND "))

	rows, err := u.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("Error while closing *sql.Rows after scanning: %v", err)
		}
	}()

	users := make([]model.User, 0)
	for rows.Next() {
		var user model.User
		if err := scanUser(rows, &user); err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return users, nil
}

func scanUser(row rowScanner, user *model.User) error {
	return row.Scan(&user.ID, &user.Account, &user.Name, &user.Avatar, &user.Profile,
		&user.Role, &user.Lifecycle, &user.CreatedAt, &user.UpdatedAt)
}

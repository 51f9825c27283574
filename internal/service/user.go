package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/AronAlan/buyi-picture/internal/model"
	"github.com/AronAlan/buyi-picture/internal/mwlogger"
	"github.com/AronAlan/buyi-picture/internal/query"
	"github.com/AronAlan/buyi-picture/internal/repository"
	"github.com/google/uuid"
)

type UserService struct {
	users repository.UserRepo
}

func NewUserService(users repository.UserRepo) *UserService {
	return &UserService{users: users}
}

// userSorters - in-process sort comparators for the user directory
var userSorters = map[string]query.Comparator[model.User]{
	"account":   func(a, b model.User) int { return strings.Compare(a.Account, b.Account) },
	"name":      func(a, b model.User) int { return strings.Compare(a.Name, b.Name) },
	"createdAt": func(a, b model.User) int { return a.CreatedAt.Compare(b.CreatedAt) },
}

func (c *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, model.ErrIncorrectID
	}

	res, err := c.users.Get(ctx, uid)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return nil, err
		}
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch user %q from DB", id))
		return nil, model.ErrCommon500
	}

	return res, nil
}

// Query pages through the user directory. Admin only: the directory exposes
// accounts of every tenant.
func (c *UserService) Query(ctx context.Context, user *model.User, req *model.UserQueryRequest) (query.Page[model.User], error) {
	logger := mwlogger.LoggerFromContext(ctx)
	if !user.IsAdmin() {
		return query.Page[model.User]{}, model.ErrForbidden
	}
	if req == nil {
		req = &model.UserQueryRequest{}
	}
	normalizePage(&req.PageRequest)

	records, err := c.users.List(ctx, req)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch users list from DB")
		return query.Page[model.User]{}, model.ErrCommon500
	}

	return query.Paginate(records, req.Current, req.PageSize, req.SortField, req.SortOrder, userSorters)
}

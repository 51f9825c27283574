package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/AronAlan/buyi-picture/internal/model"
	"github.com/AronAlan/buyi-picture/internal/mwlogger"
	"github.com/AronAlan/buyi-picture/internal/query"
	"github.com/AronAlan/buyi-picture/internal/repository"
	"github.com/google/uuid"
)

type SpaceService struct {
	spaces   repository.SpaceRepo
	pictures repository.PictureRepo
}

func NewSpaceService(spaces repository.SpaceRepo, pictures repository.PictureRepo) *SpaceService {
	return &SpaceService{spaces: spaces, pictures: pictures}
}

// Create opens a new space for the caller. Limits are filled from the level
// table and are not client-settable; a user holds at most one active space
// and only admins may open spaces above the common level.
func (c *SpaceService) Create(ctx context.Context, user *model.User, req *model.SpaceAddRequest) (*model.Space, error) {
	logger := mwlogger.LoggerFromContext(ctx)
	if user == nil {
		return nil, model.ErrForbidden
	}
	if req == nil {
		return nil, model.ErrIncorrectQuery
	}

	level := model.LevelCommon
	if req.Level != nil {
		level = *req.Level
	}
	info, ok := model.SpaceLevels[level]
	if !ok {
		return nil, model.ErrIncorrectLevel
	}
	if level != model.LevelCommon && !user.IsAdmin() {
		return nil, model.ErrForbidden
	}

	name := req.Name
	if name == "" {
		name = user.Name + "'s space"
	}

	hasActive, err := c.spaces.OwnerHasActive(ctx, user.ID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to check owner's active spaces in DB")
		return nil, model.ErrCommon500
	}
	if hasActive {
		return nil, fmt.Errorf("%w: owner already has an active space", model.ErrDuplicate)
	}

	now := time.Now().UTC()
	space := &model.Space{
		ID:        uuid.New(),
		UserID:    user.ID,
		Name:      name,
		Level:     level,
		MaxCount:  info.MaxCount,
		MaxSize:   info.MaxSize,
		Lifecycle: model.LifecycleActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := c.spaces.Create(ctx, space); err != nil {
		logger.Error().Err(err).Msg("Failed to create space in DB")
		return nil, model.ErrCommon500
	}

	return space, nil
}

func (c *SpaceService) Get(ctx context.Context, id string) (*model.Space, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, model.ErrIncorrectID
	}

	res, err := c.spaces.GetSpace(ctx, uid)
	if err != nil {
		if errors.Is(err, model.ErrSpaceNotFound) {
			return nil, err
		}
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch space %q from DB", id))
		return nil, model.ErrCommon500
	}

	return res, nil
}

// Query pages through spaces. Non-admin callers only see their own.
func (c *SpaceService) Query(ctx context.Context, user *model.User, req *model.SpaceQueryRequest) (query.Page[model.Space], error) {
	logger := mwlogger.LoggerFromContext(ctx)
	if req == nil {
		req = &model.SpaceQueryRequest{}
	}
	normalizePage(&req.PageRequest)

	if !user.IsAdmin() {
		if user == nil {
			return query.Page[model.Space]{}, model.ErrForbidden
		}
		req.UserID = &user.ID
	}

	records, total, err := c.spaces.List(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrIncorrectSort), errors.Is(err, model.ErrIncorrectQuery):
			return query.Page[model.Space]{}, err
		default:
			logger.Error().Err(err).Msg("Failed to fetch spaces list from DB")
			return query.Page[model.Space]{}, model.ErrCommon500
		}
	}

	return query.NewPage(records, req.Current, req.PageSize, total)
}

// SoftDelete retires an empty space. A space still holding active pictures
// cannot be deleted; repeating the delete is a no-op.
func (c *SpaceService) SoftDelete(ctx context.Context, user *model.User, id string) error {
	logger := mwlogger.LoggerFromContext(ctx)
	if user == nil {
		return model.ErrForbidden
	}

	uid, err := uuid.Parse(id)
	if err != nil {
		return model.ErrIncorrectID
	}

	space, err := c.spaces.GetSpace(ctx, uid)
	switch {
	case err == nil:
		if space.UserID != user.ID && !user.IsAdmin() {
			return model.ErrForbidden
		}
	case errors.Is(err, model.ErrSpaceNotFound):
		// fall through: deleting an already-deleted space is a no-op
	default:
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch space %q from DB", id))
		return model.ErrCommon500
	}

	count, err := c.pictures.CountActiveInSpace(ctx, uid)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to count active pictures in space")
		return model.ErrCommon500
	}
	if count > 0 {
		return fmt.Errorf("%w: %d active pictures remain", model.ErrSpaceNotEmpty, count)
	}

	if _, err := c.spaces.SoftDelete(ctx, uid); err != nil {
		logger.Error().Err(err).Msg("Failed to delete space from DB")
		return model.ErrCommon500
	}

	return nil
}

// Levels lists the available space levels with their quota limits.
func (c *SpaceService) Levels() []model.SpaceLevelInfo {
	res := make([]model.SpaceLevelInfo, 0, len(model.SpaceLevels))
	for _, info := range model.SpaceLevels {
		res = append(res, info)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Value < res[j].Value })
	return res
}

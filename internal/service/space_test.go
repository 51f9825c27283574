package service

import (
	"context"
	"testing"

	"github.com/AronAlan/buyi-picture/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestSpaceService_Create(t *testing.T) {
	ctx := context.Background()
	pro := model.LevelPro
	bogus := model.SpaceLevel(42)

	tests := []struct {
		name      string
		user      *model.User
		req       *model.SpaceAddRequest
		hasActive bool
		wantLevel model.SpaceLevel
		wantErr   error
	}{
		{
			name:      "defaults to common level",
			user:      someUser(),
			req:       &model.SpaceAddRequest{Name: "my space"},
			wantLevel: model.LevelCommon,
		},
		{
			name:      "admin opens professional space",
			user:      someAdmin(),
			req:       &model.SpaceAddRequest{Name: "big space", Level: &pro},
			wantLevel: model.LevelPro,
		},
		{
			name:    "non-admin cannot go above common",
			user:    someUser(),
			req:     &model.SpaceAddRequest{Name: "big space", Level: &pro},
			wantErr: model.ErrForbidden,
		},
		{
			name:    "unknown level",
			user:    someUser(),
			req:     &model.SpaceAddRequest{Name: "x", Level: &bogus},
			wantErr: model.ErrIncorrectLevel,
		},
		{
			name:      "second active space refused",
			user:      someUser(),
			req:       &model.SpaceAddRequest{Name: "another"},
			hasActive: true,
			wantErr:   model.ErrDuplicate,
		},
		{
			name:    "anonymous forbidden",
			user:    nil,
			req:     &model.SpaceAddRequest{Name: "x"},
			wantErr: model.ErrForbidden,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var created *model.Space
			spaces := &mockSpaceRepo{
				hasActiveFn: func(ctx context.Context, userID uuid.UUID) (bool, error) {
					return tc.hasActive, nil
				},
				createFn: func(ctx context.Context, s *model.Space) error {
					created = s
					return nil
				},
			}
			svc := NewSpaceService(spaces, &mockPictureRepo{})

			space, err := svc.Create(ctx, tc.user, tc.req)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				require.Nil(t, created)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.wantLevel, space.Level)

			// limits come from the level table, never from the client
			info := model.SpaceLevels[tc.wantLevel]
			require.Equal(t, info.MaxCount, space.MaxCount)
			require.Equal(t, info.MaxSize, space.MaxSize)
			require.Equal(t, int64(0), space.TotalCount)
		})
	}
}

func TestSpaceService_SoftDelete(t *testing.T) {
	ctx := context.Background()
	user := someUser()
	spaceID := uuid.New()

	tests := []struct {
		name        string
		user        *model.User
		activePics  int64
		spaceOwner  uuid.UUID
		wantErr     error
		wantDeleted bool
	}{
		{
			name:        "empty space deleted",
			user:        user,
			spaceOwner:  user.ID,
			wantDeleted: true,
		},
		{
			name:       "non-empty space refused",
			user:       user,
			spaceOwner: user.ID,
			activePics: 2,
			wantErr:    model.ErrSpaceNotEmpty,
		},
		{
			name:       "foreign space forbidden",
			user:       user,
			spaceOwner: uuid.New(),
			wantErr:    model.ErrForbidden,
		},
		{
			name:        "admin deletes foreign empty space",
			user:        someAdmin(),
			spaceOwner:  user.ID,
			wantDeleted: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			deleted := false
			spaces := &mockSpaceRepo{
				getFn: func(ctx context.Context, id uuid.UUID) (*model.Space, error) {
					return &model.Space{ID: spaceID, UserID: tc.spaceOwner}, nil
				},
				softDeleteFn: func(ctx context.Context, id uuid.UUID) (bool, error) {
					deleted = true
					return true, nil
				},
			}
			pictures := &mockPictureRepo{
				countFn: func(ctx context.Context, id uuid.UUID) (int64, error) {
					return tc.activePics, nil
				},
			}
			svc := NewSpaceService(spaces, pictures)

			err := svc.SoftDelete(ctx, tc.user, spaceID.String())
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				require.False(t, deleted)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.wantDeleted, deleted)
		})
	}
}

func TestSpaceService_SoftDelete_Idempotent(t *testing.T) {
	ctx := context.Background()
	spaceID := uuid.New()

	spaces := &mockSpaceRepo{
		getFn: func(ctx context.Context, id uuid.UUID) (*model.Space, error) {
			return nil, model.ErrSpaceNotFound // already gone
		},
		softDeleteFn: func(ctx context.Context, id uuid.UUID) (bool, error) {
			return false, nil
		},
	}
	pictures := &mockPictureRepo{
		countFn: func(ctx context.Context, id uuid.UUID) (int64, error) {
			return 0, nil
		},
	}
	svc := NewSpaceService(spaces, pictures)

	require.NoError(t, svc.SoftDelete(ctx, someUser(), spaceID.String()))
}

func TestSpaceService_Query_OwnOnly(t *testing.T) {
	ctx := context.Background()
	user := someUser()

	var seen *model.SpaceQueryRequest
	spaces := &mockSpaceRepo{
		listFn: func(ctx context.Context, req *model.SpaceQueryRequest) ([]model.Space, int64, error) {
			seen = req
			return []model.Space{}, 0, nil
		},
	}
	svc := NewSpaceService(spaces, &mockPictureRepo{})

	// non-admin queries are pinned to the caller's own spaces
	other := uuid.New()
	_, err := svc.Query(ctx, user, &model.SpaceQueryRequest{UserID: &other})
	require.NoError(t, err)
	require.Equal(t, user.ID, *seen.UserID)

	// admin filter passes through
	_, err = svc.Query(ctx, someAdmin(), &model.SpaceQueryRequest{UserID: &other})
	require.NoError(t, err)
	require.Equal(t, other, *seen.UserID)
}

func TestSpaceService_Levels(t *testing.T) {
	svc := NewSpaceService(&mockSpaceRepo{}, &mockPictureRepo{})

	levels := svc.Levels()
	require.Len(t, levels, 3)
	require.Equal(t, model.LevelCommon, levels[0].Value)
	require.Equal(t, model.LevelFlagship, levels[2].Value)
	require.Equal(t, int64(100), levels[0].MaxCount)
}

func TestSpaceService_Get(t *testing.T) {
	ctx := context.Background()
	spaceID := uuid.New()

	spaces := &mockSpaceRepo{
		getFn: func(ctx context.Context, id uuid.UUID) (*model.Space, error) {
			return &model.Space{ID: id, Name: "mine"}, nil
		},
	}
	svc := NewSpaceService(spaces, &mockPictureRepo{})

	space, err := svc.Get(ctx, spaceID.String())
	require.NoError(t, err)
	require.Equal(t, spaceID, space.ID)

	_, err = svc.Get(ctx, "nope")
	require.ErrorIs(t, err, model.ErrIncorrectID)
}

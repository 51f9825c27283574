package transport

import (
	"context"
	"io"

	"github.com/AronAlan/buyi-picture/internal/model"
	"github.com/AronAlan/buyi-picture/internal/query"
	"github.com/gin-gonic/gin"
)

type mockPictureService struct {
	uploadFn     func(ctx context.Context, user *model.User, data *model.UploadData) (*model.Picture, error)
	getFn        func(ctx context.Context, id string) (*model.Picture, error)
	loadFileFn   func(ctx context.Context, id string, rendition string) (io.ReadCloser, string, error)
	updateFn     func(ctx context.Context, user *model.User, id string, req *model.PictureEditRequest) (*model.Picture, error)
	softDeleteFn func(ctx context.Context, user *model.User, id string) error
	queryFn      func(ctx context.Context, user *model.User, req *model.PictureQueryRequest) (query.Page[model.Picture], error)
	reviewFn     func(ctx context.Context, user *model.User, id string, req *model.PictureReviewRequest) error
}

func (m *mockPictureService) Upload(ctx context.Context, user *model.User, data *model.UploadData) (*model.Picture, error) {
	return m.uploadFn(ctx, user, data)
}

func (m *mockPictureService) Get(ctx context.Context, id string) (*model.Picture, error) {
	return m.getFn(ctx, id)
}

func (m *mockPictureService) LoadFile(ctx context.Context, id string, rendition string) (io.ReadCloser, string, error) {
	return m.loadFileFn(ctx, id, rendition)
}

func (m *mockPictureService) Update(ctx context.Context, user *model.User, id string, req *model.PictureEditRequest) (*model.Picture, error) {
	return m.updateFn(ctx, user, id, req)
}

func (m *mockPictureService) SoftDelete(ctx context.Context, user *model.User, id string) error {
	return m.softDeleteFn(ctx, user, id)
}

func (m *mockPictureService) Query(ctx context.Context, user *model.User, req *model.PictureQueryRequest) (query.Page[model.Picture], error) {
	return m.queryFn(ctx, user, req)
}

func (m *mockPictureService) Review(ctx context.Context, user *model.User, id string, req *model.PictureReviewRequest) error {
	return m.reviewFn(ctx, user, id, req)
}

//----------------------------------

type mockSpaceService struct {
	createFn     func(ctx context.Context, user *model.User, req *model.SpaceAddRequest) (*model.Space, error)
	getFn        func(ctx context.Context, id string) (*model.Space, error)
	queryFn      func(ctx context.Context, user *model.User, req *model.SpaceQueryRequest) (query.Page[model.Space], error)
	softDeleteFn func(ctx context.Context, user *model.User, id string) error
}

func (m *mockSpaceService) Create(ctx context.Context, user *model.User, req *model.SpaceAddRequest) (*model.Space, error) {
	return m.createFn(ctx, user, req)
}

func (m *mockSpaceService) Get(ctx context.Context, id string) (*model.Space, error) {
	return m.getFn(ctx, id)
}

func (m *mockSpaceService) Query(ctx context.Context, user *model.User, req *model.SpaceQueryRequest) (query.Page[model.Space], error) {
	return m.queryFn(ctx, user, req)
}

func (m *mockSpaceService) SoftDelete(ctx context.Context, user *model.User, id string) error {
	return m.softDeleteFn(ctx, user, id)
}

func (m *mockSpaceService) Levels() []model.SpaceLevelInfo {
	res := make([]model.SpaceLevelInfo, 0, len(model.SpaceLevels))
	for _, lvl := range []model.SpaceLevel{model.LevelCommon, model.LevelPro, model.LevelFlagship} {
		res = append(res, model.SpaceLevels[lvl])
	}
	return res
}

//----------------------------------

type mockUserService struct {
	getFn   func(ctx context.Context, id string) (*model.User, error)
	queryFn func(ctx context.Context, user *model.User, req *model.UserQueryRequest) (query.Page[model.User], error)
}

func (m *mockUserService) Get(ctx context.Context, id string) (*model.User, error) {
	return m.getFn(ctx, id)
}

func (m *mockUserService) Query(ctx context.Context, user *model.User, req *model.UserQueryRequest) (query.Page[model.User], error) {
	return m.queryFn(ctx, user, req)
}

//----------------------------------

type mockBatchService struct {
	createTaskFn func(ctx context.Context, user *model.User, req *model.BatchRequest) (*model.BatchTask, error)
	getTaskFn    func(ctx context.Context, user *model.User, id string) (*model.BatchTask, error)
}

func (m *mockBatchService) CreateTask(ctx context.Context, user *model.User, req *model.BatchRequest) (*model.BatchTask, error) {
	return m.createTaskFn(ctx, user, req)
}

func (m *mockBatchService) GetTask(ctx context.Context, user *model.User, id string) (*model.BatchTask, error) {
	return m.getTaskFn(ctx, user, id)
}

func init() {
	gin.SetMode(gin.TestMode)
}

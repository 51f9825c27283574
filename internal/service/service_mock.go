package service

import (
	"context"
	"io"

	"github.com/AronAlan/buyi-picture/internal/model"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/retry"
)

type mockPictureRepo struct {
	createFn      func(ctx context.Context, p *model.Picture) error
	getFn         func(ctx context.Context, id uuid.UUID) (*model.Picture, error)
	updateMetaFn  func(ctx context.Context, p *model.Picture) error
	setReviewFn   func(ctx context.Context, p *model.Picture) (bool, error)
	softDeleteFn  func(ctx context.Context, id uuid.UUID) (*model.Picture, error)
	fingerprintFn func(ctx context.Context, spaceID *uuid.UUID, fp string) (bool, error)
	countFn       func(ctx context.Context, spaceID uuid.UUID) (int64, error)
	listFn        func(ctx context.Context, req *model.PictureQueryRequest) ([]model.Picture, int64, error)
}

func (m *mockPictureRepo) Create(ctx context.Context, p *model.Picture) error {
	return m.createFn(ctx, p)
}

func (m *mockPictureRepo) Get(ctx context.Context, id uuid.UUID) (*model.Picture, error) {
	return m.getFn(ctx, id)
}

func (m *mockPictureRepo) UpdateMeta(ctx context.Context, p *model.Picture) error {
	return m.updateMetaFn(ctx, p)
}

func (m *mockPictureRepo) SetReview(ctx context.Context, p *model.Picture) (bool, error) {
	return m.setReviewFn(ctx, p)
}

func (m *mockPictureRepo) SoftDelete(ctx context.Context, id uuid.UUID) (*model.Picture, error) {
	return m.softDeleteFn(ctx, id)
}

func (m *mockPictureRepo) FingerprintExists(ctx context.Context, spaceID *uuid.UUID, fp string) (bool, error) {
	return m.fingerprintFn(ctx, spaceID, fp)
}

func (m *mockPictureRepo) CountActiveInSpace(ctx context.Context, spaceID uuid.UUID) (int64, error) {
	return m.countFn(ctx, spaceID)
}

func (m *mockPictureRepo) List(ctx context.Context, req *model.PictureQueryRequest) ([]model.Picture, int64, error) {
	return m.listFn(ctx, req)
}

//----------------------------------

type mockSpaceRepo struct {
	createFn     func(ctx context.Context, s *model.Space) error
	getFn        func(ctx context.Context, id uuid.UUID) (*model.Space, error)
	applyUsageFn func(ctx context.Context, id uuid.UUID, deltaCount, deltaSize int64) error
	hasActiveFn  func(ctx context.Context, userID uuid.UUID) (bool, error)
	softDeleteFn func(ctx context.Context, id uuid.UUID) (bool, error)
	listFn       func(ctx context.Context, req *model.SpaceQueryRequest) ([]model.Space, int64, error)
}

func (m *mockSpaceRepo) Create(ctx context.Context, s *model.Space) error {
	return m.createFn(ctx, s)
}

func (m *mockSpaceRepo) GetSpace(ctx context.Context, id uuid.UUID) (*model.Space, error) {
	return m.getFn(ctx, id)
}

func (m *mockSpaceRepo) ApplyUsage(ctx context.Context, id uuid.UUID, deltaCount, deltaSize int64) error {
	return m.applyUsageFn(ctx, id, deltaCount, deltaSize)
}

func (m *mockSpaceRepo) OwnerHasActive(ctx context.Context, userID uuid.UUID) (bool, error) {
	return m.hasActiveFn(ctx, userID)
}

func (m *mockSpaceRepo) SoftDelete(ctx context.Context, id uuid.UUID) (bool, error) {
	return m.softDeleteFn(ctx, id)
}

func (m *mockSpaceRepo) List(ctx context.Context, req *model.SpaceQueryRequest) ([]model.Space, int64, error) {
	return m.listFn(ctx, req)
}

//----------------------------------

type mockUserRepo struct {
	getFn  func(ctx context.Context, id uuid.UUID) (*model.User, error)
	listFn func(ctx context.Context, req *model.UserQueryRequest) ([]model.User, error)
}

func (m *mockUserRepo) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return m.getFn(ctx, id)
}

func (m *mockUserRepo) List(ctx context.Context, req *model.UserQueryRequest) ([]model.User, error) {
	return m.listFn(ctx, req)
}

//----------------------------------

type mockTaskRepo struct {
	createFn       func(ctx context.Context, t *model.BatchTask) error
	getFn          func(ctx context.Context, id uuid.UUID) (*model.BatchTask, error)
	updateStatusFn func(ctx context.Context, id uuid.UUID, status model.TaskStatus) error
	saveResultFn   func(ctx context.Context, id uuid.UUID, status model.TaskStatus, res *model.BatchResult) error
	fetchOrphansFn func(ctx context.Context, limit int) ([]string, error)
}

func (m *mockTaskRepo) Create(ctx context.Context, t *model.BatchTask) error {
	return m.createFn(ctx, t)
}

func (m *mockTaskRepo) Get(ctx context.Context, id uuid.UUID) (*model.BatchTask, error) {
	return m.getFn(ctx, id)
}

func (m *mockTaskRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status model.TaskStatus) error {
	return m.updateStatusFn(ctx, id, status)
}

func (m *mockTaskRepo) SaveResult(ctx context.Context, id uuid.UUID, status model.TaskStatus, res *model.BatchResult) error {
	return m.saveResultFn(ctx, id, status, res)
}

func (m *mockTaskRepo) FetchOrphans(ctx context.Context, limit int) ([]string, error) {
	return m.fetchOrphansFn(ctx, limit)
}

//----------------------------------

type mockStorage struct {
	getFn    func(ctx context.Context, key string) (io.ReadCloser, string, error)
	putFn    func(ctx context.Context, key string, size int64, ct string, r io.Reader) error
	deleteFn func(ctx context.Context, key string) error
}

func (m *mockStorage) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	return m.getFn(ctx, key)
}

func (m *mockStorage) Put(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
	if m.putFn == nil {
		return nil
	}
	return m.putFn(ctx, key, size, ct, r)
}

func (m *mockStorage) Delete(ctx context.Context, key string) error {
	if m.deleteFn == nil {
		return nil
	}
	return m.deleteFn(ctx, key)
}

//----------------------------------

type mockPublisher struct {
	sendFn func(ctx context.Context, strategy retry.Strategy, key []byte, v []byte) error
}

func (m *mockPublisher) SendWithRetry(ctx context.Context, strategy retry.Strategy, key []byte, v []byte) error {
	if m.sendFn == nil {
		return nil
	}
	return m.sendFn(ctx, strategy, key, v)
}

//----------------------------------

type mockSource struct {
	fetchFn func(ctx context.Context, searchText string, index int) ([]byte, string, error)
}

func (m *mockSource) Fetch(ctx context.Context, searchText string, index int) ([]byte, string, error) {
	return m.fetchFn(ctx, searchText, index)
}

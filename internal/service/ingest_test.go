package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/AronAlan/buyi-picture/internal/model"
	"github.com/AronAlan/buyi-picture/internal/quota"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/retry"
)

// fastRetry shrinks the queue/source retry strategy so failure paths do not
// sleep through real backoff delays
func fastRetry(t *testing.T) {
	t.Helper()
	old := retryStrategy
	retryStrategy = retry.Strategy{Attempts: 1, Delay: time.Millisecond}
	t.Cleanup(func() { retryStrategy = old })
}

// dedupPictureRepo - picture repo that actually remembers fingerprints, so
// in-batch duplicates surface the way they would against a real table
type dedupPictureRepo struct {
	mockPictureRepo
	mu      sync.Mutex
	known   map[string]bool
	created int
}

func newDedupPictureRepo() *dedupPictureRepo {
	r := &dedupPictureRepo{known: map[string]bool{}}
	r.fingerprintFn = func(ctx context.Context, spaceID *uuid.UUID, fp string) (bool, error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.known[fp], nil
	}
	r.createFn = func(ctx context.Context, p *model.Picture) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.known[p.Fingerprint] = true
		r.created++
		return nil
	}
	return r
}

func newBatchFixture(t *testing.T, space *model.Space, src ImageSource) (*BatchService, *dedupPictureRepo, *statefulSpaceStore, *mockTaskRepo) {
	t.Helper()

	spaces := &statefulSpaceStore{space: space}
	pictures := newDedupPictureRepo()
	catalog := NewPictureService(pictures, spaces, quota.NewLedger(spaces, 0), &mockStorage{})
	tasks := &mockTaskRepo{}
	svc := NewBatchService(tasks, spaces, catalog, src, &mockPublisher{})
	return svc, pictures, spaces, tasks
}

func TestBatchService_IngestBatch_QuotaCapacity(t *testing.T) {
	fastRetry(t)
	ctx := context.Background()
	userID := uuid.New()

	space := &model.Space{
		ID:       uuid.New(),
		UserID:   userID,
		MaxCount: 3,
		MaxSize:  100 << 20,
	}

	// every index yields a distinct image
	src := &mockSource{
		fetchFn: func(ctx context.Context, searchText string, index int) ([]byte, string, error) {
			return testJPEG(t, 100+10*index, 100), fmt.Sprintf("pic-%d", index), nil
		},
	}

	svc, pictures, spaces, _ := newBatchFixture(t, space, src)

	task := &model.BatchTask{
		ID:         uuid.New(),
		UserID:     userID,
		SpaceID:    &space.ID,
		SearchText: "cats",
		Count:      5,
	}

	res, err := svc.IngestBatch(ctx, task)
	require.NoError(t, err)

	// exactly as many succeed as the space has room for
	require.Len(t, res.Succeeded, 3)
	require.Len(t, res.Failed, 2)
	require.Equal(t, 0, res.Duplicates)
	require.Equal(t, 3, pictures.created)
	require.Equal(t, int64(3), spaces.space.TotalCount)
	for _, f := range res.Failed {
		require.Contains(t, f.Reason, "quota")
	}
}

func TestBatchService_IngestBatch_DuplicatesChargedOnce(t *testing.T) {
	fastRetry(t)
	ctx := context.Background()
	userID := uuid.New()

	space := &model.Space{
		ID:       uuid.New(),
		UserID:   userID,
		MaxCount: 10,
		MaxSize:  100 << 20,
	}

	same := testJPEG(t, 200, 200)
	src := &mockSource{
		fetchFn: func(ctx context.Context, searchText string, index int) ([]byte, string, error) {
			return same, "same-pic", nil
		},
	}

	svc, pictures, spaces, _ := newBatchFixture(t, space, src)

	task := &model.BatchTask{
		ID:         uuid.New(),
		UserID:     userID,
		SpaceID:    &space.ID,
		SearchText: "cats",
		Count:      5,
	}

	res, err := svc.IngestBatch(ctx, task)
	require.NoError(t, err)
	require.Len(t, res.Succeeded, 1)
	require.Equal(t, 4, res.Duplicates)
	require.Empty(t, res.Failed)
	require.Equal(t, 1, pictures.created)
	require.Equal(t, int64(1), spaces.space.TotalCount)
}

func TestBatchService_IngestBatch_SourceDown(t *testing.T) {
	fastRetry(t)
	ctx := context.Background()

	src := &mockSource{
		fetchFn: func(ctx context.Context, searchText string, index int) ([]byte, string, error) {
			return nil, "", errors.New("connection refused")
		},
	}

	svc, pictures, _, _ := newBatchFixture(t, nil, src)

	task := &model.BatchTask{
		ID:         uuid.New(),
		UserID:     uuid.New(),
		SearchText: "cats",
		Count:      3,
	}

	res, err := svc.IngestBatch(ctx, task)
	require.NoError(t, err)
	require.Empty(t, res.Succeeded)
	require.Len(t, res.Failed, 3)
	require.Equal(t, 0, pictures.created)
	for _, f := range res.Failed {
		require.Contains(t, f.Reason, model.ErrUpstreamFailed.Error())
	}
}

func TestBatchService_IngestBatch_NamePrefix(t *testing.T) {
	fastRetry(t)
	ctx := context.Background()
	userID := uuid.New()

	src := &mockSource{
		fetchFn: func(ctx context.Context, searchText string, index int) ([]byte, string, error) {
			return testJPEG(t, 100+10*index, 100), "ignored", nil
		},
	}

	spaces := &statefulSpaceStore{}
	pictures := newDedupPictureRepo()
	var names []string
	baseCreate := pictures.createFn
	pictures.createFn = func(ctx context.Context, p *model.Picture) error {
		names = append(names, p.Name)
		return baseCreate(ctx, p)
	}
	catalog := NewPictureService(pictures, spaces, quota.NewLedger(spaces, 0), &mockStorage{})
	svc := NewBatchService(&mockTaskRepo{}, spaces, catalog, src, &mockPublisher{})

	task := &model.BatchTask{
		ID:         uuid.New(),
		UserID:     userID,
		SearchText: "cats",
		Count:      2,
		NamePrefix: "kitty",
	}

	res, err := svc.IngestBatch(ctx, task)
	require.NoError(t, err)
	require.Len(t, res.Succeeded, 2)
	require.Equal(t, []string{"kitty 1", "kitty 2"}, names)
}

func TestBatchService_RunTask(t *testing.T) {
	fastRetry(t)
	ctx := context.Background()
	taskID := uuid.New()

	tests := []struct {
		name       string
		status     model.TaskStatus
		sourceErr  error
		wantErr    bool
		wantStatus model.TaskStatus
	}{
		{
			name:       "fresh task runs to done",
			status:     model.TaskCreated,
			wantStatus: model.TaskDone,
		},
		{
			name:   "done task is a no-op",
			status: model.TaskDone,
		},
		{
			name:    "in-progress task is not re-run",
			status:  model.TaskInProgress,
			wantErr: true,
		},
		{
			name:       "all items failing marks the task failed",
			status:     model.TaskCreated,
			sourceErr:  errors.New("source down"),
			wantStatus: model.TaskFailed,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var savedStatus model.TaskStatus
			var savedResult *model.BatchResult

			tasks := &mockTaskRepo{
				getFn: func(ctx context.Context, id uuid.UUID) (*model.BatchTask, error) {
					return &model.BatchTask{
						ID:         taskID,
						UserID:     uuid.New(),
						SearchText: "cats",
						Count:      2,
						Status:     tc.status,
					}, nil
				},
				updateStatusFn: func(ctx context.Context, id uuid.UUID, status model.TaskStatus) error {
					return nil
				},
				saveResultFn: func(ctx context.Context, id uuid.UUID, status model.TaskStatus, res *model.BatchResult) error {
					savedStatus = status
					savedResult = res
					return nil
				},
			}

			src := &mockSource{
				fetchFn: func(ctx context.Context, searchText string, index int) ([]byte, string, error) {
					if tc.sourceErr != nil {
						return nil, "", tc.sourceErr
					}
					return testJPEG(t, 100+10*index, 100), "pic", nil
				},
			}

			spaces := &statefulSpaceStore{}
			catalog := NewPictureService(newDedupPictureRepo(), spaces, quota.NewLedger(spaces, 0), &mockStorage{})
			svc := NewBatchService(tasks, spaces, catalog, src, &mockPublisher{})

			err := svc.RunTask(ctx, taskID.String())
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tc.wantStatus != "" {
				require.Equal(t, tc.wantStatus, savedStatus)
				require.NotNil(t, savedResult)
			}
		})
	}
}

func TestBatchService_CreateTask(t *testing.T) {
	ctx := context.Background()
	user := someUser()

	var created *model.BatchTask
	var publishedKey string
	tasks := &mockTaskRepo{
		createFn: func(ctx context.Context, task *model.BatchTask) error {
			created = task
			return nil
		},
	}
	pub := &mockPublisher{
		sendFn: func(ctx context.Context, strategy retry.Strategy, key []byte, v []byte) error {
			publishedKey = string(key)
			return nil
		},
	}

	spaces := &statefulSpaceStore{}
	catalog := NewPictureService(&mockPictureRepo{}, spaces, quota.NewLedger(spaces, 0), &mockStorage{})
	svc := NewBatchService(tasks, spaces, catalog, &mockSource{}, pub)

	task, err := svc.CreateTask(ctx, user, &model.BatchRequest{SearchText: "cats", Count: 99})
	require.NoError(t, err)
	require.NotNil(t, created)
	require.Equal(t, model.TaskCreated, task.Status)
	require.Equal(t, model.BatchCountMax, task.Count)
	require.Equal(t, task.ID.String(), publishedKey)
}

func TestBatchService_CreateTask_Validation(t *testing.T) {
	ctx := context.Background()
	spaces := &statefulSpaceStore{}
	catalog := NewPictureService(&mockPictureRepo{}, spaces, quota.NewLedger(spaces, 0), &mockStorage{})
	svc := NewBatchService(&mockTaskRepo{}, spaces, catalog, &mockSource{}, &mockPublisher{})

	_, err := svc.CreateTask(ctx, someUser(), &model.BatchRequest{SearchText: "   "})
	require.ErrorIs(t, err, model.ErrIncorrectQuery)

	_, err = svc.CreateTask(ctx, nil, &model.BatchRequest{SearchText: "cats"})
	require.ErrorIs(t, err, model.ErrForbidden)
}

func TestBatchService_CreateTask_ForeignSpace(t *testing.T) {
	ctx := context.Background()

	space := &model.Space{ID: uuid.New(), UserID: uuid.New()}
	spaces := &statefulSpaceStore{space: space}
	catalog := NewPictureService(&mockPictureRepo{}, spaces, quota.NewLedger(spaces, 0), &mockStorage{})
	svc := NewBatchService(&mockTaskRepo{}, spaces, catalog, &mockSource{}, &mockPublisher{})

	_, err := svc.CreateTask(ctx, someUser(), &model.BatchRequest{SearchText: "cats", SpaceID: &space.ID})
	require.ErrorIs(t, err, model.ErrForbidden)
}

func TestBatchService_GetTask_Permissions(t *testing.T) {
	ctx := context.Background()
	owner := someUser()
	taskID := uuid.New()

	tasks := &mockTaskRepo{
		getFn: func(ctx context.Context, id uuid.UUID) (*model.BatchTask, error) {
			return &model.BatchTask{ID: taskID, UserID: owner.ID, Status: model.TaskDone}, nil
		},
	}
	spaces := &statefulSpaceStore{}
	catalog := NewPictureService(&mockPictureRepo{}, spaces, quota.NewLedger(spaces, 0), &mockStorage{})
	svc := NewBatchService(tasks, spaces, catalog, &mockSource{}, &mockPublisher{})

	_, err := svc.GetTask(ctx, owner, taskID.String())
	require.NoError(t, err)

	_, err = svc.GetTask(ctx, someAdmin(), taskID.String())
	require.NoError(t, err)

	_, err = svc.GetTask(ctx, someUser(), taskID.String())
	require.ErrorIs(t, err, model.ErrForbidden)
}

func TestBatchService_ReviveOrphans(t *testing.T) {
	ctx := context.Background()

	orphans := []string{uuid.New().String(), uuid.New().String()}
	tasks := &mockTaskRepo{
		fetchOrphansFn: func(ctx context.Context, limit int) ([]string, error) {
			return orphans, nil
		},
	}

	var published []string
	pub := &mockPublisher{
		sendFn: func(ctx context.Context, strategy retry.Strategy, key []byte, v []byte) error {
			published = append(published, string(key))
			return nil
		},
	}

	spaces := &statefulSpaceStore{}
	catalog := NewPictureService(&mockPictureRepo{}, spaces, quota.NewLedger(spaces, 0), &mockStorage{})
	svc := NewBatchService(tasks, spaces, catalog, &mockSource{}, pub)

	svc.ReviveOrphans(ctx, 10)
	require.Equal(t, orphans, published)
}

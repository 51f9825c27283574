package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AronAlan/buyi-picture/internal/imageproc"
	"github.com/AronAlan/buyi-picture/internal/model"
	"github.com/AronAlan/buyi-picture/internal/mwlogger"
	"github.com/AronAlan/buyi-picture/internal/quota"
	"github.com/AronAlan/buyi-picture/internal/repository"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/retry"
)

// BatchService runs the batch-ingestion pipeline: the API side persists the
// task and queues it, the worker side pulls items from the external source
// and feeds them through the same ingest path single uploads take.
type BatchService struct {
	tasks     repository.BatchTaskRepo
	spaces    repository.SpaceRepo
	catalog   *PictureService
	source    ImageSource
	publisher TaskPublisher
}

func NewBatchService(tasks repository.BatchTaskRepo, spaces repository.SpaceRepo, catalog *PictureService, src ImageSource, pub TaskPublisher) *BatchService {
	return &BatchService{
		tasks:     tasks,
		spaces:    spaces,
		catalog:   catalog,
		source:    src,
		publisher: pub,
	}
}

// CreateTask validates the request, persists the task and queues it for the
// worker. The caller gets the task id back immediately.
func (c *BatchService) CreateTask(ctx context.Context, user *model.User, req *model.BatchRequest) (*model.BatchTask, error) {
	logger := mwlogger.LoggerFromContext(ctx)
	if user == nil {
		return nil, model.ErrForbidden
	}
	if req == nil {
		return nil, model.ErrIncorrectQuery
	}
	if err := normalizeBatch(req); err != nil {
		return nil, err
	}

	if req.SpaceID != nil {
		space, err := c.spaces.GetSpace(ctx, *req.SpaceID)
		if err != nil {
			return nil, err
		}
		if space.UserID != user.ID && !user.IsAdmin() {
			return nil, model.ErrForbidden
		}
	}

	now := time.Now().UTC()
	task := &model.BatchTask{
		ID:         uuid.New(),
		UserID:     user.ID,
		SpaceID:    req.SpaceID,
		SearchText: req.SearchText,
		Count:      req.Count,
		NamePrefix: req.NamePrefix,
		Category:   req.Category,
		Tags:       req.Tags,
		Status:     model.TaskCreated,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := c.tasks.Create(ctx, task); err != nil {
		logger.Error().Err(err).Msg("Failed to create batch task in DB")
		return nil, model.ErrCommon500
	}

	if err := c.publisher.SendWithRetry(ctx, retryStrategy, []byte(task.ID.String()), nil); err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to publish batch task %q to task-queue", task.ID))
		return nil, model.ErrCommon500
	}

	return task, nil
}

// GetTask returns the task with its result once the worker is through.
func (c *BatchService) GetTask(ctx context.Context, user *model.User, id string) (*model.BatchTask, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, model.ErrIncorrectID
	}

	task, err := c.tasks.Get(ctx, uid)
	if err != nil {
		if errors.Is(err, model.ErrTaskNotFound) {
			return nil, err
		}
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch batch task %q from DB", id))
		return nil, model.ErrCommon500
	}

	if user == nil || (task.UserID != user.ID && !user.IsAdmin()) {
		return nil, model.ErrForbidden
	}

	return task, nil
}

// RunTask is the worker entry point: it claims the task, runs the ingestion
// and stores the outcome on the task row.
func (c *BatchService) RunTask(ctx context.Context, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return model.ErrIncorrectID
	}

	task, err := c.tasks.Get(ctx, uid)
	if err != nil {
		return fmt.Errorf("worker failed to fetch batch task %q from DB: %w", id, err)
	}

	switch task.Status {
	case model.TaskDone:
		return nil
	case model.TaskInProgress:
		return fmt.Errorf("task %q is already in progress", id)
	}

	if err := c.tasks.UpdateStatus(ctx, uid, model.TaskInProgress); err != nil {
		return fmt.Errorf("failed to update status of task %q to `in_progress` in DB: %w", id, err)
	}

	result, err := c.IngestBatch(ctx, task)
	if err != nil {
		if uErr := c.tasks.UpdateStatus(ctx, uid, model.TaskFailed); uErr != nil {
			return fmt.Errorf("failed to set status of task %q to `failed` in DB: %w \nAFTER\n error while processing task: %w", id, uErr, err)
		}
		return fmt.Errorf("failed to process task %q: %w", id, err)
	}

	status := model.TaskDone
	if len(result.Succeeded) == 0 && len(result.Failed) > 0 {
		status = model.TaskFailed
	}
	if err := c.tasks.SaveResult(ctx, uid, status, result); err != nil {
		return fmt.Errorf("worker failed to save result of task %q to DB: %w", id, err)
	}
	return nil
}

// IngestBatch pulls Count candidates from the external source and ingests
// each one independently: a failed item is recorded and skipped. The one
// exception is a quota refusal, which fails all remaining items at once.
// Duplicates are counted but not charged.
func (c *BatchService) IngestBatch(ctx context.Context, task *model.BatchTask) (*model.BatchResult, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	// ownership was checked when the task was accepted; here the space only
	// has to still exist
	if task.SpaceID != nil {
		if _, err := c.spaces.GetSpace(ctx, *task.SpaceID); err != nil {
			return nil, err
		}
	}

	result := &model.BatchResult{
		Succeeded: []uuid.UUID{},
		Failed:    []model.BatchFailure{},
	}

	for i := 0; i < task.Count; i++ {
		if ctx.Err() != nil {
			// cancelled between items: nothing further is started, quota
			// committed for finished items stands
			break
		}

		var raw []byte
		var fetchedName string
		err := retry.Do(func() error {
			var fErr error
			raw, fetchedName, fErr = c.source.Fetch(ctx, task.SearchText, i)
			return fErr
		}, retryStrategy)
		if err != nil {
			result.Failed = append(result.Failed, model.BatchFailure{
				Reason: fmt.Sprintf("item %d: %v: %v", i, model.ErrUpstreamFailed, err),
			})
			continue
		}

		derived, err := imageproc.Derive(raw)
		if err != nil {
			result.Failed = append(result.Failed, model.BatchFailure{
				Reason: fmt.Sprintf("item %d: %v", i, err),
			})
			continue
		}

		fp := fingerprint(raw)
		exists, err := c.catalog.pictures.FingerprintExists(ctx, task.SpaceID, fp)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to run duplicate check in DB")
			result.Failed = append(result.Failed, model.BatchFailure{
				Reason: fmt.Sprintf("item %d: duplicate check failed", i),
			})
			continue
		}
		if exists {
			result.Duplicates++
			continue
		}

		var hold *quota.Reservation
		if task.SpaceID != nil {
			hold, err = c.catalog.ledger.Reserve(ctx, *task.SpaceID, 1, derived.Size)
			if err != nil {
				if errors.Is(err, model.ErrSpaceCountQuota) || errors.Is(err, model.ErrSpaceSizeQuota) {
					// the space is full: abort the rest of the batch instead
					// of racing a known-full space item by item
					for j := i; j < task.Count; j++ {
						result.Failed = append(result.Failed, model.BatchFailure{
							Reason: fmt.Sprintf("item %d: %v", j, err),
						})
					}
					break
				}
				result.Failed = append(result.Failed, model.BatchFailure{
					Reason: fmt.Sprintf("item %d: %v", i, err),
				})
				continue
			}
		}

		name := fetchedName
		if task.NamePrefix != "" {
			name = fmt.Sprintf("%s %d", task.NamePrefix, i+1)
		}

		pic, err := c.catalog.ingestOne(ctx, task.UserID, task.SpaceID, raw, derived, fp, ingestMeta{
			name:     name,
			category: task.Category,
			tags:     task.Tags,
		})
		if err != nil {
			c.catalog.ledger.Release(hold)
			result.Failed = append(result.Failed, model.BatchFailure{
				Reason: fmt.Sprintf("item %d: %v", i, err),
			})
			continue
		}

		if hold != nil {
			if err := c.catalog.ledger.Commit(ctx, hold); err != nil {
				logger.Error().Err(err).Msg("Failed to commit quota hold, rolling the item back")
				c.catalog.ledger.Release(hold)
				if _, dErr := c.catalog.pictures.SoftDelete(ctx, pic.ID); dErr != nil {
					logger.Error().Err(dErr).Msg("Failed to roll back picture row after commit failure")
				}
				c.catalog.deleteRenditions(ctx, pic)
				result.Failed = append(result.Failed, model.BatchFailure{
					Reason: fmt.Sprintf("item %d: %v", i, err),
				})
				continue
			}
		}

		result.Succeeded = append(result.Succeeded, pic.ID)
	}

	return result, nil
}

// ReviveOrphans re-queues tasks that were claimed but never finished, e.g.
// after a worker crash.
func (c *BatchService) ReviveOrphans(ctx context.Context, limit int) {
	logger := mwlogger.LoggerFromContext(ctx)

	orphans, err := c.tasks.FetchOrphans(ctx, limit)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load orphan tasks from DB")
		return
	}

	for _, v := range orphans {
		if err := c.publisher.SendWithRetry(ctx, retryStrategy, []byte(v), nil); err != nil {
			logger.Error().Err(err).Msg("Failed to publish orphan task to queue")
		}
	}
}

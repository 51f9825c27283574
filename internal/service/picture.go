package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/AronAlan/buyi-picture/internal/imageproc"
	"github.com/AronAlan/buyi-picture/internal/model"
	"github.com/AronAlan/buyi-picture/internal/mwlogger"
	"github.com/AronAlan/buyi-picture/internal/query"
	"github.com/AronAlan/buyi-picture/internal/quota"
	"github.com/AronAlan/buyi-picture/internal/repository"
	"github.com/AronAlan/buyi-picture/internal/storage"
	"github.com/google/uuid"
)

const thumbnailSide = 256

type PictureService struct {
	pictures repository.PictureRepo
	spaces   repository.SpaceRepo
	ledger   *quota.Ledger
	storage  PictureStorage
}

func NewPictureService(pictures repository.PictureRepo, spaces repository.SpaceRepo, ledger *quota.Ledger, strg PictureStorage) *PictureService {
	return &PictureService{
		pictures: pictures,
		spaces:   spaces,
		ledger:   ledger,
		storage:  strg,
	}
}

// Upload validates the multipart payload, charges the space quota if the
// picture is space-scoped and persists the original plus two derived
// renditions. The new picture always starts in pending review.
func (c *PictureService) Upload(ctx context.Context, user *model.User, data *model.UploadData) (*model.Picture, error) {
	logger := mwlogger.LoggerFromContext(ctx)
	if user == nil {
		return nil, model.ErrForbidden
	}
	if data == nil || data.File == nil || data.Size <= 0 || !model.InImageTypeMap[data.ContentType] {
		return nil, model.ErrEmptySource
	}

	raw, err := io.ReadAll(data.File)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to read uploaded file")
		return nil, model.ErrEmptySource
	}

	derived, err := imageproc.Derive(raw)
	if err != nil {
		return nil, err
	}

	if data.SpaceID != nil {
		space, err := c.spaces.GetSpace(ctx, *data.SpaceID)
		if err != nil {
			return nil, err
		}
		if space.UserID != user.ID && !user.IsAdmin() {
			return nil, model.ErrForbidden
		}
	}

	fp := fingerprint(raw)
	exists, err := c.pictures.FingerprintExists(ctx, data.SpaceID, fp)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to run duplicate check in DB")
		return nil, model.ErrCommon500
	}
	if exists {
		return nil, model.ErrDuplicate
	}

	var hold *quota.Reservation
	if data.SpaceID != nil {
		hold, err = c.ledger.Reserve(ctx, *data.SpaceID, 1, derived.Size)
		if err != nil {
			return nil, err
		}
	}

	pic, err := c.ingestOne(ctx, user.ID, data.SpaceID, raw, derived, fp, ingestMeta{
		name:     data.Name,
		category: data.Category,
		tags:     data.Tags,
	})
	if err != nil {
		c.ledger.Release(hold)
		return nil, err
	}

	if hold != nil {
		if err := c.ledger.Commit(ctx, hold); err != nil {
			logger.Error().Err(err).Msg("Failed to commit quota hold, rolling the upload back")
			c.ledger.Release(hold)
			if _, dErr := c.pictures.SoftDelete(ctx, pic.ID); dErr != nil {
				logger.Error().Err(dErr).Msg("Failed to roll back picture row after commit failure")
			}
			c.deleteRenditions(ctx, pic)
			// a commit can lose a cross-process race on the last slot; that
			// is a quota refusal, not an internal error
			if errors.Is(err, model.ErrSpaceCountQuota) || errors.Is(err, model.ErrSpaceSizeQuota) {
				return nil, err
			}
			return nil, model.ErrCommon500
		}
	}

	return pic, nil
}

type ingestMeta struct {
	name     string
	category string
	tags     model.StringSlice
}

// ingestOne stores the three renditions and the catalog row. Quota holds are
// the caller's responsibility. On any failure stored objects are removed.
func (c *PictureService) ingestOne(ctx context.Context, userID uuid.UUID, spaceID *uuid.UUID, raw []byte, derived *imageproc.Derived, fp string, meta ingestMeta) (*model.Picture, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	thumb, thumbSize, err := imageproc.Thumbnailer(bytes.NewReader(raw), thumbnailSide, derived.Format)
	if err != nil {
		return nil, err
	}
	variant, variantSize, err := imageproc.Variant(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	cType := model.GetCType[derived.Format]
	ext := model.GetImageFileExt[cType]

	pic := &model.Picture{
		ID:           id,
		SpaceID:      spaceID,
		UserID:       userID,
		Name:         meta.name,
		Category:     meta.category,
		Tags:         meta.tags,
		PicFormat:    derived.Name,
		PicWidth:     derived.Width,
		PicHeight:    derived.Height,
		PicScale:     derived.Scale,
		PicSize:      derived.Size,
		OrigKey:      storage.KeyPrefixOriginal + id.String() + ext,
		ThumbKey:     storage.KeyPrefixThumbnail + id.String() + ext,
		WebpKey:      storage.KeyPrefixWebp + id.String() + model.GetImageFileExt[model.JPEG],
		Fingerprint:  fp,
		ReviewStatus: model.ReviewPending,
		Lifecycle:    model.LifecycleActive,
	}
	if pic.Name == "" {
		pic.Name = id.String()
	}

	if err := c.storage.Put(ctx, pic.OrigKey, derived.Size, cType, bytes.NewReader(raw)); err != nil {
		logger.Error().Err(err).Msg("Failed to save original in Storage")
		return nil, model.ErrCommon500
	}
	if err := c.storage.Put(ctx, pic.ThumbKey, thumbSize, cType, thumb); err != nil {
		logger.Error().Err(err).Msg("Failed to save thumbnail in Storage")
		c.deleteRenditions(ctx, pic)
		return nil, model.ErrCommon500
	}
	if err := c.storage.Put(ctx, pic.WebpKey, variantSize, model.JPEG, variant); err != nil {
		logger.Error().Err(err).Msg("Failed to save compressed variant in Storage")
		c.deleteRenditions(ctx, pic)
		return nil, model.ErrCommon500
	}

	now := time.Now().UTC()
	pic.CreatedAt = now
	pic.UpdatedAt = now

	if err := c.pictures.Create(ctx, pic); err != nil {
		logger.Error().Err(err).Msg("Failed to create picture in DB")
		c.deleteRenditions(ctx, pic)
		return nil, model.ErrCommon500
	}

	return pic, nil
}

func (c *PictureService) Get(ctx context.Context, id string) (*model.Picture, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, model.ErrIncorrectID
	}

	res, err := c.pictures.Get(ctx, uid)
	if err != nil {
		if errors.Is(err, model.ErrPictureNotFound) {
			return nil, err
		}
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch picture %q from DB", id))
		return nil, model.ErrCommon500
	}

	return res, nil
}

// Renditions accepted by LoadFile.
const (
	RenditionOriginal  = "original"
	RenditionThumbnail = "thumbnail"
	RenditionWebp      = "webp"
)

// LoadFile streams one rendition of the picture from the object store.
func (c *PictureService) LoadFile(ctx context.Context, id string, rendition string) (io.ReadCloser, string, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	pic, err := c.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}

	var key string
	switch rendition {
	case RenditionOriginal, "":
		key = pic.OrigKey
	case RenditionThumbnail:
		key = pic.ThumbKey
	case RenditionWebp:
		key = pic.WebpKey
	default:
		return nil, "", model.ErrIncorrectQuery
	}

	data, cType, err := c.storage.Get(ctx, key)
	if err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch rendition %q of picture %q from Storage", rendition, id))
		return nil, "", model.ErrCommon500
	}
	return data, cType, nil
}

// Update edits mutable metadata only: the review block, dimensions and size
// never change through this path.
func (c *PictureService) Update(ctx context.Context, user *model.User, id string, req *model.PictureEditRequest) (*model.Picture, error) {
	logger := mwlogger.LoggerFromContext(ctx)
	if user == nil {
		return nil, model.ErrForbidden
	}
	if req == nil {
		return nil, model.ErrIncorrectQuery
	}

	pic, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if pic.UserID != user.ID && !user.IsAdmin() {
		return nil, model.ErrForbidden
	}

	if req.Name != nil {
		pic.Name = *req.Name
	}
	if req.Category != nil {
		pic.Category = *req.Category
	}
	if req.Introduction != nil {
		pic.Introduction = *req.Introduction
	}
	if req.Tags != nil {
		pic.Tags = *req.Tags
	}
	pic.UpdatedAt = time.Now().UTC()

	if err := c.pictures.UpdateMeta(ctx, pic); err != nil {
		if errors.Is(err, model.ErrPictureNotFound) {
			return nil, err
		}
		logger.Error().Err(err).Msg("Failed to update picture in DB")
		return nil, model.ErrCommon500
	}

	return pic, nil
}

// SoftDelete retires the picture and returns its quota to the space. Deleting
// an already-deleted picture is a no-op; the quota is returned exactly once.
func (c *PictureService) SoftDelete(ctx context.Context, user *model.User, id string) error {
	logger := mwlogger.LoggerFromContext(ctx)
	if user == nil {
		return model.ErrForbidden
	}

	uid, err := uuid.Parse(id)
	if err != nil {
		return model.ErrIncorrectID
	}

	pic, err := c.pictures.Get(ctx, uid)
	switch {
	case err == nil:
		if pic.UserID != user.ID && !user.IsAdmin() {
			return model.ErrForbidden
		}
	case errors.Is(err, model.ErrPictureNotFound):
		// fall through: the row may exist in deleted state, which is a no-op
	default:
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch picture %q from DB", id))
		return model.ErrCommon500
	}

	deleted, err := c.pictures.SoftDelete(ctx, uid)
	if err != nil {
		if errors.Is(err, model.ErrPictureNotFound) {
			return err
		}
		logger.Error().Err(err).Msg("Failed to delete picture from DB")
		return model.ErrCommon500
	}
	if deleted == nil {
		// already deleted earlier, quota was returned back then
		return nil
	}

	if deleted.SpaceID != nil {
		if err := c.ledger.Adjust(ctx, *deleted.SpaceID, -1, -deleted.PicSize); err != nil {
			logger.Error().Err(err).Msg(fmt.Sprintf("Failed to return quota of picture %q to space", id))
		}
	}

	// renditions are removed best-effort: the row is gone already and a
	// dangling object is cheaper than a resurrected picture
	c.deleteRenditions(ctx, deleted)

	return nil
}

func (c *PictureService) deleteRenditions(ctx context.Context, pic *model.Picture) {
	logger := mwlogger.LoggerFromContext(ctx)
	for _, key := range []string{pic.OrigKey, pic.ThumbKey, pic.WebpKey} {
		if key == "" {
			continue
		}
		if err := c.storage.Delete(ctx, key); err != nil {
			logger.Error().Err(err).Msg(fmt.Sprintf("Failed to delete object %q from Storage", key))
		}
	}
}

// Query pages through the catalog. Non-admin callers only see approved
// pictures unless they filter down to their own.
func (c *PictureService) Query(ctx context.Context, user *model.User, req *model.PictureQueryRequest) (query.Page[model.Picture], error) {
	logger := mwlogger.LoggerFromContext(ctx)
	if req == nil {
		req = &model.PictureQueryRequest{}
	}
	normalizePage(&req.PageRequest)

	if !user.IsAdmin() {
		ownOnly := user != nil && req.UserID != nil && *req.UserID == user.ID
		if !ownOnly {
			approved := model.ReviewApproved
			req.ReviewStatus = &approved
		}
	}

	records, total, err := c.pictures.List(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrIncorrectSort), errors.Is(err, model.ErrIncorrectQuery):
			return query.Page[model.Picture]{}, err
		default:
			logger.Error().Err(err).Msg("Failed to fetch pictures list from DB")
			return query.Page[model.Picture]{}, model.ErrCommon500
		}
	}

	return query.NewPage(records, req.Current, req.PageSize, total)
}

// Review decides a pending picture. Only pending pictures can be decided and
// a decision is final; both rules are enforced by a compare-and-set update.
func (c *PictureService) Review(ctx context.Context, user *model.User, id string, req *model.PictureReviewRequest) error {
	logger := mwlogger.LoggerFromContext(ctx)
	if !user.IsAdmin() {
		return model.ErrForbidden
	}
	if req == nil || (req.Status != model.ReviewApproved && req.Status != model.ReviewRejected) {
		return model.ErrIncorrectQuery
	}

	uid, err := uuid.Parse(id)
	if err != nil {
		return model.ErrIncorrectID
	}

	now := time.Now().UTC()
	decided := &model.Picture{
		ID:            uid,
		ReviewStatus:  req.Status,
		ReviewMessage: req.Message,
		ReviewerID:    &user.ID,
		ReviewTime:    &now,
	}

	ok, err := c.pictures.SetReview(ctx, decided)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to set review status in DB")
		return model.ErrCommon500
	}
	if ok {
		return nil
	}

	// the CAS missed: either the picture is gone or it was already decided
	if _, err := c.pictures.Get(ctx, uid); err != nil {
		if errors.Is(err, model.ErrPictureNotFound) {
			return err
		}
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch picture %q from DB", id))
		return model.ErrCommon500
	}
	return model.ErrInvalidTransition
}

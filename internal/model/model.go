// Package model provides data-structs for internal app-usage
package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

type (
	ReviewStatus string
	Lifecycle    string
	Role         string
	TaskStatus   string
	SpaceLevel   int
)

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

var ReviewStatusMap = map[ReviewStatus]bool{
	ReviewPending:  true,
	ReviewApproved: true,
	ReviewRejected: true,
}

const (
	LifecycleActive  Lifecycle = "active"
	LifecycleDeleted Lifecycle = "deleted"
)

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Batch-task lifecycle as seen by the worker.
const (
	TaskCreated    TaskStatus = "created"
	TaskInProgress TaskStatus = "in_progress"
	TaskFailed     TaskStatus = "failed"
	TaskDone       TaskStatus = "done"
)

const (
	LevelCommon   SpaceLevel = 0
	LevelPro      SpaceLevel = 1
	LevelFlagship SpaceLevel = 2
)

type SpaceLevelInfo struct {
	Value    SpaceLevel `json:"value"`
	Text     string     `json:"text"`
	MaxCount int64      `json:"maxCount"`
	MaxSize  int64      `json:"maxSize"`
}

// SpaceLevels - quota limits auto-filled on space creation, keyed by level
var SpaceLevels = map[SpaceLevel]SpaceLevelInfo{
	LevelCommon:   {Value: LevelCommon, Text: "common", MaxCount: 100, MaxSize: 100 << 20},
	LevelPro:      {Value: LevelPro, Text: "professional", MaxCount: 1000, MaxSize: 1 << 30},
	LevelFlagship: {Value: LevelFlagship, Text: "flagship", MaxCount: 10000, MaxSize: 10 << 30},
}

//---------------------

type User struct {
	ID        uuid.UUID `json:"id"`
	Account   string    `json:"account"`
	Name      string    `json:"name"`
	Avatar    string    `json:"avatar,omitempty"`
	Profile   string    `json:"profile,omitempty"`
	Role      Role      `json:"role"`
	Lifecycle Lifecycle `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

type Space struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"userId"`
	Name       string     `json:"name"`
	Level      SpaceLevel `json:"level"`
	MaxCount   int64      `json:"maxCount"`
	MaxSize    int64      `json:"maxSize"`
	TotalCount int64      `json:"totalCount"`
	TotalSize  int64      `json:"totalSize"`
	Lifecycle  Lifecycle  `json:"-"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

type Picture struct {
	ID           uuid.UUID   `json:"id"`
	SpaceID      *uuid.UUID  `json:"spaceId,omitempty"` // nil for unscoped/personal pictures
	UserID       uuid.UUID   `json:"userId"`
	Name         string      `json:"name"`
	Category     string      `json:"category,omitempty"`
	Introduction string      `json:"introduction,omitempty"`
	Tags         StringSlice `json:"tags,omitempty"`

	PicFormat string  `json:"picFormat"`
	PicWidth  int     `json:"picWidth"`
	PicHeight int     `json:"picHeight"`
	PicScale  float64 `json:"picScale"`
	PicSize   int64   `json:"picSize"`

	OrigKey  string `json:"-"`
	ThumbKey string `json:"-"`
	WebpKey  string `json:"-"`

	Fingerprint string `json:"-"`

	ReviewStatus  ReviewStatus `json:"reviewStatus"`
	ReviewMessage string       `json:"reviewMessage,omitempty"`
	ReviewerID    *uuid.UUID   `json:"reviewerId,omitempty"`
	ReviewTime    *time.Time   `json:"reviewTime,omitempty"`

	Lifecycle Lifecycle `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BatchTask - one queued batch-ingest request; the worker moves it through
// TaskStatus and stores the final BatchResult on the row.
type BatchTask struct {
	ID         uuid.UUID    `json:"id"`
	UserID     uuid.UUID    `json:"userId"`
	SpaceID    *uuid.UUID   `json:"spaceId,omitempty"`
	SearchText string       `json:"searchText"`
	Count      int          `json:"count"`
	NamePrefix string       `json:"namePrefix,omitempty"`
	Category   string       `json:"category,omitempty"`
	Tags       StringSlice  `json:"tags,omitempty"`
	Status     TaskStatus   `json:"status"`
	Result     *BatchResult `json:"result,omitempty"`
	CreatedAt  time.Time    `json:"createdAt"`
	UpdatedAt  time.Time    `json:"updatedAt"`
}

type BatchFailure struct {
	Reason string `json:"reason"`
}

type BatchResult struct {
	Succeeded  []uuid.UUID    `json:"succeeded"`
	Failed     []BatchFailure `json:"failed"`
	Duplicates int            `json:"duplicates"`
}

func (r *BatchResult) Scan(value any) error {
	if value == nil {
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("invalid type for BatchResult")
	}
	if err := json.Unmarshal(b, r); err != nil {
		return fmt.Errorf("failed to unmarshal JSONB to BatchResult: %w", err)
	}
	return nil
}

func (r BatchResult) Value() (driver.Value, error) {
	res, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal BatchResult to JSONB: %w", err)
	}
	return res, nil
}

// ------------------

var (
	ErrCommon500          error = errors.New("something went wrong. Try again later")       // 500
	ErrIncorrectQuery     error = errors.New("incorrect query parameters")                  // 400
	ErrIncorrectID        error = errors.New("incorrect UUID")                              // 400
	ErrIncorrectSort      error = errors.New("unknown sort field or order")                 // 400
	ErrIncorrectLevel     error = errors.New("space level doesn't exist")                   // 400
	ErrEmptySource        error = errors.New("empty/incorrect source image provided")       // 400
	ErrUnsupportedFormat  error = errors.New("unsupported image format")                    // 400
	ErrPictureNotFound    error = errors.New("specified picture doesn't exist")             // 404
	ErrSpaceNotFound      error = errors.New("specified space doesn't exist")               // 404
	ErrUserNotFound       error = errors.New("specified user doesn't exist")                // 404
	ErrTaskNotFound       error = errors.New("specified batch task doesn't exist")          // 404
	ErrForbidden          error = errors.New("no permission for this operation")            // 403
	ErrSpaceCountQuota    error = errors.New("space picture-count quota exceeded")          // 409
	ErrSpaceSizeQuota     error = errors.New("space byte-size quota exceeded")              // 409
	ErrInvalidTransition  error = errors.New("illegal review-status transition")            // 409
	ErrDuplicate          error = errors.New("duplicate content")                           // 409
	ErrSpaceNotEmpty      error = errors.New("space still holds pictures")                  // 409
	ErrReservationExpired error = errors.New("quota reservation expired or already closed") // 500
	ErrUpstreamFailed     error = errors.New("external image source unavailable")           // 502
)

//--------------------

const (
	JPEG = "image/jpeg"
	PNG  = "image/png"
	GIF  = "image/gif"
)

var GetImageFileExt = map[string]string{
	JPEG: ".jpg",
	PNG:  ".png",
	GIF:  ".gif",
}

var InImageTypeMap = map[string]bool{
	JPEG: true,
	PNG:  true,
	GIF:  true,
}

var GetCType = map[imaging.Format]string{
	imaging.JPEG: JPEG,
	imaging.GIF:  GIF,
	imaging.PNG:  PNG,
}

//--------------------

type StringSlice []string

func (s *StringSlice) Scan(value any) error {
	if value == nil {
		*s = []string{}
		return nil
	}

	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("invalid type for StringSlice")
	}

	if err := json.Unmarshal(b, s); err != nil {
		return fmt.Errorf("failed to unmarshal JSONB to []StringSlice: %w", err)
	}
	return nil
}

func (s StringSlice) Value() (driver.Value, error) {
	if len(s) == 0 || s == nil {
		return []byte(`[]`), nil
	}
	res, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal []StringSlice to JSONB: %w", err)
	}

	return res, nil
}

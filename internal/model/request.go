package model

import (
	"mime/multipart"

	"github.com/google/uuid"
)

// PageRequest - common pagination/sorting block embedded in query requests
type PageRequest struct {
	Current   int    `json:"current" form:"current"`
	PageSize  int    `json:"pageSize" form:"pageSize"`
	SortField string `json:"sortField,omitempty" form:"sortField"`
	SortOrder string `json:"sortOrder,omitempty" form:"sortOrder"`
}

const (
	OrderASC  = "ascend"
	OrderDESC = "descend"
)

type PictureQueryRequest struct {
	PageRequest
	ID           *uuid.UUID    `json:"id,omitempty"`
	SpaceID      *uuid.UUID    `json:"spaceId,omitempty"`
	NoSpace      bool          `json:"noSpace,omitempty"` // only pictures without a space
	UserID       *uuid.UUID    `json:"userId,omitempty"`
	Name         string        `json:"name,omitempty"`
	Category     string        `json:"category,omitempty"`
	Tags         []string      `json:"tags,omitempty"`
	PicFormat    string        `json:"picFormat,omitempty"`
	PicWidth     *int          `json:"picWidth,omitempty"`
	PicHeight    *int          `json:"picHeight,omitempty"`
	ReviewStatus *ReviewStatus `json:"reviewStatus,omitempty"`
	ReviewerID   *uuid.UUID    `json:"reviewerId,omitempty"`
	SearchText   string        `json:"searchText,omitempty"` // matched against name/introduction/tags
}

// PictureEditRequest - mutable metadata only; size/dimensions/format and
// review fields never change through edit.
type PictureEditRequest struct {
	Name         *string      `json:"name,omitempty"`
	Category     *string      `json:"category,omitempty"`
	Introduction *string      `json:"introduction,omitempty"`
	Tags         *StringSlice `json:"tags,omitempty"`
}

type PictureReviewRequest struct {
	Status  ReviewStatus `json:"reviewStatus"`
	Message string       `json:"reviewMessage,omitempty"`
}

type SpaceAddRequest struct {
	Name  string      `json:"name"`
	Level *SpaceLevel `json:"level,omitempty"`
}

type SpaceQueryRequest struct {
	PageRequest
	ID     *uuid.UUID  `json:"id,omitempty"`
	UserID *uuid.UUID  `json:"userId,omitempty"`
	Name   string      `json:"name,omitempty"`
	Level  *SpaceLevel `json:"level,omitempty"`
}

type UserQueryRequest struct {
	PageRequest
	Account string `json:"account,omitempty"`
	Name    string `json:"name,omitempty"`
	Role    Role   `json:"role,omitempty"`
}

// BatchRequest - batch-ingest parameters, shape mirrors the batch-upload API
type BatchRequest struct {
	SearchText string      `json:"searchText"`
	Count      int         `json:"count"`
	NamePrefix string      `json:"namePrefix,omitempty"`
	Category   string      `json:"category,omitempty"`
	Tags       StringSlice `json:"tags,omitempty"`
	SpaceID    *uuid.UUID  `json:"spaceId,omitempty"`
}

const (
	BatchCountDefault = 10
	BatchCountMax     = 20
)

// UploadData - one multipart upload as received by the transport layer
type UploadData struct {
	File        multipart.File
	Size        int64
	ContentType string
	Name        string
	Category    string
	Tags        StringSlice
	SpaceID     *uuid.UUID
}

// Package transport provides methods for processing requests from endpoints
package transport

import (
	"context"
	"io"
	"log"

	"github.com/AronAlan/buyi-picture/internal/model"
	"github.com/AronAlan/buyi-picture/internal/query"
	"github.com/AronAlan/buyi-picture/internal/response"
	"github.com/wb-go/wbf/ginext"
)

type PictureAPIService interface {
	Upload(ctx context.Context, user *model.User, data *model.UploadData) (*model.Picture, error)
	Get(ctx context.Context, id string) (*model.Picture, error)
	LoadFile(ctx context.Context, id string, rendition string) (io.ReadCloser, string, error)
	Update(ctx context.Context, user *model.User, id string, req *model.PictureEditRequest) (*model.Picture, error)
	SoftDelete(ctx context.Context, user *model.User, id string) error
	Query(ctx context.Context, user *model.User, req *model.PictureQueryRequest) (query.Page[model.Picture], error)
	Review(ctx context.Context, user *model.User, id string, req *model.PictureReviewRequest) error
}

type SpaceAPIService interface {
	Create(ctx context.Context, user *model.User, req *model.SpaceAddRequest) (*model.Space, error)
	Get(ctx context.Context, id string) (*model.Space, error)
	Query(ctx context.Context, user *model.User, req *model.SpaceQueryRequest) (query.Page[model.Space], error)
	SoftDelete(ctx context.Context, user *model.User, id string) error
	Levels() []model.SpaceLevelInfo
}

type UserAPIService interface {
	Get(ctx context.Context, id string) (*model.User, error)
	Query(ctx context.Context, user *model.User, req *model.UserQueryRequest) (query.Page[model.User], error)
}

type BatchAPIService interface {
	CreateTask(ctx context.Context, user *model.User, req *model.BatchRequest) (*model.BatchTask, error)
	GetTask(ctx context.Context, user *model.User, id string) (*model.BatchTask, error)
}

type Handler struct {
	pictures PictureAPIService
	spaces   SpaceAPIService
	users    UserAPIService
	batches  BatchAPIService
}

func NewHandler(pictures PictureAPIService, spaces SpaceAPIService, users UserAPIService, batches BatchAPIService) *Handler {
	return &Handler{
		pictures: pictures,
		spaces:   spaces,
		users:    users,
		batches:  batches,
	}
}

func (h Handler) SimplePinger(ctx *ginext.Context) {
	ctx.JSON(200, map[string]string{"message": "pong"})
}

// ---- pictures ----

func (h Handler) UploadPicture(ctx *ginext.Context) {
	user := identity(ctx)

	file, header, err := ctx.Request.FormFile("file")
	if err != nil {
		response.BadRequest(ctx, "file is required")
		return
	}
	defer closeFileFlow(file)

	spaceID, err := optionalUUID(ctx.PostForm("spaceId"))
	if err != nil {
		response.Error(ctx, model.ErrIncorrectID)
		return
	}

	data := &model.UploadData{
		File:        file,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
		Name:        ctx.PostForm("name"),
		Category:    ctx.PostForm("category"),
		Tags:        splitTags(ctx.PostForm("tags")),
		SpaceID:     spaceID,
	}
	if data.Name == "" {
		data.Name = header.Filename
	}

	res, err := h.pictures.Upload(ctx.Request.Context(), user, data)
	if err != nil {
		response.Error(ctx, err)
		return
	}

	response.Success(ctx, res)
}

func (h Handler) GetPicture(ctx *ginext.Context) {
	res, err := h.pictures.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		response.Error(ctx, err)
		return
	}
	response.Success(ctx, res)
}

func (h Handler) LoadPictureFile(ctx *ginext.Context) {
	id := ctx.Param("id")

	res, cType, err := h.pictures.LoadFile(ctx.Request.Context(), id, ctx.Query("rendition"))
	if err != nil {
		response.Error(ctx, err)
		return
	}
	defer closeFileFlow(res)

	ctx.Writer.Header().Set("Content-Type", cType)
	ctx.Writer.WriteHeader(200)
	if n, err := io.Copy(ctx.Writer, res); err != nil {
		log.Printf("Failed to write response at byte %d for file id %q: %v", n, id, err)
	}
}

func (h Handler) QueryPictures(ctx *ginext.Context) {
	var req model.PictureQueryRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.BadRequest(ctx, "failed to parse query body")
		return
	}

	res, err := h.pictures.Query(ctx.Request.Context(), identity(ctx), &req)
	if err != nil {
		response.Error(ctx, err)
		return
	}
	response.Success(ctx, res)
}

func (h Handler) EditPicture(ctx *ginext.Context) {
	var req model.PictureEditRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.BadRequest(ctx, "failed to parse edit body")
		return
	}

	res, err := h.pictures.Update(ctx.Request.Context(), identity(ctx), ctx.Param("id"), &req)
	if err != nil {
		response.Error(ctx, err)
		return
	}
	response.Success(ctx, res)
}

func (h Handler) ReviewPicture(ctx *ginext.Context) {
	var req model.PictureReviewRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.BadRequest(ctx, "failed to parse review body")
		return
	}

	if err := h.pictures.Review(ctx.Request.Context(), identity(ctx), ctx.Param("id"), &req); err != nil {
		response.Error(ctx, err)
		return
	}
	response.Success(ctx, nil)
}

func (h Handler) DeletePicture(ctx *ginext.Context) {
	if err := h.pictures.SoftDelete(ctx.Request.Context(), identity(ctx), ctx.Param("id")); err != nil {
		response.Error(ctx, err)
		return
	}
	response.Success(ctx, nil)
}

// ---- batch ingestion ----

func (h Handler) UploadBatch(ctx *ginext.Context) {
	var req model.BatchRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.BadRequest(ctx, "failed to parse batch body")
		return
	}

	res, err := h.batches.CreateTask(ctx.Request.Context(), identity(ctx), &req)
	if err != nil {
		response.Error(ctx, err)
		return
	}
	response.Success(ctx, res)
}

func (h Handler) GetBatchTask(ctx *ginext.Context) {
	res, err := h.batches.GetTask(ctx.Request.Context(), identity(ctx), ctx.Param("id"))
	if err != nil {
		response.Error(ctx, err)
		return
	}
	response.Success(ctx, res)
}

// ---- spaces ----

func (h Handler) CreateSpace(ctx *ginext.Context) {
	var req model.SpaceAddRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.BadRequest(ctx, "failed to parse space body")
		return
	}

	res, err := h.spaces.Create(ctx.Request.Context(), identity(ctx), &req)
	if err != nil {
		response.Error(ctx, err)
		return
	}
	response.Success(ctx, res)
}

func (h Handler) GetSpace(ctx *ginext.Context) {
	res, err := h.spaces.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		response.Error(ctx, err)
		return
	}
	response.Success(ctx, res)
}

func (h Handler) QuerySpaces(ctx *ginext.Context) {
	var req model.SpaceQueryRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.BadRequest(ctx, "failed to parse query body")
		return
	}

	res, err := h.spaces.Query(ctx.Request.Context(), identity(ctx), &req)
	if err != nil {
		response.Error(ctx, err)
		return
	}
	response.Success(ctx, res)
}

func (h Handler) DeleteSpace(ctx *ginext.Context) {
	if err := h.spaces.SoftDelete(ctx.Request.Context(), identity(ctx), ctx.Param("id")); err != nil {
		response.Error(ctx, err)
		return
	}
	response.Success(ctx, nil)
}

func (h Handler) SpaceLevels(ctx *ginext.Context) {
	response.Success(ctx, h.spaces.Levels())
}

// ---- users ----

func (h Handler) GetUser(ctx *ginext.Context) {
	res, err := h.users.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		response.Error(ctx, err)
		return
	}
	response.Success(ctx, res)
}

func (h Handler) QueryUsers(ctx *ginext.Context) {
	var req model.UserQueryRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.BadRequest(ctx, "failed to parse query body")
		return
	}

	res, err := h.users.Query(ctx.Request.Context(), identity(ctx), &req)
	if err != nil {
		response.Error(ctx, err)
		return
	}
	response.Success(ctx, res)
}

// RegisterRoutes wires the HTTP surface onto the engine.
func (h Handler) RegisterRoutes(engine *ginext.Engine) {
	engine.GET("/ping", h.SimplePinger)

	engine.POST("/api/pictures/upload", h.UploadPicture)
	engine.POST("/api/pictures/upload/batch", h.UploadBatch)
	engine.GET("/api/pictures/batch/:id", h.GetBatchTask)
	engine.POST("/api/pictures/query", h.QueryPictures)
	engine.GET("/api/pictures/:id", h.GetPicture)
	engine.GET("/api/pictures/:id/file", h.LoadPictureFile)
	engine.POST("/api/pictures/:id/edit", h.EditPicture)
	engine.POST("/api/pictures/:id/review", h.ReviewPicture)
	engine.DELETE("/api/pictures/:id", h.DeletePicture)

	engine.POST("/api/spaces", h.CreateSpace)
	engine.POST("/api/spaces/query", h.QuerySpaces)
	engine.GET("/api/spaces/levels", h.SpaceLevels)
	engine.GET("/api/spaces/:id", h.GetSpace)
	engine.DELETE("/api/spaces/:id", h.DeleteSpace)

	engine.POST("/api/users/query", h.QueryUsers)
	engine.GET("/api/users/:id", h.GetUser)
}

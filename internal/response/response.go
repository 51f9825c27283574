// Package response provides the uniform JSON envelope for all endpoints:
// a numeric code (0 = success), an optional payload and an optional message.
package response

import (
	"errors"
	"net/http"

	"github.com/AronAlan/buyi-picture/internal/model"
	"github.com/wb-go/wbf/ginext"
)

type ErrorCode int

const (
	OK ErrorCode = 0

	InvalidRequest      ErrorCode = 40001
	Forbidden           ErrorCode = 40301
	NotFound            ErrorCode = 40400
	Conflict            ErrorCode = 40900
	QuotaExceeded       ErrorCode = 40901
	InvalidTransition   ErrorCode = 40902
	InternalError       ErrorCode = 50000
	UpstreamUnavailable ErrorCode = 50201
)

type Response struct {
	Code ErrorCode `json:"code"`
	Data any       `json:"data,omitempty"`
	Msg  string    `json:"msg,omitempty"`
}

func Success(ctx *ginext.Context, data any) {
	ctx.JSON(http.StatusOK, Response{Code: OK, Data: data})
}

// Error maps a service-layer sentinel to its envelope code and HTTP status.
func Error(ctx *ginext.Context, err error) {
	code := codeOf(err)
	ctx.JSON(httpStatusOf(code), Response{Code: code, Msg: err.Error()})
}

func BadRequest(ctx *ginext.Context, msg string) {
	ctx.JSON(http.StatusBadRequest, Response{Code: InvalidRequest, Msg: msg})
}

func codeOf(err error) ErrorCode {
	switch {
	case errors.Is(err, model.ErrIncorrectQuery),
		errors.Is(err, model.ErrIncorrectID),
		errors.Is(err, model.ErrIncorrectSort),
		errors.Is(err, model.ErrIncorrectLevel),
		errors.Is(err, model.ErrEmptySource),
		errors.Is(err, model.ErrUnsupportedFormat):
		return InvalidRequest
	case errors.Is(err, model.ErrForbidden):
		return Forbidden
	case errors.Is(err, model.ErrPictureNotFound),
		errors.Is(err, model.ErrSpaceNotFound),
		errors.Is(err, model.ErrUserNotFound),
		errors.Is(err, model.ErrTaskNotFound):
		return NotFound
	case errors.Is(err, model.ErrSpaceCountQuota),
		errors.Is(err, model.ErrSpaceSizeQuota):
		return QuotaExceeded
	case errors.Is(err, model.ErrInvalidTransition):
		return InvalidTransition
	case errors.Is(err, model.ErrDuplicate),
		errors.Is(err, model.ErrSpaceNotEmpty):
		return Conflict
	case errors.Is(err, model.ErrUpstreamFailed):
		return UpstreamUnavailable
	default:
		return InternalError
	}
}

func httpStatusOf(code ErrorCode) int {
	switch code {
	case OK:
		return http.StatusOK
	case InvalidRequest:
		return http.StatusBadRequest
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Conflict, QuotaExceeded, InvalidTransition:
		return http.StatusConflict
	case UpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

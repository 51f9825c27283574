package transport

import (
	"io"
	"log"
	"strings"

	"github.com/AronAlan/buyi-picture/internal/model"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"
)

// identity builds the caller from gateway-injected headers. Authentication
// itself happens upstream; an absent or malformed id means anonymous.
func identity(ctx *ginext.Context) *model.User {
	idStr := ctx.Request.Header.Get("X-User-Id")
	if idStr == "" {
		return nil
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil
	}

	role := model.Role(ctx.Request.Header.Get("X-User-Role"))
	if role != model.RoleAdmin {
		role = model.RoleUser
	}

	return &model.User{ID: id, Role: role}
}

func optionalUUID(s string) (*uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func splitTags(s string) model.StringSlice {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make(model.StringSlice, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func closeFileFlow(res io.Closer) {
	if res == nil {
		return
	}
	if err := res.Close(); err != nil {
		log.Println("Handler failed to close fileflow:", err)
	}
}

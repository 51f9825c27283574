package service

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/AronAlan/buyi-picture/internal/model"
)

const (
	pageSizeDefault = 30
	pageSizeMax     = 100
	pageCurrentMax  = 1_000_000
)

// normalizePage fills paging defaults and caps oversized windows. The page
// number is capped too, so offset arithmetic downstream stays in range.
func normalizePage(req *model.PageRequest) {
	if req.Current <= 0 {
		req.Current = 1
	}
	if req.Current > pageCurrentMax {
		req.Current = pageCurrentMax
	}
	if req.PageSize <= 0 || req.PageSize > pageSizeMax {
		req.PageSize = pageSizeDefault
	}
	req.SortField = strings.TrimSpace(req.SortField)
	req.SortOrder = strings.TrimSpace(req.SortOrder)
}

// normalizeBatch fills the item-count default and caps it; searchText is the
// only required field.
func normalizeBatch(req *model.BatchRequest) error {
	req.SearchText = strings.TrimSpace(req.SearchText)
	if req.SearchText == "" {
		return model.ErrIncorrectQuery
	}
	if req.Count <= 0 {
		req.Count = model.BatchCountDefault
	}
	if req.Count > model.BatchCountMax {
		req.Count = model.BatchCountMax
	}
	return nil
}

// fingerprint is the content hash used for duplicate detection within a space.
func fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

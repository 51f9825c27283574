// Package query builds paged, optionally sorted views over record sets.
package query

import (
	"slices"

	"github.com/AronAlan/buyi-picture/internal/model"
)

type Page[T any] struct {
	Records  []T   `json:"records"`
	Current  int   `json:"current"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
	Pages    int   `json:"pages"`
}

// Comparator orders two records; negative means a before b.
type Comparator[T any] func(a, b T) int

// NewPage assembles a page around records already windowed elsewhere
// (e.g. by LIMIT/OFFSET in SQL). Total is the full filtered-set size.
func NewPage[T any](records []T, current, pageSize int, total int64) (Page[T], error) {
	if current <= 0 || pageSize <= 0 {
		return Page[T]{}, model.ErrIncorrectQuery
	}
	if records == nil {
		records = []T{}
	}
	return Page[T]{
		Records:  records,
		Current:  current,
		PageSize: pageSize,
		Total:    total,
		Pages:    pagesFor(total, pageSize),
	}, nil
}

// Paginate sorts records by the named field and cuts the requested window.
// Unknown sort fields and orders fail validation instead of being ignored,
// so callers never believe an unsupported sort was applied.
func Paginate[T any](records []T, current, pageSize int, sortField, sortOrder string, sorters map[string]Comparator[T]) (Page[T], error) {
	if current <= 0 || pageSize <= 0 {
		return Page[T]{}, model.ErrIncorrectQuery
	}

	if sortField != "" {
		cmp, ok := sorters[sortField]
		if !ok {
			return Page[T]{}, model.ErrIncorrectSort
		}
		switch sortOrder {
		case "", model.OrderASC:
		case model.OrderDESC:
			inner := cmp
			cmp = func(a, b T) int { return -inner(a, b) }
		default:
			return Page[T]{}, model.ErrIncorrectSort
		}
		records = slices.Clone(records)
		slices.SortStableFunc(records, cmp)
	} else if sortOrder != "" && sortOrder != model.OrderASC && sortOrder != model.OrderDESC {
		return Page[T]{}, model.ErrIncorrectSort
	}

	total := int64(len(records))

	// the offset is bounded before multiplying: a page number near the int
	// limit must land on an empty window, not overflow the slice index
	start := len(records)
	if current-1 <= len(records)/pageSize {
		if s := (current - 1) * pageSize; s < start {
			start = s
		}
	}
	end := len(records)
	if e := start + pageSize; e > start && e < end {
		end = e
	}

	window := make([]T, end-start)
	copy(window, records[start:end])

	return Page[T]{
		Records:  window,
		Current:  current,
		PageSize: pageSize,
		Total:    total,
		Pages:    pagesFor(total, pageSize),
	}, nil
}

func pagesFor(total int64, pageSize int) int {
	if total == 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}

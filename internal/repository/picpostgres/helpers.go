package picpostgres

import (
	"fmt"

	"github.com/AronAlan/buyi-picture/internal/model"
)

// orderClause validates the caller-facing sort field against the allowed
// column map. Unknown fields and orders are rejected instead of silently
// ignored.
func orderClause(columns map[string]string, sortField, sortOrder string) (string, error) {
	column := "created_at"
	direction := "DESC"

	if sortField != "" {
		col, ok := columns[sortField]
		if !ok {
			return "", model.ErrIncorrectSort
		}
		column = col
		direction = "ASC"
	}

	switch sortOrder {
	case "":
	case model.OrderASC:
		direction = "ASC"
	case model.OrderDESC:
		direction = "DESC"
	default:
		return "", model.ErrIncorrectSort
	}

	return fmt.Sprintf("ORDER BY %s %s", column, direction), nil
}

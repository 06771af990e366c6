package postgres

import (
	"strings"

	"gorm.io/gorm"

	"github.com/prepstack/practice-service/internal/repositories"
)

// SharedHelpers provides query helpers shared across the postgres repositories
type SharedHelpers struct {
	db *gorm.DB
}

func NewSharedHelpers(db *gorm.DB) *SharedHelpers {
	return &SharedHelpers{db: db}
}

var attemptSortColumns = map[string]bool{
	"started_at":   true,
	"submitted_at": true,
	"created_at":   true,
	"score":        true,
}

// ApplyPaginationAndSort applies pagination and sorting to a query. Sort
// columns are whitelisted.
func (h *SharedHelpers) ApplyPaginationAndSort(query *gorm.DB, sortBy, sortOrder string, limit, offset int) *gorm.DB {
	column := "started_at"
	if attemptSortColumns[sortBy] {
		column = sortBy
	}

	direction := "DESC"
	if strings.EqualFold(sortOrder, "asc") {
		direction = "ASC"
	}

	query = query.Order(column + " " + direction)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	return query
}

// ApplyAttemptFilters applies common attempt filters to a query
func (h *SharedHelpers) ApplyAttemptFilters(query *gorm.DB, filters repositories.AttemptFilters) *gorm.DB {
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	return query
}

// Package catalog implements the repository registry: the record model,
// the query engine and the create/list/delete orchestration.
package catalog

import (
	"strings"

	"repocatalog/internal/core/apperror"
)

// EntityName is used in error details and log fields.
const EntityName = "repository"

// ID is the surrogate key assigned by the store on insert.
type ID int64

// Record is a cataloged repository.
type Record struct {
	ID          ID     `db:"id"`
	Name        string `db:"name"`
	Description string `db:"description"`
	URL         string `db:"url"`
}

// NewRecord holds the fields supplied on create. The store assigns the ID.
type NewRecord struct {
	Name        string
	Description string
	URL         string
}

// Validate checks that every field is present.
func (n NewRecord) Validate() error {
	fields := []struct {
		name  string
		value string
	}{
		{"name", n.Name},
		{"description", n.Description},
		{"url", n.URL},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return apperror.NewValidation(f.name + " is required").
				WithDetail("field", f.name)
		}
	}
	return nil
}

// Page is the result of a listing: one window of matches plus the total
// number of matches under the same predicate.
type Page struct {
	Records []*Record
	Total   int64
}

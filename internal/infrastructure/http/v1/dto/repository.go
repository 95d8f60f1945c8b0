package dto

import (
	"repocatalog/internal/domain/catalog"
)

// ListRepositoriesRequest holds GET /repositories/ query parameters.
// Range checks happen in the service so that bounds follow configuration.
type ListRepositoriesRequest struct {
	Skip  *int   `form:"skip"`
	Limit *int   `form:"limit"`
	Query string `form:"query"`
}

// ToListRequest applies defaults for absent parameters.
func (r ListRepositoriesRequest) ToListRequest(defaultLimit int) catalog.ListRequest {
	req := catalog.ListRequest{Query: r.Query, Limit: defaultLimit}
	if r.Skip != nil {
		req.Offset = *r.Skip
	}
	if r.Limit != nil {
		req.Limit = *r.Limit
	}
	return req
}

// CreateRepositoryRequest is the POST /repositories/ body.
type CreateRepositoryRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description" binding:"required"`
	URL         string `json:"url" binding:"required"`
}

// ToNewRecord converts the request to the domain input.
func (r CreateRepositoryRequest) ToNewRecord() catalog.NewRecord {
	return catalog.NewRecord{
		Name:        r.Name,
		Description: r.Description,
		URL:         r.URL,
	}
}

// RepositoryResponse is the wire form of a record.
type RepositoryResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

// FromRecord creates RepositoryResponse from catalog.Record.
func FromRecord(rec *catalog.Record) RepositoryResponse {
	return RepositoryResponse{
		ID:          int64(rec.ID),
		Name:        rec.Name,
		Description: rec.Description,
		URL:         rec.URL,
	}
}

// RepositoryListResponse is one page plus the total number of matches.
type RepositoryListResponse struct {
	Repositories []RepositoryResponse `json:"repositories"`
	Total        int64                `json:"total"`
}

// FromPage creates RepositoryListResponse from catalog.Page.
func FromPage(page catalog.Page) RepositoryListResponse {
	items := make([]RepositoryResponse, 0, len(page.Records))
	for _, rec := range page.Records {
		items = append(items, FromRecord(rec))
	}
	return RepositoryListResponse{Repositories: items, Total: page.Total}
}

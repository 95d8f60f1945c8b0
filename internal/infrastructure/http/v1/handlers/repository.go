// Package handlers provides HTTP request handlers.
package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"repocatalog/internal/core/apperror"
	"repocatalog/internal/domain/catalog"
	"repocatalog/internal/infrastructure/http/v1/dto"
)

// RepositoryHandler serves /repositories/.
type RepositoryHandler struct {
	*BaseHandler
	service *catalog.Service
}

// NewRepositoryHandler creates a new repository handler.
func NewRepositoryHandler(base *BaseHandler, service *catalog.Service) *RepositoryHandler {
	return &RepositoryHandler{BaseHandler: base, service: service}
}

// List handles GET /repositories/?skip=&limit=&query=
func (h *RepositoryHandler) List(c *gin.Context) {
	var req dto.ListRepositoriesRequest
	if !h.BindQuery(c, &req) {
		return
	}

	page, err := h.service.List(c.Request.Context(), req.ToListRequest(h.service.Policy().DefaultLimit))
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromPage(page))
}

// Create handles POST /repositories/
// A failed notification is reported as an error even though the record
// was stored; the error details carry its id.
func (h *RepositoryHandler) Create(c *gin.Context) {
	var req dto.CreateRepositoryRequest
	if !h.BindJSON(c, &req) {
		return
	}

	rec, err := h.service.Create(c.Request.Context(), req.ToNewRecord())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromRecord(rec))
}

// Delete handles DELETE /repositories/:id/
func (h *RepositoryHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid repository id").
			WithDetail("field", "id").
			WithDetail("value", c.Param("id")))
		return
	}

	if err := h.service.Delete(c.Request.Context(), catalog.ID(id)); err != nil {
		h.Error(c, err)
		return
	}

	h.Message(c, "Repository deleted successfully")
}

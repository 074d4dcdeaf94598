package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-registration-api/internal/middleware"
	"github.com/noah-isme/course-registration-api/internal/models"
	"github.com/noah-isme/course-registration-api/pkg/response"
)

type catalogService interface {
	ListAvailable(ctx context.Context, department string) ([]models.AvailableClass, bool, error)
}

// CatalogHandler lists the classes offered by a department.
type CatalogHandler struct {
	catalog catalogService
}

// NewCatalogHandler constructs CatalogHandler.
func NewCatalogHandler(catalog catalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// List godoc
// @Summary Available sections of a department
// @Tags Catalog
// @Produce json
// @Param department query string true "Department"
// @Success 200 {object} response.Envelope
// @Router /classes [get]
func (h *CatalogHandler) List(c *gin.Context) {
	classes, hit, err := h.catalog.ListAvailable(c.Request.Context(), c.Query("department"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, classes, middleware.ExtractMeta(c))
}

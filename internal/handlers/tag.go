// internal/handlers/tag.go
package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/storesight/catalog-backend/internal/models"
	"github.com/storesight/catalog-backend/internal/services"
	"github.com/storesight/catalog-backend/internal/utils"
)

// TagHandler exposes the tag rows to the pipeline workers that consume them
// (image indexer, metadata resolver).
type TagHandler struct {
	tagService *services.TagService
}

func NewTagHandler(tagService *services.TagService) *TagHandler {
	return &TagHandler{
		tagService: tagService,
	}
}

type DeleteTagsRequest struct {
	Tag         string   `json:"tag" validate:"required"`
	ProductURLs []string `json:"product_urls" validate:"required,min=1"`
}

// GET /tags?product_urls=a,b&tag=image_not_indexed
func (h *TagHandler) GetTags(c *gin.Context) {
	productURLsParam := c.Query("product_urls")
	if productURLsParam == "" {
		utils.BadRequestResponse(c, "product_urls query parameter is required", nil)
		return
	}
	productURLs := strings.Split(productURLsParam, ",")

	var kind *models.TagKind
	if tagParam := c.Query("tag"); tagParam != "" {
		parsed, err := models.ParseTagKind(tagParam)
		if err != nil {
			utils.BadRequestResponse(c, err.Error(), nil)
			return
		}
		kind = &parsed
	}

	tags, err := h.tagService.Fetch(productURLs, kind).Collect()
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}
	if tags == nil {
		tags = []models.ProductTag{}
	}

	utils.SuccessResponseWithMeta(c, gin.H{"tags": tags}, gin.H{
		"count": len(tags),
	})
}

// DELETE /tags
//
// Workers acknowledge processed tags by deleting them.
func (h *TagHandler) DeleteTags(c *gin.Context) {
	var req DeleteTagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "", err.Error())
		return
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	kind, err := models.ParseTagKind(req.Tag)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	if err := h.tagService.Delete(kind, req.ProductURLs); err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{"deleted": len(req.ProductURLs)})
}

// internal/handlers/product.go
package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/storesight/catalog-backend/internal/models"
	"github.com/storesight/catalog-backend/internal/services"
	"github.com/storesight/catalog-backend/internal/utils"
	"github.com/storesight/catalog-backend/internal/validation"
)

type ProductHandler struct {
	productService *services.ProductService
}

func NewProductHandler(productService *services.ProductService) *ProductHandler {
	return &ProductHandler{
		productService: productService,
	}
}

type CreateProductRequest struct {
	ProductURL            string                 `json:"product_url" validate:"required,product_url"`
	StoreDomain           string                 `json:"store_domain" validate:"required,domain"`
	IsAvailable           bool                   `json:"is_available"`
	WarnInvalidAttributes bool                   `json:"warn_invalid_attributes"`
	Attributes            map[string]interface{} `json:"attributes"`
}

type UpdateProductRequest struct {
	ProductURL            string                 `json:"product_url" validate:"required,product_url"`
	WarnInvalidAttributes bool                   `json:"warn_invalid_attributes"`
	Attributes            map[string]interface{} `json:"attributes" validate:"required"`
}

type DeleteProductsRequest struct {
	ProductURLs []string `json:"product_urls" validate:"required,min=1"`
}

// POST /products
func (h *ProductHandler) CreateProduct(c *gin.Context) {
	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "", err.Error())
		return
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	product, err := h.productService.Create(&services.CreateProductInput{
		ProductURL:  req.ProductURL,
		StoreDomain: req.StoreDomain,
		IsAvailable: req.IsAvailable,
		Attributes:  req.Attributes,
		WarnInvalid: req.WarnInvalidAttributes,
	})
	if err != nil {
		switch {
		case services.IsDuplicateProduct(err):
			utils.ConflictResponse(c, err.Error())
		case validation.IsInvalid(err):
			utils.BadRequestResponse(c, err.Error(), nil)
		default:
			utils.InternalErrorResponse(c, err.Error())
		}
		return
	}

	utils.CreatedResponse(c, gin.H{"product": product})
}

// PUT /products
func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	var req UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "", err.Error())
		return
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	err := h.productService.Update(&services.UpdateProductInput{
		ProductURL:  req.ProductURL,
		Attributes:  req.Attributes,
		WarnInvalid: req.WarnInvalidAttributes,
	})
	if err != nil {
		switch {
		case services.IsNotFound(err):
			utils.NotFoundResponse(c, err.Error())
		case validation.IsInvalid(err):
			utils.BadRequestResponse(c, err.Error(), nil)
		default:
			utils.InternalErrorResponse(c, err.Error())
		}
		return
	}

	utils.SuccessResponse(c, gin.H{"updated": true})
}

// GET /products?product_url=...
func (h *ProductHandler) GetProduct(c *gin.Context) {
	productURL := c.Query("product_url")
	if productURL == "" {
		utils.BadRequestResponse(c, "product_url query parameter is required", nil)
		return
	}

	product, err := h.productService.Get(productURL)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}
	if product == nil {
		utils.NotFoundResponse(c, "product does not exist")
		return
	}

	utils.SuccessResponse(c, gin.H{"product": product})
}

// DELETE /products
func (h *ProductHandler) DeleteProducts(c *gin.Context) {
	var req DeleteProductsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "", err.Error())
		return
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	if err := h.productService.DeleteAll(req.ProductURLs); err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{"deleted": len(req.ProductURLs)})
}

// GET /products/by-store/:domain
func (h *ProductHandler) GetProductsByStore(c *gin.Context) {
	h.fetchProducts(c, h.productService.FetchByStore, c.Param("domain"))
}

// GET /products/by-brand/:domain
func (h *ProductHandler) GetProductsByBrand(c *gin.Context) {
	h.fetchProducts(c, h.productService.FetchByBrand, c.Param("domain"))
}

// GET /products/by-uuid/:uuid
func (h *ProductHandler) GetProductsByUUID(c *gin.Context) {
	h.fetchProducts(c, h.productService.FetchByProductUUID, c.Param("uuid"))
}

type fetchFunc func(string, services.FetchOptions) *services.ProductIterator

func (h *ProductHandler) fetchProducts(c *gin.Context, fetch fetchFunc, key string) {
	opts, ok := fetchOptionsFromQuery(c)
	if !ok {
		return
	}

	products, err := fetch(key, opts).Collect()
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}
	if products == nil {
		products = []models.Product{}
	}

	utils.SuccessResponseWithMeta(c, gin.H{"products": products}, gin.H{
		"count": len(products),
	})
}

func fetchOptionsFromQuery(c *gin.Context) (services.FetchOptions, bool) {
	var opts services.FetchOptions

	if isAvailableStr := c.Query("is_available"); isAvailableStr != "" {
		isAvailable, err := strconv.ParseBool(isAvailableStr)
		if err != nil {
			utils.BadRequestResponse(c, "is_available must be a boolean", nil)
			return opts, false
		}
		opts.IsAvailable = &isAvailable
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.ParseInt(limitStr, 10, 64)
		if err != nil || limit < 1 {
			utils.BadRequestResponse(c, "limit must be a positive integer", nil)
			return opts, false
		}
		opts.Limit = limit
	}

	if onlyAttributes := c.Query("only_attributes"); onlyAttributes != "" {
		opts.OnlyAttributes = strings.Split(onlyAttributes, ",")
	}

	return opts, true
}

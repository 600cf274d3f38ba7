// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/storesight/catalog-backend/internal/config"
	"github.com/storesight/catalog-backend/internal/handlers"
	"github.com/storesight/catalog-backend/internal/middleware"
	"github.com/storesight/catalog-backend/internal/services"
	"github.com/storesight/catalog-backend/internal/store"
	"github.com/storesight/catalog-backend/internal/utils"
)

func Initialize(st store.Store, cfg *config.Config) *gin.Engine {
	// Initialize services
	tagService := services.NewTagService(st, cfg)
	productService := services.NewProductService(st, tagService, cfg)

	// Initialize handlers
	productHandler := handlers.NewProductHandler(productService)
	tagHandler := handlers.NewTagHandler(tagService)

	// Set JWT secret
	utils.SetJWTSecret(cfg.Auth.ServiceTokenSecret)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS())
	r.Use(middleware.GeneralRateLimit())

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "healthy",
			"environment": cfg.Environment,
		})
	})

	// API v1 routes
	v1 := r.Group("/v1")
	v1.Use(middleware.ServiceAuthRequired())
	{
		products := v1.Group("/products")
		{
			products.GET("", productHandler.GetProduct)
			products.GET("/by-store/:domain", productHandler.GetProductsByStore)
			products.GET("/by-brand/:domain", productHandler.GetProductsByBrand)
			products.GET("/by-uuid/:uuid", productHandler.GetProductsByUUID)

			// Mutating routes
			writes := products.Group("")
			writes.Use(middleware.WriteRateLimit())
			{
				writes.POST("", productHandler.CreateProduct)
				writes.PUT("", productHandler.UpdateProduct)
				writes.DELETE("", productHandler.DeleteProducts)
			}
		}

		tags := v1.Group("/tags")
		{
			tags.GET("", tagHandler.GetTags)
			tags.DELETE("", middleware.WriteRateLimit(), tagHandler.DeleteTags)
		}
	}

	return r
}

package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Brownie44l1/vision-api/internal/handlers"
	"github.com/Brownie44l1/vision-api/internal/middleware"
)

// Setup creates and configures the Gin router. metricsHandler serves
// /metrics; nil uses the default Prometheus registry.
func Setup(h *handlers.Handler, metricsHandler http.Handler, logger *zap.Logger) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS())

	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)

	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	router.GET("/metrics", gin.WrapH(metricsHandler))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/model/init", h.InitModel)

		recognize := v1.Group("/recognize")
		{
			recognize.POST("/path", h.RecognizePath)
			recognize.POST("/data", h.RecognizeData)
			recognize.POST("/frame", h.RecognizeFrame)
			recognize.POST("/image", h.RecognizeImage)
			recognize.POST("/tensor", h.RecognizeTensor)
		}
	}

	return router
}

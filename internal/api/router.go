package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func NewRouter(c *Controller) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "scheme-research",
		})
	})
	router.GET("/uploads/:name", c.Download)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/input-type", c.SetInputType)
		v1.PUT("/model", c.SelectModel)
		v1.POST("/process", c.Process)
		v1.POST("/summary", c.GenerateSummary)
		v1.POST("/questions", c.Ask)
		v1.POST("/reset", c.Reset)
		v1.GET("/session", c.Session)
	}
	return router
}

func requestLogger() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Next()
		log.Debug().
			Str("method", ctx.Request.Method).
			Str("path", ctx.Request.URL.Path).
			Int("status", ctx.Writer.Status()).
			Msg("request")
	}
}

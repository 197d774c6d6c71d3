package handler

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const bannerMessage = "Volunteer Management Server is running!"

// NewRouter は HTTP ハンドラーを紐づけた gin.Engine を返す。
func NewRouter(log *zap.Logger, posts *PostHandler, requests *RequestHandler, email *EmailHandler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log), cors.Default())

	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, bannerMessage)
	})
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/volunteer-now", posts.ListUpcoming)
	router.GET("/volunteer-posts", posts.Search)
	router.POST("/volunteer-posts", posts.Create)
	router.GET("/volunteer-posts/:id", posts.Get)
	router.PUT("/volunteer-posts/:id", posts.Update)
	router.DELETE("/volunteer-posts/:id", posts.Delete)
	router.GET("/my-posts", posts.ListMine)

	router.GET("/volunteer-requests", requests.ListMine)
	router.GET("/my-volunteer-requests", requests.ListMine)
	router.POST("/volunteer-request", requests.Create)
	router.DELETE("/cancel-request/:id", requests.Cancel)

	router.POST("/send-email", email.Send)

	return router
}

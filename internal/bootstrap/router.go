package bootstrap

import (
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"careerforge-go/internal/handler"
	"careerforge-go/internal/middleware"
)

// Router 创建 Gin 引擎并注册全部路由。
func (a *App) Router() *gin.Engine {
	srv := a.Config.Server
	gin.SetMode(srv.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery(), cors.New(corsConfig(srv.CORSAllowOrigins)))

	r.GET("/healthz", handler.Health(a.Store))
	// WebSocket 连接的生命周期由 StreamHandler 自己管理，不挂请求超时
	r.GET("/ws/analyze", handler.NewStreamHandler(a.Analysis, srv.RequestTimeout).Handle)

	uploadHandler := handler.NewUploadHandler(a.Resume, srv.MaxUploadMB<<20)
	api := r.Group("/")
	api.Use(middleware.RequestTimeout(srv.RequestTimeout))
	{
		api.POST("/analyze", handler.NewAnalysisHandler(a.Analysis).Analyze)
		api.POST("/generate-roadmap", handler.NewRoadmapHandler(a.Roadmap).Generate)
		api.POST("/upload-resume", uploadHandler.UploadResume)
		api.GET("/resume", uploadHandler.CurrentResume)
		api.GET("/search", handler.NewSearchHandler(a.Search).Search)
	}
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

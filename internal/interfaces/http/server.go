package http

import (
	"context"
	"net/http"
	"time"

	"log/slog"

	"github.com/coclaude/backend/internal/infrastructure/config"
	"github.com/coclaude/backend/internal/infrastructure/log"
	"github.com/coclaude/backend/internal/interfaces/http/handler"
	"github.com/coclaude/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/coclaude/backend/docs" // Swagger docs
)

// HTTPServer HTTP 服务器
type HTTPServer struct {
	router   *gin.Engine
	httpPort string
	server   *http.Server
	logger   *slog.Logger
}

// NewServer 创建 HTTP 服务器
func NewServer(
	serverCfg *config.ServerConfig,
	metadataHandler *handler.MetadataHandler,
	cacheHandler *handler.CacheHandler,
	updatesWSHandler *handler.UpdatesWSHandler,
) *HTTPServer {
	router := gin.Default()

	logger := log.NewModuleLogger("http", "server")

	// Windows 下 curl 可能以 GBK 发送中文标题
	router.Use(middleware.EnsureUTF8Body())

	// 注册路由
	api := router.Group("/api/v1")
	{
		api.GET("/projects", metadataHandler.ListProjects)
		api.GET("/projects/:project/conversations", metadataHandler.ListConversations)

		api.GET("/conversations/meta", metadataHandler.GetConversationMeta)
		api.PUT("/conversations/meta", metadataHandler.UpdateConversationMeta)
		api.POST("/conversations/notify", cacheHandler.NotifyChange)

		api.POST("/cache/invalidate", cacheHandler.Invalidate)
	}

	// 变更订阅
	router.GET("/ws/updates", updatesWSHandler.Subscribe)

	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Swagger UI
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return &HTTPServer{
		router:   router,
		httpPort: serverCfg.HTTPPort,
		logger:   logger,
	}
}

// Start 启动服务器
func (s *HTTPServer) Start() error {
	s.server = &http.Server{
		Addr:    s.httpPort,
		Handler: s.router,
	}

	s.logger.Info("HTTP server starting",
		"port", s.httpPort,
	)

	return s.server.ListenAndServe()
}

// Shutdown 优雅关闭
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// Stop 停止服务器
func (s *HTTPServer) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}

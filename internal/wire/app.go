package wire

import (
	"database/sql"

	"log/slog"

	"github.com/coclaude/backend/internal/application/metadata"
	"github.com/coclaude/backend/internal/domain/events"
	"github.com/coclaude/backend/internal/infrastructure/cache"
	applog "github.com/coclaude/backend/internal/infrastructure/log"
	"github.com/coclaude/backend/internal/infrastructure/watcher"
	"github.com/coclaude/backend/internal/infrastructure/websocket"
	"github.com/coclaude/backend/internal/interfaces"
)

// App 应用主结构，组合所有服务
type App struct {
	HTTPServer      *interfaces.HTTPServer
	wsHub           *websocket.Hub
	cacheStore      *cache.CacheStore
	metadataService *metadata.MetadataService
	invalidation    *metadata.InvalidationHandler
	db              *sql.DB
	logger          *slog.Logger

	// 文件监听相关
	eventBus    events.EventBus
	fileWatcher *watcher.FileWatcher
}

// NewApp 创建应用实例
func NewApp(
	httpServer *interfaces.HTTPServer,
	wsHub *websocket.Hub,
	cacheStore *cache.CacheStore,
	metadataService *metadata.MetadataService,
	invalidation *metadata.InvalidationHandler,
	eventBus events.EventBus,
	fileWatcher *watcher.FileWatcher,
	db *sql.DB,
) *App {
	return &App{
		HTTPServer:      httpServer,
		wsHub:           wsHub,
		cacheStore:      cacheStore,
		metadataService: metadataService,
		invalidation:    invalidation,
		db:              db,
		logger:          applog.NewModuleLogger("app", "main"),
		eventBus:        eventBus,
		fileWatcher:     fileWatcher,
	}
}

// Start 启动所有服务
func (a *App) Start() error {
	a.logger.Info("Starting coclaude backend application")

	// 启动缓存的周期性清理
	a.cacheStore.Start()

	// 失效协调器订阅文件事件，随后启动监听（含初始全量扫描）
	a.invalidation.Register(a.eventBus)
	if err := a.fileWatcher.Start(); err != nil {
		a.logger.Error("Failed to start file watcher",
			"error", err,
		)
	}

	// 启动 WebSocket Hub
	a.wsHub.Start()

	// 启动 HTTP 服务器（goroutine）
	go func() {
		if err := a.HTTPServer.Start(); err != nil {
			a.logger.Error("Failed to start HTTP server",
				"error", err,
			)
		}
	}()

	a.logger.Info("coclaude backend application started successfully")
	return nil
}

// Stop 停止所有服务
func (a *App) Stop() error {
	a.logger.Info("Stopping coclaude backend application")

	// 先停监听，再关总线，保证不丢正在分发的事件
	a.fileWatcher.Stop()
	a.eventBus.Close()

	a.cacheStore.Stop()

	if err := a.HTTPServer.Stop(); err != nil {
		a.logger.Error("Failed to stop HTTP server",
			"error", err,
		)
		return err
	}

	// 关闭数据库连接
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("Failed to close database connection",
				"error", err,
			)
			return err
		}
	}

	a.logger.Info("coclaude backend application stopped successfully")
	return nil
}

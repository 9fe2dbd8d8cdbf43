package infrastructure

import (
	"github.com/coclaude/backend/internal/infrastructure/cache"
	"github.com/coclaude/backend/internal/infrastructure/config"
	"github.com/coclaude/backend/internal/infrastructure/storage"
	"github.com/coclaude/backend/internal/infrastructure/watcher"
	"github.com/coclaude/backend/internal/infrastructure/websocket"
	"github.com/google/wire"
)

// ProviderSet Infrastructure 层总 ProviderSet
var ProviderSet = wire.NewSet(
	config.ProviderSet,
	cache.ProviderSet,
	storage.ProviderSet,
	watcher.ProviderSet,
	websocket.ProviderSet,
)

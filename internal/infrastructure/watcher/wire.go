package watcher

import (
	"github.com/google/wire"
)

// ProviderSet 文件监听基础设施的依赖注入集合
var ProviderSet = wire.NewSet(
	NewEventBus,
	NewWatchConfig,
	NewFileWatcher,
)

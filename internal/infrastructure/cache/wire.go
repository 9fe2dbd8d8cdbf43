package cache

import "github.com/google/wire"

// ProviderSet Cache 基础设施层 ProviderSet
var ProviderSet = wire.NewSet(
	NewCacheStore,
)

package metadata

import (
	"github.com/google/wire"
)

// ProviderSet 元数据应用服务的依赖注入集合
var ProviderSet = wire.NewSet(
	NewDirectoryScanner,
	NewResolver,
	NewMetadataService,
	NewInvalidationHandler,
	NewLoggingTitleRepairer,
)

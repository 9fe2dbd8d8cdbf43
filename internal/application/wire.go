package application

import (
	"github.com/coclaude/backend/internal/application/metadata"
	"github.com/google/wire"
)

// ProviderSet Application 层总 ProviderSet
var ProviderSet = wire.NewSet(
	metadata.ProviderSet,
)

package interfaces

import (
	"github.com/coclaude/backend/internal/interfaces/http"
	"github.com/google/wire"
)

// ProviderSet Interfaces 层总 ProviderSet
var ProviderSet = wire.NewSet(
	http.ProviderSet,
)

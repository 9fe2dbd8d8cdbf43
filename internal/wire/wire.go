//go:build wireinject
// +build wireinject

package wire

import (
	"github.com/coclaude/backend/internal/application"
	appMetadata "github.com/coclaude/backend/internal/application/metadata"
	"github.com/coclaude/backend/internal/infrastructure"
	"github.com/coclaude/backend/internal/infrastructure/websocket"
	"github.com/coclaude/backend/internal/interfaces"
	"github.com/google/wire"
)

// InitializeApp 初始化整个应用
func InitializeApp() (*App, error) {
	wire.Build(
		// 按层组合 ProviderSet
		infrastructure.ProviderSet, // 基础设施层
		application.ProviderSet,    // 应用层
		interfaces.ProviderSet,     // 接口层
		// 接口绑定：application.UpdatePusher -> websocket.Hub
		wire.Bind(
			new(appMetadata.UpdatePusher),
			new(*websocket.Hub),
		),
		NewApp, // 组合所有服务的应用结构
	)
	return nil, nil
}

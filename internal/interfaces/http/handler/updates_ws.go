package handler

import (
	"log/slog"
	"net/http"

	"github.com/coclaude/backend/internal/infrastructure/log"
	ws "github.com/coclaude/backend/internal/infrastructure/websocket"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// UpdatesWSHandler 元数据变更的 WebSocket 订阅处理器
type UpdatesWSHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewUpdatesWSHandler 创建 WebSocket 订阅处理器
func NewUpdatesWSHandler(hub *ws.Hub) *UpdatesWSHandler {
	return &UpdatesWSHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // 本机服务，允许所有来源
			},
		},
		logger: log.NewModuleLogger("http", "updates_ws"),
	}
}

// Subscribe 订阅变更通知
// project 查询参数指定只订阅单个项目，缺省订阅全部项目
func (h *UpdatesWSHandler) Subscribe(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	subscriber := &ws.Connection{
		ProjectKey: c.Query("project"),
		Send:       make(chan []byte, 64),
	}
	h.hub.Register(subscriber)

	h.logger.Info("Update subscriber connected",
		"project", subscriber.ProjectKey,
		"remote", conn.RemoteAddr().String(),
	)

	go h.writePump(conn, subscriber)
	go h.readPump(conn, subscriber)
}

// writePump 把 Hub 的广播写到连接
func (h *UpdatesWSHandler) writePump(conn *websocket.Conn, subscriber *ws.Connection) {
	defer conn.Close()

	for data := range subscriber.Send {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	// Send 被 Hub 关闭（注销或发送队列满）
	_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump 只为感知断开，订阅方不发送业务消息
func (h *UpdatesWSHandler) readPump(conn *websocket.Conn, subscriber *ws.Connection) {
	defer func() {
		h.hub.Unregister(subscriber)
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

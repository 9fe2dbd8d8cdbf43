// Package websocket 提供元数据变更的 WebSocket 推送
// UI 协作方订阅后即可收到缓存失效/更新通知，避免轮询
package websocket

import (
	"encoding/json"
	"sync"
	"time"
)

// UpdateNotice 推送给订阅方的变更通知
type UpdateNotice struct {
	// ProjectKey 项目标识
	ProjectKey string `json:"project_key"`
	// Path 变更的文件路径（项目级失效时为空）
	Path string `json:"path,omitempty"`
	// Kind 变更类型：created/modified/deleted/invalidated
	Kind string `json:"kind"`
	// Time 通知时间
	Time time.Time `json:"time"`
}

// Connection 一个订阅连接
type Connection struct {
	// ProjectKey 订阅的项目，空表示订阅全部项目
	ProjectKey string
	// Send 发送队列
	Send chan []byte
}

// message 内部广播载荷
type message struct {
	projectKey string
	data       []byte
}

// Hub WebSocket 连接管理中心
type Hub struct {
	// subscribers 按项目分组的连接（键 "" 为全量订阅）
	subscribers map[string]map[*Connection]bool
	register    chan *Connection
	unregister  chan *Connection
	broadcast   chan *message
	mu          sync.RWMutex
}

// NewHub 创建 Hub
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]map[*Connection]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		broadcast:   make(chan *message),
	}
}

// Run 运行 Hub（需要在 goroutine 中运行）
func (h *Hub) Run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			if h.subscribers[conn.ProjectKey] == nil {
				h.subscribers[conn.ProjectKey] = make(map[*Connection]bool)
			}
			h.subscribers[conn.ProjectKey][conn] = true
			h.mu.Unlock()

		case conn := <-h.unregister:
			h.mu.Lock()
			if group, ok := h.subscribers[conn.ProjectKey]; ok {
				if _, ok := group[conn]; ok {
					delete(group, conn)
					close(conn.Send)
					if len(group) == 0 {
						delete(h.subscribers, conn.ProjectKey)
					}
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			h.deliver(h.subscribers[msg.projectKey], msg.data)
			if msg.projectKey != "" {
				// 全量订阅方也收到每个项目的通知
				h.deliver(h.subscribers[""], msg.data)
			}
			h.mu.RUnlock()
		}
	}
}

// deliver 投递到一组连接，发送队列满时断开该连接
func (h *Hub) deliver(group map[*Connection]bool, data []byte) {
	for conn := range group {
		select {
		case conn.Send <- data:
		default:
			close(conn.Send)
			delete(group, conn)
		}
	}
}

// Start 启动 Hub（启动后台 goroutine）
func (h *Hub) Start() {
	go h.Run()
}

// Register 注册连接
func (h *Hub) Register(conn *Connection) {
	h.register <- conn
}

// Unregister 注销连接
func (h *Hub) Unregister(conn *Connection) {
	h.unregister <- conn
}

// PushUpdate 推送变更通知
func (h *Hub) PushUpdate(notice UpdateNotice) error {
	data, err := json.Marshal(notice)
	if err != nil {
		return err
	}
	h.broadcast <- &message{
		projectKey: notice.ProjectKey,
		data:       data,
	}
	return nil
}

// Push 以简单参数推送变更通知，供应用层的推送接口适配
func (h *Hub) Push(projectKey, path, kind string) error {
	return h.PushUpdate(UpdateNotice{
		ProjectKey: projectKey,
		Path:       path,
		Kind:       kind,
		Time:       time.Now(),
	})
}

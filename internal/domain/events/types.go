// Package events 定义领域事件类型和接口
// 用于文件监听与缓存失效之间的事件驱动通信
package events

import "time"

// EventType 事件类型标识
type EventType string

// 对话文件相关事件类型
const (
	// ConversationFileCreated 对话文件创建事件
	ConversationFileCreated EventType = "conversation.file.created"
	// ConversationFileModified 对话文件修改事件
	ConversationFileModified EventType = "conversation.file.modified"
	// ConversationFileDeleted 对话文件删除事件
	ConversationFileDeleted EventType = "conversation.file.deleted"
)

// Event 领域事件接口
// 所有事件类型都必须实现此接口
type Event interface {
	// Type 返回事件类型
	Type() EventType
	// Timestamp 返回事件发生时间
	Timestamp() time.Time
}

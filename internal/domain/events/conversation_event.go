package events

import "time"

// ConversationFileEvent 对话文件变更事件
// 当项目目录下的 *.jsonl 对话文件发生变更时触发
type ConversationFileEvent struct {
	// EventType 事件类型（created/modified/deleted）
	EventType EventType
	// SessionID 会话 ID（文件名去掉 .jsonl 后缀）
	SessionID string
	// ProjectKey 项目标识（对话文件所在目录名）
	ProjectKey string
	// FilePath 文件完整路径
	FilePath string
	// ModTime 文件最后修改时间（deleted 事件为零值）
	ModTime time.Time
	// FileSize 文件大小（字节）
	FileSize int64
	// InitialScan 是否来自启动时的全量扫描
	InitialScan bool
	// EventTime 事件发生时间
	EventTime time.Time
}

// Type 实现 Event 接口
func (e *ConversationFileEvent) Type() EventType {
	return e.EventType
}

// Timestamp 实现 Event 接口
func (e *ConversationFileEvent) Timestamp() time.Time {
	return e.EventTime
}

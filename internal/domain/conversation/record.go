// Package conversation 定义对话日志文件的记录模型与解析、主链求解逻辑
// 对话文件为 JSONL 格式，每行一个记录，由外部写入进程（Claude Code）产生
package conversation

import (
	"encoding/json"
	"time"
)

// RecordType 记录类型标识
type RecordType string

const (
	// RecordTypeUser 用户消息记录
	RecordTypeUser RecordType = "user"
	// RecordTypeAssistant 助手消息记录
	RecordTypeAssistant RecordType = "assistant"
	// RecordTypeSummary 标题声明记录（summary）
	RecordTypeSummary RecordType = "summary"
	// RecordTypeUnknown 未知类型记录（原样保留，不丢弃）
	RecordTypeUnknown RecordType = "unknown"
)

// Record 对话文件中的一行记录（标签联合类型）
// 具体类型为 *MessageRecord / *SummaryRecord / *UnknownRecord
type Record interface {
	// Kind 返回记录类型
	Kind() RecordType
}

// MessageRecord 消息记录
// 对应 type 为 user/assistant 的行
type MessageRecord struct {
	Type        string      `json:"type"`        // user 或 assistant
	UUID        string      `json:"uuid"`        // 消息唯一标识（文件内唯一）
	ParentUUID  string      `json:"parentUuid"`  // 父消息 UUID，根消息为空
	IsSidechain bool        `json:"isSidechain"` // 是否为后台消息（握手/预热等）
	Timestamp   string      `json:"timestamp"`   // ISO8601 时间戳
	SessionID   string      `json:"sessionId"`   // 会话 ID
	Cwd         string      `json:"cwd,omitempty"`
	Version     string      `json:"version,omitempty"`
	GitBranch   string      `json:"gitBranch,omitempty"`
	Message     MessageBody `json:"message"` // 消息体
}

// MessageBody 消息体
type MessageBody struct {
	Role    string  `json:"role"`    // 角色：user/assistant
	Content Content `json:"content"` // 内容：字符串或内容块数组
}

// Kind 实现 Record 接口
func (m *MessageRecord) Kind() RecordType {
	return RecordType(m.Type)
}

// IsRoot 是否为根消息（无父消息）
func (m *MessageRecord) IsRoot() bool {
	return m.ParentUUID == ""
}

// Time 解析时间戳
// 无法解析时返回零值
func (m *MessageRecord) Time() time.Time {
	return parseTimestamp(m.Timestamp)
}

// SummaryRecord 标题声明记录
// summary 为人类可读标题，leafUuid 指向对话链的末端消息
// 目标消息可能位于其他文件中（compaction 后的跨文件引用）
type SummaryRecord struct {
	Type     string `json:"type"`     // 固定为 summary
	Summary  string `json:"summary"`  // 声明的标题文本
	LeafUUID string `json:"leafUuid"` // 目标消息 UUID
}

// Kind 实现 Record 接口
func (s *SummaryRecord) Kind() RecordType {
	return RecordTypeSummary
}

// UnknownRecord 未知类型记录
// 外部写入方的新版本可能引入新的记录类型，原样保留避免丢失信息
type UnknownRecord struct {
	Type string          // 原始 type 字段值，可能为空
	Raw  json.RawMessage // 整行原始 JSON
}

// Kind 实现 Record 接口
func (u *UnknownRecord) Kind() RecordType {
	return RecordTypeUnknown
}

// parseTimestamp 解析外部写入方使用的多种时间格式
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	// 无时区的 ISO8601
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return t
	}
	return time.Time{}
}

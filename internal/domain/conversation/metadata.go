package conversation

import "time"

// TitleSource 标题的解析来源（按优先级从高到低）
type TitleSource string

const (
	// TitleSourceDeclared 本文件内的标题声明
	TitleSourceDeclared TitleSource = "declared"
	// TitleSourceCrossFile 其他文件的标题声明指向本文件的终端消息
	TitleSourceCrossFile TitleSource = "cross_file"
	// TitleSourceFirstUser 主链第一条非后台用户消息
	TitleSourceFirstUser TitleSource = "first_user"
	// TitleSourceFirstMessage 主链第一条非后台消息（任意角色）
	TitleSourceFirstMessage TitleSource = "first_message"
	// TitleSourceBackground 第一条后台消息（文件没有主链内容时）
	TitleSourceBackground TitleSource = "background"
	// TitleSourceFallback 固定兜底占位标题
	TitleSourceFallback TitleSource = "fallback"
)

// FallbackTitle 兜底占位标题
const FallbackTitle = "New conversation"

// StaleReference 过期的标题引用
// 本文件的标题声明指向的消息不再是当前主链的终端
// 交给修复协作方处理，不影响解析本身
type StaleReference struct {
	// DeclaredTitle 声明的标题文本
	DeclaredTitle string `json:"declared_title"`
	// TargetUUID 声明指向的消息 UUID
	TargetUUID string `json:"target_uuid"`
	// CurrentTerminalUUID 当前主链终端消息 UUID
	CurrentTerminalUUID string `json:"current_terminal_uuid"`
}

// ResolvedMetadata 单个对话文件的最终元数据
// 以文件修改时间为有效性凭据缓存
type ResolvedMetadata struct {
	// Path 文件完整路径
	Path string `json:"path"`
	// ProjectKey 项目标识
	ProjectKey string `json:"project_key"`
	// SessionID 会话 ID（文件名去掉 .jsonl 后缀）
	SessionID string `json:"session_id"`
	// Title 解析出的标题
	Title string `json:"title"`
	// TitleSource 标题来源
	TitleSource TitleSource `json:"title_source"`
	// RecencyTimestamp 排序用的时间戳：主链终端消息的时间
	// 主链结束后的纯后台活动不影响此值
	RecencyTimestamp time.Time `json:"recency_timestamp"`
	// TrueLastActivity 文件字面上最后一条记录的时间（含后台消息）
	// 仅作为排序平局时的次级依据
	TrueLastActivity time.Time `json:"true_last_activity"`
	// HasRealContent 是否包含真实的用户可见内容
	HasRealContent bool `json:"has_real_content"`
	// IsSuperseded 是否已被取代：本文件的终端消息被其他文件的标题声明引用
	// 此时另一个文件才是该对话线程的规范展示入口
	IsSuperseded bool `json:"is_superseded"`
	// RecordCount 文件内记录总数
	RecordCount int `json:"record_count"`
	// FileSize 文件大小（字节）
	FileSize int64 `json:"file_size"`
	// StaleReference 检测到的过期标题引用（无则为 nil）
	StaleReference *StaleReference `json:"stale_reference,omitempty"`
	// IsArchived 是否来自归档区
	IsArchived bool `json:"is_archived"`
}

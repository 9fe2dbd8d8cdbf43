package conversation

import (
	"encoding/json"
	"strings"
)

// ContentBlock 结构化内容块
type ContentBlock struct {
	Type string `json:"type"` // text / tool_use / tool_result / thinking 等
	Text string `json:"text,omitempty"`

	// tool_use 块字段
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

// Content 消息内容
// 线上格式为裸字符串或内容块数组，统一建模为显式的和类型
// 而不是在使用处做运行时类型判断
type Content struct {
	// Plain 字符串形式的内容（IsBlocks 为 false 时有效）
	Plain string
	// Blocks 内容块数组形式（IsBlocks 为 true 时有效）
	Blocks []ContentBlock
	// IsBlocks 标识线上格式是否为块数组
	IsBlocks bool
}

// UnmarshalJSON 实现 json.Unmarshaler
// 依次尝试字符串与块数组两种形式
func (c *Content) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.Plain = s
		c.Blocks = nil
		c.IsBlocks = false
		return nil
	}

	var blocks []ContentBlock
	if err := json.Unmarshal(data, &blocks); err != nil {
		return err
	}
	c.Plain = ""
	c.Blocks = blocks
	c.IsBlocks = true
	return nil
}

// MarshalJSON 实现 json.Marshaler，按原始形式序列化
func (c Content) MarshalJSON() ([]byte, error) {
	if c.IsBlocks {
		return json.Marshal(c.Blocks)
	}
	return json.Marshal(c.Plain)
}

// Text 提取纯文本内容
// 块数组形式只拼接 text 块，工具调用等块不参与标题候选
func (c Content) Text() string {
	if !c.IsBlocks {
		return strings.TrimSpace(c.Plain)
	}

	var parts []string
	for _, b := range c.Blocks {
		if b.Type == "text" && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

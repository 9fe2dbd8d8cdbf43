package conversation

import "fmt"

// ParseError 单行 JSON 解析失败
// 携带来源标签与行号，整个文件的解析随之失败
// 调用方应跳过该文件而不是中断整批处理
type ParseError struct {
	// SourceLabel 来源标签（通常为文件路径）
	SourceLabel string
	// LineNumber 出错行号（从 1 开始）
	LineNumber int
	// Cause 底层错误
	Cause error
}

// Error 实现 error 接口
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %s:%d: %v", e.SourceLabel, e.LineNumber, e.Cause)
}

// Unwrap 支持 errors.Is / errors.As
func (e *ParseError) Unwrap() error {
	return e.Cause
}

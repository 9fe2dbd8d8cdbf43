package conversation

import (
	"bufio"
	"bytes"
	"encoding/json"
)

const (
	// maxLineSize 单行最大长度（工具输出可能非常大）
	maxLineSize = 10 * 1024 * 1024
	// initialBufSize 扫描器初始缓冲区大小
	initialBufSize = 64 * 1024
)

// ParseRecords 解析整个对话文件内容为记录序列
// data: 文件原始内容；sourceLabel: 错误定位用的来源标签（通常为路径）
// 任意一行 JSON 非法时整体失败，返回 *ParseError
func ParseRecords(data []byte, sourceLabel string) ([]Record, error) {
	return ParseRecordsBounded(data, sourceLabel, 0)
}

// ParseRecordsBounded 只解析前 maxLines 行
// 标题声明与首条消息按外部写入方的约定位于文件头部
// 元数据快速路径用此变体避免读完超大文件
// maxLines <= 0 表示不限制
func ParseRecordsBounded(data []byte, sourceLabel string, maxLines int) ([]Record, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, initialBufSize), maxLineSize)

	records := make([]Record, 0, 64)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		if maxLines > 0 && lineNum > maxLines {
			break
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		rec, err := parseLine(line)
		if err != nil {
			return nil, &ParseError{
				SourceLabel: sourceLabel,
				LineNumber:  lineNum,
				Cause:       err,
			}
		}
		records = append(records, rec)
	}

	if err := scanner.Err(); err != nil {
		return nil, &ParseError{
			SourceLabel: sourceLabel,
			LineNumber:  lineNum,
			Cause:       err,
		}
	}

	return records, nil
}

// typeProbe 只取 type 字段做分类
type typeProbe struct {
	Type string `json:"type"`
}

// parseLine 解析单行记录
// 未知 type 原样保留为 UnknownRecord，绝不因形状未知而失败
func parseLine(line []byte) (Record, error) {
	var probe typeProbe
	if err := json.Unmarshal(line, &probe); err != nil {
		return nil, err
	}

	switch RecordType(probe.Type) {
	case RecordTypeUser, RecordTypeAssistant:
		var msg MessageRecord
		if err := json.Unmarshal(line, &msg); err != nil {
			return nil, err
		}
		return &msg, nil

	case RecordTypeSummary:
		var sum SummaryRecord
		if err := json.Unmarshal(line, &sum); err != nil {
			return nil, err
		}
		return &sum, nil

	default:
		raw := make(json.RawMessage, len(line))
		copy(raw, line)
		return &UnknownRecord{Type: probe.Type, Raw: raw}, nil
	}
}

// Messages 过滤出消息记录
func Messages(records []Record) []*MessageRecord {
	msgs := make([]*MessageRecord, 0, len(records))
	for _, r := range records {
		if m, ok := r.(*MessageRecord); ok {
			msgs = append(msgs, m)
		}
	}
	return msgs
}

// Summaries 过滤出标题声明记录
func Summaries(records []Record) []*SummaryRecord {
	sums := make([]*SummaryRecord, 0, 2)
	for _, r := range records {
		if s, ok := r.(*SummaryRecord); ok {
			sums = append(sums, s)
		}
	}
	return sums
}

package metadata

import (
	"fmt"
	"testing"
	"time"

	"github.com/coclaude/backend/internal/domain/conversation"
	"github.com/coclaude/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// msgLine 构造一行消息记录
func msgLine(uuid, parent string, sidechain bool, role, text, ts string) string {
	parentField := "null"
	if parent != "" {
		parentField = fmt.Sprintf("%q", parent)
	}
	return fmt.Sprintf(
		`{"type":%q,"uuid":%q,"parentUuid":%s,"isSidechain":%t,"timestamp":%q,"sessionId":"s1","message":{"role":%q,"content":%q}}`,
		role, uuid, parentField, sidechain, ts, role, text,
	)
}

// summaryLine 构造一行标题声明
func summaryLine(title, leaf string) string {
	return fmt.Sprintf(`{"type":"summary","summary":%q,"leafUuid":%q}`, title, leaf)
}

// parseLines 拼接并解析多行
func parseLines(t *testing.T, lines ...string) []conversation.Record {
	t.Helper()
	data := ""
	for _, l := range lines {
		data += l + "\n"
	}
	records, err := conversation.ParseRecords([]byte(data), "test.jsonl")
	require.NoError(t, err)
	return records
}

func newTestResolver() *Resolver {
	return NewResolver(&config.ResolverConfig{
		BootstrapDenylist: []string{"caveat", "warmup"},
		HeadLines:         50,
	})
}

func testFile(path string) ProjectFile {
	return ProjectFile{
		Path:       path,
		ProjectKey: "proj-a",
		SessionID:  "s1",
		Size:       1024,
	}
}

func TestResolver_DeclaredTitle(t *testing.T) {
	records := parseLines(t,
		msgLine("a", "", false, "user", "hello", "2026-01-01T10:00:00Z"),
		msgLine("b", "a", false, "assistant", "hi", "2026-01-01T10:01:00Z"),
		summaryLine("Fix cache bug", "b"),
	)

	meta := newTestResolver().Resolve(testFile("/p/s1.jsonl"), records, nil)

	assert.Equal(t, "Fix cache bug", meta.Title)
	assert.Equal(t, conversation.TitleSourceDeclared, meta.TitleSource)
	assert.Nil(t, meta.StaleReference)
	assert.True(t, meta.HasRealContent)
}

func TestResolver_DenylistedDeclarationSkipped(t *testing.T) {
	records := parseLines(t,
		summaryLine("Caveat: the messages below were generated", "x"),
		msgLine("a", "", false, "user", "real question", "2026-01-01T10:00:00Z"),
	)

	meta := newTestResolver().Resolve(testFile("/p/s1.jsonl"), records, nil)

	assert.Equal(t, "real question", meta.Title)
	assert.Equal(t, conversation.TitleSourceFirstUser, meta.TitleSource)
}

func TestResolver_DenylistMatchesPrefixOnly(t *testing.T) {
	r := NewResolver(&config.ResolverConfig{
		BootstrapDenylist: []string{"init", "caveat"},
	})

	// 标题中间含关键词不算噪声
	records := parseLines(t,
		summaryLine("Update type definitions", "a"),
		msgLine("a", "", false, "user", "please update the type definitions", "2026-01-01T10:00:00Z"),
	)
	meta := r.Resolve(testFile("/p/s1.jsonl"), records, nil)
	assert.Equal(t, "Update type definitions", meta.Title)
	assert.Equal(t, conversation.TitleSourceDeclared, meta.TitleSource)

	// 以关键词开头才过滤
	records = parseLines(t,
		summaryLine("Init session handshake", "b"),
		msgLine("b", "", false, "user", "real question", "2026-01-01T10:00:00Z"),
	)
	meta = r.Resolve(testFile("/p/s1.jsonl"), records, nil)
	assert.Equal(t, "real question", meta.Title)
	assert.Equal(t, conversation.TitleSourceFirstUser, meta.TitleSource)
}

func TestResolver_CrossFileTitle(t *testing.T) {
	records := parseLines(t,
		msgLine("a", "", false, "user", "hello", "2026-01-01T10:00:00Z"),
		msgLine("b", "a", false, "assistant", "hi", "2026-01-01T10:01:00Z"),
	)

	index := &ReferenceIndex{byTarget: map[string]Declaration{
		"b": {Title: "Thread title", TargetUUID: "b", SourcePath: "/p/other.jsonl"},
	}}

	meta := newTestResolver().Resolve(testFile("/p/s1.jsonl"), records, index)

	assert.Equal(t, "Thread title", meta.Title)
	assert.Equal(t, conversation.TitleSourceCrossFile, meta.TitleSource)
	// 终端被其他文件引用即被取代
	assert.True(t, meta.IsSuperseded)
}

func TestResolver_OwnDeclarationIsNotForeign(t *testing.T) {
	records := parseLines(t,
		msgLine("a", "", false, "user", "hello", "2026-01-01T10:00:00Z"),
	)

	index := &ReferenceIndex{byTarget: map[string]Declaration{
		"a": {Title: "Self-title", TargetUUID: "a", SourcePath: "/p/s1.jsonl"},
	}}

	meta := newTestResolver().Resolve(testFile("/p/s1.jsonl"), records, index)

	assert.False(t, meta.IsSuperseded, "自身文件的声明不构成取代")
	assert.Equal(t, conversation.TitleSourceFirstUser, meta.TitleSource)
}

func TestResolver_TitlePriorityOrder(t *testing.T) {
	t.Run("首条用户消息", func(t *testing.T) {
		records := parseLines(t,
			msgLine("a", "", false, "assistant", "I am ready", "2026-01-01T10:00:00Z"),
			msgLine("b", "a", false, "user", "do the thing", "2026-01-01T10:01:00Z"),
		)
		meta := newTestResolver().Resolve(testFile("/p/s1.jsonl"), records, nil)
		assert.Equal(t, "do the thing", meta.Title)
		assert.Equal(t, conversation.TitleSourceFirstUser, meta.TitleSource)
	})

	t.Run("无用户消息时取首条消息", func(t *testing.T) {
		records := parseLines(t,
			msgLine("a", "", false, "assistant", "only assistant", "2026-01-01T10:00:00Z"),
		)
		meta := newTestResolver().Resolve(testFile("/p/s1.jsonl"), records, nil)
		assert.Equal(t, "only assistant", meta.Title)
		assert.Equal(t, conversation.TitleSourceFirstMessage, meta.TitleSource)
	})

	t.Run("只有后台消息", func(t *testing.T) {
		records := parseLines(t,
			msgLine("a", "", true, "user", "background probe", "2026-01-01T10:00:00Z"),
		)
		meta := newTestResolver().Resolve(testFile("/p/s1.jsonl"), records, nil)
		assert.Equal(t, "background probe", meta.Title)
		assert.Equal(t, conversation.TitleSourceBackground, meta.TitleSource)
		assert.False(t, meta.HasRealContent)
	})

	t.Run("空文件兜底", func(t *testing.T) {
		meta := newTestResolver().Resolve(testFile("/p/s1.jsonl"), nil, nil)
		assert.Equal(t, conversation.FallbackTitle, meta.Title)
		assert.Equal(t, conversation.TitleSourceFallback, meta.TitleSource)
	})
}

func TestResolver_SystemTextIgnored(t *testing.T) {
	records := parseLines(t,
		msgLine("a", "", false, "user", "<command-name>/init</command-name>", "2026-01-01T10:00:00Z"),
		msgLine("b", "a", false, "user", "[Request interrupted by user]", "2026-01-01T10:01:00Z"),
		msgLine("c", "b", false, "user", "actual request", "2026-01-01T10:02:00Z"),
	)

	meta := newTestResolver().Resolve(testFile("/p/s1.jsonl"), records, nil)

	assert.Equal(t, "actual request", meta.Title)
	assert.True(t, meta.HasRealContent)
}

func TestResolver_OnlySystemTextHasNoRealContent(t *testing.T) {
	records := parseLines(t,
		msgLine("a", "", false, "user", "<local-command-stdout></local-command-stdout>", "2026-01-01T10:00:00Z"),
	)

	meta := newTestResolver().Resolve(testFile("/p/s1.jsonl"), records, nil)

	assert.False(t, meta.HasRealContent)
	assert.Equal(t, conversation.FallbackTitle, meta.Title)
}

func TestResolver_RecencyExcludesTrailingBackground(t *testing.T) {
	records := parseLines(t,
		msgLine("a", "", false, "user", "hello", "2026-01-01T10:00:00Z"),
		msgLine("b", "a", false, "assistant", "hi", "2026-01-01T10:05:00Z"),
		// 主链结束后的纯后台活动
		msgLine("c", "b", true, "user", "probe", "2026-01-01T12:00:00Z"),
	)

	meta := newTestResolver().Resolve(testFile("/p/s1.jsonl"), records, nil)

	assert.Equal(t, mustTime(t, "2026-01-01T10:05:00Z"), meta.RecencyTimestamp,
		"排序时间取主链终端，不含后台")
	assert.Equal(t, mustTime(t, "2026-01-01T12:00:00Z"), meta.TrueLastActivity,
		"字面最后活动含后台")
}

func TestResolver_StaleReference(t *testing.T) {
	records := parseLines(t,
		summaryLine("Old title", "a"),
		msgLine("a", "", false, "user", "hello", "2026-01-01T10:00:00Z"),
		msgLine("b", "a", false, "assistant", "continued", "2026-01-01T10:05:00Z"),
	)

	meta := newTestResolver().Resolve(testFile("/p/s1.jsonl"), records, nil)

	require.NotNil(t, meta.StaleReference)
	assert.Equal(t, "Old title", meta.StaleReference.DeclaredTitle)
	assert.Equal(t, "a", meta.StaleReference.TargetUUID)
	assert.Equal(t, "b", meta.StaleReference.CurrentTerminalUUID)
}

func TestDeriveTitle(t *testing.T) {
	assert.Equal(t, "first line", deriveTitle("first line\nsecond line"))
	assert.Equal(t, "", deriveTitle("   "))
	assert.Equal(t, "", deriveTitle("<system-tag>x</system-tag>"))

	long := ""
	for i := 0; i < 150; i++ {
		long += "x"
	}
	derived := deriveTitle(long)
	assert.Len(t, []rune(derived), maxDerivedTitleLen+1, "超长内容截断并加省略号")
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}

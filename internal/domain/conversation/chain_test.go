package conversation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// parseFixture 解析测试文件内容，失败直接终止
func parseFixture(t *testing.T, lines ...string) []Record {
	t.Helper()
	records, err := ParseRecords([]byte(strings.Join(lines, "\n")), "fixture.jsonl")
	require.NoError(t, err)
	return records
}

func TestResolvePrimaryChain_Linear(t *testing.T) {
	records := parseFixture(t,
		msgLine("a", "", false, "user", "question", "2025-06-01T10:00:00Z"),
		msgLine("b", "a", false, "assistant", "answer", "2025-06-01T10:00:10Z"),
		msgLine("c", "b", false, "user", "follow up", "2025-06-01T10:00:20Z"),
	)

	chain := ResolvePrimaryChain(records)
	assert.Equal(t, "a", chain.RootID())
	assert.Equal(t, "c", chain.TerminalID())
	assert.Len(t, chain.Members, 3)
	assert.True(t, chain.Contains("b"))
}

func TestResolvePrimaryChain_CompactionIsolation(t *testing.T) {
	// 声明之后出现新根（compaction 边界），旧根下的消息不属于主链
	// 即使旧链包含文件中时间最新的活动
	records := parseFixture(t,
		msgLine("old-root", "", false, "user", "old question", "2025-06-01T09:00:00Z"),
		msgLine("old-leaf", "old-root", false, "assistant", "old answer", "2025-06-01T12:00:00Z"),
		summaryLine("压缩后的对话", "new-leaf"),
		msgLine("new-root", "", false, "user", "compacted context", "2025-06-01T10:00:00Z"),
		msgLine("new-leaf", "new-root", false, "assistant", "continue", "2025-06-01T10:30:00Z"),
	)

	chain := ResolvePrimaryChain(records)
	assert.Equal(t, "new-root", chain.RootID(), "主根应是最近声明之后的第一条根消息")
	assert.Equal(t, "new-leaf", chain.TerminalID())
	assert.False(t, chain.Contains("old-root"), "旧根不属于主链")
	assert.False(t, chain.Contains("old-leaf"), "旧链的最新活动也不属于主链")
}

func TestResolvePrimaryChain_TwoDeclarations(t *testing.T) {
	// D1 在前，D2 在后，以 D2 之后的根为准，D1 原根下的消息被排除
	records := parseFixture(t,
		summaryLine("D1", "leaf-1"),
		msgLine("root-1", "", false, "user", "first", "2025-06-01T10:00:00Z"),
		msgLine("leaf-1", "root-1", false, "assistant", "reply", "2025-06-01T10:01:00Z"),
		summaryLine("D2", "leaf-2"),
		msgLine("root-2", "", false, "user", "second", "2025-06-01T11:00:00Z"),
		msgLine("leaf-2", "root-2", false, "assistant", "reply2", "2025-06-01T11:01:00Z"),
	)

	chain := ResolvePrimaryChain(records)
	assert.Equal(t, "root-2", chain.RootID())
	assert.ElementsMatch(t, []string{"root-2", "leaf-2"}, memberList(chain))
}

func TestResolvePrimaryChain_FallbackToFirstRoot(t *testing.T) {
	// 声明之后没有新根时，回退到文件首条根消息
	records := parseFixture(t,
		msgLine("a", "", false, "user", "question", "2025-06-01T10:00:00Z"),
		msgLine("b", "a", false, "assistant", "answer", "2025-06-01T10:00:10Z"),
		summaryLine("末尾声明", "b"),
	)

	chain := ResolvePrimaryChain(records)
	assert.Equal(t, "a", chain.RootID())
	assert.Equal(t, "b", chain.TerminalID())
}

func TestResolvePrimaryChain_Branches(t *testing.T) {
	// 同一父消息的多个子消息是并列探索，全部属于主链
	records := parseFixture(t,
		msgLine("a", "", false, "user", "question", "2025-06-01T10:00:00Z"),
		msgLine("b1", "a", false, "assistant", "attempt 1", "2025-06-01T10:01:00Z"),
		msgLine("b2", "a", false, "assistant", "attempt 2", "2025-06-01T10:02:00Z"),
	)

	chain := ResolvePrimaryChain(records)
	assert.Len(t, chain.Members, 3)
	assert.Equal(t, "b2", chain.TerminalID(), "终端取时间最新的非后台成员")
}

func TestResolvePrimaryChain_SidechainExcludedFromTerminal(t *testing.T) {
	records := parseFixture(t,
		msgLine("a", "", false, "user", "question", "2025-06-01T10:00:00Z"),
		msgLine("b", "a", false, "assistant", "answer", "2025-06-01T10:01:00Z"),
		msgLine("c", "b", true, "assistant", "background", "2025-06-01T10:05:00Z"),
	)

	chain := ResolvePrimaryChain(records)
	assert.Equal(t, "b", chain.TerminalID(), "后台消息不参与终端选择")
	assert.True(t, chain.Contains("c"), "后台消息仍是链成员")
}

func TestResolvePrimaryChain_AllSidechain(t *testing.T) {
	records := parseFixture(t,
		msgLine("a", "", true, "user", "warmup", "2025-06-01T10:00:00Z"),
		msgLine("b", "a", true, "assistant", "ready", "2025-06-01T10:00:01Z"),
	)

	chain := ResolvePrimaryChain(records)
	assert.Equal(t, "a", chain.RootID())
	assert.Nil(t, chain.Terminal, "全部为后台消息时终端为 nil")
	assert.Empty(t, chain.TerminalID())
}

func TestResolvePrimaryChain_Empty(t *testing.T) {
	chain := ResolvePrimaryChain(nil)
	assert.Nil(t, chain.Root)
	assert.Nil(t, chain.Terminal)
	assert.Empty(t, chain.Members)
}

// memberList 提取成员 UUID 列表
func memberList(chain ChainResult) []string {
	ids := make([]string, 0, len(chain.Members))
	for _, m := range chain.Members {
		ids = append(ids, m.UUID)
	}
	return ids
}

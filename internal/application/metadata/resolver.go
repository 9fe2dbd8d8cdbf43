package metadata

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/coclaude/backend/internal/domain/conversation"
	"github.com/coclaude/backend/internal/infrastructure/config"
	"github.com/coclaude/backend/internal/infrastructure/log"
)

// maxDerivedTitleLen 从消息内容派生标题时的最大长度（按字符数）
const maxDerivedTitleLen = 100

// systemTextPattern 外部写入方注入的系统内容形状
// 带标签的命令回显、中断提示等不是用户输入，不能作为标题或真实内容
var systemTextPattern = regexp.MustCompile(`^\s*(<[a-z-]+>|\[[A-Za-z])`)

// Resolver 单文件元数据解析器
// 输入为已解析的记录序列与项目级引用索引，不做任何 IO
type Resolver struct {
	denylist []string
	logger   *slog.Logger
}

// NewResolver 创建元数据解析器
func NewResolver(cfg *config.ResolverConfig) *Resolver {
	denylist := make([]string, 0, len(cfg.BootstrapDenylist))
	for _, word := range cfg.BootstrapDenylist {
		denylist = append(denylist, strings.ToLower(word))
	}
	return &Resolver{
		denylist: denylist,
		logger:   log.NewModuleLogger("metadata", "resolver"),
	}
}

// Resolve 解析单个文件的元数据
func (r *Resolver) Resolve(file ProjectFile, records []conversation.Record, index *ReferenceIndex) conversation.ResolvedMetadata {
	chain := conversation.ResolvePrimaryChain(records)

	meta := conversation.ResolvedMetadata{
		Path:        file.Path,
		ProjectKey:  file.ProjectKey,
		SessionID:   file.SessionID,
		RecordCount: len(records),
		FileSize:    file.Size,
		IsArchived:  file.Archived,
	}

	// 字面最后活动时间：文件内最后一条带时间戳的消息（含后台）
	for _, m := range conversation.Messages(records) {
		if t := m.Time(); !t.IsZero() {
			meta.TrueLastActivity = t
		}
	}

	// 排序时间：主链终端时间；无终端时退回字面最后活动
	if chain.Terminal != nil {
		meta.RecencyTimestamp = chain.Terminal.Time()
	} else {
		meta.RecencyTimestamp = meta.TrueLastActivity
	}

	meta.HasRealContent = r.hasRealContent(chain)
	meta.Title, meta.TitleSource = r.resolveTitle(file, records, chain, index)

	// 取代判定：本文件终端被其他文件的声明引用
	if index != nil && chain.Terminal != nil {
		if _, ok := index.LookupForeign(chain.Terminal.UUID, file.Path); ok {
			meta.IsSuperseded = true
		}
	}

	meta.StaleReference = r.detectStaleReference(records, chain)

	return meta
}

// resolveTitle 按优先级解析标题
// 声明 > 跨文件引用 > 首条用户消息 > 首条消息 > 后台消息 > 兜底
func (r *Resolver) resolveTitle(
	file ProjectFile,
	records []conversation.Record,
	chain conversation.ChainResult,
	index *ReferenceIndex,
) (string, conversation.TitleSource) {
	// 1. 本文件内最后一条有效声明
	if title := r.lastValidDeclaration(records); title != "" {
		return title, conversation.TitleSourceDeclared
	}

	// 2. 其他文件的声明指向本文件主链终端
	if index != nil && chain.Terminal != nil {
		if d, ok := index.LookupForeign(chain.Terminal.UUID, file.Path); ok {
			if !r.isDenylisted(d.Title) {
				return d.Title, conversation.TitleSourceCrossFile
			}
		}
	}

	// 3. 主链第一条非后台用户消息
	for _, m := range chain.Members {
		if m.IsSidechain || m.Message.Role != "user" {
			continue
		}
		if title := deriveTitle(m.Message.Content.Text()); title != "" {
			return title, conversation.TitleSourceFirstUser
		}
	}

	// 4. 主链第一条非后台消息（任意角色）
	for _, m := range chain.Members {
		if m.IsSidechain {
			continue
		}
		if title := deriveTitle(m.Message.Content.Text()); title != "" {
			return title, conversation.TitleSourceFirstMessage
		}
	}

	// 5. 第一条后台消息（文件只有后台活动时）
	for _, m := range conversation.Messages(records) {
		if !m.IsSidechain {
			continue
		}
		if title := deriveTitle(m.Message.Content.Text()); title != "" {
			return title, conversation.TitleSourceBackground
		}
	}

	// 6. 兜底占位
	return conversation.FallbackTitle, conversation.TitleSourceFallback
}

// lastValidDeclaration 本文件内最后一条有效（非噪声）声明的标题
func (r *Resolver) lastValidDeclaration(records []conversation.Record) string {
	var title string
	for _, sum := range conversation.Summaries(records) {
		if sum.Summary == "" || r.isDenylisted(sum.Summary) {
			continue
		}
		title = sum.Summary
	}
	return title
}

// isDenylisted 标题是否命中引导/握手关键词
// 大小写不敏感的前缀匹配：引导声明以固定短语开头，
// 包含匹配会误伤恰好含关键词的用户标题
func (r *Resolver) isDenylisted(title string) bool {
	lower := strings.ToLower(strings.TrimSpace(title))
	for _, word := range r.denylist {
		if strings.HasPrefix(lower, word) {
			return true
		}
	}
	return false
}

// hasRealContent 主链内是否存在真实的用户可见内容
func (r *Resolver) hasRealContent(chain conversation.ChainResult) bool {
	for _, m := range chain.Members {
		if m.IsSidechain {
			continue
		}
		text := strings.TrimSpace(m.Message.Content.Text())
		if text != "" && !systemTextPattern.MatchString(text) {
			return true
		}
	}
	return false
}

// detectStaleReference 检测过期的标题引用
// 本文件最后一条声明指向的消息不再是当前主链终端时，
// 声明已经落后于对话的实际进展，交给修复协作方处理
func (r *Resolver) detectStaleReference(records []conversation.Record, chain conversation.ChainResult) *conversation.StaleReference {
	sums := conversation.Summaries(records)
	if len(sums) == 0 || chain.Terminal == nil {
		return nil
	}

	last := sums[len(sums)-1]
	if last.LeafUUID == "" || last.LeafUUID == chain.Terminal.UUID {
		return nil
	}

	return &conversation.StaleReference{
		DeclaredTitle:       last.Summary,
		TargetUUID:          last.LeafUUID,
		CurrentTerminalUUID: chain.Terminal.UUID,
	}
}

// deriveTitle 从消息内容派生标题
// 取首个非系统注入的行，截断到固定长度
func deriveTitle(text string) string {
	text = strings.TrimSpace(text)
	if text == "" || systemTextPattern.MatchString(text) {
		return ""
	}

	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = strings.TrimSpace(text[:idx])
	}
	if text == "" {
		return ""
	}

	runes := []rune(text)
	if len(runes) > maxDerivedTitleLen {
		return string(runes[:maxDerivedTitleLen]) + "…"
	}
	return text
}

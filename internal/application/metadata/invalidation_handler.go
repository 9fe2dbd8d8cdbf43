package metadata

import (
	"log/slog"

	"github.com/coclaude/backend/internal/domain/conversation"
	"github.com/coclaude/backend/internal/domain/events"
	"github.com/coclaude/backend/internal/infrastructure/log"
)

// InvalidationHandler 文件事件驱动的缓存失效协调器
// 订阅文件监听事件，把文件系统变更翻译成缓存操作和变更推送
type InvalidationHandler struct {
	service  *MetadataService
	repairer TitleRepairer
	logger   *slog.Logger
}

// NewInvalidationHandler 创建失效协调器
func NewInvalidationHandler(service *MetadataService, repairer TitleRepairer) *InvalidationHandler {
	return &InvalidationHandler{
		service:  service,
		repairer: repairer,
		logger:   log.NewModuleLogger("metadata", "invalidation"),
	}
}

// Register 订阅文件事件
func (h *InvalidationHandler) Register(bus events.EventBus) {
	bus.SubscribeMultiple(
		[]events.EventType{
			events.ConversationFileCreated,
			events.ConversationFileModified,
			events.ConversationFileDeleted,
		},
		events.HandlerFunc(h.handle),
	)
}

// handle 处理单个文件事件
func (h *InvalidationHandler) handle(event events.Event) error {
	e, ok := event.(*events.ConversationFileEvent)
	if !ok {
		return nil
	}

	if e.EventType == events.ConversationFileDeleted {
		h.handleDelete(e)
		return nil
	}

	// 初始扫描事件只说明文件存在，解析推迟到首次列表请求
	if e.InitialScan {
		return nil
	}

	h.handleChange(e)
	return nil
}

// handleDelete 删除：清两级缓存、删快照、推送
func (h *InvalidationHandler) handleDelete(e *events.ConversationFileEvent) {
	store := h.service.store
	store.InvalidateFile(e.FilePath)
	store.ExpireResolved(e.ProjectKey)

	if h.service.snapshot != nil {
		if err := h.service.snapshot.Delete(e.FilePath); err != nil {
			h.logger.Warn("Failed to delete snapshot",
				"path", e.FilePath,
				"error", err,
			)
		}
	}

	h.service.push(e.ProjectKey, e.FilePath, "deleted")
	h.logger.Info("Conversation removed",
		"path", e.FilePath,
		"project_key", e.ProjectKey,
	)
}

// handleChange 新建/修改：清缓存后立即重解析，发现过期引用交给修复方
func (h *InvalidationHandler) handleChange(e *events.ConversationFileEvent) {
	store := h.service.store
	store.InvalidateFile(e.FilePath)

	file, err := h.service.scanner.StatFile(e.FilePath)
	if err != nil {
		// 防抖窗口内文件可能已消失
		h.logger.Debug("Changed file no longer present", "path", e.FilePath)
		store.ExpireResolved(e.ProjectKey)
		return
	}

	meta, err := h.service.resolveSingle(file)
	if err != nil {
		h.logger.Warn("Failed to resolve changed conversation",
			"path", e.FilePath,
			"error", err,
		)
		store.ExpireResolved(e.ProjectKey)
		return
	}

	// 仅后台内容的文件不影响任何列表视图，只需丢弃原始记录缓存
	if !meta.HasRealContent && !meta.IsSuperseded {
		return
	}

	store.ExpireResolved(e.ProjectKey)
	h.service.persistSnapshot(meta, file)

	if meta.StaleReference != nil && h.repairer != nil {
		if err := h.repairer.RepairTitle(e.FilePath, *meta.StaleReference); err != nil {
			h.logger.Warn("Title repair failed",
				"path", e.FilePath,
				"error", err,
			)
		}
	}

	kind := "modified"
	if e.EventType == events.ConversationFileCreated {
		kind = "created"
	}
	h.service.push(e.ProjectKey, e.FilePath, kind)
}

// loggingTitleRepairer 默认的修复协作方：只记录，不改写用户文件
type loggingTitleRepairer struct {
	logger *slog.Logger
}

// NewLoggingTitleRepairer 创建日志型修复协作方
func NewLoggingTitleRepairer() TitleRepairer {
	return &loggingTitleRepairer{
		logger: log.NewModuleLogger("metadata", "title_repairer"),
	}
}

// RepairTitle 记录过期引用，由使用方自行决定是否重声明标题
func (r *loggingTitleRepairer) RepairTitle(path string, ref conversation.StaleReference) error {
	r.logger.Info("Stale title reference detected",
		"path", path,
		"declared_title", ref.DeclaredTitle,
		"target_uuid", ref.TargetUUID,
		"current_terminal_uuid", ref.CurrentTerminalUUID,
	)
	return nil
}

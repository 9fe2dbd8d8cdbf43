package metadata

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/coclaude/backend/internal/domain/conversation"
	"github.com/coclaude/backend/internal/infrastructure/cache"
	"github.com/coclaude/backend/internal/infrastructure/config"
	"github.com/coclaude/backend/internal/infrastructure/log"
	"github.com/coclaude/backend/internal/infrastructure/storage"
)

// UpdatePusher 变更通知推送接口
// 由 WebSocket 基础设施实现，应用层只依赖这个窄接口
type UpdatePusher interface {
	// Push 推送变更，kind 取值 created/modified/deleted/invalidated
	Push(projectKey, path, kind string) error
}

// TitleRepairer 过期标题引用的修复协作方
// 解析只负责检测，修复策略由实现方决定
type TitleRepairer interface {
	// RepairTitle 处理单个文件的过期引用
	RepairTitle(path string, ref conversation.StaleReference) error
}

// MetadataService 对话元数据应用服务
// 聚合目录扫描、解析与两级缓存的读穿逻辑，是 HTTP 层和事件处理的共用入口
type MetadataService struct {
	scanner  *DirectoryScanner
	resolver *Resolver
	store    *cache.CacheStore
	snapshot storage.SnapshotRepository
	pusher   UpdatePusher

	headLines int
	logger    *slog.Logger
}

// NewMetadataService 创建元数据服务
func NewMetadataService(
	scanner *DirectoryScanner,
	resolver *Resolver,
	store *cache.CacheStore,
	snapshot storage.SnapshotRepository,
	pusher UpdatePusher,
	resolverCfg *config.ResolverConfig,
) *MetadataService {
	return &MetadataService{
		scanner:   scanner,
		resolver:  resolver,
		store:     store,
		snapshot:  snapshot,
		pusher:    pusher,
		headLines: resolverCfg.HeadLines,
		logger:    log.NewModuleLogger("metadata", "service"),
	}
}

// ListProjects 列出在线项目区的全部项目
func (s *MetadataService) ListProjects() ([]ProjectInfo, error) {
	return s.scanner.ListProjects()
}

// ListProject 列出项目内全部对话的元数据，按最近活动降序
// includeBackgroundOnly 为 false 时过滤只有后台内容的文件
// showSuperseded 为 false 时隐藏被取代的文件（展示入口是取代它的文件）
// 取代过滤发生在读侧，缓存内保留全部条目
func (s *MetadataService) ListProject(projectKey string, includeBackgroundOnly, showSuperseded bool) ([]conversation.ResolvedMetadata, error) {
	if entries, ok := s.store.GetResolved(projectKey, includeBackgroundOnly); ok {
		return sortedList(filterSuperseded(entries, showSuperseded)), nil
	}

	entries, err := s.resolveProject(projectKey, includeBackgroundOnly)
	if err != nil {
		// 目录不可读时退回持久化快照，保证冷启动和暂时性 IO 错误下可用
		if s.snapshot != nil {
			s.logger.Warn("Falling back to persisted snapshots",
				"project_key", projectKey,
				"error", err,
			)
			list, snapErr := s.snapshot.ListByProject(projectKey)
			if snapErr != nil {
				return nil, snapErr
			}
			if showSuperseded {
				return list, nil
			}
			kept := list[:0]
			for _, meta := range list {
				if !meta.IsSuperseded {
					kept = append(kept, meta)
				}
			}
			return kept, nil
		}
		return nil, err
	}

	s.store.PutResolved(projectKey, includeBackgroundOnly, entries)
	return sortedList(filterSuperseded(entries, showSuperseded)), nil
}

// ListArchived 列出归档区某项目的对话元数据
// 归档区不被监听，每次按需解析（原始记录缓存仍然生效）
func (s *MetadataService) ListArchived(projectKey string) ([]conversation.ResolvedMetadata, error) {
	files, err := s.scanner.ListProjectFiles(projectKey, true)
	if err != nil {
		return nil, err
	}

	index := s.buildIndex(files)
	entries := make(map[string]conversation.ResolvedMetadata, len(files))
	for _, file := range files {
		records, err := s.loadRecords(file)
		if err != nil {
			s.logger.Warn("Skipping unreadable archived conversation",
				"path", file.Path,
				"error", err,
			)
			continue
		}
		meta := s.resolver.Resolve(file, records, index)
		entries[file.Path] = meta
	}
	return sortedList(entries), nil
}

// ResolveFile 解析单个对话文件的元数据（读穿缓存）
// 归档区路径自动识别；在线文件命中已解析缓存时直接返回
func (s *MetadataService) ResolveFile(path string) (conversation.ResolvedMetadata, error) {
	file, err := s.scanner.StatFile(path)
	if err != nil {
		return conversation.ResolvedMetadata{}, fmt.Errorf("failed to stat conversation file: %w", err)
	}

	if !file.Archived {
		for _, includeBG := range []bool{false, true} {
			if meta, ok := s.store.GetResolvedEntry(file.ProjectKey, includeBG, path); ok {
				return meta, nil
			}
		}
	}

	return s.resolveSingle(file)
}

// UpdateTitle 重命名对话：向文件追加一条指向当前终端的标题声明
// 随后原地替换该文件的已解析缓存，不触发整项目重扫
func (s *MetadataService) UpdateTitle(path, title string) (conversation.ResolvedMetadata, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return conversation.ResolvedMetadata{}, fmt.Errorf("title must not be empty")
	}

	file, err := s.scanner.StatFile(path)
	if err != nil {
		return conversation.ResolvedMetadata{}, fmt.Errorf("failed to stat conversation file: %w", err)
	}
	if file.Archived {
		return conversation.ResolvedMetadata{}, fmt.Errorf("archived conversations are read-only")
	}

	records, err := s.loadRecords(file)
	if err != nil {
		return conversation.ResolvedMetadata{}, err
	}
	chain := conversation.ResolvePrimaryChain(records)
	if chain.Terminal == nil {
		return conversation.ResolvedMetadata{}, fmt.Errorf("conversation has no terminal message")
	}

	if err := appendSummaryLine(path, title, chain.Terminal.UUID); err != nil {
		return conversation.ResolvedMetadata{}, err
	}

	// 文件已变，重新 stat 并解析
	file, err = s.scanner.StatFile(path)
	if err != nil {
		return conversation.ResolvedMetadata{}, err
	}
	s.store.InvalidateFile(path)

	meta, err := s.resolveSingle(file)
	if err != nil {
		return conversation.ResolvedMetadata{}, err
	}

	s.store.ReplaceSingle(path, meta)
	s.persistSnapshot(meta, file)
	s.push(file.ProjectKey, path, "modified")

	s.logger.Info("Conversation renamed",
		"path", path,
		"title", title,
	)
	return meta, nil
}

// InvalidateProject 整项目失效，持久化快照一并丢弃
func (s *MetadataService) InvalidateProject(projectKey string) {
	s.store.InvalidateProject(projectKey)
	if s.snapshot != nil {
		if err := s.snapshot.DeleteByProject(projectKey); err != nil {
			s.logger.Warn("Failed to delete project snapshots",
				"project_key", projectKey,
				"error", err,
			)
		}
	}
	s.push(projectKey, "", "invalidated")
}

// InvalidateFile 单文件失效
// 跨文件引用可能受影响，所属项目的已解析缓存一并过期
func (s *MetadataService) InvalidateFile(path string) {
	file, err := s.scanner.StatFile(path)
	s.store.InvalidateFile(path)
	if err == nil {
		s.store.ExpireResolved(file.ProjectKey)
		s.push(file.ProjectKey, path, "invalidated")
	}
}

// NotifyChange 外部写入方上报的文件变更
// kind 取值 created/modified/deleted，留空按 modified 处理
// 删除通知不 stat 文件（文件已不存在），直接清缓存、删快照并推送
func (s *MetadataService) NotifyChange(path, kind string) {
	if kind != "deleted" {
		s.InvalidateFile(path)
		return
	}

	projectKey := filepath.Base(filepath.Dir(path))
	s.store.InvalidateFile(path)
	s.store.ExpireResolved(projectKey)
	if s.snapshot != nil {
		if err := s.snapshot.Delete(path); err != nil {
			s.logger.Warn("Failed to delete snapshot",
				"path", path,
				"error", err,
			)
		}
	}
	s.push(projectKey, path, "deleted")
}

// resolveProject 解析项目内全部在线文件
func (s *MetadataService) resolveProject(projectKey string, includeBackgroundOnly bool) (map[string]conversation.ResolvedMetadata, error) {
	files, err := s.scanner.ListProjectFiles(projectKey, false)
	if err != nil {
		return nil, err
	}

	index := s.buildIndex(files)
	entries := make(map[string]conversation.ResolvedMetadata, len(files))

	for _, file := range files {
		records, err := s.loadRecords(file)
		if err != nil {
			s.logger.Warn("Skipping unreadable conversation",
				"path", file.Path,
				"error", err,
			)
			continue
		}

		meta := s.resolver.Resolve(file, records, index)
		if !includeBackgroundOnly && !meta.HasRealContent && !meta.IsSuperseded {
			continue
		}

		entries[file.Path] = meta
		s.persistSnapshot(meta, file)
	}

	return entries, nil
}

// resolveSingle 解析单个文件（构建所属项目的索引后解析）
func (s *MetadataService) resolveSingle(file ProjectFile) (conversation.ResolvedMetadata, error) {
	records, err := s.loadRecords(file)
	if err != nil {
		return conversation.ResolvedMetadata{}, err
	}

	files, err := s.scanner.ListProjectFiles(file.ProjectKey, file.Archived)
	if err != nil {
		files = []ProjectFile{file}
	}
	index := s.buildIndex(files)

	return s.resolver.Resolve(file, records, index), nil
}

// loadRecords 读穿原始记录缓存
// 文件修改时间一致时命中；否则读盘解析并回填
func (s *MetadataService) loadRecords(file ProjectFile) ([]conversation.Record, error) {
	if records, ok := s.store.GetRecords(file.Path, file.ModTime); ok {
		return records, nil
	}

	data, err := os.ReadFile(file.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation file: %w", err)
	}

	records, err := conversation.ParseRecords(data, file.Path)
	if err != nil {
		return nil, err
	}

	s.store.PutRecords(file.Path, file.ProjectKey, file.ModTime, records)
	return records, nil
}

// buildIndex 构建项目级跨文件引用索引
// 命中记录缓存时直接取声明；未命中只解析文件头部，避免为索引读完大文件
func (s *MetadataService) buildIndex(files []ProjectFile) *ReferenceIndex {
	return BuildReferenceIndex(files, func(file ProjectFile) []*conversation.SummaryRecord {
		if records, ok := s.store.GetRecords(file.Path, file.ModTime); ok {
			return conversation.Summaries(records)
		}

		data, err := os.ReadFile(file.Path)
		if err != nil {
			return nil
		}
		records, err := conversation.ParseRecordsBounded(data, file.Path, s.headLines)
		if err != nil {
			s.logger.Debug("Skipping file in reference index",
				"path", file.Path,
				"error", err,
			)
			return nil
		}
		return conversation.Summaries(records)
	})
}

// persistSnapshot 尽力而为地持久化快照，失败只记日志
func (s *MetadataService) persistSnapshot(meta conversation.ResolvedMetadata, file ProjectFile) {
	if s.snapshot == nil || meta.IsArchived {
		return
	}
	if err := s.snapshot.Upsert(meta, file.ModTime); err != nil {
		s.logger.Warn("Failed to persist metadata snapshot",
			"path", meta.Path,
			"error", err,
		)
	}
}

// push 尽力而为地推送变更通知
func (s *MetadataService) push(projectKey, path, kind string) {
	if s.pusher == nil {
		return
	}
	if err := s.pusher.Push(projectKey, path, kind); err != nil {
		s.logger.Debug("Failed to push update notice", "error", err)
	}
}

// appendSummaryLine 向对话文件末尾追加一条标题声明
func appendSummaryLine(path, title, leafUUID string) error {
	line, err := json.Marshal(map[string]string{
		"type":     "summary",
		"summary":  title,
		"leafUuid": leafUUID,
	})
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open conversation file for append: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append title declaration: %w", err)
	}
	return nil
}

// filterSuperseded 读侧过滤被取代的条目，show 为 true 时原样返回
func filterSuperseded(entries map[string]conversation.ResolvedMetadata, show bool) map[string]conversation.ResolvedMetadata {
	if show {
		return entries
	}
	kept := make(map[string]conversation.ResolvedMetadata, len(entries))
	for path, meta := range entries {
		if meta.IsSuperseded {
			continue
		}
		kept[path] = meta
	}
	return kept
}

// sortedList 输出排序后的元数据列表
// 最近活动降序；平局时按字面最后活动降序，再按路径升序保证稳定
func sortedList(entries map[string]conversation.ResolvedMetadata) []conversation.ResolvedMetadata {
	out := make([]conversation.ResolvedMetadata, 0, len(entries))
	for _, meta := range entries {
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RecencyTimestamp.Equal(out[j].RecencyTimestamp) {
			return out[i].RecencyTimestamp.After(out[j].RecencyTimestamp)
		}
		if !out[i].TrueLastActivity.Equal(out[j].TrueLastActivity) {
			return out[i].TrueLastActivity.After(out[j].TrueLastActivity)
		}
		return out[i].Path < out[j].Path
	})
	return out
}

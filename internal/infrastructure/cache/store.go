// Package cache 提供对话元数据的两级内存缓存
// 第一级：原始解析记录，按文件修改时间判定有效性
// 第二级：已解析元数据，按项目维度带 TTL 的时间窗判定有效性
package cache

import (
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/coclaude/backend/internal/domain/conversation"
	"github.com/coclaude/backend/internal/infrastructure/config"
	"github.com/coclaude/backend/internal/infrastructure/log"
)

// recordEntry 原始记录缓存条目
type recordEntry struct {
	// records 解析后的记录序列
	records []conversation.Record
	// modTime 有效性凭据：缓存时的文件修改时间
	modTime time.Time
	// projectKey 所属项目，供整项目失效使用
	projectKey string
	// storedAt 写入时间，供超限淘汰使用
	storedAt time.Time
}

// resolvedKey 已解析缓存的分组键
// 同一项目按是否包含纯后台文件分成两组独立缓存
type resolvedKey struct {
	projectKey            string
	includeBackgroundOnly bool
}

// resolvedEpoch 某个项目分组的已解析缓存
type resolvedEpoch struct {
	// entries 规范化路径 → 元数据
	entries map[string]conversation.ResolvedMetadata
	// epoch 建立时间，now-epoch 超过 TTL 即整组失效
	epoch time.Time
}

// evictFraction 超限时淘汰最旧条目的比例
const evictFraction = 0.2

// CacheStore 缓存容器
// 由组合根持有并注入协作方，不使用包级单例，便于测试中创建独立实例
type CacheStore struct {
	mu       sync.RWMutex
	records  map[string]*recordEntry
	resolved map[resolvedKey]*resolvedEpoch

	ttl        time.Duration
	maxRecords int
	sweepEvery time.Duration

	logger *slog.Logger
	stopCh chan struct{}
	wg     sync.WaitGroup

	// now 可注入的时钟，测试用
	now func() time.Time
}

// NewCacheStore 创建缓存容器
func NewCacheStore(cfg *config.CacheConfig) *CacheStore {
	return &CacheStore{
		records:    make(map[string]*recordEntry),
		resolved:   make(map[resolvedKey]*resolvedEpoch),
		ttl:        cfg.ResolvedTTL.Std(),
		maxRecords: cfg.MaxRecordEntries,
		sweepEvery: cfg.SweepInterval.Std(),
		logger:     log.NewModuleLogger("cache", "store"),
		stopCh:     make(chan struct{}),
		now:        time.Now,
	}
}

// NormalizeKey 规范化缓存键
// 路径分隔符统一为 /，大小写不敏感（兼容大小写不敏感的文件系统）
func NormalizeKey(path string) string {
	return strings.ToLower(filepath.ToSlash(path))
}

// GetRecords 读取原始记录缓存
// 仅当调用方提供的当前文件修改时间与缓存凭据一致时命中
func (s *CacheStore) GetRecords(path string, modTime time.Time) ([]conversation.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.records[NormalizeKey(path)]
	if !ok || !entry.modTime.Equal(modTime) {
		return nil, false
	}
	return entry.records, true
}

// PutRecords 写入原始记录缓存
func (s *CacheStore) PutRecords(path, projectKey string, modTime time.Time, records []conversation.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[NormalizeKey(path)] = &recordEntry{
		records:    records,
		modTime:    modTime,
		projectKey: projectKey,
		storedAt:   s.now(),
	}
}

// GetResolved 读取某项目分组的全部已解析元数据
// 组的 epoch 超过 TTL 时未命中
func (s *CacheStore) GetResolved(projectKey string, includeBackgroundOnly bool) (map[string]conversation.ResolvedMetadata, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	group, ok := s.resolved[resolvedKey{projectKey, includeBackgroundOnly}]
	if !ok || s.now().Sub(group.epoch) >= s.ttl {
		return nil, false
	}

	// 返回副本，调用方持有的 map 不受后续失效影响
	out := make(map[string]conversation.ResolvedMetadata, len(group.entries))
	for k, v := range group.entries {
		out[k] = v
	}
	return out, true
}

// GetResolvedEntry 读取单个文件的已解析元数据
func (s *CacheStore) GetResolvedEntry(projectKey string, includeBackgroundOnly bool, path string) (conversation.ResolvedMetadata, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	group, ok := s.resolved[resolvedKey{projectKey, includeBackgroundOnly}]
	if !ok || s.now().Sub(group.epoch) >= s.ttl {
		return conversation.ResolvedMetadata{}, false
	}
	meta, ok := group.entries[NormalizeKey(path)]
	return meta, ok
}

// PutResolved 写入某项目分组的全部已解析元数据，重置 epoch
func (s *CacheStore) PutResolved(projectKey string, includeBackgroundOnly bool, entries map[string]conversation.ResolvedMetadata) {
	normalized := make(map[string]conversation.ResolvedMetadata, len(entries))
	for k, v := range entries {
		normalized[NormalizeKey(k)] = v
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.resolved[resolvedKey{projectKey, includeBackgroundOnly}] = &resolvedEpoch{
		entries: normalized,
		epoch:   s.now(),
	}
}

// ReplaceSingle 原地替换单个文件的已解析元数据，不重置 epoch
// 用于调用方已知的单文件变更（如刚执行的重命名），避免整项目重扫
func (s *CacheStore) ReplaceSingle(path string, meta conversation.ResolvedMetadata) {
	key := NormalizeKey(path)

	s.mu.Lock()
	defer s.mu.Unlock()

	for rk, group := range s.resolved {
		if rk.projectKey != meta.ProjectKey {
			continue
		}
		if _, ok := group.entries[key]; ok {
			group.entries[key] = meta
		}
	}
}

// InvalidateProject 整项目失效：清空原始记录与已解析两级缓存
func (s *CacheStore) InvalidateProject(projectKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, entry := range s.records {
		if entry.projectKey == projectKey {
			delete(s.records, key)
		}
	}
	for rk := range s.resolved {
		if rk.projectKey == projectKey {
			delete(s.resolved, rk)
		}
	}
}

// InvalidateFile 单文件失效：删除原始记录条目
// 跨文件引用可能受影响，调用方应同时让所属项目的已解析缓存过期
func (s *CacheStore) InvalidateFile(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, NormalizeKey(path))
}

// ExpireResolved 强制某项目的已解析缓存立即过期（两个分组都过期）
func (s *CacheStore) ExpireResolved(projectKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for rk, group := range s.resolved {
		if rk.projectKey == projectKey {
			group.epoch = time.Time{}
		}
	}
}

// Start 启动周期性超限清理
func (s *CacheStore) Start() {
	s.wg.Add(1)
	go s.sweepLoop()
}

// Stop 停止周期性清理
func (s *CacheStore) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

// sweepLoop 周期性检查原始记录缓存容量
// 不在每次写入时检查，避免给读写路径增加开销
func (s *CacheStore) sweepLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweepOnce()
		}
	}
}

// sweepOnce 超限时淘汰最旧的约 20% 条目
func (s *CacheStore) sweepOnce() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxRecords <= 0 || len(s.records) <= s.maxRecords {
		return
	}

	type aged struct {
		key      string
		storedAt time.Time
	}
	entries := make([]aged, 0, len(s.records))
	for key, entry := range s.records {
		entries = append(entries, aged{key, entry.storedAt})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].storedAt.Before(entries[j].storedAt)
	})

	evictCount := int(float64(len(entries)) * evictFraction)
	if evictCount < 1 {
		evictCount = 1
	}
	for _, e := range entries[:evictCount] {
		delete(s.records, e.key)
	}

	s.logger.Debug("Record cache sweep completed",
		"evicted", evictCount,
		"remaining", len(s.records),
	)
}

// RecordCount 当前原始记录缓存条目数（供观测与测试）
func (s *CacheStore) RecordCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

package watcher

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coclaude/backend/internal/domain/events"
	"github.com/coclaude/backend/internal/infrastructure/config"
	"github.com/coclaude/backend/internal/infrastructure/log"
	"github.com/fsnotify/fsnotify"
)

// WatchConfig FileWatcher 配置
type WatchConfig struct {
	// ProjectsDir 在线项目区目录（~/.claude/projects）
	ProjectsDir string
	// DebounceDelay 防抖延迟
	DebounceDelay time.Duration
	// LoadGracePeriod 全量扫描结束后的静默期
	LoadGracePeriod time.Duration
}

// NewWatchConfig 从应用配置构造监听配置
func NewWatchConfig(claudeCfg *config.ClaudeConfig, watcherCfg *config.WatcherConfig) WatchConfig {
	return WatchConfig{
		ProjectsDir:     claudeCfg.ProjectsDir(),
		DebounceDelay:   watcherCfg.DebounceDelay.Std(),
		LoadGracePeriod: watcherCfg.LoadGracePeriod.Std(),
	}
}

// FileWatcher 对话文件监听器
// 每个路径独立防抖：新通知取消旧定时器重新计时（last-writer-wins）
// 删除事件绕过防抖立即发布；全量扫描期间及其后的静默期内丢弃全部通知
type FileWatcher struct {
	config   WatchConfig
	eventBus events.EventBus
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	// 防抖相关
	debounceTimers map[string]*time.Timer
	debounceMu     sync.Mutex

	// suppressed 丢弃通知标志（初始扫描与静默期）
	suppressed atomic.Bool

	// 控制
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewFileWatcher 创建文件监听器
func NewFileWatcher(config WatchConfig, eventBus events.EventBus) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &FileWatcher{
		config:         config,
		eventBus:       eventBus,
		watcher:        watcher,
		logger:         log.NewModuleLogger("watcher", "file_watcher"),
		debounceTimers: make(map[string]*time.Timer),
		stopCh:         make(chan struct{}),
	}, nil
}

// Start 启动文件监听
func (fw *FileWatcher) Start() error {
	fw.logger.Info("Starting file watcher",
		"projects_dir", fw.config.ProjectsDir,
	)

	// 初始扫描期间丢弃文件系统通知，避免与冷启动扫描互相干扰
	fw.BeginBulkLoad()

	count := fw.performInitialScan()
	fw.logger.Info("Initial scan completed", "conversations", count)

	if err := fw.addWatchDirs(); err != nil {
		return err
	}

	// 扫描本身会触发虚假事件，静默期结束后才恢复接收
	fw.EndBulkLoad()

	fw.wg.Add(1)
	go fw.watchLoop()

	return nil
}

// Stop 停止文件监听
func (fw *FileWatcher) Stop() {
	fw.logger.Info("Stopping file watcher")

	close(fw.stopCh)
	fw.watcher.Close()
	fw.wg.Wait()

	// 取消所有防抖定时器
	fw.debounceMu.Lock()
	for _, timer := range fw.debounceTimers {
		timer.Stop()
	}
	fw.debounceMu.Unlock()

	fw.logger.Info("File watcher stopped")
}

// BeginBulkLoad 进入批量加载状态，期间所有通知被丢弃（不排队）
func (fw *FileWatcher) BeginBulkLoad() {
	fw.suppressed.Store(true)
}

// EndBulkLoad 结束批量加载，静默期过后恢复接收通知
func (fw *FileWatcher) EndBulkLoad() {
	time.AfterFunc(fw.config.LoadGracePeriod, func() {
		fw.suppressed.Store(false)
		fw.logger.Debug("Notification suppression lifted")
	})
}

// performInitialScan 启动时全量扫描项目区，发布 created 事件
func (fw *FileWatcher) performInitialScan() int {
	startTime := time.Now()
	count := 0

	entries, err := os.ReadDir(fw.config.ProjectsDir)
	if err != nil {
		fw.logger.Warn("Failed to read projects directory", "error", err)
		return count
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		projectKey := entry.Name()
		projectDir := filepath.Join(fw.config.ProjectsDir, projectKey)

		files, err := os.ReadDir(projectDir)
		if err != nil {
			continue
		}

		for _, file := range files {
			if !strings.HasSuffix(file.Name(), ".jsonl") {
				continue
			}

			filePath := filepath.Join(projectDir, file.Name())
			fileInfo, err := os.Stat(filePath)
			if err != nil {
				continue
			}

			fw.eventBus.Publish(&events.ConversationFileEvent{
				EventType:   events.ConversationFileCreated,
				SessionID:   strings.TrimSuffix(file.Name(), ".jsonl"),
				ProjectKey:  projectKey,
				FilePath:    filePath,
				ModTime:     fileInfo.ModTime(),
				FileSize:    fileInfo.Size(),
				InitialScan: true,
				EventTime:   time.Now(),
			})
			count++
		}
	}

	fw.logger.Info("Projects directory scanned",
		"conversations", count,
		"duration", time.Since(startTime),
	)
	return count
}

// addWatchDirs 添加监听目录：项目区根目录及每个项目子目录
func (fw *FileWatcher) addWatchDirs() error {
	if err := fw.watcher.Add(fw.config.ProjectsDir); err != nil {
		fw.logger.Warn("Failed to watch projects directory", "error", err)
	}

	entries, err := os.ReadDir(fw.config.ProjectsDir)
	if err != nil {
		return nil
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(fw.config.ProjectsDir, entry.Name())
		if err := fw.watcher.Add(dir); err != nil {
			fw.logger.Debug("Failed to add project directory to watch",
				"path", dir,
				"error", err,
			)
		}
	}

	return nil
}

// watchLoop 事件监听循环
func (fw *FileWatcher) watchLoop() {
	defer fw.wg.Done()

	for {
		select {
		case <-fw.stopCh:
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleFsEvent(event)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Error("Watcher error", "error", err)
		}
	}
}

// handleFsEvent 处理文件系统事件
func (fw *FileWatcher) handleFsEvent(event fsnotify.Event) {
	if fw.suppressed.Load() {
		return
	}

	// 新建的项目目录需要加入监听
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if filepath.Dir(event.Name) == fw.config.ProjectsDir {
				_ = fw.watcher.Add(event.Name)
			}
			return
		}
	}

	if !fw.isConversationFile(event.Name) {
		return
	}

	// 删除不防抖：缓存必须立即失效
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		fw.cancelDebounce(event.Name)
		fw.emitFileEvent(event)
		return
	}

	fw.debounceFileEvent(event)
}

// isConversationFile 判断是否为对话文件
func (fw *FileWatcher) isConversationFile(path string) bool {
	return strings.HasSuffix(path, ".jsonl") &&
		strings.HasPrefix(path, fw.config.ProjectsDir)
}

// debounceFileEvent 处理写入类事件（带防抖）
func (fw *FileWatcher) debounceFileEvent(fsEvent fsnotify.Event) {
	fw.debounceMu.Lock()
	defer fw.debounceMu.Unlock()

	// 取消之前的定时器，重新计时
	if timer, exists := fw.debounceTimers[fsEvent.Name]; exists {
		timer.Stop()
	}

	fw.debounceTimers[fsEvent.Name] = time.AfterFunc(fw.config.DebounceDelay, func() {
		fw.emitFileEvent(fsEvent)

		// 清理定时器
		fw.debounceMu.Lock()
		delete(fw.debounceTimers, fsEvent.Name)
		fw.debounceMu.Unlock()
	})
}

// cancelDebounce 取消路径上挂起的防抖定时器
func (fw *FileWatcher) cancelDebounce(path string) {
	fw.debounceMu.Lock()
	defer fw.debounceMu.Unlock()

	if timer, exists := fw.debounceTimers[path]; exists {
		timer.Stop()
		delete(fw.debounceTimers, path)
	}
}

// emitFileEvent 发布对话文件事件
func (fw *FileWatcher) emitFileEvent(fsEvent fsnotify.Event) {
	sessionID, projectKey := fw.parseConversationPath(fsEvent.Name)
	if sessionID == "" {
		return
	}

	// 确定事件类型
	var eventType events.EventType
	switch {
	case fsEvent.Has(fsnotify.Remove) || fsEvent.Has(fsnotify.Rename):
		eventType = events.ConversationFileDeleted
	case fsEvent.Has(fsnotify.Create):
		eventType = events.ConversationFileCreated
	case fsEvent.Has(fsnotify.Write):
		eventType = events.ConversationFileModified
	default:
		return
	}

	// 文件在防抖窗口内消失时按删除处理
	var modTime time.Time
	var fileSize int64
	if fileInfo, err := os.Stat(fsEvent.Name); err == nil {
		modTime = fileInfo.ModTime()
		fileSize = fileInfo.Size()
	} else if eventType != events.ConversationFileDeleted && os.IsNotExist(err) {
		eventType = events.ConversationFileDeleted
	}

	fw.eventBus.Publish(&events.ConversationFileEvent{
		EventType:  eventType,
		SessionID:  sessionID,
		ProjectKey: projectKey,
		FilePath:   fsEvent.Name,
		ModTime:    modTime,
		FileSize:   fileSize,
		EventTime:  time.Now(),
	})

	fw.logger.Debug("Conversation file event emitted",
		"type", eventType,
		"session_id", sessionID,
		"project_key", projectKey,
	)
}

// parseConversationPath 解析对话文件路径
// 输入：<projects>/<project-key>/<session-id>.jsonl
// 输出：sessionID、projectKey
func (fw *FileWatcher) parseConversationPath(path string) (sessionID, projectKey string) {
	fileName := filepath.Base(path)
	if !strings.HasSuffix(fileName, ".jsonl") {
		return "", ""
	}
	sessionID = strings.TrimSuffix(fileName, ".jsonl")
	projectKey = filepath.Base(filepath.Dir(path))
	return sessionID, projectKey
}

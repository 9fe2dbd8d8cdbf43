// Package metadata 提供对话元数据的解析、缓存与失效协调
// 领域层负责单文件的记录模型与主链求解，本包在其上组合出
// 项目级的跨文件索引、标题解析与两级缓存的读穿逻辑
package metadata

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/coclaude/backend/internal/infrastructure/config"
	"github.com/coclaude/backend/internal/infrastructure/log"
)

// ProjectFile 项目内的一个对话文件
type ProjectFile struct {
	// Path 完整路径
	Path string
	// ProjectKey 项目标识（projects 下的目录名）
	ProjectKey string
	// SessionID 会话 ID（文件名去掉 .jsonl 后缀）
	SessionID string
	// ModTime 文件修改时间（缓存有效性凭据）
	ModTime time.Time
	// Size 文件大小（字节）
	Size int64
	// Archived 是否位于归档区
	Archived bool
}

// ProjectInfo 项目概要
type ProjectInfo struct {
	// ProjectKey 项目标识
	ProjectKey string `json:"project_key"`
	// ConversationCount 在线对话文件数
	ConversationCount int `json:"conversation_count"`
	// LastModified 最近一次文件修改时间
	LastModified time.Time `json:"last_modified"`
}

// DirectoryScanner 对话目录扫描器
// 在线项目区被监听、参与索引；归档区只按需读取
type DirectoryScanner struct {
	claudeCfg *config.ClaudeConfig
	logger    *slog.Logger
}

// NewDirectoryScanner 创建目录扫描器
func NewDirectoryScanner(claudeCfg *config.ClaudeConfig) *DirectoryScanner {
	return &DirectoryScanner{
		claudeCfg: claudeCfg,
		logger:    log.NewModuleLogger("metadata", "scanner"),
	}
}

// ListProjects 列出在线项目区的全部项目
func (s *DirectoryScanner) ListProjects() ([]ProjectInfo, error) {
	entries, err := os.ReadDir(s.claudeCfg.ProjectsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	projects := make([]ProjectInfo, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info := ProjectInfo{ProjectKey: entry.Name()}

		files, err := s.ListProjectFiles(entry.Name(), false)
		if err != nil {
			continue
		}
		info.ConversationCount = len(files)
		for _, f := range files {
			if f.ModTime.After(info.LastModified) {
				info.LastModified = f.ModTime
			}
		}
		projects = append(projects, info)
	}

	sort.Slice(projects, func(i, j int) bool {
		return projects[i].ProjectKey < projects[j].ProjectKey
	})
	return projects, nil
}

// ListProjectFiles 列出项目内的对话文件，按路径排序保证遍历顺序可复现
// archived 为 true 时读取归档区
func (s *DirectoryScanner) ListProjectFiles(projectKey string, archived bool) ([]ProjectFile, error) {
	base := s.claudeCfg.ProjectsDir()
	if archived {
		base = s.claudeCfg.ArchiveDir()
	}
	dir := filepath.Join(base, projectKey)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	files := make([]ProjectFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, ProjectFile{
			Path:       filepath.Join(dir, entry.Name()),
			ProjectKey: projectKey,
			SessionID:  strings.TrimSuffix(entry.Name(), ".jsonl"),
			ModTime:    info.ModTime(),
			Size:       info.Size(),
			Archived:   archived,
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})
	return files, nil
}

// StatFile 按路径构造 ProjectFile，自动识别是否位于归档区
func (s *DirectoryScanner) StatFile(path string) (ProjectFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return ProjectFile{}, err
	}

	archived := strings.HasPrefix(path, s.claudeCfg.ArchiveDir()+string(filepath.Separator))
	return ProjectFile{
		Path:       path,
		ProjectKey: filepath.Base(filepath.Dir(path)),
		SessionID:  strings.TrimSuffix(filepath.Base(path), ".jsonl"),
		ModTime:    info.ModTime(),
		Size:       info.Size(),
		Archived:   archived,
	}, nil
}

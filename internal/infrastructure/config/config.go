// Package config 提供应用配置与数据目录管理
package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// EnvHTTPPort HTTP 端口环境变量名
	EnvHTTPPort = "COCLAUDE_HTTP_PORT"
	// DefaultHTTPPort 默认 HTTP 端口
	DefaultHTTPPort = ":19970"
	// ConfigFileName 配置文件名（位于数据目录下）
	ConfigFileName = "config.yaml"
)

// Config 应用配置
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Claude   ClaudeConfig   `yaml:"claude"`
	Watcher  WatcherConfig  `yaml:"watcher"`
	Cache    CacheConfig    `yaml:"cache"`
	Resolver ResolverConfig `yaml:"resolver"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// HTTPPort 固定端口，同时用于单实例检测
	HTTPPort string `yaml:"http_port"`
}

// ClaudeConfig Claude 数据目录配置
// 用于自定义对话文件根目录（主要用于 WSL 等特殊环境和测试）
type ClaudeConfig struct {
	// RootDir 对话数据根目录
	// 例如: /home/xxx/.claude
	// 留空表示自动检测 ~/.claude
	RootDir string `yaml:"root_dir"`
}

// ProjectsDir 在线项目区目录（被监听、参与索引）
func (c ClaudeConfig) ProjectsDir() string {
	return filepath.Join(c.RootDir, "projects")
}

// ArchiveDir 归档区目录（按需读取，不监听、不参与索引）
func (c ClaudeConfig) ArchiveDir() string {
	return filepath.Join(c.RootDir, "archive")
}

// WatcherConfig 文件监听配置
type WatcherConfig struct {
	// DebounceDelay 防抖延迟
	DebounceDelay Duration `yaml:"debounce_delay"`
	// LoadGracePeriod 全量扫描结束后的静默期
	// 扫描本身会触发虚假的文件系统事件，这段时间内的通知被丢弃
	LoadGracePeriod Duration `yaml:"load_grace_period"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	// ResolvedTTL 已解析元数据的有效期
	ResolvedTTL Duration `yaml:"resolved_ttl"`
	// MaxRecordEntries 原始记录缓存的条目上限
	MaxRecordEntries int `yaml:"max_record_entries"`
	// SweepInterval 超限清理的扫描周期
	SweepInterval Duration `yaml:"sweep_interval"`
}

// ResolverConfig 元数据解析配置
type ResolverConfig struct {
	// BootstrapDenylist 引导/握手标题关键词（大小写不敏感的前缀匹配）
	// 以关键词开头的标题声明视为噪声而不是真实标题
	// 这是对外部写入方行为的启发式归纳，保持可配置
	BootstrapDenylist []string `yaml:"bootstrap_denylist"`
	// HeadLines 快速路径只读取文件头部的行数
	HeadLines int `yaml:"head_lines"`
}

// NewConfig 创建配置：默认值 + 配置文件覆盖 + 环境变量覆盖
func NewConfig() *Config {
	cfg := defaultConfig()

	// 配置文件覆盖（不存在时静默跳过）
	path := filepath.Join(GetDataDir(), ConfigFileName)
	if data, err := os.ReadFile(path); err == nil {
		_ = yaml.Unmarshal(data, cfg)
	}

	// 环境变量覆盖
	if port := os.Getenv(EnvHTTPPort); port != "" {
		cfg.Server.HTTPPort = port
	}

	if cfg.Claude.RootDir == "" {
		cfg.Claude.RootDir = defaultClaudeRoot()
	}

	return cfg
}

// defaultConfig 返回默认配置
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort: DefaultHTTPPort,
		},
		Claude: ClaudeConfig{
			RootDir: "", // 空表示自动检测
		},
		Watcher: WatcherConfig{
			DebounceDelay:   Duration(500 * time.Millisecond),
			LoadGracePeriod: Duration(2 * time.Second),
		},
		Cache: CacheConfig{
			ResolvedTTL:      Duration(60 * time.Second),
			MaxRecordEntries: 500,
			SweepInterval:    Duration(30 * time.Second),
		},
		Resolver: ResolverConfig{
			BootstrapDenylist: []string{
				"caveat",
				"api error",
				"warmup",
				"session started",
				"continued from previous conversation",
			},
			HeadLines: 50,
		},
	}
}

// defaultClaudeRoot 自动检测对话数据根目录
func defaultClaudeRoot() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".claude"
	}
	return filepath.Join(homeDir, ".claude")
}

// NewServerConfig 提供服务器配置
func NewServerConfig(cfg *Config) *ServerConfig {
	return &cfg.Server
}

// NewClaudeConfig 提供 Claude 目录配置
func NewClaudeConfig(cfg *Config) *ClaudeConfig {
	return &cfg.Claude
}

// NewWatcherConfig 提供监听配置
func NewWatcherConfig(cfg *Config) *WatcherConfig {
	return &cfg.Watcher
}

// NewCacheConfig 提供缓存配置
func NewCacheConfig(cfg *Config) *CacheConfig {
	return &cfg.Cache
}

// NewResolverConfig 提供解析配置
func NewResolverConfig(cfg *Config) *ResolverConfig {
	return &cfg.Resolver
}

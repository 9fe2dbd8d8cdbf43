// Package storage 提供基于 sqlite 的元数据快照持久化
// 守护进程重启后先用快照回答列表查询，首次全量扫描完成后覆盖
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/coclaude/backend/internal/infrastructure/config"
	_ "modernc.org/sqlite"
)

// GetDBPath 获取 coclaude 数据库路径
// 位于数据目录下：<datadir>/coclaude.db
func GetDBPath() string {
	return filepath.Join(config.GetDataDir(), "coclaude.db")
}

// OpenDB 打开数据库连接
func OpenDB() (*sql.DB, error) {
	dbPath := GetDBPath()

	// 确保目录存在
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 测试连接
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// InitSchema 初始化表结构
func InitSchema(db *sql.DB) error {
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS conversation_snapshots (
		id TEXT PRIMARY KEY,
		path TEXT NOT NULL UNIQUE,
		project_key TEXT NOT NULL,
		session_id TEXT NOT NULL,
		title TEXT NOT NULL,
		title_source TEXT NOT NULL,
		recency_ts INTEGER NOT NULL,
		true_last_activity_ts INTEGER NOT NULL,
		has_real_content INTEGER NOT NULL,
		is_superseded INTEGER NOT NULL,
		record_count INTEGER NOT NULL,
		file_size INTEGER NOT NULL,
		file_mtime INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);`

	if _, err := db.Exec(createTableSQL); err != nil {
		return fmt.Errorf("failed to create conversation_snapshots table: %w", err)
	}

	createIndexSQL := `
	CREATE INDEX IF NOT EXISTS idx_snapshots_project ON conversation_snapshots(project_key);
	CREATE INDEX IF NOT EXISTS idx_snapshots_recency ON conversation_snapshots(project_key, recency_ts DESC);`

	if _, err := db.Exec(createIndexSQL); err != nil {
		return fmt.Errorf("failed to create conversation_snapshots indexes: %w", err)
	}

	return nil
}

// ProvideDB 提供已初始化的数据库连接
func ProvideDB() (*sql.DB, error) {
	db, err := OpenDB()
	if err != nil {
		return nil, err
	}
	if err := InitSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

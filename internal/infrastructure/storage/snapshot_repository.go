package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/coclaude/backend/internal/domain/conversation"
	"github.com/google/uuid"
)

// SnapshotRepository 元数据快照仓储接口
type SnapshotRepository interface {
	// Upsert 保存或更新单个文件的快照
	Upsert(meta conversation.ResolvedMetadata, fileMtime time.Time) error
	// ListByProject 按项目列出快照，按 recency 降序
	ListByProject(projectKey string) ([]conversation.ResolvedMetadata, error)
	// Delete 删除单个文件的快照
	Delete(path string) error
	// DeleteByProject 删除整个项目的快照
	DeleteByProject(projectKey string) error
}

// snapshotRepository 快照仓储实现
type snapshotRepository struct {
	db *sql.DB
}

// NewSnapshotRepository 创建快照仓储实例
func NewSnapshotRepository(db *sql.DB) SnapshotRepository {
	return &snapshotRepository{db: db}
}

// Upsert 保存或更新快照
// path 唯一，使用 INSERT OR REPLACE 实现 upsert
func (r *snapshotRepository) Upsert(meta conversation.ResolvedMetadata, fileMtime time.Time) error {
	query := `
		INSERT INTO conversation_snapshots
		(id, path, project_key, session_id, title, title_source, recency_ts,
		 true_last_activity_ts, has_real_content, is_superseded, record_count,
		 file_size, file_mtime, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			project_key = excluded.project_key,
			session_id = excluded.session_id,
			title = excluded.title,
			title_source = excluded.title_source,
			recency_ts = excluded.recency_ts,
			true_last_activity_ts = excluded.true_last_activity_ts,
			has_real_content = excluded.has_real_content,
			is_superseded = excluded.is_superseded,
			record_count = excluded.record_count,
			file_size = excluded.file_size,
			file_mtime = excluded.file_mtime,
			updated_at = excluded.updated_at`

	_, err := r.db.Exec(query,
		uuid.New().String(),
		meta.Path,
		meta.ProjectKey,
		meta.SessionID,
		meta.Title,
		string(meta.TitleSource),
		meta.RecencyTimestamp.UnixMilli(),
		meta.TrueLastActivity.UnixMilli(),
		boolToInt(meta.HasRealContent),
		boolToInt(meta.IsSuperseded),
		meta.RecordCount,
		meta.FileSize,
		fileMtime.UnixMilli(),
		time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert snapshot: %w", err)
	}
	return nil
}

// ListByProject 按项目列出快照
func (r *snapshotRepository) ListByProject(projectKey string) ([]conversation.ResolvedMetadata, error) {
	query := `
		SELECT path, project_key, session_id, title, title_source, recency_ts,
		       true_last_activity_ts, has_real_content, is_superseded,
		       record_count, file_size
		FROM conversation_snapshots
		WHERE project_key = ?
		ORDER BY recency_ts DESC, true_last_activity_ts DESC`

	rows, err := r.db.Query(query, projectKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var result []conversation.ResolvedMetadata
	for rows.Next() {
		var meta conversation.ResolvedMetadata
		var titleSource string
		var recencyMs, lastActivityMs int64
		var hasContent, superseded int

		if err := rows.Scan(
			&meta.Path,
			&meta.ProjectKey,
			&meta.SessionID,
			&meta.Title,
			&titleSource,
			&recencyMs,
			&lastActivityMs,
			&hasContent,
			&superseded,
			&meta.RecordCount,
			&meta.FileSize,
		); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}

		meta.TitleSource = conversation.TitleSource(titleSource)
		meta.RecencyTimestamp = time.UnixMilli(recencyMs).UTC()
		meta.TrueLastActivity = time.UnixMilli(lastActivityMs).UTC()
		meta.HasRealContent = hasContent != 0
		meta.IsSuperseded = superseded != 0
		result = append(result, meta)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate snapshot rows: %w", err)
	}
	return result, nil
}

// Delete 删除单个文件的快照
func (r *snapshotRepository) Delete(path string) error {
	if _, err := r.db.Exec(`DELETE FROM conversation_snapshots WHERE path = ?`, path); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// DeleteByProject 删除整个项目的快照
func (r *snapshotRepository) DeleteByProject(projectKey string) error {
	if _, err := r.db.Exec(`DELETE FROM conversation_snapshots WHERE project_key = ?`, projectKey); err != nil {
		return fmt.Errorf("failed to delete project snapshots: %w", err)
	}
	return nil
}

// boolToInt sqlite 无布尔类型
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

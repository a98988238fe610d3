package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// 导入记录状态
const (
	ImportStatusSuccess = "success"
	ImportStatusFailed  = "failed"
)

// ImportLog 一次执行导入的记录
type ImportLog struct {
	ID           int64          `json:"id"`
	Filename     string         `json:"filename"`
	FileSize     int64          `json:"file_size"`
	Tables       []string       `json:"tables"`
	Status       string         `json:"status"`
	TotalRows    int            `json:"total_rows"`
	Summary      map[string]int `json:"summary"`
	ErrorMessage string         `json:"error_message,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// CreateImportLog 写入导入记录，返回 import_log_id
func (s *Store) CreateImportLog(ctx context.Context, log ImportLog) (int64, error) {
	summary := log.Summary
	if summary == nil {
		summary = map[string]int{}
	}
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return 0, fmt.Errorf("failed to encode import summary: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO import_logs (filename, file_size, tables, status, total_rows, summary, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, log.Filename, log.FileSize, strings.Join(log.Tables, ","), log.Status, log.TotalRows, string(summaryJSON), log.ErrorMessage, s.timestamp())
	if err != nil {
		return 0, fmt.Errorf("failed to create import log: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get import log id: %w", err)
	}
	return id, nil
}

// ListImportLogs 最近的导入记录
func (s *Store) ListImportLogs(ctx context.Context, limit int) ([]ImportLog, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, filename, file_size, tables, status, total_rows, summary, error_message, created_at
		FROM import_logs
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list import logs: %w", err)
	}
	defer rows.Close()

	logs := []ImportLog{}
	for rows.Next() {
		var (
			l                   ImportLog
			tables, summaryJSON string
			createdAt           string
		)
		if err := rows.Scan(&l.ID, &l.Filename, &l.FileSize, &tables, &l.Status, &l.TotalRows, &summaryJSON, &l.ErrorMessage, &createdAt); err != nil {
			return nil, err
		}
		if tables != "" {
			l.Tables = strings.Split(tables, ",")
		}
		if err := json.Unmarshal([]byte(summaryJSON), &l.Summary); err != nil {
			return nil, fmt.Errorf("import log %d: invalid summary: %w", l.ID, err)
		}
		l.CreatedAt = parseTimestamp(createdAt)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"railcat/internal/model"
)

const templateColumns = "id, name, config, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (*model.Template, error) {
	var (
		t                    model.Template
		configJSON           string
		createdAt, updatedAt string
	)
	if err := row.Scan(&t.ID, &t.Name, &configJSON, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(configJSON), &t.Config); err != nil {
		return nil, fmt.Errorf("template %d: invalid config: %w", t.ID, err)
	}
	t.CreatedAt = model.NewTimestamp(parseTimestamp(createdAt))
	t.UpdatedAt = model.NewTimestamp(parseTimestamp(updatedAt))
	return &t, nil
}

// ListTemplates 模板列表（最近更新在前）
func (s *Store) ListTemplates(ctx context.Context) ([]model.Template, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+templateColumns+" FROM import_templates ORDER BY updated_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	templates := []model.Template{}
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, *t)
	}
	return templates, rows.Err()
}

// GetTemplate 按 ID 获取模板
func (s *Store) GetTemplate(ctx context.Context, id int64) (*model.Template, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+templateColumns+" FROM import_templates WHERE id = ?", id)
	t, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("template %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return t, nil
}

// CreateTemplate 新建模板
func (s *Store) CreateTemplate(ctx context.Context, name string, cfg model.ImportConfig) (*model.Template, error) {
	configJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode template config: %w", err)
	}
	now := s.timestamp()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO import_templates (name, config, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`, name, string(configJSON), now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("template %q: %w", name, ErrDuplicateName)
		}
		return nil, fmt.Errorf("failed to create template: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get template id: %w", err)
	}
	return s.GetTemplate(ctx, id)
}

// UpdateTemplate 更新模板名称和/或配置
func (s *Store) UpdateTemplate(ctx context.Context, id int64, upd model.TemplateUpdate) error {
	current, err := s.GetTemplate(ctx, id)
	if err != nil {
		return err
	}
	name := current.Name
	if upd.Name != nil {
		name = *upd.Name
	}
	cfg := current.Config
	if upd.Config != nil {
		cfg = *upd.Config
	}
	configJSON, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode template config: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE import_templates SET
			name = ?,
			config = ?,
			updated_at = ?
		WHERE id = ?
	`, name, string(configJSON), s.timestamp(), id)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("template %q: %w", name, ErrDuplicateName)
		}
		return fmt.Errorf("failed to update template: %w", err)
	}
	return nil
}

// DeleteTemplate 删除模板
func (s *Store) DeleteTemplate(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM import_templates WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("template %d: %w", id, ErrNotFound)
	}
	return nil
}

// CopyTemplate 以新名称复制模板配置
func (s *Store) CopyTemplate(ctx context.Context, id int64, name string) (*model.Template, error) {
	src, err := s.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.CreateTemplate(ctx, name, src.Config)
}

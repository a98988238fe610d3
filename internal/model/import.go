package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// TableInfo 系统表下拉信息（/tables 接口）
type TableInfo struct {
	Name            string `json:"name"`
	DisplayName     string `json:"display_name"`
	Category        string `json:"category"`
	Tooltip         string `json:"tooltip,omitempty"`
	HasSetDetection bool   `json:"has_set_detection,omitempty"`
}

// Conflict 预览阶段检测到的数据冲突
type Conflict struct {
	Row     int    `json:"row,omitempty"`
	Type    string `json:"type"`
	Field   string `json:"field"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

// TablePreview 单个系统表的导入预览
type TablePreview struct {
	TableName       string     `json:"table_name"`
	DisplayName     string     `json:"display_name"`
	SheetName       string     `json:"sheet_name,omitempty"`
	RowCount        int        `json:"row_count"`
	MissingRequired []string   `json:"missing_required"`
	Conflicts       []Conflict `json:"conflicts"`
	Warnings        []string   `json:"warnings"`
}

// Status 预览状态文字
func (p TablePreview) Status() string {
	switch {
	case len(p.MissingRequired) > 0:
		return "缺少必填字段"
	case len(p.Conflicts) > 0:
		return "存在冲突"
	default:
		return "可导入"
	}
}

// PreviewResult 预览接口响应
type PreviewResult struct {
	Success      bool           `json:"success"`
	CanProceed   bool           `json:"can_proceed"`
	HasConflicts bool           `json:"has_conflicts"`
	Previews     []TablePreview `json:"previews"`
	Error        string         `json:"error,omitempty"`
}

// ExecuteResult 执行接口响应（失败时 Summary 可能包含部分成功的数量）
type ExecuteResult struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Error   string         `json:"error,omitempty"`
	Summary map[string]int `json:"summary,omitempty"`
}

// PartialSuccess 失败结果中是否有部分数据已导入
func (r *ExecuteResult) PartialSuccess() bool {
	if r == nil || r.Success {
		return false
	}
	for _, n := range r.Summary {
		if n > 0 {
			return true
		}
	}
	return false
}

// Total 导入总条数
func (r *ExecuteResult) Total() int {
	if r == nil {
		return 0
	}
	total := 0
	for _, n := range r.Summary {
		total += n
	}
	return total
}

// Template 导入模板
type Template struct {
	ID        int64        `json:"id"`
	Name      string       `json:"name"`
	CreatedAt Timestamp    `json:"created_at"`
	UpdatedAt Timestamp    `json:"updated_at"`
	Config    ImportConfig `json:"config"`
}

// TemplateUpdate 模板更新内容（nil 表示不修改）
type TemplateUpdate struct {
	Name   *string       `json:"name,omitempty"`
	Config *ImportConfig `json:"config,omitempty"`
}

// timestampLayouts 后端可能返回的时间格式（isoformat 不带时区）
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Timestamp 兼容多种格式的时间字段
type Timestamp struct {
	time.Time
}

// NewTimestamp 包装时间
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// MarshalJSON 零值输出 null
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339))
}

// UnmarshalJSON 解析时间
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp: %q", raw)
}

// Display 模板列表显示用的时间
func (t Timestamp) Display() string {
	if t.IsZero() {
		return "-"
	}
	return t.Time.Format("2006/01/02 15:04")
}

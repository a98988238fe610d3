package wizard

import (
	"fmt"
	"strings"

	"railcat/internal/model"
	"railcat/internal/schema"
)

// 字段分组
const (
	groupRequired = "必填字段"
	groupOptional = "可选字段"
)

// SheetProgress 工作表映射进度
type SheetProgress struct {
	Total    int    `json:"total"`
	Mapped   int    `json:"mapped"`
	Complete bool   `json:"complete"`
	Text     string `json:"text"`
}

// ColumnProgress 单个系统表的列映射进度
type ColumnProgress struct {
	Mapped          int      `json:"mapped"`
	MissingRequired []string `json:"missing_required"`
	Text            string   `json:"text"`
}

func sheetSourceOptions(sheets []model.SheetInfo) []Option {
	out := make([]Option, 0, len(sheets))
	for _, s := range sheets {
		out = append(out, Option{
			Value: s.Name,
			Label: fmt.Sprintf("%s (%d 行)", s.Name, s.RowCount),
		})
	}
	return out
}

func tableTargetOptions(reg *schema.Registry) []Option {
	tables := reg.Ordered()
	out := make([]Option, 0, len(tables))
	for _, t := range tables {
		out = append(out, Option{
			Value: t.Name,
			Label: t.DisplayName,
			Group: t.Category.GroupLabel(),
			Hint:  t.Tooltip,
		})
	}
	return out
}

func columnSourceOptions(sheet model.SheetInfo) []Option {
	out := make([]Option, 0, len(sheet.Columns))
	for _, c := range sheet.Columns {
		out = append(out, Option{Value: c, Label: c})
	}
	return out
}

// fieldTargetOptions 必填字段在前
func fieldTargetOptions(reg *schema.Registry, table *schema.Table) []Option {
	out := make([]Option, 0, len(table.Fields))
	for _, required := range []bool{true, false} {
		for _, f := range table.Fields {
			if f.Required != required {
				continue
			}
			group := groupOptional
			if f.Required {
				group = groupRequired
			}
			out = append(out, Option{
				Value: f.Name,
				Label: reg.FieldLabel(f),
				Group: group,
				Hint:  reg.FieldHint(f),
			})
		}
	}
	return out
}

func newSheetEditor(reg *schema.Registry, sheets []model.SheetInfo, saved []model.SheetMapping) *Editor {
	e := NewEditor(sheetSourceOptions(sheets), tableTargetOptions(reg))
	rows := make([]Row, 0, len(saved))
	for _, m := range saved {
		rows = append(rows, Row{Source: m.SheetName, Target: m.TableName})
	}
	e.Load(rows)
	return e
}

func sheetMappingsOf(e *Editor) []model.SheetMapping {
	selected := e.Selected()
	out := make([]model.SheetMapping, 0, len(selected))
	for _, r := range selected {
		out = append(out, model.SheetMapping{SheetName: r.Source, TableName: r.Target})
	}
	return out
}

func sheetProgress(total int, mappings []model.SheetMapping) SheetProgress {
	mapped := 0
	for _, m := range mappings {
		if m.TableName != "" {
			mapped++
		}
	}
	return SheetProgress{
		Total:    total,
		Mapped:   mapped,
		Complete: total > 0 && mapped == total,
		Text:     fmt.Sprintf("您的文件包含 %d 个工作表，已配置 %d 个", total, mapped),
	}
}

// ColumnEditor 单个系统表的列映射编辑器
type ColumnEditor struct {
	*Editor

	Table           *schema.Table
	Sheet           string
	ConflictMode    model.ConflictMode
	CarriageOptions *model.CarriageOptions
}

func newColumnEditor(reg *schema.Registry, table *schema.Table, sheet model.SheetInfo, saved *model.ColumnMapping) *ColumnEditor {
	ce := &ColumnEditor{
		Editor:       NewEditor(columnSourceOptions(sheet), fieldTargetOptions(reg, table)),
		Table:        table,
		Sheet:        sheet.Name,
		ConflictMode: model.ConflictSkip,
	}
	if table.HasSetDetection {
		opts := model.DefaultCarriageOptions()
		ce.CarriageOptions = &opts
	}
	if saved == nil {
		return ce
	}

	rows := make([]Row, 0, len(saved.Columns))
	for _, c := range saved.Columns {
		rows = append(rows, Row{Source: c.Source, Target: c.Target})
	}
	ce.Load(rows)
	if saved.ConflictMode.Valid() {
		ce.ConflictMode = saved.ConflictMode
	}
	if ce.CarriageOptions != nil && saved.CarriageOptions != nil && saved.CarriageOptions.Valid() {
		opts := *saved.CarriageOptions
		ce.CarriageOptions = &opts
	}
	return ce
}

// Mapping 当前配置
func (c *ColumnEditor) Mapping() *model.ColumnMapping {
	m := &model.ColumnMapping{
		Columns:      []model.ColumnPair{},
		ConflictMode: c.ConflictMode,
	}
	for _, r := range c.Committed() {
		m.Columns = append(m.Columns, model.ColumnPair{Source: r.Source, Target: r.Target})
	}
	if c.CarriageOptions != nil {
		opts := *c.CarriageOptions
		m.CarriageOptions = &opts
	}
	return m
}

// Progress 已映射字段数和缺少的必填字段
func (c *ColumnEditor) Progress() ColumnProgress {
	mapped := map[string]bool{}
	committed := c.Committed()
	for _, r := range committed {
		mapped[r.Target] = true
	}
	p := ColumnProgress{Mapped: len(committed), MissingRequired: []string{}}
	for _, f := range c.Table.RequiredFields() {
		if !mapped[f.Name] {
			p.MissingRequired = append(p.MissingRequired, f.Display)
		}
	}
	if len(p.MissingRequired) > 0 {
		p.Text = fmt.Sprintf("已映射 %d 个字段，缺少必填字段：%s", p.Mapped, strings.Join(p.MissingRequired, ", "))
	} else {
		p.Text = fmt.Sprintf("已映射 %d 个字段，所有必填字段已配置", p.Mapped)
	}
	return p
}

// buildConfig 只包含已映射到系统表的工作表及这些表的列映射
func buildConfig(reg *schema.Registry, sheetMappings []model.SheetMapping, columnMappings map[string]*model.ColumnMapping) model.ImportConfig {
	cfg := model.ImportConfig{
		SheetMappings:  []model.SheetMapping{},
		ColumnMappings: map[string]*model.ColumnMapping{},
	}
	for _, m := range sheetMappings {
		if m.TableName == "" {
			continue
		}
		cfg.SheetMappings = append(cfg.SheetMappings, m)
		if cm := columnMappings[m.TableName]; cm != nil {
			cfg.ColumnMappings[m.TableName] = cm.Clone()
			continue
		}
		withCarriage := false
		if t, ok := reg.Lookup(m.TableName); ok {
			withCarriage = t.HasSetDetection
		}
		cfg.ColumnMappings[m.TableName] = model.NewColumnMapping(withCarriage)
	}
	return cfg
}

package wizard

import (
	"context"
	"fmt"
	"strings"

	"railcat/internal/model"
)

// mutate 在锁内执行修改并通知监听者
func (w *Wizard) mutate(fn func() error) error {
	err := func() error {
		w.mu.Lock()
		defer w.mu.Unlock()
		if err := fn(); err != nil {
			return err
		}
		w.dirty = true
		return nil
	}()
	w.emit()
	return err
}

// ---- 第 1 步：模板 ----

// SelectTemplate 选择模板并应用其映射配置；id 为 0 表示不使用模板
func (w *Wizard) SelectTemplate(id int64) error {
	return w.mutate(func() error {
		if err := w.requireStepLocked(StepTemplate); err != nil {
			return err
		}
		if w.catalog == nil {
			return fmt.Errorf("%w：未配置模板存储", ErrWrongStep)
		}
		tpl, err := w.catalog.Select(id)
		if err != nil {
			return err
		}
		if tpl == nil {
			w.state.SelectedTemplate = nil
			w.clearMappingsLocked()
			return nil
		}
		cfg := tpl.Config.Clone()
		w.state.SelectedTemplate = &TemplateRef{ID: tpl.ID, Name: tpl.Name}
		w.state.SheetMappings = cfg.SheetMappings
		w.state.ColumnMappings = cfg.ColumnMappings
		return nil
	})
}

// SetSkipTemplate 手动设置是否跳过模板步骤
func (w *Wizard) SetSkipTemplate(skip bool) error {
	return w.mutate(func() error {
		if err := w.guardLocked(); err != nil {
			return err
		}
		if w.catalog != nil {
			w.catalog.SetSkip(skip)
		}
		w.state.SkipTemplateStep = skip
		if skip && w.state.CurrentStep == StepTemplate {
			w.state.CurrentStep = StepFile
		}
		return nil
	})
}

// Templates 当前模板列表
func (w *Wizard) Templates() []model.Template {
	if w.catalog == nil {
		return []model.Template{}
	}
	return w.catalog.Templates()
}

// templateOp 模板管理请求不占用 busy 标记，只要求向导未关闭、未完成
func (w *Wizard) templateOp(ctx context.Context, fn func(ctx context.Context) error) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	if w.state.ImportCompleted {
		w.mu.Unlock()
		return ErrImportCompleted
	}
	if w.catalog == nil {
		w.mu.Unlock()
		return fmt.Errorf("%w：未配置模板存储", ErrWrongStep)
	}
	w.mu.Unlock()

	err := fn(ctx)

	w.mu.Lock()
	if !w.closed {
		w.syncCatalogLocked()
		w.dirty = true
	}
	w.mu.Unlock()
	w.emit()
	return err
}

// syncCatalogLocked 模板列表变化后同步选择与跳过标记
func (w *Wizard) syncCatalogLocked() {
	if w.state.SelectedTemplate != nil {
		if sel := w.catalog.Selected(); sel != nil {
			w.state.SelectedTemplate = &TemplateRef{ID: sel.ID, Name: sel.Name}
		} else {
			w.state.SelectedTemplate = nil
			// 离开第 1 步后映射已归用户编辑，不再随模板清除
			if w.state.CurrentStep == StepTemplate {
				w.clearMappingsLocked()
			}
		}
	}
	w.state.SkipTemplateStep = w.catalog.Skip()
	if w.state.SkipTemplateStep && w.state.CurrentStep == StepTemplate {
		w.state.CurrentStep = StepFile
	}
}

func (w *Wizard) clearMappingsLocked() {
	w.state.SheetMappings = []model.SheetMapping{}
	w.state.ColumnMappings = map[string]*model.ColumnMapping{}
}

// CopyTemplate 复制模板
func (w *Wizard) CopyTemplate(ctx context.Context, id int64) (*model.Template, error) {
	var out *model.Template
	err := w.templateOp(ctx, func(ctx context.Context) error {
		t, err := w.catalog.Copy(ctx, id)
		out = t
		return err
	})
	return out, err
}

// RenameTemplate 重命名模板
func (w *Wizard) RenameTemplate(ctx context.Context, id int64, name string) error {
	return w.templateOp(ctx, func(ctx context.Context) error {
		return w.catalog.Rename(ctx, id, name)
	})
}

// DeleteTemplate 删除模板
func (w *Wizard) DeleteTemplate(ctx context.Context, id int64) error {
	return w.templateOp(ctx, func(ctx context.Context) error {
		return w.catalog.Delete(ctx, id)
	})
}

// ---- 第 3 步：工作表映射 ----

// SetSheetSource 设置第 row 行的工作表
func (w *Wizard) SetSheetSource(row int, sheet string) error {
	return w.mutate(func() error {
		if err := w.requireStepLocked(StepSheets); err != nil {
			return err
		}
		if err := w.sheets.SetSource(row, sheet); err != nil {
			return err
		}
		w.state.SheetMappings = sheetMappingsOf(w.sheets)
		return nil
	})
}

// SetSheetTable 设置第 row 行的系统表，空表示跳过该工作表
func (w *Wizard) SetSheetTable(row int, table string) error {
	return w.mutate(func() error {
		if err := w.requireStepLocked(StepSheets); err != nil {
			return err
		}
		if err := w.sheets.SetTarget(row, table); err != nil {
			return err
		}
		w.state.SheetMappings = sheetMappingsOf(w.sheets)
		return nil
	})
}

// RemoveSheetRow 删除工作表映射行
func (w *Wizard) RemoveSheetRow(row int) error {
	return w.mutate(func() error {
		if err := w.requireStepLocked(StepSheets); err != nil {
			return err
		}
		if err := w.sheets.Remove(row); err != nil {
			return err
		}
		w.state.SheetMappings = sheetMappingsOf(w.sheets)
		return nil
	})
}

// ---- 第 4 步：列映射 ----

func (w *Wizard) columnEditorLocked(table string) (*ColumnEditor, error) {
	if err := w.requireStepLocked(StepColumns); err != nil {
		return nil, err
	}
	ce, ok := w.columns[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	return ce, nil
}

func (w *Wizard) editColumns(table string, fn func(ce *ColumnEditor) error) error {
	return w.mutate(func() error {
		ce, err := w.columnEditorLocked(table)
		if err != nil {
			return err
		}
		if err := fn(ce); err != nil {
			return err
		}
		w.state.ColumnMappings[table] = ce.Mapping()
		return nil
	})
}

// SwitchTab 切换当前编辑的系统表
func (w *Wizard) SwitchTab(table string) error {
	return w.mutate(func() error {
		if _, err := w.columnEditorLocked(table); err != nil {
			return err
		}
		w.activeTab = table
		return nil
	})
}

// SetColumnSource 设置 table 第 row 行的 Excel 列
func (w *Wizard) SetColumnSource(table string, row int, column string) error {
	return w.editColumns(table, func(ce *ColumnEditor) error {
		return ce.SetSource(row, column)
	})
}

// SetColumnField 设置 table 第 row 行的系统字段
func (w *Wizard) SetColumnField(table string, row int, field string) error {
	return w.editColumns(table, func(ce *ColumnEditor) error {
		return ce.SetTarget(row, field)
	})
}

// RemoveColumnRow 删除列映射行
func (w *Wizard) RemoveColumnRow(table string, row int) error {
	return w.editColumns(table, func(ce *ColumnEditor) error {
		return ce.Remove(row)
	})
}

// SetConflictMode 设置冲突处理方式
func (w *Wizard) SetConflictMode(table string, mode model.ConflictMode) error {
	return w.editColumns(table, func(ce *ColumnEditor) error {
		if !mode.Valid() {
			return fmt.Errorf("%w: %s", ErrUnknownOption, mode)
		}
		ce.ConflictMode = mode
		return nil
	})
}

// SetCarriageOptions 设置车厢套装识别选项，仅支持套装识别的表可用
func (w *Wizard) SetCarriageOptions(table string, opts model.CarriageOptions) error {
	return w.editColumns(table, func(ce *ColumnEditor) error {
		if !ce.Table.HasSetDetection {
			return fmt.Errorf("%w: %s 不支持套装识别选项", ErrUnknownOption, ce.Table.DisplayName)
		}
		if !opts.Valid() {
			return fmt.Errorf("%w: %s/%s", ErrUnknownOption, opts.SetDetectionMode, opts.UnmergedFieldValue)
		}
		ce.CarriageOptions = &opts
		return nil
	})
}

// SetSaveTemplate 设置导入成功后的模板保存方式
func (w *Wizard) SetSaveTemplate(opt SaveTemplate) error {
	return w.mutate(func() error {
		if err := w.guardLocked(); err != nil {
			return err
		}
		switch opt.Mode {
		case "", SaveTemplateNone:
			w.state.SaveTemplate = SaveTemplate{Mode: SaveTemplateNone}
			return nil
		case SaveTemplateNew:
			name := strings.TrimSpace(opt.Name)
			if name == "" {
				return &ValidationError{Violations: []string{"请输入模板名称"}}
			}
			w.state.SaveTemplate = SaveTemplate{Mode: SaveTemplateNew, Name: name}
			return nil
		case SaveTemplateUpdate:
			if opt.TemplateID == 0 || !w.hasTemplate(opt.TemplateID) {
				return &ValidationError{Violations: []string{"请选择要更新的模板"}}
			}
			w.state.SaveTemplate = SaveTemplate{Mode: SaveTemplateUpdate, TemplateID: opt.TemplateID}
			return nil
		}
		return fmt.Errorf("%w: %s", ErrUnknownOption, opt.Mode)
	})
}

func (w *Wizard) hasTemplate(id int64) bool {
	if w.catalog == nil {
		return false
	}
	for _, t := range w.catalog.Templates() {
		if t.ID == id {
			return true
		}
	}
	return false
}

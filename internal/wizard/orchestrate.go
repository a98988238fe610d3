package wizard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"railcat/internal/client"
	"railcat/internal/model"
	"railcat/internal/store"
)

// backgroundTimeout 导入成功后模板保存和导入记录的超时
const backgroundTimeout = 30 * time.Second

// Config 当前映射生成的导入配置
func (w *Wizard) Config() model.ImportConfig {
	w.mu.Lock()
	defer w.mu.Unlock()
	return buildConfig(w.reg, w.state.SheetMappings, w.state.ColumnMappings)
}

// commitLocked 将编辑器内容写回状态
func (w *Wizard) commitLocked() {
	if w.sheets != nil {
		w.state.SheetMappings = sheetMappingsOf(w.sheets)
	}
	for table, ce := range w.columns {
		w.state.ColumnMappings[table] = ce.Mapping()
	}
}

// beginLocked 占用 busy 标记并复制请求参数
func (w *Wizard) beginLocked(activity Activity) (model.File, model.ImportConfig, uint64, error) {
	if w.file == nil {
		return model.File{}, model.ImportConfig{}, 0, errors.New(msgNoFile)
	}
	if w.backend == nil {
		return model.File{}, model.ImportConfig{}, 0, fmt.Errorf("no backend configured")
	}
	w.commitLocked()
	w.state.Busy = activity
	w.state.LastError = ""
	w.dirty = true
	return *w.file, buildConfig(w.reg, w.state.SheetMappings, w.state.ColumnMappings), w.gen, nil
}

var errEmptyResponse = errors.New("empty response")

// preview 调用预览接口；成功进入第 5 步，失败停留在第 4 步
func (w *Wizard) preview(ctx context.Context) error {
	w.mu.Lock()
	if err := w.requireStepLocked(StepColumns); err != nil {
		w.mu.Unlock()
		return err
	}
	file, cfg, gen, err := w.beginLocked(ActivityPreviewing)
	w.mu.Unlock()
	if err != nil {
		return err
	}
	w.emit()

	start := time.Now()
	res, err := w.backend.Preview(ctx, file, cfg)
	if err == nil && res == nil {
		err = &client.TransportError{Op: "preview", Err: errEmptyResponse}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if stale := w.staleLocked(gen); stale != nil {
		w.log.Debug("discarding preview response")
		return stale
	}
	w.state.Busy = ActivityIdle
	w.dirty = true
	if err != nil {
		w.log.Warn("preview failed", zap.String("file", file.Name), zap.Error(err))
		w.state.CurrentStep = StepColumns
		w.state.Preview = nil
		w.state.LastError = "预览失败: " + err.Error()
		return err
	}

	w.state.Preview = res
	w.state.CurrentStep = StepConfirm
	w.log.Info("preview done",
		zap.String("file", file.Name),
		zap.Bool("can_proceed", res.CanProceed),
		zap.Bool("has_conflicts", res.HasConflicts),
		zap.Duration("latency", time.Since(start)))
	return nil
}

// Execute 执行导入。执行中或已完成时直接返回，不会重复发送请求；
// 成功后进入完成状态并在后台按设置保存模板，失败返回第 4 步并保留映射。
func (w *Wizard) Execute(ctx context.Context) (*model.ExecuteResult, error) {
	res, err := w.execute(ctx)
	w.emit()
	return res, err
}

func (w *Wizard) execute(ctx context.Context) (*model.ExecuteResult, error) {
	w.mu.Lock()
	if err := w.requireStepLocked(StepConfirm); err != nil {
		w.mu.Unlock()
		return nil, err
	}
	if w.state.Preview == nil || !w.state.Preview.CanProceed {
		w.mu.Unlock()
		return nil, ErrCannotProceed
	}
	file, cfg, gen, err := w.beginLocked(ActivityExecuting)
	save := w.state.SaveTemplate
	w.mu.Unlock()
	if err != nil {
		return nil, err
	}
	w.emit()

	start := time.Now()
	res, err := w.backend.Execute(ctx, file, cfg)
	if err == nil && res == nil {
		err = &client.TransportError{Op: "execute", Err: errEmptyResponse}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if stale := w.staleLocked(gen); stale != nil {
		w.log.Debug("discarding execute response")
		return nil, stale
	}
	w.state.Busy = ActivityIdle
	w.dirty = true

	if err != nil {
		failed := &model.ExecuteResult{Success: false, Error: err.Error()}
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			failed.Summary = apiErr.Summary
		}
		w.state.Result = failed
		w.state.Preview = nil
		w.state.CurrentStep = StepColumns
		w.state.LastError = "导入失败: " + err.Error()
		w.log.Warn("import failed",
			zap.String("file", file.Name),
			zap.Bool("partial", failed.PartialSuccess()),
			zap.Error(err))
		w.recordLocked(file, cfg, failed)
		return failed, err
	}

	res.Success = true
	w.state.Result = res
	w.state.ImportCompleted = true
	w.state.LastError = ""
	w.log.Info("import completed",
		zap.String("file", file.Name),
		zap.Int("rows", res.Total()),
		zap.Duration("latency", time.Since(start)))
	w.recordLocked(file, cfg, res)
	w.saveTemplateLocked(save, cfg)
	return res, nil
}

// saveTemplateLocked 后台保存模板，失败只记录日志
func (w *Wizard) saveTemplateLocked(save SaveTemplate, cfg model.ImportConfig) {
	if w.catalog == nil || save.Mode == SaveTemplateNone || save.Mode == "" {
		return
	}
	catalog := w.catalog
	log := w.log

	w.background.Add(1)
	go func() {
		defer w.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		defer cancel()

		switch save.Mode {
		case SaveTemplateNew:
			t, err := catalog.SaveNew(ctx, save.Name, cfg)
			if err != nil {
				log.Warn("failed to save template", zap.String("name", save.Name), zap.Error(err))
				return
			}
			log.Info("template saved", zap.Int64("id", t.ID), zap.String("name", t.Name))
		case SaveTemplateUpdate:
			if err := catalog.SaveConfig(ctx, save.TemplateID, cfg); err != nil {
				log.Warn("failed to update template", zap.Int64("id", save.TemplateID), zap.Error(err))
				return
			}
			log.Info("template updated", zap.Int64("id", save.TemplateID))
		}
	}()
}

// recordLocked 后台写入导入记录
func (w *Wizard) recordLocked(file model.File, cfg model.ImportConfig, res *model.ExecuteResult) {
	if w.history == nil {
		return
	}
	entry := store.ImportLog{
		Filename:     file.Name,
		FileSize:     int64(file.Size()),
		Tables:       cfg.MappedTables(),
		Status:       store.ImportStatusSuccess,
		TotalRows:    res.Total(),
		Summary:      res.Summary,
		ErrorMessage: res.Error,
	}
	if !res.Success {
		entry.Status = store.ImportStatusFailed
	}
	history := w.history
	log := w.log

	w.background.Add(1)
	go func() {
		defer w.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		defer cancel()
		if _, err := history.CreateImportLog(ctx, entry); err != nil {
			log.Warn("failed to record import", zap.Error(err))
		}
	}()
}

// Package wizard 自定义导入向导：步骤流转、映射编辑、校验以及预览/执行编排。
//
// Wizard 持有全部状态，所有方法可并发调用。网络请求期间不持有锁，
// 通过 busy 标记拒绝重叠请求，通过 generation 丢弃重置/关闭之后返回的响应。
package wizard

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"railcat/internal/excel"
	"railcat/internal/model"
	"railcat/internal/schema"
	"railcat/internal/store"
	"railcat/internal/templates"
)

// Parser 文件结构解析
type Parser interface {
	Parse(ctx context.Context, file model.File) (*model.ParseResult, error)
}

// Backend 预览与执行导入
type Backend interface {
	Preview(ctx context.Context, file model.File, cfg model.ImportConfig) (*model.PreviewResult, error)
	Execute(ctx context.Context, file model.File, cfg model.ImportConfig) (*model.ExecuteResult, error)
}

// History 导入记录（可选）
type History interface {
	CreateImportLog(ctx context.Context, log store.ImportLog) (int64, error)
}

// Options 向导依赖
type Options struct {
	Registry *schema.Registry
	Parser   Parser
	Backend  Backend
	Catalog  *templates.Catalog
	History  History
	Logger   *zap.Logger
}

// Wizard 自定义导入向导
type Wizard struct {
	reg     *schema.Registry
	parser  Parser
	backend Backend
	catalog *templates.Catalog
	history History
	log     *zap.Logger

	mu        sync.Mutex
	state     State
	file      *model.File
	sheets    *Editor
	columns   map[string]*ColumnEditor
	tabs      []string
	activeTab string
	gen       uint64
	closed    bool
	dirty     bool
	listeners []func(Snapshot)

	background sync.WaitGroup
}

// New 创建向导；调用 Open 加载模板后开始使用
func New(opts Options) *Wizard {
	reg := opts.Registry
	if reg == nil {
		reg = schema.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Wizard{
		reg:     reg,
		parser:  opts.Parser,
		backend: opts.Backend,
		catalog: opts.Catalog,
		history: opts.History,
		log:     logger.Named("wizard"),
		state:   newState(true),
		columns: map[string]*ColumnEditor{},
	}
}

// Open 加载模板列表并进入第一步（无模板时进入第二步）
func (w *Wizard) Open(ctx context.Context) error {
	return w.Restart(ctx)
}

// OnChange 注册状态变化监听，每次修改后以快照回调
func (w *Wizard) OnChange(fn func(Snapshot)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
}

// Registry 系统表配置
func (w *Wizard) Registry() *schema.Registry { return w.reg }

// State 当前状态副本
func (w *Wizard) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.clone()
}

// Snapshot 当前完整视图
func (w *Wizard) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

func (w *Wizard) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:     w.state.clone(),
		StepTitle: w.state.CurrentStep.Title(),
		Templates: []model.Template{},
		ActiveTab: w.activeTab,
	}
	if w.catalog != nil {
		snap.Templates = w.catalog.Templates()
	}
	if w.sheets != nil {
		snap.Sheets = &SheetView{
			Rows:     rowViews(w.sheets),
			Progress: sheetProgress(len(w.state.ParsedSheets), w.state.SheetMappings),
		}
	}
	for _, table := range w.tabs {
		ce := w.columns[table]
		view := ColumnView{
			Table:           table,
			DisplayName:     ce.Table.DisplayName,
			Sheet:           ce.Sheet,
			HasSetDetection: ce.Table.HasSetDetection,
			ConflictMode:    ce.ConflictMode,
			Rows:            rowViews(ce.Editor),
			Progress:        ce.Progress(),
		}
		if ce.CarriageOptions != nil {
			opts := *ce.CarriageOptions
			view.CarriageOptions = &opts
		}
		snap.Columns = append(snap.Columns, view)
	}
	return snap
}

// emit 有修改时通知监听者；不得持锁调用
func (w *Wizard) emit() {
	w.mu.Lock()
	if !w.dirty || len(w.listeners) == 0 {
		w.dirty = false
		w.mu.Unlock()
		return
	}
	w.dirty = false
	snap := w.snapshotLocked()
	listeners := append([]func(Snapshot){}, w.listeners...)
	w.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

// guardLocked 检查向导是否可以修改：未关闭、未完成、无进行中的请求
func (w *Wizard) guardLocked() error {
	if w.closed {
		return ErrClosed
	}
	if w.state.ImportCompleted {
		return ErrImportCompleted
	}
	if w.state.Busy != ActivityIdle {
		return fmt.Errorf("%w（%s）", ErrBusy, w.state.Busy)
	}
	return nil
}

func (w *Wizard) requireStepLocked(step Step) error {
	if err := w.guardLocked(); err != nil {
		return err
	}
	if w.state.CurrentStep != step {
		return fmt.Errorf("%w：需要在第 %d 步（%s）", ErrWrongStep, step, step.Title())
	}
	return nil
}

// staleLocked 请求期间向导被重置或关闭
func (w *Wizard) staleLocked(gen uint64) error {
	if w.closed {
		return ErrClosed
	}
	if w.gen != gen {
		return ErrStale
	}
	return nil
}

// Restart 丢弃当前进度，重新加载模板列表
func (w *Wizard) Restart(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	w.gen++
	gen := w.gen
	w.resetLocked(true)
	w.dirty = true
	w.mu.Unlock()

	var err error
	skip := true
	if w.catalog != nil {
		err = w.catalog.Refresh(ctx)
		skip = w.catalog.Skip()
	}

	w.mu.Lock()
	if w.gen == gen && !w.closed {
		w.state = newState(skip)
		w.dirty = true
	}
	w.mu.Unlock()
	w.emit()

	if err != nil {
		w.log.Warn("template list unavailable, skipping template step", zap.Error(err))
	}
	return nil
}

func (w *Wizard) resetLocked(skip bool) {
	w.state = newState(skip)
	w.file = nil
	w.sheets = nil
	w.columns = map[string]*ColumnEditor{}
	w.tabs = nil
	w.activeTab = ""
}

// Close 关闭向导，等待后台的模板保存完成
func (w *Wizard) Close() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		w.gen++
	}
	w.mu.Unlock()
	w.background.Wait()
}

// Closed 是否已关闭
func (w *Wizard) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// Advance 校验当前步骤并前进；进入第 5 步需要预览成功
func (w *Wizard) Advance(ctx context.Context) error {
	err := w.advance(ctx)
	w.emit()
	return err
}

func (w *Wizard) advance(ctx context.Context) error {
	w.mu.Lock()
	if err := w.guardLocked(); err != nil {
		w.mu.Unlock()
		return err
	}
	step := w.state.CurrentStep
	if step == StepConfirm {
		w.mu.Unlock()
		return fmt.Errorf("%w：已是最后一步", ErrWrongStep)
	}
	if err := ValidateStep(&w.state, step, w.reg); err != nil {
		w.mu.Unlock()
		return err
	}

	next := NextStep(step, w.state.SkipTemplateStep)
	switch next {
	case StepSheets:
		w.buildSheetEditorLocked()
	case StepColumns:
		w.buildColumnEditorsLocked()
	case StepConfirm:
		// 预览在锁外进行
		w.mu.Unlock()
		return w.preview(ctx)
	}
	w.state.CurrentStep = next
	w.state.LastError = ""
	w.dirty = true
	w.mu.Unlock()
	return nil
}

// Retreat 返回上一步
func (w *Wizard) Retreat() error {
	err := w.retreat()
	w.emit()
	return err
}

func (w *Wizard) retreat() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.guardLocked(); err != nil {
		return err
	}
	prev := PrevStep(w.state.CurrentStep, w.state.SkipTemplateStep)
	if prev == w.state.CurrentStep {
		return nil
	}
	if w.state.CurrentStep == StepConfirm {
		w.state.Preview = nil
	}
	w.state.CurrentStep = prev
	w.state.LastError = ""
	w.dirty = true
	return nil
}

// SelectFile 选择文件并解析；解析失败时清除文件选择
func (w *Wizard) SelectFile(ctx context.Context, file model.File) error {
	err := w.selectFile(ctx, file)
	w.emit()
	return err
}

func (w *Wizard) selectFile(ctx context.Context, file model.File) error {
	w.mu.Lock()
	if err := w.requireStepLocked(StepFile); err != nil {
		w.mu.Unlock()
		return err
	}
	if !excel.SupportedExt(file.Name) {
		w.mu.Unlock()
		return ErrUnsupportedFile
	}
	if w.parser == nil {
		w.mu.Unlock()
		return fmt.Errorf("no parser configured")
	}

	f := file
	w.file = &f
	w.sheets = nil
	w.columns = map[string]*ColumnEditor{}
	w.tabs = nil
	w.activeTab = ""
	w.state.FileName = file.Name
	w.state.FileSize = file.Size()
	w.state.ParsedSheets = []model.SheetInfo{}
	w.state.IsParsing = true
	w.state.IsParsed = false
	w.state.Busy = ActivityParsing
	w.state.LastError = ""
	w.dirty = true
	gen := w.gen
	w.mu.Unlock()
	w.emit()

	res, err := w.parser.Parse(ctx, file)

	w.mu.Lock()
	defer w.mu.Unlock()
	if stale := w.staleLocked(gen); stale != nil {
		w.log.Debug("discarding parse response", zap.String("file", file.Name))
		return stale
	}
	w.state.Busy = ActivityIdle
	w.state.IsParsing = false
	w.dirty = true
	if err != nil {
		w.log.Warn("parse failed", zap.String("file", file.Name), zap.Error(err))
		w.clearFileLocked()
		w.state.LastError = "解析文件时发生错误: " + err.Error()
		return err
	}
	w.state.ParsedSheets = res.Sheets
	if w.state.ParsedSheets == nil {
		w.state.ParsedSheets = []model.SheetInfo{}
	}
	w.state.IsParsed = true
	w.log.Info("file parsed", zap.String("file", file.Name), zap.Int("sheets", len(res.Sheets)))
	return nil
}

// ClearFile 取消文件选择
func (w *Wizard) ClearFile() error {
	err := func() error {
		w.mu.Lock()
		defer w.mu.Unlock()
		if err := w.requireStepLocked(StepFile); err != nil {
			return err
		}
		w.clearFileLocked()
		w.dirty = true
		return nil
	}()
	w.emit()
	return err
}

func (w *Wizard) clearFileLocked() {
	w.file = nil
	w.state.FileName = ""
	w.state.FileSize = 0
	w.state.ParsedSheets = []model.SheetInfo{}
	w.state.IsParsing = false
	w.state.IsParsed = false
	w.sheets = nil
	w.columns = map[string]*ColumnEditor{}
	w.tabs = nil
	w.activeTab = ""
}

// buildSheetEditorLocked 以当前工作表映射（含模板）初始化编辑器，文件中不存在的工作表被丢弃
func (w *Wizard) buildSheetEditorLocked() {
	w.sheets = newSheetEditor(w.reg, w.state.ParsedSheets, w.state.SheetMappings)
	w.state.SheetMappings = sheetMappingsOf(w.sheets)
}

// buildColumnEditorsLocked 为每个已映射的系统表创建列映射编辑器
func (w *Wizard) buildColumnEditorsLocked() {
	w.columns = map[string]*ColumnEditor{}
	w.tabs = nil
	for _, m := range w.state.SheetMappings {
		if m.TableName == "" {
			continue
		}
		table, ok := w.reg.Lookup(m.TableName)
		if !ok {
			continue
		}
		sheet, _ := model.FindSheet(w.state.ParsedSheets, m.SheetName)
		ce := newColumnEditor(w.reg, table, sheet, w.state.ColumnMappings[m.TableName])
		w.columns[m.TableName] = ce
		w.tabs = append(w.tabs, m.TableName)
		w.state.ColumnMappings[m.TableName] = ce.Mapping()
	}
	w.activeTab = ""
	if len(w.tabs) > 0 {
		w.activeTab = w.tabs[0]
	}
}

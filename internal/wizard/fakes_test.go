package wizard

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"railcat/internal/model"
	"railcat/internal/schema"
	"railcat/internal/templates"
)

// memStore 内存模板存储
type memStore struct {
	mu        sync.Mutex
	templates []model.Template
	nextID    int64
	creates   int
	updates   int
}

func newMemStore(tpls ...model.Template) *memStore {
	s := &memStore{nextID: 100}
	s.templates = append(s.templates, tpls...)
	return s
}

func (s *memStore) List(context.Context) ([]model.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Template{}, s.templates...), nil
}

func (s *memStore) Create(_ context.Context, name string, cfg model.ImportConfig) (*model.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.creates++
	t := model.Template{ID: s.nextID, Name: name, Config: cfg.Clone()}
	s.templates = append(s.templates, t)
	return &t, nil
}

func (s *memStore) Update(_ context.Context, id int64, upd model.TemplateUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.templates {
		if s.templates[i].ID != id {
			continue
		}
		s.updates++
		if upd.Name != nil {
			s.templates[i].Name = *upd.Name
		}
		if upd.Config != nil {
			s.templates[i].Config = upd.Config.Clone()
		}
		return nil
	}
	return templates.ErrNotFound
}

func (s *memStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.templates {
		if s.templates[i].ID == id {
			s.templates = append(s.templates[:i], s.templates[i+1:]...)
			return nil
		}
	}
	return templates.ErrNotFound
}

func (s *memStore) Copy(ctx context.Context, id int64, name string) (*model.Template, error) {
	s.mu.Lock()
	var src *model.Template
	for i := range s.templates {
		if s.templates[i].ID == id {
			src = &s.templates[i]
		}
	}
	s.mu.Unlock()
	if src == nil {
		return nil, templates.ErrNotFound
	}
	return s.Create(ctx, name, src.Config)
}

func (s *memStore) counts() (creates, updates int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creates, s.updates
}

// fakeParser 返回固定结果；gate 非空时等待放行
type fakeParser struct {
	result *model.ParseResult
	err    error
	gate   chan struct{}
	calls  atomic.Int32
}

func (p *fakeParser) Parse(ctx context.Context, file model.File) (*model.ParseResult, error) {
	p.calls.Add(1)
	if p.gate != nil {
		<-p.gate
	}
	if p.err != nil {
		return nil, p.err
	}
	res := *p.result
	res.Filename = file.Name
	return &res, nil
}

// fakeBackend 记录调用次数；execGate 非空时执行请求等待放行
type fakeBackend struct {
	preview     *model.PreviewResult
	previewErr  error
	execute     *model.ExecuteResult
	executeErr  error
	execGate    chan struct{}
	execStarted chan struct{}
	// empty 为 true 时预览和执行都返回 (nil, nil)
	empty bool

	previewCalls atomic.Int32
	executeCalls atomic.Int32

	mu         sync.Mutex
	lastConfig model.ImportConfig
}

func (b *fakeBackend) Preview(_ context.Context, _ model.File, cfg model.ImportConfig) (*model.PreviewResult, error) {
	b.previewCalls.Add(1)
	b.mu.Lock()
	b.lastConfig = cfg
	b.mu.Unlock()
	if b.previewErr != nil {
		return nil, b.previewErr
	}
	if b.empty {
		return nil, nil
	}
	if b.preview != nil {
		res := *b.preview
		return &res, nil
	}
	return &model.PreviewResult{Success: true, CanProceed: true}, nil
}

func (b *fakeBackend) Execute(_ context.Context, _ model.File, cfg model.ImportConfig) (*model.ExecuteResult, error) {
	b.executeCalls.Add(1)
	b.mu.Lock()
	b.lastConfig = cfg
	b.mu.Unlock()
	if b.execStarted != nil {
		close(b.execStarted)
	}
	if b.execGate != nil {
		<-b.execGate
	}
	if b.executeErr != nil {
		return nil, b.executeErr
	}
	if b.empty {
		return nil, nil
	}
	if b.execute != nil {
		res := *b.execute
		return &res, nil
	}
	return &model.ExecuteResult{Success: true, Message: "导入成功", Summary: map[string]int{"locomotive": 2}}, nil
}

func (b *fakeBackend) config() model.ImportConfig {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastConfig
}

func defaultSheets() *model.ParseResult {
	return &model.ParseResult{Sheets: []model.SheetInfo{
		{Name: "Locomotives", RowCount: 2, Columns: []string{"品牌", "比例", "机车号"}},
		{Name: "Extra", RowCount: 5, Columns: []string{"备注"}},
	}}
}

type harness struct {
	w       *Wizard
	parser  *fakeParser
	backend *fakeBackend
	store   *memStore
}

func newHarness(t *testing.T, tpls ...model.Template) *harness {
	t.Helper()
	h := &harness{
		parser:  &fakeParser{result: defaultSheets()},
		backend: &fakeBackend{},
		store:   newMemStore(tpls...),
	}
	logger := zaptest.NewLogger(t)
	h.w = New(Options{
		Registry: schema.Default(),
		Parser:   h.parser,
		Backend:  h.backend,
		Catalog:  templates.NewCatalog(h.store, logger),
		Logger:   logger,
	})
	require.NoError(t, h.w.Open(context.Background()))
	t.Cleanup(h.w.Close)
	return h
}

func (h *harness) step() Step { return h.w.State().CurrentStep }

// toSheets 从任意起点选择文件并进入工作表映射
func (h *harness) toSheets(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	if h.step() == StepTemplate {
		require.NoError(t, h.w.Advance(ctx))
	}
	require.NoError(t, h.w.SelectFile(ctx, model.File{Name: "models.xlsx", Data: []byte("x")}))
	require.NoError(t, h.w.Advance(ctx))
	require.Equal(t, StepSheets, h.step())
}

// toColumns 映射 Locomotives -> locomotive 并进入列映射
func (h *harness) toColumns(t *testing.T) {
	t.Helper()
	h.toSheets(t)
	require.NoError(t, h.w.SetSheetSource(0, "Locomotives"))
	require.NoError(t, h.w.SetSheetTable(0, "locomotive"))
	require.NoError(t, h.w.Advance(context.Background()))
	require.Equal(t, StepColumns, h.step())
}

// mapRequired 映射机车表全部必填字段
func (h *harness) mapRequired(t *testing.T) {
	t.Helper()
	require.NoError(t, h.w.SetColumnSource("locomotive", 0, "品牌"))
	require.NoError(t, h.w.SetColumnField("locomotive", 0, "brand_id"))
	require.NoError(t, h.w.SetColumnSource("locomotive", 1, "比例"))
	require.NoError(t, h.w.SetColumnField("locomotive", 1, "scale"))
}

// toConfirm 完成映射并预览
func (h *harness) toConfirm(t *testing.T) {
	t.Helper()
	h.toColumns(t)
	h.mapRequired(t)
	require.NoError(t, h.w.Advance(context.Background()))
	require.Equal(t, StepConfirm, h.step())
}

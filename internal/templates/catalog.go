package templates

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"railcat/internal/model"
)

// CopyName 复制模板时生成的名称：<原名>_副本_YYYYMMDD_HHMMSS
func CopyName(name string, at time.Time) string {
	return name + "_副本_" + at.Format("20060102_150405")
}

// Catalog 向导第一步使用的模板列表、当前选择和“跳过模板步骤”标志
type Catalog struct {
	store Store
	log   *zap.Logger
	now   func() time.Time

	mu        sync.Mutex
	templates []model.Template
	selected  int64
	skip      bool
}

// NewCatalog 创建模板目录；Refresh 之前 skip 为 true
func NewCatalog(store Store, logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{
		store: store,
		log:   logger.Named("templates"),
		now:   time.Now,
		skip:  true,
	}
}

// SetClock 替换时间来源（测试用）
func (c *Catalog) SetClock(now func() time.Time) {
	c.now = now
}

// Refresh 重新加载模板列表并清除选择；列表为空或加载失败时跳过模板步骤
func (c *Catalog) Refresh(ctx context.Context) error {
	list, err := c.store.List(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = 0
	if err != nil {
		c.log.Warn("failed to load templates", zap.Error(err))
		c.templates = nil
		c.skip = true
		return err
	}
	c.templates = list
	c.skip = len(list) == 0
	return nil
}

// Templates 当前模板列表副本
func (c *Catalog) Templates() []model.Template {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Template, len(c.templates))
	for i, t := range c.templates {
		t.Config = t.Config.Clone()
		out[i] = t
	}
	return out
}

// Skip 是否跳过模板步骤
func (c *Catalog) Skip() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.skip
}

// SetSkip 用户手动勾选/取消“跳过模板步骤”
func (c *Catalog) SetSkip(skip bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.skip = skip
}

// Select 选择模板；id 为 0 表示不使用模板
func (c *Catalog) Select(id int64) (*model.Template, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id == 0 {
		c.selected = 0
		return nil, nil
	}
	i := c.indexLocked(id)
	if i < 0 {
		return nil, fmt.Errorf("template %d: %w", id, ErrNotFound)
	}
	c.selected = id
	t := c.templates[i]
	t.Config = t.Config.Clone()
	return &t, nil
}

// Selected 当前选择的模板，未选择返回 nil
func (c *Catalog) Selected() *model.Template {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected == 0 {
		return nil
	}
	i := c.indexLocked(c.selected)
	if i < 0 {
		return nil
	}
	t := c.templates[i]
	t.Config = t.Config.Clone()
	return &t
}

// Copy 复制模板并加入列表
func (c *Catalog) Copy(ctx context.Context, id int64) (*model.Template, error) {
	c.mu.Lock()
	i := c.indexLocked(id)
	if i < 0 {
		c.mu.Unlock()
		return nil, fmt.Errorf("template %d: %w", id, ErrNotFound)
	}
	name := CopyName(c.templates[i].Name, c.now())
	c.mu.Unlock()

	t, err := c.store.Copy(ctx, id, name)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.templates = append(c.templates, *t)
	c.mu.Unlock()
	return t, nil
}

// Rename 重命名模板；名称未变化时不发请求
func (c *Catalog) Rename(ctx context.Context, id int64, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrNameRequired
	}

	c.mu.Lock()
	i := c.indexLocked(id)
	if i < 0 {
		c.mu.Unlock()
		return fmt.Errorf("template %d: %w", id, ErrNotFound)
	}
	unchanged := c.templates[i].Name == name
	c.mu.Unlock()
	if unchanged {
		return nil
	}

	if err := c.store.Update(ctx, id, model.TemplateUpdate{Name: &name}); err != nil {
		return err
	}

	c.mu.Lock()
	if i := c.indexLocked(id); i >= 0 {
		c.templates[i].Name = name
	}
	c.mu.Unlock()
	return nil
}

// Delete 删除模板；删除的是当前选择时清除选择，列表为空时跳过模板步骤
func (c *Catalog) Delete(ctx context.Context, id int64) error {
	if err := c.store.Delete(ctx, id); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexLocked(id); i >= 0 {
		c.templates = append(c.templates[:i], c.templates[i+1:]...)
	}
	if c.selected == id {
		c.selected = 0
	}
	if len(c.templates) == 0 {
		c.skip = true
	}
	return nil
}

// SaveNew 将映射配置保存为新模板
func (c *Catalog) SaveNew(ctx context.Context, name string, cfg model.ImportConfig) (*model.Template, error) {
	t, err := c.store.Create(ctx, name, cfg)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.templates = append(c.templates, *t)
	c.mu.Unlock()
	return t, nil
}

// SaveConfig 用映射配置覆盖已有模板
func (c *Catalog) SaveConfig(ctx context.Context, id int64, cfg model.ImportConfig) error {
	if err := validateConfig(cfg); err != nil {
		return err
	}
	if err := c.store.Update(ctx, id, model.TemplateUpdate{Config: &cfg}); err != nil {
		return err
	}
	c.mu.Lock()
	if i := c.indexLocked(id); i >= 0 {
		c.templates[i].Config = cfg.Clone()
		c.templates[i].UpdatedAt = model.NewTimestamp(c.now())
	}
	c.mu.Unlock()
	return nil
}

func (c *Catalog) indexLocked(id int64) int {
	for i := range c.templates {
		if c.templates[i].ID == id {
			return i
		}
	}
	return -1
}

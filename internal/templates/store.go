// Package templates 导入模板：远端/本地存储与向导使用的模板目录。
package templates

import (
	"context"
	"errors"
	"strings"

	"railcat/internal/client"
	"railcat/internal/model"
	"railcat/internal/store"
)

var (
	ErrNotFound       = store.ErrNotFound
	ErrDuplicateName  = store.ErrDuplicateName
	ErrNameRequired   = errors.New("模板名称不能为空")
	ErrConfigRequired = errors.New("模板配置不能为空")
)

// Store 模板存储
type Store interface {
	List(ctx context.Context) ([]model.Template, error)
	Create(ctx context.Context, name string, cfg model.ImportConfig) (*model.Template, error)
	Update(ctx context.Context, id int64, upd model.TemplateUpdate) error
	Delete(ctx context.Context, id int64) error
	Copy(ctx context.Context, id int64, name string) (*model.Template, error)
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrNameRequired
	}
	return name, nil
}

func validateConfig(cfg model.ImportConfig) error {
	if len(cfg.SheetMappings) == 0 {
		return ErrConfigRequired
	}
	return nil
}

// Remote 通过后端 /api/import-templates 接口存储模板
type Remote struct {
	c *client.Client
}

// NewRemote 创建远端存储
func NewRemote(c *client.Client) *Remote {
	return &Remote{c: c}
}

func (r *Remote) List(ctx context.Context) ([]model.Template, error) {
	return r.c.ListTemplates(ctx)
}

func (r *Remote) Create(ctx context.Context, name string, cfg model.ImportConfig) (*model.Template, error) {
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return r.c.CreateTemplate(ctx, name, cfg)
}

func (r *Remote) Update(ctx context.Context, id int64, upd model.TemplateUpdate) error {
	if upd.Name != nil {
		name, err := validateName(*upd.Name)
		if err != nil {
			return err
		}
		upd.Name = &name
	}
	err := r.c.UpdateTemplate(ctx, id, upd)
	if client.IsNotFound(err) {
		return errors.Join(ErrNotFound, err)
	}
	return err
}

func (r *Remote) Delete(ctx context.Context, id int64) error {
	err := r.c.DeleteTemplate(ctx, id)
	if client.IsNotFound(err) {
		return errors.Join(ErrNotFound, err)
	}
	return err
}

func (r *Remote) Copy(ctx context.Context, id int64, name string) (*model.Template, error) {
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}
	t, err := r.c.CopyTemplate(ctx, id, name)
	if client.IsNotFound(err) {
		return nil, errors.Join(ErrNotFound, err)
	}
	return t, err
}

// Local 本地 SQLite 模板存储
type Local struct {
	db *store.Store
}

// NewLocal 创建本地存储
func NewLocal(db *store.Store) *Local {
	return &Local{db: db}
}

func (l *Local) List(ctx context.Context) ([]model.Template, error) {
	return l.db.ListTemplates(ctx)
}

func (l *Local) Create(ctx context.Context, name string, cfg model.ImportConfig) (*model.Template, error) {
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return l.db.CreateTemplate(ctx, name, cfg)
}

func (l *Local) Update(ctx context.Context, id int64, upd model.TemplateUpdate) error {
	if upd.Name != nil {
		name, err := validateName(*upd.Name)
		if err != nil {
			return err
		}
		upd.Name = &name
	}
	if upd.Config != nil {
		if err := validateConfig(*upd.Config); err != nil {
			return err
		}
	}
	return l.db.UpdateTemplate(ctx, id, upd)
}

func (l *Local) Delete(ctx context.Context, id int64) error {
	return l.db.DeleteTemplate(ctx, id)
}

func (l *Local) Copy(ctx context.Context, id int64, name string) (*model.Template, error) {
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}
	return l.db.CopyTemplate(ctx, id, name)
}

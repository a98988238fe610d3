package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"railcat/internal/client"
	"railcat/internal/config"
	"railcat/internal/excel"
	"railcat/internal/schema"
	"railcat/internal/store"
	"railcat/internal/templates"
	"railcat/internal/wizard"
)

// tablesTimeout 启动时获取后端系统表的超时
const tablesTimeout = 5 * time.Second

// app 由配置组装的依赖
type app struct {
	cfg       *config.AppConfig
	log       *zap.Logger
	client    *client.Client
	registry  *schema.Registry
	parser    wizard.Parser
	templates templates.Store
	db        *store.Store
}

// newApp 按配置创建客户端、解析器、模板存储和本地数据库
func newApp(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: logger}
	a.client = client.New(client.Options{
		BaseURL:       cfg.Backend.BaseURL,
		Timeout:       cfg.GetTimeout(),
		ImportTimeout: cfg.GetImportTimeout(),
		Logger:        logger,
	})

	reg, err := loadRegistry(cfg, logger)
	if err != nil {
		return nil, err
	}
	a.registry = restrictToBackend(ctx, reg, a.client, logger)

	if cfg.Backend.LocalParse {
		a.parser = excel.NewLocalParser(logger)
	} else {
		a.parser = a.client
	}

	if cfg.Templates.SQLitePath != "" {
		path := config.ResolvePath(cfgInfo, cfg.Templates.SQLitePath)
		db, err := store.New(path)
		if err != nil {
			return nil, fmt.Errorf("open local database: %w", err)
		}
		a.db = db
		logger.Debug("local database opened", zap.String("path", path))
	}

	switch cfg.Templates.Store {
	case config.TemplateStoreSQLite:
		a.templates = templates.NewLocal(a.db)
	default:
		a.templates = templates.NewRemote(a.client)
	}
	return a, nil
}

// loadRegistry 系统表配置：配置文件指定路径优先，否则使用内置配置
func loadRegistry(cfg *config.AppConfig, logger *zap.Logger) (*schema.Registry, error) {
	if cfg.Schema.Path == "" {
		return schema.Default(), nil
	}
	path := config.ResolvePath(cfgInfo, cfg.Schema.Path)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open schema %s: %w", path, err)
	}
	defer f.Close()
	reg, err := schema.Load(f)
	if err != nil {
		return nil, fmt.Errorf("load schema %s: %w", path, err)
	}
	logger.Info("schema loaded", zap.String("path", path), zap.Int("tables", len(reg.Tables())))
	return reg, nil
}

// restrictToBackend 只保留后端支持的系统表；获取失败时使用完整配置
func restrictToBackend(ctx context.Context, reg *schema.Registry, c *client.Client, logger *zap.Logger) *schema.Registry {
	ctx, cancel := context.WithTimeout(ctx, tablesTimeout)
	defer cancel()
	tables, err := c.Tables(ctx)
	if err != nil {
		logger.Warn("backend tables unavailable, using built-in schema", zap.Error(err))
		return reg
	}
	names := make([]string, 0, len(tables))
	for _, t := range tables {
		names = append(names, t.Name)
	}
	return reg.Restrict(names)
}

// history 导入记录存储，未配置本地数据库时为 nil
func (a *app) history() wizard.History {
	if a.db == nil {
		return nil
	}
	return a.db
}

// newWizard 创建向导实例（未 Open）
func (a *app) newWizard() *wizard.Wizard {
	return wizard.New(wizard.Options{
		Registry: a.registry,
		Parser:   a.parser,
		Backend:  a.client,
		Catalog:  templates.NewCatalog(a.templates, a.log),
		History:  a.history(),
		Logger:   a.log,
	})
}

func (a *app) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("failed to close database", zap.Error(err))
		}
	}
}

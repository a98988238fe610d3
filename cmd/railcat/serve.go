package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	v1 "railcat/internal/api/v1"
	"railcat/internal/server"
	"railcat/internal/session"
	"railcat/internal/util"
)

// sweepInterval 过期会话清理间隔
const sweepInterval = time.Minute

var (
	servePort int
	serveDev  bool
	serveOpen bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动自定义导入向导 HTTP 服务",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "服务端口 (config.toml 优先；仅当未显式配置 port 时生效)")
	serveCmd.Flags().BoolVar(&serveDev, "dev", false, "开发模式")
	serveCmd.Flags().BoolVar(&serveOpen, "open", false, "启动后在浏览器中打开向导页面")
}

func runServe(cmd *cobra.Command, args []string) error {
	if servePort > 0 && !cfgInfo.PortSpecified {
		cfg.Server.Port = servePort
	}
	if serveDev {
		cfg.Server.DevMode = true
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	sessions := session.NewRegistry(a.newWizard, cfg.GetSessionTTL(), logger)
	defer sessions.Close()

	var history v1.HistoryLister
	if a.db != nil {
		history = a.db
	}
	srv := server.NewServer(cfg, v1.NewHandler(sessions, a.registry, history, logger), logger)

	logger.Info("starting",
		zap.Int("port", cfg.Server.Port),
		zap.String("backend", cfg.Backend.BaseURL),
		zap.String("template_store", cfg.Templates.Store),
		zap.Duration("session_ttl", cfg.GetSessionTTL()))

	if serveOpen {
		url := fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
		if err := util.OpenBrowser(url); err != nil {
			logger.Warn("无法自动打开浏览器，请手动访问", zap.String("url", url), zap.Error(err))
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		return sessions.Run(gctx, sweepInterval)
	})
	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("stopped")
	return nil
}

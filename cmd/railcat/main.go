package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"railcat/internal/config"
	"railcat/internal/logging"
)

var (
	// 全局参数
	configPath string
	backendURL string
	logLevel   string
	verbose    bool

	cfg     *config.AppConfig
	cfgInfo config.LoadConfigInfo
	logger  *zap.Logger
)

// rootCmd 根命令
var rootCmd = &cobra.Command{
	Use:   "railcat",
	Short: "railcat - 模型收藏自定义导入工具",
	Long: `railcat 将 Excel 工作簿按映射配置导入到模型收藏后端。

工作表映射到系统表，Excel 列映射到系统字段，预览通过后执行导入，
映射配置可保存为模板重复使用。`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, cfgInfo, err = config.LoadConfigWithInfo(configPath)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}
		if backendURL != "" {
			cfg.Backend.BaseURL = backendURL
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		if verbose {
			cfg.Log.Level = "debug"
		}

		logger, err = logging.New(cfg.Log)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger.Debug("config loaded",
			zap.String("path", cfgInfo.Path),
			zap.Bool("found", cfgInfo.Found))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "配置文件路径（默认可执行文件同目录下的 config.toml）")
	rootCmd.PersistentFlags().StringVar(&backendURL, "backend", "", "导入后端地址（覆盖配置文件）")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 debug|info|warn|error")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "输出调试日志")

	rootCmd.AddCommand(serveCmd, inspectCmd, tablesCmd, templatesCmd, importCmd, historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "错误:", err)
		os.Exit(1)
	}
}

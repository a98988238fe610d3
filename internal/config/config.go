package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// AppConfig 应用配置
type AppConfig struct {
	Server    ServerConfig    `toml:"server"`
	Backend   BackendConfig   `toml:"backend"`
	Templates TemplatesConfig `toml:"templates"`
	Schema    SchemaConfig    `toml:"schema"`
	Log       LogConfig       `toml:"log"`
}

// ServerConfig 向导 API 服务配置
type ServerConfig struct {
	Port       int    `toml:"port"`
	DevMode    bool   `toml:"dev_mode"`
	SessionTTL string `toml:"session_ttl"`
}

// BackendConfig 导入后端配置
type BackendConfig struct {
	BaseURL       string `toml:"base_url"`
	Timeout       string `toml:"timeout"`
	ImportTimeout string `toml:"import_timeout"`
	LocalParse    bool   `toml:"local_parse"`
}

// TemplatesConfig 导入模板存储配置
type TemplatesConfig struct {
	Store      string `toml:"store"` // remote | sqlite
	SQLitePath string `toml:"sqlite_path"`
}

// SchemaConfig 系统表配置（为空使用内置配置）
type SchemaConfig struct {
	Path string `toml:"path"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level string `toml:"level"`
	JSON  bool   `toml:"json"`
}

const (
	TemplateStoreRemote = "remote"
	TemplateStoreSQLite = "sqlite"
)

// LoadConfigInfo 配置加载元信息
type LoadConfigInfo struct {
	Path          string
	Found         bool
	PortSpecified bool
}

// DefaultConfig 默认配置
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:       20262,
			DevMode:    false,
			SessionTTL: "30m",
		},
		Backend: BackendConfig{
			BaseURL:       "http://127.0.0.1:5000",
			Timeout:       "30s",
			ImportTimeout: "120s",
			LocalParse:    false,
		},
		Templates: TemplatesConfig{
			Store:      TemplateStoreRemote,
			SQLitePath: "data/templates.db",
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}

// GetTimeout 普通接口超时
func (c *AppConfig) GetTimeout() time.Duration {
	return parseDuration(c.Backend.Timeout, 30*time.Second)
}

// GetImportTimeout 预览/执行接口超时
func (c *AppConfig) GetImportTimeout() time.Duration {
	return parseDuration(c.Backend.ImportTimeout, 120*time.Second)
}

// GetSessionTTL 向导会话空闲过期时间
func (c *AppConfig) GetSessionTTL() time.Duration {
	return parseDuration(c.Server.SessionTTL, 30*time.Minute)
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// Validate 校验配置
func (c *AppConfig) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d", c.Server.Port)
	}
	switch c.Templates.Store {
	case TemplateStoreRemote:
		if c.Backend.BaseURL == "" {
			return fmt.Errorf("backend.base_url is required for remote template store")
		}
	case TemplateStoreSQLite:
		if c.Templates.SQLitePath == "" {
			return fmt.Errorf("templates.sqlite_path is required for sqlite template store")
		}
	default:
		return fmt.Errorf("invalid templates.store: %q", c.Templates.Store)
	}
	return nil
}

func isPortSpecifiedInToml(data []byte) bool {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return false
	}

	serverAny, ok := raw["server"]
	if !ok {
		return false
	}

	serverMap, ok := serverAny.(map[string]any)
	if !ok {
		return false
	}

	_, ok = serverMap["port"]
	return ok
}

// GetExeDir 获取可执行文件所在目录
func GetExeDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}

// DefaultConfigPath 默认配置文件路径（可执行文件同目录下的 config.toml）
func DefaultConfigPath() string {
	exeDir, err := GetExeDir()
	if err != nil {
		// 无法获取可执行文件目录，使用当前目录
		exeDir = "."
	}
	return filepath.Join(exeDir, "config.toml")
}

// LoadConfigWithInfo 从指定 TOML 文件加载配置并返回元信息；path 为空时使用默认路径
func LoadConfigWithInfo(path string) (*AppConfig, LoadConfigInfo, error) {
	if path == "" {
		path = DefaultConfigPath()
	}
	info := LoadConfigInfo{Path: path}
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// 配置文件不存在，使用默认配置
			applyEnv(config)
			return config, info, nil
		}
		return nil, info, err
	}
	info.Found = true
	info.PortSpecified = isPortSpecifiedInToml(data)

	if err := toml.Unmarshal(data, config); err != nil {
		return nil, info, fmt.Errorf("parse %s: %w", path, err)
	}

	applyEnv(config)
	return config, info, nil
}

// applyEnv 环境变量覆盖（用于容器 / 本地运行）
func applyEnv(config *AppConfig) {
	if v := os.Getenv("RAILCAT_BACKEND_URL"); v != "" {
		config.Backend.BaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("RAILCAT_LOG_LEVEL"); v != "" {
		config.Log.Level = v
	}
	if v := os.Getenv("RAILCAT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Server.Port = port
		}
	}
	if v := os.Getenv("RAILCAT_TEMPLATE_STORE"); v != "" {
		config.Templates.Store = v
	}
}

// LoadConfig 从默认路径加载配置
func LoadConfig() (*AppConfig, error) {
	config, _, err := LoadConfigWithInfo("")
	return config, err
}

// SaveConfig 保存配置到 TOML 文件
func SaveConfig(path string, config *AppConfig) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := toml.Marshal(config)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ResolvePath 相对路径按配置文件所在目录解析
func ResolvePath(info LoadConfigInfo, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	base := filepath.Dir(info.Path)
	if base == "" {
		base = "."
	}
	return filepath.Join(base, path)
}

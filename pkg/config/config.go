package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/kasuganosora/odatacount/pkg/resource/domain"
)

// EnvConfigPath 指定配置文件路径的环境变量
const EnvConfigPath = "ODATACOUNT_CONFIG"

// Config 应用程序配置
type Config struct {
	Server  ServerConfig  `json:"server" yaml:"server"`
	Log     LogConfig     `json:"log" yaml:"log"`
	Storage StorageConfig `json:"storage" yaml:"storage"`
	Seed    SeedConfig    `json:"seed" yaml:"seed"`
	Query   QueryConfig   `json:"query" yaml:"query"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
	Audit   AuditConfig   `json:"audit" yaml:"audit"`
	MCP     MCPConfig     `json:"mcp" yaml:"mcp"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Host            string        `json:"host" yaml:"host"`
	Port            int           `json:"port" yaml:"port" validate:"min=1,max=65535"`
	ServiceRoot     string        `json:"service_root" yaml:"service_root" validate:"required,startswith=/"`
	ReadTimeout     time.Duration `json:"read_timeout" yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `json:"write_timeout" yaml:"write_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" validate:"gte=0"`
	EnableCORS      bool          `json:"enable_cors" yaml:"enable_cors"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `json:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `json:"format" yaml:"format" validate:"oneof=json console text"` // json or console
}

// StorageConfig 存储配置: 默认数据源 + 命名数据源 + 实体集路由
type StorageConfig struct {
	Default domain.DataSourceConfig            `json:"default" yaml:"default"`
	Sources map[string]domain.DataSourceConfig `json:"sources,omitempty" yaml:"sources,omitempty" validate:"dive"`
	// Routes 实体集名称 -> Sources 中的数据源名称
	Routes map[string]string `json:"routes,omitempty" yaml:"routes,omitempty"`
	// 连接失败时的重试次数与初始间隔(每次翻倍)
	ConnectRetries       int           `json:"connect_retries" yaml:"connect_retries" validate:"gte=0"`
	ConnectRetryInterval time.Duration `json:"connect_retry_interval" yaml:"connect_retry_interval" validate:"gte=0"`
}

// SeedConfig 启动时导入的数据
type SeedConfig struct {
	// File JSON 或 XLSX 文件; 为空时使用内置 DollarCount 数据
	File  string `json:"file" yaml:"file"`
	Reset bool   `json:"reset" yaml:"reset"`
}

// QueryConfig 查询限制
type QueryConfig struct {
	MaxTop     int           `json:"max_top" yaml:"max_top" validate:"gte=0"`
	Timeout    time.Duration `json:"timeout" yaml:"timeout" validate:"gte=0"`
	CountCache bool          `json:"count_cache" yaml:"count_cache"`
}

// MetricsConfig 监控配置
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path" validate:"omitempty,startswith=/"`
}

// AuditConfig 审计日志配置
type AuditConfig struct {
	Enabled    bool `json:"enabled" yaml:"enabled"`
	MaxEntries int  `json:"max_entries" yaml:"max_entries" validate:"gte=0"`
}

// MCPConfig MCP 服务配置
type MCPConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
}

var validate = validator.New()

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ServiceRoot:     "/odata",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			EnableCORS:      true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Storage: StorageConfig{
			Default: domain.DataSourceConfig{
				Type:     domain.DataSourceTypeMemory,
				Name:     "default",
				Writable: true,
			},
			ConnectRetries:       3,
			ConnectRetryInterval: time.Second,
		},
		Query: QueryConfig{
			MaxTop:     1000,
			Timeout:    30 * time.Second,
			CountCache: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Audit: AuditConfig{
			Enabled:    true,
			MaxEntries: 1000,
		},
		MCP: MCPConfig{
			Name:    "odatacount",
			Version: "1.0.0",
		},
	}
}

// 环境变量覆盖, 在文件之后应用
const (
	EnvPort        = "ODATACOUNT_PORT"
	EnvServiceRoot = "ODATACOUNT_SERVICE_ROOT"
	EnvLogLevel    = "ODATACOUNT_LOG_LEVEL"
	EnvStorageType = "ODATACOUNT_STORAGE_TYPE"
	EnvStorageDB   = "ODATACOUNT_STORAGE_DATABASE"
	EnvMaxTop      = "ODATACOUNT_MAX_TOP"
	EnvMCP         = "ODATACOUNT_MCP"
)

var searchPaths = []string{
	"odatacount.yaml",
	"odatacount.yml",
	"odatacount.json",
	"config/odatacount.yaml",
	"/etc/odatacount/odatacount.yaml",
}

// LoadConfig 加载配置: 默认值 <- 配置文件 <- 环境变量, 然后校验.
// configPath 为空时跳过文件.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("读取配置文件 %s: %w", configPath, err)
		}
		if err := decode(configPath, data, cfg); err != nil {
			return nil, fmt.Errorf("解析配置文件 %s: %w", configPath, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigOrDefault 使用 $ODATACOUNT_CONFIG 或第一个存在的默认位置;
// 都不存在时只应用环境变量. 返回实际使用的文件 (可能为空).
func LoadConfigOrDefault() (*Config, string, error) {
	path := FindConfigFile()
	cfg, err := LoadConfig(path)
	return cfg, path, err
}

// FindConfigFile 返回 $ODATACOUNT_CONFIG, 否则返回 searchPaths 中第一个存在的文件
func FindConfigFile() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	for _, p := range searchPaths {
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p
		}
	}
	return ""
}

// decode .yaml/.yml 按 YAML 解析, 其余按 JSON; JSON 中的时长可以写成 "5s"
func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	}
	// JSON 没有时长类型: 先转成 YAML 树 (JSON 是 YAML 的子集) 再解码
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return err
	}
	return node.Decode(cfg)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	setters := []struct {
		key string
		set func(string) error
	}{
		{EnvPort, func(v string) (err error) { c.Server.Port, err = cast.ToIntE(v); return }},
		{EnvServiceRoot, func(v string) error { c.Server.ServiceRoot = v; return nil }},
		{EnvLogLevel, func(v string) error { c.Log.Level = strings.ToLower(v); return nil }},
		{EnvStorageType, func(v string) error { c.Storage.Default.Type = domain.DataSourceType(v); return nil }},
		{EnvStorageDB, func(v string) error { c.Storage.Default.Database = v; return nil }},
		{EnvMaxTop, func(v string) (err error) { c.Query.MaxTop, err = cast.ToIntE(v); return }},
		{EnvMCP, func(v string) (err error) { c.MCP.Enabled, err = cast.ToBoolE(v); return }},
	}
	for _, s := range setters {
		v, ok := lookup(s.key)
		if !ok || v == "" {
			continue
		}
		if err := s.set(v); err != nil {
			return fmt.Errorf("环境变量 %s=%q: %w", s.key, v, err)
		}
	}
	return nil
}

// Validate 验证配置
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed '%s' (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("无效的配置: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("无效的配置: %w", err)
	}

	if c.Metrics.Enabled && c.Metrics.Path == "" {
		return fmt.Errorf("无效的配置: 启用监控时必须设置 metrics.path")
	}

	for set, source := range c.Storage.Routes {
		if source == "default" {
			continue
		}
		if _, ok := c.Storage.Sources[source]; !ok {
			return fmt.Errorf("无效的配置: 实体集 %s 路由到未定义的数据源 %s", set, source)
		}
	}
	return nil
}

// GetListenAddress 返回监听地址
func (c *Config) GetListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

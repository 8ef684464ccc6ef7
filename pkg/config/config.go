package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"github.com/kasuganosora/planopt/pkg/logutil"
)

// ConfigEnv 指定配置文件路径的环境变量
const ConfigEnv = "PLANOPT_CONFIG"

// Config 应用程序配置
type Config struct {
	Log       logutil.Config  `toml:"log" json:"log"`
	Optimizer OptimizerConfig `toml:"optimizer" json:"optimizer"`
	Pool      PoolConfig      `toml:"pool" json:"pool"`
	Monitor   MonitorConfig   `toml:"monitor" json:"monitor"`
	Catalog   CatalogConfig   `toml:"catalog" json:"catalog"`
}

// Duration 可以写成 "1.5s" 这种字符串的时长
type Duration struct {
	time.Duration
}

// UnmarshalText 实现 encoding.TextUnmarshaler，TOML 和 JSON 共用
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return errors.Wrapf(err, "无效的时长 %q", text)
	}
	d.Duration = v
	return nil
}

// MarshalText 实现 encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// OptimizerConfig 优化器配置
type OptimizerConfig struct {
	Enabled bool `toml:"enabled" json:"enabled"`
	// MaxIterations 一次优化中规则最多触发的次数
	MaxIterations int      `toml:"max-iterations" json:"max_iterations"`
	Timeout       Duration `toml:"timeout" json:"timeout"`
	// DisabledRules 按规则名禁用
	DisabledRules []string `toml:"disabled-rules" json:"disabled_rules"`
	SanityChecks  bool     `toml:"sanity-checks" json:"sanity_checks"`
}

// PoolConfig 批量规划的 goroutine 池配置
type PoolConfig struct {
	MaxWorkers int `toml:"max-workers" json:"max_workers"`
	QueueSize  int `toml:"queue-size" json:"queue_size"`
}

// MonitorConfig 监控配置
type MonitorConfig struct {
	SlowQuery SlowQueryConfig `toml:"slow-query" json:"slow_query"`
	// MetricsAddr prometheus 指标监听地址，为空时不启动
	MetricsAddr string `toml:"metrics-addr" json:"metrics_addr"`
}

// SlowQueryConfig 慢规划日志配置
type SlowQueryConfig struct {
	Threshold  Duration `toml:"threshold" json:"threshold"`
	MaxEntries int      `toml:"max-entries" json:"max_entries"`
}

// CatalogConfig 表元数据，可以直接列出表，也可以给出 CREATE TABLE 语句
type CatalogConfig struct {
	Tables []TableConfig `toml:"tables" json:"tables"`
	// DDL CREATE TABLE 语句，多条用分号分隔
	DDL string `toml:"ddl" json:"ddl"`
	// DDLFile 包含 CREATE TABLE 语句的文件，相对路径基于配置文件所在目录
	DDLFile string `toml:"ddl-file" json:"ddl_file"`
}

// TableConfig 表定义
type TableConfig struct {
	Name    string         `toml:"name" json:"name"`
	Columns []ColumnConfig `toml:"columns" json:"columns"`
}

// ColumnConfig 列定义
type ColumnConfig struct {
	Name string `toml:"name" json:"name"`
	Type string `toml:"type" json:"type"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Log: logutil.Config{
			Level:  "info",
			Format: "text",
		},
		Optimizer: OptimizerConfig{
			Enabled:       true,
			MaxIterations: 10000,
			Timeout:       Duration{3 * time.Minute},
			SanityChecks:  true,
		},
		Pool: PoolConfig{
			MaxWorkers: 10,
			QueueSize:  1000,
		},
		Monitor: MonitorConfig{
			SlowQuery: SlowQueryConfig{
				Threshold:  Duration{100 * time.Millisecond},
				MaxEntries: 1000,
			},
		},
	}
}

// LoadConfig 从文件加载配置，.toml 文件按 TOML 解析，其他按 JSON 解析
func LoadConfig(configPath string) (*Config, error) {
	// 如果没有指定配置文件，使用默认配置
	if configPath == "" {
		return DefaultConfig(), nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, errors.Newf("配置文件不存在: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "读取配置文件失败")
	}

	config := DefaultConfig()
	if strings.EqualFold(filepath.Ext(configPath), ".toml") {
		meta, err := toml.Decode(string(data), config)
		if err != nil {
			return nil, errors.Wrap(err, "解析配置文件失败")
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, errors.Newf("解析配置文件失败: 未知配置项 %s", undecoded[0])
		}
	} else if err := json.Unmarshal(data, config); err != nil {
		return nil, errors.Wrap(err, "解析配置文件失败")
	}

	if config.Catalog.DDLFile != "" && !filepath.IsAbs(config.Catalog.DDLFile) {
		config.Catalog.DDLFile = filepath.Join(filepath.Dir(configPath), config.Catalog.DDLFile)
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadConfigOrDefault 尝试从常见位置加载配置文件
func LoadConfigOrDefault() *Config {
	possiblePaths := []string{
		"planopt.toml",
		"config.json",
		"./config/planopt.toml",
		"/etc/planopt/planopt.toml",
	}

	if envPath := os.Getenv(ConfigEnv); envPath != "" {
		if config, err := LoadConfig(envPath); err == nil {
			return config
		}
	}

	for _, path := range possiblePaths {
		if absPath, err := filepath.Abs(path); err == nil {
			if config, err := LoadConfig(absPath); err == nil {
				return config
			}
		}
	}

	return DefaultConfig()
}

// validateConfig 验证配置
func validateConfig(config *Config) error {
	if config.Optimizer.MaxIterations < 1 {
		return errors.New("优化器最大迭代次数必须大于0")
	}

	if config.Optimizer.Timeout.Duration < 0 {
		return errors.New("优化器超时时间不能为负数")
	}

	if config.Pool.MaxWorkers < 1 {
		return errors.New("Goroutine池最大工作线程数必须大于0")
	}

	if config.Pool.QueueSize < 1 {
		return errors.New("Goroutine池队列大小必须大于0")
	}

	if config.Monitor.SlowQuery.MaxEntries < 0 {
		return errors.New("慢规划日志条数不能为负数")
	}

	for _, t := range config.Catalog.Tables {
		if t.Name == "" {
			return errors.New("表名不能为空")
		}
		if len(t.Columns) == 0 {
			return errors.Newf("表 %s 没有列", t.Name)
		}
	}

	return nil
}

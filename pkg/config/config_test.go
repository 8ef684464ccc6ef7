package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	// 验证日志配置
	assert.Equal(t, "info", config.Log.Level)
	assert.Equal(t, "text", config.Log.Format)

	// 验证优化器配置
	assert.True(t, config.Optimizer.Enabled)
	assert.Equal(t, 10000, config.Optimizer.MaxIterations)
	assert.Equal(t, 3*time.Minute, config.Optimizer.Timeout.Duration)
	assert.True(t, config.Optimizer.SanityChecks)
	assert.Empty(t, config.Optimizer.DisabledRules)

	// 验证池配置
	assert.Equal(t, 10, config.Pool.MaxWorkers)
	assert.Equal(t, 1000, config.Pool.QueueSize)

	// 验证监控配置
	assert.Equal(t, 100*time.Millisecond, config.Monitor.SlowQuery.Threshold.Duration)
	assert.Equal(t, 1000, config.Monitor.SlowQuery.MaxEntries)
	assert.Empty(t, config.Monitor.MetricsAddr)

	assert.NoError(t, validateConfig(config))
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	config, err := LoadConfig("")

	assert.NoError(t, err)
	assert.NotNil(t, config)
	assert.Equal(t, 10, config.Pool.MaxWorkers)
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	config, err := LoadConfig("non_existent_config.json")

	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "配置文件不存在")
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	config, err := LoadConfig(writeFile(t, "invalid.json", "{invalid json"))

	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "解析配置文件失败")
}

func TestLoadConfig_JSON(t *testing.T) {
	path := writeFile(t, "config.json", `{
		"optimizer": {"max_iterations": 50, "timeout": "250ms", "disabled_rules": ["MergeAdjacentWindows"]},
		"catalog": {"tables": [{"name": "t", "columns": [{"name": "a", "type": "bigint"}]}]}
	}`)

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 50, config.Optimizer.MaxIterations)
	assert.Equal(t, 250*time.Millisecond, config.Optimizer.Timeout.Duration)
	assert.Equal(t, []string{"MergeAdjacentWindows"}, config.Optimizer.DisabledRules)
	// 未出现的配置保持默认值
	assert.True(t, config.Optimizer.Enabled)
	assert.Equal(t, 10, config.Pool.MaxWorkers)
	require.Len(t, config.Catalog.Tables, 1)
	assert.Equal(t, []ColumnConfig{{Name: "a", Type: "bigint"}}, config.Catalog.Tables[0].Columns)
}

func TestLoadConfig_TOML(t *testing.T) {
	path := writeFile(t, "planopt.toml", `
[log]
level = "debug"
max-size = 64

[optimizer]
enabled = false
timeout = "2s"

[pool]
max-workers = 4

[monitor]
metrics-addr = ":9100"

[monitor.slow-query]
threshold = "10ms"

[catalog]
ddl-file = "schema.sql"
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", config.Log.Level)
	assert.Equal(t, 64, config.Log.MaxSize)
	assert.False(t, config.Optimizer.Enabled)
	assert.Equal(t, 2*time.Second, config.Optimizer.Timeout.Duration)
	assert.Equal(t, 4, config.Pool.MaxWorkers)
	assert.Equal(t, ":9100", config.Monitor.MetricsAddr)
	assert.Equal(t, 10*time.Millisecond, config.Monitor.SlowQuery.Threshold.Duration)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "schema.sql"), config.Catalog.DDLFile)
}

func TestLoadConfig_TOMLUnknownKey(t *testing.T) {
	config, err := LoadConfig(writeFile(t, "planopt.toml", "[optimizer]\nmax-iteration = 5\n"))

	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "未知配置项")
}

func TestLoadConfig_InvalidDuration(t *testing.T) {
	_, err := LoadConfig(writeFile(t, "config.json", `{"optimizer": {"timeout": "soon"}}`))
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{
			name:   "max iterations",
			modify: func(c *Config) { c.Optimizer.MaxIterations = 0 },
			errMsg: "最大迭代次数",
		},
		{
			name:   "negative timeout",
			modify: func(c *Config) { c.Optimizer.Timeout = Duration{-time.Second} },
			errMsg: "超时时间",
		},
		{
			name:   "workers",
			modify: func(c *Config) { c.Pool.MaxWorkers = 0 },
			errMsg: "最大工作线程数",
		},
		{
			name:   "queue",
			modify: func(c *Config) { c.Pool.QueueSize = 0 },
			errMsg: "队列大小",
		},
		{
			name:   "table without columns",
			modify: func(c *Config) { c.Catalog.Tables = []TableConfig{{Name: "t"}} },
			errMsg: "没有列",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.modify(config)
			err := validateConfig(config)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadConfigOrDefault_Env(t *testing.T) {
	path := writeFile(t, "env.json", `{"pool": {"max_workers": 3}}`)
	t.Setenv(ConfigEnv, path)

	assert.Equal(t, 3, LoadConfigOrDefault().Pool.MaxWorkers)

	t.Setenv(ConfigEnv, filepath.Join(t.TempDir(), "missing.json"))
	assert.Equal(t, 10, LoadConfigOrDefault().Pool.MaxWorkers)
}

func TestDuration_Text(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Duration)

	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(text))
}

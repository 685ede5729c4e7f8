package config

import (
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewConfig 测试创建默认配置
func TestNewConfig(t *testing.T) {
	cfg := NewConfig()
	require.NotNil(t, cfg)
	assert.NoError(t, cfg.Validate())

	assert.Equal(t, 5*time.Second, cfg.Management.ConnectDelay.Duration())
	assert.Equal(t, 3, cfg.Management.MaxIOErrors)
	assert.Equal(t, 500*time.Millisecond, cfg.Management.SelectTimeout.Duration())
	assert.Equal(t, 2*runtime.NumCPU(), cfg.Management.EffectiveWorkerThreads())
	assert.Equal(t, 32, cfg.Transport.MaxInboundStreams)

	t.Log("✅ NewConfig 测试通过")
}

// TestManagementConfig 测试管理器配置
func TestManagementConfig(t *testing.T) {
	t.Run("With", func(t *testing.T) {
		c := DefaultManagementConfig().
			WithConnectDelay(time.Second).
			WithWorkerThreads(4).
			WithSingleThread(true).
			WithMaxIOErrors(7)
		assert.Equal(t, time.Second, c.ConnectDelay.Duration())
		assert.Equal(t, 4, c.EffectiveWorkerThreads())
		assert.True(t, c.SingleThread)
		assert.Equal(t, 7, c.MaxIOErrors)
	})

	t.Run("Pinned", func(t *testing.T) {
		c := DefaultManagementConfig()
		assert.False(t, c.IsPinned(SettingConnectDelay), "默认值不算显式设置")

		c = c.WithConnectDelay(time.Second).WithSingleThread(false)
		assert.True(t, c.IsPinned(SettingConnectDelay))
		assert.True(t, c.IsPinned(SettingSingleThread), "显式设为默认值同样固定")
		assert.False(t, c.IsPinned(SettingWorkerThreads))
		assert.False(t, c.IsPinned(SettingMaxIOErrors))
	})

	t.Run("Validate_Invalid", func(t *testing.T) {
		c := DefaultManagementConfig()
		c.ConnectDelay = -1
		assert.Error(t, c.Validate())

		c = DefaultManagementConfig()
		c.SelectTimeout = 0
		assert.Error(t, c.Validate())

		c = DefaultManagementConfig()
		c.WorkerThreads = -2
		assert.Error(t, c.Validate())
	})
}

// TestTransportConfig 测试传输层配置
func TestTransportConfig(t *testing.T) {
	c := DefaultTransportConfig().WithStreams(8, 4)
	assert.NoError(t, c.Validate())
	assert.Equal(t, 8, c.MaxInboundStreams)
	assert.Equal(t, 4, c.MaxOutboundStreams)

	c.MaxOutboundStreams = 70000
	assert.Error(t, c.Validate())

	c = DefaultTransportConfig()
	c.ReceiveBufferSize = 10
	assert.Error(t, c.Validate())
}

// TestFromJSON 测试 JSON 加载
func TestFromJSON(t *testing.T) {
	cfg, err := FromJSON([]byte(`{
		"management": {"connect_delay": 1500, "max_io_errors": 5},
		"transport": {"max_outbound_streams": 16},
		"log": {"level": "debug"}
	}`))
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, cfg.Management.ConnectDelay.Duration())
	assert.Equal(t, 5, cfg.Management.MaxIOErrors)
	assert.Equal(t, 16, cfg.Transport.MaxOutboundStreams)
	assert.Equal(t, 32, cfg.Transport.MaxInboundStreams, "未出现的字段保留默认值")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Management.IsPinned(SettingConnectDelay))
	assert.True(t, cfg.Management.IsPinned(SettingMaxIOErrors))
	assert.False(t, cfg.Management.IsPinned(SettingWorkerThreads), "文件中未出现的设置不固定")
	assert.False(t, cfg.Management.IsPinned(SettingSingleThread))

	_, err = FromJSON([]byte(`{"log": {"level": "loud"}}`))
	assert.Error(t, err)

	_, err = FromJSON([]byte(`{"management": {"connect_delay": "soon"}}`))
	assert.Error(t, err)
}

// TestSaveLoadFile 测试文件读写
func TestSaveLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assoc.json")

	cfg := NewConfig()
	cfg.Management = cfg.Management.WithConnectDelay(250 * time.Millisecond)
	require.NoError(t, cfg.SaveFile(path))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.True(t, loaded.Management.IsPinned(SettingMaxIOErrors), "文件写出的设置视为显式")

	loaded.Management.Pinned = cfg.Management.Pinned
	assert.Equal(t, cfg, loaded)
}

// TestValidateAndFix 测试自动修复
func TestValidateAndFix(t *testing.T) {
	cfg := NewConfig()
	cfg.Management.SelectTimeout = 0
	cfg.Transport.OutboxSize = -1

	fixed, err := ValidateAndFix(cfg)
	require.NoError(t, err)
	assert.Equal(t, DefaultManagementConfig().SelectTimeout, fixed.Management.SelectTimeout)
	assert.Equal(t, DefaultTransportConfig().OutboxSize, fixed.Transport.OutboxSize)

	assert.Error(t, ValidateAll(nil))
}

// Package config 提供统一的配置管理
//
// 本包采用混合配置模式：
//   - 主 Config 结构体嵌入所有子配置
//   - 每个子配置在独立文件中定义
//   - 支持从 JSON 加载和保存配置
//
// 使用示例：
//
//	cfg := config.NewConfig()
//	cfg.Management.ConnectDelay = config.Duration(2 * time.Second)
//
//	// 从 JSON 文件加载
//	cfg, err := config.LoadFile("assoc.json")
package config

// Config 是 go-assoc 的完整配置结构
//
// 配置按照功能模块组织：
//   - Management: 管理器（重连、worker、IO 错误阈值、reactor）
//   - Transport: 传输层（流数量、缓冲区、握手超时、端口复用）
//   - Log: 日志输出
type Config struct {
	// Management 管理器配置
	Management ManagementConfig `json:"management"`

	// Transport 传输层配置
	Transport TransportConfig `json:"transport"`

	// Log 日志配置
	Log LogConfig `json:"log"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Management: DefaultManagementConfig(),
		Transport:  DefaultTransportConfig(),
		Log:        DefaultLogConfig(),
	}
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	if err := c.Management.Validate(); err != nil {
		return err
	}
	if err := c.Transport.Validate(); err != nil {
		return err
	}
	if err := c.Log.Validate(); err != nil {
		return err
	}
	return nil
}

// Clone 返回深拷贝
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	out := *c
	return &out
}

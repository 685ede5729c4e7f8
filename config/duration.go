package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Duration 是支持 JSON 字符串解析的 time.Duration 包装类型
//
// 支持的格式:
//   - 字符串: "30s", "5m", "500ms" 等
//   - 数字: 毫秒数（与名册中 connectDelayMillis 一致）
//
// 使用示例:
//
//	type Config struct {
//	    ConnectDelay Duration `json:"connect_delay"`
//	}
//
//	// JSON: {"connect_delay": "5s"} 或 {"connect_delay": 5000}
type Duration time.Duration

// UnmarshalJSON 实现 json.Unmarshaler 接口
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		duration, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration string %q: %w", s, err)
		}
		*d = Duration(duration)
		return nil
	}

	var ms int64
	if err := json.Unmarshal(data, &ms); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}

	return fmt.Errorf("duration must be a string (e.g., \"5s\") or number (milliseconds)")
}

// MarshalJSON 输出为人类可读的字符串格式
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Duration 返回底层的 time.Duration 值
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Millis 返回毫秒数
func (d Duration) Millis() int64 {
	return time.Duration(d).Milliseconds()
}

// String 返回字符串表示
func (d Duration) String() string {
	return time.Duration(d).String()
}

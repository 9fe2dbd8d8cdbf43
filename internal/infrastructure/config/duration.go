package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration time.Duration 的 YAML 包装
// 配置文件里写 "500ms"、"60s" 这类可读形式
type Duration time.Duration

// UnmarshalYAML 实现 yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML 实现 yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std 转换为 time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

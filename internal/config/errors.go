package config

import "fmt"

// FieldError 提供字段路径与错误原因，便于 CLI 向用户反馈。
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// newFieldError 创建包含字段路径与原因的 error，便于 CLI 定位。
func newFieldError(field, reason string) error {
	return FieldError{Field: field, Reason: reason}
}

// sectionField 拼接分节字段路径，例如 Cache.OriginPort。
func sectionField(section, field string) string {
	return fmt.Sprintf("%s.%s", section, field)
}

// argField 指向角色位置参数，例如 cache args[2] (origin-port)。
func argField(role Role, idx int, name string) string {
	return fmt.Sprintf("%s args[%d] (%s)", role, idx, name)
}

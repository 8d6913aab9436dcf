package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供单个控制连接的上下文字段，分发循环与处理器共用。
func RequestFields(role, requestID, op, file, protocol string) logrus.Fields {
	return logrus.Fields{
		"role":       role,
		"request_id": requestID,
		"op":         op,
		"file":       file,
		"protocol":   protocol,
	}
}

// RoleLogger 返回带角色与协议字段的日志入口。
func RoleLogger(logger logrus.FieldLogger, role, protocol string) logrus.FieldLogger {
	return logger.WithFields(logrus.Fields{
		"role":     role,
		"protocol": protocol,
	})
}

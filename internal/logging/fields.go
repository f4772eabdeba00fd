package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供 API 请求日志的公共字段。
func RequestFields(requestID, method, path string, status int) logrus.Fields {
	return logrus.Fields{
		"request_id": requestID,
		"method":     method,
		"path":       path,
		"status":     status,
	}
}

// AssetFields 描述一次资源查找的结果：key、命中层级与字节数。
func AssetFields(key, tier string, bytes int) logrus.Fields {
	return logrus.Fields{
		"key":   key,
		"tier":  tier,
		"bytes": bytes,
	}
}

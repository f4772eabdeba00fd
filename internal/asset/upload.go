package asset

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/sirupsen/logrus"
)

// UserNamespace 返回用户图片的上传命名空间：users/{userID}/{folder}。
func UserNamespace(userID, folder string) string {
	return "users/" + userID + "/" + folder
}

// ReportNamespace 返回报告媒体的上传命名空间：reports/{ownerID}/{reportID}。
func ReportNamespace(ownerID, reportID string) string {
	return "reports/" + ownerID + "/" + reportID
}

// Upload 编码 data 并上传到 <namespace>/<id><ext>，成功后预热内存与磁盘层并返回新 key。
// 与读路径不同，所有失败都会返回给调用方。
func (s *Service) Upload(ctx context.Context, data []byte, namespace string) (string, error) {
	key, err := s.upload(ctx, data, namespace)
	s.metrics.ObserveUpload(err == nil)
	if err != nil {
		s.logger.WithError(err).
			WithFields(logrus.Fields{"action": "asset_upload", "namespace": namespace, "bytes": len(data)}).
			Warn("asset_upload_failed")
		return "", err
	}
	return key, nil
}

// UploadUserImage 上传到 users/{userID}/{folder}/ 下。
func (s *Service) UploadUserImage(ctx context.Context, data []byte, userID, folder string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", ErrUnauthenticated
	}
	return s.Upload(ctx, data, UserNamespace(userID, folder))
}

// UploadReportMedia 上传到 reports/{ownerID}/{reportID}/ 下。
func (s *Service) UploadReportMedia(ctx context.Context, data []byte, ownerID, reportID string) (string, error) {
	if strings.TrimSpace(ownerID) == "" {
		return "", ErrUnauthenticated
	}
	return s.Upload(ctx, data, ReportNamespace(ownerID, reportID))
}

func (s *Service) upload(ctx context.Context, data []byte, namespace string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyUpload
	}
	ns, err := normalizeNamespace(namespace)
	if err != nil {
		return "", err
	}
	if s.encoder == nil {
		return "", ErrNoEncoder
	}

	encoded, err := s.encoder.Encode(data)
	if err != nil {
		return "", fmt.Errorf("encode upload: %w", err)
	}

	key := path.Join(ns, s.newID()+encoded.Extension)
	if err := s.store.Upload(ctx, key, encoded.Data, encoded.ContentType); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	s.warm(context.WithoutCancel(ctx), key, encoded.Data)
	s.logger.WithFields(logrus.Fields{
		"action": "asset_upload",
		"key":    key,
		"bytes":  len(encoded.Data),
	}).Info("asset_uploaded")
	return key, nil
}

// warm 把刚上传的内容写入两层缓存；内存层只接受能解码的内容。
func (s *Service) warm(ctx context.Context, key string, data []byte) {
	if a, err := s.decoder.Decode(data); err == nil && a != nil {
		s.memory.Set(key, a)
	} else {
		s.logger.WithError(err).
			WithFields(logrus.Fields{"action": "asset_upload", "key": key}).
			Warn("uploaded_asset_undecodable")
	}
	s.disk.Write(ctx, key, data)
}

// normalizeNamespace 去掉首尾空白与尾部斜杠，拒绝空值、绝对路径与 "."/".." 段。
func normalizeNamespace(namespace string) (string, error) {
	ns := strings.TrimRight(strings.TrimSpace(namespace), "/")
	if ns == "" || strings.HasPrefix(ns, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidNamespace, namespace)
	}
	for _, segment := range strings.Split(ns, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidNamespace, namespace)
		}
	}
	return ns, nil
}

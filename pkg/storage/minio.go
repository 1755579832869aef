// Package storage 提供了与对象存储服务（如 MinIO）交互的功能。
package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"careerforge-go/internal/config"
	"careerforge-go/pkg/log"
)

// ResumeStorage 保存上传的简历原件。
type ResumeStorage struct {
	client *minio.Client
	bucket string
}

// NewMinIOClient 初始化 MinIO 客户端。
func NewMinIOClient(cfg config.MinIOConfig) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 MinIO 客户端失败: %w", err)
	}
	log.Info("[MinIO] 客户端初始化成功")
	return client, nil
}

// NewResumeStorage 创建 ResumeStorage，不检查存储桶。
func NewResumeStorage(client *minio.Client, bucket string) *ResumeStorage {
	return &ResumeStorage{client: client, bucket: bucket}
}

// EnsureBucket 检查存储桶是否存在，如果不存在则创建。
func (s *ResumeStorage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("检查 MinIO 存储桶失败: %w", err)
	}
	if exists {
		log.Infof("[MinIO] 存储桶 '%s' 已存在", s.bucket)
		return nil
	}
	log.Infof("[MinIO] 存储桶 '%s' 不存在，正在创建...", s.bucket)
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("创建 MinIO 存储桶失败: %w", err)
	}
	log.Infof("[MinIO] 存储桶 '%s' 创建成功", s.bucket)
	return nil
}

// ObjectName 返回简历原件的对象路径 resumes/<md5>/<文件名>。
func ObjectName(fileMD5, fileName string) string {
	return path.Join("resumes", fileMD5, path.Base(fileName))
}

// Put 上传简历原件。
func (s *ResumeStorage) Put(ctx context.Context, objectName string, data []byte, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, s.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		log.Errorf("[MinIO] 上传对象失败, Object: %s, Error: %v", objectName, err)
		return fmt.Errorf("上传简历到 MinIO 失败: %w", err)
	}
	return nil
}

// PresignedURL 生成简历原件的临时下载链接。
func (s *ResumeStorage) PresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	presignedURL, err := s.client.PresignedGetObject(ctx, s.bucket, objectName, expiry, nil)
	if err != nil {
		log.Errorf("[MinIO] 生成预签名链接失败: %s", err)
		return "", err
	}
	return presignedURL.String(), nil
}

// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"careerforge-go/internal/model"
)

// ResumeRepository 记录每次简历上传与入库的结果。
type ResumeRepository interface {
	Create(ctx context.Context, record *model.ResumeUpload) error
	MarkDone(ctx context.Context, id uint, chunkCount int, ingestedAt time.Time) error
	MarkFailed(ctx context.Context, id uint, reason string) error
	// FindLatestDone 返回最近一次成功入库的记录，没有时返回 nil, nil。
	FindLatestDone(ctx context.Context) (*model.ResumeUpload, error)
}

type resumeRepository struct {
	db *gorm.DB
}

// NewResumeRepository 创建一个新的 ResumeRepository 实例。
func NewResumeRepository(db *gorm.DB) ResumeRepository {
	return &resumeRepository{db: db}
}

func (r *resumeRepository) Create(ctx context.Context, record *model.ResumeUpload) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *resumeRepository) MarkDone(ctx context.Context, id uint, chunkCount int, ingestedAt time.Time) error {
	return r.db.WithContext(ctx).Model(&model.ResumeUpload{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":      model.UploadStatusDone,
		"chunk_count": chunkCount,
		"ingested_at": ingestedAt,
	}).Error
}

func (r *resumeRepository) MarkFailed(ctx context.Context, id uint, reason string) error {
	return r.db.WithContext(ctx).Model(&model.ResumeUpload{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status": model.UploadStatusFailed,
		"error":  reason,
	}).Error
}

func (r *resumeRepository) FindLatestDone(ctx context.Context) (*model.ResumeUpload, error) {
	var record model.ResumeUpload
	err := r.db.WithContext(ctx).
		Where("status = ?", model.UploadStatusDone).
		Order("ingested_at DESC").
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// 简历入库状态。
const (
	UploadStatusProcessing = 0
	UploadStatusDone       = 1
	UploadStatusFailed     = 2
)

// ResumeUpload 定义了 resume_upload 表的 ORM 模型。
// 每次上传简历都会写入一行，记录原文件信息和入库结果。
type ResumeUpload struct {
	ID           uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	FileMD5      string     `gorm:"type:varchar(32);not null;index" json:"fileMd5"`
	FileName     string     `gorm:"type:varchar(255);not null" json:"fileName"`
	TotalSize    int64      `gorm:"not null" json:"totalSize"`
	ObjectName   string     `gorm:"type:varchar(512)" json:"objectName"`
	ChunkCount   int        `gorm:"not null;default:0" json:"chunkCount"`
	ChunkSize    int        `gorm:"not null" json:"chunkSize"`
	ChunkOverlap int        `gorm:"not null" json:"chunkOverlap"`
	Status       int        `gorm:"type:tinyint;not null;default:0" json:"status"` // 0: processing, 1: done, 2: failed
	Error        string     `gorm:"type:text" json:"error,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	IngestedAt   *time.Time `gorm:"default:null" json:"ingestedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (ResumeUpload) TableName() string {
	return "resume_upload"
}

// ResumeView 是 GET /resume 返回给前端的结构。
type ResumeView struct {
	FileMD5      string     `json:"fileMd5"`
	FileName     string     `json:"fileName"`
	TotalSize    int64      `json:"totalSize"`
	ChunkCount   int        `json:"chunkCount"`
	ChunkSize    int        `json:"chunkSize"`
	ChunkOverlap int        `json:"chunkOverlap"`
	IngestedAt   *LocalTime `json:"ingestedAt,omitempty"`
	DownloadURL  string     `json:"downloadUrl,omitempty"`
}

// IngestionEvent 是简历成功入库后发布到 Kafka 的消息体。
type IngestionEvent struct {
	FileMD5      string    `json:"file_md5"`
	FileName     string    `json:"file_name"`
	ObjectName   string    `json:"object_name,omitempty"`
	ChunkCount   int       `json:"chunk_count"`
	ChunkSize    int       `json:"chunk_size"`
	ChunkOverlap int       `json:"chunk_overlap"`
	ModelVersion string    `json:"model_version"`
	IngestedAt   time.Time `json:"ingested_at"`
}

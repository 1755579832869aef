package service

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"careerforge-go/internal/apperror"
	"careerforge-go/internal/model"
	"careerforge-go/internal/pipeline"
	"careerforge-go/internal/repository"
	"careerforge-go/pkg/log"
	"careerforge-go/pkg/storage"
)

// Ingester 把一份原始文件写入向量存储。
type Ingester interface {
	Ingest(ctx context.Context, doc pipeline.Document) (*pipeline.IngestResult, error)
}

// ObjectStore 保存简历原文件。
type ObjectStore interface {
	Put(ctx context.Context, objectName string, data []byte, contentType string) error
	PresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
}

// EventPublisher 发布入库完成事件。
type EventPublisher interface {
	PublishIngestion(ctx context.Context, event model.IngestionEvent) error
}

// UploadResult 是上传接口的返回内容。
type UploadResult struct {
	Message    string `json:"message"`
	FileMD5    string `json:"fileMd5"`
	ChunkCount int    `json:"chunkCount"`
}

// ResumeService 定义了简历上传和查询的业务操作。
type ResumeService interface {
	Upload(ctx context.Context, fileName string, data []byte) (*UploadResult, error)
	// Current 返回当前生效的简历信息，没有时返回 nil, nil。
	Current(ctx context.Context) (*model.ResumeView, error)
}

// ResumeOptions 汇总可选依赖，nil 表示对应功能关闭。
type ResumeOptions struct {
	Repo          repository.ResumeRepository
	Storage       ObjectStore
	Publisher     EventPublisher
	PresignExpiry time.Duration
	ChunkSize     int
	ChunkOverlap  int
	ModelVersion  string
	// Accept 非 nil 时在保存和入库前按文件名过滤不支持的格式。
	Accept func(fileName string) bool
}

type resumeService struct {
	ingester Ingester
	opts     ResumeOptions
}

// NewResumeService 创建一个新的 ResumeService 实例。
func NewResumeService(ingester Ingester, opts ResumeOptions) ResumeService {
	if opts.PresignExpiry <= 0 {
		opts.PresignExpiry = time.Hour
	}
	return &resumeService{ingester: ingester, opts: opts}
}

// Upload 保存原文件、记录台账并同步完成入库。
// 原文件存储、台账和事件发布失败只记录日志，入库失败才返回错误。
func (s *resumeService) Upload(ctx context.Context, fileName string, data []byte) (*UploadResult, error) {
	const op = "service.Upload"
	fileName = filepath.Base(strings.TrimSpace(fileName))
	if fileName == "" || fileName == "." {
		return nil, apperror.New(apperror.KindInvalidInput, op, errors.New("文件名不能为空"))
	}
	if s.opts.Accept != nil && !s.opts.Accept(fileName) {
		return nil, apperror.Newf(apperror.KindInvalidInput, op, "不支持的文件类型: %s", fileName)
	}

	sum := md5.Sum(data)
	fileMD5 := hex.EncodeToString(sum[:])
	log.Infof("[ResumeService] 收到简历上传, FileName: %s, MD5: %s, 大小: %d", fileName, fileMD5, len(data))

	objectName := ""
	if s.opts.Storage != nil && len(data) > 0 {
		name := storage.ObjectName(fileMD5, fileName)
		if err := s.opts.Storage.Put(ctx, name, data, contentTypeOf(fileName)); err != nil {
			log.Warnf("[ResumeService] 保存原文件失败, 继续入库, ObjectName: %s, Error: %v", name, err)
		} else {
			objectName = name
		}
	}

	var record *model.ResumeUpload
	if s.opts.Repo != nil {
		record = &model.ResumeUpload{
			FileMD5:      fileMD5,
			FileName:     fileName,
			TotalSize:    int64(len(data)),
			ObjectName:   objectName,
			ChunkSize:    s.opts.ChunkSize,
			ChunkOverlap: s.opts.ChunkOverlap,
			Status:       model.UploadStatusProcessing,
		}
		if err := s.opts.Repo.Create(ctx, record); err != nil {
			log.Warnf("[ResumeService] 创建上传记录失败, Error: %v", err)
			record = nil
		}
	}

	result, err := s.ingester.Ingest(ctx, pipeline.Document{Name: fileName, Data: data})
	if err != nil {
		if record != nil {
			if markErr := s.opts.Repo.MarkFailed(context.WithoutCancel(ctx), record.ID, err.Error()); markErr != nil {
				log.Warnf("[ResumeService] 标记上传失败状态出错, ID: %d, Error: %v", record.ID, markErr)
			}
		}
		return nil, err
	}

	ingestedAt := time.Now()
	if record != nil {
		if err := s.opts.Repo.MarkDone(ctx, record.ID, result.Chunks, ingestedAt); err != nil {
			log.Warnf("[ResumeService] 更新上传记录失败, ID: %d, Error: %v", record.ID, err)
		}
	}

	if s.opts.Publisher != nil {
		event := model.IngestionEvent{
			FileMD5:      fileMD5,
			FileName:     fileName,
			ObjectName:   objectName,
			ChunkCount:   result.Chunks,
			ChunkSize:    s.opts.ChunkSize,
			ChunkOverlap: s.opts.ChunkOverlap,
			ModelVersion: s.opts.ModelVersion,
			IngestedAt:   ingestedAt,
		}
		if err := s.opts.Publisher.PublishIngestion(ctx, event); err != nil {
			log.Warnf("[ResumeService] 发布入库事件失败, MD5: %s, Error: %v", fileMD5, err)
		}
	}

	return &UploadResult{
		Message:    fmt.Sprintf("Successfully processed %d chunks from %s", result.Chunks, fileName),
		FileMD5:    fileMD5,
		ChunkCount: result.Chunks,
	}, nil
}

func (s *resumeService) Current(ctx context.Context) (*model.ResumeView, error) {
	if s.opts.Repo == nil {
		return nil, nil
	}
	record, err := s.opts.Repo.FindLatestDone(ctx)
	if err != nil {
		return nil, apperror.New(apperror.KindUnavailable, "service.Current", err)
	}
	if record == nil {
		return nil, nil
	}

	view := &model.ResumeView{
		FileMD5:      record.FileMD5,
		FileName:     record.FileName,
		TotalSize:    record.TotalSize,
		ChunkCount:   record.ChunkCount,
		ChunkSize:    record.ChunkSize,
		ChunkOverlap: record.ChunkOverlap,
		IngestedAt:   model.NewLocalTime(record.IngestedAt),
	}
	if s.opts.Storage != nil && record.ObjectName != "" {
		url, err := s.opts.Storage.PresignedURL(ctx, record.ObjectName, s.opts.PresignExpiry)
		if err != nil {
			log.Warnf("[ResumeService] 生成下载链接失败, ObjectName: %s, Error: %v", record.ObjectName, err)
		} else {
			view.DownloadURL = url
		}
	}
	return view, nil
}

func contentTypeOf(fileName string) string {
	if ct := mime.TypeByExtension(filepath.Ext(fileName)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

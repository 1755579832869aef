// Package bootstrap 负责按配置组装所有依赖，供各个入口程序复用。
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"careerforge-go/internal/config"
	"careerforge-go/internal/model"
	"careerforge-go/internal/pipeline"
	"careerforge-go/internal/repository"
	"careerforge-go/internal/service"
	"careerforge-go/internal/vectorstore"
	"careerforge-go/pkg/database"
	"careerforge-go/pkg/embedding"
	"careerforge-go/pkg/es"
	"careerforge-go/pkg/extract"
	"careerforge-go/pkg/kafka"
	"careerforge-go/pkg/llm"
	"careerforge-go/pkg/log"
	"careerforge-go/pkg/storage"
	"careerforge-go/pkg/tika"
)

// App 持有进程内唯一的一组客户端和服务。
type App struct {
	Config    *config.Config
	Embedder  embedding.Client
	Store     *vectorstore.Store
	Processor *pipeline.Processor
	LLM       llm.Client

	Analysis service.AnalysisService
	Roadmap  service.RoadmapService
	Resume   service.ResumeService
	Search   service.SearchService

	closers []func() error
}

// New 按配置初始化所有依赖。任何一步失败都会关闭已经创建的资源。
func New(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	app := &App{Config: cfg}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	// 1. Embedding 客户端，可选 Redis 缓存
	app.Embedder, err = embedding.NewClient(ctx, cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("初始化 embedding 客户端失败: %w", err)
	}
	if cfg.Embedding.Cache.Enabled {
		rdb, err := database.NewRedis(ctx, cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, rdb.Close)
		app.Embedder = embedding.WithCache(app.Embedder, repository.NewEmbeddingCacheRepository(rdb), cfg.Embedding.Cache.TTL)
		log.Info("[Bootstrap] 已启用 Redis 向量缓存")
	}

	// 2. 向量存储
	backend, err := app.newBackend(ctx)
	if err != nil {
		return nil, err
	}
	app.Store = vectorstore.New(app.Embedder, backend, vectorstore.Options{
		TopK:           cfg.Retrieval.TopK,
		MatchThreshold: cfg.Retrieval.MatchThreshold,
		FallbackTopK:   cfg.Retrieval.FallbackTopK,
	})

	// 3. 文本提取与入库流程
	splitter, err := pipeline.NewSplitter(cfg.Chunker.ChunkSize, cfg.Chunker.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	extractor := newExtractor(cfg.Extractor)
	app.Processor = pipeline.NewProcessor(extractor, splitter, app.Store)

	// 4. LLM 客户端
	app.LLM, err = llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("初始化 LLM 客户端失败: %w", err)
	}

	// 5. 可选组件：上传台账、原文件存储、入库事件
	resumeOpts := service.ResumeOptions{
		PresignExpiry: cfg.MinIO.PresignExpiry,
		ChunkSize:     cfg.Chunker.ChunkSize,
		ChunkOverlap:  cfg.Chunker.ChunkOverlap,
		ModelVersion:  app.Embedder.ModelName(),
	}
	if _, local := extractor.(*extract.LocalExtractor); local {
		resumeOpts.Accept = extract.Supported
	}
	if err := app.attachOptional(ctx, &resumeOpts); err != nil {
		return nil, err
	}

	// 6. 业务服务
	app.Analysis = service.NewAnalysisService(app.Store, app.LLM, cfg.Retrieval.TopK)
	app.Roadmap = service.NewRoadmapService(app.LLM)
	app.Resume = service.NewResumeService(app.Processor, resumeOpts)
	app.Search = service.NewSearchService(app.Store)

	log.Infof("[Bootstrap] 初始化完成, backend: %s, embedding: %s, llm: %s",
		cfg.VectorStore.Backend, app.Embedder.ModelName(), app.LLM.ModelName())
	return app, nil
}

func (a *App) newBackend(ctx context.Context) (vectorstore.Backend, error) {
	cfg := a.Config
	setupCtx, cancel := context.WithTimeout(ctx, setupTimeout(cfg.VectorStore.Timeout))
	defer cancel()

	switch cfg.VectorStore.Backend {
	case "memory":
		log.Warnf("[Bootstrap] 使用内存向量存储, 进程重启后数据丢失")
		return vectorstore.NewMemoryBackend(), nil

	case "elasticsearch":
		client, err := es.NewClient(cfg.VectorStore.Elasticsearch)
		if err != nil {
			return nil, fmt.Errorf("初始化 Elasticsearch 客户端失败: %w", err)
		}
		index := es.NewVectorIndex(client, cfg.VectorStore.Elasticsearch.IndexName, cfg.Embedding.Dimensions)
		if err := index.EnsureIndex(setupCtx); err != nil {
			return nil, err
		}
		return vectorstore.NewElasticsearchBackend(index), nil

	default:
		db, err := database.NewPostgres(setupCtx, cfg.VectorStore.PgVector.DSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		backend := vectorstore.NewPgVectorBackend(db, cfg.VectorStore.PgVector.Table, cfg.VectorStore.PgVector.MatchFunction)
		if cfg.VectorStore.PgVector.AutoMigrate {
			if err := backend.EnsureSchema(setupCtx, cfg.Embedding.Dimensions); err != nil {
				return nil, err
			}
		}
		return backend, nil
	}
}

func newExtractor(cfg config.ExtractorConfig) pipeline.TextExtractor {
	if strings.EqualFold(cfg.Type, "tika") {
		log.Infof("[Bootstrap] 使用 Tika 提取文本, server: %s", cfg.Tika.ServerURL)
		return tika.NewClient(cfg.Tika)
	}
	return extract.NewLocalExtractor()
}

func (a *App) attachOptional(ctx context.Context, opts *service.ResumeOptions) error {
	cfg := a.Config

	if cfg.Database.MySQL.Enabled {
		db, err := database.NewMySQL(cfg.Database.MySQL.DSN)
		if err != nil {
			return err
		}
		if sqlDB, err := db.DB(); err == nil {
			a.closers = append(a.closers, sqlDB.Close)
		}
		if err := db.WithContext(ctx).AutoMigrate(&model.ResumeUpload{}); err != nil {
			return fmt.Errorf("迁移 resume_upload 表失败: %w", err)
		}
		opts.Repo = repository.NewResumeRepository(db)
	}

	if cfg.MinIO.Enabled {
		client, err := storage.NewMinIOClient(cfg.MinIO)
		if err != nil {
			return err
		}
		resumes := storage.NewResumeStorage(client, cfg.MinIO.BucketName)
		if err := resumes.EnsureBucket(ctx); err != nil {
			return err
		}
		opts.Storage = resumes
	}

	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka)
		a.closers = append(a.closers, producer.Close)
		opts.Publisher = producer
	}
	return nil
}

func setupTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return 15 * time.Second
	}
	return d
}

// Close 按创建的逆序释放资源。
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

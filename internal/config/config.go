// Package config 负责加载和管理应用程序的配置。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	Chunker     ChunkerConfig     `mapstructure:"chunker"`
	Retrieval   RetrievalConfig   `mapstructure:"retrieval"`
	VectorStore VectorStoreConfig `mapstructure:"vector_store"`
	Embedding   EmbeddingConfig   `mapstructure:"embedding"`
	LLM         LLMConfig         `mapstructure:"llm"`
	Extractor   ExtractorConfig   `mapstructure:"extractor"`
	Database    DatabaseConfig    `mapstructure:"database"`
	MinIO       MinIOConfig       `mapstructure:"minio"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port             string        `mapstructure:"port"`
	Mode             string        `mapstructure:"mode"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	MaxUploadMB      int64         `mapstructure:"max_upload_mb"`
	CORSAllowOrigins []string      `mapstructure:"cors_allow_origins"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// ChunkerConfig 控制文本切块的大小与重叠（按字符计）。
type ChunkerConfig struct {
	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`
}

// RetrievalConfig 控制相似度检索的阈值与返回条数。
type RetrievalConfig struct {
	TopK           int     `mapstructure:"top_k"`
	MatchThreshold float64 `mapstructure:"match_threshold"`
	// FallbackTopK 为 true 时，阈值过滤后为空则退化为不带阈值的 top-k。
	FallbackTopK bool `mapstructure:"fallback_top_k"`
}

// VectorStoreConfig 选择并配置向量存储后端。
type VectorStoreConfig struct {
	Backend       string              `mapstructure:"backend"` // pgvector | elasticsearch | memory
	Timeout       time.Duration       `mapstructure:"timeout"`
	PgVector      PgVectorConfig      `mapstructure:"pgvector"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
}

// PgVectorConfig 存储 PostgreSQL + pgvector 的配置。
type PgVectorConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
	// MatchFunction 非空时通过该 SQL 函数检索（兼容 Supabase 的 match_documents）。
	MatchFunction string `mapstructure:"match_function"`
	AutoMigrate   bool   `mapstructure:"auto_migrate"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// EmbeddingConfig 存储 Embedding 模型相关的配置。
type EmbeddingConfig struct {
	Provider   string               `mapstructure:"provider"` // openai | gemini
	APIKey     string               `mapstructure:"api_key"`
	BaseURL    string               `mapstructure:"base_url"`
	Model      string               `mapstructure:"model"`
	Dimensions int                  `mapstructure:"dimensions"`
	Timeout    time.Duration        `mapstructure:"timeout"`
	Cache      EmbeddingCacheConfig `mapstructure:"cache"`
}

// EmbeddingCacheConfig 配置基于 Redis 的向量缓存。
type EmbeddingCacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// LLMConfig 存储大语言模型相关的配置。
type LLMConfig struct {
	Provider   string              `mapstructure:"provider"` // openai | gemini
	APIKey     string              `mapstructure:"api_key"`
	BaseURL    string              `mapstructure:"base_url"`
	Model      string              `mapstructure:"model"`
	Timeout    time.Duration       `mapstructure:"timeout"`
	Generation LLMGenerationConfig `mapstructure:"generation"`
}

// LLMGenerationConfig 配置生成相关参数（可选）。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// ExtractorConfig 选择文本提取方式。
type ExtractorConfig struct {
	Type string     `mapstructure:"type"` // local | tika
	Tika TikaConfig `mapstructure:"tika"`
}

// TikaConfig 存储 Tika 服务器相关的配置。
type TikaConfig struct {
	ServerURL string        `mapstructure:"server_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置，用于记录简历上传台账。
type MySQLConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	Region          string `mapstructure:"region"`
	BucketName      string `mapstructure:"bucket_name"`

	// PresignExpiry 是简历下载链接的有效期。
	PresignExpiry time.Duration `mapstructure:"presign_expiry"`
}

// KafkaConfig 存储 Kafka 相关的配置。
type KafkaConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

// envAliases 兼容原有部署使用的环境变量名。
var envAliases = map[string][]string{
	"llm.api_key":                          {"LLM_API_KEY", "GROQ_API_KEY", "GOOGLE_API_KEY"},
	"embedding.api_key":                    {"EMBEDDING_API_KEY", "OPENAI_API_KEY"},
	"vector_store.pgvector.dsn":            {"VECTOR_STORE_PGVECTOR_DSN", "SUPABASE_DB_URL", "DATABASE_URL"},
	"vector_store.elasticsearch.addresses": {"VECTOR_STORE_ELASTICSEARCH_ADDRESSES", "ELASTICSEARCH_URL"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.request_timeout", 3*time.Minute)
	v.SetDefault("server.max_upload_mb", 10)
	v.SetDefault("server.cors_allow_origins", []string{"*"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output_path", "")

	v.SetDefault("chunker.chunk_size", 1000)
	v.SetDefault("chunker.chunk_overlap", 200)

	v.SetDefault("retrieval.top_k", 6)
	v.SetDefault("retrieval.match_threshold", 0.4)
	v.SetDefault("retrieval.fallback_top_k", false)

	v.SetDefault("vector_store.backend", "pgvector")
	v.SetDefault("vector_store.timeout", 15*time.Second)
	v.SetDefault("vector_store.pgvector.dsn", "")
	v.SetDefault("vector_store.pgvector.table", "documents")
	v.SetDefault("vector_store.pgvector.match_function", "")
	v.SetDefault("vector_store.pgvector.auto_migrate", true)
	v.SetDefault("vector_store.elasticsearch.addresses", "http://localhost:9200")
	v.SetDefault("vector_store.elasticsearch.username", "")
	v.SetDefault("vector_store.elasticsearch.password", "")
	v.SetDefault("vector_store.elasticsearch.index_name", "resume_chunks")

	v.SetDefault("embedding.provider", "openai")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.base_url", "http://localhost:8080/v1")
	v.SetDefault("embedding.model", "sentence-transformers/all-MiniLM-L6-v2")
	v.SetDefault("embedding.dimensions", 384)
	v.SetDefault("embedding.timeout", 30*time.Second)
	v.SetDefault("embedding.cache.enabled", false)
	v.SetDefault("embedding.cache.ttl", 7*24*time.Hour)

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("llm.model", "llama-3.3-70b-versatile")
	v.SetDefault("llm.timeout", 2*time.Minute)
	v.SetDefault("llm.generation.temperature", 0)
	v.SetDefault("llm.generation.top_p", 0)
	v.SetDefault("llm.generation.max_tokens", 0)

	v.SetDefault("extractor.type", "local")
	v.SetDefault("extractor.tika.server_url", "http://localhost:9998")
	v.SetDefault("extractor.tika.timeout", time.Minute)

	v.SetDefault("database.mysql.enabled", false)
	v.SetDefault("database.mysql.dsn", "")
	v.SetDefault("database.redis.addr", "localhost:6379")
	v.SetDefault("database.redis.password", "")
	v.SetDefault("database.redis.db", 0)

	v.SetDefault("minio.enabled", false)
	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.access_key_id", "")
	v.SetDefault("minio.secret_access_key", "")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.region", "us-east-1")
	v.SetDefault("minio.bucket_name", "resumes")
	v.SetDefault("minio.presign_expiry", time.Hour)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic", "resume-ingestion")
}

// Load 读取 .env、YAML 配置文件与环境变量并解析为 Config。
// configPath 为空或文件不存在时只使用默认值和环境变量。
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, envs := range envAliases {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("绑定环境变量 %s 失败: %w", key, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !isNotExist(err) {
				return nil, fmt.Errorf("读取配置文件失败: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// Validate 校验切块与检索参数。
func (c *Config) Validate() error {
	if c.Chunker.ChunkSize <= 0 {
		return fmt.Errorf("chunker.chunk_size 必须大于 0, 当前为 %d", c.Chunker.ChunkSize)
	}
	if c.Chunker.ChunkOverlap < 0 || c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize {
		return fmt.Errorf("chunker.chunk_overlap 必须在 [0, %d) 范围内, 当前为 %d", c.Chunker.ChunkSize, c.Chunker.ChunkOverlap)
	}
	if c.Retrieval.TopK < 1 {
		return fmt.Errorf("retrieval.top_k 必须大于等于 1, 当前为 %d", c.Retrieval.TopK)
	}
	if c.Retrieval.MatchThreshold < 0 || c.Retrieval.MatchThreshold > 1 {
		return fmt.Errorf("retrieval.match_threshold 必须在 [0, 1] 范围内, 当前为 %v", c.Retrieval.MatchThreshold)
	}
	switch c.VectorStore.Backend {
	case "pgvector", "elasticsearch", "memory":
	default:
		return fmt.Errorf("未知的 vector_store.backend: %q", c.VectorStore.Backend)
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions 必须大于 0")
	}
	return nil
}

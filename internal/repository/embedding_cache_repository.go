package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
)

// EmbeddingCacheRepository 在 Redis 中缓存文本向量，实现 embedding.VectorCache。
type EmbeddingCacheRepository struct {
	redisClient *redis.Client
}

// NewEmbeddingCacheRepository 创建一个新的 EmbeddingCacheRepository 实例。
func NewEmbeddingCacheRepository(redisClient *redis.Client) *EmbeddingCacheRepository {
	return &EmbeddingCacheRepository{redisClient: redisClient}
}

// GetVector 未命中时返回 ok=false 且 err=nil。
func (r *EmbeddingCacheRepository) GetVector(ctx context.Context, key string) ([]float32, bool, error) {
	val, err := r.redisClient.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var vec []float32
	if err := json.Unmarshal(val, &vec); err != nil {
		return nil, false, err
	}
	return vec, true, nil
}

func (r *EmbeddingCacheRepository) SetVector(ctx context.Context, key string, vec []float32, ttl time.Duration) error {
	val, err := json.Marshal(vec)
	if err != nil {
		return err
	}
	return r.redisClient.Set(ctx, key, val, ttl).Err()
}

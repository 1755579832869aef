package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"careerforge-go/pkg/log"
)

// VectorCache 是向量缓存的存取接口，由 Redis 仓库实现。
type VectorCache interface {
	GetVector(ctx context.Context, key string) ([]float32, bool, error)
	SetVector(ctx context.Context, key string, vec []float32, ttl time.Duration) error
}

type cachedClient struct {
	next  Client
	cache VectorCache
	ttl   time.Duration
}

// WithCache 为 next 增加一层缓存。缓存读写失败只记录日志，不影响主流程。
func WithCache(next Client, cache VectorCache, ttl time.Duration) Client {
	return &cachedClient{next: next, cache: cache, ttl: ttl}
}

// CacheKey 由模型名和文本的 SHA-256 组成，换模型不会命中旧向量。
func CacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return "emb:" + model + ":" + hex.EncodeToString(sum[:])
}

func (c *cachedClient) ModelName() string {
	return c.next.ModelName()
}

func (c *cachedClient) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	key := CacheKey(c.next.ModelName(), text)
	if vec, ok, err := c.cache.GetVector(ctx, key); err != nil {
		log.Warnf("[EmbeddingCache] 读取缓存失败, key: %s, error: %v", key, err)
	} else if ok {
		return vec, nil
	}

	vec, err := c.next.CreateEmbedding(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := c.cache.SetVector(ctx, key, vec, c.ttl); err != nil {
		log.Warnf("[EmbeddingCache] 写入缓存失败, key: %s, error: %v", key, err)
	}
	return vec, nil
}

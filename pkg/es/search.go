package es

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"

	"careerforge-go/internal/model"
	"careerforge-go/pkg/log"
)

// Hit 是一条 kNN 检索结果，Similarity 已换算为余弦相似度。
type Hit struct {
	Document   model.EsDocument
	Similarity float64
}

// MaxKNN 是 Elasticsearch 允许的 num_candidates 上限，k 不能超过它。
const MaxKNN = 10000

// KNNQuery 构建 kNN 检索请求体。threshold 为负无穷时不设置相似度下限。
// 对 cosine 字段，similarity 参数使用原始余弦值。k 会被截断到 MaxKNN。
func KNNQuery(vector []float32, threshold float64, k int) map[string]any {
	k = min(k, MaxKNN)
	numCandidates := min(max(k*10, 100), MaxKNN)
	knn := map[string]any{
		"field":          "vector",
		"query_vector":   vector,
		"k":              k,
		"num_candidates": numCandidates,
	}
	if !math.IsInf(threshold, -1) {
		knn["similarity"] = threshold
	}
	return map[string]any{
		"knn":     knn,
		"size":    k,
		"_source": map[string]any{"excludes": []string{"vector"}},
	}
}

// ScoreToCosine 将 ES cosine 字段的 _score=(1+cos)/2 还原为余弦值。
func ScoreToCosine(score float64) float64 {
	return 2*score - 1
}

// Search 在别名上执行 kNN 检索，结果按相似度降序。
func (v *VectorIndex) Search(ctx context.Context, vector []float32, threshold float64, k int) ([]Hit, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(KNNQuery(vector, threshold, k)); err != nil {
		return nil, fmt.Errorf("failed to encode es query: %w", err)
	}

	res, err := v.client.Search(
		v.client.Search.WithContext(ctx),
		v.client.Search.WithIndex(v.alias),
		v.client.Search.WithBody(&buf),
	)
	if err != nil {
		log.Errorf("[ES] 向 Elasticsearch 发送搜索请求失败: %v", err)
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		log.Errorf("[ES] Elasticsearch 返回错误, status: %s, body: %s", res.Status(), string(bodyBytes))
		return nil, fmt.Errorf("elasticsearch returned an error: %s", res.Status())
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source model.EsDocument `json:"_source"`
				Score  float64          `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("failed to decode es response: %w", err)
	}

	hits := make([]Hit, 0, len(esResponse.Hits.Hits))
	for _, h := range esResponse.Hits.Hits {
		hits = append(hits, Hit{Document: h.Source, Similarity: ScoreToCosine(h.Score)})
	}
	return hits, nil
}

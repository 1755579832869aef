package es

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/google/uuid"

	"careerforge-go/internal/model"
	"careerforge-go/pkg/log"
)

// VectorIndex 通过别名管理一组简历分块索引。
// 读写都走别名，整体替换时新建物理索引并原子切换别名。
type VectorIndex struct {
	client *elasticsearch.Client
	alias  string
	dims   int
}

// NewVectorIndex 创建索引管理器，alias 即配置中的 index_name。
func NewVectorIndex(client *elasticsearch.Client, alias string, dims int) *VectorIndex {
	return &VectorIndex{client: client, alias: alias, dims: dims}
}

func (v *VectorIndex) mapping() string {
	return fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"chunk_id": { "type": "keyword" },
				"chunk_index": { "type": "integer" },
				"content": { "type": "text" },
				"metadata": { "type": "object", "enabled": false },
				"vector": {
					"type": "dense_vector",
					"dims": %d,
					"index": true,
					"similarity": "cosine"
				},
				"model_version": { "type": "keyword" }
			}
		}
	}`, v.dims)
}

// EnsureIndex 检查别名是否存在，如果不存在则创建一个物理索引并挂上别名。
func (v *VectorIndex) EnsureIndex(ctx context.Context) error {
	res, err := v.client.Indices.ExistsAlias([]string{v.alias}, v.client.Indices.ExistsAlias.WithContext(ctx))
	if err != nil {
		log.Errorf("[ES] 检查别名是否存在时出错: %v", err)
		return err
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		log.Infof("[ES] 别名 '%s' 已存在", v.alias)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("检查别名是否存在时收到意外的状态码: %d", res.StatusCode)
	}

	index, err := v.createPhysicalIndex(ctx)
	if err != nil {
		return err
	}
	return v.updateAliases(ctx, []map[string]any{
		{"add": map[string]any{"index": index, "alias": v.alias}},
	})
}

func (v *VectorIndex) createPhysicalIndex(ctx context.Context) (string, error) {
	index := fmt.Sprintf("%s_%s", v.alias, strings.ReplaceAll(uuid.NewString(), "-", ""))
	res, err := v.client.Indices.Create(
		index,
		v.client.Indices.Create.WithBody(strings.NewReader(v.mapping())),
		v.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		log.Errorf("[ES] 创建索引 '%s' 失败: %v", index, err)
		return "", err
	}
	defer res.Body.Close()
	if res.IsError() {
		log.Errorf("[ES] 创建索引 '%s' 时 Elasticsearch 返回错误: %s", index, res.String())
		return "", errors.New("创建索引时 Elasticsearch 返回错误")
	}
	log.Infof("[ES] 索引 '%s' 创建成功", index)
	return index, nil
}

// IndexDocuments 使用 bulk 接口写入文档并立即 refresh。
func (v *VectorIndex) IndexDocuments(ctx context.Context, index string, docs []model.EsDocument) error {
	if len(docs) == 0 {
		return nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, doc := range docs {
		meta := map[string]any{"index": map[string]any{"_index": index, "_id": doc.ChunkID}}
		if err := enc.Encode(meta); err != nil {
			return err
		}
		if err := enc.Encode(doc); err != nil {
			return err
		}
	}

	res, err := v.client.Bulk(
		&buf,
		v.client.Bulk.WithContext(ctx),
		v.client.Bulk.WithRefresh("true"),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		log.Errorf("[ES] 批量索引出错: %s", res.String())
		return errors.New("failed to bulk index documents")
	}

	var bulkResp struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			Status int `json:"status"`
			Error  struct {
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulkResp); err != nil {
		return fmt.Errorf("failed to decode bulk response: %w", err)
	}
	if bulkResp.Errors {
		for _, item := range bulkResp.Items {
			for _, r := range item {
				if r.Status >= 300 {
					return fmt.Errorf("bulk 写入失败 [%d]: %s", r.Status, r.Error.Reason)
				}
			}
		}
		return errors.New("bulk 写入失败")
	}
	return nil
}

// AppendDocuments 向当前别名指向的索引追加文档。
func (v *VectorIndex) AppendDocuments(ctx context.Context, docs []model.EsDocument) error {
	if err := v.EnsureIndex(ctx); err != nil {
		return err
	}
	return v.IndexDocuments(ctx, v.alias, docs)
}

// ReplaceDocuments 新建物理索引写入 docs，再用一次 _aliases 请求切换别名，最后删除旧索引。
// 切换前的任何失败都不会影响别名当前指向的数据。
func (v *VectorIndex) ReplaceDocuments(ctx context.Context, docs []model.EsDocument) error {
	index, err := v.createPhysicalIndex(ctx)
	if err != nil {
		return err
	}
	if err := v.IndexDocuments(ctx, index, docs); err != nil {
		v.deleteIndices(context.WithoutCancel(ctx), []string{index})
		return err
	}

	old, err := v.currentIndices(ctx)
	if err != nil {
		v.deleteIndices(context.WithoutCancel(ctx), []string{index})
		return err
	}
	actions := make([]map[string]any, 0, len(old)+1)
	for _, idx := range old {
		actions = append(actions, map[string]any{"remove": map[string]any{"index": idx, "alias": v.alias}})
	}
	actions = append(actions, map[string]any{"add": map[string]any{"index": index, "alias": v.alias}})
	if err := v.updateAliases(ctx, actions); err != nil {
		v.deleteIndices(context.WithoutCancel(ctx), []string{index})
		return err
	}
	log.Infof("[ES] 别名 '%s' 已切换到索引 '%s', 旧索引: %v", v.alias, index, old)

	v.deleteIndices(context.WithoutCancel(ctx), old)
	return nil
}

func (v *VectorIndex) currentIndices(ctx context.Context) ([]string, error) {
	res, err := v.client.Indices.GetAlias(
		v.client.Indices.GetAlias.WithName(v.alias),
		v.client.Indices.GetAlias.WithContext(ctx),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if res.IsError() {
		return nil, fmt.Errorf("查询别名失败: %s", res.String())
	}
	var aliases map[string]json.RawMessage
	if err := json.NewDecoder(res.Body).Decode(&aliases); err != nil {
		return nil, fmt.Errorf("failed to decode alias response: %w", err)
	}
	indices := make([]string, 0, len(aliases))
	for idx := range aliases {
		indices = append(indices, idx)
	}
	return indices, nil
}

func (v *VectorIndex) updateAliases(ctx context.Context, actions []map[string]any) error {
	body, err := json.Marshal(map[string]any{"actions": actions})
	if err != nil {
		return err
	}
	res, err := v.client.Indices.UpdateAliases(
		bytes.NewReader(body),
		v.client.Indices.UpdateAliases.WithContext(ctx),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		return fmt.Errorf("切换别名失败 [%d]: %s", res.StatusCode, string(msg))
	}
	return nil
}

// deleteIndices 尽力删除，失败只记录日志。
func (v *VectorIndex) deleteIndices(ctx context.Context, indices []string) {
	if len(indices) == 0 {
		return
	}
	res, err := v.client.Indices.Delete(indices, v.client.Indices.Delete.WithContext(ctx))
	if err != nil {
		log.Warnf("[ES] 删除索引 %v 失败: %v", indices, err)
		return
	}
	defer res.Body.Close()
	if res.IsError() {
		log.Warnf("[ES] 删除索引 %v 时 Elasticsearch 返回错误: %s", indices, res.String())
	}
}

// Ping 检查集群是否可达。
func (v *VectorIndex) Ping(ctx context.Context) error {
	res, err := v.client.Ping(v.client.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch ping 返回 %s", res.Status())
	}
	return nil
}

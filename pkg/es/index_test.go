package es

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careerforge-go/internal/config"
	"careerforge-go/internal/model"
)

// fakeCluster 记录收到的请求，并按配置模拟别名和 bulk 的结果。
type fakeCluster struct {
	mu          sync.Mutex
	calls       []string
	aliasTarget string // 空表示别名不存在
	bulkErrors  bool
	aliasBodies []string
	bulkBody    string
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, r.Method+" "+r.URL.Path)

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/_alias/resume_chunks":
		if f.aliasTarget == "" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"alias [resume_chunks] missing","status":404}`))
			return
		}
		_, _ = w.Write([]byte(`{"` + f.aliasTarget + `":{"aliases":{"resume_chunks":{}}}}`))
	case r.URL.Path == "/_bulk":
		f.bulkBody = string(body)
		if f.bulkErrors {
			_, _ = w.Write([]byte(`{"errors":true,"items":[{"index":{"status":400,"error":{"reason":"mapper_parsing_exception"}}}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"errors":false,"items":[{"index":{"status":201}}]}`))
	case r.URL.Path == "/_aliases":
		f.aliasBodies = append(f.aliasBodies, string(body))
		_, _ = w.Write([]byte(`{"acknowledged":true}`))
	default:
		_, _ = w.Write([]byte(`{"acknowledged":true}`))
	}
}

func (f *fakeCluster) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func newTestIndex(t *testing.T, cluster *fakeCluster) *VectorIndex {
	t.Helper()
	srv := httptest.NewServer(cluster)
	t.Cleanup(srv.Close)
	client, err := NewClient(config.ElasticsearchConfig{Addresses: srv.URL})
	require.NoError(t, err)
	return NewVectorIndex(client, "resume_chunks", 3)
}

// createdIndex 返回请求序列中 PUT 创建的物理索引名。
func createdIndex(t *testing.T, calls []string) string {
	t.Helper()
	for _, c := range calls {
		if strings.HasPrefix(c, "PUT /resume_chunks_") {
			return strings.TrimPrefix(c, "PUT /")
		}
	}
	t.Fatalf("no index created in %v", calls)
	return ""
}

type aliasActions struct {
	Actions []map[string]struct {
		Index string `json:"index"`
		Alias string `json:"alias"`
	} `json:"actions"`
}

var sampleDocs = []model.EsDocument{
	{ChunkID: "c0", ChunkIndex: 0, Content: "Go and Kafka", Vector: []float32{1, 0, 0}, ModelVersion: "m"},
	{ChunkID: "c1", ChunkIndex: 1, Content: "Redis", Vector: []float32{0, 1, 0}, ModelVersion: "m"},
}

func TestReplaceDocumentsSwapsAlias(t *testing.T) {
	cluster := &fakeCluster{aliasTarget: "resume_chunks_old"}
	idx := newTestIndex(t, cluster)

	require.NoError(t, idx.ReplaceDocuments(context.Background(), sampleDocs))

	calls := cluster.snapshot()
	newIndex := createdIndex(t, calls)
	assert.Equal(t, []string{
		"PUT /" + newIndex,
		"POST /_bulk",
		"GET /_alias/resume_chunks",
		"POST /_aliases",
		"DELETE /resume_chunks_old",
	}, calls)

	assert.Contains(t, cluster.bulkBody, `"_index":"`+newIndex+`"`)
	assert.Contains(t, cluster.bulkBody, `"_id":"c1"`)

	require.Len(t, cluster.aliasBodies, 1)
	var body aliasActions
	require.NoError(t, json.Unmarshal([]byte(cluster.aliasBodies[0]), &body))
	require.Len(t, body.Actions, 2)
	assert.Equal(t, "resume_chunks_old", body.Actions[0]["remove"].Index)
	assert.Equal(t, newIndex, body.Actions[1]["add"].Index)
	assert.Equal(t, "resume_chunks", body.Actions[1]["add"].Alias)
}

func TestReplaceDocumentsWithoutExistingAlias(t *testing.T) {
	cluster := &fakeCluster{}
	idx := newTestIndex(t, cluster)

	require.NoError(t, idx.ReplaceDocuments(context.Background(), sampleDocs))

	calls := cluster.snapshot()
	for _, c := range calls {
		assert.False(t, strings.HasPrefix(c, "DELETE "), c)
	}
	require.Len(t, cluster.aliasBodies, 1)
	var body aliasActions
	require.NoError(t, json.Unmarshal([]byte(cluster.aliasBodies[0]), &body))
	require.Len(t, body.Actions, 1)
	assert.Equal(t, createdIndex(t, calls), body.Actions[0]["add"].Index)
}

func TestReplaceDocumentsBulkFailureKeepsAlias(t *testing.T) {
	cluster := &fakeCluster{aliasTarget: "resume_chunks_old", bulkErrors: true}
	idx := newTestIndex(t, cluster)

	err := idx.ReplaceDocuments(context.Background(), sampleDocs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mapper_parsing_exception")

	calls := cluster.snapshot()
	newIndex := createdIndex(t, calls)
	assert.Empty(t, cluster.aliasBodies)
	assert.Contains(t, calls, "DELETE /"+newIndex)
	assert.NotContains(t, calls, "DELETE /resume_chunks_old")
}

func TestEnsureIndex(t *testing.T) {
	cluster := &fakeCluster{}
	idx := newTestIndex(t, cluster)

	require.NoError(t, idx.EnsureIndex(context.Background()))
	calls := cluster.snapshot()
	require.Len(t, calls, 3)
	assert.Equal(t, "HEAD /_alias/resume_chunks", calls[0])
	assert.Equal(t, "POST /_aliases", calls[2])
	require.Len(t, cluster.aliasBodies, 1)
	assert.Contains(t, cluster.aliasBodies[0], `"add"`)

	existing := &fakeCluster{aliasTarget: "resume_chunks_old"}
	idx = newTestIndex(t, existing)
	require.NoError(t, idx.EnsureIndex(context.Background()))
	assert.Equal(t, []string{"HEAD /_alias/resume_chunks"}, existing.snapshot())
}

package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careerforge-go/internal/apperror"
	"careerforge-go/internal/model"
	"careerforge-go/internal/pipeline"
	"careerforge-go/internal/vectorstore"
	"careerforge-go/pkg/extract"
	"careerforge-go/pkg/llm"
)

// stubLLM 返回预设输出并记录收到的消息。
type stubLLM struct {
	mu       sync.Mutex
	output   string
	err      error
	received [][]llm.Message
}

func (s *stubLLM) CompleteJSON(_ context.Context, messages []llm.Message, _ *llm.GenerationParams) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received = append(s.received, messages)
	return s.output, s.err
}

func (s *stubLLM) StreamJSON(ctx context.Context, messages []llm.Message, gen *llm.GenerationParams, w llm.MessageWriter) (string, error) {
	out, err := s.CompleteJSON(ctx, messages, gen)
	if err != nil {
		return "", err
	}
	half := len(out) / 2
	for _, part := range []string{out[:half], out[half:]} {
		if err := w.WriteMessage(websocket.TextMessage, []byte(part)); err != nil {
			return "", err
		}
	}
	return out, nil
}

func (s *stubLLM) ModelName() string { return "stub" }

func (s *stubLLM) lastPrompt(t *testing.T) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.received)
	msgs := s.received[len(s.received)-1]
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].Role)
	return msgs[0].Content
}

type stubRetriever struct {
	docs  []model.Document
	err   error
	k     int
	query string
}

func (r *stubRetriever) SimilaritySearch(_ context.Context, query string, k int) ([]model.Document, error) {
	r.query, r.k = query, k
	return r.docs, r.err
}

type recordingWriter struct {
	messages []string
}

func (w *recordingWriter) WriteMessage(_ int, data []byte) error {
	w.messages = append(w.messages, string(data))
	return nil
}

const stackMismatchOutput = `{
  "match_score":             35,
  "technical_gaps":          ["React", "Node.js", "TypeScript"],
  "professional_assessment": "Strong Python backend background but no frontend or Node.js evidence.",
  "strategic_project_idea":  "Build a full-stack React and Node.js dashboard over an existing FastAPI service.",
  "key_strength":            "Designed FastAPI microservices"
}`

func TestAnalyzeStackMismatch(t *testing.T) {
	retriever := &stubRetriever{docs: []model.Document{
		{Content: "Senior Python engineer, built FastAPI microservices"},
		{Content: "PostgreSQL and Celery in production"},
	}}
	llmClient := &stubLLM{output: stackMismatchOutput}
	svc := NewAnalysisService(retriever, llmClient, 6)

	jd := "Frontend engineer: React, Node.js, TypeScript"
	res, err := svc.Analyze(context.Background(), jd)
	require.NoError(t, err)

	assert.Equal(t, 6, retriever.k)
	assert.Equal(t, jd, retriever.query)
	assert.Less(t, res.MatchScore, 50)
	assert.Contains(t, res.TechnicalGaps, "React")

	prompt := llmClient.lastPrompt(t)
	assert.Contains(t, prompt, "Senior Python engineer, built FastAPI microservices\nPostgreSQL and Celery in production")
	assert.Contains(t, prompt, jd)
	assert.Contains(t, prompt, "match_score")
}

func TestAnalyzeEmptyContextStillCallsModel(t *testing.T) {
	llmClient := &stubLLM{output: stackMismatchOutput}
	svc := NewAnalysisService(&stubRetriever{}, llmClient, 6)

	_, err := svc.Analyze(context.Background(), "Go developer")
	require.NoError(t, err)
	assert.Contains(t, llmClient.lastPrompt(t), "RESUME CONTEXT:\n\n")
}

func TestAnalyzeRejectsBlankJobDescription(t *testing.T) {
	llmClient := &stubLLM{output: stackMismatchOutput}
	svc := NewAnalysisService(&stubRetriever{}, llmClient, 6)

	_, err := svc.Analyze(context.Background(), "   ")
	assert.Equal(t, apperror.KindInvalidInput, apperror.KindOf(err))
	assert.Empty(t, llmClient.received)
}

func TestAnalyzeMalformedOutput(t *testing.T) {
	svc := NewAnalysisService(&stubRetriever{}, &stubLLM{output: `{"match_score": "high"}`}, 6)
	_, err := svc.Analyze(context.Background(), "Go developer")
	assert.Equal(t, apperror.KindMalformedOutput, apperror.KindOf(err))
}

func TestAnalyzePropagatesErrors(t *testing.T) {
	down := apperror.New(apperror.KindUnavailable, "llm", errors.New("503"))
	svc := NewAnalysisService(&stubRetriever{}, &stubLLM{err: down}, 6)
	_, err := svc.Analyze(context.Background(), "Go developer")
	assert.Equal(t, apperror.KindUnavailable, apperror.KindOf(err))

	storeDown := apperror.New(apperror.KindUnavailable, "vectorstore", errors.New("refused"))
	svc = NewAnalysisService(&stubRetriever{err: storeDown}, &stubLLM{output: stackMismatchOutput}, 6)
	_, err = svc.Analyze(context.Background(), "Go developer")
	assert.Equal(t, apperror.KindUnavailable, apperror.KindOf(err))
}

func TestStreamAnalyzeWrapsChunks(t *testing.T) {
	svc := NewAnalysisService(&stubRetriever{}, &stubLLM{output: stackMismatchOutput}, 6)
	w := &recordingWriter{}

	res, err := svc.StreamAnalyze(context.Background(), "React developer", w, nil)
	require.NoError(t, err)
	assert.Equal(t, 35, res.MatchScore)
	require.Len(t, w.messages, 2)
	for _, m := range w.messages {
		assert.True(t, strings.HasPrefix(m, `{"chunk":`), m)
	}
}

func TestStreamAnalyzeStopSuppressesChunks(t *testing.T) {
	svc := NewAnalysisService(&stubRetriever{}, &stubLLM{output: stackMismatchOutput}, 6)
	w := &recordingWriter{}

	_, err := svc.StreamAnalyze(context.Background(), "React developer", w, func() bool { return true })
	require.NoError(t, err)
	assert.Empty(t, w.messages)
}

func TestGenerateRoadmap(t *testing.T) {
	output := `{"phases": [
	  {"title": "Setup and MVP", "task": "Scaffold a WebSockets chat server with a single room"},
	  {"title": "Core Logic", "task": "Fan out messages across instances through Redis pub/sub"},
	  {"title": "Optimization", "task": "Cache presence in Redis and load test the WebSockets gateway"}
	]}`
	llmClient := &stubLLM{output: output}
	svc := NewRoadmapService(llmClient)

	roadmap, err := svc.GenerateRoadmap(context.Background(), "Build a real-time chat app", []string{"WebSockets", "Redis"})
	require.NoError(t, err)
	require.Len(t, roadmap.Phases, 3)

	joined := ""
	for _, p := range roadmap.Phases {
		assert.NotEmpty(t, p.Title)
		joined += p.Task
	}
	assert.Contains(t, joined, "WebSockets")
	assert.Contains(t, joined, "Redis")

	prompt := llmClient.lastPrompt(t)
	assert.Contains(t, prompt, "Build a real-time chat app")
	assert.Contains(t, prompt, "WebSockets, Redis")
}

func TestGenerateRoadmapValidation(t *testing.T) {
	svc := NewRoadmapService(&stubLLM{output: `{"phases": []}`})

	_, err := svc.GenerateRoadmap(context.Background(), "", nil)
	assert.Equal(t, apperror.KindInvalidInput, apperror.KindOf(err))

	_, err = svc.GenerateRoadmap(context.Background(), "Build a CLI", nil)
	assert.Equal(t, apperror.KindMalformedOutput, apperror.KindOf(err))
}

// lengthEmbedder 用于端到端测试，向量只取决于若干关键词。
type lengthEmbedder struct{}

func (lengthEmbedder) CreateEmbedding(_ context.Context, text string) ([]float32, error) {
	lower := strings.ToLower(text)
	return []float32{
		float32(strings.Count(lower, "python")),
		float32(strings.Count(lower, "react")),
		0.1,
	}, nil
}

func (lengthEmbedder) ModelName() string { return "keywords" }

type plainExtractor struct{}

func (plainExtractor) Extract(_ context.Context, _ string, data []byte) (string, error) {
	return string(data), nil
}

type fakeRepo struct {
	created  []*model.ResumeUpload
	done     map[uint]int
	failed   map[uint]string
	latest   *model.ResumeUpload
	findErr  error
	createOK bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{done: map[uint]int{}, failed: map[uint]string{}, createOK: true}
}

func (r *fakeRepo) Create(_ context.Context, record *model.ResumeUpload) error {
	if !r.createOK {
		return errors.New("db down")
	}
	record.ID = uint(len(r.created) + 1)
	r.created = append(r.created, record)
	return nil
}

func (r *fakeRepo) MarkDone(_ context.Context, id uint, chunkCount int, ingestedAt time.Time) error {
	r.done[id] = chunkCount
	rec := *r.created[id-1]
	rec.ChunkCount = chunkCount
	rec.Status = model.UploadStatusDone
	rec.IngestedAt = &ingestedAt
	r.latest = &rec
	return nil
}

func (r *fakeRepo) MarkFailed(_ context.Context, id uint, reason string) error {
	r.failed[id] = reason
	return nil
}

func (r *fakeRepo) FindLatestDone(context.Context) (*model.ResumeUpload, error) {
	return r.latest, r.findErr
}

type fakeStorage struct {
	objects map[string][]byte
	putErr  error
}

func (s *fakeStorage) Put(_ context.Context, objectName string, data []byte, _ string) error {
	if s.putErr != nil {
		return s.putErr
	}
	s.objects[objectName] = data
	return nil
}

func (s *fakeStorage) PresignedURL(_ context.Context, objectName string, _ time.Duration) (string, error) {
	return "https://minio.local/" + objectName + "?sig=x", nil
}

type fakePublisher struct {
	events []model.IngestionEvent
}

func (p *fakePublisher) PublishIngestion(_ context.Context, event model.IngestionEvent) error {
	p.events = append(p.events, event)
	return nil
}

func newResumeFixture(t *testing.T) (ResumeService, *vectorstore.Store, *fakeRepo, *fakeStorage, *fakePublisher) {
	t.Helper()
	splitter, err := pipeline.NewSplitter(40, 10)
	require.NoError(t, err)
	store := vectorstore.New(lengthEmbedder{}, vectorstore.NewMemoryBackend(), vectorstore.Options{MatchThreshold: vectorstore.NoThreshold})
	processor := pipeline.NewProcessor(plainExtractor{}, splitter, store)

	repo := newFakeRepo()
	st := &fakeStorage{objects: map[string][]byte{}}
	pub := &fakePublisher{}
	svc := NewResumeService(processor, ResumeOptions{
		Repo:         repo,
		Storage:      st,
		Publisher:    pub,
		ChunkSize:    40,
		ChunkOverlap: 10,
		ModelVersion: "keywords",
	})
	return svc, store, repo, st, pub
}

func TestUploadIngestsAndRecords(t *testing.T) {
	svc, store, repo, st, pub := newResumeFixture(t)
	ctx := context.Background()

	data := []byte("Python developer with Django experience. Also some React on the side for dashboards.")
	res, err := svc.Upload(ctx, "cv.txt", data)
	require.NoError(t, err)

	assert.Equal(t, "Successfully processed 3 chunks from cv.txt", res.Message)
	assert.Equal(t, 3, res.ChunkCount)
	assert.Len(t, res.FileMD5, 32)

	docs, err := store.SimilaritySearch(ctx, "react", 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Contains(t, strings.ToLower(docs[0].Content), "react")

	require.Len(t, repo.created, 1)
	assert.Equal(t, 3, repo.done[1])
	assert.Contains(t, st.objects, "resumes/"+res.FileMD5+"/cv.txt")
	require.Len(t, pub.events, 1)
	assert.Equal(t, "keywords", pub.events[0].ModelVersion)

	view, err := svc.Current(ctx)
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, "cv.txt", view.FileName)
	assert.Equal(t, 3, view.ChunkCount)
	assert.Contains(t, view.DownloadURL, "resumes/"+res.FileMD5)
}

func TestUploadFailureMarksRecord(t *testing.T) {
	svc, _, repo, _, pub := newResumeFixture(t)

	_, err := svc.Upload(context.Background(), "cv.txt", []byte("   \n  "))
	assert.Equal(t, apperror.KindInvalidInput, apperror.KindOf(err))
	assert.Contains(t, repo.failed, uint(1))
	assert.Empty(t, pub.events)

	view, err := svc.Current(context.Background())
	require.NoError(t, err)
	assert.Nil(t, view)
}

func TestUploadToleratesOptionalFailures(t *testing.T) {
	svc, _, repo, st, _ := newResumeFixture(t)
	repo.createOK = false
	st.putErr = errors.New("bucket missing")

	res, err := svc.Upload(context.Background(), "cv.txt", []byte("Python developer"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.ChunkCount)
	assert.Empty(t, repo.done)
}

func TestUploadWithoutOptionalDependencies(t *testing.T) {
	splitter, err := pipeline.NewSplitter(1000, 200)
	require.NoError(t, err)
	store := vectorstore.New(lengthEmbedder{}, vectorstore.NewMemoryBackend(), vectorstore.Options{})
	svc := NewResumeService(pipeline.NewProcessor(plainExtractor{}, splitter, store), ResumeOptions{})

	res, err := svc.Upload(context.Background(), "notes.md", []byte("# CV\nReact"))
	require.NoError(t, err)
	assert.Equal(t, "Successfully processed 1 chunks from notes.md", res.Message)

	view, err := svc.Current(context.Background())
	require.NoError(t, err)
	assert.Nil(t, view)

	_, err = svc.Upload(context.Background(), " ", []byte("x"))
	assert.Equal(t, apperror.KindInvalidInput, apperror.KindOf(err))
}

func TestUploadRejectsUnsupportedBeforeStoring(t *testing.T) {
	splitter, err := pipeline.NewSplitter(1000, 200)
	require.NoError(t, err)
	store := vectorstore.New(lengthEmbedder{}, vectorstore.NewMemoryBackend(), vectorstore.Options{})
	repo := newFakeRepo()
	st := &fakeStorage{objects: map[string][]byte{}}
	svc := NewResumeService(pipeline.NewProcessor(plainExtractor{}, splitter, store), ResumeOptions{
		Repo:    repo,
		Storage: st,
		Accept:  extract.Supported,
	})

	_, err = svc.Upload(context.Background(), "cv.xlsx", []byte("Python developer"))
	assert.Equal(t, apperror.KindInvalidInput, apperror.KindOf(err))
	assert.Empty(t, st.objects)
	assert.Empty(t, repo.created)

	res, err := svc.Upload(context.Background(), "cv.TXT", []byte("Python developer"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.ChunkCount)
}

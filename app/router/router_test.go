package router

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aihub/docsearch/app/controllers"
	"github.com/aihub/docsearch/internal/knowledge"
	"github.com/aihub/docsearch/internal/middleware"
	"github.com/aihub/docsearch/internal/services"
	"github.com/beego/beego/v2/server/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type letterEmbedder struct{}

func (letterEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	lower := strings.ToLower(text)
	return []float32{
		float32(strings.Count(lower, "vector")),
		float32(strings.Count(lower, "kafka")),
	}, nil
}

func (letterEmbedder) Dimensions() int { return 2 }

func (letterEmbedder) Ready() bool { return true }

type echoGenerator struct{}

func (echoGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return prompt + " Cosine ranking.", nil
}

func (echoGenerator) Ready() bool { return true }

type fixedExtractor struct{}

func (fixedExtractor) ExtractText(data []byte) (string, error) {
	return "Vector search ranks chunks. Kafka carries events.", nil
}

func newHandler(t *testing.T) (*web.ControllerRegister, *knowledge.MemoryStore) {
	t.Helper()

	store := knowledge.NewMemoryStore(true)
	embedder := knowledge.NewBatchEmbedder(knowledge.StaticEmbedder(letterEmbedder{}), 4, knowledge.FailurePolicyFail, nil)
	svc := services.NewDocumentService(
		knowledge.NewIngestor(store, knowledge.NewChunker(500, 50), embedder, 2, nil),
		knowledge.NewRetriever(store, embedder, nil),
		knowledge.NewSynthesizer(knowledge.StaticGenerator(echoGenerator{}), 0, nil),
		fixedExtractor{},
		store,
		services.DocumentServiceOptions{},
	)

	manager := middleware.NewMiddlewareManager()
	manager.Register("store", func(ctx context.Context) error { return nil }, true)

	h := web.NewControllerRegister()
	err := Register(h, Controllers{
		Document: controllers.NewDocumentController(svc, 1<<20),
		Search:   controllers.NewSearchController(svc),
		Health:   controllers.NewHealthController(manager),
	}, Options{AllowedOrigins: []string{"http://localhost:5173"}})
	require.NoError(t, err)
	return h, store
}

func serve(h http.Handler, req *http.Request) (*httptest.ResponseRecorder, map[string]interface{}) {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var body map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func uploadRequest(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestUploadAndSearch(t *testing.T) {
	h, _ := newHandler(t)

	w, body := serve(h, uploadRequest(t, "guide.pdf", []byte("%PDF-1.4 test")))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "guide.pdf", body["filename"])
	assert.Equal(t, true, body["processed"])
	assert.NotEmpty(t, body["id"])

	w, body = serve(h, jsonRequest(http.MethodPost, "/search", `{"query":"vector","limit":5}`))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "vector", body["tier"])
	assert.Equal(t, float64(1), body["totalResults"])

	w, body = serve(h, httptest.NewRequest(http.MethodGet, "/documents", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["documents"], 1)
}

func TestUploadRejectsNonPDF(t *testing.T) {
	h, store := newHandler(t)

	w, body := serve(h, uploadRequest(t, "notes.txt", []byte("plain text")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_FILE_FORMAT", body["code"])

	docs, err := store.ListDocuments(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestUploadMissingFile(t *testing.T) {
	h, _ := newHandler(t)

	w, body := serve(h, jsonRequest(http.MethodPost, "/upload", `{}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ARGUMENT", body["code"])
}

func TestSearchValidation(t *testing.T) {
	h, _ := newHandler(t)

	w, body := serve(h, jsonRequest(http.MethodPost, "/search", `{"query":""}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_FAILED", body["code"])

	w, body = serve(h, jsonRequest(http.MethodPost, "/search", `{"query":"   "}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_QUERY", body["code"])

	w, _ = serve(h, jsonRequest(http.MethodPost, "/search", `not json`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerate(t *testing.T) {
	h, _ := newHandler(t)

	w, body := serve(h, jsonRequest(http.MethodPost, "/generate", `{"query":"how are chunks ranked?","context":["Vector search ranks chunks."]}`))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Cosine ranking.", body["answer"])
	assert.Equal(t, []interface{}{"Vector search ranks chunks."}, body["sources"])

	w, _ = serve(h, jsonRequest(http.MethodPost, "/generate", `{"query":"q","context":[]}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthAndCORS(t *testing.T) {
	h, _ := newHandler(t)

	w, body := serve(h, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, middleware.StatusHealthy, body["status"])
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	req := httptest.NewRequest(http.MethodOptions, "/search", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w, _ = serve(h, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/sourcedesk/internal/config"
	"github.com/timmy/sourcedesk/internal/diaflow"
	"github.com/timmy/sourcedesk/internal/domain"
	"github.com/timmy/sourcedesk/internal/jobs"
	"github.com/timmy/sourcedesk/internal/repository"
	"github.com/timmy/sourcedesk/internal/service"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// engineStub answers submissions and status checks with fixed responses.
type engineStub struct {
	mu           sync.Mutex
	submitStatus int
	submitBody   string
	checkStatus  int
	checkBody    string
}

func (e *engineStub) setSubmit(status int, body string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.submitStatus, e.submitBody = status, body
}

func (e *engineStub) setCheck(status int, body string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.checkStatus, e.checkBody = status, body
}

func (e *engineStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if r.Method == http.MethodPost {
		w.WriteHeader(e.submitStatus)
		w.Write([]byte(e.submitBody))
		return
	}
	w.WriteHeader(e.checkStatus)
	w.Write([]byte(e.checkBody))
}

type testServer struct {
	router   http.Handler
	engine   *engineStub
	sources  *repository.SourceRepository
	contents *repository.ContentRepository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	engine := &engineStub{
		submitStatus: http.StatusOK,
		submitBody:   `{"sessionId":"sess-1"}`,
		checkStatus:  http.StatusOK,
		checkBody:    `{"status":"Processing"}`,
	}
	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)

	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	client := diaflow.NewClient(&diaflow.Config{
		BaseURL: srv.URL,
		APIKey:  "k",
		Builders: map[domain.JobKind]string{
			domain.JobKindSourceTranscribe: "t",
			domain.JobKindTextGenerate:     "x",
			domain.JobKindImageGenerate:    "i",
		},
	})
	reconciler := jobs.NewReconciler(client, nil)

	sources := repository.NewSourceRepository(db)
	contents := repository.NewContentRepository(db)
	sourceSvc := service.NewSourceService(sources, client, reconciler, nil, service.SourceServiceDeps{})
	contentSvc := service.NewContentService(contents, sources, client, reconciler, service.ContentServiceConfig{})

	router := SetupRouter(&Services{
		Sources:  sourceSvc,
		Contents: contentSvc,
		Stats:    service.NewStatsService(sources, contents, nil, nil, reconciler),
		Passes: map[string]*service.ReconcilePass{
			"sources": service.NewReconcilePass(sourceSvc.Tracker(), sources, 2),
		},
		DB: sqlDB,
	}, &config.ServerConfig{
		Mode:           "test",
		MaxUploadBytes: 1 << 20,
		CORS:           config.CORSConfig{AllowedOrigins: []string{"https://app.example.com"}},
	}, nil)

	return &testServer{router: router, engine: engine, sources: sources, contents: contents}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRequestIDIsPropagated(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
}

func TestAddSource_Created(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodPost, "/api/v1/sources", map[string]any{
		"link":         "https://example.com/video",
		"type_of_link": "video",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, "processing", body["processing_status"])
	assert.Equal(t, "sess-1", body["diaflow_session_id"])
}

func TestAddSource_BadRequest(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/sources", map[string]any{"link": "https://example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/sources", map[string]any{"link": "not a url", "type_of_link": "web"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAddSource_SubmissionFailedReturnsFailedEntity(t *testing.T) {
	s := newTestServer(t)
	s.engine.setSubmit(http.StatusInternalServerError, `{"error":"boom"}`)

	w := s.do(t, http.MethodPost, "/api/v1/sources", map[string]any{
		"link":         "https://example.com/audio.mp3",
		"type_of_link": "audio",
	})
	require.Equal(t, http.StatusBadGateway, w.Code)

	body := decode(t, w)
	assert.Equal(t, "submission_failed", body["code"])
	entity, ok := body["entity"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "failed", entity["processing_status"])
	assert.Nil(t, entity["diaflow_session_id"])
}

func TestGetSource_NotFound(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/api/v1/sources/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCheckStatus_EngineErrorLeavesSourceUnchanged(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodPost, "/api/v1/sources", map[string]any{
		"link":         "https://example.com/video",
		"type_of_link": "video",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode(t, w)["id"].(string)

	s.engine.setCheck(http.StatusBadGateway, "upstream down")

	w = s.do(t, http.MethodPost, "/api/v1/sources/"+id+"/check", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "status_check_failed", decode(t, w)["code"])

	status, err := s.sources.GetStatus(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.ProcessingStatusProcessing, status)
}

func TestCheckStatus_Completes(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodPost, "/api/v1/sources", map[string]any{
		"link":         "https://example.com/video",
		"type_of_link": "video",
	})
	id := decode(t, w)["id"].(string)

	s.engine.setCheck(http.StatusOK, `{"status":"completed","result":{"output-2":{"1770497833871":"hello","1770497841406":"greeting"}}}`)
	w = s.do(t, http.MethodPost, "/api/v1/sources/"+id+"/check", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "completed", body["processing_status"])
	assert.Equal(t, "hello", body["transcript"])
	assert.Equal(t, "greeting", body["summary"])
}

func TestGenerateImage_NotConfigured(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodPost, "/api/v1/contents/image", map[string]any{"format": "banner"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "configuration_error", decode(t, w)["code"])
}

func TestGenerateText_UnknownFormat(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodPost, "/api/v1/contents/text", map[string]any{"format": "haiku"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMoveCompliance_RequiresCompletedContent(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodPost, "/api/v1/contents/text", map[string]any{"format": "summary", "prompt": "short"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decode(t, w)["id"].(string)

	w = s.do(t, http.MethodPatch, "/api/v1/contents/"+id+"/compliance", map[string]any{"status": "in_review"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestListContents_FiltersByType(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodPost, "/api/v1/contents/text", map[string]any{"format": "summary"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/contents?type=image", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["contents"])

	w = s.do(t, http.MethodGet, "/api/v1/contents?type=text", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["contents"], 1)
}

func TestChat_NotConfigured(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodPost, "/api/v1/chat", map[string]any{"question": "hi"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestUploadSource_StorageDisabled(t *testing.T) {
	s := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "talk.mp3")
	require.NoError(t, err)
	part.Write([]byte("ID3"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sources/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestDeleteSource(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodPost, "/api/v1/sources", map[string]any{
		"link":         "https://example.com/doc.pdf",
		"type_of_link": "document",
	})
	id := decode(t, w)["id"].(string)

	w = s.do(t, http.MethodDelete, "/api/v1/sources/"+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodDelete, "/api/v1/sources/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStats(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/api/v1/sources", map[string]any{
		"link":         "https://example.com/video",
		"type_of_link": "video",
	})

	w := s.do(t, http.MethodGet, "/api/v1/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(1), body["sources"].(map[string]any)["processing"])
}

func TestAdminReconcile(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/api/v1/sources", map[string]any{
		"link":         "https://example.com/video",
		"type_of_link": "video",
	})
	s.engine.setCheck(http.StatusOK, `{"status":"Error"}`)

	w := s.do(t, http.MethodPost, "/api/v1/admin/reconcile", map[string]any{"kind": "sources"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/v1/admin/reconcile", map[string]any{"kind": "unknown"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/admin/reconcile", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "success", decode(t, w)["last_run_status"])
}

func TestCORS(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/sources", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PATCH")

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

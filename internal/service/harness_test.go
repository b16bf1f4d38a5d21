package service

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/timmy/sourcedesk/internal/diaflow"
	"github.com/timmy/sourcedesk/internal/domain"
	"github.com/timmy/sourcedesk/internal/jobs"
	"github.com/timmy/sourcedesk/internal/repository"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const testInterval = 10 * time.Millisecond

// fakeDiaflow is an in-process workflow engine.
type fakeDiaflow struct {
	t   *testing.T
	srv *httptest.Server

	mu           sync.Mutex
	submitStatus int
	submitBody   string
	checks       map[string][]string
	checkStatus  int
	checkCount   map[string]int
	lastPrompt   string
	lastLink     string
}

func newFakeDiaflow(t *testing.T) *fakeDiaflow {
	f := &fakeDiaflow{
		t:            t,
		submitStatus: http.StatusOK,
		submitBody:   `{"sessionId":"sess-1"}`,
		checks:       make(map[string][]string),
		checkStatus:  http.StatusOK,
		checkCount:   make(map[string]int),
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeDiaflow) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case r.Method == http.MethodPost && len(parts) == 2 && parts[1] == "process":
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if p, ok := body["prompt"].(string); ok {
			f.lastPrompt = p
		}
		if l, ok := body["link"].(string); ok {
			f.lastLink = l
		}
		w.WriteHeader(f.submitStatus)
		w.Write([]byte(f.submitBody))
	case r.Method == http.MethodGet && len(parts) == 3 && parts[1] == "process-checks":
		session := parts[2]
		f.checkCount[session]++
		if f.checkStatus != http.StatusOK {
			w.WriteHeader(f.checkStatus)
			return
		}
		script := f.checks[session]
		resp := `{"status":"Processing"}`
		if len(script) > 0 {
			resp = script[0]
			if len(script) > 1 {
				f.checks[session] = script[1:]
			}
		}
		w.Write([]byte(resp))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeDiaflow) script(session string, responses ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks[session] = responses
}

func (f *fakeDiaflow) setSubmit(status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitStatus = status
	f.submitBody = body
}

func (f *fakeDiaflow) failChecks(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkStatus = status
}

func (f *fakeDiaflow) checksFor(session string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checkCount[session]
}

func (f *fakeDiaflow) submittedLink() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastLink
}

func (f *fakeDiaflow) client() *diaflow.Client {
	return diaflow.NewClient(&diaflow.Config{
		BaseURL: f.srv.URL,
		APIKey:  "test-key",
		Builders: map[domain.JobKind]string{
			domain.JobKindSourceTranscribe: "transcribe",
			domain.JobKindTextGenerate:     "text",
			domain.JobKindImageGenerate:    "image",
		},
	})
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

type testEnv struct {
	engine      *fakeDiaflow
	sources     *repository.SourceRepository
	contents    *repository.ContentRepository
	reconciler  *jobs.Reconciler
	sourceSvc   *SourceService
	contentSvc  *ContentService
	sourcePolls *jobs.Scheduler
	contentPoll *jobs.Scheduler
}

type envOptions struct {
	signer    jobs.URLSigner
	index     SourceIndex
	embedder  Embedder
	inspector PageInspector
	prober    ImageProber
}

func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()
	engine := newFakeDiaflow(t)
	db := newTestDB(t)

	client := engine.client()
	reconciler := jobs.NewReconciler(client, opts.signer)

	env := &testEnv{
		engine:     engine,
		sources:    repository.NewSourceRepository(db),
		contents:   repository.NewContentRepository(db),
		reconciler: reconciler,
	}

	env.sourceSvc = NewSourceService(env.sources, client, reconciler, nil, SourceServiceDeps{
		Index:     opts.index,
		Embedder:  opts.embedder,
		Inspector: opts.inspector,
	})
	env.contentSvc = NewContentService(env.contents, env.sources, client, reconciler, ContentServiceConfig{
		ImagesEnabled: opts.signer != nil,
		Prober:        opts.prober,
	})

	env.sourcePolls = jobs.NewScheduler(env.sourceSvc.Tracker(), jobs.SchedulerConfig{Name: "sources", Interval: testInterval})
	env.contentPoll = jobs.NewScheduler(env.contentSvc.Tracker(), jobs.SchedulerConfig{Name: "contents", Interval: testInterval})
	env.sourceSvc.UsePoller(env.sourcePolls)
	env.contentSvc.UsePoller(env.contentPoll)
	t.Cleanup(func() {
		env.sourcePolls.StopAll()
		env.contentPoll.StopAll()
	})
	return env
}

func strPtr(s string) *string { return &s }

func contentFilterAll() repository.ContentFilter { return repository.ContentFilter{} }

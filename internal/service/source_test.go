package service

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/sourcedesk/internal/diaflow"
	"github.com/timmy/sourcedesk/internal/domain"
	"github.com/timmy/sourcedesk/internal/jobs"
	"github.com/timmy/sourcedesk/internal/repository"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text)), 1}, nil
}

type memIndex struct {
	mu      sync.Mutex
	points  map[string]*repository.SourcePayload
	deleted []string
}

func newMemIndex() *memIndex {
	return &memIndex{points: make(map[string]*repository.SourcePayload)}
}

func (m *memIndex) Upsert(ctx context.Context, id string, vector []float32, payload *repository.SourcePayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points[id] = payload
	return nil
}

func (m *memIndex) Search(ctx context.Context, vector []float32, topK int, linkType string) ([]repository.SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []repository.SearchResult
	for id, p := range m.points {
		out = append(out, repository.SearchResult{ID: id, Score: 1, Payload: p})
	}
	return out, nil
}

func (m *memIndex) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.points, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *memIndex) has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.points[id]
	return ok
}

type staticInspector struct{}

func (staticInspector) Inspect(ctx context.Context, link string) (*PageMetadata, error) {
	return &PageMetadata{Title: "Launch notes", Description: "What shipped"}, nil
}

func seedSource(t *testing.T, env *testEnv, status domain.ProcessingStatus, session *string) *domain.Source {
	t.Helper()
	src := &domain.Source{
		ID:               uuid.NewString(),
		Link:             "https://example.com/talk",
		LinkType:         domain.LinkTypeVideo,
		ProcessingStatus: status,
		DiaflowSessionID: session,
	}
	require.NoError(t, env.sources.Create(context.Background(), src))
	return src
}

func TestSourceService_AddSourceCompletesAndIndexes(t *testing.T) {
	index := newMemIndex()
	env := newTestEnv(t, envOptions{index: index, embedder: fakeEmbedder{}})
	env.engine.setSubmit(http.StatusOK, `{"session_id":"abc"}`)
	env.engine.script("abc",
		`{"status":"Running"}`,
		`{"status":"Done","result":{"output":{"1770497790122":"the transcript","1770497802337":"the summary"}}}`,
	)

	src, err := env.sourceSvc.AddSource(context.Background(), &AddSourceRequest{
		Link:     "https://example.com/talk.mp4",
		LinkType: domain.LinkTypeVideo,
		Title:    "Keynote",
	})
	require.NoError(t, err)
	require.NotNil(t, src.DiaflowSessionID)
	assert.Equal(t, "abc", *src.DiaflowSessionID)

	require.Eventually(t, func() bool { return index.has(src.ID) }, 2*time.Second, testInterval)

	got, err := env.sourceSvc.Get(context.Background(), src.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProcessingStatusCompleted, got.ProcessingStatus)
	require.NotNil(t, got.Transcript)
	require.NotNil(t, got.Summary)
	assert.Equal(t, "the transcript", *got.Transcript)
	assert.Equal(t, "the summary", *got.Summary)
	assert.Equal(t, "the summary", got.ContextText())
}

func TestSourceService_AddSourceValidation(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	_, err := env.sourceSvc.AddSource(context.Background(), &AddSourceRequest{Link: "not a url", LinkType: domain.LinkTypeWeb})
	assert.True(t, IsInputError(err))

	_, err = env.sourceSvc.AddSource(context.Background(), &AddSourceRequest{Link: "https://example.com", LinkType: "podcast"})
	assert.True(t, IsInputError(err))
}

func TestSourceService_AddSourceStoresTrimmedLink(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	src, err := env.sourceSvc.AddSource(context.Background(), &AddSourceRequest{
		Link:     "  https://example.com/talk.mp4\n",
		LinkType: domain.LinkTypeVideo,
	})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/talk.mp4", src.Link)
	assert.Equal(t, "https://example.com/talk.mp4", env.engine.submittedLink())
}

func TestSourceService_SubmissionRecordsProcessingStart(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	before := time.Now().Add(-time.Second)

	src, err := env.sourceSvc.AddSource(context.Background(), &AddSourceRequest{
		Link:     "https://example.com/talk.mp4",
		LinkType: domain.LinkTypeVideo,
	})
	require.NoError(t, err)
	require.NotNil(t, src.StartedAt)
	assert.True(t, src.StartedAt.After(before))

	state, err := env.sources.GetJobState(context.Background(), src.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProcessingStatusProcessing, state.Status)
	assert.WithinDuration(t, *src.StartedAt, state.StartedAt, time.Second)
}

func TestSourceService_PollBoundSurvivesResume(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.engine.failChecks(http.StatusNotFound)

	started := time.Now().Add(-time.Hour).UTC()
	src := &domain.Source{
		ID:               uuid.NewString(),
		Link:             "https://example.com/stuck",
		LinkType:         domain.LinkTypeVideo,
		ProcessingStatus: domain.ProcessingStatusProcessing,
		DiaflowSessionID: strPtr("sess-stuck"),
		StartedAt:        &started,
	}
	require.NoError(t, env.sources.Create(context.Background(), src))

	polls := jobs.NewScheduler(env.sourceSvc.Tracker(), jobs.SchedulerConfig{
		Name:     "bounded",
		Interval: testInterval,
		Timeout:  30 * time.Minute,
	})
	t.Cleanup(polls.StopAll)

	// A freshly started poller must still honour the bound from the first submission.
	for i := 0; i < 3; i++ {
		_, err := polls.Resume(context.Background(), env.sources)
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		got, err := env.sources.GetStatus(context.Background(), src.ID)
		return err == nil && got == domain.ProcessingStatusFailed
	}, 2*time.Second, testInterval)

	got, err := env.sourceSvc.Get(context.Background(), src.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.ErrPollTimeout.Error(), got.FailureReason)
	assert.Equal(t, 0, env.engine.checksFor("sess-stuck"))
}

func TestSourceService_WebSourceGetsPageMetadata(t *testing.T) {
	env := newTestEnv(t, envOptions{inspector: staticInspector{}})

	src, err := env.sourceSvc.AddSource(context.Background(), &AddSourceRequest{
		Link:     "https://example.com/blog",
		LinkType: domain.LinkTypeWeb,
	})
	require.NoError(t, err)
	assert.Equal(t, "Launch notes", src.Title)
	assert.Equal(t, "What shipped", src.Description)
}

func TestSourceService_CheckStatusOnTerminalMakesNoNetworkCall(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	src := seedSource(t, env, domain.ProcessingStatusCompleted, strPtr("sess-done"))

	got, err := env.sourceSvc.CheckStatus(context.Background(), src.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProcessingStatusCompleted, got.ProcessingStatus)
	assert.Equal(t, 0, env.engine.checksFor("sess-done"))
}

func TestSourceService_CheckStatusWithoutSessionMakesNoNetworkCall(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	src := seedSource(t, env, domain.ProcessingStatusFailed, nil)

	got, err := env.sourceSvc.CheckStatus(context.Background(), src.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProcessingStatusFailed, got.ProcessingStatus)
}

func TestSourceService_CheckFailureLeavesSourceProcessing(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.engine.failChecks(http.StatusServiceUnavailable)
	src := seedSource(t, env, domain.ProcessingStatusProcessing, strPtr("sess-x"))

	_, err := env.sourceSvc.CheckStatus(context.Background(), src.ID)

	var checkErr *diaflow.StatusCheckFailedError
	require.True(t, errors.As(err, &checkErr))

	got, err := env.sourceSvc.Get(context.Background(), src.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProcessingStatusProcessing, got.ProcessingStatus)
}

func TestSourceService_DoneWithoutMatchCompletesWithNulls(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.engine.script("sess-x", `{"status":"Done","result":{"output-7":{"1":"unmapped"}}}`)
	src := seedSource(t, env, domain.ProcessingStatusProcessing, strPtr("sess-x"))

	got, err := env.sourceSvc.CheckStatus(context.Background(), src.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProcessingStatusCompleted, got.ProcessingStatus)
	assert.Nil(t, got.Transcript)
	assert.Nil(t, got.Summary)
	assert.Equal(t, int64(1), env.reconciler.EmptyExtractions())
	assert.True(t, strings.Contains(string(got.RawLastResponse), "output-7"))
}

func TestSourceService_ResumeStartsOncePerSource(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	seedSource(t, env, domain.ProcessingStatusProcessing, strPtr("sess-a"))
	seedSource(t, env, domain.ProcessingStatusProcessing, nil)
	seedSource(t, env, domain.ProcessingStatusCompleted, strPtr("sess-b"))

	started, err := env.sourceSvc.ResumePolling(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, started)

	started, err = env.sourceSvc.ResumePolling(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, started)
	assert.Equal(t, 1, env.sourcePolls.Len())
}

func TestSourceService_DeleteRemovesIndexPoint(t *testing.T) {
	index := newMemIndex()
	env := newTestEnv(t, envOptions{index: index, embedder: fakeEmbedder{}})
	src := seedSource(t, env, domain.ProcessingStatusCompleted, strPtr("sess-1"))
	require.NoError(t, index.Upsert(context.Background(), src.ID, nil, &repository.SourcePayload{SourceID: src.ID}))

	require.NoError(t, env.sourceSvc.Delete(context.Background(), src.ID))
	assert.False(t, index.has(src.ID))
	assert.ErrorIs(t, env.sourceSvc.Delete(context.Background(), src.ID), domain.ErrNotFound)
}

func TestSourceService_UploadRequiresStorage(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	_, err := env.sourceSvc.UploadSource(context.Background(), "a.pdf", "application/pdf", 10, strings.NewReader("0123456789"))

	var cfgErr *diaflow.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestLinkTypeForUpload(t *testing.T) {
	assert.Equal(t, domain.LinkTypeAudio, linkTypeForUpload("audio/mpeg"))
	assert.Equal(t, domain.LinkTypeVideo, linkTypeForUpload("video/mp4; codecs=avc1"))
	assert.Equal(t, domain.LinkTypeDocument, linkTypeForUpload("application/pdf"))
	assert.Equal(t, domain.LinkTypeDocument, linkTypeForUpload(""))
}

type memStorage struct {
	mu      sync.Mutex
	objects map[string]string
}

func (m *memStorage) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	b, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = string(b)
	return nil
}

func (m *memStorage) GetURL(key string) string { return "https://files.test/" + key }

func (m *memStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memStorage) EnsureBucket(ctx context.Context) error { return nil }

func (m *memStorage) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

func TestSourceService_UploadSubmitsStoredURL(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	store := &memStorage{objects: make(map[string]string)}
	env.sourceSvc.storage = store

	src, err := env.sourceSvc.UploadSource(context.Background(), "call recording.mp3", "audio/mpeg", 5, strings.NewReader("audio"))
	require.NoError(t, err)
	assert.Equal(t, domain.LinkTypeAudio, src.LinkType)
	assert.Equal(t, "https://files.test/sources/"+src.ID+"/call_recording.mp3", src.Link)
	assert.Equal(t, domain.ProcessingStatusProcessing, src.ProcessingStatus)

	require.NoError(t, env.sourceSvc.Delete(context.Background(), src.ID))
	assert.False(t, store.has(src.StorageKey))
}

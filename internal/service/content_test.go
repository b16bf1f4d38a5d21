package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/sourcedesk/internal/diaflow"
	"github.com/timmy/sourcedesk/internal/domain"
)

type staticSigner struct{}

func (staticSigner) SignedURL(path string) (string, error) {
	return "https://cdn.test/" + path + "?Policy=p&Signature=s&Key-Pair-Id=k", nil
}

type fakeProber struct{ w, h int }

func (p fakeProber) Dimensions(ctx context.Context, url string) (int, int, error) {
	return p.w, p.h, nil
}

func TestContentService_TextGenerationEndToEnd(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.engine.script("sess-1",
		`{"status":"Processing"}`,
		`{"status":"Processing"}`,
		`{"status":"Done","result":{"output":{"1770497874518":"Generated text."}}}`,
	)

	item, err := env.contentSvc.GenerateText(context.Background(), &GenerateRequest{
		Format: "summary",
		Prompt: "Summarize the launch",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ProcessingStatusProcessing, item.ProcessingStatus)
	require.NotNil(t, item.DiaflowSessionID)
	assert.Equal(t, "sess-1", *item.DiaflowSessionID)
	assert.True(t, env.contentPoll.Active(item.ID))

	require.Eventually(t, func() bool {
		got, err := env.contents.GetByID(context.Background(), item.ID)
		return err == nil && got.ProcessingStatus == domain.ProcessingStatusCompleted
	}, 2*time.Second, testInterval)
	require.Eventually(t, func() bool { return !env.contentPoll.Active(item.ID) }, time.Second, testInterval)

	time.Sleep(5 * testInterval)
	assert.Equal(t, 3, env.engine.checksFor("sess-1"))

	got, err := env.contents.GetByID(context.Background(), item.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Content)
	assert.Equal(t, "Generated text.", *got.Content)
	assert.Equal(t, domain.ComplianceStatusDraft, got.ComplianceStatus)
	assert.Contains(t, env.engine.lastPrompt, "Summarize the launch")
}

func TestContentService_FailedSubmission(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.engine.setSubmit(http.StatusInternalServerError, "boom")

	item, err := env.contentSvc.GenerateText(context.Background(), &GenerateRequest{Format: "summary", Prompt: "x"})

	var subErr *diaflow.SubmissionFailedError
	require.True(t, errors.As(err, &subErr))
	assert.Equal(t, http.StatusInternalServerError, subErr.StatusCode)

	require.NotNil(t, item)
	assert.Equal(t, domain.ProcessingStatusFailed, item.ProcessingStatus)
	assert.Nil(t, item.DiaflowSessionID)
	assert.NotEmpty(t, item.FailureReason)
	assert.Equal(t, 0, env.contentPoll.Len())

	time.Sleep(5 * testInterval)
	assert.Equal(t, 0, env.engine.checksFor("sess-1"))
}

func TestContentService_UnknownFormat(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	_, err := env.contentSvc.GenerateText(context.Background(), &GenerateRequest{Format: "poem"})
	assert.True(t, IsInputError(err))

	items, err := env.contents.List(context.Background(), contentFilterAll())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestContentService_ImageRequiresSigning(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	_, err := env.contentSvc.GenerateImage(context.Background(), &GenerateRequest{Format: "banner", Prompt: "x"})

	var cfgErr *diaflow.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestContentService_ImageCompletesWithSignedURLAndDimensions(t *testing.T) {
	env := newTestEnv(t, envOptions{signer: staticSigner{}, prober: fakeProber{w: 1024, h: 576}})
	env.engine.script("sess-1",
		`{"status":"completed","result":{"output":{"1770498012245":"gen/1.png"}}}`,
	)

	item, err := env.contentSvc.GenerateImage(context.Background(), &GenerateRequest{Format: "banner", Prompt: "sunrise"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := env.contents.GetByID(context.Background(), item.ID)
		return err == nil && got.ProcessingStatus == domain.ProcessingStatusCompleted && got.Width > 0
	}, 2*time.Second, testInterval)

	got, err := env.contents.GetByID(context.Background(), item.ID)
	require.NoError(t, err)
	require.NotNil(t, got.URL)
	assert.Equal(t, "https://cdn.test/gen/1.png?Policy=p&Signature=s&Key-Pair-Id=k", *got.URL)
	assert.Equal(t, 1024, got.Width)
	assert.Equal(t, 576, got.Height)
}

func TestContentService_EngineFailureMarksFailed(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.engine.script("sess-1", `{"status":"Error"}`)

	item, err := env.contentSvc.GenerateText(context.Background(), &GenerateRequest{Format: "summary"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := env.contents.GetByID(context.Background(), item.ID)
		return err == nil && got.ProcessingStatus == domain.ProcessingStatusFailed
	}, 2*time.Second, testInterval)
}

func TestContentService_MoveCompliance(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()

	item := &domain.GeneratedContent{
		ID:               uuid.NewString(),
		Type:             domain.ContentTypeText,
		Format:           "summary",
		ProcessingStatus: domain.ProcessingStatusCompleted,
		ComplianceStatus: domain.ComplianceStatusDraft,
	}
	require.NoError(t, env.contents.Create(ctx, item))

	moved, err := env.contentSvc.MoveCompliance(ctx, item.ID, domain.ComplianceStatusInReview)
	require.NoError(t, err)
	assert.Equal(t, domain.ComplianceStatusInReview, moved.ComplianceStatus)

	moved, err = env.contentSvc.MoveCompliance(ctx, item.ID, domain.ComplianceStatusApproved)
	require.NoError(t, err)
	assert.Equal(t, domain.ComplianceStatusApproved, moved.ComplianceStatus)

	_, err = env.contentSvc.MoveCompliance(ctx, item.ID, domain.ComplianceStatusRejected)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = env.contentSvc.MoveCompliance(ctx, item.ID, "archived")
	assert.True(t, IsInputError(err))
}

func TestContentService_MoveComplianceRequiresCompleted(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()

	item := &domain.GeneratedContent{
		ID:               uuid.NewString(),
		Type:             domain.ContentTypeText,
		ProcessingStatus: domain.ProcessingStatusProcessing,
		DiaflowSessionID: strPtr("sess-9"),
	}
	require.NoError(t, env.contents.Create(ctx, item))

	_, err := env.contentSvc.MoveCompliance(ctx, item.ID, domain.ComplianceStatusInReview)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestContentService_DeleteStopsPolling(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()

	item, err := env.contentSvc.GenerateText(ctx, &GenerateRequest{Format: "summary"})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return env.engine.checksFor("sess-1") > 0 }, time.Second, testInterval)

	require.NoError(t, env.contentSvc.Delete(ctx, item.ID))
	assert.False(t, env.contentPoll.Active(item.ID))

	// Let an in-flight check settle before sampling.
	time.Sleep(2 * testInterval)
	checks := env.engine.checksFor("sess-1")
	time.Sleep(5 * testInterval)
	assert.Equal(t, checks, env.engine.checksFor("sess-1"))

	_, err = env.contentSvc.Get(ctx, item.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

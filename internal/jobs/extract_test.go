package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/sourcedesk/internal/domain"
)

func TestExtract_SecondCandidateWhenFirstAbsent(t *testing.T) {
	// A video source whose flow took the audio/web branch.
	result := map[string]any{
		"output": map[string]any{
			"1770497790122": "full transcript",
			"1770497802337": "short summary",
		},
	}

	got := Extract(result, domain.JobKindSourceTranscribe)

	require.NotNil(t, got.Transcript)
	require.NotNil(t, got.Summary)
	assert.Equal(t, "full transcript", *got.Transcript)
	assert.Equal(t, "short summary", *got.Summary)
}

func TestExtract_FirstCandidateWins(t *testing.T) {
	result := map[string]any{
		"output-1": map[string]any{"1770497731904": "video transcript"},
		"output":   map[string]any{"1770497790122": "audio transcript"},
	}

	got := Extract(result, domain.JobKindSourceTranscribe)

	require.NotNil(t, got.Transcript)
	assert.Equal(t, "video transcript", *got.Transcript)
	assert.Nil(t, got.Summary)
}

func TestExtract_EmptyStringIsAbsent(t *testing.T) {
	result := map[string]any{
		"output": map[string]any{"1770497874518": ""},
	}

	got := Extract(result, domain.JobKindTextGenerate)

	assert.Nil(t, got.Content)
	assert.True(t, got.Empty())
}

func TestExtract_EmptyPrimaryFallsThrough(t *testing.T) {
	result := map[string]any{
		"output":   map[string]any{"1770497874518": ""},
		"output-1": map[string]any{"1770497899265": "fallback text"},
	}

	got := Extract(result, domain.JobKindTextGenerate)

	require.NotNil(t, got.Content)
	assert.Equal(t, "fallback text", *got.Content)
}

func TestExtract_NonStringValuesAreAbsent(t *testing.T) {
	tests := []struct {
		name  string
		value any
	}{
		{"null", nil},
		{"number", float64(42)},
		{"object", map[string]any{"text": "nested"}},
		{"bool", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := map[string]any{
				"output": map[string]any{"1770497874518": tt.value},
			}
			assert.True(t, Extract(result, domain.JobKindTextGenerate).Empty())
		})
	}
}

func TestExtract_NodeNotAnObject(t *testing.T) {
	result := map[string]any{"output": "Generated text."}
	assert.True(t, Extract(result, domain.JobKindTextGenerate).Empty())
}

func TestExtract_SecondaryFieldOptional(t *testing.T) {
	result := map[string]any{
		"output-2": map[string]any{
			"1770497833871": "document text",
			"1770497841406": "",
		},
	}

	got := Extract(result, domain.JobKindSourceTranscribe)

	require.NotNil(t, got.Transcript)
	assert.Nil(t, got.Summary)
}

func TestExtract_ImagePath(t *testing.T) {
	result := map[string]any{
		"output": map[string]any{"1770498012245": "images/abc.png"},
	}

	got := Extract(result, domain.JobKindImageGenerate)

	require.NotNil(t, got.ImagePath)
	assert.Equal(t, "images/abc.png", *got.ImagePath)
}

func TestCandidates_EveryKindHasPrimaryField(t *testing.T) {
	for _, kind := range []domain.JobKind{
		domain.JobKindSourceTranscribe,
		domain.JobKindTextGenerate,
		domain.JobKindImageGenerate,
	} {
		nodes := Candidates(kind)
		require.NotEmpty(t, nodes, kind)
		for _, n := range nodes {
			assert.NotEmpty(t, n.Fields, "%s/%s", kind, n.Node)
		}
	}
}

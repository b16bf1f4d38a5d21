package jobs

import (
	"github.com/timmy/sourcedesk/internal/domain"
)

// Target names the result field an engine field key feeds.
type Target int

const (
	TargetTranscript Target = iota
	TargetSummary
	TargetContent
	TargetImagePath
)

// FieldKey maps an engine-internal field key to a result field.
type FieldKey struct {
	Target Target
	Key    string
}

// OutputNode is one candidate location of a job's result.
// Fields[0] is the primary field: the node only matches when it holds a
// non-empty string.
type OutputNode struct {
	Node   string
	Fields []FieldKey
}

// outputNodes lists the candidate nodes per job kind in priority order.
// The transcription flow branches on the detected media type: video lands in
// output-1, audio and web pages in output, documents in output-2.
var outputNodes = map[domain.JobKind][]OutputNode{
	domain.JobKindSourceTranscribe: {
		{Node: "output-1", Fields: []FieldKey{
			{Target: TargetTranscript, Key: "1770497731904"},
			{Target: TargetSummary, Key: "1770497745120"},
		}},
		{Node: "output", Fields: []FieldKey{
			{Target: TargetTranscript, Key: "1770497790122"},
			{Target: TargetSummary, Key: "1770497802337"},
		}},
		{Node: "output-2", Fields: []FieldKey{
			{Target: TargetTranscript, Key: "1770497833871"},
			{Target: TargetSummary, Key: "1770497841406"},
		}},
	},
	domain.JobKindTextGenerate: {
		{Node: "output", Fields: []FieldKey{
			{Target: TargetContent, Key: "1770497874518"},
		}},
		{Node: "output-1", Fields: []FieldKey{
			{Target: TargetContent, Key: "1770497899265"},
		}},
	},
	domain.JobKindImageGenerate: {
		{Node: "output", Fields: []FieldKey{
			{Target: TargetImagePath, Key: "1770498012245"},
		}},
		{Node: "output-1", Fields: []FieldKey{
			{Target: TargetImagePath, Key: "1770498030761"},
		}},
	},
}

// Candidates returns the candidate nodes for kind in priority order.
func Candidates(kind domain.JobKind) []OutputNode {
	return outputNodes[kind]
}

// Result is the extracted, job-kind-specific payload. Every field is optional.
type Result struct {
	Transcript *string
	Summary    *string
	Content    *string
	ImagePath  *string
}

// Empty reports whether nothing was extracted.
func (r Result) Empty() bool {
	return r.Transcript == nil && r.Summary == nil && r.Content == nil && r.ImagePath == nil
}

func (r *Result) set(target Target, value string) {
	v := value
	switch target {
	case TargetTranscript:
		r.Transcript = &v
	case TargetSummary:
		r.Summary = &v
	case TargetContent:
		r.Content = &v
	case TargetImagePath:
		r.ImagePath = &v
	}
}

// Extract finds the first candidate node for kind whose primary field holds a
// non-empty string and returns its values. It never fails; a payload with no
// matching node yields an empty Result.
func Extract(result map[string]any, kind domain.JobKind) Result {
	for _, candidate := range outputNodes[kind] {
		node, ok := result[candidate.Node].(map[string]any)
		if !ok || len(candidate.Fields) == 0 {
			continue
		}

		primary, ok := stringField(node, candidate.Fields[0].Key)
		if !ok {
			continue
		}

		var out Result
		out.set(candidate.Fields[0].Target, primary)
		for _, field := range candidate.Fields[1:] {
			if v, ok := stringField(node, field.Key); ok {
				out.set(field.Target, v)
			}
		}
		return out
	}
	return Result{}
}

// stringField returns node[key] when it is a non-empty string.
func stringField(node map[string]any, key string) (string, bool) {
	s, ok := node[key].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

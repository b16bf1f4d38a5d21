package jobs

// Outcome is the normalized meaning of an engine status token.
type Outcome int

const (
	OutcomeProcessing Outcome = iota
	OutcomeDone
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDone:
		return "done"
	case OutcomeFailed:
		return "failed"
	default:
		return "processing"
	}
}

// The engine is inconsistent across flows; matching is exact and
// case-sensitive.
var (
	doneTokens = map[string]struct{}{
		"Done":      {},
		"completed": {},
	}
	failedTokens = map[string]struct{}{
		"failed": {},
		"Failed": {},
		"Error":  {},
	}
)

// NormalizeStatus maps a raw engine status onto an Outcome.
// Unknown tokens, including the empty string, mean the job is still running.
func NormalizeStatus(raw string) Outcome {
	if _, ok := doneTokens[raw]; ok {
		return OutcomeDone
	}
	if _, ok := failedTokens[raw]; ok {
		return OutcomeFailed
	}
	return OutcomeProcessing
}

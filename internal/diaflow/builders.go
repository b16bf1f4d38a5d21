package diaflow

import (
	"fmt"

	"github.com/timmy/sourcedesk/internal/domain"
)

// ParseBuilders converts the configured kind → builder id table.
// Unknown kinds are rejected so a typo cannot silently disable a job kind.
func ParseBuilders(raw map[string]string) (map[domain.JobKind]string, error) {
	builders := make(map[domain.JobKind]string, len(raw))
	for k, id := range raw {
		kind := domain.JobKind(k)
		if !kind.Valid() {
			return nil, fmt.Errorf("diaflow: unknown job kind %q in builders", k)
		}
		if id == "" {
			continue
		}
		builders[kind] = id
	}
	return builders, nil
}

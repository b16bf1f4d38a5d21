package diaflow

import (
	"encoding/json"
	"strconv"
)

// sessionIDKeys lists the field names the engine has used for the session id,
// in lookup order.
var sessionIDKeys = []string{"sessionId", "session_id", "id"}

// sessionIDFromBody returns the first non-empty session id found in body.
// Numeric ids are formatted without exponent.
func sessionIDFromBody(body []byte) (string, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return "", false
	}

	for _, key := range sessionIDKeys {
		raw, ok := fields[key]
		if !ok {
			continue
		}

		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if s != "" {
				return s, true
			}
			continue
		}

		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil {
			if i, err := n.Int64(); err == nil {
				return strconv.FormatInt(i, 10), true
			}
			return n.String(), true
		}
	}

	return "", false
}

package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// ============================================
// Tracing Fields (Context level)
// Propagated through the call chain via context
// ============================================

const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldEntityID is the id of the Source or GeneratedContent being tracked
	FieldEntityID = "entity_id"

	// FieldSessionID is the workflow engine session id
	FieldSessionID = "session_id"

	// FieldJobKind is the engine job kind
	FieldJobKind = "job_kind"
)

// ============================================
// Metric Fields (Entry level)
// Used for aggregation and alerting
// ============================================

const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldSize is a response or payload size in bytes
	FieldSize = "size"

	// FieldStatus is the operation or job status
	FieldStatus = "status"

	// FieldRawStatus is the status token exactly as the engine reported it
	FieldRawStatus = "raw_status"

	// FieldEvent tags log lines that dashboards count, e.g. "extraction_empty"
	FieldEvent = "event"
)

package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Tracing fields. These ride on the context logger and follow a request or
// a background job through every layer.
const (
	FieldRequestID = "request_id"
	FieldJobID     = "job_id"
	FieldSessionID = "session_id"
	FieldUserID    = "user_id"
	FieldComponent = "component"
	FieldStage     = "stage"
)

// Metric fields, attached through the Entry API for aggregation.
const (
	FieldDurationMs = "duration_ms"
	FieldCount      = "count"
	FieldSize       = "size"
	FieldStatus     = "status"
	FieldProgress   = "progress"
)

package logger

// Standard field names for structured logging.
const (
	FieldJobID      = "job_id"
	FieldRequestID  = "request_id"
	FieldActor      = "actor"
	FieldAmount     = "amount"
	FieldComponent  = "component"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatus     = "status"
	FieldDurationMS = "duration_ms"
	FieldError      = "error"
	FieldErrorCode  = "error_code"
	FieldCount      = "count"
)

package models

import (
	"time"

	core "tabpool-backend/core/payment_job"
)

// CreateJobRequest represents a job creation request. The authority is the
// authenticated caller.
type CreateJobRequest struct {
	Contributors []string `json:"contributors"`
	Recipients   []string `json:"recipients"`
	// AmountDue is in smallest units; Amount is a decimal in whole units.
	// Exactly one of them must be set.
	AmountDue int64  `json:"amount_due,omitempty"`
	Amount    string `json:"amount,omitempty"`
	// Deadline is a unix timestamp; omit for no deadline.
	Deadline *int64 `json:"deadline,omitempty"`
}

// DepositRequest represents a faucet deposit request
type DepositRequest struct {
	AmountDue int64  `json:"amount_due,omitempty"`
	Amount    string `json:"amount,omitempty"`
}

// JobResponse is a job with its status summary.
type JobResponse struct {
	Job     core.Job     `json:"job"`
	Summary core.Summary `json:"summary"`
}

// NewJobResponse builds the response for a job.
func NewJobResponse(job core.Job) JobResponse {
	return JobResponse{Job: job, Summary: core.Summarize(job)}
}

// OutcomeResponse is returned by pay and distribute.
type OutcomeResponse struct {
	Job          core.Job           `json:"job"`
	Summary      core.Summary       `json:"summary"`
	Distribution *core.Distribution `json:"distribution,omitempty"`
}

// JobsResponse represents a list of jobs
type JobsResponse struct {
	Jobs  []core.Job `json:"jobs"`
	Total int        `json:"total"`
}

// TransfersResponse represents a job's transfer log
type TransfersResponse struct {
	Transfers []core.TransferRecord `json:"transfers"`
	Total     int                   `json:"total"`
}

// EventsResponse represents recent pool events
type EventsResponse struct {
	Events []core.Event `json:"events"`
	Total  int          `json:"total"`
}

// BalanceResponse represents an account balance
type BalanceResponse struct {
	Account core.Identity `json:"account"`
	Balance int64         `json:"balance"`
	Display string        `json:"display"`
}

// PaymentURIResponse carries the wallet payment request of a job
type PaymentURIResponse struct {
	JobID core.Identity `json:"job_id"`
	URI   string        `json:"uri"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Store     string `json:"store,omitempty"`
	Version   string `json:"version,omitempty"`
	Timestamp int64  `json:"timestamp"`
	// Memory is omitted when host stats cannot be read.
	Memory *MemoryStats `json:"memory,omitempty"`
}

// MemoryStats reports host memory in bytes
type MemoryStats struct {
	Total     uint64 `json:"total"`
	Available uint64 `json:"available"`
}

// ErrorResponse represents API error response
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Code      int    `json:"code,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
	Hint      string `json:"hint,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// APIResponse represents a generic API response
type APIResponse struct {
	Success bool                   `json:"success"`
	Data    interface{}            `json:"data,omitempty"`
	Error   *ErrorResponse         `json:"error,omitempty"`
	Meta    map[string]interface{} `json:"meta,omitempty"`
}

// NewSuccessResponse creates a success response
func NewSuccessResponse(data interface{}) *APIResponse {
	return &APIResponse{
		Success: true,
		Data:    data,
	}
}

// NewErrorResponse creates an error response
func NewErrorResponse(message string, code int) *APIResponse {
	return &APIResponse{
		Success: false,
		Error: &ErrorResponse{
			Error:     message,
			Message:   message,
			Code:      code,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}
}

// NewErrorResponseWithCode creates an error response carrying a domain error code.
func NewErrorResponseWithCode(message string, code int, errorCode string) *APIResponse {
	resp := NewErrorResponse(message, code)
	resp.Error.ErrorCode = errorCode
	return resp
}

// NewErrorResponseWithHint creates an error response with a hint.
func NewErrorResponseWithHint(message string, code int, hint string) *APIResponse {
	resp := NewErrorResponse(message, code)
	if resp != nil && resp.Error != nil {
		resp.Error.Hint = hint
	}
	return resp
}

// NewSuccessResponseWithMeta creates a success response with metadata
func NewSuccessResponseWithMeta(data interface{}, meta map[string]interface{}) *APIResponse {
	return &APIResponse{
		Success: true,
		Data:    data,
		Meta:    meta,
	}
}

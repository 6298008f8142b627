package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/mark3labs/mcp-go/mcp"

	core "tabpool-backend/core/payment_job"
	"tabpool-backend/services"
)

// ToolError represents a structured error from tool execution
type ToolError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Tool       string `json:"tool,omitempty"`
	Field      string `json:"field,omitempty"`
	Hint       string `json:"hint,omitempty"`
	HttpStatus int    `json:"http_status,omitempty"`
}

func (e *ToolError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Tool-level error codes; domain failures use the pool's own codes.
const (
	ErrCodeMissingRequired = "MISSING_REQUIRED_FIELD"
	ErrCodeInvalidValue    = "INVALID_FIELD_VALUE"
	ErrCodeNoWallet        = "WALLET_NOT_CONFIGURED"
	ErrCodeFaucetDisabled  = "FAUCET_DISABLED"
)

// NewMissingFieldError reports a required argument that was not supplied.
func NewMissingFieldError(tool, field string) *ToolError {
	return &ToolError{
		Code:       ErrCodeMissingRequired,
		Message:    "missing required argument",
		Tool:       tool,
		Field:      field,
		HttpStatus: 400,
	}
}

// NewInvalidFieldError reports an argument that failed validation.
func NewInvalidFieldError(tool, field string, err error) *ToolError {
	return &ToolError{
		Code:       core.Code(err),
		Message:    err.Error(),
		Tool:       tool,
		Field:      field,
		HttpStatus: core.HTTPStatus(err),
	}
}

// FromError maps a pool error to a ToolError.
func FromError(tool string, err error) *ToolError {
	var te *ToolError
	if errors.As(err, &te) {
		return te
	}
	if errors.Is(err, services.ErrFaucetDisabled) {
		return &ToolError{Code: ErrCodeFaucetDisabled, Message: err.Error(), Tool: tool, HttpStatus: 403}
	}
	return &ToolError{
		Code:       core.Code(err),
		Message:    err.Error(),
		Tool:       tool,
		HttpStatus: core.HTTPStatus(err),
	}
}

// errorResult renders a ToolError as the JSON body of an error result.
func errorResult(te *ToolError) *mcp.CallToolResult {
	body, err := json.Marshal(te)
	if err != nil {
		return mcp.NewToolResultError(te.Error())
	}
	return mcp.NewToolResultError(string(body))
}

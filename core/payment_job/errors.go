package payment_job

import (
	"net/http"

	"github.com/cockroachdb/errors"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrJobClosed         = errors.New("job is closed")
	ErrNotAContributor   = errors.New("payer is not a contributor")
	ErrAlreadyPaid       = errors.New("contributor has already paid")
	ErrBeforeDeadline    = errors.New("deadline has not passed")
	ErrInsufficientFunds = errors.New("pool balance below collected total")
	ErrTransferFailed    = errors.New("transfer failed")
	ErrJobNotFound       = errors.New("job not found")

	// ErrInsufficientBalance is returned by ledgers when a sender cannot cover a transfer.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrCommitOnFailure marks errors raised after the job reached a state
	// that must be persisted even though the request fails.
	ErrCommitOnFailure = errors.New("commit job state despite failure")
)

// ShouldCommit reports whether a store must persist the job and ledger
// changes made before err was returned.
func ShouldCommit(err error) bool {
	return err == nil || errors.Is(err, ErrCommitOnFailure)
}

func transferFailed(err error, format string, args ...interface{}) error {
	return errors.Mark(errors.Wrapf(err, format, args...), ErrTransferFailed)
}

// Code maps an error to the stable code shared by the HTTP and MCP surfaces.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return "INVALID_INPUT"
	case errors.Is(err, ErrJobClosed):
		return "JOB_CLOSED"
	case errors.Is(err, ErrNotAContributor):
		return "NOT_A_CONTRIBUTOR"
	case errors.Is(err, ErrAlreadyPaid):
		return "ALREADY_PAID"
	case errors.Is(err, ErrBeforeDeadline):
		return "BEFORE_DEADLINE"
	case errors.Is(err, ErrInsufficientFunds):
		return "INSUFFICIENT_FUNDS"
	case errors.Is(err, ErrTransferFailed):
		return "TRANSFER_FAILED"
	case errors.Is(err, ErrJobNotFound):
		return "JOB_NOT_FOUND"
	case errors.Is(err, ErrInsufficientBalance):
		return "INSUFFICIENT_BALANCE"
	default:
		return "INTERNAL"
	}
}

// HTTPStatus maps an error to the response status used by the REST API.
func HTTPStatus(err error) int {
	switch Code(err) {
	case "":
		return http.StatusOK
	case "INVALID_INPUT":
		return http.StatusBadRequest
	case "NOT_A_CONTRIBUTOR", "BEFORE_DEADLINE":
		return http.StatusForbidden
	case "JOB_NOT_FOUND":
		return http.StatusNotFound
	case "JOB_CLOSED", "ALREADY_PAID":
		return http.StatusConflict
	case "INSUFFICIENT_FUNDS", "TRANSFER_FAILED", "INSUFFICIENT_BALANCE":
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

package payment_job

import (
	"github.com/cockroachdb/errors"

	core "tabpool-backend/core/payment_job"
)

var (
	ErrFaucetAmount  = errors.Wrap(core.ErrInvalidInput, "deposit amount must be positive")
	ErrUnknownDriver = errors.New("unknown store driver")
)

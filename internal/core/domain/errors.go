package domain

import "errors"

var (
	ErrValidation          = errors.New("validation failed")
	ErrOrderNotFound       = errors.New("order not found")
	ErrProductNotFound     = errors.New("product not found")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrUpstreamUnavailable = errors.New("inventory service unavailable")
	ErrPersistence         = errors.New("order store failure")
	ErrInconsistency       = errors.New("reconciliation inconsistency detected")
)

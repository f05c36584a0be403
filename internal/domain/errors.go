package domain

import "errors"

// Saga error taxonomy. Handlers classify with errors.Is; gateways wrap
// transport failures in ErrUnavailable so the resilience layer knows
// what is safe to retry.
var (
	// ErrInvalidInput rejects a request before any remote call is made.
	ErrInvalidInput = errors.New("invalid input")

	// ErrProductNotFound means the requested product is absent from the
	// catalog. Never retried.
	ErrProductNotFound = errors.New("product not found")

	// ErrInsufficientStock means available stock is below the requested
	// quantity. Never retried.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrUnavailable marks transport failures, timeouts and open
	// circuits. Retried per policy before it surfaces.
	ErrUnavailable = errors.New("service unavailable")

	// ErrOrderCreation wraps a stock-decrement or persistence failure
	// after all lower-level retries are exhausted.
	ErrOrderCreation = errors.New("order creation failed")
)

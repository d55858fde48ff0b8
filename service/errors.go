package service

import "fmt"

// ValidationError rejects a request before any write happens. Maps to 400.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NotFoundError signals a missing referenced row. Maps to 404.
type NotFoundError struct {
	Resource string
	ID       uint
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

// TransactionFailure wraps any store error raised inside the billing
// transaction. The whole transaction has rolled back by the time the caller
// sees this; re-issuing the request is safe. Maps to 500 with a generic
// client message, the wrapped cause stays in the logs.
type TransactionFailure struct {
	Op  string
	Err error
}

func (e *TransactionFailure) Error() string {
	return fmt.Sprintf("billing transaction failed during %s: %v", e.Op, e.Err)
}

func (e *TransactionFailure) Unwrap() error { return e.Err }

// Package cqrs is the command/query façade over the customer host. Every
// operation returns a Result envelope; no failure crosses this boundary as
// an error value, let alone a panic.
package cqrs

import "fmt"

// Result is the uniform outcome envelope. Callers must check Success
// before reading Output, which stays the zero value on failure.
type Result[T any] struct {
	Output  T      `json:"output,omitempty"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// OK wraps a successful payload.
func OK[T any](output T) Result[T] {
	return Result[T]{Output: output, Success: true}
}

// Fail wraps a human-readable failure message.
func Fail[T any](format string, args ...any) Result[T] {
	return Result[T]{Message: fmt.Sprintf(format, args...)}
}

// Failure wraps an error, carrying the full cause chain as the message.
func Failure[T any](err error) Result[T] {
	return Result[T]{Message: err.Error()}
}

package generator

import (
	"errors"
	"fmt"
)

// Script is the code extracted from a model response.
type Script struct {
	Body string
	// Language is the fence info string, lowercased; empty when absent.
	Language string
}

// Result describes one successful loop iteration.
type Result struct {
	Script     Script
	ScriptPath string
	VideoPath  string
	Attempts   int
}

var (
	// ErrNoCodeBlock means the response held no ```-fenced region.
	ErrNoCodeBlock = errors.New("no code block found in model response")

	// ErrRetriesExhausted is returned once a prompt failed on every allowed attempt.
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// InvocationError wraps a failed LLM call.
type InvocationError struct {
	Err error
}

func (e *InvocationError) Error() string { return fmt.Sprintf("llm invocation failed: %v", e.Err) }
func (e *InvocationError) Unwrap() error { return e.Err }

// AttemptError marks a recoverable failure of one attempt: the LLM call
// failed or its response had no code block. The session retries these.
type AttemptError struct {
	Attempt int
	Err     error
}

func (e *AttemptError) Error() string { return fmt.Sprintf("attempt %d: %v", e.Attempt, e.Err) }
func (e *AttemptError) Unwrap() error { return e.Err }

// Package perror defines the pipeline's error taxonomy. It mirrors the
// classification style of the doubaospeech adapter's *Error type: a small
// struct with a Kind, a phase name, a wrapped cause, and predicate methods
// (Transient, Permanent, Retryable) that classify the failure.
package perror

import (
	"errors"
	"fmt"
)

// Kind identifies one of the error categories enumerated in the pipeline's
// error-handling design: transient/permanent adapter failures, input
// resolution, output validation, contract violations, missing data, and
// budget exhaustion.
type Kind string

const (
	KindTransientAdapter  Kind = "transient_adapter"
	KindPermanentAdapter  Kind = "permanent_adapter"
	KindInputResolution   Kind = "input_resolution"
	KindOutputValidation  Kind = "output_validation"
	KindContractViolation Kind = "contract_violation"
	KindDataMissing       Kind = "data_missing"
	KindBudgetExceeded    Kind = "budget_exceeded"
)

// Error is the pipeline's structured error type. Phase and adapter code
// wraps lower-level errors in an *Error so the runner can classify and
// report failures without string matching.
type Error struct {
	Kind    Kind
	Phase   string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Phase != "" {
		return fmt.Sprintf("%s: %s (phase=%s)", e.Kind, e.Message, e.Phase)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Transient reports whether this error describes a condition the caller
// should retry (matching spec kind 1: transient adapter error).
func (e *Error) Transient() bool { return e.Kind == KindTransientAdapter }

// Permanent reports whether this error should never be retried (spec kind 2).
func (e *Error) Permanent() bool { return e.Kind == KindPermanentAdapter }

// Retryable is the union of conditions worth another attempt.
func (e *Error) Retryable() bool { return e.Transient() }

// New constructs a classified error.
func New(kind Kind, phase, message string) *Error {
	return &Error{Kind: kind, Phase: phase, Message: message}
}

// Wrap classifies cause under kind, attaching phase context.
func Wrap(kind Kind, phase, message string, cause error) *Error {
	return &Error{Kind: kind, Phase: phase, Message: message, Cause: cause}
}

// As is a thin convenience wrapper over errors.As for *Error.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// InputResolution builds the descriptive missing-artifact error required by
// spec §7 kind 3: it names the missing key, the requesting phase, and the
// keys that were actually available.
func InputResolution(phase, key string, available []string) *Error {
	return New(KindInputResolution, phase,
		fmt.Sprintf("artifact %q not found; available keys: %v", key, available))
}

// OutputValidation builds the error required by spec §7 kind 4: a phase
// declared an output key it did not write, or wrote a key outside provides().
func OutputValidation(phase, key, reason string) *Error {
	return New(KindOutputValidation, phase, fmt.Sprintf("output %q: %s", key, reason))
}

// ContractViolation builds the error required by spec §7 kind 5: assertable
// invariants like "no placeholders in final English" or "utterances overlap".
func ContractViolation(phase, message string) *Error {
	return New(KindContractViolation, phase, message)
}

// DataMissing builds the error required by spec §7 kind 6.
func DataMissing(phase, message string) *Error {
	return New(KindDataMissing, phase, message)
}

// BudgetExceeded builds the error required by spec §7 kind 7: used on a
// per-segment basis by tts, not as a phase-level failure (the phase still
// succeeds; only the segment's report records the failure).
func BudgetExceeded(phase, message string) *Error {
	return New(KindBudgetExceeded, phase, message)
}

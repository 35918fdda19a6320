package internal

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinel errors for every evaluation-time failure named in spec.md §7.
// The concrete error types below (EvalError, CycleError) return one of these
// from Unwrap, so callers can match with errors.Is while still getting a
// detailed message from Error().
var (
	ErrTypeError         = errors.New("type error")
	ErrOverflowError     = errors.New("integer overflow")
	ErrIndexError        = errors.New("index error")
	ErrUnboundVariable   = errors.New("unbound variable")
	ErrArityMismatch     = errors.New("arity mismatch")
	ErrUnknownBuiltin    = errors.New("unknown builtin")
	ErrStalePush         = errors.New("stale push")
	ErrPushToMissingCell = errors.New("push to missing cell")
	ErrDynamicPushTarget = errors.New("push target must be a string literal")
	ErrCycle             = errors.New("cycle detected")
)

// EvalError is the concrete error type stored as a cell's error state. It
// wraps one of the sentinels above together with a detailed reason,
// following the teacher's ErrParseCellID/ErrValueType pattern of a sentinel
// plus contextual detail. Error() prefixes the cell name only when Cell is
// set; newEvalError, which builds every EvalError in this package, leaves it
// empty.
type EvalError struct {
	Cell   CellID
	Reason string
	cause  error
}

func (e *EvalError) Error() string {
	if e.Cell != "" {
		return fmt.Sprintf("cell %s: %s", e.Cell, e.Reason)
	}
	return e.Reason
}

func (e *EvalError) Unwrap() error { return e.cause }

func newEvalError(cause error, format string, args ...interface{}) *EvalError {
	return &EvalError{Reason: fmt.Sprintf(format, args...), cause: cause}
}

// DescribeError renders any error produced by this package as a
// human-readable string, per spec.md §6's describe_error. It matches the
// error chain with errors.Is and prefixes a category label for lex/parse,
// cycle and dynamic-push-target errors; any other error is rendered as its
// own Error() text.
func DescribeError(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrLex):
		return "syntax error: " + err.Error()
	case errors.Is(err, ErrParse):
		return "syntax error: " + err.Error()
	case errors.Is(err, ErrCycle):
		return "circular reference: " + err.Error()
	case errors.Is(err, ErrDynamicPushTarget):
		return "invalid push: " + err.Error()
	default:
		return err.Error()
	}
}

// CycleError reports the cells on the offending cycle, in DFS order from
// the revisited node back to its first occurrence (spec.md §4.6).
type CycleError struct {
	Cycle []CellID
}

func (e *CycleError) Error() string {
	s := "cycle: "
	for i, c := range e.Cycle {
		if i > 0 {
			s += " -> "
		}
		s += string(c)
	}
	return s
}

func (e *CycleError) Unwrap() error { return ErrCycle }

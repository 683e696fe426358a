// Package flow provides the in-process task-graph execution engine for taskflow.
package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrMissingInput indicates that a node's declared inputs were not all present in the
// result store when the node started.
var ErrMissingInput = errors.New("missing inputs")

// ErrReferenceNotFound indicates that a deferred reference could not be resolved by any
// lookup strategy.
var ErrReferenceNotFound = errors.New("reference not found")

// ErrIndexOutOfRange indicates that a reference's index or key subscript does not exist in
// the resolved value.
var ErrIndexOutOfRange = errors.New("index out of range")

// ErrOutputArity indicates that a node with several declared outputs returned a value that
// cannot be zipped onto them.
var ErrOutputArity = errors.New("output arity mismatch")

// ErrPluginContract indicates that a middleware entry is nil or does not have a recognized
// invocation signature.
var ErrPluginContract = errors.New("middleware does not satisfy plugin contract")

// ErrDeadlineExceeded is returned by the timeout middleware. Errors wrapping it also match
// context.DeadlineExceeded.
var ErrDeadlineExceeded = deadlineError{}

type deadlineError struct{}

func (deadlineError) Error() string { return "deadline exceeded" }

func (deadlineError) Is(target error) bool { return target == context.DeadlineExceeded }

// Error codes carried by NodeError and EngineError.
const (
	CodeMissingInput      = "MISSING_INPUT"
	CodeReferenceNotFound = "REFERENCE_NOT_FOUND"
	CodeIndexOutOfRange   = "INDEX_OUT_OF_RANGE"
	CodeOutputArity       = "OUTPUT_ARITY"
	CodePluginContract    = "PLUGIN_CONTRACT"
	CodeNodeFailed        = "NODE_FAILED"
	CodeDuplicateNode     = "DUPLICATE_NODE"
	CodeCycle             = "CYCLE"
	CodeNoEntry           = "NO_ENTRY"
	CodeInvalidOption     = "INVALID_OPTION"
	CodeInvalidKey        = "INVALID_KEY"
	CodeDeadlineExceeded  = "DEADLINE_EXCEEDED"
)

// MissingInputError names every declared input that was absent when a node started.
type MissingInputError struct {
	NodeID  string
	Missing []Tag
}

func (e *MissingInputError) Error() string {
	names := make([]string, len(e.Missing))
	for i, tag := range e.Missing {
		names[i] = string(tag)
	}
	return fmt.Sprintf("%s missing inputs: [%s]", nodeLabel(e.NodeID), strings.Join(names, ", "))
}

// Is reports whether target is ErrMissingInput.
func (e *MissingInputError) Is(target error) bool { return target == ErrMissingInput }

// ReferenceError describes a deferred reference that failed to resolve.
// Cause is ErrReferenceNotFound or ErrIndexOutOfRange, or the error returned by a transform.
type ReferenceError struct {
	Target string
	Detail string
	Cause  error
}

func (e *ReferenceError) Error() string {
	msg := fmt.Sprintf("reference to node %q: %v", e.Target, e.Cause)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ReferenceError) Unwrap() error { return e.Cause }

// OutputArityError is returned when a node declaring N>1 outputs returns something other
// than a sequence of exactly N values. Got is -1 when the value was not a sequence.
type OutputArityError struct {
	NodeID string
	Want   int
	Got    int
	Type   string
}

func (e *OutputArityError) Error() string {
	if e.Got < 0 {
		return fmt.Sprintf("%s declares %d outputs but returned non-sequence %s", nodeLabel(e.NodeID), e.Want, e.Type)
	}
	return fmt.Sprintf("%s declares %d outputs but returned %d values", nodeLabel(e.NodeID), e.Want, e.Got)
}

// Is reports whether target is ErrOutputArity.
func (e *OutputArityError) Is(target error) bool { return target == ErrOutputArity }

// NodeError represents an error that occurred while executing a node.
// It provides structured error information for observability and debugging.
type NodeError struct {
	// Message is the human-readable error description.
	Message string

	// Code is a machine-readable error code for programmatic handling.
	Code string

	// NodeID identifies which node produced this error.
	NodeID string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	if e.NodeID != "" {
		return "node " + e.NodeID + ": " + e.Message
	}
	return e.Message
}

// Unwrap returns the underlying cause error for error wrapping support.
func (e *NodeError) Unwrap() error {
	return e.Cause
}

// EngineError represents an error raised while building or validating a flow.
type EngineError struct {
	Message string
	Code    string
}

func (e *EngineError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

// codeOf maps a failure to the error code reported on node_error events.
func codeOf(err error) string {
	var nodeErr *NodeError
	switch {
	case errors.As(err, &nodeErr) && nodeErr.Code != "":
		return nodeErr.Code
	case errors.Is(err, ErrMissingInput):
		return CodeMissingInput
	case errors.Is(err, ErrReferenceNotFound):
		return CodeReferenceNotFound
	case errors.Is(err, ErrIndexOutOfRange):
		return CodeIndexOutOfRange
	case errors.Is(err, ErrOutputArity):
		return CodeOutputArity
	case errors.Is(err, ErrPluginContract):
		return CodePluginContract
	case errors.Is(err, context.DeadlineExceeded):
		return CodeDeadlineExceeded
	default:
		return CodeNodeFailed
	}
}

func nodeLabel(id string) string {
	if id == "" {
		return "node <anonymous>"
	}
	return "node " + id
}

// internal/loaner/errors.go
package loaner

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies a workflow failure. Every aborted operation reports
// exactly one kind; the HTTP layer maps kinds to status codes.
type Kind string

const (
	KindInvalidIdentifier     Kind = "InvalidIdentifier"
	KindInvalidAssetTag       Kind = "InvalidAssetTag"
	KindAssetNotFound         Kind = "AssetNotFound"
	KindAmbiguousMatch        Kind = "AmbiguousMatch"
	KindNoLoanRequest         Kind = "NoLoanRequest"
	KindLoanRequestDenied     Kind = "LoanRequestDenied"
	KindLoanAlreadyFulfilled  Kind = "LoanAlreadyFulfilled"
	KindAssetNotReadyToLoan   Kind = "AssetNotReadyToLoan"
	KindAssetAlreadyCheckedIn Kind = "AssetAlreadyCheckedIn"
	KindWrongAssetType        Kind = "WrongAssetType"
	KindAttachFailure         Kind = "AttachFailure"
	KindTransportError        Kind = "TransportError"
)

// WorkflowError is the structured outcome of any guard or remote-call
// failure. Attrs carries operation context (tag, ticket id, handle) for the
// caller; Err holds the underlying cause when the failure came from the
// remote service.
type WorkflowError struct {
	Kind    Kind
	Message string
	Attrs   map[string]string
	Err     error
}

func (e *WorkflowError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if len(e.Attrs) > 0 {
		keys := make([]string, 0, len(e.Attrs))
		for k := range e.Attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%s", k, e.Attrs[k])
		}
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// With attaches a context attribute and returns the error for chaining.
func (e *WorkflowError) With(key, value string) *WorkflowError {
	if e.Attrs == nil {
		e.Attrs = make(map[string]string)
	}
	e.Attrs[key] = value
	return e
}

func newError(kind Kind, message string) *WorkflowError {
	return &WorkflowError{Kind: kind, Message: message}
}

// KindOf extracts the workflow kind from an error chain. It returns the
// empty kind for errors that did not originate in the workflow.
func KindOf(err error) Kind {
	var w *WorkflowError
	if errors.As(err, &w) {
		return w.Kind
	}
	return ""
}

package registration

import (
	"errors"
	"sort"
	"strings"

	"github.com/ravi1475/School-ERPS-sub002/core"
)

var (
	// errors
	ErrNotFound             = errors.New("registration draft not found")
	ErrUnknownPath          = errors.New("unknown field path")
	ErrInvalidValue         = errors.New("invalid value for field")
	ErrDerivedField         = errors.New("field is computed and cannot be edited")
	ErrUnknownSlot          = errors.New("unknown document slot")
	ErrInvalidStep          = errors.New("invalid step")
	ErrSubmissionInProgress = errors.New("a submission is already in progress")
	ErrNotSubmitting        = errors.New("no submission in progress")
	ErrStepIncomplete       = errors.New("please fix the validation errors before continuing")
	ErrFormIncomplete       = errors.New("please fix the validation errors before submitting")
	ErrDocumentTooLarge     = errors.New("document is too large")
	ErrDocumentType         = errors.New("document type is not allowed")
	ErrDocumentEmpty        = errors.New("document is empty")

	submissionFallbackText = "Failed to register student. Please try again."
	submissionTimeoutText  = "The previous submission did not complete. Please try again."
)

// ErrorMap maps a field dot-path to its validation message.
// A missing path means the field is currently valid.
type ErrorMap map[string]string

func (em ErrorMap) clone() ErrorMap {
	out := make(ErrorMap, len(em))
	for k, v := range em {
		out[k] = v
	}
	return out
}

// Fields returns the errors as core.FieldError sorted by path.
func (em ErrorMap) Fields() []core.FieldError {
	flds := make([]core.FieldError, 0, len(em))
	for path, msg := range em {
		flds = append(flds, core.FieldError{Field: path, Error: msg})
	}
	sort.Slice(flds, func(i, j int) bool { return flds[i].Field < flds[j].Field })
	return flds
}

// SubmissionError is reported by a Submitter when the persistence backend rejects a registration.
type SubmissionError struct {
	StatusCode int
	Message    string
	Fields     []core.FieldError
}

func (err *SubmissionError) Error() string {
	if msg := err.message(); msg != "" {
		return msg
	}
	return submissionFallbackText
}

func (err *SubmissionError) message() string {
	if err.Message != "" {
		return err.Message
	}
	msgs := make([]string, 0, len(err.Fields))
	for _, fErr := range err.Fields {
		if fErr.Field == "" {
			msgs = append(msgs, fErr.Error)
			continue
		}
		msgs = append(msgs, fErr.Field+": "+fErr.Error)
	}
	return strings.Join(msgs, "; ")
}

// FailureMessage returns the message shown for a failed submission: the backend message verbatim,
// else its field messages joined, else a generic text.
func FailureMessage(err error) string {
	var subErr *SubmissionError
	if errors.As(err, &subErr) {
		if msg := subErr.message(); msg != "" {
			return msg
		}
	}
	return submissionFallbackText
}

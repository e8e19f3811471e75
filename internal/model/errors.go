package model

import "strings"

// StructuredError is an error carrying parallel codes and messages plus
// arbitrary data. Values implementing it are flattened when persisted.
type StructuredError interface {
	error
	ErrorCodes() []string
	ErrorMessages() []string
	ErrorData() map[string]any
}

// CodedError is the concrete StructuredError used by callers that want
// machine-readable failure codes in log context.
type CodedError struct {
	Codes    []string
	Messages []string
	Data     map[string]any
}

var _ StructuredError = (*CodedError)(nil)

// NewCodedError returns an error holding one code.
func NewCodedError(code, message string, data any) *CodedError {
	e := &CodedError{Data: map[string]any{}}
	e.Add(code, message, data)
	return e
}

// Add appends another code. Data is keyed by code.
func (e *CodedError) Add(code, message string, data any) {
	e.Codes = append(e.Codes, code)
	e.Messages = append(e.Messages, message)
	if data != nil {
		if e.Data == nil {
			e.Data = map[string]any{}
		}
		e.Data[code] = data
	}
}

func (e *CodedError) Error() string {
	if len(e.Messages) == 0 {
		return "unknown error"
	}
	return strings.Join(e.Messages, "; ")
}

func (e *CodedError) ErrorCodes() []string      { return e.Codes }
func (e *CodedError) ErrorMessages() []string   { return e.Messages }
func (e *CodedError) ErrorData() map[string]any { return e.Data }

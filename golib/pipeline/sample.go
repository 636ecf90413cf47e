package pipeline

import "fmt"

// Sample represents a piece of data that is used as input/output for a Feed.
type Sample interface {
	SampleTag()
}

// Keyed wraps a sample and a string key
type Keyed struct {
	Key    string
	Sample Sample
}

// SampleTag implements pipeline.Sample
func (Keyed) SampleTag() {}

// NewError can be used by a Feed to communicate that no sample is being returned, along with a string
// representing a reason.
// A given feed should return errors with a finite set of reasons, since statistics are aggregated by reason.
func NewError(reason string) Sample {
	return sampleError{Reason: reason}
}

// WrapError works like NewError, but wraps an existing error.
func WrapError(reason string, err error) Sample {
	if s, ok := err.(sampleError); ok {
		// compose the reasons of nested sample errors
		return sampleError{Reason: fmt.Sprintf("%s: %s", reason, s.Reason), Err: s.Err}
	}
	return sampleError{Reason: reason, Err: err}
}

// ErrorReason returns the reason of an error sample, or "" if err is not one
func ErrorReason(err error) string {
	if se, ok := err.(sampleError); ok {
		return se.Reason
	}
	return ""
}

// sampleError is used internally by the pipeline to communicate that a feed cannot return a sample for a reason
type sampleError struct {
	Reason string
	Err    error
}

// sampleError implements pipeline.Sample
func (sampleError) SampleTag() {}

// sampleError implements error
func (s sampleError) Error() string {
	if s.Err != nil {
		return fmt.Sprintf("%s: %v", s.Reason, s.Err)
	}

	return fmt.Sprintf("%v", s.Reason)
}

// Unwrap exposes the wrapped error to errors.Is and errors.As
func (s sampleError) Unwrap() error {
	return s.Err
}

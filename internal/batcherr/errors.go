// Package batcherr defines the error kinds surfaced by the batch encoder.
//
// Every kind aborts the stream it occurs in. Callers match them with
// errors.As; the wrapped cause stays reachable through errors.Is/Unwrap.
package batcherr

import "fmt"

// InvalidRecordError reports a record that cannot be flattened, e.g. a nil
// record or a nested mapping whose keys are not strings.
type InvalidRecordError struct {
	Path   string
	Reason string
	Err    error
}

func (e *InvalidRecordError) Error() string {
	msg := "invalid record"
	if e.Path != "" {
		msg += " at " + e.Path
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InvalidRecordError) Unwrap() error { return e.Err }

// EncodingError reports a value that has no text encoding (NaN, channels,
// functions, ...).
type EncodingError struct {
	Column string
	Type   string
	Err    error
}

func (e *EncodingError) Error() string {
	msg := fmt.Sprintf("encode %s", e.Type)
	if e.Column != "" {
		msg = fmt.Sprintf("encode column %q (%s)", e.Column, e.Type)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *EncodingError) Unwrap() error { return e.Err }

// ConfigurationError reports an invalid setting detected before any input is
// consumed.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration: " + e.Message
	}
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Message)
}

// StorageError reports a failure of the destination backend. Op is one of
// "open", "write", "close" or "url".
type StorageError struct {
	Op   string
	Name string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Name, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

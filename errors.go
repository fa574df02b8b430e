package settings

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissing means a primitive, size or presence marker required by the
	// shape being decoded is absent from the store.
	ErrMissing = errors.New("missing value")

	// ErrInvalid means a stored value is present but cannot represent the
	// decoded type (enum ordinal out of range, array of a different length,
	// unparsable text).
	ErrInvalid = errors.New("invalid value")
)

// DecodeError describes why a value could not be decoded. The outermost
// Decode and DecodeOrNil turn it into the default value or nil; TryDecode
// returns it.
type DecodeError struct {
	Key string
	Msg string
	Err error
}

func decodeErrf(key string, err error, format string, args ...any) error {
	return &DecodeError{key, fmt.Sprintf(format, args...), err}
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func (e *DecodeError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Key)
	if e.Msg != "" {
		buf.WriteString(": ")
		buf.WriteString(e.Msg)
	}
	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}

// StoreError reports a failed backend operation. Writes through the Settings
// interface cannot return errors, so backends panic with *StoreError.
type StoreError struct {
	Store string
	Op    string
	Key   string
	Err   error
}

func storeErr(store, op, key string, err error) error {
	return &StoreError{store, op, key, err}
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Store)
	buf.WriteString(": ")
	buf.WriteString(e.Op)
	if e.Key != "" {
		buf.WriteString(" ")
		buf.WriteString(e.Key)
	}
	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}

// DataError reports a malformed stored value.
type DataError struct {
	Data []byte
	Off  int
	Err  error
	Msg  string
}

func dataErrf(data []byte, off int, err error, format string, args ...any) error {
	return &DataError{data, off, err, fmt.Sprintf(format, args...)}
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func (e *DataError) Error() string {
	const prefixLen = 32
	n := len(e.Data)
	data := e.Data
	var ellipsis string
	if n > prefixLen {
		data, ellipsis = data[:prefixLen], "..."
	}
	if e.Err != nil {
		return fmt.Sprintf("%s at %d: %v: (%d) %x%s", e.Msg, e.Off, e.Err, n, data, ellipsis)
	} else {
		return fmt.Sprintf("%s at %d: (%d) %x%s", e.Msg, e.Off, n, data, ellipsis)
	}
}

package requestfile

import "errors"

var (
	// ErrBinaryContent indicates a request file does not look like text at all.
	ErrBinaryContent = errors.New("request file appears to be binary")

	// ErrEncoding indicates a request file could not be converted to UTF-8.
	ErrEncoding = errors.New("request file encoding could not be converted to UTF-8")

	// ErrInvalidRequest indicates a request file is not valid JSON or does not satisfy the
	// actor's schema. Wrapped errors name the file and every violation found.
	ErrInvalidRequest = errors.New("invalid request file")

	// ErrSchema indicates a schema document could not be parsed or compiled.
	ErrSchema = errors.New("invalid request schema")
)

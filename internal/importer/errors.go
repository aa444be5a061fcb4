package importer

import "fmt"

// ErrorKind classifies an import failure.
type ErrorKind int

const (
	// ErrorKindReadFailure means the file could not be read from the store
	// (or exceeds the configured size limit).
	ErrorKindReadFailure ErrorKind = iota
	// ErrorKindParseFailure wraps a dmarc.ParseError.
	ErrorKindParseFailure
	// ErrorKindValidateFailure means the parsed report is missing identity
	// fields or has an invalid reporting period.
	ErrorKindValidateFailure
	// ErrorKindPersistFailure means a database lookup or the transactional
	// write failed.
	ErrorKindPersistFailure
	// ErrorKindDirectoryNotFound is the only failure that aborts a whole
	// run, raised before any file is touched.
	ErrorKindDirectoryNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindReadFailure:
		return "read failure"
	case ErrorKindParseFailure:
		return "parse failure"
	case ErrorKindValidateFailure:
		return "validation failure"
	case ErrorKindPersistFailure:
		return "persist failure"
	case ErrorKindDirectoryNotFound:
		return "directory not found"
	default:
		return "unknown import error"
	}
}

// ImportError is the only error type the importer returns.
type ImportError struct {
	Kind ErrorKind
	File string
	Err  error
}

func (e *ImportError) Error() string {
	msg := e.Kind.String()
	if e.File != "" {
		msg = fmt.Sprintf("%s: %s", e.File, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

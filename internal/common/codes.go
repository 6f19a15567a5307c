package common

import "errors"

// CodedError attaches a machine-readable code to an error without changing
// how errors.Is sees it.
type CodedError struct {
	Code string
	Err  error
}

func (e *CodedError) Error() string { return e.Err.Error() }
func (e *CodedError) Unwrap() error { return e.Err }

func WithCode(code string, err error) error {
	return &CodedError{Code: code, Err: err}
}

// ErrorCode returns the code of the outermost CodedError in err's chain.
func ErrorCode(err error) string {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	return ""
}

package extract

import "errors"

// PermanentError marks extraction failures that retrying cannot fix, such as
// an image format the model rejects. Everything else is treated as transient.
type PermanentError struct {
	Cause error
}

func (e *PermanentError) Error() string {
	return "permanent extraction failure: " + e.Cause.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Cause
}

// Permanent wraps err as non-retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Cause: err}
}

// IsPermanent reports whether err (or anything it wraps) is non-retryable.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

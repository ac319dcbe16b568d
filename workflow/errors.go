package workflow

import (
	"errors"
	"fmt"
)

// ErrBusy is returned when an intent arrives while another engine
// operation is still in flight.
var ErrBusy = errors.New("another operation is in flight")

// ValidationError is a local rejection: no service was contacted and no
// stage changed.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a local validation rejection.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

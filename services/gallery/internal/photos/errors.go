package photos

import (
	"errors"
	"fmt"
)

// ErrInvalidAngle rejects rotations other than 90, 180 and 270 degrees.
var ErrInvalidAngle = errors.New("photos: angle must be 90, 180 or 270")

// FetchError is a transport failure or a non-2xx response.
type FetchError struct {
	Op     string
	Status int // 0 for transport failures
	Body   string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("photos: %s: status %d body=%q", e.Op, e.Status, e.Body)
	}
	return fmt.Sprintf("photos: %s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError is a response body that is not the expected JSON.
type ParseError struct {
	Op   string
	Body string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("photos: %s: decode error: %v body=%q", e.Op, e.Err, e.Body)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsUpstream reports whether err came from the photo API (fetch or parse).
func IsUpstream(err error) bool {
	var fe *FetchError
	var pe *ParseError
	return errors.As(err, &fe) || errors.As(err, &pe)
}

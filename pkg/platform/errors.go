package platform

import (
	"errors"
	"fmt"
)

var ErrorSerialization = errors.New("unexpected response body")

// UpstreamError reports a failed platform call. StatusCode is zero when no
// response was received (transport failure or timeout).
type UpstreamError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.StatusCode == 0:
		return fmt.Sprintf("platform request failed: %v", e.Err)
	case e.Err != nil:
		return fmt.Sprintf("platform response status: %d, %v, body: %s", e.StatusCode, e.Err, e.Body)
	default:
		return fmt.Sprintf("platform http status: %d, body: %s", e.StatusCode, e.Body)
	}
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsUpstream reports whether err came back from the platform side.
func IsUpstream(err error) bool {
	var upstream *UpstreamError
	return errors.As(err, &upstream)
}

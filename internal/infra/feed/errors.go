package feed

import (
	"errors"
	"fmt"
	"net/http"
)

// FetchError reports a failed upstream fetch. StatusCode is zero when the
// upstream could not be reached at all, and the upstream HTTP status when it
// answered with an error.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream %s returned status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("upstream %s unreachable: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// retryableStatus reports whether a FetchError carries a status worth
// retrying. Non-status FetchErrors defer to the network-level check.
func retryableStatus(err error) bool {
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) || fetchErr.StatusCode == 0 {
		return false
	}
	switch {
	case fetchErr.StatusCode >= 500:
		return true
	case fetchErr.StatusCode == http.StatusTooManyRequests:
		return true
	case fetchErr.StatusCode == http.StatusRequestTimeout:
		return true
	}
	return false
}

package atproto

import (
	"errors"
	"fmt"
)

// ErrRecordNotFound signals that a requested record does not exist in
// the repository. Callers treat it as "no site", not a network failure.
var ErrRecordNotFound = errors.New("record not found")

// FetchError is a failed retrieval from a remote endpoint. Status is
// zero for transport-level failures.
type FetchError struct {
	URL    string
	Status int
	Msg    string
}

func (e *FetchError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("fetch %s: %d %s", e.URL, e.Status, e.Msg)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Msg)
}

// AsFetchError checks if an error is a FetchError and returns it.
func AsFetchError(err error) (*FetchError, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// CorsError is a cross-origin denial from the remote. It is never
// retried; the remote has to opt in.
type CorsError struct {
	URL string
}

func (e *CorsError) Error() string {
	return fmt.Sprintf("cross-origin request to %s denied", e.URL)
}

// xrpcError is the standard XRPC error body.
type xrpcError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

package remote

import (
	"errors"
	"fmt"
	"strings"
)

// ConnectivityError means the transport never reached the host.
type ConnectivityError struct {
	URL string
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("could not connect to %s: %v", e.URL, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// AuthenticationError means the host answered but refused the credentials or
// did not hand out an action token.
type AuthenticationError struct {
	Reason     string
	StatusCode int
}

func (e *AuthenticationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("authentication failed (HTTP %d): %s", e.StatusCode, e.Reason)
	}
	return "authentication failed: " + e.Reason
}

// NotFoundError reports an absent remote resource.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return e.Resource + " not found"
}

// UploadFailedError is a terminal install failure reported by the server.
type UploadFailedError struct {
	StatusCode  int
	SubCode     string
	ContentType string
	Message     string
}

func (e *UploadFailedError) Error() string {
	var b strings.Builder
	b.WriteString("upload was unsuccessful")
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.StatusCode)
	}
	if e.SubCode != "" {
		fmt.Fprintf(&b, ": %s", e.SubCode)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	return b.String()
}

// MalformedResponseError carries a payload that could not be decoded into the
// expected record. Raw holds the undecoded body.
type MalformedResponseError struct {
	Kind    string
	Missing []string
	Raw     []byte
	Err     error
}

func (e *MalformedResponseError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("malformed %s response: %v", e.Kind, e.Err)
	case len(e.Missing) > 0:
		return fmt.Sprintf("malformed %s response: missing %s", e.Kind, strings.Join(e.Missing, ", "))
	default:
		return fmt.Sprintf("malformed %s response", e.Kind)
	}
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// StatusError is an unexpected HTTP status that fits no other category.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected HTTP status %d", e.Method, e.URL, e.StatusCode)
}

func IsConnectivity(err error) bool {
	var target *ConnectivityError
	return errors.As(err, &target)
}

func IsAuthentication(err error) bool {
	var target *AuthenticationError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsMalformed(err error) bool {
	var target *MalformedResponseError
	return errors.As(err, &target)
}

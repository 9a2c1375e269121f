// Package apperrors defines the error taxonomy shared by the token broker,
// the Zoho Books client and the tool dispatcher.
package apperrors

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"
)

// AuthError reports a failed token exchange.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string { return e.Message }

func (e *AuthError) Unwrap() error { return e.Err }

// UpstreamError reports a non-success status or a malformed body from Zoho Books.
type UpstreamError struct {
	Status  int
	Code    int
	Message string
}

func (e *UpstreamError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "zoho books request failed: status %d", e.Status)
	if e.Code != 0 {
		fmt.Fprintf(&b, ", code %d", e.Code)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

// MissingArgumentError names the first required tool argument that was absent.
type MissingArgumentError struct {
	Name string
}

func (e *MissingArgumentError) Error() string {
	return "Missing required argument: " + e.Name
}

// UnknownToolError is returned for tool names outside the registry.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return "Unknown tool: " + e.Name
}

// NotFoundError covers resource and employee lookup misses.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// InvalidArgumentError is returned when an argument violates its declared schema.
type InvalidArgumentError struct {
	Name   string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("Invalid argument %s: %s", e.Name, e.Reason)
}

// NewAuthError wraps cause (which may be nil) with the refresh failure message.
func NewAuthError(reason string, cause error) *AuthError {
	if reason == "" {
		reason = "Unknown"
	}
	return &AuthError{Message: "Failed to refresh token: " + reason, Err: cause}
}

// IsNotFound reports whether err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsAuth reports whether err is or wraps an AuthError.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// AsUpstream extracts an UpstreamError from err.
func AsUpstream(err error) (*UpstreamError, bool) {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}

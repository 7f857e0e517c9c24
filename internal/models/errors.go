package models

import (
	"errors"
	"fmt"
)

// ErrDuplicateSignature is returned when a webhook record insert collides with
// the unique signature index, i.e. the notification was already processed.
var ErrDuplicateSignature = errors.New("webhook signature already processed")

// ConfigError reports invalid or missing configuration. It is fatal at
// construction time and never produced at runtime.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// AuthError reports a failed token exchange. Recoverable - callers may retry
// on a later request.
type AuthError struct {
	StatusCode int
	Err        error
}

func (e *AuthError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("phonepe auth failed (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("phonepe auth failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// GatewayError reports a non-2xx or malformed response from a PhonePe
// business endpoint. Recorded in the audit trail and returned as a tagged
// failure; it never escapes the service layer as a panic.
type GatewayError struct {
	Code    string
	Message string
}

func (e *GatewayError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("phonepe gateway error %s: %s", e.Code, e.Message)
	}
	return "phonepe gateway error: " + e.Message
}

// SignatureError reports a webhook that failed X-VERIFY authentication.
type SignatureError struct {
	Reason string
}

func (e *SignatureError) Error() string {
	return "webhook signature invalid: " + e.Reason
}

// StorageError reports an I/O failure in the token cache or audit log.
// Token cache failures degrade to "no cached token"; audit log failures are
// escalated because they break the audit guarantee.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

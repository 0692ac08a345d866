package exchange

import (
	"errors"
	"fmt"
)

// TransientError covers failures worth retrying: network errors,
// timeouts, and provider 5xx responses. The stored record stays intact.
type TransientError struct {
	Op  string // "exchange", "refresh", "revoke"
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("oauth %s: transient: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError covers definitive provider rejections (4xx with an
// OAuth error body). Retrying the same request will not help.
type PermanentError struct {
	Op          string
	Status      int
	Code        string // OAuth error code, e.g. "invalid_grant"
	Description string
}

func (e *PermanentError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("oauth %s: provider rejected (%d %s): %s", e.Op, e.Status, e.Code, e.Description)
	}
	return fmt.Sprintf("oauth %s: provider rejected (%d %s)", e.Op, e.Status, e.Code)
}

// IsInvalidGrant reports whether the provider invalidated the grant
// (revoked or rotated-away refresh token). The connection is dead.
func (e *PermanentError) IsInvalidGrant() bool {
	return e.Code == "invalid_grant"
}

// ProtocolError covers responses we could not make sense of: 2xx
// without an access token, unparseable bodies, 4xx with no OAuth shape.
type ProtocolError struct {
	Op     string
	Status int
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("oauth %s: protocol error (status %d): %s", e.Op, e.Status, e.Reason)
}

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// IsPermanent reports whether err is (or wraps) a PermanentError.
func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}

// IsInvalidGrant reports whether err is a PermanentError with the
// invalid_grant code.
func IsInvalidGrant(err error) bool {
	var p *PermanentError
	return errors.As(err, &p) && p.IsInvalidGrant()
}

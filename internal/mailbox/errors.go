package mailbox

import (
	"errors"
	"fmt"
)

// AuthError indicates the server rejected the mailbox credentials.
// It is fatal for that mailbox's cycle; other mailboxes keep polling.
type AuthError struct {
	Owner   string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.Owner, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// NetworkError indicates a connection or timeout failure. Transient;
// the operation is retried naturally on the next scheduled cycle.
type NetworkError struct {
	Addr string
	Err  error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error (%s): %v", e.Addr, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsNetworkError reports whether err chains to a NetworkError.
func IsNetworkError(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// FolderNotFound indicates no alias candidate for a logical folder
// could be selected (or, for moves, created) on the server.
type FolderNotFound struct {
	Logical    string
	Candidates []string
	LastErr    error
}

func (e *FolderNotFound) Error() string {
	return fmt.Sprintf(
		"folder %q not found (tried %d candidates): %v",
		e.Logical, len(e.Candidates), e.LastErr,
	)
}

func (e *FolderNotFound) Unwrap() error { return e.LastErr }

// IsFolderNotFound reports whether err chains to a FolderNotFound.
func IsFolderNotFound(err error) bool {
	var nfErr *FolderNotFound
	return errors.As(err, &nfErr)
}

// ProtocolError indicates an unexpected server response on a
// search/fetch/copy operation.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error during %s: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// DeliveryError indicates that outbound delivery failed on both the
// default transport and the fallback. Both reasons are carried.
type DeliveryError struct {
	Primary  error
	Fallback error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf(
		"delivery failed: primary: %v; fallback: %v",
		e.Primary, e.Fallback,
	)
}

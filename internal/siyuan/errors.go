package siyuan

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the client failure classes. Remote code failures are
// reported as *RemoteError and matched with errors.As.
var (
	// ErrTransport wraps network, timeout and non-200 HTTP failures.
	ErrTransport = errors.New("siyuan: transport failure")
	// ErrProtocol marks a response whose shape the client does not recognize.
	ErrProtocol = errors.New("siyuan: unexpected response shape")
	// ErrNotFound marks a block or document id the store does not know.
	ErrNotFound = errors.New("siyuan: not found")
)

// RemoteError is a non-zero code in the response envelope.
type RemoteError struct {
	Code int
	Msg  string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("siyuan: remote code %d: %s", e.Code, e.Msg)
}

// IsNotFound reports whether err means the requested id does not exist. The
// store does not use a dedicated code for this, so remote errors are matched
// on their message as well.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var remote *RemoteError
	if errors.As(err, &remote) {
		msg := strings.ToLower(remote.Msg)
		return strings.Contains(msg, "not found") || strings.Contains(msg, "不存在")
	}
	return false
}

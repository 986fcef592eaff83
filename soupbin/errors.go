package soupbin

import (
	"fmt"
	"sync/atomic"

	"github.com/marketlink/marketlink/wire"
)

// Kind classifies why a session or connection closed.
type Kind int

const (
	// KindLoginRejected means the server refused the login (see Reason).
	KindLoginRejected Kind = iota
	// KindLoggedOut means the client sent LogoutRequest (normal).
	KindLoggedOut
	// KindSessionEnded means the server sent EndOfSession (normal).
	KindSessionEnded
	// KindServerTimedOut means no frame arrived within the configured
	// server timeout (abnormal).
	KindServerTimedOut
	// KindProtocol wraps a framing error from the wire package.
	KindProtocol
	// KindIO wraps an underlying transport error.
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindLoginRejected:
		return "LoginRejected"
	case KindLoggedOut:
		return "LoggedOut"
	case KindSessionEnded:
		return "SessionEnded"
	case KindServerTimedOut:
		return "ServerTimedOut"
	case KindProtocol:
		return "Protocol"
	case KindIO:
		return "Io"
	default:
		return "Unknown"
	}
}

// CloseError explains why a client connection or server-side connection
// handler terminated.
type CloseError struct {
	Kind   Kind
	Reason wire.RejectReason // valid only when Kind == KindLoginRejected
	Err    error
}

func (e *CloseError) Error() string {
	if e.Kind == KindLoginRejected {
		return fmt.Sprintf("soupbin: login rejected: %s", e.Reason)
	}
	if e.Err != nil {
		return fmt.Sprintf("soupbin: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("soupbin: %s", e.Kind)
}

func (e *CloseError) Unwrap() error {
	return e.Err
}

// closeSlot is the single atomic "first error wins" cell shared by a
// connection's read loop, write path, and heartbeat timer. Only one caller
// ever successfully sets it; everyone else observes the winner.
type closeSlot struct {
	err atomic.Pointer[CloseError]
}

// set stores err if nothing has been stored yet. It reports whether this
// call was the one that won.
func (c *closeSlot) set(err *CloseError) bool {
	return c.err.CompareAndSwap(nil, err)
}

// get returns the stored close error, or nil if the slot is still open.
func (c *closeSlot) get() *CloseError {
	return c.err.Load()
}

func (c *closeSlot) closed() bool {
	return c.err.Load() != nil
}

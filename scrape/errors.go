package scrape

import (
	"errors"
	"fmt"
	"strings"
)

// ErrContainerMissing is returned by a Poller when the room's message
// container is not present in the DOM. The loop retries a bounded number of
// consecutive times (page transitions look identical to a lost session for
// one or two polls) before declaring the session lost.
var ErrContainerMissing = errors.New("chat message container not found")

// AuthError means the login flow did not reach the post-login marker within
// the bounded wait. Fatal for the run; login is not retried automatically.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return fmt.Sprintf("login failed: %v", e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

// NavigationError means the requested room could not be activated, including
// asking for a room the scraper does not support.
type NavigationError struct {
	Room string
	Err  error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigate to room %q: %v", e.Room, e.Err)
}
func (e *NavigationError) Unwrap() error { return e.Err }

// SendError means an outgoing message could not be posted. Non-fatal: the
// loop keeps polling, and callers report it locally.
type SendError struct {
	Err error
}

func (e *SendError) Error() string { return fmt.Sprintf("send message: %v", e.Err) }
func (e *SendError) Unwrap() error { return e.Err }

// SessionLostError means the browser or page became unusable mid-loop. The
// loop stops; log records already appended are preserved.
type SessionLostError struct {
	Err error
}

func (e *SessionLostError) Error() string { return fmt.Sprintf("session lost: %v", e.Err) }
func (e *SessionLostError) Unwrap() error { return e.Err }

// IsSessionLost reports whether err indicates an unusable session.
func IsSessionLost(err error) bool {
	var sl *SessionLostError
	return errors.As(err, &sl)
}

// ErrorClass separates driver failures the loop may ride out from ones that
// mean the session is gone.
type ErrorClass int

const (
	// ErrorClassTransient covers failures worth retrying on the next cycle:
	// an element briefly absent, an evaluate timing out during a reflow.
	ErrorClassTransient ErrorClass = iota
	// ErrorClassSessionLost covers failures that mean the browser, target, or
	// devtools connection is gone and polling can never succeed again.
	ErrorClassSessionLost
)

func (ec ErrorClass) String() string {
	switch ec {
	case ErrorClassTransient:
		return "transient"
	case ErrorClassSessionLost:
		return "session_lost"
	default:
		return "unknown"
	}
}

// ClassifyPollError classifies a poll failure from the browser driver.
//
// Session-lost (stop the loop):
// - the devtools target or browser process is gone (target closed/crashed)
// - the websocket transport to the browser dropped
// - the page context was cancelled underneath us
// - hard network-stack navigation failures (net::ERR_*)
//
// Transient (retry next cycle):
// - a selector not matching yet, evaluate/wait deadline during a reflow
// - the container briefly missing (ErrContainerMissing)
// - anything unrecognized, to avoid giving up on a live session too early
func ClassifyPollError(err error) ErrorClass {
	if err == nil {
		return ErrorClassTransient
	}
	if errors.Is(err, ErrContainerMissing) {
		return ErrorClassTransient
	}

	lower := strings.ToLower(err.Error())

	sessionLostPatterns := []string{
		"target closed",
		"target crashed",
		"session closed",
		"browser closed",
		"websocket",
		"connection closed",
		"context canceled",
		"net::err",
		"page load error",
	}
	for _, pattern := range sessionLostPatterns {
		if strings.Contains(lower, pattern) {
			return ErrorClassSessionLost
		}
	}

	return ErrorClassTransient
}

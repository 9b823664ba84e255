package auth

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies an AuthError
type ErrorKind int

const (
	KindTransport ErrorKind = iota + 1
	KindServerRejected
	KindMalformedResponse
	KindExpired
	KindDenied
	KindPollRejected
	KindPollTransport
	KindStoreUnavailable
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport error"
	case KindServerRejected:
		return "server rejected request"
	case KindMalformedResponse:
		return "malformed response"
	case KindExpired:
		return "device code expired"
	case KindDenied:
		return "authorization denied"
	case KindPollRejected:
		return "poll rejected"
	case KindPollTransport:
		return "poll failed"
	case KindStoreUnavailable:
		return "credential store unavailable"
	default:
		return "unknown error"
	}
}

// Phase names the step of the flow an error came from
type Phase string

const (
	PhaseCodeRequest Phase = "device code request"
	PhasePolling     Phase = "polling"
	PhaseIdentity    Phase = "identity resolution"
	PhaseStorage     Phase = "storage"
)

// AuthError is the error type returned by every exported operation in this package
type AuthError struct {
	Kind  ErrorKind
	Phase Phase
	// Status is the HTTP status for ServerRejected and PollTransport
	Status int
	// Code and Description carry the provider error for Denied and PollRejected
	Code        string
	Description string
	Err         error
}

func (e *AuthError) Error() string {
	var b strings.Builder
	if e.Phase != "" {
		b.WriteString(string(e.Phase))
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, ": %s", e.Code)
		if e.Description != "" {
			fmt.Fprintf(&b, " (%s)", e.Description)
		}
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	switch e.Kind {
	case KindExpired, KindDenied:
		b.WriteString("; run ghdevice again to restart authentication")
	}
	return b.String()
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Is matches sentinels by kind so callers can write errors.Is(err, auth.ErrExpired).
// A denial is also a poll rejection, so ErrPollRejected matches KindDenied too.
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	if !ok || t.Phase != "" || t.Status != 0 || t.Code != "" {
		return false
	}
	if t.Kind == KindPollRejected && e.Kind == KindDenied {
		return true
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is
var (
	ErrTransport         = &AuthError{Kind: KindTransport}
	ErrServerRejected    = &AuthError{Kind: KindServerRejected}
	ErrMalformedResponse = &AuthError{Kind: KindMalformedResponse}
	ErrExpired           = &AuthError{Kind: KindExpired}
	ErrDenied            = &AuthError{Kind: KindDenied}
	ErrPollRejected      = &AuthError{Kind: KindPollRejected}
	ErrPollTransport     = &AuthError{Kind: KindPollTransport}
	ErrStoreUnavailable  = &AuthError{Kind: KindStoreUnavailable}

	// ErrUnauthorized is returned by identity resolvers when the token is rejected
	ErrUnauthorized = errors.New("token rejected by identity endpoint")
)

// KindOf returns the kind of the first AuthError in err's chain, or 0
func KindOf(err error) ErrorKind {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return 0
}

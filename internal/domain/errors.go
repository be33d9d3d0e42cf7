package domain

import "fmt"

// ErrorKind is one of the caller-facing error kinds from spec §7.
type ErrorKind string

const (
	ErrKindItemNotFound        ErrorKind = "item-not-found"
	ErrKindInvalidState        ErrorKind = "invalid-state"
	ErrKindNetworkTimeout      ErrorKind = "network-timeout"
	ErrKindMalformedPlaylist   ErrorKind = "malformed-playlist"
	ErrKindUnknownPlaylistType ErrorKind = "unknown-playlist-type"
	ErrKindInvalidInternalState ErrorKind = "invalid-internal-state"
	ErrKindHTTPFailure         ErrorKind = "http-failure"
	ErrKindDBFailure           ErrorKind = "db-failure"
)

// Error is the typed error surfaced to callers of the core (spec §7).
type Error struct {
	Kind       ErrorKind
	Message    string
	URL        string // set for network-timeout / http-failure
	StatusCode int    // set for http-failure
	Err        error  // underlying cause, if any
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrKindHTTPFailure:
		return fmt.Sprintf("%s: http status %d for %s: %s", e.Kind, e.StatusCode, e.URL, e.Message)
	case ErrKindNetworkTimeout:
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.URL, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is supports errors.Is against a sentinel built with the same Kind, e.g.
// errors.Is(err, &Error{Kind: ErrKindItemNotFound}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func NewItemNotFound(id string) *Error {
	return &Error{Kind: ErrKindItemNotFound, Message: fmt.Sprintf("item %q not found", id)}
}

func NewInvalidState(id string, from, to State) *Error {
	return &Error{Kind: ErrKindInvalidState, Message: fmt.Sprintf("item %q cannot move from %s to %s", id, from, to)}
}

func NewNetworkTimeout(url string, err error) *Error {
	return &Error{Kind: ErrKindNetworkTimeout, URL: url, Message: "request timed out", Err: err}
}

func NewMalformedPlaylist(reason string) *Error {
	return &Error{Kind: ErrKindMalformedPlaylist, Message: reason}
}

func NewUnknownPlaylistType(url string) *Error {
	return &Error{Kind: ErrKindUnknownPlaylistType, URL: url, Message: "could not classify playlist"}
}

func NewInvalidInternalState(reason string) *Error {
	return &Error{Kind: ErrKindInvalidInternalState, Message: reason}
}

func NewHTTPFailure(url string, status int, err error) *Error {
	return &Error{Kind: ErrKindHTTPFailure, URL: url, StatusCode: status, Message: "unexpected status", Err: err}
}

func NewDBFailure(err error) *Error {
	return &Error{Kind: ErrKindDBFailure, Message: "store operation failed", Err: err}
}

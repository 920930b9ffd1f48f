package upstream

import (
	"errors"
	"fmt"
)

var (
	// ErrNetwork is the kind for transport failures, including timeouts.
	ErrNetwork = errors.New("upstream network error")

	// ErrHTTP is the kind for non-2xx upstream responses.
	ErrHTTP = errors.New("upstream http error")

	// ErrParse is the kind for unexpected HTML/JSON shapes, including
	// token-extraction failures.
	ErrParse = errors.New("upstream parse error")

	// ErrSessionExpired is returned when the upstream answers a token update
	// with a logout signal: the presented fingerprint's session is invalid.
	ErrSessionExpired = errors.New("upstream session expired")

	// ErrInvalidArgument is a programming error: a required argument
	// (typically the fingerprint) was empty. It is never defaulted away.
	ErrInvalidArgument = errors.New("invalid argument")
)

// NetworkError wraps a transport-level failure for one upstream operation.
type NetworkError struct {
	Op  string
	Err error
}

func (e NetworkError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, ErrNetwork.Error(), e.Err)
}

func (e NetworkError) Unwrap() error { return ErrNetwork }

// HTTPError carries the non-2xx status of an upstream response.
type HTTPError struct {
	Op     string
	Status int
}

func (e HTTPError) Error() string {
	return fmt.Sprintf("%s: %s: status %d", e.Op, ErrHTTP.Error(), e.Status)
}

func (e HTTPError) Unwrap() error { return ErrHTTP }

// ParseError describes an upstream response whose shape was not the one the
// protocol expects.
type ParseError struct {
	Op     string
	Reason string
}

func (e ParseError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Op, ErrParse.Error(), e.Reason)
}

func (e ParseError) Unwrap() error { return ErrParse }

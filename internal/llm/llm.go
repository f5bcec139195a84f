// Package llm provides text generation backends behind a single Client interface.
// Backend failures are reported as *Error values carrying a Kind so callers decide
// fallbacks on error classification instead of message text.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Client generates text for a prompt
type Client interface {
	Name() string
	Generate(ctx context.Context, prompt string, opts Options) (string, error)
}

// Pinger is implemented by backends that can report reachability without generating
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options tunes a single generation call
type Options struct {
	MaxTokens   int
	Temperature float64
}

const (
	DefaultMaxTokens   = 512
	DefaultTemperature = 0.7
)

func (o Options) withDefaults() Options {
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	if o.Temperature <= 0 {
		o.Temperature = DefaultTemperature
	}
	return o
}

// Kind classifies a backend failure
type Kind int

const (
	// KindTransport covers network failures, 5xx responses, undecodable bodies and open breakers
	KindTransport Kind = iota
	// KindAuth means the credentials were rejected or the model is gated (401/403)
	KindAuth
	// KindNotFound means the model does not exist on the backend (404)
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	default:
		return "transport"
	}
}

// Error is the typed failure returned by every backend
type Error struct {
	Kind    Kind
	Backend string
	Model   string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s error (model %s, status %d): %v", e.Backend, e.Kind, e.Model, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s error (model %s): %v", e.Backend, e.Kind, e.Model, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindForStatus maps an HTTP status code to an error kind
func KindForStatus(status int) Kind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindAuth
	case http.StatusNotFound:
		return KindNotFound
	default:
		return KindTransport
	}
}

func kindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return KindTransport, false
}

// IsAuth reports whether err is an authentication/authorization failure
func IsAuth(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindAuth
}

// IsNotFound reports whether err means the requested model is unknown
func IsNotFound(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindNotFound
}

// IsTransport reports whether err is a transport level failure. Untyped errors count as transport.
func IsTransport(err error) bool {
	if err == nil {
		return false
	}
	k, _ := kindOf(err)
	return k == KindTransport
}

package watari

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is checks at the boundary.
var (
	// ErrRequest covers transport-level failures and non-success HTTP
	// statuses when talking to the API, a manifest, a key or a segment URL.
	ErrRequest = errors.New("watari: request failed")
	// ErrDecode means a payload could not be parsed as the expected format.
	ErrDecode = errors.New("watari: undecodable payload")
	// ErrProtocol means a payload parsed fine but is missing data this
	// library depends on.
	ErrProtocol = errors.New("watari: manifest missing required data")
	// ErrCrypto means AES-CBC decryption or PKCS7 unpadding of a segment
	// failed.
	ErrCrypto = errors.New("watari: segment decryption failed")
	// ErrAuthorization means the upstream refused access with a structured
	// error body where a manifest was expected.
	ErrAuthorization = errors.New("watari: access denied by upstream")
)

// RequestError is returned for any failure to reach or be served by an
// upstream URL. It is never retried internally; retry policy belongs to
// the caller.
type RequestError struct {
	Operation  string
	URL        string
	Status     int // 0 if the request never got a response
	RetryAfter int // seconds, from a 429 response; 0 if absent
	Err        error
}

func (e *RequestError) Error() string {
	msg := fmt.Sprintf("watari: %s: request failed", e.Operation)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.RetryAfter > 0 {
		msg = fmt.Sprintf("%s, retry in %ds", msg, e.RetryAfter)
	}
	if e.URL != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.URL)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *RequestError) Unwrap() error { return ErrRequest }

// DecodeError carries the raw payload that failed to parse so callers can
// inspect what the upstream actually served.
type DecodeError struct {
	URL string
	Raw []byte
	Err error
}

func (e *DecodeError) Error() string {
	msg := "watari: undecodable payload"
	if e.URL != "" {
		msg = fmt.Sprintf("%s from %s", msg, e.URL)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return ErrDecode }

// ProtocolError means the manifest was well-formed but semantically
// incomplete: a field this library depends on is absent or unusable.
type ProtocolError struct {
	Field string
	URL   string
}

func (e *ProtocolError) Error() string {
	msg := fmt.Sprintf("watari: manifest missing required data: %s", e.Field)
	if e.URL != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.URL)
	}
	return msg
}

func (e *ProtocolError) Unwrap() error { return ErrProtocol }

// CryptoError is terminal for the affected segment. It is not retried with
// a different key; key selection is resolved during segment planning.
type CryptoError struct {
	URL string
	Err error
}

func (e *CryptoError) Error() string {
	msg := "watari: segment decryption failed"
	if e.URL != "" {
		msg = fmt.Sprintf("%s for %s", msg, e.URL)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *CryptoError) Unwrap() error { return ErrCrypto }

// AuthorizationError is raised when a manifest endpoint answers with a
// structured JSON error body instead of a manifest. It is distinct from a
// transport-level 403 because the upstream hides it behind an HTTP 200.
type AuthorizationError struct {
	URL     string
	Message string
}

func (e *AuthorizationError) Error() string {
	msg := "watari: access denied by upstream"
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.URL != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.URL)
	}
	return msg
}

func (e *AuthorizationError) Unwrap() error { return ErrAuthorization }

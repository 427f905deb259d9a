package apiclient

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/jrsteele09/go-moviezone-client/internal/utils"
)

// Kind classifies a failed call so callers can tell connectivity problems,
// authentication problems and application errors apart.
type Kind int

const (
	KindUnknown            Kind = iota
	KindConnectivity            // the request never got a response
	KindUnauthorized            // 401 left after the single refresh-and-retry
	KindInvalidCredentials      // login or registration rejected by the backend
	KindApplication             // any other non-2xx response
)

func (k Kind) String() string {
	switch k {
	case KindConnectivity:
		return "connectivity"
	case KindUnauthorized:
		return "unauthorized"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindApplication:
		return "application"
	default:
		return "unknown"
	}
}

var (
	ErrNoRefreshToken  = errors.New("no refresh token stored")
	ErrSessionExpired  = errors.New("session expired")
	ErrRefreshRejected = errors.New("token refresh rejected")
	ErrNoCredential    = errors.New("no access token set")
)

// Error describes a failed call to the backend.
type Error struct {
	Op     string // operation, e.g. "GET movies/movies/"
	Kind   Kind
	Status int // HTTP status, 0 when no response arrived
	Detail any // decoded JSON error payload, nil when absent or not JSON
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return "api client error"
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s: %d %s", e.Op, e.Status, e.Message())
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message())
}

func (e *Error) Unwrap() error { return e.Err }

// Message renders a human readable message from the backend payload.
// Django REST framework answers with {"detail": "..."}, {"non_field_errors": [...]}
// or per-field lists such as {"username": ["already exists"]}.
func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	if msg := detailMessage(e.Detail); msg != "" {
		return msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Status != 0 {
		return http.StatusText(e.Status)
	}
	return ""
}

// MessageOr is Message with a fallback used when the backend gave no detail.
func (e *Error) MessageOr(fallback string) string {
	if e == nil {
		return fallback
	}
	if msg := detailMessage(e.Detail); msg != "" {
		return msg
	}
	return fallback
}

// FieldErrors returns the per-field validation messages of the payload.
func (e *Error) FieldErrors() map[string][]string {
	fields := make(map[string][]string)
	if e == nil {
		return fields
	}
	payload, ok := e.Detail.(map[string]any)
	if !ok {
		return fields
	}
	for k, v := range payload {
		switch value := v.(type) {
		case []any:
			fields[k] = utils.ToStringSlice(value)
		case string:
			fields[k] = []string{value}
		}
	}
	return fields
}

func detailMessage(detail any) string {
	switch payload := detail.(type) {
	case string:
		return strings.TrimSpace(payload)
	case []any:
		return utils.FirstString(payload)
	case map[string]any:
		for _, key := range []string{"detail", "non_field_errors", "error", "message"} {
			if msg := utils.FirstString(payload[key]); msg != "" {
				return msg
			}
		}
		keys := make([]string, 0, len(payload))
		for k := range payload {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if msg := utils.FirstString(payload[k]); msg != "" {
				return msg
			}
		}
	}
	return ""
}

// AsError finds the *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// KindOf returns the Kind of err, KindUnknown for foreign errors.
func KindOf(err error) Kind {
	if apiErr, ok := AsError(err); ok {
		return apiErr.Kind
	}
	return KindUnknown
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

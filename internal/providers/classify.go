package providers

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind is the stable, provider-independent classification of a failed
// upstream call.
type ErrorKind int

const (
	// CredentialNotConfigured means the provider reports no API key on
	// file. User-actionable: add a key.
	CredentialNotConfigured ErrorKind = iota
	// CredentialInvalid means the provider rejected the key. User-
	// actionable: fix the key.
	CredentialInvalid
	// UpstreamError is any other non-2xx provider response, carrying the
	// original status and message.
	UpstreamError
	// UpstreamUnreachable is a transport failure with no status code.
	UpstreamUnreachable
)

func (k ErrorKind) String() string {
	switch k {
	case CredentialNotConfigured:
		return "credential_not_configured"
	case CredentialInvalid:
		return "credential_invalid"
	case UpstreamError:
		return "upstream_error"
	case UpstreamUnreachable:
		return "upstream_unreachable"
	}
	return "unknown"
}

type ProviderError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s (status %d): %s", e.Kind, e.StatusCode, e.Message)
}

// Classify maps an upstream (status, message) pair into the stable error
// vocabulary. The message-content rule is checked before the status-code
// rule, so a 401 carrying an "api key not found" body is reported as
// CredentialNotConfigured rather than CredentialInvalid. Callers present
// the former as "add your key" and the latter as "your key is wrong".
func Classify(statusCode int, rawMessage string) *ProviderError {
	if strings.Contains(strings.ToLower(rawMessage), "api key not found") {
		return &ProviderError{
			Kind:       CredentialNotConfigured,
			StatusCode: http.StatusBadRequest,
			Message:    "API key not found. Add your provider key in profile settings.",
		}
	}
	if statusCode == http.StatusUnauthorized {
		return &ProviderError{
			Kind:       CredentialInvalid,
			StatusCode: http.StatusUnauthorized,
			Message:    "API key is incorrect. Check it in profile settings.",
		}
	}
	return &ProviderError{
		Kind:       UpstreamError,
		StatusCode: statusCode,
		Message:    rawMessage,
	}
}

// ClassifyTransport covers failures where no status code exists: dial
// errors, resets, idle-stream timeouts.
func ClassifyTransport(err error) *ProviderError {
	msg := "upstream unreachable"
	if err != nil {
		msg = err.Error()
	}
	return &ProviderError{
		Kind:       UpstreamUnreachable,
		StatusCode: http.StatusInternalServerError,
		Message:    msg,
	}
}

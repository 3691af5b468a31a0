package mail

import (
	"errors"
	"fmt"
	"net/textproto"
	"strings"
)

var (
	// ErrAuth is returned when the relay rejects the sender credentials.
	ErrAuth = errors.New("relay rejected credentials")
	// ErrRateLimit is returned when the relay refuses further messages for the day.
	ErrRateLimit = errors.New("relay daily sending limit reached")
	// ErrTransport covers every other connection or protocol failure.
	ErrTransport = errors.New("mail transport failure")
)

// SendError carries the classified kind and, if the relay answered, its SMTP reply code.
type SendError struct {
	Kind error
	Code int
	Err  error
}

func (e *SendError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%v (smtp %d): %v", e.Kind, e.Code, e.Err)
	}
	return fmt.Sprintf("%v: %v", e.Kind, e.Err)
}

func (e *SendError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// Phrases Gmail and compatible relays use for the per-account daily quota.
var rateLimitPhrases = []string{
	"daily user sending limit exceeded",
	"daily sending quota exceeded",
}

func replyCode(err error) (int, string) {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		return tpErr.Code, tpErr.Msg
	}
	return 0, err.Error()
}

func isRateLimit(msg string) bool {
	lower := strings.ToLower(msg)
	if strings.HasPrefix(strings.TrimSpace(lower), "5.4.5") {
		return true
	}
	for _, p := range rateLimitPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func isAuthFailure(code int, msg string) bool {
	switch code {
	case 530, 534, 535:
		return true
	}
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "username and password not accepted") ||
		strings.Contains(lower, "authentication failed")
}

// classifyConnect maps an error from dial, STARTTLS or AUTH.
func classifyConnect(err error) *SendError {
	code, msg := replyCode(err)
	kind := ErrTransport
	if isAuthFailure(code, msg) {
		kind = ErrAuth
	}
	return &SendError{Kind: kind, Code: code, Err: err}
}

// classifySend maps an error from a single MAIL/RCPT/DATA exchange.
func classifySend(err error) *SendError {
	code, msg := replyCode(err)
	kind := ErrTransport
	switch {
	case isRateLimit(msg):
		kind = ErrRateLimit
	case isAuthFailure(code, msg):
		kind = ErrAuth
	}
	return &SendError{Kind: kind, Code: code, Err: err}
}

// Reason is a short label for metrics and logs.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRateLimit):
		return "rate_limit"
	case errors.Is(err, ErrAuth):
		return "auth"
	default:
		return "transport"
	}
}

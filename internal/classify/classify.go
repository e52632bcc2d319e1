// Package classify maps raw extraction failures onto a closed taxonomy with a
// fixed retry verdict. Classification is deterministic: it looks only at the
// error's type and text, never at attempt counters or wall-clock state.
package classify

import (
	"context"
	"net"
	"strings"

	"github.com/pkg/errors"

	"tubegrab/internal/extractor"
)

// Kind is one failure class.
type Kind string

const (
	KindInvalidInput     Kind = "InvalidInput"
	KindAuthRequired     Kind = "AuthRequired"
	KindNoContent        Kind = "NoContent"
	KindRateLimited      Kind = "RateLimited"
	KindTransientNetwork Kind = "TransientNetwork"
	KindUnknown          Kind = "Unknown"
)

// Hint returns the actionable message surfaced to users for terminal kinds.
func (k Kind) Hint() string {
	switch k {
	case KindInvalidInput:
		return "the source URL is malformed or unsupported"
	case KindAuthRequired:
		return "the source requires authentication; upload your cookies and retry"
	case KindNoContent:
		return "the video has no extractable content of the requested kind"
	}
	return ""
}

// Substrings of upstream failure text, matched case-insensitively. The bot
// check phrasing comes verbatim from YouTube's challenge page.
var (
	authSignals = []string{
		"sign in to confirm you're not a bot",
		"sign in to confirm your age",
		"login required",
		"age restricted",
		"not a bot",
	}
	// 429 is only matched in status-code phrasings; a bare "429" would also
	// hit byte counts and ids embedded in unrelated error text.
	rateSignals = []string{
		"status code: 429",
		"http 429",
		"too many requests",
		"rate limit",
		"quota exceeded",
	}
	networkSignals = []string{
		"timeout",
		"timed out",
		"connection reset",
		"connection refused",
		"no such host",
		"broken pipe",
		"unexpected eof",
	}
)

// Classify maps err to its kind and whether a retry could help.
func Classify(err error) (Kind, bool) {
	if err == nil {
		return KindUnknown, false
	}

	switch {
	case errors.Is(err, extractor.ErrInvalidURL):
		return KindInvalidInput, false
	case errors.Is(err, extractor.ErrAuthRequired):
		return KindAuthRequired, false
	case errors.Is(err, extractor.ErrNoContent):
		return KindNoContent, false
	case errors.Is(err, context.DeadlineExceeded):
		return KindTransientNetwork, true
	}

	if netErr, ok := asNetError(err); ok && netErr.Timeout() {
		return KindTransientNetwork, true
	}

	text := strings.ToLower(err.Error())
	if containsAny(text, authSignals) {
		return KindAuthRequired, false
	}
	if containsAny(text, rateSignals) {
		return KindRateLimited, true
	}
	if containsAny(text, networkSignals) {
		return KindTransientNetwork, true
	}

	// Unrecognized failures stay retryable; the attempt budget bounds them.
	return KindUnknown, true
}

func asNetError(err error) (net.Error, bool) {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr, true
	}
	return nil, false
}

func containsAny(text string, signals []string) bool {
	for _, s := range signals {
		if strings.Contains(text, s) {
			return true
		}
	}
	return false
}

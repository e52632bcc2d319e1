package classify

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"tubegrab/internal/extractor"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		kind      Kind
		retryable bool
	}{
		{"nil", nil, KindUnknown, false},
		{"invalid url sentinel", extractor.ErrInvalidURL, KindInvalidInput, false},
		{"wrapped invalid url", errors.Wrap(extractor.ErrInvalidURL, "parsing"), KindInvalidInput, false},
		{"auth sentinel", extractor.ErrAuthRequired, KindAuthRequired, false},
		{"no content sentinel", extractor.ErrNoContent, KindNoContent, false},
		{"deadline", context.DeadlineExceeded, KindTransientNetwork, true},
		{"bot check text", errors.New("ERROR: Sign in to confirm you're not a bot"), KindAuthRequired, false},
		{"age restriction text", errors.New("this video is age restricted"), KindAuthRequired, false},
		{"http 429", errors.New("HTTP 429 Too Many Requests"), KindRateLimited, true},
		{"status code 429", errors.New("unexpected status code: 429"), KindRateLimited, true},
		{"quota", errors.New("quota exceeded for this key"), KindRateLimited, true},
		{"digits that merely contain 429", errors.New("copied 84290 bytes then stream closed"), KindUnknown, true},
		{"connection reset", errors.New("read tcp: connection reset by peer"), KindTransientNetwork, true},
		{"dns", errors.New("dial tcp: lookup www.youtube.com: no such host"), KindTransientNetwork, true},
		{"timeout text", errors.New("request timed out"), KindTransientNetwork, true},
		{"unrecognized", errors.New("something odd happened"), KindUnknown, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, retryable := Classify(tt.err)
			assert.Equal(t, tt.kind, kind)
			assert.Equal(t, tt.retryable, retryable)
		})
	}
}

func TestClassifyFailureWrapper(t *testing.T) {
	err := &extractor.Failure{Reason: "video lookup failed", Err: extractor.ErrAuthRequired}
	kind, retryable := Classify(err)
	assert.Equal(t, KindAuthRequired, kind)
	assert.False(t, retryable)
}

func TestClassifyDeterministic(t *testing.T) {
	err := errors.New("HTTP 429 Too Many Requests")
	first, _ := Classify(err)
	for i := 0; i < 5; i++ {
		kind, _ := Classify(err)
		assert.Equal(t, first, kind)
	}
}

func TestHint(t *testing.T) {
	assert.NotEmpty(t, KindInvalidInput.Hint())
	assert.NotEmpty(t, KindAuthRequired.Hint())
	assert.NotEmpty(t, KindNoContent.Hint())
	assert.Empty(t, KindTransientNetwork.Hint())
	assert.Empty(t, KindUnknown.Hint())
}

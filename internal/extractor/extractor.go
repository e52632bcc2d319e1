// Package extractor defines the contract between the job orchestration core
// and the media/transcript extraction capability. The core treats extraction
// as an opaque, slow, unreliable call; implementations live elsewhere.
package extractor

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"tubegrab/internal/models"
)

// Typed signals implementations should surface where they can tell; anything
// else arrives as free-form error text and is classified downstream.
var (
	ErrInvalidURL   = errors.New("invalid source URL")
	ErrNoContent    = errors.New("no extractable content")
	ErrAuthRequired = errors.New("authentication required")
)

// Output is one file produced by an extraction, still at its temporary path.
type Output struct {
	FormatTag string
	Path      string
}

// Result is the outcome of a successful extraction. ScratchDir, when set, is
// the temporary directory holding the Outputs; the consumer removes it once
// the outputs are consumed.
type Result struct {
	VideoID      string
	LanguageCode string
	Title        string
	Outputs      []Output
	ScratchDir   string
}

// Failure wraps a raw extraction failure with its upstream reason text.
type Failure struct {
	Reason string
	Err    error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("extraction failed: %s: %v", f.Reason, f.Err)
	}
	return "extraction failed: " + f.Reason
}

func (f *Failure) Unwrap() error { return f.Err }

// Extractor performs the actual retrieval. The credential blob, when non-nil,
// is a plaintext cookie-jar the implementation may use to authenticate.
type Extractor interface {
	Extract(ctx context.Context, url string, downloadType models.DownloadType, credentials []byte) (*Result, error)
}

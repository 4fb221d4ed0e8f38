package domain

import (
	"errors"
	"fmt"
)

// Extraction and navigation errors.
var (
	// ErrMissingField marks a draft without a required field.
	ErrMissingField = errors.New("required field is empty")

	// ErrNavigation covers timeouts, DNS failures and non-200 responses.
	ErrNavigation = errors.New("navigation failed")

	// ErrListingUnsupported is returned by adapters that cannot list articles.
	ErrListingUnsupported = errors.New("listing is not supported by this adapter")
)

// Storage errors.
var (
	ErrNotFound  = errors.New("article not found")
	ErrDuplicate = errors.New("article with this original url already exists")
)

// Lifecycle errors.
var (
	ErrInvalidTransition = errors.New("invalid lifecycle transition")
	ErrUnknownAction     = errors.New("unknown review action")
)

// Summarizer errors. Both are retryable later and surfaced distinctly from other failures.
var (
	ErrRateLimited        = errors.New("summarizer rate limited")
	ErrServiceUnavailable = errors.New("summarizer unavailable")
)

// ErrRunInProgress is returned when a crawl run is requested while another one is active.
var ErrRunInProgress = errors.New("crawl run already in progress")

// Extraction stages recorded on ExtractionError.
const (
	StageNavigate = "navigate"
	StageParse    = "parse"
	StageExtract  = "extract"
	StageValidate = "validate"
	StageList     = "list"
)

// ExtractionError carries the URL and stage at which an adapter gave up.
type ExtractionError struct {
	URL   string
	Stage string
	Err   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s (%s): %v", e.URL, e.Stage, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether the orchestrator may retry the extraction.
// Only navigation failures qualify; a page that rendered without the fields will not change.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNavigation)
}

func missingField(name string) error {
	return fmt.Errorf("%s: %w", name, ErrMissingField)
}

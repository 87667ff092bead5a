package tracking

import "strings"

// Status is the lifecycle state of a transcription job in the tracking ledger.
type Status string

const (
	StatusProcessing           Status = "processing"
	StatusSubmitted            Status = "submitted"
	StatusRunning              Status = "running"
	StatusProcessingTranscript Status = "processing_transcript"
	StatusDone                 Status = "done"
	StatusRejected             Status = "rejected"

	// StatusRateLimited is never persisted; a poll that sees it leaves the row alone.
	StatusRateLimited Status = "rate_limited"
	// StatusFetchingStatusError marks a transient poll failure and is polled again.
	StatusFetchingStatusError Status = "error_fetching_status"

	StatusMissingJobID    Status = "error_missing_jobid"
	StatusTranscriptError Status = "error_transcript"
	StatusUploadError     Status = "error_gcs_upload"
	StatusRelocateError   Status = "error_move_gcs"
	StatusCompletionError Status = "error_completion"
	StatusAuthError       Status = "error_auth"
	StatusNotFoundError   Status = "error_not_found"
	StatusBadResponse     Status = "error_bad_response"
	StatusProviderError   Status = "error_provider"
	StatusSubmitError     Status = "cloudrun_error"
	StatusSubmitNoJobID   Status = "cloudrun_no_jobid"
)

var allStatuses = []Status{
	StatusProcessing,
	StatusSubmitted,
	StatusRunning,
	StatusProcessingTranscript,
	StatusDone,
	StatusRejected,
	StatusRateLimited,
	StatusFetchingStatusError,
	StatusMissingJobID,
	StatusTranscriptError,
	StatusUploadError,
	StatusRelocateError,
	StatusCompletionError,
	StatusAuthError,
	StatusNotFoundError,
	StatusBadResponse,
	StatusProviderError,
	StatusSubmitError,
	StatusSubmitNoJobID,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var terminalStatuses = map[Status]struct{}{
	StatusDone:            {},
	StatusRejected:        {},
	StatusMissingJobID:    {},
	StatusTranscriptError: {},
	StatusUploadError:     {},
	StatusRelocateError:   {},
	StatusCompletionError: {},
	StatusAuthError:       {},
	StatusNotFoundError:   {},
	StatusBadResponse:     {},
	StatusProviderError:   {},
	StatusSubmitError:     {},
	StatusSubmitNoJobID:   {},
}

// ParseStatus normalizes a ledger or provider value into a known status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := statusSet[normalized]; ok {
		return normalized, true
	}
	switch normalized {
	case "completed", "complete", "succeeded":
		return StatusDone, true
	case "failed", "error":
		return StatusProviderError, true
	case "queued", "pending":
		return StatusSubmitted, true
	case "in_progress", "transcribing":
		return StatusRunning, true
	}
	return "", false
}

// AllStatuses returns every known status in lifecycle order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// IsTerminal reports whether no further polling transition is expected.
func (s Status) IsTerminal() bool {
	_, ok := terminalStatuses[s]
	return ok
}

// IsError reports whether the status is one of the terminal error markers.
func (s Status) IsError() bool {
	return s.IsTerminal() && s != StatusDone && s != StatusRejected
}

// IsKnown reports whether s belongs to the closed vocabulary.
func (s Status) IsKnown() bool {
	_, ok := statusSet[s]
	return ok
}

func (s Status) String() string { return string(s) }

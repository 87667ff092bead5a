// Package tracking owns the transcription job vocabulary and the tracking
// ledger that records one JobRecord per recording.
//
// Statuses form a closed set: processing before submission, the active
// submitted/running/processing_transcript states, and terminal done,
// rejected or named error states. error_fetching_status is a transient
// marker that keeps a row in the polling set. rate_limited is never written.
package tracking

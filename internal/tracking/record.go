package tracking

import (
	"strings"
	"time"
)

// JobRecord is one row of the tracking ledger: a recording and the
// transcription job that handles it.
type JobRecord struct {
	// Row is the 1-based sheet row; zero until the record is appended.
	Row       int
	FileName  string
	JobID     string
	Status    Status
	Timestamp time.Time
}

// HasJobID reports whether the provider handle is present.
func (r JobRecord) HasJobID() bool {
	return strings.TrimSpace(r.JobID) != ""
}

// Columns is the fixed tracking sheet schema.
var Columns = []string{"FileName", "JobID", "Status", "Timestamp"}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTimestamp(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}

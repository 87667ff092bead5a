package testsupport

import (
	"context"
	"sync"
	"time"

	"coachflow/internal/notifications"
)

// RecordingNotifier captures messages and alerts instead of sending them.
type RecordingNotifier struct {
	mu       sync.Mutex
	Messages []notifications.Message
	Alerts   []string
	// Err is returned from Send when set.
	Err error
}

func (r *RecordingNotifier) Send(_ context.Context, msg notifications.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Messages = append(r.Messages, msg)
	return nil
}

func (r *RecordingNotifier) NotifyStageFailures(_ context.Context, stage string, _ int, _ time.Duration, detail string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Alerts = append(r.Alerts, stage+": "+detail)
	return nil
}

func (r *RecordingNotifier) NotifyError(_ context.Context, err error, contextLabel string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Alerts = append(r.Alerts, contextLabel+": "+err.Error())
	return nil
}

func (r *RecordingNotifier) TestNotification(context.Context) error { return nil }

// Sent returns a copy of the captured messages.
func (r *RecordingNotifier) Sent() []notifications.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notifications.Message(nil), r.Messages...)
}

// Package homework turns a student's delivered transcripts into one homework
// assignment: a prompt file in the student's folder, a ledger row carrying a
// portal token, and a notification with the portal link.
package homework

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"coachflow/internal/distribution"
	"coachflow/internal/folders"
	"coachflow/internal/logging"
	"coachflow/internal/naming"
	"coachflow/internal/notifications"
	"coachflow/internal/services"
	"coachflow/internal/stage"
)

// Summary outcomes.
const (
	OutcomeAssigned     = "assigned"
	OutcomeMissingEmail = "missing_email"
	OutcomeFailed       = "assign_failed"
	OutcomeNotifyFailed = "notify_failed"
)

const (
	promptMimeType = "text/plain"
	portalPath     = "/homework-coach/?token="
	defaultSubject = "Your homework is ready"
)

// ErrMissingEmail marks a batch whose student has no email on file.
var ErrMissingEmail = fmt.Errorf("student email %w", services.ErrValidation)

// Options configures a Consolidator.
type Options struct {
	PortalBaseURL string
	Subject       string
	Location      *time.Location
}

// Consolidator produces one assignment per batch.
type Consolidator struct {
	folders  folders.Store
	ledger   *Ledger
	notifier notifications.Service
	prompt   *Prompt
	opts     Options
	now      func() time.Time
	newToken func() string
	logger   *slog.Logger
}

// NewConsolidator wires a consolidator.
func NewConsolidator(folderStore folders.Store, ledger *Ledger, notifier notifications.Service, prompt *Prompt, opts Options, logger *slog.Logger) *Consolidator {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if strings.TrimSpace(opts.Subject) == "" {
		opts.Subject = defaultSubject
	}
	opts.PortalBaseURL = strings.TrimRight(opts.PortalBaseURL, "/")
	return &Consolidator{
		folders:  folderStore,
		ledger:   ledger,
		notifier: notifier,
		prompt:   prompt,
		opts:     opts,
		now:      time.Now,
		newToken: func() string { return uuid.NewString() },
		logger:   logging.NewComponentLogger(logger, "homework"),
	}
}

// SetClock overrides the time source.
func (c *Consolidator) SetClock(now func() time.Time) {
	if now != nil {
		c.now = now
	}
}

// AssignAll folds over every non-empty batch. Per-batch failures are counted;
// the returned error is reserved for cancellation.
func (c *Consolidator) AssignAll(ctx context.Context, batches distribution.Batches) (*stage.Summary, error) {
	summary := stage.NewSummary()
	for _, batch := range batches.All() {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if len(batch.Transcripts) == 0 {
			continue
		}
		assignment, err := c.Assign(ctx, batch)
		switch {
		case errors.Is(err, ErrMissingEmail):
			summary.Fail(OutcomeMissingEmail)
		case err != nil:
			summary.Fail(OutcomeFailed)
			logging.ErrorWithContext(c.logger, "homework assignment failed",
				"assign_failed",
				logging.String(logging.FieldStudent, batch.Student.Name),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, services.Hint(err)),
			)
		default:
			summary.Inc(OutcomeAssigned)
			if !assignment.Notified {
				summary.Fail(OutcomeNotifyFailed)
			}
		}
	}
	return summary, nil
}

// Assign creates the assignment for one batch.
func (c *Consolidator) Assign(ctx context.Context, batch distribution.Batch) (Assignment, error) {
	student := batch.Student
	ctx = services.WithStudent(ctx, student.Name)
	logger := logging.WithContext(ctx, c.logger).With(logging.String(logging.FieldFolderID, student.FolderID))

	if len(batch.Transcripts) == 0 {
		return Assignment{}, services.Wrap(services.ErrValidation, "homework", "assign", "empty batch", nil)
	}
	email := strings.TrimSpace(student.Email)
	if email == "" {
		logging.WarnWithContext(logger, "student has no email; homework skipped",
			"homework_missing_email",
			logging.Int("transcripts", len(batch.Transcripts)),
			logging.String(logging.FieldErrorHint, "add the student's email to the roster"),
			logging.String(logging.FieldImpact, "no assignment is created for this batch"),
		)
		return Assignment{}, fmt.Errorf("%w: %s", ErrMissingEmail, student.Name)
	}

	now := c.now().In(c.opts.Location)
	hwID, err := c.nextHWID(ctx, student.Row, now)
	if err != nil {
		return Assignment{}, err
	}
	logger = logger.With(logging.String("hw_id", hwID))

	body, err := c.prompt.Render(PromptData{
		StudentName: student.Name,
		HWID:        hwID,
		Date:        now.Format("2006-01-02"),
		Transcripts: batch.Transcripts,
	}, student.LifestyleProfile)
	if err != nil {
		return Assignment{}, err
	}

	file, err := c.folders.CreateFile(ctx, student.FolderID, PromptFileName(batch.Transcripts[0], hwID), []byte(body), promptMimeType)
	if err != nil {
		return Assignment{}, fmt.Errorf("create prompt file: %w", err)
	}

	assignment, err := c.ledger.Append(ctx, Assignment{
		StudentID:    student.ID(),
		StudentName:  student.Name,
		StudentEmail: email,
		HWID:         hwID,
		PromptFileID: file.ID,
		Token:        c.newToken(),
		AssignedAt:   now,
		TokenStatus:  TokenActive,
		TurnsUsed:    0,
	})
	if err != nil {
		if trashErr := c.folders.TrashFile(ctx, file.ID); trashErr != nil {
			logging.WarnWithContext(logger, "could not trash prompt file after ledger failure",
				"homework_compensation_failed",
				logging.String("prompt_file_id", file.ID),
				logging.Error(trashErr),
				logging.String(logging.FieldErrorHint, "delete the orphaned prompt file by hand"),
				logging.String(logging.FieldImpact, "prompt file exists without a ledger row"),
			)
		}
		return Assignment{}, err
	}
	assignment.Transcripts = append([]string(nil), batch.Transcripts...)

	if err := c.notifier.Send(ctx, c.message(assignment)); err != nil {
		logging.WarnWithContext(logger, "homework notification failed",
			"homework_notify_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, services.Hint(err)),
			logging.String(logging.FieldImpact, "student must be sent the portal link by hand"),
		)
	} else {
		assignment.Notified = true
	}

	logger.Info("homework assigned",
		logging.String(logging.FieldEventType, "homework_assigned"),
		logging.String("prompt_file_id", file.ID),
		logging.Int("transcripts", len(batch.Transcripts)),
	)
	return assignment, nil
}

// HWID formats the base identifier for a roster row and day.
func HWID(row int, day time.Time) string {
	return "L" + strconv.Itoa(row) + "-" + day.Format("20060102")
}

// nextHWID returns the base identifier, suffixed -2, -3 and so on when the
// ledger already holds it.
func (c *Consolidator) nextHWID(ctx context.Context, row int, day time.Time) (string, error) {
	existing, err := c.ledger.HWIDs(ctx)
	if err != nil {
		return "", err
	}
	base := HWID(row, day)
	if _, taken := existing[base]; !taken {
		return base, nil
	}
	for n := 2; ; n++ {
		candidate := base + "-" + strconv.Itoa(n)
		if _, taken := existing[candidate]; !taken {
			return candidate, nil
		}
	}
}

// PromptFileName derives the prompt file name from the first transcript, or
// from hwID when the transcript name carries no fragment. A same-day suffix
// on hwID is kept in either form so repeated assignments never share a name.
func PromptFileName(firstTranscript, hwID string) string {
	date, frag, ok := naming.DateAndFragment(firstTranscript)
	if !ok {
		return "HW_" + hwID + "_prompt.txt"
	}
	name := "HW_" + date + "_" + frag
	if parts := strings.SplitN(hwID, "-", 3); len(parts) == 3 {
		name += "-" + parts[2]
	}
	return name + "_prompt.txt"
}

// PortalLink builds the student's portal URL for token.
func (c *Consolidator) PortalLink(token string) string {
	return c.opts.PortalBaseURL + portalPath + token
}

func (c *Consolidator) message(a Assignment) notifications.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", a.StudentName)
	b.WriteString("Your homework from these sessions is ready:\n")
	for _, name := range a.Transcripts {
		fmt.Fprintf(&b, "- %s\n", name)
	}
	fmt.Fprintf(&b, "\nStart here: %s\n", c.PortalLink(a.Token))
	return notifications.Message{To: a.StudentEmail, Subject: c.opts.Subject, Body: b.String()}
}

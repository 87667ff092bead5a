// Package distribution copies finished transcripts from shared storage into
// each student's folder and groups what was delivered into per-student
// batches for homework consolidation.
package distribution

import (
	"context"
	"log/slog"
	"strings"

	"coachflow/internal/folders"
	"coachflow/internal/logging"
	"coachflow/internal/naming"
	"coachflow/internal/roster"
	"coachflow/internal/services"
	"coachflow/internal/stage"
	"coachflow/internal/storage"
)

// Summary outcomes.
const (
	OutcomeSeen          = "seen"
	OutcomeUnparseable   = "unparseable"
	OutcomeExcluded      = "excluded"
	OutcomeNoMatch       = "no_roster_match"
	OutcomeNoFolder      = "missing_folder"
	OutcomeSkippedExists = "skipped_exists"
	OutcomeDelivered     = "delivered"
	OutcomeFailed        = "delivery_failed"
)

const transcriptMimeType = "text/plain"

// Result is what a distribution run hands to consolidation.
type Result struct {
	Batches Batches
	Summary *stage.Summary
}

// Engine delivers transcripts.
type Engine struct {
	store   storage.Store
	folders folders.Store
	roster  *roster.Roster
	prefix  string
	logger  *slog.Logger
}

// NewEngine wires a distribution engine reading from prefix.
func NewEngine(store storage.Store, folderStore folders.Store, students *roster.Roster, prefix string, logger *slog.Logger) *Engine {
	return &Engine{
		store:   store,
		folders: folderStore,
		roster:  students,
		prefix:  prefix,
		logger:  logging.NewComponentLogger(logger, "distribution"),
	}
}

// Run processes every .txt object under the transcripts prefix. Per-item
// failures are counted and never abort the run; only a listing failure does.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	summary := stage.NewSummary()
	batches := newBuilder()

	objects, err := storage.List(ctx, e.store, e.prefix)
	if err != nil {
		return Result{Batches: batches.freeze(), Summary: summary}, err
	}
	for _, obj := range objects {
		if err := ctx.Err(); err != nil {
			return Result{Batches: batches.freeze(), Summary: summary}, err
		}
		name := obj.BaseName()
		if !strings.HasSuffix(strings.ToLower(name), naming.TranscriptExt) {
			continue
		}
		summary.Inc(OutcomeSeen)
		e.deliver(ctx, obj, name, batches, summary)
	}

	result := Result{Batches: batches.freeze(), Summary: summary}
	e.logger.Info("transcripts distributed",
		logging.String(logging.FieldEventType, "distribution_completed"),
		logging.Int("students", result.Batches.Len()),
		logging.Int("delivered", summary.Count(OutcomeDelivered)),
	)
	return result, nil
}

func (e *Engine) deliver(ctx context.Context, obj storage.Object, name string, batches *builder, summary *stage.Summary) {
	ctx = services.WithFileName(ctx, name)
	logger := logging.WithContext(ctx, e.logger)

	parsed, ok := naming.Parse(name)
	if !ok {
		summary.Fail(OutcomeUnparseable)
		logging.WarnWithContext(logger, "transcript name not parseable",
			"transcript_unparseable",
			logging.String(logging.FieldErrorHint, "rename the transcript to Name_YYYY-MM-DD_fragment.txt"),
		)
		return
	}
	if strings.Contains(parsed.RawName, "*") {
		summary.Inc(OutcomeExcluded)
		logger.Debug("transcript excluded by marker", logging.String("raw_name", parsed.RawName))
		return
	}

	student, ok := e.roster.Lookup(parsed.StudentName)
	if !ok {
		summary.Fail(OutcomeNoMatch)
		logging.WarnWithContext(logger, "no roster entry for transcript",
			"roster_no_match",
			logging.String(logging.FieldStudent, parsed.StudentName),
			logging.String(logging.FieldErrorHint, "add the student to the roster or fix the recording name"),
		)
		return
	}
	logger = logger.With(logging.String(logging.FieldStudent, student.Name))
	if strings.TrimSpace(student.FolderID) == "" {
		summary.Fail(OutcomeNoFolder)
		logging.WarnWithContext(logger, "roster entry has no folder",
			"roster_missing_folder",
			logging.String(logging.FieldErrorHint, "set the student's folder id in the roster"),
		)
		return
	}
	logger = logger.With(logging.String(logging.FieldFolderID, student.FolderID))

	exists, err := folders.Exists(ctx, e.folders, student.FolderID, name)
	if err != nil {
		e.fail(logger, summary, "check student folder", err)
		return
	}
	if exists {
		summary.Inc(OutcomeSkippedExists)
		logger.Debug("transcript already delivered")
		return
	}

	body, err := e.store.Get(ctx, obj.Name)
	if err != nil {
		e.fail(logger, summary, "fetch transcript", err)
		return
	}
	if _, err := e.folders.CreateFile(ctx, student.FolderID, name, body, transcriptMimeType); err != nil {
		e.fail(logger, summary, "create transcript file", err)
		return
	}
	batches.add(student, name)
	summary.Inc(OutcomeDelivered)
	logger.Info("transcript delivered", logging.String(logging.FieldEventType, "transcript_delivered"))
}

func (e *Engine) fail(logger *slog.Logger, summary *stage.Summary, step string, err error) {
	summary.Fail(OutcomeFailed)
	hint := services.Hint(err)
	if services.Marker(err) == nil || services.IsPermanent(err) {
		hint = "confirm the folder exists and is shared with the service account"
	}
	logging.WarnWithContext(logger, "transcript delivery failed",
		"delivery_failed",
		logging.String("step", step),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, hint),
		logging.String(logging.FieldImpact, "transcript retried on the next run"),
	)
}

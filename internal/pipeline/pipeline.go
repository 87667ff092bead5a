// Package pipeline assembles the discover, poll and deliver stages from
// configuration and the configured backends.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"coachflow/internal/completion"
	"coachflow/internal/config"
	"coachflow/internal/discovery"
	"coachflow/internal/distribution"
	"coachflow/internal/homework"
	"coachflow/internal/logging"
	"coachflow/internal/poller"
	"coachflow/internal/roster"
	"coachflow/internal/stage"
	"coachflow/internal/submission"
	"coachflow/internal/tracking"
)

// Stages in run order.
var Stages = []string{config.StageDiscover, config.StagePoll, config.StageDeliver}

// Pipeline builds stage handlers.
type Pipeline struct {
	cfg      *config.Config
	backends Backends
	logger   *slog.Logger
	now      func() time.Time
}

// New wires a pipeline over already opened backends.
func New(cfg *config.Config, backends Backends, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{cfg: cfg, backends: backends, logger: logger, now: time.Now}
}

// SetClock overrides the time source handed to every stage.
func (p *Pipeline) SetClock(now func() time.Time) {
	if now != nil {
		p.now = now
	}
}

// Stage returns the handler for name.
func (p *Pipeline) Stage(name string) (stage.Handler, error) {
	switch name {
	case config.StageDiscover:
		return &discoverStage{p: p}, nil
	case config.StagePoll:
		return &pollStage{p: p}, nil
	case config.StageDeliver:
		return &deliverStage{p: p}, nil
	default:
		return nil, fmt.Errorf("unknown stage %q", name)
	}
}

// health reports a configuration problem or the backends a stage lacks.
func (p *Pipeline) health(name string, needs map[string]bool) stage.Health {
	if err := p.cfg.RequireStage(name); err != nil {
		return stage.Misconfigured(name, err)
	}
	var missing []string
	for _, backend := range []string{"ledger", "storage", "folders", "transcription", "notifications"} {
		if present, needed := needs[backend]; needed && !present {
			missing = append(missing, backend)
		}
	}
	if len(missing) > 0 {
		return stage.MissingBackends(name, missing...)
	}
	return stage.Healthy(name)
}

func (p *Pipeline) trackingLedger(ctx context.Context) (*tracking.Ledger, error) {
	sheet, err := p.backends.Book.Sheet(ctx, p.cfg.Ledger.TrackingSheet)
	if err != nil {
		return nil, fmt.Errorf("open tracking sheet: %w", err)
	}
	return tracking.OpenLedger(ctx, sheet)
}

type discoverStage struct{ p *Pipeline }

func (s *discoverStage) Name() string { return config.StageDiscover }

func (s *discoverStage) HealthCheck(context.Context) stage.Health {
	b := s.p.backends
	return s.p.health(s.Name(), map[string]bool{
		"ledger":        b.Book != nil,
		"folders":       b.Folders != nil,
		"transcription": b.Transcriber != nil,
	})
}

func (s *discoverStage) Run(ctx context.Context) (*stage.Summary, error) {
	p := s.p
	ledger, err := p.trackingLedger(ctx)
	if err != nil {
		return nil, err
	}
	adapter := submission.NewAdapter(p.backends.Transcriber, p.cfg.Transcription.SubmitMode, p.logger)
	engine := discovery.NewEngine(p.backends.Folders, ledger, adapter, discovery.Options{
		SourceFolderID: p.cfg.Folders.SourceFolderID,
		MimeType:       p.cfg.Folders.RecordingMimeType,
	}, p.logger)
	engine.SetClock(p.now)
	return engine.Run(ctx)
}

type pollStage struct{ p *Pipeline }

func (s *pollStage) Name() string { return config.StagePoll }

func (s *pollStage) HealthCheck(context.Context) stage.Health {
	b := s.p.backends
	return s.p.health(s.Name(), map[string]bool{
		"ledger":        b.Book != nil,
		"storage":       b.Objects != nil,
		"transcription": b.Transcriber != nil,
	})
}

func (s *pollStage) Run(ctx context.Context) (*stage.Summary, error) {
	p := s.p
	ledger, err := p.trackingLedger(ctx)
	if err != nil {
		return nil, err
	}
	completer := completion.NewHandler(p.backends.Transcriber, p.backends.Objects, completion.Prefixes{
		Incoming:    p.cfg.Storage.IncomingPrefix,
		Processed:   p.cfg.Storage.ProcessedPrefix,
		Transcripts: p.cfg.Storage.TranscriptsPrefix,
	}, p.cfg.Transcription.TranscriptFormat, p.logger)
	jobs := poller.New(ledger, p.backends.Transcriber, completer, p.cfg.CompletionLease(), p.logger)
	jobs.SetClock(p.now)
	return jobs.Run(ctx)
}

type deliverStage struct{ p *Pipeline }

func (s *deliverStage) Name() string { return config.StageDeliver }

func (s *deliverStage) HealthCheck(context.Context) stage.Health {
	b := s.p.backends
	return s.p.health(s.Name(), map[string]bool{
		"ledger":        b.Book != nil,
		"storage":       b.Objects != nil,
		"folders":       b.Folders != nil,
		"notifications": b.Notifier != nil,
	})
}

// Run distributes transcripts, then consolidates what was delivered into
// homework. Consolidation only sees this run's batches.
func (s *deliverStage) Run(ctx context.Context) (*stage.Summary, error) {
	p := s.p
	prompt, err := homework.LoadPrompt(p.cfg.Homework.PromptTemplate)
	if err != nil {
		return nil, err
	}
	rosterSheet, err := p.backends.Book.Sheet(ctx, p.cfg.Ledger.RosterSheet)
	if err != nil {
		return nil, fmt.Errorf("open roster sheet: %w", err)
	}
	students, err := roster.Load(ctx, rosterSheet, p.logger)
	if err != nil {
		return nil, err
	}
	homeworkSheet, err := p.backends.Book.Sheet(ctx, p.cfg.Ledger.HomeworkSheet)
	if err != nil {
		return nil, fmt.Errorf("open homework sheet: %w", err)
	}
	assignments, err := homework.OpenLedger(ctx, homeworkSheet)
	if err != nil {
		return nil, err
	}

	engine := distribution.NewEngine(p.backends.Objects, p.backends.Folders, students, p.cfg.Storage.TranscriptsPrefix, p.logger)
	result, err := engine.Run(ctx)
	if err != nil {
		return result.Summary, err
	}

	consolidator := homework.NewConsolidator(p.backends.Folders, assignments, p.backends.Notifier, prompt, homework.Options{
		PortalBaseURL: p.cfg.Homework.PortalBaseURL,
		Subject:       p.cfg.Homework.Subject,
		Location:      p.cfg.Location(),
	}, p.logger)
	consolidator.SetClock(p.now)
	assigned, err := consolidator.AssignAll(ctx, result.Batches)
	result.Summary.Merge(assigned)
	return result.Summary, err
}

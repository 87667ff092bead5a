package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"coachflow/internal/config"
	"coachflow/internal/credentials"
	"coachflow/internal/folders"
	"coachflow/internal/logging"
	"coachflow/internal/notifications"
	"coachflow/internal/sheets"
	"coachflow/internal/storage"
	"coachflow/internal/transcription"
)

// Backends holds the external collaborators the stages use. A nil field means
// the backend is not configured; stages that need it report unhealthy.
type Backends struct {
	Book        sheets.Book
	Objects     storage.Store
	Folders     folders.Store
	Transcriber transcription.Client
	Notifier    notifications.Service
}

// OpenBackends builds every backend the config describes. Only the ledger is
// mandatory; other failures are logged and leave the backend nil so the
// stages that do not need it still run.
func OpenBackends(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Backends, error) {
	logger = logging.NewComponentLogger(logger, "pipeline")

	book, err := sheets.Open(ctx, cfg.Ledger.Backend, cfg.Ledger.Path)
	if err != nil {
		return Backends{}, fmt.Errorf("open ledger: %w", err)
	}
	b := Backends{Book: book, Notifier: notifications.NewService(cfg)}

	var tokens credentials.TokenSource
	if strings.TrimSpace(cfg.Credentials.ServiceAccountFile) != "" {
		tokens, err = credentials.FromFile(cfg.Credentials.ServiceAccountFile, cfg.Credentials.TokenURL)
		if err != nil {
			tokens = nil
			unavailable(logger, "credentials", err)
		}
	}

	if b.Objects, err = openStorage(ctx, cfg, tokens); err != nil {
		unavailable(logger, "storage", err)
	}
	if b.Folders, err = openFolders(cfg, tokens); err != nil {
		unavailable(logger, "folders", err)
	}
	if b.Transcriber, err = openTranscription(cfg, tokens); err != nil {
		unavailable(logger, "transcription", err)
	}
	return b, nil
}

func unavailable(logger *slog.Logger, backend string, err error) {
	logging.WarnWithContext(logger, "backend unavailable", "backend_unavailable",
		logging.String("backend", backend),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check the "+backend+" settings in coachflow config"),
		logging.String(logging.FieldImpact, "stages that need this backend will not run"),
	)
}

func openStorage(ctx context.Context, cfg *config.Config, tokens credentials.TokenSource) (storage.Store, error) {
	s := cfg.Storage
	if strings.TrimSpace(s.Bucket) == "" {
		return nil, fmt.Errorf("storage.bucket not set")
	}
	switch s.Backend {
	case "s3":
		store, err := storage.NewS3(ctx, storage.S3Config{
			Bucket:          s.Bucket,
			Region:          s.Region,
			Endpoint:        s.Endpoint,
			AccessKeyID:     s.AccessKeyID,
			SecretAccessKey: s.SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case "minio":
		store, err := storage.NewMinIO(storage.MinIOConfig{
			Endpoint:        s.Endpoint,
			Bucket:          s.Bucket,
			AccessKeyID:     s.AccessKeyID,
			SecretAccessKey: s.SecretAccessKey,
			UseSSL:          s.UseSSL,
			Region:          s.Region,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		// An explicit endpoint points at an emulator, which takes no token.
		if tokens == nil && s.Endpoint == "" {
			return nil, fmt.Errorf("gcs storage needs credentials.service_account_file")
		}
		var opts []storage.GCSOption
		if s.Endpoint != "" {
			opts = append(opts, storage.WithGCSEndpoint(s.Endpoint))
		}
		store, err := storage.NewGCS(s.Bucket, tokens, cfg.Credentials.StorageScope, opts...)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}

func openFolders(cfg *config.Config, tokens credentials.TokenSource) (folders.Store, error) {
	if cfg.Folders.Backend == "local" {
		store, err := folders.NewLocal(cfg.Folders.Root)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	if tokens == nil {
		return nil, fmt.Errorf("drive folders need credentials.service_account_file")
	}
	return folders.NewDrive(cfg.Folders.BaseURL, tokens, cfg.Credentials.DriveScope, nil), nil
}

func openTranscription(cfg *config.Config, tokens credentials.TokenSource) (transcription.Client, error) {
	t := cfg.Transcription
	var opts []transcription.Option
	if t.APIKey != "" {
		opts = append(opts, transcription.WithAPIKey(t.APIKey))
	}
	if tokens != nil && cfg.Credentials.TranscriptionScope != "" {
		opts = append(opts, transcription.WithTokenSource(tokens, cfg.Credentials.TranscriptionScope))
	}
	client, err := transcription.NewHTTPClient(t.BaseURL, cfg.TranscriptionTimeout(), opts...)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Close releases the ledger.
func (b Backends) Close() error {
	if b.Book == nil {
		return nil
	}
	return b.Book.Close()
}

package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"coachflow/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Every stage requirement is satisfied; options adjust individual fields.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Storage.Bucket = "coachflow-test"
	cfgVal.Credentials.ServiceAccountFile = filepath.Join(base, "service-account.json")
	cfgVal.Folders.Backend = "local"
	cfgVal.Folders.Root = filepath.Join(base, "folders")
	cfgVal.Folders.SourceFolderID = "source"
	cfgVal.Transcription.BaseURL = "http://transcription.invalid"
	cfgVal.Ledger.Backend = "sqlite"
	cfgVal.Ledger.Path = filepath.Join(base, "state", "ledger.db")
	cfgVal.Homework.PortalBaseURL = "https://portal.example.com"
	cfgVal.Homework.Timezone = "UTC"
	cfgVal.Schedule.MetricsBind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithLedgerBackend switches the ledger backend, keeping the file in the temp dir.
func WithLedgerBackend(backend string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Ledger.Backend = backend
		ext := ".db"
		if backend == "xlsx" {
			ext = ".xlsx"
		}
		b.cfg.Ledger.Path = filepath.Join(b.baseDir, "state", "ledger"+ext)
	}
}

// WithSubmitMode sets transcription.submit_mode.
func WithSubmitMode(mode string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Transcription.SubmitMode = mode
	}
}

// WithPromptTemplate writes body to a template file and points the config at it.
func WithPromptTemplate(body string) ConfigOption {
	return func(b *configBuilder) {
		path := filepath.Join(b.baseDir, "prompt.tmpl")
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			b.t.Fatalf("write prompt template: %v", err)
		}
		b.cfg.Homework.PromptTemplate = path
	}
}

// WithEnsuredDirs creates the state, log and folder directories.
func WithEnsuredDirs() ConfigOption {
	return func(b *configBuilder) {
		for _, dir := range []string{b.cfg.Paths.StateDir, b.cfg.Paths.LogDir, b.cfg.Folders.Root} {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				b.t.Fatalf("mkdir %s: %v", dir, err)
			}
		}
	}
}

package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"coachflow/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "coachflow")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.Ledger.Path != filepath.Join(wantState, "ledger.xlsx") {
		t.Fatalf("unexpected ledger path: %q", cfg.Ledger.Path)
	}
	if cfg.Storage.TranscriptsPrefix != "transcripts/" {
		t.Fatalf("unexpected transcripts prefix: %q", cfg.Storage.TranscriptsPrefix)
	}
	if cfg.CompletionLease().Minutes() != 15 {
		t.Fatalf("unexpected completion lease: %v", cfg.CompletionLease())
	}
}

func TestLoadReadsFileAndEnvFallbacks(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("COACHFLOW_TRANSCRIPTION_API_KEY", "env-key")
	dir := t.TempDir()
	path := filepath.Join(dir, "coachflow.toml")
	content := `
[storage]
backend = "S3"
bucket = " recordings "
incoming_prefix = "/in"

[transcription]
base_url = "https://transcribe.example.com/"

[ledger]
backend = "sqlite"
path = "` + filepath.ToSlash(filepath.Join(dir, "ledger.db")) + `"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected config file to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Storage.Backend != "s3" || cfg.Storage.Bucket != "recordings" {
		t.Fatalf("unexpected storage: %+v", cfg.Storage)
	}
	if cfg.Storage.IncomingPrefix != "in/" {
		t.Fatalf("unexpected incoming prefix: %q", cfg.Storage.IncomingPrefix)
	}
	if cfg.Transcription.BaseURL != "https://transcribe.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Transcription.BaseURL)
	}
	if cfg.Transcription.APIKey != "env-key" {
		t.Fatalf("expected api key from env, got %q", cfg.Transcription.APIKey)
	}
	if cfg.Ledger.Backend != "sqlite" {
		t.Fatalf("unexpected ledger backend: %q", cfg.Ledger.Backend)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "coachflow.toml")
	if err := os.WriteFile(path, []byte("[storage]\nbuckett = \"typo\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
}

func TestValidateRejectsUnsupportedBackends(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"storage", func(c *config.Config) { c.Storage.Backend = "ftp" }, "storage.backend"},
		{"folders", func(c *config.Config) { c.Folders.Backend = "dropbox" }, "folders.backend"},
		{"ledger", func(c *config.Config) { c.Ledger.Backend = "csv" }, "ledger.backend"},
		{"redis lock without url", func(c *config.Config) { c.Workflow.LockBackend = "redis" }, "workflow.redis_url"},
		{"smtp without host", func(c *config.Config) { c.Notifications.Channel = "smtp" }, "smtp_host"},
		{"ntfy without topic", func(c *config.Config) { c.Notifications.Channel = "ntfy" }, "ntfy_topic"},
		{"duplicate sheets", func(c *config.Config) { c.Ledger.HomeworkSheet = "tracking" }, "different sheets"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestRequireStageListsMissingSettings(t *testing.T) {
	cfg := config.Default()
	err := cfg.RequireStage(config.StageDiscover)
	if err == nil {
		t.Fatal("expected missing settings error")
	}
	for _, key := range []string{"folders.source_folder_id", "transcription.base_url", "credentials.service_account_file"} {
		if !strings.Contains(err.Error(), key) {
			t.Fatalf("expected %q in %v", key, err)
		}
	}
	if strings.Count(err.Error(), "credentials.service_account_file") != 1 {
		t.Fatalf("expected duplicate keys collapsed: %v", err)
	}

	cfg.Folders.SourceFolderID = "src"
	cfg.Transcription.BaseURL = "https://t.example.com"
	cfg.Credentials.ServiceAccountFile = "/tmp/key.json"
	if err := cfg.RequireStage(config.StageDiscover); err != nil {
		t.Fatalf("expected discover requirements satisfied, got %v", err)
	}
	if err := cfg.RequireStage("bogus"); err == nil {
		t.Fatal("expected unknown stage error")
	}
}

func TestSampleConfigParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var cfg config.Config
	decoder := toml.NewDecoder(strings.NewReader(string(data)))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		t.Fatalf("sample config does not decode strictly: %v", err)
	}
	if cfg.Ledger.TrackingSheet != "Tracking" {
		t.Fatalf("unexpected tracking sheet in sample: %q", cfg.Ledger.TrackingSheet)
	}
}

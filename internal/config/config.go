package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains local directories used for state and logs.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Storage selects the object store that holds recordings and transcripts.
type Storage struct {
	Backend           string `toml:"backend"` // gcs | s3 | minio
	Bucket            string `toml:"bucket"`
	Endpoint          string `toml:"endpoint"`
	Region            string `toml:"region"`
	AccessKeyID       string `toml:"access_key_id"`
	SecretAccessKey   string `toml:"secret_access_key"`
	UseSSL            bool   `toml:"use_ssl"`
	IncomingPrefix    string `toml:"incoming_prefix"`
	ProcessedPrefix   string `toml:"processed_prefix"`
	TranscriptsPrefix string `toml:"transcripts_prefix"`
}

// Credentials configures the service-account token exchange.
type Credentials struct {
	ServiceAccountFile string `toml:"service_account_file"`
	TokenURL           string `toml:"token_url"`
	StorageScope       string `toml:"storage_scope"`
	DriveScope         string `toml:"drive_scope"`
	TranscriptionScope string `toml:"transcription_scope"`
}

// Folders configures the per-student folder tree and the recording source.
type Folders struct {
	Backend           string `toml:"backend"` // drive | local
	BaseURL           string `toml:"base_url"`
	Root              string `toml:"root"`
	SourceFolderID    string `toml:"source_folder_id"`
	RecordingMimeType string `toml:"recording_mime_type"`
}

// Transcription configures the external transcription pipeline.
type Transcription struct {
	BaseURL          string `toml:"base_url"`
	APIKey           string `toml:"api_key"`
	SubmitMode       string `toml:"submit_mode"` // simple | job
	TranscriptFormat string `toml:"transcript_format"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
}

// Ledger selects the tabular store and its sheet names.
type Ledger struct {
	Backend       string `toml:"backend"` // xlsx | sqlite
	Path          string `toml:"path"`
	TrackingSheet string `toml:"tracking_sheet"`
	HomeworkSheet string `toml:"homework_sheet"`
	RosterSheet   string `toml:"roster_sheet"`
}

// Homework configures assignment generation.
type Homework struct {
	PortalBaseURL  string `toml:"portal_base_url"`
	PromptTemplate string `toml:"prompt_template"`
	Timezone       string `toml:"timezone"`
	Subject        string `toml:"subject"`
}

// Notifications configures student notifications and operator alerts.
type Notifications struct {
	Channel        string `toml:"channel"` // smtp | ntfy | none
	NtfyServer     string `toml:"ntfy_server"`
	NtfyTopic      string `toml:"ntfy_topic"`
	AlertTopic     string `toml:"alert_topic"`
	SMTPHost       string `toml:"smtp_host"`
	SMTPPort       int    `toml:"smtp_port"`
	SMTPUsername   string `toml:"smtp_username"`
	SMTPPassword   string `toml:"smtp_password"`
	FromAddress    string `toml:"from_address"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Workflow contains run coordination settings.
type Workflow struct {
	CompletionLeaseSeconds int    `toml:"completion_lease_seconds"`
	LockBackend            string `toml:"lock_backend"` // flock | redis
	RedisURL               string `toml:"redis_url"`
	LockTTLSeconds         int    `toml:"lock_ttl_seconds"`
}

// Schedule contains cron specs used by serve mode.
type Schedule struct {
	Discover    string `toml:"discover"`
	Poll        string `toml:"poll"`
	Deliver     string `toml:"deliver"`
	MetricsBind string `toml:"metrics_bind"`
}

// Config encapsulates all configuration values for coachflow.
//
// Configuration sections by subsystem:
//   - Paths: state and log directories
//   - Storage: object store for recordings and transcripts
//   - Credentials: service-account token exchange
//   - Folders: recording source and per-student folders
//   - Transcription: external transcription pipeline
//   - Ledger: tracking, homework and roster sheets
//   - Homework: portal link, prompt template, calendar time zone
//   - Notifications: student messages and operator alerts
//   - Workflow: completion lease and run locking
//   - Schedule: serve-mode cron specs and metrics bind
type Config struct {
	Paths         Paths         `toml:"paths"`
	Logging       Logging       `toml:"logging"`
	Storage       Storage       `toml:"storage"`
	Credentials   Credentials   `toml:"credentials"`
	Folders       Folders       `toml:"folders"`
	Transcription Transcription `toml:"transcription"`
	Ledger        Ledger        `toml:"ledger"`
	Homework      Homework      `toml:"homework"`
	Notifications Notifications `toml:"notifications"`
	Workflow      Workflow      `toml:"workflow"`
	Schedule      Schedule      `toml:"schedule"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/coachflow/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("coachflow.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Ledger.Path != "" {
		if err := os.MkdirAll(filepath.Dir(c.Ledger.Path), 0o755); err != nil {
			return fmt.Errorf("create ledger directory: %w", err)
		}
	}
	return nil
}

// CompletionLease is how long a row may sit in processing_transcript before
// another poll pass treats it as abandoned.
func (c *Config) CompletionLease() time.Duration {
	return time.Duration(c.Workflow.CompletionLeaseSeconds) * time.Second
}

// LockTTL bounds how long a distributed stage lock survives a crashed holder.
func (c *Config) LockTTL() time.Duration {
	return time.Duration(c.Workflow.LockTTLSeconds) * time.Second
}

// TranscriptionTimeout is the per-request timeout for the transcription API.
func (c *Config) TranscriptionTimeout() time.Duration {
	return time.Duration(c.Transcription.TimeoutSeconds) * time.Second
}

// Location resolves the calendar time zone used for homework identifiers.
func (c *Config) Location() *time.Location {
	name := strings.TrimSpace(c.Homework.Timezone)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.Local
	}
	return loc
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

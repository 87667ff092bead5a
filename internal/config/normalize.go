package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeStorage()
	if err := c.normalizeCredentials(); err != nil {
		return err
	}
	if err := c.normalizeFolders(); err != nil {
		return err
	}
	c.normalizeTranscription()
	if err := c.normalizeLedger(); err != nil {
		return err
	}
	if err := c.normalizeHomework(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeStorage() {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = defaultStorageBackend
	}
	c.Storage.Bucket = strings.TrimSpace(c.Storage.Bucket)
	c.Storage.Endpoint = strings.TrimSpace(c.Storage.Endpoint)
	c.Storage.Region = strings.TrimSpace(c.Storage.Region)
	if c.Storage.SecretAccessKey == "" {
		if value, ok := os.LookupEnv("COACHFLOW_S3_SECRET_ACCESS_KEY"); ok {
			c.Storage.SecretAccessKey = value
		}
	}
	c.Storage.IncomingPrefix = normalizePrefix(c.Storage.IncomingPrefix, defaultIncomingPrefix)
	c.Storage.ProcessedPrefix = normalizePrefix(c.Storage.ProcessedPrefix, defaultProcessedPrefix)
	c.Storage.TranscriptsPrefix = normalizePrefix(c.Storage.TranscriptsPrefix, defaultTranscriptsPrefix)
}

func normalizePrefix(value, fallback string) string {
	value = strings.Trim(strings.TrimSpace(value), "/")
	if value == "" {
		return fallback
	}
	return value + "/"
}

func (c *Config) normalizeCredentials() error {
	var err error
	if c.Credentials.ServiceAccountFile, err = expandPath(strings.TrimSpace(c.Credentials.ServiceAccountFile)); err != nil {
		return fmt.Errorf("credentials.service_account_file: %w", err)
	}
	if strings.TrimSpace(c.Credentials.TokenURL) == "" {
		c.Credentials.TokenURL = defaultTokenURL
	}
	if strings.TrimSpace(c.Credentials.StorageScope) == "" {
		c.Credentials.StorageScope = defaultStorageScope
	}
	if strings.TrimSpace(c.Credentials.DriveScope) == "" {
		c.Credentials.DriveScope = defaultDriveScope
	}
	return nil
}

func (c *Config) normalizeFolders() error {
	c.Folders.Backend = strings.ToLower(strings.TrimSpace(c.Folders.Backend))
	if c.Folders.Backend == "" {
		c.Folders.Backend = defaultFoldersBackend
	}
	c.Folders.BaseURL = strings.TrimRight(strings.TrimSpace(c.Folders.BaseURL), "/")
	if c.Folders.BaseURL == "" {
		c.Folders.BaseURL = defaultDriveBaseURL
	}
	c.Folders.SourceFolderID = strings.TrimSpace(c.Folders.SourceFolderID)
	if strings.TrimSpace(c.Folders.RecordingMimeType) == "" {
		c.Folders.RecordingMimeType = defaultRecordingMimeType
	}
	if c.Folders.Backend == "local" && strings.TrimSpace(c.Folders.Root) == "" {
		c.Folders.Root = filepath.Join(c.Paths.StateDir, defaultLocalFoldersSubdir)
	}
	var err error
	if c.Folders.Root, err = expandPath(strings.TrimSpace(c.Folders.Root)); err != nil {
		return fmt.Errorf("folders.root: %w", err)
	}
	return nil
}

func (c *Config) normalizeTranscription() {
	c.Transcription.BaseURL = strings.TrimRight(strings.TrimSpace(c.Transcription.BaseURL), "/")
	if c.Transcription.APIKey == "" {
		if value, ok := os.LookupEnv("COACHFLOW_TRANSCRIPTION_API_KEY"); ok {
			c.Transcription.APIKey = value
		}
	}
	c.Transcription.SubmitMode = strings.ToLower(strings.TrimSpace(c.Transcription.SubmitMode))
	if c.Transcription.SubmitMode == "" {
		c.Transcription.SubmitMode = defaultSubmitMode
	}
	if strings.TrimSpace(c.Transcription.TranscriptFormat) == "" {
		c.Transcription.TranscriptFormat = defaultTranscriptFormat
	}
	if c.Transcription.TimeoutSeconds <= 0 {
		c.Transcription.TimeoutSeconds = defaultTranscriptTimeout
	}
}

func (c *Config) normalizeLedger() error {
	c.Ledger.Backend = strings.ToLower(strings.TrimSpace(c.Ledger.Backend))
	if c.Ledger.Backend == "" {
		c.Ledger.Backend = defaultLedgerBackend
	}
	if strings.TrimSpace(c.Ledger.Path) == "" {
		c.Ledger.Path = defaultLedgerPath
	}
	var err error
	if c.Ledger.Path, err = expandPath(c.Ledger.Path); err != nil {
		return fmt.Errorf("ledger.path: %w", err)
	}
	if strings.TrimSpace(c.Ledger.TrackingSheet) == "" {
		c.Ledger.TrackingSheet = defaultTrackingSheet
	}
	if strings.TrimSpace(c.Ledger.HomeworkSheet) == "" {
		c.Ledger.HomeworkSheet = defaultHomeworkSheet
	}
	if strings.TrimSpace(c.Ledger.RosterSheet) == "" {
		c.Ledger.RosterSheet = defaultRosterSheet
	}
	return nil
}

func (c *Config) normalizeHomework() error {
	c.Homework.PortalBaseURL = strings.TrimRight(strings.TrimSpace(c.Homework.PortalBaseURL), "/")
	if strings.TrimSpace(c.Homework.Subject) == "" {
		c.Homework.Subject = defaultHomeworkSubject
	}
	var err error
	if c.Homework.PromptTemplate, err = expandPath(strings.TrimSpace(c.Homework.PromptTemplate)); err != nil {
		return fmt.Errorf("homework.prompt_template: %w", err)
	}
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.Channel = strings.ToLower(strings.TrimSpace(c.Notifications.Channel))
	if c.Notifications.Channel == "" {
		c.Notifications.Channel = defaultNotifyChannel
	}
	c.Notifications.NtfyServer = strings.TrimRight(strings.TrimSpace(c.Notifications.NtfyServer), "/")
	if c.Notifications.NtfyServer == "" {
		c.Notifications.NtfyServer = defaultNtfyServer
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	c.Notifications.AlertTopic = strings.TrimSpace(c.Notifications.AlertTopic)
	if c.Notifications.SMTPPassword == "" {
		if value, ok := os.LookupEnv("COACHFLOW_SMTP_PASSWORD"); ok {
			c.Notifications.SMTPPassword = value
		}
	}
	if c.Notifications.SMTPPort <= 0 {
		c.Notifications.SMTPPort = defaultSMTPPort
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeWorkflow() {
	c.Workflow.LockBackend = strings.ToLower(strings.TrimSpace(c.Workflow.LockBackend))
	if c.Workflow.LockBackend == "" {
		c.Workflow.LockBackend = defaultLockBackend
	}
	if c.Workflow.RedisURL == "" {
		if value, ok := os.LookupEnv("COACHFLOW_REDIS_URL"); ok {
			c.Workflow.RedisURL = value
		}
	}
	c.Workflow.RedisURL = strings.TrimSpace(c.Workflow.RedisURL)
	if c.Workflow.CompletionLeaseSeconds <= 0 {
		c.Workflow.CompletionLeaseSeconds = defaultCompletionLease
	}
	if c.Workflow.LockTTLSeconds <= 0 {
		c.Workflow.LockTTLSeconds = defaultLockTTL
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format == "" {
		format = defaultLogFormat
	}
	c.Logging.Format = format
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}

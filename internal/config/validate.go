package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Stage names understood by RequireStage.
const (
	StageDiscover = "discover"
	StagePoll     = "poll"
	StageDeliver  = "deliver"
)

// Validate ensures the configuration is internally consistent. Settings that
// only some stages need are checked by RequireStage.
func (c *Config) Validate() error {
	if err := c.validateBackends(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if c.Homework.Timezone != "" && !strings.EqualFold(c.Homework.Timezone, "local") {
		if _, err := time.LoadLocation(c.Homework.Timezone); err != nil {
			return fmt.Errorf("homework.timezone: %w", err)
		}
	}
	return nil
}

func (c *Config) validateBackends() error {
	switch c.Storage.Backend {
	case "gcs", "s3", "minio":
	default:
		return fmt.Errorf("storage.backend: unsupported value %q (gcs, s3, minio)", c.Storage.Backend)
	}
	switch c.Folders.Backend {
	case "drive", "local":
	default:
		return fmt.Errorf("folders.backend: unsupported value %q (drive, local)", c.Folders.Backend)
	}
	switch c.Ledger.Backend {
	case "xlsx", "sqlite":
	default:
		return fmt.Errorf("ledger.backend: unsupported value %q (xlsx, sqlite)", c.Ledger.Backend)
	}
	switch c.Transcription.SubmitMode {
	case "simple", "job":
	default:
		return fmt.Errorf("transcription.submit_mode: unsupported value %q (simple, job)", c.Transcription.SubmitMode)
	}
	sheets := map[string]string{}
	for key, name := range map[string]string{
		"ledger.tracking_sheet": c.Ledger.TrackingSheet,
		"ledger.homework_sheet": c.Ledger.HomeworkSheet,
		"ledger.roster_sheet":   c.Ledger.RosterSheet,
	} {
		lower := strings.ToLower(name)
		if other, ok := sheets[lower]; ok {
			return fmt.Errorf("%s and %s must name different sheets", other, key)
		}
		sheets[lower] = key
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	switch c.Workflow.LockBackend {
	case "flock":
	case "redis":
		if c.Workflow.RedisURL == "" {
			return errors.New("workflow.redis_url must be set when workflow.lock_backend is redis")
		}
	default:
		return fmt.Errorf("workflow.lock_backend: unsupported value %q (flock, redis)", c.Workflow.LockBackend)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	switch c.Notifications.Channel {
	case "none":
	case "ntfy":
		if c.Notifications.NtfyTopic == "" {
			return errors.New("notifications.ntfy_topic must be set when notifications.channel is ntfy")
		}
	case "smtp":
		if strings.TrimSpace(c.Notifications.SMTPHost) == "" {
			return errors.New("notifications.smtp_host must be set when notifications.channel is smtp")
		}
		if strings.TrimSpace(c.Notifications.FromAddress) == "" {
			return errors.New("notifications.from_address must be set when notifications.channel is smtp")
		}
	default:
		return fmt.Errorf("notifications.channel: unsupported value %q (smtp, ntfy, none)", c.Notifications.Channel)
	}
	return nil
}

// RequireStage reports every setting the named stage needs that is missing.
// The returned error lists all of them so one edit fixes the config.
func (c *Config) RequireStage(stage string) error {
	var missing []string
	need := func(value, key string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, key)
		}
	}

	needStorage := func() {
		need(c.Storage.Bucket, "storage.bucket")
		switch c.Storage.Backend {
		case "gcs":
			need(c.Credentials.ServiceAccountFile, "credentials.service_account_file")
		case "minio":
			need(c.Storage.Endpoint, "storage.endpoint")
			need(c.Storage.AccessKeyID, "storage.access_key_id")
			need(c.Storage.SecretAccessKey, "storage.secret_access_key")
		}
	}
	needFolders := func() {
		switch c.Folders.Backend {
		case "drive":
			need(c.Credentials.ServiceAccountFile, "credentials.service_account_file")
		case "local":
			need(c.Folders.Root, "folders.root")
		}
	}

	switch stage {
	case StageDiscover:
		need(c.Folders.SourceFolderID, "folders.source_folder_id")
		need(c.Transcription.BaseURL, "transcription.base_url")
		needFolders()
	case StagePoll:
		need(c.Transcription.BaseURL, "transcription.base_url")
		needStorage()
	case StageDeliver:
		need(c.Homework.PortalBaseURL, "homework.portal_base_url")
		needStorage()
		needFolders()
	default:
		return fmt.Errorf("unknown stage %q", stage)
	}

	if len(missing) == 0 {
		return nil
	}
	seen := map[string]struct{}{}
	unique := missing[:0]
	for _, key := range missing {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, key)
	}
	return fmt.Errorf("%s stage requires %s", stage, strings.Join(unique, ", "))
}

package config

const (
	defaultStateDir           = "~/.local/share/coachflow"
	defaultLogDir             = "~/.local/share/coachflow/logs"
	defaultLedgerPath         = "~/.local/share/coachflow/ledger.xlsx"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultStorageBackend     = "gcs"
	defaultIncomingPrefix     = "incoming/"
	defaultProcessedPrefix    = "processed/"
	defaultTranscriptsPrefix  = "transcripts/"
	defaultTokenURL           = "https://oauth2.googleapis.com/token"
	defaultStorageScope       = "https://www.googleapis.com/auth/devstorage.read_write"
	defaultDriveScope         = "https://www.googleapis.com/auth/drive"
	defaultFoldersBackend     = "drive"
	defaultDriveBaseURL       = "https://www.googleapis.com"
	defaultRecordingMimeType  = "video/mp4"
	defaultSubmitMode         = "simple"
	defaultTranscriptFormat   = "txt"
	defaultTranscriptTimeout  = 60
	defaultLedgerBackend      = "xlsx"
	defaultTrackingSheet      = "Tracking"
	defaultHomeworkSheet      = "Homework"
	defaultRosterSheet        = "Roster"
	defaultHomeworkSubject    = "Your new homework is ready"
	defaultNotifyChannel      = "none"
	defaultNtfyServer         = "https://ntfy.sh"
	defaultSMTPPort           = 587
	defaultNotifyTimeout      = 10
	defaultCompletionLease    = 900
	defaultLockBackend        = "flock"
	defaultLockTTL            = 3600
	defaultDiscoverSchedule   = "*/15 * * * *"
	defaultPollSchedule       = "*/5 * * * *"
	defaultDeliverSchedule    = "0 20 * * *"
	defaultMetricsBind        = "127.0.0.1:9464"
	defaultLocalFoldersSubdir = "folders"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Storage: Storage{
			Backend:           defaultStorageBackend,
			UseSSL:            true,
			IncomingPrefix:    defaultIncomingPrefix,
			ProcessedPrefix:   defaultProcessedPrefix,
			TranscriptsPrefix: defaultTranscriptsPrefix,
		},
		Credentials: Credentials{
			TokenURL:     defaultTokenURL,
			StorageScope: defaultStorageScope,
			DriveScope:   defaultDriveScope,
		},
		Folders: Folders{
			Backend:           defaultFoldersBackend,
			BaseURL:           defaultDriveBaseURL,
			RecordingMimeType: defaultRecordingMimeType,
		},
		Transcription: Transcription{
			SubmitMode:       defaultSubmitMode,
			TranscriptFormat: defaultTranscriptFormat,
			TimeoutSeconds:   defaultTranscriptTimeout,
		},
		Ledger: Ledger{
			Backend:       defaultLedgerBackend,
			Path:          defaultLedgerPath,
			TrackingSheet: defaultTrackingSheet,
			HomeworkSheet: defaultHomeworkSheet,
			RosterSheet:   defaultRosterSheet,
		},
		Homework: Homework{
			Timezone: "Local",
			Subject:  defaultHomeworkSubject,
		},
		Notifications: Notifications{
			Channel:        defaultNotifyChannel,
			NtfyServer:     defaultNtfyServer,
			SMTPPort:       defaultSMTPPort,
			RequestTimeout: defaultNotifyTimeout,
		},
		Workflow: Workflow{
			CompletionLeaseSeconds: defaultCompletionLease,
			LockBackend:            defaultLockBackend,
			LockTTLSeconds:         defaultLockTTL,
		},
		Schedule: Schedule{
			Discover:    defaultDiscoverSchedule,
			Poll:        defaultPollSchedule,
			Deliver:     defaultDeliverSchedule,
			MetricsBind: defaultMetricsBind,
		},
	}
}

package config

const (
	defaultWatchDir           = "~/Downloads"
	defaultLogDir             = "~/.local/share/shelver/logs"
	defaultLogRetentionDays   = 30
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultSettleDelayMillis  = 100
	defaultStopTimeoutSeconds = 5
	defaultSweepWorkers       = 4
	defaultHistoryFile        = "history.db"
	defaultNotifyTimeout      = 10
)

// DefaultCategories returns the built-in category table in registration order.
// xls and xlsx are listed under both Datasets and Documents; Datasets is
// registered first and owns them.
func DefaultCategories() []Category {
	return []Category{
		{Name: "Images", Extensions: []string{"jpeg", "jpg", "png", "gif", "bmp", "tiff", "webp"}},
		{Name: "PDFs", Extensions: []string{"pdf"}},
		{Name: "Datasets", Extensions: []string{"csv", "xlsx", "json", "xls", "tsv", "xml", "sql"}},
		{Name: "Videos", Extensions: []string{"mp4", "mkv", "avi", "mov", "flv", "wmv"}},
		{Name: "Audio", Extensions: []string{"mp3", "wav", "aac", "flac", "ogg"}},
		{Name: "Documents", Extensions: []string{"doc", "docx", "txt", "rtf", "odt", "ppt", "pptx", "xls", "xlsx"}},
		{Name: "Archives", Extensions: []string{"zip", "rar", "7z", "tar", "gz"}},
		{Name: "Executables", Extensions: []string{"exe", "msi", "dmg", "app"}},
		{Name: "Code", Extensions: []string{"py", "java", "c", "cpp", "js", "html", "css", "php", "rb", "go"}},
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WatchDir: defaultWatchDir,
			LogDir:   defaultLogDir,
		},
		Watcher: Watcher{
			SettleDelayMillis:  defaultSettleDelayMillis,
			StopTimeoutSeconds: defaultStopTimeoutSeconds,
			SweepOnStart:       true,
			SweepWorkers:       defaultSweepWorkers,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		History: History{
			Enabled: true,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			MoveFailures:   true,
			Sweeps:         false,
			WatcherErrors:  true,
		},
		Categories: DefaultCategories(),
	}
}

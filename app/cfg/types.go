package cfg

type Cfg struct {
	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// HTTP configuration
	Port         string
	APIAccessKey string

	// Aggregation configuration
	RunSchedule     string // cron expression for scheduled aggregation runs
	CleanupSchedule string // cron expression for scheduled retention cleanups
	RunTimeout      int    // seconds, whole-run budget
	SourceTimeout   int    // seconds, per-connector fetch budget
	SearchKeywords  string
	SearchLocation  string

	// Retention configuration
	InactiveAfterDays int
	DeleteAfterDays   int

	// Source credentials
	USAJobsAPIKey  string
	USAJobsEmail   string
	JoobleAPIKey   string
	CareerjetAffID string
	UniversityFile string
	SignalsFile    string

	// Optional stats persistence
	RedisURL string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}

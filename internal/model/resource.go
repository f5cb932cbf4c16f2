package model

// Resource names one of the data feeds polled from the backend.
type Resource string

const (
	ResourceStats           Resource = "stats"
	ResourceCurrentUsers    Resource = "current_users"
	ResourceProcesses       Resource = "processes"
	ResourceLogs            Resource = "system_logs"
	ResourceLastLoggedUsers Resource = "last_logged_users"
	ResourceUptime          Resource = "uptime"
)

// Resources lists every feed in display order.
var Resources = []Resource{
	ResourceStats,
	ResourceCurrentUsers,
	ResourceProcesses,
	ResourceLogs,
	ResourceLastLoggedUsers,
	ResourceUptime,
}

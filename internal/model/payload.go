package model

// Credentials are the login form fields. Never persisted.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// DiskUsage is reported in bytes for precision.
type DiskUsage struct {
	Used  uint64 `json:"used"`
	Total uint64 `json:"total"`
	Free  uint64 `json:"free,omitempty"`
}

// SystemStats is refreshed wholesale on every poll.
type SystemStats struct {
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryPercent float64   `json:"memory_info"`
	Disk          DiskUsage `json:"disk_usage"`
}

// User is an entry of the current users list.
type User struct {
	Username  string `json:"username"`
	LoginTime string `json:"login_time"`
}

// LastLogin is an entry of the login history.
type LastLogin struct {
	Username  string `json:"username"`
	IPAddress string `json:"ip_address"`
	LoginTime string `json:"login_time"`
}

// Process is a row of the process table.
type Process struct {
	PID    int     `json:"pid"`
	Name   string  `json:"name"`
	CPU    float64 `json:"cpu"`
	Memory float64 `json:"memory"` // MB
}

// LogEntry is a single log line, most recent first as served.
type LogEntry = string

// Uptime is the formatted host uptime.
type Uptime struct {
	Uptime string `json:"uptime"`
}

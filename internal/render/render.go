// Package render maps resource payloads to display fragments. Every function
// is pure: inputs are never modified and equal inputs give equal fragments.
package render

import (
	"fmt"
	"strconv"

	"github.com/Dicklesworthstone/opsdash/internal/model"
)

// Fragment is what a mount point shows for one resource.
type Fragment struct {
	Resource model.Resource
	Lines    []string
	// Table and Summary are only set for processes.
	Table   [][]string
	Summary string
}

// ProcessHeaders are the process table columns.
var ProcessHeaders = []string{"PID", "Name", "CPU", "Memory"}

// Render dispatches payload to the renderer for resource.
func Render(resource model.Resource, payload any) (Fragment, error) {
	switch p := payload.(type) {
	case model.SystemStats:
		if resource == model.ResourceStats {
			return Stats(p), nil
		}
	case []model.User:
		if resource == model.ResourceCurrentUsers {
			return CurrentUsers(p), nil
		}
	case []model.Process:
		if resource == model.ResourceProcesses {
			return Processes(p), nil
		}
	case []model.LogEntry:
		if resource == model.ResourceLogs {
			return Logs(p), nil
		}
	case []model.LastLogin:
		if resource == model.ResourceLastLoggedUsers {
			return LastLoggedUsers(p), nil
		}
	case model.Uptime:
		if resource == model.ResourceUptime {
			return Uptime(p), nil
		}
	}
	return Fragment{}, fmt.Errorf("render %s: unexpected payload %T", resource, payload)
}

func Stats(s model.SystemStats) Fragment {
	return Fragment{
		Resource: model.ResourceStats,
		Lines: []string{
			"CPU Usage: " + num(s.CPUPercent) + "%",
			"Memory Usage: " + num(s.MemoryPercent) + "%",
			"Disk Usage: " + num(mb(s.Disk.Used)) + " MB / " + num(mb(s.Disk.Total)) + " MB",
		},
	}
}

func CurrentUsers(users []model.User) Fragment {
	lines := make([]string, 0, len(users))
	for _, u := range users {
		lines = append(lines, fmt.Sprintf("%s (%s)", u.Username, u.LoginTime))
	}
	return Fragment{Resource: model.ResourceCurrentUsers, Lines: lines}
}

// Processes renders the table body and a summary recomputed from procs.
func Processes(procs []model.Process) Fragment {
	rows := make([][]string, 0, len(procs))
	var totalCPU, totalMem float64
	for _, p := range procs {
		rows = append(rows, []string{
			strconv.Itoa(p.PID),
			p.Name,
			num(p.CPU) + "%",
			num(p.Memory) + " MB",
		})
		totalCPU += p.CPU
		totalMem += p.Memory
	}
	return Fragment{
		Resource: model.ResourceProcesses,
		Table:    rows,
		Summary: fmt.Sprintf("Total Processes: %d, Total CPU: %s%%, Total Memory: %s MB",
			len(procs), num(totalCPU), num(totalMem)),
	}
}

func Logs(logs []model.LogEntry) Fragment {
	return Fragment{Resource: model.ResourceLogs, Lines: append([]string{}, logs...)}
}

func LastLoggedUsers(users []model.LastLogin) Fragment {
	lines := make([]string, 0, len(users))
	for _, u := range users {
		lines = append(lines, fmt.Sprintf("%s (IP: %s, Logged in at: %s)", u.Username, u.IPAddress, u.LoginTime))
	}
	return Fragment{Resource: model.ResourceLastLoggedUsers, Lines: lines}
}

func Uptime(u model.Uptime) Fragment {
	return Fragment{Resource: model.ResourceUptime, Lines: []string{"System Uptime: " + u.Uptime}}
}

// num prints v in its shortest form, rounded to two decimals.
// num prints the shortest decimal that round-trips to v, as a browser would.
func num(v float64) string {
	if v == 0 {
		v = 0 // normalizes -0
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func mb(b uint64) float64 { return float64(b) / (1024 * 1024) }

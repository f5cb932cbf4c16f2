// Package sampler serves the dashboard resources from the local host instead of
// a backend, using the same payload shapes the backend returns.
package sampler

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Dicklesworthstone/opsdash/internal/model"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

const (
	maxLogLines   = 50
	maxLastLogins = 10
	loginLayout   = "2006-01-02 15:04:05"
	fallbackIP    = "127.0.0.1"
)

// DefaultLogPaths are tried in order; the first that exists is tailed.
var DefaultLogPaths = []string{"/var/log/syslog", "/var/log/messages"}

// Sampler reads this host's state on demand.
type Sampler struct {
	DiskPath string
	LogPaths []string

	mu        sync.Mutex
	prevTotal float64
	prevIdle  float64
}

func New() *Sampler {
	return &Sampler{DiskPath: "/", LogPaths: DefaultLogPaths}
}

func (s *Sampler) SystemStats(ctx context.Context) (model.SystemStats, error) {
	memStat, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return model.SystemStats{}, fmt.Errorf("memory: %w", err)
	}
	du, err := disk.UsageWithContext(ctx, s.DiskPath)
	if err != nil {
		return model.SystemStats{}, fmt.Errorf("disk usage of %s: %w", s.DiskPath, err)
	}
	return model.SystemStats{
		CPUPercent:    s.cpuPercent(ctx),
		MemoryPercent: memStat.UsedPercent,
		Disk:          model.DiskUsage{Used: du.Used, Total: du.Total, Free: du.Free},
	}, nil
}

// cpuPercent is the busy share since the previous call; the first call
// reports the average since boot.
func (s *Sampler) cpuPercent(ctx context.Context) float64 {
	times, _ := cpu.TimesWithContext(ctx, false)
	if len(times) == 0 {
		return 0
	}
	cur := times[0]
	curTotal := cur.Total()
	curIdle := cur.Idle + cur.Iowait

	s.mu.Lock()
	defer s.mu.Unlock()
	dt := curTotal - s.prevTotal
	di := curIdle - s.prevIdle
	s.prevTotal, s.prevIdle = curTotal, curIdle
	if dt <= 0 {
		return 0
	}
	return 100 * (1 - di/dt)
}

func (s *Sampler) CurrentUsers(ctx context.Context) ([]model.User, error) {
	stats, err := host.UsersWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("users: %w", err)
	}
	return currentUsers(stats), nil
}

func (s *Sampler) LastLoggedUsers(ctx context.Context) ([]model.LastLogin, error) {
	stats, err := host.UsersWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("users: %w", err)
	}
	return lastLogins(stats, maxLastLogins), nil
}

// currentUsers keeps one entry per user, the most recent login, in the order
// users first appear.
func currentUsers(stats []host.UserStat) []model.User {
	latest := make(map[string]int)
	var order []string
	for _, u := range stats {
		prev, seen := latest[u.User]
		if !seen {
			order = append(order, u.User)
		}
		if !seen || u.Started > prev {
			latest[u.User] = u.Started
		}
	}
	out := make([]model.User, 0, len(order))
	for _, name := range order {
		out = append(out, model.User{Username: name, LoginTime: loginTime(latest[name])})
	}
	return out
}

// lastLogins lists distinct users newest first.
func lastLogins(stats []host.UserStat, limit int) []model.LastLogin {
	sorted := append([]host.UserStat(nil), stats...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Started > sorted[j].Started })

	seen := make(map[string]bool)
	out := make([]model.LastLogin, 0, limit)
	for _, u := range sorted {
		if seen[u.User] {
			continue
		}
		seen[u.User] = true
		ip := u.Host
		if ip == "" {
			ip = fallbackIP
		}
		out = append(out, model.LastLogin{Username: u.User, IPAddress: ip, LoginTime: loginTime(u.Started)})
		if len(out) == limit {
			break
		}
	}
	return out
}

func loginTime(started int) string {
	return time.Unix(int64(started), 0).Format(loginLayout)
}

// Processes lists every readable process; ones that vanish or deny access
// mid-scan are skipped.
func (s *Sampler) Processes(ctx context.Context) ([]model.Process, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("processes: %w", err)
	}
	out := make([]model.Process, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		memInfo, err := p.MemoryInfoWithContext(ctx)
		if err != nil || memInfo == nil {
			continue
		}
		cpuPct, _ := p.CPUPercentWithContext(ctx)
		out = append(out, model.Process{
			PID:    int(p.Pid),
			Name:   name,
			CPU:    cpuPct,
			Memory: float64(memInfo.RSS / (1024 * 1024)),
		})
	}
	return out, nil
}

// SystemLogs returns the newest log lines first, or placeholder lines when no
// system log is readable.
func (s *Sampler) SystemLogs(ctx context.Context) ([]model.LogEntry, error) {
	for _, path := range s.LogPaths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lines, err := tail(path, maxLogLines)
		if err != nil {
			continue
		}
		for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
			lines[i], lines[j] = lines[j], lines[i]
		}
		return lines, nil
	}
	mock := make([]model.LogEntry, 0, maxLogLines)
	for i := 1; i <= maxLogLines; i++ {
		mock = append(mock, fmt.Sprintf("Log line %d: Sample log entry", i))
	}
	return mock, nil
}

func (s *Sampler) Uptime(ctx context.Context) (model.Uptime, error) {
	secs, err := host.UptimeWithContext(ctx)
	if err != nil {
		return model.Uptime{}, fmt.Errorf("uptime: %w", err)
	}
	return model.Uptime{Uptime: formatUptime(secs)}, nil
}

// formatUptime prints HH:MM:SS with hours allowed past 24.
func formatUptime(secs uint64) string {
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, secs/60%60, secs%60)
}

const tailChunk = 64 * 1024

// tail returns up to n final lines of path in file order.
func tail(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()
	var buf []byte
	for off := size; off > 0; {
		step := int64(tailChunk)
		if off < step {
			step = off
		}
		off -= step
		chunk := make([]byte, step)
		if _, err := f.ReadAt(chunk, off); err != nil && err != io.EOF {
			return nil, err
		}
		buf = append(chunk, buf...)
		if strings.Count(string(buf), "\n") > n {
			break
		}
	}

	lines := strings.Split(strings.TrimRight(string(buf), "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return []string{}, nil
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}

package ui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Dicklesworthstone/opsdash/internal/api"
	"github.com/Dicklesworthstone/opsdash/internal/api/apitest"
	"github.com/Dicklesworthstone/opsdash/internal/config"
	"github.com/Dicklesworthstone/opsdash/internal/dashboard"
	"github.com/Dicklesworthstone/opsdash/internal/model"
	"github.com/Dicklesworthstone/opsdash/internal/render"
	"github.com/Dicklesworthstone/opsdash/internal/sortstate"
)

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newModel(t *testing.T, logout func(context.Context) error) (*Model, *apitest.Backend) {
	t.Helper()
	b := apitest.New()
	srv := b.Start(t)
	m := New(context.Background(), Options{
		Source:    api.NewClient(srv.URL, api.Options{}),
		Intervals: config.Default().Intervals,
		Logout:    logout,
		Username:  "user1",
		Origin:    srv.URL,
	})
	return m, b
}

func names(m *Model) []string {
	var out []string
	for _, row := range m.cards[model.ResourceProcesses].frag.Table {
		out = append(out, row[1])
	}
	return out
}

func TestSortKeysAlternateDirection(t *testing.T) {
	m, b := newModel(t, nil)
	b.SetProcesses([]model.Process{
		{PID: 1, Name: "b", CPU: 10, Memory: 50},
		{PID: 2, Name: "a", CPU: 5, Memory: 20},
	})

	_, cmd1 := m.Update(key("2"))
	_, cmd2 := m.Update(key("2"))
	if cmd1 == nil || cmd2 == nil {
		t.Fatal("sort key returned no command")
	}
	if !m.sort.Ascending(sortstate.Name) {
		t.Error("two presses should leave name ascending for the next press")
	}

	m.Update(cmd1())
	if got := names(m); strings.Join(got, ",") != "a,b" {
		t.Errorf("after first press rows = %v, want [a b]", got)
	}
	if !strings.Contains(m.View(), "Name▲") {
		t.Error("view does not mark the ascending name column")
	}

	m.Update(cmd2())
	if got := names(m); strings.Join(got, ",") != "b,a" {
		t.Errorf("after second press rows = %v, want [b a]", got)
	}
	if !strings.Contains(m.View(), "Name▼") {
		t.Error("view does not mark the descending name column")
	}
}

func TestSortResultOlderThanPollIsDropped(t *testing.T) {
	m, b := newModel(t, nil)
	b.SetProcesses([]model.Process{
		{PID: 1, Name: "b", CPU: 10, Memory: 50},
		{PID: 2, Name: "a", CPU: 5, Memory: 20},
	})

	_, cmd := m.Update(key("2"))
	msg := cmd()
	m.Update(updateMsg(dashboard.Update{
		Resource: model.ResourceProcesses,
		Fragment: render.Processes([]model.Process{{PID: 7, Name: "sshd", CPU: 1, Memory: 5}}),
		At:       time.Now(),
	}))
	m.Update(msg)

	if got := names(m); strings.Join(got, ",") != "sshd" {
		t.Errorf("rows = %v, want the newer poll [sshd]", got)
	}
	if strings.Contains(m.View(), "Name▲") {
		t.Error("view marks a sort that was dropped")
	}
}

func TestInitialSortAppliesToFirstProcessList(t *testing.T) {
	b := apitest.New()
	srv := b.Start(t)
	procs := []model.Process{
		{PID: 1, Name: "b", CPU: 10, Memory: 50},
		{PID: 2, Name: "a", CPU: 5, Memory: 20},
	}
	b.SetProcesses(procs)
	m := New(context.Background(), Options{
		Source:    api.NewClient(srv.URL, api.Options{}),
		Intervals: config.Default().Intervals,
		Origin:    srv.URL,
		Sort:      sortstate.Name,
	})

	poll := updateMsg(dashboard.Update{Resource: model.ResourceProcesses, Fragment: render.Processes(procs), At: time.Now()})
	_, cmd := m.Update(poll)
	if cmd == nil {
		t.Fatal("first process list did not trigger the initial sort")
	}
	m.Update(cmd())
	if got := names(m); strings.Join(got, ",") != "a,b" {
		t.Errorf("rows = %v, want [a b]", got)
	}
	if !strings.Contains(m.View(), "Name▲") {
		t.Error("view does not mark the initial sort")
	}

	if _, cmd := m.Update(poll); cmd != nil {
		t.Error("initial sort ran again on a later poll")
	}
}

func TestUpdatesReplaceCards(t *testing.T) {
	m, _ := newModel(t, nil)

	m.Update(updateMsg(dashboard.Update{
		Resource: model.ResourceProcesses,
		Fragment: render.Processes([]model.Process{{PID: 7, Name: "sshd", CPU: 1, Memory: 5}}),
		At:       time.Now(),
	}))
	m.Update(updateMsg(dashboard.Update{
		Resource: model.ResourceUptime,
		Fragment: render.Uptime(model.Uptime{Uptime: "03:00:00"}),
		At:       time.Now(),
	}))

	view := m.View()
	for _, want := range []string{"sshd", "Total Processes: 1, Total CPU: 1%, Total Memory: 5 MB", "System Uptime: 03:00:00", "user1 @ "} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}

	m.Update(updateMsg(dashboard.Update{
		Resource: model.ResourceProcesses,
		Fragment: render.Processes(nil),
		At:       time.Now(),
	}))
	if strings.Contains(m.View(), "sshd") {
		t.Error("stale process row survived a refresh")
	}
}

func TestFailedUpdateKeepsLastFragment(t *testing.T) {
	m, _ := newModel(t, nil)
	m.Update(updateMsg(dashboard.Update{
		Resource: model.ResourceStats,
		Fragment: render.Stats(model.SystemStats{CPUPercent: 42}),
		At:       time.Now(),
	}))
	m.Update(updateMsg(dashboard.Update{Resource: model.ResourceStats, Err: errors.New("connection refused")}))

	view := m.View()
	if !strings.Contains(view, "CPU Usage: 42%") {
		t.Error("last good stats disappeared after a failed poll")
	}
	if !strings.Contains(view, "stale: connection refused") {
		t.Error("failed poll is not flagged as stale")
	}
}

func TestLogoutKey(t *testing.T) {
	called := false
	m, _ := newModel(t, func(context.Context) error {
		called = true
		return nil
	})

	_, cmd := m.Update(key("L"))
	if cmd == nil {
		t.Fatal("logout key returned no command")
	}
	msg := cmd()
	if !called {
		t.Error("logout handler not invoked")
	}
	_, quit := m.Update(msg)
	if quit == nil {
		t.Fatal("logout did not quit the program")
	}
	if m.Result() != ResultLogout {
		t.Errorf("Result() = %v, want ResultLogout", m.Result())
	}
}

func TestLogoutFailureDoesNotReturnToLogin(t *testing.T) {
	m, _ := newModel(t, func(context.Context) error {
		return errors.New("read-only state dir")
	})

	_, cmd := m.Update(key("L"))
	if cmd == nil {
		t.Fatal("logout key returned no command")
	}
	if _, quit := m.Update(cmd()); quit == nil {
		t.Fatal("failed logout did not quit the program")
	}
	if m.Result() != ResultQuit {
		t.Errorf("Result() = %v, want ResultQuit", m.Result())
	}
	if m.Err() == nil {
		t.Error("Err() = nil, want the logout failure")
	}
}

func TestLogoutKeyIgnoredWithoutSession(t *testing.T) {
	m, _ := newModel(t, nil)
	if _, cmd := m.Update(key("L")); cmd != nil {
		t.Error("logout key acted without a logout handler")
	}
	if strings.Contains(m.View(), "L logout") {
		t.Error("help advertises logout in local mode")
	}
}

func TestQuit(t *testing.T) {
	m, _ := newModel(t, nil)
	if _, cmd := m.Update(key("q")); cmd == nil {
		t.Fatal("q returned no command")
	}
	if m.Result() != ResultQuit {
		t.Errorf("Result() = %v, want ResultQuit", m.Result())
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdef", 4); got != "abc…" {
		t.Errorf("truncate() = %q", got)
	}
	if got := truncate("abc", 4); got != "abc" {
		t.Errorf("truncate() = %q", got)
	}
}

package ui

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jonboulle/clockwork"

	"github.com/Dicklesworthstone/opsdash/internal/dashboard"
	"github.com/Dicklesworthstone/opsdash/internal/model"
	"github.com/Dicklesworthstone/opsdash/internal/poller"
	"github.com/Dicklesworthstone/opsdash/internal/render"
	"github.com/Dicklesworthstone/opsdash/internal/sortstate"
)

// Result says why the dashboard closed.
type Result int

const (
	ResultQuit Result = iota
	ResultLogout
)

// Options configure a dashboard run.
type Options struct {
	Source    dashboard.Source
	Intervals dashboard.Intervals
	// Logout is nil when there is no session to end (local mode).
	Logout   func(ctx context.Context) error
	Username string
	Origin   string
	Clock    clockwork.Clock
	// Sort orders the first process list that arrives; empty keeps backend order.
	Sort sortstate.Column
}

type card struct {
	frag    render.Fragment
	err     error
	updated time.Time
}

// Model renders live fragments pushed by the poller.
type Model struct {
	ctx  context.Context
	opts Options

	cards map[model.Resource]*card

	sort      sortstate.State
	sortedBy  sortstate.Column
	sortedAsc bool
	sortErr   error
	offset    int
	// procGen counts process polls; sort results fetched before the latest
	// poll are dropped.
	procGen     int
	initialSort sortstate.Column

	result    Result
	logoutErr error
	closing   bool
	width     int
	height    int
}

func New(ctx context.Context, opts Options) *Model {
	cards := make(map[model.Resource]*card, len(model.Resources))
	for _, r := range model.Resources {
		cards[r] = &card{}
	}
	return &Model{
		ctx:         ctx,
		opts:        opts,
		cards:       cards,
		sort:        sortstate.New(),
		initialSort: opts.Sort,
		width:       120,
		height:      40,
	}
}

// Messages
type (
	updateMsg dashboard.Update
	sortedMsg struct {
		col  sortstate.Column
		asc  bool
		gen  int
		frag render.Fragment
		err  error
	}
	loggedOutMsg struct{ err error }
)

func (m *Model) Init() tea.Cmd { return nil }

// Result reports why the program ended.
func (m *Model) Result() Result { return m.result }

// Err is the logout failure that closed the dashboard, if any.
func (m *Model) Err() error { return m.logoutErr }

var sortKeys = map[string]sortstate.Column{
	"1": sortstate.PID,
	"2": sortstate.Name,
	"3": sortstate.CPU,
	"4": sortstate.Memory,
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case tea.KeyMsg:
		if m.closing {
			return m, nil
		}
		key := msg.String()
		switch key {
		case "q", "ctrl+c":
			m.result = ResultQuit
			return m, tea.Quit
		case "L":
			if m.opts.Logout == nil {
				return m, nil
			}
			m.closing = true
			return m, m.logoutCmd()
		case "j", "down":
			m.scroll(1)
		case "k", "up":
			m.scroll(-1)
		}
		if col, ok := sortKeys[key]; ok {
			return m, m.sortCmd(col)
		}
	case updateMsg:
		c := m.cards[msg.Resource]
		if c == nil {
			return m, nil
		}
		c.err = msg.Err
		if msg.Err == nil {
			c.frag = msg.Fragment
			c.updated = msg.At
			if msg.Resource == model.ResourceProcesses {
				m.procGen++
				m.sortedBy = ""
				m.scroll(0)
				if col := m.initialSort; col != "" {
					m.initialSort = ""
					return m, m.sortCmd(col)
				}
			}
		}
	case sortedMsg:
		if msg.gen != m.procGen {
			return m, nil
		}
		m.sortErr = msg.err
		if msg.err == nil {
			m.cards[model.ResourceProcesses].frag = msg.frag
			m.cards[model.ResourceProcesses].err = nil
			m.sortedBy, m.sortedAsc = msg.col, msg.asc
			m.offset = 0
		}
	case loggedOutMsg:
		if msg.err != nil {
			// The session may still be on disk, so a fresh login is not offered.
			log.Printf("[ui] logout: %v", msg.err)
			m.logoutErr = msg.err
			m.result = ResultQuit
			return m, tea.Quit
		}
		m.result = ResultLogout
		return m, tea.Quit
	}
	return m, nil
}

// sortCmd flips the column's direction now so that repeated presses alternate
// even while earlier fetches are still outstanding.
func (m *Model) sortCmd(col sortstate.Column) tea.Cmd {
	prev := m.sort
	m.sort = m.sort.Toggle(col)
	ctx, src, gen := m.ctx, m.opts.Source, m.procGen
	return func() tea.Msg {
		frag, _, err := dashboard.SortAndRender(ctx, src, prev, col)
		return sortedMsg{col: col, asc: prev.Ascending(col), gen: gen, frag: frag, err: err}
	}
}

func (m *Model) logoutCmd() tea.Cmd {
	ctx, logout := m.ctx, m.opts.Logout
	return func() tea.Msg {
		return loggedOutMsg{err: logout(ctx)}
	}
}

func (m *Model) scroll(delta int) {
	rows := len(m.cards[model.ResourceProcesses].frag.Table)
	m.offset += delta
	if max := rows - m.tableRows(); m.offset > max {
		m.offset = max
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

func (m *Model) tableRows() int {
	n := m.height - 22
	if n < 5 {
		n = 5
	}
	return n
}

// Styles
var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("45"))
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("81")).Bold(true)
	staleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	cardStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("60")).
			Padding(0, 1).
			MarginRight(1)
)

func (m *Model) View() string {
	uptime := "System Uptime: -"
	if lines := m.cards[model.ResourceUptime].frag.Lines; len(lines) > 0 {
		uptime = lines[0]
	}
	who := m.opts.Origin
	if m.opts.Username != "" {
		who = m.opts.Username + " @ " + who
	}
	header := titleStyle.Render("Operations Dashboard") + "  " +
		subtleStyle.Render(who) + "  " + uptime

	statsCard := m.card(model.ResourceStats, "System Stats", 36, 0)
	usersCard := m.card(model.ResourceCurrentUsers, "Logged-in Users", 36, 6)
	lastCard := m.card(model.ResourceLastLoggedUsers, "Last Logged-in Users", 60, 10)
	logsCard := m.card(model.ResourceLogs, "System Logs", m.width/2-4, m.tableRows()+3)
	procCard := m.processCard()

	help := "1 pid · 2 name · 3 cpu · 4 memory · j/k scroll · q quit"
	if m.opts.Logout != nil {
		help = "1 pid · 2 name · 3 cpu · 4 memory · j/k scroll · L logout · q quit"
	}

	line1 := lipgloss.JoinHorizontal(lipgloss.Top, statsCard, usersCard, lastCard)
	line2 := lipgloss.JoinHorizontal(lipgloss.Top, procCard, logsCard)
	return lipgloss.JoinVertical(lipgloss.Left, header, line1, line2, subtleStyle.Render(help))
}

func (m *Model) title(r model.Resource, name string) string {
	c := m.cards[r]
	t := labelStyle.Render(name)
	if !c.updated.IsZero() {
		t += " " + subtleStyle.Render(c.updated.Format("15:04:05"))
	}
	if err := c.err; err != nil {
		t += " " + staleStyle.Render("stale: "+truncate(err.Error(), 40))
	}
	return t
}

func (m *Model) card(r model.Resource, name string, width, limit int) string {
	lines := m.cards[r].frag.Lines
	if limit > 0 && len(lines) > limit {
		lines = lines[:limit]
	}
	body := make([]string, 0, len(lines))
	for _, l := range lines {
		body = append(body, truncate(l, width))
	}
	if len(body) == 0 {
		body = append(body, subtleStyle.Render("(none)"))
	}
	return cardStyle.Render(m.title(r, name) + "\n" + strings.Join(body, "\n"))
}

func (m *Model) processCard() string {
	frag := m.cards[model.ResourceProcesses].frag
	headers := make([]string, len(render.ProcessHeaders))
	copy(headers, render.ProcessHeaders)
	if m.sortedBy != "" {
		arrow := "▼"
		if m.sortedAsc {
			arrow = "▲"
		}
		for i, c := range sortstate.Columns {
			if c == m.sortedBy {
				headers[i] += arrow
			}
		}
	}

	rows := frag.Table
	if m.offset < len(rows) {
		rows = rows[m.offset:]
	} else {
		rows = nil
	}
	body := renderTable(headers, rows, m.tableRows())

	summary := frag.Summary
	if summary == "" {
		summary = subtleStyle.Render("waiting for processes…")
	}
	title := m.title(model.ResourceProcesses, "Processes")
	if m.sortErr != nil {
		title += " " + staleStyle.Render("sort failed: "+truncate(m.sortErr.Error(), 30))
	}
	return cardStyle.Render(title + "\n" + body + "\n" + summary)
}

// Helpers
func renderTable(headers []string, rows [][]string, limit int) string {
	max := min(limit, len(rows))
	var b strings.Builder
	fmt.Fprintf(&b, "%-8s %-24s %8s %10s\n", headers[0], headers[1], headers[2], headers[3])
	for i := 0; i < max; i++ {
		r := rows[i]
		fmt.Fprintf(&b, "%-8s %-24s %8s %10s\n", r[0], truncate(r[1], 24), r[2], r[3])
	}
	return strings.TrimRight(b.String(), "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Run shows the dashboard until the user quits or logs out. Polling starts
// immediately and stops when Run returns.
func Run(ctx context.Context, opts Options) (Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := New(ctx, opts)
	prog := tea.NewProgram(m, tea.WithAltScreen())

	sched := poller.New(opts.Clock)
	err := dashboard.Register(sched, opts.Source, opts.Intervals, func(u dashboard.Update) {
		prog.Send(updateMsg(u))
	})
	if err != nil {
		return ResultQuit, err
	}
	if err := sched.Start(ctx); err != nil {
		return ResultQuit, err
	}

	go func() {
		<-ctx.Done()
		prog.Quit()
	}()

	_, runErr := prog.Run()
	cancel()
	_ = sched.Wait()
	if runErr == nil && m.Err() != nil {
		runErr = fmt.Errorf("logout: %w", m.Err())
	}
	return m.Result(), runErr
}

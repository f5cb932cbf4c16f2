package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/opsdash/internal/api"
	"github.com/Dicklesworthstone/opsdash/internal/auth"
	"github.com/Dicklesworthstone/opsdash/internal/config"
	"github.com/Dicklesworthstone/opsdash/internal/sampler"
	"github.com/Dicklesworthstone/opsdash/internal/session"
	"github.com/Dicklesworthstone/opsdash/internal/ui"
)

// Build info
var (
	version = "dev"
	commit  = "none"
)

func main() {
	root := &cobra.Command{
		Use:          "opsdash",
		Short:        "Live operations dashboard for a monitoring backend",
		Long:         "opsdash signs in to a monitoring backend and keeps a terminal dashboard of its\nstats, users, processes, logs and uptime up to date.",
		SilenceUsage: true,
		RunE:         runDashboard,
	}
	config.Flags(root.PersistentFlags())

	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session without opening the dashboard",
		RunE:  runLogin,
	}

	logoutCmd := &cobra.Command{
		Use:   "logout",
		Short: "End the stored session",
		RunE:  runLogout,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print opsdash version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("opsdash %s (%s)\n", version, commit)
		},
	}

	root.AddCommand(loginCmd, logoutCmd, versionCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

type app struct {
	cfg    config.Config
	client *api.Client
	store  *session.Store
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, err
	}
	return &app{
		cfg: cfg,
		client: api.NewClient(cfg.BaseURL, api.Options{
			Timeout:            cfg.RequestTimeout,
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		}),
		store: session.NewStore(cfg.StateDir),
	}, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func (a *app) login(ctx context.Context) error {
	fmt.Printf("Sign in to %s\n", a.client.BaseURL())
	gate := auth.NewGate(a.client, a.store)
	return auth.NewPrompt(gate, os.Stdin, os.Stdout).Run(ctx)
}

func runLogin(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()
	if err := a.login(ctx); err != nil {
		return err
	}
	fmt.Println("Signed in.")
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()
	if err := auth.NewLogoutHandler(a.client, a.store).Logout(ctx); err != nil {
		return err
	}
	fmt.Println("Logged out.")
	return nil
}

// runDashboard shows the login prompt until a session exists, then the
// dashboard. Logging out from the dashboard returns to the prompt.
func runDashboard(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	col, err := a.cfg.SortColumn()
	if err != nil {
		return err
	}

	if a.cfg.Local {
		host, _ := os.Hostname()
		_, err := a.runTUI(ctx, ui.Options{
			Source:    sampler.New(),
			Intervals: a.cfg.Intervals,
			Origin:    "local:" + host,
			Sort:      col,
		})
		return err
	}

	logout := auth.NewLogoutHandler(a.client, a.store)
	for {
		sess, ok, err := a.store.Load()
		if err != nil {
			return err
		}
		if !ok {
			if err := a.login(ctx); err != nil {
				if errors.Is(err, auth.ErrAborted) || errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}
			continue
		}

		res, err := a.runTUI(ctx, ui.Options{
			Source:    a.client,
			Intervals: a.cfg.Intervals,
			Logout:    logout.Logout,
			Username:  sess.Username,
			Origin:    a.client.BaseURL(),
			Sort:      col,
		})
		// A failed logout returns an error here, so a session that could not
		// be cleared never loops back into the dashboard.
		if err != nil || res != ui.ResultLogout {
			return err
		}
		fmt.Println("Logged out.")
	}
}

// runTUI sends log output to the state directory while the dashboard owns
// the terminal.
func (a *app) runTUI(ctx context.Context, opts ui.Options) (ui.Result, error) {
	if err := os.MkdirAll(a.cfg.StateDir, 0o700); err != nil {
		return ui.ResultQuit, fmt.Errorf("create state dir: %w", err)
	}
	f, err := tea.LogToFile(a.cfg.LogPath(), "opsdash")
	if err != nil {
		return ui.ResultQuit, fmt.Errorf("open log file: %w", err)
	}
	defer func() {
		log.SetOutput(os.Stderr)
		log.SetPrefix("")
		f.Close()
	}()
	return ui.Run(ctx, opts)
}

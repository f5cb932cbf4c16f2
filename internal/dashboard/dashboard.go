// Package dashboard wires resource sources to renderers and the poller.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/Dicklesworthstone/opsdash/internal/model"
	"github.com/Dicklesworthstone/opsdash/internal/render"
	"github.com/Dicklesworthstone/opsdash/internal/sortstate"
)

// Source serves the six dashboard resources. Both the backend client and the
// local sampler implement it.
type Source interface {
	SystemStats(ctx context.Context) (model.SystemStats, error)
	CurrentUsers(ctx context.Context) ([]model.User, error)
	Processes(ctx context.Context) ([]model.Process, error)
	SystemLogs(ctx context.Context) ([]model.LogEntry, error)
	LastLoggedUsers(ctx context.Context) ([]model.LastLogin, error)
	Uptime(ctx context.Context) (model.Uptime, error)
}

// Registrar is the part of the poller that Register needs.
type Registrar interface {
	Register(name string, interval time.Duration, task func(ctx context.Context) error) error
}

// Update is a rendered fragment, or the error that prevented one.
type Update struct {
	Resource model.Resource
	Fragment render.Fragment
	Err      error
	At       time.Time
}

// Fetch reads resource r from src.
func Fetch(ctx context.Context, src Source, r model.Resource) (any, error) {
	switch r {
	case model.ResourceStats:
		return src.SystemStats(ctx)
	case model.ResourceCurrentUsers:
		return src.CurrentUsers(ctx)
	case model.ResourceProcesses:
		return src.Processes(ctx)
	case model.ResourceLogs:
		return src.SystemLogs(ctx)
	case model.ResourceLastLoggedUsers:
		return src.LastLoggedUsers(ctx)
	case model.ResourceUptime:
		return src.Uptime(ctx)
	}
	return nil, fmt.Errorf("unknown resource %q", r)
}

// FetchAndRender reads r and renders it.
func FetchAndRender(ctx context.Context, src Source, r model.Resource) (render.Fragment, error) {
	payload, err := Fetch(ctx, src, r)
	if err != nil {
		return render.Fragment{}, fmt.Errorf("fetch %s: %w", r, err)
	}
	return render.Render(r, payload)
}

// SortAndRender fetches a fresh process list, orders it by col using st and
// renders it. The returned state has col flipped.
func SortAndRender(ctx context.Context, src Source, st sortstate.State, col sortstate.Column) (render.Fragment, sortstate.State, error) {
	procs, err := src.Processes(ctx)
	if err != nil {
		return render.Fragment{}, st, fmt.Errorf("fetch processes: %w", err)
	}
	sorted, next, err := st.Sort(procs, col)
	if err != nil {
		return render.Fragment{}, st, err
	}
	return render.Processes(sorted), next, nil
}

// Intervals gives the polling cadence of a resource.
type Intervals interface {
	For(model.Resource) time.Duration
}

// Register adds one fetch-and-render task per resource to reg. Every outcome,
// success or failure, is handed to sink; failures are also returned to the
// poller so it can log them.
func Register(reg Registrar, src Source, intervals Intervals, sink func(Update)) error {
	for _, r := range model.Resources {
		r := r
		task := func(ctx context.Context) error {
			frag, err := FetchAndRender(ctx, src, r)
			if ctx.Err() != nil {
				return nil
			}
			sink(Update{Resource: r, Fragment: frag, Err: err, At: time.Now()})
			return err
		}
		if err := reg.Register(string(r), intervals.For(r), task); err != nil {
			return err
		}
	}
	return nil
}

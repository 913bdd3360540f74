// Package health decides whether the ETL process is alive by inspecting its
// recent monitoring events and the reachability of both stores.
package health

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rpattn/tamperlog/internal/domain"
	"github.com/rpattn/tamperlog/internal/scheduler"
)

// DefaultMarkers are the messages that prove the loop made progress.
var DefaultMarkers = []string{
	"scheduler started",
	"tamper-log etl finished",
	"etl finished",
	"etl completed",
}

// EventReader is the read side of the monitoring store.
type EventReader interface {
	Latest(ctx context.Context, q domain.EventQuery) (*domain.Event, error)
	AnyAtLevel(ctx context.Context, q domain.EventQuery, levels ...string) (bool, error)
	Ping(ctx context.Context) error
}

// Pinger is a store that can answer a liveness ping.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures a Probe.
type Options struct {
	App         string
	Environment string
	Window      scheduler.Window
	Lookback    time.Duration
	Markers     []string
}

// Result is the probe verdict. Reason is set on every outcome.
type Result struct {
	Healthy bool   `json:"healthy"`
	Reason  string `json:"reason"`
}

// Probe checks liveness. Source and Target may be nil to skip the pings.
type Probe struct {
	events EventReader
	source Pinger
	target Pinger
	opts   Options
	now    func() time.Time
}

// NewProbe creates a probe.
func NewProbe(events EventReader, source, target Pinger, opts Options) *Probe {
	if opts.Lookback <= 0 {
		opts.Lookback = 5 * time.Minute
	}
	if len(opts.Markers) == 0 {
		opts.Markers = DefaultMarkers
	}
	return &Probe{events: events, source: source, target: target, opts: opts, now: time.Now}
}

// Check runs every condition in order and stops at the first failure.
func (p *Probe) Check(ctx context.Context) Result {
	now := p.now()
	if !p.opts.Window.Contains(now) {
		return Result{Healthy: true, Reason: "outside allowed window"}
	}

	if err := p.events.Ping(ctx); err != nil {
		return unhealthy("monitoring store unreachable: %v", err)
	}

	// String timestamps are written in the window's local zone.
	loc := p.opts.Window.Location
	if loc == nil {
		loc = time.Local
	}
	since := now.Add(-p.opts.Lookback)
	q := domain.EventQuery{
		App:         p.opts.App,
		Environment: p.opts.Environment,
		Since:       since.UTC(),
		SinceText:   since.In(loc).Format(time.DateTime),
	}

	latest, err := p.events.Latest(ctx, q)
	if err != nil {
		return unhealthy("failed to read latest event: %v", err)
	}
	if latest == nil {
		return unhealthy("no event in the last %s", p.opts.Lookback)
	}

	failed, err := p.events.AnyAtLevel(ctx, q, domain.LevelError, domain.LevelCritical)
	if err != nil {
		return unhealthy("failed to read error events: %v", err)
	}
	if failed {
		return unhealthy("error or critical event in the last %s", p.opts.Lookback)
	}

	if !p.isMarker(latest.Message) {
		return unhealthy("latest event %q is not a progress marker", latest.Message)
	}

	if p.source != nil {
		if err := p.source.Ping(ctx); err != nil {
			return unhealthy("source store unreachable: %v", err)
		}
	}
	if p.target != nil {
		if err := p.target.Ping(ctx); err != nil {
			return unhealthy("target store unreachable: %v", err)
		}
	}

	return Result{Healthy: true, Reason: "ok"}
}

func (p *Probe) isMarker(message string) bool {
	message = strings.ToLower(message)
	for _, marker := range p.opts.Markers {
		if strings.Contains(message, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}

func unhealthy(format string, args ...any) Result {
	return Result{Healthy: false, Reason: fmt.Sprintf(format, args...)}
}

// ExitCode maps a result onto the process exit status.
func (r Result) ExitCode() int {
	if r.Healthy {
		return 0
	}
	return 1
}

package scan

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// State is the polling loop's explicit state.
type State int

const (
	StatePolling State = iota
	StateCompleted
	StateFailed
	StateTimedOut
	StateErrored
)

func (s State) String() string {
	switch s {
	case StatePolling:
		return "polling"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed_out"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Options configure one polling run.
type Options struct {
	MaxAttempts     int
	InitialInterval time.Duration
	BackoffFactor   float64
	MaxInterval     time.Duration

	// OnAttempt, when set, is invoked after every status query with the
	// 1-based attempt number and the status it observed.
	OnAttempt func(attempt int, status AnalysisStatus)
}

// DefaultOptions returns the stock polling schedule: up to 20 attempts,
// delays of 2s growing by 1.5x and capped at 8s.
func DefaultOptions() Options {
	return Options{
		MaxAttempts:     20,
		InitialInterval: 2 * time.Second,
		BackoffFactor:   1.5,
		MaxInterval:     8 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = d.MaxAttempts
	}
	if o.InitialInterval <= 0 {
		o.InitialInterval = d.InitialInterval
	}
	if o.BackoffFactor <= 1 {
		o.BackoffFactor = d.BackoffFactor
	}
	if o.MaxInterval <= 0 {
		o.MaxInterval = d.MaxInterval
	}
	return o
}

// SleepFunc suspends for d or until ctx is done, returning ctx.Err() in the
// latter case. Injectable so tests can record the backoff schedule without
// real timers.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Poller drives one analysis to a terminal state. Each Wait call owns its
// own attempt counter and interval; a single Poller is safe to use from
// multiple goroutines.
type Poller struct {
	fetcher AnalysisFetcher
	opts    Options
	logger  *zap.SugaredLogger
	sleep   SleepFunc
}

// NewPoller creates a Poller using the given fetcher and options.
func NewPoller(fetcher AnalysisFetcher, opts Options, logger *zap.SugaredLogger) *Poller {
	return &Poller{
		fetcher: fetcher,
		opts:    opts.withDefaults(),
		logger:  logger,
		sleep:   sleepContext,
	}
}

// SetSleep replaces the inter-attempt suspension. Tests inject a recording
// sleeper here to verify the backoff schedule without real timers.
func (p *Poller) SetSleep(sleep SleepFunc) {
	if sleep != nil {
		p.sleep = sleep
	}
}

// Wait polls the analysis until it completes, fails, or the attempt budget
// runs out, then aggregates the completed report.
//
// Status queries are strictly sequential. ctx is checked before every query
// and during every inter-attempt delay. A transport or schema error on any
// attempt is terminal; only non-terminal statuses are retried.
func (p *Poller) Wait(ctx context.Context, analysisID string) (*ScanReport, error) {
	state := StatePolling
	attempt := 0
	interval := p.opts.InitialInterval

	for state == StatePolling {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		analysis, err := p.fetcher.FetchAnalysis(ctx, analysisID)
		attempt++
		if err != nil {
			// Transport and schema failures do not get the
			// status-based retry treatment: one bad poll ends the
			// run.
			state = StateErrored
			p.logger.Warnw("Status query failed",
				"analysis_id", analysisID,
				"attempt", attempt,
				"error", err,
			)
			return nil, err
		}

		if p.opts.OnAttempt != nil {
			p.opts.OnAttempt(attempt, analysis.Status)
		}

		switch analysis.Status {
		case StatusCompleted:
			state = StateCompleted
			p.logger.Infow("Analysis completed",
				"analysis_id", analysisID,
				"attempts", attempt,
			)
			return Aggregate(analysis)

		case StatusFailed:
			state = StateFailed
			p.logger.Warnw("Analysis failed on provider side",
				"analysis_id", analysisID,
				"attempts", attempt,
			)
			return nil, &AnalysisFailedError{AnalysisID: analysisID}

		default:
			// queued, in-progress, or something we do not
			// recognize: keep waiting.
			if attempt >= p.opts.MaxAttempts {
				state = StateTimedOut
				return nil, &TimeoutError{Attempts: attempt}
			}

			p.logger.Debugw("Analysis still pending",
				"analysis_id", analysisID,
				"status", analysis.RawStatus,
				"attempt", attempt,
				"next_delay", interval,
			)

			if err := p.sleep(ctx, interval); err != nil {
				return nil, err
			}
			interval = nextInterval(interval, p.opts.BackoffFactor, p.opts.MaxInterval)
		}
	}

	// Unreachable: every branch above returns.
	return nil, &TimeoutError{Attempts: attempt}
}

func nextInterval(current time.Duration, factor float64, max time.Duration) time.Duration {
	next := time.Duration(float64(current) * factor)
	if next > max {
		return max
	}
	return next
}

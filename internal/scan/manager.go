package scan

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/syauqi01234-prog/url-scanner/internal/callback"
	"github.com/syauqi01234-prog/url-scanner/internal/publisher"
	"go.uber.org/zap"
)

// JobStatus is the lifecycle state of an asynchronous scan job.
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Job is a point-in-time snapshot of an asynchronous scan.
type Job struct {
	ID        string      `json:"scan_id"`
	URL       string      `json:"url"`
	Status    JobStatus   `json:"status"`
	Attempts  int         `json:"attempts"`
	Report    *ScanReport `json:"report,omitempty"`
	Error     string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// CallbackConfig holds caller-supplied URLs for progress and completion
// callbacks of an asynchronous scan.
type CallbackConfig struct {
	ProgressURL string
	CompleteURL string
	APIKey      string
}

type job struct {
	Job
	cancel context.CancelFunc
}

// Manager runs scan orchestrations: submit the URL, poll the analysis,
// aggregate the verdict. Synchronous scans return the report directly;
// asynchronous scans are tracked in an in-memory registry keyed by scan ID.
// Each orchestration owns its own poller state, so scans run independently.
type Manager struct {
	submitter Submitter
	fetcher   AnalysisFetcher
	opts      Options
	publisher *publisher.Publisher
	logger    *zap.SugaredLogger

	mu   sync.RWMutex
	jobs map[string]*job
	wg   sync.WaitGroup
}

// NewManager creates a Manager. pub may be nil when event publishing is
// disabled.
func NewManager(submitter Submitter, fetcher AnalysisFetcher, opts Options, pub *publisher.Publisher, logger *zap.SugaredLogger) *Manager {
	return &Manager{
		submitter: submitter,
		fetcher:   fetcher,
		opts:      opts.withDefaults(),
		publisher: pub,
		logger:    logger,
		jobs:      make(map[string]*job),
	}
}

// Run performs one synchronous scan: submit, poll until terminal, aggregate.
// The caller's ctx cancels both the submission and every polling suspension.
func (m *Manager) Run(ctx context.Context, rawURL string) (*ScanReport, error) {
	scanID := uuid.New().String()

	analysisID, err := m.submitter.SubmitURL(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	m.logger.Infow("URL submitted for analysis",
		"scan_id", scanID,
		"url", rawURL,
		"analysis_id", analysisID,
	)

	poller := NewPoller(m.fetcher, m.opts, m.logger)
	report, err := poller.Wait(ctx, analysisID)
	m.publishOutcome(scanID, rawURL, report, err)
	return report, err
}

// Start submits the URL synchronously and, on success, polls the analysis in
// the background. It returns the scan ID used to look the job up later.
// Submission errors are returned directly so the caller can reject bad input
// without a job ever existing.
func (m *Manager) Start(ctx context.Context, rawURL string, cb CallbackConfig) (string, error) {
	analysisID, err := m.submitter.SubmitURL(ctx, rawURL)
	if err != nil {
		return "", err
	}

	scanID := uuid.New().String()
	jobCtx, cancel := context.WithCancel(context.Background())

	now := time.Now().UTC()
	j := &job{
		Job: Job{
			ID:        scanID,
			URL:       rawURL,
			Status:    JobRunning,
			CreatedAt: now,
			UpdatedAt: now,
		},
		cancel: cancel,
	}

	m.mu.Lock()
	m.jobs[scanID] = j
	m.mu.Unlock()

	m.logger.Infow("Starting background scan",
		"scan_id", scanID,
		"url", rawURL,
		"analysis_id", analysisID,
	)

	var reporter *callback.Reporter
	if cb.ProgressURL != "" || cb.CompleteURL != "" {
		reporter = callback.NewReporter(scanID, cb.ProgressURL, cb.CompleteURL, cb.APIKey, m.logger)
	}

	m.wg.Add(1)
	go m.runJob(jobCtx, j, analysisID, reporter)

	return scanID, nil
}

func (m *Manager) runJob(ctx context.Context, j *job, analysisID string, reporter *callback.Reporter) {
	defer m.wg.Done()

	opts := m.opts
	opts.OnAttempt = func(attempt int, status AnalysisStatus) {
		m.mu.Lock()
		j.Attempts = attempt
		j.UpdatedAt = time.Now().UTC()
		m.mu.Unlock()

		if reporter != nil {
			progress := attempt * 100 / opts.MaxAttempts
			if progress > 99 {
				progress = 99 // Reserve 100 for completion
			}
			msg := fmt.Sprintf("Status check %d/%d: %s", attempt, opts.MaxAttempts, status)
			if err := reporter.ReportProgress("polling", progress, msg); err != nil {
				m.logger.Warnw("Failed to report progress", "scan_id", j.ID, "error", err)
			}
		}
	}

	poller := NewPoller(m.fetcher, opts, m.logger)
	report, err := poller.Wait(ctx, analysisID)

	m.mu.Lock()
	j.UpdatedAt = time.Now().UTC()
	switch {
	case err == nil:
		j.Status = JobCompleted
		j.Report = report
	case ctx.Err() != nil:
		j.Status = JobCancelled
		j.Error = "scan was cancelled"
	default:
		j.Status = JobFailed
		j.Error = err.Error()
	}
	status, errMsg := j.Status, j.Error
	m.mu.Unlock()

	m.publishOutcome(j.ID, j.URL, report, err)

	if reporter != nil {
		verdict := ""
		if report != nil {
			verdict = string(report.Verdict)
		}
		if cerr := reporter.ReportComplete(string(status), verdict, errMsg); cerr != nil {
			m.logger.Errorw("Failed to report completion", "scan_id", j.ID, "error", cerr)
		}
	}

	m.logger.Infow("Background scan finished",
		"scan_id", j.ID,
		"status", status,
	)
}

func (m *Manager) publishOutcome(scanID, rawURL string, report *ScanReport, err error) {
	if m.publisher == nil {
		return
	}

	if err == nil && report != nil {
		data := publisher.AnalysisCompletedData{
			ScanID:      scanID,
			URL:         rawURL,
			Verdict:     string(report.Verdict),
			Stats:       report.Stats,
			Percentages: report.Percentages,
		}
		if perr := m.publisher.PublishAnalysisCompleted(data); perr != nil {
			m.logger.Errorw("Failed to publish completion event", "scan_id", scanID, "error", perr)
		}
		return
	}

	msg := "scan was cancelled"
	if err != nil {
		msg = err.Error()
	}
	data := publisher.AnalysisFailedData{
		ScanID: scanID,
		URL:    rawURL,
		Reason: msg,
	}
	if perr := m.publisher.PublishAnalysisFailed(data); perr != nil {
		m.logger.Errorw("Failed to publish failure event", "scan_id", scanID, "error", perr)
	}
}

// Get returns a snapshot of the job with the given scan ID.
func (m *Manager) Get(scanID string) (Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[scanID]
	if !ok {
		return Job{}, false
	}
	return j.Job, true
}

// Cancel stops a running job. It reports whether the job existed.
func (m *Manager) Cancel(scanID string) bool {
	m.mu.RLock()
	j, ok := m.jobs[scanID]
	m.mu.RUnlock()

	if !ok {
		return false
	}
	j.cancel()
	return true
}

// Stop cancels all running jobs and waits for their goroutines to finish.
func (m *Manager) Stop() {
	m.mu.RLock()
	for _, j := range m.jobs {
		j.cancel()
	}
	m.mu.RUnlock()

	m.wg.Wait()
	m.logger.Info("Scan manager stopped")
}

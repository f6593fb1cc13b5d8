package scan_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/syauqi01234-prog/url-scanner/internal/scan"
	"go.uber.org/zap"
)

// fixedProvider hands out one analysis ID and one analysis state.
type fixedProvider struct {
	analysisID string
	submitErr  error
	analysis   *scan.Analysis
	fetchErr   error
}

func (f *fixedProvider) SubmitURL(ctx context.Context, rawURL string) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return f.analysisID, nil
}

func (f *fixedProvider) FetchAnalysis(ctx context.Context, analysisID string) (*scan.Analysis, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.analysis, nil
}

func waitForJob(t *testing.T, m *scan.Manager, scanID string) scan.Job {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		j, ok := m.Get(scanID)
		if ok && j.Status != scan.JobRunning {
			return j
		}
		if time.Now().After(deadline) {
			t.Fatalf("job %s still running after deadline", scanID)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestManagerRun(t *testing.T) {
	p := &fixedProvider{
		analysisID: "u-1",
		analysis: &scan.Analysis{
			Status: scan.StatusCompleted,
			Stats:  scan.DetectionStats{"suspicious": 1, "harmless": 9},
		},
	}
	m := scan.NewManager(p, p, scan.DefaultOptions(), nil, zap.NewNop().Sugar())

	report, err := m.Run(context.Background(), "https://example.com")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if report.Verdict != scan.VerdictSuspicious {
		t.Errorf("verdict = %q, want suspicious", report.Verdict)
	}
}

func TestManagerRunPropagatesSubmissionError(t *testing.T) {
	p := &fixedProvider{submitErr: &scan.InvalidInputError{URL: "x", Reason: "URL is empty"}}
	m := scan.NewManager(p, p, scan.DefaultOptions(), nil, zap.NewNop().Sugar())

	_, err := m.Run(context.Background(), "")

	var inputErr *scan.InvalidInputError
	if !errors.As(err, &inputErr) {
		t.Fatalf("err = %v, want InvalidInputError", err)
	}
}

func TestManagerStartAndGet(t *testing.T) {
	p := &fixedProvider{
		analysisID: "u-1",
		analysis: &scan.Analysis{
			Status: scan.StatusCompleted,
			Stats:  scan.DetectionStats{"harmless": 4},
		},
	}
	m := scan.NewManager(p, p, scan.DefaultOptions(), nil, zap.NewNop().Sugar())

	scanID, err := m.Start(context.Background(), "https://example.com", scan.CallbackConfig{})
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	job := waitForJob(t, m, scanID)
	if job.Status != scan.JobCompleted {
		t.Errorf("job status = %q, want completed", job.Status)
	}
	if job.Report == nil || job.Report.Verdict != scan.VerdictSafe {
		t.Errorf("job report = %+v, want safe verdict", job.Report)
	}
	if job.URL != "https://example.com" {
		t.Errorf("job URL = %q", job.URL)
	}
}

func TestManagerStartRecordsFailure(t *testing.T) {
	p := &fixedProvider{
		analysisID: "u-1",
		fetchErr:   &scan.TransportError{Op: "GET", Message: "connection reset"},
	}
	m := scan.NewManager(p, p, scan.DefaultOptions(), nil, zap.NewNop().Sugar())

	scanID, err := m.Start(context.Background(), "https://example.com", scan.CallbackConfig{})
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	job := waitForJob(t, m, scanID)
	if job.Status != scan.JobFailed {
		t.Errorf("job status = %q, want failed", job.Status)
	}
	if job.Error == "" {
		t.Error("expected a display-ready error message on the job")
	}
}

func TestManagerCancel(t *testing.T) {
	// Analysis never leaves the queue, so the poller sits in its delay
	// until the cancel lands.
	p := &fixedProvider{
		analysisID: "u-1",
		analysis:   &scan.Analysis{Status: scan.StatusQueued, RawStatus: "queued"},
	}
	m := scan.NewManager(p, p, scan.DefaultOptions(), nil, zap.NewNop().Sugar())

	scanID, err := m.Start(context.Background(), "https://example.com", scan.CallbackConfig{})
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	if !m.Cancel(scanID) {
		t.Fatal("Cancel reported unknown scan id")
	}
	if m.Cancel("nope") {
		t.Error("Cancel of unknown id reported success")
	}

	job := waitForJob(t, m, scanID)
	if job.Status != scan.JobCancelled {
		t.Errorf("job status = %q, want cancelled", job.Status)
	}
}

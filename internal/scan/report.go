// Package scan implements the URL scan orchestration core: the polling state
// machine that drives an asynchronous provider analysis to completion and the
// aggregation of raw detection counts into a verdict.
package scan

import "context"

// AnalysisStatus is the normalized lifecycle state of a provider analysis.
type AnalysisStatus string

const (
	StatusQueued     AnalysisStatus = "queued"
	StatusInProgress AnalysisStatus = "in-progress"
	StatusCompleted  AnalysisStatus = "completed"
	StatusFailed     AnalysisStatus = "failed"
	StatusUnknown    AnalysisStatus = "unknown"
)

// ParseStatus maps a raw provider status string to an AnalysisStatus.
// Unrecognized non-empty values map to StatusUnknown; the poller keeps
// waiting on those rather than treating them as fatal.
func ParseStatus(raw string) AnalysisStatus {
	switch raw {
	case "queued":
		return StatusQueued
	case "in-progress", "inProgress":
		return StatusInProgress
	case "completed":
		return StatusCompleted
	case "failed":
		return StatusFailed
	default:
		return StatusUnknown
	}
}

// Terminal reports whether the status ends the polling loop.
func (s AnalysisStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// DetectionStats maps a detection category (malicious, suspicious, harmless,
// undetected, ...) to the number of engines that reported it. Counts are
// never negative.
type DetectionStats map[string]int

// Total returns the sum of all category counts.
func (d DetectionStats) Total() int {
	total := 0
	for _, n := range d {
		total += n
	}
	return total
}

// EngineResult is one engine's categorization of the scanned URL, in the
// order the provider listed it.
type EngineResult struct {
	Engine   string `json:"engine"`
	Category string `json:"category"`
	Result   string `json:"result,omitempty"`
}

// Analysis is the decoded state of a provider analysis at one point in time.
// Stats and Engines are only populated once the analysis has completed;
// Engines preserves provider insertion order for display.
type Analysis struct {
	Status    AnalysisStatus
	RawStatus string
	Stats     DetectionStats
	Engines   []EngineResult
}

// Verdict is the coarse overall classification derived from detection counts.
type Verdict string

const (
	VerdictMalicious  Verdict = "malicious"
	VerdictSuspicious Verdict = "suspicious"
	VerdictSafe       Verdict = "safe"
)

// EngineRow is one row of the per-engine detail table. Category holds the
// provider's raw string; Class is the display-level bucket (malicious,
// suspicious, or safe) used for labeling.
type EngineRow struct {
	Engine   string `json:"engine"`
	Category string `json:"category"`
	Result   string `json:"result,omitempty"`
	Class    string `json:"class"`
}

// ScanReport is the aggregated outcome of a completed analysis, handed by
// value to consumers. Engines may be empty when the provider returned no
// per-engine detail; consumers degrade gracefully in that case.
type ScanReport struct {
	Stats       DetectionStats     `json:"stats"`
	Percentages map[string]float64 `json:"percentages"`
	Engines     []EngineRow        `json:"engines,omitempty"`
	Verdict     Verdict            `json:"verdict"`
}

// Submitter submits a URL for analysis and returns the provider's analysis ID.
type Submitter interface {
	SubmitURL(ctx context.Context, rawURL string) (string, error)
}

// AnalysisFetcher retrieves the current state of an analysis by ID.
type AnalysisFetcher interface {
	FetchAnalysis(ctx context.Context, analysisID string) (*Analysis, error)
}

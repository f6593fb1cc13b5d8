package scan

import "fmt"

// InvalidInputError indicates the submitted URL failed validation before any
// network call was made.
type InvalidInputError struct {
	URL    string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid URL %q: %s", e.URL, e.Reason)
}

// TransportError indicates a network or HTTP-level failure talking to the
// scanning provider. Message carries the provider's error message when one
// was returned, otherwise the HTTP status text.
type TransportError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s failed (HTTP %d): %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s failed: %s", e.Op, e.Message)
}

// MalformedResponseError indicates the provider response was missing an
// expected field.
type MalformedResponseError struct {
	Field string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed provider response: missing %s", e.Field)
}

// AnalysisFailedError indicates the provider reported the analysis itself as
// failed.
type AnalysisFailedError struct {
	AnalysisID string
}

func (e *AnalysisFailedError) Error() string {
	return fmt.Sprintf("analysis %s failed on the provider side", e.AnalysisID)
}

// TimeoutError indicates the polling attempt budget was exhausted before the
// analysis reached a terminal state.
type TimeoutError struct {
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("analysis not finished after %d status checks, giving up", e.Attempts)
}

// InvalidReportError indicates a completed analysis arrived without the
// detection stats needed to aggregate a verdict.
type InvalidReportError struct {
	Reason string
}

func (e *InvalidReportError) Error() string {
	return fmt.Sprintf("invalid analysis report: %s", e.Reason)
}

// EmptyReportError indicates the analysis completed but no engine reported
// anything at all, so percentages cannot be computed.
type EmptyReportError struct{}

func (e *EmptyReportError) Error() string {
	return "analysis report contains no detections of any kind"
}

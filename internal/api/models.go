// Package api provides the HTTP API for the URL scanner service.
package api

// ScanURLRequest represents the request body for scanning a URL.
// ProgressURL and CompleteURL are only honored for background scans.
type ScanURLRequest struct {
	URL         string `json:"url" binding:"required"`
	ProgressURL string `json:"progress_url" binding:"omitempty,url"`
	CompleteURL string `json:"complete_url" binding:"omitempty,url"`
}

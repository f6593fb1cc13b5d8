package provider_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/syauqi01234-prog/url-scanner/internal/config"
	"github.com/syauqi01234-prog/url-scanner/internal/provider"
	"github.com/syauqi01234-prog/url-scanner/internal/scan"
	"go.uber.org/zap"
)

func newTestClient(baseURL string) *provider.Client {
	return provider.New(config.ProviderConfig{
		BaseURL:   baseURL,
		TimeoutMS: 2000,
	}, zap.NewNop().Sugar())
}

func TestSubmitURL(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Method != http.MethodPost || r.URL.Path != "/api/scan-url" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"id":"u-abc123"}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	id, err := client.SubmitURL(context.Background(), "https://example.com/login")
	if err != nil {
		t.Fatalf("SubmitURL returned error: %v", err)
	}
	if id != "u-abc123" {
		t.Errorf("analysis id = %q, want u-abc123", id)
	}
	if calls != 1 {
		t.Errorf("server saw %d requests, want 1", calls)
	}
}

func TestSubmitURLRejectsInvalidInputBeforeNetwork(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	tests := []string{
		"",
		"not a url at all\x7f",
		"example.com/no-scheme",
		"https://", // scheme without host
		"/relative/path",
	}
	for _, rawURL := range tests {
		_, err := client.SubmitURL(context.Background(), rawURL)

		var inputErr *scan.InvalidInputError
		if !errors.As(err, &inputErr) {
			t.Errorf("SubmitURL(%q) err = %v, want InvalidInputError", rawURL, err)
		}
	}

	if calls != 0 {
		t.Errorf("server saw %d requests, want 0 for invalid input", calls)
	}
}

func TestSubmitURLMissingID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.SubmitURL(context.Background(), "https://example.com")

	var malformedErr *scan.MalformedResponseError
	if !errors.As(err, &malformedErr) {
		t.Fatalf("err = %v, want MalformedResponseError", err)
	}
}

func TestSubmitURLPrefersProviderErrorMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Quota exceeded, slow down"}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.SubmitURL(context.Background(), "https://example.com")

	var transportErr *scan.TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("err = %v, want TransportError", err)
	}
	if transportErr.Message != "Quota exceeded, slow down" {
		t.Errorf("message = %q, want provider message", transportErr.Message)
	}
	if transportErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", transportErr.StatusCode)
	}
}

func TestSubmitURLFallsBackToStatusText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`upstream exploded`)) // not JSON
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.SubmitURL(context.Background(), "https://example.com")

	var transportErr *scan.TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("err = %v, want TransportError", err)
	}
	if transportErr.Message != http.StatusText(http.StatusBadGateway) {
		t.Errorf("message = %q, want status text fallback", transportErr.Message)
	}
}

func TestSubmitURLGarbledSuccessBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>definitely not json`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.SubmitURL(context.Background(), "https://example.com")

	var transportErr *scan.TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("err = %v, want TransportError", err)
	}
}

func TestSubmitURLConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // nothing listening anymore

	client := newTestClient(server.URL)
	_, err := client.SubmitURL(context.Background(), "https://example.com")

	var transportErr *scan.TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("err = %v, want TransportError", err)
	}
}

func TestSubmitURLSendsAPIKey(t *testing.T) {
	var gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-apikey")
		_, _ = w.Write([]byte(`{"data":{"id":"u-1"}}`))
	}))
	defer server.Close()

	client := provider.New(config.ProviderConfig{
		BaseURL: server.URL,
		APIKey:  "secret-key",
	}, zap.NewNop().Sugar())

	if _, err := client.SubmitURL(context.Background(), "https://example.com"); err != nil {
		t.Fatalf("SubmitURL returned error: %v", err)
	}
	if gotKey != "secret-key" {
		t.Errorf("x-apikey = %q, want secret-key", gotKey)
	}
}

func TestFetchAnalysis(t *testing.T) {
	body := `{
		"data": {
			"attributes": {
				"status": "completed",
				"stats": {"malicious": 2, "suspicious": 0, "harmless": 60, "undetected": 8},
				"results": {
					"Zulu": {"category": "malicious", "engine_name": "Zulu", "result": "malware"},
					"Acronis": {"category": "harmless", "engine_name": "Acronis", "result": "clean"},
					"Bkav": {"category": "undetected", "engine_name": "Bkav"}
				}
			}
		}
	}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/analyses/u-1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	analysis, err := client.FetchAnalysis(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("FetchAnalysis returned error: %v", err)
	}

	if analysis.Status != scan.StatusCompleted {
		t.Errorf("status = %q, want completed", analysis.Status)
	}
	if analysis.Stats["malicious"] != 2 {
		t.Errorf("stats = %v", analysis.Stats)
	}

	// Insertion order from the response body, not map order
	wantOrder := []string{"Zulu", "Acronis", "Bkav"}
	if len(analysis.Engines) != len(wantOrder) {
		t.Fatalf("got %d engines, want %d", len(analysis.Engines), len(wantOrder))
	}
	for i, name := range wantOrder {
		if analysis.Engines[i].Engine != name {
			t.Errorf("engine %d = %q, want %q", i, analysis.Engines[i].Engine, name)
		}
	}
	if analysis.Engines[0].Category != "malicious" || analysis.Engines[0].Result != "malware" {
		t.Errorf("engine 0 = %+v", analysis.Engines[0])
	}
}

func TestFetchAnalysisPendingWithoutStats(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"attributes":{"status":"queued"}}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	analysis, err := client.FetchAnalysis(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("FetchAnalysis returned error: %v", err)
	}
	if analysis.Status != scan.StatusQueued {
		t.Errorf("status = %q, want queued", analysis.Status)
	}
	if analysis.Stats != nil {
		t.Errorf("stats = %v, want nil while pending", analysis.Stats)
	}
}

func TestFetchAnalysisMissingStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"attributes":{}}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.FetchAnalysis(context.Background(), "u-1")

	var malformedErr *scan.MalformedResponseError
	if !errors.As(err, &malformedErr) {
		t.Fatalf("err = %v, want MalformedResponseError", err)
	}
}

func TestFetchAnalysisNormalizesUnknownStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"attributes":{"status":"reprocessing"}}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	analysis, err := client.FetchAnalysis(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("FetchAnalysis returned error: %v", err)
	}
	if analysis.Status != scan.StatusUnknown {
		t.Errorf("status = %q, want unknown", analysis.Status)
	}
	if analysis.RawStatus != "reprocessing" {
		t.Errorf("raw status = %q, want original string", analysis.RawStatus)
	}
}

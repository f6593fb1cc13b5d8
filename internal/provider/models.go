// Package provider implements the HTTP client for the malware-scanning
// provider, reached through its proxy base URL.
package provider

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/syauqi01234-prog/url-scanner/internal/scan"
)

// submitResponse is the provider's answer to a URL submission.
type submitResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// errorResponse is the provider's JSON error body.
type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// analysisResponse is the provider's answer to a status query. Results is
// kept raw so engine insertion order can be recovered during decoding.
type analysisResponse struct {
	Data struct {
		Attributes struct {
			Status  string          `json:"status"`
			Stats   map[string]int  `json:"stats"`
			Results json.RawMessage `json:"results"`
		} `json:"attributes"`
	} `json:"data"`
}

// engineEntry is one value of the provider's results object.
type engineEntry struct {
	Category   string `json:"category"`
	EngineName string `json:"engine_name"`
	Result     string `json:"result"`
}

// decodeEngineResults walks the raw results object token by token so that
// engines come out in the order the provider listed them. encoding/json maps
// would lose that order.
func decodeEngineResults(raw json.RawMessage) ([]scan.EngineResult, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decoding results: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("decoding results: expected object, got %v", tok)
	}

	var engines []scan.EngineResult
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decoding results: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("decoding results: non-string key %v", keyTok)
		}

		var entry engineEntry
		if err := dec.Decode(&entry); err != nil {
			return nil, fmt.Errorf("decoding results entry %q: %w", key, err)
		}

		engines = append(engines, scan.EngineResult{
			Engine:   key,
			Category: entry.Category,
			Result:   entry.Result,
		})
	}

	return engines, nil
}

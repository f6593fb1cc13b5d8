package scan

import "math"

// Aggregate converts a completed analysis into a ScanReport: per-category
// percentages plus an overall verdict.
//
// Percentages are rounded to one decimal independently, so they may sum to
// slightly more or less than 100. That drift is accepted rather than
// normalized away.
func Aggregate(a *Analysis) (*ScanReport, error) {
	if a == nil || a.Stats == nil {
		return nil, &InvalidReportError{Reason: "no detection stats in response"}
	}

	total := a.Stats.Total()
	if total == 0 {
		return nil, &EmptyReportError{}
	}

	percentages := make(map[string]float64, len(a.Stats))
	for category, count := range a.Stats {
		percentages[category] = round1(float64(count) / float64(total) * 100)
	}

	rows := make([]EngineRow, 0, len(a.Engines))
	for _, er := range a.Engines {
		rows = append(rows, EngineRow{
			Engine:   er.Engine,
			Category: er.Category,
			Result:   er.Result,
			Class:    classify(er.Category),
		})
	}

	return &ScanReport{
		Stats:       a.Stats,
		Percentages: percentages,
		Engines:     rows,
		Verdict:     deriveVerdict(a.Stats),
	}, nil
}

// deriveVerdict applies the tie-break policy: any malicious detection wins,
// then any suspicious one, otherwise the URL is considered safe. Harmless
// and undetected counts never influence the verdict.
func deriveVerdict(stats DetectionStats) Verdict {
	if stats["malicious"] > 0 {
		return VerdictMalicious
	}
	if stats["suspicious"] > 0 {
		return VerdictSuspicious
	}
	return VerdictSafe
}

// classify buckets an engine category for display. The comparison is
// case-sensitive on purpose: anything that is not exactly malicious or
// suspicious is labeled safe, while the raw category string stays untouched
// on the row.
func classify(category string) string {
	switch category {
	case "malicious":
		return "malicious"
	case "suspicious":
		return "suspicious"
	default:
		return "safe"
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

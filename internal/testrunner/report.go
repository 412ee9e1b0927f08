package testrunner

import (
	"fmt"
	"sort"

	"github.com/ShayCichocki/featuregate/pkg/models"
)

// maxRecentFailures caps the failures listed in a summary.
const maxRecentFailures = 5

// Summary aggregates results across batches.
type Summary struct {
	Batches        int                 `json:"batches"`
	TotalTests     int                 `json:"total_tests"`
	Passed         int                 `json:"passed"`
	Failed         int                 `json:"failed"`
	PassRate       string              `json:"pass_rate"`
	RecentFailures []models.TestResult `json:"recent_failures"`
}

// Report is the test report over the most recent batches of each tier.
type Report struct {
	Summary
	Tiers map[models.TestTier]Summary `json:"tiers"`
}

// Report aggregates the last n batches of every tier (all batches when n
// is not positive). Failures are listed newest first.
func (r *Runner) Report(n int) (*Report, error) {
	if r.results == nil {
		return &Report{Summary: summarize(nil), Tiers: map[models.TestTier]Summary{}}, nil
	}
	return r.results.Report(n)
}

// Report aggregates the last n batches of every tier.
func (s *ResultStore) Report(n int) (*Report, error) {
	report := &Report{Tiers: make(map[models.TestTier]Summary)}

	var all []*models.TestBatch
	for _, tier := range models.Tiers() {
		batches, err := s.Recent(tier, n)
		if err != nil {
			return nil, err
		}
		report.Tiers[tier] = summarize(batches)
		all = append(all, batches...)
	}

	sortNewestFirst(all)
	report.Summary = summarize(all)
	return report, nil
}

// summarize expects batches newest first.
func summarize(batches []*models.TestBatch) Summary {
	s := Summary{Batches: len(batches), RecentFailures: []models.TestResult{}}
	for _, b := range batches {
		for _, res := range b.Results {
			s.TotalTests++
			if res.Passed {
				s.Passed++
				continue
			}
			s.Failed++
			if len(s.RecentFailures) < maxRecentFailures {
				s.RecentFailures = append(s.RecentFailures, res)
			}
		}
	}
	s.PassRate = passRate(s.Passed, s.TotalTests)
	return s
}

func passRate(passed, total int) string {
	if total == 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.1f%%", float64(passed)/float64(total)*100)
}

func sortNewestFirst(batches []*models.TestBatch) {
	sort.SliceStable(batches, func(i, j int) bool {
		return batches[i].StartedAt.After(batches[j].StartedAt)
	})
}

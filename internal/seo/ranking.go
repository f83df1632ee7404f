package seo

import (
	"sort"

	"github.com/pagepulse/pagepulse/internal/model"
)

// PageScore pairs a page with its computed score
type PageScore struct {
	Page   *model.PageMetadata `json:"page"`
	Result model.ScoreResult   `json:"result"`
}

// Summary aggregates scores across a set of pages
type Summary struct {
	Total    int                       `json:"total"`
	Average  float64                   `json:"average"`
	ByStatus map[model.ScoreStatus]int `json:"by_status"`
}

// ScoreAll scores every page against the full set and returns the results worst first.
// Ties are broken by path, then by ID.
func ScoreAll(pages []*model.PageMetadata) []PageScore {
	scores := make([]PageScore, 0, len(pages))
	for _, p := range pages {
		if p == nil {
			continue
		}
		scores = append(scores, PageScore{Page: p, Result: Score(p, pages)})
	}

	sort.SliceStable(scores, func(i, j int) bool {
		a, b := scores[i], scores[j]
		if a.Result.Score != b.Result.Score {
			return a.Result.Score < b.Result.Score
		}
		if a.Page.Path != b.Page.Path {
			return a.Page.Path < b.Page.Path
		}
		return a.Page.ID < b.Page.ID
	})
	return scores
}

// Filter keeps the scores in the given band. An empty status keeps everything.
func Filter(scores []PageScore, status model.ScoreStatus) []PageScore {
	if status == "" {
		return scores
	}
	out := make([]PageScore, 0, len(scores))
	for _, s := range scores {
		if s.Result.Status == status {
			out = append(out, s)
		}
	}
	return out
}

// Summarize computes the average score and the per-band counts
func Summarize(scores []PageScore) Summary {
	summary := Summary{
		Total: len(scores),
		ByStatus: map[model.ScoreStatus]int{
			model.ScoreStatusExcellent:        0,
			model.ScoreStatusGood:             0,
			model.ScoreStatusNeedsImprovement: 0,
			model.ScoreStatusPoor:             0,
		},
	}
	if len(scores) == 0 {
		return summary
	}

	total := 0
	for _, s := range scores {
		total += s.Result.Score
		summary.ByStatus[s.Result.Status]++
	}
	summary.Average = float64(total) / float64(len(scores))
	return summary
}

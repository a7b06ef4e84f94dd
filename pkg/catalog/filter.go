package catalog

import (
	"net/url"
	"slices"
	"strings"
)

// Timeframes in the order Build reads them.
var Timeframes = []string{"30", "90", "180", "more_than_180", "all"}

// Filter narrows a question list. Zero values match everything.
type Filter struct {
	// Timeframe is one of Timeframes; "all" or "" disables the filter
	Timeframe string
	// Difficulty is compared case-insensitively; "all" or "" disables it
	Difficulty string
	// Topics must all be present on a question
	Topics []string
	// Search matches title or any topic, case-insensitively
	Search string
}

// FilterFromQuery reads timeframe, difficulty, topic (repeatable) and search.
func FilterFromQuery(q url.Values) Filter {
	return Filter{
		Timeframe:  strings.TrimSpace(q.Get("timeframe")),
		Difficulty: strings.TrimSpace(q.Get("difficulty")),
		Topics:     q["topic"],
		Search:     strings.TrimSpace(q.Get("search")),
	}
}

// IsZero reports whether the filter matches every question.
func (f Filter) IsZero() bool {
	return (f.Timeframe == "" || f.Timeframe == "all") &&
		(f.Difficulty == "" || strings.EqualFold(f.Difficulty, "all")) &&
		len(f.Topics) == 0 &&
		f.Search == ""
}

// Match reports whether q passes every criterion.
func (f Filter) Match(q Question) bool {
	if f.Timeframe != "" && f.Timeframe != "all" && q.Timeframe != f.Timeframe {
		return false
	}
	if f.Difficulty != "" && !strings.EqualFold(f.Difficulty, "all") && !strings.EqualFold(q.Difficulty, f.Difficulty) {
		return false
	}
	for _, topic := range f.Topics {
		if !slices.Contains(q.Topics, topic) {
			return false
		}
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if strings.Contains(strings.ToLower(q.Title), needle) {
			return true
		}
		for _, topic := range q.Topics {
			if strings.Contains(strings.ToLower(topic), needle) {
				return true
			}
		}
		return false
	}
	return true
}

// Apply returns the matching questions in their original order.
func (f Filter) Apply(qs []Question) []Question {
	out := make([]Question, 0, len(qs))
	for _, q := range qs {
		if f.Match(q) {
			out = append(out, q)
		}
	}
	return out
}

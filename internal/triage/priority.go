// Package triage classifies mentions and orders them for display.
package triage

import (
	"sort"

	"github.com/leappulse/pulse/internal/models"
)

// Classify derives the priority of a mention from its sentiment and likes.
// Rules are evaluated in order and the first match wins.
func Classify(sentiment float64, likes int) models.Priority {
	switch {
	case sentiment < -0.5 && likes > 50:
		return models.PriorityCritical
	case sentiment < -0.3:
		return models.PriorityHigh
	case sentiment > 0.6:
		return models.PriorityMarketing
	default:
		return models.PriorityNeutral
	}
}

// ClassifyMention applies Classify to a mention's own fields
func ClassifyMention(m models.Mention) models.Priority {
	return Classify(m.SentimentScore, m.Engagement.Likes)
}

var rank = map[models.Priority]int{
	models.PriorityCritical:  0,
	models.PriorityHigh:      1,
	models.PriorityMarketing: 2,
	models.PriorityNeutral:   3,
}

// Rank returns the display rank of a priority. Unknown values sort last.
func Rank(p models.Priority) int {
	if r, ok := rank[p]; ok {
		return r
	}
	return len(rank)
}

// SortByPriority returns a copy of mentions ordered by priority rank.
// Equal priorities keep their original relative order.
func SortByPriority(mentions []models.Mention) []models.Mention {
	sorted := append([]models.Mention{}, mentions...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return Rank(sorted[i].Priority) < Rank(sorted[j].Priority)
	})
	return sorted
}

// RankTopics returns a copy of topics ordered by mention count, highest first
func RankTopics(topics []models.TrendingTopic) []models.TrendingTopic {
	ranked := append([]models.TrendingTopic{}, topics...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Mentions > ranked[j].Mentions
	})
	return ranked
}

// AlertCounts are the badge counters shown next to the triage feed
type AlertCounts struct {
	Critical      int `json:"critical"`
	MarketingGold int `json:"marketing_gold"`
	Total         int `json:"total"`
}

// CountAlerts counts mentions tagged CRITICAL ALERT or MARKETING GOLD
func CountAlerts(mentions []models.Mention) AlertCounts {
	var counts AlertCounts
	for _, m := range mentions {
		switch m.Priority {
		case models.PriorityCritical:
			counts.Critical++
		case models.PriorityMarketing:
			counts.MarketingGold++
		}
	}
	counts.Total = counts.Critical + counts.MarketingGold
	return counts
}

// IsAlert reports whether a priority warrants a notification
func IsAlert(p models.Priority) bool {
	return p == models.PriorityCritical || p == models.PriorityMarketing
}

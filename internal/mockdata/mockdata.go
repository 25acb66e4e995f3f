// Package mockdata holds the fixed dataset shown when the dashboard runs
// without a live backend.
package mockdata

import (
	"time"

	"github.com/leappulse/pulse/internal/models"
	"github.com/leappulse/pulse/internal/triage"
)

func mustTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}
	return t
}

var rawMentions = []models.Mention{
	{
		ID:             "1",
		Platform:       models.PlatformTwitter,
		Content:        "Terrible experience with LeapScholar's visa support. Been waiting 3 weeks with zero updates. Absolutely frustrated! #disappointed",
		SentimentScore: -0.85,
		Engagement:     models.Engagement{Likes: 342, Shares: 89, Comments: 56},
		Author:         "@AnkitMehta_",
		Timestamp:      mustTime("2026-02-11T09:23:00Z"),
		SourceURL:      "https://x.com/AnkitMehta_/status/1",
	},
	{
		ID:             "2",
		Platform:       models.PlatformReddit,
		Content:        "The new IELTS prep module by LeapScholar is genuinely game-changing. Scored 8.0 on my first attempt after using it for just 3 weeks!",
		SentimentScore: 0.92,
		Engagement:     models.Engagement{Likes: 578, Shares: 134, Comments: 91},
		Author:         "u/StudyAbroad2026",
		Timestamp:      mustTime("2026-02-11T07:45:00Z"),
		SourceURL:      "https://reddit.com/r/IELTS/comments/example2",
	},
	{
		ID:             "3",
		Platform:       models.PlatformLinkedIn,
		Content:        "LeapScholar's counselor team has been mediocre at best. Missed two scheduled calls and gave outdated university info. Not impressed.",
		SentimentScore: -0.62,
		Engagement:     models.Engagement{Likes: 67, Shares: 12, Comments: 23},
		Author:         "Priya Sharma",
		Timestamp:      mustTime("2026-02-10T18:30:00Z"),
		SourceURL:      "https://linkedin.com/posts/example3",
	},
	{
		ID:             "4",
		Platform:       models.PlatformInstagram,
		Content:        "Just got my acceptance letter from University of Melbourne through LeapScholar! 🎉 The entire process was seamless. Highly recommend!",
		SentimentScore: 0.88,
		Engagement:     models.Engagement{Likes: 1243, Shares: 201, Comments: 167},
		Author:         "@rohit.dreams",
		Timestamp:      mustTime("2026-02-10T14:12:00Z"),
		SourceURL:      "https://instagram.com/p/example4",
	},
	{
		ID:             "5",
		Platform:       models.PlatformYouTube,
		Content:        "Comparing study abroad consultants — LeapScholar vs Yocket vs IDP. LeapScholar's pricing is confusing and hidden fees are a concern.",
		SentimentScore: -0.45,
		Engagement:     models.Engagement{Likes: 89, Shares: 34, Comments: 45},
		Author:         "StudyVloggerIN",
		Timestamp:      mustTime("2026-02-09T21:00:00Z"),
		SourceURL:      "https://youtube.com/watch?v=example5",
	},
}

var sentimentBreakdown = []models.SentimentEntry{
	{Label: "Positive", Value: 52, Count: 26, Color: "#22c55e"},
	{Label: "Negative", Value: 30, Count: 15, Color: "#ef4444"},
	{Label: "Neutral", Value: 18, Count: 9, Color: "#94a3b8"},
}

var platformBreakdown = []models.PlatformEntry{
	{Platform: "Reddit", Value: 36, Count: 18, Color: "#ff4500"},
	{Platform: "Twitter", Value: 24, Count: 12, Color: "#1d9bf0"},
	{Platform: "LinkedIn", Value: 16, Count: 8, Color: "#0a66c2"},
	{Platform: "YouTube", Value: 14, Count: 7, Color: "#ff0000"},
	{Platform: "GoogleNews", Value: 10, Count: 5, Color: "#4285f4"},
}

var trendingTopics = []models.TrendingTopic{
	{Tag: "#VisaUpdates", Mentions: 2340, Trend: models.TrendUp},
	{Tag: "#IELTS", Mentions: 1890, Trend: models.TrendUp},
	{Tag: "#StudyInAustralia", Mentions: 1456, Trend: models.TrendStable},
	{Tag: "#ScholarshipAlert", Mentions: 1230, Trend: models.TrendUp},
	{Tag: "#UniversityRankings", Mentions: 987, Trend: models.TrendDown},
	{Tag: "#StudentVisa", Mentions: 876, Trend: models.TrendUp},
	{Tag: "#MastersAbroad", Mentions: 754, Trend: models.TrendStable},
	{Tag: "#IELTSPrep", Mentions: 623, Trend: models.TrendUp},
}

var metrics = models.DashboardMetrics{
	NetSentiment:    78,
	SentimentChange: 5,
	TotalMentions:   12480,
	AvgEngagement:   4.2,
}

var weeklyTrend = []models.TrendPoint{
	{Day: "Mon", Score: 72},
	{Day: "Tue", Score: 68},
	{Day: "Wed", Score: 74},
	{Day: "Thu", Score: 71},
	{Day: "Fri", Score: 76},
	{Day: "Sat", Score: 80},
	{Day: "Sun", Score: 78},
}

// Mentions returns the mock mentions with their priority classified
func Mentions() []models.Mention {
	mentions := make([]models.Mention, len(rawMentions))
	for i, m := range rawMentions {
		m.Priority = triage.ClassifyMention(m)
		mentions[i] = m
	}
	return mentions
}

// Snapshot returns a fresh copy of the full mock dashboard state.
// LastUpdated is always nil and no error is set.
func Snapshot() models.Snapshot {
	return models.Snapshot{
		Mentions:           Mentions(),
		SentimentBreakdown: append([]models.SentimentEntry{}, sentimentBreakdown...),
		PlatformBreakdown:  append([]models.PlatformEntry{}, platformBreakdown...),
		TrendingTopics:     append([]models.TrendingTopic{}, trendingTopics...),
		Metrics:            metrics,
		WeeklyTrend:        append([]models.TrendPoint{}, weeklyTrend...),
		DataSource:         models.SourceMock,
	}
}

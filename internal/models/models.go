package models

import (
	"strings"
	"time"
)

// Platform identifies the social network a mention was observed on
type Platform string

const (
	PlatformTwitter    Platform = "Twitter"
	PlatformReddit     Platform = "Reddit"
	PlatformLinkedIn   Platform = "LinkedIn"
	PlatformInstagram  Platform = "Instagram"
	PlatformYouTube    Platform = "YouTube"
	PlatformGoogleNews Platform = "GoogleNews"
)

// Platforms lists every supported platform in display order
var Platforms = []Platform{
	PlatformTwitter,
	PlatformReddit,
	PlatformLinkedIn,
	PlatformInstagram,
	PlatformYouTube,
	PlatformGoogleNews,
}

// ParsePlatform matches a raw platform name case-insensitively, ignoring
// spaces, so "Google News" and "googlenews" both resolve to GoogleNews.
func ParsePlatform(raw string) (Platform, bool) {
	key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(raw), " ", ""))
	for _, p := range Platforms {
		if strings.ToLower(string(p)) == key {
			return p, true
		}
	}
	return "", false
}

// Priority is the triage tag attached to every mention
type Priority string

const (
	PriorityCritical  Priority = "CRITICAL ALERT"
	PriorityHigh      Priority = "HIGH PRIORITY"
	PriorityMarketing Priority = "MARKETING GOLD"
	PriorityNeutral   Priority = "NEUTRAL"
)

// ParsePriority accepts the wire form ("CRITICAL ALERT") as well as the
// underscored form ("CRITICAL_ALERT"), case-insensitively.
func ParsePriority(raw string) (Priority, bool) {
	normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), "_", " "))
	switch Priority(normalized) {
	case PriorityCritical, PriorityHigh, PriorityMarketing, PriorityNeutral:
		return Priority(normalized), true
	}
	return "", false
}

// Engagement holds the interaction counters of a mention
type Engagement struct {
	Likes    int `json:"likes"`
	Shares   int `json:"shares"`
	Comments int `json:"comments"`
}

// Mention represents one observed social post referencing the brand
type Mention struct {
	ID             string     `json:"id"`
	Platform       Platform   `json:"platform"`
	Content        string     `json:"content"`
	SentimentScore float64    `json:"sentiment_score"` // -1 to 1
	Engagement     Engagement `json:"engagement"`
	Author         string     `json:"author"`
	Timestamp      time.Time  `json:"timestamp"`
	SourceURL      string     `json:"source_url,omitempty"`
	Priority       Priority   `json:"priority"`
}

// SentimentEntry is one slice of the sentiment distribution
type SentimentEntry struct {
	Label string  `json:"label"` // "Positive", "Negative", "Neutral"
	Value float64 `json:"value"` // percentage 0-100
	Count int     `json:"count"`
	Color string  `json:"color"`
}

// PlatformEntry is one slice of the platform breakdown
type PlatformEntry struct {
	Platform string  `json:"platform"`
	Value    float64 `json:"value"` // percentage 0-100
	Count    int     `json:"count"`
	Color    string  `json:"color"`
}

// Trend is the direction a topic is moving in
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// TrendingTopic is a hashtag with its mention volume
type TrendingTopic struct {
	Tag      string `json:"tag"`
	Mentions int    `json:"mentions"`
	Trend    Trend  `json:"trend"`
}

// DashboardMetrics holds the hero metrics of the dashboard
type DashboardMetrics struct {
	NetSentiment    float64 `json:"netSentiment"`    // 0-100
	SentimentChange float64 `json:"sentimentChange"` // signed percentage
	TotalMentions   int     `json:"totalMentions"`
	AvgEngagement   float64 `json:"avgEngagement"`
}

// TrendPoint is one day of the weekly sentiment trend
type TrendPoint struct {
	Day   string  `json:"day"`
	Score float64 `json:"score"` // 0-100
}

// WeekDays are the labels of the weekly trend, Monday first
var WeekDays = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// EmptyWeeklyTrend returns a zero-scored Monday to Sunday sequence
func EmptyWeeklyTrend() []TrendPoint {
	points := make([]TrendPoint, len(WeekDays))
	for i, day := range WeekDays {
		points[i] = TrendPoint{Day: day}
	}
	return points
}

// DataSource selects where the dashboard data comes from
type DataSource string

const (
	SourceMock DataSource = "mock"
	SourceLive DataSource = "live"
)

// ParseDataSource validates a raw data source name
func ParseDataSource(raw string) (DataSource, bool) {
	switch DataSource(strings.ToLower(strings.TrimSpace(raw))) {
	case SourceMock:
		return SourceMock, true
	case SourceLive:
		return SourceLive, true
	}
	return "", false
}

// Snapshot is the complete dashboard state handed to the presentation layer
type Snapshot struct {
	Mentions           []Mention        `json:"mentions"`
	SentimentBreakdown []SentimentEntry `json:"sentimentBreakdown"`
	PlatformBreakdown  []PlatformEntry  `json:"platformBreakdown"`
	TrendingTopics     []TrendingTopic  `json:"trendingTopics"`
	Metrics            DashboardMetrics `json:"metrics"`
	WeeklyTrend        []TrendPoint     `json:"weeklyTrend"`
	DataSource         DataSource       `json:"dataSource"`
	IsLoading          bool             `json:"isLoading"`
	Error              string           `json:"error,omitempty"`
	LastUpdated        *time.Time       `json:"lastUpdated"`
}

// EmptyLiveSnapshot is the state shown in live mode before any data arrives
func EmptyLiveSnapshot() Snapshot {
	return Snapshot{
		Mentions:           []Mention{},
		SentimentBreakdown: []SentimentEntry{},
		PlatformBreakdown:  []PlatformEntry{},
		TrendingTopics:     []TrendingTopic{},
		WeeklyTrend:        EmptyWeeklyTrend(),
		DataSource:         SourceLive,
	}
}

// Clone returns a deep copy so callers can never alias controller state
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Mentions = append([]Mention{}, s.Mentions...)
	out.SentimentBreakdown = append([]SentimentEntry{}, s.SentimentBreakdown...)
	out.PlatformBreakdown = append([]PlatformEntry{}, s.PlatformBreakdown...)
	out.TrendingTopics = append([]TrendingTopic{}, s.TrendingTopics...)
	out.WeeklyTrend = append([]TrendPoint{}, s.WeeklyTrend...)
	if s.LastUpdated != nil {
		t := *s.LastUpdated
		out.LastUpdated = &t
	}
	return out
}

// Alert represents a notification about a newly observed high-signal mention
type Alert struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"` // "critical" or "marketing"
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Mention   *Mention  `json:"mention,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

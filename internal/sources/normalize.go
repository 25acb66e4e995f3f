package sources

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/leappulse/pulse/internal/config"
	"github.com/leappulse/pulse/internal/models"
	"github.com/leappulse/pulse/internal/triage"
	"github.com/sirupsen/logrus"
)

// Display colours for breakdown entries
var (
	SentimentColors = map[string]string{
		"Positive": "#22c55e",
		"Negative": "#ef4444",
		"Neutral":  "#94a3b8",
	}
	PlatformColors = map[string]string{
		"Reddit":     "#ff4500",
		"Twitter":    "#1d9bf0",
		"LinkedIn":   "#0a66c2",
		"YouTube":    "#ff0000",
		"GoogleNews": "#4285f4",
		"Instagram":  "#e1306c",
	}
)

const (
	fallbackSentimentColor = "#94a3b8"
	fallbackPlatformColor  = "#6366f1"
	unknownAuthor          = "Unknown"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999-07",
	"2006-01-02 15:04:05",
}

// NormalizeOptions controls how raw records become models
type NormalizeOptions struct {
	// PriorityMode is config.PriorityModeTrust or config.PriorityModeRecompute
	PriorityMode string
	Now          func() time.Time
}

func (o NormalizeOptions) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Raw records as delivered by either origin. Pointer fields distinguish a
// missing value from a zero value.
type mentionRecord struct {
	ID             *string  `json:"id"`
	Platform       *string  `json:"platform"`
	Content        *string  `json:"content"`
	SentimentScore *float64 `json:"sentiment_score"`
	Likes          *float64 `json:"likes"`
	Shares         *float64 `json:"shares"`
	Comments       *float64 `json:"comments"`
	Author         *string  `json:"author"`
	SourceURL      *string  `json:"source_url"`
	Priority       *string  `json:"priority"`
	CreatedAt      *string  `json:"created_at"`
	Timestamp      *string  `json:"timestamp"`

	createdAt *time.Time
}

type sentimentRecord struct {
	Label *string  `json:"label"`
	Value *float64 `json:"value"`
	Count *float64 `json:"count"`
}

type platformRecord struct {
	Platform     *string  `json:"platform"`
	Percentage   *float64 `json:"percentage"`
	MentionCount *float64 `json:"mention_count"`
}

type topicRecord struct {
	Tag      *string  `json:"tag"`
	Mentions *float64 `json:"mentions"`
	Trend    *string  `json:"trend"`
}

type metricsRecord struct {
	NetSentiment    *float64 `json:"net_sentiment"`
	SentimentChange *float64 `json:"sentiment_change"`
	TotalMentions   *float64 `json:"total_mentions"`
	AvgEngagement   *float64 `json:"avg_engagement"`
}

type trendRecord struct {
	DayLabel *string  `json:"day_label"`
	Score    *float64 `json:"score"`
}

func normalizeMention(rec mentionRecord, opts NormalizeOptions) (models.Mention, error) {
	if rec.ID == nil || strings.TrimSpace(*rec.ID) == "" {
		return models.Mention{}, fmt.Errorf("missing id")
	}
	if rec.Platform == nil {
		return models.Mention{}, fmt.Errorf("mention %s: missing platform", *rec.ID)
	}
	platform, ok := models.ParsePlatform(*rec.Platform)
	if !ok {
		return models.Mention{}, fmt.Errorf("mention %s: unknown platform %q", *rec.ID, *rec.Platform)
	}
	if rec.Content == nil {
		return models.Mention{}, fmt.Errorf("mention %s: missing content", *rec.ID)
	}
	if rec.SentimentScore == nil {
		return models.Mention{}, fmt.Errorf("mention %s: missing sentiment_score", *rec.ID)
	}
	if *rec.SentimentScore < -1 || *rec.SentimentScore > 1 || math.IsNaN(*rec.SentimentScore) {
		return models.Mention{}, fmt.Errorf("mention %s: sentiment_score %v out of range", *rec.ID, *rec.SentimentScore)
	}

	likes, err := count(rec.Likes, "likes")
	if err != nil {
		return models.Mention{}, fmt.Errorf("mention %s: %w", *rec.ID, err)
	}
	shares, err := count(rec.Shares, "shares")
	if err != nil {
		return models.Mention{}, fmt.Errorf("mention %s: %w", *rec.ID, err)
	}
	comments, err := count(rec.Comments, "comments")
	if err != nil {
		return models.Mention{}, fmt.Errorf("mention %s: %w", *rec.ID, err)
	}

	timestamp, err := mentionTime(rec, opts)
	if err != nil {
		return models.Mention{}, fmt.Errorf("mention %s: %w", *rec.ID, err)
	}

	mention := models.Mention{
		ID:             *rec.ID,
		Platform:       platform,
		Content:        *rec.Content,
		SentimentScore: *rec.SentimentScore,
		Engagement:     models.Engagement{Likes: likes, Shares: shares, Comments: comments},
		Author:         unknownAuthor,
		Timestamp:      timestamp,
	}
	if rec.Author != nil && strings.TrimSpace(*rec.Author) != "" {
		mention.Author = *rec.Author
	}
	if rec.SourceURL != nil {
		mention.SourceURL = *rec.SourceURL
	}

	mention.Priority = resolvePriority(mention, rec.Priority, opts.PriorityMode)
	return mention, nil
}

// resolvePriority either trusts the priority computed upstream or
// reclassifies locally, depending on the configured mode.
func resolvePriority(m models.Mention, raw *string, mode string) models.Priority {
	if mode == config.PriorityModeRecompute {
		return triage.ClassifyMention(m)
	}
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return models.PriorityNeutral
	}
	p, ok := models.ParsePriority(*raw)
	if !ok {
		logrus.Warnf("Mention %s has unknown priority %q, using NEUTRAL", m.ID, *raw)
		return models.PriorityNeutral
	}
	return p
}

func mentionTime(rec mentionRecord, opts NormalizeOptions) (time.Time, error) {
	if rec.createdAt != nil {
		return *rec.createdAt, nil
	}
	raw := rec.CreatedAt
	if raw == nil || *raw == "" {
		raw = rec.Timestamp
	}
	if raw == nil || *raw == "" {
		return opts.now(), nil
	}
	return parseTimestamp(*raw)
}

func parseTimestamp(value string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", value)
}

func count(value *float64, field string) (int, error) {
	if value == nil {
		return 0, nil
	}
	if *value < 0 || math.IsNaN(*value) {
		return 0, fmt.Errorf("%s must be non-negative, got %v", field, *value)
	}
	return int(math.Round(*value)), nil
}

func percentage(value *float64, field string) (float64, error) {
	if value == nil {
		return 0, fmt.Errorf("missing %s", field)
	}
	if *value < 0 || *value > 100 || math.IsNaN(*value) {
		return 0, fmt.Errorf("%s %v outside 0-100", field, *value)
	}
	return *value, nil
}

func normalizeSentiment(rec sentimentRecord) (models.SentimentEntry, error) {
	if rec.Label == nil || *rec.Label == "" {
		return models.SentimentEntry{}, fmt.Errorf("missing label")
	}
	value, err := percentage(rec.Value, "value")
	if err != nil {
		return models.SentimentEntry{}, fmt.Errorf("sentiment %s: %w", *rec.Label, err)
	}
	n, err := count(rec.Count, "count")
	if err != nil {
		return models.SentimentEntry{}, fmt.Errorf("sentiment %s: %w", *rec.Label, err)
	}

	color, ok := SentimentColors[*rec.Label]
	if !ok {
		color = fallbackSentimentColor
	}
	return models.SentimentEntry{Label: *rec.Label, Value: value, Count: n, Color: color}, nil
}

func normalizePlatform(rec platformRecord) (models.PlatformEntry, error) {
	if rec.Platform == nil || *rec.Platform == "" {
		return models.PlatformEntry{}, fmt.Errorf("missing platform")
	}
	value, err := percentage(rec.Percentage, "percentage")
	if err != nil {
		return models.PlatformEntry{}, fmt.Errorf("platform %s: %w", *rec.Platform, err)
	}
	n, err := count(rec.MentionCount, "mention_count")
	if err != nil {
		return models.PlatformEntry{}, fmt.Errorf("platform %s: %w", *rec.Platform, err)
	}

	color, ok := PlatformColors[*rec.Platform]
	if !ok {
		color = fallbackPlatformColor
	}
	return models.PlatformEntry{Platform: *rec.Platform, Value: value, Count: n, Color: color}, nil
}

func normalizeTopic(rec topicRecord) (models.TrendingTopic, error) {
	if rec.Tag == nil || *rec.Tag == "" {
		return models.TrendingTopic{}, fmt.Errorf("missing tag")
	}
	n, err := count(rec.Mentions, "mentions")
	if err != nil {
		return models.TrendingTopic{}, fmt.Errorf("topic %s: %w", *rec.Tag, err)
	}

	trend := models.TrendStable
	if rec.Trend != nil && *rec.Trend != "" {
		switch models.Trend(strings.ToLower(*rec.Trend)) {
		case models.TrendUp:
			trend = models.TrendUp
		case models.TrendDown:
			trend = models.TrendDown
		case models.TrendStable:
			trend = models.TrendStable
		default:
			return models.TrendingTopic{}, fmt.Errorf("topic %s: unknown trend %q", *rec.Tag, *rec.Trend)
		}
	}
	return models.TrendingTopic{Tag: *rec.Tag, Mentions: n, Trend: trend}, nil
}

func normalizeMetrics(rec *metricsRecord) models.DashboardMetrics {
	var m models.DashboardMetrics
	if rec == nil {
		return m
	}
	if rec.NetSentiment != nil {
		m.NetSentiment = *rec.NetSentiment
	}
	if rec.SentimentChange != nil {
		m.SentimentChange = *rec.SentimentChange
	}
	if rec.TotalMentions != nil {
		m.TotalMentions = int(math.Round(*rec.TotalMentions))
	}
	if rec.AvgEngagement != nil {
		m.AvgEngagement = *rec.AvgEngagement
	}
	return m
}

// normalizeWeeklyTrend always yields Monday to Sunday. Days the origin did
// not report keep a zero score. The table is unordered and accumulates rows
// across backend runs, so a day reported more than once gets the mean of
// its scores.
func normalizeWeeklyTrend(records []trendRecord) ([]models.TrendPoint, int) {
	points := models.EmptyWeeklyTrend()
	index := make(map[string]int, len(models.WeekDays))
	for i, day := range models.WeekDays {
		index[strings.ToLower(day)] = i
	}
	sums := make([]float64, len(points))
	counts := make([]int, len(points))

	rejected := 0
	for _, rec := range records {
		if rec.DayLabel == nil {
			logrus.Warn("Rejected trend point: missing day_label")
			rejected++
			continue
		}
		i, ok := index[strings.ToLower(strings.TrimSpace(*rec.DayLabel))]
		if !ok {
			logrus.Warnf("Rejected trend point: unknown day %q", *rec.DayLabel)
			rejected++
			continue
		}
		if rec.Score != nil {
			sums[i] += *rec.Score
			counts[i]++
		}
	}

	for i := range points {
		if counts[i] > 0 {
			points[i].Score = sums[i] / float64(counts[i])
		}
	}
	return points, rejected
}

// normalizeAll converts every record set, dropping invalid records
func normalizeAll[R any, M any](resource string, records []R, fn func(R) (M, error)) ([]M, int) {
	out := make([]M, 0, len(records))
	rejected := 0
	for _, rec := range records {
		m, err := fn(rec)
		if err != nil {
			logrus.Warnf("Rejected %s record: %v", resource, err)
			rejected++
			continue
		}
		out = append(out, m)
	}
	return out, rejected
}

// rawPayload is the shape of the aggregate endpoint. The database origin
// fills the same structure from its six queries.
type rawPayload struct {
	Mentions    []mentionRecord   `json:"mentions"`
	Sentiment   []sentimentRecord `json:"sentiment_distribution"`
	Platforms   []platformRecord  `json:"platform_breakdown"`
	Topics      []topicRecord     `json:"trending_topics"`
	Metrics     *metricsRecord    `json:"dashboard_metrics"`
	WeeklyTrend []trendRecord     `json:"weekly_trend"`
}

func (r rawPayload) normalize(opts NormalizeOptions) *Payload {
	p := NewEmptyPayload()
	var rejected int

	p.Mentions, rejected = normalizeAll(ResourceMentions, r.Mentions, func(rec mentionRecord) (models.Mention, error) {
		return normalizeMention(rec, opts)
	})
	p.Rejected += rejected

	p.SentimentBreakdown, rejected = normalizeAll(ResourceSentiment, r.Sentiment, normalizeSentiment)
	p.Rejected += rejected

	p.PlatformBreakdown, rejected = normalizeAll(ResourcePlatforms, r.Platforms, normalizePlatform)
	p.Rejected += rejected

	p.TrendingTopics, rejected = normalizeAll(ResourceTopics, r.Topics, normalizeTopic)
	p.Rejected += rejected

	p.Metrics = normalizeMetrics(r.Metrics)

	p.WeeklyTrend, rejected = normalizeWeeklyTrend(r.WeeklyTrend)
	p.Rejected += rejected

	return p
}

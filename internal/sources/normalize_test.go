package sources

import (
	"testing"
	"time"

	"github.com/leappulse/pulse/internal/config"
	"github.com/leappulse/pulse/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }

var fixedNow = time.Date(2026, 2, 11, 12, 0, 0, 0, time.UTC)

func trustOpts() NormalizeOptions {
	return NormalizeOptions{PriorityMode: config.PriorityModeTrust, Now: func() time.Time { return fixedNow }}
}

func TestNormalizeMention_Defaults(t *testing.T) {
	rec := mentionRecord{
		ID:             strPtr("live-0"),
		Platform:       strPtr("Reddit"),
		Content:        strPtr("Loving the IELTS module"),
		SentimentScore: floatPtr(0.8),
	}

	m, err := normalizeMention(rec, trustOpts())
	require.NoError(t, err)

	assert.Equal(t, models.PlatformReddit, m.Platform)
	assert.Equal(t, models.Engagement{}, m.Engagement)
	assert.Equal(t, "Unknown", m.Author)
	assert.Equal(t, fixedNow, m.Timestamp)
	assert.Equal(t, models.PriorityNeutral, m.Priority, "missing priority defaults to NEUTRAL in trust mode")
	assert.Empty(t, m.SourceURL)
}

func TestNormalizeMention_TrustsSourcePriority(t *testing.T) {
	rec := mentionRecord{
		ID:             strPtr("live-1"),
		Platform:       strPtr("Google News"),
		Content:        strPtr("Scam warning"),
		SentimentScore: floatPtr(-0.25),
		Likes:          floatPtr(3),
		Priority:       strPtr("CRITICAL ALERT"),
		CreatedAt:      strPtr("2026-02-11T09:23:00.123456"),
	}

	m, err := normalizeMention(rec, trustOpts())
	require.NoError(t, err)

	assert.Equal(t, models.PlatformGoogleNews, m.Platform)
	assert.Equal(t, models.PriorityCritical, m.Priority)
	assert.Equal(t, 2026, m.Timestamp.Year())
	assert.Equal(t, 23, m.Timestamp.Minute())
}

func TestNormalizeMention_RecomputeMode(t *testing.T) {
	rec := mentionRecord{
		ID:             strPtr("live-2"),
		Platform:       strPtr("Twitter"),
		Content:        strPtr("Worst support ever"),
		SentimentScore: floatPtr(-0.85),
		Likes:          floatPtr(342),
		Priority:       strPtr("NEUTRAL"),
	}

	m, err := normalizeMention(rec, NormalizeOptions{PriorityMode: config.PriorityModeRecompute})
	require.NoError(t, err)
	assert.Equal(t, models.PriorityCritical, m.Priority)
}

func TestNormalizeMention_UnknownPriorityFallsBackToNeutral(t *testing.T) {
	rec := mentionRecord{
		ID:             strPtr("live-3"),
		Platform:       strPtr("YouTube"),
		Content:        strPtr("Video review"),
		SentimentScore: floatPtr(0.1),
		Priority:       strPtr("URGENT"),
	}

	m, err := normalizeMention(rec, trustOpts())
	require.NoError(t, err)
	assert.Equal(t, models.PriorityNeutral, m.Priority)
}

func TestNormalizeMention_Rejections(t *testing.T) {
	valid := func() mentionRecord {
		return mentionRecord{
			ID:             strPtr("x"),
			Platform:       strPtr("Twitter"),
			Content:        strPtr("text"),
			SentimentScore: floatPtr(0),
		}
	}

	tests := []struct {
		name   string
		mutate func(*mentionRecord)
	}{
		{name: "Missing id", mutate: func(r *mentionRecord) { r.ID = nil }},
		{name: "Blank id", mutate: func(r *mentionRecord) { r.ID = strPtr("  ") }},
		{name: "Missing platform", mutate: func(r *mentionRecord) { r.Platform = nil }},
		{name: "Unknown platform", mutate: func(r *mentionRecord) { r.Platform = strPtr("Myspace") }},
		{name: "Missing content", mutate: func(r *mentionRecord) { r.Content = nil }},
		{name: "Missing sentiment", mutate: func(r *mentionRecord) { r.SentimentScore = nil }},
		{name: "Sentiment out of range", mutate: func(r *mentionRecord) { r.SentimentScore = floatPtr(1.5) }},
		{name: "Negative likes", mutate: func(r *mentionRecord) { r.Likes = floatPtr(-1) }},
		{name: "Bad timestamp", mutate: func(r *mentionRecord) { r.CreatedAt = strPtr("yesterday") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := valid()
			tt.mutate(&rec)
			_, err := normalizeMention(rec, trustOpts())
			assert.Error(t, err)
		})
	}
}

func TestNormalizeSentiment_Colors(t *testing.T) {
	entry, err := normalizeSentiment(sentimentRecord{Label: strPtr("Negative"), Value: floatPtr(30), Count: floatPtr(15)})
	require.NoError(t, err)
	assert.Equal(t, "#ef4444", entry.Color)

	entry, err = normalizeSentiment(sentimentRecord{Label: strPtr("Mixed"), Value: floatPtr(5)})
	require.NoError(t, err)
	assert.Equal(t, "#94a3b8", entry.Color)
	assert.Equal(t, 0, entry.Count)

	_, err = normalizeSentiment(sentimentRecord{Label: strPtr("Positive")})
	assert.Error(t, err, "value is required")
}

func TestNormalizePlatform_Colors(t *testing.T) {
	entry, err := normalizePlatform(platformRecord{Platform: strPtr("Reddit"), Percentage: floatPtr(36), MentionCount: floatPtr(18)})
	require.NoError(t, err)
	assert.Equal(t, models.PlatformEntry{Platform: "Reddit", Value: 36, Count: 18, Color: "#ff4500"}, entry)

	entry, err = normalizePlatform(platformRecord{Platform: strPtr("Unknown"), Percentage: floatPtr(1)})
	require.NoError(t, err)
	assert.Equal(t, "#6366f1", entry.Color)

	_, err = normalizePlatform(platformRecord{Platform: strPtr("Reddit"), Percentage: floatPtr(120)})
	assert.Error(t, err)
}

func TestNormalizeTopic(t *testing.T) {
	topic, err := normalizeTopic(topicRecord{Tag: strPtr("#ielts"), Mentions: floatPtr(4), Trend: strPtr("UP")})
	require.NoError(t, err)
	assert.Equal(t, models.TrendingTopic{Tag: "#ielts", Mentions: 4, Trend: models.TrendUp}, topic)

	topic, err = normalizeTopic(topicRecord{Tag: strPtr("#visa")})
	require.NoError(t, err)
	assert.Equal(t, models.TrendStable, topic.Trend)

	_, err = normalizeTopic(topicRecord{Tag: strPtr("#visa"), Trend: strPtr("sideways")})
	assert.Error(t, err)
}

func TestNormalizeWeeklyTrend(t *testing.T) {
	points, rejected := normalizeWeeklyTrend([]trendRecord{
		{DayLabel: strPtr("Wed"), Score: floatPtr(74)},
		{DayLabel: strPtr("Mon"), Score: floatPtr(72)},
		{DayLabel: strPtr("Funday"), Score: floatPtr(1)},
	})

	require.Len(t, points, 7)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, models.TrendPoint{Day: "Mon", Score: 72}, points[0])
	assert.Equal(t, models.TrendPoint{Day: "Tue", Score: 0}, points[1])
	assert.Equal(t, models.TrendPoint{Day: "Wed", Score: 74}, points[2])
	assert.Equal(t, "Sun", points[6].Day)
}

func TestNormalizeWeeklyTrend_DuplicateDays(t *testing.T) {
	runs := [][]trendRecord{
		{
			{DayLabel: strPtr("Mon"), Score: floatPtr(60)},
			{DayLabel: strPtr("mon"), Score: floatPtr(70)},
			{DayLabel: strPtr("Fri"), Score: nil},
			{DayLabel: strPtr("Fri"), Score: floatPtr(81)},
		},
		{
			{DayLabel: strPtr("Fri"), Score: floatPtr(81)},
			{DayLabel: strPtr("Mon"), Score: floatPtr(70)},
			{DayLabel: strPtr("Fri"), Score: nil},
			{DayLabel: strPtr(" Mon "), Score: floatPtr(60)},
		},
	}

	for _, records := range runs {
		points, rejected := normalizeWeeklyTrend(records)
		assert.Equal(t, 0, rejected)
		assert.Equal(t, float64(65), points[0].Score)
		assert.Equal(t, float64(81), points[4].Score)
	}
}

func TestRawPayload_NormalizeEmpty(t *testing.T) {
	p := rawPayload{}.normalize(trustOpts())

	assert.NotNil(t, p.Mentions)
	assert.Empty(t, p.Mentions)
	assert.Empty(t, p.SentimentBreakdown)
	assert.Empty(t, p.PlatformBreakdown)
	assert.Empty(t, p.TrendingTopics)
	assert.Equal(t, models.DashboardMetrics{}, p.Metrics)
	assert.Equal(t, models.EmptyWeeklyTrend(), p.WeeklyTrend)
	assert.NoError(t, p.Err())
}

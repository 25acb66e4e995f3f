package sources

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/leappulse/pulse/internal/models"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	mentionColumns   = []string{"id", "platform", "content", "sentiment_score", "likes", "shares", "comments", "author", "source_url", "priority", "created_at"}
	sentimentColumns = []string{"label", "value", "count"}
	platformColumns  = []string{"platform", "percentage", "mention_count"}
	topicColumns     = []string{"tag", "mentions", "trend"}
	metricsColumns   = []string{"net_sentiment", "sentiment_change", "total_mentions", "avg_engagement"}
	trendColumns     = []string{"day_label", "score"}
)

func TestDatabaseOrigin_IsEnabled(t *testing.T) {
	assert.False(t, NewDatabaseOrigin(nil, "", trustOpts()).IsEnabled())
	_, err := NewDatabaseOrigin(nil, "", trustOpts()).Fetch(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestDatabaseOrigin_QueryMentions(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	origin := NewDatabaseOrigin(mock, "public", trustOpts())
	created := time.Date(2026, 2, 11, 9, 23, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT (.+) FROM "public"."social_mentions" ORDER BY created_at DESC LIMIT`).
		WithArgs(50).
		WillReturnRows(pgxmock.NewRows(mentionColumns).
			AddRow("1", "Twitter", "Terrible visa support", -0.85, int64(342), int64(89), int64(56), "@AnkitMehta_", "https://x.com/1", "CRITICAL ALERT", created).
			AddRow("2", "Reddit", "Nice", 0.3, nil, nil, nil, nil, nil, nil, nil))

	records, err := origin.queryMentions(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	first, err := normalizeMention(records[0], trustOpts())
	require.NoError(t, err)
	assert.Equal(t, models.PriorityCritical, first.Priority)
	assert.Equal(t, models.Engagement{Likes: 342, Shares: 89, Comments: 56}, first.Engagement)
	assert.Equal(t, created, first.Timestamp)

	second, err := normalizeMention(records[1], trustOpts())
	require.NoError(t, err)
	assert.Equal(t, "Unknown", second.Author)
	assert.Equal(t, models.Engagement{}, second.Engagement)
	assert.Equal(t, fixedNow, second.Timestamp)
	assert.Equal(t, models.PriorityNeutral, second.Priority)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabaseOrigin_QueryMetricsEmpty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	origin := NewDatabaseOrigin(mock, "tenant_a", trustOpts())

	mock.ExpectQuery(`SELECT (.+) FROM "tenant_a"."dashboard_metrics" ORDER BY recorded_at DESC LIMIT`).
		WithArgs(1).
		WillReturnRows(pgxmock.NewRows(metricsColumns))

	record, err := origin.queryMetrics(context.Background())
	require.NoError(t, err)
	assert.Nil(t, record)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabaseOrigin_QueryTopicsError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	origin := NewDatabaseOrigin(mock, "public", trustOpts())

	mock.ExpectQuery(`SELECT tag, mentions, trend FROM "public"."trending_topics" ORDER BY mentions DESC`).
		WillReturnError(errors.New("relation does not exist"))

	_, err = origin.queryTopics(context.Background())
	assert.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

// tableQuerier answers each table query with canned rows or an error
type tableQuerier struct {
	rows   map[string]func() *pgxmock.Rows
	errors map[string]error
}

func (q *tableQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	for table, err := range q.errors {
		if strings.Contains(sql, `."`+table+`"`) {
			return nil, err
		}
	}
	for table, build := range q.rows {
		if strings.Contains(sql, `."`+table+`"`) {
			return build().Kind(), nil
		}
	}
	return nil, errors.New("unexpected query: " + sql)
}

func allTables() map[string]func() *pgxmock.Rows {
	return map[string]func() *pgxmock.Rows{
		"social_mentions": func() *pgxmock.Rows {
			return pgxmock.NewRows(mentionColumns).
				AddRow("1", "YouTube", "Hidden fees", -0.45, int64(89), int64(34), int64(45), "StudyVloggerIN", nil, "HIGH PRIORITY", time.Now())
		},
		"sentiment_distribution": func() *pgxmock.Rows {
			return pgxmock.NewRows(sentimentColumns).AddRow("Positive", 52.0, int64(26))
		},
		"platform_breakdown": func() *pgxmock.Rows {
			return pgxmock.NewRows(platformColumns).AddRow("YouTube", 100.0, int64(1))
		},
		"trending_topics": func() *pgxmock.Rows {
			return pgxmock.NewRows(topicColumns).AddRow("#ielts", int64(12), "up")
		},
		"dashboard_metrics": func() *pgxmock.Rows {
			return pgxmock.NewRows(metricsColumns).AddRow(78.0, 5.0, int64(12480), 4.2)
		},
		"weekly_trend": func() *pgxmock.Rows {
			return pgxmock.NewRows(trendColumns).AddRow("Mon", 72.0).AddRow("Sun", 78.0)
		},
	}
}

func TestDatabaseOrigin_FetchAll(t *testing.T) {
	origin := NewDatabaseOrigin(&tableQuerier{rows: allTables()}, "public", trustOpts())

	payload, err := origin.Fetch(context.Background())
	require.NoError(t, err)
	assert.NoError(t, payload.Err())

	require.Len(t, payload.Mentions, 1)
	assert.Equal(t, models.PriorityHigh, payload.Mentions[0].Priority)
	assert.Equal(t, "#ff0000", payload.PlatformBreakdown[0].Color)
	assert.Equal(t, 12480, payload.Metrics.TotalMentions)
	assert.Equal(t, float64(72), payload.WeeklyTrend[0].Score)
	assert.Equal(t, float64(78), payload.WeeklyTrend[6].Score)
	assert.Equal(t, "#ielts", payload.TrendingTopics[0].Tag)
}

func TestDatabaseOrigin_FetchPartialFailure(t *testing.T) {
	tables := allTables()
	delete(tables, "trending_topics")
	delete(tables, "dashboard_metrics")
	querier := &tableQuerier{
		rows: tables,
		errors: map[string]error{
			"trending_topics":   errors.New("permission denied"),
			"dashboard_metrics": errors.New("timeout"),
		},
	}
	origin := NewDatabaseOrigin(querier, "public", trustOpts())

	payload, err := origin.Fetch(context.Background())
	require.NoError(t, err)

	assert.Len(t, payload.Mentions, 1)
	assert.Len(t, payload.SentimentBreakdown, 1)
	assert.Empty(t, payload.TrendingTopics)
	assert.Equal(t, models.DashboardMetrics{}, payload.Metrics)

	require.Error(t, payload.Err())
	assert.Contains(t, payload.Err().Error(), "topics: permission denied")
	assert.Contains(t, payload.Err().Error(), "metrics: timeout")
	assert.Contains(t, payload.Err().Error(), "; ")
}

func TestDatabaseOrigin_FetchEveryQueryFailing(t *testing.T) {
	down := errors.New("connection refused")
	querier := &tableQuerier{errors: map[string]error{
		"social_mentions":        down,
		"sentiment_distribution": down,
		"platform_breakdown":     down,
		"trending_topics":        down,
		"dashboard_metrics":      down,
		"weekly_trend":           down,
	}}
	origin := NewDatabaseOrigin(querier, "public", trustOpts())

	payload, err := origin.Fetch(context.Background())
	require.NoError(t, err)

	assert.Empty(t, payload.Mentions)
	assert.Empty(t, payload.SentimentBreakdown)
	assert.Empty(t, payload.PlatformBreakdown)
	assert.Empty(t, payload.TrendingTopics)
	assert.Equal(t, models.DashboardMetrics{}, payload.Metrics)
	assert.Equal(t, models.EmptyWeeklyTrend(), payload.WeeklyTrend)
	assert.Len(t, payload.ResourceErrors, 6)
	for _, resource := range []string{ResourceMentions, ResourceSentiment, ResourcePlatforms, ResourceTopics, ResourceMetrics, ResourceTrend} {
		assert.True(t, payload.Failed(resource), resource)
	}
	assert.Contains(t, payload.Err().Error(), "mentions: connection refused")
}

func TestDatabaseOrigin_FetchCancelled(t *testing.T) {
	origin := NewDatabaseOrigin(&tableQuerier{}, "public", trustOpts())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	payload, err := origin.Fetch(ctx)
	assert.Nil(t, payload)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

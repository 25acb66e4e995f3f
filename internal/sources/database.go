package sources

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Row limits for the recency-ordered queries
const (
	mentionsLimit  = 50
	sentimentLimit = 3
	platformsLimit = 10
	metricsLimit   = 1
)

// Querier is the subset of *pgxpool.Pool the database origin needs
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// DatabaseOrigin reads the six dashboard tables directly from the
// realtime database. It is the fallback when the aggregate API is down.
type DatabaseOrigin struct {
	db     Querier
	schema string
	opts   NormalizeOptions
}

// Ensure DatabaseOrigin implements Origin
var _ Origin = (*DatabaseOrigin)(nil)

// NewDatabaseOrigin creates the secondary origin. A nil db disables it.
func NewDatabaseOrigin(db Querier, schema string, opts NormalizeOptions) *DatabaseOrigin {
	if schema == "" {
		schema = "public"
	}
	return &DatabaseOrigin{
		db:     db,
		schema: schema,
		opts:   opts,
	}
}

func (d *DatabaseOrigin) Name() string {
	return "database"
}

func (d *DatabaseOrigin) IsEnabled() bool {
	return d.db != nil
}

func (d *DatabaseOrigin) table(name string) string {
	return pgx.Identifier{d.schema, name}.Sanitize()
}

// Fetch runs the six resource queries concurrently. A failing query leaves
// its resource empty and is reported in Payload.ResourceErrors; the others
// still apply. This holds even when all six fail. Only a cancelled or
// expired context fails the origin as a whole.
func (d *DatabaseOrigin) Fetch(ctx context.Context) (*Payload, error) {
	if !d.IsEnabled() {
		return nil, ErrNotConfigured
	}

	var raw rawPayload
	resourceErrs := make([]error, 6)

	// Plain Group: one failing query must not cancel the rest
	var g errgroup.Group
	g.Go(func() error {
		raw.Mentions, resourceErrs[0] = d.queryMentions(ctx)
		return nil
	})
	g.Go(func() error {
		raw.Sentiment, resourceErrs[1] = d.querySentiment(ctx)
		return nil
	})
	g.Go(func() error {
		raw.Platforms, resourceErrs[2] = d.queryPlatforms(ctx)
		return nil
	})
	g.Go(func() error {
		raw.Topics, resourceErrs[3] = d.queryTopics(ctx)
		return nil
	})
	g.Go(func() error {
		raw.Metrics, resourceErrs[4] = d.queryMetrics(ctx)
		return nil
	})
	g.Go(func() error {
		raw.WeeklyTrend, resourceErrs[5] = d.queryWeeklyTrend(ctx)
		return nil
	})
	_ = g.Wait()

	payload := raw.normalize(d.opts)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("realtime queries aborted: %w", err)
	}

	names := []string{ResourceMentions, ResourceSentiment, ResourcePlatforms, ResourceTopics, ResourceMetrics, ResourceTrend}
	for i, err := range resourceErrs {
		if err != nil {
			logrus.Errorf("Realtime query for %s failed: %v", names[i], err)
			payload.addError(names[i], err)
		}
	}

	return payload, nil
}

func (d *DatabaseOrigin) queryMentions(ctx context.Context) ([]mentionRecord, error) {
	query := fmt.Sprintf(`
		SELECT id::text, platform, content, sentiment_score, likes, shares, comments,
			author, source_url, priority, created_at
		FROM %s
		ORDER BY created_at DESC
		LIMIT $1`, d.table("social_mentions"))

	rows, err := d.db.Query(ctx, query, mentionsLimit)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (mentionRecord, error) {
		var (
			id, platform, content, author, sourceURL, priority sql.NullString
			sentiment                                          sql.NullFloat64
			likes, shares, comments                            sql.NullInt64
			createdAt                                          sql.NullTime
		)
		if err := row.Scan(&id, &platform, &content, &sentiment, &likes, &shares, &comments,
			&author, &sourceURL, &priority, &createdAt); err != nil {
			return mentionRecord{}, err
		}

		rec := mentionRecord{
			ID:             nullString(id),
			Platform:       nullString(platform),
			Content:        nullString(content),
			SentimentScore: nullFloat(sentiment),
			Likes:          nullInt(likes),
			Shares:         nullInt(shares),
			Comments:       nullInt(comments),
			Author:         nullString(author),
			SourceURL:      nullString(sourceURL),
			Priority:       nullString(priority),
		}
		if createdAt.Valid {
			t := createdAt.Time
			rec.createdAt = &t
		}
		return rec, nil
	})
}

func (d *DatabaseOrigin) querySentiment(ctx context.Context) ([]sentimentRecord, error) {
	query := fmt.Sprintf(`
		SELECT label, value, count
		FROM %s
		ORDER BY recorded_at DESC
		LIMIT $1`, d.table("sentiment_distribution"))

	rows, err := d.db.Query(ctx, query, sentimentLimit)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (sentimentRecord, error) {
		var label sql.NullString
		var value sql.NullFloat64
		var n sql.NullInt64
		if err := row.Scan(&label, &value, &n); err != nil {
			return sentimentRecord{}, err
		}
		return sentimentRecord{Label: nullString(label), Value: nullFloat(value), Count: nullInt(n)}, nil
	})
}

func (d *DatabaseOrigin) queryPlatforms(ctx context.Context) ([]platformRecord, error) {
	query := fmt.Sprintf(`
		SELECT platform, percentage, mention_count
		FROM %s
		ORDER BY recorded_at DESC
		LIMIT $1`, d.table("platform_breakdown"))

	rows, err := d.db.Query(ctx, query, platformsLimit)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (platformRecord, error) {
		var platform sql.NullString
		var pct sql.NullFloat64
		var n sql.NullInt64
		if err := row.Scan(&platform, &pct, &n); err != nil {
			return platformRecord{}, err
		}
		return platformRecord{Platform: nullString(platform), Percentage: nullFloat(pct), MentionCount: nullInt(n)}, nil
	})
}

func (d *DatabaseOrigin) queryTopics(ctx context.Context) ([]topicRecord, error) {
	query := fmt.Sprintf(`
		SELECT tag, mentions, trend
		FROM %s
		ORDER BY mentions DESC`, d.table("trending_topics"))

	rows, err := d.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (topicRecord, error) {
		var tag, trend sql.NullString
		var mentions sql.NullInt64
		if err := row.Scan(&tag, &mentions, &trend); err != nil {
			return topicRecord{}, err
		}
		return topicRecord{Tag: nullString(tag), Mentions: nullInt(mentions), Trend: nullString(trend)}, nil
	})
}

func (d *DatabaseOrigin) queryMetrics(ctx context.Context) (*metricsRecord, error) {
	query := fmt.Sprintf(`
		SELECT net_sentiment, sentiment_change, total_mentions, avg_engagement
		FROM %s
		ORDER BY recorded_at DESC
		LIMIT $1`, d.table("dashboard_metrics"))

	rows, err := d.db.Query(ctx, query, metricsLimit)
	if err != nil {
		return nil, err
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (metricsRecord, error) {
		var net, change, avg sql.NullFloat64
		var total sql.NullInt64
		if err := row.Scan(&net, &change, &total, &avg); err != nil {
			return metricsRecord{}, err
		}
		return metricsRecord{
			NetSentiment:    nullFloat(net),
			SentimentChange: nullFloat(change),
			TotalMentions:   nullInt(total),
			AvgEngagement:   nullFloat(avg),
		}, nil
	})
	if err != nil || len(records) == 0 {
		return nil, err
	}
	return &records[0], nil
}

func (d *DatabaseOrigin) queryWeeklyTrend(ctx context.Context) ([]trendRecord, error) {
	query := fmt.Sprintf(`SELECT day_label, score FROM %s`, d.table("weekly_trend"))

	rows, err := d.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (trendRecord, error) {
		var day sql.NullString
		var score sql.NullFloat64
		if err := row.Scan(&day, &score); err != nil {
			return trendRecord{}, err
		}
		return trendRecord{DayLabel: nullString(day), Score: nullFloat(score)}, nil
	})
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

func nullInt(v sql.NullInt64) *float64 {
	if !v.Valid {
		return nil
	}
	f := float64(v.Int64)
	return &f
}

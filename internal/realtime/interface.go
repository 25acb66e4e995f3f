package realtime

import "context"

// Tables whose changes trigger a dashboard refresh
const (
	TableMentions = "social_mentions"
	TableMetrics  = "dashboard_metrics"
)

// WatchedTables lists every table a subscription listens on
var WatchedTables = []string{TableMentions, TableMetrics}

// Subscriber opens push subscriptions for dashboard change notifications.
// onChange receives the table name that changed and may be called from any
// goroutine.
type Subscriber interface {
	Name() string
	Subscribe(ctx context.Context, onChange func(table string)) (Subscription, error)
}

// Subscription is an open push channel. Close is safe to call more than once.
type Subscription interface {
	Close() error
}

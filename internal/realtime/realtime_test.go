package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn delivers queued notifications; closing the queue drops the connection
type fakeConn struct {
	notifications chan *pgconn.Notification
	closeOnce     sync.Once
	closed        chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		notifications: make(chan *pgconn.Notification, 8),
		closed:        make(chan struct{}),
	}
}

func (f *fakeConn) WaitForNotification(ctx context.Context) (*pgconn.Notification, error) {
	select {
	case n, ok := <-f.notifications:
		if !ok {
			return nil, errors.New("connection reset by peer")
		}
		return n, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeConn) Close(ctx context.Context) error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

type connectResult struct {
	conn *fakeConn
	err  error
}

func newTestPostgresSubscriber(results ...connectResult) (*PostgresSubscriber, *int) {
	var mu sync.Mutex
	attempts := 0
	s := NewPostgresSubscriber(nil, "public")
	s.reconnectWait = time.Millisecond
	s.connect = func(ctx context.Context, channels map[string]string) (notificationConn, error) {
		mu.Lock()
		defer mu.Unlock()
		if attempts >= len(results) {
			return nil, errors.New("no more connections")
		}
		r := results[attempts]
		attempts++
		if r.err != nil {
			return nil, r.err
		}
		return r.conn, nil
	}
	return s, &attempts
}

func nextChange(t *testing.T, changes <-chan string) string {
	t.Helper()
	select {
	case table := <-changes:
		return table
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change notification")
		return ""
	}
}

func TestPostgresSubscriber_Channels(t *testing.T) {
	tests := []struct {
		name     string
		schema   string
		expected map[string]string
	}{
		{
			name:   "Default schema",
			schema: "",
			expected: map[string]string{
				"public_social_mentions":   "social_mentions",
				"public_dashboard_metrics": "dashboard_metrics",
			},
		},
		{
			name:   "Tenant schema",
			schema: "leap",
			expected: map[string]string{
				"leap_social_mentions":   "social_mentions",
				"leap_dashboard_metrics": "dashboard_metrics",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewPostgresSubscriber(nil, tt.schema)
			assert.Equal(t, tt.expected, s.Channels())
		})
	}
}

func TestNATSSubscriber_Subjects(t *testing.T) {
	s := NewNATSSubscriber(nil, "", "leap")
	assert.Equal(t, map[string]string{
		"pulse.leap.social_mentions":   "social_mentions",
		"pulse.leap.dashboard_metrics": "dashboard_metrics",
	}, s.Subjects())

	assert.Equal(t, "brand.public.dashboard_metrics", SubjectName("brand", "public", TableMetrics))
}

func TestSubscribe_WithoutConnection(t *testing.T) {
	var subscribers = []Subscriber{
		NewPostgresSubscriber(nil, "public"),
		NewNATSSubscriber(nil, "pulse", "public"),
	}

	for _, s := range subscribers {
		t.Run(s.Name(), func(t *testing.T) {
			sub, err := s.Subscribe(context.Background(), func(string) {})
			require.Error(t, err)
			assert.Nil(t, sub)
		})
	}
}

func TestNATSSubscription_CloseIsIdempotent(t *testing.T) {
	sub := &natsSubscription{}
	assert.NoError(t, sub.Close())
	assert.NoError(t, sub.Close())
}

func TestPostgresSubscriber_RoutesNotifications(t *testing.T) {
	conn := newFakeConn()
	s, _ := newTestPostgresSubscriber(connectResult{conn: conn})

	changes := make(chan string, 8)
	sub, err := s.subscribe(context.Background(), func(table string) { changes <- table })
	require.NoError(t, err)

	conn.notifications <- &pgconn.Notification{Channel: "public_social_mentions"}
	conn.notifications <- &pgconn.Notification{Channel: "public_weekly_trend"}
	conn.notifications <- &pgconn.Notification{Channel: "leap_dashboard_metrics"}
	conn.notifications <- &pgconn.Notification{Channel: "public_dashboard_metrics"}

	assert.Equal(t, TableMentions, nextChange(t, changes))
	assert.Equal(t, TableMetrics, nextChange(t, changes))

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	assert.Empty(t, changes)

	select {
	case <-conn.closed:
	default:
		t.Fatal("listen connection was not closed")
	}
}

func TestPostgresSubscriber_ReconnectsAfterConnectionLoss(t *testing.T) {
	first := newFakeConn()
	second := newFakeConn()
	s, attempts := newTestPostgresSubscriber(
		connectResult{conn: first},
		connectResult{err: errors.New("connection refused")},
		connectResult{conn: second},
	)

	changes := make(chan string, 8)
	sub, err := s.subscribe(context.Background(), func(table string) { changes <- table })
	require.NoError(t, err)
	defer sub.Close()

	close(first.notifications)

	// Missed changes are covered by one refresh after reconnecting
	assert.Equal(t, TableMentions, nextChange(t, changes))

	second.notifications <- &pgconn.Notification{Channel: "public_dashboard_metrics"}
	assert.Equal(t, TableMetrics, nextChange(t, changes))

	require.NoError(t, sub.Close())
	assert.Equal(t, 3, *attempts)
}

func TestPostgresSubscriber_InitialConnectFailure(t *testing.T) {
	s, _ := newTestPostgresSubscriber(connectResult{err: errors.New("too many connections")})

	sub, err := s.subscribe(context.Background(), func(string) {})
	require.Error(t, err)
	assert.Nil(t, sub)
	assert.Contains(t, err.Error(), "too many connections")
}

func TestNATSHandler_ReportsTable(t *testing.T) {
	s := NewNATSSubscriber(nil, "pulse", "public")

	var received []string
	for subject, table := range s.Subjects() {
		h := handler(table, func(changed string) { received = append(received, changed) })
		h(&nats.Msg{Subject: subject, Data: []byte(`{"op":"INSERT"}`)})
	}

	assert.ElementsMatch(t, []string{TableMentions, TableMetrics}, received)
}

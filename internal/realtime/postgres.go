package realtime

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

const defaultReconnectWait = 5 * time.Second

// notificationConn is a connection that has issued LISTEN
type notificationConn interface {
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Close(ctx context.Context) error
}

// PostgresSubscriber listens for NOTIFY events emitted by table triggers.
// Each subscription owns one connection taken out of the pool.
type PostgresSubscriber struct {
	pool          *pgxpool.Pool
	schema        string
	reconnectWait time.Duration
	connect       func(ctx context.Context, channels map[string]string) (notificationConn, error)
}

// Ensure PostgresSubscriber implements Subscriber
var _ Subscriber = (*PostgresSubscriber)(nil)

// NewPostgresSubscriber creates a LISTEN/NOTIFY subscriber for the schema
func NewPostgresSubscriber(pool *pgxpool.Pool, schema string) *PostgresSubscriber {
	if schema == "" {
		schema = "public"
	}
	s := &PostgresSubscriber{
		pool:          pool,
		schema:        schema,
		reconnectWait: defaultReconnectWait,
	}
	s.connect = func(ctx context.Context, channels map[string]string) (notificationConn, error) {
		conn, err := s.listen(ctx, channels)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
	return s
}

func (s *PostgresSubscriber) Name() string {
	return "postgres"
}

// ChannelName is the notification channel for a table in a schema
func ChannelName(schema, table string) string {
	return schema + "_" + table
}

// Channels returns the notification channels mapped to their table
func (s *PostgresSubscriber) Channels() map[string]string {
	channels := make(map[string]string, len(WatchedTables))
	for _, table := range WatchedTables {
		channels[ChannelName(s.schema, table)] = table
	}
	return channels
}

// Subscribe issues LISTEN on every watched channel before returning, so a
// failure to subscribe is reported to the caller rather than the log.
func (s *PostgresSubscriber) Subscribe(ctx context.Context, onChange func(table string)) (Subscription, error) {
	if s.pool == nil {
		return nil, errors.New("postgres subscriber has no pool")
	}
	return s.subscribe(ctx, onChange)
}

func (s *PostgresSubscriber) subscribe(ctx context.Context, onChange func(table string)) (Subscription, error) {
	channels := s.Channels()
	conn, err := s.connect(ctx, channels)
	if err != nil {
		return nil, err
	}

	subCtx, cancel := context.WithCancel(context.Background())
	sub := &pgSubscription{cancel: cancel, done: make(chan struct{})}
	go s.run(subCtx, conn, channels, onChange, sub.done)

	logrus.Infof("Listening for changes on %s", strings.Join(keys(channels), ", "))
	return sub, nil
}

func (s *PostgresSubscriber) listen(ctx context.Context, channels map[string]string) (*pgx.Conn, error) {
	pooled, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire listen connection: %w", err)
	}
	// The connection stays in LISTEN state, so it must not go back to the pool
	conn := pooled.Hijack()

	for channel := range channels {
		if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
			conn.Close(context.Background())
			return nil, fmt.Errorf("failed to listen on %s: %w", channel, err)
		}
	}
	return conn, nil
}

func (s *PostgresSubscriber) run(ctx context.Context, conn notificationConn, channels map[string]string, onChange func(string), done chan struct{}) {
	defer close(done)

	for {
		err := s.wait(ctx, conn, channels, onChange)
		conn.Close(context.Background())
		if ctx.Err() != nil {
			return
		}

		logrus.Warnf("Notification connection lost: %v", err)
		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.reconnectWait):
			}

			conn, err = s.connect(ctx, channels)
			if err == nil {
				break
			}
			logrus.Errorf("Failed to re-establish notification listener: %v", err)
		}

		// Changes may have been missed while disconnected
		logrus.Info("Notification listener re-established")
		onChange(TableMentions)
	}
}

func (s *PostgresSubscriber) wait(ctx context.Context, conn notificationConn, channels map[string]string, onChange func(string)) error {
	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}

		table, ok := channels[n.Channel]
		if !ok {
			logrus.Debugf("Ignoring notification on unexpected channel %s", n.Channel)
			continue
		}
		logrus.Debugf("Change notification on %s", n.Channel)
		onChange(table)
	}
}

type pgSubscription struct {
	once   sync.Once
	cancel context.CancelFunc
	done   chan struct{}
}

func (p *pgSubscription) Close() error {
	p.once.Do(func() {
		p.cancel()
		<-p.done
		logrus.Info("Notification listener closed")
	})
	return nil
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

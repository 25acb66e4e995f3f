package realtime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// NATSSubscriber receives change notifications published on NATS subjects
// named <prefix>.<schema>.<table>.
type NATSSubscriber struct {
	conn   *nats.Conn
	prefix string
	schema string
}

// Ensure NATSSubscriber implements Subscriber
var _ Subscriber = (*NATSSubscriber)(nil)

// NewNATSSubscriber creates a subscriber on an established connection
func NewNATSSubscriber(conn *nats.Conn, prefix, schema string) *NATSSubscriber {
	if prefix == "" {
		prefix = "pulse"
	}
	if schema == "" {
		schema = "public"
	}
	return &NATSSubscriber{
		conn:   conn,
		prefix: prefix,
		schema: schema,
	}
}

func (s *NATSSubscriber) Name() string {
	return "nats"
}

// SubjectName is the change subject for a table in a schema
func SubjectName(prefix, schema, table string) string {
	return fmt.Sprintf("%s.%s.%s", prefix, schema, table)
}

// Subjects returns the subjects mapped to their table
func (s *NATSSubscriber) Subjects() map[string]string {
	subjects := make(map[string]string, len(WatchedTables))
	for _, table := range WatchedTables {
		subjects[SubjectName(s.prefix, s.schema, table)] = table
	}
	return subjects
}

func (s *NATSSubscriber) Subscribe(ctx context.Context, onChange func(table string)) (Subscription, error) {
	if s.conn == nil {
		return nil, errors.New("nats subscriber has no connection")
	}

	sub := &natsSubscription{}
	for subject, table := range s.Subjects() {
		ns, err := s.conn.Subscribe(subject, handler(table, onChange))
		if err != nil {
			sub.Close()
			return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
		}
		sub.subs = append(sub.subs, ns)
	}

	logrus.Infof("Subscribed to %s", strings.Join(keys(s.Subjects()), ", "))
	return sub, nil
}

// handler reports every message on a table subject as a change of that table
func handler(table string, onChange func(table string)) nats.MsgHandler {
	return func(msg *nats.Msg) {
		logrus.Debugf("Change notification on %s", msg.Subject)
		onChange(table)
	}
}

type natsSubscription struct {
	once sync.Once
	subs []*nats.Subscription
}

func (n *natsSubscription) Close() error {
	var errs []string
	n.once.Do(func() {
		for _, sub := range n.subs {
			if err := sub.Unsubscribe(); err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", sub.Subject, err))
			}
		}
	})
	if len(errs) > 0 {
		return fmt.Errorf("unsubscribe errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Connect dials NATS with reconnect handling
func Connect(url string) (*nats.Conn, error) {
	options := []nats.Option{
		nats.Name("pulse-dashboard"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logrus.Warnf("NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logrus.Infof("NATS reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logrus.Info("NATS connection closed")
		}),
	}

	nc, err := nats.Connect(url, options...)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to NATS: %w", err)
	}
	return nc, nil
}

package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/leappulse/pulse/internal/mockdata"
	"github.com/leappulse/pulse/internal/models"
	"github.com/leappulse/pulse/internal/notifications"
	"github.com/leappulse/pulse/internal/realtime"
	"github.com/leappulse/pulse/internal/sources"
	"github.com/leappulse/pulse/internal/triage"
	"github.com/sirupsen/logrus"
)

// UnavailableMessage prefixes the error shown when no live origin answered
const UnavailableMessage = "Live backend unavailable"

const defaultRefreshTimeout = 60 * time.Second

var (
	ErrUnknownSource = errors.New("unknown data source")
	ErrClosed        = errors.New("controller closed")
)

// Options configures a Controller. Every collaborator is optional.
type Options struct {
	Primary        sources.Origin
	Secondary      sources.Origin
	Subscriber     realtime.Subscriber
	Notifier       notifications.NotificationInterface
	Metrics        *Metrics
	RefreshTimeout time.Duration
	Now            func() time.Time
}

// Controller owns the dashboard snapshot. It switches between the embedded
// mock dataset and live origins, keeps a push subscription open while live
// and refreshes on every change notification.
//
// A refresh that has been superseded, by a newer refresh or a source switch,
// never writes to the snapshot.
type Controller struct {
	primary        sources.Origin
	secondary      sources.Origin
	subscriber     realtime.Subscriber
	notifier       notifications.NotificationInterface
	metrics        *Metrics
	refreshTimeout time.Duration
	now            func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// switchMu serializes source transitions and guards subscription
	switchMu     sync.Mutex
	subscription realtime.Subscription

	mu            sync.RWMutex
	snapshot      models.Snapshot
	generation    uint64
	cancelRefresh context.CancelFunc
	seenAlerts    map[string]struct{}
	closed        bool

	watchMu  sync.Mutex
	watchers map[chan models.Snapshot]struct{}
}

// NewController creates a controller showing the mock dataset
func NewController(opts Options) *Controller {
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = defaultRefreshTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		primary:        opts.Primary,
		secondary:      opts.Secondary,
		subscriber:     opts.Subscriber,
		notifier:       opts.Notifier,
		metrics:        opts.Metrics,
		refreshTimeout: opts.RefreshTimeout,
		now:            opts.Now,
		ctx:            ctx,
		cancel:         cancel,
		snapshot:       mockdata.Snapshot(),
		seenAlerts:     make(map[string]struct{}),
		watchers:       make(map[chan models.Snapshot]struct{}),
	}
}

// LiveConfigured reports whether any live origin can be attempted
func (c *Controller) LiveConfigured() bool {
	return enabled(c.primary) || enabled(c.secondary)
}

// Snapshot returns a copy of the current state
func (c *Controller) Snapshot() models.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot.Clone()
}

// Alerts returns the badge counts for the current mentions
func (c *Controller) Alerts() triage.AlertCounts {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return triage.CountAlerts(c.snapshot.Mentions)
}

// Start applies the initial data source
func (c *Controller) Start(ctx context.Context, source models.DataSource) (models.Snapshot, error) {
	logrus.Infof("Starting dashboard controller with %s data", source)
	return c.SetDataSource(ctx, source)
}

// SetDataSource switches to source. Entering live resets the snapshot to
// empty, opens the push subscription and runs a refresh before returning.
// Selecting the current source is a no-op.
func (c *Controller) SetDataSource(ctx context.Context, source models.DataSource) (models.Snapshot, error) {
	parsed, ok := models.ParseDataSource(string(source))
	if !ok {
		return c.Snapshot(), fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}

	c.switchMu.Lock()
	refresh, err := c.transition(parsed)
	c.switchMu.Unlock()

	return c.afterTransition(ctx, refresh, err)
}

// ToggleDataSource flips between mock and live
func (c *Controller) ToggleDataSource(ctx context.Context) (models.Snapshot, error) {
	c.switchMu.Lock()
	target := models.SourceLive
	c.mu.RLock()
	if c.snapshot.DataSource == models.SourceLive {
		target = models.SourceMock
	}
	c.mu.RUnlock()
	refresh, err := c.transition(target)
	c.switchMu.Unlock()

	return c.afterTransition(ctx, refresh, err)
}

func (c *Controller) afterTransition(ctx context.Context, refresh bool, err error) (models.Snapshot, error) {
	if err != nil {
		return c.Snapshot(), err
	}
	if refresh {
		return c.Refresh(ctx), nil
	}
	return c.Snapshot(), nil
}

// transition must be called with switchMu held. It reports whether the
// caller should refresh.
func (c *Controller) transition(target models.DataSource) (bool, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false, ErrClosed
	}
	if c.snapshot.DataSource == target {
		c.mu.Unlock()
		return false, nil
	}

	c.invalidateRefresh()
	if target == models.SourceMock {
		c.snapshot = mockdata.Snapshot()
	} else {
		// The refresh that follows is already pending
		c.snapshot = models.EmptyLiveSnapshot()
		c.snapshot.IsLoading = true
	}
	c.publish()
	c.mu.Unlock()

	logrus.Infof("Data source switched to %s", target)

	if target == models.SourceMock {
		c.closeSubscription()
		return false, nil
	}
	c.openSubscription()
	return true, nil
}

// Refresh runs the live refresh sequence: primary origin, then secondary
// origin, then the unavailable error. It is a no-op outside live mode.
func (c *Controller) Refresh(ctx context.Context) models.Snapshot {
	c.mu.Lock()
	if c.closed || c.snapshot.DataSource != models.SourceLive {
		snap := c.snapshot.Clone()
		c.mu.Unlock()
		return snap
	}

	c.invalidateRefresh()
	gen := c.generation
	refreshCtx, cancel := context.WithTimeout(ctx, c.refreshTimeout)
	stop := context.AfterFunc(c.ctx, cancel)
	c.cancelRefresh = cancel
	c.snapshot.IsLoading = true
	c.snapshot.Error = ""
	c.publish()
	c.mu.Unlock()

	defer stop()
	defer cancel()

	log := logrus.WithFields(logrus.Fields{
		"refresh_id": uuid.NewString(),
		"generation": gen,
	})
	start := time.Now()
	log.Info("Starting live refresh")

	payload, err := c.fetch(refreshCtx, log)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		log.Debug("Discarding superseded refresh result")
		return c.snapshot.Clone()
	}
	c.cancelRefresh = nil

	var alerts []*models.Alert
	if err != nil {
		log.Errorf("Live refresh failed: %v", err)
		c.snapshot.Error = err.Error()
	} else {
		c.apply(payload)
		alerts = c.newAlerts(payload)
		log.Infof("Live refresh completed in %v", time.Since(start))
	}
	c.snapshot.IsLoading = false
	c.publish()

	if len(alerts) > 0 {
		c.wg.Add(1)
		go c.deliver(alerts)
	}

	return c.snapshot.Clone()
}

// invalidateRefresh must be called with mu held
func (c *Controller) invalidateRefresh() {
	c.generation++
	if c.cancelRefresh != nil {
		c.cancelRefresh()
		c.cancelRefresh = nil
	}
}

func (c *Controller) fetch(ctx context.Context, log *logrus.Entry) (*sources.Payload, error) {
	var failures []string

	for _, origin := range []sources.Origin{c.primary, c.secondary} {
		if !enabled(origin) {
			continue
		}
		if ctx.Err() != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", origin.Name(), ctx.Err()))
			break
		}

		payload, err := c.fetchFrom(ctx, origin, log)
		if err == nil {
			return payload, nil
		}
		failures = append(failures, fmt.Sprintf("%s: %v", origin.Name(), err))
	}

	if len(failures) == 0 {
		return nil, fmt.Errorf("%s: no live origin configured", UnavailableMessage)
	}
	return nil, fmt.Errorf("%s: %s", UnavailableMessage, strings.Join(failures, "; "))
}

func (c *Controller) fetchFrom(ctx context.Context, origin sources.Origin, log *logrus.Entry) (*sources.Payload, error) {
	start := time.Now()
	payload, err := origin.Fetch(ctx)
	c.metrics.RefreshDuration.WithLabelValues(origin.Name()).Observe(time.Since(start).Seconds())

	outcome := "success"
	switch {
	case err != nil:
		outcome = "failure"
		log.Warnf("Origin %s failed: %v", origin.Name(), err)
	case payload.Err() != nil:
		outcome = "partial"
		log.Warnf("Origin %s returned partial data: %v", origin.Name(), payload.Err())
	default:
		log.Debugf("Origin %s returned %d mentions", origin.Name(), len(payload.Mentions))
	}
	c.metrics.RefreshTotal.WithLabelValues(origin.Name(), outcome).Inc()

	return payload, err
}

// apply must be called with mu held. Every resource is replaced, so a
// resource missing from the payload becomes empty.
func (c *Controller) apply(payload *sources.Payload) {
	c.snapshot.Mentions = payload.Mentions
	c.snapshot.SentimentBreakdown = payload.SentimentBreakdown
	c.snapshot.PlatformBreakdown = payload.PlatformBreakdown
	c.snapshot.TrendingTopics = payload.TrendingTopics
	c.snapshot.Metrics = payload.Metrics
	c.snapshot.WeeklyTrend = payload.WeeklyTrend

	now := c.now()
	c.snapshot.LastUpdated = &now
	if err := payload.Err(); err != nil {
		c.snapshot.Error = err.Error()
	}
	if payload.Rejected > 0 {
		c.metrics.RejectedRecords.Add(float64(payload.Rejected))
	}
}

// newAlerts must be called with mu held. Backends may issue a new mention
// ID on every scrape, so alerts are keyed by alertKey. The seen set holds the
// alert-worthy posts of the latest refresh that loaded mentions.
func (c *Controller) newAlerts(payload *sources.Payload) []*models.Alert {
	if payload.Failed(sources.ResourceMentions) {
		return nil
	}

	var alerts []*models.Alert
	current := make(map[string]struct{})
	for _, m := range payload.Mentions {
		if !triage.IsAlert(m.Priority) {
			continue
		}
		key := alertKey(m)
		if _, dup := current[key]; dup {
			continue
		}
		current[key] = struct{}{}
		if _, seen := c.seenAlerts[key]; seen {
			continue
		}
		if c.notifier != nil {
			alerts = append(alerts, notifications.NewAlert(uuid.NewString(), m, c.now()))
		}
	}
	c.seenAlerts = current
	return alerts
}

// alertKey identifies a post across scrapes: its URL when known, otherwise
// a hash of platform, author and content.
func alertKey(m models.Mention) string {
	if url := strings.TrimSpace(m.SourceURL); url != "" {
		return "url:" + url
	}
	return fmt.Sprintf("post:%016x", xxhash.Sum64String(string(m.Platform)+"\x00"+m.Author+"\x00"+m.Content))
}

func (c *Controller) deliver(alerts []*models.Alert) {
	defer c.wg.Done()

	for _, alert := range alerts {
		outcome := "success"
		if err := c.notifier.SendAlert(alert); err != nil {
			logrus.Errorf("Failed to deliver alert for mention %s: %v", alert.Mention.ID, err)
			outcome = "failure"
		}
		c.metrics.AlertsDelivered.WithLabelValues(alert.Type, outcome).Inc()
	}
}

// openSubscription must be called with switchMu held
func (c *Controller) openSubscription() {
	if c.subscriber == nil || c.subscription != nil {
		return
	}

	sub, err := c.subscriber.Subscribe(c.ctx, c.onChange)
	if err != nil {
		logrus.Warnf("Failed to open %s push subscription: %v", c.subscriber.Name(), err)
		return
	}
	c.subscription = sub
	c.metrics.ActiveSubscriptions.Inc()
	logrus.Infof("Opened %s push subscription", c.subscriber.Name())
}

// closeSubscription must be called with switchMu held
func (c *Controller) closeSubscription() {
	if c.subscription == nil {
		return
	}

	if err := c.subscription.Close(); err != nil {
		logrus.Warnf("Failed to close push subscription: %v", err)
	}
	c.subscription = nil
	c.metrics.ActiveSubscriptions.Dec()
	logrus.Info("Closed push subscription")
}

func (c *Controller) onChange(table string) {
	c.metrics.PushNotifications.WithLabelValues(table).Inc()

	c.mu.Lock()
	if c.closed || c.snapshot.DataSource != models.SourceLive {
		c.mu.Unlock()
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()

	logrus.Debugf("Change on %s, refreshing", table)
	go func() {
		defer c.wg.Done()
		c.Refresh(c.ctx)
	}()
}

// Watch returns a channel that always holds the latest snapshot. The
// current snapshot is delivered immediately. Call the returned function to
// stop watching.
func (c *Controller) Watch() (<-chan models.Snapshot, func()) {
	ch := make(chan models.Snapshot, 1)

	c.mu.RLock()
	ch <- c.snapshot.Clone()
	c.watchMu.Lock()
	if c.closed {
		close(ch)
	} else {
		c.watchers[ch] = struct{}{}
	}
	c.watchMu.Unlock()
	c.mu.RUnlock()

	stop := func() {
		c.watchMu.Lock()
		defer c.watchMu.Unlock()
		if _, ok := c.watchers[ch]; ok {
			delete(c.watchers, ch)
			close(ch)
		}
	}
	return ch, stop
}

// publish must be called with mu held
func (c *Controller) publish() {
	c.watchMu.Lock()
	defer c.watchMu.Unlock()

	for ch := range c.watchers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- c.snapshot.Clone():
		default:
		}
	}
}

// Close closes the push subscription, waits for background refreshes and
// alert deliveries, and ends every watch.
func (c *Controller) Close() error {
	c.switchMu.Lock()
	defer c.switchMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.invalidateRefresh()
	c.mu.Unlock()

	c.closeSubscription()
	c.cancel()
	c.wg.Wait()

	c.watchMu.Lock()
	for ch := range c.watchers {
		delete(c.watchers, ch)
		close(ch)
	}
	c.watchMu.Unlock()

	logrus.Info("Dashboard controller closed")
	return nil
}

func enabled(origin sources.Origin) bool {
	return origin != nil && origin.IsEnabled()
}

package sources

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/leappulse/pulse/internal/models"
)

// ErrNotConfigured is returned by origins that have no credentials
var ErrNotConfigured = errors.New("origin not configured")

// Origin is a live data origin the dashboard can refresh from
type Origin interface {
	Name() string
	IsEnabled() bool
	Fetch(ctx context.Context) (*Payload, error)
}

// Resource names used in logs and partial-failure messages
const (
	ResourceMentions  = "mentions"
	ResourceSentiment = "sentiment"
	ResourcePlatforms = "platforms"
	ResourceTopics    = "topics"
	ResourceMetrics   = "metrics"
	ResourceTrend     = "trend"
)

// Payload is one normalized fetch of all six dashboard resources.
// Resources that were absent or failed are empty (weekly trend: seven
// zero-scored days), never filled from mock data.
type Payload struct {
	Mentions           []models.Mention
	SentimentBreakdown []models.SentimentEntry
	PlatformBreakdown  []models.PlatformEntry
	TrendingTopics     []models.TrendingTopic
	Metrics            models.DashboardMetrics
	WeeklyTrend        []models.TrendPoint

	// ResourceErrors holds "resource: message" entries for partial failures
	ResourceErrors []string
	// Rejected counts records dropped by normalization
	Rejected int
}

// NewEmptyPayload returns a payload with every resource empty
func NewEmptyPayload() *Payload {
	return &Payload{
		Mentions:           []models.Mention{},
		SentimentBreakdown: []models.SentimentEntry{},
		PlatformBreakdown:  []models.PlatformEntry{},
		TrendingTopics:     []models.TrendingTopic{},
		WeeklyTrend:        models.EmptyWeeklyTrend(),
	}
}

// Err joins partial resource failures into a single error
func (p *Payload) Err() error {
	if len(p.ResourceErrors) == 0 {
		return nil
	}
	return fmt.Errorf("%s", strings.Join(p.ResourceErrors, "; "))
}

// Failed reports whether resource could not be loaded
func (p *Payload) Failed(resource string) bool {
	for _, e := range p.ResourceErrors {
		if strings.HasPrefix(e, resource+": ") {
			return true
		}
	}
	return false
}

func (p *Payload) addError(resource string, err error) {
	p.ResourceErrors = append(p.ResourceErrors, fmt.Sprintf("%s: %v", resource, err))
}

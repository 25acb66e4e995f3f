package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/leappulse/pulse/internal/models"
	"github.com/leappulse/pulse/internal/server"
)

const contentWidth = 100

func writeJSON(w io.Writer, view server.SnapshotView) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(view)
}

// printReport renders the snapshot for a terminal
func printReport(w io.Writer, brand string, view server.SnapshotView, limit int) {
	fmt.Fprintln(w, strings.Repeat("=", 70))
	fmt.Fprintf(w, "📊 %s BRAND PULSE (%s data)\n", strings.ToUpper(brand), view.DataSource)
	fmt.Fprintln(w, strings.Repeat("=", 70))

	if view.LastUpdated != nil {
		fmt.Fprintf(w, "🕒 Last updated: %s\n", view.LastUpdated.UTC().Format("2006-01-02 15:04:05 UTC"))
	}
	if view.Error != "" {
		fmt.Fprintf(w, "⚠️  %s\n", view.Error)
	}

	m := view.Metrics
	fmt.Fprintf(w, "\n📈 Net sentiment: %.1f (%+.1f%%)\n", m.NetSentiment, m.SentimentChange)
	fmt.Fprintf(w, "💬 Total mentions: %d\n", m.TotalMentions)
	fmt.Fprintf(w, "👍 Avg engagement: %.1f\n", m.AvgEngagement)
	fmt.Fprintf(w, "🚨 Alerts: %d critical, %d marketing gold\n", view.Alerts.Critical, view.Alerts.MarketingGold)

	if len(view.SentimentBreakdown) > 0 {
		fmt.Fprintln(w, "\n💭 Sentiment:")
		for _, s := range view.SentimentBreakdown {
			fmt.Fprintf(w, "   • %-10s %5.1f%% (%d)\n", s.Label+":", s.Value, s.Count)
		}
	}

	if len(view.PlatformBreakdown) > 0 {
		fmt.Fprintln(w, "\n📍 Platforms:")
		for _, p := range view.PlatformBreakdown {
			fmt.Fprintf(w, "   • %-12s %5.1f%% (%d)\n", p.Platform+":", p.Value, p.Count)
		}
	}

	if len(view.TrendingTopics) > 0 {
		fmt.Fprintln(w, "\n🔥 Trending:")
		for _, t := range view.TrendingTopics {
			fmt.Fprintf(w, "   %s %-20s %d\n", trendArrow(t.Trend), t.Tag, t.Mentions)
		}
	}

	fmt.Fprintln(w, "\n📝 Mentions:")
	if len(view.Mentions) == 0 {
		fmt.Fprintln(w, "   No mentions")
	}
	for i, mention := range view.Mentions {
		if limit > 0 && i >= limit {
			fmt.Fprintf(w, "   ... and %d more mentions\n", len(view.Mentions)-limit)
			break
		}
		fmt.Fprintf(w, "\n   %d. [%s] %s by %s\n", i+1, mention.Priority, mention.Platform, mention.Author)
		fmt.Fprintf(w, "      %s\n", shorten(mention.Content, contentWidth))
		fmt.Fprintf(w, "      sentiment %+.2f, %d likes, %d shares, %d comments\n",
			mention.SentimentScore, mention.Engagement.Likes, mention.Engagement.Shares, mention.Engagement.Comments)
	}
}

func trendArrow(trend models.Trend) string {
	switch trend {
	case models.TrendUp:
		return "↑"
	case models.TrendDown:
		return "↓"
	}
	return "→"
}

func shorten(s string, length int) string {
	runes := []rune(strings.Join(strings.Fields(s), " "))
	if len(runes) <= length {
		return string(runes)
	}
	return string(runes[:length]) + "..."
}

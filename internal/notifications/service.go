package notifications

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/leappulse/pulse/internal/config"
	"github.com/leappulse/pulse/internal/models"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// Alert types
const (
	AlertCritical  = "critical"
	AlertMarketing = "marketing"
)

var themeColors = map[string]string{
	AlertCritical:  "d13438",
	AlertMarketing: "107c10",
}

// Service delivers mention alerts via Teams and email
type Service struct {
	config *config.Config
	client *resty.Client
}

// Ensure Service implements NotificationInterface
var _ NotificationInterface = (*Service)(nil)

// TeamsMessage represents a Microsoft Teams message card
type TeamsMessage struct {
	Type       string         `json:"@type"`
	Context    string         `json:"@context"`
	ThemeColor string         `json:"themeColor,omitempty"`
	Title      string         `json:"title"`
	Text       string         `json:"text"`
	Sections   []TeamsSection `json:"sections,omitempty"`
}

type TeamsSection struct {
	ActivityTitle    string      `json:"activityTitle,omitempty"`
	ActivitySubtitle string      `json:"activitySubtitle,omitempty"`
	ActivityText     string      `json:"activityText,omitempty"`
	Facts            []TeamsFact `json:"facts,omitempty"`
	Markdown         bool        `json:"markdown,omitempty"`
}

type TeamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewService creates a new notification service
func NewService(cfg *config.Config) *Service {
	return &Service{
		config: cfg,
		client: resty.New().SetTimeout(30 * time.Second),
	}
}

// NewAlert builds the alert for a newly observed high-signal mention
func NewAlert(id string, mention models.Mention, now time.Time) *models.Alert {
	alert := &models.Alert{
		ID:        id,
		Mention:   &mention,
		CreatedAt: now,
	}

	switch mention.Priority {
	case models.PriorityCritical:
		alert.Type = AlertCritical
		alert.Title = fmt.Sprintf("Critical mention on %s", mention.Platform)
		alert.Message = fmt.Sprintf("%s posted a strongly negative mention (sentiment %.2f, %d likes) that needs a response.",
			mention.Author, mention.SentimentScore, mention.Engagement.Likes)
	default:
		alert.Type = AlertMarketing
		alert.Title = fmt.Sprintf("Marketing opportunity on %s", mention.Platform)
		alert.Message = fmt.Sprintf("%s posted a highly positive mention (sentiment %.2f, %d likes) worth amplifying.",
			mention.Author, mention.SentimentScore, mention.Engagement.Likes)
	}
	return alert
}

// SendAlert sends an alert via every configured channel
func (s *Service) SendAlert(alert *models.Alert) error {
	var errors []string

	if s.config.TeamsWebhookURL != "" {
		if err := s.sendToTeams(alert); err != nil {
			logrus.Errorf("Failed to send Teams alert: %v", err)
			errors = append(errors, fmt.Sprintf("Teams: %v", err))
		} else {
			logrus.Infof("Sent %s alert %s to Teams", alert.Type, alert.ID)
		}
	}

	if s.config.NotificationEmail != "" {
		if err := s.sendEmail(alert); err != nil {
			logrus.Errorf("Failed to send email alert: %v", err)
			errors = append(errors, fmt.Sprintf("Email: %v", err))
		} else {
			logrus.Infof("Sent %s alert %s via email", alert.Type, alert.ID)
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

func (s *Service) sendToTeams(alert *models.Alert) error {
	message := s.buildTeamsMessage(alert)

	resp, err := s.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(message).
		Post(s.config.TeamsWebhookURL)

	if err != nil {
		return fmt.Errorf("failed to send Teams message: %w", err)
	}

	if !resp.IsSuccess() {
		return fmt.Errorf("Teams webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	return nil
}

func (s *Service) buildTeamsMessage(alert *models.Alert) *TeamsMessage {
	message := &TeamsMessage{
		Type:       "MessageCard",
		Context:    "https://schema.org/extensions",
		ThemeColor: themeColors[alert.Type],
		Title:      fmt.Sprintf("%s - %s", s.config.BrandName, alert.Title),
		Text:       alert.Message,
	}

	if m := alert.Mention; m != nil {
		facts := []TeamsFact{
			{Name: "Priority", Value: string(m.Priority)},
			{Name: "Platform", Value: string(m.Platform)},
			{Name: "Author", Value: m.Author},
			{Name: "Sentiment", Value: fmt.Sprintf("%.2f", m.SentimentScore)},
			{Name: "Engagement", Value: fmt.Sprintf("%d likes, %d shares, %d comments",
				m.Engagement.Likes, m.Engagement.Shares, m.Engagement.Comments)},
			{Name: "Posted", Value: m.Timestamp.UTC().Format("2006-01-02 15:04:05 UTC")},
		}

		text := truncate(m.Content, 300)
		if m.SourceURL != "" {
			text = fmt.Sprintf("%s\n\n[View original](%s)", text, m.SourceURL)
		}

		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: "Mention",
			ActivityText:  text,
			Facts:         facts,
			Markdown:      true,
		})
	}

	return message
}

func (s *Service) sendEmail(alert *models.Alert) error {
	subject := fmt.Sprintf("[%s] %s", s.config.BrandName, alert.Title)

	htmlBody, err := s.buildEmailHTML(alert)
	if err != nil {
		return fmt.Errorf("failed to build email HTML: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.config.SMTPUsername)
	m.SetHeader("To", s.config.NotificationEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", s.buildEmailText(alert))
	m.AddAlternative("text/html", htmlBody)

	d := gomail.NewDialer(s.config.SMTPHost, s.config.SMTPPort, s.config.SMTPUsername, s.config.SMTPPassword)

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

const emailTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Alert.Title}}</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        .header { color: white; padding: 20px; border-radius: 5px; }
        .critical { background-color: #d13438; }
        .marketing { background-color: #107c10; }
        .mention { border-left: 4px solid #605e5c; padding: 10px; margin: 20px 0; background-color: #fafafa; }
        .meta { color: #666; font-size: 0.9em; }
    </style>
</head>
<body>
    <div class="header {{.Alert.Type}}">
        <h1>{{.Alert.Title}}</h1>
        <p>{{.Brand}} alert raised {{.Alert.CreatedAt.Format "January 2, 2006 at 3:04 PM UTC"}}</p>
    </div>

    <p>{{.Alert.Message}}</p>

    {{with .Alert.Mention}}
    <div class="mention">
        <p>{{.Content | truncate 500}}</p>
        <div class="meta">
            {{.Priority}} | By {{.Author}} on {{.Platform}} | {{.Timestamp.Format "Jan 2, 2006 15:04"}}
            | {{.Engagement.Likes}} likes, {{.Engagement.Shares}} shares, {{.Engagement.Comments}} comments
        </div>
        {{if .SourceURL}}<p><a href="{{.SourceURL}}" target="_blank">View original</a></p>{{end}}
    </div>
    {{end}}

    <hr>
    <p><small>This alert was generated automatically by the {{.Brand}} brand pulse dashboard.</small></p>
</body>
</html>
`

func (s *Service) buildEmailHTML(alert *models.Alert) (string, error) {
	t := template.New("email").Funcs(template.FuncMap{
		"truncate": func(length int, s string) string {
			return truncate(s, length)
		},
	})

	t, err := t.Parse(emailTemplate)
	if err != nil {
		return "", err
	}

	data := struct {
		Brand string
		Alert *models.Alert
	}{Brand: s.config.BrandName, Alert: alert}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func (s *Service) buildEmailText(alert *models.Alert) string {
	var text strings.Builder

	text.WriteString(fmt.Sprintf("%s\n", alert.Title))
	text.WriteString(fmt.Sprintf("Raised: %s\n\n", alert.CreatedAt.UTC().Format("2006-01-02 15:04:05 UTC")))
	text.WriteString(alert.Message + "\n")

	if m := alert.Mention; m != nil {
		text.WriteString("\nMENTION\n")
		text.WriteString("=======\n")
		text.WriteString(fmt.Sprintf("Priority: %s\n", m.Priority))
		text.WriteString(fmt.Sprintf("Platform: %s | Author: %s | Date: %s\n",
			m.Platform, m.Author, m.Timestamp.Format("Jan 2, 2006 15:04")))
		text.WriteString(fmt.Sprintf("Engagement: %d likes, %d shares, %d comments\n",
			m.Engagement.Likes, m.Engagement.Shares, m.Engagement.Comments))
		if m.SourceURL != "" {
			text.WriteString(fmt.Sprintf("URL: %s\n", m.SourceURL))
		}
		text.WriteString(fmt.Sprintf("Content: %s\n", truncate(m.Content, 500)))
	}

	text.WriteString(fmt.Sprintf("\n---\nThis alert was generated automatically by the %s brand pulse dashboard.\n", s.config.BrandName))

	return text.String()
}

func truncate(s string, length int) string {
	r := []rune(s)
	if len(r) <= length {
		return s
	}
	return string(r[:length]) + "..."
}
